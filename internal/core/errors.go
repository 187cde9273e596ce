// Package core defines sentinel errors.
package core

import "errors"

// Sentinel errors. Callers wrap them with fmt.Errorf("...: %w") and classify with errors.Is.
var (
	// Configuration and argument errors
	ErrConfig       = errors.New("etherlab: invalid configuration")
	ErrAddressParse = errors.New("etherlab: malformed hardware address")

	// Interface resolution errors
	ErrResolution           = errors.New("etherlab: interface resolution failed")
	ErrInterfaceNotFound    = errors.New("etherlab: interface not found")
	ErrInterfaceNotEthernet = errors.New("etherlab: interface is not ethernet")

	// Buffer errors
	ErrAllocation = errors.New("etherlab: frame buffer allocation failed")

	// Socket I/O errors
	ErrTransmit = errors.New("etherlab: frame transmit failed")
	ErrReceive  = errors.New("etherlab: frame receive failed")

	// Payload source errors
	ErrShortRead = errors.New("etherlab: payload source short read")

	// Frame codec errors
	ErrFrameTooShort   = errors.New("etherlab: frame too short")
	ErrPayloadTooLarge = errors.New("etherlab: payload too large")
	ErrBufferTooSmall  = errors.New("etherlab: buffer too small")
)
