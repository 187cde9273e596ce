// Package frame implements Ethernet II frame buffers and the frame codec.
package frame

import (
	"fmt"

	"firestige.xyz/etherlab/internal/core"
)

// maxMTU bounds buffer allocation; larger values are treated as bogus interface data.
const maxMTU = 65535

// Buffer is the single frame-sized byte region owned by a capture or
// injection loop. It holds the 14 byte header followed by up to MTU bytes of
// payload and is never shorter than a minimum frame.
type Buffer struct {
	buf []byte
}

// NewBuffer allocates a buffer for an interface with the given MTU.
func NewBuffer(mtu int) (*Buffer, error) {
	if mtu <= 0 || mtu > maxMTU {
		return nil, fmt.Errorf("%w: mtu %d", core.ErrAllocation, mtu)
	}
	return &Buffer{buf: make([]byte, max(mtu+core.HeaderLen, core.MinFrameLen))}, nil
}

// Len returns the capacity of the buffer in bytes.
func (b *Buffer) Len() int { return len(b.buf) }

// Bytes returns the whole buffer.
func (b *Buffer) Bytes() []byte { return b.buf }

// Header returns the header region.
func (b *Buffer) Header() []byte { return b.buf[:core.HeaderLen] }

// Payload returns the region following the header.
func (b *Buffer) Payload() []byte { return b.buf[core.HeaderLen:] }

// Frame returns the first n bytes, clamped to the buffer length.
func (b *Buffer) Frame(n int) []byte {
	if n > len(b.buf) {
		n = len(b.buf)
	}
	if n < 0 {
		n = 0
	}
	return b.buf[:n]
}
