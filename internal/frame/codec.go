package frame

import (
	"encoding/binary"
	"fmt"
	"net"

	"firestige.xyz/etherlab/internal/core"
)

// Frame is an Ethernet II frame without CRC. Field is either a payload
// length or an EtherType, see IsLength and IsEtherType.
type Frame struct {
	Dst     net.HardwareAddr
	Src     net.HardwareAddr
	Field   uint16
	Payload []byte
}

// IsLength reports whether a length/type value is read as a payload length.
// Values up to 1500 are lengths; this is a heuristic and 1501..1535 is
// neither a length nor an EtherType.
func IsLength(field uint16) bool { return field <= core.MaxPayloadLen }

// IsEtherType reports whether a length/type value is read as an EtherType.
func IsEtherType(field uint16) bool { return field >= core.MinEtherType }

// EncodeHeader writes dst, src and the length/type field into the first 14
// bytes of b.
func EncodeHeader(b []byte, dst, src net.HardwareAddr, field uint16) error {
	if len(b) < core.HeaderLen {
		return fmt.Errorf("%w: header needs %d bytes, have %d", core.ErrBufferTooSmall, core.HeaderLen, len(b))
	}
	if len(dst) != core.AddrLen {
		return fmt.Errorf("%w: destination %q", core.ErrAddressParse, dst)
	}
	if len(src) != core.AddrLen {
		return fmt.Errorf("%w: source %q", core.ErrAddressParse, src)
	}
	copy(b[0:6], dst)
	copy(b[6:12], src)
	binary.BigEndian.PutUint16(b[12:14], field)
	return nil
}

// Encode writes f into b and returns the number of bytes written. No padding
// is added.
func Encode(b []byte, f Frame) (int, error) {
	n := core.HeaderLen + len(f.Payload)
	if len(b) < n {
		return 0, fmt.Errorf("%w: frame needs %d bytes, have %d", core.ErrBufferTooSmall, n, len(b))
	}
	if err := EncodeHeader(b, f.Dst, f.Src, f.Field); err != nil {
		return 0, err
	}
	copy(b[core.HeaderLen:n], f.Payload)
	return n, nil
}

// EncodeLength is Encode with the field set to the payload length.
func EncodeLength(b []byte, f Frame) (int, error) {
	if len(f.Payload) > core.MaxPayloadLen {
		return 0, fmt.Errorf("%w: %d bytes exceeds length field limit %d", core.ErrPayloadTooLarge, len(f.Payload), core.MaxPayloadLen)
	}
	f.Field = uint16(len(f.Payload))
	return Encode(b, f)
}

// Decode parses b. The returned addresses and payload alias b.
func Decode(b []byte) (Frame, error) {
	if len(b) < core.HeaderLen {
		return Frame{}, fmt.Errorf("%w: %d bytes", core.ErrFrameTooShort, len(b))
	}
	return Frame{
		Dst:     net.HardwareAddr(b[0:6]),
		Src:     net.HardwareAddr(b[6:12]),
		Field:   binary.BigEndian.Uint16(b[12:14]),
		Payload: b[core.HeaderLen:],
	}, nil
}

// Data returns the meaningful part of the payload. When the field is a
// length shorter than the payload, trailing padding is dropped.
func (f Frame) Data() []byte {
	if IsLength(f.Field) && int(f.Field) < len(f.Payload) {
		return f.Payload[:f.Field]
	}
	return f.Payload
}

// Message returns the message carried by a tagged frame, whose payload
// starts with a big-endian message length.
func (f Frame) Message() ([]byte, error) {
	if len(f.Payload) < core.MessagePrefixLen {
		return nil, fmt.Errorf("%w: no message length prefix", core.ErrFrameTooShort)
	}
	n := int(binary.BigEndian.Uint16(f.Payload))
	body := f.Payload[core.MessagePrefixLen:]
	if n > len(body) {
		return nil, fmt.Errorf("%w: message length %d, have %d", core.ErrFrameTooShort, n, len(body))
	}
	return body[:n], nil
}
