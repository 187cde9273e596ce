package core

import (
	"net"
	"time"
)

// Link-layer sizes in bytes. Frame lengths never include the trailing CRC.
const (
	AddrLen       = 6
	HeaderLen     = 14
	MinFrameLen   = 60
	MinPayloadLen = MinFrameLen - HeaderLen // 46
	MaxPayloadLen = 1500

	// MinEtherType is the smallest length/type value read as an EtherType.
	MinEtherType = 0x0600

	// DefaultMessageTag is the experimental EtherType used by tagged framing.
	DefaultMessageTag = 0x4321

	// MessagePrefixLen is the big-endian message length carried by tagged frames.
	MessagePrefixLen = 2
)

// Interface describes a resolved local network interface. It is resolved
// once per run and never changes afterwards.
type Interface struct {
	Name         string
	Index        int
	HardwareAddr net.HardwareAddr
	MTU          int
}

// Record is one received frame handed to a capture consumer. Data aliases the
// loop's frame buffer and is only valid until the consumer returns.
type Record struct {
	Interface string
	Source    net.HardwareAddr
	Data      []byte
	Length    int
	Timestamp time.Time
}
