// Package rawsock wraps AF_PACKET sockets bound to a single interface.
package rawsock

import (
	"errors"
	"fmt"
	"net"
	"os"
	"syscall"
	"time"

	"github.com/google/gopacket/afpacket"
	"golang.org/x/net/bpf"
	"golang.org/x/sys/unix"

	"firestige.xyz/etherlab/internal/core"
)

// Engine names accepted by Open.
const (
	EngineSocket = "socket"
	EngineRing   = "ring"
)

// LinkAddr is the link-level address a frame is sent to. Ifindex is the
// local interface and Addr is that interface's own hardware address; the
// destination lives in the frame header only.
type LinkAddr struct {
	Ifindex int
	Addr    net.HardwareAddr
}

// NewLinkAddr builds the send address for ifi.
func NewLinkAddr(ifi core.Interface) LinkAddr {
	return LinkAddr{Ifindex: ifi.Index, Addr: ifi.HardwareAddr}
}

func (a LinkAddr) String() string {
	return fmt.Sprintf("ifindex=%d addr=%s", a.Ifindex, a.Addr)
}

// Conn is a raw link-layer socket receiving every protocol on one interface.
type Conn interface {
	// ReadFrom reads one frame into b and returns its source hardware address.
	ReadFrom(b []byte) (int, net.HardwareAddr, error)
	// WriteTo transmits one complete frame.
	WriteTo(b []byte, to LinkAddr) (int, error)
	// SetPromiscuous joins or leaves promiscuous membership.
	SetPromiscuous(enable bool) error
	// SetBPF attaches a classic BPF program.
	SetBPF(filter []bpf.RawInstruction) error
	// SetReadDeadline bounds the current and future ReadFrom calls.
	SetReadDeadline(t time.Time) error
	Close() error
}

// Options tunes Open.
type Options struct {
	Engine      string
	SnapLen     int
	RingSizeMB  int
	PollTimeout time.Duration
}

// Open opens a Conn on ifi using the engine named in opts.
func Open(ifi core.Interface, opts Options) (Conn, error) {
	switch opts.Engine {
	case "", EngineSocket:
		return Listen(ifi)
	case EngineRing:
		return OpenRing(ifi, RingOptions{SnapLen: opts.SnapLen, SizeMB: opts.RingSizeMB, PollTimeout: opts.PollTimeout})
	default:
		return nil, fmt.Errorf("%w: unknown capture engine %q", core.ErrConfig, opts.Engine)
	}
}

// IsTimeout reports whether err is a read deadline or poll timeout.
func IsTimeout(err error) bool {
	return errors.Is(err, os.ErrDeadlineExceeded) || errors.Is(err, afpacket.ErrTimeout)
}

// IsFatal reports whether a receive error means the socket or its device is
// gone. Everything else is worth retrying.
func IsFatal(err error) bool {
	if errors.Is(err, net.ErrClosed) || errors.Is(err, os.ErrClosed) {
		return true
	}
	var errno syscall.Errno
	if errors.As(err, &errno) {
		switch errno {
		case unix.EBADF, unix.ENOTSOCK, unix.ENODEV, unix.ENXIO:
			return true
		}
	}
	return false
}

// ErrnoName returns a short label for err suitable for a metric label.
func ErrnoName(err error) string {
	switch {
	case IsTimeout(err):
		return "timeout"
	case errors.Is(err, net.ErrClosed), errors.Is(err, os.ErrClosed):
		return "closed"
	}
	var errno syscall.Errno
	if errors.As(err, &errno) {
		if name := unix.ErrnoName(errno); name != "" {
			return name
		}
	}
	return "other"
}
