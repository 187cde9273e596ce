package rawsock

import (
	"fmt"
	"net"
	"os"
	"sync"
	"time"

	"github.com/google/gopacket/afpacket"
	"github.com/mdlayher/packet"
	"golang.org/x/net/bpf"

	"firestige.xyz/etherlab/internal/core"
)

const (
	defaultRingSizeMB  = 8
	defaultPollTimeout = 100 * time.Millisecond
)

// RingOptions tunes OpenRing. Zero values pick defaults; SnapLen defaults
// to the interface buffer size.
type RingOptions struct {
	SnapLen     int
	SizeMB      int
	PollTimeout time.Duration
}

// Ring receives through a TPACKET_V3 memory-mapped ring.
//
// Reads wake up every poll timeout, so SetReadDeadline is a no-op and
// Close waits for an in-flight read to return before unmapping the ring.
// Promiscuous membership is held by a separate socket that receives nothing.
type Ring struct {
	mu      sync.Mutex
	tp      *afpacket.TPacket
	ifi     core.Interface
	promisc *packet.Conn
	closed  bool
}

// OpenRing opens a Ring on ifi.
func OpenRing(ifi core.Interface, opts RingOptions) (*Ring, error) {
	snapLen := opts.SnapLen
	if snapLen <= 0 {
		snapLen = ifi.MTU + core.HeaderLen
	}
	sizeMB := opts.SizeMB
	if sizeMB <= 0 {
		sizeMB = defaultRingSizeMB
	}
	timeout := opts.PollTimeout
	if timeout <= 0 {
		timeout = defaultPollTimeout
	}

	frameSize, blockSize, numBlocks, err := ringLayout(sizeMB, snapLen, os.Getpagesize())
	if err != nil {
		return nil, fmt.Errorf("%w: %w", core.ErrConfig, err)
	}

	tp, err := afpacket.NewTPacket(
		afpacket.OptInterface(ifi.Name),
		afpacket.OptFrameSize(frameSize),
		afpacket.OptBlockSize(blockSize),
		afpacket.OptNumBlocks(numBlocks),
		afpacket.OptPollTimeout(timeout),
		afpacket.SocketRaw,
		afpacket.TPacketVersion3,
	)
	if err != nil {
		return nil, fmt.Errorf("open ring on %s: %w", ifi.Name, err)
	}
	return &Ring{tp: tp, ifi: ifi}, nil
}

func (r *Ring) ReadFrom(b []byte) (int, net.HardwareAddr, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return 0, nil, net.ErrClosed
	}

	data, _, err := r.tp.ZeroCopyReadPacketData()
	if err != nil {
		return 0, nil, err
	}
	n := copy(b, data)
	var src net.HardwareAddr
	if n >= core.HeaderLen {
		src = append(net.HardwareAddr(nil), b[6:12]...)
	}
	return n, src, nil
}

func (r *Ring) WriteTo(b []byte, to LinkAddr) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return 0, net.ErrClosed
	}
	if to.Ifindex != r.ifi.Index {
		return 0, fmt.Errorf("%w: ring bound to ifindex %d, asked for %d", core.ErrTransmit, r.ifi.Index, to.Ifindex)
	}
	if err := r.tp.WritePacketData(b); err != nil {
		return 0, err
	}
	return len(b), nil
}

func (r *Ring) SetPromiscuous(enable bool) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return net.ErrClosed
	}
	if !enable {
		if r.promisc == nil {
			return nil
		}
		err := r.promisc.Close()
		r.promisc = nil
		return err
	}
	if r.promisc != nil {
		return nil
	}
	conn, err := packet.Listen(netInterface(r.ifi), packet.Raw, 0, nil)
	if err != nil {
		return fmt.Errorf("promiscuous socket on %s: %w", r.ifi.Name, err)
	}
	if err := conn.SetPromiscuous(true); err != nil {
		_ = conn.Close()
		return err
	}
	r.promisc = conn
	return nil
}

func (r *Ring) SetBPF(filter []bpf.RawInstruction) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return net.ErrClosed
	}
	return r.tp.SetBPF(filter)
}

func (r *Ring) SetReadDeadline(time.Time) error { return nil }

// Close releases the ring. It is safe to call from another goroutine and
// more than once.
func (r *Ring) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return nil
	}
	r.closed = true
	var err error
	if r.promisc != nil {
		err = r.promisc.Close()
		r.promisc = nil
	}
	r.tp.Close()
	return err
}
