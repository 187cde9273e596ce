// Package inject implements the transmit loop: chunk a payload, frame each
// chunk and write it to a raw socket, one frame at a time.
package inject

import (
	"context"
	"fmt"
	"io"
	"net"
	"time"

	"github.com/google/uuid"

	"firestige.xyz/etherlab/internal/chunker"
	"firestige.xyz/etherlab/internal/core"
	"firestige.xyz/etherlab/internal/frame"
	"firestige.xyz/etherlab/internal/hexdump"
	"firestige.xyz/etherlab/internal/iface"
	"firestige.xyz/etherlab/internal/lifecycle"
	"firestige.xyz/etherlab/internal/log"
	"firestige.xyz/etherlab/internal/metrics"
	"firestige.xyz/etherlab/internal/payload"
	"firestige.xyz/etherlab/internal/rawsock"
)

// State is the lifecycle state of a Loop.
type State int

const (
	StateUnbound State = iota
	StateAddressed
	StateTransmitting
	StateTerminated
)

func (s State) String() string {
	switch s {
	case StateUnbound:
		return "unbound"
	case StateAddressed:
		return "addressed"
	case StateTransmitting:
		return "transmitting"
	case StateTerminated:
		return "terminated"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// Opener opens the raw socket for an interface.
type Opener func(ifi core.Interface, opts rawsock.Options) (rawsock.Conn, error)

// Recorder receives a copy of every transmitted frame.
type Recorder interface {
	WriteFrame(b []byte, ts time.Time) error
}

// Options configures a Loop.
type Options struct {
	Dst net.HardwareAddr
	Src net.HardwareAddr

	// Tagged frames carry Tag in the length/type field and a two byte
	// message length ahead of the data.
	Tagged bool
	Tag    uint16

	// UnpaddedLength puts the real data length in the length field instead
	// of the padded payload length. Ignored for tagged frames.
	UnpaddedLength bool

	// Out receives the per-frame report and dump; nil discards it.
	Out    io.Writer
	Dumper hexdump.Dumper

	Recorder Recorder
	Socket   rawsock.Options
	// Opener defaults to rawsock.Open.
	Opener Opener
}

// Summary describes a finished run.
type Summary struct {
	RunID        string
	Frames       int
	Bytes        int
	PayloadBytes int
}

// Loop transmits one payload through one interface.
type Loop struct {
	ifi   core.Interface
	opts  Options
	guard *lifecycle.Guard

	conn  rawsock.Conn
	addr  rawsock.LinkAddr
	buf   *frame.Buffer
	state State
}

// NewLoop returns an unaddressed Loop. Resources acquired later are
// tracked by guard.
func NewLoop(ifi core.Interface, guard *lifecycle.Guard, opts Options) *Loop {
	if opts.Opener == nil {
		opts.Opener = func(ifi core.Interface, o rawsock.Options) (rawsock.Conn, error) {
			return rawsock.Open(ifi, o)
		}
	}
	if opts.Out == nil {
		opts.Out = io.Discard
	}
	return &Loop{ifi: ifi, opts: opts, guard: guard}
}

// State returns the current state.
func (l *Loop) State() State { return l.state }

// LinkAddr returns the send address built by Address.
func (l *Loop) LinkAddr() rawsock.LinkAddr { return l.addr }

// Address validates the frame addresses, allocates the frame buffer, opens
// the socket and builds the send address: the local interface index and
// the interface's own hardware address.
func (l *Loop) Address() error {
	if l.state != StateUnbound {
		return fmt.Errorf("address: loop is %s", l.state)
	}
	if len(l.opts.Dst) != core.AddrLen {
		return fmt.Errorf("%w: destination %q", core.ErrAddressParse, l.opts.Dst)
	}
	if len(l.opts.Src) != core.AddrLen {
		return fmt.Errorf("%w: source %q", core.ErrAddressParse, l.opts.Src)
	}
	if l.opts.Tagged && !frame.IsEtherType(l.opts.Tag) {
		return fmt.Errorf("%w: tag 0x%04x is not an EtherType", core.ErrConfig, l.opts.Tag)
	}

	buf, err := frame.NewBuffer(l.ifi.MTU)
	if err != nil {
		return err
	}

	conn, err := l.opts.Opener(l.ifi, l.opts.Socket)
	if err != nil {
		return fmt.Errorf("open socket on %s: %w", l.ifi.Name, err)
	}
	l.guard.Track("socket", conn.Close)

	l.conn = conn
	l.buf = buf
	l.addr = rawsock.NewLinkAddr(l.ifi)
	l.state = StateAddressed
	return nil
}

// Run transmits src and closes it. An empty source sends nothing and
// succeeds. A cancelled ctx stops between frames and returns ctx.Err().
func (l *Loop) Run(ctx context.Context, src payload.Source) (Summary, error) {
	sum := Summary{RunID: uuid.NewString()}
	l.guard.Track("payload", src.Close)
	if l.state != StateAddressed {
		return sum, fmt.Errorf("run: loop is %s", l.state)
	}
	l.state = StateTransmitting
	defer func() { l.state = StateTerminated }()

	var copts []chunker.Option
	field := uint16(0)
	if l.opts.Tagged {
		copts = append(copts, chunker.WithLengthPrefix())
		field = l.opts.Tag
	}
	chunks, err := chunker.New(src, iface.MaxPayload(l.ifi, l.opts.Tagged), copts...)
	if err != nil {
		return sum, err
	}

	name := l.ifi.Name
	logger := log.GetLogger().WithField("run", sum.RunID).WithField("interface", name)
	logger.WithFields(map[string]interface{}{
		"src":    l.opts.Src.String(),
		"dst":    l.opts.Dst.String(),
		"bytes":  src.Len(),
		"frames": chunks.Count(),
		"tagged": l.opts.Tagged,
	}).Debug("transmitting")

	for ch, err := range chunks.All(l.buf.Payload()) {
		if err != nil {
			return sum, err
		}
		if err := ctx.Err(); err != nil {
			logger.WithField("sent", sum.Frames).Info("transmission interrupted")
			return sum, err
		}

		switch {
		case l.opts.Tagged:
		case l.opts.UnpaddedLength:
			field = uint16(ch.DataLen)
		default:
			field = uint16(ch.Len)
		}
		if err := frame.EncodeHeader(l.buf.Header(), l.opts.Dst, l.opts.Src, field); err != nil {
			return sum, err
		}
		b := l.buf.Frame(core.HeaderLen + ch.Len)

		n, err := l.conn.WriteTo(b, l.addr)
		if err == nil && n != len(b) {
			err = fmt.Errorf("short write: %d of %d bytes", n, len(b))
		}
		if err != nil {
			metrics.TransmitErrorsTotal.WithLabelValues(name).Inc()
			return sum, fmt.Errorf("%w: frame %d on %s: %w", core.ErrTransmit, ch.Index, name, err)
		}
		now := time.Now()

		sum.Frames++
		sum.Bytes += len(b)
		sum.PayloadBytes += ch.DataLen
		metrics.FramesTransmittedTotal.WithLabelValues(name).Inc()
		metrics.BytesTransmittedTotal.WithLabelValues(name).Add(float64(len(b)))
		metrics.FrameSizeBytes.WithLabelValues(name, metrics.DirectionTX).Observe(float64(len(b)))

		if _, err := fmt.Fprintf(l.opts.Out, "Frame transmitted (Payload Length = [%d]): \n", ch.Len); err != nil {
			return sum, err
		}
		if err := l.opts.Dumper.Dump(l.opts.Out, b); err != nil {
			return sum, err
		}
		if l.opts.Recorder != nil {
			if err := l.opts.Recorder.WriteFrame(b, now); err != nil {
				return sum, fmt.Errorf("record frame %d: %w", ch.Index, err)
			}
		}
	}

	logger.WithField("frames", sum.Frames).WithField("bytes", sum.Bytes).Info("transmission complete")
	return sum, nil
}

// Truncate cuts msg to at most max bytes and reports whether it did.
func Truncate(msg []byte, max int) ([]byte, bool) {
	if len(msg) <= max {
		return msg, false
	}
	return msg[:max], true
}
