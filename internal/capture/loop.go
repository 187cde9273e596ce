// Package capture implements the receive loop: bind a raw socket to one
// interface and hand every received frame to a consumer.
package capture

import (
	"context"
	"fmt"
	"time"

	"golang.org/x/net/bpf"

	"firestige.xyz/etherlab/internal/core"
	"firestige.xyz/etherlab/internal/frame"
	"firestige.xyz/etherlab/internal/lifecycle"
	"firestige.xyz/etherlab/internal/log"
	"firestige.xyz/etherlab/internal/metrics"
	"firestige.xyz/etherlab/internal/rawsock"
)

// retryDelay spaces out retries after a transient receive error.
const retryDelay = 50 * time.Millisecond

// State is the lifecycle state of a Loop.
type State int

const (
	StateUnbound State = iota
	StateBound
	StateReceiving
	StateTerminated
)

func (s State) String() string {
	switch s {
	case StateUnbound:
		return "unbound"
	case StateBound:
		return "bound"
	case StateReceiving:
		return "receiving"
	case StateTerminated:
		return "terminated"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// Opener opens the raw socket for an interface.
type Opener func(ifi core.Interface, opts rawsock.Options) (rawsock.Conn, error)

// Options configures a Loop.
type Options struct {
	Promiscuous bool
	Filter      []bpf.RawInstruction
	Socket      rawsock.Options
	// Opener defaults to rawsock.Open.
	Opener Opener
}

// Stats counts what a Loop has seen.
type Stats struct {
	Frames uint64
	Bytes  uint64
	Errors uint64
}

// Loop receives frames from one interface. It is driven by a single
// goroutine; only teardown may happen concurrently, through the Guard.
type Loop struct {
	ifi   core.Interface
	opts  Options
	guard *lifecycle.Guard
	log   log.Logger

	conn  rawsock.Conn
	buf   *frame.Buffer
	state State
	stats Stats
}

// NewLoop returns an unbound Loop. Resources acquired by Bind are tracked
// by guard.
func NewLoop(ifi core.Interface, guard *lifecycle.Guard, opts Options) *Loop {
	if opts.Opener == nil {
		opts.Opener = func(ifi core.Interface, o rawsock.Options) (rawsock.Conn, error) {
			return rawsock.Open(ifi, o)
		}
	}
	return &Loop{
		ifi:   ifi,
		opts:  opts,
		guard: guard,
		log:   log.GetLogger().WithField("interface", ifi.Name),
	}
}

// State returns the current state.
func (l *Loop) State() State { return l.state }

// Stats returns the counters so far.
func (l *Loop) Stats() Stats { return l.stats }

// Bind allocates the frame buffer, opens the socket and joins promiscuous
// membership when requested.
func (l *Loop) Bind() error {
	if l.state != StateUnbound {
		return fmt.Errorf("bind: loop is %s", l.state)
	}

	buf, err := frame.NewBuffer(l.ifi.MTU)
	if err != nil {
		return err
	}

	conn, err := l.opts.Opener(l.ifi, l.opts.Socket)
	if err != nil {
		return fmt.Errorf("bind %s: %w", l.ifi.Name, err)
	}
	l.guard.Track("socket", conn.Close)

	if len(l.opts.Filter) > 0 {
		if err := conn.SetBPF(l.opts.Filter); err != nil {
			return fmt.Errorf("attach filter on %s: %w", l.ifi.Name, err)
		}
		l.log.WithField("instructions", len(l.opts.Filter)).Debug("kernel filter attached")
	}

	if l.opts.Promiscuous {
		if err := conn.SetPromiscuous(true); err != nil {
			return fmt.Errorf("enable promiscuous mode on %s: %w", l.ifi.Name, err)
		}
		// Released before the socket: the guard unwinds in reverse.
		l.guard.Track("promiscuous membership", func() error { return conn.SetPromiscuous(false) })
	}

	// A pending read returns as soon as an interrupt arrives.
	l.guard.OnInterrupt(func() { _ = conn.SetReadDeadline(time.Now()) })

	l.conn = conn
	l.buf = buf
	l.state = StateBound
	l.log.WithField("mtu", l.ifi.MTU).WithField("buffer", buf.Len()).WithField("promiscuous", l.opts.Promiscuous).Info("capture bound")
	return nil
}

// Run receives until ctx is cancelled, the socket becomes unusable or the
// consumer fails. Cancellation is a clean stop and returns nil.
func (l *Loop) Run(ctx context.Context, consumer Consumer) error {
	if l.state != StateBound {
		return fmt.Errorf("run: loop is %s", l.state)
	}
	l.state = StateReceiving
	defer func() { l.state = StateTerminated }()

	stop := context.AfterFunc(ctx, func() { _ = l.conn.SetReadDeadline(time.Now()) })
	defer stop()

	name := l.ifi.Name
	for {
		if ctx.Err() != nil {
			l.log.Info("capture stopped")
			return nil
		}

		n, src, err := l.conn.ReadFrom(l.buf.Bytes())
		if err != nil {
			if ctx.Err() != nil {
				l.log.Info("capture stopped")
				return nil
			}
			if rawsock.IsTimeout(err) {
				continue
			}
			l.stats.Errors++
			metrics.CaptureErrorsTotal.WithLabelValues(name, rawsock.ErrnoName(err)).Inc()
			if rawsock.IsFatal(err) {
				return fmt.Errorf("%w: %s: %w", core.ErrReceive, name, err)
			}
			l.log.WithError(err).Warn("receive failed, continuing")
			select {
			case <-ctx.Done():
			case <-time.After(retryDelay):
			}
			continue
		}

		rec := core.Record{
			Interface: name,
			Source:    src,
			Data:      l.buf.Frame(n),
			Length:    n,
			Timestamp: time.Now(),
		}
		l.stats.Frames++
		l.stats.Bytes += uint64(n)
		metrics.FramesCapturedTotal.WithLabelValues(name).Inc()
		metrics.BytesCapturedTotal.WithLabelValues(name).Add(float64(n))
		metrics.FrameSizeBytes.WithLabelValues(name, metrics.DirectionRX).Observe(float64(n))
		if l.log.IsDebugEnabled() {
			l.log.Debug(frame.Describe(rec.Data))
		}

		if err := consumer.Consume(rec); err != nil {
			return fmt.Errorf("consume frame from %s: %w", name, err)
		}
	}
}
