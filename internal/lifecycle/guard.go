// Package lifecycle releases run resources exactly once, on normal exit,
// on error or on interrupt.
package lifecycle

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"firestige.xyz/etherlab/internal/log"
)

// DefaultGrace is how long the interrupt watcher waits for the run to wind
// down before it tears down and exits on its own.
const DefaultGrace = 2 * time.Second

type resource struct {
	name  string
	close func() error
}

// Guard owns the resources of one run: the socket, promiscuous membership,
// the payload file, output files. Resources are released in reverse order
// of registration.
type Guard struct {
	mu        sync.Mutex
	resources []resource
	hooks     []func()
	tornDown  bool

	once sync.Once
	err  error
	done chan struct{}

	grace time.Duration
	exit  func(code int)
}

// Option configures a Guard.
type Option func(*Guard)

// WithGrace sets the interrupt grace period.
func WithGrace(d time.Duration) Option {
	return func(g *Guard) { g.grace = d }
}

// WithExit replaces os.Exit for the forced exit path.
func WithExit(fn func(code int)) Option {
	return func(g *Guard) { g.exit = fn }
}

// NewGuard returns an empty Guard.
func NewGuard(opts ...Option) *Guard {
	g := &Guard{
		done:  make(chan struct{}),
		grace: DefaultGrace,
		exit:  os.Exit,
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// Track registers a resource. Registering after Teardown releases it
// immediately.
func (g *Guard) Track(name string, closeFn func() error) {
	g.mu.Lock()
	if !g.tornDown {
		g.resources = append(g.resources, resource{name: name, close: closeFn})
		g.mu.Unlock()
		return
	}
	g.mu.Unlock()
	if err := closeFn(); err != nil {
		log.GetLogger().WithField("resource", name).WithError(err).Warn("release after teardown failed")
	}
}

// OnInterrupt registers fn to run when an interrupt arrives, before the
// run context is cancelled. Used to unblock pending reads.
func (g *Guard) OnInterrupt(fn func()) {
	g.mu.Lock()
	g.hooks = append(g.hooks, fn)
	g.mu.Unlock()
}

// Teardown releases every tracked resource once, last registered first.
// Later calls return the first result.
func (g *Guard) Teardown() error {
	g.once.Do(func() {
		g.mu.Lock()
		resources := g.resources
		g.resources = nil
		g.tornDown = true
		g.mu.Unlock()

		var errs []error
		for i := len(resources) - 1; i >= 0; i-- {
			r := resources[i]
			if err := r.close(); err != nil {
				errs = append(errs, fmt.Errorf("release %s: %w", r.name, err))
				continue
			}
			log.GetLogger().WithField("resource", r.name).Debug("released")
		}
		g.err = errors.Join(errs...)
		close(g.done)
	})
	return g.err
}

// Done is closed once Teardown has completed.
func (g *Guard) Done() <-chan struct{} { return g.done }

// WatchSignals returns a context cancelled on SIGINT or SIGTERM. On a
// signal the interrupt hooks run, the context is cancelled and the run gets
// the grace period to return and call Teardown; otherwise the watcher tears
// down itself and exits with status 0.
func (g *Guard) WatchSignals(parent context.Context) (context.Context, context.CancelFunc) {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	ctx, cancel := g.watch(parent, sigCh)
	return ctx, func() {
		signal.Stop(sigCh)
		cancel()
	}
}

func (g *Guard) watch(parent context.Context, sigCh <-chan os.Signal) (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(parent)
	go func() {
		select {
		case sig := <-sigCh:
			log.GetLogger().WithField("signal", sig.String()).Info("User pressed CTRL-C. Exiting ...")
			g.interrupt()
			cancel()
		case <-ctx.Done():
			return
		case <-g.done:
			return
		}

		select {
		case <-g.done:
		case <-time.After(g.grace):
			log.GetLogger().WithField("grace", g.grace.String()).Warn("run did not stop in time, forcing teardown")
			if err := g.Teardown(); err != nil {
				log.GetLogger().WithError(err).Error("teardown failed")
			}
			g.exit(0)
		}
	}()
	return ctx, cancel
}

func (g *Guard) interrupt() {
	g.mu.Lock()
	hooks := append([]func(){}, g.hooks...)
	g.mu.Unlock()
	for _, fn := range hooks {
		fn()
	}
}
