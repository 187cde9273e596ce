package lifecycle

import (
	"context"
	"errors"
	"os"
	"sync/atomic"
	"syscall"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTeardownReverseOrderOnce(t *testing.T) {
	g := NewGuard()
	var order []string
	g.Track("socket", func() error { order = append(order, "socket"); return nil })
	g.Track("promisc", func() error { order = append(order, "promisc"); return nil })
	g.Track("payload", func() error { order = append(order, "payload"); return nil })

	require.NoError(t, g.Teardown())
	require.NoError(t, g.Teardown())
	assert.Equal(t, []string{"payload", "promisc", "socket"}, order)

	select {
	case <-g.Done():
	default:
		t.Fatal("Done should be closed after Teardown")
	}
}

func TestTeardownCollectsErrors(t *testing.T) {
	g := NewGuard()
	errA := errors.New("a failed")
	errB := errors.New("b failed")
	var released atomic.Int32
	g.Track("a", func() error { released.Add(1); return errA })
	g.Track("ok", func() error { released.Add(1); return nil })
	g.Track("b", func() error { released.Add(1); return errB })

	err := g.Teardown()
	assert.ErrorIs(t, err, errA)
	assert.ErrorIs(t, err, errB)
	assert.Equal(t, int32(3), released.Load())
	assert.Equal(t, err, g.Teardown())
}

func TestTrackAfterTeardownReleasesImmediately(t *testing.T) {
	g := NewGuard()
	require.NoError(t, g.Teardown())

	released := false
	g.Track("late", func() error { released = true; return nil })
	assert.True(t, released)
}

func TestConcurrentTeardown(t *testing.T) {
	g := NewGuard()
	var closes atomic.Int32
	g.Track("socket", func() error { closes.Add(1); return nil })

	start := make(chan struct{})
	finished := make(chan struct{})
	for range 8 {
		go func() {
			<-start
			_ = g.Teardown()
			finished <- struct{}{}
		}()
	}
	close(start)
	for range 8 {
		<-finished
	}
	assert.Equal(t, int32(1), closes.Load())
}

func TestTrackRacingTeardownReleasesEverything(t *testing.T) {
	for range 50 {
		g := NewGuard()
		var closes atomic.Int32
		const n = 16

		start := make(chan struct{})
		finished := make(chan struct{})
		for range n {
			go func() {
				<-start
				g.Track("file", func() error { closes.Add(1); return nil })
				finished <- struct{}{}
			}()
		}
		go func() {
			<-start
			_ = g.Teardown()
			finished <- struct{}{}
		}()
		close(start)
		for range n + 1 {
			<-finished
		}
		assert.Equal(t, int32(n), closes.Load())
	}
}

func TestInterruptCancelsAndWaitsForTeardown(t *testing.T) {
	exited := make(chan int, 1)
	g := NewGuard(WithGrace(time.Second), WithExit(func(code int) { exited <- code }))

	var hooked atomic.Bool
	g.OnInterrupt(func() { hooked.Store(true) })

	sigCh := make(chan os.Signal, 1)
	ctx, cancel := g.watch(context.Background(), sigCh)
	defer cancel()

	sigCh <- syscall.SIGINT
	select {
	case <-ctx.Done():
	case <-time.After(time.Second):
		t.Fatal("context was not cancelled by the signal")
	}
	assert.True(t, hooked.Load())

	// The run notices and tears down within the grace period.
	require.NoError(t, g.Teardown())
	select {
	case code := <-exited:
		t.Fatalf("unexpected forced exit with code %d", code)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestInterruptForcesTeardownAfterGrace(t *testing.T) {
	exited := make(chan int, 1)
	g := NewGuard(WithGrace(20*time.Millisecond), WithExit(func(code int) { exited <- code }))

	var released atomic.Bool
	g.Track("socket", func() error { released.Store(true); return nil })

	sigCh := make(chan os.Signal, 1)
	_, cancel := g.watch(context.Background(), sigCh)
	defer cancel()

	sigCh <- syscall.SIGTERM
	select {
	case code := <-exited:
		assert.Equal(t, 0, code)
	case <-time.After(2 * time.Second):
		t.Fatal("watcher did not force an exit")
	}
	assert.True(t, released.Load())
}

func TestWatchStopsWithParent(t *testing.T) {
	g := NewGuard(WithExit(func(int) { t.Error("exit must not be called") }))
	parent, cancelParent := context.WithCancel(context.Background())
	ctx, cancel := g.WatchSignals(parent)
	defer cancel()

	cancelParent()
	select {
	case <-ctx.Done():
	case <-time.After(time.Second):
		t.Fatal("context should follow its parent")
	}
}
