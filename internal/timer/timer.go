// Package timer provides the 1 kHz periodic timer that drives the tone rate
// generator, LED blinking and the millisecond countdown used by protocol
// acknowledgement waits.
package timer

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"
)

// Period is the tick interval.
const Period = time.Millisecond

// Timer calls its registered hooks once per tick and decrements the
// countdown.
type Timer struct {
	countdown atomic.Uint32

	mu    sync.Mutex
	hooks []func()

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

func New() *Timer {
	return &Timer{}
}

// OnTick registers fn to run on the timer goroutine every tick. Hooks must
// not block.
func (t *Timer) OnTick(fn func()) {
	if fn == nil {
		return
	}
	t.mu.Lock()
	t.hooks = append(t.hooks, fn)
	t.mu.Unlock()
}

func (t *Timer) Start(ctx context.Context) error {
	if ctx == nil {
		return fmt.Errorf("ctx is nil")
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.cancel != nil {
		return nil
	}
	child, cancel := context.WithCancel(ctx)
	t.cancel = cancel

	t.wg.Add(1)
	go func() {
		defer t.wg.Done()
		tk := time.NewTicker(Period)
		defer tk.Stop()
		for {
			select {
			case <-child.Done():
				return
			case <-tk.C:
				t.Tick()
			}
		}
	}()
	return nil
}

// Tick advances the timer by one period. Exposed for tests and for callers
// that drive time themselves.
func (t *Timer) Tick() {
	for {
		v := t.countdown.Load()
		if v == 0 || t.countdown.CompareAndSwap(v, v-1) {
			break
		}
	}
	t.mu.Lock()
	hooks := t.hooks
	t.mu.Unlock()
	for _, fn := range hooks {
		fn()
	}
}

func (t *Timer) Close() {
	t.mu.Lock()
	cancel := t.cancel
	t.cancel = nil
	t.mu.Unlock()
	if cancel != nil {
		cancel()
	}
	t.wg.Wait()
}

// Start arms the countdown for ms milliseconds.
func (c *Countdown) Start(ms uint32) { c.t.countdown.Store(ms) }

// Expired reports whether the countdown reached zero. When the timer
// goroutine is not running, Expired sleeps for one period and advances the
// countdown itself so waits stay bounded.
func (c *Countdown) Expired() bool {
	if c.t.countdown.Load() == 0 {
		return true
	}
	c.t.mu.Lock()
	running := c.t.cancel != nil
	c.t.mu.Unlock()
	if !running {
		time.Sleep(Period)
		c.t.Tick()
	}
	return false
}

// Countdown is a millisecond deadline driven by a Timer.
type Countdown struct{ t *Timer }

// Countdown returns the millisecond countdown backed by this timer.
func (t *Timer) Countdown() *Countdown {
	return &Countdown{t: t}
}

// Remaining reports the milliseconds left on the countdown.
func (t *Timer) Remaining() uint32 {
	return t.countdown.Load()
}
