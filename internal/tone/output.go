package tone

import (
	"context"
	"fmt"
	"sync"
	"time"
)

// Handler produces one output level per call. *Synth implements it.
type Handler interface {
	Tick() uint8
}

// Output clocks a Handler at HandlerRate and renders its levels.
type Output interface {
	Start(h Handler) error
	Close() error
}

// NewOutput returns the named output backend: "audio", "pwm" or "null".
func NewOutput(kind string, pwmChannel int) (Output, error) {
	switch kind {
	case "", "audio":
		return newMalgoOutput()
	case "pwm":
		return openPWM(pwmChannel)
	case "null":
		return &Pacer{}, nil
	default:
		return nil, fmt.Errorf("tone: unknown output %q", kind)
	}
}

// Pacer drives a Handler from a 1 ms ticker, calling it HandlerRate/1000
// times per millisecond on average. Sink, if set, receives the last level of
// each millisecond.
type Pacer struct {
	Sink func(level uint8)

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

func (p *Pacer) Start(h Handler) error {
	if p.cancel != nil {
		return fmt.Errorf("tone: pacer already started")
	}
	ctx, cancel := context.WithCancel(context.Background())
	p.cancel = cancel
	p.wg.Add(1)
	go func() {
		defer p.wg.Done()
		p.run(ctx, h)
	}()
	return nil
}

func (p *Pacer) run(ctx context.Context, h Handler) {
	t := time.NewTicker(time.Millisecond)
	defer t.Stop()
	var acc int
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			p.step(h, &acc)
		}
	}
}

func (p *Pacer) step(h Handler, acc *int) {
	*acc += HandlerRate
	var level uint8
	for *acc >= 1000 {
		level = h.Tick()
		*acc -= 1000
	}
	if p.Sink != nil {
		p.Sink(level)
	}
}

func (p *Pacer) Close() error {
	if p.cancel == nil {
		return nil
	}
	p.cancel()
	p.wg.Wait()
	p.cancel = nil
	return nil
}
