package tone

import (
	"fmt"
	"sync/atomic"

	"github.com/gen2brain/malgo"
)

// malgoOutput plays the handler through the default audio device as
// unsigned 8-bit mono at HandlerRate; the device callback is the clock.
type malgoOutput struct {
	ctx    *malgo.AllocatedContext
	device *malgo.Device
	h      atomic.Value // Handler
}

func newMalgoOutput() (*malgoOutput, error) {
	ctx, err := malgo.InitContext(nil, malgo.ContextConfig{}, nil)
	if err != nil {
		return nil, fmt.Errorf("tone: init audio context: %w", err)
	}
	return &malgoOutput{ctx: ctx}, nil
}

func (o *malgoOutput) Start(h Handler) error {
	if o.device != nil {
		return fmt.Errorf("tone: audio already started")
	}
	o.h.Store(h)

	cfg := malgo.DefaultDeviceConfig(malgo.Playback)
	cfg.Playback.Format = malgo.FormatU8
	cfg.Playback.Channels = 1
	cfg.SampleRate = HandlerRate
	cfg.Alsa.NoMMap = 1

	cb := malgo.DeviceCallbacks{
		Data: func(out, _ []byte, frames uint32) {
			fillFrames(o.h.Load().(Handler), out, frames)
		},
	}
	dev, err := malgo.InitDevice(o.ctx.Context, cfg, cb)
	if err != nil {
		return fmt.Errorf("tone: init audio device: %w", err)
	}
	if err := dev.Start(); err != nil {
		dev.Uninit()
		return fmt.Errorf("tone: start audio device: %w", err)
	}
	o.device = dev
	return nil
}

func fillFrames(h Handler, out []byte, frames uint32) {
	n := int(frames)
	if n > len(out) {
		n = len(out)
	}
	for i := 0; i < n; i++ {
		out[i] = h.Tick()
	}
}

func (o *malgoOutput) Close() error {
	if o.device != nil {
		o.device.Uninit()
		o.device = nil
	}
	if o.ctx != nil {
		_ = o.ctx.Uninit()
		o.ctx.Free()
		o.ctx = nil
	}
	return nil
}
