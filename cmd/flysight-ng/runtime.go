package main

import (
	"context"
	"fmt"
	"io"
	"log"
	"time"

	"flysight-ng/internal/config"
	"flysight-ng/internal/csvlog"
	"flysight-ng/internal/gps"
	"flysight-ng/internal/nav"
	"flysight-ng/internal/replay"
	"flysight-ng/internal/sim"
	"flysight-ng/internal/status"
	"flysight-ng/internal/telemetry"
	"flysight-ng/internal/timer"
	"flysight-ng/internal/tone"
	"flysight-ng/internal/ubx"
)

// pollInterval bounds how long the foreground waits for receiver bytes
// before running its cooperative steps anyway.
const pollInterval = time.Millisecond

var (
	openPortFn   = gps.Open
	newOutputFn  = tone.NewOutput
	dialMQTTFn   = telemetry.Dial
	dialUDPFn    = telemetry.DialUDP
	openStatusFn = status.Open
)

type runtime struct {
	cfg config.Config

	timer   *timer.Timer
	ind     *status.Indicator
	synth   *tone.Synth
	out     tone.Output
	src     io.ReadCloser
	reader  *gps.Reader
	capture *replay.Writer
	pub     *telemetry.Publisher // mqtt
	udp     *telemetry.Publisher
	probe   *gps.NMEAProbe

	fg *foreground
}

func newRuntime(ctx context.Context, cfg config.Config) (*runtime, error) {
	p := cfg.Params()
	r := &runtime{cfg: cfg, timer: timer.New()}

	r.ind = openStatusFn(status.Config{
		GreenPin: cfg.Status.GreenPin,
		RedPin:   cfg.Status.RedPin,
		PowerPin: cfg.Status.PowerPin,
	})

	p.Tone.Clips = &tone.DirClips{Dir: cfg.Audio.ClipsDir}
	r.synth = tone.New(p.Tone)
	r.timer.OnTick(r.synth.Update)
	r.timer.OnTick(r.ind.Tick)
	if err := r.timer.Start(ctx); err != nil {
		r.Close()
		return nil, err
	}

	// Keep running silent when the output fails; logging still works
	// without audio.
	out, err := newOutputFn(cfg.Audio.Output, cfg.Audio.PWMChannel)
	if err != nil {
		log.Printf("audio output %q init failed: %v", cfg.Audio.Output, err)
		out = nil
	} else if err := out.Start(r.synth); err != nil {
		log.Printf("audio output %q start failed: %v", cfg.Audio.Output, err)
		if cerr := out.Close(); cerr != nil {
			log.Printf("audio output close: %v", cerr)
		}
		out = nil
	}
	if out == nil {
		pacer := &tone.Pacer{}
		if err := pacer.Start(r.synth); err != nil {
			r.Close()
			return nil, fmt.Errorf("audio pacer start: %w", err)
		}
		out = pacer
	}
	r.out = out

	if err := r.openSource(ctx, p.UBX); err != nil {
		r.ind.SetError()
		r.Close()
		return nil, err
	}

	r.reader = gps.NewReader(r.src)
	if cfg.Record.Enable {
		w, err := replay.CreateWriter(cfg.Record.Path)
		if err != nil {
			r.Close()
			return nil, fmt.Errorf("record create: %w", err)
		}
		r.capture = w
		r.reader.Tap = w.Tap
		log.Printf("recording receiver stream to %s", cfg.Record.Path)
	}

	var sinks fanout
	if cfg.MQTT.Enable {
		r.pub = startPublisher(ctx, "mqtt", func() (*telemetry.Publisher, error) {
			return dialMQTTFn(mqttConfig(cfg.MQTT))
		})
		if r.pub != nil {
			sinks = append(sinks, r.pub)
		}
	}
	if cfg.UDP.Enable {
		r.udp = startPublisher(ctx, "udp", func() (*telemetry.Publisher, error) {
			return dialUDPFn(cfg.UDP.Dest, telemetry.Config{})
		})
		if r.udp != nil {
			sinks = append(sinks, r.udp)
		}
	}

	storage := &csvlog.DirStorage{Root: cfg.Log.Dir}
	var sink fixSink
	if len(sinks) > 0 {
		sink = sinks
	}
	r.fg = newForeground(p, r.synth, r.ind, storage, sink)
	return r, nil
}

// startPublisher dials and starts a telemetry publisher. Telemetry is
// optional: failures are logged and yield nil.
func startPublisher(ctx context.Context, name string, dial func() (*telemetry.Publisher, error)) *telemetry.Publisher {
	pub, err := dial()
	if err != nil {
		log.Printf("%s telemetry init failed: %v", name, err)
		return nil
	}
	if err := pub.Start(ctx); err != nil {
		log.Printf("%s telemetry start failed: %v", name, err)
		pub.Close()
		return nil
	}
	return pub
}

type fanout []fixSink

func (s fanout) Enqueue(f nav.Fix) {
	for _, k := range s {
		k.Enqueue(f)
	}
}

func mqttConfig(c config.MQTTConfig) telemetry.Config {
	tc := telemetry.Config{
		Broker:   c.Broker,
		ClientID: c.ClientID,
		Topic:    c.Topic,
		QoS:      byte(c.QoS),
	}
	if c.TargetLat != nil && c.TargetLon != nil {
		tc.HasTarget = true
		tc.TargetLat = int32(*c.TargetLat * 1e7)
		tc.TargetLon = int32(*c.TargetLon * 1e7)
	}
	return tc
}

func simJump(c config.SimConfig) sim.Jump {
	return sim.Jump{
		CenterLatDeg: c.CenterLat,
		CenterLonDeg: c.CenterLon,
		RadiusM:      c.RadiusM,
		ExitAltM:     c.ExitAltM,
		DeployAltM:   c.DeployAltM,
		GroundAltM:   c.GroundAltM,
		FreefallVS:   c.FreefallVS,
		CanopyVS:     c.CanopyVS,
		Acquire:      time.Duration(c.AcquireS * float64(time.Second)),
	}
}

// openSource selects the receiver byte stream. A replayed capture or a
// simulated jump skips the configuration handshake; a live port blocks here
// until the receiver acknowledges its configuration or ctx ends.
func (r *runtime) openSource(ctx context.Context, opt ubx.Options) error {
	if r.cfg.Replay.Enable {
		recs, err := replay.Load(r.cfg.Replay.Path)
		if err != nil {
			return fmt.Errorf("replay load: %w", err)
		}
		log.Printf("replaying %s (%d records, speed=%.2f loop=%v)", r.cfg.Replay.Path, len(recs), r.cfg.Replay.Speed, r.cfg.Replay.Loop)
		r.src = replay.NewStream(recs, r.cfg.Replay.Speed, r.cfg.Replay.Loop, nil)
		return nil
	}
	if r.cfg.Sim.Enable {
		j := simJump(r.cfg.Sim)
		log.Printf("simulating jump (%s, speed=%.2f)", j.Duration().Round(time.Second), r.cfg.Sim.Speed)
		r.src = replay.NewStream(j.Records(time.Now(), r.cfg.GPS.RateMS), r.cfg.Sim.Speed, false, nil)
		return nil
	}

	port, err := openPortFn(gps.Config{
		Device:  r.cfg.GPS.Device,
		Backend: r.cfg.GPS.Backend,
		Baud:    r.cfg.GPS.InitBaud,
	})
	if err != nil {
		return err
	}

	r.probe = gps.NewNMEAProbe()
	opt.Observe = r.probe.Observe
	start := time.Now()
	if err := ubx.NewConfigurator(port, r.timer.Countdown(), opt).Configure(ctx); err != nil {
		_ = port.Close()
		return fmt.Errorf("receiver configuration: %w", err)
	}
	log.Printf("receiver ready after %s (nmea sentences seen=%d)", time.Since(start).Round(time.Millisecond), r.probe.Seen())
	r.src = port
	return nil
}

// Run is the foreground loop. It returns when ctx ends or, for a
// non-looping replay, when the capture is exhausted.
func (r *runtime) Run(ctx context.Context) error {
	if err := r.reader.Start(ctx); err != nil {
		return err
	}
	tk := time.NewTicker(pollInterval)
	defer tk.Stop()

	chunks := r.reader.Chunks()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case b, ok := <-chunks:
			if !ok {
				snap := r.reader.Snapshot()
				log.Printf("receiver stream ended bytes=%d chunks=%d err=%q", snap.Bytes, snap.Chunks, snap.LastError)
				r.fg.drain()
				if snap.LastError != "" {
					r.ind.SetError()
					return fmt.Errorf("%s", snap.LastError)
				}
				return nil
			}
			r.fg.handleChunk(b)
		case <-tk.C:
		}
		r.fg.task()
	}
}

// Close releases everything newRuntime acquired. It is safe on a partially
// built runtime.
func (r *runtime) Close() {
	if r.src != nil {
		_ = r.src.Close()
	}
	if r.reader != nil {
		r.reader.Close()
	}
	if r.capture != nil {
		if err := r.capture.Close(); err != nil {
			log.Printf("record close: %v", err)
		}
	}
	for name, pub := range map[string]*telemetry.Publisher{"mqtt": r.pub, "udp": r.udp} {
		if pub == nil {
			continue
		}
		snap := pub.Snapshot()
		log.Printf("%s telemetry sent=%d dropped=%d", name, snap.Sent, snap.Dropped)
		pub.Close()
	}
	if r.fg != nil {
		if err := r.fg.close(); err != nil {
			log.Printf("csvlog close: %v", err)
		}
		log.Printf("fixes=%d", r.fg.fixes)
	}
	if r.out != nil {
		if err := r.out.Close(); err != nil {
			log.Printf("audio output close: %v", err)
		}
	}
	r.timer.Close()
	if r.ind != nil {
		_ = r.ind.Close()
	}
}

var _ fixSink = (*telemetry.Publisher)(nil)
var _ csvlog.Source = (*nav.Aggregator)(nil)
