package main

import (
	"log"

	"flysight-ng/internal/alarm"
	"flysight-ng/internal/config"
	"flysight-ng/internal/csvlog"
	"flysight-ng/internal/feedback"
	"flysight-ng/internal/nav"
	"flysight-ng/internal/speech"
	"flysight-ng/internal/tone"
	"flysight-ng/internal/ubx"
)

// indicator is the status side of the foreground. *status.Indicator
// implements it.
type indicator interface {
	SetFix(ok bool)
	SetError()
	Hold()
	Release()
}

// fixSink receives every valid fix without blocking. *telemetry.Publisher
// implements it.
type fixSink interface {
	Enqueue(f nav.Fix)
}

// foreground owns every piece of state the receive loop touches: decoder,
// aggregator, controller, alarm engine, sequencer, log writer and the
// producer side of the synthesizer. It is not safe for concurrent use.
type foreground struct {
	synth  *tone.Synth
	ind    indicator
	sink   fixSink
	units  uint8
	dec    ubx.Decoder
	agg    nav.Aggregator
	ctrl   *feedback.Controller
	alarms *alarm.Engine
	seq    *speech.Sequencer
	csv    *csvlog.Writer

	firstFix bool
	fixes    uint64
}

func newForeground(p config.Params, synth *tone.Synth, ind indicator, storage csvlog.Storage, sink fixSink) *foreground {
	fg := &foreground{
		synth:  synth,
		ind:    ind,
		sink:   sink,
		units:  p.Alarm.AltUnits,
		ctrl:   feedback.NewController(p.Feedback, synth),
		alarms: alarm.NewEngine(p.Alarm),
		seq:    speech.NewSequencer(p.Speech),
	}
	fg.csv = csvlog.New(csvlog.Options{
		Storage:  storage,
		Gate:     synth,
		Power:    ind,
		TZOffset: p.TZOffset,
		OnError:  func(error) { ind.SetError() },
	})
	fg.agg.OnFix = fg.onFix
	fg.agg.OnNoFix = fg.onNoFix
	return fg
}

// handleChunk decodes received bytes; completed epochs run the fix hooks.
func (fg *foreground) handleChunk(b []byte) {
	fg.dec.Feed(b, fg.agg.HandleMessage)
}

func (fg *foreground) onFix(ep nav.Epoch) {
	fg.fixes++
	fg.ind.SetFix(true)

	res := fg.alarms.Evaluate(ep, fg.seq.Pending())
	if res.EnterSuppress {
		fg.seq.Clear()
		fg.synth.SetRate(0)
		fg.synth.Stop()
	}
	if res.Fired {
		fg.fire(res.Alarm)
	}
	if res.Announce {
		fg.seq.AnnounceAltitude(res.AnnounceAlt, fg.units)
	}
	if res.XRWFile != "" {
		fg.seq.Clear()
		fg.synth.SetRate(0)
		log.Printf("xrw: %s period", res.XRWPhase)
		if err := fg.synth.Play(res.XRWFile + ".wav"); err != nil {
			log.Printf("xrw: play %s: %v", res.XRWFile, err)
		}
	}

	if fg.ctrl.Update(ep.Fix, res.Suppress) {
		fg.seq.Announce(ep.Fix)
	}

	if !fg.csv.Initialized() && !fg.csv.Disabled() {
		if err := fg.csv.Open(ep.Fix); err == nil {
			fg.firstFix = true
		}
	}

	if fg.sink != nil {
		fg.sink.Enqueue(ep.Fix)
	}
}

func (fg *foreground) onNoFix() {
	fg.ind.SetFix(false)
	fg.synth.SetRate(0)
}

func (fg *foreground) fire(a alarm.Alarm) {
	switch a.Type {
	case alarm.Beep:
		fg.synth.Beep(tone.MaxPitch-1, 0, tone.Length125ms)
	case alarm.ChirpUp:
		fg.synth.Beep(0, tone.ChirpMax, tone.Length125ms)
	case alarm.ChirpDown:
		fg.synth.Beep(tone.MaxPitch-1, -tone.ChirpMax, tone.Length125ms)
	case alarm.PlayFile:
		if err := fg.synth.Play(a.File + ".wav"); err != nil {
			log.Printf("alarm: play %s: %v", a.File, err)
		}
	}
}

// task runs one pass of the cooperative steps that follow message
// handling: the log state machine, speech, the first-fix beep and the
// synthesizer producer.
func (fg *foreground) task() {
	fg.csv.Task(&fg.agg)

	if !fg.seq.Step(fg.synth) && fg.firstFix && fg.synth.IsIdle() {
		fg.firstFix = false
		fg.synth.Beep(tone.MaxPitch-1, 0, tone.Length125ms)
	}

	fg.synth.Task()
}

// drain silences the synthesizer and writes out the fixes still queued
// for the log once the receiver stream has ended.
func (fg *foreground) drain() {
	fg.synth.Stop()
	for i := 0; i < 4*(nav.RingLen+1); i++ {
		fg.csv.Task(&fg.agg)
	}
}

func (fg *foreground) close() error {
	return fg.csv.Close()
}
