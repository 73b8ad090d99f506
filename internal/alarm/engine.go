// Package alarm evaluates elevation alarms, silence windows and altitude
// step announcements against consecutive fixes.
package alarm

import (
	"flysight-ng/internal/nav"
)

// Limits on configured tables.
const (
	MaxAlarms  = 10
	MaxWindows = 2
)

type Type uint8

const (
	None      Type = 0
	Beep      Type = 1
	ChirpUp   Type = 2
	ChirpDown Type = 3
	PlayFile  Type = 4
)

// Alarm fires when the altitude crosses Elev (mm above sea level).
type Alarm struct {
	Elev int32
	Type Type
	File string // clip name without extension, PlayFile only
}

// Window silences the tone while Bottom <= hMSL <= Top (mm).
type Window struct {
	Top    int32
	Bottom int32
}

// Altitude units for step announcements.
const (
	Meters = 0
	Feet   = 1
)

type Params struct {
	Alarms      []Alarm
	WindowAbove int32 // mm above each alarm that silences the tone
	WindowBelow int32 // mm below each alarm that silences the tone
	Windows     []Window
	DZElev      int32 // ground elevation, mm

	AltStep  int32 // announcement step in AltUnits, 0 disables
	AltUnits uint8

	XRW XRW
}

// Result is the outcome of one evaluation.
type Result struct {
	Suppress      bool
	EnterSuppress bool // Suppress became true on this fix

	Fired bool
	Alarm Alarm

	Announce    bool
	AnnounceAlt int32 // step altitude above DZElev, in AltUnits

	// XRWFile is set when a build or score period starts on this fix. The
	// caller drops queued speech, silences the tone and plays the clip;
	// Suppress is set for the fix.
	XRWFile  string
	XRWPhase XRWPhase
}

type Engine struct {
	p          Params
	suppressed bool
	xrw        xrwState
}

func NewEngine(p Params) *Engine {
	if len(p.Alarms) > MaxAlarms {
		p.Alarms = p.Alarms[:MaxAlarms]
	}
	if len(p.Windows) > MaxWindows {
		p.Windows = p.Windows[:MaxWindows]
	}
	return &Engine{p: p, xrw: xrwState{p: p.XRW}}
}

// XRWPhase returns the build/score progress.
func (e *Engine) XRWPhase() XRWPhase { return e.xrw.phase }

// Suppressed reports the suppression state of the last evaluation.
func (e *Engine) Suppressed() bool { return e.suppressed }

// Evaluate runs on every epoch that completed with a valid fix.
// speechQueued reports whether an announcement is already pending.
func (e *Engine) Evaluate(ep nav.Epoch, speechQueued bool) Result {
	cur := ep.Fix.HMSL
	var r Result

	r.Suppress = e.inWindow(cur)
	r.EnterSuppress = r.Suppress && !e.suppressed
	e.suppressed = r.Suppress

	if ep.PrevValid {
		e.crossings(ep, speechQueued, &r)
	}

	if file, ok := e.xrw.update(ep.Fix); ok {
		r.XRWFile, r.XRWPhase = file, e.xrw.phase
		r.Suppress = true
		e.suppressed = true
	}
	return r
}

func (e *Engine) crossings(ep nav.Epoch, speechQueued bool, r *Result) {
	cur := ep.Fix.HMSL
	lo, hi := ep.PrevHMSL, cur
	if lo > hi {
		lo, hi = hi, lo
	}
	for _, a := range e.p.Alarms {
		if a.Elev >= lo && a.Elev < hi {
			r.Fired = true
			r.Alarm = a
			break
		}
	}

	if e.p.AltStep > 0 && !speechQueued {
		step := e.stepMM()
		n := nearestStep(cur-e.p.DZElev, step)
		elev := n*step + e.p.DZElev
		if n > 0 && elev >= lo && elev < hi && int64(ep.Fix.VAcc)*2 < int64(step) {
			r.Announce = true
			r.AnnounceAlt = n * e.p.AltStep
		}
	}
}

func (e *Engine) inWindow(h int32) bool {
	for _, a := range e.p.Alarms {
		if h <= a.Elev+e.p.WindowAbove && h >= a.Elev-e.p.WindowBelow {
			return true
		}
	}
	for _, w := range e.p.Windows {
		if w.Bottom <= h && w.Top >= h {
			return true
		}
	}
	return false
}

func (e *Engine) stepMM() int32 {
	if e.p.AltUnits == Feet {
		return e.p.AltStep * 3048 / 10
	}
	return e.p.AltStep * 1000
}

// nearestStep rounds h/step to the nearest integer, halves away from zero.
func nearestStep(h, step int32) int32 {
	if h >= 0 {
		return (h + step/2) / step
	}
	return -((-h + step/2) / step)
}
