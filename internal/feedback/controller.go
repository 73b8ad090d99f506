package feedback

import (
	"flysight-ng/internal/nav"
	"flysight-ng/internal/tone"
)

// Out-of-range policies for the primary metric.
const (
	LimitsSilence = 0
	LimitsClamp   = 1
	LimitsSweep   = 2
	LimitsReverse = 3
)

// Tone receives the controller's targets. *tone.Synth implements it.
type Tone interface {
	SetRate(rate uint16)
	SetPitch(pitch uint16)
	SetChirp(chirp int32)
}

// Params are the controller's read-only settings, already converted to
// runtime units.
type Params struct {
	Mode uint8
	Min  int32
	Max  int32

	Mode2 uint8
	Min2  int32
	Max2  int32

	MinRate  int32 // tone rate units (tone.RateOneHz per Hz)
	MaxRate  int32
	Flatline bool
	Limits   uint8
	UseSAS   bool

	RateMS  uint16 // GPS measurement period
	VThresh int32  // cm/s, |velD| must reach it
	HThresh int32  // cm/s, gSpeed must reach it

	SpeechMS uint16 // speech period, 0 disables
}

// Controller turns each fix into tone targets. It keeps the primary metric
// history needed by the rate-of-change mode and the speech cadence counter.
type Controller struct {
	p    Params
	tone Tone

	x0, x1, x2 int32
	spCounter  uint16
}

func NewController(p Params, t Tone) *Controller {
	return &Controller{p: p, tone: t, x0: Invalid, x1: Invalid, x2: Invalid}
}

// Update recomputes tone targets for f. When suppressed, targets are left
// alone. It reports whether a speech announcement is due.
func (c *Controller) Update(f nav.Fix, suppressed bool) bool {
	p := c.p

	val1, min1, max1 := Value(f, p.Mode, p.UseSAS, p.Min, p.Max)
	val2, min2, max2 := int32(Invalid), p.Min2, p.Max2

	switch p.Mode2 {
	case ModeMagnitude:
		val2, min2, max2 = Value(f, p.Mode, p.UseSAS, p.Min2, p.Max2)
		if val2 != Invalid {
			val2 = abs32(val2)
		}
	case ModeChange:
		c.x2, c.x1, c.x0 = c.x1, c.x0, val1
		if c.x0 != Invalid && c.x1 != Invalid && c.x2 != Invalid && max1 != min1 && p.RateMS > 0 {
			v := int64(1000) * int64(c.x2-c.x0) / (2 * int64(p.RateMS))
			if v < 0 {
				v = -v
			}
			val2 = int32(10000 * v / int64(abs32(max1-min1)))
		}
	default:
		val2, min2, max2 = Value(f, p.Mode2, p.UseSAS, p.Min2, p.Max2)
	}

	speak := false
	if !suppressed {
		if abs32(f.VelD) >= p.VThresh && int64(f.GSpeed) >= int64(p.HThresh) {
			c.setTone(val1, min1, max1, val2, min2, max2)
			if p.SpeechMS != 0 && c.spCounter >= p.SpeechMS {
				speak = true
				c.spCounter = 0
			}
		} else {
			c.tone.SetRate(0)
		}
	}

	if c.spCounter < p.SpeechMS {
		c.spCounter += p.RateMS
	}
	return speak
}

func under(val, min, max int32) bool {
	if min < max {
		return val <= min
	}
	return val >= min
}

func over(val, min, max int32) bool {
	if min < max {
		return val >= max
	}
	return val <= max
}

func (c *Controller) setTone(val1, min1, max1, val2, min2, max2 int32) {
	p := c.p
	if val1 == Invalid || val2 == Invalid {
		c.tone.SetRate(0)
		return
	}

	switch {
	case under(val2, min2, max2):
		if p.Flatline {
			c.tone.SetRate(tone.RateFlatline)
		} else {
			c.tone.SetRate(uint16(p.MinRate))
		}
	case over(val2, min2, max2):
		c.tone.SetRate(uint16(p.MaxRate - 1))
	default:
		r := int64(p.MinRate) + int64(p.MaxRate-p.MinRate)*int64(val2-min2)/int64(max2-min2)
		c.tone.SetRate(uint16(r))
	}

	switch {
	case under(val1, min1, max1):
		c.outOfRange(false)
	case over(val1, min1, max1):
		c.outOfRange(true)
	default:
		c.tone.SetPitch(uint16(int64(tone.MaxPitch) * int64(val1-min1) / int64(max1-min1)))
		c.tone.SetChirp(0)
	}
}

func (c *Controller) outOfRange(high bool) {
	low, top := uint16(0), uint16(tone.MaxPitch-1)
	switch c.p.Limits {
	case LimitsSilence:
		c.tone.SetRate(0)
	case LimitsClamp:
		if high {
			c.tone.SetPitch(top)
		} else {
			c.tone.SetPitch(low)
		}
		c.tone.SetChirp(0)
	case LimitsSweep:
		if high {
			c.tone.SetPitch(top)
			c.tone.SetChirp(-tone.ChirpMax)
		} else {
			c.tone.SetPitch(low)
			c.tone.SetChirp(tone.ChirpMax)
		}
	default:
		if high {
			c.tone.SetPitch(low)
			c.tone.SetChirp(tone.ChirpMax)
		} else {
			c.tone.SetPitch(top)
			c.tone.SetChirp(-tone.ChirpMax)
		}
	}
}
