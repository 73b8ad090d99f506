package speech

import (
	"log"
	"math"

	"flysight-ng/internal/feedback"
	"flysight-ng/internal/nav"
)

// MaxEntries bounds the round-robin speech table.
const MaxEntries = 3

// Speech modes beyond the feedback metric modes.
const ModeAltitude = 5

// Units: speeds in km/h or mph, altitudes in metres or feet.
const (
	UnitsMetric   = 0
	UnitsImperial = 1
)

// Entry is one configured announcement.
type Entry struct {
	Mode     uint8
	Units    uint8
	Decimals uint8
}

// Player is the audio side of the sequencer. *tone.Synth implements it.
type Player interface {
	IsIdle() bool
	ClipsReady() bool
	Hold()
	Release()
	Play(name string) error
}

type Params struct {
	Entries []Entry
	UseSAS  bool
	DZElev  int32 // mm
}

// Sequencer holds the pending token buffer and the round-robin position.
// It is owned by the foreground loop.
type Sequencer struct {
	p      Params
	next   int
	tokens []byte
	pos    int
}

func NewSequencer(p Params) *Sequencer {
	if len(p.Entries) > MaxEntries {
		p.Entries = p.Entries[:MaxEntries]
	}
	return &Sequencer{p: p}
}

// Pending reports whether tokens remain to be spoken.
func (s *Sequencer) Pending() bool { return s.pos < len(s.tokens) }

// Clear drops any queued tokens.
func (s *Sequencer) Clear() {
	s.tokens = s.tokens[:0]
	s.pos = 0
}

// Tokens returns the unspoken tokens.
func (s *Sequencer) Tokens() []byte { return s.tokens[s.pos:] }

// Announce queues the next entry's value for f, replacing anything queued.
func (s *Sequencer) Announce(f nav.Fix) {
	if len(s.p.Entries) == 0 {
		return
	}
	e := s.p.Entries[s.next%len(s.p.Entries)]
	s.next = (s.next + 1) % len(s.p.Entries)

	body := s.render(e, f)
	s.Clear()
	if len(body) == 0 {
		return
	}
	if len(s.p.Entries) > 1 {
		if lbl, ok := label(e.Mode); ok {
			s.tokens = append(s.tokens, lbl)
		}
	}
	s.tokens = append(s.tokens, body...)
}

// AnnounceAltitude queues an altitude step callout.
func (s *Sequencer) AnnounceAltitude(alt int32, units uint8) {
	s.Clear()
	s.tokens = append(s.tokens, RenderAltitude(alt)...)
	s.tokens = append(s.tokens, unitToken(units))
}

func unitToken(units uint8) byte {
	if units == UnitsImperial {
		return TokFeet
	}
	return TokMeters
}

func label(mode uint8) (byte, bool) {
	switch mode {
	case feedback.ModeHorizontal:
		return TokHorizontal, true
	case feedback.ModeVertical:
		return TokVertical, true
	case feedback.ModeGlide:
		return TokGlide, true
	case feedback.ModeInverseGlide:
		return TokInverseGlide, true
	case feedback.ModeTotal:
		return TokTotal, true
	case ModeAltitude:
		return TokAltitude, true
	case feedback.ModeDiveAngle:
		return TokDiveAngle, true
	}
	return 0, false
}

// render produces the value tokens for one entry. Speeds are converted from
// cm/s to hundredths of km/h or mph through the airspeed-corrected divisor.
func (s *Sequencer) render(e Entry, f nav.Fix) []byte {
	mul := int64(feedback.SpeedMul(f.HMSL, s.p.UseSAS))
	if e.Units == UnitsImperial {
		mul = mul * 29297 / 65536
	} else {
		mul = mul * 18204 / 65536
	}

	switch e.Mode {
	case feedback.ModeHorizontal:
		return RenderValue(int32(int64(f.GSpeed)*1024/mul), e.Decimals)
	case feedback.ModeVertical:
		return RenderValue(int32(int64(f.VelD)*1024/mul), e.Decimals)
	case feedback.ModeGlide:
		if f.VelD == 0 {
			return nil
		}
		return RenderValue(int32(100*int64(f.GSpeed)/int64(f.VelD)), e.Decimals)
	case feedback.ModeInverseGlide:
		if f.GSpeed == 0 {
			return nil
		}
		return RenderValue(int32(100*int64(f.VelD)/int64(f.GSpeed)), e.Decimals)
	case feedback.ModeTotal:
		return RenderValue(int32(int64(f.Speed)*1024/mul), e.Decimals)
	case feedback.ModeDiveAngle:
		deg := math.Atan2(float64(f.VelD), float64(f.GSpeed)) / math.Pi * 180
		return RenderValue(int32(100*deg), e.Decimals)
	case ModeAltitude:
		h := int64(f.HMSL - s.p.DZElev)
		if e.Units == UnitsImperial {
			h = h * 10 / 3048
		} else {
			h /= 1000
		}
		return append(RenderAltitude(int32(h)), unitToken(e.Units))
	}
	return nil
}

// Step plays the next token when the player is idle and storage is ready,
// holding the ambient tone for the duration of the announcement. It
// returns false once nothing is left to say, after releasing the tone.
func (s *Sequencer) Step(p Player) bool {
	if !s.Pending() {
		p.Release()
		return false
	}
	if !p.IsIdle() || !p.ClipsReady() {
		return true
	}
	p.Hold()
	tok := s.tokens[s.pos]
	s.pos++
	name, ok := ClipName(tok)
	if !ok {
		return true
	}
	if err := p.Play(name); err != nil {
		log.Printf("speech: play %s: %v", name, err)
	}
	return true
}
