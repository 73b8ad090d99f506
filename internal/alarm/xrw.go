package alarm

import (
	"time"

	"flysight-ng/internal/nav"
)

// XRWExitVelD is the descent rate (cm/s, about 30 mph) that arms the
// build/score timer once the jumper has left the climb.
const XRWExitVelD = 1341

// XRW configures the canopy-formation build and score periods. Times are
// seconds after exit; both zero disables the feature.
type XRW struct {
	BuildS    int32
	ScoreS    int32
	BuildFile string // clip name without extension
	ScoreFile string
}

func (x XRW) enabled() bool { return x.BuildS != 0 || x.ScoreS != 0 }

// XRWPhase is the build/score progress of the jump.
type XRWPhase uint8

const (
	XRWClimb XRWPhase = iota // tracking the maximum altitude
	XRWArmed                 // exit seen, build period running
	XRWBuild                 // build clip played, score period running
	XRWScore                 // score clip played; nothing further happens
)

func (p XRWPhase) String() string {
	switch p {
	case XRWClimb:
		return "climb"
	case XRWArmed:
		return "armed"
	case XRWBuild:
		return "build"
	}
	return "score"
}

type xrwState struct {
	p       XRW
	phase   XRWPhase
	maxAlt  int32
	haveMax bool
	armedAt time.Time
}

// update advances the phase for f and returns the clip to play when a
// period starts. At most one transition happens per fix.
func (s *xrwState) update(f nav.Fix) (string, bool) {
	if !s.p.enabled() {
		return "", false
	}
	ts := f.Time()

	switch s.phase {
	case XRWClimb:
		if !s.haveMax || f.HMSL > s.maxAlt {
			s.maxAlt, s.haveMax = f.HMSL, true
		} else if f.VelD > XRWExitVelD {
			s.armedAt = ts
			s.phase = XRWArmed
		}
	case XRWArmed:
		if ts.Sub(s.armedAt) >= time.Duration(s.p.BuildS)*time.Second {
			s.phase = XRWBuild
			return s.p.BuildFile, true
		}
	case XRWBuild:
		if ts.Sub(s.armedAt) >= time.Duration(s.p.BuildS+s.p.ScoreS)*time.Second {
			s.phase = XRWScore
			return s.p.ScoreFile, true
		}
	}
	return "", false
}
