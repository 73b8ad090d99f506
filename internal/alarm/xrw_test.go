package alarm

import (
	"testing"
	"time"

	"flysight-ng/internal/nav"
)

var xrwStart = time.Date(2024, 6, 1, 10, 0, 0, 0, time.UTC)

func xrwEpoch(sec int, hmsl, velD int32) nav.Epoch {
	ts := xrwStart.Add(time.Duration(sec) * time.Second)
	return nav.Epoch{Fix: nav.Fix{
		HMSL: hmsl, VelD: velD, GPSFix: nav.Fix3D, VAcc: 3000,
		Year: uint16(ts.Year()), Month: uint8(ts.Month()), Day: uint8(ts.Day()),
		Hour: uint8(ts.Hour()), Min: uint8(ts.Minute()), Sec: uint8(ts.Second()),
	}}
}

func xrwParams() Params {
	return Params{XRW: XRW{BuildS: 30, ScoreS: 20, BuildFile: "build", ScoreFile: "score"}}
}

func TestXRWArmsOnExitAfterClimb(t *testing.T) {
	e := NewEngine(xrwParams())

	// Climbing in the aircraft, then level flight on jump run.
	for i, h := range []int32{1000000, 2000000, 3000000, 3000000} {
		e.Evaluate(xrwEpoch(i, h, -500), false)
		if e.XRWPhase() != XRWClimb {
			t.Fatalf("fix %d: phase=%v while climbing", i, e.XRWPhase())
		}
	}

	// Slow descent below the threshold does not arm.
	e.Evaluate(xrwEpoch(4, 2999000, XRWExitVelD), false)
	if e.XRWPhase() != XRWClimb {
		t.Fatalf("armed at %d cm/s", XRWExitVelD)
	}

	r := e.Evaluate(xrwEpoch(5, 2990000, 2000), false)
	if e.XRWPhase() != XRWArmed || r.XRWFile != "" {
		t.Fatalf("phase=%v file=%q after exit", e.XRWPhase(), r.XRWFile)
	}
}

func TestXRWFastDescentWhileClimbingDoesNotArm(t *testing.T) {
	e := NewEngine(xrwParams())
	e.Evaluate(xrwEpoch(0, 1000000, 0), false)
	// A new maximum takes precedence over the descent rate.
	e.Evaluate(xrwEpoch(1, 1100000, 3000), false)
	if e.XRWPhase() != XRWClimb {
		t.Fatalf("armed on a new maximum")
	}
}

func TestXRWBuildAndScorePeriods(t *testing.T) {
	e := NewEngine(xrwParams())
	e.Evaluate(xrwEpoch(0, 3000000, 0), false)
	e.Evaluate(xrwEpoch(1, 2990000, 2000), false) // armed at t=1

	cases := []struct {
		sec      int
		file     string
		phase    XRWPhase
		suppress bool
	}{
		{2, "", XRWArmed, false},
		{30, "", XRWArmed, false},
		{31, "build", XRWBuild, true},
		{32, "", XRWBuild, false},
		{50, "", XRWBuild, false},
		{51, "score", XRWScore, true},
		{52, "", XRWScore, false},
		{200, "", XRWScore, false},
	}
	for _, tc := range cases {
		r := e.Evaluate(xrwEpoch(tc.sec, 2000000, 2000), false)
		if r.XRWFile != tc.file || e.XRWPhase() != tc.phase || r.Suppress != tc.suppress {
			t.Fatalf("t=%d: file=%q phase=%v suppress=%v want %q %v %v",
				tc.sec, r.XRWFile, e.XRWPhase(), r.Suppress, tc.file, tc.phase, tc.suppress)
		}
		if r.XRWFile != "" && r.XRWPhase != tc.phase {
			t.Fatalf("t=%d: result phase=%v", tc.sec, r.XRWPhase)
		}
	}
}

func TestXRWSkippedSecondStillStartsPeriod(t *testing.T) {
	e := NewEngine(xrwParams())
	e.Evaluate(xrwEpoch(0, 3000000, 0), false)
	e.Evaluate(xrwEpoch(1, 2990000, 2000), false)

	// No fix lands exactly on t=31.
	if r := e.Evaluate(xrwEpoch(33, 2000000, 2000), false); r.XRWFile != "build" {
		t.Fatalf("file=%q want build", r.XRWFile)
	}
	if r := e.Evaluate(xrwEpoch(60, 1900000, 2000), false); r.XRWFile != "score" {
		t.Fatalf("file=%q want score", r.XRWFile)
	}
}

func TestXRWEntersSuppressOnlyFromWindow(t *testing.T) {
	p := xrwParams()
	p.Windows = []Window{{Top: 2500000, Bottom: 1500000}}
	e := NewEngine(p)
	e.Evaluate(xrwEpoch(0, 3000000, 0), false)
	e.Evaluate(xrwEpoch(1, 2990000, 2000), false)

	// The build clip suppresses its own fix; entering the window on the
	// next fix is not a fresh entry.
	if r := e.Evaluate(xrwEpoch(31, 2600000, 2000), false); !r.Suppress || r.EnterSuppress {
		t.Fatalf("build fix: %+v", r)
	}
	if r := e.Evaluate(xrwEpoch(32, 2400000, 2000), false); !r.Suppress || r.EnterSuppress {
		t.Fatalf("window fix after build: %+v", r)
	}
}

func TestXRWDisabled(t *testing.T) {
	e := NewEngine(Params{})
	e.Evaluate(xrwEpoch(0, 3000000, 0), false)
	e.Evaluate(xrwEpoch(1, 2990000, 5000), false)
	if r := e.Evaluate(xrwEpoch(100, 1000000, 5000), false); r.XRWFile != "" || e.XRWPhase() != XRWClimb {
		t.Fatalf("disabled XRW fired: %+v", r)
	}
}
