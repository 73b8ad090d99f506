package feedback

import (
	"testing"

	"flysight-ng/internal/nav"
	"flysight-ng/internal/tone"
)

type recorder struct {
	rate     uint16
	pitch    uint16
	chirp    int32
	rateSet  int
	pitchSet int
}

func (r *recorder) SetRate(v uint16)  { r.rate = v; r.rateSet++ }
func (r *recorder) SetPitch(v uint16) { r.pitch = v; r.pitchSet++ }
func (r *recorder) SetChirp(v int32)  { r.chirp = v }

func horizontalParams() Params {
	return Params{
		Mode: ModeHorizontal, Min: 0, Max: 300,
		Mode2: ModeHorizontal, Min2: 0, Max2: 1000,
		MinRate: 65, MaxRate: 325,
		Limits: LimitsClamp,
		RateMS: 200,
	}
}

func TestPitchMapping(t *testing.T) {
	cases := []struct {
		name   string
		gSpeed uint32
		limits uint8
		pitch  uint16
		chirp  int32
		silent bool
	}{
		{"midpoint", 150, LimitsClamp, 32640, 0, false},
		{"lower bound clamps", 0, LimitsClamp, 0, 0, false},
		{"upper bound is exclusive", 300, LimitsClamp, tone.MaxPitch - 1, 0, false},
		{"above range sweeps down", 400, LimitsSweep, tone.MaxPitch - 1, -tone.ChirpMax, false},
		{"below range sweeps up", 0, LimitsSweep, 0, tone.ChirpMax, false},
		{"reverse sweep", 400, LimitsReverse, 0, tone.ChirpMax, false},
		{"silence", 400, LimitsSilence, 0, 0, true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			p := horizontalParams()
			p.Limits = tc.limits
			r := &recorder{}
			c := NewController(p, r)
			c.Update(nav.Fix{GSpeed: tc.gSpeed, GPSFix: nav.Fix3D}, false)

			if tc.silent {
				if r.rate != 0 {
					t.Fatalf("rate=%d want 0", r.rate)
				}
				return
			}
			if r.pitch != tc.pitch || r.chirp != tc.chirp {
				t.Fatalf("pitch=%d chirp=%d want %d/%d", r.pitch, r.chirp, tc.pitch, tc.chirp)
			}
		})
	}
}

func TestRateMapping(t *testing.T) {
	p := horizontalParams()
	r := &recorder{}
	c := NewController(p, r)

	c.Update(nav.Fix{GSpeed: 500}, false)
	if want := uint16(65 + (325-65)*500/1000); r.rate != want {
		t.Fatalf("rate=%d want %d", r.rate, want)
	}

	c.Update(nav.Fix{GSpeed: 2000}, false)
	if r.rate != 324 {
		t.Fatalf("rate over range=%d want 324", r.rate)
	}

	c.Update(nav.Fix{GSpeed: 0}, false)
	if r.rate != 65 {
		t.Fatalf("rate under range=%d want 65", r.rate)
	}

	p.Flatline = true
	c = NewController(p, r)
	c.Update(nav.Fix{GSpeed: 0}, false)
	if r.rate != tone.RateFlatline {
		t.Fatalf("flatline rate=%d want %d", r.rate, tone.RateFlatline)
	}
}

func TestThresholdGating(t *testing.T) {
	p := horizontalParams()
	p.VThresh = 1000
	r := &recorder{rate: 99}
	c := NewController(p, r)

	c.Update(nav.Fix{GSpeed: 150, VelD: 500}, false)
	if r.rate != 0 || r.pitchSet != 0 {
		t.Fatalf("below threshold: rate=%d pitchSet=%d", r.rate, r.pitchSet)
	}

	c.Update(nav.Fix{GSpeed: 150, VelD: -1200}, false)
	if r.pitchSet != 1 {
		t.Fatalf("|velD| above threshold must update pitch")
	}
}

func TestSuppressedLeavesTargets(t *testing.T) {
	r := &recorder{}
	c := NewController(horizontalParams(), r)
	c.Update(nav.Fix{GSpeed: 150}, true)
	if r.rateSet != 0 || r.pitchSet != 0 {
		t.Fatalf("suppressed update touched targets: %+v", r)
	}
}

func TestGlideRatioScalesRange(t *testing.T) {
	f := nav.Fix{GSpeed: 3000, VelD: 1500}
	val, min, max := Value(f, ModeGlide, false, 0, 300)
	if val != 20000 || min != 0 || max != 30000 {
		t.Fatalf("glide=%d [%d,%d] want 20000 [0,30000]", val, min, max)
	}
	if v, _, _ := Value(nav.Fix{GSpeed: 3000}, ModeGlide, false, 0, 300); v != Invalid {
		t.Fatalf("glide with velD=0 = %d want Invalid", v)
	}
	if v, _, _ := Value(nav.Fix{GSpeed: 1000, VelD: 1000}, ModeDiveAngle, false, 0, 0); v != 45 {
		t.Fatalf("dive angle=%d want 45", v)
	}
}

func TestSpeedMulTable(t *testing.T) {
	cases := []struct {
		hMSL int32
		want uint16
	}{
		{-5000, 1024},
		{0, 1024},
		{1024 * 1024, 1077},
		{1024*1024 + 512*1024, 1077 + (1135-1077)*512/1024},
		{sasTop, 1944},
		{20000000, 1944},
	}
	for _, tc := range cases {
		if got := SpeedMul(tc.hMSL, true); got != tc.want {
			t.Fatalf("SpeedMul(%d)=%d want %d", tc.hMSL, got, tc.want)
		}
	}
	if SpeedMul(5000000, false) != 1024 {
		t.Fatalf("SAS disabled must be unity")
	}
}

func TestChangeModeNeedsThreeEpochs(t *testing.T) {
	p := horizontalParams()
	p.Mode2 = ModeChange
	p.Min2, p.Max2 = 300, 1500
	r := &recorder{}
	c := NewController(p, r)

	c.Update(nav.Fix{GSpeed: 100}, false)
	c.Update(nav.Fix{GSpeed: 110}, false)
	if r.rate != 0 {
		t.Fatalf("rate=%d want 0 before history fills", r.rate)
	}
	c.Update(nav.Fix{GSpeed: 120}, false)
	// 1000*(100-120)/(2*200) = -50 -> 10000*50/300 = 1666, above max2.
	if r.rate != uint16(p.MaxRate-1) {
		t.Fatalf("rate=%d want %d", r.rate, p.MaxRate-1)
	}
}

func TestSpeechCadence(t *testing.T) {
	p := horizontalParams()
	p.SpeechMS = 1000
	c := NewController(p, &recorder{})
	var due []int
	for i := 0; i < 12; i++ {
		if c.Update(nav.Fix{GSpeed: 150}, false) {
			due = append(due, i)
		}
	}
	if len(due) != 2 || due[0] != 5 || due[1] != 10 {
		t.Fatalf("speech due at %v want [5 10]", due)
	}
}
