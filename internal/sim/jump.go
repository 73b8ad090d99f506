// Package sim synthesizes the receiver byte stream of a skydive so the whole
// pipeline can run on the bench without a receiver or a capture.
package sim

import (
	"encoding/binary"
	"math"
	"time"

	"flysight-ng/internal/replay"
	"flysight-ng/internal/ubx"
)

// Jump describes the simulated flight. Altitudes are metres above sea
// level, speeds metres per second.
type Jump struct {
	CenterLatDeg float64
	CenterLonDeg float64
	RadiusM      float64       // extent of the figure-eight ground track
	Period       time.Duration // one lap of the figure-eight

	ExitAltM   float64
	DeployAltM float64
	GroundAltM float64

	FreefallVS float64 // vertical speed in freefall
	FreefallHS float64 // horizontal speed in freefall
	CanopyVS   float64
	CanopyHS   float64

	Acquire time.Duration // epochs without a fix before exit
	Landed  time.Duration // epochs on the ground after landing
}

// Phase of the flight at a point in time.
type Phase uint8

const (
	Acquiring Phase = iota
	Freefall
	Canopy
	Ground
)

func (p Phase) String() string {
	switch p {
	case Acquiring:
		return "acquiring"
	case Freefall:
		return "freefall"
	case Canopy:
		return "canopy"
	}
	return "ground"
}

// State is the simulated kinematics at one instant.
type State struct {
	Phase    Phase
	LatDeg   float64
	LonDeg   float64
	AltM     float64
	VelN     float64
	VelE     float64
	VelD     float64
	TrackDeg float64
}

func (j Jump) withDefaults() Jump {
	if j.RadiusM <= 0 {
		j.RadiusM = 900
	}
	if j.Period <= 0 {
		j.Period = 120 * time.Second
	}
	if j.ExitAltM == 0 {
		j.ExitAltM = 4000
	}
	if j.DeployAltM == 0 {
		j.DeployAltM = 1200
	}
	if j.FreefallVS <= 0 {
		j.FreefallVS = 55
	}
	if j.FreefallHS <= 0 {
		j.FreefallHS = 20
	}
	if j.CanopyVS <= 0 {
		j.CanopyVS = 5
	}
	if j.CanopyHS <= 0 {
		j.CanopyHS = 10
	}
	if j.Acquire <= 0 {
		j.Acquire = 2 * time.Second
	}
	if j.Landed <= 0 {
		j.Landed = 5 * time.Second
	}
	return j
}

func (j Jump) freefallTime() time.Duration {
	return time.Duration((j.ExitAltM - j.DeployAltM) / j.FreefallVS * float64(time.Second))
}

func (j Jump) canopyTime() time.Duration {
	return time.Duration((j.DeployAltM - j.GroundAltM) / j.CanopyVS * float64(time.Second))
}

// Duration is the length of the whole simulation.
func (j Jump) Duration() time.Duration {
	j = j.withDefaults()
	return j.Acquire + j.freefallTime() + j.canopyTime() + j.Landed
}

// At returns the state t after the start of the simulation.
func (j Jump) At(t time.Duration) State {
	j = j.withDefaults()
	var s State
	ff, cp := j.freefallTime(), j.canopyTime()

	var hs float64
	switch {
	case t < j.Acquire:
		s.Phase, s.AltM = Acquiring, j.ExitAltM
	case t < j.Acquire+ff:
		dt := (t - j.Acquire).Seconds()
		s.Phase, s.AltM, s.VelD, hs = Freefall, j.ExitAltM-j.FreefallVS*dt, j.FreefallVS, j.FreefallHS
	case t < j.Acquire+ff+cp:
		dt := (t - j.Acquire - ff).Seconds()
		s.Phase, s.AltM, s.VelD, hs = Canopy, j.DeployAltM-j.CanopyVS*dt, j.CanopyVS, j.CanopyHS
	default:
		s.Phase, s.AltM = Ground, j.GroundAltM
	}

	// Figure-eight: x = cos(w), y = 0.5*sin(2w), scaled to RadiusM.
	phase := math.Mod(t.Seconds()/j.Period.Seconds(), 1)
	w := 2 * math.Pi * phase
	x := math.Cos(w)
	y := 0.5 * math.Sin(2*w)

	const mPerDegLat = 111195.0
	s.LatDeg = j.CenterLatDeg + j.RadiusM*y/mPerDegLat
	s.LonDeg = j.CenterLonDeg + j.RadiusM*x/(mPerDegLat*math.Cos(j.CenterLatDeg*math.Pi/180))

	vx := -math.Sin(w)
	vy := math.Cos(2 * w)
	track := math.Atan2(vx, vy)
	s.TrackDeg = math.Mod(track*180/math.Pi+360, 360)
	s.VelN = hs * math.Cos(track)
	s.VelE = hs * math.Sin(track)
	return s
}

// Epoch encodes the four NAV messages of one epoch for state s at time
// now, with time-of-week tow.
func Epoch(s State, now time.Time, tow uint32) []byte {
	now = now.UTC()
	fix := uint8(0x03)
	if s.Phase == Acquiring {
		fix = 0x00
	}
	gs := math.Hypot(s.VelN, s.VelE)

	pos := ubx.PosLLH{
		ITOW:   tow,
		Lon:    int32(math.Round(s.LonDeg * 1e7)),
		Lat:    int32(math.Round(s.LatDeg * 1e7)),
		Height: int32(math.Round(s.AltM * 1000)),
		HMSL:   int32(math.Round(s.AltM * 1000)),
		HAcc:   2500,
		VAcc:   3500,
	}
	vel := ubx.VelNED{
		ITOW:    tow,
		VelN:    int32(math.Round(s.VelN * 100)),
		VelE:    int32(math.Round(s.VelE * 100)),
		VelD:    int32(math.Round(s.VelD * 100)),
		Speed:   uint32(math.Round(math.Hypot(gs, s.VelD) * 100)),
		GSpeed:  uint32(math.Round(gs * 100)),
		Heading: int32(math.Round(s.TrackDeg * 1e5)),
		SAcc:    50,
		CAcc:    200000,
	}
	tu := ubx.TimeUTC{
		ITOW:  tow,
		TAcc:  20,
		Nano:  int32(now.Nanosecond()),
		Year:  uint16(now.Year()),
		Month: uint8(now.Month()),
		Day:   uint8(now.Day()),
		Hour:  uint8(now.Hour()),
		Min:   uint8(now.Minute()),
		Sec:   uint8(now.Second()),
		Valid: 0x07,
	}

	// NAV-SOL is only partly modelled by ubx.Sol; lay out the full payload.
	sol := make([]byte, 52)
	binary.LittleEndian.PutUint32(sol[0:], tow)
	sol[10] = fix
	sol[11] = 0x0D
	sol[47] = 12

	var out []byte
	for _, m := range []struct {
		id byte
		v  any
	}{
		{ubx.NavPosLLH, pos},
		{ubx.NavVelNED, vel},
		{ubx.NavTimeUTC, tu},
	} {
		b, err := ubx.Marshal(ubx.ClassNAV, m.id, m.v)
		if err != nil {
			// Fixed-size structs always marshal.
			panic(err)
		}
		out = append(out, b...)
	}
	return append(out, ubx.Encode(ubx.ClassNAV, ubx.NavSol, sol)...)
}

// Records renders the whole jump as a capture starting at start with one
// epoch every rateMS milliseconds, ready for replay.Play or
// replay.NewStream.
func (j Jump) Records(start time.Time, rateMS int) []replay.Record {
	if rateMS <= 0 {
		rateMS = 200
	}
	step := time.Duration(rateMS) * time.Millisecond
	total := j.Duration()

	// Time of week continues from the start time.
	weekStart := start.UTC().Truncate(24 * time.Hour)
	weekStart = weekStart.AddDate(0, 0, -int(weekStart.Weekday()))

	var recs []replay.Record
	for t := time.Duration(0); t <= total; t += step {
		now := start.Add(t)
		tow := uint32(now.Sub(weekStart) / time.Millisecond)
		recs = append(recs, replay.Record{At: t, Chunk: Epoch(j.At(t), now, tow)})
	}
	return recs
}
