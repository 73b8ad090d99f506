// Package nav assembles per-epoch navigation fixes from the receiver's
// NAV messages.
package nav

import "time"

// Fix is one complete navigation solution. Units follow the receiver:
// degrees scaled by 1e7 (position) or 1e5 (heading), millimetres, cm/s.
type Fix struct {
	Lon  int32  `json:"lon"`
	Lat  int32  `json:"lat"`
	HMSL int32  `json:"hmsl_mm"`
	HAcc uint32 `json:"hacc_mm"`
	VAcc uint32 `json:"vacc_mm"`

	GPSFix uint8 `json:"gps_fix"`
	NumSV  uint8 `json:"num_sv"`

	VelN    int32  `json:"vel_n"`
	VelE    int32  `json:"vel_e"`
	VelD    int32  `json:"vel_d"`
	Speed   uint32 `json:"speed"`
	GSpeed  uint32 `json:"gspeed"`
	Heading int32  `json:"heading"`
	SAcc    uint32 `json:"sacc"`
	CAcc    uint32 `json:"cacc"`

	Nano  int32  `json:"nano"`
	Year  uint16 `json:"year"`
	Month uint8  `json:"month"`
	Day   uint8  `json:"day"`
	Hour  uint8  `json:"hour"`
	Min   uint8  `json:"min"`
	Sec   uint8  `json:"sec"`
}

// Fix3D is the gpsFix value of a valid 3D solution.
const Fix3D = 0x03

// Valid reports a 3D position lock.
func (f Fix) Valid() bool { return f.GPSFix == Fix3D }

// Time returns the fix's UTC timestamp, whole seconds only.
func (f Fix) Time() time.Time {
	return time.Date(int(f.Year), time.Month(f.Month), int(f.Day), int(f.Hour), int(f.Min), int(f.Sec), 0, time.UTC)
}
