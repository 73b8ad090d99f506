// Package feedback maps navigation metrics onto tone pitch, chirp and rate.
package feedback

import (
	"math"

	"flysight-ng/internal/nav"
)

// Invalid marks a metric that cannot be computed for a fix (for example a
// glide ratio with zero vertical speed).
const Invalid = math.MaxInt32

// Metric modes.
const (
	ModeHorizontal   = 0
	ModeVertical     = 1
	ModeGlide        = 2
	ModeInverseGlide = 3
	ModeTotal        = 4
	ModeMagnitude    = 8  // secondary only: |primary|
	ModeChange       = 9  // secondary only: rate of change of primary
	ModeDiveAngle    = 11 // secondary only
)

// sasTable holds the airspeed correction factor (scaled by 1024) at each
// 1024*1024 mm altitude breakpoint.
var sasTable = [12]uint16{1024, 1077, 1135, 1197, 1265, 1338, 1418, 1505, 1600, 1704, 1818, 1944}

const sasTop = 11534336 // mm, last breakpoint

// SpeedMul returns the divisor (1024 = unity) applied to speeds. With SAS
// enabled it interpolates the correction table by altitude and clamps at
// both ends.
func SpeedMul(hMSL int32, useSAS bool) uint16 {
	if !useSAS {
		return 1024
	}
	switch {
	case hMSL < 0:
		return sasTable[0]
	case hMSL >= sasTop:
		return sasTable[len(sasTable)-1]
	}
	h := hMSL / 1024
	i := h / 1024
	j := h % 1024
	y1 := int32(sasTable[i])
	y2 := int32(sasTable[i+1])
	return uint16(y1 + ((y2-y1)*j)/1024)
}

// Value computes metric mode for f. Glide-ratio modes report ratio*10000
// and scale the supplied range by 100 to match; other modes leave the range
// untouched. Unknown modes and undefined ratios yield Invalid.
func Value(f nav.Fix, mode uint8, useSAS bool, min, max int32) (val, outMin, outMax int32) {
	mul := int64(SpeedMul(f.HMSL, useSAS))
	val, outMin, outMax = Invalid, min, max

	switch mode {
	case ModeHorizontal:
		val = int32(int64(f.GSpeed) * 1024 / mul)
	case ModeVertical:
		val = int32(int64(f.VelD) * 1024 / mul)
	case ModeGlide:
		if f.VelD != 0 {
			val = int32(10000 * int64(f.GSpeed) / int64(f.VelD))
			outMin, outMax = min*100, max*100
		}
	case ModeInverseGlide:
		if f.GSpeed != 0 {
			val = int32(10000 * int64(f.VelD) / int64(f.GSpeed))
			outMin, outMax = min*100, max*100
		}
	case ModeTotal:
		val = int32(int64(f.Speed) * 1024 / mul)
	case ModeDiveAngle:
		val = int32(math.Atan2(float64(f.VelD), float64(f.GSpeed)) / math.Pi * 180)
	}
	return val, outMin, outMax
}

func abs32(v int32) int32 {
	if v < 0 {
		return -v
	}
	return v
}
