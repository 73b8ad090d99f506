// Package speech renders numbers into sequences of audio clip tokens and
// plays them one clip at a time.
package speech

import (
	"strconv"
)

// Token alphabet. Each token maps to exactly one clip.
const (
	TokMinus    = '-'
	TokDot      = '.'
	TokHundred  = 'h'
	TokThousand = 't'
	TokMeters   = 'm'
	TokFeet     = 'f'

	TokHorizontal   = 'H'
	TokVertical     = 'V'
	TokGlide        = 'G'
	TokInverseGlide = 'I'
	TokTotal        = 'S'
	TokAltitude     = 'A'
	TokDiveAngle    = 'D'
)

var clipNames = map[byte]string{
	TokMinus:        "minus.wav",
	TokDot:          "dot.wav",
	TokHundred:      "00.wav",
	TokThousand:     "000.wav",
	TokMeters:       "meters.wav",
	TokFeet:         "feet.wav",
	TokHorizontal:   "horz.wav",
	TokVertical:     "vert.wav",
	TokGlide:        "glide.wav",
	TokInverseGlide: "iglide.wav",
	TokTotal:        "speed.wav",
	TokAltitude:     "alt.wav",
	TokDiveAngle:    "dive.wav",
}

// ClipName maps a token to its clip file name.
func ClipName(tok byte) (string, bool) {
	if tok >= '0' && tok <= '9' {
		return string([]byte{tok}) + ".wav", true
	}
	name, ok := clipNames[tok]
	return name, ok
}

// RenderValue renders centi (a value scaled by 100) with the given number
// of decimal places, truncating the extra digits.
func RenderValue(centi int32, decimals uint8) []byte {
	neg := centi < 0
	v := int64(centi)
	if neg {
		v = -v
	}
	var out []byte
	if neg {
		out = append(out, TokMinus)
	}
	out = strconv.AppendInt(out, v/100, 10)
	frac := v % 100
	switch decimals {
	case 1:
		out = append(out, TokDot, byte('0'+frac/10))
	case 2:
		out = append(out, TokDot, byte('0'+frac/10), byte('0'+frac%10))
	}
	return out
}

// RenderAltitude renders n using thousand and hundred markers, so 12500
// becomes "12", thousand, "5", hundred.
func RenderAltitude(n int32) []byte {
	if n < 0 {
		return append([]byte{TokMinus}, renderGroup(-int64(n))...)
	}
	return renderGroup(int64(n))
}

func renderGroup(n int64) []byte {
	switch {
	case n >= 1000:
		out := append(renderGroup(n/1000), TokThousand)
		if r := n % 1000; r > 0 {
			out = append(out, renderGroup(r)...)
		}
		return out
	case n >= 100:
		out := []byte{byte('0' + n/100), TokHundred}
		if r := n % 100; r > 0 {
			out = append(out, renderGroup(r)...)
		}
		return out
	default:
		return strconv.AppendInt(nil, n, 10)
	}
}
