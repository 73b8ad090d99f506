//go:build !linux || (!arm && !arm64)

package tone

import "fmt"

func openPWM(channel int) (Output, error) {
	return nil, fmt.Errorf("tone: pwm output unsupported on this platform")
}
