//go:build !linux || (!arm && !arm64)

package status

import "fmt"

func openLine(pin int, consumer string) (Line, error) {
	return nil, fmt.Errorf("status: gpio unsupported on this platform")
}

var openLineFn = openLine
