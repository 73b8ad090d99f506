//go:build !linux

package gps

import "fmt"

func openTermios(path string, baud int) (Port, error) {
	return nil, fmt.Errorf("gps: termios backend not supported on this platform")
}
