package gps

import (
	"fmt"
	"time"

	"go.bug.st/serial"
)

type bugstPort struct {
	serial.Port
}

func openBugst(path string, baud int) (Port, error) {
	p, err := serial.Open(path, modeFor(baud))
	if err != nil {
		return nil, err
	}
	if err := p.SetReadTimeout(100 * time.Millisecond); err != nil {
		_ = p.Close()
		return nil, fmt.Errorf("gps: set read timeout: %w", err)
	}
	return &bugstPort{Port: p}, nil
}

func modeFor(baud int) *serial.Mode {
	return &serial.Mode{
		BaudRate: baud,
		Parity:   serial.NoParity,
		DataBits: 8,
		StopBits: serial.OneStopBit,
	}
}

func (p *bugstPort) SetBaud(baud int) error {
	if err := p.SetMode(modeFor(baud)); err != nil {
		return fmt.Errorf("gps: set baud %d: %w", baud, err)
	}
	return nil
}
