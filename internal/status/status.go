// Package status drives the indicator LEDs and the power-hold line.
package status

import (
	"log"
	"sync"
)

// Line is one GPIO output.
type Line interface {
	SetValue(v int) error
	Close() error
}

// Config selects BCM GPIO numbers. Zero disables a line.
type Config struct {
	GreenPin int
	RedPin   int
	PowerPin int
}

// Color is the active LED colour.
type Color uint8

const (
	Off Color = iota
	Green
	Red
)

// Blink period while a fix is held: dark for blinkOffMS, then lit until
// blinkPeriodMS.
const (
	blinkPeriodMS = 1000
	blinkOffMS    = 900
)

// Indicator owns the LEDs and the power-hold line. Tick runs on the timer
// goroutine; everything else runs on the foreground loop.
type Indicator struct {
	mu sync.Mutex

	green, red, power Line

	active   Color
	hasFix   bool
	blinking bool
	counter  int
	lit      Color
	failed   bool
}

// Open requests the configured lines. A line that cannot be requested is
// logged and left out; the indicator still works with the rest.
func Open(cfg Config) *Indicator {
	ind := &Indicator{active: Green}
	ind.green = request(cfg.GreenPin, "led-green")
	ind.red = request(cfg.RedPin, "led-red")
	ind.power = request(cfg.PowerPin, "power-hold")
	ind.show(Green)
	return ind
}

func request(pin int, consumer string) Line {
	if pin == 0 {
		return nil
	}
	l, err := openLineFn(pin, consumer)
	if err != nil {
		log.Printf("status: %s on gpio %d unavailable: %v", consumer, pin, err)
		return nil
	}
	return l
}

func set(l Line, v int) error {
	if l == nil {
		return nil
	}
	return l.SetValue(v)
}

// show lights c. Callers hold mu.
func (ind *Indicator) show(c Color) {
	if c == ind.lit {
		return
	}
	g, r := 0, 0
	switch c {
	case Green:
		g = 1
	case Red:
		r = 1
	}
	err := set(ind.green, g)
	if err == nil {
		err = set(ind.red, r)
	}
	if err != nil {
		if !ind.failed {
			log.Printf("status: set leds: %v", err)
			ind.failed = true
		}
		return
	}
	ind.lit = c
}

// SetError switches the active colour to red for the rest of the session.
func (ind *Indicator) SetError() {
	ind.mu.Lock()
	defer ind.mu.Unlock()
	ind.active = Red
	if ind.lit != Off {
		ind.show(Red)
	}
}

// SetFix records whether the receiver has a 3D fix.
func (ind *Indicator) SetFix(ok bool) {
	ind.mu.Lock()
	ind.hasFix = ok
	ind.mu.Unlock()
}

// Active returns the active colour.
func (ind *Indicator) Active() Color {
	ind.mu.Lock()
	defer ind.mu.Unlock()
	return ind.active
}

// Lit returns the colour currently shown.
func (ind *Indicator) Lit() Color {
	ind.mu.Lock()
	defer ind.mu.Unlock()
	return ind.lit
}

// Tick advances the blink pattern by one millisecond. While a fix is held
// the LED is dark for 900 ms of every second; without a fix it is solid.
func (ind *Indicator) Tick() {
	ind.mu.Lock()
	defer ind.mu.Unlock()

	if !ind.blinking && ind.hasFix {
		ind.counter = 0
		ind.blinking = true
	} else if ind.blinking && !ind.hasFix {
		ind.show(ind.active)
		ind.blinking = false
	}
	if !ind.blinking {
		return
	}

	switch ind.counter {
	case 0:
		ind.show(Off)
	case blinkOffMS:
		ind.show(ind.active)
	}
	ind.counter = (ind.counter + 1) % blinkPeriodMS
}

// Hold keeps the device powered. Hold and Release set the line level; they
// are not counted.
func (ind *Indicator) Hold() { ind.setPower(1) }

// Release lets the device power down, however many Holds preceded it.
func (ind *Indicator) Release() { ind.setPower(0) }

func (ind *Indicator) setPower(v int) {
	if err := set(ind.power, v); err != nil {
		log.Printf("status: power hold: %v", err)
	}
}

// Close turns the LEDs off and releases every line.
func (ind *Indicator) Close() error {
	ind.mu.Lock()
	defer ind.mu.Unlock()
	var first error
	for _, l := range []Line{ind.green, ind.red, ind.power} {
		if l == nil {
			continue
		}
		_ = l.SetValue(0)
		if err := l.Close(); err != nil && first == nil {
			first = err
		}
	}
	ind.green, ind.red, ind.power = nil, nil, nil
	return first
}
