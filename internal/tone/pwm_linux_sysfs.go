//go:build linux && (arm || arm64)

package tone

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"
	"time"
)

// sysfsPWM renders levels as the duty cycle of a hardware PWM channel under
// /sys/class/pwm, for a piezo or a filtered speaker. The handler is paced in
// software and the duty is updated once per millisecond, so this output is
// coarse compared to the audio device.
//
// On Raspberry Pi the channel needs `dtoverlay=pwm-2chan` or equivalent.
type sysfsPWM struct {
	Pacer

	pwmPath string
	last    int
	err     error
}

var pwmSysfsBase = "/sys/class/pwm"

// pwmPeriodNS is one handler tick.
const pwmPeriodNS = 1_000_000_000 / HandlerRate

func openPWM(channel int) (Output, error) {
	chip, err := findPWMChip(channel)
	if err != nil {
		return nil, err
	}
	d := &sysfsPWM{
		pwmPath: filepath.Join(chip, fmt.Sprintf("pwm%d", channel)),
		last:    -1,
	}
	if err := ensureExported(chip, d.pwmPath, channel); err != nil {
		return nil, err
	}
	_ = d.write("enable", "0")
	if err := d.write("period", strconv.Itoa(pwmPeriodNS)); err != nil {
		return nil, fmt.Errorf("tone: pwm period: %w", err)
	}
	if err := d.setLevel(128); err != nil {
		return nil, err
	}
	if err := d.write("enable", "1"); err != nil {
		return nil, fmt.Errorf("tone: pwm enable: %w", err)
	}
	d.Sink = d.sink
	return d, nil
}

func (d *sysfsPWM) sink(level uint8) {
	if int(level) == d.last || d.err != nil {
		return
	}
	if err := d.setLevel(level); err != nil {
		// Reported by Close; the node is not retried.
		d.err = err
	}
}

func (d *sysfsPWM) setLevel(level uint8) error {
	duty := pwmPeriodNS * int(level) / 256
	if err := d.write("duty_cycle", strconv.Itoa(duty)); err != nil {
		return fmt.Errorf("tone: pwm duty: %w", err)
	}
	d.last = int(level)
	return nil
}

func (d *sysfsPWM) Close() error {
	_ = d.Pacer.Close()
	_ = d.write("enable", "0")
	return d.err
}

func (d *sysfsPWM) write(name, value string) error {
	return writeSysfs(filepath.Join(d.pwmPath, name), value)
}

func findPWMChip(channel int) (string, error) {
	entries, err := os.ReadDir(pwmSysfsBase)
	if err != nil {
		return "", fmt.Errorf("tone: read %s: %w", pwmSysfsBase, err)
	}
	// pwmchipN entries are usually symlinks, so filter by name only.
	for _, e := range entries {
		name := e.Name()
		if !strings.HasPrefix(name, "pwmchip") {
			continue
		}
		chip := filepath.Join(pwmSysfsBase, name)
		n, err := readInt(filepath.Join(chip, "npwm"))
		if err != nil || n <= channel {
			continue
		}
		return chip, nil
	}
	return "", fmt.Errorf("tone: no sysfs pwmchip with channel %d (is the pwm overlay enabled?)", channel)
}

func ensureExported(chip, pwmPath string, channel int) error {
	if _, err := os.Stat(pwmPath); err == nil {
		return nil
	}
	if err := writeSysfs(filepath.Join(chip, "export"), strconv.Itoa(channel)); err != nil {
		if _, statErr := os.Stat(pwmPath); statErr == nil {
			return nil
		}
		return fmt.Errorf("tone: export pwm: %w", err)
	}
	deadline := time.Now().Add(500 * time.Millisecond)
	for time.Now().Before(deadline) {
		if _, err := os.Stat(pwmPath); err == nil {
			return nil
		}
		time.Sleep(10 * time.Millisecond)
	}
	return fmt.Errorf("tone: pwm path %s not created after export", pwmPath)
}

// writeSysfs opens without O_TRUNC and retries briefly: freshly exported
// attributes can reject writes until udev has fixed their permissions.
func writeSysfs(path, value string) error {
	deadline := time.Now().Add(2 * time.Second)
	for {
		err := writeOnce(path, value)
		if err == nil {
			return nil
		}
		if time.Now().Before(deadline) && retryable(err) {
			time.Sleep(25 * time.Millisecond)
			continue
		}
		return err
	}
}

func writeOnce(path, value string) error {
	f, err := os.OpenFile(path, os.O_WRONLY, 0)
	if err != nil {
		return err
	}
	_, werr := f.WriteString(value)
	return errors.Join(werr, f.Close())
}

func retryable(err error) bool {
	return os.IsPermission(err) || os.IsNotExist(err) || errors.Is(err, syscall.EACCES) || errors.Is(err, syscall.EPERM)
}

func readInt(path string) (int, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return 0, err
	}
	return strconv.Atoi(strings.TrimSpace(string(b)))
}
