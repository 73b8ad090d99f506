//go:build linux

package gps

import (
	"errors"
	"fmt"
	"io"
	"os"

	"golang.org/x/sys/unix"
)

// termiosPort is a raw 8N1 tty. Reads return after 100 ms with no data so
// callers polling a deadline are never stuck.
type termiosPort struct {
	f  *os.File
	fd int
}

func openTermios(path string, baud int) (Port, error) {
	fd, err := unix.Open(path, unix.O_RDWR|unix.O_NOCTTY, 0)
	if err != nil {
		return nil, err
	}

	ok := false
	defer func() {
		if !ok {
			_ = unix.Close(fd)
		}
	}()

	t, err := unix.IoctlGetTermios(fd, unix.TCGETS)
	if err != nil {
		return nil, err
	}
	t.Iflag &^= unix.IGNBRK | unix.BRKINT | unix.PARMRK | unix.ISTRIP | unix.INLCR | unix.IGNCR | unix.ICRNL | unix.IXON
	t.Oflag &^= unix.OPOST
	t.Lflag &^= unix.ECHO | unix.ECHONL | unix.ICANON | unix.ISIG | unix.IEXTEN
	t.Cflag &^= unix.CSIZE | unix.PARENB | unix.CSTOPB
	t.Cflag |= unix.CS8 | unix.CREAD | unix.CLOCAL

	// Return whatever arrived within 100 ms, possibly nothing.
	t.Cc[unix.VMIN] = 0
	t.Cc[unix.VTIME] = 1

	if err := setSpeed(t, baud); err != nil {
		return nil, err
	}
	if err := unix.IoctlSetTermios(fd, unix.TCSETS, t); err != nil {
		return nil, err
	}

	f := os.NewFile(uintptr(fd), path)
	if f == nil {
		return nil, fmt.Errorf("os.NewFile failed")
	}
	ok = true
	return &termiosPort{f: f, fd: fd}, nil
}

func setSpeed(t *unix.Termios, baud int) error {
	spd, err := baudToUnix(baud)
	if err != nil {
		return err
	}
	t.Cflag &^= unix.CBAUD
	t.Cflag |= spd
	t.Ispeed = spd
	t.Ospeed = spd
	return nil
}

func (p *termiosPort) Read(b []byte) (int, error) {
	n, err := p.f.Read(b)
	if n == 0 && errors.Is(err, io.EOF) {
		// VTIME expired with no data.
		return 0, nil
	}
	return n, err
}

func (p *termiosPort) Write(b []byte) (int, error) { return p.f.Write(b) }

func (p *termiosPort) SetBaud(baud int) error {
	t, err := unix.IoctlGetTermios(p.fd, unix.TCGETS)
	if err != nil {
		return fmt.Errorf("gps: get termios: %w", err)
	}
	if err := setSpeed(t, baud); err != nil {
		return err
	}
	if err := unix.IoctlSetTermios(p.fd, unix.TCSETS, t); err != nil {
		return fmt.Errorf("gps: set baud %d: %w", baud, err)
	}
	return nil
}

// Drain blocks until queued output has been transmitted (tcdrain).
func (p *termiosPort) Drain() error {
	return unix.IoctlSetInt(p.fd, unix.TCSBRK, 1)
}

func (p *termiosPort) Close() error { return p.f.Close() }

func baudToUnix(baud int) (uint32, error) {
	switch baud {
	case 4800:
		return unix.B4800, nil
	case 9600:
		return unix.B9600, nil
	case 19200:
		return unix.B19200, nil
	case 38400:
		return unix.B38400, nil
	case 57600:
		return unix.B57600, nil
	case 115200:
		return unix.B115200, nil
	case 230400:
		return unix.B230400, nil
	default:
		return 0, fmt.Errorf("unsupported baud %d", baud)
	}
}
