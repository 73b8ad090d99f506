package csvlog

import (
	"bufio"
	"fmt"
	"log"
	"time"

	"flysight-ng/internal/nav"
)

// Gate reports whether the audio producer has headroom for a storage step.
// *tone.Synth implements it.
type Gate interface {
	CanWrite() bool
}

// PowerHold keeps the device powered while a write is in flight.
type PowerHold interface {
	Hold()
	Release()
}

// Source yields the fixes to be logged. *nav.Aggregator implements it.
type Source interface {
	Next() (nav.Fix, bool)
}

type state uint8

const (
	stateIdle state = iota
	stateFlush1
	stateFlush2
	stateFlush3
)

type Options struct {
	Storage  Storage
	Gate     Gate
	Power    PowerHold
	TZOffset time.Duration
	// OnError is called once when logging is disabled by a storage error.
	OnError func(error)
}

// Writer is the log state machine. It is owned by the foreground loop.
type Writer struct {
	opt Options

	state    state
	file     File
	bw       *bufio.Writer
	row      [RowLen]byte
	disabled bool
	path     string
}

func New(opt Options) *Writer {
	return &Writer{opt: opt}
}

// Initialized reports whether a log file has been opened this session.
func (w *Writer) Initialized() bool { return w.file != nil }

// Disabled reports whether a storage error has stopped logging.
func (w *Writer) Disabled() bool { return w.disabled }

// Path returns the log file path relative to the storage root.
func (w *Writer) Path() string { return w.path }

// Open creates the session's log file named after f and writes the header.
// The header is flushed by the following Task steps.
func (w *Writer) Open(f nav.Fix) error {
	if w.file != nil || w.disabled {
		return nil
	}
	dir, name := FileName(f, w.opt.TZOffset)
	file, err := w.opt.Storage.Create(dir, name)
	if err != nil {
		w.fail(err)
		return err
	}
	w.file = file
	w.bw = bufio.NewWriterSize(file, 4096)
	w.path = dir + "/" + name
	log.Printf("csvlog: logging to %s", w.path)

	w.hold()
	if _, err := w.bw.WriteString(Header); err != nil {
		w.fail(fmt.Errorf("csvlog: write header: %w", err))
		return err
	}
	w.state = stateFlush1
	return nil
}

func (w *Writer) ready() bool {
	return w.opt.Gate.CanWrite() && w.opt.Storage.Ready()
}

// Task advances the state machine by at most one step.
func (w *Writer) Task(src Source) {
	if w.disabled {
		// Keep the ring drained; nothing will be written.
		for {
			if _, ok := src.Next(); !ok {
				return
			}
		}
	}
	if w.file == nil || !w.ready() {
		return
	}

	switch w.state {
	case stateIdle:
		f, ok := src.Next()
		if !ok {
			return
		}
		w.hold()
		if _, err := w.bw.Write(FormatRow(&w.row, f)); err != nil {
			w.fail(fmt.Errorf("csvlog: write: %w", err))
			return
		}
		w.state = stateFlush1
	case stateFlush1:
		if err := w.bw.Flush(); err != nil {
			w.fail(fmt.Errorf("csvlog: flush: %w", err))
			return
		}
		w.state = stateFlush2
	case stateFlush2:
		if err := w.file.Sync(); err != nil {
			w.fail(fmt.Errorf("csvlog: sync: %w", err))
			return
		}
		w.state = stateFlush3
	case stateFlush3:
		w.release()
		w.state = stateIdle
	}
}

// Close flushes and closes the log file.
func (w *Writer) Close() error {
	if w.file == nil {
		return nil
	}
	var err error
	if !w.disabled {
		err = w.bw.Flush()
	}
	if cerr := w.file.Close(); err == nil {
		err = cerr
	}
	w.release()
	w.file = nil
	return err
}

func (w *Writer) hold() {
	if w.opt.Power != nil {
		w.opt.Power.Hold()
	}
}

func (w *Writer) release() {
	if w.opt.Power != nil {
		w.opt.Power.Release()
	}
}

func (w *Writer) fail(err error) {
	log.Printf("csvlog: logging disabled: %v", err)
	w.disabled = true
	w.state = stateIdle
	w.release()
	if w.opt.OnError != nil {
		w.opt.OnError(err)
	}
}
