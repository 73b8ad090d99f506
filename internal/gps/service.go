package gps

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"os"
	"strings"
	"sync"
	"sync/atomic"
	"time"
)

// Port is the serial link to the receiver.
type Port interface {
	io.ReadWriter
	io.Closer
	SetBaud(baud int) error
	Drain() error
}

// Config selects and opens the receiver port.
//
// Device may be empty to auto-detect /dev/ttyACM* and /dev/ttyUSB*.
// Backend is "termios" (Linux default) or "serial" (go.bug.st/serial).
type Config struct {
	Device  string
	Backend string
	Baud    int
}

var (
	openTermiosFn = openTermios
	openBugstFn   = openBugst
)

// Open opens the receiver port at cfg.Baud.
func Open(cfg Config) (Port, error) {
	device := strings.TrimSpace(cfg.Device)
	if device == "" {
		device = autoDetectDevice()
		if device == "" {
			return nil, fmt.Errorf("gps auto-detect failed: no /dev/ttyACM* or /dev/ttyUSB* found")
		}
	}
	baud := cfg.Baud
	if baud == 0 {
		baud = 9600
	}

	var (
		p   Port
		err error
	)
	switch strings.ToLower(strings.TrimSpace(cfg.Backend)) {
	case "", "termios":
		p, err = openTermiosFn(device, baud)
	case "serial":
		p, err = openBugstFn(device, baud)
	default:
		return nil, fmt.Errorf("gps: unknown backend %q", cfg.Backend)
	}
	if err != nil {
		return nil, fmt.Errorf("gps open failed device=%s baud=%d: %w", device, baud, err)
	}
	log.Printf("gps port open device=%s baud=%d", device, baud)
	return p, nil
}

func autoDetectDevice() string {
	candidates := []string{}
	for i := 0; i < 10; i++ {
		candidates = append(candidates, fmt.Sprintf("/dev/ttyACM%d", i))
	}
	for i := 0; i < 10; i++ {
		candidates = append(candidates, fmt.Sprintf("/dev/ttyUSB%d", i))
	}
	for _, p := range candidates {
		if _, err := os.Stat(p); err == nil {
			return p
		}
	}
	return ""
}

type Snapshot struct {
	Bytes     uint64    `json:"bytes"`
	Chunks    uint64    `json:"chunks"`
	LastRxAt  time.Time `json:"last_rx_utc,omitempty"`
	LastError string    `json:"last_error,omitempty"`
}

// Reader moves receiver bytes from a port to the foreground loop. Each
// chunk handed out is owned by the receiver of the channel.
type Reader struct {
	r io.Reader

	// Tap, when set, sees every chunk before it is queued.
	Tap func([]byte)

	out chan []byte

	cancel context.CancelFunc
	wg     sync.WaitGroup

	bytes  atomic.Uint64
	chunks atomic.Uint64
	last   atomic.Value // time.Time

	mu      sync.Mutex
	lastErr string
}

func NewReader(r io.Reader) *Reader {
	return &Reader{r: r, out: make(chan []byte, 64)}
}

// Chunks is closed when the reader stops.
func (s *Reader) Chunks() <-chan []byte { return s.out }

func (s *Reader) Start(ctx context.Context) error {
	if s == nil {
		return fmt.Errorf("gps reader is nil")
	}
	if ctx == nil {
		return fmt.Errorf("ctx is nil")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cancel != nil {
		return nil
	}
	child, cancel := context.WithCancel(ctx)
	s.cancel = cancel

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		defer close(s.out)
		s.run(child)
	}()
	return nil
}

func (s *Reader) run(ctx context.Context) {
	buf := make([]byte, 512)
	for {
		if ctx.Err() != nil {
			return
		}
		n, err := s.r.Read(buf)
		if n > 0 {
			chunk := make([]byte, n)
			copy(chunk, buf[:n])
			if s.Tap != nil {
				s.Tap(chunk)
			}
			s.bytes.Add(uint64(n))
			s.chunks.Add(1)
			s.last.Store(time.Now().UTC())
			select {
			case s.out <- chunk:
			case <-ctx.Done():
				return
			}
		}
		if err != nil {
			if !errors.Is(err, io.EOF) && ctx.Err() == nil {
				s.setError(fmt.Sprintf("gps read stopped: %v", err))
				log.Printf("gps read stopped: %v", err)
			}
			return
		}
	}
}

func (s *Reader) setError(msg string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lastErr = msg
}

func (s *Reader) Snapshot() Snapshot {
	snap := Snapshot{Bytes: s.bytes.Load(), Chunks: s.chunks.Load()}
	if v, ok := s.last.Load().(time.Time); ok {
		snap.LastRxAt = v
	}
	s.mu.Lock()
	snap.LastError = s.lastErr
	s.mu.Unlock()
	return snap
}

// Close stops the reader. The port itself is closed by its owner, which
// also unblocks a pending Read.
func (s *Reader) Close() {
	if s == nil {
		return
	}
	s.mu.Lock()
	cancel := s.cancel
	s.cancel = nil
	s.mu.Unlock()
	if cancel != nil {
		cancel()
	}
	s.wg.Wait()
}
