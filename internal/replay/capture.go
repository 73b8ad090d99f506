// Package replay records the raw receiver byte stream and plays it back,
// so that a jump can be re-run through the whole pipeline on the bench.
package replay

import (
	"bufio"
	"context"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"log"
	"os"
	"strconv"
	"strings"
	"sync"
	"time"
)

// Capture format: line-oriented text.
//
// - Blank lines and lines starting with '#' are ignored.
// - "START" resets the origin; the next record is relative to 0 again.
// - Data lines are <t_ns>,<hex>: nanoseconds since START and the bytes read
//   from the receiver in one chunk. Chunks do not follow frame boundaries.

type Record struct {
	At    time.Duration
	Chunk []byte
}

type Reader struct {
	r io.Reader
}

func NewReader(r io.Reader) *Reader {
	return &Reader{r: r}
}

// Load reads a whole capture file.
func Load(path string) ([]Record, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return NewReader(f).ReadAll()
}

func (rr *Reader) ReadAll() ([]Record, error) {
	s := bufio.NewScanner(rr.r)
	s.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	recs := make([]Record, 0, 1024)
	n := 0
	for s.Scan() {
		n++
		line := strings.TrimSpace(s.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		if line == "START" {
			recs = append(recs, Record{})
			continue
		}

		tsStr, hexStr, ok := strings.Cut(line, ",")
		if !ok {
			return nil, fmt.Errorf("capture line %d: missing comma", n)
		}
		tsNs, err := strconv.ParseInt(strings.TrimSpace(tsStr), 10, 64)
		if err != nil {
			return nil, fmt.Errorf("capture line %d: timestamp: %w", n, err)
		}
		if tsNs < 0 {
			return nil, fmt.Errorf("capture line %d: negative timestamp %d", n, tsNs)
		}
		b, err := hex.DecodeString(strings.ReplaceAll(strings.TrimSpace(hexStr), " ", ""))
		if err != nil {
			return nil, fmt.Errorf("capture line %d: %w", n, err)
		}
		if len(b) == 0 {
			return nil, fmt.Errorf("capture line %d: empty chunk", n)
		}
		recs = append(recs, Record{At: time.Duration(tsNs), Chunk: b})
	}
	if err := s.Err(); err != nil {
		return nil, err
	}
	return recs, nil
}

// Writer appends chunks to a capture file.
type Writer struct {
	f      *os.File
	w      *bufio.Writer
	start  time.Time
	now    func() time.Time
	closed bool
	failed bool
}

func CreateWriter(path string) (*Writer, error) {
	f, err := os.Create(path)
	if err != nil {
		return nil, err
	}
	bw := bufio.NewWriterSize(f, 64*1024)
	if _, err := bw.WriteString("# flysight-ng ubx capture\nSTART\n"); err != nil {
		_ = f.Close()
		return nil, err
	}
	return &Writer{f: f, w: bw, start: time.Now(), now: time.Now}, nil
}

func (ww *Writer) WriteChunk(now time.Time, chunk []byte) error {
	if ww.closed {
		return errors.New("capture writer is closed")
	}
	if len(chunk) == 0 {
		return nil
	}
	d := now.Sub(ww.start)
	if d < 0 {
		d = 0
	}
	_, err := fmt.Fprintf(ww.w, "%d,%s\n", d.Nanoseconds(), hex.EncodeToString(chunk))
	return err
}

// Tap records chunk with the current time. It fits gps.Reader.Tap; after
// the first error it logs once and stops recording.
func (ww *Writer) Tap(chunk []byte) {
	if ww.failed {
		return
	}
	if err := ww.WriteChunk(ww.now(), chunk); err != nil {
		log.Printf("replay: capture stopped: %v", err)
		ww.failed = true
	}
}

func (ww *Writer) Flush() error {
	if ww.closed {
		return nil
	}
	return ww.w.Flush()
}

func (ww *Writer) Close() error {
	if ww.closed {
		return nil
	}
	ww.closed = true
	if err := ww.w.Flush(); err != nil {
		_ = ww.f.Close()
		return err
	}
	return ww.f.Close()
}

type Sleeper interface {
	Sleep(ctx context.Context, d time.Duration)
}

type realSleeper struct{}

func (realSleeper) Sleep(ctx context.Context, d time.Duration) {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
	case <-t.C:
	}
}

// Play hands each chunk to cb with its recorded spacing. speed 1.0 is real
// time, 2.0 halves every wait. START markers reset the origin.
func Play(ctx context.Context, records []Record, speed float64, loop bool, sleeper Sleeper, cb func(chunk []byte) error) error {
	if speed <= 0 {
		return fmt.Errorf("speed must be > 0")
	}
	if sleeper == nil {
		sleeper = realSleeper{}
	}
	if cb == nil {
		return errors.New("callback is nil")
	}
	if len(records) == 0 {
		return errors.New("no records")
	}

	for {
		var origin, lastAt time.Duration
		haveLast := false

		for _, r := range records {
			if err := ctx.Err(); err != nil {
				return err
			}
			if r.Chunk == nil {
				origin = r.At
				lastAt = 0
				haveLast = false
				continue
			}

			at := r.At - origin
			if at < 0 {
				at = 0
			}
			if haveLast {
				if wait := time.Duration(float64(at-lastAt) / speed); wait > 0 {
					sleeper.Sleep(ctx, wait)
				}
			}
			if err := cb(r.Chunk); err != nil {
				return err
			}
			lastAt = at
			haveLast = true
		}

		if !loop {
			return nil
		}
	}
}

// Stream is an io.ReadCloser over a capture played back in time, usable as
// the receiver source in place of a serial port.
type Stream struct {
	pr     *io.PipeReader
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

func NewStream(records []Record, speed float64, loop bool, sleeper Sleeper) *Stream {
	ctx, cancel := context.WithCancel(context.Background())
	pr, pw := io.Pipe()
	s := &Stream{pr: pr, cancel: cancel}
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		err := Play(ctx, records, speed, loop, sleeper, func(chunk []byte) error {
			_, err := pw.Write(chunk)
			return err
		})
		if err == nil {
			err = io.EOF
		}
		pw.CloseWithError(err)
	}()
	return s
}

func (s *Stream) Read(p []byte) (int, error) { return s.pr.Read(p) }

func (s *Stream) Close() error {
	s.cancel()
	err := s.pr.Close()
	s.wg.Wait()
	return err
}
