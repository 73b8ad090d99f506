package tone

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/mjibson/go-dsp/wav"
)

// ClipSource opens named audio clips as streams of unsigned 8-bit mono
// samples.
type ClipSource interface {
	Open(name string) (io.ReadCloser, error)
	Ready() bool
}

// DirClips serves WAV files from a directory. Clips must be mono PCM, 8 or
// 16 bits; 16-bit samples are reduced to unsigned 8-bit.
type DirClips struct {
	Dir string

	// ReadyFn reports whether the storage is mounted. Nil means always.
	ReadyFn func() bool
}

func (d *DirClips) Ready() bool {
	if d.ReadyFn != nil {
		return d.ReadyFn()
	}
	return true
}

func (d *DirClips) Open(name string) (io.ReadCloser, error) {
	f, err := os.Open(filepath.Join(d.Dir, filepath.Base(name)))
	if err != nil {
		return nil, fmt.Errorf("tone: open clip: %w", err)
	}
	r, err := newWAVReader(f)
	if err != nil {
		_ = f.Close()
		return nil, fmt.Errorf("tone: clip %s: %w", name, err)
	}
	return r, nil
}

type wavReader struct {
	c       io.Closer
	w       *wav.Wav
	left    int
	pending []byte
}

func newWAVReader(f io.ReadCloser) (*wavReader, error) {
	w, err := wav.New(f)
	if err != nil {
		return nil, err
	}
	if w.NumChannels != 1 {
		return nil, fmt.Errorf("want mono, got %d channels", w.NumChannels)
	}
	if w.BitsPerSample != 8 && w.BitsPerSample != 16 {
		return nil, fmt.Errorf("unsupported sample size %d", w.BitsPerSample)
	}
	return &wavReader{c: f, w: w, left: w.Samples}, nil
}

func (r *wavReader) Read(p []byte) (int, error) {
	n := 0
	for n < len(p) {
		if len(r.pending) == 0 {
			if err := r.fill(len(p) - n); err != nil {
				if n > 0 && errors.Is(err, io.EOF) {
					return n, nil
				}
				return n, err
			}
		}
		c := copy(p[n:], r.pending)
		r.pending = r.pending[c:]
		n += c
	}
	return n, nil
}

func (r *wavReader) fill(want int) error {
	if r.left <= 0 {
		return io.EOF
	}
	if want > r.left {
		want = r.left
	}
	data, err := r.w.ReadSamples(want)
	if err != nil {
		r.left = 0
		if errors.Is(err, io.ErrUnexpectedEOF) {
			return io.EOF
		}
		return err
	}
	r.left -= want

	switch s := data.(type) {
	case []uint8:
		r.pending = s
	case []int16:
		out := make([]byte, len(s))
		for i, v := range s {
			out[i] = uint8((v >> 8) + 128)
		}
		r.pending = out
	default:
		return fmt.Errorf("unsupported sample type %T", data)
	}
	return nil
}

func (r *wavReader) Close() error { return r.c.Close() }
