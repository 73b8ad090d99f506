// Package tone is the audio synthesizer: a sample handler clocked by an
// output device consumes a circular buffer that the foreground fills with
// either a generated tone or a streamed clip.
package tone

import (
	"fmt"
	"io"
	"log"
	"math"
)

const (
	// HandlerRate is the handler tick rate in Hz.
	HandlerRate = 31250
	// SampleLen is the number of interpolated handler ticks per buffered sample.
	SampleLen = 4

	// BufferLen is the circular buffer length; a power of two.
	BufferLen = 512

	bufferWrite = BufferLen / 8 // a load at least this large clears flagWrite
	bufferChunk = BufferLen / 8 // maximum clip bytes read per load

	// RateOneHz is the tone rate for one beep per second.
	RateOneHz = 65
	// RateFlatline restarts the tone as soon as it ends.
	RateFlatline = math.MaxUint16

	// Length125ms is a 125 ms tone in handler ticks.
	Length125ms = 3906
	// MaxPitch is the exclusive upper bound of the pitch index.
	MaxPitch = 65280
	// ChirpMax sweeps the full pitch range over a 125 ms tone.
	ChirpMax = (3242 << 16) / Length125ms

	// MaxVolume is the quietest volume shift; it holds the output at centre.
	MaxVolume = 8
)

const (
	flagLoad  = 1 << 0
	flagStop  = 1 << 1
	flagBeep  = 1 << 2
	flagWrite = 1 << 3
)

type state uint8

const (
	stateIdle state = iota
	statePlay
)

type mode uint8

const (
	modeTone mode = iota
	modeClip
)

// Options configures a Synth.
type Options struct {
	Volume       uint8 // right shift applied to tones, 0 is full scale
	SpeechVolume uint8 // right shift applied to clips
	Clips        ClipSource
}

// Synth is the synthesizer state. Fields are grouped by owner: the ones
// touched by both the handler and the foreground are only accessed with
// irq held.
type Synth struct {
	irq irqMask

	// Shared with the handler.
	buf       [BufferLen]uint8
	read      uint16
	write     uint16
	flags     uint8
	clockOn   bool
	nextPitch uint16
	nextChirp int32
	rate      uint16
	rateTimer uint16

	// Handler only.
	tick       uint8
	s1, s2, ds uint16

	// Foreground only.
	state     state
	mode      mode
	step      uint32
	chirp     uint32
	remaining uint16
	phase     uint16
	volume    uint8
	spVolume  uint8
	held      bool
	clips     ClipSource
	clip      io.ReadCloser
}

func New(opt Options) *Synth {
	return &Synth{
		volume:   clampVolume(opt.Volume),
		spVolume: clampVolume(opt.SpeechVolume),
		clips:    opt.Clips,
	}
}

func clampVolume(v uint8) uint8 {
	if v > MaxVolume {
		return MaxVolume
	}
	return v
}

func attenuate(v, shift uint8) uint8 {
	return 128 - (128 >> shift) + (v >> shift)
}

// Tick is the sample handler. It is called at HandlerRate by the output
// and returns the output level.
func (s *Synth) Tick() uint8 {
	s.irq.disable()
	if !s.clockOn {
		out := uint8(s.s1 >> 8)
		s.irq.restore()
		return out
	}

	switch {
	case s.tick%SampleLen != 0:
		s.s1 += s.ds
	case s.read == s.write:
		if s.flags&flagLoad != 0 {
			// Underrun while the producer is still loading: hold the level.
			s.ds = 0
		} else {
			s.clockOn = false
			s.flags |= flagStop
		}
	default:
		s.s1 = s.s2
		s.s2 = uint16(s.buf[s.read%BufferLen]) << 8
		if s.s1 <= s.s2 {
			s.ds = (s.s2 - s.s1) / SampleLen
		} else {
			s.ds = -((s.s1 - s.s2) / SampleLen)
		}
		s.read++
	}
	s.tick++

	out := uint8(s.s1 >> 8)
	s.irq.restore()
	return out
}

// Update is the 1 kHz rate generator: it requests a new beep each time the
// rate accumulator wraps.
func (s *Synth) Update() {
	s.irq.atomically(func() {
		if -s.rateTimer < s.rate {
			s.flags |= flagBeep
		}
		s.rateTimer += s.rate
	})
}

func (s *Synth) SetRate(rate uint16) {
	s.irq.atomically(func() { s.rate = rate })
}

func (s *Synth) SetPitch(pitch uint16) {
	s.irq.atomically(func() { s.nextPitch = pitch })
}

func (s *Synth) SetChirp(chirp int32) {
	s.irq.atomically(func() { s.nextChirp = chirp })
}

// Hold suspends the ambient tone; rate-driven beeps are ignored until
// Release. Explicit Beep and Play calls still play.
func (s *Synth) Hold()    { s.held = true }
func (s *Synth) Release() { s.held = false }

func (s *Synth) IsIdle() bool { return s.state == stateIdle }

// CanWrite reports whether the producer has headroom for other work: the
// synthesizer is idle or the last load did not need a large refill.
func (s *Synth) CanWrite() bool {
	if s.state == stateIdle {
		return true
	}
	var ok bool
	s.irq.atomically(func() { ok = s.flags&flagWrite != 0 })
	return ok
}

// ClipsReady reports whether the clip storage can be read.
func (s *Synth) ClipsReady() bool {
	return s.clips != nil && s.clips.Ready()
}

// Task is the foreground producer step: it starts rate-driven beeps,
// completes handler-requested stops and refills the buffer.
func (s *Synth) Task() {
	var flags uint8
	s.irq.atomically(func() {
		s.flags |= flagWrite
		flags = s.flags
	})

	if flags&flagBeep != 0 {
		if s.state == stateIdle && !s.held {
			var pitch uint16
			var chirp int32
			s.irq.atomically(func() { pitch, chirp = s.nextPitch, s.nextChirp })
			s.Beep(pitch, chirp, Length125ms)
		}
		s.irq.atomically(func() { s.flags &^= flagBeep })
	}

	if flags&flagStop != 0 {
		s.Stop()
	}

	var loading bool
	s.irq.atomically(func() { loading = s.flags&flagLoad != 0 })
	if loading {
		s.load()
	}
}

// Beep plays a tone of length handler ticks starting at pitch, sweeping
// by chirp per buffered sample.
func (s *Synth) Beep(pitch uint16, chirp int32, length uint16) {
	s.Stop()
	s.step = uint32((int32(pitch)*3242 + 30212096) * SampleLen)
	s.chirp = uint32(chirp)
	s.remaining = length / SampleLen
	s.start(modeTone)
}

// Play streams the named clip.
func (s *Synth) Play(name string) error {
	s.Stop()
	if s.clips == nil {
		return fmt.Errorf("tone: no clip source")
	}
	rc, err := s.clips.Open(name)
	if err != nil {
		return err
	}
	s.clip = rc
	s.start(modeClip)
	return nil
}

// Stop halts playback and returns the synthesizer to idle.
func (s *Synth) Stop() {
	if s.state != stateIdle {
		s.irq.atomically(func() { s.clockOn = false })
		if s.mode == modeClip && s.clip != nil {
			if err := s.clip.Close(); err != nil {
				log.Printf("tone: close clip: %v", err)
			}
			s.clip = nil
		}
		s.state = stateIdle
	}
	s.irq.atomically(func() { s.flags &^= flagStop | flagLoad })
}

func (s *Synth) start(m mode) {
	if s.state != stateIdle {
		return
	}
	s.state = statePlay
	s.mode = m

	s.irq.atomically(func() {
		s.flags |= flagLoad
		s.read = 0
		s.write = 0
	})

	s.load()

	s.irq.atomically(func() {
		s.s2 = uint16(s.buf[0]) << 8
		s.s1 = s.s2
		s.ds = 0
		s.tick = 0
		s.clockOn = true
	})
}

func (s *Synth) load() {
	switch s.mode {
	case modeTone:
		s.loadTone()
	case modeClip:
		s.loadClip()
	}
}

func (s *Synth) readIndex() uint16 {
	var r uint16
	s.irq.atomically(func() { r = s.read })
	return r
}

func (s *Synth) loadTone() {
	read := s.readIndex()
	size := read + BufferLen - s.write
	if size > s.remaining {
		size = s.remaining
	}

	for i := uint16(0); i < size; i++ {
		v := sineTable[s.phase>>8]
		s.phase += uint16(s.step >> 16)
		s.step += s.chirp
		s.buf[(s.write+i)%BufferLen] = attenuate(v, s.volume)
	}
	s.remaining -= size

	s.irq.atomically(func() {
		s.write += size
		if size >= bufferWrite {
			s.flags &^= flagWrite
		}
		if s.remaining == 0 {
			s.flags &^= flagLoad
		}
	})
}

func (s *Synth) loadClip() {
	if !s.ClipsReady() {
		return
	}
	read := s.readIndex()
	free := read + BufferLen - s.write
	if free == 0 {
		return
	}
	size := free
	if size > bufferChunk {
		size = bufferChunk
	}

	// Reads never wrap the buffer; split at the end.
	if tail := BufferLen - s.write%BufferLen; size > tail {
		if !s.readClip(tail) {
			return
		}
		size -= tail
	}
	s.readClip(size)
}

// readClip reads up to size bytes into the buffer at the write index and
// reports whether the clip has more data.
func (s *Synth) readClip(size uint16) bool {
	at := s.write % BufferLen
	dst := s.buf[at : at+size]
	n, err := io.ReadFull(s.clip, dst)
	for i := 0; i < n; i++ {
		dst[i] = attenuate(dst[i], s.spVolume)
	}
	more := err == nil
	if err != nil && err != io.EOF && err != io.ErrUnexpectedEOF {
		log.Printf("tone: clip read: %v", err)
	}

	s.irq.atomically(func() {
		s.write += uint16(n)
		if n >= bufferWrite {
			s.flags &^= flagWrite
		}
		if !more {
			s.flags &^= flagLoad
		}
	})
	return more
}
