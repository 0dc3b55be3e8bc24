// Package audio synthesizes the game's sound cues as WAV clips.
package audio

import (
	"fmt"
	"io"
	"log"
	"math"
	"sort"
	"time"

	"github.com/gopxl/beep"
	"github.com/gopxl/beep/effects"
	"github.com/gopxl/beep/wav"

	"neon-survivor/internal/config"
)

// Waveform shapes supported by the oscillator.
type Waveform int

const (
	Sine Waveform = iota
	Square
	Sawtooth
)

// Tone describes one synthesized cue.
type Tone struct {
	Frequency float64
	Duration  time.Duration
	Wave      Waveform
}

// DefaultCue is served for cue names without their own tone.
const DefaultCue = "default"

// Cues maps cue names emitted by the world to their tones.
var Cues = map[string]Tone{
	"shoot":    {Frequency: 900, Duration: 40 * time.Millisecond, Wave: Square},
	"hit":      {Frequency: 120, Duration: 120 * time.Millisecond, Wave: Sawtooth},
	"pickup":   {Frequency: 1400, Duration: 60 * time.Millisecond, Wave: Sine},
	DefaultCue: {Frequency: 800, Duration: 30 * time.Millisecond, Wave: Sine},
}

// Envelope constants: exponential attack to the peak over 10ms, then
// exponential decay back to the floor by the end of the tone.
const (
	envFloor  = 0.001
	envPeak   = 0.12
	envAttack = 10 * time.Millisecond
)

// Bank holds pre-encoded WAV clips keyed by cue name.
type Bank struct {
	format beep.Format
	volume float64
	clips  map[string][]byte
}

// NewBank synthesizes every cue. Cues that fail to synthesize are logged
// and skipped; a disabled config yields an empty bank.
func NewBank(cfg config.AudioConfig) *Bank {
	rate := cfg.SampleRate
	if rate <= 0 {
		rate = 44100
	}
	b := &Bank{
		format: beep.Format{SampleRate: beep.SampleRate(rate), NumChannels: 2, Precision: 2},
		volume: cfg.Volume,
		clips:  make(map[string][]byte),
	}
	if !cfg.Enabled {
		log.Println("🔇 SFX disabled")
		return b
	}

	for name, tone := range Cues {
		clip, err := b.synthesize(tone)
		if err != nil {
			log.Printf("⚠️ Failed to synthesize cue %q: %v", name, err)
			continue
		}
		b.clips[name] = clip
	}
	log.Printf("🔊 SFX bank ready: %d cues at %dHz", len(b.clips), rate)
	return b
}

// Cue returns the WAV clip for name, falling back to the default cue.
func (b *Bank) Cue(name string) ([]byte, bool) {
	if clip, ok := b.clips[name]; ok {
		return clip, true
	}
	clip, ok := b.clips[DefaultCue]
	return clip, ok
}

// Names returns the synthesized cue names, sorted.
func (b *Bank) Names() []string {
	names := make([]string, 0, len(b.clips))
	for name := range b.clips {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Format returns the sample format of every clip.
func (b *Bank) Format() beep.Format {
	return b.format
}

func (b *Bank) synthesize(t Tone) ([]byte, error) {
	if t.Frequency <= 0 || t.Duration <= 0 {
		return nil, fmt.Errorf("invalid tone %+v", t)
	}
	n := b.format.SampleRate.N(t.Duration)
	if n <= 0 {
		return nil, fmt.Errorf("tone %v shorter than one sample", t.Duration)
	}

	var s beep.Streamer = beep.Take(n, toneStreamer(t, b.format.SampleRate))
	s = &effects.Volume{Streamer: s, Base: 2, Volume: math.Log2(math.Max(b.volume, envFloor))}

	var ws memWriteSeeker
	if err := wav.Encode(&ws, s, b.format); err != nil {
		return nil, fmt.Errorf("encode wav: %w", err)
	}
	return ws.buf, nil
}

// toneStreamer generates an enveloped waveform. It never ends on its own;
// callers bound it with beep.Take.
func toneStreamer(t Tone, rate beep.SampleRate) beep.Streamer {
	total := t.Duration.Seconds()
	attack := math.Min(envAttack.Seconds(), total/2)
	sr := float64(rate)
	i := 0

	return beep.StreamerFunc(func(samples [][2]float64) (int, bool) {
		for k := range samples {
			sec := float64(i) / sr
			v := oscillate(t.Wave, math.Mod(t.Frequency*sec, 1)) * envelope(sec, attack, total)
			samples[k][0] = v
			samples[k][1] = v
			i++
		}
		return len(samples), true
	})
}

// oscillate returns one sample of the waveform at phase in [0, 1).
func oscillate(w Waveform, phase float64) float64 {
	switch w {
	case Square:
		if phase < 0.5 {
			return 1
		}
		return -1
	case Sawtooth:
		return 2*phase - 1
	default:
		return math.Sin(2 * math.Pi * phase)
	}
}

// envelope ramps exponentially floor->peak over attack, then peak->floor by
// total.
func envelope(sec, attack, total float64) float64 {
	if sec < attack {
		return envFloor * math.Pow(envPeak/envFloor, sec/attack)
	}
	decay := total - attack
	if decay <= 0 {
		return envFloor
	}
	frac := math.Min(1, (sec-attack)/decay)
	return envPeak * math.Pow(envFloor/envPeak, frac)
}

// memWriteSeeker is the in-memory io.WriteSeeker wav.Encode needs to patch
// its header after streaming.
type memWriteSeeker struct {
	buf []byte
	pos int
}

func (m *memWriteSeeker) Write(p []byte) (int, error) {
	end := m.pos + len(p)
	if end > len(m.buf) {
		if end > cap(m.buf) {
			grown := make([]byte, end, 2*end)
			copy(grown, m.buf)
			m.buf = grown
		} else {
			m.buf = m.buf[:end]
		}
	}
	copy(m.buf[m.pos:], p)
	m.pos = end
	return len(p), nil
}

func (m *memWriteSeeker) Seek(offset int64, whence int) (int64, error) {
	var abs int64
	switch whence {
	case io.SeekStart:
		abs = offset
	case io.SeekCurrent:
		abs = int64(m.pos) + offset
	case io.SeekEnd:
		abs = int64(len(m.buf)) + offset
	default:
		return 0, fmt.Errorf("invalid whence %d", whence)
	}
	if abs < 0 {
		return 0, fmt.Errorf("negative position %d", abs)
	}
	m.pos = int(abs)
	return abs, nil
}
