// Package beep plays short audible cues for recording state changes.
package beep

import (
	"math"
	"sync/atomic"
)

type Cue int

const (
	Start Cue = iota
	Stop
	Error
	Ready
)

const sampleRate = 44100

type tone struct {
	freq   float64
	volume float64
	decay  float64
	dur    float64
	// repeat plays the tone twice with gap seconds of silence between.
	repeat bool
	gap    float64
}

var tones = map[Cue]tone{
	Start: {freq: 1200, volume: 0.5, decay: 60, dur: 0.03},
	Stop:  {freq: 900, volume: 0.5, decay: 40, dur: 0.05},
	Error: {freq: 350, volume: 0.6, decay: 30, dur: 0.08, repeat: true, gap: 0.05},
	Ready: {freq: 1500, volume: 0.35, decay: 50, dur: 0.04, repeat: true, gap: 0.03},
}

var disabled atomic.Bool

func Disable() { disabled.Store(true) }

func Enabled() bool { return !disabled.Load() }

// Play starts cue c without blocking. Failures to open an audio device are
// silent.
func Play(c Cue) {
	if disabled.Load() {
		return
	}
	if _, ok := tones[c]; !ok {
		return
	}
	play(c)
}

// pcm renders c as mono signed 16-bit samples. tail seconds of silence are
// appended; pulse needs it to fill its buffer before draining.
func pcm(c Cue, rate int, tail float64) []int16 {
	t, ok := tones[c]
	if !ok {
		return nil
	}
	out := tick(t, rate)
	if t.repeat {
		out = append(out, make([]int16, int(float64(rate)*t.gap))...)
		out = append(out, tick(t, rate)...)
	}
	return append(out, make([]int16, int(float64(rate)*tail))...)
}

func tick(t tone, rate int) []int16 {
	n := int(float64(rate) * t.dur)
	samples := make([]int16, n)
	for i := range samples {
		sec := float64(i) / float64(rate)
		envelope := math.Exp(-sec * t.decay)
		samples[i] = int16(math.Sin(2*math.Pi*t.freq*sec) * 32767 * t.volume * envelope)
	}
	return samples
}
