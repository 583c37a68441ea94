package synth

import (
	"errors"
	"fmt"
	"math"
	"sort"
)

type (
	// Waveform is the shape of the oscillator of an Instrument.
	Waveform string

	// Instrument is a single oscillator shaped by an ADSR envelope. Times
	// are in seconds, Sustain is a level between 0 and 1.
	Instrument struct {
		Name     string   `yaml:"name,omitempty"`
		Waveform Waveform `yaml:"waveform"`
		Attack   float64  `yaml:"attack"`
		Decay    float64  `yaml:"decay"`
		Sustain  float64  `yaml:"sustain"`
		Release  float64  `yaml:"release"`
		Gain     float64  `yaml:"gain"`
		// Detune adds a second oscillator this many cents above the first;
		// zero disables it.
		Detune float64 `yaml:"detune,omitempty"`
		// Color is the duty cycle of pulse waves and the slope position of
		// triangle waves, between 0 and 1.
		Color float64 `yaml:"color,omitempty"`
	}
)

const (
	Sine     Waveform = "sine"
	Triangle Waveform = "triangle"
	Saw      Waveform = "saw"
	Pulse    Waveform = "pulse"
)

var ErrInvalidInstrument = errors.New("invalid instrument")

// Presets are the built-in instruments, selectable by name.
var Presets = map[string]Instrument{
	"piano": {Name: "piano", Waveform: Triangle, Attack: 0.005, Decay: 0.6, Sustain: 0.3, Release: 0.3, Gain: 0.5, Color: 0.5},
	"organ": {Name: "organ", Waveform: Sine, Attack: 0.01, Decay: 0.05, Sustain: 0.9, Release: 0.08, Gain: 0.4, Detune: 1200},
	"pad":   {Name: "pad", Waveform: Saw, Attack: 0.4, Decay: 0.5, Sustain: 0.7, Release: 0.8, Gain: 0.25, Detune: 7},
	"lead":  {Name: "lead", Waveform: Pulse, Attack: 0.01, Decay: 0.1, Sustain: 0.6, Release: 0.1, Gain: 0.3, Color: 0.3},
	"pluck": {Name: "pluck", Waveform: Saw, Attack: 0.002, Decay: 0.25, Sustain: 0, Release: 0.1, Gain: 0.4},
}

// DefaultInstrument is used when nothing else is configured.
const DefaultInstrument = "piano"

// PresetNames returns the names of the presets in alphabetical order.
func PresetNames() []string {
	ret := make([]string, 0, len(Presets))
	for name := range Presets {
		ret = append(ret, name)
	}
	sort.Strings(ret)
	return ret
}

// Preset returns the named built-in instrument.
func Preset(name string) (Instrument, error) {
	instr, ok := Presets[name]
	if !ok {
		return Instrument{}, fmt.Errorf("%w: no preset named %q (available: %v)", ErrInvalidInstrument, name, PresetNames())
	}
	return instr, nil
}

// Validate checks the parameters are in range.
func (i Instrument) Validate() error {
	switch i.Waveform {
	case Sine, Triangle, Saw, Pulse:
	default:
		return fmt.Errorf("%w: unknown waveform %q", ErrInvalidInstrument, i.Waveform)
	}
	if i.Attack < 0 || i.Decay < 0 || i.Release < 0 {
		return fmt.Errorf("%w: negative envelope time", ErrInvalidInstrument)
	}
	if i.Sustain < 0 || i.Sustain > 1 {
		return fmt.Errorf("%w: sustain %v not in [0, 1]", ErrInvalidInstrument, i.Sustain)
	}
	if i.Color < 0 || i.Color > 1 {
		return fmt.Errorf("%w: color %v not in [0, 1]", ErrInvalidInstrument, i.Color)
	}
	if i.Gain < 0 {
		return fmt.Errorf("%w: negative gain", ErrInvalidInstrument)
	}
	return nil
}

// envelope returns the amplitude t seconds after the note started, for a
// note released at time length.
func (i Instrument) envelope(t, length float64) float64 {
	if t < 0 {
		return 0
	}
	if t >= length {
		level := i.envelope(length-1e-9, math.Inf(1))
		if i.Release <= 0 {
			return 0
		}
		return level * math.Max(0, 1-(t-length)/i.Release)
	}
	if t < i.Attack {
		return t / i.Attack
	}
	t -= i.Attack
	if t < i.Decay {
		return 1 - (1-i.Sustain)*t/i.Decay
	}
	return i.Sustain
}

// oscillator returns the value of the waveform at the given phase, in
// cycles.
func (i Instrument) oscillator(phase float64) float64 {
	phase -= math.Floor(phase)
	switch i.Waveform {
	case Triangle:
		c := i.Color
		if c <= 0 || c >= 1 {
			c = 0.5
		}
		if phase < c {
			return 2*phase/c - 1
		}
		return 1 - 2*(phase-c)/(1-c)
	case Saw:
		return 2*phase - 1
	case Pulse:
		c := i.Color
		if c <= 0 || c >= 1 {
			c = 0.5
		}
		if phase < c {
			return 1
		}
		return -1
	}
	return math.Sin(2 * math.Pi * phase)
}

// Frequency returns the frequency of a MIDI note in equal temperament,
// A4 = 440 Hz.
func Frequency(pitch int) float64 {
	return 440 * math.Pow(2, float64(pitch-69)/12)
}
