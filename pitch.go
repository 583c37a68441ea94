package m00sic

import (
	"errors"
	"fmt"
)

type (
	// PitchClass is a letter with an optional accidental, e.g. "G#" or "B".
	// Enharmonic spellings share the same Rank but are considered different
	// pitch classes, so "D#" != "Eb".
	PitchClass struct {
		Name string
		Rank int // position within the octave, always between 0 and 11
	}
)

const (
	NotesPerOctave = 12

	// MIDI number of C0; everything else is an offset from this.
	c0MIDI = 12

	LowestPianoMIDI  = 21  // A0
	HighestPianoMIDI = 108 // C8

	LowestPianoOctave  = 0
	HighestPianoOctave = 8
)

var (
	ErrInvalidPitchClass = errors.New("invalid pitch class")
	ErrInvalidNote       = errors.New("invalid note name")
	ErrOutOfRange        = errors.New("note out of piano range")
)

// pitchClassNames lists the spellings of every rank; the first spelling of
// each rank is the one used when a pitch class is computed rather than
// parsed.
var pitchClassNames = [NotesPerOctave][]string{
	{"C"},
	{"C#", "Db"},
	{"D"},
	{"D#", "Eb"},
	{"E"},
	{"F"},
	{"F#", "Gb"},
	{"G"},
	{"G#", "Ab"},
	{"A"},
	{"A#", "Bb"},
	{"B"},
}

var pitchClassRanks = func() map[string]int {
	ret := map[string]int{}
	for rank, names := range pitchClassNames {
		for _, name := range names {
			ret[name] = rank
		}
	}
	return ret
}()

// ParsePitchClass returns the pitch class with the given spelling.
func ParsePitchClass(name string) (PitchClass, error) {
	rank, ok := pitchClassRanks[name]
	if !ok {
		return PitchClass{}, fmt.Errorf("%w: %q", ErrInvalidPitchClass, name)
	}
	return PitchClass{Name: name, Rank: rank}, nil
}

// MustPitchClass is like ParsePitchClass but panics on invalid names. Meant
// for constants in tests and presets.
func MustPitchClass(name string) PitchClass {
	pc, err := ParsePitchClass(name)
	if err != nil {
		panic(err)
	}
	return pc
}

// IsPitchClass reports whether name is a valid pitch class spelling.
func IsPitchClass(name string) bool {
	_, ok := pitchClassRanks[name]
	return ok
}

// PitchClassOfRank returns the sharp spelling of the given rank, wrapping
// ranks outside 0..11.
func PitchClassOfRank(rank int) PitchClass {
	rank = wrap(rank, NotesPerOctave)
	return PitchClass{Name: pitchClassNames[rank][0], Rank: rank}
}

// Add transposes the pitch class up by semitones, wrapping around the
// octave. The result is always spelled with a sharp.
func (p PitchClass) Add(semitones int) PitchClass {
	return PitchClassOfRank(p.Rank + semitones)
}

// Sub transposes the pitch class down by semitones.
func (p PitchClass) Sub(semitones int) PitchClass {
	return p.Add(-semitones)
}

func (p PitchClass) String() string {
	return p.Name
}

func wrap(value, n int) int {
	return (value%n + n) % n
}
