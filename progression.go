package m00sic

import (
	"fmt"
	"math/rand"
	"slices"
	"strconv"
	"strings"
)

// ChordQuality names a chord by the semitone steps of its tones above the
// root.
type ChordQuality string

const (
	MajorTriad      ChordQuality = "major_triad"
	MinorTriad      ChordQuality = "minor_triad"
	DiminishedTriad ChordQuality = "diminished_triad"
	AugmentedTriad  ChordQuality = "augmented_triad"
	DominantSeventh ChordQuality = "dominant_seventh"
	MajorSeventh    ChordQuality = "major_seventh"
	MinorSeventh    ChordQuality = "minor_seventh"
)

var chordSteps = map[ChordQuality][]int{
	MajorTriad:      {0, 4, 7},
	MinorTriad:      {0, 3, 7},
	DiminishedTriad: {0, 3, 6},
	AugmentedTriad:  {0, 4, 8},
	DominantSeventh: {0, 4, 7, 10},
	MajorSeventh:    {0, 4, 7, 11},
	MinorSeventh:    {0, 3, 7, 10},
}

// Steps returns the semitone steps of the quality, or nil if it is unknown.
func (q ChordQuality) Steps() []int {
	return chordSteps[q]
}

// TonicOctave is the octave the key tables are centered on.
const TonicOctave = 4

// highest note AllOctaves returns; the top of the piano is too shrill for
// the generated material
const allOctavesCeiling = 100

var numeralOffsets = map[string]int{"I": 0, "II": 1, "III": 2, "IV": 3, "V": 4, "VI": 5, "VII": 6}

// Keys lists every major and minor key, sharp spellings only.
var Keys = func() []Key {
	ret := make([]Key, 0, 2*NotesPerOctave)
	for _, mode := range []Mode{Major, Minor} {
		for rank := 0; rank < NotesPerOctave; rank++ {
			ret = append(ret, Key{Tonic: pitchClassNames[rank][0], Mode: mode})
		}
	}
	return ret
}()

// Notes returns the MIDI numbers of every note of the key within the piano
// range, ascending.
func (k Key) Notes() []int {
	var ret []int
	for m := LowestPianoMIDI; m <= HighestPianoMIDI; m++ {
		if k.Contains(m) {
			ret = append(ret, m)
		}
	}
	return ret
}

// TonicMIDI returns the MIDI number of the tonic in TonicOctave.
func (k Key) TonicMIDI() int {
	return c0MIDI + NotesPerOctave*TonicOctave + MustPitchClass(k.Tonic).Rank
}

// StartingNote returns the root of the chord on the given roman numeral
// (I..VII), walking up the key from the tonic.
func (k Key) StartingNote(numeral string) (int, error) {
	offset, ok := numeralOffsets[strings.ToUpper(numeral)]
	if !ok {
		return 0, fmt.Errorf("%w: invalid numeral %q", ErrInvalidKey, numeral)
	}
	notes := k.Notes()
	i := slices.Index(notes, k.TonicMIDI())
	return notes[i+offset], nil
}

// StepChord builds a chord on root using the steps of the quality. The root
// has to belong to the key.
func (k Key) StepChord(root int, quality ChordQuality) ([]int, error) {
	if !k.Contains(root) || root < LowestPianoMIDI || root > HighestPianoMIDI {
		return nil, fmt.Errorf("%w: note %v not in key %v", ErrInvalidKey, NoteName(root), k.Name())
	}
	steps := quality.Steps()
	if steps == nil {
		return nil, fmt.Errorf("%w: invalid chord %q", ErrInvalidKey, quality)
	}
	ret := make([]int, len(steps))
	for i, s := range steps {
		ret[i] = root + s
	}
	return ret, nil
}

// FirstInversion rotates the lowest tone to the end.
func FirstInversion(notes []int) []int {
	if len(notes) == 0 {
		return nil
	}
	return append(slices.Clone(notes[1:]), notes[0])
}

// SecondInversion rotates the highest tone to the front.
func SecondInversion(notes []int) []int {
	if len(notes) == 0 {
		return nil
	}
	return append([]int{notes[len(notes)-1]}, notes[:len(notes)-1]...)
}

// Progression returns the I - V - vi - IV progression of the key, all major
// triads, with the voicings used for the generated accompaniment.
func (k Key) Progression() ([][]int, error) {
	type step struct {
		numeral string
		voicing func([]int) []int
	}
	steps := []step{
		{"I", nil},
		{"V", SecondInversion},
		{"VI", FirstInversion},
		{"IV", SecondInversion},
	}
	ret := make([][]int, 0, len(steps))
	for _, s := range steps {
		root, err := k.StartingNote(s.numeral)
		if err != nil {
			return nil, err
		}
		chord, err := k.StepChord(root, MajorTriad)
		if err != nil {
			return nil, err
		}
		if s.voicing != nil {
			chord = s.voicing(chord)
		}
		ret = append(ret, chord)
	}
	return ret, nil
}

// ParseNumeral parses a roman numeral chord symbol such as "I", "vi", "V7",
// "ii7" or "IV/1" (first inversion). Upper or lower case does not matter as
// the chord quality follows the key; the case is accepted for readability.
func ParseNumeral(s string) (degree int, positions []int, inversion int, err error) {
	positions = TriadPositions
	sym := s
	if i := strings.IndexByte(sym, '/'); i >= 0 {
		inv, err := strconv.Atoi(sym[i+1:])
		if err != nil {
			return 0, nil, 0, fmt.Errorf("%w: inversion of %q", ErrInvalidKey, s)
		}
		inversion = inv
		sym = sym[:i]
	}
	switch {
	case strings.HasSuffix(sym, "13"):
		positions, sym = ThirteenthPositions, strings.TrimSuffix(sym, "13")
	case strings.HasSuffix(sym, "11"):
		positions, sym = EleventhPositions, strings.TrimSuffix(sym, "11")
	case strings.HasSuffix(sym, "9"):
		positions, sym = NinthPositions, strings.TrimSuffix(sym, "9")
	case strings.HasSuffix(sym, "7"):
		positions, sym = SeventhPositions, strings.TrimSuffix(sym, "7")
	}
	offset, ok := numeralOffsets[strings.ToUpper(sym)]
	if !ok {
		return 0, nil, 0, fmt.Errorf("%w: invalid numeral %q", ErrInvalidKey, s)
	}
	return offset, positions, inversion, nil
}

// ProgressionOf builds the diatonic chords of the numerals in the given
// octave. Unlike Progression, chord qualities follow the key, so "ii" of C
// major is D minor.
func (k Key) ProgressionOf(octave int, numerals ...string) ([]Chord, error) {
	ret := make([]Chord, 0, len(numerals))
	for _, n := range numerals {
		degree, positions, inversion, err := ParseNumeral(n)
		if err != nil {
			return nil, err
		}
		chord, err := k.Chord(positions, degree, octave, inversion)
		if err != nil {
			return nil, fmt.Errorf("numeral %q: %w", n, err)
		}
		ret = append(ret, chord)
	}
	return ret, nil
}

// ChordFromMIDI converts MIDI numbers to a Chord.
func ChordFromMIDI(midi []int) (Chord, error) {
	notes := make([]Note, len(midi))
	for i, m := range midi {
		var err error
		if notes[i], err = NoteFromMIDI(m); err != nil {
			return Chord{}, err
		}
	}
	return Chord{Notes: notes}, nil
}

// AllOctaves returns the note in every octave, limited to A0..E7.
func AllOctaves(midi int) []int {
	var ret []int
	for m := wrap(midi, NotesPerOctave); m <= allOctavesCeiling; m += NotesPerOctave {
		if m >= LowestPianoMIDI {
			ret = append(ret, m)
		}
	}
	return ret
}

// RandomKey picks one of Keys.
func RandomKey(rng *rand.Rand) Key {
	return Keys[rng.Intn(len(Keys))]
}

// RandomNote picks a MIDI number of the key.
func (k Key) RandomNote(rng *rand.Rand) int {
	notes := k.Notes()
	return notes[rng.Intn(len(notes))]
}
