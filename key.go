package m00sic

import (
	"errors"
	"fmt"
	"strings"
)

type (
	// Mode selects the interval structure of a Key.
	Mode int

	// Key is a tonic and a mode. The tonic keeps the spelling it was created
	// with, so notes computed from the tonic (e.g. Key.Note with degree 0)
	// keep it too.
	Key struct {
		Tonic string
		Mode  Mode
	}
)

const (
	Major Mode = iota
	Minor
)

var ErrInvalidKey = errors.New("invalid key")

var modeIntervals = [...][]int{
	Major: {0, 2, 4, 5, 7, 9, 11},
	Minor: {0, 2, 3, 5, 7, 8, 10},
}

var modeNames = [...]string{
	Major: "major",
	Minor: "minor",
}

// Chord shapes as scale degree offsets from the root.
var (
	TriadPositions      = []int{0, 2, 4}
	SeventhPositions    = []int{0, 2, 4, 6}
	NinthPositions      = []int{0, 2, 4, 6, 8}
	EleventhPositions   = []int{0, 2, 4, 6, 8, 10}
	ThirteenthPositions = []int{0, 2, 4, 6, 8, 10, 12}
)

func (m Mode) String() string {
	if m < 0 || int(m) >= len(modeNames) {
		return fmt.Sprintf("Mode(%d)", int(m))
	}
	return modeNames[m]
}

// ParseMode accepts "major"/"maj"/"" and "minor"/"min"/"m".
func ParseMode(s string) (Mode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "major", "maj", "ionian":
		return Major, nil
	case "minor", "min", "m", "aeolian":
		return Minor, nil
	}
	return 0, fmt.Errorf("%w: unknown mode %q", ErrInvalidKey, s)
}

// MarshalText and UnmarshalText allow using Mode in yaml and json documents.
func (m Mode) MarshalText() ([]byte, error) {
	return []byte(m.String()), nil
}

func (m *Mode) UnmarshalText(text []byte) error {
	mode, err := ParseMode(string(text))
	if err != nil {
		return err
	}
	*m = mode
	return nil
}

// NewKey validates the tonic and mode.
func NewKey(tonic string, mode Mode) (Key, error) {
	if !IsPitchClass(tonic) {
		return Key{}, fmt.Errorf("%w: tonic %q", ErrInvalidKey, tonic)
	}
	if mode < 0 || int(mode) >= len(modeIntervals) {
		return Key{}, fmt.Errorf("%w: %v", ErrInvalidKey, mode)
	}
	return Key{Tonic: tonic, Mode: mode}, nil
}

// ParseKey parses strings like "C", "Am", "F# minor" or "Bb major".
func ParseKey(s string) (Key, error) {
	s = strings.TrimSpace(s)
	fields := strings.Fields(s)
	switch len(fields) {
	case 1:
		tonic := fields[0]
		if strings.HasSuffix(tonic, "m") && IsPitchClass(strings.TrimSuffix(tonic, "m")) {
			return NewKey(strings.TrimSuffix(tonic, "m"), Minor)
		}
		return NewKey(tonic, Major)
	case 2:
		mode, err := ParseMode(fields[1])
		if err != nil {
			return Key{}, err
		}
		return NewKey(fields[0], mode)
	}
	return Key{}, fmt.Errorf("%w: %q", ErrInvalidKey, s)
}

// MustKey is like ParseKey but panics on error.
func MustKey(s string) Key {
	k, err := ParseKey(s)
	if err != nil {
		panic(err)
	}
	return k
}

// Intervals returns the semitone offsets of the scale degrees from the tonic.
func (k Key) Intervals() []int {
	return modeIntervals[k.Mode]
}

// PitchClasses returns the pitch classes of the scale, starting from the
// tonic. Like every computed pitch class they use sharp spellings, so the
// first pitch class of Bb major is A#.
func (k Key) PitchClasses() []PitchClass {
	tonic := MustPitchClass(k.Tonic)
	intervals := k.Intervals()
	ret := make([]PitchClass, len(intervals))
	for i, interval := range intervals {
		ret[i] = tonic.Add(interval)
	}
	return ret
}

// Contains reports whether the MIDI number belongs to the scale.
func (k Key) Contains(midi int) bool {
	rank := wrap(midi-c0MIDI-MustPitchClass(k.Tonic).Rank, NotesPerOctave)
	for _, interval := range k.Intervals() {
		if interval == rank {
			return true
		}
	}
	return false
}

// Interval returns the semitone offset of a scale degree from the tonic.
// Degree 0 is the tonic; degrees beyond the scale (or negative) wrap into
// the neighbouring octaves.
func (k Key) Interval(degree int) int {
	intervals := k.Intervals()
	n := len(intervals)
	octave := degree / n
	degree %= n
	if degree < 0 {
		degree += n
		octave--
	}
	return intervals[degree] + octave*NotesPerOctave
}

// Note returns the note of the scale degree, counting from the tonic in the
// given octave. The note is spelled with sharps, the tonic included.
func (k Key) Note(degree, octave int) (Note, error) {
	start, err := ParseNote(fmt.Sprintf("%s%d", k.Tonic, octave))
	if err != nil {
		return Note{}, err
	}
	return start.Add(k.Interval(degree))
}

// Chord stacks the scale degrees degree+position for each position.
// Positive inversions move the lowest note up an octave, repeatedly;
// negative inversions move the highest note down an octave and make it the
// lowest.
func (k Key) Chord(positions []int, degree, octave, inversion int) (Chord, error) {
	notes := make([]Note, len(positions))
	for i, p := range positions {
		var err error
		if notes[i], err = k.Note(degree+p, octave); err != nil {
			return Chord{}, fmt.Errorf("chord on degree %d of %v: %w", degree, k, err)
		}
	}
	if len(notes) == 0 {
		return Chord{}, nil
	}
	for i := 0; i < inversion; i++ {
		up, err := notes[0].Add(NotesPerOctave)
		if err != nil {
			return Chord{}, fmt.Errorf("inversion %d: %w", inversion, err)
		}
		notes = append(notes[1:], up)
	}
	for i := 0; i > inversion; i-- {
		down, err := notes[len(notes)-1].Sub(NotesPerOctave)
		if err != nil {
			return Chord{}, fmt.Errorf("inversion %d: %w", inversion, err)
		}
		notes = append([]Note{down}, notes[:len(notes)-1]...)
	}
	return Chord{Notes: notes}, nil
}

func (k Key) Triad(degree, octave, inversion int) (Chord, error) {
	return k.Chord(TriadPositions, degree, octave, inversion)
}

func (k Key) Seventh(degree, octave, inversion int) (Chord, error) {
	return k.Chord(SeventhPositions, degree, octave, inversion)
}

func (k Key) Ninth(degree, octave, inversion int) (Chord, error) {
	return k.Chord(NinthPositions, degree, octave, inversion)
}

func (k Key) Eleventh(degree, octave, inversion int) (Chord, error) {
	return k.Chord(EleventhPositions, degree, octave, inversion)
}

func (k Key) Thirteenth(degree, octave, inversion int) (Chord, error) {
	return k.Chord(ThirteenthPositions, degree, octave, inversion)
}

// Name returns e.g. "F# minor".
func (k Key) Name() string {
	return k.Tonic + " " + k.Mode.String()
}

// String lists the scale, e.g. "MajorKey(C, D, E, F, G, A, B)".
func (k Key) String() string {
	pcs := k.PitchClasses()
	names := make([]string, len(pcs))
	for i, pc := range pcs {
		names[i] = pc.Name
	}
	prefix := "MajorKey"
	if k.Mode == Minor {
		prefix = "MinorKey"
	}
	return prefix + "(" + strings.Join(names, ", ") + ")"
}
