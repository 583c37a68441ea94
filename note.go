package m00sic

import (
	"fmt"
	"strconv"
)

type (
	// Note is a pitch class followed by an octave, e.g. "A5", "C#4" or
	// "Gb3". Notes parsed from a name keep their spelling; notes computed
	// from MIDI numbers are spelled with sharps.
	Note struct {
		Name       string
		PitchClass PitchClass
		Octave     int
		MIDI       int
	}

	// Chord is just an ordered list of notes, lowest voice first in the
	// usual case but nothing enforces that.
	Chord struct {
		Notes []Note
	}
)

// ParseNote parses a note name. The octave is the trailing number of the
// name and has to be within the piano octaves 0..8.
func ParseNote(name string) (Note, error) {
	i := len(name)
	for i > 0 && name[i-1] >= '0' && name[i-1] <= '9' {
		i--
	}
	if i == len(name) {
		return Note{}, fmt.Errorf("%w: %q must contain an octave", ErrInvalidNote, name)
	}
	octave, err := strconv.Atoi(name[i:])
	if err != nil {
		return Note{}, fmt.Errorf("%w: %q: %v", ErrInvalidNote, name, err)
	}
	if octave < LowestPianoOctave || octave > HighestPianoOctave {
		return Note{}, fmt.Errorf("%w: octave %d of %q not in [%d, %d]", ErrInvalidNote, octave, name, LowestPianoOctave, HighestPianoOctave)
	}
	pc, err := ParsePitchClass(name[:i])
	if err != nil {
		return Note{}, fmt.Errorf("%w: %q: %v", ErrInvalidNote, name, err)
	}
	return Note{
		Name:       name,
		PitchClass: pc,
		Octave:     octave,
		MIDI:       c0MIDI + NotesPerOctave*octave + pc.Rank,
	}, nil
}

// MustNote is like ParseNote but panics if the name is invalid.
func MustNote(name string) Note {
	n, err := ParseNote(name)
	if err != nil {
		panic(err)
	}
	return n
}

// NoteFromMIDI returns the note for a MIDI number in the piano range.
func NoteFromMIDI(midi int) (Note, error) {
	if midi < LowestPianoMIDI || midi > HighestPianoMIDI {
		return Note{}, fmt.Errorf("%w: %d not in [%d, %d]", ErrOutOfRange, midi, LowestPianoMIDI, HighestPianoMIDI)
	}
	octave := (midi - c0MIDI) / NotesPerOctave
	pc := PitchClassOfRank(midi - c0MIDI)
	return Note{
		Name:       fmt.Sprintf("%s%d", pc.Name, octave),
		PitchClass: pc,
		Octave:     octave,
		MIDI:       midi,
	}, nil
}

// NoteName returns the sharp spelling of any MIDI number at or above C0,
// without the piano range restriction of NoteFromMIDI.
func NoteName(midi int) string {
	if midi < c0MIDI {
		return fmt.Sprintf("MIDI%d", midi)
	}
	return fmt.Sprintf("%s%d", PitchClassOfRank(midi-c0MIDI).Name, (midi-c0MIDI)/NotesPerOctave)
}

// Add transposes the note by semitones. The result must stay within the
// piano range.
func (n Note) Add(semitones int) (Note, error) {
	ret, err := NoteFromMIDI(n.MIDI + semitones)
	if err != nil {
		return Note{}, fmt.Errorf("%v + %d: %w", n.Name, semitones, err)
	}
	return ret, nil
}

// Sub transposes the note down by semitones.
func (n Note) Sub(semitones int) (Note, error) {
	return n.Add(-semitones)
}

// Equal compares the spelling too: A#4 and Bb4 sound the same but are not
// equal.
func (n Note) Equal(other Note) bool {
	return n == other
}

func (n Note) String() string {
	return n.Name
}

// MIDI returns the MIDI numbers of the notes in the chord.
func (c Chord) MIDI() []int {
	ret := make([]int, len(c.Notes))
	for i, n := range c.Notes {
		ret[i] = n.MIDI
	}
	return ret
}

// Transpose returns a copy of the chord with every note moved by semitones.
func (c Chord) Transpose(semitones int) (Chord, error) {
	notes := make([]Note, len(c.Notes))
	for i, n := range c.Notes {
		var err error
		if notes[i], err = n.Add(semitones); err != nil {
			return Chord{}, err
		}
	}
	return Chord{Notes: notes}, nil
}

// Copy makes a deep copy of a Chord.
func (c Chord) Copy() Chord {
	notes := make([]Note, len(c.Notes))
	copy(notes, c.Notes)
	return Chord{Notes: notes}
}

func (c Chord) String() string {
	s := "["
	for i, n := range c.Notes {
		if i > 0 {
			s += " "
		}
		s += n.Name
	}
	return s + "]"
}
