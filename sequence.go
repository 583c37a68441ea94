package m00sic

import (
	"errors"
	"fmt"
	"sort"

	"github.com/google/uuid"
)

type (
	// NoteSequence is a list of timed notes. Times are in seconds; Tempo is
	// only used when the sequence is converted to a format with beats, e.g.
	// MIDI files or ABC notation.
	NoteSequence struct {
		ID        string         `yaml:",omitempty"`
		Tempo     float64        `yaml:",omitempty"` // quarter notes per minute
		Notes     []SequenceNote `yaml:",flow"`
		TotalTime float64
	}

	// SequenceNote is one sounding note of a NoteSequence.
	SequenceNote struct {
		Pitch     int
		Velocity  int
		StartTime float64
		EndTime   float64
	}

	// PatternSpec places one note of a chord in time. StartTime is absolute
	// within the arrangement unless After is set, in which case the note
	// starts where the previous note of the pattern ended. The margins
	// shorten the sounding part of the note without affecting where the next
	// After note starts.
	PatternSpec struct {
		Index       int     `yaml:"index" json:"index"`
		StartTime   float64 `yaml:"start,omitempty" json:"start,omitempty"`
		After       bool    `yaml:"after,omitempty" json:"after,omitempty"`
		Duration    float64 `yaml:"duration" json:"duration"`
		StartMargin float64 `yaml:"startmargin,omitempty" json:"startmargin,omitempty"`
		EndMargin   float64 `yaml:"endmargin,omitempty" json:"endmargin,omitempty"`
		Transpose   int     `yaml:"transpose,omitempty" json:"transpose,omitempty"` // in octaves
		Velocity    int     `yaml:"velocity,omitempty" json:"velocity,omitempty"`   // 0 means DefaultVelocity
	}
)

// Durations, in whole notes.
const (
	Whole     = 1.0
	Half      = 1.0 / 2
	Quarter   = 1.0 / 4
	Eighth    = 1.0 / 8
	Sixteenth = 1.0 / 16
)

const (
	DefaultVelocity = 80
	DefaultTempo    = 120.0
)

var ErrInvalidSequence = errors.New("invalid note sequence")

// NewNoteSequence returns an empty sequence with a fresh ID.
func NewNoteSequence() NoteSequence {
	return NoteSequence{ID: uuid.NewString(), Tempo: DefaultTempo}
}

// ArrangeChord plays the notes of a chord in the given pattern.
func ArrangeChord(chord Chord, pattern []PatternSpec) (NoteSequence, error) {
	seq := NewNoteSequence()
	t := 0.0
	for i, ps := range pattern {
		if ps.Duration <= ps.StartMargin+ps.EndMargin {
			return NoteSequence{}, fmt.Errorf("%w: pattern note %d: duration %v does not exceed margins %v + %v", ErrInvalidSequence, i, ps.Duration, ps.StartMargin, ps.EndMargin)
		}
		if ps.Index < 0 || ps.Index >= len(chord.Notes) {
			return NoteSequence{}, fmt.Errorf("%w: pattern note %d: index %d, chord %v has %d notes", ErrInvalidSequence, i, ps.Index, chord, len(chord.Notes))
		}
		note, err := chord.Notes[ps.Index].Add(ps.Transpose * NotesPerOctave)
		if err != nil {
			return NoteSequence{}, fmt.Errorf("pattern note %d: %w", i, err)
		}
		start := ps.StartTime
		if ps.After {
			start = t
		}
		velocity := ps.Velocity
		if velocity == 0 {
			velocity = DefaultVelocity
		}
		seq.Notes = append(seq.Notes, SequenceNote{
			Pitch:     note.MIDI,
			Velocity:  velocity,
			StartTime: start + ps.StartMargin,
			EndTime:   start + ps.Duration - ps.EndMargin,
		})
		t = start + ps.Duration
		seq.TotalTime = max(seq.TotalTime, t)
	}
	return seq, nil
}

// Concat plays the sequences one after another. Each sequence occupies
// exactly its TotalTime, so trailing silence is kept.
func Concat(seqs ...NoteSequence) NoteSequence {
	ret := NewNoteSequence()
	if len(seqs) > 0 && seqs[0].Tempo > 0 {
		ret.Tempo = seqs[0].Tempo
	}
	t := 0.0
	for _, seq := range seqs {
		for _, n := range seq.Notes {
			n.StartTime += t
			n.EndTime += t
			ret.Notes = append(ret.Notes, n)
		}
		t += seq.TotalTime
	}
	ret.TotalTime = t
	return ret
}

// Stack plays the sequences simultaneously.
func Stack(seqs ...NoteSequence) NoteSequence {
	ret := NewNoteSequence()
	if len(seqs) > 0 && seqs[0].Tempo > 0 {
		ret.Tempo = seqs[0].Tempo
	}
	for _, seq := range seqs {
		ret.Notes = append(ret.Notes, seq.Notes...)
		ret.TotalTime = max(ret.TotalTime, seq.TotalTime)
	}
	return ret
}

// Repeat concatenates the sequence with itself count times.
func Repeat(seq NoteSequence, count int) NoteSequence {
	seqs := make([]NoteSequence, count)
	for i := range seqs {
		seqs[i] = seq
	}
	return Concat(seqs...)
}

// Pitches returns the pitches of the notes, in sequence order.
func (s NoteSequence) Pitches() []int {
	ret := make([]int, len(s.Notes))
	for i, n := range s.Notes {
		ret[i] = n.Pitch
	}
	return ret
}

// Scale multiplies all times by factor, e.g. to convert durations given in
// whole notes to seconds.
func (s NoteSequence) Scale(factor float64) NoteSequence {
	ret := s.Copy()
	for i := range ret.Notes {
		ret.Notes[i].StartTime *= factor
		ret.Notes[i].EndTime *= factor
	}
	ret.TotalTime *= factor
	return ret
}

// Copy makes a deep copy of a NoteSequence.
func (s NoteSequence) Copy() NoteSequence {
	notes := make([]SequenceNote, len(s.Notes))
	copy(notes, s.Notes)
	s.Notes = notes
	return s
}

// Sort orders the notes by start time, then by pitch.
func (s *NoteSequence) Sort() {
	sort.SliceStable(s.Notes, func(i, j int) bool {
		if s.Notes[i].StartTime != s.Notes[j].StartTime {
			return s.Notes[i].StartTime < s.Notes[j].StartTime
		}
		return s.Notes[i].Pitch < s.Notes[j].Pitch
	})
}

// End returns the latest note end, which can differ from TotalTime.
func (s NoteSequence) End() float64 {
	ret := 0.0
	for _, n := range s.Notes {
		ret = max(ret, n.EndTime)
	}
	return ret
}

// Validate checks that every note is a valid MIDI note with a positive
// length.
func (s NoteSequence) Validate() error {
	for i, n := range s.Notes {
		if n.Pitch < 0 || n.Pitch > 127 {
			return fmt.Errorf("%w: note %d has pitch %d", ErrInvalidSequence, i, n.Pitch)
		}
		if n.Velocity < 0 || n.Velocity > 127 {
			return fmt.Errorf("%w: note %d has velocity %d", ErrInvalidSequence, i, n.Velocity)
		}
		if n.StartTime < 0 || n.EndTime <= n.StartTime {
			return fmt.Errorf("%w: note %d spans [%v, %v]", ErrInvalidSequence, i, n.StartTime, n.EndTime)
		}
	}
	if s.TotalTime < 0 {
		return fmt.Errorf("%w: negative total time %v", ErrInvalidSequence, s.TotalTime)
	}
	return nil
}

// SecondsPerWhole returns the length of a whole note at the tempo of the
// sequence.
func (s NoteSequence) SecondsPerWhole() float64 {
	tempo := s.Tempo
	if tempo <= 0 {
		tempo = DefaultTempo
	}
	return 4 * 60 / tempo
}
