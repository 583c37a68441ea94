package m00sic_test

import (
	"errors"
	"testing"

	"github.com/cwolffff/m00sic"
	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
)

var cMajor = m00sic.Chord{Notes: []m00sic.Note{m00sic.MustNote("C4"), m00sic.MustNote("E4"), m00sic.MustNote("G4")}}

var ignoreID = cmpopts.IgnoreFields(m00sic.NoteSequence{}, "ID", "Tempo")

func TestArrangeChordArpeggio(t *testing.T) {
	pattern := []m00sic.PatternSpec{
		{Index: 0, StartTime: 0, Duration: m00sic.Quarter},
		{Index: 1, After: true, Duration: m00sic.Quarter, Velocity: 100},
		{Index: 2, After: true, Duration: m00sic.Half, EndMargin: m00sic.Eighth},
		{Index: 0, StartTime: 0, Duration: m00sic.Whole, Transpose: -1},
	}
	seq, err := m00sic.ArrangeChord(cMajor, pattern)
	if err != nil {
		t.Fatalf("ArrangeChord failed: %v", err)
	}
	expected := m00sic.NoteSequence{
		Notes: []m00sic.SequenceNote{
			{Pitch: 60, Velocity: 80, StartTime: 0, EndTime: 0.25},
			{Pitch: 64, Velocity: 100, StartTime: 0.25, EndTime: 0.5},
			{Pitch: 67, Velocity: 80, StartTime: 0.5, EndTime: 0.875},
			{Pitch: 48, Velocity: 80, StartTime: 0, EndTime: 1},
		},
		TotalTime: 1,
	}
	if diff := cmp.Diff(expected, seq, ignoreID); diff != "" {
		t.Fatalf("arrangement mismatch (-want +got):\n%s", diff)
	}
	if seq.ID == "" {
		t.Fatal("arranged sequence should have an ID")
	}
}

func TestArrangeChordErrors(t *testing.T) {
	tests := map[string][]m00sic.PatternSpec{
		"margins":   {{Index: 0, Duration: 0.25, StartMargin: 0.125, EndMargin: 0.125}},
		"index":     {{Index: 3, Duration: 0.25}},
		"negative":  {{Index: -1, Duration: 0.25}},
		"transpose": {{Index: 0, Duration: 0.25, Transpose: 5}},
	}
	for name, pattern := range tests {
		t.Run(name, func(t *testing.T) {
			if _, err := m00sic.ArrangeChord(cMajor, pattern); err == nil {
				t.Fatal("ArrangeChord should have failed")
			}
		})
	}
	_, err := m00sic.ArrangeChord(cMajor, tests["index"])
	if !errors.Is(err, m00sic.ErrInvalidSequence) {
		t.Fatalf("expected ErrInvalidSequence, got %v", err)
	}
}

func TestConcatAndStack(t *testing.T) {
	a := m00sic.NoteSequence{Notes: []m00sic.SequenceNote{{Pitch: 60, Velocity: 80, StartTime: 0, EndTime: 0.5}}, TotalTime: 1}
	b := m00sic.NoteSequence{Notes: []m00sic.SequenceNote{{Pitch: 62, Velocity: 70, StartTime: 0.25, EndTime: 0.75}}, TotalTime: 0.75}
	concat := m00sic.Concat(a, b)
	expected := m00sic.NoteSequence{
		Notes: []m00sic.SequenceNote{
			{Pitch: 60, Velocity: 80, StartTime: 0, EndTime: 0.5},
			{Pitch: 62, Velocity: 70, StartTime: 1.25, EndTime: 1.75},
		},
		TotalTime: 1.75,
	}
	if diff := cmp.Diff(expected, concat, ignoreID); diff != "" {
		t.Fatalf("Concat mismatch (-want +got):\n%s", diff)
	}
	stack := m00sic.Stack(a, b)
	expected = m00sic.NoteSequence{
		Notes:     append(append([]m00sic.SequenceNote{}, a.Notes...), b.Notes...),
		TotalTime: 1,
	}
	if diff := cmp.Diff(expected, stack, ignoreID); diff != "" {
		t.Fatalf("Stack mismatch (-want +got):\n%s", diff)
	}
	if b.Notes[0].StartTime != 0.25 {
		t.Fatal("Concat should not modify its inputs")
	}
	if empty := m00sic.Stack(); len(empty.Notes) != 0 || empty.TotalTime != 0 {
		t.Fatalf("stacking nothing should give an empty sequence, got %+v", empty)
	}
}

func TestRepeatAndScale(t *testing.T) {
	a := m00sic.NoteSequence{Notes: []m00sic.SequenceNote{{Pitch: 60, Velocity: 80, StartTime: 0, EndTime: 0.5}}, TotalTime: 1}
	r := m00sic.Repeat(a, 3).Scale(2)
	if r.TotalTime != 6 {
		t.Fatalf("total time was %v, expected 6", r.TotalTime)
	}
	if diff := cmp.Diff([]int{60, 60, 60}, r.Pitches()); diff != "" {
		t.Fatalf("pitches mismatch (-want +got):\n%s", diff)
	}
	if r.Notes[2].StartTime != 4 || r.Notes[2].EndTime != 5 {
		t.Fatalf("third note spans [%v, %v], expected [4, 5]", r.Notes[2].StartTime, r.Notes[2].EndTime)
	}
}

func TestValidate(t *testing.T) {
	good := m00sic.NoteSequence{Notes: []m00sic.SequenceNote{{Pitch: 60, Velocity: 80, StartTime: 0, EndTime: 0.5}}, TotalTime: 1}
	if err := good.Validate(); err != nil {
		t.Fatalf("valid sequence failed to validate: %v", err)
	}
	bad := good.Copy()
	bad.Notes[0].EndTime = 0
	if err := bad.Validate(); !errors.Is(err, m00sic.ErrInvalidSequence) {
		t.Fatalf("zero-length note should be invalid, got %v", err)
	}
	bad = good.Copy()
	bad.Notes[0].Pitch = 128
	if err := bad.Validate(); err == nil {
		t.Fatal("pitch 128 should be invalid")
	}
}
