package midifile_test

import (
	"bytes"
	"path/filepath"
	"testing"

	"github.com/cwolffff/m00sic"
	"github.com/cwolffff/m00sic/midifile"
	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
	"gitlab.com/gomidi/midi/v2"
	"gitlab.com/gomidi/midi/v2/smf"
)

func testSequence() m00sic.NoteSequence {
	return m00sic.NoteSequence{
		Tempo: 90,
		Notes: []m00sic.SequenceNote{
			{Pitch: 60, Velocity: 80, StartTime: 0, EndTime: 0.5},
			{Pitch: 64, Velocity: 90, StartTime: 0, EndTime: 1},
			{Pitch: 60, Velocity: 70, StartTime: 0.5, EndTime: 1},
			{Pitch: 67, Velocity: 100, StartTime: 1, EndTime: 2},
		},
		TotalTime: 2.5,
	}
}

var approx = cmp.Options{
	cmpopts.EquateApprox(0, 1e-2),
	cmpopts.IgnoreFields(m00sic.NoteSequence{}, "ID"),
}

func TestWriteRead(t *testing.T) {
	seq := testSequence()
	var buf bytes.Buffer
	if err := midifile.Write(&buf, seq); err != nil {
		t.Fatalf("Write failed: %v", err)
	}
	got, err := midifile.Read(&buf)
	if err != nil {
		t.Fatalf("Read failed: %v", err)
	}
	if diff := cmp.Diff(seq, got, approx); diff != "" {
		t.Fatalf("sequence changed in MIDI round trip (-want +got):\n%s", diff)
	}
}

func TestWriteFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "generated.mid")
	if err := midifile.WriteFile(path, testSequence()); err != nil {
		t.Fatalf("WriteFile failed: %v", err)
	}
	got, err := midifile.ReadFile(path)
	if err != nil {
		t.Fatalf("ReadFile failed: %v", err)
	}
	if len(got.Notes) != 4 {
		t.Fatalf("expected 4 notes, got %v", len(got.Notes))
	}
	if _, err := midifile.ReadFile(filepath.Join(t.TempDir(), "missing.mid")); err == nil {
		t.Fatal("reading a missing file should fail")
	}
}

func TestWriteRejectsInvalidSequence(t *testing.T) {
	seq := testSequence()
	seq.Notes[0].Pitch = 200
	if err := midifile.Write(&bytes.Buffer{}, seq); err == nil {
		t.Fatal("Write should reject pitch 200")
	}
}

func TestReadTempoChangeAndRunningNotes(t *testing.T) {
	s := smf.NewSMF1()
	s.TimeFormat = smf.MetricTicks(96)
	var tr smf.Track
	tr.Add(0, smf.MetaTempo(60))
	tr.Add(0, midi.NoteOn(1, 50, 64))
	tr.Add(96, midi.NoteOn(1, 50, 0)) // note-on with zero velocity releases
	tr.Add(0, smf.MetaTempo(120))
	tr.Add(0, midi.NoteOn(1, 52, 64))
	tr.Add(96, midi.NoteOn(1, 55, 64))
	tr.Close(96) // 52 and 55 are never released
	if err := s.Add(tr); err != nil {
		t.Fatalf("could not add track: %v", err)
	}
	var buf bytes.Buffer
	if _, err := s.WriteTo(&buf); err != nil {
		t.Fatalf("could not write test file: %v", err)
	}
	got, err := midifile.Read(&buf)
	if err != nil {
		t.Fatalf("Read failed: %v", err)
	}
	expected := m00sic.NoteSequence{
		Tempo: 60,
		Notes: []m00sic.SequenceNote{
			{Pitch: 50, Velocity: 64, StartTime: 0, EndTime: 1},
			{Pitch: 52, Velocity: 64, StartTime: 1, EndTime: 2},
			{Pitch: 55, Velocity: 64, StartTime: 1.5, EndTime: 2},
		},
		TotalTime: 2,
	}
	if diff := cmp.Diff(expected, got, approx); diff != "" {
		t.Fatalf("decoded sequence mismatch (-want +got):\n%s", diff)
	}
}
