package composition_test

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/cwolffff/m00sic"
	"github.com/cwolffff/m00sic/composition"
	"github.com/cwolffff/m00sic/synth"
	"github.com/google/go-cmp/cmp"
	"go.uber.org/goleak"
	"go.uber.org/zap/zaptest"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

const arpeggioYAML = `
name: arpeggio
key: C
numerals: [I, IV]
tempo: 120
instrument: organ
pattern:
  - {index: 0, duration: 0.25}
  - {index: 1, after: true, duration: 0.25}
  - {index: 2, after: true, duration: 0.25}
  - {index: 1, after: true, duration: 0.25, endmargin: 0.0625}
`

const inlineJSON = `{
	"key": "A",
	"mode": "minor",
	"repeats": 2,
	"instrument": {"waveform": "saw", "attack": 0.1, "decay": 0.1, "sustain": 0.5, "release": 0.2, "gain": 0.3}
}`

func TestParseYAML(t *testing.T) {
	c, err := composition.Parse([]byte(arpeggioYAML))
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}
	if c.Name != "arpeggio" || c.Instrument.Preset != "organ" || len(c.Pattern) != 4 {
		t.Fatalf("unexpected composition: %+v", c)
	}
	if !c.Pattern[3].After || c.Pattern[3].EndMargin != m00sic.Sixteenth {
		t.Fatalf("pattern was not parsed correctly: %+v", c.Pattern[3])
	}
	if diff := cmp.Diff([]string{"I", "IV"}, c.Numerals); diff != "" {
		t.Fatalf("numerals mismatch (-want +got):\n%s", diff)
	}
}

func TestParseJSON(t *testing.T) {
	c, err := composition.Parse([]byte(inlineJSON))
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}
	key, err := c.ResolveKey()
	if err != nil {
		t.Fatalf("ResolveKey failed: %v", err)
	}
	if key != m00sic.MustKey("A minor") {
		t.Fatalf("expected A minor, got %v", key.Name())
	}
	instr, err := c.Instrument.Resolve()
	if err != nil {
		t.Fatalf("Resolve failed: %v", err)
	}
	if instr.Waveform != synth.Saw || instr.Sustain != 0.5 {
		t.Fatalf("inline instrument was not parsed correctly: %+v", instr)
	}
}

func TestParseInvalid(t *testing.T) {
	if _, err := composition.Parse([]byte("key: [C\n")); !errors.Is(err, composition.ErrInvalidComposition) {
		t.Fatalf("expected ErrInvalidComposition, got %v", err)
	}
}

func TestLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "song.yml")
	if err := os.WriteFile(path, []byte("key: G\n"), 0644); err != nil {
		t.Fatalf("could not write composition: %v", err)
	}
	c, err := composition.Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if c.Name != path || c.Key != "G" {
		t.Fatalf("unexpected composition: %+v", c)
	}
	if _, err := composition.Load(filepath.Join(t.TempDir(), "missing.yml")); err == nil {
		t.Fatal("expected an error for a missing file")
	}
}

func TestBuildDefaults(t *testing.T) {
	c := composition.Composition{Key: "C"}
	arr, err := c.Build(context.Background(), zaptest.NewLogger(t))
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}
	// four block chords, one bar each, two seconds per bar at 120 bpm
	if arr.Sequence.TotalTime != 8 || len(arr.Sequence.Notes) != 12 {
		t.Fatalf("expected 12 notes in 8 seconds, got %v notes in %v seconds", len(arr.Sequence.Notes), arr.Sequence.TotalTime)
	}
	var first []int
	for _, n := range arr.Sequence.Notes {
		if n.StartTime == 0 {
			first = append(first, n.Pitch)
		}
	}
	if diff := cmp.Diff([]int{60, 64, 67}, first); diff != "" {
		t.Fatalf("first chord mismatch (-want +got):\n%s", diff)
	}
	if arr.Instrument.Name != synth.DefaultInstrument {
		t.Fatalf("expected the default instrument, got %v", arr.Instrument.Name)
	}
	if len(arr.Melody.Notes) != 0 {
		t.Fatal("no melody was configured, but one was generated")
	}
}

func TestBuildPattern(t *testing.T) {
	c, err := composition.Parse([]byte(arpeggioYAML))
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}
	arr, err := c.Build(context.Background(), nil)
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}
	if diff := cmp.Diff([]int{60, 64, 67, 64, 65, 69, 72, 69}, arr.Sequence.Pitches()); diff != "" {
		t.Fatalf("pitches mismatch (-want +got):\n%s", diff)
	}
	if arr.Sequence.TotalTime != 4 {
		t.Fatalf("expected 4 seconds, got %v", arr.Sequence.TotalTime)
	}
	if last := arr.Sequence.Notes[7]; last.StartTime != 3.5 || last.EndTime != 3.875 {
		t.Fatalf("last note spans [%v, %v], expected [3.5, 3.875]", last.StartTime, last.EndTime)
	}
}

func TestBuildRepeatsAndMelody(t *testing.T) {
	c := composition.Composition{
		Key:     "G",
		Repeats: 2,
		Melody:  &composition.Melody{Seed: 3},
	}
	arr, err := c.Build(context.Background(), zaptest.NewLogger(t))
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}
	if arr.Accompaniment.TotalTime != 16 {
		t.Fatalf("expected 16 seconds of accompaniment, got %v", arr.Accompaniment.TotalTime)
	}
	// eighth notes filling eight bars
	if len(arr.Melody.Notes) != 64 {
		t.Fatalf("expected 64 melody notes, got %v", len(arr.Melody.Notes))
	}
	if len(arr.Sequence.Notes) != len(arr.Accompaniment.Notes)+len(arr.Melody.Notes) {
		t.Fatal("sequence should stack accompaniment and melody")
	}
	key := m00sic.MustKey("G")
	for i, n := range arr.Melody.Notes {
		if !key.Contains(n.Pitch) {
			t.Fatalf("melody note %d (%v) is not in G major", i, m00sic.NoteName(n.Pitch))
		}
	}
	if err := arr.Sequence.Validate(); err != nil {
		t.Fatalf("built sequence is invalid: %v", err)
	}
}

func TestValidate(t *testing.T) {
	tests := map[string]composition.Composition{
		"key":        {Key: "H"},
		"mode":       {Key: "C", Mode: "dorian"},
		"numeral":    {Key: "C", Numerals: []string{"I", "VIII"}},
		"octave":     {Key: "C", Octave: 9},
		"repeats":    {Key: "C", Repeats: -1},
		"preset":     {Key: "C", Instrument: composition.InstrumentRef{Preset: "theremin"}},
		"margins":    {Key: "C", Pattern: []m00sic.PatternSpec{{Duration: 0.1, EndMargin: 0.1}}},
		"melodyspan": {Key: "C", Melody: &composition.Melody{Low: 80, High: 60}},
	}
	for name, c := range tests {
		t.Run(name, func(t *testing.T) {
			if err := c.Validate(); !errors.Is(err, composition.ErrInvalidComposition) {
				t.Fatalf("expected ErrInvalidComposition, got %v", err)
			}
		})
	}
}

func TestBuildPatternIndexOutOfChord(t *testing.T) {
	c := composition.Composition{Key: "C", Pattern: []m00sic.PatternSpec{{Index: 3, Duration: 1}}}
	if _, err := c.Build(context.Background(), nil); !errors.Is(err, m00sic.ErrInvalidSequence) {
		t.Fatalf("expected ErrInvalidSequence, got %v", err)
	}
}
