package sheet_test

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/cwolffff/m00sic"
	"github.com/cwolffff/m00sic/sheet"
	"github.com/google/go-cmp/cmp"
)

func sequence(totalTime float64, notes ...m00sic.SequenceNote) m00sic.NoteSequence {
	for i := range notes {
		if notes[i].Velocity == 0 {
			notes[i].Velocity = m00sic.DefaultVelocity
		}
	}
	return m00sic.NoteSequence{Tempo: 120, Notes: notes, TotalTime: totalTime}
}

func TestABCMelody(t *testing.T) {
	// at 120 bpm an eighth note lasts 0.25 seconds
	melody := sequence(2.5,
		m00sic.SequenceNote{Pitch: 60, StartTime: 0, EndTime: 0.5},
		m00sic.SequenceNote{Pitch: 62, StartTime: 0.5, EndTime: 1},
		m00sic.SequenceNote{Pitch: 64, StartTime: 1, EndTime: 2},
		m00sic.SequenceNote{Pitch: 61, StartTime: 2, EndTime: 2.25},
		m00sic.SequenceNote{Pitch: 61, StartTime: 2.25, EndTime: 2.5},
	)
	got, err := sheet.ABC(sheet.Options{Key: m00sic.MustKey("C")}, sheet.Voice{Name: "Melody", Sequence: melody})
	if err != nil {
		t.Fatalf("ABC failed: %v", err)
	}
	want := `X:1
T:C Major
M:4/4
L:1/8
Q:1/4=120
K:C
V:1 name="Melody"
C2 D2 E4 | ^C C z6 |]
`
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("ABC mismatch (-want +got):\n%s", diff)
	}
}

func TestABCHeader(t *testing.T) {
	got, err := sheet.ABC(sheet.Options{
		Index:    3,
		Title:    "  Etude  ",
		Composer: "m00sic",
		Key:      m00sic.MustKey("F# minor"),
		Tempo:    90,
	}, sheet.Voice{Sequence: sequence(0)}, sheet.Voice{Name: "Chords", Clef: "bass", Sequence: sequence(0)})
	if err != nil {
		t.Fatalf("ABC failed: %v", err)
	}
	want := `X:3
T:Etude
C:m00sic
M:4/4
L:1/8
Q:1/4=90
K:F#m
V:1 name="Voice 1"
z8 |]
V:2 name="Chords" clef=bass
z8 |]
`
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("ABC mismatch (-want +got):\n%s", diff)
	}
}

func TestABCNotation(t *testing.T) {
	tests := []struct {
		name  string
		key   string
		notes []m00sic.SequenceNote
		total float64
		want  string
	}{
		{
			name: "chord",
			key:  "C",
			notes: []m00sic.SequenceNote{
				{Pitch: 60, StartTime: 0, EndTime: 2},
				{Pitch: 64, StartTime: 0, EndTime: 2},
				{Pitch: 67, StartTime: 0, EndTime: 2},
			},
			total: 2,
			want:  "[CEG]8 |]",
		},
		{
			name: "octaves",
			key:  "C",
			notes: []m00sic.SequenceNote{
				{Pitch: 48, StartTime: 0, EndTime: 0.25},
				{Pitch: 36, StartTime: 0.25, EndTime: 0.5},
				{Pitch: 72, StartTime: 0.5, EndTime: 0.75},
				{Pitch: 84, StartTime: 0.75, EndTime: 1},
			},
			total: 1,
			want:  "C, C,, c c' z4 |]",
		},
		{
			name: "tie across bar line",
			key:  "C",
			notes: []m00sic.SequenceNote{
				{Pitch: 67, StartTime: 1.5, EndTime: 2.5},
			},
			total: 2.5,
			want:  "z6 G2- | G2 z6 |]",
		},
		{
			name: "flat key",
			key:  "F",
			notes: []m00sic.SequenceNote{
				{Pitch: 70, StartTime: 0, EndTime: 0.25},
				{Pitch: 71, StartTime: 0.25, EndTime: 0.5},
				{Pitch: 70, StartTime: 0.5, EndTime: 0.75},
			},
			total: 2,
			want:  "B =B _B z5 |]",
		},
		{
			name: "sharp key",
			key:  "D",
			notes: []m00sic.SequenceNote{
				{Pitch: 66, StartTime: 0, EndTime: 0.25},
				{Pitch: 65, StartTime: 0.25, EndTime: 0.5},
				{Pitch: 66, StartTime: 2, EndTime: 2.25},
			},
			total: 2.25,
			want:  "F =F z6 | F z7 |]",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := sheet.ABC(sheet.Options{Key: m00sic.MustKey(tt.key)}, sheet.Voice{Sequence: sequence(tt.total, tt.notes...)})
			if err != nil {
				t.Fatalf("ABC failed: %v", err)
			}
			lines := strings.Split(strings.TrimSpace(got), "\n")
			if last := lines[len(lines)-1]; last != tt.want {
				t.Fatalf("expected %q, got %q", tt.want, last)
			}
		})
	}
}

func TestABCLineBreaks(t *testing.T) {
	var notes []m00sic.SequenceNote
	for i := 0; i < 5; i++ {
		notes = append(notes, m00sic.SequenceNote{Pitch: 60, StartTime: float64(2 * i), EndTime: float64(2*i + 2)})
	}
	got, err := sheet.ABC(sheet.Options{Key: m00sic.MustKey("C"), BarsPerLine: 2}, sheet.Voice{Sequence: sequence(10, notes...)})
	if err != nil {
		t.Fatalf("ABC failed: %v", err)
	}
	want := "C8 | C8 |\nC8 | C8 |\nC8 |]\n"
	if !strings.HasSuffix(got, want) {
		t.Fatalf("expected body %q, got\n%s", want, got)
	}
}

func TestABCInvalidKey(t *testing.T) {
	if _, err := sheet.ABC(sheet.Options{Key: m00sic.Key{Tonic: "H"}}); err == nil {
		t.Fatal("expected an error for an invalid key")
	}
}

func TestNewFromTemplates(t *testing.T) {
	dir := t.TempDir()
	tmpl := `{{ .Key }}:{{ range .Voices }}{{ range .Lines }}{{ . }}{{ end }}{{ end }}`
	if err := os.WriteFile(filepath.Join(dir, "abc.abc"), []byte(tmpl), 0644); err != nil {
		t.Fatalf("could not write template: %v", err)
	}
	s, err := sheet.NewFromTemplates(dir)
	if err != nil {
		t.Fatalf("NewFromTemplates failed: %v", err)
	}
	got, err := s.ABC(sheet.Options{Key: m00sic.MustKey("Bb")}, sheet.Voice{Sequence: sequence(2,
		m00sic.SequenceNote{Pitch: 70, StartTime: 0, EndTime: 2},
	)})
	if err != nil {
		t.Fatalf("ABC failed: %v", err)
	}
	if got != "Bb:B8 |]" {
		t.Fatalf("expected %q, got %q", "Bb:B8 |]", got)
	}
}

// abcSignatures lists the sharps (positive) or flats (negative) of the keys
// an ABC reader knows.
var abcSignatures = map[string]int{
	"C": 0, "G": 1, "D": 2, "A": 3, "E": 4, "B": 5, "F#": 6, "C#": 7,
	"F": -1, "Bb": -2, "Eb": -3, "Ab": -4, "Db": -5, "Gb": -6, "Cb": -7,
	"Am": 0, "Em": 1, "Bm": 2, "F#m": 3, "C#m": 4, "G#m": 5, "D#m": 6, "A#m": 7,
	"Dm": -1, "Gm": -2, "Cm": -3, "Fm": -4, "Bbm": -5, "Ebm": -6, "Abm": -7,
}

// readABC returns the MIDI pitches an ABC reader plays for a tune with a
// single voice of single notes and rests.
func readABC(t *testing.T, abc string) []int {
	t.Helper()
	var sig int
	var body string
	for _, line := range strings.Split(strings.TrimSpace(abc), "\n") {
		switch {
		case strings.HasPrefix(line, "K:"):
			var ok bool
			if sig, ok = abcSignatures[strings.TrimPrefix(line, "K:")]; !ok {
				t.Fatalf("unknown key field %q", line)
			}
		case !strings.Contains(line, ":"):
			body += line + " "
		}
	}
	steps := map[byte]int{'C': 0, 'D': 2, 'E': 4, 'F': 5, 'G': 7, 'A': 9, 'B': 11}
	inKey := func(letter byte) int {
		if sig > 0 && strings.IndexByte("FCGDAEB"[:sig], letter) >= 0 {
			return 1
		}
		if sig < 0 && strings.IndexByte("BEADGCF"[:-sig], letter) >= 0 {
			return -1
		}
		return 0
	}
	var pitches []int
	bar := map[string]int{}
	for _, tok := range strings.Fields(body) {
		if strings.HasPrefix(tok, "|") {
			bar = map[string]int{}
			continue
		}
		if tok[0] == 'z' {
			continue
		}
		acc, explicit := 0, true
		switch tok[0] {
		case '^':
			acc = 1
		case '_':
			acc = -1
		case '=':
		default:
			explicit = false
		}
		if explicit {
			tok = tok[1:]
		}
		name := strings.TrimRight(tok, "0123456789-")
		letter := strings.ToUpper(name[:1])[0]
		octave := 4
		if name[0] >= 'a' {
			octave = 5
		}
		octave += strings.Count(name, "'") - strings.Count(name, ",")
		switch prev, ok := bar[name]; {
		case explicit:
			bar[name] = acc
		case ok:
			acc = prev
		default:
			acc = inKey(letter)
		}
		pitches = append(pitches, (octave+1)*12+steps[letter]+acc)
	}
	return pitches
}

func TestABCPitchesInEveryKey(t *testing.T) {
	for _, key := range m00sic.Keys {
		t.Run(key.Name(), func(t *testing.T) {
			var want []int
			for degree := 0; degree <= 7; degree++ {
				n, err := key.Note(degree, 4)
				if err != nil {
					t.Fatalf("Note failed: %v", err)
				}
				want = append(want, n.MIDI)
			}
			for p := 60; p < 76; p++ {
				want = append(want, p)
			}
			var notes []m00sic.SequenceNote
			for i, p := range want {
				notes = append(notes, m00sic.SequenceNote{Pitch: p, StartTime: float64(i) * 0.25, EndTime: float64(i+1) * 0.25})
			}
			abc, err := sheet.ABC(sheet.Options{Key: key}, sheet.Voice{Sequence: sequence(6, notes...)})
			if err != nil {
				t.Fatalf("ABC failed: %v", err)
			}
			if diff := cmp.Diff(want, readABC(t, abc)); diff != "" {
				t.Fatalf("pitches read back mismatch (-want +got):\n%s\n%s", diff, abc)
			}
		})
	}
}

func TestABCKeyField(t *testing.T) {
	tests := map[string]string{
		"C":        "K:C",
		"D#":       "K:Eb",
		"G#":       "K:Ab",
		"A#":       "K:Bb",
		"Db":       "K:Db",
		"C#":       "K:C#",
		"F#":       "K:F#",
		"Gb":       "K:Gb",
		"A# minor": "K:A#m",
		"Bb minor": "K:Bbm",
		"D# minor": "K:D#m",
		"Eb minor": "K:Ebm",
		"Db minor": "K:C#m",
		"Ab minor": "K:G#m",
	}
	for key, want := range tests {
		t.Run(key, func(t *testing.T) {
			abc, err := sheet.ABC(sheet.Options{Key: m00sic.MustKey(key)})
			if err != nil {
				t.Fatalf("ABC failed: %v", err)
			}
			if !strings.Contains(abc, "\n"+want+"\n") {
				t.Fatalf("expected %q in\n%s", want, abc)
			}
		})
	}
}
