// Package sheet renders note sequences as ABC notation lead sheets.
//
// Sequences are quantized to an eighth note grid in 4/4. Notes starting on
// the same grid slot become a chord; a chord lasts until the next onset of
// the same voice, so overlapping material should be split into voices.
package sheet

import (
	"bytes"
	"embed"
	"fmt"
	"math"
	"path/filepath"
	"sort"
	"strings"
	"text/template"

	"github.com/Masterminds/sprig"
	"github.com/cwolffff/m00sic"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

type (
	Sheet struct {
		Template *template.Template
	}

	Voice struct {
		Name     string
		Clef     string // e.g. "treble" or "bass"; empty leaves it to the renderer
		Sequence m00sic.NoteSequence
	}

	Options struct {
		Index       int // X: field, the tune number
		Title       string
		Composer    string
		Key         m00sic.Key
		Tempo       float64 // defaults to the tempo of the first voice
		BarsPerLine int
	}

	templateData struct {
		Index    int
		Title    string
		Composer string
		Tempo    float64
		Key      string
		Voices   []templateVoice
	}

	templateVoice struct {
		Name  string
		Clef  string
		Lines []string
	}
)

const (
	unitsPerWhole = 8 // L:1/8
	unitsPerBar   = 8 // M:4/4
	templateName  = "abc.abc"
)

//go:embed templates/*
var templateFS embed.FS

// New returns a Sheet using the built-in template.
func New() (*Sheet, error) {
	tmpl, err := template.New("base").Funcs(sprig.TxtFuncMap()).ParseFS(templateFS, "templates/*.*")
	if err != nil {
		return nil, fmt.Errorf(`could not create templates: %v`, err)
	}
	return &Sheet{Template: tmpl}, nil
}

// NewFromTemplates parses the templates in a directory instead; the
// directory has to contain abc.abc.
func NewFromTemplates(templateDirectory string) (*Sheet, error) {
	globPtrn := filepath.Join(templateDirectory, "*.*")
	tmpl, err := template.New("base").Funcs(sprig.TxtFuncMap()).ParseGlob(globPtrn)
	if err != nil {
		return nil, fmt.Errorf(`could not create template based on directory "%v": %v`, templateDirectory, err)
	}
	return &Sheet{Template: tmpl}, nil
}

// ABC renders the voices with the built-in template.
func ABC(opts Options, voices ...Voice) (string, error) {
	s, err := New()
	if err != nil {
		return "", err
	}
	return s.ABC(opts, voices...)
}

// ABC renders the voices as one tune.
func (s *Sheet) ABC(opts Options, voices ...Voice) (string, error) {
	if _, err := m00sic.NewKey(opts.Key.Tonic, opts.Key.Mode); err != nil {
		return "", err
	}
	data := templateData{
		Index:    opts.Index,
		Title:    opts.Title,
		Composer: opts.Composer,
		Tempo:    opts.Tempo,
	}
	if data.Index <= 0 {
		data.Index = 1
	}
	if data.Title == "" {
		data.Title = cases.Title(language.English).String(opts.Key.Name())
	}
	if data.Tempo <= 0 && len(voices) > 0 {
		data.Tempo = voices[0].Sequence.Tempo
	}
	if data.Tempo <= 0 {
		data.Tempo = m00sic.DefaultTempo
	}
	barsPerLine := opts.BarsPerLine
	if barsPerLine <= 0 {
		barsPerLine = 4
	}
	unit := 4 * 60 / data.Tempo / unitsPerWhole
	sig := signature(opts.Key)
	data.Key = abcKey(opts.Key.Mode, sig)
	for _, v := range voices {
		bars := voiceBars(v.Sequence, unit, sig)
		data.Voices = append(data.Voices, templateVoice{
			Name:  v.Name,
			Clef:  v.Clef,
			Lines: lines(bars, barsPerLine),
		})
	}
	var buf bytes.Buffer
	if err := s.Template.ExecuteTemplate(&buf, templateName, data); err != nil {
		return "", fmt.Errorf(`could not execute template "%v": %v`, templateName, err)
	}
	return buf.String(), nil
}

func lines(bars []string, barsPerLine int) []string {
	var ret []string
	for i := 0; i < len(bars); i += barsPerLine {
		end := min(i+barsPerLine, len(bars))
		line := strings.Join(bars[i:end], " | ")
		if end == len(bars) {
			line += " |]"
		} else {
			line += " |"
		}
		ret = append(ret, line)
	}
	return ret
}

type chunk struct {
	start, end int
	pitches    []int
}

func voiceBars(seq m00sic.NoteSequence, unit float64, sig int) []string {
	slot := func(t float64) int { return int(math.Round(t / unit)) }
	byStart := map[int]*chunk{}
	for _, n := range seq.Notes {
		s, e := slot(n.StartTime), slot(n.EndTime)
		if e <= s {
			e = s + 1
		}
		c, ok := byStart[s]
		if !ok {
			c = &chunk{start: s, end: e}
			byStart[s] = c
		}
		c.end = max(c.end, e)
		c.pitches = append(c.pitches, n.Pitch)
	}
	chunks := make([]*chunk, 0, len(byStart))
	for _, c := range byStart {
		sort.Ints(c.pitches)
		chunks = append(chunks, c)
	}
	sort.Slice(chunks, func(i, j int) bool { return chunks[i].start < chunks[j].start })

	w := &barWriter{sig: sig}
	for i, c := range chunks {
		if c.start > w.pos {
			w.emit(nil, c.start-w.pos)
		}
		end := c.end
		if i+1 < len(chunks) && chunks[i+1].start < end {
			end = chunks[i+1].start
		}
		w.emit(c.pitches, end-c.start)
	}
	if total := slot(seq.TotalTime); total > w.pos {
		w.emit(nil, total-w.pos)
	}
	if rem := w.pos % unitsPerBar; rem != 0 || w.pos == 0 {
		w.emit(nil, unitsPerBar-rem)
	}
	return w.bars
}

// barWriter splits notes at bar lines and keeps track of the accidentals
// in effect in the current bar.
type barWriter struct {
	sig         int
	pos         int
	bars        []string
	tokens      []string
	accidentals map[string]int
}

func (w *barWriter) emit(pitches []int, length int) {
	for length > 0 {
		take := min(length, unitsPerBar-w.pos%unitsPerBar)
		length -= take
		token := w.token(pitches, take)
		if length > 0 && pitches != nil {
			token += "-"
		}
		w.tokens = append(w.tokens, token)
		w.pos += take
		if w.pos%unitsPerBar == 0 {
			w.bars = append(w.bars, strings.Join(w.tokens, " "))
			w.tokens = nil
			w.accidentals = nil
		}
	}
}

func (w *barWriter) token(pitches []int, length int) string {
	suffix := ""
	if length != 1 {
		suffix = fmt.Sprint(length)
	}
	if len(pitches) == 0 {
		return "z" + suffix
	}
	if w.accidentals == nil {
		w.accidentals = map[string]int{}
	}
	names := make([]string, len(pitches))
	for i, p := range pitches {
		names[i] = w.pitchName(p)
	}
	if len(names) == 1 {
		return names[0] + suffix
	}
	return "[" + strings.Join(names, "") + "]" + suffix
}

var naturalLetters = map[int]string{0: "C", 2: "D", 4: "E", 5: "F", 7: "G", 9: "A", 11: "B"}

func (w *barWriter) pitchName(p int) string {
	rank := (p%12 + 12) % 12
	octave := p/12 - 1
	letter, acc := naturalLetters[rank], 0
	if letter == "" {
		if w.sig >= 0 {
			letter, acc = naturalLetters[rank-1], 1
		} else {
			letter, acc = naturalLetters[rank+1], -1
		}
	}
	name := letter
	switch {
	case octave >= 5:
		name = strings.ToLower(letter) + strings.Repeat("'", octave-5)
	case octave < 4:
		name = letter + strings.Repeat(",", 4-octave)
	}
	current, ok := w.accidentals[name]
	if !ok {
		current = keyAccidental(letter, w.sig)
	}
	mark := ""
	if current != acc {
		mark = [...]string{"_", "=", "^"}[acc+1]
		w.accidentals[name] = acc
	}
	return mark + name
}

func keyAccidental(letter string, sig int) int {
	switch {
	case sig > 0 && strings.Contains("FCGDAEB"[:sig], letter):
		return 1
	case sig < 0 && strings.Contains("BEADGCF"[:-sig], letter):
		return -1
	}
	return 0
}

// signatureOfMajor maps the rank of a major tonic to its number of sharps
// (positive) or flats (negative).
var signatureOfMajor = map[int]int{0: 0, 7: 1, 2: 2, 9: 3, 4: 4, 11: 5, 6: 6, 1: -5, 8: -4, 3: -3, 10: -2, 5: -1}

// Key names by signature, from 6 flats to 7 sharps.
var (
	majorKeyNames = [...]string{"Gb", "Db", "Ab", "Eb", "Bb", "F", "C", "G", "D", "A", "E", "B", "F#", "C#"}
	minorKeyNames = [...]string{"Eb", "Bb", "F", "C", "G", "D", "A", "E", "B", "F#", "C#", "G#", "D#", "A#"}
)

// signature returns the sharps or flats of the key. The given spelling
// decides between enharmonic keys with six or seven accidentals; any other
// key uses the signature with the fewest, so D# major is written as Eb
// major.
func signature(k m00sic.Key) int {
	rank := m00sic.MustPitchClass(k.Tonic).Rank
	if k.Mode == m00sic.Minor {
		rank = (rank + 3) % 12
	}
	sig := signatureOfMajor[rank]
	switch {
	case rank == 6 && strings.Contains(k.Tonic, "b"):
		sig = -6
	case rank == 1 && strings.Contains(k.Tonic, "#"):
		sig = 7
	}
	return sig
}

// abcKey names the key whose signature is sig, which may be an enharmonic
// respelling of the key itself.
func abcKey(mode m00sic.Mode, sig int) string {
	if mode == m00sic.Minor {
		return minorKeyNames[sig+6] + "m"
	}
	return majorKeyNames[sig+6]
}
