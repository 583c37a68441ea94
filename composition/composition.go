// Package composition reads arrangement files: a key, a chord progression
// written in roman numerals, a pattern that plays every chord, and
// optionally a generated melody on top.
package composition

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"os"

	"github.com/cwolffff/m00sic"
	"github.com/cwolffff/m00sic/optim"
	"github.com/cwolffff/m00sic/synth"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"
)

type (
	Composition struct {
		Name string `yaml:"name,omitempty" json:"name,omitempty"`
		// Key is e.g. "C", "Am" or "F# minor".
		Key string `yaml:"key" json:"key"`
		// Mode overrides the mode given in Key, if set.
		Mode     string   `yaml:"mode,omitempty" json:"mode,omitempty"`
		Octave   int      `yaml:"octave,omitempty" json:"octave,omitempty"`
		Numerals []string `yaml:"numerals,omitempty" json:"numerals,omitempty"`
		// Pattern plays each chord; empty plays every chord as a whole note
		// block chord.
		Pattern    []m00sic.PatternSpec `yaml:"pattern,omitempty" json:"pattern,omitempty"`
		Repeats    int                  `yaml:"repeats,omitempty" json:"repeats,omitempty"`
		Tempo      float64              `yaml:"tempo,omitempty" json:"tempo,omitempty"`
		Instrument InstrumentRef        `yaml:"instrument,omitempty" json:"instrument,omitempty"`
		Melody     *Melody              `yaml:"melody,omitempty" json:"melody,omitempty"`
	}

	// Melody configures the local search generating a melody over the
	// progression.
	Melody struct {
		// Length defaults to filling the progression with notes.
		Length       int            `yaml:"length,omitempty" json:"length,omitempty"`
		NoteDuration float64        `yaml:"noteduration,omitempty" json:"noteduration,omitempty"`
		Low          int            `yaml:"low,omitempty" json:"low,omitempty"`
		High         int            `yaml:"high,omitempty" json:"high,omitempty"`
		Seed         int64          `yaml:"seed,omitempty" json:"seed,omitempty"`
		Weights      *optim.Weights `yaml:"weights,omitempty" json:"weights,omitempty"`
	}

	// InstrumentRef is either the name of a preset or an inline instrument.
	InstrumentRef struct {
		Preset string
		Inline *synth.Instrument
	}

	// Arrangement is a built composition.
	Arrangement struct {
		Key           m00sic.Key
		Sequence      m00sic.NoteSequence
		Accompaniment m00sic.NoteSequence
		Melody        m00sic.NoteSequence // empty if no melody was configured
		Score         float64
		Instrument    synth.Instrument
	}
)

var DefaultNumerals = []string{"I", "V", "vi", "IV"}

var ErrInvalidComposition = errors.New("invalid composition")

// Load reads and parses a composition file.
func Load(path string) (Composition, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return Composition{}, fmt.Errorf("could not read composition %v: %w", path, err)
	}
	c, err := Parse(b)
	if err != nil {
		return Composition{}, fmt.Errorf("%v: %w", path, err)
	}
	if c.Name == "" {
		c.Name = path
	}
	return c, nil
}

// Parse accepts both .json and .yml contents.
func Parse(b []byte) (Composition, error) {
	var c Composition
	if errJSON := json.Unmarshal(b, &c); errJSON != nil {
		c = Composition{}
		if errYaml := yaml.Unmarshal(b, &c); errYaml != nil {
			return Composition{}, fmt.Errorf("%w: could not be parsed as .json (%v) or .yml (%v)", ErrInvalidComposition, errJSON, errYaml)
		}
	}
	return c, nil
}

// ResolveKey combines Key and Mode.
func (c *Composition) ResolveKey() (m00sic.Key, error) {
	key, err := m00sic.ParseKey(c.Key)
	if err != nil {
		return m00sic.Key{}, err
	}
	if c.Mode != "" {
		mode, err := m00sic.ParseMode(c.Mode)
		if err != nil {
			return m00sic.Key{}, err
		}
		key.Mode = mode
	}
	return key, nil
}

func (c *Composition) numerals() []string {
	if len(c.Numerals) == 0 {
		return DefaultNumerals
	}
	return c.Numerals
}

func (c *Composition) octave() int {
	if c.Octave == 0 {
		return m00sic.TonicOctave
	}
	return c.Octave
}

func (c *Composition) tempo() float64 {
	if c.Tempo == 0 {
		return m00sic.DefaultTempo
	}
	return c.Tempo
}

// Validate checks everything that can be checked without building the
// composition.
func (c *Composition) Validate() error {
	if _, err := c.ResolveKey(); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidComposition, err)
	}
	if o := c.octave(); o < m00sic.LowestPianoOctave || o > m00sic.HighestPianoOctave {
		return fmt.Errorf("%w: octave %d", ErrInvalidComposition, o)
	}
	for _, n := range c.numerals() {
		if _, _, _, err := m00sic.ParseNumeral(n); err != nil {
			return fmt.Errorf("%w: %v", ErrInvalidComposition, err)
		}
	}
	for i, ps := range c.Pattern {
		if ps.Duration <= ps.StartMargin+ps.EndMargin {
			return fmt.Errorf("%w: pattern note %d is shorter than its margins", ErrInvalidComposition, i)
		}
		if ps.Index < 0 {
			return fmt.Errorf("%w: pattern note %d has a negative index", ErrInvalidComposition, i)
		}
	}
	if c.Repeats < 0 || c.Tempo < 0 {
		return fmt.Errorf("%w: repeats and tempo cannot be negative", ErrInvalidComposition)
	}
	if _, err := c.Instrument.Resolve(); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidComposition, err)
	}
	if m := c.Melody; m != nil {
		if m.Length < 0 || m.NoteDuration < 0 {
			return fmt.Errorf("%w: melody length and note duration cannot be negative", ErrInvalidComposition)
		}
		if (m.Low != 0 || m.High != 0) && m.Low > m.High {
			return fmt.Errorf("%w: melody range [%d, %d]", ErrInvalidComposition, m.Low, m.High)
		}
	}
	return nil
}

// Build arranges the progression and, if configured, generates the melody.
func (c *Composition) Build(ctx context.Context, log *zap.Logger) (Arrangement, error) {
	if err := c.Validate(); err != nil {
		return Arrangement{}, err
	}
	if log == nil {
		log = zap.NewNop()
	}
	key, _ := c.ResolveKey()
	instr, _ := c.Instrument.Resolve()
	log = log.With(zap.String("composition", c.Name), zap.String("key", key.Name()))
	chords, err := key.ProgressionOf(c.octave(), c.numerals()...)
	if err != nil {
		return Arrangement{}, fmt.Errorf("%w: %v", ErrInvalidComposition, err)
	}
	tempo := c.tempo()
	secondsPerWhole := 4 * 60 / tempo
	var bars []m00sic.NoteSequence
	var timed []optim.TimedChord
	t := 0.0
	for i, chord := range chords {
		bar, err := m00sic.ArrangeChord(chord, c.patternFor(chord))
		if err != nil {
			return Arrangement{}, fmt.Errorf("chord %d (%v): %w", i, c.numerals()[i], err)
		}
		bar = bar.Scale(secondsPerWhole)
		bars = append(bars, bar)
		timed = append(timed, optim.TimedChord{Start: t, End: t + bar.TotalTime, Pitches: chord.MIDI()})
		t += bar.TotalTime
	}
	progression := m00sic.Concat(bars...)
	repeats := max(c.Repeats, 1)
	accompaniment := m00sic.Repeat(progression, repeats)
	accompaniment.Tempo = tempo
	for r := 1; r < repeats; r++ {
		for _, tc := range timed[:len(chords)] {
			offset := float64(r) * progression.TotalTime
			timed = append(timed, optim.TimedChord{Start: tc.Start + offset, End: tc.End + offset, Pitches: tc.Pitches})
		}
	}
	log.Debug("arranged progression",
		zap.Strings("numerals", c.numerals()),
		zap.Int("repeats", repeats),
		zap.Float64("seconds", accompaniment.TotalTime))

	arr := Arrangement{
		Key:           key,
		Sequence:      accompaniment,
		Accompaniment: accompaniment,
		Instrument:    instr,
	}
	if c.Melody == nil {
		return arr, nil
	}
	m := c.Melody
	noteDuration := m.NoteDuration
	if noteDuration == 0 {
		noteDuration = optim.DefaultNoteDuration
	}
	length := m.Length
	if length == 0 {
		length = int(math.Round(accompaniment.TotalTime / (noteDuration * secondsPerWhole)))
	}
	scorer := optim.NewScorer(key, timed)
	if m.Low != 0 || m.High != 0 {
		scorer.Low, scorer.High = m.Low, m.High
	}
	if m.Weights != nil {
		scorer.Weights = *m.Weights
	}
	scorer.Length = length
	res, err := optim.LocalSearch(ctx, optim.Options{
		Key:          key,
		Length:       length,
		NoteDuration: noteDuration,
		Tempo:        tempo,
		Scorer:       scorer,
		Low:          scorer.Low,
		High:         scorer.High,
		Seed:         m.Seed,
		Logger:       log,
	})
	if err != nil {
		return Arrangement{}, err
	}
	arr.Melody = res.Melody
	arr.Score = res.Score
	arr.Sequence = m00sic.Stack(accompaniment, res.Melody)
	arr.Sequence.Tempo = tempo
	return arr, nil
}

func (c *Composition) patternFor(chord m00sic.Chord) []m00sic.PatternSpec {
	if len(c.Pattern) > 0 {
		return c.Pattern
	}
	ret := make([]m00sic.PatternSpec, len(chord.Notes))
	for i := range ret {
		ret[i] = m00sic.PatternSpec{Index: i, Duration: m00sic.Whole, EndMargin: m00sic.Sixteenth}
	}
	return ret
}

// Resolve returns the inline instrument, or the preset, or the default
// preset if neither is set.
func (r InstrumentRef) Resolve() (synth.Instrument, error) {
	if r.Inline != nil {
		if err := r.Inline.Validate(); err != nil {
			return synth.Instrument{}, err
		}
		return *r.Inline, nil
	}
	name := r.Preset
	if name == "" {
		name = synth.DefaultInstrument
	}
	return synth.Preset(name)
}

func (r InstrumentRef) IsZero() bool {
	return r.Preset == "" && r.Inline == nil
}

func (r *InstrumentRef) UnmarshalYAML(value *yaml.Node) error {
	if value.Kind == yaml.ScalarNode {
		*r = InstrumentRef{}
		return value.Decode(&r.Preset)
	}
	var instr synth.Instrument
	if err := value.Decode(&instr); err != nil {
		return err
	}
	*r = InstrumentRef{Inline: &instr}
	return nil
}

func (r InstrumentRef) MarshalYAML() (any, error) {
	if r.Inline != nil {
		return r.Inline, nil
	}
	return r.Preset, nil
}

func (r *InstrumentRef) UnmarshalJSON(b []byte) error {
	var name string
	if err := json.Unmarshal(b, &name); err == nil {
		*r = InstrumentRef{Preset: name}
		return nil
	}
	var instr synth.Instrument
	if err := json.Unmarshal(b, &instr); err != nil {
		return err
	}
	*r = InstrumentRef{Inline: &instr}
	return nil
}

func (r InstrumentRef) MarshalJSON() ([]byte, error) {
	if r.Inline != nil {
		return json.Marshal(r.Inline)
	}
	return json.Marshal(r.Preset)
}
