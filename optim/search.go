// Package optim generates melodies by optimizing a value function over note
// sequences.
//
// The optimizer is a greedy local search: starting from an empty monophonic
// sequence with fixed note lengths, every step scores all sequences that
// have one more note at the end and keeps the best one, until the sequence
// has the desired length.
package optim

import (
	"context"
	"errors"
	"fmt"
	"math"
	"math/rand"
	"runtime"

	"github.com/cwolffff/m00sic"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// Default melodic range, C4..C6.
const (
	DefaultLow  = 60
	DefaultHigh = 84
)

const (
	DefaultLength       = 32
	DefaultNoteDuration = m00sic.Eighth
)

var ErrInvalidOptions = errors.New("invalid search options")

type (
	Options struct {
		Key m00sic.Key
		// Length is the number of melody notes to generate.
		Length int
		// NoteDuration is the length of every melody note, in whole notes.
		NoteDuration float64
		Tempo        float64
		// IncludeChords adds the I-V-vi-IV progression of the key under the
		// melody, one chord per bar; the melody is scored against it.
		IncludeChords bool
		// Scorer defaults to NewScorer over the key and chords.
		Scorer Scorer
		// Low and High bound the candidate pitches, inclusive.
		Low, High int
		// Seed of the generator used to break ties.
		Seed    int64
		Workers int
		Logger  *zap.Logger
	}

	Result struct {
		// Sequence is the melody, stacked with the accompaniment when chords
		// were included.
		Sequence      m00sic.NoteSequence
		Melody        m00sic.NoteSequence
		Accompaniment m00sic.NoteSequence
		Score         float64
	}
)

func (o *Options) setDefaults() {
	if o.Length == 0 {
		o.Length = DefaultLength
	}
	if o.NoteDuration == 0 {
		o.NoteDuration = DefaultNoteDuration
	}
	if o.Tempo == 0 {
		o.Tempo = m00sic.DefaultTempo
	}
	if o.Low == 0 && o.High == 0 {
		o.Low, o.High = DefaultLow, DefaultHigh
	}
	if o.Workers <= 0 {
		o.Workers = runtime.GOMAXPROCS(0)
	}
	if o.Logger == nil {
		o.Logger = zap.NewNop()
	}
}

func (o *Options) validate() error {
	if _, err := m00sic.NewKey(o.Key.Tonic, o.Key.Mode); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidOptions, err)
	}
	if o.Length < 0 {
		return fmt.Errorf("%w: negative length", ErrInvalidOptions)
	}
	if o.NoteDuration <= 0 || o.Tempo <= 0 {
		return fmt.Errorf("%w: note duration and tempo must be positive", ErrInvalidOptions)
	}
	if o.Low < 0 || o.High > 127 || o.Low > o.High {
		return fmt.Errorf("%w: pitch range [%d, %d]", ErrInvalidOptions, o.Low, o.High)
	}
	return nil
}

// LocalSearch greedily builds a melody that scores high according to the
// scorer of the options.
func LocalSearch(ctx context.Context, opts Options) (Result, error) {
	opts.setDefaults()
	if err := opts.validate(); err != nil {
		return Result{}, err
	}
	log := opts.Logger.With(zap.String("key", opts.Key.Name()))
	rng := rand.New(rand.NewSource(opts.Seed))
	secondsPerWhole := 4 * 60 / opts.Tempo
	noteSeconds := opts.NoteDuration * secondsPerWhole
	melodySeconds := float64(opts.Length) * noteSeconds

	var result Result
	var chords []TimedChord
	if opts.IncludeChords {
		var err error
		result.Accompaniment, chords, err = Accompaniment(opts.Key, melodySeconds, secondsPerWhole)
		if err != nil {
			return Result{}, err
		}
		result.Accompaniment.Tempo = opts.Tempo
	}
	scorer := opts.Scorer
	if scorer == nil {
		s := NewScorer(opts.Key, chords)
		s.Low, s.High = opts.Low, opts.High
		s.Length = opts.Length
		scorer = s
	}

	candidates := make([]int, 0, opts.High-opts.Low+1)
	for p := opts.Low; p <= opts.High; p++ {
		candidates = append(candidates, p)
	}
	melody := m00sic.NewNoteSequence()
	melody.Tempo = opts.Tempo
	scores := make([]float64, len(candidates))
	best := math.Inf(-1)
	for step := 0; step < opts.Length; step++ {
		start := float64(step) * noteSeconds
		g, gctx := errgroup.WithContext(ctx)
		g.SetLimit(opts.Workers)
		for i, p := range candidates {
			i, p := i, p
			g.Go(func() error {
				if err := gctx.Err(); err != nil {
					return err
				}
				candidate := melody.Copy()
				candidate.Notes = append(candidate.Notes, m00sic.SequenceNote{
					Pitch:     p,
					Velocity:  m00sic.DefaultVelocity,
					StartTime: start,
					EndTime:   start + noteSeconds,
				})
				candidate.TotalTime = start + noteSeconds
				scores[i] = scorer.Score(candidate)
				return nil
			})
		}
		if err := g.Wait(); err != nil {
			return Result{}, fmt.Errorf("local search stopped at step %d: %w", step, err)
		}
		chosen := argmax(scores, rng)
		best = scores[chosen]
		melody.Notes = append(melody.Notes, m00sic.SequenceNote{
			Pitch:     candidates[chosen],
			Velocity:  m00sic.DefaultVelocity,
			StartTime: start,
			EndTime:   start + noteSeconds,
		})
		melody.TotalTime = start + noteSeconds
		log.Debug("added note",
			zap.Int("step", step),
			zap.String("note", m00sic.NoteName(candidates[chosen])),
			zap.Float64("score", best))
	}
	if opts.Length == 0 {
		best = scorer.Score(melody)
	}
	result.Melody = melody
	result.Score = best
	result.Sequence = melody
	if opts.IncludeChords {
		result.Sequence = m00sic.Stack(result.Accompaniment, melody)
		result.Sequence.Tempo = opts.Tempo
	}
	log.Info("generated melody", zap.Int("notes", len(melody.Notes)), zap.Float64("score", best))
	return result, nil
}

// argmax returns the index of the largest value, picking uniformly among
// ties.
func argmax(values []float64, rng *rand.Rand) int {
	best := math.Inf(-1)
	var ties []int
	for i, v := range values {
		switch {
		case v > best:
			best = v
			ties = append(ties[:0], i)
		case v == best:
			ties = append(ties, i)
		}
	}
	return ties[rng.Intn(len(ties))]
}

// Accompaniment arranges the progression of the key as block chords, one
// per bar, repeated to cover at least the given length. It also returns
// the timing of the chords for scoring.
func Accompaniment(key m00sic.Key, length, secondsPerWhole float64) (m00sic.NoteSequence, []TimedChord, error) {
	progression, err := key.Progression()
	if err != nil {
		return m00sic.NoteSequence{}, nil, err
	}
	var bars []m00sic.NoteSequence
	var timed []TimedChord
	t := 0.0
	for i := 0; t < length; i++ {
		pitches := progression[i%len(progression)]
		// accompaniment sits an octave below the melody
		chord, err := m00sic.ChordFromMIDI(pitches)
		if err != nil {
			return m00sic.NoteSequence{}, nil, err
		}
		pattern := make([]m00sic.PatternSpec, len(chord.Notes))
		for j := range chord.Notes {
			pattern[j] = m00sic.PatternSpec{
				Index:     j,
				Duration:  m00sic.Whole,
				EndMargin: m00sic.Sixteenth,
				Transpose: -1,
				Velocity:  60,
			}
		}
		bar, err := m00sic.ArrangeChord(chord, pattern)
		if err != nil {
			return m00sic.NoteSequence{}, nil, err
		}
		bars = append(bars, bar.Scale(secondsPerWhole))
		timed = append(timed, TimedChord{Start: t, End: t + secondsPerWhole, Pitches: pitches})
		t += secondsPerWhole
	}
	return m00sic.Concat(bars...), timed, nil
}
