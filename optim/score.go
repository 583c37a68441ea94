package optim

import (
	"github.com/cwolffff/m00sic"
)

type (
	// Scorer assigns a value to every note sequence; higher is better.
	// Implementations must be safe for concurrent use.
	Scorer interface {
		Score(seq m00sic.NoteSequence) float64
	}

	// ScorerFunc adapts an ordinary function to a Scorer.
	ScorerFunc func(seq m00sic.NoteSequence) float64

	// TimedChord is a chord sounding between Start and End, in seconds.
	TimedChord struct {
		Start, End float64
		Pitches    []int
	}

	// Weights of the terms of MelodyScorer. All weights are non-negative;
	// whether a term is a reward or a penalty is fixed.
	Weights struct {
		InKey      float64 `yaml:"inkey"`      // reward for notes in the key, penalty otherwise
		ChordTone  float64 `yaml:"chordtone"`  // reward for notes of the sounding chord
		Step       float64 `yaml:"step"`       // reward for moves of one or two semitones
		Skip       float64 `yaml:"skip"`       // reward for thirds
		Leap       float64 `yaml:"leap"`       // penalty per semitone beyond a fifth
		Repeat     float64 `yaml:"repeat"`     // penalty for repeating the previous pitch
		Recovery   float64 `yaml:"recovery"`   // reward for stepping back after a leap
		Range      float64 `yaml:"range"`      // penalty for leaving [Low, High]
		Resolution float64 `yaml:"resolution"` // reward for ending on the tonic
	}

	// MelodyScorer is the default Scorer: it treats the sequence as a
	// monophonic melody in Key, optionally over Chords.
	MelodyScorer struct {
		Key     m00sic.Key
		Chords  []TimedChord
		Weights Weights
		Low     int
		High    int
		// Length is the intended number of notes; the Resolution term only
		// applies when the melody has reached it. Zero applies it always.
		Length int
	}
)

var DefaultWeights = Weights{
	InKey:      1,
	ChordTone:  1.5,
	Step:       1,
	Skip:       0.5,
	Leap:       0.3,
	Repeat:     0.75,
	Recovery:   0.5,
	Range:      2,
	Resolution: 2,
}

func (f ScorerFunc) Score(seq m00sic.NoteSequence) float64 {
	return f(seq)
}

// NewScorer returns a MelodyScorer with the default weights and range.
func NewScorer(key m00sic.Key, chords []TimedChord) *MelodyScorer {
	return &MelodyScorer{
		Key:     key,
		Chords:  chords,
		Weights: DefaultWeights,
		Low:     DefaultLow,
		High:    DefaultHigh,
	}
}

// Score sums the terms of every note; notes are taken in the order they
// appear in the sequence.
func (s *MelodyScorer) Score(seq m00sic.NoteSequence) float64 {
	w := s.Weights
	total := 0.0
	prevInterval := 0
	for i, n := range seq.Notes {
		if s.Key.Contains(n.Pitch) {
			total += w.InKey
		} else {
			total -= 2 * w.InKey
		}
		if n.Pitch < s.Low || n.Pitch > s.High {
			total -= w.Range
		}
		if chord, ok := s.chordAt(n.StartTime); ok {
			if containsPitchClass(chord.Pitches, n.Pitch) {
				total += w.ChordTone
				if n.StartTime == chord.Start {
					total += w.ChordTone / 2 // strong beat
				}
			}
		}
		if i == 0 {
			continue
		}
		interval := n.Pitch - seq.Notes[i-1].Pitch
		dist := abs(interval)
		switch {
		case dist == 0:
			total -= w.Repeat
			if i >= 2 && seq.Notes[i-2].Pitch == n.Pitch {
				total -= w.Repeat
			}
		case dist <= 2:
			total += w.Step
		case dist <= 4:
			total += w.Skip
		case dist > 7:
			total -= w.Leap * float64(dist-7)
		}
		if abs(prevInterval) > 4 {
			if dist <= 2 && dist > 0 && sign(interval) != sign(prevInterval) {
				total += w.Recovery
			} else if dist > 4 && sign(interval) == sign(prevInterval) {
				total -= w.Recovery
			}
		}
		prevInterval = interval
	}
	if l := len(seq.Notes); l > 0 && (s.Length == 0 || l == s.Length) {
		last := seq.Notes[l-1].Pitch
		if wrapRank(last) == wrapRank(s.Key.TonicMIDI()) {
			total += w.Resolution
		}
	}
	return total
}

func (s *MelodyScorer) chordAt(t float64) (TimedChord, bool) {
	for _, c := range s.Chords {
		if t >= c.Start && t < c.End {
			return c, true
		}
	}
	return TimedChord{}, false
}

func containsPitchClass(pitches []int, pitch int) bool {
	for _, p := range pitches {
		if wrapRank(p) == wrapRank(pitch) {
			return true
		}
	}
	return false
}

func wrapRank(midi int) int {
	return (midi%m00sic.NotesPerOctave + m00sic.NotesPerOctave) % m00sic.NotesPerOctave
}

func abs(x int) int {
	if x < 0 {
		return -x
	}
	return x
}

func sign(x int) int {
	switch {
	case x < 0:
		return -1
	case x > 0:
		return 1
	}
	return 0
}
