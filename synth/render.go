// Package synth renders note sequences to audio.
//
// The synthesizer is small: every note is an oscillator (or
// two, when detuned) shaped by an ADSR envelope. The output is split into
// consecutive time slices, one per worker, each rendering the notes that
// sound within its slice. The mix is normalized if it would clip.
package synth

import (
	"context"
	"fmt"
	"math"
	"runtime"

	"github.com/cwolffff/m00sic"
	"github.com/viterin/vek/vek32"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// SampleRate of the rendered audio, in Hz.
const SampleRate = 44100

// Headroom is the peak level the mix is normalized to when it would clip.
const Headroom = 0.9

// minSliceFrames keeps short pieces from being split into slices too small
// to be worth a goroutine.
const minSliceFrames = 4096

type Options struct {
	// Workers is the number of time slices rendered concurrently; 0 uses
	// GOMAXPROCS.
	Workers int
	// Logger receives progress information; nil disables logging.
	Logger *zap.Logger
}

// Render renders the sequence with the instrument as interleaved stereo
// audio. The buffer is long enough to include TotalTime and the release of
// the last note.
func Render(ctx context.Context, seq m00sic.NoteSequence, instr Instrument, opts Options) (AudioBuffer, error) {
	if err := instr.Validate(); err != nil {
		return nil, err
	}
	if err := seq.Validate(); err != nil {
		return nil, fmt.Errorf("synth.Render: %w", err)
	}
	log := opts.Logger
	if log == nil {
		log = zap.NewNop()
	}
	workers := opts.Workers
	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0)
	}
	length := math.Max(seq.TotalTime, seq.End()+instr.Release)
	frames := int(math.Ceil(length * SampleRate))
	workers = max(1, min(workers, frames/minSliceFrames))
	log.Debug("rendering sequence",
		zap.Int("notes", len(seq.Notes)),
		zap.Int("frames", frames),
		zap.Int("workers", workers),
		zap.String("waveform", string(instr.Waveform)))

	mix := make(AudioBuffer, Channels*frames)
	g, ctx := errgroup.WithContext(ctx)
	for w := 0; w < workers; w++ {
		lo, hi := w*frames/workers, (w+1)*frames/workers
		g.Go(func() error {
			for _, n := range seq.Notes {
				if err := ctx.Err(); err != nil {
					return err
				}
				renderNote(mix, lo, hi, n, instr)
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("synth.Render: %w", err)
	}
	if peak := mix.Peak(); peak > Headroom {
		vek32.MulNumber_Inplace(mix, Headroom/peak)
		log.Debug("normalized mix", zap.Float32("peak", peak))
	}
	return mix, nil
}

// renderNote adds the frames lo to hi of a single note into the buffer.
func renderNote(buf AudioBuffer, lo, hi int, n m00sic.SequenceNote, instr Instrument) {
	start := int(n.StartTime * SampleRate)
	length := n.EndTime - n.StartTime
	end := min(hi, int(math.Ceil((n.EndTime+instr.Release)*SampleRate)))
	freq := Frequency(n.Pitch)
	detuned := freq * math.Pow(2, instr.Detune/1200)
	amp := instr.Gain * float64(n.Velocity) / 127
	if instr.Detune != 0 {
		amp /= 2
	}
	for f := max(start, lo); f < end; f++ {
		t := float64(f-start) / SampleRate
		v := instr.oscillator(freq * t)
		if instr.Detune != 0 {
			v += instr.oscillator(detuned * t)
		}
		s := float32(v * amp * instr.envelope(t, length))
		buf[2*f] += s
		buf[2*f+1] += s
	}
}
