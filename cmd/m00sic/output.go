package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/cwolffff/m00sic"
	"github.com/cwolffff/m00sic/library"
	"github.com/cwolffff/m00sic/midifile"
	"github.com/cwolffff/m00sic/oto"
	"github.com/cwolffff/m00sic/sheet"
	"github.com/cwolffff/m00sic/synth"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

// outputFlags are shared by every command that produces a piece.
type outputFlags struct {
	directory  string
	midi       bool
	wav        bool
	raw        bool
	pcm        bool
	abc        bool
	play       bool
	library    string
	instrument string
	workers    int
}

// piece is something to output: the full sequence plus the voices it is
// made of, for notation.
type piece struct {
	name       string
	key        m00sic.Key
	score      float64
	sequence   m00sic.NoteSequence
	voices     []sheet.Voice
	instrument *synth.Instrument
}

func (o *outputFlags) register(cmd *cobra.Command, midiDefault bool) {
	f := cmd.Flags()
	f.StringVarP(&o.directory, "output", "o", "", "Directory where to output all files; created if needed (default: working directory)")
	f.BoolVar(&o.midi, "midi", midiDefault, "Output a .mid file")
	f.BoolVarP(&o.wav, "wav", "w", false, "Output the rendered audio as a .wav file")
	f.BoolVarP(&o.raw, "raw", "r", false, "Output the rendered audio as a .raw file of stereo float32 samples")
	f.BoolVarP(&o.pcm, "pcm", "c", false, "Convert audio to 16-bit signed PCM when outputting")
	f.BoolVar(&o.abc, "abc", false, "Output ABC notation as an .abc file")
	f.BoolVarP(&o.play, "play", "p", false, "Play the piece")
	f.StringVar(&o.library, "library", "", "Save the piece in the library database at this path")
	f.StringVar(&o.instrument, "instrument", "", fmt.Sprintf("Instrument preset used for audio, one of %v", synth.PresetNames()))
	f.IntVar(&o.workers, "workers", 0, "Number of concurrent workers (default: number of CPUs)")
}

func (o *outputFlags) needsAudio() bool {
	return o.wav || o.raw || o.play
}

func (o *outputFlags) write(name, extension string, contents []byte) error {
	dir := o.directory
	if dir == "" {
		var err error
		dir, err = os.Getwd()
		if err != nil {
			return fmt.Errorf("could not get working directory, specify the output directory explicitly: %v", err)
		}
	}
	if err := os.MkdirAll(dir, os.ModePerm); err != nil {
		return fmt.Errorf("could not create output directory %v: %v", dir, err)
	}
	_, name = filepath.Split(name)
	f := filepath.Join(dir, strings.TrimSuffix(name, filepath.Ext(name))+extension)
	if err := os.WriteFile(f, contents, 0644); err != nil {
		return fmt.Errorf("could not write file %v: %v", f, err)
	}
	logger.Info("wrote file", zap.String("path", f))
	return nil
}

// output writes, stores and plays the piece as the flags say.
func (o *outputFlags) output(ctx context.Context, p piece, audio *oto.OtoContext) error {
	if o.midi {
		b, err := midifile.Bytes(p.sequence)
		if err != nil {
			return fmt.Errorf("could not generate .mid file: %v", err)
		}
		if err := o.write(p.name, ".mid", b); err != nil {
			return err
		}
	}
	if o.abc {
		voices := p.voices
		if len(voices) == 0 {
			voices = []sheet.Voice{{Sequence: p.sequence}}
		}
		abc, err := sheet.ABC(sheet.Options{Title: strings.TrimSuffix(filepath.Base(p.name), filepath.Ext(p.name)), Key: p.key}, voices...)
		if err != nil {
			return fmt.Errorf("could not generate .abc file: %v", err)
		}
		if err := o.write(p.name, ".abc", []byte(abc)); err != nil {
			return err
		}
	}
	if o.library != "" {
		if err := o.save(ctx, p); err != nil {
			return err
		}
	}
	if !o.needsAudio() {
		return nil
	}
	instr, err := o.resolveInstrument(p.instrument)
	if err != nil {
		return err
	}
	buffer, err := synth.Render(ctx, p.sequence, instr, synth.Options{Workers: o.workers, Logger: logger})
	if err != nil {
		return fmt.Errorf("synth.Render failed: %w", err)
	}
	var playback *oto.Playback
	if o.play {
		playback = audio.Play(buffer)
	}
	if o.raw {
		raw, err := buffer.Raw(o.pcm)
		if err != nil {
			return fmt.Errorf("could not generate .raw file: %v", err)
		}
		if err := o.write(p.name, ".raw", raw); err != nil {
			return fmt.Errorf("error outputting .raw file: %v", err)
		}
	}
	if o.wav {
		wav, err := buffer.Wav(o.pcm)
		if err != nil {
			return fmt.Errorf("could not generate .wav file: %v", err)
		}
		if err := o.write(p.name, ".wav", wav); err != nil {
			return fmt.Errorf("error outputting .wav file: %v", err)
		}
	}
	if playback != nil {
		logger.Info("playing", zap.String("piece", p.name), zap.Float64("seconds", buffer.Duration()))
		return playback.Wait(ctx)
	}
	return nil
}

// resolveInstrument prefers the flag, then the instrument of the piece.
func (o *outputFlags) resolveInstrument(fromPiece *synth.Instrument) (synth.Instrument, error) {
	if o.instrument != "" {
		return synth.Preset(o.instrument)
	}
	if fromPiece != nil {
		return *fromPiece, nil
	}
	return synth.Preset(synth.DefaultInstrument)
}

func (o *outputFlags) save(ctx context.Context, p piece) error {
	lib, err := library.Open(o.library)
	if err != nil {
		return err
	}
	defer lib.Close()
	lp, err := library.NewPiece(p.name, p.key, p.score, p.sequence)
	if err != nil {
		return err
	}
	lp, err = lib.Save(ctx, lp)
	if err != nil {
		return err
	}
	logger.Info("saved piece", zap.String("id", lp.ID), zap.String("library", o.library))
	return nil
}

// openAudio acquires the audio device if anything is going to be played.
func (o *outputFlags) openAudio() (*oto.OtoContext, error) {
	if !o.play {
		return nil, nil
	}
	audio, err := oto.NewContext()
	if err != nil {
		return nil, fmt.Errorf("could not acquire oto AudioContext: %w", err)
	}
	return audio, nil
}
