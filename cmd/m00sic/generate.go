package main

import (
	"fmt"
	"math/rand"
	"time"

	"github.com/cwolffff/m00sic"
	"github.com/cwolffff/m00sic/optim"
	"github.com/cwolffff/m00sic/sheet"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var generateFlags struct {
	outputFlags
	key      string
	length   int
	seed     int64
	tempo    float64
	noChords bool
}

var generateCmd = &cobra.Command{
	Use:   "generate",
	Short: "Generate a melody over the I-V-vi-IV progression",
	Long: `Generate builds a melody note by note, always picking the note that
scores best given the key and the chord under it, and writes the result to
generated_<timestamp>.mid. The key is random unless given.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		f := &generateFlags
		seed := f.seed
		if !cmd.Flags().Changed("seed") {
			seed = time.Now().UnixNano()
		}
		var key m00sic.Key
		if f.key != "" {
			var err error
			if key, err = m00sic.ParseKey(f.key); err != nil {
				return err
			}
		} else {
			key = m00sic.RandomKey(rand.New(rand.NewSource(seed)))
		}
		audio, err := f.openAudio()
		if err != nil {
			return err
		}
		if audio != nil {
			defer audio.Close()
		}
		logger.Info("generating", zap.String("key", key.Name()), zap.Int64("seed", seed))
		res, err := optim.LocalSearch(cmd.Context(), optim.Options{
			Key:           key,
			Length:        f.length,
			Tempo:         f.tempo,
			IncludeChords: !f.noChords,
			Seed:          seed,
			Workers:       f.workers,
			Logger:        logger,
		})
		if err != nil {
			return err
		}
		voices := []sheet.Voice{{Name: "Melody", Sequence: res.Melody}}
		if !f.noChords {
			voices = append(voices, sheet.Voice{Name: "Chords", Clef: "bass", Sequence: res.Accompaniment})
		}
		return f.output(cmd.Context(), piece{
			name:     fmt.Sprintf("generated_%s", time.Now().Format("20060102-150405")),
			key:      key,
			score:    res.Score,
			sequence: res.Sequence,
			voices:   voices,
		}, audio)
	},
}

func init() {
	f := &generateFlags
	f.register(generateCmd, true)
	flags := generateCmd.Flags()
	flags.StringVarP(&f.key, "key", "k", "", `Key such as "C", "Am" or "F# minor" (default: random)`)
	flags.IntVarP(&f.length, "length", "l", optim.DefaultLength, "Number of melody notes")
	flags.Int64Var(&f.seed, "seed", 0, "Random seed (default: current time)")
	flags.Float64VarP(&f.tempo, "tempo", "t", m00sic.DefaultTempo, "Tempo in quarter notes per minute")
	flags.BoolVar(&f.noChords, "no-chords", false, "Generate the melody only")
}
