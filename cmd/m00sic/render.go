package main

import (
	"fmt"

	"github.com/cwolffff/m00sic"
	"github.com/cwolffff/m00sic/midifile"
	"github.com/spf13/cobra"
)

var renderFlags struct {
	outputFlags
	key string
}

var renderCmd = &cobra.Command{
	Use:   "render [path ...]",
	Short: "Render MIDI files to audio or notation",
	Long: `Render converts .mid files to .wav (the default), .raw or .abc files.
Directories are searched for .mid files.`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		f := &renderFlags
		if !f.wav && !f.raw && !f.abc && !f.play {
			f.wav = true
		}
		return runMIDIFiles(cmd, args, &f.outputFlags, f.key)
	},
}

var playFlags struct {
	outputFlags
}

var playCmd = &cobra.Command{
	Use:   "play [path ...]",
	Short: "Play MIDI files",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		playFlags.play = true
		return runMIDIFiles(cmd, args, &playFlags.outputFlags, "")
	},
}

func init() {
	renderFlags.register(renderCmd, false)
	renderCmd.Flags().StringVarP(&renderFlags.key, "key", "k", "C", "Key used for the notation")
	playCmd.Flags().StringVar(&playFlags.instrument, "instrument", "", "Instrument preset")
	playCmd.Flags().IntVar(&playFlags.workers, "workers", 0, "Number of concurrent workers (default: number of CPUs)")
}

func runMIDIFiles(cmd *cobra.Command, args []string, f *outputFlags, keyName string) error {
	key := m00sic.MustKey("C")
	if keyName != "" {
		var err error
		if key, err = m00sic.ParseKey(keyName); err != nil {
			return err
		}
	}
	audio, err := f.openAudio()
	if err != nil {
		return err
	}
	if audio != nil {
		defer audio.Close()
	}
	files, err := expandPaths(args, "*.mid", "*.midi")
	if err != nil {
		return err
	}
	return processAll(files, func(filename string) error {
		seq, err := midifile.ReadFile(filename)
		if err != nil {
			return fmt.Errorf("could not read %v: %w", filename, err)
		}
		return f.output(cmd.Context(), piece{name: filename, key: key, sequence: seq}, audio)
	})
}
