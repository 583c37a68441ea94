package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/cwolffff/m00sic/composition"
	"github.com/cwolffff/m00sic/sheet"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var arrangeFlags struct {
	outputFlags
}

var arrangeCmd = &cobra.Command{
	Use:   "arrange [path ...]",
	Short: "Arrange composition files",
	Long: `Arrange builds .yml or .json composition files. Directories are searched
for composition files. Every file is output next to the others, named after
the composition file.`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		f := &arrangeFlags
		audio, err := f.openAudio()
		if err != nil {
			return err
		}
		if audio != nil {
			defer audio.Close()
		}
		process := func(filename string) error {
			c, err := composition.Load(filename)
			if err != nil {
				return err
			}
			arr, err := c.Build(cmd.Context(), logger)
			if err != nil {
				return err
			}
			voices := []sheet.Voice{{Name: "Chords", Sequence: arr.Accompaniment}}
			if len(arr.Melody.Notes) > 0 {
				voices = append([]sheet.Voice{{Name: "Melody", Sequence: arr.Melody}}, voices...)
			}
			return f.output(cmd.Context(), piece{
				name:       filename,
				key:        arr.Key,
				score:      arr.Score,
				sequence:   arr.Sequence,
				voices:     voices,
				instrument: &arr.Instrument,
			}, audio)
		}
		files, err := expandPaths(args, "*.yml", "*.yaml", "*.json")
		if err != nil {
			return err
		}
		return processAll(files, process)
	},
}

func init() {
	arrangeFlags.register(arrangeCmd, true)
}

// expandPaths replaces directories with the files in them matching the
// patterns.
func expandPaths(params []string, patterns ...string) ([]string, error) {
	var ret []string
	for _, param := range params {
		info, err := os.Stat(param)
		if err != nil || !info.IsDir() {
			ret = append(ret, param)
			continue
		}
		for _, pattern := range patterns {
			files, err := filepath.Glob(filepath.Join(param, pattern))
			if err != nil {
				return nil, fmt.Errorf("could not glob the path %v for %v files: %v", param, pattern, err)
			}
			ret = append(ret, files...)
		}
	}
	return ret, nil
}

// processAll runs process on every file, logging failures and carrying on
// with the rest.
func processAll(files []string, process func(string) error) error {
	failed := 0
	for _, file := range files {
		if err := process(file); err != nil {
			logger.Error("could not process file", zap.String("file", file), zap.Error(err))
			failed++
		}
	}
	if failed > 0 {
		return fmt.Errorf("%d of %d files failed", failed, len(files))
	}
	return nil
}
