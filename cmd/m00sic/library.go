package main

import (
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/cwolffff/m00sic/library"
	"github.com/cwolffff/m00sic/midifile"
	"github.com/spf13/cobra"
)

var (
	libraryPath  string
	libraryLimit int
	showOutput   string
	showBest     bool
)

var libraryCmd = &cobra.Command{
	Use:   "library",
	Short: "Manage the library of generated pieces",
}

var libraryListCmd = &cobra.Command{
	Use:   "list",
	Short: "List the newest pieces",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		lib, err := library.Open(libraryPath)
		if err != nil {
			return err
		}
		defer lib.Close()
		pieces, err := lib.List(cmd.Context(), libraryLimit)
		if err != nil {
			return err
		}
		w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "ID\tNAME\tKEY\tSCORE\tNOTES\tSECONDS\tCREATED")
		for _, p := range pieces {
			fmt.Fprintf(w, "%s\t%s\t%s\t%.2f\t%d\t%.1f\t%s\n", p.ID, p.Name, p.Key, p.Score, p.Notes, p.TotalTime, p.Created.Format(time.DateTime))
		}
		return w.Flush()
	},
}

var libraryShowCmd = &cobra.Command{
	Use:   "show [id | key]",
	Short: "Show a piece, optionally writing its MIDI file",
	Long: `Show prints the details of the piece with the given ID. With --best the
argument is a key such as "C major" and the highest scoring piece in that key
is shown; without an argument the best piece overall.`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		lib, err := library.Open(libraryPath)
		if err != nil {
			return err
		}
		defer lib.Close()
		arg := ""
		if len(args) > 0 {
			arg = args[0]
		}
		var p library.Piece
		switch {
		case showBest:
			p, err = lib.Best(cmd.Context(), arg)
		case arg == "":
			return fmt.Errorf("an ID is required unless --best is given")
		default:
			p, err = lib.Get(cmd.Context(), arg)
		}
		if err != nil {
			return err
		}
		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "id:      %s\nname:    %s\nkey:     %s\nscore:   %.2f\nnotes:   %d\nseconds: %.1f\ntempo:   %.0f\ncreated: %s\n",
			p.ID, p.Name, p.Key, p.Score, p.Notes, p.TotalTime, p.Tempo, p.Created.Format(time.DateTime))
		if showOutput == "" {
			return nil
		}
		seq, err := p.Sequence()
		if err != nil {
			return err
		}
		return midifile.WriteFile(showOutput, seq)
	},
}

var libraryRmCmd = &cobra.Command{
	Use:   "rm id...",
	Short: "Remove pieces",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		lib, err := library.Open(libraryPath)
		if err != nil {
			return err
		}
		defer lib.Close()
		for _, id := range args {
			if err := lib.Delete(cmd.Context(), id); err != nil {
				return err
			}
		}
		return nil
	},
}

func init() {
	libraryCmd.PersistentFlags().StringVar(&libraryPath, "path", "m00sic.db", "Path of the library database")
	libraryListCmd.Flags().IntVarP(&libraryLimit, "limit", "n", 20, "Number of pieces to list; 0 lists all")
	libraryShowCmd.Flags().StringVarP(&showOutput, "output", "o", "", "Write the piece to this .mid file")
	libraryShowCmd.Flags().BoolVar(&showBest, "best", false, "Show the highest scoring piece")
	libraryCmd.AddCommand(libraryListCmd, libraryShowCmd, libraryRmCmd)
}
