package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
)

var badgeOut string

var badgeCmd = &cobra.Command{
	Use:   "badge [run-id]",
	Short: "Generate a status badge SVG",
	Long: `Generate an SVG status badge from a published run.

Without a run id, the most recent published run is used.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runBadge,
}

func init() {
	badgeCmd.Flags().StringVarP(&badgeOut, "out", "o", "", "output path (default: from config)")
	rootCmd.AddCommand(badgeCmd)
}

func runBadge(cmd *cobra.Command, args []string) error {
	sink, err := openSink()
	if err != nil {
		return err
	}
	defer sink.Close()

	ctx := context.Background()
	runID := ""
	if len(args) == 1 {
		runID = args[0]
	} else {
		summaries, err := sink.List(ctx)
		if err != nil {
			return err
		}
		if len(summaries) == 0 {
			return fmt.Errorf("no runs published")
		}
		runID = summaries[0].RunID
	}

	run, err := sink.Get(ctx, runID)
	if err != nil {
		return err
	}

	if badgeOut != "" {
		cfg.Badge.Path = badgeOut
	}
	if err := writeBadge(run); err != nil {
		return err
	}
	fmt.Printf("wrote %s\n", cfg.Badge.Path)
	return nil
}
