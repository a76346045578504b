package cmd

import (
	"fmt"
	"os"
	"strings"

	"github.com/sofmeright/conveyor/src/pipeline"
	"github.com/spf13/cobra"
)

var planCmd = &cobra.Command{
	Use:   "plan [targets...]",
	Short: "Show the execution plan without running",
	Long: `Compute and print the execution batches the pipeline would run.

Stages in one batch have no dependencies on each other and run
concurrently; batches run strictly in order.`,
	RunE: runPlan,
}

func init() {
	rootCmd.AddCommand(planCmd)
}

func runPlan(cmd *cobra.Command, args []string) error {
	stages, err := cfg.Build()
	if err != nil {
		return err
	}
	batches, err := pipeline.Plan(stages, args...)
	if err != nil {
		return err
	}

	w := os.Stdout
	for i, batch := range batches {
		ids := make([]string, len(batch))
		for j, st := range batch {
			ids[j] = st.ID
			if !st.Required {
				ids[j] += " (optional)"
			}
		}
		fmt.Fprintf(w, "%2d. %s\n", i+1, strings.Join(ids, ", "))
	}
	return nil
}
