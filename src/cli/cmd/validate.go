package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Validate the pipeline definition",
	RunE: func(cmd *cobra.Command, args []string) error {
		stages, err := cfg.Build()
		if err != nil {
			return err
		}
		fmt.Printf("ok: %d stages\n", len(stages))
		return nil
	},
}

func init() {
	rootCmd.AddCommand(validateCmd)
}
