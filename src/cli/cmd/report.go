package cmd

import (
	"context"
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/sofmeright/conveyor/src/output"
	"github.com/spf13/cobra"
)

var reportJUnitPath string

var reportCmd = &cobra.Command{
	Use:   "report",
	Short: "Inspect published pipeline runs",
}

var reportListCmd = &cobra.Command{
	Use:   "list",
	Short: "List published runs, newest first",
	RunE:  runReportList,
}

var reportShowCmd = &cobra.Command{
	Use:   "show <run-id>",
	Short: "Show one published run",
	Args:  cobra.ExactArgs(1),
	RunE:  runReportShow,
}

func init() {
	reportShowCmd.Flags().StringVar(&reportJUnitPath, "junit", "", "write the run as JUnit XML to this path")

	reportCmd.AddCommand(reportListCmd)
	reportCmd.AddCommand(reportShowCmd)
	rootCmd.AddCommand(reportCmd)
}

func runReportList(cmd *cobra.Command, args []string) error {
	sink, err := openSink()
	if err != nil {
		return err
	}
	defer sink.Close()

	summaries, err := sink.List(context.Background())
	if err != nil {
		return err
	}
	if len(summaries) == 0 {
		fmt.Println("no runs published")
		return nil
	}

	tw := tabwriter.NewWriter(os.Stdout, 2, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "RUN\tSTATUS\tTRIGGER\tBRANCH\tSHA\tSTAGES\tREPORTS\tSTARTED")
	for _, s := range summaries {
		sha := s.SHA
		if len(sha) > 7 {
			sha = sha[:7]
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%d\t%d\t%s\n",
			s.RunID, s.Status, s.Trigger, s.Branch, sha,
			s.Stages, s.Reports, s.Started.Format("2006-01-02 15:04:05"))
	}
	return tw.Flush()
}

func runReportShow(cmd *cobra.Command, args []string) error {
	sink, err := openSink()
	if err != nil {
		return err
	}
	defer sink.Close()

	ctx := context.Background()
	run, err := sink.Get(ctx, args[0])
	if err != nil {
		return err
	}

	printer := output.NewPrinter()
	printer.RunTable(run)

	reports, err := sink.Reports(ctx, args[0])
	if err != nil {
		return err
	}
	for _, a := range reports {
		fmt.Printf("    report %s (%d bytes)\n", a.Key, len(a.Payload))
	}

	if reportJUnitPath != "" {
		return writeJUnitFile(reportJUnitPath, run)
	}
	return nil
}
