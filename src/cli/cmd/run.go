package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/sofmeright/conveyor/src/artifact"
	"github.com/sofmeright/conveyor/src/badge"
	"github.com/sofmeright/conveyor/src/executor"
	"github.com/sofmeright/conveyor/src/output"
	"github.com/sofmeright/conveyor/src/pipeline"
	"github.com/sofmeright/conveyor/src/report"
	"github.com/sofmeright/conveyor/src/scm"
	"github.com/sofmeright/conveyor/src/secret"
	"github.com/spf13/cobra"
)

var (
	runTrigger     string
	runParallelism int
	runFailFast    bool
	runNoPublish   bool
	runJUnitPath   string
)

var runCmd = &cobra.Command{
	Use:   "run [targets...]",
	Short: "Execute the pipeline",
	Long: `Execute the configured pipeline in dependency order.

With targets, only the named stages and their transitive dependencies
run. The exit code is non-zero when the run fails.`,
	RunE: runRun,
}

func init() {
	runCmd.Flags().StringVar(&runTrigger, "trigger", "", "trigger kind: push, review, or manual (default: push in CI, manual otherwise)")
	runCmd.Flags().IntVar(&runParallelism, "parallelism", 0, "max stages running at once (default: from config)")
	runCmd.Flags().BoolVar(&runFailFast, "fail-fast", false, "cancel everything when a required stage fails")
	runCmd.Flags().BoolVar(&runNoPublish, "no-publish", false, "skip publishing the run to the report sink")
	runCmd.Flags().StringVar(&runJUnitPath, "junit", "", "write a JUnit XML report to this path")

	rootCmd.AddCommand(runCmd)
}

func runRun(cmd *cobra.Command, args []string) error {
	stages, err := cfg.Build()
	if err != nil {
		return err
	}

	resolver, err := secret.NewResolverFromEnv(cfg.Secrets.EnvPrefix, cfg.Secrets.Dotenv)
	if err != nil {
		return fmt.Errorf("resolving secrets: %w", err)
	}

	trig := describeTrigger(cfg.WorkDir)

	store := artifact.NewStore()
	exec := &executor.Executor{
		Store:   store,
		Secrets: resolver,
		WorkDir: cfg.WorkDir,
	}
	if verbose {
		exec.Echo = os.Stderr
	}

	printer := output.NewPrinter()
	runner := &executor.Runner{
		Executor:    exec,
		Parallelism: int64(effectiveParallelism()),
		FailFast:    runFailFast || cfg.FailFast,
		OnResult:    printer.StageRow,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	output.SectionStart(printer.Writer, "cv_run", "Pipeline")
	run, err := runner.Run(ctx, stages, trig, args...)
	if err != nil {
		output.SectionEnd(printer.Writer, "cv_run")
		return err
	}
	printer.RunTable(run)
	output.SectionEnd(printer.Writer, "cv_run")

	if runJUnitPath != "" {
		if err := writeJUnitFile(runJUnitPath, run); err != nil {
			fmt.Fprintf(os.Stderr, "warning: junit report: %v\n", err)
		}
	}

	if !runNoPublish {
		if err := publishRun(ctx, run, store); err != nil {
			return fmt.Errorf("publishing run: %w", err)
		}
	}

	if cfg.Badge.Enabled {
		if err := writeBadge(run); err != nil {
			fmt.Fprintf(os.Stderr, "warning: badge: %v\n", err)
		}
	}

	if run.Status == pipeline.StatusFailed {
		return fmt.Errorf("pipeline failed")
	}
	return nil
}

// describeTrigger resolves revision metadata from the working
// repository. A directory outside any repository still runs, with a
// bare trigger kind.
func describeTrigger(dir string) pipeline.Trigger {
	trig := pipeline.Trigger{Kind: triggerKind()}
	rev, err := scm.Describe(dir)
	if err != nil {
		if verbose {
			fmt.Fprintf(os.Stderr, "scm: %v\n", err)
		}
		return trig
	}
	trig.SHA = rev.SHA
	trig.Branch = rev.Branch
	trig.Version = rev.Version
	return trig
}

func triggerKind() pipeline.TriggerKind {
	switch runTrigger {
	case "push":
		return pipeline.TriggerPush
	case "review":
		return pipeline.TriggerReview
	case "manual":
		return pipeline.TriggerManual
	}
	if output.IsCI() {
		return pipeline.TriggerPush
	}
	return pipeline.TriggerManual
}

func effectiveParallelism() int {
	if runParallelism > 0 {
		return runParallelism
	}
	return cfg.Parallelism
}

func publishRun(ctx context.Context, run *pipeline.PipelineRun, store *artifact.Store) error {
	sink, err := openSink()
	if err != nil {
		return err
	}
	defer sink.Close()

	handle, err := sink.Publish(ctx, run, store.ByKind(artifact.KindReport))
	if err != nil {
		return err
	}
	if verbose {
		fmt.Fprintf(os.Stderr, "published run %s to %s\n", handle.RunID, handle.Location)
	}
	return nil
}

func openSink() (report.Sink, error) {
	if dir := filepath.Dir(cfg.Report.Path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, err
		}
	}
	return report.NewSQLiteSink(cfg.Report.Path)
}

func writeJUnitFile(path string, run *pipeline.PipelineRun) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()
	return output.WriteJUnit(f, run)
}

func writeBadge(run *pipeline.PipelineRun) error {
	engine := badge.New(badgeMetrics())
	svg := engine.Generate(badge.ForRun(run))
	return os.WriteFile(cfg.Badge.Path, []byte(svg), 0o644)
}

func badgeMetrics() *badge.FontMetrics {
	if cfg.Badge.Font == "" {
		return nil
	}
	m, err := badge.LoadFontFile(cfg.Badge.FontName, cfg.Badge.Font, cfg.Badge.FontSize)
	if err != nil {
		fmt.Fprintf(os.Stderr, "warning: font %s: %v\n", cfg.Badge.Font, err)
		return nil
	}
	return m
}
