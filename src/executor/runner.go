package executor

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/semaphore"

	"github.com/sofmeright/conveyor/src/pipeline"
	"github.com/sofmeright/conveyor/src/secret"
)

// Runner executes a planned pipeline: batches in dependency order,
// stages within a batch concurrently under a bounded pool.
type Runner struct {
	Executor    *Executor
	Parallelism int64 // max stages running at once; <=0 means 4
	FailFast    bool  // cancel everything on required-stage failure
	Logger      *slog.Logger

	// OnResult, when set, observes each result as it is recorded.
	OnResult func(pipeline.ExecutionResult)
}

// Run plans and executes the given stages, returning the aggregated
// PipelineRun. Configuration errors (cycles, unknown secrets, malformed
// stages) abort before anything executes.
func (r *Runner) Run(ctx context.Context, stages []*pipeline.Stage, trig pipeline.Trigger, targets ...string) (*pipeline.PipelineRun, error) {
	if err := pipeline.Validate(stages); err != nil {
		return nil, err
	}
	batches, err := pipeline.Plan(stages, targets...)
	if err != nil {
		return nil, err
	}
	if err := r.validateCredentials(batches); err != nil {
		return nil, err
	}

	parallelism := r.Parallelism
	if parallelism <= 0 {
		parallelism = 4
	}

	run := &pipeline.PipelineRun{
		ID:      uuid.NewString(),
		Trigger: trig,
		Started: time.Now(),
	}
	log := r.logger().With(slog.String("run", run.ID))
	log.Info("pipeline started",
		slog.String("trigger", string(trig.Kind)),
		slog.Int("stages", countStages(batches)),
		slog.Int("batches", len(batches)))

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	var (
		mu sync.Mutex
		// blocked holds stages whose transitive required upstream
		// failed, plus stages already skipped because of one.
		blocked = map[string]bool{}
		// failedSoft holds non-required stages that failed; their
		// dependents run but carry a warning annotation.
		failedSoft = map[string]bool{}
	)

	record := func(res pipeline.ExecutionResult) {
		mu.Lock()
		run.Results = append(run.Results, res)
		mu.Unlock()
		if r.OnResult != nil {
			r.OnResult(res)
		}
	}

	sem := semaphore.NewWeighted(parallelism)

	for _, batch := range batches {
		var wg sync.WaitGroup
		for _, st := range batch {
			// Skip propagation and warning annotation are decided at
			// dispatch, under the lock, from upstream outcomes.
			mu.Lock()
			skip := false
			var warnings []string
			for _, need := range st.Needs {
				if blocked[need] {
					skip = true
				}
				if failedSoft[need] {
					warnings = append(warnings, fmt.Sprintf("upstream stage %s failed", need))
				}
			}
			if skip {
				blocked[st.ID] = true
			}
			mu.Unlock()

			if skip {
				record(pipeline.ExecutionResult{
					StageID:  st.ID,
					Status:   pipeline.StatusSkipped,
					Required: st.Required,
					Error:    "required upstream stage failed",
				})
				log.Info("stage skipped", slog.String("stage", st.ID))
				continue
			}

			if runCtx.Err() != nil {
				// Pipeline cancelled: not-yet-started stages skip.
				record(pipeline.ExecutionResult{
					StageID:  st.ID,
					Status:   pipeline.StatusSkipped,
					Required: st.Required,
					Error:    "pipeline cancelled",
				})
				mu.Lock()
				blocked[st.ID] = true
				mu.Unlock()
				continue
			}

			wg.Add(1)
			if err := sem.Acquire(runCtx, 1); err != nil {
				wg.Done()
				record(pipeline.ExecutionResult{
					StageID:  st.ID,
					Status:   pipeline.StatusSkipped,
					Required: st.Required,
					Error:    "pipeline cancelled",
				})
				mu.Lock()
				blocked[st.ID] = true
				mu.Unlock()
				continue
			}

			go func(st *pipeline.Stage, warnings []string) {
				defer wg.Done()
				defer sem.Release(1)

				res := r.Executor.Run(runCtx, st)
				res.Warnings = append(res.Warnings, warnings...)

				if res.Status == pipeline.StatusFailed {
					mu.Lock()
					if st.Required {
						blocked[st.ID] = true
					} else {
						failedSoft[st.ID] = true
					}
					mu.Unlock()
					if st.Required && r.FailFast {
						cancel()
					}
				}
				record(res)
			}(st, warnings)
		}
		wg.Wait()
	}

	run.Finished = time.Now()
	run.Status = pipeline.StatusSuccess
	if ctx.Err() != nil {
		run.Status = pipeline.StatusFailed
	}
	for _, res := range run.Results {
		if res.Required && res.Status == pipeline.StatusFailed {
			run.Status = pipeline.StatusFailed
		}
	}

	success, failed, skipped := run.Counts()
	log.Info("pipeline finished",
		slog.String("status", string(run.Status)),
		slog.Int("success", success),
		slog.Int("failed", failed),
		slog.Int("skipped", skipped),
		slog.Duration("duration", run.Finished.Sub(run.Started)))
	return run, nil
}

// validateCredentials checks every planned stage's credential names
// against the resolver before execution starts. Values are not
// materialized here.
func (r *Runner) validateCredentials(batches [][]*pipeline.Stage) error {
	for _, batch := range batches {
		for _, st := range batch {
			for _, name := range st.Credentials {
				if !r.Executor.Secrets.Has(name) {
					return &pipeline.ConfigurationError{
						Err: fmt.Errorf("stage %q: %w", st.ID, &secret.UnknownSecretError{Name: name}),
					}
				}
			}
		}
	}
	return nil
}

func countStages(batches [][]*pipeline.Stage) int {
	n := 0
	for _, b := range batches {
		n += len(b)
	}
	return n
}

func (r *Runner) logger() *slog.Logger {
	if r.Logger != nil {
		return r.Logger
	}
	return slog.Default()
}
