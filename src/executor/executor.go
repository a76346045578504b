// Package executor runs stages: credential resolution, artifact
// plumbing, timeout enforcement, retries, and result classification.
package executor

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/sofmeright/conveyor/src/artifact"
	"github.com/sofmeright/conveyor/src/pipeline"
	"github.com/sofmeright/conveyor/src/secret"
)

// Executor runs a single stage against the shared artifact store and
// credential resolver. Safe for concurrent use.
type Executor struct {
	Store   *artifact.Store
	Secrets *secret.Resolver
	WorkDir string
	Logger  *slog.Logger

	// Echo mirrors redacted stage output to this writer as it is
	// produced (terminal streaming). Nil keeps output capture-only.
	Echo io.Writer
}

// Run executes one stage and returns its immutable result. The stage is
// never retried on timeout; other failures retry per the stage policy,
// each attempt isolated.
func (e *Executor) Run(ctx context.Context, st *pipeline.Stage) pipeline.ExecutionResult {
	log := e.logger().With(slog.String("stage", st.ID))
	started := time.Now()
	result := pipeline.ExecutionResult{
		StageID:  st.ID,
		Required: st.Required,
		Started:  started,
	}

	fail := func(err error) pipeline.ExecutionResult {
		result.Status = pipeline.StatusFailed
		result.Error = err.Error()
		result.Duration = time.Since(started)
		log.Error("stage failed", slog.String("error", err.Error()))
		return result
	}

	inputs, err := e.collectInputs(st)
	if err != nil {
		return fail(err)
	}

	attempts := st.Retry.Attempts
	if attempts < 1 {
		attempts = 1
	}

	var (
		outputs map[string][]byte
		lastErr error
		output  bytes.Buffer
	)

	for attempt := 1; attempt <= attempts; attempt++ {
		if attempt > 1 {
			delay := st.Retry.Delay(attempt - 1)
			log.Info("retrying stage",
				slog.Int("attempt", attempt),
				slog.Duration("backoff", delay))
			select {
			case <-time.After(delay):
			case <-ctx.Done():
				result.Attempts = attempt - 1
				return fail(ctx.Err())
			}
		}
		result.Attempts = attempt

		// Each attempt gets its own capture buffer; only the final
		// attempt's output is kept.
		output.Reset()
		outputs, lastErr = e.attempt(ctx, st, inputs, &output)
		if lastErr == nil {
			break
		}

		var timeout *pipeline.TimeoutError
		if errors.As(lastErr, &timeout) || ctx.Err() != nil {
			// Timeouts and pipeline cancellation end the stage; retry
			// policy does not apply.
			break
		}
	}

	result.Output = output.String()

	if lastErr != nil {
		var execErr *pipeline.ExecutionError
		if errors.As(lastErr, &execErr) {
			result.ExitCode = execErr.ExitCode
		}
		return fail(lastErr)
	}

	committed, err := e.commit(st, outputs)
	if err != nil {
		return fail(err)
	}
	result.Produced = committed

	result.Status = pipeline.StatusSuccess
	result.Duration = time.Since(started)
	log.Info("stage succeeded",
		slog.Duration("duration", result.Duration),
		slog.Int("artifacts", len(committed)))
	return result
}

// attempt performs one isolated invocation of the stage action.
func (e *Executor) attempt(ctx context.Context, st *pipeline.Stage, inputs map[string]artifact.Artifact, capture *bytes.Buffer) (map[string][]byte, error) {
	// Secrets are resolved immediately before invocation and discarded
	// with the invocation value when this attempt returns.
	secrets, err := e.resolveSecrets(st)
	if err != nil {
		return nil, err
	}

	redactor := e.Secrets.Redactor()
	var sink io.Writer = capture
	if e.Echo != nil {
		sink = io.MultiWriter(capture, e.Echo)
	}
	out := redactor.Writer(sink)

	inv := &pipeline.Invocation{
		Stage:   st,
		Inputs:  inputs,
		Secrets: secrets,
		WorkDir: e.WorkDir,
		Stdout:  out,
		Stderr:  out,
	}

	runCtx := ctx
	var cancel context.CancelFunc
	if st.Timeout > 0 {
		runCtx, cancel = context.WithTimeout(ctx, st.Timeout)
		defer cancel()
	}

	outputs, runErr := st.Action.Run(runCtx, inv)
	if flushErr := secret.FlushWriter(out); flushErr != nil && runErr == nil {
		runErr = flushErr
	}

	if runErr != nil {
		if st.Timeout > 0 && errors.Is(runCtx.Err(), context.DeadlineExceeded) && ctx.Err() == nil {
			return nil, &pipeline.TimeoutError{Stage: st.ID, Timeout: st.Timeout}
		}
		var execErr *pipeline.ExecutionError
		if errors.As(runErr, &execErr) {
			return nil, runErr
		}
		return nil, &pipeline.ExecutionError{Stage: st.ID, Err: runErr}
	}
	return outputs, nil
}

// collectInputs resolves declared input artifacts. Requests for
// artifacts of undeclared stages are refused at dispatch.
func (e *Executor) collectInputs(st *pipeline.Stage) (map[string]artifact.Artifact, error) {
	needs := make(map[string]bool, len(st.Needs))
	for _, n := range st.Needs {
		needs[n] = true
	}

	inputs := make(map[string]artifact.Artifact, len(st.Inputs))
	for _, ref := range st.Inputs {
		if !needs[ref.Stage] {
			return nil, &pipeline.ExecutionError{
				Stage: st.ID,
				Err:   fmt.Errorf("input %s not covered by a declared dependency", ref.Key()),
			}
		}
		a, err := e.Store.Get(ref.Key())
		if err != nil {
			return nil, err
		}
		inputs[ref.Key().String()] = a
	}
	return inputs, nil
}

// resolveSecrets materializes the stage's credentials just before
// invocation, keeping the exposure window narrow.
func (e *Executor) resolveSecrets(st *pipeline.Stage) (map[string]secret.Secret, error) {
	if len(st.Credentials) == 0 {
		return nil, nil
	}
	secrets := make(map[string]secret.Secret, len(st.Credentials))
	for _, name := range st.Credentials {
		s, err := e.Secrets.Resolve(name)
		if err != nil {
			return nil, err
		}
		secrets[name] = s
	}
	return secrets, nil
}

// commit stores the declared outputs atomically. Undeclared or missing
// outputs are a stage failure; nothing commits partially.
func (e *Executor) commit(st *pipeline.Stage, outputs map[string][]byte) ([]artifact.Key, error) {
	declared := make(map[string]artifact.Kind, len(st.Outputs))
	for _, o := range st.Outputs {
		declared[o.Name] = o.Kind
	}
	for name := range outputs {
		if _, ok := declared[name]; !ok {
			return nil, &pipeline.ExecutionError{
				Stage: st.ID,
				Err:   fmt.Errorf("produced undeclared output %q", name),
			}
		}
	}

	batch := make([]artifact.Artifact, 0, len(st.Outputs))
	keys := make([]artifact.Key, 0, len(st.Outputs))
	for _, o := range st.Outputs {
		payload, ok := outputs[o.Name]
		if !ok {
			return nil, &pipeline.ExecutionError{
				Stage: st.ID,
				Err:   fmt.Errorf("declared output %q was not produced", o.Name),
			}
		}
		key := artifact.Key{Stage: st.ID, Name: o.Name}
		batch = append(batch, artifact.Artifact{Key: key, Kind: o.Kind, Payload: payload})
		keys = append(keys, key)
	}

	if err := e.Store.PutAll(batch); err != nil {
		return nil, err
	}
	return keys, nil
}

func (e *Executor) logger() *slog.Logger {
	if e.Logger != nil {
		return e.Logger
	}
	return slog.Default()
}
