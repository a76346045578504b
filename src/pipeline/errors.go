package pipeline

import (
	"fmt"
	"strings"
	"time"
)

// CycleError indicates the declared dependencies do not form a DAG.
// Nothing executes when planning fails with a cycle.
type CycleError struct {
	Stages []string // stages participating in or blocked by the cycle
}

func (e *CycleError) Error() string {
	return fmt.Sprintf("pipeline: dependency cycle involving %s", strings.Join(e.Stages, ", "))
}

// ConfigurationError is fatal before execution starts: cycles, unknown
// secrets, malformed stage definitions.
type ConfigurationError struct {
	Err error
}

func (e *ConfigurationError) Error() string {
	return "pipeline: configuration: " + e.Err.Error()
}

func (e *ConfigurationError) Unwrap() error { return e.Err }

// TimeoutError indicates a stage exceeded its configured timeout. It is
// treated as an execution failure and is never retried automatically.
type TimeoutError struct {
	Stage   string
	Timeout time.Duration
}

func (e *TimeoutError) Error() string {
	return fmt.Sprintf("pipeline: stage %s timed out after %s", e.Stage, e.Timeout)
}

// ExecutionError wraps a stage action failure.
type ExecutionError struct {
	Stage    string
	ExitCode int
	Err      error
}

func (e *ExecutionError) Error() string {
	if e.ExitCode != 0 {
		return fmt.Sprintf("pipeline: stage %s failed (exit %d): %v", e.Stage, e.ExitCode, e.Err)
	}
	return fmt.Sprintf("pipeline: stage %s failed: %v", e.Stage, e.Err)
}

func (e *ExecutionError) Unwrap() error { return e.Err }
