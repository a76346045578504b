package pipeline

import (
	"time"

	"github.com/sofmeright/conveyor/src/artifact"
)

// Status is the lifecycle state of a stage within a run.
// Pending → Running → {Success, Failed, Skipped}.
type Status string

const (
	StatusPending Status = "pending"
	StatusRunning Status = "running"
	StatusSuccess Status = "success"
	StatusFailed  Status = "failed"
	StatusSkipped Status = "skipped"
)

// TriggerKind is what started a pipeline run.
type TriggerKind string

const (
	TriggerPush   TriggerKind = "push"
	TriggerReview TriggerKind = "review"
	TriggerManual TriggerKind = "manual"
)

// Trigger records the invocation source and the revision it ran on.
type Trigger struct {
	Kind    TriggerKind `json:"kind"`
	SHA     string      `json:"sha,omitempty"`
	Branch  string      `json:"branch,omitempty"`
	Version string      `json:"version,omitempty"`
}

// ExecutionResult is the immutable record of one stage completing or
// being skipped.
type ExecutionResult struct {
	StageID  string         `json:"stage_id"`
	Status   Status         `json:"status"`
	Required bool           `json:"required"`
	ExitCode int            `json:"exit_code,omitempty"`
	Attempts int            `json:"attempts,omitempty"`
	Duration time.Duration  `json:"duration"`
	Started  time.Time      `json:"started,omitempty"`
	Produced []artifact.Key `json:"produced,omitempty"`
	Output   string         `json:"output,omitempty"`
	Error    string         `json:"error,omitempty"`
	Warnings []string       `json:"warnings,omitempty"`
}

// PipelineRun aggregates one end-to-end execution. Results are recorded
// in completion order; dependency order is reconstructable from stage
// ids and the plan.
type PipelineRun struct {
	ID       string            `json:"id"`
	Trigger  Trigger           `json:"trigger"`
	Results  []ExecutionResult `json:"results"`
	Status   Status            `json:"status"`
	Started  time.Time         `json:"started"`
	Finished time.Time         `json:"finished"`
}

// Result returns the recorded result for a stage id.
func (r *PipelineRun) Result(stageID string) (ExecutionResult, bool) {
	for _, res := range r.Results {
		if res.StageID == stageID {
			return res, true
		}
	}
	return ExecutionResult{}, false
}

// Counts tallies results by status.
func (r *PipelineRun) Counts() (success, failed, skipped int) {
	for _, res := range r.Results {
		switch res.Status {
		case StatusSuccess:
			success++
		case StatusFailed:
			failed++
		case StatusSkipped:
			skipped++
		}
	}
	return
}

// Warnings returns all warning annotations across stages, prefixed with
// the stage id.
func (r *PipelineRun) Warnings() []string {
	var out []string
	for _, res := range r.Results {
		for _, w := range res.Warnings {
			out = append(out, res.StageID+": "+w)
		}
	}
	return out
}
