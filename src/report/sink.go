// Package report persists pipeline runs and their report artifacts to
// a durable, retrievable location.
package report

import (
	"context"
	"time"

	"github.com/sofmeright/conveyor/src/artifact"
	"github.com/sofmeright/conveyor/src/pipeline"
)

// Handle points at a published run record.
type Handle struct {
	RunID    string
	Location string
}

// RunSummary is one row of a run listing.
type RunSummary struct {
	RunID    string
	Status   pipeline.Status
	Trigger  pipeline.TriggerKind
	SHA      string
	Branch   string
	Started  time.Time
	Finished time.Time
	Stages   int
	Reports  int
}

// Sink publishes pipeline runs. Publishing the same run id twice
// overwrites the stored record rather than duplicating it.
type Sink interface {
	Publish(ctx context.Context, run *pipeline.PipelineRun, reports []artifact.Artifact) (Handle, error)
	Get(ctx context.Context, runID string) (*pipeline.PipelineRun, error)
	Reports(ctx context.Context, runID string) ([]artifact.Artifact, error)
	List(ctx context.Context) ([]RunSummary, error)
	Close() error
}
