// Package pipeline defines the orchestrator core data model: stages,
// the dependency graph planner, execution results, and pipeline runs.
package pipeline

import (
	"context"
	"io"
	"time"

	"github.com/sofmeright/conveyor/src/artifact"
	"github.com/sofmeright/conveyor/src/secret"
)

// OutputDecl declares an artifact a stage commits on success.
type OutputDecl struct {
	Name string
	Kind artifact.Kind
}

// InputRef names an artifact a stage consumes: the producing stage and
// the artifact name it declared.
type InputRef struct {
	Stage string
	Name  string
}

// Key returns the artifact key this reference resolves to.
func (r InputRef) Key() artifact.Key {
	return artifact.Key{Stage: r.Stage, Name: r.Name}
}

// RetryPolicy is the caller-configured retry behavior for a stage.
// Zero value means a single attempt.
type RetryPolicy struct {
	Attempts    int           // total attempts, including the first
	Backoff     time.Duration // delay before each retry
	Exponential bool          // double the delay after each attempt
}

// Delay returns the wait before the given retry (retry 1 is the first
// re-attempt).
func (p RetryPolicy) Delay(retry int) time.Duration {
	if p.Backoff <= 0 {
		return 0
	}
	if !p.Exponential {
		return p.Backoff
	}
	d := p.Backoff
	for i := 1; i < retry; i++ {
		d *= 2
	}
	return d
}

// Stage is one named unit of pipeline work.
type Stage struct {
	ID          string
	Needs       []string // ids of stages this one depends on
	Required    bool     // failure skips dependents and fails the run
	Timeout     time.Duration
	Retry       RetryPolicy
	Credentials []string // credential names resolved just before invocation
	Inputs      []InputRef
	Outputs     []OutputDecl
	Action      Action
}

// Invocation carries everything an action may use during one attempt.
// Secrets are valid only for the duration of the attempt.
type Invocation struct {
	Stage   *Stage
	Inputs  map[string]artifact.Artifact // keyed by "stage/name"
	Secrets map[string]secret.Secret     // keyed by credential name
	WorkDir string
	Stdout  io.Writer
	Stderr  io.Writer
}

// Input returns the artifact produced by stage under name.
func (inv *Invocation) Input(stage, name string) (artifact.Artifact, bool) {
	a, ok := inv.Inputs[artifact.Key{Stage: stage, Name: name}.String()]
	return a, ok
}

// Action is the run contract of a stage. Implementations return their
// produced outputs keyed by declared output name; the executor commits
// them atomically.
type Action interface {
	Kind() string
	Run(ctx context.Context, inv *Invocation) (map[string][]byte, error)
}
