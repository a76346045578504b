package config

import (
	"fmt"
	"time"

	"github.com/sofmeright/conveyor/src/action"
	"github.com/sofmeright/conveyor/src/artifact"
	"github.com/sofmeright/conveyor/src/pipeline"
)

var validKinds = map[artifact.Kind]bool{
	artifact.KindBinary:   true,
	artifact.KindImageRef: true,
	artifact.KindDigest:   true,
	artifact.KindReport:   true,
	artifact.KindLog:      true,
}

func configErr(format string, args ...any) error {
	return &pipeline.ConfigurationError{Err: fmt.Errorf(format, args...)}
}

// validate checks the structural shape of the config. Graph-level
// checks (cycles, unknown needs) happen in pipeline.Validate once the
// stages are built.
func (c *Config) validate() error {
	if len(c.Stages) == 0 {
		return configErr("no stages defined")
	}
	if c.Parallelism < 1 {
		return configErr("parallelism must be >= 1, got %d", c.Parallelism)
	}
	for i, sc := range c.Stages {
		if sc.ID == "" {
			return configErr("stage %d has no id", i)
		}
		if sc.Action == "" {
			return configErr("stage %s has no action", sc.ID)
		}
		if sc.Retry.Attempts < 0 {
			return configErr("stage %s: retry attempts must be >= 0", sc.ID)
		}
	}
	return nil
}

// Build compiles the configuration into executable stages. Action
// kinds are instantiated through the registry, durations parsed, and
// credential names an action resolves itself are declared on the
// stage automatically. The returned stages pass pipeline.Validate.
func (c *Config) Build() ([]*pipeline.Stage, error) {
	stages := make([]*pipeline.Stage, 0, len(c.Stages))
	for _, sc := range c.Stages {
		st, err := sc.build()
		if err != nil {
			return nil, err
		}
		stages = append(stages, st)
	}
	if err := pipeline.Validate(stages); err != nil {
		return nil, err
	}
	return stages, nil
}

func (sc *StageConfig) build() (*pipeline.Stage, error) {
	act, err := action.New(sc.Action, sc.With)
	if err != nil {
		return nil, configErr("stage %s: %w", sc.ID, err)
	}

	st := &pipeline.Stage{
		ID:          sc.ID,
		Needs:       sc.Needs,
		Required:    sc.Required == nil || *sc.Required,
		Credentials: sc.Credentials,
		Action:      act,
	}

	if sc.Timeout != "" {
		d, err := time.ParseDuration(sc.Timeout)
		if err != nil {
			return nil, configErr("stage %s: bad timeout %q: %w", sc.ID, sc.Timeout, err)
		}
		st.Timeout = d
	}

	if sc.Retry.Attempts > 0 {
		st.Retry.Attempts = sc.Retry.Attempts
		st.Retry.Exponential = sc.Retry.Exponential
		if sc.Retry.Backoff != "" {
			d, err := time.ParseDuration(sc.Retry.Backoff)
			if err != nil {
				return nil, configErr("stage %s: bad retry backoff %q: %w", sc.ID, sc.Retry.Backoff, err)
			}
			st.Retry.Backoff = d
		}
	}

	for _, in := range sc.Inputs {
		key, err := artifact.ParseKey(in)
		if err != nil {
			return nil, configErr("stage %s: bad input %q: %w", sc.ID, in, err)
		}
		st.Inputs = append(st.Inputs, pipeline.InputRef{Stage: key.Stage, Name: key.Name})
	}

	for _, out := range sc.Outputs {
		if out.Name == "" {
			return nil, configErr("stage %s: output with no name", sc.ID)
		}
		kind := artifact.Kind(out.Kind)
		if out.Kind == "" {
			kind = artifact.KindLog
		} else if !validKinds[kind] {
			return nil, configErr("stage %s: unknown artifact kind %q for output %s", sc.ID, out.Kind, out.Name)
		}
		st.Outputs = append(st.Outputs, pipeline.OutputDecl{Name: out.Name, Kind: kind})
	}

	// Actions that resolve their own credentials declare them here so
	// the resolver can refuse the run before anything executes.
	if cn, ok := act.(interface{ CredentialNames() []string }); ok {
		for _, name := range cn.CredentialNames() {
			if !containsString(st.Credentials, name) {
				st.Credentials = append(st.Credentials, name)
			}
		}
	}

	return st, nil
}

func containsString(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
