package executor

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/sofmeright/conveyor/src/artifact"
	"github.com/sofmeright/conveyor/src/pipeline"
	"github.com/sofmeright/conveyor/src/secret"
)

// fakeAction lets tests script stage behavior.
type fakeAction struct {
	run func(ctx context.Context, inv *pipeline.Invocation) (map[string][]byte, error)
}

func (fakeAction) Kind() string { return "fake" }
func (a fakeAction) Run(ctx context.Context, inv *pipeline.Invocation) (map[string][]byte, error) {
	if a.run == nil {
		return map[string][]byte{}, nil
	}
	return a.run(ctx, inv)
}

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newExecutor(secrets map[string]string) *Executor {
	return &Executor{
		Store:   artifact.NewStore(),
		Secrets: secret.NewResolver(secrets),
		Logger:  quietLogger(),
	}
}

func TestRunCommitsDeclaredOutputs(t *testing.T) {
	e := newExecutor(nil)
	st := &pipeline.Stage{
		ID:       "compile",
		Required: true,
		Outputs:  []pipeline.OutputDecl{{Name: "binary", Kind: artifact.KindBinary}},
		Action: fakeAction{run: func(_ context.Context, _ *pipeline.Invocation) (map[string][]byte, error) {
			return map[string][]byte{"binary": []byte("elf-bytes")}, nil
		}},
	}

	res := e.Run(context.Background(), st)
	if res.Status != pipeline.StatusSuccess {
		t.Fatalf("status = %s (%s)", res.Status, res.Error)
	}
	if len(res.Produced) != 1 || res.Produced[0].String() != "compile/binary" {
		t.Errorf("produced = %v", res.Produced)
	}

	a, err := e.Store.Get(artifact.Key{Stage: "compile", Name: "binary"})
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if string(a.Payload) != "elf-bytes" {
		t.Errorf("payload = %q", a.Payload)
	}
}

func TestRunFailsOnUndeclaredOutput(t *testing.T) {
	e := newExecutor(nil)
	st := &pipeline.Stage{
		ID:      "compile",
		Outputs: []pipeline.OutputDecl{{Name: "binary", Kind: artifact.KindBinary}},
		Action: fakeAction{run: func(_ context.Context, _ *pipeline.Invocation) (map[string][]byte, error) {
			return map[string][]byte{"binary": nil, "extra": nil}, nil
		}},
	}

	res := e.Run(context.Background(), st)
	if res.Status != pipeline.StatusFailed {
		t.Fatalf("status = %s, want failed", res.Status)
	}
	if !strings.Contains(res.Error, "undeclared output") {
		t.Errorf("error = %q", res.Error)
	}
	if len(e.Store.Keys()) != 0 {
		t.Error("outputs committed despite failure")
	}
}

func TestRunFailsOnMissingDeclaredOutput(t *testing.T) {
	e := newExecutor(nil)
	st := &pipeline.Stage{
		ID:      "compile",
		Outputs: []pipeline.OutputDecl{{Name: "binary", Kind: artifact.KindBinary}},
		Action:  fakeAction{},
	}

	res := e.Run(context.Background(), st)
	if res.Status != pipeline.StatusFailed {
		t.Fatalf("status = %s, want failed", res.Status)
	}
	if !strings.Contains(res.Error, "was not produced") {
		t.Errorf("error = %q", res.Error)
	}
}

func TestRunResolvesDeclaredInputs(t *testing.T) {
	e := newExecutor(nil)
	seed := artifact.Artifact{
		Key:     artifact.Key{Stage: "package", Name: "image"},
		Kind:    artifact.KindImageRef,
		Payload: []byte("registry.example.com/app:1.2.3"),
	}
	if err := e.Store.Put(seed); err != nil {
		t.Fatalf("seed: %v", err)
	}

	var seen string
	st := &pipeline.Stage{
		ID:     "push",
		Needs:  []string{"package"},
		Inputs: []pipeline.InputRef{{Stage: "package", Name: "image"}},
		Action: fakeAction{run: func(_ context.Context, inv *pipeline.Invocation) (map[string][]byte, error) {
			a, ok := inv.Input("package", "image")
			if !ok {
				return nil, errors.New("input missing")
			}
			seen = string(a.Payload)
			return map[string][]byte{}, nil
		}},
	}

	res := e.Run(context.Background(), st)
	if res.Status != pipeline.StatusSuccess {
		t.Fatalf("status = %s (%s)", res.Status, res.Error)
	}
	if seen != "registry.example.com/app:1.2.3" {
		t.Errorf("input payload = %q", seen)
	}
}

func TestRunMissingArtifactFailsStage(t *testing.T) {
	e := newExecutor(nil)
	st := &pipeline.Stage{
		ID:     "push",
		Needs:  []string{"package"},
		Inputs: []pipeline.InputRef{{Stage: "package", Name: "image"}},
		Action: fakeAction{},
	}

	res := e.Run(context.Background(), st)
	if res.Status != pipeline.StatusFailed {
		t.Fatalf("status = %s, want failed", res.Status)
	}
	if !strings.Contains(res.Error, "not found") {
		t.Errorf("error = %q", res.Error)
	}
}

func TestRunRefusesUndeclaredInputAtDispatch(t *testing.T) {
	e := newExecutor(nil)
	if err := e.Store.Put(artifact.Artifact{
		Key:     artifact.Key{Stage: "compile", Name: "binary"},
		Kind:    artifact.KindBinary,
		Payload: []byte("x"),
	}); err != nil {
		t.Fatalf("seed: %v", err)
	}

	st := &pipeline.Stage{
		ID:     "scan",
		Needs:  []string{"push"}, // compile not declared
		Inputs: []pipeline.InputRef{{Stage: "compile", Name: "binary"}},
		Action: fakeAction{},
	}

	res := e.Run(context.Background(), st)
	if res.Status != pipeline.StatusFailed {
		t.Fatalf("status = %s, want failed", res.Status)
	}
	if !strings.Contains(res.Error, "declared dependency") {
		t.Errorf("error = %q", res.Error)
	}
}

func TestRunTimeoutIsNotRetried(t *testing.T) {
	e := newExecutor(nil)
	var calls atomic.Int32
	st := &pipeline.Stage{
		ID:      "slow",
		Timeout: 20 * time.Millisecond,
		Retry:   pipeline.RetryPolicy{Attempts: 3, Backoff: time.Millisecond},
		Action: fakeAction{run: func(ctx context.Context, _ *pipeline.Invocation) (map[string][]byte, error) {
			calls.Add(1)
			<-ctx.Done()
			return nil, ctx.Err()
		}},
	}

	res := e.Run(context.Background(), st)
	if res.Status != pipeline.StatusFailed {
		t.Fatalf("status = %s, want failed", res.Status)
	}
	if !strings.Contains(res.Error, "timed out") {
		t.Errorf("error = %q", res.Error)
	}
	if got := calls.Load(); got != 1 {
		t.Errorf("action invoked %d times after timeout, want 1", got)
	}
}

func TestRunRetriesTransientFailure(t *testing.T) {
	e := newExecutor(nil)
	var calls atomic.Int32
	st := &pipeline.Stage{
		ID:      "flaky",
		Retry:   pipeline.RetryPolicy{Attempts: 3, Backoff: time.Millisecond},
		Outputs: []pipeline.OutputDecl{{Name: "out", Kind: artifact.KindLog}},
		Action: fakeAction{run: func(_ context.Context, inv *pipeline.Invocation) (map[string][]byte, error) {
			n := calls.Add(1)
			fmt.Fprintf(inv.Stdout, "attempt %d\n", n)
			if n < 3 {
				return nil, errors.New("transient")
			}
			return map[string][]byte{"out": []byte("ok")}, nil
		}},
	}

	res := e.Run(context.Background(), st)
	if res.Status != pipeline.StatusSuccess {
		t.Fatalf("status = %s (%s)", res.Status, res.Error)
	}
	if res.Attempts != 3 {
		t.Errorf("attempts = %d, want 3", res.Attempts)
	}
	// Attempts are isolated: only the final attempt's output is kept.
	if strings.Contains(res.Output, "attempt 1") || !strings.Contains(res.Output, "attempt 3") {
		t.Errorf("output = %q", res.Output)
	}
}

func TestRunRedactsSecretsInOutput(t *testing.T) {
	e := newExecutor(map[string]string{"REGISTRY_PASS": "p4ssw0rd-value"})
	st := &pipeline.Stage{
		ID:          "push",
		Credentials: []string{"REGISTRY_PASS"},
		Action: fakeAction{run: func(_ context.Context, inv *pipeline.Invocation) (map[string][]byte, error) {
			s := inv.Secrets["REGISTRY_PASS"]
			fmt.Fprintf(inv.Stdout, "docker login -p %s\n", s.Value())
			return map[string][]byte{}, nil
		}},
	}

	res := e.Run(context.Background(), st)
	if res.Status != pipeline.StatusSuccess {
		t.Fatalf("status = %s (%s)", res.Status, res.Error)
	}
	if strings.Contains(res.Output, "p4ssw0rd-value") {
		t.Errorf("secret leaked into captured output: %q", res.Output)
	}
	if !strings.Contains(res.Output, secret.Mask) {
		t.Errorf("no mask in output: %q", res.Output)
	}
}

func TestRunUnknownSecretFailsStage(t *testing.T) {
	e := newExecutor(nil)
	st := &pipeline.Stage{
		ID:          "push",
		Credentials: []string{"MISSING"},
		Action:      fakeAction{},
	}

	res := e.Run(context.Background(), st)
	if res.Status != pipeline.StatusFailed {
		t.Fatalf("status = %s, want failed", res.Status)
	}
	if !strings.Contains(res.Error, "unknown credential") {
		t.Errorf("error = %q", res.Error)
	}
}

func TestRunExitCodeRecorded(t *testing.T) {
	e := newExecutor(nil)
	st := &pipeline.Stage{
		ID: "test",
		Action: fakeAction{run: func(_ context.Context, _ *pipeline.Invocation) (map[string][]byte, error) {
			return nil, &pipeline.ExecutionError{Stage: "test", ExitCode: 2, Err: errors.New("tests failed")}
		}},
	}

	res := e.Run(context.Background(), st)
	if res.Status != pipeline.StatusFailed {
		t.Fatalf("status = %s, want failed", res.Status)
	}
	if res.ExitCode != 2 {
		t.Errorf("exit code = %d, want 2", res.ExitCode)
	}
}
