package pipeline

import (
	"context"
	"errors"
	"testing"
)

type nopAction struct{}

func (nopAction) Kind() string { return "nop" }
func (nopAction) Run(context.Context, *Invocation) (map[string][]byte, error) {
	return nil, nil
}

func stage(id string, needs ...string) *Stage {
	return &Stage{ID: id, Needs: needs, Required: true, Action: nopAction{}}
}

// flatten returns stage ids batch by batch.
func flatten(batches [][]*Stage) []string {
	var out []string
	for _, b := range batches {
		for _, st := range b {
			out = append(out, st.ID)
		}
	}
	return out
}

func positions(batches [][]*Stage) map[string]int {
	pos := map[string]int{}
	for bi, b := range batches {
		for _, st := range b {
			pos[st.ID] = bi
		}
	}
	return pos
}

func TestPlanLinearPipeline(t *testing.T) {
	stages := []*Stage{
		stage("compile"),
		stage("test", "compile"),
		stage("package", "test"),
		stage("push", "package"),
		stage("scan", "push"),
	}

	batches, err := Plan(stages)
	if err != nil {
		t.Fatalf("plan: %v", err)
	}
	if len(batches) != 5 {
		t.Fatalf("batches = %d, want 5", len(batches))
	}
	want := []string{"compile", "test", "package", "push", "scan"}
	got := flatten(batches)
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("order[%d] = %s, want %s", i, got[i], want[i])
		}
	}
}

func TestPlanDependenciesBeforeDependents(t *testing.T) {
	stages := []*Stage{
		stage("compile"),
		stage("lint", "compile"),
		stage("unit-test", "compile"),
		stage("package", "lint", "unit-test"),
		stage("docs"),
		stage("push", "package"),
	}

	batches, err := Plan(stages)
	if err != nil {
		t.Fatalf("plan: %v", err)
	}

	pos := positions(batches)
	for _, st := range stages {
		for _, need := range st.Needs {
			if pos[need] >= pos[st.ID] {
				t.Errorf("%s (batch %d) not after %s (batch %d)", st.ID, pos[st.ID], need, pos[need])
			}
		}
	}

	// Independent stages share a batch.
	if pos["lint"] != pos["unit-test"] {
		t.Errorf("lint batch %d != unit-test batch %d", pos["lint"], pos["unit-test"])
	}
	if pos["docs"] != 0 {
		t.Errorf("docs batch = %d, want 0", pos["docs"])
	}
}

func TestPlanDeterministicTieBreak(t *testing.T) {
	stages := []*Stage{
		stage("b"),
		stage("a"),
		stage("c"),
	}
	for i := 0; i < 10; i++ {
		batches, err := Plan(stages)
		if err != nil {
			t.Fatalf("plan: %v", err)
		}
		got := flatten(batches)
		if got[0] != "b" || got[1] != "a" || got[2] != "c" {
			t.Fatalf("declaration order not preserved: %v", got)
		}
	}
}

func TestPlanCycle(t *testing.T) {
	stages := []*Stage{
		stage("compile", "scan"),
		stage("test", "compile"),
		stage("scan", "test"),
	}

	_, err := Plan(stages)
	var cycle *CycleError
	if !errors.As(err, &cycle) {
		t.Fatalf("got %v, want CycleError", err)
	}
	if len(cycle.Stages) == 0 {
		t.Error("cycle error names no stages")
	}
}

func TestPlanSelfCycle(t *testing.T) {
	_, err := Plan([]*Stage{stage("loop", "loop")})
	var cycle *CycleError
	if !errors.As(err, &cycle) {
		t.Fatalf("got %v, want CycleError", err)
	}
}

func TestPlanUnknownNeed(t *testing.T) {
	_, err := Plan([]*Stage{stage("test", "ghost")})
	var cfg *ConfigurationError
	if !errors.As(err, &cfg) {
		t.Fatalf("got %v, want ConfigurationError", err)
	}
}

func TestPlanDuplicateID(t *testing.T) {
	_, err := Plan([]*Stage{stage("x"), stage("x")})
	var cfg *ConfigurationError
	if !errors.As(err, &cfg) {
		t.Fatalf("got %v, want ConfigurationError", err)
	}
}

func TestPlanSubsetIncludesTransitiveDeps(t *testing.T) {
	stages := []*Stage{
		stage("compile"),
		stage("test", "compile"),
		stage("package", "test"),
		stage("push", "package"),
		stage("scan", "push"),
		stage("docs"),
	}

	batches, err := Plan(stages, "package")
	if err != nil {
		t.Fatalf("plan: %v", err)
	}

	got := flatten(batches)
	want := []string{"compile", "test", "package"}
	if len(got) != len(want) {
		t.Fatalf("subset = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("subset[%d] = %s, want %s", i, got[i], want[i])
		}
	}
}

func TestValidateRejectsUndeclaredInput(t *testing.T) {
	st := stage("scan", "push")
	st.Inputs = []InputRef{{Stage: "package", Name: "image"}}
	stages := []*Stage{stage("package"), stage("push", "package"), st}

	err := Validate(stages)
	var cfg *ConfigurationError
	if !errors.As(err, &cfg) {
		t.Fatalf("got %v, want ConfigurationError", err)
	}
}

func TestValidateRejectsMissingAction(t *testing.T) {
	err := Validate([]*Stage{{ID: "noop", Required: true}})
	var cfg *ConfigurationError
	if !errors.As(err, &cfg) {
		t.Fatalf("got %v, want ConfigurationError", err)
	}
}

func TestRetryPolicyDelay(t *testing.T) {
	fixed := RetryPolicy{Attempts: 3, Backoff: 100}
	if fixed.Delay(1) != 100 || fixed.Delay(3) != 100 {
		t.Errorf("fixed backoff changed across retries")
	}

	exp := RetryPolicy{Attempts: 4, Backoff: 100, Exponential: true}
	for i, want := range map[int]int64{1: 100, 2: 200, 3: 400} {
		if got := exp.Delay(i); got.Nanoseconds() != want {
			t.Errorf("exp.Delay(%d) = %d, want %d", i, got, want)
		}
	}
}
