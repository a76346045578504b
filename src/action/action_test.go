package action

import (
	"context"
	"errors"
	"path/filepath"
	"strings"
	"testing"

	"github.com/sofmeright/conveyor/src/artifact"
	"github.com/sofmeright/conveyor/src/pipeline"
)

func TestRegistryKnownKinds(t *testing.T) {
	kinds := Kinds()
	for _, want := range []string{"image", "push", "scan", "script"} {
		found := false
		for _, k := range kinds {
			if k == want {
				found = true
			}
		}
		if !found {
			t.Errorf("kind %q not registered (have %v)", want, kinds)
		}
	}
}

func TestNewUnknownKind(t *testing.T) {
	if _, err := New("teleport", nil); err == nil {
		t.Fatal("unknown kind accepted")
	}
}

func TestScriptRequiresCommand(t *testing.T) {
	if _, err := New("script", nil); err == nil {
		t.Fatal("script without command accepted")
	}
}

func TestScriptRunsCommandAndCollects(t *testing.T) {
	dir := t.TempDir()
	a, err := New("script", map[string]any{
		"command": "printf built > out.txt",
		"collect": map[string]any{"binary": "out.txt"},
	})
	if err != nil {
		t.Fatalf("new: %v", err)
	}

	var out strings.Builder
	inv := &pipeline.Invocation{
		Stage:   &pipeline.Stage{ID: "compile"},
		WorkDir: dir,
		Stdout:  &out,
		Stderr:  &out,
	}
	outputs, err := a.Run(context.Background(), inv)
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if string(outputs["binary"]) != "built" {
		t.Errorf("collected = %q", outputs["binary"])
	}
}

func TestScriptNonZeroExitClassified(t *testing.T) {
	a, err := New("script", map[string]any{"command": "exit 3"})
	if err != nil {
		t.Fatalf("new: %v", err)
	}

	var out strings.Builder
	inv := &pipeline.Invocation{
		Stage:  &pipeline.Stage{ID: "test"},
		Stdout: &out,
		Stderr: &out,
	}
	_, err = a.Run(context.Background(), inv)
	var execErr *pipeline.ExecutionError
	if !errors.As(err, &execErr) {
		t.Fatalf("got %v, want ExecutionError", err)
	}
	if execErr.ExitCode != 3 {
		t.Errorf("exit code = %d, want 3", execErr.ExitCode)
	}
}

func TestScriptProvidesInputsAsEnv(t *testing.T) {
	dir := t.TempDir()
	a, err := New("script", map[string]any{
		"command": `printf "%s" "$IMAGE_REF" > seen.txt`,
		"provide": map[string]any{"package/image": "IMAGE_REF"},
		"collect": map[string]any{"seen": "seen.txt"},
	})
	if err != nil {
		t.Fatalf("new: %v", err)
	}

	var out strings.Builder
	inv := &pipeline.Invocation{
		Stage:   &pipeline.Stage{ID: "verify"},
		WorkDir: dir,
		Stdout:  &out,
		Stderr:  &out,
		Inputs: map[string]artifact.Artifact{
			"package/image": {
				Key:     artifact.Key{Stage: "package", Name: "image"},
				Kind:    artifact.KindImageRef,
				Payload: []byte("app:1.0"),
			},
		},
	}
	outputs, err := a.Run(context.Background(), inv)
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if string(outputs["seen"]) != "app:1.0" {
		t.Errorf("env round-trip = %q", outputs["seen"])
	}
}

func TestScriptCollectMissingFile(t *testing.T) {
	dir := t.TempDir()
	a, err := New("script", map[string]any{
		"command": "true",
		"collect": map[string]any{"binary": filepath.Join(dir, "absent")},
	})
	if err != nil {
		t.Fatalf("new: %v", err)
	}

	var out strings.Builder
	inv := &pipeline.Invocation{Stage: &pipeline.Stage{ID: "x"}, WorkDir: dir, Stdout: &out, Stderr: &out}
	if _, err := a.Run(context.Background(), inv); err == nil {
		t.Fatal("missing collect file accepted")
	}
}

func TestImageRequiresTag(t *testing.T) {
	if _, err := New("image", nil); err == nil {
		t.Fatal("image without tag accepted")
	}
}

func TestPushRequiresImage(t *testing.T) {
	if _, err := New("push", nil); err == nil {
		t.Fatal("push without image accepted")
	}
}

func TestPushCredentialNames(t *testing.T) {
	a, err := New("push", map[string]any{"image": "package/image", "credentials": "REGISTRY"})
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	p := a.(*pushAction)
	names := p.CredentialNames()
	if len(names) != 2 || names[0] != "REGISTRY_USER" || names[1] != "REGISTRY_PASS" {
		t.Errorf("credential names = %v", names)
	}
}

func TestScanRequiresTarget(t *testing.T) {
	if _, err := New("scan", nil); err == nil {
		t.Fatal("scan without target accepted")
	}
}

func TestCountVulnerabilities(t *testing.T) {
	report := []byte(`{
		"Results": [
			{"Vulnerabilities": [
				{"Severity": "CRITICAL"},
				{"Severity": "high"},
				{"Severity": "HIGH"},
				{"Severity": "LOW"}
			]},
			{"Vulnerabilities": [{"Severity": "MEDIUM"}]}
		]
	}`)
	c, err := countVulnerabilities(report)
	if err != nil {
		t.Fatalf("count: %v", err)
	}
	if c.Critical != 1 || c.High != 2 || c.Medium != 1 || c.Low != 1 {
		t.Errorf("counts = %+v", c)
	}
	if c.total() != 5 {
		t.Errorf("total = %d", c.total())
	}
}

func TestRefHelpers(t *testing.T) {
	cases := []struct {
		ref, host, repo string
	}{
		{"registry.example.com/team/app:1.0", "registry.example.com", "registry.example.com/team/app"},
		{"localhost:5000/app:dev", "localhost:5000", "localhost:5000/app"},
		{"library/app:latest", "docker.io", "library/app"},
		{"app", "docker.io", "app"},
	}
	for _, c := range cases {
		if got := refHost(c.ref); got != c.host {
			t.Errorf("refHost(%q) = %q, want %q", c.ref, got, c.host)
		}
		if got := refRepo(c.ref); got != c.repo {
			t.Errorf("refRepo(%q) = %q, want %q", c.ref, got, c.repo)
		}
	}
}
