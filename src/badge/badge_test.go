package badge

import (
	"strings"
	"testing"

	"github.com/sofmeright/conveyor/src/pipeline"
)

func TestGenerateWithFallbackMetrics(t *testing.T) {
	e := New(nil)
	svg := e.Generate(Badge{Label: "pipeline", Value: "success", Color: "#4c1"})

	if !strings.HasPrefix(svg, `<svg xmlns="http://www.w3.org/2000/svg"`) {
		t.Errorf("not an svg: %s", svg[:40])
	}
	if !strings.Contains(svg, ">pipeline<") || !strings.Contains(svg, ">success<") {
		t.Error("badge text missing")
	}
	if !strings.Contains(svg, `fill="#4c1"`) {
		t.Error("value color missing")
	}
	// No font data loaded: no embedded @font-face.
	if strings.Contains(svg, "@font-face") {
		t.Error("fallback badge embeds a font")
	}
}

func TestGenerateDeterministic(t *testing.T) {
	e := New(nil)
	b := Badge{Label: "pipeline", Value: "failed", Color: "#e05d44"}
	if e.Generate(b) != e.Generate(b) {
		t.Error("same badge rendered differently")
	}
}

func TestGenerateEscapesText(t *testing.T) {
	e := New(nil)
	svg := e.Generate(Badge{Label: "a<b", Value: `x"y`, Color: "#4c1"})
	if strings.Contains(svg, "a<b") || strings.Contains(svg, `x"y</text>`) {
		t.Errorf("unescaped text in svg")
	}
	if !strings.Contains(svg, "a&lt;b") {
		t.Error("label not escaped")
	}
}

func TestStatusColor(t *testing.T) {
	cases := map[pipeline.Status]string{
		pipeline.StatusSuccess: "#4c1",
		pipeline.StatusFailed:  "#e05d44",
		pipeline.StatusSkipped: "#9f9f9f",
		pipeline.StatusRunning: "#007ec6",
	}
	for status, want := range cases {
		if got := StatusColor(status); got != want {
			t.Errorf("StatusColor(%s) = %s, want %s", status, got, want)
		}
	}
}

func TestForRun(t *testing.T) {
	run := &pipeline.PipelineRun{Status: pipeline.StatusFailed}
	b := ForRun(run)
	if b.Label != "pipeline" || b.Value != "failed" || b.Color != "#e05d44" {
		t.Errorf("badge = %+v", b)
	}
}

func TestWiderTextWiderBadge(t *testing.T) {
	e := New(nil)
	narrow := e.Generate(Badge{Label: "p", Value: "ok", Color: "#4c1"})
	wide := e.Generate(Badge{Label: "pipeline-status", Value: "successful", Color: "#4c1"})
	if len(wide) <= len(narrow) {
		t.Error("wider text did not widen the badge")
	}
}
