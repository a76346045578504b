package output

import (
	"strings"
	"testing"
	"time"

	"github.com/sofmeright/conveyor/src/pipeline"
)

func TestWriteJUnit(t *testing.T) {
	started := time.Date(2026, 8, 20, 9, 0, 0, 0, time.UTC)
	run := &pipeline.PipelineRun{
		ID:       "0123456789abcdef",
		Status:   pipeline.StatusFailed,
		Started:  started,
		Finished: started.Add(30 * time.Second),
		Results: []pipeline.ExecutionResult{
			{StageID: "compile", Status: pipeline.StatusSuccess, Duration: 5 * time.Second},
			{StageID: "test", Status: pipeline.StatusFailed, Duration: 3 * time.Second, Error: "2 tests failed", Output: "FAIL pkg"},
			{StageID: "package", Status: pipeline.StatusSkipped, Error: "required upstream stage failed"},
		},
	}

	var sb strings.Builder
	if err := WriteJUnit(&sb, run); err != nil {
		t.Fatalf("junit: %v", err)
	}
	out := sb.String()

	for _, want := range []string{
		`tests="3"`,
		`failures="1"`,
		`skipped="1"`,
		`name="compile"`,
		`message="2 tests failed"`,
		`<skipped message="required upstream stage failed"`,
	} {
		if !strings.Contains(out, want) {
			t.Errorf("junit output missing %q:\n%s", want, out)
		}
	}
}

func TestSummaryLine(t *testing.T) {
	if got := SummaryLine(3, 1, 2, false); got != "3 succeeded, 1 failed, 2 skipped" {
		t.Errorf("summary = %q", got)
	}
	if got := SummaryLine(0, 0, 0, false); got != "no stages" {
		t.Errorf("empty summary = %q", got)
	}
}

func TestFormatElapsed(t *testing.T) {
	cases := map[time.Duration]string{
		500 * time.Microsecond:  "<1ms",
		42 * time.Millisecond:   "42ms",
		1500 * time.Millisecond: "1.5s",
		90 * time.Second:        "1m30.0s",
	}
	for d, want := range cases {
		if got := formatElapsed(d); got != want {
			t.Errorf("formatElapsed(%s) = %q, want %q", d, got, want)
		}
	}
}
