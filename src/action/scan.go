package action

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"github.com/sofmeright/conveyor/src/pipeline"
)

func init() {
	Register("scan", func() pipeline.Action { return &scanAction{} })
}

// scanAction runs a Trivy vulnerability scan against a pushed digest
// (or image reference) and emits the structured report as an artifact.
//
// Options:
//
//	target:           input key holding the digest or image reference  (required)
//	fail_on_critical: true   # stage fails when critical vulns are found
type scanAction struct {
	targetInput    string
	failOnCritical bool
}

// vulnCounts is the subset of the Trivy JSON report the orchestrator
// interprets; the full JSON travels as the report artifact.
type vulnCounts struct {
	Critical int
	High     int
	Medium   int
	Low      int
}

func (c vulnCounts) total() int { return c.Critical + c.High + c.Medium + c.Low }

func (a *scanAction) Kind() string { return "scan" }

func (a *scanAction) Configure(options map[string]any) error {
	target, ok := stringOption(options, "target")
	if !ok || target == "" {
		return errors.New("missing required option: target")
	}
	a.targetInput = target
	a.failOnCritical = boolOption(options, "fail_on_critical", true)
	return nil
}

func (a *scanAction) Run(ctx context.Context, inv *pipeline.Invocation) (map[string][]byte, error) {
	in, ok := inv.Inputs[a.targetInput]
	if !ok {
		return nil, fmt.Errorf("no scan target input %q", a.targetInput)
	}
	target := strings.TrimSpace(string(in.Payload))

	reportPath := filepath.Join(os.TempDir(), fmt.Sprintf("conveyor-scan-%s.json", inv.Stage.ID))
	defer os.Remove(reportPath)

	cmd := exec.CommandContext(ctx, "trivy", "image", "--format", "json", "--output", reportPath, target)
	cmd.Stdout = inv.Stderr
	cmd.Stderr = inv.Stderr
	if err := cmd.Run(); err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			return nil, &pipeline.ExecutionError{Stage: inv.Stage.ID, ExitCode: exitErr.ExitCode(), Err: fmt.Errorf("trivy scan: %w", err)}
		}
		return nil, fmt.Errorf("trivy scan: %w", err)
	}

	report, err := os.ReadFile(reportPath)
	if err != nil {
		return nil, fmt.Errorf("reading scan report: %w", err)
	}

	counts, err := countVulnerabilities(report)
	if err != nil {
		return nil, fmt.Errorf("parsing scan report: %w", err)
	}
	fmt.Fprintf(inv.Stdout, "scan of %s: %d vulnerabilities (%d critical, %d high, %d medium, %d low)\n",
		target, counts.total(), counts.Critical, counts.High, counts.Medium, counts.Low)

	if a.failOnCritical && counts.Critical > 0 {
		// The report still commits on declared-output paths only when
		// the stage succeeds, so surface the counts in the error.
		return nil, &pipeline.ExecutionError{
			Stage: inv.Stage.ID,
			Err:   fmt.Errorf("%d critical vulnerabilities found", counts.Critical),
		}
	}

	return map[string][]byte{"report": report}, nil
}

// countVulnerabilities tallies severities from a Trivy JSON report.
func countVulnerabilities(data []byte) (vulnCounts, error) {
	var report struct {
		Results []struct {
			Vulnerabilities []struct {
				Severity string `json:"Severity"`
			} `json:"Vulnerabilities"`
		} `json:"Results"`
	}
	if err := json.Unmarshal(data, &report); err != nil {
		return vulnCounts{}, err
	}

	var c vulnCounts
	for _, r := range report.Results {
		for _, v := range r.Vulnerabilities {
			switch strings.ToUpper(v.Severity) {
			case "CRITICAL":
				c.Critical++
			case "HIGH":
				c.High++
			case "MEDIUM":
				c.Medium++
			case "LOW":
				c.Low++
			}
		}
	}
	return c, nil
}
