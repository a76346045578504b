// Package output renders pipeline runs for terminals and CI logs.
package output

import (
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/sofmeright/conveyor/src/pipeline"
)

// Colors for terminal output.
const (
	colorReset  = "\033[0m"
	colorRed    = "\033[31m"
	colorGreen  = "\033[32m"
	colorYellow = "\033[33m"
	colorGray   = "\033[90m"
	colorBold   = "\033[1m"
)

const sectionWidth = 61 // inner width between │ and line end

// Section renders a box-drawing framed output section.
type Section struct {
	w     io.Writer
	name  string
	color bool
}

// NewSection creates a section and writes its header. If elapsed is
// non-zero, it appears right-aligned in the header.
func NewSection(w io.Writer, name string, elapsed time.Duration, color bool) *Section {
	s := &Section{w: w, name: name, color: color}
	s.writeHeader(elapsed)
	return s
}

// Row writes a content line inside the section frame.
func (s *Section) Row(format string, args ...any) {
	line := fmt.Sprintf(format, args...)
	fmt.Fprintf(s.w, "    │ %s\n", line)
}

// Separator writes a mid-section divider.
func (s *Section) Separator() {
	fmt.Fprintf(s.w, "    ├%s\n", strings.Repeat("─", sectionWidth))
}

// Close writes the section footer.
func (s *Section) Close() {
	fmt.Fprintf(s.w, "    └%s\n", strings.Repeat("─", sectionWidth))
}

// writeHeader renders: ── Name ──────────────────── elapsed ──
func (s *Section) writeHeader(elapsed time.Duration) {
	label := fmt.Sprintf("── %s ", s.name)

	var suffix string
	if elapsed > 0 {
		suffix = fmt.Sprintf(" %s ──", formatElapsed(elapsed))
	} else {
		suffix = "──"
	}

	fill := sectionWidth + 4 - len(label) - len(suffix)
	if fill < 1 {
		fill = 1
	}

	if s.color {
		fmt.Fprintf(s.w, "\n    \033[2;36m%s%s%s\033[0m\n", label, strings.Repeat("─", fill), suffix)
	} else {
		fmt.Fprintf(s.w, "\n    %s%s%s\n", label, strings.Repeat("─", fill), suffix)
	}
}

// Printer renders pipeline runs.
type Printer struct {
	Writer io.Writer
	Color  bool
}

// NewPrinter creates a printer writing to stdout with color auto-detection.
func NewPrinter() *Printer {
	return &Printer{
		Writer: os.Stdout,
		Color:  UseColor(),
	}
}

// StageRow writes one stage result line as it completes.
func (p *Printer) StageRow(res pipeline.ExecutionResult) {
	icon := StatusIcon(string(res.Status), p.Color)
	detail := formatElapsed(res.Duration)
	if res.Status == pipeline.StatusSkipped {
		detail = "-"
	}
	attempts := ""
	if res.Attempts > 1 {
		attempts = fmt.Sprintf(" (attempt %d)", res.Attempts)
	}
	fmt.Fprintf(p.Writer, "    %s %-16s%10s%s\n", icon, res.StageID, detail, attempts)
	if res.Error != "" && res.Status == pipeline.StatusFailed {
		fmt.Fprintf(p.Writer, "      %s\n", p.colorize(res.Error, colorRed))
	}
}

// RunTable renders the full result table of a finished run inside a
// framed section.
func (p *Printer) RunTable(run *pipeline.PipelineRun) {
	sec := NewSection(p.Writer, "Pipeline "+shortID(run.ID), run.Finished.Sub(run.Started), p.Color)
	sec.Row("%-16s %-9s %10s  %s", "stage", "status", "elapsed", "artifacts")

	for _, res := range run.Results {
		elapsed := formatElapsed(res.Duration)
		if res.Status == pipeline.StatusSkipped {
			elapsed = "-"
		}
		arts := ""
		if n := len(res.Produced); n > 0 {
			arts = fmt.Sprintf("%d", n)
		}
		sec.Row("%-16s %-9s %10s  %s", res.StageID, p.statusText(res.Status), elapsed, arts)
	}

	if warnings := run.Warnings(); len(warnings) > 0 {
		sec.Separator()
		for _, w := range warnings {
			sec.Row("%s %s", p.colorize("warn", colorYellow), w)
		}
	}

	sec.Separator()
	success, failed, skipped := run.Counts()
	sec.Row("%-16s %s  %s", "total",
		StatusIcon(string(run.Status), p.Color),
		SummaryLine(success, failed, skipped, p.Color))
	sec.Close()
}

// SummaryLine returns a one-line run summary, optionally colored.
func SummaryLine(success, failed, skipped int, color bool) string {
	parts := []string{}
	if success > 0 {
		s := fmt.Sprintf("%d succeeded", success)
		if color {
			s = colorGreen + s + colorReset
		}
		parts = append(parts, s)
	}
	if failed > 0 {
		s := fmt.Sprintf("%d failed", failed)
		if color {
			s = colorRed + s + colorReset
		}
		parts = append(parts, s)
	}
	if skipped > 0 {
		s := fmt.Sprintf("%d skipped", skipped)
		if color {
			s = colorGray + s + colorReset
		}
		parts = append(parts, s)
	}
	if len(parts) == 0 {
		return "no stages"
	}
	return strings.Join(parts, ", ")
}

func (p *Printer) statusText(status pipeline.Status) string {
	if !p.Color {
		return string(status)
	}
	switch status {
	case pipeline.StatusSuccess:
		return colorGreen + string(status) + colorReset
	case pipeline.StatusFailed:
		return colorRed + string(status) + colorReset
	case pipeline.StatusSkipped:
		return colorGray + string(status) + colorReset
	default:
		return string(status)
	}
}

// StatusIcon returns a status icon, colored when enabled.
func StatusIcon(status string, color bool) string {
	if !color {
		switch status {
		case "success":
			return "✓"
		case "failed":
			return "✗"
		default:
			return "⊘"
		}
	}
	switch status {
	case "success":
		return "\033[32m✓\033[0m"
	case "failed":
		return "\033[31m✗\033[0m"
	default:
		return "\033[33m⊘\033[0m"
	}
}

func (p *Printer) colorize(text, color string) string {
	if !p.Color {
		return text
	}
	return color + text + colorReset
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

// formatElapsed formats a duration for display.
func formatElapsed(d time.Duration) string {
	if d < time.Millisecond {
		return "<1ms"
	}
	if d < time.Second {
		return fmt.Sprintf("%dms", d.Milliseconds())
	}
	if d < time.Minute {
		return fmt.Sprintf("%.1fs", d.Seconds())
	}
	mins := int(d.Minutes())
	secs := d.Seconds() - float64(mins*60)
	return fmt.Sprintf("%dm%.1fs", mins, secs)
}

func isTerminal() bool {
	fi, err := os.Stdout.Stat()
	if err != nil {
		return false
	}
	return fi.Mode()&os.ModeCharDevice != 0
}

// UseColor returns true if colored output should be used.
// Respects NO_COLOR env, TERM=dumb, and terminal detection.
func UseColor() bool {
	if os.Getenv("NO_COLOR") != "" {
		return false
	}
	if os.Getenv("TERM") == "dumb" {
		return false
	}
	return isTerminal() || IsCI()
}
