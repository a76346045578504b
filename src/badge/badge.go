// Package badge renders shields.io-compatible SVG status badges for
// pipeline runs, measured either with a loaded font or a built-in
// width table.
package badge

import (
	"github.com/sofmeright/conveyor/src/pipeline"
)

// Badge defines the content and appearance of a single badge.
type Badge struct {
	Label string // left side text
	Value string // right side text
	Color string // hex color for right side (e.g. "#4c1")
}

// Engine generates SVG badges using a specific set of font metrics.
type Engine struct {
	metrics *FontMetrics
}

// New creates a badge engine with the given font metrics. A nil
// metrics falls back to the built-in width table.
func New(metrics *FontMetrics) *Engine {
	if metrics == nil {
		metrics = FallbackMetrics()
	}
	return &Engine{metrics: metrics}
}

// Generate produces an SVG badge string.
func (e *Engine) Generate(b Badge) string {
	return e.renderSVG(b)
}

// ForRun builds the pipeline status badge for a finished run.
func ForRun(run *pipeline.PipelineRun) Badge {
	return Badge{
		Label: "pipeline",
		Value: string(run.Status),
		Color: StatusColor(run.Status),
	}
}

// StatusColor maps a run or stage status to a badge hex color.
func StatusColor(status pipeline.Status) string {
	switch status {
	case pipeline.StatusSuccess:
		return "#4c1"
	case pipeline.StatusFailed:
		return "#e05d44"
	case pipeline.StatusSkipped:
		return "#9f9f9f"
	case pipeline.StatusRunning:
		return "#007ec6"
	default:
		return "#9f9f9f"
	}
}
