package main

import (
	"time"

	"github.com/tetraminz/churn_audit/internal/recommend"
	"github.com/tetraminz/churn_audit/internal/rules"
)

var version = "0.1.0-dev"

const (
	findingsFile      = "final_confirmed_errors.xlsx"
	detailsFile       = "error_details.xlsx"
	correctionsFile   = "correction_table.xlsx"
	summaryFile       = "correction_summary.xlsx"
	overlayFile       = "dialogs_with_corrected_status.xlsx"
	accuracyChartFile = "accuracy_analysis.png"
	priorityChartFile = "error_priority.png"
)

// RunConfig describes one `run`: which dataset to audit and where results go.
type RunConfig struct {
	InputPath string
	OutputDir string
	DBPath    string
	Mode      recommend.Mode
	// Evaluator carries the compiled phrase lists; nil uses the defaults.
	Evaluator *rules.Evaluator
	// Generator is used in ModeAI; nil yields fallback sections.
	Generator recommend.Generator
	// Now stamps the run; defaults to time.Now.
	Now func() time.Time
}

// RunOutcome is what a finished run reports back to the console.
type RunOutcome struct {
	RunID           string
	Written         []string
	Recommendations string
}
