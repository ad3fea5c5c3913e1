package audit

import (
	"fmt"
	"log/slog"

	"github.com/tetraminz/churn_audit/internal/category"
	"github.com/tetraminz/churn_audit/internal/compute"
	"github.com/tetraminz/churn_audit/internal/correction"
	"github.com/tetraminz/churn_audit/internal/dataset"
	"github.com/tetraminz/churn_audit/internal/rules"
)

const defaultProgressEvery = 1000

// Finding is a dialog whose recorded classification looks wrong.
type Finding struct {
	Record   dataset.Record
	Reasons  []rules.Reason
	Category category.Category
}

// ReasonText is the joined reason list as written to the findings table.
func (f Finding) ReasonText() string { return rules.Join(f.Reasons) }

// Result is the outcome of one batch. Corrections[i] belongs to Findings[i].
type Result struct {
	Total         int
	Failed        int
	Findings      []Finding
	Corrections   []correction.Correction
	Stats         compute.Stats
	Effectiveness compute.Effectiveness
}

// Auditor runs the rule set over a dataset, one row at a time.
type Auditor struct {
	eval          *rules.Evaluator
	logger        *slog.Logger
	progressEvery int
}

type Option func(*Auditor)

// WithLogger sets the logger used for progress and row failures.
func WithLogger(logger *slog.Logger) Option {
	return func(a *Auditor) {
		if logger != nil {
			a.logger = logger
		}
	}
}

// WithProgressEvery sets how many rows pass between progress log lines.
// Non-positive values disable progress logging.
func WithProgressEvery(n int) Option {
	return func(a *Auditor) { a.progressEvery = n }
}

func New(eval *rules.Evaluator, opts ...Option) *Auditor {
	if eval == nil {
		eval = rules.NewEvaluator(nil)
	}
	a := &Auditor{
		eval:          eval,
		logger:        slog.Default(),
		progressEvery: defaultProgressEvery,
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Run evaluates records in order, classifies and corrects every finding and
// aggregates the batch. A row whose evaluation panics is logged and treated
// as having no reasons.
func (a *Auditor) Run(records []dataset.Record) Result {
	res := Result{Total: len(records)}

	for i, rec := range records {
		reasons, err := a.evaluate(rec)
		if err != nil {
			res.Failed++
			a.logger.Error("evaluate row", "row", rec.RowIndex, "client_id", rec.ClientID, "error", err)
		}
		if len(reasons) > 0 {
			res.Findings = append(res.Findings, Finding{
				Record:   rec,
				Reasons:  reasons,
				Category: category.Classify(reasons),
			})
		}

		if a.progressEvery > 0 && (i+1)%a.progressEvery == 0 {
			a.logger.Info("audit progress", "rows", i+1, "total", len(records), "findings", len(res.Findings))
		}
	}

	categories := make([]category.Category, 0, len(res.Findings))
	for _, f := range res.Findings {
		categories = append(categories, f.Category)
	}
	res.Stats = compute.ComputeStats(res.Total, categories)

	if len(res.Findings) == 0 {
		return res
	}

	res.Corrections = make([]correction.Correction, 0, len(res.Findings))
	for _, f := range res.Findings {
		res.Corrections = append(res.Corrections, correction.Correct(f.Category, f.Record.Status, f.Record.Result))
	}
	res.Effectiveness = compute.ComputeEffectiveness(res.Corrections)
	return res
}

func (a *Auditor) evaluate(rec dataset.Record) (reasons []rules.Reason, err error) {
	defer func() {
		if r := recover(); r != nil {
			reasons, err = nil, fmt.Errorf("rule evaluation panicked: %v", r)
		}
	}()

	return a.eval.Evaluate(rules.Dialog{
		Status:     rec.Status,
		Result:     rec.Result,
		Transcript: rec.Transcript,
		Prompts:    rec.Prompts,
	}), nil
}
