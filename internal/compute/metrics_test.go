package compute

import (
	"math"
	"testing"

	"github.com/tetraminz/churn_audit/internal/category"
	"github.com/tetraminz/churn_audit/internal/correction"
)

func TestComputeStats(t *testing.T) {
	t.Parallel()

	categories := []category.Category{
		category.IgnoredQuestions,
		category.WrongPerson,
		category.IgnoredQuestions,
		category.CommunicationBreakdown,
		category.WrongPerson,
		category.Category("Новая причина"),
	}

	got := ComputeStats(20, categories)

	if got.Errors != 6 {
		t.Fatalf("Errors got %d want %d", got.Errors, 6)
	}
	if math.Abs(got.ErrorRate-30) > 1e-9 {
		t.Fatalf("ErrorRate got %v want %v", got.ErrorRate, 30.0)
	}
	if math.Abs(got.Accuracy()-70) > 1e-9 {
		t.Fatalf("Accuracy got %v want %v", got.Accuracy(), 70.0)
	}

	wantOrder := []category.Category{
		category.WrongPerson,
		category.IgnoredQuestions,
		category.CommunicationBreakdown,
		category.Category("Новая причина"),
	}
	if len(got.Categories) != len(wantOrder) {
		t.Fatalf("category rows got %d want %d", len(got.Categories), len(wantOrder))
	}

	sumCount := 0
	sumPercent := 0.0
	for i, row := range got.Categories {
		if row.Category != wantOrder[i] {
			t.Fatalf("category[%d] got %q want %q", i, row.Category, wantOrder[i])
		}
		sumCount += row.Count
		sumPercent += row.PercentOfErrors
	}
	if sumCount != got.Errors {
		t.Fatalf("sum of counts got %d want %d", sumCount, got.Errors)
	}
	if math.Abs(sumPercent-100) > 1e-6 {
		t.Fatalf("sum of percent of errors got %v want 100", sumPercent)
	}
	if math.Abs(got.Categories[0].PercentOfDialogs-10) > 1e-9 {
		t.Fatalf("PercentOfDialogs got %v want %v", got.Categories[0].PercentOfDialogs, 10.0)
	}

	main, ok := got.Main()
	if !ok || main.Category != category.WrongPerson {
		t.Fatalf("Main got %q/%v want %q", main.Category, ok, category.WrongPerson)
	}
}

func TestComputeStatsEmptyBatch(t *testing.T) {
	t.Parallel()

	got := ComputeStats(0, nil)

	if got.Errors != 0 || got.ErrorRate != 0 || got.Accuracy() != 0 {
		t.Fatalf("empty stats got %+v", got)
	}
	if len(got.Categories) != 0 {
		t.Fatalf("categories got %d want 0", len(got.Categories))
	}
	if _, ok := got.Main(); ok {
		t.Fatalf("Main reported a category for an empty batch")
	}

	clean := ComputeStats(5, nil)
	if clean.ErrorRate != 0 || clean.Accuracy() != 100 {
		t.Fatalf("clean stats got rate %v accuracy %v", clean.ErrorRate, clean.Accuracy())
	}
}

func TestComputeEffectiveness(t *testing.T) {
	t.Parallel()

	corrections := []correction.Correction{
		correction.Correct(category.WrongPerson, correction.StatusConfirmed, "отказ"),
		correction.Correct(category.UncertainChurn, correction.StatusConfirmed, "отказ"),
		correction.Correct(category.IgnoredQuestions, correction.StatusConfirmed, "отказ"),
		correction.Correct(category.FalseNegativeChurn, correction.StatusNotConfirmed, "согласие"),
	}

	got := ComputeEffectiveness(corrections)

	if got.Corrections != 4 {
		t.Fatalf("Corrections got %d want %d", got.Corrections, 4)
	}
	if got.StatusChanges != 2 {
		t.Fatalf("StatusChanges got %d want %d", got.StatusChanges, 2)
	}
	if got.ResultChanges != 3 {
		t.Fatalf("ResultChanges got %d want %d", got.ResultChanges, 3)
	}
	if got.Rate != 50 {
		t.Fatalf("Rate got %v want %v", got.Rate, 50.0)
	}
	if got.Verdict != VerdictLow {
		t.Fatalf("Verdict got %q want %q", got.Verdict, VerdictLow)
	}
}

func TestEffectivenessVerdictThresholds(t *testing.T) {
	t.Parallel()

	changed := correction.Correct(category.WrongPerson, correction.StatusConfirmed, "отказ")
	kept := correction.Correct(category.FalseNegativeChurn, correction.StatusNotConfirmed, "согласие")

	build := func(changedN, keptN int) []correction.Correction {
		out := make([]correction.Correction, 0, changedN+keptN)
		for i := 0; i < changedN; i++ {
			out = append(out, changed)
		}
		for i := 0; i < keptN; i++ {
			out = append(out, kept)
		}
		return out
	}

	tests := []struct {
		name    string
		input   []correction.Correction
		verdict string
	}{
		{name: "exactly 80 is medium", input: build(4, 1), verdict: VerdictMedium},
		{name: "above 80 is high", input: build(9, 1), verdict: VerdictHigh},
		{name: "exactly 60 is low", input: build(3, 2), verdict: VerdictLow},
		{name: "no corrections", input: nil, verdict: VerdictLow},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ComputeEffectiveness(tt.input).Verdict; got != tt.verdict {
				t.Fatalf("verdict got %q want %q", got, tt.verdict)
			}
		})
	}
}
