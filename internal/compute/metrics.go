package compute

import (
	"sort"

	"github.com/tetraminz/churn_audit/internal/category"
	"github.com/tetraminz/churn_audit/internal/correction"
)

// Effectiveness verdicts, by share of corrections that changed the status.
const (
	VerdictHigh   = "Высокая эффективность коррекции"
	VerdictMedium = "Средняя эффективность коррекции"
	VerdictLow    = "Низкая эффективность коррекции"
)

// CategoryCount is one row of the category summary.
type CategoryCount struct {
	Category         category.Category `json:"category"`
	Count            int               `json:"count"`
	PercentOfErrors  float64           `json:"percent_of_errors"`
	PercentOfDialogs float64           `json:"percent_of_dialogs"`
}

// Stats are deterministic aggregate values for one batch.
type Stats struct {
	TotalDialogs int             `json:"total_dialogs"`
	Errors       int             `json:"errors"`
	ErrorRate    float64         `json:"error_rate"`
	Categories   []CategoryCount `json:"categories"`
}

// Accuracy is the percent of dialogs without findings, 0 for an empty batch.
func (s Stats) Accuracy() float64 {
	if s.TotalDialogs == 0 {
		return 0
	}
	return 100 - s.ErrorRate
}

// Main returns the most frequent category, if any.
func (s Stats) Main() (CategoryCount, bool) {
	if len(s.Categories) == 0 {
		return CategoryCount{}, false
	}
	return s.Categories[0], true
}

// ComputeStats aggregates the categories of all findings of a batch of
// totalDialogs rows. Categories are ordered by count descending, ties by
// classifier priority and then by label.
func ComputeStats(totalDialogs int, categories []category.Category) Stats {
	stats := Stats{
		TotalDialogs: totalDialogs,
		Errors:       len(categories),
		ErrorRate:    percent(len(categories), totalDialogs),
	}

	counts := make(map[category.Category]int, len(category.Priority))
	for _, c := range categories {
		counts[c]++
	}

	stats.Categories = make([]CategoryCount, 0, len(counts))
	for c, n := range counts {
		stats.Categories = append(stats.Categories, CategoryCount{
			Category:         c,
			Count:            n,
			PercentOfErrors:  percent(n, stats.Errors),
			PercentOfDialogs: percent(n, totalDialogs),
		})
	}

	sort.Slice(stats.Categories, func(i, j int) bool {
		a, b := stats.Categories[i], stats.Categories[j]
		if a.Count != b.Count {
			return a.Count > b.Count
		}
		if a.Category.Rank() != b.Category.Rank() {
			return a.Category.Rank() < b.Category.Rank()
		}
		return a.Category < b.Category
	})
	return stats
}

// Effectiveness summarizes how many corrections actually changed labels.
type Effectiveness struct {
	Corrections   int     `json:"corrections"`
	StatusChanges int     `json:"status_changes"`
	ResultChanges int     `json:"result_changes"`
	Rate          float64 `json:"rate"`
	Verdict       string  `json:"verdict"`
}

// ComputeEffectiveness rates a batch of corrections. Rate is status changes
// over corrections, in percent.
func ComputeEffectiveness(corrections []correction.Correction) Effectiveness {
	var eff Effectiveness
	eff.Corrections = len(corrections)
	for _, c := range corrections {
		if c.StatusChanged() {
			eff.StatusChanges++
		}
		if c.ResultChanged() {
			eff.ResultChanges++
		}
	}

	eff.Rate = percent(eff.StatusChanges, eff.Corrections)
	switch {
	case eff.Rate > 80:
		eff.Verdict = VerdictHigh
	case eff.Rate > 60:
		eff.Verdict = VerdictMedium
	default:
		eff.Verdict = VerdictLow
	}
	return eff
}

func percent(part, total int) float64 {
	if total <= 0 {
		return 0
	}
	return float64(part) * 100 / float64(total)
}
