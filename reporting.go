package main

import (
	"errors"
	"fmt"
	"strings"

	"github.com/tetraminz/churn_audit/internal/audit"
	"github.com/tetraminz/churn_audit/internal/store"
)

type reportMetrics struct {
	Run        store.RunSummary
	Categories []categoryShare
}

type categoryShare struct {
	Category        string
	Count           int
	PercentOfErrors float64
	PercentOfTotal  float64
}

// BuildReport loads one stored run, the latest when runID is empty.
func BuildReport(dbPath, runID string) (reportMetrics, error) {
	s, err := store.Open(dbPath)
	if err != nil {
		return reportMetrics{}, err
	}
	defer s.Close()

	if strings.TrimSpace(runID) == "" {
		runID, err = s.LatestRunID()
		if err != nil {
			return reportMetrics{}, err
		}
	}

	summary, err := s.RunSummary(runID)
	if err != nil {
		return reportMetrics{}, err
	}
	counts, err := s.CategoryCounts(runID)
	if err != nil {
		return reportMetrics{}, err
	}

	report := reportMetrics{Run: summary}
	for _, c := range counts {
		share := categoryShare{Category: c.Category, Count: c.Count}
		if summary.Errors > 0 {
			share.PercentOfErrors = 100.0 * float64(c.Count) / float64(summary.Errors)
		}
		if summary.TotalDialogs > 0 {
			share.PercentOfTotal = 100.0 * float64(c.Count) / float64(summary.TotalDialogs)
		}
		report.Categories = append(report.Categories, share)
	}
	return report, nil
}

func BuildAnalyticsMarkdown(dbPath, runID string) (string, error) {
	report, err := BuildReport(dbPath, runID)
	if err != nil {
		return "", err
	}
	r := report.Run

	var b strings.Builder
	b.WriteString("# Churn Audit\n\n")
	b.WriteString("## Run\n")
	b.WriteString(fmt.Sprintf("- run_id: `%s`\n", r.ID))
	b.WriteString(fmt.Sprintf("- started_at_utc: `%s`\n", r.StartedAtUTC))
	b.WriteString(fmt.Sprintf("- input: `%s`\n", r.InputPath))
	b.WriteString(fmt.Sprintf("- recommendations: `%s`\n\n", r.Mode))

	b.WriteString("## Totals\n")
	b.WriteString(fmt.Sprintf("- total_dialogs: `%d`\n", r.TotalDialogs))
	b.WriteString(fmt.Sprintf("- errors: `%d` (%.2f%%)\n", r.Errors, r.ErrorRate))
	b.WriteString(fmt.Sprintf("- failed_rows: `%d`\n\n", r.FailedRows))

	b.WriteString("## Corrections\n")
	b.WriteString(fmt.Sprintf("- status_changes: `%d`\n", r.StatusChanges))
	b.WriteString(fmt.Sprintf("- result_changes: `%d`\n", r.ResultChanges))
	b.WriteString(fmt.Sprintf("- correction_rate: `%.2f%%`\n", r.CorrectionRate))
	if r.Verdict != "" {
		b.WriteString(fmt.Sprintf("- verdict: %s\n", r.Verdict))
	}
	b.WriteString("\n")

	b.WriteString("## Categories\n")
	if len(report.Categories) == 0 {
		b.WriteString("- none\n")
		return b.String(), nil
	}
	b.WriteString("| category | count | % of errors | % of dialogs |\n")
	b.WriteString("| --- | ---: | ---: | ---: |\n")
	for _, c := range report.Categories {
		b.WriteString(fmt.Sprintf("| %s | `%d` | `%.2f` | `%.2f` |\n",
			strings.ReplaceAll(c.Category, "|", "/"),
			c.Count,
			c.PercentOfErrors,
			c.PercentOfTotal,
		))
	}
	return b.String(), nil
}

func FormatReport(r reportMetrics) string {
	var b strings.Builder
	b.WriteString(fmt.Sprintf("run_id=%s\n", r.Run.ID))
	b.WriteString(fmt.Sprintf("started_at_utc=%s\n", r.Run.StartedAtUTC))
	b.WriteString(fmt.Sprintf("total_dialogs=%d\n", r.Run.TotalDialogs))
	b.WriteString(fmt.Sprintf("errors=%d (%.2f%%)\n", r.Run.Errors, r.Run.ErrorRate))
	b.WriteString(fmt.Sprintf("failed_rows=%d\n", r.Run.FailedRows))
	b.WriteString(fmt.Sprintf("status_changes=%d\n", r.Run.StatusChanges))
	b.WriteString(fmt.Sprintf("result_changes=%d\n", r.Run.ResultChanges))
	b.WriteString(fmt.Sprintf("correction_rate=%.2f\n", r.Run.CorrectionRate))
	for _, c := range r.Categories {
		b.WriteString(fmt.Sprintf("category=%q count=%d errors_pct=%.2f dialogs_pct=%.2f\n",
			c.Category, c.Count, c.PercentOfErrors, c.PercentOfTotal))
	}
	return b.String()
}

// FormatRunSummary is the console digest printed after `run`.
func FormatRunSummary(res audit.Result, out RunOutcome) string {
	var b strings.Builder
	stats := res.Stats

	b.WriteString(fmt.Sprintf("Всего диалогов: %d\n", stats.TotalDialogs))
	b.WriteString(fmt.Sprintf("Найдено ошибок: %d\n", stats.Errors))
	b.WriteString(fmt.Sprintf("Процент ошибок: %.1f%%\n", stats.ErrorRate))
	if res.Failed > 0 {
		b.WriteString(fmt.Sprintf("Строк с ошибкой разбора: %d\n", res.Failed))
	}

	if len(stats.Categories) > 0 {
		b.WriteString("\nКатегории ошибок:\n")
		for _, c := range stats.Categories {
			b.WriteString(fmt.Sprintf("  %s: %d (%.1f%%)\n", c.Category, c.Count, c.PercentOfDialogs))
		}
		if top, ok := stats.Main(); ok {
			b.WriteString(fmt.Sprintf("  Основная проблема: %s (%.1f%% всех ошибок)\n", top.Category, top.PercentOfErrors))
		}
	}

	if eff := res.Effectiveness; eff.Corrections > 0 {
		b.WriteString("\n")
		b.WriteString(fmt.Sprintf("Статусов исправлено: %d из %d\n", eff.StatusChanges, eff.Corrections))
		b.WriteString(fmt.Sprintf("Result исправлен: %d из %d\n", eff.ResultChanges, eff.Corrections))
		b.WriteString(fmt.Sprintf("Эффективность коррекции: %.1f%%\n", eff.Rate))
		b.WriteString(eff.Verdict + "\n")
	}

	if len(out.Written) > 0 {
		b.WriteString("\nСозданы файлы:\n")
		for _, path := range out.Written {
			b.WriteString("  " + path + "\n")
		}
	}
	if out.RunID != "" {
		b.WriteString(fmt.Sprintf("\nrun_id=%s\n", out.RunID))
	}
	return b.String()
}

func isNoRuns(err error) bool {
	return errors.Is(err, store.ErrNoRuns)
}
