package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"

	"github.com/tetraminz/churn_audit/internal/audit"
	"github.com/tetraminz/churn_audit/internal/charts"
	"github.com/tetraminz/churn_audit/internal/compute"
	"github.com/tetraminz/churn_audit/internal/dataset"
	"github.com/tetraminz/churn_audit/internal/recommend"
	"github.com/tetraminz/churn_audit/internal/store"
)

// runAudit audits cfg.InputPath and writes every derived artifact to
// cfg.OutputDir. Only an unreadable input or an unresolvable schema fails
// the run; output, chart, recommendation and history failures are logged.
func runAudit(ctx context.Context, cfg RunConfig, logger *slog.Logger) (RunOutcome, audit.Result, error) {
	if logger == nil {
		logger = slog.Default()
	}
	now := cfg.Now
	if now == nil {
		now = time.Now
	}
	out := RunOutcome{RunID: uuid.NewString()}
	started := now()

	previous := filepath.Join(cfg.OutputDir, findingsFile)
	if err := os.Remove(previous); err == nil {
		logger.Info("removed previous findings", "path", previous)
	} else if !errors.Is(err, os.ErrNotExist) {
		logger.Warn("remove previous findings", "path", previous, "error", err)
	}

	table, err := dataset.Load(cfg.InputPath)
	if err != nil {
		return out, audit.Result{}, fmt.Errorf("load dialogs: %w", err)
	}
	cols, err := dataset.Resolve(table.Header)
	if err != nil {
		return out, audit.Result{}, err
	}
	logger.Info("dialogs loaded", "path", cfg.InputPath, "rows", table.Len())

	res := audit.New(cfg.Evaluator, audit.WithLogger(logger)).Run(dataset.Records(table, cols))
	logger.Info("audit finished",
		"rows", res.Total,
		"findings", len(res.Findings),
		"failed_rows", res.Failed,
	)

	save := func(name string, t dataset.Table) {
		path := filepath.Join(cfg.OutputDir, name)
		if err := dataset.Save(path, t); err != nil {
			logger.Error("save table", "path", path, "error", err)
			return
		}
		out.Written = append(out.Written, path)
	}

	if len(res.Findings) > 0 {
		save(findingsFile, audit.FindingsTable(res.Findings))
		save(detailsFile, audit.DetailsTable(res.Findings))
		save(correctionsFile, audit.CorrectionsTable(res))
	}
	save(summaryFile, audit.SummaryTable(res))
	save(overlayFile, audit.Overlay(table, cols, res))

	if res.Total > 0 {
		drawChart(&out, logger, filepath.Join(cfg.OutputDir, accuracyChartFile), res, charts.Accuracy)
	}
	if res.Stats.Errors > 0 {
		drawChart(&out, logger, filepath.Join(cfg.OutputDir, priorityChartFile), res, charts.Priority)
	}

	if len(res.Findings) > 0 {
		path := filepath.Join(cfg.OutputDir, recommend.Filename(cfg.Mode))
		w := recommend.NewWriter(cfg.Mode, cfg.Generator, logger)
		if err := w.Write(ctx, path, audit.Digests(res), res.Stats.Errors); err != nil {
			logger.Error("write recommendations", "path", path, "error", err)
		} else {
			out.Recommendations = path
			out.Written = append(out.Written, path)
		}
	}

	if cfg.DBPath != "" {
		if err := saveHistory(cfg, out.RunID, started, res); err != nil {
			logger.Error("save run history", "db", cfg.DBPath, "run_id", out.RunID, "error", err)
		} else {
			logger.Info("run history saved", "db", cfg.DBPath, "run_id", out.RunID)
		}
	}

	return out, res, nil
}

func drawChart(out *RunOutcome, logger *slog.Logger, path string, res audit.Result, draw func(string, compute.Stats) error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		logger.Error("create chart dir", "path", path, "error", err)
		return
	}
	if err := draw(path, res.Stats); err != nil {
		logger.Error("draw chart", "path", path, "error", err)
		return
	}
	out.Written = append(out.Written, path)
}

func saveHistory(cfg RunConfig, runID string, started time.Time, res audit.Result) error {
	s, err := store.Open(cfg.DBPath)
	if err != nil {
		return err
	}
	defer s.Close()

	return s.SaveRun(store.Run{
		ID:        runID,
		StartedAt: started,
		InputPath: cfg.InputPath,
		Mode:      string(cfg.Mode),
	}, res)
}
