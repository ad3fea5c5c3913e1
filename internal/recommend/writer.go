package recommend

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/tetraminz/churn_audit/internal/audit"
)

// Mode selects how category sections are produced.
type Mode string

const (
	ModeAI   Mode = "ai"
	ModeNone Mode = "none"
)

const (
	maxAttempts = 2
	ruleWidth   = 60
	// maxInFlight bounds concurrent generator calls.
	maxInFlight = 3
)

// ParseMode accepts "ai" or "none", case-insensitively.
func ParseMode(s string) (Mode, error) {
	switch Mode(strings.ToLower(strings.TrimSpace(s))) {
	case ModeAI:
		return ModeAI, nil
	case ModeNone:
		return ModeNone, nil
	default:
		return "", fmt.Errorf("unknown recommendations mode %q (want ai or none)", s)
	}
}

// Filename is the report file name for a mode.
func Filename(mode Mode) string {
	return "recommendations_" + string(mode) + ".txt"
}

// Writer assembles the recommendation report. In ModeAI every category is
// sent to the generator, retried once, and replaced by Fallback text when
// both attempts fail. Categories are generated concurrently but written in
// digest order. Generator failures never fail the report.
type Writer struct {
	gen    Generator
	mode   Mode
	logger *slog.Logger
}

func NewWriter(mode Mode, gen Generator, logger *slog.Logger) *Writer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Writer{gen: gen, mode: mode, logger: logger}
}

// Build renders the full report text.
func (w *Writer) Build(ctx context.Context, digests []audit.Digest, totalErrors int) string {
	rule := strings.Repeat("=", ruleWidth)

	var b strings.Builder
	fmt.Fprintf(&b, "РЕКОМЕНДАЦИИ ДЛЯ ИСПРАВЛЕНИЯ ОШИБОК (%s)\n", strings.ToUpper(string(w.mode)))
	b.WriteString(rule + "\n")
	fmt.Fprintf(&b, "Всего обнаружено ошибок: %d\n\n", totalErrors)

	// Only the prose generator calls run concurrently; evaluation stays sequential.
	sections := make([]string, len(digests))
	var g errgroup.Group
	g.SetLimit(maxInFlight)
	for i, d := range digests {
		i, d := i, d
		g.Go(func() error {
			sections[i] = w.section(ctx, d, totalErrors)
			return nil
		})
	}
	_ = g.Wait()

	for _, section := range sections {
		b.WriteString(section)
		b.WriteString("\n" + rule + "\n\n")
	}
	return b.String()
}

// Write builds the report and writes it to path, replacing any previous file.
func (w *Writer) Write(ctx context.Context, path string, digests []audit.Digest, totalErrors int) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create dir for %q: %w", path, err)
	}
	if err := os.WriteFile(path, []byte(w.Build(ctx, digests, totalErrors)), 0o644); err != nil {
		return fmt.Errorf("write %q: %w", path, err)
	}
	w.logger.Info("recommendations written", "path", path, "categories", len(digests), "mode", w.mode)
	return nil
}

func (w *Writer) section(ctx context.Context, d audit.Digest, totalErrors int) string {
	if w.mode != ModeAI {
		return StatisticsOnly(d)
	}
	if w.gen == nil {
		w.logger.Warn("no recommendation generator configured", "category", d.Category)
		return StatisticsOnly(d)
	}

	var lastErr error
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		text, err := w.gen.Generate(ctx, d, totalErrors)
		if err == nil {
			return text
		}
		lastErr = err
		w.logger.Warn("generate recommendation", "category", d.Category, "attempt", attempt, "error", err)
		if errors.Is(err, ErrNoCredentials) || ctx.Err() != nil {
			break
		}
	}

	w.logger.Error("recommendation fallback", "category", d.Category, "error", lastErr)
	return Fallback(d)
}
