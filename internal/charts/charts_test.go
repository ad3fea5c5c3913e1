package charts

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tetraminz/churn_audit/internal/category"
	"github.com/tetraminz/churn_audit/internal/compute"
)

var pngMagic = []byte("\x89PNG\r\n\x1a\n")

func TestPriorityLevel(t *testing.T) {
	t.Parallel()

	tests := []struct {
		percent float64
		want    Level
	}{
		{percent: 12, want: LevelCritical},
		{percent: 5, want: LevelCritical},
		{percent: 4.99, want: LevelHigh},
		{percent: 2, want: LevelHigh},
		{percent: 1, want: LevelMedium},
		{percent: 0.99, want: LevelLow},
		{percent: 0, want: LevelLow},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, PriorityLevel(tt.percent), "percent %v", tt.percent)
	}
	assert.Equal(t, "Критический (≥5%)", LevelCritical.String())
}

func TestChartsWritePNG(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	stats := compute.ComputeStats(100, []category.Category{
		category.WrongPerson, category.WrongPerson, category.WrongPerson,
		category.WrongPerson, category.WrongPerson, category.WrongPerson,
		category.IgnoredQuestions, category.IgnoredQuestions,
		category.UncertainChurn,
	})

	accuracy := filepath.Join(dir, "accuracy_analysis.png")
	require.NoError(t, Accuracy(accuracy, stats))
	assertPNG(t, accuracy)

	priority := filepath.Join(dir, "error_priority.png")
	require.NoError(t, Priority(priority, stats))
	assertPNG(t, priority)
}

func TestChartsWithoutData(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()

	assert.ErrorIs(t, Accuracy(filepath.Join(dir, "a.png"), compute.ComputeStats(0, nil)), ErrNoData)
	assert.ErrorIs(t, Priority(filepath.Join(dir, "p.png"), compute.ComputeStats(10, nil)), ErrNoData)

	clean := filepath.Join(dir, "clean.png")
	require.NoError(t, Accuracy(clean, compute.ComputeStats(10, nil)), "zero errors still get an accuracy chart")
	assertPNG(t, clean)
}

func assertPNG(t *testing.T, path string) {
	t.Helper()

	content, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.True(t, bytes.HasPrefix(content, pngMagic), "%s is not a PNG", path)
}
