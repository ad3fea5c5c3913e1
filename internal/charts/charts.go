package charts

import (
	"errors"
	"fmt"
	"image/color"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"

	"github.com/tetraminz/churn_audit/internal/compute"
)

// ErrNoData is returned when there is nothing to draw.
var ErrNoData = errors.New("charts: no data to plot")

// Level is the fix priority of a category, by share of all dialogs.
type Level int

const (
	LevelLow Level = iota
	LevelMedium
	LevelHigh
	LevelCritical
)

var levelLabels = map[Level]string{
	LevelCritical: "Критический (≥5%)",
	LevelHigh:     "Высокий (2-5%)",
	LevelMedium:   "Средний (1-2%)",
	LevelLow:      "Низкий (<1%)",
}

func (l Level) String() string { return levelLabels[l] }

var (
	colorPink     = color.RGBA{R: 0xFF, G: 0xB7, B: 0xC5, A: 0xFF}
	colorBlue     = color.RGBA{R: 0xA2, G: 0xD2, B: 0xFF, A: 0xFF}
	colorSky      = color.RGBA{R: 0xBD, G: 0xE0, B: 0xFE, A: 0xFF}
	colorLavender = color.RGBA{R: 0xCD, G: 0xB4, B: 0xDB, A: 0xFF}

	levelColors = map[Level]color.Color{
		LevelCritical: colorPink,
		LevelHigh:     colorBlue,
		LevelMedium:   colorSky,
		LevelLow:      colorLavender,
	}
)

// PriorityLevel maps a percent of all dialogs to a fix priority.
func PriorityLevel(percentOfDialogs float64) Level {
	switch {
	case percentOfDialogs >= 5:
		return LevelCritical
	case percentOfDialogs >= 2:
		return LevelHigh
	case percentOfDialogs >= 1:
		return LevelMedium
	default:
		return LevelLow
	}
}

// Accuracy draws errors against correctly classified dialogs. It is drawn
// for any non-empty batch, including one without errors.
func Accuracy(path string, stats compute.Stats) error {
	if stats.TotalDialogs == 0 {
		return ErrNoData
	}

	correct := stats.TotalDialogs - stats.Errors
	p := plot.New()
	p.Title.Text = fmt.Sprintf("Точность классификации робота\n%.1f%% диалогов обработано верно", stats.Accuracy())
	p.Y.Label.Text = "Диалоги"

	values := plotter.Values{float64(stats.Errors), float64(correct)}
	bars, err := plotter.NewBarChart(values, vg.Points(60))
	if err != nil {
		return fmt.Errorf("build accuracy bars: %w", err)
	}
	bars.Color = colorPink
	bars.LineStyle.Color = color.White
	p.Add(bars)
	p.NominalX(
		fmt.Sprintf("Ошибки\n%d", stats.Errors),
		fmt.Sprintf("Корректные\n%d", correct),
	)

	if err := p.Save(10*vg.Inch, 6*vg.Inch, path); err != nil {
		return fmt.Errorf("save %q: %w", path, err)
	}
	return nil
}

// Priority draws one horizontal bar per category, colored by PriorityLevel,
// most frequent at the top.
func Priority(path string, stats compute.Stats) error {
	if len(stats.Categories) == 0 {
		return ErrNoData
	}

	n := len(stats.Categories)
	names := make([]string, n)
	byLevel := make(map[Level]plotter.Values)
	for i, row := range stats.Categories {
		y := n - 1 - i
		names[y] = fmt.Sprintf("%s: %d (%.1f%%)", row.Category, row.Count, row.PercentOfDialogs)

		level := PriorityLevel(row.PercentOfDialogs)
		if byLevel[level] == nil {
			byLevel[level] = make(plotter.Values, n)
		}
		byLevel[level][y] = float64(row.Count)
	}

	p := plot.New()
	p.Title.Text = "Приоритеты исправления ошибок классификации\n(проценты от общего числа диалогов)"
	p.X.Label.Text = "Количество ошибок"
	p.Legend.Top = true

	for _, level := range []Level{LevelCritical, LevelHigh, LevelMedium, LevelLow} {
		values, ok := byLevel[level]
		if !ok {
			continue
		}
		bars, err := plotter.NewBarChart(values, vg.Points(24))
		if err != nil {
			return fmt.Errorf("build priority bars: %w", err)
		}
		bars.Horizontal = true
		bars.Color = levelColors[level]
		bars.LineStyle.Color = color.White
		p.Add(bars)
		p.Legend.Add(level.String(), bars)
	}
	p.NominalY(names...)

	if err := p.Save(14*vg.Inch, 8*vg.Inch, path); err != nil {
		return fmt.Errorf("save %q: %w", path, err)
	}
	return nil
}
