package audit

import (
	"strconv"

	"github.com/tetraminz/churn_audit/internal/category"
	"github.com/tetraminz/churn_audit/internal/dataset"
	"github.com/tetraminz/churn_audit/internal/dialog"
)

// Column headers of the derived tables.
const (
	ColClientID        = "Номер клиента"
	ColStatus          = "Статус"
	ColResult          = "Result"
	ColTranscript      = "call_transcript"
	ColReason          = "Причина ошибки"
	ColCategory        = "Категория ошибки"
	ColStatusBefore    = "Было_статус"
	ColStatusAfter     = "Стало_статус"
	ColResultBefore    = "Было_result"
	ColResultAfter     = "Стало_result"
	ColErrorType       = "Тип_ошибки"
	ColCorrectionCause = "Причина_коррекции"
	ColSummaryCategory = "Категория"
	ColCount           = "Количество"
	ColPercentOfErrors = "Процент от ошибок"
	ColPercentOfTotal  = "Процент от диалогов"
	ColCorrectedStatus = "Верный статус"

	// SummaryTotalLabel is the closing row of the summary table.
	SummaryTotalLabel = "Итого ошибок"

	// MaxDigestExcerpts bounds the transcript excerpts per category digest.
	MaxDigestExcerpts = 2
)

// FindingsTable lists one row per finding, in input order.
func FindingsTable(findings []Finding) dataset.Table {
	t := dataset.Table{
		Header: []string{ColClientID, ColStatus, ColResult, ColTranscript, ColReason, ColCategory},
		Rows:   make([][]string, 0, len(findings)),
	}
	for _, f := range findings {
		t.Rows = append(t.Rows, []string{
			f.Record.ClientID,
			f.Record.Status,
			f.Record.Result,
			f.Record.Transcript,
			f.ReasonText(),
			string(f.Category),
		})
	}
	return t
}

// DetailsTable lists the flagged rows with the call metadata.
func DetailsTable(findings []Finding) dataset.Table {
	t := dataset.Table{
		Header: []string{ColClientID, "result", ColStatus, ColTranscript, "длительность", "call_status", "prompts_statistics"},
		Rows:   make([][]string, 0, len(findings)),
	}
	for _, f := range findings {
		t.Rows = append(t.Rows, []string{
			f.Record.ClientID,
			f.Record.Result,
			f.Record.Status,
			f.Record.Transcript,
			f.Record.Duration,
			f.Record.CallStatus,
			f.Record.Prompts,
		})
	}
	return t
}

// CorrectionsTable lists the before/after labels for every finding.
func CorrectionsTable(res Result) dataset.Table {
	t := dataset.Table{
		Header: []string{
			ColClientID, ColStatusBefore, ColStatusAfter, ColResultBefore, ColResultAfter,
			ColErrorType, ColCorrectionCause, ColTranscript,
		},
		Rows: make([][]string, 0, len(res.Corrections)),
	}
	for i, c := range res.Corrections {
		f := res.Findings[i]
		t.Rows = append(t.Rows, []string{
			f.Record.ClientID,
			c.OriginalStatus,
			c.Status,
			c.OriginalResult,
			c.Result,
			string(c.Category),
			c.Reason,
			f.Record.Transcript,
		})
	}
	return t
}

// SummaryTable has one row per category and a closing total row. An empty
// batch yields only the total row with zeros.
func SummaryTable(res Result) dataset.Table {
	t := dataset.Table{
		Header: []string{ColSummaryCategory, ColCount, ColPercentOfErrors, ColPercentOfTotal},
		Rows:   make([][]string, 0, len(res.Stats.Categories)+1),
	}
	for _, row := range res.Stats.Categories {
		t.Rows = append(t.Rows, []string{
			string(row.Category),
			strconv.Itoa(row.Count),
			formatPercent(row.PercentOfErrors),
			formatPercent(row.PercentOfDialogs),
		})
	}

	ofErrors := 0.0
	if res.Stats.Errors > 0 {
		ofErrors = 100
	}
	t.Rows = append(t.Rows, []string{
		SummaryTotalLabel,
		strconv.Itoa(res.Stats.Errors),
		formatPercent(ofErrors),
		formatPercent(res.Stats.ErrorRate),
	})
	return t
}

// Overlay returns the input table with a corrected-status column. Rows are
// joined by client id; the first finding of a client id wins and clients
// without findings get an empty value.
func Overlay(input dataset.Table, cols dataset.Columns, res Result) dataset.Table {
	corrected := make(map[string]string, len(res.Corrections))
	for i, c := range res.Corrections {
		id := res.Findings[i].Record.ClientID
		if _, seen := corrected[id]; !seen {
			corrected[id] = c.Status
		}
	}

	idCol := cols.Index(dataset.FieldClientID)
	values := make([]string, input.Len())
	for i := range values {
		values[i] = corrected[input.Cell(i, idCol)]
	}
	return input.WithColumn(ColCorrectedStatus, values)
}

// Digest is the per-category input of the recommendation writer.
type Digest struct {
	Category category.Category
	Count    int
	Excerpts []string
}

// Digests builds one digest per category, most frequent first, each with up
// to MaxDigestExcerpts excerpts taken from the earliest findings.
func Digests(res Result) []Digest {
	out := make([]Digest, 0, len(res.Stats.Categories))
	for _, row := range res.Stats.Categories {
		d := Digest{Category: row.Category, Count: row.Count}
		for _, f := range res.Findings {
			if len(d.Excerpts) == MaxDigestExcerpts {
				break
			}
			if f.Category == row.Category {
				d.Excerpts = append(d.Excerpts, dialog.Excerpt(f.Record.Transcript))
			}
		}
		out = append(out, d)
	}
	return out
}

func formatPercent(v float64) string {
	return strconv.FormatFloat(v, 'f', 1, 64)
}
