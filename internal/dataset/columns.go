package dataset

import (
	"fmt"
	"strings"
)

// Field is a logical input column.
type Field string

const (
	FieldStatus     Field = "status"
	FieldResult     Field = "result"
	FieldTranscript Field = "transcript"
	FieldClientID   Field = "client_id"
	FieldPrompts    Field = "prompts"
	FieldDuration   Field = "duration"
	FieldCallStatus Field = "call_status"
)

// Aliases lists, per field, the header fragments tried in order. The first
// alias that matches any header wins; within one alias the leftmost header
// wins.
var Aliases = map[Field][]string{
	FieldStatus:     {"Статус", "status"},
	FieldResult:     {"result", "результат"},
	FieldTranscript: {"call_transcript", "транскрипт"},
	FieldClientID:   {"Номер клиента", "client_id", "id"},
	FieldPrompts:    {"prompts_statistics", "prompts"},
	FieldDuration:   {"длительность", "duration", "call_duration"},
	FieldCallStatus: {"call_status", "статус звонка"},
}

var requiredFields = []Field{FieldStatus, FieldResult, FieldTranscript, FieldClientID}

var optionalFields = []Field{FieldPrompts, FieldDuration, FieldCallStatus}

// SchemaError reports required fields that no header matched.
type SchemaError struct {
	Missing []Field
	Header  []string
}

func (e *SchemaError) Error() string {
	names := make([]string, 0, len(e.Missing))
	for _, f := range e.Missing {
		names = append(names, string(f))
	}
	return fmt.Sprintf("missing required columns %s in header %v", strings.Join(names, ", "), e.Header)
}

// Columns maps logical fields to header positions. Optional fields that
// were not found map to -1.
type Columns map[Field]int

// Name returns the header text the field resolved to, or "".
func (c Columns) Name(header []string, f Field) string {
	return valueAt(header, c.Index(f))
}

// Index returns the column position of f, or -1 when it was not resolved.
func (c Columns) Index(f Field) int {
	if i, ok := c[f]; ok {
		return i
	}
	return -1
}

// Resolve matches header against Aliases once per table. It returns a
// *SchemaError when any of status, result, transcript or client id is
// missing.
func Resolve(header []string) (Columns, error) {
	cols := make(Columns, len(Aliases))
	var missing []Field

	for _, f := range requiredFields {
		i := findColumn(header, Aliases[f])
		if i < 0 {
			missing = append(missing, f)
		}
		cols[f] = i
	}
	if len(missing) > 0 {
		return nil, &SchemaError{Missing: missing, Header: header}
	}

	for _, f := range optionalFields {
		cols[f] = findColumn(header, Aliases[f])
	}
	return cols, nil
}

func findColumn(header, aliases []string) int {
	for _, alias := range aliases {
		needle := strings.ToLower(alias)
		for i, col := range header {
			if strings.Contains(strings.ToLower(col), needle) {
				return i
			}
		}
	}
	return -1
}

// Record is one input row seen through the resolved columns.
type Record struct {
	RowIndex   int
	ClientID   string
	Status     string
	Result     string
	Transcript string
	Prompts    string
	Duration   string
	CallStatus string
}

// Records projects every row of t through cols, keeping file order.
func Records(t Table, cols Columns) []Record {
	out := make([]Record, 0, t.Len())
	for i := range t.Rows {
		out = append(out, Record{
			RowIndex:   i,
			ClientID:   t.Cell(i, cols.Index(FieldClientID)),
			Status:     t.Cell(i, cols.Index(FieldStatus)),
			Result:     t.Cell(i, cols.Index(FieldResult)),
			Transcript: t.Cell(i, cols.Index(FieldTranscript)),
			Prompts:    t.Cell(i, cols.Index(FieldPrompts)),
			Duration:   t.Cell(i, cols.Index(FieldDuration)),
			CallStatus: t.Cell(i, cols.Index(FieldCallStatus)),
		})
	}
	return out
}
