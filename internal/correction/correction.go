package correction

import (
	"strings"

	"github.com/tetraminz/churn_audit/internal/category"
)

const (
	StatusNotConfirmed    = "угроза оттока не подтверждена"
	StatusUndetermined    = "угроза оттока не определена, требуется уточнение"
	StatusWrongContact    = "угроза оттока не определена_ неверный контакт"
	StatusNeedsClarifying = "угроза оттока требует уточнения"
	StatusConfirmed       = "угроза оттока подтверждена"

	ResultAgreement    = "согласие - да"
	ResultConnection   = "отказ - проблемы связи"
	ResultWrongNumber  = "ошиблись номером"
	ResultUndetermined = "отказ - не определён"
	ResultEvasive      = "отказ - уклонение от ответа"

	ReasonAgrees        = "Клиент соглашается, но был помечен как отток"
	ReasonCommunication = "Критические проблемы коммуникации"
	ReasonWrongContact  = "Диалог с лицом, не принимающим решения"
	ReasonDoubt         = "Клиент выражает сомнения"
	ReasonEvasive       = "Клиент игнорирует ключевые вопросы"
	ReasonNoChange      = "Без изменений"

	// confirmedMarker gates the false-positive branch. It also matches
	// "не подтверждена", which keeps the branch stable when re-applied to an
	// already corrected status.
	confirmedMarker = "подтверждена"
)

// Correction is the proposed replacement for one flagged dialog.
type Correction struct {
	Category       category.Category
	OriginalStatus string
	OriginalResult string
	Status         string
	Result         string
	Reason         string
}

// StatusChanged reports whether the corrected status differs from the original.
func (c Correction) StatusChanged() bool { return c.Status != c.OriginalStatus }

// ResultChanged reports whether the corrected result differs from the original.
func (c Correction) ResultChanged() bool { return c.Result != c.OriginalResult }

// Correct derives the corrected status/result for a category. It is pure and
// idempotent: feeding the corrected pair back in with the same category
// returns the same pair.
func Correct(c category.Category, status, result string) Correction {
	out := Correction{
		Category:       c,
		OriginalStatus: status,
		OriginalResult: result,
		Status:         status,
		Result:         result,
		Reason:         ReasonNoChange,
	}

	switch c {
	case category.FalsePositiveChurn:
		if strings.Contains(strings.ToLower(status), confirmedMarker) {
			out.Status, out.Result, out.Reason = StatusNotConfirmed, ResultAgreement, ReasonAgrees
		}
	case category.CommunicationBreakdown:
		out.Status, out.Result, out.Reason = StatusUndetermined, ResultConnection, ReasonCommunication
	case category.WrongPerson:
		out.Status, out.Result, out.Reason = StatusWrongContact, ResultWrongNumber, ReasonWrongContact
	case category.UncertainChurn:
		out.Status, out.Result, out.Reason = StatusNeedsClarifying, ResultUndetermined, ReasonDoubt
	case category.IgnoredQuestions:
		out.Status, out.Result, out.Reason = StatusConfirmed, ResultEvasive, ReasonEvasive
	}
	return out
}
