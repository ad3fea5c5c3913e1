package category

import (
	"strings"

	"github.com/tetraminz/churn_audit/internal/rules"
)

// Category is the bucket an error finding is sorted into. The six canonical
// values carry their report labels; anything else is an ad-hoc label taken
// from free-text reasons.
type Category string

const (
	WrongPerson            Category = "Неправильный собеседник"
	CommunicationBreakdown Category = "Серьезные проблемы коммуникации"
	FalsePositiveChurn     Category = "Ложный отток (клиент соглашается)"
	UncertainChurn         Category = "Неопределенность при оттоке"
	IgnoredQuestions       Category = "Игнорирование критических вопросов"
	FalseNegativeChurn     Category = "Клиент отказывается, но статус не отток"
)

// Priority is the fixed order used to resolve composite reasons: the first
// category present wins.
var Priority = []Category{
	WrongPerson,
	FalsePositiveChurn,
	FalseNegativeChurn,
	UncertainChurn,
	CommunicationBreakdown,
	IgnoredQuestions,
}

var byReason = map[rules.Reason]Category{
	rules.ReasonWrongPerson:              WrongPerson,
	rules.ReasonCommunicationBreakdown:   CommunicationBreakdown,
	rules.ReasonFalsePositiveChurn:       FalsePositiveChurn,
	rules.ReasonUncertainChurn:           UncertainChurn,
	rules.ReasonFalseNegativeChurn:       FalseNegativeChurn,
	rules.ReasonIgnoredCriticalQuestions: IgnoredQuestions,
}

// Classify maps the reasons of one finding to a single category by Priority.
// An empty slice yields an empty category.
func Classify(reasons []rules.Reason) Category {
	present := make(map[Category]bool, len(reasons))
	for _, reason := range reasons {
		if c, ok := byReason[reason]; ok {
			present[c] = true
		}
	}
	for _, c := range Priority {
		if present[c] {
			return c
		}
	}
	return ""
}

// ClassifyText resolves a free-text reason, e.g. one read back from a findings
// spreadsheet. Canonical labels are searched by Priority; otherwise the text
// before the first separator, or the whole text, becomes the label.
func ClassifyText(reason string) Category {
	for _, c := range Priority {
		if strings.Contains(reason, string(c)) {
			return c
		}
	}
	if head, _, found := strings.Cut(reason, rules.ReasonSeparator); found {
		return Category(head)
	}
	return Category(reason)
}

// Rank orders categories by Priority; ad-hoc labels sort after all of them.
func (c Category) Rank() int {
	for i, known := range Priority {
		if c == known {
			return i
		}
	}
	return len(Priority)
}
