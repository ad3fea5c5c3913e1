package rules

import (
	"strings"
	"unicode/utf8"

	"github.com/tetraminz/churn_audit/internal/dialog"
	"github.com/tetraminz/churn_audit/internal/patterns"
)

// Reason is one independent rule trigger for a dialog.
type Reason int

const (
	ReasonWrongPerson Reason = iota + 1
	ReasonCommunicationBreakdown
	ReasonFalsePositiveChurn
	ReasonUncertainChurn
	ReasonFalseNegativeChurn
	ReasonIgnoredCriticalQuestions
)

// ReasonSeparator joins several reasons in tabular output.
const ReasonSeparator = " | "

// ignoredQuestionWindow is how many turns after a critical question are
// inspected for the bot's reply.
const ignoredQuestionWindow = 2

var reasonText = map[Reason]string{
	ReasonWrongPerson:              "Неправильный собеседник",
	ReasonCommunicationBreakdown:   "Серьезные проблемы коммуникации",
	ReasonFalsePositiveChurn:       "Ложный отток (клиент соглашается)",
	ReasonUncertainChurn:           "Неопределенность при оттоке",
	ReasonFalseNegativeChurn:       "Клиент отказывается, но статус не отток",
	ReasonIgnoredCriticalQuestions: "Игнорирование критических вопросов",
}

// String returns the report label of the reason.
func (r Reason) String() string {
	if text, ok := reasonText[r]; ok {
		return text
	}
	return "unknown"
}

// Join renders reasons the way they appear in the findings table.
func Join(reasons []Reason) string {
	parts := make([]string, 0, len(reasons))
	for _, reason := range reasons {
		parts = append(parts, reason.String())
	}
	return strings.Join(parts, ReasonSeparator)
}

// Dialog is the part of an input row the rules look at.
type Dialog struct {
	Status     string
	Result     string
	Transcript string
	Prompts    string
}

// Evaluator applies the ordered rule set to dialogs. It holds no per-row
// state and may be shared.
type Evaluator struct {
	lib *patterns.Library
}

func NewEvaluator(lib *patterns.Library) *Evaluator {
	if lib == nil {
		lib = patterns.Default()
	}
	return &Evaluator{lib: lib}
}

// Evaluate returns the reasons the robot's classification of d looks wrong,
// in rule order, or nil when nothing fired.
//
// Order matters:
//  1. wrong person short-circuits everything else;
//  2. communication breakdown from prompt statistics;
//  3. the answer to the key retention question is extracted;
//  4. churn-confirmed status vs. positive or hedging answer;
//  5. churn-not-confirmed status vs. refusal;
//  6. ignored critical questions, independent of step 3.
func (e *Evaluator) Evaluate(d Dialog) []Reason {
	transcriptLower := strings.ToLower(d.Transcript)
	if e.lib.WrongPerson(transcriptLower) {
		return []Reason{ReasonWrongPerson}
	}

	var reasons []Reason
	if e.communicationBreakdown(d.Prompts, transcriptLower) {
		reasons = append(reasons, ReasonCommunicationBreakdown)
	}

	turns := dialog.Parse(d.Transcript)
	if response := strings.ToLower(e.KeyQuestionResponse(turns)); response != "" {
		switch {
		case e.lib.ChurnConfirmed(d.Status):
			if e.lib.Positive(response) {
				if e.lib.DefinitePositive(response) {
					reasons = append(reasons, ReasonFalsePositiveChurn)
				}
			} else if e.lib.Unclear(response) && len(reasons) == 0 {
				reasons = append(reasons, ReasonUncertainChurn)
			}
		case e.lib.ChurnNotConfirmed(d.Status):
			if e.lib.Negative(response) && e.lib.DefiniteNegative(response) {
				reasons = append(reasons, ReasonFalseNegativeChurn)
			}
		}
	}

	if e.ignoredCriticalQuestions(turns) {
		reasons = append(reasons, ReasonIgnoredCriticalQuestions)
	}
	return reasons
}

func (e *Evaluator) communicationBreakdown(prompts, transcriptLower string) bool {
	if strings.TrimSpace(prompts) == "" {
		return false
	}
	count := e.lib.CriticalPromptCount(prompts)
	if count >= 2 {
		return true
	}
	return count >= 1 && e.lib.ComprehensionComplaint(transcriptLower)
}

// KeyQuestionResponse returns the customer's answer to the retention
// question: human utterances right after the first bot turn asking it.
// A bot turn ends the answer once something was captured; a clarifying or
// re-asking bot turn ends it in any case. Single-character replies are noise.
func (e *Evaluator) KeyQuestionResponse(turns []dialog.Turn) string {
	start := -1
	for i, turn := range turns {
		if turn.Speaker == dialog.SpeakerBot && e.lib.KeyQuestion(turn.Text) {
			start = i + 1
			break
		}
	}
	if start < 0 {
		return ""
	}

	parts := make([]string, 0, 2)
	for _, turn := range turns[start:] {
		if turn.Speaker == dialog.SpeakerBot {
			if len(parts) > 0 || e.lib.Clarification(turn.Text) {
				break
			}
			continue
		}
		if utf8.RuneCountInString(turn.Text) > 1 {
			parts = append(parts, turn.Text)
		}
	}
	return strings.Join(parts, " ")
}

// ignoredCriticalQuestions reports a customer asking who is calling or about
// which contract, followed by the bot pushing the retention script instead of
// answering.
func (e *Evaluator) ignoredCriticalQuestions(turns []dialog.Turn) bool {
	for i, turn := range turns {
		if turn.Speaker != dialog.SpeakerHuman || !e.lib.CriticalQuestion(turn.Text) {
			continue
		}
		end := min(i+1+ignoredQuestionWindow, len(turns))
		for _, next := range turns[i+1 : end] {
			if next.Speaker != dialog.SpeakerBot {
				continue
			}
			if !e.lib.CriticalQuestion(next.Text) && e.lib.SubjectChange(next.Text) {
				return true
			}
		}
	}
	return false
}
