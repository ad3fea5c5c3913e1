package patterns

import (
	"fmt"
	"regexp"
	"strings"
	"unicode"
	"unicode/utf8"
)

// Spec lists the phrases behind every pattern group. Lists are matched
// against lowercased text; the four intent groups use whole-word matching,
// everything else is a plain substring check.
type Spec struct {
	Positive    []string `yaml:"positive"`
	Negative    []string `yaml:"negative"`
	Unclear     []string `yaml:"unclear"`
	WrongPerson []string `yaml:"wrong_person"`

	DefinitePositive []string `yaml:"definite_positive"`
	DefiniteNegative []string `yaml:"definite_negative"`

	CriticalPrompts          []string `yaml:"critical_prompts"`
	ComprehensionComplaints  []string `yaml:"comprehension_complaints"`
	CriticalQuestions        []string `yaml:"critical_questions"`
	SubjectChange            []string `yaml:"subject_change"`
	KeyQuestion              []string `yaml:"key_question"`
	ClarificationMarkers     []string `yaml:"clarification_markers"`
	ChurnConfirmedMarkers    []string `yaml:"churn_confirmed"`
	ChurnNotConfirmedMarkers []string `yaml:"churn_not_confirmed"`
}

// DefaultSpec returns the phrase set tuned for the retention-call robot.
func DefaultSpec() Spec {
	return Spec{
		Positive: []string{
			"да планируем", "будем пользоваться", "конечно будем", "остаёмся",
			"продолжаем", "планируем дальше", "да", "конечно", "естественно",
		},
		Negative: []string{
			"нет не планируем", "уходим", "не будем", "отказываемся",
			"не буду пользоваться", "нет", "не",
		},
		Unclear: []string{
			"ну...", "нуу...", "нууу...", "не знаю", "пока не могу",
			"не уверен", "сомневаюсь", "надо подумать",
		},
		WrongPerson: []string{
			"не председатель", "не мой договор", "ошиблись номером",
			"не являюсь", "не тот человек",
		},
		DefinitePositive: []string{" да ", " конечно ", " естественно ", "да,", "конечно,"},
		DefiniteNegative: []string{" нет ", " не ", "нет,", "не,"},
		CriticalPrompts: []string{
			"clarification_default", "clarification_dont_understand", "clarification_null",
		},
		ComprehensionComplaints: []string{
			"плохо слышно", "вас не слышно", "не понимаю", "что вы сказали",
			"повторите", "не расслышал",
		},
		CriticalQuestions: []string{
			"по какому контракту", "какой договор", "о какой компании",
			"кто звонит", "по какому номеру", "о каком контракте",
		},
		SubjectChange:            []string{"снижение трафика", "планируете ли"},
		KeyQuestion:              []string{"планируете ли вы пользоваться"},
		ClarificationMarkers:     []string{"планируете", "уточните"},
		ChurnConfirmedMarkers:    []string{"угроза оттока подтверждена"},
		ChurnNotConfirmedMarkers: []string{"угроза оттока не подтверждена"},
	}
}

// Merge returns a copy of s where every non-empty list of override replaces
// the corresponding list of s.
func (s Spec) Merge(override Spec) Spec {
	pick := func(base, over []string) []string {
		if len(over) > 0 {
			return append([]string(nil), over...)
		}
		return append([]string(nil), base...)
	}
	return Spec{
		Positive:                 pick(s.Positive, override.Positive),
		Negative:                 pick(s.Negative, override.Negative),
		Unclear:                  pick(s.Unclear, override.Unclear),
		WrongPerson:              pick(s.WrongPerson, override.WrongPerson),
		DefinitePositive:         pick(s.DefinitePositive, override.DefinitePositive),
		DefiniteNegative:         pick(s.DefiniteNegative, override.DefiniteNegative),
		CriticalPrompts:          pick(s.CriticalPrompts, override.CriticalPrompts),
		ComprehensionComplaints:  pick(s.ComprehensionComplaints, override.ComprehensionComplaints),
		CriticalQuestions:        pick(s.CriticalQuestions, override.CriticalQuestions),
		SubjectChange:            pick(s.SubjectChange, override.SubjectChange),
		KeyQuestion:              pick(s.KeyQuestion, override.KeyQuestion),
		ClarificationMarkers:     pick(s.ClarificationMarkers, override.ClarificationMarkers),
		ChurnConfirmedMarkers:    pick(s.ChurnConfirmedMarkers, override.ChurnConfirmedMarkers),
		ChurnNotConfirmedMarkers: pick(s.ChurnNotConfirmedMarkers, override.ChurnNotConfirmedMarkers),
	}
}

// Library is the compiled, read-only form of a Spec. It is built once per
// process and shared by every evaluation.
type Library struct {
	positive    *regexp.Regexp
	negative    *regexp.Regexp
	unclear     *regexp.Regexp
	wrongPerson *regexp.Regexp

	definitePositive         []string
	definiteNegative         []string
	criticalPrompts          []string
	comprehensionComplaints  []string
	criticalQuestions        []string
	subjectChange            []string
	keyQuestion              []string
	clarificationMarkers     []string
	churnConfirmedMarkers    []string
	churnNotConfirmedMarkers []string
}

// New compiles spec into a Library.
func New(spec Spec) (*Library, error) {
	lib := &Library{
		definitePositive:         lowerAll(spec.DefinitePositive),
		definiteNegative:         lowerAll(spec.DefiniteNegative),
		criticalPrompts:          dedupe(spec.CriticalPrompts),
		comprehensionComplaints:  lowerAll(spec.ComprehensionComplaints),
		criticalQuestions:        lowerAll(spec.CriticalQuestions),
		subjectChange:            lowerAll(spec.SubjectChange),
		keyQuestion:              lowerAll(spec.KeyQuestion),
		clarificationMarkers:     lowerAll(spec.ClarificationMarkers),
		churnConfirmedMarkers:    lowerAll(spec.ChurnConfirmedMarkers),
		churnNotConfirmedMarkers: lowerAll(spec.ChurnNotConfirmedMarkers),
	}

	var err error
	if lib.positive, err = compileWholeWords(spec.Positive); err != nil {
		return nil, fmt.Errorf("compile positive patterns: %w", err)
	}
	if lib.negative, err = compileWholeWords(spec.Negative); err != nil {
		return nil, fmt.Errorf("compile negative patterns: %w", err)
	}
	if lib.unclear, err = compileWholeWords(spec.Unclear); err != nil {
		return nil, fmt.Errorf("compile unclear patterns: %w", err)
	}
	if lib.wrongPerson, err = compileWholeWords(spec.WrongPerson); err != nil {
		return nil, fmt.Errorf("compile wrong_person patterns: %w", err)
	}
	return lib, nil
}

// Default returns the Library for DefaultSpec.
func Default() *Library {
	lib, err := New(DefaultSpec())
	if err != nil {
		panic(fmt.Sprintf("patterns: default spec does not compile: %v", err))
	}
	return lib
}

func (l *Library) Positive(text string) bool    { return matchRegexp(l.positive, text) }
func (l *Library) Negative(text string) bool    { return matchRegexp(l.negative, text) }
func (l *Library) Unclear(text string) bool     { return matchRegexp(l.unclear, text) }
func (l *Library) WrongPerson(text string) bool { return matchRegexp(l.wrongPerson, text) }

// DefinitePositive is the stricter short-token check applied after Positive.
func (l *Library) DefinitePositive(text string) bool {
	return containsAny(strings.ToLower(text), l.definitePositive)
}

// DefiniteNegative is the stricter short-token check applied after Negative.
func (l *Library) DefiniteNegative(text string) bool {
	return containsAny(strings.ToLower(text), l.definiteNegative)
}

// CriticalPromptCount returns how many distinct critical clarification codes
// appear in the prompt-usage string.
func (l *Library) CriticalPromptCount(prompts string) int {
	count := 0
	for _, code := range l.criticalPrompts {
		if strings.Contains(prompts, code) {
			count++
		}
	}
	return count
}

func (l *Library) ComprehensionComplaint(text string) bool {
	return containsAny(strings.ToLower(text), l.comprehensionComplaints)
}

func (l *Library) CriticalQuestion(text string) bool {
	return containsAny(strings.ToLower(text), l.criticalQuestions)
}

func (l *Library) SubjectChange(text string) bool {
	return containsAny(strings.ToLower(text), l.subjectChange)
}

// KeyQuestion reports whether a bot utterance asks the retention question.
func (l *Library) KeyQuestion(text string) bool {
	return containsAny(strings.ToLower(text), l.keyQuestion)
}

// Clarification reports whether a bot utterance re-asks or asks to clarify.
func (l *Library) Clarification(text string) bool {
	return containsAny(strings.ToLower(text), l.clarificationMarkers)
}

func (l *Library) ChurnConfirmed(status string) bool {
	return containsAny(strings.ToLower(status), l.churnConfirmedMarkers)
}

func (l *Library) ChurnNotConfirmed(status string) bool {
	return containsAny(strings.ToLower(status), l.churnNotConfirmedMarkers)
}

const (
	wordChar    = `[\p{L}\p{N}_]`
	nonWordChar = `[^\p{L}\p{N}_]`
)

// drawnOut matches "ну..." with the vowel held for any length.
var drawnOut = regexp.MustCompile(`^нуу*\.\.\.$`)

// compileWholeWords builds a \b-delimited alternation. RE2's \b is ASCII-only
// and never fires between Cyrillic letters, so each edge is spelled out:
// a phrase edge that is a word character needs a non-word neighbour (or the
// end of text), one that is punctuation needs a word character next to it.
func compileWholeWords(phrases []string) (*regexp.Regexp, error) {
	alts := make([]string, 0, len(phrases))
	seen := make(map[string]struct{}, len(phrases))
	for _, phrase := range lowerAll(phrases) {
		if phrase == "" {
			continue
		}
		body := regexp.QuoteMeta(phrase)
		if drawnOut.MatchString(phrase) {
			body = `нуу*\.{3}`
		}
		if _, ok := seen[body]; ok {
			continue
		}
		seen[body] = struct{}{}
		alts = append(alts, leadingEdge(phrase)+`(?:`+body+`)`+trailingEdge(phrase))
	}
	if len(alts) == 0 {
		return nil, nil
	}
	return regexp.Compile(strings.Join(alts, "|"))
}

func leadingEdge(phrase string) string {
	r, _ := utf8.DecodeRuneInString(phrase)
	if isWordRune(r) {
		return `(?:^|` + nonWordChar + `)`
	}
	return wordChar
}

func trailingEdge(phrase string) string {
	r, _ := utf8.DecodeLastRuneInString(phrase)
	if isWordRune(r) {
		return `(?:$|` + nonWordChar + `)`
	}
	return wordChar
}

func isWordRune(r rune) bool {
	return unicode.IsLetter(r) || unicode.IsNumber(r) || r == '_'
}

func matchRegexp(re *regexp.Regexp, text string) bool {
	if re == nil {
		return false
	}
	return re.MatchString(strings.ToLower(text))
}

func containsAny(text string, needles []string) bool {
	for _, needle := range needles {
		if needle != "" && strings.Contains(text, needle) {
			return true
		}
	}
	return false
}

func lowerAll(items []string) []string {
	out := make([]string, 0, len(items))
	for _, item := range items {
		out = append(out, strings.ToLower(item))
	}
	return out
}

func dedupe(items []string) []string {
	seen := make(map[string]struct{}, len(items))
	out := make([]string, 0, len(items))
	for _, item := range items {
		if _, ok := seen[item]; ok || item == "" {
			continue
		}
		seen[item] = struct{}{}
		out = append(out, item)
	}
	return out
}
