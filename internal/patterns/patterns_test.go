package patterns

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWholeWordMatchingOnCyrillic(t *testing.T) {
	t.Parallel()

	lib := Default()

	tests := []struct {
		name  string
		match func(string) bool
		text  string
		want  bool
	}{
		{name: "bare yes", match: lib.Positive, text: "да", want: true},
		{name: "yes inside word", match: lib.Positive, text: "когда перезвоните", want: false},
		{name: "yes with comma", match: lib.Positive, text: "Да, конечно будем", want: true},
		{name: "no inside word", match: lib.Negative, text: "немного подумаю", want: false},
		{name: "bare not", match: lib.Negative, text: "я не знаю", want: true},
		{name: "refusal phrase", match: lib.Negative, text: "мы уходим к другому", want: true},
		{name: "hedging", match: lib.Unclear, text: "Ну... не знаю пока", want: true},
		{name: "hedging absent", match: lib.Unclear, text: "да, продолжаем", want: false},
		{name: "trailing dots need a word after", match: lib.Unclear, text: "ну... посмотрим", want: false},
		{name: "drawn out vowel", match: lib.Unclear, text: "нуууу...хм", want: true},
		{name: "wrong person", match: lib.WrongPerson, text: "human: я НЕ ПРЕДСЕДАТЕЛЬ этого ТСЖ", want: true},
		{name: "wrong person absent", match: lib.WrongPerson, text: "human: я председатель", want: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.match(tt.text))
		})
	}
}

func TestDefiniteChecksAreAsymmetricSubstrings(t *testing.T) {
	t.Parallel()

	lib := Default()

	assert.True(t, lib.DefinitePositive("да, конечно будем"))
	assert.True(t, lib.DefinitePositive("ну да конечно"))
	assert.False(t, lib.DefinitePositive("да"))

	assert.True(t, lib.DefiniteNegative("нет, не будем"))
	assert.True(t, lib.DefiniteNegative("мы не будем"))
	assert.False(t, lib.DefiniteNegative("нет"))
}

func TestCriticalPromptCountCountsDistinctCodes(t *testing.T) {
	t.Parallel()

	lib := Default()

	assert.Equal(t, 0, lib.CriticalPromptCount(""))
	assert.Equal(t, 1, lib.CriticalPromptCount("hello, clarification_default, clarification_default"))
	assert.Equal(t, 2, lib.CriticalPromptCount("clarification_null;clarification_dont_understand"))
}

func TestStatusMarkers(t *testing.T) {
	t.Parallel()

	lib := Default()

	assert.True(t, lib.ChurnConfirmed("Угроза оттока подтверждена"))
	assert.False(t, lib.ChurnConfirmed("угроза оттока не подтверждена"))
	assert.True(t, lib.ChurnNotConfirmed("угроза оттока не подтверждена"))
}

func TestMergeReplacesOnlyNonEmptyLists(t *testing.T) {
	t.Parallel()

	merged := DefaultSpec().Merge(Spec{WrongPerson: []string{"я не занимаюсь"}})

	assert.Equal(t, []string{"я не занимаюсь"}, merged.WrongPerson)
	assert.Equal(t, DefaultSpec().Positive, merged.Positive)

	lib, err := New(merged)
	require.NoError(t, err)
	assert.True(t, lib.WrongPerson("я не занимаюсь этим вопросом"))
	assert.False(t, lib.WrongPerson("я не председатель"))
}

func TestEmptyGroupNeverMatches(t *testing.T) {
	t.Parallel()

	lib, err := New(Spec{})
	require.NoError(t, err)

	assert.False(t, lib.Positive("да"))
	assert.False(t, lib.KeyQuestion("планируете ли вы пользоваться"))
}
