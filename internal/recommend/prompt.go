package recommend

import (
	"fmt"
	"strings"

	"github.com/tetraminz/churn_audit/internal/audit"
)

const systemPrompt = "Ты аналитик в телеком-компании. Анализируй ошибки робота в колл-центре. " +
	"Давай практические рекомендации как уменьшить количество ошибок. " +
	"Говори просто и понятно. Строго следуй формату ответа."

func buildUserPrompt(d audit.Digest, totalErrors int) string {
	var examples strings.Builder
	for i, excerpt := range d.Excerpts {
		fmt.Fprintf(&examples, "ДИАЛОГ %d:\n%s\n\n", i+1, excerpt)
	}

	return fmt.Sprintf(`АНАЛИЗИРУЙ категорию ошибок и дай рекомендации.

КАТЕГОРИЯ ОШИБКИ: %[1]s
КОЛИЧЕСТВО СЛУЧАЕВ: %[2]d (из %[3]d всего ошибок)

ДИАЛОГИ ДЛЯ АНАЛИЗА:
%[4]s
ОТВЕТЬ СТРОГО В ЭТОМ ФОРМАТЕ:

КАТЕГОРИЯ: %[1]s
КОЛИЧЕСТВО ОШИБОК: %[2]d

ОСНОВНЫЕ ПРИЧИНЫ ОШИБКИ
[опиши 2-3 основные причины почему робот ошибается в этой категории]

РЕШЕНИЯ ДЛЯ ИСПРАВЛЕНИЯ
[2-3 конкретных технических решения для исправления ошибок]

ОБЩИЕ РЕКОМЕНДАЦИИ
[2-3 общие рекомендации по улучшению работы робота для этой категории]

Отвечай кратко, по делу, без лишних слов. Фокус на практические решения.`,
		d.Category, d.Count, totalErrors, examples.String())
}

// StatisticsOnly is the section written when recommendations are disabled
// or no generator is configured.
func StatisticsOnly(d audit.Digest) string {
	return fmt.Sprintf(`КАТЕГОРИЯ: %s
КОЛИЧЕСТВО ОШИБОК: %d
ПРИМЕРОВ ПРОАНАЛИЗИРОВАНО: %d

Рекомендации не требуются.`, d.Category, d.Count, len(d.Excerpts))
}

// Fallback is the section written when the generator failed for a category.
func Fallback(d audit.Digest) string {
	return fmt.Sprintf(`КАТЕГОРИЯ: %[1]s
КОЛИЧЕСТВО ОШИБОК: %[2]d

ОСНОВНЫЕ ПРИЧИНЫ ОШИБКИ
Генератор рекомендаций временно недоступен для анализа конкретных причин.

РЕШЕНИЯ ДЛЯ ИСПРАВЛЕНИЯ
1. Провести ручной анализ %[3]d примеров диалогов
2. Разработать специфичные правила для категории "%[1]s"
3. Протестировать изменения на исторических данных

ОБЩИЕ РЕКОМЕНДАЦИИ
1. Увеличить порог уверенности для этой категории ошибок
2. Добавить дополнительные проверки в логику классификации
3. Регулярно мониторить эффективность исправлений`, d.Category, d.Count, len(d.Excerpts))
}
