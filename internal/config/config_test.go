package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadFromReaderOverridesDefaults(t *testing.T) {
	t.Parallel()

	cfg, err := LoadFromReader(strings.NewReader(`
input_path: calls.xlsx
output_dir: reports
log_level: debug
recommendations:
  mode: none
  provider: openai
  model: gpt-4.1-mini
  timeout_seconds: 10
patterns:
  wrong_person:
    - не туда попали
`))
	require.NoError(t, err)

	assert.Equal(t, "calls.xlsx", cfg.InputPath)
	assert.Equal(t, "reports", cfg.OutputDir)
	assert.Equal(t, DefaultDBPath, cfg.DBPath)
	assert.Equal(t, "debug", cfg.LogLevel)
	assert.Equal(t, ModeNone, cfg.Recommendations.Mode)
	assert.Equal(t, ProviderOpenAI, cfg.Recommendations.Provider)
	assert.Equal(t, 10*time.Second, cfg.Recommendations.Timeout())
	assert.Equal(t, defaultMaxTokens, cfg.Recommendations.MaxTokens)

	lib, err := cfg.Library()
	require.NoError(t, err)
	assert.True(t, lib.WrongPerson("вы не туда попали"))
	assert.False(t, lib.WrongPerson("я не председатель"), "override replaces the default list")
	assert.True(t, lib.Positive("да, подтверждаю"), "untouched lists keep defaults")
}

func TestLoadFromReaderRejectsUnknownFields(t *testing.T) {
	t.Parallel()

	_, err := LoadFromReader(strings.NewReader("output_dirr: out\n"))
	require.ErrorContains(t, err, "output_dirr")
}

func TestLoadFromReaderEmptyDocument(t *testing.T) {
	t.Parallel()

	cfg, err := LoadFromReader(strings.NewReader(""))
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)
}

func TestValidateJoinsAllProblems(t *testing.T) {
	t.Parallel()

	cfg := Default()
	cfg.OutputDir = ""
	cfg.LogLevel = "trace"
	cfg.Recommendations.Mode = "maybe"
	cfg.Recommendations.Provider = "yandex"
	cfg.Recommendations.MaxTokens = 0

	err := Validate(cfg)
	require.Error(t, err)
	for _, want := range []string{
		"output_dir is required",
		`log_level "trace"`,
		`recommendations.mode "maybe"`,
		`recommendations.provider "yandex"`,
		"recommendations.max_tokens",
	} {
		assert.ErrorContains(t, err, want)
	}
}

func TestLoadMissingFileUsesDefaultsAndEnv(t *testing.T) {
	t.Setenv("GIGACHAT_CREDENTIALS", "Y2xpZW50OnNlY3JldA==")
	t.Setenv("AI_ENABLED", "false")
	t.Setenv("CHURN_AUDIT_LOG_LEVEL", "warn")

	cfg, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	require.NoError(t, err)

	assert.Equal(t, DefaultOutputDir, cfg.OutputDir)
	assert.Equal(t, "warn", cfg.LogLevel)
	assert.Equal(t, ModeNone, cfg.Recommendations.Mode)
	assert.True(t, cfg.Recommendations.HasCredentials())
}

func TestLoadEnvBeatsFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("recommendations:\n  provider: gigachat\n  model: GigaChat-Pro\n"), 0o644))

	t.Setenv("AI_PROVIDER", "openai")
	t.Setenv("AI_MODEL", "gpt-4.1")
	t.Setenv("OPENAI_API_KEY", "sk-test")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, ProviderOpenAI, cfg.Recommendations.Provider)
	assert.Equal(t, "gpt-4.1", cfg.Recommendations.Model)
	assert.True(t, cfg.Recommendations.HasCredentials())
}

func TestAnthropicProviderUsesOwnKey(t *testing.T) {
	t.Setenv("AI_PROVIDER", "anthropic")
	t.Setenv("OPENAI_API_KEY", "sk-test")
	t.Setenv("ANTHROPIC_API_KEY", "")

	cfg, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	require.NoError(t, err)
	assert.Equal(t, ProviderAnthropic, cfg.Recommendations.Provider)
	assert.False(t, cfg.Recommendations.HasCredentials(), "openai key does not count for anthropic")
}

func TestLoadReadsPathFromEnv(t *testing.T) {
	path := filepath.Join(t.TempDir(), "custom.yaml")
	require.NoError(t, os.WriteFile(path, []byte("output_dir: custom-out\n"), 0o644))
	t.Setenv("CHURN_AUDIT_CONFIG", path)

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, "custom-out", cfg.OutputDir)
}

func TestLoadRejectsBadAIEnabled(t *testing.T) {
	t.Setenv("AI_ENABLED", "sometimes")

	_, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	require.ErrorContains(t, err, "AI_ENABLED")
}
