package config

import (
	"errors"
	"fmt"
	"io"
	"os"
	"slices"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/tetraminz/churn_audit/internal/patterns"
)

const (
	DefaultPath      = "config.yaml"
	DefaultInputPath = "dialogs.xlsx"
	DefaultOutputDir = "out"
	DefaultDBPath    = "out/audit.db"

	ProviderGigaChat  = "gigachat"
	ProviderOpenAI    = "openai"
	ProviderAnthropic = "anthropic"

	ModeAI   = "ai"
	ModeNone = "none"

	defaultTimeoutSeconds = 30
	defaultTemperature    = 0.7
	defaultMaxTokens      = 1500
)

var (
	validLogLevels = []string{"debug", "info", "warn", "error"}
	validProviders = []string{ProviderGigaChat, ProviderOpenAI, ProviderAnthropic}
)

// Config is the full runtime configuration.
type Config struct {
	InputPath string `yaml:"input_path"`
	OutputDir string `yaml:"output_dir"`
	DBPath    string `yaml:"db_path"`
	LogLevel  string `yaml:"log_level"`

	Recommendations Recommendations `yaml:"recommendations"`

	// Patterns replaces individual default phrase lists; empty lists keep
	// the defaults.
	Patterns patterns.Spec `yaml:"patterns"`
}

// Recommendations configures the recommendation step.
type Recommendations struct {
	Mode            string  `yaml:"mode"`
	Provider        string  `yaml:"provider"`
	Model           string  `yaml:"model"`
	BaseURL         string  `yaml:"base_url"`
	AuthURL         string  `yaml:"auth_url"`
	Scope           string  `yaml:"scope"`
	Credentials     string  `yaml:"credentials"`
	APIKey          string  `yaml:"api_key"`
	AnthropicAPIKey string  `yaml:"anthropic_api_key"`
	TimeoutSeconds  int     `yaml:"timeout_seconds"`
	Temperature     float64 `yaml:"temperature"`
	MaxTokens       int     `yaml:"max_tokens"`
	// GigaChat endpoints are served with a certificate chain most systems
	// do not trust.
	InsecureSkipVerify bool `yaml:"insecure_skip_verify"`
}

// Timeout returns the request timeout as a duration.
func (r Recommendations) Timeout() time.Duration {
	return time.Duration(r.TimeoutSeconds) * time.Second
}

// HasCredentials reports whether the selected provider has a secret to use.
func (r Recommendations) HasCredentials() bool {
	switch r.Provider {
	case ProviderOpenAI:
		return strings.TrimSpace(r.APIKey) != ""
	case ProviderAnthropic:
		return strings.TrimSpace(r.AnthropicAPIKey) != ""
	default:
		return strings.TrimSpace(r.Credentials) != ""
	}
}

// Default returns the configuration used when no file is present.
func Default() Config {
	return Config{
		InputPath: DefaultInputPath,
		OutputDir: DefaultOutputDir,
		DBPath:    DefaultDBPath,
		LogLevel:  "info",
		Recommendations: Recommendations{
			Mode:               ModeAI,
			Provider:           ProviderGigaChat,
			TimeoutSeconds:     defaultTimeoutSeconds,
			Temperature:        defaultTemperature,
			MaxTokens:          defaultMaxTokens,
			InsecureSkipVerify: true,
		},
	}
}

// Load reads path when it exists, applies environment overrides and
// validates the result. A missing file is not an error.
func Load(path string) (Config, error) {
	if strings.TrimSpace(path) == "" {
		path = DefaultPath
		if env := os.Getenv("CHURN_AUDIT_CONFIG"); env != "" {
			path = env
		}
	}

	cfg := Default()
	f, err := os.Open(path)
	switch {
	case err == nil:
		defer f.Close()
		if err := decode(f, &cfg); err != nil {
			return Config{}, fmt.Errorf("config: parse %q: %w", path, err)
		}
	case errors.Is(err, os.ErrNotExist):
	default:
		return Config{}, fmt.Errorf("config: open %q: %w", path, err)
	}

	if err := applyEnv(&cfg); err != nil {
		return Config{}, err
	}
	if err := Validate(cfg); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// LoadFromReader decodes YAML from r over the defaults and validates it.
// Environment overrides are not applied.
func LoadFromReader(r io.Reader) (Config, error) {
	cfg := Default()
	if err := decode(r, &cfg); err != nil {
		return Config{}, err
	}
	if err := Validate(cfg); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func decode(r io.Reader, cfg *Config) error {
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return fmt.Errorf("config: decode yaml: %w", err)
	}
	return nil
}

func applyEnv(cfg *Config) error {
	envOverride(&cfg.Recommendations.Credentials, "GIGACHAT_CREDENTIALS")
	envOverride(&cfg.Recommendations.APIKey, "OPENAI_API_KEY")
	envOverride(&cfg.Recommendations.AnthropicAPIKey, "ANTHROPIC_API_KEY")
	envOverride(&cfg.Recommendations.Provider, "AI_PROVIDER")
	envOverride(&cfg.Recommendations.Model, "AI_MODEL")
	envOverride(&cfg.LogLevel, "CHURN_AUDIT_LOG_LEVEL")

	if val := os.Getenv("AI_ENABLED"); val != "" {
		enabled, err := strconv.ParseBool(val)
		if err != nil {
			return fmt.Errorf("config: invalid AI_ENABLED %q: %w", val, err)
		}
		if enabled {
			cfg.Recommendations.Mode = ModeAI
		} else {
			cfg.Recommendations.Mode = ModeNone
		}
	}
	return nil
}

func envOverride(field *string, envKey string) {
	if val := os.Getenv(envKey); val != "" {
		*field = val
	}
}

// Validate checks cfg and returns every problem found, joined.
func Validate(cfg Config) error {
	var errs []error

	if strings.TrimSpace(cfg.OutputDir) == "" {
		errs = append(errs, errors.New("output_dir is required"))
	}
	if strings.TrimSpace(cfg.DBPath) == "" {
		errs = append(errs, errors.New("db_path is required"))
	}
	if !slices.Contains(validLogLevels, cfg.LogLevel) {
		errs = append(errs, fmt.Errorf("log_level %q is invalid; valid values: %s", cfg.LogLevel, strings.Join(validLogLevels, ", ")))
	}

	rec := cfg.Recommendations
	if rec.Mode != ModeAI && rec.Mode != ModeNone {
		errs = append(errs, fmt.Errorf("recommendations.mode %q is invalid; valid values: ai, none", rec.Mode))
	}
	if !slices.Contains(validProviders, rec.Provider) {
		errs = append(errs, fmt.Errorf("recommendations.provider %q is invalid; valid values: %s", rec.Provider, strings.Join(validProviders, ", ")))
	}
	if rec.TimeoutSeconds < 1 {
		errs = append(errs, fmt.Errorf("recommendations.timeout_seconds must be >= 1, got %d", rec.TimeoutSeconds))
	}
	if rec.Temperature < 0 || rec.Temperature > 2 {
		errs = append(errs, fmt.Errorf("recommendations.temperature must be between 0 and 2, got %v", rec.Temperature))
	}
	if rec.MaxTokens < 1 {
		errs = append(errs, fmt.Errorf("recommendations.max_tokens must be >= 1, got %d", rec.MaxTokens))
	}

	if _, err := patterns.New(patterns.DefaultSpec().Merge(cfg.Patterns)); err != nil {
		errs = append(errs, fmt.Errorf("patterns: %w", err))
	}

	return errors.Join(errs...)
}

// Library compiles the configured phrase lists over the defaults.
func (c Config) Library() (*patterns.Library, error) {
	return patterns.New(patterns.DefaultSpec().Merge(c.Patterns))
}
