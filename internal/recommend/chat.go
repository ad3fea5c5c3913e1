package recommend

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	oai "github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	"github.com/openai/openai-go/packages/param"
	"github.com/openai/openai-go/shared"

	"github.com/tetraminz/churn_audit/internal/audit"
)

const (
	DefaultGigaChatBaseURL = "https://gigachat.devices.sberbank.ru/api/v1/"
	DefaultGigaChatModel   = "GigaChat"
	DefaultOpenAIModel     = "gpt-4.1-mini"

	defaultTemperature = 0.7
	defaultMaxTokens   = 1500
	defaultTimeout     = 30 * time.Second
)

var (
	ErrNoCredentials   = errors.New("recommend: no credentials configured")
	ErrEmptyCompletion = errors.New("recommend: empty completion")
)

// Generator turns one category digest into recommendation prose.
type Generator interface {
	Generate(ctx context.Context, d audit.Digest, totalErrors int) (string, error)
}

// ChatConfig configures a ChatGenerator. Zero values fall back to the
// GigaChat defaults.
type ChatConfig struct {
	BaseURL     string
	Model       string
	Temperature float64
	MaxTokens   int
	Timeout     time.Duration
}

// ChatGenerator calls an OpenAI-compatible chat completions endpoint.
type ChatGenerator struct {
	cfg        ChatConfig
	tokens     TokenSource
	httpClient *http.Client
}

// NewChatGenerator builds a generator. The bearer token is fetched from
// tokens on every call so short-lived tokens can rotate.
func NewChatGenerator(cfg ChatConfig, tokens TokenSource, httpClient *http.Client) *ChatGenerator {
	if strings.TrimSpace(cfg.BaseURL) == "" {
		cfg.BaseURL = DefaultGigaChatBaseURL
	}
	if !strings.HasSuffix(cfg.BaseURL, "/") {
		cfg.BaseURL += "/"
	}
	if strings.TrimSpace(cfg.Model) == "" {
		cfg.Model = DefaultGigaChatModel
	}
	if cfg.Temperature == 0 {
		cfg.Temperature = defaultTemperature
	}
	if cfg.MaxTokens <= 0 {
		cfg.MaxTokens = defaultMaxTokens
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultTimeout
	}
	if httpClient == nil {
		httpClient = &http.Client{Timeout: cfg.Timeout}
	}
	return &ChatGenerator{cfg: cfg, tokens: tokens, httpClient: httpClient}
}

func (g *ChatGenerator) Generate(ctx context.Context, d audit.Digest, totalErrors int) (string, error) {
	if g.tokens == nil {
		return "", ErrNoCredentials
	}
	token, err := g.tokens.Token(ctx)
	if err != nil {
		return "", fmt.Errorf("get token: %w", err)
	}

	// retries are driven by the report writer
	client := oai.NewClient(
		option.WithAPIKey(token),
		option.WithBaseURL(g.cfg.BaseURL),
		option.WithHTTPClient(g.httpClient),
		option.WithMaxRetries(0),
	)

	ctx, cancel := context.WithTimeout(ctx, g.cfg.Timeout)
	defer cancel()

	resp, err := client.Chat.Completions.New(ctx, oai.ChatCompletionNewParams{
		Model: shared.ChatModel(g.cfg.Model),
		Messages: []oai.ChatCompletionMessageParamUnion{
			oai.SystemMessage(systemPrompt),
			oai.UserMessage(buildUserPrompt(d, totalErrors)),
		},
		Temperature: param.NewOpt(g.cfg.Temperature),
		// GigaChat only understands the legacy max_tokens field.
		MaxTokens: param.NewOpt(int64(g.cfg.MaxTokens)),
	})
	if err != nil {
		return "", fmt.Errorf("chat completion: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", ErrEmptyCompletion
	}

	content := strings.TrimSpace(resp.Choices[0].Message.Content)
	if content == "" {
		return "", ErrEmptyCompletion
	}
	return content, nil
}
