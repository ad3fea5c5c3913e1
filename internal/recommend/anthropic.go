package recommend

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"

	"github.com/tetraminz/churn_audit/internal/audit"
)

const DefaultAnthropicModel = "claude-sonnet-4-5-20250929"

// AnthropicGenerator calls the Anthropic Messages API.
type AnthropicGenerator struct {
	cfg        ChatConfig
	apiKey     string
	httpClient *http.Client
}

// NewAnthropicGenerator builds a generator. An empty BaseURL uses the SDK
// default endpoint.
func NewAnthropicGenerator(cfg ChatConfig, apiKey string, httpClient *http.Client) *AnthropicGenerator {
	if strings.TrimSpace(cfg.Model) == "" {
		cfg.Model = DefaultAnthropicModel
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
	return &AnthropicGenerator{cfg: cfg, apiKey: apiKey, httpClient: httpClient}
}

func (g *AnthropicGenerator) Generate(ctx context.Context, d audit.Digest, totalErrors int) (string, error) {
	if strings.TrimSpace(g.apiKey) == "" {
		return "", ErrNoCredentials
	}

	opts := []option.RequestOption{
		option.WithAPIKey(g.apiKey),
		option.WithHTTPClient(g.httpClient),
		option.WithMaxRetries(0),
	}
	if strings.TrimSpace(g.cfg.BaseURL) != "" {
		opts = append(opts, option.WithBaseURL(g.cfg.BaseURL))
	}
	client := anthropic.NewClient(opts...)

	ctx, cancel := context.WithTimeout(ctx, g.cfg.Timeout)
	defer cancel()

	message, err := client.Messages.New(ctx, anthropic.MessageNewParams{
		Model:       anthropic.Model(g.cfg.Model),
		MaxTokens:   int64(g.cfg.MaxTokens),
		Temperature: anthropic.Float(g.cfg.Temperature),
		System: []anthropic.TextBlockParam{
			{Text: systemPrompt},
		},
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(buildUserPrompt(d, totalErrors))),
		},
	})
	if err != nil {
		return "", fmt.Errorf("anthropic messages: %w", err)
	}

	for _, block := range message.Content {
		if block.Type == "text" {
			if text := strings.TrimSpace(block.Text); text != "" {
				return text, nil
			}
		}
	}
	return "", ErrEmptyCompletion
}
