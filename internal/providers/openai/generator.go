// Package openai generates analysis text through any OpenAI-compatible
// chat completions endpoint.
package openai

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	openaigo "github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"

	"moodcheck/internal/domain"
	"moodcheck/internal/logger"
	"moodcheck/internal/ports"
)

const (
	DefaultBaseURL = "https://api.openai.com/v1"
	DefaultModel   = "gpt-4o-mini"
	DefaultTimeout = 60 * time.Second
)

type Config struct {
	APIKey     string
	BaseURL    string
	Model      string
	Timeout    time.Duration
	MaxRetries int
	HTTPClient *http.Client
}

type Generator struct {
	client openaigo.Client
	model  string
	log    *slog.Logger
}

func New(cfg Config, log *slog.Logger) (*Generator, error) {
	if strings.TrimSpace(cfg.APIKey) == "" {
		return nil, &domain.ConfigError{Field: "OPENAI_API_KEY", Reason: "is required"}
	}
	baseURL := strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	model := strings.TrimSpace(cfg.Model)
	if model == "" {
		model = DefaultModel
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	if cfg.MaxRetries < 0 {
		cfg.MaxRetries = 0
	}
	if cfg.HTTPClient == nil {
		cfg.HTTPClient = &http.Client{Timeout: cfg.Timeout}
	}

	client := openaigo.NewClient(
		option.WithBaseURL(baseURL),
		option.WithAPIKey(strings.TrimSpace(cfg.APIKey)),
		option.WithHTTPClient(cfg.HTTPClient),
		option.WithMaxRetries(cfg.MaxRetries),
		option.WithRequestTimeout(cfg.Timeout),
	)
	return &Generator{client: client, model: model, log: logger.OrDefault(log).With("provider", "openai")}, nil
}

func (g *Generator) Generate(ctx context.Context, prompt ports.Prompt) (string, error) {
	resp, err := g.client.Chat.Completions.New(ctx, openaigo.ChatCompletionNewParams{
		Model: openaigo.ChatModel(g.model),
		Messages: []openaigo.ChatCompletionMessageParamUnion{
			openaigo.UserMessage(prompt.Text),
		},
	})
	if err != nil {
		g.log.Warn("chat completion failed", "task", prompt.Task, "error", err)
		return "", toProviderError(err)
	}
	if len(resp.Choices) == 0 {
		g.log.Info("chat completion", "task", prompt.Task, "outcome", "empty")
		return "", nil
	}
	g.log.Info("chat completion", "task", prompt.Task, "outcome", "ok")
	return strings.TrimSpace(resp.Choices[0].Message.Content), nil
}

func toProviderError(err error) error {
	var apiErr *openaigo.Error
	if errors.As(err, &apiErr) {
		return &domain.ProviderError{
			Provider: "openai",
			Kind:     domain.ProviderErrStatus,
			Status:   apiErr.StatusCode,
			Body:     apiErr.Message,
			Err:      err,
		}
	}
	return &domain.ProviderError{Provider: "openai", Kind: domain.ProviderErrTransport, Err: err}
}
