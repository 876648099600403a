package gemini

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"moodcheck/internal/domain"
	"moodcheck/internal/logger"
	"moodcheck/internal/ports"
	"moodcheck/internal/remote"
)

const transcribeInstruction = "Transcribe this audio in English. Return only the transcript text, no extra commentary."

type Config struct {
	APIKey     string
	BaseURL    string
	Model      string
	Timeout    time.Duration
	MaxRetries int
}

// Client talks to the generateContent endpoint for both text generation and
// inline-audio transcription.
type Client struct {
	remote *remote.Client
	cfg    Config
	log    *slog.Logger
}

func New(rc *remote.Client, cfg Config, log *slog.Logger) *Client {
	if cfg.BaseURL == "" {
		cfg.BaseURL = "https://generativelanguage.googleapis.com/v1beta"
	}
	if cfg.Model == "" {
		cfg.Model = "gemini-flash-latest"
	}
	if cfg.MaxRetries <= 0 {
		cfg.MaxRetries = 1
	}
	return &Client{remote: rc, cfg: cfg, log: logger.OrDefault(log).With("provider", "gemini")}
}

func (c *Client) Name() domain.ProviderTag { return domain.ProviderGemini }

type inlineData struct {
	MIMEType string `json:"mimeType"`
	Data     string `json:"data"`
}

type part struct {
	Text       string      `json:"text,omitempty"`
	InlineData *inlineData `json:"inlineData,omitempty"`
}

type content struct {
	Parts []part `json:"parts"`
}

type generateRequest struct {
	Contents []content `json:"contents"`
}

type generateResponse struct {
	Candidates []struct {
		Content struct {
			Parts []struct {
				Text string `json:"text"`
			} `json:"parts"`
		} `json:"content"`
	} `json:"candidates"`
}

// Generate returns the model's text for a prompt. Empty output is not an error here;
// callers decide whether an empty answer is acceptable.
func (c *Client) Generate(ctx context.Context, prompt ports.Prompt) (string, error) {
	return c.call(ctx, "generate:"+prompt.Task, []part{{Text: prompt.Text}})
}

// Transcribe sends the clip inline and returns the transcript.
func (c *Client) Transcribe(ctx context.Context, clip domain.AudioClip) (domain.TranscriptionResult, error) {
	if len(clip.Data) == 0 {
		return domain.TranscriptionResult{}, errors.New("gemini: empty audio clip")
	}
	mimeType := clip.MIMEType
	if mimeType == "" {
		mimeType = "audio/webm"
	}

	text, err := c.call(ctx, "transcribe", []part{
		{Text: transcribeInstruction},
		{InlineData: &inlineData{MIMEType: mimeType, Data: base64.StdEncoding.EncodeToString(clip.Data)}},
	})
	if err != nil {
		return domain.TranscriptionResult{}, err
	}
	if text == "" {
		return domain.TranscriptionResult{}, &domain.ProviderError{Provider: "gemini", Kind: domain.ProviderErrEmpty}
	}
	return domain.TranscriptionResult{Transcript: text, Source: domain.ProviderGemini}, nil
}

func (c *Client) call(ctx context.Context, op string, parts []part) (string, error) {
	if strings.TrimSpace(c.cfg.APIKey) == "" {
		return "", errors.New("gemini: api key is not configured")
	}

	body, err := json.Marshal(generateRequest{Contents: []content{{Parts: parts}}})
	if err != nil {
		return "", fmt.Errorf("gemini: encode request: %w", err)
	}

	c.log.Debug("gemini request", "op", op, "model", c.cfg.Model, "bytes", len(body))
	return remote.Do(ctx, c.remote, remote.Request{
		Method: http.MethodPost,
		URL:    c.endpoint(),
		Header: http.Header{"Content-Type": []string{"application/json"}},
		Body:   body,
	}, remote.Options[string]{
		Provider:   "gemini",
		Timeout:    c.cfg.Timeout,
		MaxRetries: c.cfg.MaxRetries,
		Parse:      parseText,
	})
}

func (c *Client) endpoint() string {
	base := strings.TrimRight(c.cfg.BaseURL, "/")
	return fmt.Sprintf("%s/models/%s:generateContent?key=%s", base, url.PathEscape(c.cfg.Model), url.QueryEscape(c.cfg.APIKey))
}

func parseText(body []byte) (string, error) {
	var resp generateResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return "", err
	}
	if len(resp.Candidates) == 0 {
		return "", nil
	}
	texts := make([]string, 0, len(resp.Candidates[0].Content.Parts))
	for _, p := range resp.Candidates[0].Content.Parts {
		texts = append(texts, p.Text)
	}
	return strings.TrimSpace(strings.Join(texts, "\n")), nil
}
