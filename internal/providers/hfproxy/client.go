// Package hfproxy calls the server-side proxy that runs transcription and
// emotion classification in one request.
package hfproxy

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"mime/multipart"
	"net/http"
	"strings"
	"time"

	"moodcheck/internal/domain"
	"moodcheck/internal/logger"
	"moodcheck/internal/remote"
)

type Config struct {
	URL        string
	Timeout    time.Duration
	MaxRetries int
}

type Client struct {
	remote *remote.Client
	cfg    Config
	log    *slog.Logger
}

func New(rc *remote.Client, cfg Config, log *slog.Logger) *Client {
	if cfg.MaxRetries <= 0 {
		cfg.MaxRetries = 1
	}
	return &Client{remote: rc, cfg: cfg, log: logger.OrDefault(log).With("provider", "hf-proxy")}
}

func (c *Client) Name() domain.ProviderTag { return domain.ProviderHFProxy }

// Response is the proxy's JSON body.
type Response struct {
	Transcription string   `json:"transcription"`
	EmotionLabel  string   `json:"emotionLabel"`
	EmotionScore  *float64 `json:"emotionScore"`
}

func (c *Client) Transcribe(ctx context.Context, clip domain.AudioClip) (domain.TranscriptionResult, error) {
	if strings.TrimSpace(c.cfg.URL) == "" {
		return domain.TranscriptionResult{}, errors.New("hf-proxy: url is not configured")
	}

	body, contentType, err := encodeForm(clip)
	if err != nil {
		return domain.TranscriptionResult{}, err
	}

	resp, err := remote.Do(ctx, c.remote, remote.Request{
		Method: http.MethodPost,
		URL:    c.cfg.URL,
		Header: http.Header{"Content-Type": []string{contentType}},
		Body:   body,
	}, remote.Options[Response]{
		Provider:   "hf-proxy",
		Timeout:    c.cfg.Timeout,
		MaxRetries: c.cfg.MaxRetries,
		Parse:      remote.JSON[Response],
	})
	if err != nil {
		return domain.TranscriptionResult{}, err
	}

	c.log.Debug("proxy analysis", "has_transcript", resp.Transcription != "", "emotion", resp.EmotionLabel)
	return domain.TranscriptionResult{
		Transcript:   strings.TrimSpace(resp.Transcription),
		EmotionLabel: strings.TrimSpace(resp.EmotionLabel),
		EmotionScore: resp.EmotionScore,
		Source:       domain.ProviderHFProxy,
	}, nil
}

func encodeForm(clip domain.AudioClip) ([]byte, string, error) {
	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)
	part, err := writer.CreateFormFile("file", "audio."+clip.Extension())
	if err != nil {
		return nil, "", fmt.Errorf("hf-proxy: create form file: %w", err)
	}
	if _, err := part.Write(clip.Data); err != nil {
		return nil, "", fmt.Errorf("hf-proxy: write form file: %w", err)
	}
	if err := writer.Close(); err != nil {
		return nil, "", fmt.Errorf("hf-proxy: close form: %w", err)
	}
	return buf.Bytes(), writer.FormDataContentType(), nil
}
