package huggingface

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"moodcheck/internal/logger"
	"moodcheck/internal/remote"
)

// ErrTranscriptionUnavailable is returned when the model answers without usable text.
var ErrTranscriptionUnavailable = errors.New("transcription unavailable")

type Config struct {
	Token           string
	BaseURL         string
	TranscribeModel string
	EmotionModel    string
	Timeout         time.Duration
	MaxRetries      int
}

// Client calls hosted speech-recognition and audio-classification models.
type Client struct {
	remote *remote.Client
	cfg    Config
	log    *slog.Logger
}

func New(rc *remote.Client, cfg Config, log *slog.Logger) *Client {
	if cfg.BaseURL == "" {
		cfg.BaseURL = "https://router.huggingface.co"
	}
	if cfg.TranscribeModel == "" {
		cfg.TranscribeModel = "openai/whisper-tiny"
	}
	if cfg.EmotionModel == "" {
		cfg.EmotionModel = "superb/hubert-large-superb-er"
	}
	if cfg.MaxRetries <= 0 {
		cfg.MaxRetries = 3
	}
	return &Client{remote: rc, cfg: cfg, log: logger.OrDefault(log).With("provider", "huggingface")}
}

// Emotion is the top classification for a clip.
type Emotion struct {
	Label string
	Score float64
}

// Transcribe runs speech recognition, waiting out model cold starts.
func (c *Client) Transcribe(ctx context.Context, audio []byte) (string, error) {
	if len(audio) == 0 {
		return "", errors.New("empty audio data received")
	}

	endpoint := fmt.Sprintf("%s/pipeline/automatic-speech-recognition?model=%s&wait_for_model=true",
		strings.TrimRight(c.cfg.BaseURL, "/"), url.QueryEscape(c.cfg.TranscribeModel))

	text, err := remote.Do(ctx, c.remote, c.request(endpoint, audio), remote.Options[string]{
		Provider:   "huggingface-asr",
		Timeout:    c.cfg.Timeout,
		MaxRetries: c.cfg.MaxRetries,
		Parse:      parseTranscript,
	})
	if err != nil {
		return "", err
	}

	text = strings.TrimSpace(text)
	if text == "" || strings.Contains(strings.ToLower(text), "unavailable") {
		return "", ErrTranscriptionUnavailable
	}
	return text, nil
}

// ClassifyEmotion returns the highest scoring emotion label.
func (c *Client) ClassifyEmotion(ctx context.Context, audio []byte) (Emotion, error) {
	if len(audio) == 0 {
		return Emotion{}, errors.New("empty audio data received")
	}

	endpoint := fmt.Sprintf("%s/hf-inference/models/%s", strings.TrimRight(c.cfg.BaseURL, "/"), c.cfg.EmotionModel)
	labels, err := remote.Do(ctx, c.remote, c.request(endpoint, audio), remote.Options[[]Emotion]{
		Provider:   "huggingface-emotion",
		Timeout:    c.cfg.Timeout,
		MaxRetries: c.cfg.MaxRetries,
		Parse:      parseClassification,
	})
	if err != nil {
		return Emotion{}, err
	}

	best := labels[0]
	for _, candidate := range labels[1:] {
		if candidate.Score > best.Score {
			best = candidate
		}
	}
	c.log.Debug("emotion classified", "label", best.Label, "score", best.Score)
	return best, nil
}

func (c *Client) request(endpoint string, audio []byte) remote.Request {
	return remote.Request{
		Method: http.MethodPost,
		URL:    endpoint,
		Header: http.Header{
			"Authorization": []string{"Bearer " + c.cfg.Token},
			"Content-Type":  []string{"application/octet-stream"},
		},
		Body: audio,
	}
}

// parseTranscript accepts a bare string, {"text": ...} or [{"text": ...}].
func parseTranscript(body []byte) (string, error) {
	var asString string
	if err := json.Unmarshal(body, &asString); err == nil {
		return asString, nil
	}

	var asObject struct {
		Text string `json:"text"`
	}
	if err := json.Unmarshal(body, &asObject); err == nil {
		return asObject.Text, nil
	}

	var asList []struct {
		Text string `json:"text"`
	}
	if err := json.Unmarshal(body, &asList); err != nil {
		return "", fmt.Errorf("unrecognized transcription payload: %w", err)
	}
	if len(asList) == 0 {
		return "", nil
	}
	return asList[0].Text, nil
}

// parseClassification accepts [{label,score}] and the nested [[{label,score}]] form.
func parseClassification(body []byte) ([]Emotion, error) {
	type scored struct {
		Label string  `json:"label"`
		Score float64 `json:"score"`
	}

	var flat []scored
	if err := json.Unmarshal(body, &flat); err != nil {
		var nested [][]scored
		if nestedErr := json.Unmarshal(body, &nested); nestedErr != nil || len(nested) == 0 {
			return nil, fmt.Errorf("unrecognized classification payload: %w", err)
		}
		flat = nested[0]
	}
	if len(flat) == 0 {
		return nil, errors.New("empty classification")
	}

	out := make([]Emotion, len(flat))
	for i, item := range flat {
		out[i] = Emotion{Label: item.Label, Score: item.Score}
	}
	return out, nil
}
