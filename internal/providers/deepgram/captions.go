// Package deepgram provides live captions over Deepgram's listen websocket.
// Captions are a best-effort side channel; the recording never depends on them.
package deepgram

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"moodcheck/internal/domain"
	"moodcheck/internal/logger"
	"moodcheck/internal/ports"
)

const closeStreamMessage = `{"type":"CloseStream"}`

type Config struct {
	APIKey      string
	APIBaseURL  string
	Model       string
	Language    string
	SmartFormat bool
}

// Captioner implements ports.Captioner.
type Captioner struct {
	cfg    Config
	dialer *websocket.Dialer
	log    *slog.Logger
}

func NewCaptioner(cfg Config, log *slog.Logger) *Captioner {
	if cfg.APIBaseURL == "" {
		cfg.APIBaseURL = "https://api.deepgram.com/v1"
	}
	if cfg.Model == "" {
		cfg.Model = "nova-2"
	}
	return &Captioner{
		cfg:    cfg,
		dialer: &websocket.Dialer{HandshakeTimeout: 5 * time.Second, Proxy: http.ProxyFromEnvironment},
		log:    logger.OrDefault(log).With("provider", "deepgram"),
	}
}

func (c *Captioner) OpenCaptions(ctx context.Context, cfg ports.CaptionConfig) (ports.CaptionStream, error) {
	if strings.TrimSpace(c.cfg.APIKey) == "" {
		return nil, errors.New("DEEPGRAM_API_KEY is not configured")
	}

	listenURL, err := listenEndpoint(c.cfg, cfg)
	if err != nil {
		return nil, err
	}

	headers := http.Header{}
	headers.Set("Authorization", "Token "+c.cfg.APIKey)

	conn, _, err := c.dialer.DialContext(ctx, listenURL, headers)
	if err != nil {
		return nil, fmt.Errorf("connect caption websocket: %w", err)
	}
	c.log.Debug("caption stream opened", "model", c.cfg.Model)

	stream := &captionStream{
		conn:   conn,
		log:    c.log,
		events: make(chan domain.CaptionEvent, 64),
		audio:  make(chan []byte, 32),
		done:   make(chan struct{}),
	}

	stream.loops.Add(2)
	go stream.receive()
	go stream.transmit()
	go func() {
		stream.loops.Wait()
		close(stream.events)
		close(stream.done)
		_ = conn.Close()
	}()
	go func() {
		select {
		case <-ctx.Done():
			_ = stream.Close()
		case <-stream.done:
		}
	}()

	return stream, nil
}

type captionStream struct {
	conn *websocket.Conn
	log  *slog.Logger

	events chan domain.CaptionEvent
	audio  chan []byte
	done   chan struct{}
	loops  sync.WaitGroup

	errMu sync.Mutex
	err   error

	sendMu     sync.RWMutex
	sendClosed bool
	closeOnce  sync.Once
}

func (s *captionStream) SendAudio(chunk []byte) error {
	if len(chunk) == 0 {
		return nil
	}

	s.sendMu.RLock()
	defer s.sendMu.RUnlock()
	if s.sendClosed {
		return errors.New("caption stream is closed for sending")
	}

	select {
	case s.audio <- append([]byte(nil), chunk...):
		return nil
	case <-s.done:
		if err := s.firstErr(); err != nil {
			return err
		}
		return errors.New("caption stream closed")
	}
}

func (s *captionStream) CloseSend() error {
	s.sendMu.Lock()
	defer s.sendMu.Unlock()
	if !s.sendClosed {
		s.sendClosed = true
		close(s.audio)
	}
	return nil
}

func (s *captionStream) Events() <-chan domain.CaptionEvent {
	return s.events
}

func (s *captionStream) Wait() error {
	<-s.done
	return s.firstErr()
}

func (s *captionStream) Close() error {
	s.closeOnce.Do(func() {
		_ = s.CloseSend()
		_ = s.conn.Close()
	})
	<-s.done
	return s.firstErr()
}

func (s *captionStream) firstErr() error {
	s.errMu.Lock()
	defer s.errMu.Unlock()
	return s.err
}

// recordErr keeps the first failure; orderly websocket closes are not failures.
func (s *captionStream) recordErr(err error) {
	if err == nil || websocket.IsCloseError(err,
		websocket.CloseNormalClosure,
		websocket.CloseGoingAway,
		websocket.CloseNoStatusReceived,
	) {
		return
	}

	s.errMu.Lock()
	defer s.errMu.Unlock()
	if s.err == nil {
		s.err = err
	}
}

func (s *captionStream) transmit() {
	defer s.loops.Done()

	for chunk := range s.audio {
		if err := s.conn.WriteMessage(websocket.BinaryMessage, chunk); err != nil {
			s.recordErr(fmt.Errorf("send caption audio: %w", err))
			return
		}
	}
	if err := s.conn.WriteMessage(websocket.TextMessage, []byte(closeStreamMessage)); err != nil {
		s.recordErr(fmt.Errorf("close caption stream: %w", err))
	}
}

func (s *captionStream) receive() {
	defer s.loops.Done()

	for {
		_, payload, err := s.conn.ReadMessage()
		if err != nil {
			s.recordErr(fmt.Errorf("read caption event: %w", err))
			return
		}

		event, ok, err := decodeCaption(payload)
		if err != nil {
			s.log.Warn("caption provider error", "error", err)
			s.recordErr(err)
			return
		}
		if !ok {
			continue
		}

		select {
		case s.events <- event:
		default:
			s.log.Debug("caption event dropped", "kind", event.Kind)
		}
	}
}

type listenMessage struct {
	Type        string `json:"type"`
	Message     string `json:"message"`
	IsFinal     bool   `json:"is_final"`
	SpeechFinal bool   `json:"speech_final"`

	Channel struct {
		Alternatives []alternative `json:"alternatives"`
	} `json:"channel"`

	Results struct {
		Channels []struct {
			Alternatives []alternative `json:"alternatives"`
		} `json:"channels"`
	} `json:"results"`
}

type alternative struct {
	Transcript string `json:"transcript"`
}

// decodeCaption turns one websocket message into a caption event. Messages
// without text report ok=false; provider errors are returned as err.
func decodeCaption(payload []byte) (domain.CaptionEvent, bool, error) {
	var msg listenMessage
	if err := json.Unmarshal(payload, &msg); err != nil {
		return domain.CaptionEvent{}, false, nil
	}

	if strings.EqualFold(msg.Type, "Error") {
		text := strings.TrimSpace(msg.Message)
		if text == "" {
			text = "caption provider returned an unknown error"
		}
		return domain.CaptionEvent{}, false, errors.New(text)
	}

	text := firstTranscript(msg.Channel.Alternatives)
	if text == "" && len(msg.Results.Channels) > 0 {
		text = firstTranscript(msg.Results.Channels[0].Alternatives)
	}
	if text == "" {
		return domain.CaptionEvent{}, false, nil
	}

	kind := domain.TranscriptKindPartial
	if msg.IsFinal || msg.SpeechFinal {
		kind = domain.TranscriptKindFinal
	}
	return domain.CaptionEvent{Kind: kind, Text: text, IsSpeechFinal: msg.SpeechFinal}, true, nil
}

func firstTranscript(alts []alternative) string {
	if len(alts) == 0 {
		return ""
	}
	return strings.TrimSpace(alts[0].Transcript)
}

func listenEndpoint(providerCfg Config, captionCfg ports.CaptionConfig) (string, error) {
	base := strings.TrimSpace(providerCfg.APIBaseURL)
	if base == "" {
		base = "https://api.deepgram.com/v1"
	}

	parsed, err := url.Parse(strings.TrimRight(base, "/") + "/listen")
	if err != nil {
		return "", fmt.Errorf("invalid caption API base URL: %w", err)
	}
	switch parsed.Scheme {
	case "https":
		parsed.Scheme = "wss"
	case "http":
		parsed.Scheme = "ws"
	}

	if captionCfg.Encoding == "" {
		captionCfg.Encoding = "linear16"
	}
	if captionCfg.SampleRate <= 0 {
		captionCfg.SampleRate = 16000
	}
	if captionCfg.Channels <= 0 {
		captionCfg.Channels = 1
	}

	query := parsed.Query()
	query.Set("model", providerCfg.Model)
	query.Set("encoding", captionCfg.Encoding)
	query.Set("sample_rate", strconv.Itoa(captionCfg.SampleRate))
	query.Set("channels", strconv.Itoa(captionCfg.Channels))
	query.Set("interim_results", strconv.FormatBool(captionCfg.InterimResults))
	query.Set("smart_format", strconv.FormatBool(providerCfg.SmartFormat))
	if providerCfg.Language != "" {
		query.Set("language", providerCfg.Language)
	}
	parsed.RawQuery = query.Encode()
	return parsed.String(), nil
}
