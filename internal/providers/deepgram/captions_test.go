package deepgram

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"moodcheck/internal/domain"
	"moodcheck/internal/logger"
	"moodcheck/internal/ports"
)

func TestNewCaptionerDefaults(t *testing.T) {
	t.Parallel()

	c := NewCaptioner(Config{}, nil)
	if c.cfg.APIBaseURL != "https://api.deepgram.com/v1" || c.cfg.Model != "nova-2" {
		t.Fatalf("unexpected defaults: %+v", c.cfg)
	}
}

func TestOpenCaptionsRequiresAPIKey(t *testing.T) {
	t.Parallel()

	c := NewCaptioner(Config{}, logger.Discard())
	if _, err := c.OpenCaptions(context.Background(), ports.CaptionConfig{}); err == nil {
		t.Fatalf("expected missing key error")
	}
}

func TestListenEndpointDefaults(t *testing.T) {
	t.Parallel()

	raw, err := listenEndpoint(Config{APIBaseURL: "https://api.deepgram.com/v1/", Model: "nova-2"}, ports.CaptionConfig{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	parsed, err := url.Parse(raw)
	if err != nil {
		t.Fatalf("unparseable url %q: %v", raw, err)
	}
	if parsed.Scheme != "wss" || parsed.Host != "api.deepgram.com" || parsed.Path != "/v1/listen" {
		t.Fatalf("unexpected endpoint: %s", raw)
	}
	q := parsed.Query()
	if q.Get("encoding") != "linear16" || q.Get("sample_rate") != "16000" || q.Get("channels") != "1" {
		t.Fatalf("unexpected defaults in query: %s", parsed.RawQuery)
	}
	if q.Has("language") {
		t.Fatalf("language should be omitted: %s", parsed.RawQuery)
	}
}

func TestListenEndpointOverrides(t *testing.T) {
	t.Parallel()

	raw, err := listenEndpoint(
		Config{APIBaseURL: "http://localhost:8080/v1", Model: "m", Language: "en-US", SmartFormat: true},
		ports.CaptionConfig{Encoding: "linear16", SampleRate: 8000, Channels: 2, InterimResults: true},
	)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.HasPrefix(raw, "ws://localhost:8080/v1/listen?") {
		t.Fatalf("unexpected endpoint: %s", raw)
	}
	for _, want := range []string{"language=en-US", "smart_format=true", "interim_results=true", "sample_rate=8000", "channels=2"} {
		if !strings.Contains(raw, want) {
			t.Fatalf("expected %s in %s", want, raw)
		}
	}
}

func TestListenEndpointInvalidBase(t *testing.T) {
	t.Parallel()

	if _, err := listenEndpoint(Config{APIBaseURL: ":// bad"}, ports.CaptionConfig{}); err == nil {
		t.Fatalf("expected invalid base url error")
	}
}

func TestDecodeCaption(t *testing.T) {
	t.Parallel()

	event, ok, err := decodeCaption([]byte(`{"is_final":false,"channel":{"alternatives":[{"transcript":" hello "}]}}`))
	if err != nil || !ok || event.Kind != domain.TranscriptKindPartial || event.Text != "hello" {
		t.Fatalf("unexpected partial decode: %+v %v %v", event, ok, err)
	}

	event, ok, err = decodeCaption([]byte(`{"speech_final":true,"results":{"channels":[{"alternatives":[{"transcript":"done"}]}]}}`))
	if err != nil || !ok || event.Kind != domain.TranscriptKindFinal || !event.IsSpeechFinal {
		t.Fatalf("unexpected final decode: %+v %v %v", event, ok, err)
	}

	if _, ok, err := decodeCaption([]byte(`{"type":"Metadata"}`)); ok || err != nil {
		t.Fatalf("metadata should be skipped, got ok=%v err=%v", ok, err)
	}
	if _, ok, err := decodeCaption([]byte(`not json`)); ok || err != nil {
		t.Fatalf("garbage should be skipped, got ok=%v err=%v", ok, err)
	}
	if _, _, err := decodeCaption([]byte(`{"type":"Error","message":"quota"}`)); err == nil || err.Error() != "quota" {
		t.Fatalf("expected provider error, got %v", err)
	}
}

func TestCaptionStreamSendAfterCloseSend(t *testing.T) {
	t.Parallel()

	s := &captionStream{audio: make(chan []byte, 1)}
	if err := s.CloseSend(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := s.CloseSend(); err != nil {
		t.Fatalf("unexpected second error: %v", err)
	}
	if err := s.SendAudio([]byte("x")); err == nil {
		t.Fatalf("expected closed error")
	}
}

func TestCaptionStreamRecordErr(t *testing.T) {
	t.Parallel()

	s := &captionStream{}
	s.recordErr(&websocket.CloseError{Code: websocket.CloseNormalClosure, Text: "closed"})
	if s.firstErr() != nil {
		t.Fatalf("expected close error to be ignored")
	}

	s.recordErr(errors.New("first"))
	s.recordErr(errors.New("second"))
	if s.firstErr() == nil || s.firstErr().Error() != "first" {
		t.Fatalf("expected first error to win, got %v", s.firstErr())
	}
}

func TestOpenCaptionsRoundTrip(t *testing.T) {
	t.Parallel()

	upgrader := websocket.Upgrader{}
	received := make(chan string, 4)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Token dg-key" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()

		for {
			kind, payload, err := conn.ReadMessage()
			if err != nil {
				return
			}
			if kind == websocket.BinaryMessage {
				received <- string(payload)
				_ = conn.WriteMessage(websocket.TextMessage, []byte(`{"is_final":true,"channel":{"alternatives":[{"transcript":"I feel tired"}]}}`))
				continue
			}
			if string(payload) == closeStreamMessage {
				_ = conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
				return
			}
		}
	}))
	t.Cleanup(srv.Close)

	c := NewCaptioner(Config{APIKey: "dg-key", APIBaseURL: srv.URL}, logger.Discard())
	stream, err := c.OpenCaptions(context.Background(), ports.CaptionConfig{})
	if err != nil {
		t.Fatalf("open failed: %v", err)
	}

	if err := stream.SendAudio([]byte("pcm")); err != nil {
		t.Fatalf("send failed: %v", err)
	}

	select {
	case event := <-stream.Events():
		if event.Text != "I feel tired" || event.Kind != domain.TranscriptKindFinal {
			t.Fatalf("unexpected event: %+v", event)
		}
	case <-time.After(2 * time.Second):
		t.Fatalf("timed out waiting for caption")
	}

	if err := stream.CloseSend(); err != nil {
		t.Fatalf("close send failed: %v", err)
	}
	if err := stream.Wait(); err != nil {
		t.Fatalf("expected clean shutdown, got %v", err)
	}
	if got := <-received; got != "pcm" {
		t.Fatalf("server received %q", got)
	}
}
