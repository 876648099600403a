package gemini

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"moodcheck/internal/domain"
	"moodcheck/internal/logger"
	"moodcheck/internal/ports"
	"moodcheck/internal/remote"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	rc := remote.NewClient(remote.ClientOptions{
		Logger: logger.Discard(),
		Sleep:  func(context.Context, time.Duration) error { return nil },
	})
	return New(rc, Config{APIKey: "k&y", BaseURL: srv.URL + "/v1beta", Model: "gemini-test", MaxRetries: 2}, logger.Discard())
}

func writeCandidate(w http.ResponseWriter, parts ...string) {
	type textPart struct {
		Text string `json:"text"`
	}
	ps := make([]textPart, len(parts))
	for i, p := range parts {
		ps[i] = textPart{Text: p}
	}
	_ = json.NewEncoder(w).Encode(map[string]any{
		"candidates": []any{map[string]any{"content": map[string]any{"parts": ps}}},
	})
}

func TestGenerateSendsPromptAndJoinsParts(t *testing.T) {
	t.Parallel()

	var gotPath, gotKey string
	var gotBody generateRequest
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotKey = r.URL.Query().Get("key")
		raw, _ := io.ReadAll(r.Body)
		_ = json.Unmarshal(raw, &gotBody)
		writeCandidate(w, "line one", "line two ")
	})

	text, err := client.Generate(context.Background(), ports.Prompt{Task: "insight", Text: "hello"})
	if err != nil {
		t.Fatalf("generate failed: %v", err)
	}
	if text != "line one\nline two" {
		t.Fatalf("unexpected text: %q", text)
	}
	if gotPath != "/v1beta/models/gemini-test:generateContent" {
		t.Fatalf("unexpected path: %s", gotPath)
	}
	if gotKey != "k&y" {
		t.Fatalf("unexpected key: %q", gotKey)
	}
	if len(gotBody.Contents) != 1 || gotBody.Contents[0].Parts[0].Text != "hello" {
		t.Fatalf("unexpected request body: %+v", gotBody)
	}
}

func TestGenerateEmptyCandidatesIsEmptyText(t *testing.T) {
	t.Parallel()

	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, `{"candidates":[]}`)
	})

	text, err := client.Generate(context.Background(), ports.Prompt{Task: "insight", Text: "x"})
	if err != nil || text != "" {
		t.Fatalf("expected empty text without error, got %q, %v", text, err)
	}
}

func TestTranscribeSendsInlineAudio(t *testing.T) {
	t.Parallel()

	var gotBody generateRequest
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		raw, _ := io.ReadAll(r.Body)
		_ = json.Unmarshal(raw, &gotBody)
		writeCandidate(w, "I feel tired")
	})

	result, err := client.Transcribe(context.Background(), domain.AudioClip{Data: []byte("RIFF"), MIMEType: "audio/wav"})
	if err != nil {
		t.Fatalf("transcribe failed: %v", err)
	}
	if result.Transcript != "I feel tired" || result.Source != domain.ProviderGemini {
		t.Fatalf("unexpected result: %+v", result)
	}

	parts := gotBody.Contents[0].Parts
	if len(parts) != 2 || parts[0].Text != transcribeInstruction {
		t.Fatalf("unexpected parts: %+v", parts)
	}
	if parts[1].InlineData == nil || parts[1].InlineData.MIMEType != "audio/wav" {
		t.Fatalf("expected inline audio part, got %+v", parts[1])
	}
	if parts[1].InlineData.Data != base64.StdEncoding.EncodeToString([]byte("RIFF")) {
		t.Fatalf("unexpected audio payload: %s", parts[1].InlineData.Data)
	}
}

func TestTranscribeEmptyTranscriptIsProviderError(t *testing.T) {
	t.Parallel()

	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		writeCandidate(w, "  ")
	})

	_, err := client.Transcribe(context.Background(), domain.AudioClip{Data: []byte("x")})
	var providerErr *domain.ProviderError
	if !errors.As(err, &providerErr) || providerErr.Kind != domain.ProviderErrEmpty {
		t.Fatalf("expected empty ProviderError, got %v", err)
	}
}

func TestCallWithoutKeyFailsFast(t *testing.T) {
	t.Parallel()

	rc := remote.NewClient(remote.ClientOptions{Logger: logger.Discard()})
	client := New(rc, Config{}, logger.Discard())
	if _, err := client.Generate(context.Background(), ports.Prompt{Task: "x", Text: "y"}); err == nil {
		t.Fatalf("expected error without api key")
	}
}
