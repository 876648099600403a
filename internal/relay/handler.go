// Package relay is the server-side transcription endpoint. It keeps the
// hosted-model token off the desktop and answers in the shape the desktop's
// hf-proxy client expects.
package relay

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"moodcheck/internal/logger"
	"moodcheck/internal/providers/hfproxy"
	"moodcheck/internal/providers/huggingface"
)

const (
	maxAudioBytes   = 25 << 20
	emptyAudioError = "Empty audio data received"
)

// Recognizer runs speech recognition and emotion classification on raw audio.
type Recognizer interface {
	Transcribe(ctx context.Context, audio []byte) (string, error)
	ClassifyEmotion(ctx context.Context, audio []byte) (huggingface.Emotion, error)
}

type Handler struct {
	recognizer Recognizer
	log        *slog.Logger
}

func NewHandler(recognizer Recognizer, log *slog.Logger) *Handler {
	return &Handler{recognizer: recognizer, log: logger.OrDefault(log).With("component", "relay")}
}

// NewRouter mounts the relay routes behind request logging and CORS.
func NewRouter(h *Handler, allowedOrigins []string) http.Handler {
	if len(allowedOrigins) == 0 {
		allowedOrigins = []string{"*"}
	}

	router := chi.NewRouter()
	router.Use(middleware.RequestID)
	router.Use(middleware.Logger)
	router.Use(middleware.Recoverer)
	router.Use(cors.Handler(cors.Options{
		AllowedOrigins: allowedOrigins,
		AllowedMethods: []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders: []string{"Authorization", "X-Client-Info", "Apikey", "Content-Type"},
		MaxAge:         300,
	}))

	router.Get("/health", h.Health)
	router.Post("/analyze", h.Analyze)
	router.Route("/functions", func(r chi.Router) {
		r.Post("/analyze-audio", h.AnalyzeAudio)
	})
	return router
}

func (h *Handler) Health(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// AnalyzeAudio transcribes a raw audio body.
func (h *Handler) AnalyzeAudio(w http.ResponseWriter, r *http.Request) {
	audio, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxAudioBytes))
	if err != nil {
		writeError(w, http.StatusRequestEntityTooLarge, err.Error())
		return
	}
	if len(audio) == 0 {
		writeError(w, http.StatusBadRequest, emptyAudioError)
		return
	}

	text, err := h.recognizer.Transcribe(r.Context(), audio)
	if err != nil {
		h.log.Error("transcription failed", "request_id", middleware.GetReqID(r.Context()), "error", err)
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"transcription": text})
}

// Analyze takes a multipart "file" upload and returns the transcription plus
// the top emotion. A failed classification only drops the emotion fields.
func (h *Handler) Analyze(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxAudioBytes)
	file, _, err := r.FormFile("file")
	if err != nil {
		status := http.StatusBadRequest
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			status = http.StatusRequestEntityTooLarge
		}
		writeError(w, status, "missing audio file: "+err.Error())
		return
	}
	defer file.Close()

	audio, err := io.ReadAll(file)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if len(audio) == 0 {
		writeError(w, http.StatusBadRequest, emptyAudioError)
		return
	}

	reqID := middleware.GetReqID(r.Context())
	text, err := h.recognizer.Transcribe(r.Context(), audio)
	if err != nil {
		h.log.Error("transcription failed", "request_id", reqID, "error", err)
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	resp := hfproxy.Response{Transcription: strings.TrimSpace(text)}
	emotion, err := h.recognizer.ClassifyEmotion(r.Context(), audio)
	if err != nil {
		h.log.Warn("emotion classification failed", "request_id", reqID, "error", err)
	} else {
		score := emotion.Score
		resp.EmotionLabel = emotion.Label
		resp.EmotionScore = &score
	}
	writeJSON(w, http.StatusOK, resp)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}
