package main

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/wailsapp/wails/v2/pkg/runtime"

	"moodcheck/internal/analysis"
	"moodcheck/internal/bootstrap"
	"moodcheck/internal/domain"
	"moodcheck/internal/ports"
	"moodcheck/internal/usecase"
)

const (
	eventSession        = "moodcheck:session"
	eventPartial        = "moodcheck:partial"
	eventCapture        = "moodcheck:capture"
	eventAnalysis       = "moodcheck:analysis"
	eventAnalysisFailed = "moodcheck:analysis-failed"
	eventHistory        = "moodcheck:history"
	eventError          = "moodcheck:error"
)

// App is the Wails application root.
type App struct {
	ctx context.Context

	services   *bootstrap.Services
	controller *usecase.SessionController
	history    ports.HistoryReader
	bootErr    error
}

func NewApp() *App {
	return &App{}
}

func (a *App) startup(ctx context.Context) {
	a.ctx = ctx

	services, err := bootstrap.Build(ctx, bootstrap.Deps{
		Events:    a,
		Listeners: []ports.CheckInListener{a},
	})
	if err != nil {
		a.bootErr = err
		a.SessionError(domain.ErrorCodeStartup, err.Error())
		return
	}

	a.services = services
	a.controller = services.Controller
	a.history = services.History
	a.SessionStateChanged(domain.SessionStateIdle, "")
}

// shutdown gives in-flight analyses a bounded window to finish writing.
func (a *App) shutdown(ctx context.Context) {
	if a.services == nil {
		return
	}
	waitCtx, cancel := context.WithTimeout(ctx, a.services.Config.Session.ShutdownWindow)
	defer cancel()
	if err := a.controller.Wait(waitCtx); err != nil {
		a.services.Log.Warn("shutdown before analyses finished", "error", err)
	}
	if err := a.services.Close(); err != nil {
		a.services.Log.Warn("closing services", "error", err)
	}
}

// StartCapture asks for the microphone and starts recording a check-in.
func (a *App) StartCapture() (domain.Status, error) {
	if err := a.requireReady(); err != nil {
		return domain.Status{}, err
	}
	if err := a.controller.Start(a.ctx); err != nil {
		return a.controller.Status(), err
	}
	return a.controller.Status(), nil
}

// StopCapture ends recording. Analysis results arrive later as events.
func (a *App) StopCapture() (domain.CaptureResult, error) {
	if err := a.requireReady(); err != nil {
		return domain.CaptureResult{}, err
	}
	return a.controller.Stop(a.ctx)
}

// CancelCapture discards the current recording.
func (a *App) CancelCapture() error {
	if err := a.requireReady(); err != nil {
		return err
	}
	if err := a.controller.Cancel(); err != nil && !errors.Is(err, domain.ErrNoActiveSession) {
		return err
	}
	return nil
}

// RerunAnalysis analyzes a transcript again and stores a new check-in.
func (a *App) RerunAnalysis(transcript, emotionLabel string, emotionScore *float64) error {
	if err := a.requireReady(); err != nil {
		return err
	}
	if strings.TrimSpace(transcript) == "" {
		return errors.New("transcript is required")
	}
	a.controller.Rerun(a.ctx, analysis.Seed{
		Transcript:   transcript,
		EmotionLabel: emotionLabel,
		EmotionScore: emotionScore,
	})
	return nil
}

// GetStatus returns the current session status.
func (a *App) GetStatus() domain.Status {
	if a.controller == nil {
		if a.bootErr != nil {
			return domain.Status{State: domain.SessionStateAborted, Message: a.bootErr.Error()}
		}
		return domain.Status{State: domain.SessionStateIdle}
	}
	return a.controller.Status()
}

// GetHistory returns the user's most recent check-ins, newest first.
func (a *App) GetHistory() ([]domain.CheckInRecord, error) {
	if err := a.requireReady(); err != nil {
		return nil, err
	}
	return a.history.ListCheckIns(a.ctx, a.services.Config.UserID, a.services.Config.Session.HistoryLimit)
}

// GetRuntimeInfo returns non-sensitive config for the UI.
func (a *App) GetRuntimeInfo() map[string]string {
	if a.bootErr != nil {
		return map[string]string{"error": a.bootErr.Error()}
	}
	if a.services == nil {
		return map[string]string{}
	}

	cfg := a.services.Config
	generator := "gemini"
	if cfg.OpenAI.Prefer || cfg.Gemini.APIKey == "" {
		generator = "openai"
	}
	return map[string]string{
		"generator":        generator,
		"captions":         fmt.Sprintf("%t", cfg.Deepgram.APIKey != ""),
		"transcriptProxy":  fmt.Sprintf("%t", cfg.Proxy.URL != ""),
		"rulesFile":        cfg.Rules.Path,
		"artifactDir":      cfg.Artifacts.Dir,
		"audioInput":       cfg.Audio.InputDevice,
		"audioInputFormat": cfg.Audio.InputFormat,
	}
}

func (a *App) requireReady() error {
	if a.bootErr != nil {
		return a.bootErr
	}
	if a.controller == nil {
		return fmt.Errorf("application is not initialized")
	}
	return nil
}

// CheckInSaved pushes the refreshed history to the frontend.
func (a *App) CheckInSaved(ctx context.Context, _ domain.CheckInRecord) error {
	if a.ctx == nil || a.history == nil || a.services == nil {
		return nil
	}
	entries, err := a.history.ListCheckIns(ctx, a.services.Config.UserID, a.services.Config.Session.HistoryLimit)
	if err != nil {
		return fmt.Errorf("refresh history: %w", err)
	}
	runtime.EventsEmit(a.ctx, eventHistory, entries)
	return nil
}

// SessionStateChanged emits session lifecycle updates to the frontend.
func (a *App) SessionStateChanged(state domain.SessionState, reason domain.SessionStateReason) {
	if a.ctx == nil {
		return
	}
	runtime.EventsEmit(a.ctx, eventSession, map[string]string{
		"state":   string(state),
		"reason":  string(reason),
		"message": sessionReasonMessage(reason),
	})
}

// PartialTranscript emits live caption text.
func (a *App) PartialTranscript(text string) {
	if a.ctx == nil {
		return
	}
	runtime.EventsEmit(a.ctx, eventPartial, map[string]string{"text": text})
}

func (a *App) CaptureComplete(result domain.CaptureResult) {
	if a.ctx == nil {
		return
	}
	runtime.EventsEmit(a.ctx, eventCapture, result)
}

func (a *App) AnalysisComplete(record domain.CheckInRecord) {
	if a.ctx == nil {
		return
	}
	runtime.EventsEmit(a.ctx, eventAnalysis, record)
}

func (a *App) AnalysisFailed(code domain.ErrorCode, detail string) {
	if a.ctx == nil {
		return
	}
	runtime.EventsEmit(a.ctx, eventAnalysisFailed, map[string]string{
		"code":    string(code),
		"message": errorMessage(code, detail),
		"detail":  detail,
	})
}

// SessionError emits backend errors to the UI.
func (a *App) SessionError(code domain.ErrorCode, detail string) {
	if a.ctx == nil {
		return
	}
	runtime.EventsEmit(a.ctx, eventError, map[string]string{
		"code":    string(code),
		"message": errorMessage(code, detail),
		"detail":  detail,
	})
}

func sessionReasonMessage(reason domain.SessionStateReason) string {
	switch reason {
	case domain.SessionReasonDeviceRequested:
		return "Waiting for microphone"
	case domain.SessionReasonRecordingStarted:
		return "Recording started"
	case domain.SessionReasonRecordingRestarted:
		return "Recording restarted; previous capture discarded"
	case domain.SessionReasonFinalizing:
		return "Recording stopped. Finishing up..."
	case domain.SessionReasonCaptureComplete:
		return "Recording saved. Analyzing your check-in..."
	case domain.SessionReasonRecordingDiscarded:
		return "Recording discarded"
	case domain.SessionReasonDeviceUnavailable:
		return "Microphone unavailable"
	default:
		return ""
	}
}

func errorMessage(code domain.ErrorCode, detail string) string {
	switch code {
	case domain.ErrorCodeStartup:
		return "Startup failed"
	case domain.ErrorCodeDevice:
		return "Microphone unavailable"
	case domain.ErrorCodeNoTranscript:
		return "We couldn't hear anything in that recording"
	case domain.ErrorCodeAnalysis:
		return "Analysis failed"
	case domain.ErrorCodePersist:
		return "Check-in could not be saved"
	default:
		if detail == "" {
			return "Unknown error"
		}
		return detail
	}
}
