package main

import (
	"context"
	"errors"
	"testing"

	"moodcheck/internal/domain"
)

func TestSessionReasonMessage(t *testing.T) {
	t.Parallel()

	cases := map[domain.SessionStateReason]string{
		domain.SessionReasonDeviceRequested:    "Waiting for microphone",
		domain.SessionReasonRecordingStarted:   "Recording started",
		domain.SessionReasonRecordingRestarted: "Recording restarted; previous capture discarded",
		domain.SessionReasonFinalizing:         "Recording stopped. Finishing up...",
		domain.SessionReasonCaptureComplete:    "Recording saved. Analyzing your check-in...",
		domain.SessionReasonRecordingDiscarded: "Recording discarded",
		domain.SessionReasonDeviceUnavailable:  "Microphone unavailable",
	}

	for reason, want := range cases {
		t.Run(string(reason), func(t *testing.T) {
			t.Parallel()
			if got := sessionReasonMessage(reason); got != want {
				t.Fatalf("unexpected message: %q", got)
			}
		})
	}

	if got := sessionReasonMessage("unknown"); got != "" {
		t.Fatalf("expected empty unknown reason message, got %q", got)
	}
}

func TestErrorMessage(t *testing.T) {
	t.Parallel()

	cases := map[domain.ErrorCode]string{
		domain.ErrorCodeStartup:      "Startup failed",
		domain.ErrorCodeDevice:       "Microphone unavailable",
		domain.ErrorCodeNoTranscript: "We couldn't hear anything in that recording",
		domain.ErrorCodeAnalysis:     "Analysis failed",
		domain.ErrorCodePersist:      "Check-in could not be saved",
	}
	for code, want := range cases {
		t.Run(string(code), func(t *testing.T) {
			t.Parallel()
			if got := errorMessage(code, "ignored"); got != want {
				t.Fatalf("unexpected message: %q", got)
			}
		})
	}

	if got := errorMessage("unknown", "detail"); got != "detail" {
		t.Fatalf("expected detail fallback, got %q", got)
	}
	if got := errorMessage("unknown", ""); got != "Unknown error" {
		t.Fatalf("expected unknown fallback, got %q", got)
	}
}

func TestRequireReady(t *testing.T) {
	t.Parallel()

	app := &App{}
	if err := app.requireReady(); err == nil {
		t.Fatalf("expected uninitialized error")
	}

	bootErr := errors.New("boot")
	app.bootErr = bootErr
	if err := app.requireReady(); !errors.Is(err, bootErr) {
		t.Fatalf("expected boot error, got %v", err)
	}
	if _, err := app.GetHistory(); !errors.Is(err, bootErr) {
		t.Fatalf("expected boot error from history, got %v", err)
	}
	if err := app.RerunAnalysis("text", "", nil); !errors.Is(err, bootErr) {
		t.Fatalf("expected boot error from rerun, got %v", err)
	}
}

func TestGetStatusWhenNotInitialized(t *testing.T) {
	t.Parallel()

	app := &App{}
	status := app.GetStatus()
	if status.State != domain.SessionStateIdle || status.Active {
		t.Fatalf("unexpected status: %+v", status)
	}

	app.bootErr = errors.New("boot")
	status = app.GetStatus()
	if status.State != domain.SessionStateAborted || status.Active || status.Message != "boot" {
		t.Fatalf("unexpected boot status: %+v", status)
	}
}

func TestEventsWithoutRuntimeAreIgnored(t *testing.T) {
	t.Parallel()

	app := &App{}
	app.SessionStateChanged(domain.SessionStateRecording, domain.SessionReasonRecordingStarted)
	app.AnalysisFailed(domain.ErrorCodeAnalysis, "x")
	if err := app.CheckInSaved(context.Background(), domain.CheckInRecord{}); err != nil {
		t.Fatalf("expected no-op history refresh, got %v", err)
	}
}
