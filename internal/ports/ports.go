package ports

import (
	"context"
	"io"

	"moodcheck/internal/domain"
)

// AudioConfig describes how the microphone should be captured.
type AudioConfig struct {
	SampleRate  int
	Channels    int
	InputFormat string
	InputDevice string
}

// CaptureSession is a live microphone session producing raw PCM.
type CaptureSession interface {
	io.ReadCloser
	Stop() error
}

// CaptureDevice acquires the microphone.
type CaptureDevice interface {
	Open(ctx context.Context, cfg AudioConfig) (CaptureSession, error)
}

// CaptionConfig describes live caption stream settings.
type CaptionConfig struct {
	SampleRate     int
	Channels       int
	Encoding       string
	InterimResults bool
}

// CaptionStream is an open live caption connection.
type CaptionStream interface {
	SendAudio(chunk []byte) error
	CloseSend() error
	Events() <-chan domain.CaptionEvent
	Wait() error
	Close() error
}

// Captioner opens live caption streams. It is optional.
type Captioner interface {
	OpenCaptions(ctx context.Context, cfg CaptionConfig) (CaptionStream, error)
}

// Transcriber turns a clip into a transcript and, when it can, an emotion.
type Transcriber interface {
	Name() domain.ProviderTag
	Transcribe(ctx context.Context, clip domain.AudioClip) (domain.TranscriptionResult, error)
}

// Prompt is one generative request.
type Prompt struct {
	Task string
	Text string
}

// Generator produces free text for a prompt.
type Generator interface {
	Generate(ctx context.Context, prompt Prompt) (string, error)
}

// TranscriptRules normalizes transcripts before analysis.
type TranscriptRules interface {
	Apply(text string) (string, error)
}

// CheckInStore is the append-only persistence contract.
type CheckInStore interface {
	InsertCheckIn(ctx context.Context, record domain.CheckInRecord) error
	InsertRecording(ctx context.Context, record domain.RecordingRecord) error
}

// HistoryReader reads back a user's recent check-ins.
type HistoryReader interface {
	ListCheckIns(ctx context.Context, userID string, limit int) ([]domain.CheckInRecord, error)
}

// ArtifactStore keeps the raw audio of a check-in.
type ArtifactStore interface {
	SaveAudio(ctx context.Context, userID string, clip domain.AudioClip) (string, error)
}

// CheckInListener is notified after a check-in is written.
type CheckInListener interface {
	CheckInSaved(ctx context.Context, record domain.CheckInRecord) error
}

// EventSink emits backend state and results to the UI.
type EventSink interface {
	SessionStateChanged(state domain.SessionState, reason domain.SessionStateReason)
	PartialTranscript(text string)
	CaptureComplete(result domain.CaptureResult)
	AnalysisComplete(record domain.CheckInRecord)
	AnalysisFailed(code domain.ErrorCode, detail string)
	SessionError(code domain.ErrorCode, detail string)
}
