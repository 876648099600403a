package domain

import "time"

// SessionState models the check-in recording lifecycle.
type SessionState string

const (
	SessionStateIdle             SessionState = "idle"
	SessionStateRequestingDevice SessionState = "requesting_device"
	SessionStateRecording        SessionState = "recording"
	SessionStateStopping         SessionState = "stopping"
	SessionStateHandedOff        SessionState = "handed_off"
	SessionStateAborted          SessionState = "aborted"
)

// Terminal reports whether no further transitions follow the state.
func (s SessionState) Terminal() bool {
	return s == SessionStateHandedOff || s == SessionStateAborted
}

// SessionStateReason provides a structured reason for state transitions.
type SessionStateReason string

const (
	SessionReasonDeviceRequested    SessionStateReason = "device_requested"
	SessionReasonRecordingStarted   SessionStateReason = "recording_started"
	SessionReasonRecordingRestarted SessionStateReason = "recording_restarted"
	SessionReasonFinalizing         SessionStateReason = "finalizing"
	SessionReasonCaptureComplete    SessionStateReason = "capture_complete"
	SessionReasonRecordingDiscarded SessionStateReason = "recording_discarded"
	SessionReasonDeviceUnavailable  SessionStateReason = "device_unavailable"
)

// ErrorCode identifies failures reported to the caller.
type ErrorCode string

const (
	ErrorCodeStartup      ErrorCode = "startup"
	ErrorCodeDevice       ErrorCode = "device_unavailable"
	ErrorCodeNoTranscript ErrorCode = "no_transcript"
	ErrorCodeAnalysis     ErrorCode = "analysis"
	ErrorCodePersist      ErrorCode = "persist"
)

// TranscriptKind identifies whether a caption event is partial or final text.
type TranscriptKind string

const (
	TranscriptKindPartial TranscriptKind = "partial"
	TranscriptKindFinal   TranscriptKind = "final"
)

// CaptionEvent is incremental text from the live caption side channel.
type CaptionEvent struct {
	Kind          TranscriptKind `json:"kind"`
	Text          string         `json:"text"`
	IsSpeechFinal bool           `json:"isSpeechFinal"`
}

// AudioClip is the finalized audio of one recording.
type AudioClip struct {
	Data     []byte
	MIMEType string
	Duration time.Duration
}

// Extension returns the file extension matching the clip's MIME type.
func (c AudioClip) Extension() string {
	switch c.MIMEType {
	case "audio/wav", "audio/x-wav", "audio/wave":
		return "wav"
	case "audio/ogg":
		return "ogg"
	case "audio/mpeg":
		return "mp3"
	case "audio/mp4":
		return "m4a"
	default:
		return "webm"
	}
}

// ProviderTag names the source that produced a transcript.
type ProviderTag string

const (
	ProviderGemini        ProviderTag = "gemini"
	ProviderHFProxy       ProviderTag = "hf-proxy"
	ProviderLocalCaptions ProviderTag = "local-captions"
)

// TranscriptionResult is the best-effort output of the fallback chain.
type TranscriptionResult struct {
	Transcript   string      `json:"transcript"`
	EmotionLabel string      `json:"emotionLabel,omitempty"`
	EmotionScore *float64    `json:"emotionScore,omitempty"`
	Source       ProviderTag `json:"source"`
}

// CaptureResult is handed to the caller as soon as recording stops.
type CaptureResult struct {
	Duration        time.Duration `json:"duration"`
	Bytes           int           `json:"bytes"`
	LocalTranscript string        `json:"localTranscript,omitempty"`
	HeuristicLabel  string        `json:"heuristicLabel,omitempty"`
}

// CheckInStatus is the lifecycle flag stored with a check-in.
type CheckInStatus string

const (
	CheckInCompleted  CheckInStatus = "Completed"
	CheckInInProgress CheckInStatus = "InProgress"
)

// CheckInRecord is one persisted check-in. It is never updated after insert.
type CheckInRecord struct {
	ID               string        `json:"id"`
	UserID           string        `json:"userId"`
	MoodSummary      string        `json:"moodSummary"`
	MoodTitle        *string       `json:"moodTitle,omitempty"`
	Status           CheckInStatus `json:"status"`
	EnergyLevel      *int          `json:"energyLevel,omitempty"`
	Transcript       string        `json:"transcript"`
	EmotionLabel     string        `json:"emotionLabel,omitempty"`
	Workout          []string      `json:"workout,omitempty"`
	HabitTitle       *string       `json:"habitTitle,omitempty"`
	HabitDescription *string       `json:"habitDescription,omitempty"`
	Insight          *string       `json:"insight,omitempty"`
	Prediction       *string       `json:"prediction,omitempty"`
	PlanHelp         *string       `json:"planHelp,omitempty"`
	CreatedAt        time.Time     `json:"createdAt"`
}

// RecordingRecord is the metadata row for a stored audio artifact.
type RecordingRecord struct {
	ID           string
	UserID       string
	StoragePath  string
	DurationMS   int64
	Transcript   string
	EmotionLabel string
	EmotionScore *float64
	CreatedAt    time.Time
}

// Status summarizes the current runtime status.
type Status struct {
	State     SessionState `json:"state"`
	Active    bool         `json:"active"`
	Analyzing int          `json:"analyzing"`
	Message   string       `json:"message,omitempty"`
}
