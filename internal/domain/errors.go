package domain

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrRelationMissing marks a write against a table that does not exist.
	ErrRelationMissing = errors.New("relation does not exist")
	// ErrNoActiveSession is returned when stop or cancel finds nothing to act on.
	ErrNoActiveSession = errors.New("no active recording session")
	// ErrCaptureCancelled is returned by Start when the session was cancelled during device acquisition.
	ErrCaptureCancelled = errors.New("capture cancelled")
)

// DeviceError reports an unavailable or denied capture device.
type DeviceError struct {
	Err error
}

func (e *DeviceError) Error() string {
	return fmt.Sprintf("capture device unavailable: %v", e.Err)
}

func (e *DeviceError) Unwrap() error { return e.Err }

// NoTranscriptError reports that every transcript source came back empty.
type NoTranscriptError struct {
	Attempted []ProviderTag
}

func (e *NoTranscriptError) Error() string {
	if len(e.Attempted) == 0 {
		return "no transcript available"
	}
	names := make([]string, len(e.Attempted))
	for i, tag := range e.Attempted {
		names[i] = string(tag)
	}
	return "no transcript available after " + strings.Join(names, ", ")
}

// Provider error kinds.
const (
	ProviderErrStatus    = "status"
	ProviderErrTransport = "transport"
	ProviderErrParse     = "parse"
	ProviderErrEmpty     = "empty"
)

// ProviderError reports a remote call that failed after its retries.
type ProviderError struct {
	Provider string
	Kind     string
	Status   int
	Body     string
	Err      error
}

func (e *ProviderError) Error() string {
	var b strings.Builder
	b.WriteString(e.Provider)
	b.WriteString(": ")
	b.WriteString(e.Kind)
	if e.Status != 0 {
		fmt.Fprintf(&b, " (status %d)", e.Status)
	}
	if body := strings.TrimSpace(e.Body); body != "" {
		if len(body) > 200 {
			body = body[:200]
		}
		b.WriteString(": ")
		b.WriteString(body)
	}
	if e.Err != nil {
		b.WriteString(": ")
		b.WriteString(e.Err.Error())
	}
	return b.String()
}

func (e *ProviderError) Unwrap() error { return e.Err }

// PersistError reports a failed store write.
type PersistError struct {
	Op  string
	Err error
}

func (e *PersistError) Error() string {
	return fmt.Sprintf("persist %s: %v", e.Op, e.Err)
}

func (e *PersistError) Unwrap() error { return e.Err }

// ConfigError reports invalid configuration detected at startup.
type ConfigError struct {
	Field  string
	Reason string
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("config %s: %s", e.Field, e.Reason)
}

// ErrorCodeFor maps a pipeline error onto the code reported to the caller.
func ErrorCodeFor(err error) ErrorCode {
	var (
		deviceErr  *DeviceError
		noText     *NoTranscriptError
		persistErr *PersistError
	)
	switch {
	case errors.As(err, &deviceErr):
		return ErrorCodeDevice
	case errors.As(err, &noText):
		return ErrorCodeNoTranscript
	case errors.As(err, &persistErr):
		return ErrorCodePersist
	default:
		return ErrorCodeAnalysis
	}
}
