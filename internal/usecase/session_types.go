package usecase

import (
	"sync"

	"moodcheck/internal/domain"
	"moodcheck/internal/ports"
)

type activeSession struct {
	cancel   func()
	audio    ports.CaptureSession
	captions *captionTee

	stateMu sync.Mutex
	state   domain.SessionState

	buffer     *captureBuffer
	aggregator *transcriptAggregator
	eventsDone chan struct{}
	audioDone  chan struct{}

	// released closes once the device request has returned and whatever it
	// acquired has been stopped again.
	released    chan struct{}
	releaseOnce sync.Once
}

func newActiveSession(cancel func()) *activeSession {
	return &activeSession{
		cancel:     cancel,
		state:      domain.SessionStateRequestingDevice,
		buffer:     &captureBuffer{},
		aggregator: newTranscriptAggregator(),
		eventsDone: make(chan struct{}),
		audioDone:  make(chan struct{}),
		released:   make(chan struct{}),
	}
}

func (s *activeSession) markReleased() {
	s.releaseOnce.Do(func() { close(s.released) })
}

func (s *activeSession) setState(state domain.SessionState) {
	s.stateMu.Lock()
	defer s.stateMu.Unlock()
	s.state = state
}

func (s *activeSession) getState() domain.SessionState {
	s.stateMu.Lock()
	defer s.stateMu.Unlock()
	return s.state
}

// attached reports whether the device has been handed to the session and
// its goroutines are running.
func (s *activeSession) attached() bool {
	return s.audio != nil
}

// captureBuffer holds every PCM chunk of the recording.
type captureBuffer struct {
	mu  sync.Mutex
	pcm []byte
}

func (b *captureBuffer) Write(chunk []byte) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.pcm = append(b.pcm, chunk...)
}

func (b *captureBuffer) Bytes() []byte {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]byte(nil), b.pcm...)
}
