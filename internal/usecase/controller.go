package usecase

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"moodcheck/internal/analysis"
	"moodcheck/internal/audio"
	"moodcheck/internal/domain"
	"moodcheck/internal/logger"
	"moodcheck/internal/ports"
	"moodcheck/internal/transcribe"
)

const captionDrainTimeout = 4 * time.Second

// Config controls check-in recording behavior.
type Config struct {
	UserID       string
	Audio        ports.AudioConfig
	Captions     ports.CaptionConfig
	ChunkSize    int
	CaptionGrace time.Duration
}

// CheckInRunner runs the analysis pipeline for a finished capture or a seed.
type CheckInRunner interface {
	Run(ctx context.Context, sub Submission) (domain.CheckInRecord, error)
	Rerun(ctx context.Context, userID string, seed analysis.Seed) (domain.CheckInRecord, error)
}

// SessionController drives one recording at a time and hands every finished
// capture to the pipeline in the background.
type SessionController struct {
	device    ports.CaptureDevice
	captioner ports.Captioner
	runner    CheckInRunner
	events    ports.EventSink
	cfg       Config
	log       *slog.Logger

	mu      sync.Mutex
	current *activeSession
	// lastReleased belongs to the most recently started session. The next
	// session does not touch the device before it is closed.
	lastReleased chan struct{}

	analyses  sync.WaitGroup
	analyzing atomic.Int32
}

// NewSessionController wires the controller. captioner may be nil.
func NewSessionController(
	device ports.CaptureDevice,
	captioner ports.Captioner,
	runner CheckInRunner,
	events ports.EventSink,
	cfg Config,
	log *slog.Logger,
) *SessionController {
	if cfg.ChunkSize < 256 {
		cfg.ChunkSize = 4096
	}
	if cfg.Audio.SampleRate <= 0 {
		cfg.Audio.SampleRate = 16000
	}
	if cfg.Audio.Channels <= 0 {
		cfg.Audio.Channels = 1
	}
	return &SessionController{
		device:    device,
		captioner: captioner,
		runner:    runner,
		events:    events,
		cfg:       cfg,
		log:       logger.OrDefault(log),
	}
}

// Start acquires the microphone and begins recording. Any session already in
// progress is discarded first, and the device is not requested again until
// the previous session has let go of it.
func (c *SessionController) Start(ctx context.Context) error {
	sessionCtx, cancel := context.WithCancel(ctx)
	active := newActiveSession(cancel)

	c.mu.Lock()
	previous := c.current
	prior := c.lastReleased
	c.current = active
	c.lastReleased = active.released
	c.mu.Unlock()

	if previous != nil {
		c.stopSession(previous)
		previous.setState(domain.SessionStateAborted)
		c.log.Info("previous recording discarded")
	}
	c.events.SessionStateChanged(domain.SessionStateRequestingDevice, domain.SessionReasonDeviceRequested)

	if prior != nil {
		select {
		case <-prior:
		case <-sessionCtx.Done():
			active.markReleased()
			if !c.release(active) {
				return domain.ErrCaptureCancelled
			}
			cancel()
			active.setState(domain.SessionStateAborted)
			c.events.SessionStateChanged(domain.SessionStateAborted, domain.SessionReasonRecordingDiscarded)
			return sessionCtx.Err()
		}
	}

	session, err := c.device.Open(sessionCtx, c.cfg.Audio)
	if err != nil {
		active.markReleased()
		if !c.release(active) {
			return domain.ErrCaptureCancelled
		}
		cancel()
		active.setState(domain.SessionStateAborted)
		c.log.Warn("capture device unavailable", "error", err)
		c.events.SessionStateChanged(domain.SessionStateAborted, domain.SessionReasonDeviceUnavailable)
		c.events.SessionError(domain.ErrorCodeDevice, err.Error())
		return &domain.DeviceError{Err: err}
	}

	var stream ports.CaptionStream
	if c.captioner != nil {
		stream, err = c.captioner.OpenCaptions(sessionCtx, c.cfg.Captions)
		if err != nil {
			c.log.Warn("live captions unavailable", "error", err)
			stream = nil
		}
	}

	c.mu.Lock()
	if c.current != active {
		c.mu.Unlock()
		_ = session.Stop()
		_ = session.Close()
		if stream != nil {
			_ = stream.Close()
		}
		active.markReleased()
		return domain.ErrCaptureCancelled
	}
	active.audio = session
	active.captions = newCaptionTee(stream, c.log)
	active.setState(domain.SessionStateRecording)
	c.mu.Unlock()

	go consumeCaptionEvents(stream, active.aggregator, c.events, active.eventsDone)
	go pumpAudioChunks(session, active.buffer, active.captions, c.cfg.ChunkSize, c.log, active.audioDone)

	reason := domain.SessionReasonRecordingStarted
	if previous != nil {
		reason = domain.SessionReasonRecordingRestarted
	}
	c.events.SessionStateChanged(domain.SessionStateRecording, reason)
	return nil
}

// Stop ends the recording, reports the capture synchronously and starts the
// analysis in the background.
func (c *SessionController) Stop(ctx context.Context) (domain.CaptureResult, error) {
	active, err := c.beginStop()
	if err != nil {
		return domain.CaptureResult{}, err
	}
	c.events.SessionStateChanged(domain.SessionStateStopping, domain.SessionReasonFinalizing)

	if err := active.audio.Stop(); err != nil {
		c.log.Warn("audio capture did not stop cleanly", "error", err)
	}

	if active.captions != nil {
		if c.cfg.CaptionGrace > 0 {
			timer := time.NewTimer(c.cfg.CaptionGrace)
			select {
			case <-timer.C:
			case <-ctx.Done():
				timer.Stop()
			}
		}
		_ = active.captions.stream.CloseSend()
		if err := waitForStream(active.captions.stream, captionDrainTimeout); err != nil {
			c.log.Warn("live captions ended with error", "error", err)
		}
	}
	<-active.eventsDone
	<-active.audioDone
	_ = active.audio.Close()
	active.markReleased()

	c.mu.Lock()
	if c.current != active {
		c.mu.Unlock()
		return domain.CaptureResult{}, domain.ErrCaptureCancelled
	}
	c.current = nil
	active.setState(domain.SessionStateHandedOff)
	c.mu.Unlock()
	active.cancel()

	pcm := active.buffer.Bytes()
	clip := audio.Clip(pcm, c.cfg.Audio.SampleRate, c.cfg.Audio.Channels)
	local := active.aggregator.Raw()
	result := domain.CaptureResult{
		Duration:        clip.Duration,
		Bytes:           len(clip.Data),
		LocalTranscript: local,
		HeuristicLabel:  transcribe.EstimateEmotion(local, clip.Duration),
	}
	c.log.Info("capture complete", "duration", clip.Duration, "bytes", len(pcm), "has_captions", local != "")

	c.events.CaptureComplete(result)
	c.events.SessionStateChanged(domain.SessionStateHandedOff, domain.SessionReasonCaptureComplete)

	sub := Submission{
		UserID:          c.cfg.UserID,
		Clip:            clip,
		LocalTranscript: local,
		Heuristic:       result.HeuristicLabel,
	}
	c.dispatch(ctx, func(ctx context.Context) (domain.CheckInRecord, error) {
		return c.runner.Run(ctx, sub)
	})
	return result, nil
}

// Cancel discards the session before it is handed off. Nothing is analyzed
// or stored.
func (c *SessionController) Cancel() error {
	c.mu.Lock()
	active := c.current
	c.current = nil
	c.mu.Unlock()
	if active == nil {
		return domain.ErrNoActiveSession
	}

	c.stopSession(active)
	active.setState(domain.SessionStateAborted)
	c.events.SessionStateChanged(domain.SessionStateAborted, domain.SessionReasonRecordingDiscarded)
	return nil
}

// Rerun analyzes an earlier transcript again and stores it as a new check-in.
func (c *SessionController) Rerun(ctx context.Context, seed analysis.Seed) {
	c.dispatch(ctx, func(ctx context.Context) (domain.CheckInRecord, error) {
		return c.runner.Rerun(ctx, c.cfg.UserID, seed)
	})
}

// Status returns the current backend status.
func (c *SessionController) Status() domain.Status {
	analyzing := int(c.analyzing.Load())

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.current == nil {
		return domain.Status{State: domain.SessionStateIdle, Analyzing: analyzing}
	}
	state := c.current.getState()
	return domain.Status{State: state, Active: !state.Terminal(), Analyzing: analyzing}
}

// Wait blocks until every background analysis has finished or ctx is done.
func (c *SessionController) Wait(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		c.analyses.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (c *SessionController) dispatch(ctx context.Context, run func(context.Context) (domain.CheckInRecord, error)) {
	runCtx := context.WithoutCancel(ctx)
	c.analyses.Add(1)
	c.analyzing.Add(1)
	go func() {
		defer c.analyses.Done()
		defer c.analyzing.Add(-1)

		record, err := run(runCtx)
		if err != nil {
			code := domain.ErrorCodeFor(err)
			c.log.Warn("check-in analysis failed", "code", code, "error", err)
			c.events.AnalysisFailed(code, err.Error())
			return
		}
		c.events.AnalysisComplete(record)
	}()
}

func (c *SessionController) beginStop() (*activeSession, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.current == nil || c.current.getState() != domain.SessionStateRecording {
		return nil, domain.ErrNoActiveSession
	}
	c.current.setState(domain.SessionStateStopping)
	return c.current, nil
}

// release drops active as the current session. It reports false when the
// session was already cancelled or replaced.
func (c *SessionController) release(active *activeSession) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.current != active {
		return false
	}
	c.current = nil
	return true
}

// stopSession tears down an attached session. A session still waiting on
// the device releases itself once the request returns.
func (c *SessionController) stopSession(active *activeSession) {
	active.cancel()

	c.mu.Lock()
	attached := active.attached()
	c.mu.Unlock()
	if !attached {
		return
	}

	_ = active.audio.Stop()
	if active.captions != nil {
		_ = active.captions.stream.Close()
	}
	<-active.eventsDone
	<-active.audioDone
	_ = active.audio.Close()
	active.markReleased()
}
