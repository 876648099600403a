package usecase

import (
	"errors"
	"io"
	"log/slog"
	"sync"
	"time"

	"moodcheck/internal/ports"
)

// captionTee forwards audio to the live caption stream until the first
// failure, after which captions stay off for the rest of the session.
type captionTee struct {
	stream ports.CaptionStream
	log    *slog.Logger

	mu       sync.Mutex
	disabled bool
}

func newCaptionTee(stream ports.CaptionStream, log *slog.Logger) *captionTee {
	if stream == nil {
		return nil
	}
	return &captionTee{stream: stream, log: log}
}

func (t *captionTee) send(chunk []byte) {
	if t == nil {
		return
	}
	t.mu.Lock()
	if t.disabled {
		t.mu.Unlock()
		return
	}
	t.mu.Unlock()

	if err := t.stream.SendAudio(chunk); err != nil {
		t.disable(err)
	}
}

func (t *captionTee) disable(err error) {
	t.mu.Lock()
	if t.disabled {
		t.mu.Unlock()
		return
	}
	t.disabled = true
	t.mu.Unlock()

	t.log.Warn("live captions disabled", "error", err)
	_ = t.stream.Close()
}

func pumpAudioChunks(
	audio ports.CaptureSession,
	buffer *captureBuffer,
	captions *captionTee,
	chunkSize int,
	log *slog.Logger,
	done chan struct{},
) {
	defer close(done)

	if chunkSize < 256 {
		chunkSize = 4096
	}

	buf := make([]byte, chunkSize)
	for {
		n, err := audio.Read(buf)
		if n > 0 {
			buffer.Write(buf[:n])
			captions.send(buf[:n])
		}
		if err != nil {
			if !errors.Is(err, io.EOF) && !errors.Is(err, io.ErrClosedPipe) {
				log.Warn("audio capture ended with error", "error", err)
			}
			return
		}
	}
}

func waitForStream(stream ports.CaptionStream, timeout time.Duration) error {
	done := make(chan error, 1)
	go func() {
		done <- stream.Wait()
	}()

	select {
	case err := <-done:
		return err
	case <-time.After(timeout):
		_ = stream.Close()
		return <-done
	}
}
