package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"moodcheck/internal/config"
	"moodcheck/internal/logger"
	"moodcheck/internal/providers/huggingface"
	"moodcheck/internal/relay"
	"moodcheck/internal/remote"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, "checkin-relay:", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	if err := cfg.ValidateRelay(); err != nil {
		return err
	}

	log := logger.New(logger.Config{
		Level:      logger.ParseLevel(cfg.Log.Level),
		Output:     os.Stderr,
		JSONFormat: cfg.Log.JSON,
	})

	rc := remote.NewClient(remote.ClientOptions{
		RetryDelay:    cfg.Remote.RetryDelay,
		ColdStartWait: cfg.Remote.ColdStartWait,
		Logger:        log,
	})
	hf := huggingface.New(rc, huggingface.Config{
		Token:           cfg.HuggingFace.Token,
		BaseURL:         cfg.HuggingFace.BaseURL,
		TranscribeModel: cfg.HuggingFace.TranscribeModel,
		EmotionModel:    cfg.HuggingFace.EmotionModel,
		Timeout:         cfg.Remote.Timeout,
		MaxRetries:      cfg.Relay.MaxRetries,
	}, log)

	server := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Relay.Port),
		Handler:           relay.NewRouter(relay.NewHandler(hf, log), cfg.Relay.AllowedOrigins),
		ReadHeaderTimeout: 10 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		log.Info("relay listening", "port", cfg.Relay.Port)
		errCh <- server.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	case <-ctx.Done():
	}

	log.Info("relay shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	return server.Shutdown(shutdownCtx)
}
