package bootstrap

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"strings"

	"moodcheck/internal/analysis"
	"moodcheck/internal/audio"
	"moodcheck/internal/config"
	"moodcheck/internal/logger"
	"moodcheck/internal/notify/mqtt"
	"moodcheck/internal/ports"
	"moodcheck/internal/providers/deepgram"
	"moodcheck/internal/providers/gemini"
	"moodcheck/internal/providers/hfproxy"
	"moodcheck/internal/providers/openai"
	"moodcheck/internal/remote"
	"moodcheck/internal/rules"
	"moodcheck/internal/storage/artifacts"
	"moodcheck/internal/storage/clickhouse"
	"moodcheck/internal/storage/postgres"
	"moodcheck/internal/transcribe"
	"moodcheck/internal/usecase"
)

// Store is the check-in database as the desktop runtime needs it.
type Store interface {
	ports.CheckInStore
	ports.HistoryReader
	Migrate(ctx context.Context) error
	Close() error
}

// Deps are supplied by the shell that hosts the runtime.
type Deps struct {
	Events    ports.EventSink
	Listeners []ports.CheckInListener
	// OpenStore replaces the PostgreSQL connection when set.
	OpenStore func(ctx context.Context, url string, log *slog.Logger) (Store, error)
}

// Services is the assembled runtime graph.
type Services struct {
	Controller *usecase.SessionController
	History    ports.HistoryReader
	Config     config.Config
	Log        *slog.Logger

	closers []func() error
}

// Close releases connections in reverse order of acquisition.
func (s *Services) Close() error {
	var errs []error
	for i := len(s.closers) - 1; i >= 0; i-- {
		errs = append(errs, s.closers[i]())
	}
	return errors.Join(errs...)
}

// Build loads configuration and wires all backend dependencies.
func Build(ctx context.Context, deps Deps) (*Services, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	if err := cfg.ValidateApp(); err != nil {
		return nil, err
	}

	log := logger.New(logger.Config{
		Level:      logger.ParseLevel(cfg.Log.Level),
		Output:     os.Stderr,
		JSONFormat: cfg.Log.JSON,
	})

	normalizer, err := rules.Load(cfg.Rules.Path, cfg.Rules.IterationLimit)
	if err != nil {
		return nil, err
	}

	rc := remote.NewClient(remote.ClientOptions{
		RetryDelay:    cfg.Remote.RetryDelay,
		ColdStartWait: cfg.Remote.ColdStartWait,
		Logger:        log,
	})

	var geminiClient *gemini.Client
	if strings.TrimSpace(cfg.Gemini.APIKey) != "" {
		geminiClient = gemini.New(rc, gemini.Config{
			APIKey:     cfg.Gemini.APIKey,
			BaseURL:    cfg.Gemini.BaseURL,
			Model:      cfg.Gemini.Model,
			Timeout:    cfg.Remote.Timeout,
			MaxRetries: cfg.Remote.MaxRetries,
		}, log)
	}

	generator, err := buildGenerator(cfg, geminiClient, log)
	if err != nil {
		return nil, err
	}

	var transcribers []ports.Transcriber
	if geminiClient != nil {
		transcribers = append(transcribers, geminiClient)
	}
	if strings.TrimSpace(cfg.Proxy.URL) != "" {
		transcribers = append(transcribers, hfproxy.New(rc, hfproxy.Config{
			URL:        cfg.Proxy.URL,
			Timeout:    cfg.Remote.Timeout,
			MaxRetries: 1,
		}, log))
	}

	services := &Services{Config: cfg, Log: log}

	openStore := deps.OpenStore
	if openStore == nil {
		openStore = func(ctx context.Context, url string, log *slog.Logger) (Store, error) {
			return postgres.Open(ctx, url, log)
		}
	}
	store, err := openStore(ctx, cfg.Database.URL, log)
	if err != nil {
		return nil, err
	}
	services.closers = append(services.closers, store.Close)
	services.History = store

	if cfg.Database.AutoMigrate {
		if err := store.Migrate(ctx); err != nil {
			_ = services.Close()
			return nil, err
		}
	}

	listeners := append([]ports.CheckInListener(nil), deps.Listeners...)
	listeners = append(listeners, services.optionalListeners(ctx, cfg, log)...)

	writer := usecase.NewWriter(store, log, listeners...)
	pipeline := usecase.NewPipeline(usecase.PipelineDeps{
		Artifacts: artifacts.NewStore(cfg.Artifacts.Dir),
		Resolver:  transcribe.NewChain(log, transcribers...),
		Rules:     normalizer,
		Analyzer:  analysis.NewOrchestrator(generator, log),
		Writer:    writer,
	}, log)

	var captioner ports.Captioner
	if strings.TrimSpace(cfg.Deepgram.APIKey) != "" {
		captioner = deepgram.NewCaptioner(deepgram.Config{
			APIKey:      cfg.Deepgram.APIKey,
			APIBaseURL:  cfg.Deepgram.APIBaseURL,
			Model:       cfg.Deepgram.Model,
			Language:    cfg.Deepgram.Language,
			SmartFormat: cfg.Deepgram.SmartFormat,
		}, log)
	}

	services.Controller = usecase.NewSessionController(
		audio.NewMicrophone(cfg.Audio.RecorderCommand),
		captioner,
		pipeline,
		deps.Events,
		usecase.Config{
			UserID: cfg.UserID,
			Audio: ports.AudioConfig{
				SampleRate:  cfg.Audio.SampleRate,
				Channels:    cfg.Audio.Channels,
				InputFormat: cfg.Audio.InputFormat,
				InputDevice: cfg.Audio.InputDevice,
			},
			Captions: ports.CaptionConfig{
				SampleRate:     cfg.Audio.SampleRate,
				Channels:       cfg.Audio.Channels,
				Encoding:       "linear16",
				InterimResults: true,
			},
			ChunkSize:    cfg.Session.ChunkSize,
			CaptionGrace: cfg.Session.CaptionGrace,
		},
		log,
	)

	log.Info("runtime ready",
		"transcribers", len(transcribers),
		"captions", captioner != nil,
		"listeners", len(listeners),
	)
	return services, nil
}

func buildGenerator(cfg config.Config, geminiClient *gemini.Client, log *slog.Logger) (ports.Generator, error) {
	if geminiClient != nil && !cfg.OpenAI.Prefer {
		return geminiClient, nil
	}
	return openai.New(openai.Config{
		APIKey:     cfg.OpenAI.APIKey,
		BaseURL:    cfg.OpenAI.BaseURL,
		Model:      cfg.OpenAI.Model,
		Timeout:    cfg.Remote.Timeout,
		MaxRetries: cfg.Remote.MaxRetries,
	}, log)
}

// optionalListeners connects the MQTT and ClickHouse sinks when configured.
// Either one being unreachable is logged and skipped.
func (s *Services) optionalListeners(ctx context.Context, cfg config.Config, log *slog.Logger) []ports.CheckInListener {
	var out []ports.CheckInListener

	if strings.TrimSpace(cfg.MQTT.Broker) != "" {
		pub, err := mqtt.Connect(mqtt.Config{
			Broker:      cfg.MQTT.Broker,
			ClientID:    cfg.MQTT.ClientID,
			Username:    cfg.MQTT.Username,
			Password:    cfg.MQTT.Password,
			TopicPrefix: cfg.MQTT.TopicPrefix,
		}, log)
		if err != nil {
			log.Warn("mqtt notifications disabled", "error", err)
		} else {
			out = append(out, pub)
			s.closers = append(s.closers, func() error { pub.Close(); return nil })
		}
	}

	if strings.TrimSpace(cfg.ClickHouse.Addr) != "" {
		timeline, err := clickhouse.Open(ctx, clickhouse.Config{
			Addr:     cfg.ClickHouse.Addr,
			Database: cfg.ClickHouse.Database,
			Username: cfg.ClickHouse.Username,
			Password: cfg.ClickHouse.Password,
		}, log)
		if err != nil {
			log.Warn("mood timeline disabled", "error", err)
		} else {
			out = append(out, timeline)
			s.closers = append(s.closers, timeline.Close)
		}
	}
	return out
}
