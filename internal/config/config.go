package config

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/ilyakaznacheev/cleanenv"
	"github.com/joho/godotenv"

	"moodcheck/internal/domain"
)

// Config stores runtime configuration for the desktop recorder and the relay.
type Config struct {
	UserID      string `env:"MOODCHECK_USER_ID"`
	Log         LogConfig
	Gemini      GeminiConfig
	OpenAI      OpenAIConfig
	Proxy       ProxyConfig
	HuggingFace HuggingFaceConfig
	Deepgram    DeepgramConfig
	Audio       AudioConfig
	Rules       RulesConfig
	Session     SessionConfig
	Remote      RemoteConfig
	Database    DatabaseConfig
	Artifacts   ArtifactsConfig
	MQTT        MQTTConfig
	ClickHouse  ClickHouseConfig
	Relay       RelayConfig
}

type LogConfig struct {
	Level string `env:"MOODCHECK_LOG_LEVEL" env-default:"info"`
	JSON  bool   `env:"MOODCHECK_LOG_JSON" env-default:"false"`
}

type GeminiConfig struct {
	APIKey  string `env:"GEMINI_API_KEY"`
	BaseURL string `env:"GEMINI_API_BASE" env-default:"https://generativelanguage.googleapis.com/v1beta"`
	Model   string `env:"GEMINI_MODEL" env-default:"gemini-flash-latest"`
}

type OpenAIConfig struct {
	APIKey  string `env:"OPENAI_API_KEY"`
	BaseURL string `env:"OPENAI_BASE_URL" env-default:"https://api.openai.com/v1"`
	Model   string `env:"OPENAI_MODEL" env-default:"gpt-4o-mini"`
	// Prefer routes generation through OpenAI even when Gemini is configured.
	Prefer bool `env:"MOODCHECK_PREFER_OPENAI" env-default:"false"`
}

type ProxyConfig struct {
	URL string `env:"HF_PROXY_URL"`
}

type HuggingFaceConfig struct {
	Token           string `env:"HF_TOKEN"`
	BaseURL         string `env:"HF_API_BASE" env-default:"https://router.huggingface.co"`
	TranscribeModel string `env:"HF_TRANSCRIBE_MODEL" env-default:"openai/whisper-tiny"`
	EmotionModel    string `env:"HF_EMOTION_MODEL" env-default:"superb/hubert-large-superb-er"`
}

type DeepgramConfig struct {
	APIKey      string `env:"DEEPGRAM_API_KEY"`
	APIBaseURL  string `env:"DEEPGRAM_API_BASE" env-default:"https://api.deepgram.com/v1"`
	Model       string `env:"DEEPGRAM_MODEL" env-default:"nova-2"`
	Language    string `env:"DEEPGRAM_LANGUAGE"`
	SmartFormat bool   `env:"DEEPGRAM_SMART_FORMAT" env-default:"true"`
}

type AudioConfig struct {
	RecorderCommand string `env:"MOODCHECK_FFMPEG_COMMAND" env-default:"ffmpeg"`
	InputFormat     string `env:"MOODCHECK_AUDIO_INPUT_FORMAT" env-default:"pulse"`
	InputDevice     string `env:"MOODCHECK_AUDIO_INPUT_DEVICE" env-default:"default"`
	SampleRate      int    `env:"MOODCHECK_SAMPLE_RATE" env-default:"16000"`
	Channels        int    `env:"MOODCHECK_CHANNELS" env-default:"1"`
}

type RulesConfig struct {
	Path           string `env:"MOODCHECK_RULES_FILE"`
	IterationLimit int    `env:"MOODCHECK_RULE_ITERATION_LIMIT" env-default:"30"`
}

type SessionConfig struct {
	ChunkSize      int           `env:"MOODCHECK_AUDIO_CHUNK_SIZE" env-default:"4096"`
	CaptionGrace   time.Duration `env:"MOODCHECK_CAPTION_GRACE" env-default:"1s"`
	HistoryLimit   int           `env:"MOODCHECK_HISTORY_LIMIT" env-default:"50"`
	ShutdownWindow time.Duration `env:"MOODCHECK_SHUTDOWN_WINDOW" env-default:"30s"`
}

type RemoteConfig struct {
	Timeout       time.Duration `env:"MOODCHECK_REMOTE_TIMEOUT" env-default:"60s"`
	MaxRetries    int           `env:"MOODCHECK_REMOTE_MAX_RETRIES" env-default:"3"`
	RetryDelay    time.Duration `env:"MOODCHECK_REMOTE_RETRY_DELAY" env-default:"2s"`
	ColdStartWait time.Duration `env:"MOODCHECK_REMOTE_COLD_START_WAIT" env-default:"15s"`
}

type DatabaseConfig struct {
	URL         string `env:"DATABASE_URL"`
	AutoMigrate bool   `env:"DATABASE_AUTO_MIGRATE" env-default:"false"`
}

type ArtifactsConfig struct {
	Dir string `env:"MOODCHECK_ARTIFACT_DIR"`
}

type MQTTConfig struct {
	Broker      string `env:"MQTT_BROKER"`
	ClientID    string `env:"MQTT_CLIENT_ID" env-default:"moodcheck"`
	Username    string `env:"MQTT_USERNAME"`
	Password    string `env:"MQTT_PASSWORD"`
	TopicPrefix string `env:"MQTT_TOPIC_PREFIX" env-default:"moodcheck"`
}

type ClickHouseConfig struct {
	Addr     string `env:"CLICKHOUSE_ADDR"`
	Database string `env:"CLICKHOUSE_DB" env-default:"default"`
	Username string `env:"CLICKHOUSE_USER" env-default:"default"`
	Password string `env:"CLICKHOUSE_PASSWORD"`
}

type RelayConfig struct {
	Port           int      `env:"RELAY_PORT" env-default:"8787"`
	AllowedOrigins []string `env:"RELAY_ALLOWED_ORIGINS" env-separator:"," env-default:"*"`
	MaxRetries     int      `env:"RELAY_MAX_RETRIES" env-default:"3"`
}

// Load reads an optional .env file, then resolves configuration from the environment.
func Load() (Config, error) {
	_ = godotenv.Load()

	var cfg Config
	if err := cleanenv.ReadEnv(&cfg); err != nil {
		return Config{}, &domain.ConfigError{Field: "env", Reason: err.Error()}
	}

	home, err := os.UserHomeDir()
	if err != nil {
		return Config{}, errors.New("could not determine home directory")
	}
	if strings.TrimSpace(cfg.Rules.Path) == "" {
		cfg.Rules.Path = filepath.Join(home, ".config", "moodcheck", "transcript.rules")
	}
	if strings.TrimSpace(cfg.Artifacts.Dir) == "" {
		cfg.Artifacts.Dir = filepath.Join(home, ".local", "share", "moodcheck", "recordings")
	}

	if cfg.Audio.SampleRate <= 0 {
		cfg.Audio.SampleRate = 16000
	}
	if cfg.Audio.Channels <= 0 {
		cfg.Audio.Channels = 1
	}
	if cfg.Rules.IterationLimit <= 0 {
		cfg.Rules.IterationLimit = 30
	}
	if cfg.Session.ChunkSize < 256 {
		cfg.Session.ChunkSize = 4096
	}
	if cfg.Session.HistoryLimit <= 0 {
		cfg.Session.HistoryLimit = 50
	}
	if cfg.Remote.MaxRetries <= 0 {
		cfg.Remote.MaxRetries = 3
	}
	if cfg.Relay.MaxRetries <= 0 {
		cfg.Relay.MaxRetries = 3
	}

	return cfg, nil
}

// ValidateApp checks what the desktop recorder cannot start without.
func (c Config) ValidateApp() error {
	if strings.TrimSpace(c.UserID) == "" {
		return &domain.ConfigError{Field: "MOODCHECK_USER_ID", Reason: "is required"}
	}
	if strings.TrimSpace(c.Database.URL) == "" {
		return &domain.ConfigError{Field: "DATABASE_URL", Reason: "is required"}
	}
	if strings.TrimSpace(c.Gemini.APIKey) == "" && strings.TrimSpace(c.OpenAI.APIKey) == "" {
		return &domain.ConfigError{Field: "GEMINI_API_KEY", Reason: "a generator key (GEMINI_API_KEY or OPENAI_API_KEY) is required"}
	}
	if c.OpenAI.Prefer && strings.TrimSpace(c.OpenAI.APIKey) == "" {
		return &domain.ConfigError{Field: "OPENAI_API_KEY", Reason: "is required when MOODCHECK_PREFER_OPENAI is set"}
	}
	return nil
}

// ValidateRelay checks what the transcription relay cannot start without.
func (c Config) ValidateRelay() error {
	if strings.TrimSpace(c.HuggingFace.Token) == "" {
		return &domain.ConfigError{Field: "HF_TOKEN", Reason: "is required"}
	}
	if c.Relay.Port <= 0 || c.Relay.Port > 65535 {
		return &domain.ConfigError{Field: "RELAY_PORT", Reason: "must be a valid TCP port"}
	}
	return nil
}
