package config

import (
	"errors"
	"path/filepath"
	"testing"
	"time"

	"moodcheck/internal/domain"
)

func TestLoadAppliesDefaults(t *testing.T) {
	home := t.TempDir()
	t.Setenv("HOME", home)
	t.Setenv("MOODCHECK_RULES_FILE", "")
	t.Setenv("MOODCHECK_ARTIFACT_DIR", "")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("load failed: %v", err)
	}

	if cfg.Gemini.Model != "gemini-flash-latest" {
		t.Fatalf("unexpected gemini model: %q", cfg.Gemini.Model)
	}
	if cfg.HuggingFace.TranscribeModel != "openai/whisper-tiny" || cfg.HuggingFace.EmotionModel != "superb/hubert-large-superb-er" {
		t.Fatalf("unexpected hugging face defaults: %+v", cfg.HuggingFace)
	}
	if cfg.Remote.MaxRetries != 3 || cfg.Remote.RetryDelay != 2*time.Second || cfg.Remote.ColdStartWait != 15*time.Second {
		t.Fatalf("unexpected remote defaults: %+v", cfg.Remote)
	}
	if cfg.Rules.Path != filepath.Join(home, ".config", "moodcheck", "transcript.rules") {
		t.Fatalf("unexpected rules path: %q", cfg.Rules.Path)
	}
	if cfg.Artifacts.Dir != filepath.Join(home, ".local", "share", "moodcheck", "recordings") {
		t.Fatalf("unexpected artifact dir: %q", cfg.Artifacts.Dir)
	}
	if cfg.Session.HistoryLimit != 50 || cfg.Session.CaptionGrace != time.Second {
		t.Fatalf("unexpected session defaults: %+v", cfg.Session)
	}
}

func TestLoadRespectsOverrides(t *testing.T) {
	home := t.TempDir()
	rules := filepath.Join(home, "my.rules")

	t.Setenv("HOME", home)
	t.Setenv("DEEPGRAM_API_KEY", "test-key")
	t.Setenv("DEEPGRAM_MODEL", "nova-3")
	t.Setenv("DEEPGRAM_SMART_FORMAT", "false")
	t.Setenv("MOODCHECK_FFMPEG_COMMAND", "my-ffmpeg")
	t.Setenv("MOODCHECK_AUDIO_INPUT_FORMAT", "alsa")
	t.Setenv("MOODCHECK_SAMPLE_RATE", "22050")
	t.Setenv("MOODCHECK_RULES_FILE", rules)
	t.Setenv("MOODCHECK_AUDIO_CHUNK_SIZE", "512")
	t.Setenv("MOODCHECK_CAPTION_GRACE", "25ms")
	t.Setenv("MOODCHECK_REMOTE_MAX_RETRIES", "5")
	t.Setenv("RELAY_ALLOWED_ORIGINS", "https://a.example,https://b.example")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("load failed: %v", err)
	}

	if cfg.Deepgram.APIKey != "test-key" || cfg.Deepgram.Model != "nova-3" || cfg.Deepgram.SmartFormat {
		t.Fatalf("unexpected deepgram config: %+v", cfg.Deepgram)
	}
	if cfg.Audio.RecorderCommand != "my-ffmpeg" || cfg.Audio.InputFormat != "alsa" || cfg.Audio.SampleRate != 22050 {
		t.Fatalf("unexpected audio config: %+v", cfg.Audio)
	}
	if cfg.Rules.Path != rules {
		t.Fatalf("unexpected rules path: %q", cfg.Rules.Path)
	}
	if cfg.Session.ChunkSize != 512 || cfg.Session.CaptionGrace != 25*time.Millisecond {
		t.Fatalf("unexpected session config: %+v", cfg.Session)
	}
	if cfg.Remote.MaxRetries != 5 {
		t.Fatalf("unexpected retries: %d", cfg.Remote.MaxRetries)
	}
	if len(cfg.Relay.AllowedOrigins) != 2 || cfg.Relay.AllowedOrigins[1] != "https://b.example" {
		t.Fatalf("unexpected origins: %v", cfg.Relay.AllowedOrigins)
	}
}

func TestLoadClampsOutOfRangeNumbers(t *testing.T) {
	t.Setenv("HOME", t.TempDir())
	t.Setenv("MOODCHECK_CHANNELS", "-1")
	t.Setenv("MOODCHECK_RULE_ITERATION_LIMIT", "0")
	t.Setenv("MOODCHECK_AUDIO_CHUNK_SIZE", "5")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("load failed: %v", err)
	}
	if cfg.Audio.Channels != 1 {
		t.Fatalf("expected default channels, got %d", cfg.Audio.Channels)
	}
	if cfg.Rules.IterationLimit != 30 {
		t.Fatalf("expected default iteration limit, got %d", cfg.Rules.IterationLimit)
	}
	if cfg.Session.ChunkSize != 4096 {
		t.Fatalf("expected chunk size fallback, got %d", cfg.Session.ChunkSize)
	}
}

func TestLoadRejectsMalformedValues(t *testing.T) {
	t.Setenv("HOME", t.TempDir())
	t.Setenv("MOODCHECK_SAMPLE_RATE", "bad")

	_, err := Load()
	var cfgErr *domain.ConfigError
	if !errors.As(err, &cfgErr) {
		t.Fatalf("expected ConfigError, got %v", err)
	}
}

func TestValidateApp(t *testing.T) {
	t.Parallel()

	base := Config{
		UserID:   "user-1",
		Database: DatabaseConfig{URL: "postgres://localhost/moodcheck"},
		Gemini:   GeminiConfig{APIKey: "g"},
	}
	if err := base.ValidateApp(); err != nil {
		t.Fatalf("expected valid config, got %v", err)
	}

	missingUser := base
	missingUser.UserID = " "
	assertConfigField(t, missingUser.ValidateApp(), "MOODCHECK_USER_ID")

	missingDB := base
	missingDB.Database.URL = ""
	assertConfigField(t, missingDB.ValidateApp(), "DATABASE_URL")

	noGenerator := base
	noGenerator.Gemini.APIKey = ""
	assertConfigField(t, noGenerator.ValidateApp(), "GEMINI_API_KEY")

	openAIOnly := noGenerator
	openAIOnly.OpenAI.APIKey = "o"
	if err := openAIOnly.ValidateApp(); err != nil {
		t.Fatalf("expected openai-only config to be valid, got %v", err)
	}

	preferWithoutKey := base
	preferWithoutKey.OpenAI.Prefer = true
	assertConfigField(t, preferWithoutKey.ValidateApp(), "OPENAI_API_KEY")
}

func TestValidateRelay(t *testing.T) {
	t.Parallel()

	cfg := Config{Relay: RelayConfig{Port: 8787}}
	assertConfigField(t, cfg.ValidateRelay(), "HF_TOKEN")

	cfg.HuggingFace.Token = "hf"
	if err := cfg.ValidateRelay(); err != nil {
		t.Fatalf("expected valid relay config, got %v", err)
	}

	cfg.Relay.Port = 0
	assertConfigField(t, cfg.ValidateRelay(), "RELAY_PORT")
}

func assertConfigField(t *testing.T, err error, field string) {
	t.Helper()
	var cfgErr *domain.ConfigError
	if !errors.As(err, &cfgErr) {
		t.Fatalf("expected ConfigError for %s, got %v", field, err)
	}
	if cfgErr.Field != field {
		t.Fatalf("expected field %s, got %s", field, cfgErr.Field)
	}
}
