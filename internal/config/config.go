package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Transcriber backend names accepted in TRANSCRIBER.
const (
	TranscriberGoogle  = "google"
	TranscriberWhisper = "whisper"
)

const defaultGoogleSpeechURL = "https://speech.googleapis.com/v1/speech:recognize"

// Config holds everything the bot reads from the environment. An optional
// .env file in the working directory is loaded first.
type Config struct {
	Token          string
	GuildID        string
	VoiceChannelID string
	TextChannelID  string
	CommandPrefix  string

	Transcriber       string
	GoogleAPIKey      string
	GoogleSpeechURL   string
	Language          string
	WhisperURL        string
	TranscribeTimeout time.Duration

	StagingDir         string
	SaveAudioEnabled   bool
	SaveAudioDir       string
	SaveAudioRetention time.Duration
	SaveAudioMaxFiles  int

	MetricsAddr string
	SentryDSN   string
}

// Load reads the configuration from the environment, applying defaults, and
// validates it. A missing .env file is not an error.
func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{
		Token:          strings.TrimSpace(os.Getenv("DISCORD_BOT_TOKEN")),
		GuildID:        strings.TrimSpace(os.Getenv("GUILD_ID")),
		VoiceChannelID: strings.TrimSpace(os.Getenv("VOICE_CHANNEL_ID")),
		TextChannelID:  strings.TrimSpace(os.Getenv("TEXT_CHANNEL_ID")),
		CommandPrefix:  envStr("COMMAND_PREFIX", "!"),

		Transcriber:       strings.ToLower(envStr("TRANSCRIBER", TranscriberGoogle)),
		GoogleAPIKey:      strings.TrimSpace(os.Getenv("GOOGLE_API_KEY")),
		GoogleSpeechURL:   envStr("GOOGLE_SPEECH_URL", defaultGoogleSpeechURL),
		Language:          envStr("STT_LANGUAGE", "pt-BR"),
		WhisperURL:        strings.TrimSpace(os.Getenv("WHISPER_URL")),
		TranscribeTimeout: time.Duration(envInt("TRANSCRIBE_TIMEOUT_MS", 30000)) * time.Millisecond,

		StagingDir:         envStr("STAGING_DIR", os.TempDir()),
		SaveAudioEnabled:   strings.EqualFold(envStr("SAVE_AUDIO_ENABLED", "false"), "true"),
		SaveAudioDir:       strings.TrimSpace(os.Getenv("SAVE_AUDIO_DIR")),
		SaveAudioRetention: time.Duration(envInt("SAVE_AUDIO_RETENTION_H", 24)) * time.Hour,
		SaveAudioMaxFiles:  envInt("SAVE_AUDIO_MAX_FILES", 500),

		MetricsAddr: strings.TrimSpace(os.Getenv("METRICS_ADDR")),
		SentryDSN:   strings.TrimSpace(os.Getenv("SENTRY_DSN")),
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks that the configuration is usable.
func (c *Config) Validate() error {
	if c.Token == "" {
		return fmt.Errorf("DISCORD_BOT_TOKEN is required")
	}
	switch c.Transcriber {
	case TranscriberGoogle:
		if c.GoogleAPIKey == "" {
			return fmt.Errorf("GOOGLE_API_KEY is required when TRANSCRIBER=%s", TranscriberGoogle)
		}
	case TranscriberWhisper:
		if c.WhisperURL == "" {
			return fmt.Errorf("WHISPER_URL is required when TRANSCRIBER=%s", TranscriberWhisper)
		}
	default:
		return fmt.Errorf("unknown TRANSCRIBER %q (expected %s or %s)", c.Transcriber, TranscriberGoogle, TranscriberWhisper)
	}
	if c.TranscribeTimeout <= 0 {
		return fmt.Errorf("TRANSCRIBE_TIMEOUT_MS must be positive")
	}
	if c.SaveAudioEnabled && c.SaveAudioDir == "" {
		return fmt.Errorf("SAVE_AUDIO_DIR is required when SAVE_AUDIO_ENABLED=true")
	}
	return nil
}

func envStr(key, def string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return def
}

func envInt(key string, def int) int {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return def
}
