package config

import (
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("DISCORD_BOT_TOKEN", "tok")
	t.Setenv("GOOGLE_API_KEY", "key")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.CommandPrefix != "!" {
		t.Fatalf("unexpected prefix: %q", cfg.CommandPrefix)
	}
	if cfg.Transcriber != TranscriberGoogle {
		t.Fatalf("unexpected transcriber: %q", cfg.Transcriber)
	}
	if cfg.Language != "pt-BR" {
		t.Fatalf("unexpected language: %q", cfg.Language)
	}
	if cfg.TranscribeTimeout != 30*time.Second {
		t.Fatalf("unexpected timeout: %v", cfg.TranscribeTimeout)
	}
	if cfg.GoogleSpeechURL != defaultGoogleSpeechURL {
		t.Fatalf("unexpected speech url: %q", cfg.GoogleSpeechURL)
	}
	if cfg.SaveAudioEnabled {
		t.Fatalf("archiving should be disabled by default")
	}
}

func TestLoadMissingToken(t *testing.T) {
	t.Setenv("DISCORD_BOT_TOKEN", "")
	if _, err := Load(); err == nil {
		t.Fatalf("expected error for missing token")
	}
}

func TestLoadUnknownTranscriber(t *testing.T) {
	t.Setenv("DISCORD_BOT_TOKEN", "tok")
	t.Setenv("TRANSCRIBER", "kaldi")
	if _, err := Load(); err == nil {
		t.Fatalf("expected error for unknown transcriber")
	}
}

func TestLoadWhisperRequiresURL(t *testing.T) {
	t.Setenv("DISCORD_BOT_TOKEN", "tok")
	t.Setenv("TRANSCRIBER", "whisper")
	t.Setenv("WHISPER_URL", "")
	if _, err := Load(); err == nil {
		t.Fatalf("expected error for missing whisper url")
	}

	t.Setenv("WHISPER_URL", "http://stt:9000/transcribe")
	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Transcriber != TranscriberWhisper {
		t.Fatalf("unexpected transcriber: %q", cfg.Transcriber)
	}
}

func TestLoadArchiveConfig(t *testing.T) {
	t.Setenv("DISCORD_BOT_TOKEN", "tok")
	t.Setenv("GOOGLE_API_KEY", "key")
	t.Setenv("SAVE_AUDIO_ENABLED", "true")
	t.Setenv("SAVE_AUDIO_DIR", "/tmp/utterances")
	t.Setenv("SAVE_AUDIO_RETENTION_H", "2")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.SaveAudioDir != "/tmp/utterances" {
		t.Fatalf("unexpected save dir: %q", cfg.SaveAudioDir)
	}
	if cfg.SaveAudioRetention != 2*time.Hour {
		t.Fatalf("unexpected retention: %v", cfg.SaveAudioRetention)
	}
	if !cfg.SaveAudioEnabled {
		t.Fatalf("archiving should be enabled")
	}
}

// Validate must judge the struct alone, not the process environment.
func TestValidateHandBuiltConfig(t *testing.T) {
	cfg := &Config{
		Token:             "tok",
		Transcriber:       TranscriberGoogle,
		GoogleAPIKey:      "key",
		TranscribeTimeout: time.Second,
		SaveAudioEnabled:  true,
	}
	if err := cfg.Validate(); err == nil {
		t.Fatalf("expected error: archiving enabled without a directory")
	}
	cfg.SaveAudioDir = "/tmp/utterances"
	if err := cfg.Validate(); err != nil {
		t.Fatalf("Validate: %v", err)
	}
}
