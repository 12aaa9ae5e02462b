package main

import (
	"context"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/bwmarrin/discordgo"
	"github.com/getsentry/sentry-go"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/discord-voice-scribe/internal/archive"
	"github.com/discord-voice-scribe/internal/config"
	"github.com/discord-voice-scribe/internal/logging"
	"github.com/discord-voice-scribe/internal/metrics"
	"github.com/discord-voice-scribe/internal/session"
	"github.com/discord-voice-scribe/internal/transcribe"
	"github.com/discord-voice-scribe/internal/voice"
)

func main() {
	sugar := logging.Init()

	cfg, err := config.Load()
	if err != nil {
		sugar.Fatalf("config: %v", err)
	}

	if cfg.SentryDSN != "" {
		if err := sentry.Init(sentry.ClientOptions{Dsn: cfg.SentryDSN}); err != nil {
			sugar.Warnf("sentry init failed: %v", err)
		}
	}

	var m *metrics.Metrics
	if cfg.MetricsAddr != "" {
		m = metrics.New()
		go func() {
			sugar.Infow("metrics listening", "addr", cfg.MetricsAddr)
			if err := metrics.Serve(cfg.MetricsAddr, promhttp.Handler()); err != nil {
				sugar.Errorw("metrics server stopped", "err", err)
			}
		}()
	}

	var transcriber transcribe.Transcriber
	switch cfg.Transcriber {
	case config.TranscriberWhisper:
		transcriber = transcribe.NewWhisper(cfg.WhisperURL, cfg.Language, nil)
	default:
		transcriber = transcribe.NewGoogleSpeech(cfg.GoogleAPIKey, cfg.GoogleSpeechURL, cfg.Language, nil)
	}
	sugar.Infow("transcriber configured", "backend", cfg.Transcriber, "language", cfg.Language)

	var archiver *archive.Archiver
	if cfg.SaveAudioEnabled {
		archiver = archive.New(cfg.SaveAudioDir)
	}

	dg, err := discordgo.New("Bot " + cfg.Token)
	if err != nil {
		sugar.Fatalf("discordgo.New: %v", err)
	}
	dg.Identify.Intents = discordgo.IntentsGuilds |
		discordgo.IntentsGuildVoiceStates |
		discordgo.IntentsGuildMessages |
		discordgo.IntentMessageContent

	announcer := &voice.ChannelAnnouncer{Session: dg, ChannelID: cfg.TextChannelID}
	finalizer := &session.Finalizer{
		Transcriber: transcriber,
		Announcer:   announcer,
		Resolver:    voice.NewNameCache(dg),
		StagingDir:  cfg.StagingDir,
		Archiver:    archiver,
		Metrics:     m,
	}
	coord := session.NewCoordinator(finalizer, m, cfg.TranscribeTimeout)
	finalizer.Identities = coord.Identities()

	receiver := voice.NewReceiver(coord)
	bot := &Bot{
		cfg:       cfg,
		dg:        dg,
		coord:     coord,
		receiver:  receiver,
		announcer: announcer,
	}

	dg.AddHandler(bot.HandleMessage)
	dg.AddHandler(receiver.HandleVoiceState)
	dg.AddHandler(func(s *discordgo.Session, r *discordgo.Ready) {
		sugar.Infow("gateway ready", "user", r.User.Username)
	})

	if err := dg.Open(); err != nil {
		sugar.Fatalf("discord session open failed: %v", err)
	}
	sugar.Infow("discord session opened")

	bgCtx, bgCancel := context.WithCancel(context.Background())
	var bgWG sync.WaitGroup
	if archiver != nil {
		bgWG.Add(1)
		archiver.StartCleaner(bgCtx, &bgWG, cfg.SaveAudioRetention, time.Hour, cfg.SaveAudioMaxFiles)
		sugar.Infow("audio archive enabled",
			"dir", cfg.SaveAudioDir, "retention", cfg.SaveAudioRetention, "max_files", cfg.SaveAudioMaxFiles)
	}

	// Optional auto-join so the bot can run headless without a !join.
	if cfg.GuildID != "" && cfg.VoiceChannelID != "" {
		if err := bot.JoinVoice(cfg.GuildID, cfg.VoiceChannelID); err != nil {
			sugar.Warnf("auto-join failed: %v", err)
		}
	}

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
	<-stop
	sugar.Infow("shutdown signal received, closing resources")

	bot.LeaveVoice()
	coord.Close()
	bgCancel()
	bgWG.Wait()

	if err := dg.Close(); err != nil {
		sugar.Warnf("discord session close error: %v", err)
	}
	sentry.Flush(2 * time.Second)
	logging.Sync()
	sugar.Info("shutdown complete")
}
