package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"voice-agent-service/internal/app"
	"voice-agent-service/internal/audio"
	"voice-agent-service/internal/capitals"
	"voice-agent-service/internal/config"
	"voice-agent-service/internal/events"
	"voice-agent-service/internal/httpapi"
	"voice-agent-service/internal/intent"
	"voice-agent-service/internal/models"
	"voice-agent-service/internal/observability"
	"voice-agent-service/internal/room"
	"voice-agent-service/internal/session"
	"voice-agent-service/internal/stt"
	"voice-agent-service/internal/stt/google"
	"voice-agent-service/internal/stt/mock"
	"voice-agent-service/internal/synth"
)

func main() {
	cfg := config.Load()
	application := app.New(cfg)
	if err := application.Start(); err != nil {
		application.Logger.Fatal().Err(err).Msg("Startup failed")
	}
	logger := application.Logger

	ctx := context.Background()

	table, err := capitals.Load()
	if err != nil {
		logger.Fatal().Err(err).Msg("Failed to load capitals data")
	}
	countries, states := table.Counts()
	logger.Info().Int("countries", countries).Int("states", states).Msg("Capitals data loaded")

	store, err := audio.NewStore(cfg.Service.AudioDir)
	if err != nil {
		logger.Fatal().Err(err).Str("dir", cfg.Service.AudioDir).Msg("Failed to create audio store")
	}

	publisher := events.New(&events.Config{
		Enabled:         cfg.Kafka.Enabled,
		Brokers:         cfg.Kafka.Brokers,
		TopicTranscript: cfg.Kafka.TopicTranscript,
		TopicResult:     cfg.Kafka.TopicResult,
		Principal:       cfg.Kafka.Principal,
	})
	defer publisher.Close()

	streamer, batcher := buildTranscribers(ctx, cfg, logger)

	mode := models.ModeStreaming
	if cfg.Transcription.Mode == "bucket" {
		mode = models.ModeBatch
	}
	coordinator := stt.NewCoordinator(streamer, batcher, stt.Config{
		Mode:             mode,
		EnableFallback:   cfg.Transcription.EnableFallback,
		StreamingTimeout: cfg.Transcription.StreamingTimeout,
		PollInterval:     cfg.Batch.PollInterval,
		PollDeadline:     cfg.Batch.PollDeadline,
	})

	classifier := intent.NewAnthropicClassifier(cfg.LLM.APIKey, cfg.LLM.Model)
	resolver := intent.NewResolver(classifier, table)
	synthesizer := synth.NewOpenAISynthesizer(synth.Config{
		APIKey:  cfg.TTS.APIKey,
		BaseURL: cfg.TTS.BaseURL,
		Model:   cfg.TTS.Model,
		Voice:   cfg.TTS.Voice,
	})

	orchestrator := session.NewOrchestrator(coordinator, resolver, synthesizer, store, publisher)

	var bridgeCtl httpapi.RoomControl
	var bridge *room.Bridge
	if cfg.LiveKit.URL != "" {
		client := room.NewLiveKitClient(cfg.LiveKit.URL, cfg.LiveKit.APIKey, cfg.LiveKit.APISecret)
		bridge = room.NewBridge(client, orchestrator)
		bridgeCtl = bridge
	} else {
		logger.Info().Msg("LiveKit URL not set, media room endpoints disabled")
	}

	obsServer := observability.NewServer(cfg.Observability.MetricsAddr)
	obsServer.Start()

	api := httpapi.New(cfg, orchestrator, bridgeCtl, store, table)
	httpServer := &http.Server{
		Addr:         ":" + cfg.Service.HTTPPort,
		Handler:      api.Router(),
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 120 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		logger.Info().Str("addr", httpServer.Addr).Msg("Voice agent service listening")
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal().Err(err).Msg("HTTP serve failed")
		}
	}()

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	<-sig

	logger.Info().Msg("Shutdown signal received")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	if bridge != nil {
		if err := bridge.Disconnect(); err != nil {
			logger.Warn().Err(err).Msg("Error leaving media room")
		}
	}
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Warn().Err(err).Msg("HTTP shutdown error")
	}
	if err := obsServer.Shutdown(shutdownCtx); err != nil {
		logger.Warn().Err(err).Msg("Observability shutdown error")
	}
	application.Shutdown()
}

// buildTranscribers selects the configured transcription providers. The
// batch path is only wired when a bucket is configured; the coordinator
// treats a nil batcher as an unavailable fallback.
func buildTranscribers(ctx context.Context, cfg *config.Configuration, logger zerolog.Logger) (stt.Streamer, stt.Batcher) {
	if cfg.Transcription.Provider == "mock" {
		logger.Info().Msg("Using mock transcription providers")
		return &mock.Streamer{}, &mock.Batcher{}
	}

	sttCfg := google.Config{
		LanguageCode: cfg.Transcription.LanguageCode,
		SampleRateHz: cfg.Transcription.SampleRateHz,
	}

	streamer, err := google.NewStreamingTranscriber(ctx, sttCfg)
	if err != nil {
		logger.Fatal().Err(err).Msg("Failed to create streaming transcriber")
	}

	var batcher stt.Batcher
	if cfg.Batch.Bucket != "" {
		b, err := google.NewBatchTranscriber(ctx, cfg.Batch.Bucket, sttCfg)
		if err != nil {
			logger.Fatal().Err(err).Msg("Failed to create batch transcriber")
		}
		batcher = b
	} else {
		logger.Info().Msg("No transcription bucket configured, batch path disabled")
	}

	return streamer, batcher
}
