package stt

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"voice-agent-service/internal/audio"
	"voice-agent-service/internal/models"
	"voice-agent-service/internal/observability/logging"
	"voice-agent-service/internal/observability/metrics"
)

// State represents the coordinator's position in one transcription run.
type State int

const (
	StateIdle State = iota
	StateStreamingAttempt
	StateFallbackPending
	StateBatchAttempt
	StateSuccess
	StateFailed
)

// String returns the string representation of the state.
func (s State) String() string {
	switch s {
	case StateIdle:
		return "IDLE"
	case StateStreamingAttempt:
		return "STREAMING_ATTEMPT"
	case StateFallbackPending:
		return "FALLBACK_PENDING"
	case StateBatchAttempt:
		return "BATCH_ATTEMPT"
	case StateSuccess:
		return "SUCCESS"
	case StateFailed:
		return "FAILED"
	default:
		return fmt.Sprintf("UNKNOWN(%d)", s)
	}
}

// Config tunes one coordinator.
type Config struct {
	// Mode selects the primary path: ModeStreaming or ModeBatch.
	Mode models.TranscriptionMode
	// EnableFallback allows a failed streaming attempt to hand off to
	// the batch path.
	EnableFallback bool
	// StreamingTimeout bounds the whole streaming attempt.
	StreamingTimeout time.Duration
	// PollInterval and PollDeadline tune the batch path.
	PollInterval time.Duration
	PollDeadline time.Duration
}

// Coordinator runs one transcription per finalized utterance.
//
// State transitions:
//
//	IDLE → STREAMING_ATTEMPT → SUCCESS
//	              │
//	              └─→ FALLBACK_PENDING → BATCH_ATTEMPT → SUCCESS | FAILED
//
// With Mode == ModeBatch the streaming attempt is skipped entirely. No
// mode is ever attempted twice for the same utterance; partial streaming
// output is discarded when falling back.
type Coordinator struct {
	streamer Streamer
	batcher  Batcher
	cfg      Config
	log      zerolog.Logger
	metrics  *metrics.Metrics
}

// NewCoordinator creates a coordinator. Either provider may be nil when
// that path is not configured; attempts against a missing provider fail
// with the path's unavailability error.
func NewCoordinator(streamer Streamer, batcher Batcher, cfg Config) *Coordinator {
	return &Coordinator{
		streamer: streamer,
		batcher:  batcher,
		cfg:      cfg,
		log:      logging.WithComponent("transcription-coordinator"),
		metrics:  metrics.DefaultMetrics,
	}
}

// Transcribe runs the configured path, falling back from streaming to
// batch at most once. The returned result is tagged with the mode that
// actually produced it.
func (c *Coordinator) Transcribe(ctx context.Context, utt *audio.Utterance) (models.TranscriptionResult, error) {
	state := StateIdle

	if c.cfg.Mode != models.ModeBatch {
		state = StateStreamingAttempt
		c.log.Debug().Str("utteranceId", utt.ID).Str("state", state.String()).Msg("Starting streaming attempt")

		start := time.Now()
		res, err := c.tryStreaming(ctx, utt)
		c.metrics.RecordTranscription(string(models.ModeStreaming), err, time.Since(start).Seconds())

		if err == nil {
			state = StateSuccess
			res.Mode = models.ModeStreaming
			c.log.Info().Str("utteranceId", utt.ID).Str("state", state.String()).
				Str("mode", string(res.Mode)).Msg("Transcription complete")
			return res, nil
		}

		if !fallbackEligible(err) || !c.cfg.EnableFallback {
			state = StateFailed
			c.log.Warn().Err(err).Str("utteranceId", utt.ID).Str("state", state.String()).
				Bool("fallbackEnabled", c.cfg.EnableFallback).Msg("Streaming attempt failed, not falling back")
			return models.TranscriptionResult{}, err
		}

		state = StateFallbackPending
		c.metrics.RecordFallback()
		c.log.Warn().Err(err).Str("utteranceId", utt.ID).Str("state", state.String()).
			Msg("Streaming attempt failed, falling back to batch")
	}

	state = StateBatchAttempt
	c.log.Debug().Str("utteranceId", utt.ID).Str("state", state.String()).Msg("Starting batch attempt")

	start := time.Now()
	res, err := c.tryBatch(ctx, utt)
	c.metrics.RecordTranscription(string(models.ModeBatch), err, time.Since(start).Seconds())

	if err != nil {
		state = StateFailed
		c.log.Warn().Err(err).Str("utteranceId", utt.ID).Str("state", state.String()).Msg("Batch attempt failed")
		return models.TranscriptionResult{}, err
	}

	state = StateSuccess
	res.Mode = models.ModeBatch
	c.log.Info().Str("utteranceId", utt.ID).Str("state", state.String()).
		Str("mode", string(res.Mode)).Msg("Transcription complete")
	return res, nil
}

// fallbackEligible reports whether a streaming failure may hand off to
// the batch path.
func fallbackEligible(err error) bool {
	return errors.Is(err, ErrStreamUnavailable) ||
		errors.Is(err, ErrStreamTimeout) ||
		errors.Is(err, ErrProtocol)
}

func (c *Coordinator) tryStreaming(ctx context.Context, utt *audio.Utterance) (models.TranscriptionResult, error) {
	if c.streamer == nil {
		return models.TranscriptionResult{}, fmt.Errorf("no streaming provider configured: %w", ErrStreamUnavailable)
	}

	ctx, cancel := context.WithTimeout(ctx, c.cfg.StreamingTimeout)
	defer cancel()

	h, err := c.streamer.Open(ctx)
	if err != nil {
		return models.TranscriptionResult{}, err
	}

	for i, frame := range utt.Frames {
		// A container header in the first frame would otherwise be fed to
		// the recognizer as audio.
		if i == 0 {
			frame = audio.PCM(frame)
			if len(frame) == 0 {
				continue
			}
		}
		if err := h.Send(frame); err != nil {
			return models.TranscriptionResult{}, fmt.Errorf("send frame %d: %w", i, err)
		}
	}

	return h.Close(ctx)
}

func (c *Coordinator) tryBatch(ctx context.Context, utt *audio.Utterance) (models.TranscriptionResult, error) {
	if c.batcher == nil {
		return models.TranscriptionResult{}, fmt.Errorf("no batch provider configured: %w", ErrUpload)
	}

	job, err := c.batcher.Submit(ctx, utt)
	if err != nil {
		return models.TranscriptionResult{}, err
	}

	return job.Poll(ctx, c.cfg.PollInterval, c.cfg.PollDeadline)
}
