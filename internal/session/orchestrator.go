package session

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog"

	"voice-agent-service/internal/audio"
	"voice-agent-service/internal/intent"
	"voice-agent-service/internal/models"
	"voice-agent-service/internal/observability/logging"
	"voice-agent-service/internal/observability/metrics"
	"voice-agent-service/internal/stt"
	"voice-agent-service/internal/synth"
)

// Transcriber is the coordinator boundary.
type Transcriber interface {
	Transcribe(ctx context.Context, utt *audio.Utterance) (models.TranscriptionResult, error)
}

// ResultPublisher receives pipeline outcomes for downstream consumers.
type ResultPublisher interface {
	PublishTranscript(ctx context.Context, sessionID string, res models.TranscriptionResult) error
	PublishResult(ctx context.Context, result models.VoiceResult) error
}

// Orchestrator sequences transcription, intent resolution and speech
// synthesis into one VoiceResult per interaction. Stage failures are
// folded into the result; only contract violations (a busy session)
// surface as errors.
type Orchestrator struct {
	transcriber Transcriber
	resolver    *intent.Resolver
	synthesizer synth.Synthesizer
	store       *audio.Store
	publisher   ResultPublisher
	log         zerolog.Logger
	metrics     *metrics.Metrics
}

// NewOrchestrator wires the pipeline stages. store and publisher may be
// nil; synthesized audio is then kept in memory only, and no events are
// emitted.
func NewOrchestrator(tr Transcriber, resolver *intent.Resolver, syn synth.Synthesizer, store *audio.Store, publisher ResultPublisher) *Orchestrator {
	return &Orchestrator{
		transcriber: tr,
		resolver:    resolver,
		synthesizer: syn,
		store:       store,
		publisher:   publisher,
		log:         logging.WithComponent("session-orchestrator"),
		metrics:     metrics.DefaultMetrics,
	}
}

// ProcessUtterance transcribes a finalized utterance and answers it.
// Returns ErrSessionBusy if the session is mid-pipeline.
func (o *Orchestrator) ProcessUtterance(ctx context.Context, s *Session, utt *audio.Utterance) (models.VoiceResult, error) {
	if !s.tryAcquire() {
		o.metrics.RecordSessionBusy()
		return models.VoiceResult{}, ErrSessionBusy
	}
	defer s.release()

	start := time.Now()
	log := logging.WithUtterance(s.ID, utt.ID)
	log.Info().Int("bytes", utt.ByteCount).Int("frames", len(utt.Frames)).Msg("Processing utterance")

	tr, err := o.transcriber.Transcribe(ctx, utt)
	if err != nil {
		result := models.VoiceResult{
			SessionID:    s.ID,
			ResponseText: "I'm sorry, I couldn't understand your voice input.",
			Success:      false,
			ErrorKind:    errorKind(err),
		}
		log.Warn().Err(err).Str("errorKind", result.ErrorKind).Msg("Transcription failed")
		o.metrics.RecordPipeline("voice", false, result.ErrorKind, time.Since(start).Seconds())
		o.publishResult(ctx, result)
		return result, nil
	}

	if o.publisher != nil {
		if err := o.publisher.PublishTranscript(ctx, s.ID, tr); err != nil {
			log.Warn().Err(err).Msg("Failed to publish transcript event")
		}
	}

	result := o.respond(ctx, s, tr.Text, tr.Mode)
	o.metrics.RecordPipeline("voice", result.Success, result.ErrorKind, time.Since(start).Seconds())
	o.publishResult(ctx, result)
	return result, nil
}

// ProcessText answers a typed query, skipping transcription.
// Returns ErrSessionBusy if the session is mid-pipeline.
func (o *Orchestrator) ProcessText(ctx context.Context, s *Session, text string) (models.VoiceResult, error) {
	if !s.tryAcquire() {
		o.metrics.RecordSessionBusy()
		return models.VoiceResult{}, ErrSessionBusy
	}
	defer s.release()

	start := time.Now()
	log := logging.WithSession(s.ID)
	log.Info().Msg("Processing text query")

	result := o.respond(ctx, s, text, "")
	o.metrics.RecordPipeline("text", result.Success, result.ErrorKind, time.Since(start).Seconds())
	o.publishResult(ctx, result)
	return result, nil
}

// respond runs intent resolution and synthesis for an already-known
// transcript. Synthesis failure degrades to a text-only result.
func (o *Orchestrator) respond(ctx context.Context, s *Session, text string, mode models.TranscriptionMode) models.VoiceResult {
	response, ir, capital := o.resolver.Resolve(ctx, text)

	result := models.VoiceResult{
		SessionID:       s.ID,
		TranscribedText: text,
		Mode:            mode,
		QueryType:       ir.QueryType,
		Entity:          ir.Entity,
		Capital:         capital,
		ResponseText:    response,
		Success:         true,
	}

	synthStart := time.Now()
	audioBytes, err := o.synthesizer.Synthesize(ctx, response)
	o.metrics.RecordSynthesis(err, time.Since(synthStart).Seconds())
	if err != nil {
		// Text-only degradation; the request still succeeded.
		o.log.Warn().Err(err).Str("sessionId", s.ID).Msg("Synthesis failed, returning text-only result")
		return result
	}

	result.ResponseAudio = audioBytes
	if o.store != nil {
		name, err := o.store.Save(audioBytes, "mp3")
		if err != nil {
			o.log.Warn().Err(err).Str("sessionId", s.ID).Msg("Failed to persist response audio")
		} else {
			result.AudioFilePath = name
		}
	}
	return result
}

func (o *Orchestrator) publishResult(ctx context.Context, result models.VoiceResult) {
	if o.publisher == nil {
		return
	}
	if err := o.publisher.PublishResult(ctx, result); err != nil {
		o.log.Warn().Err(err).Str("sessionId", result.SessionID).Msg("Failed to publish result event")
	}
}

// errorKind names a pipeline failure for the result contract and
// metrics labels.
func errorKind(err error) string {
	switch {
	case errors.Is(err, stt.ErrStreamUnavailable):
		return "stream_unavailable"
	case errors.Is(err, stt.ErrStreamTimeout):
		return "stream_timeout"
	case errors.Is(err, stt.ErrProtocol):
		return "protocol"
	case errors.Is(err, stt.ErrUpload):
		return "upload"
	case errors.Is(err, stt.ErrJobFailed):
		return "transcription_job"
	case errors.Is(err, stt.ErrPollTimeout):
		return "poll_timeout"
	case errors.Is(err, synth.ErrSynthesis):
		return "synthesis"
	default:
		return "internal"
	}
}
