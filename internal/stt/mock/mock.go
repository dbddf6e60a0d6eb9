// Package mock provides simulated transcription providers for running
// the service without cloud credentials.
package mock

import (
	"context"
	"strings"
	"sync"
	"time"

	"voice-agent-service/internal/audio"
	"voice-agent-service/internal/models"
	"voice-agent-service/internal/stt"
)

// SimulatedTranscript is one canned recognition outcome.
type SimulatedTranscript struct {
	Text       string
	Confidence float64
}

// DefaultTranscripts cycles through plausible capital questions.
var DefaultTranscripts = []SimulatedTranscript{
	{Text: "What is the capital of France", Confidence: 0.95},
	{Text: "What is the capital of Texas", Confidence: 0.93},
	{Text: "Tell me the capital of Japan", Confidence: 0.91},
	{Text: "What's the weather like today", Confidence: 0.89},
}

var (
	counterMu sync.Mutex
	counter   int
)

func nextTranscript() SimulatedTranscript {
	counterMu.Lock()
	defer counterMu.Unlock()
	t := DefaultTranscripts[counter%len(DefaultTranscripts)]
	counter++
	return t
}

// Streamer implements stt.Streamer with canned results.
type Streamer struct {
	// Latency is applied before the final transcript is returned.
	Latency time.Duration
}

// Open returns a handle that accepts any frames and resolves to the
// next canned transcript.
func (s *Streamer) Open(ctx context.Context) (stt.StreamHandle, error) {
	return &streamHandle{latency: s.Latency, transcript: nextTranscript()}, nil
}

type streamHandle struct {
	latency    time.Duration
	transcript SimulatedTranscript

	mu     sync.Mutex
	frames int
	closed bool
}

func (h *streamHandle) Send(frame []byte) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return stt.ErrProtocol
	}
	h.frames++
	return nil
}

func (h *streamHandle) Close(ctx context.Context) (models.TranscriptionResult, error) {
	h.mu.Lock()
	h.closed = true
	frames := h.frames
	h.mu.Unlock()

	if h.latency > 0 {
		select {
		case <-time.After(h.latency):
		case <-ctx.Done():
			return models.TranscriptionResult{}, stt.ErrStreamTimeout
		}
	}

	if frames == 0 {
		return models.TranscriptionResult{}, stt.ErrProtocol
	}

	return models.TranscriptionResult{
		Text:       h.transcript.Text,
		Confidence: h.transcript.Confidence,
		Mode:       models.ModeStreaming,
	}, nil
}

// Batcher implements stt.Batcher with canned results.
type Batcher struct{}

// Submit accepts any non-empty utterance.
func (b *Batcher) Submit(ctx context.Context, utt *audio.Utterance) (stt.Job, error) {
	if utt.ByteCount == 0 {
		return nil, stt.ErrUpload
	}
	return &batchJob{transcript: nextTranscript()}, nil
}

type batchJob struct {
	transcript SimulatedTranscript
}

// Poll resolves after a single simulated poll cycle.
func (j *batchJob) Poll(ctx context.Context, interval, deadline time.Duration) (models.TranscriptionResult, error) {
	select {
	case <-ctx.Done():
		return models.TranscriptionResult{}, stt.ErrPollTimeout
	case <-time.After(interval):
	}

	return models.TranscriptionResult{
		Text:       strings.TrimSpace(j.transcript.Text),
		Confidence: j.transcript.Confidence,
		Mode:       models.ModeBatch,
	}, nil
}
