// Package stt defines the transcription interfaces and the coordinator
// that drives streaming-first transcription with batch fallback.
package stt

import (
	"context"
	"errors"
	"time"

	"voice-agent-service/internal/audio"
	"voice-agent-service/internal/models"
)

// Errors surfaced by transcription providers. Providers wrap these so
// the coordinator can route fallback decisions with errors.Is.
var (
	// ErrStreamUnavailable - the streaming channel could not be opened
	// or was dropped mid-utterance.
	ErrStreamUnavailable = errors.New("streaming transcriber unavailable")
	// ErrStreamTimeout - the deadline expired before a final transcript
	// arrived.
	ErrStreamTimeout = errors.New("timed out waiting for final transcript")
	// ErrProtocol - the remote end answered with something the client
	// could not interpret.
	ErrProtocol = errors.New("malformed streaming transcriber response")
	// ErrUpload - the audio blob could not be placed in object storage.
	ErrUpload = errors.New("audio upload failed")
	// ErrJobFailed - the remote transcription job reported failure.
	ErrJobFailed = errors.New("transcription job failed")
	// ErrPollTimeout - the job did not reach a terminal state before the
	// poll deadline.
	ErrPollTimeout = errors.New("timed out polling transcription job")
)

// StreamHandle is one live streaming-recognition exchange.
type StreamHandle interface {
	// Send enqueues one audio frame. Frames reach the remote end in the
	// order sent.
	Send(frame []byte) error

	// Close signals end-of-audio and blocks until the final transcript
	// arrives or ctx expires.
	Close(ctx context.Context) (models.TranscriptionResult, error)
}

// Streamer opens streaming-recognition exchanges.
type Streamer interface {
	Open(ctx context.Context) (StreamHandle, error)
}

// Job is a submitted batch transcription awaiting completion.
type Job interface {
	// Poll checks job status on the given interval until the job
	// completes, fails, or deadline elapses.
	Poll(ctx context.Context, interval, deadline time.Duration) (models.TranscriptionResult, error)
}

// Batcher uploads finalized utterances and starts remote transcription
// jobs.
type Batcher interface {
	Submit(ctx context.Context, utt *audio.Utterance) (Job, error)
}
