// Package google provides Google Cloud transcription providers: a
// streaming recognizer and a bucket-upload batch recognizer.
package google

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"

	speech "cloud.google.com/go/speech/apiv1"
	"cloud.google.com/go/speech/apiv1/speechpb"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"voice-agent-service/internal/models"
	"voice-agent-service/internal/stt"
)

// Config holds recognition settings shared by both providers.
type Config struct {
	LanguageCode string
	SampleRateHz int
}

// StreamingTranscriber implements stt.Streamer using Google Cloud
// Speech-to-Text StreamingRecognize.
// Requires GOOGLE_APPLICATION_CREDENTIALS to be set.
type StreamingTranscriber struct {
	client *speech.Client
	cfg    Config
}

// NewStreamingTranscriber creates the underlying speech client.
func NewStreamingTranscriber(ctx context.Context, cfg Config) (*StreamingTranscriber, error) {
	c, err := speech.NewClient(ctx)
	if err != nil {
		return nil, fmt.Errorf("create speech client: %w", err)
	}
	return &StreamingTranscriber{client: c, cfg: cfg}, nil
}

// Close releases the underlying client.
func (t *StreamingTranscriber) Close() error {
	return t.client.Close()
}

// Open starts a streaming recognition exchange and sends the config as
// the first message.
func (t *StreamingTranscriber) Open(ctx context.Context) (stt.StreamHandle, error) {
	stream, err := t.client.StreamingRecognize(ctx)
	if err != nil {
		return nil, fmt.Errorf("open streaming recognize: %w: %w", stt.ErrStreamUnavailable, err)
	}

	err = stream.Send(&speechpb.StreamingRecognizeRequest{
		StreamingRequest: &speechpb.StreamingRecognizeRequest_StreamingConfig{
			StreamingConfig: &speechpb.StreamingRecognitionConfig{
				Config: &speechpb.RecognitionConfig{
					Encoding:        speechpb.RecognitionConfig_LINEAR16,
					SampleRateHertz: int32(t.cfg.SampleRateHz),
					LanguageCode:    t.cfg.LanguageCode,
				},
				InterimResults: false,
			},
		},
	})
	if err != nil {
		return nil, fmt.Errorf("send streaming config: %w: %w", stt.ErrStreamUnavailable, err)
	}

	h := &streamHandle{
		stream: stream,
		frames: make(chan []byte, 256),
		done:   make(chan struct{}),
	}
	go h.sendLoop()
	return h, nil
}

// streamHandle funnels frames through a single sender goroutine so they
// reach the service in the order given, while Send stays cheap for the
// caller.
type streamHandle struct {
	stream speechpb.Speech_StreamingRecognizeClient
	frames chan []byte
	done   chan struct{}

	mu      sync.Mutex
	closed  bool
	sendErr error
}

func (h *streamHandle) sendLoop() {
	defer close(h.done)
	for frame := range h.frames {
		err := h.stream.Send(&speechpb.StreamingRecognizeRequest{
			StreamingRequest: &speechpb.StreamingRecognizeRequest_AudioContent{
				AudioContent: frame,
			},
		})
		if err != nil {
			h.mu.Lock()
			h.sendErr = err
			h.mu.Unlock()
			// Drain the queue so Send never blocks forever.
			for range h.frames {
			}
			return
		}
	}
}

// Send enqueues one frame for transmission.
func (h *streamHandle) Send(frame []byte) error {
	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		return fmt.Errorf("send after close: %w", stt.ErrProtocol)
	}
	if err := h.sendErr; err != nil {
		h.mu.Unlock()
		return mapStreamErr(err)
	}
	h.mu.Unlock()

	h.frames <- frame
	return nil
}

// Close flushes outstanding frames, half-closes the stream and collects
// the final transcript.
func (h *streamHandle) Close(ctx context.Context) (models.TranscriptionResult, error) {
	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		return models.TranscriptionResult{}, fmt.Errorf("close called twice: %w", stt.ErrProtocol)
	}
	h.closed = true
	h.mu.Unlock()

	close(h.frames)
	select {
	case <-h.done:
	case <-ctx.Done():
		return models.TranscriptionResult{}, fmt.Errorf("flush frames: %w: %w", stt.ErrStreamTimeout, ctx.Err())
	}

	h.mu.Lock()
	sendErr := h.sendErr
	h.mu.Unlock()
	if sendErr != nil {
		return models.TranscriptionResult{}, mapStreamErr(sendErr)
	}

	if err := h.stream.CloseSend(); err != nil {
		return models.TranscriptionResult{}, mapStreamErr(err)
	}

	var (
		parts      []string
		confidence float64
	)
	for {
		resp, err := h.stream.Recv()
		if err == io.EOF {
			break
		}
		if err != nil {
			return models.TranscriptionResult{}, mapStreamErr(err)
		}
		if resp.Error != nil {
			return models.TranscriptionResult{}, fmt.Errorf("remote error %d: %s: %w",
				resp.Error.Code, resp.Error.Message, stt.ErrProtocol)
		}

		for _, r := range resp.Results {
			if !r.IsFinal || len(r.Alternatives) == 0 {
				continue
			}
			alt := r.Alternatives[0]
			parts = append(parts, alt.Transcript)
			if c := float64(alt.Confidence); c > confidence {
				confidence = c
			}
		}
	}

	text := strings.TrimSpace(strings.Join(parts, " "))
	if text == "" {
		return models.TranscriptionResult{}, fmt.Errorf("stream closed without final transcript: %w", stt.ErrProtocol)
	}

	return models.TranscriptionResult{
		Text:       text,
		Confidence: confidence,
		Mode:       models.ModeStreaming,
	}, nil
}

// mapStreamErr folds transport errors into the coordinator's taxonomy.
func mapStreamErr(err error) error {
	if errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%w: %w", stt.ErrStreamTimeout, err)
	}

	switch status.Code(err) {
	case codes.DeadlineExceeded:
		return fmt.Errorf("%w: %w", stt.ErrStreamTimeout, err)
	case codes.Unavailable, codes.Canceled, codes.Aborted:
		return fmt.Errorf("%w: %w", stt.ErrStreamUnavailable, err)
	default:
		return fmt.Errorf("%w: %w", stt.ErrProtocol, err)
	}
}
