package mock

import (
	"context"
	"errors"
	"testing"
	"time"

	"voice-agent-service/internal/audio"
	"voice-agent-service/internal/models"
	"voice-agent-service/internal/stt"
)

func TestStreamer_RoundTrip(t *testing.T) {
	s := &Streamer{}
	h, err := s.Open(context.Background())
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}

	if err := h.Send([]byte{1, 2, 3}); err != nil {
		t.Fatalf("Send failed: %v", err)
	}

	res, err := h.Close(context.Background())
	if err != nil {
		t.Fatalf("Close failed: %v", err)
	}
	if res.Text == "" || res.Mode != models.ModeStreaming {
		t.Errorf("unexpected result: %+v", res)
	}
}

func TestStreamer_NoFramesIsProtocolError(t *testing.T) {
	s := &Streamer{}
	h, _ := s.Open(context.Background())

	_, err := h.Close(context.Background())
	if !errors.Is(err, stt.ErrProtocol) {
		t.Errorf("expected ErrProtocol, got %v", err)
	}
}

func TestStreamer_TimesOutUnderLatency(t *testing.T) {
	s := &Streamer{Latency: time.Second}
	h, _ := s.Open(context.Background())
	h.Send([]byte{1})

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()

	_, err := h.Close(ctx)
	if !errors.Is(err, stt.ErrStreamTimeout) {
		t.Errorf("expected ErrStreamTimeout, got %v", err)
	}
}

func TestBatcher_RoundTrip(t *testing.T) {
	b := &Batcher{}
	job, err := b.Submit(context.Background(), audio.UtteranceFromBytes([]byte{1}))
	if err != nil {
		t.Fatalf("Submit failed: %v", err)
	}

	res, err := job.Poll(context.Background(), time.Millisecond, time.Second)
	if err != nil {
		t.Fatalf("Poll failed: %v", err)
	}
	if res.Mode != models.ModeBatch {
		t.Errorf("mode = %s, want batch", res.Mode)
	}
}

func TestBatcher_EmptyUtteranceIsUploadError(t *testing.T) {
	b := &Batcher{}
	_, err := b.Submit(context.Background(), audio.UtteranceFromBytes(nil))
	if !errors.Is(err, stt.ErrUpload) {
		t.Errorf("expected ErrUpload, got %v", err)
	}
}
