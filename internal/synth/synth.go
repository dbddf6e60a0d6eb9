// Package synth turns response text into speech audio.
package synth

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"
)

// ErrSynthesis marks any failure of the TTS boundary. Callers degrade
// to a text-only result rather than failing the request.
var ErrSynthesis = errors.New("speech synthesis failed")

// Synthesizer converts text into audio bytes.
type Synthesizer interface {
	// Synthesize returns encoded audio (MP3) for the given text.
	Synthesize(ctx context.Context, text string) ([]byte, error)
}

// OpenAISynthesizer calls the OpenAI speech endpoint.
type OpenAISynthesizer struct {
	apiKey  string
	baseURL string
	model   string
	voice   string
	client  *http.Client
}

// Config holds the OpenAI TTS settings.
type Config struct {
	APIKey  string
	BaseURL string
	Model   string
	Voice   string
}

// NewOpenAISynthesizer builds a synthesizer with a dedicated HTTP client.
func NewOpenAISynthesizer(cfg Config) *OpenAISynthesizer {
	return &OpenAISynthesizer{
		apiKey:  cfg.APIKey,
		baseURL: cfg.BaseURL,
		model:   cfg.Model,
		voice:   cfg.Voice,
		client:  &http.Client{Timeout: 30 * time.Second},
	}
}

type speechRequest struct {
	Model string `json:"model"`
	Input string `json:"input"`
	Voice string `json:"voice"`
}

// Synthesize posts to /audio/speech and returns the MP3 body.
func (s *OpenAISynthesizer) Synthesize(ctx context.Context, text string) ([]byte, error) {
	body, err := json.Marshal(speechRequest{
		Model: s.model,
		Input: text,
		Voice: s.voice,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: encode request: %w", ErrSynthesis, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.baseURL+"/audio/speech", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("%w: build request: %w", ErrSynthesis, err)
	}
	req.Header.Set("Authorization", "Bearer "+s.apiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrSynthesis, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return nil, fmt.Errorf("%w: status %d: %s", ErrSynthesis, resp.StatusCode, msg)
	}

	audio, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("%w: read audio: %w", ErrSynthesis, err)
	}
	if len(audio) == 0 {
		return nil, fmt.Errorf("%w: empty audio response", ErrSynthesis)
	}
	return audio, nil
}
