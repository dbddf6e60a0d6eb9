package session

import (
	"context"
	"errors"
	"sync"
	"testing"

	"voice-agent-service/internal/audio"
	"voice-agent-service/internal/capitals"
	"voice-agent-service/internal/intent"
	"voice-agent-service/internal/models"
	"voice-agent-service/internal/stt"
)

type fakeTranscriber struct {
	result  models.TranscriptionResult
	err     error
	started chan struct{}
	block   chan struct{}
}

func (f *fakeTranscriber) Transcribe(ctx context.Context, utt *audio.Utterance) (models.TranscriptionResult, error) {
	if f.started != nil {
		close(f.started)
	}
	if f.block != nil {
		<-f.block
	}
	return f.result, f.err
}

type fakeClassifier struct {
	result models.IntentResult
	err    error
}

func (f *fakeClassifier) ClassifyIntent(ctx context.Context, text string) (models.IntentResult, error) {
	return f.result, f.err
}

func (f *fakeClassifier) GenerateAnswer(ctx context.Context, queryType models.QueryType, entity, capital string) (string, error) {
	return intent.FallbackAnswer(entity, capital), nil
}

type fakeSynth struct {
	audio []byte
	err   error
}

func (f *fakeSynth) Synthesize(ctx context.Context, text string) ([]byte, error) {
	return f.audio, f.err
}

type capturingPublisher struct {
	mu          sync.Mutex
	transcripts []models.TranscriptionResult
	results     []models.VoiceResult
}

func (p *capturingPublisher) PublishTranscript(ctx context.Context, sessionID string, res models.TranscriptionResult) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.transcripts = append(p.transcripts, res)
	return nil
}

func (p *capturingPublisher) PublishResult(ctx context.Context, result models.VoiceResult) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.results = append(p.results, result)
	return nil
}

func newOrchestrator(t *testing.T, tr Transcriber, c intent.Classifier, syn *fakeSynth, pub ResultPublisher) *Orchestrator {
	t.Helper()
	table, err := capitals.Load()
	if err != nil {
		t.Fatalf("capitals.Load failed: %v", err)
	}
	return NewOrchestrator(tr, intent.NewResolver(c, table), syn, nil, pub)
}

func TestProcessText_CountryCapital(t *testing.T) {
	o := newOrchestrator(t,
		&fakeTranscriber{},
		&fakeClassifier{result: models.IntentResult{QueryType: models.QueryCountry, Entity: "France"}},
		&fakeSynth{audio: []byte("mp3")},
		nil,
	)

	result, err := o.ProcessText(context.Background(), NewSession(), "What is the capital of France?")
	if err != nil {
		t.Fatalf("ProcessText failed: %v", err)
	}

	if !result.Success {
		t.Errorf("expected success, got %+v", result)
	}
	if result.ResponseText != "The capital of France is Paris." {
		t.Errorf("response = %q", result.ResponseText)
	}
	if result.Capital != "Paris" || result.QueryType != models.QueryCountry {
		t.Errorf("unexpected resolution: %+v", result)
	}
	if string(result.ResponseAudio) != "mp3" {
		t.Errorf("expected synthesized audio, got %q", result.ResponseAudio)
	}
}

func TestProcessText_OtherQuery(t *testing.T) {
	o := newOrchestrator(t,
		&fakeTranscriber{},
		&fakeClassifier{result: models.IntentResult{QueryType: models.QueryOther}},
		&fakeSynth{audio: []byte("mp3")},
		nil,
	)

	result, err := o.ProcessText(context.Background(), NewSession(), "What's the weather today?")
	if err != nil {
		t.Fatalf("ProcessText failed: %v", err)
	}

	if !result.Success {
		t.Error("out-of-domain queries still succeed")
	}
	if result.ResponseText != intent.UnsupportedQueryResponse {
		t.Errorf("response = %q", result.ResponseText)
	}
}

func TestProcessText_SynthesisFailureIsTextOnly(t *testing.T) {
	o := newOrchestrator(t,
		&fakeTranscriber{},
		&fakeClassifier{result: models.IntentResult{QueryType: models.QueryCountry, Entity: "Japan"}},
		&fakeSynth{err: errors.New("tts down")},
		nil,
	)

	result, err := o.ProcessText(context.Background(), NewSession(), "capital of Japan")
	if err != nil {
		t.Fatalf("ProcessText failed: %v", err)
	}

	if !result.Success {
		t.Error("synthesis failure must not fail the request")
	}
	if result.ResponseAudio != nil || result.AudioFilePath != "" {
		t.Errorf("expected no audio, got %+v", result)
	}
	if result.ResponseText != "The capital of Japan is Tokyo." {
		t.Errorf("response = %q", result.ResponseText)
	}
}

func TestProcessUtterance_Success(t *testing.T) {
	pub := &capturingPublisher{}
	o := newOrchestrator(t,
		&fakeTranscriber{result: models.TranscriptionResult{
			Text: "What is the capital of France", Confidence: 0.95, Mode: models.ModeStreaming,
		}},
		&fakeClassifier{result: models.IntentResult{QueryType: models.QueryCountry, Entity: "France"}},
		&fakeSynth{audio: []byte("mp3")},
		pub,
	)

	utt := audio.UtteranceFromBytes([]byte{1, 2, 3})
	result, err := o.ProcessUtterance(context.Background(), NewSession(), utt)
	if err != nil {
		t.Fatalf("ProcessUtterance failed: %v", err)
	}

	if !result.Success || result.Mode != models.ModeStreaming {
		t.Errorf("unexpected result: %+v", result)
	}
	if result.TranscribedText != "What is the capital of France" {
		t.Errorf("transcribedText = %q", result.TranscribedText)
	}
	if len(pub.transcripts) != 1 || len(pub.results) != 1 {
		t.Errorf("expected transcript and result events, got %d/%d", len(pub.transcripts), len(pub.results))
	}
}

func TestProcessUtterance_TranscriptionFailureContained(t *testing.T) {
	pub := &capturingPublisher{}
	o := newOrchestrator(t,
		&fakeTranscriber{err: stt.ErrPollTimeout},
		&fakeClassifier{},
		&fakeSynth{},
		pub,
	)

	result, err := o.ProcessUtterance(context.Background(), NewSession(), audio.UtteranceFromBytes([]byte{1}))
	if err != nil {
		t.Fatalf("pipeline failures must not surface as errors, got %v", err)
	}

	if result.Success {
		t.Error("expected failed result")
	}
	if result.ErrorKind != "poll_timeout" {
		t.Errorf("errorKind = %q, want poll_timeout", result.ErrorKind)
	}
	if len(pub.results) != 1 {
		t.Errorf("failed runs still publish a result event, got %d", len(pub.results))
	}
}

func TestProcessUtterance_SessionBusy(t *testing.T) {
	tr := &fakeTranscriber{
		result:  models.TranscriptionResult{Text: "hello", Mode: models.ModeStreaming},
		started: make(chan struct{}),
		block:   make(chan struct{}),
	}
	o := newOrchestrator(t,
		tr,
		&fakeClassifier{result: models.IntentResult{QueryType: models.QueryOther}},
		&fakeSynth{audio: []byte("mp3")},
		nil,
	)

	s := NewSession()
	done := make(chan struct{})
	go func() {
		defer close(done)
		o.ProcessUtterance(context.Background(), s, audio.UtteranceFromBytes([]byte{1}))
	}()

	<-tr.started
	_, err := o.ProcessUtterance(context.Background(), s, audio.UtteranceFromBytes([]byte{2}))
	if !errors.Is(err, ErrSessionBusy) {
		t.Errorf("expected ErrSessionBusy, got %v", err)
	}
	if _, err := o.ProcessText(context.Background(), s, "hi"); !errors.Is(err, ErrSessionBusy) {
		t.Errorf("expected ErrSessionBusy for text too, got %v", err)
	}

	close(tr.block)
	<-done

	// Session is reusable once the first run completes.
	if _, err := o.ProcessText(context.Background(), s, "hi"); err != nil {
		t.Errorf("expected session to be free again, got %v", err)
	}
}

func TestErrorKind(t *testing.T) {
	tests := []struct {
		err  error
		want string
	}{
		{stt.ErrStreamUnavailable, "stream_unavailable"},
		{stt.ErrStreamTimeout, "stream_timeout"},
		{stt.ErrProtocol, "protocol"},
		{stt.ErrUpload, "upload"},
		{stt.ErrJobFailed, "transcription_job"},
		{stt.ErrPollTimeout, "poll_timeout"},
		{errors.New("anything else"), "internal"},
	}
	for _, tt := range tests {
		if got := errorKind(tt.err); got != tt.want {
			t.Errorf("errorKind(%v) = %q, want %q", tt.err, got, tt.want)
		}
	}
}
