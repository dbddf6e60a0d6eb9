package google

import (
	"context"
	"fmt"
	"strings"
	"time"

	speech "cloud.google.com/go/speech/apiv1"
	"cloud.google.com/go/speech/apiv1/speechpb"
	"cloud.google.com/go/storage"
	"github.com/rs/zerolog"

	"voice-agent-service/internal/audio"
	"voice-agent-service/internal/models"
	"voice-agent-service/internal/observability/logging"
	"voice-agent-service/internal/observability/metrics"
	"voice-agent-service/internal/stt"
)

// BatchTranscriber implements stt.Batcher: it uploads the finalized
// utterance to a GCS bucket and runs a long-running recognition job
// against the uploaded object.
type BatchTranscriber struct {
	speech  *speech.Client
	storage *storage.Client
	bucket  string
	cfg     Config
	log     zerolog.Logger
	metrics *metrics.Metrics
}

// NewBatchTranscriber creates the speech and storage clients.
func NewBatchTranscriber(ctx context.Context, bucket string, cfg Config) (*BatchTranscriber, error) {
	if bucket == "" {
		return nil, fmt.Errorf("batch transcriber requires a bucket")
	}

	sc, err := speech.NewClient(ctx)
	if err != nil {
		return nil, fmt.Errorf("create speech client: %w", err)
	}
	gcs, err := storage.NewClient(ctx)
	if err != nil {
		sc.Close()
		return nil, fmt.Errorf("create storage client: %w", err)
	}

	return &BatchTranscriber{
		speech:  sc,
		storage: gcs,
		bucket:  bucket,
		cfg:     cfg,
		log:     logging.WithComponent("batch-transcriber"),
		metrics: metrics.DefaultMetrics,
	}, nil
}

// Close releases both clients.
func (b *BatchTranscriber) Close() error {
	err := b.speech.Close()
	if cerr := b.storage.Close(); cerr != nil && err == nil {
		err = cerr
	}
	return err
}

// Submit uploads the utterance audio and starts the recognition job.
// Raw PCM is wrapped in a WAV header so the stored object stays
// self-describing.
func (b *BatchTranscriber) Submit(ctx context.Context, utt *audio.Utterance) (stt.Job, error) {
	blob := utt.Bytes()
	if !audio.IsWAV(blob) {
		blob = audio.BuildWAV(blob, b.cfg.SampleRateHz, 1)
	}

	object := fmt.Sprintf("utterances/%s.wav", utt.ID)
	w := b.storage.Bucket(b.bucket).Object(object).NewWriter(ctx)
	w.ContentType = "audio/wav"
	if _, err := w.Write(blob); err != nil {
		w.Close()
		return nil, fmt.Errorf("upload %s: %w: %w", object, stt.ErrUpload, err)
	}
	if err := w.Close(); err != nil {
		return nil, fmt.Errorf("upload %s: %w: %w", object, stt.ErrUpload, err)
	}

	uri := fmt.Sprintf("gs://%s/%s", b.bucket, object)
	b.log.Debug().Str("utteranceId", utt.ID).Str("uri", uri).Int("bytes", len(blob)).Msg("Utterance uploaded")

	op, err := b.speech.LongRunningRecognize(ctx, &speechpb.LongRunningRecognizeRequest{
		Config: &speechpb.RecognitionConfig{
			Encoding:        speechpb.RecognitionConfig_LINEAR16,
			SampleRateHertz: int32(b.cfg.SampleRateHz),
			LanguageCode:    b.cfg.LanguageCode,
		},
		Audio: &speechpb.RecognitionAudio{
			AudioSource: &speechpb.RecognitionAudio_Uri{Uri: uri},
		},
	})
	if err != nil {
		b.deleteObject(object)
		return nil, fmt.Errorf("start recognition job: %w: %w", stt.ErrJobFailed, err)
	}

	return &batchJob{parent: b, op: op, object: object, utteranceID: utt.ID}, nil
}

func (b *BatchTranscriber) deleteObject(object string) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := b.storage.Bucket(b.bucket).Object(object).Delete(ctx); err != nil {
		b.log.Warn().Err(err).Str("object", object).Msg("Failed to delete uploaded utterance")
	}
}

type batchJob struct {
	parent      *BatchTranscriber
	op          *speech.LongRunningRecognizeOperation
	object      string
	utteranceID string
}

// Poll checks job status once per interval until the job reaches a
// terminal state or the deadline elapses. The uploaded object is removed
// once the job is terminal.
func (j *batchJob) Poll(ctx context.Context, interval, deadline time.Duration) (models.TranscriptionResult, error) {
	ctx, cancel := context.WithTimeout(ctx, deadline)
	defer cancel()

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	cycles := 0
	for {
		select {
		case <-ctx.Done():
			return models.TranscriptionResult{}, fmt.Errorf("job for utterance %s: %w: %w",
				j.utteranceID, stt.ErrPollTimeout, ctx.Err())
		case <-ticker.C:
		}

		cycles++
		resp, err := j.op.Poll(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return models.TranscriptionResult{}, fmt.Errorf("job for utterance %s: %w: %w",
					j.utteranceID, stt.ErrPollTimeout, ctx.Err())
			}
			j.parent.deleteObject(j.object)
			return models.TranscriptionResult{}, fmt.Errorf("job for utterance %s: %w: %w",
				j.utteranceID, stt.ErrJobFailed, err)
		}
		if !j.op.Done() {
			continue
		}

		j.parent.metrics.RecordBatchPollCycles(cycles)
		j.parent.deleteObject(j.object)

		var (
			parts      []string
			confidence float64
		)
		for _, r := range resp.Results {
			if len(r.Alternatives) == 0 {
				continue
			}
			alt := r.Alternatives[0]
			parts = append(parts, alt.Transcript)
			if c := float64(alt.Confidence); c > confidence {
				confidence = c
			}
		}

		text := strings.TrimSpace(strings.Join(parts, " "))
		if text == "" {
			return models.TranscriptionResult{}, fmt.Errorf("job for utterance %s produced no transcript: %w",
				j.utteranceID, stt.ErrJobFailed)
		}

		return models.TranscriptionResult{
			Text:       text,
			Confidence: confidence,
			Mode:       models.ModeBatch,
		}, nil
	}
}
