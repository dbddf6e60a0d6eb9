// Package metrics provides Prometheus metrics for observability.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "voice_agent"

// Metrics holds all Prometheus metrics for the service.
type Metrics struct {
	// Pipeline metrics
	PipelineRequests *prometheus.CounterVec
	PipelineDuration *prometheus.HistogramVec
	PipelineFailures *prometheus.CounterVec
	SessionsBusy     prometheus.Counter

	// Transcription metrics
	TranscriptionAttempts *prometheus.CounterVec
	TranscriptionDuration *prometheus.HistogramVec
	StreamingFallbacks    prometheus.Counter
	BatchPollCycles       prometheus.Histogram

	// Audio metrics
	AudioBytesReceived  prometheus.Counter
	AudioFramesReceived prometheus.Counter
	AudioFilesWritten   prometheus.Counter

	// Intent metrics
	IntentQueries  *prometheus.CounterVec
	LookupMisses   prometheus.Counter
	IntentDuration prometheus.Histogram

	// Synthesis metrics
	SynthesisAttempts *prometheus.CounterVec
	SynthesisDuration prometheus.Histogram

	// Room metrics
	RoomConnects        *prometheus.CounterVec
	RoomPublishFailures prometheus.Counter
	RoomEventsQueued    prometheus.Gauge

	// Kafka publish metrics
	KafkaPublishTotal   *prometheus.CounterVec
	KafkaPublishErrors  *prometheus.CounterVec
	KafkaPublishLatency *prometheus.HistogramVec
}

// DefaultMetrics is the global metrics instance.
var DefaultMetrics = NewMetrics()

// NewMetrics creates and registers all Prometheus metrics.
func NewMetrics() *Metrics {
	return &Metrics{
		PipelineRequests: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "pipeline_requests_total",
			Help:      "Total pipeline runs by input kind",
		}, []string{"kind"}),
		PipelineDuration: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "pipeline_duration_seconds",
			Help:      "End-to-end pipeline duration in seconds",
			Buckets:   []float64{0.1, 0.25, 0.5, 1, 2, 5, 10, 30, 60},
		}, []string{"kind"}),
		PipelineFailures: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "pipeline_failures_total",
			Help:      "Pipeline runs that produced a failed result",
		}, []string{"error_kind"}),
		SessionsBusy: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "session_busy_rejections_total",
			Help:      "Utterances rejected because the session was already processing",
		}),

		TranscriptionAttempts: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "transcription_attempts_total",
			Help:      "Transcription attempts by mode and outcome",
		}, []string{"mode", "outcome"}),
		TranscriptionDuration: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "transcription_duration_seconds",
			Help:      "Transcription attempt duration in seconds",
			Buckets:   []float64{0.25, 0.5, 1, 2, 5, 10, 30, 60, 120},
		}, []string{"mode"}),
		StreamingFallbacks: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "streaming_fallbacks_total",
			Help:      "Streaming attempts that fell back to the batch path",
		}),
		BatchPollCycles: promauto.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "batch_poll_cycles",
			Help:      "Poll cycles until a batch job reached a terminal state",
			Buckets:   []float64{1, 2, 3, 5, 8, 13, 21, 34},
		}),

		AudioBytesReceived: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "audio_bytes_received_total",
			Help:      "Total audio bytes received",
		}),
		AudioFramesReceived: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "audio_frames_received_total",
			Help:      "Total audio frames received",
		}),
		AudioFilesWritten: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "audio_files_written_total",
			Help:      "Synthesized audio files persisted to disk",
		}),

		IntentQueries: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "intent_queries_total",
			Help:      "Classified queries by type",
		}, []string{"query_type"}),
		LookupMisses: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "lookup_misses_total",
			Help:      "Capital lookups where the entity was not found",
		}),
		IntentDuration: promauto.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "intent_duration_seconds",
			Help:      "Intent classification latency in seconds",
			Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5},
		}),

		SynthesisAttempts: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "synthesis_attempts_total",
			Help:      "Speech synthesis attempts by outcome",
		}, []string{"outcome"}),
		SynthesisDuration: promauto.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "synthesis_duration_seconds",
			Help:      "Speech synthesis latency in seconds",
			Buckets:   []float64{0.1, 0.25, 0.5, 1, 2, 5, 10},
		}),

		RoomConnects: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "room_connects_total",
			Help:      "Media room connection attempts by outcome",
		}, []string{"outcome"}),
		RoomPublishFailures: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "room_publish_failures_total",
			Help:      "Audio publish failures into the media room",
		}),
		RoomEventsQueued: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "room_events_queued",
			Help:      "Events currently waiting in the room bridge queue",
		}),

		KafkaPublishTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "kafka_publish_total",
			Help:      "Total number of Kafka messages published",
		}, []string{"topic", "event_type"}),
		KafkaPublishErrors: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "kafka_publish_errors_total",
			Help:      "Total number of Kafka publish errors",
		}, []string{"topic", "event_type"}),
		KafkaPublishLatency: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "kafka_publish_latency_seconds",
			Help:      "Kafka publish latency in seconds",
			Buckets:   []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1},
		}, []string{"topic"}),
	}
}

// RecordPipeline records a completed pipeline run.
func (m *Metrics) RecordPipeline(kind string, success bool, errorKind string, durationSeconds float64) {
	m.PipelineRequests.WithLabelValues(kind).Inc()
	m.PipelineDuration.WithLabelValues(kind).Observe(durationSeconds)
	if !success {
		m.PipelineFailures.WithLabelValues(errorKind).Inc()
	}
}

// RecordSessionBusy records a rejected concurrent utterance.
func (m *Metrics) RecordSessionBusy() {
	m.SessionsBusy.Inc()
}

// RecordTranscription records a transcription attempt.
func (m *Metrics) RecordTranscription(mode string, err error, durationSeconds float64) {
	outcome := "success"
	if err != nil {
		outcome = "failure"
	}
	m.TranscriptionAttempts.WithLabelValues(mode, outcome).Inc()
	m.TranscriptionDuration.WithLabelValues(mode).Observe(durationSeconds)
}

// RecordFallback records a streaming attempt handed off to the batch path.
func (m *Metrics) RecordFallback() {
	m.StreamingFallbacks.Inc()
}

// RecordBatchPollCycles records how many poll cycles a batch job took.
func (m *Metrics) RecordBatchPollCycles(cycles int) {
	m.BatchPollCycles.Observe(float64(cycles))
}

// RecordAudioReceived records audio bytes and frames received.
func (m *Metrics) RecordAudioReceived(bytes int) {
	m.AudioBytesReceived.Add(float64(bytes))
	m.AudioFramesReceived.Inc()
}

// RecordAudioFileWritten records a synthesized audio file persisted.
func (m *Metrics) RecordAudioFileWritten() {
	m.AudioFilesWritten.Inc()
}

// RecordIntent records a classification outcome.
func (m *Metrics) RecordIntent(queryType string, durationSeconds float64) {
	m.IntentQueries.WithLabelValues(queryType).Inc()
	m.IntentDuration.Observe(durationSeconds)
}

// RecordLookupMiss records an entity the capitals table did not contain.
func (m *Metrics) RecordLookupMiss() {
	m.LookupMisses.Inc()
}

// RecordSynthesis records a synthesis attempt.
func (m *Metrics) RecordSynthesis(err error, durationSeconds float64) {
	outcome := "success"
	if err != nil {
		outcome = "failure"
	}
	m.SynthesisAttempts.WithLabelValues(outcome).Inc()
	m.SynthesisDuration.Observe(durationSeconds)
}

// RecordRoomConnect records a media room connection attempt.
func (m *Metrics) RecordRoomConnect(err error) {
	outcome := "success"
	if err != nil {
		outcome = "failure"
	}
	m.RoomConnects.WithLabelValues(outcome).Inc()
}

// RecordRoomPublishFailure records a failed audio publish into the room.
func (m *Metrics) RecordRoomPublishFailure() {
	m.RoomPublishFailures.Inc()
}

// RecordKafkaPublish records a Kafka publish attempt.
func (m *Metrics) RecordKafkaPublish(topic, eventType string, err error, latencySeconds float64) {
	m.KafkaPublishTotal.WithLabelValues(topic, eventType).Inc()
	m.KafkaPublishLatency.WithLabelValues(topic).Observe(latencySeconds)
	if err != nil {
		m.KafkaPublishErrors.WithLabelValues(topic, eventType).Inc()
	}
}
