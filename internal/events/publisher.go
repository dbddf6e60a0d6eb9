// Package events provides event publishing functionality.
package events

import (
	"context"
	"encoding/json"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/segmentio/kafka-go"

	"voice-agent-service/internal/models"
	"voice-agent-service/internal/observability/metrics"
)

// Publisher publishes pipeline events to separate Kafka topics: final
// transcripts and voice results.
type Publisher struct {
	writerTranscript *kafka.Writer
	writerResult     *kafka.Writer
	principal        string
	topicTranscript  string
	topicResult      string
	enabled          bool
	metrics          *metrics.Metrics
}

// Config holds Kafka publisher configuration.
type Config struct {
	Brokers         []string
	TopicTranscript string
	TopicResult     string
	Principal       string
	Enabled         bool
}

// New creates a Kafka event publisher. With Kafka disabled or no brokers
// configured the publisher runs in log-only mode.
func New(cfg *Config) *Publisher {
	m := metrics.DefaultMetrics

	if cfg == nil {
		log.Info().Msg("Kafka disabled (nil config), using log-only mode")
		return &Publisher{
			enabled: false,
			metrics: m,
		}
	}

	if !cfg.Enabled || len(cfg.Brokers) == 0 {
		log.Info().Msg("Kafka disabled, using log-only mode")
		return &Publisher{
			principal:       cfg.Principal,
			topicTranscript: cfg.TopicTranscript,
			topicResult:     cfg.TopicResult,
			enabled:         false,
			metrics:         m,
		}
	}

	// Longer dial timeout for DNS resolution in Kubernetes.
	dialer := &kafka.Dialer{
		Timeout:   10 * time.Second,
		DualStack: true,
	}

	transport := &kafka.Transport{
		Dial: dialer.DialFunc,
	}

	writerTranscript := &kafka.Writer{
		Addr:         kafka.TCP(cfg.Brokers...),
		Topic:        cfg.TopicTranscript,
		Balancer:     &kafka.LeastBytes{},
		BatchTimeout: 10 * time.Millisecond,
		WriteTimeout: 10 * time.Second,
		RequiredAcks: kafka.RequireOne,
		Transport:    transport,
	}

	writerResult := &kafka.Writer{
		Addr:         kafka.TCP(cfg.Brokers...),
		Topic:        cfg.TopicResult,
		Balancer:     &kafka.LeastBytes{},
		BatchTimeout: 10 * time.Millisecond,
		WriteTimeout: 10 * time.Second,
		RequiredAcks: kafka.RequireOne,
		Transport:    transport,
	}

	log.Info().
		Strs("brokers", cfg.Brokers).
		Str("topicTranscript", cfg.TopicTranscript).
		Str("topicResult", cfg.TopicResult).
		Str("principal", cfg.Principal).
		Msg("Kafka publisher initialized")

	return &Publisher{
		writerTranscript: writerTranscript,
		writerResult:     writerResult,
		principal:        cfg.Principal,
		topicTranscript:  cfg.TopicTranscript,
		topicResult:      cfg.TopicResult,
		enabled:          true,
		metrics:          m,
	}
}

// PublishTranscript publishes a completed transcription.
func (p *Publisher) PublishTranscript(ctx context.Context, sessionID string, res models.TranscriptionResult) error {
	event := models.TranscriptEvent{
		EventType:  "transcript.final",
		SessionID:  sessionID,
		Timestamp:  time.Now().UnixMilli(),
		Text:       res.Text,
		Confidence: res.Confidence,
		Mode:       string(res.Mode),
	}
	return p.publish(ctx, p.writerTranscript, p.topicTranscript, "transcript", sessionID, event)
}

// PublishResult publishes a finished pipeline run.
func (p *Publisher) PublishResult(ctx context.Context, result models.VoiceResult) error {
	event := models.VoiceResultEvent{
		EventType: "voice.result",
		SessionID: result.SessionID,
		Timestamp: time.Now().UnixMilli(),
		QueryType: string(result.QueryType),
		Entity:    result.Entity,
		Response:  result.ResponseText,
		Success:   result.Success,
		ErrorKind: result.ErrorKind,
	}
	return p.publish(ctx, p.writerResult, p.topicResult, "result", result.SessionID, event)
}

// publish is the internal method that writes to a specific Kafka writer.
func (p *Publisher) publish(ctx context.Context, writer *kafka.Writer, topic, eventType, key string, event any) error {
	start := time.Now()

	payload, err := json.Marshal(event)
	if err != nil {
		log.Error().Err(err).Str("topic", topic).Msg("Failed to marshal event")
		return err
	}

	log.Debug().
		Str("principal", p.principal).
		Str("topic", topic).
		Str("key", key).
		RawJSON("payload", payload).
		Msg("Publishing event")

	// If Kafka is disabled, just log
	if !p.enabled || writer == nil {
		p.metrics.RecordKafkaPublish(topic, eventType, nil, time.Since(start).Seconds())
		return nil
	}

	msg := kafka.Message{
		Key:   []byte(key),
		Value: payload,
		Headers: []kafka.Header{
			{Key: "eventType", Value: []byte(eventType)},
			{Key: "principal", Value: []byte(p.principal)},
		},
	}

	if err := writer.WriteMessages(ctx, msg); err != nil {
		log.Error().
			Err(err).
			Str("topic", topic).
			Str("key", key).
			Msg("Failed to write to Kafka")
		p.metrics.RecordKafkaPublish(topic, eventType, err, time.Since(start).Seconds())
		return err
	}

	p.metrics.RecordKafkaPublish(topic, eventType, nil, time.Since(start).Seconds())
	return nil
}

// Close closes both Kafka writers.
func (p *Publisher) Close() error {
	var err error
	if p.writerTranscript != nil {
		if e := p.writerTranscript.Close(); e != nil {
			log.Error().Err(e).Msg("Error closing transcript writer")
			err = e
		}
	}
	if p.writerResult != nil {
		if e := p.writerResult.Close(); e != nil {
			log.Error().Err(e).Msg("Error closing result writer")
			err = e
		}
	}
	return err
}
