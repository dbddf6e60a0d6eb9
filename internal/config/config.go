// Package config loads service configuration from environment variables.
package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// Configuration holds all runtime settings for the voice agent service.
type Configuration struct {
	Service       ServiceConfig
	Transcription TranscriptionConfig
	Batch         BatchConfig
	LLM           LLMConfig
	TTS           TTSConfig
	LiveKit       LiveKitConfig
	Kafka         KafkaConfig
	Observability ObservabilityConfig
}

// ServiceConfig holds HTTP listener and identity settings.
type ServiceConfig struct {
	Principal string
	HTTPPort  string
	AudioDir  string
}

// TranscriptionConfig selects and tunes the transcription paths.
type TranscriptionConfig struct {
	// Provider is "google" or "mock".
	Provider string
	// Mode is "streaming" or "bucket".
	Mode             string
	EnableFallback   bool
	StreamingTimeout time.Duration
	LanguageCode     string
	SampleRateHz     int
}

// BatchConfig tunes the bucket upload + job poll path.
type BatchConfig struct {
	Bucket       string
	PollInterval time.Duration
	PollDeadline time.Duration
}

// LLMConfig holds the intent classifier settings.
type LLMConfig struct {
	APIKey string
	Model  string
}

// TTSConfig holds the speech synthesis settings.
type TTSConfig struct {
	APIKey  string
	BaseURL string
	Model   string
	Voice   string
}

// LiveKitConfig holds media room connection settings.
type LiveKitConfig struct {
	URL       string
	APIKey    string
	APISecret string
}

// KafkaConfig holds event publishing settings.
type KafkaConfig struct {
	Brokers         []string
	TopicTranscript string
	TopicResult     string
	Principal       string
	Enabled         bool
}

// ObservabilityConfig holds logging and metrics settings.
type ObservabilityConfig struct {
	LogLevel    string
	MetricsAddr string
}

const minPollInterval = 250 * time.Millisecond

// Load reads configuration from the environment, applying defaults for
// anything unset. Invalid values fall back to their defaults.
func Load() *Configuration {
	principal := envOrDefault("SERVICE_PRINCIPAL", "svc-voice-agent")

	cfg := &Configuration{
		Service: ServiceConfig{
			Principal: principal,
			HTTPPort:  envOrDefault("HTTP_PORT", "8000"),
			AudioDir:  envOrDefault("AUDIO_DIR", "audio_files"),
		},
		Transcription: TranscriptionConfig{
			Provider:         envOrDefault("STT_PROVIDER", "google"),
			Mode:             envOrDefault("TRANSCRIPTION_MODE", "streaming"),
			EnableFallback:   envOrDefaultBool("ENABLE_STREAMING_FALLBACK", true),
			StreamingTimeout: envOrDefaultSeconds("STREAMING_TIMEOUT", 30*time.Second),
			LanguageCode:     envOrDefault("STT_LANGUAGE_CODE", "en-US"),
			SampleRateHz:     envOrDefaultInt("STT_SAMPLE_RATE_HZ", 16000),
		},
		Batch: BatchConfig{
			Bucket:       envOrDefault("TRANSCRIBE_BUCKET", ""),
			PollInterval: envOrDefaultDuration("BATCH_POLL_INTERVAL", 2*time.Second),
			PollDeadline: envOrDefaultDuration("BATCH_POLL_DEADLINE", 2*time.Minute),
		},
		LLM: LLMConfig{
			APIKey: os.Getenv("ANTHROPIC_API_KEY"),
			Model:  envOrDefault("LLM_MODEL", "claude-3-haiku-20240307"),
		},
		TTS: TTSConfig{
			APIKey:  os.Getenv("OPENAI_API_KEY"),
			BaseURL: envOrDefault("TTS_BASE_URL", "https://api.openai.com/v1"),
			Model:   envOrDefault("TTS_MODEL", "tts-1"),
			Voice:   envOrDefault("TTS_VOICE", "alloy"),
		},
		LiveKit: LiveKitConfig{
			URL:       os.Getenv("LIVEKIT_URL"),
			APIKey:    os.Getenv("LIVEKIT_API_KEY"),
			APISecret: os.Getenv("LIVEKIT_API_SECRET"),
		},
		Kafka: KafkaConfig{
			Brokers:         splitList(os.Getenv("KAFKA_BROKERS")),
			TopicTranscript: envOrDefault("KAFKA_TOPIC_TRANSCRIPT", "voice.transcript.final"),
			TopicResult:     envOrDefault("KAFKA_TOPIC_RESULT", "voice.result"),
			Principal:       envOrDefault("KAFKA_PRINCIPAL", principal),
			Enabled:         envOrDefaultBool("KAFKA_ENABLED", false),
		},
		Observability: ObservabilityConfig{
			LogLevel:    envOrDefault("LOG_LEVEL", "info"),
			MetricsAddr: envOrDefault("METRICS_ADDR", ":9090"),
		},
	}

	if cfg.Transcription.Provider != "google" && cfg.Transcription.Provider != "mock" {
		cfg.Transcription.Provider = "google"
	}
	if cfg.Transcription.Mode != "streaming" && cfg.Transcription.Mode != "bucket" {
		cfg.Transcription.Mode = "streaming"
	}
	if cfg.Batch.PollInterval < minPollInterval {
		cfg.Batch.PollInterval = minPollInterval
	}

	return cfg
}

func envOrDefault(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func envOrDefaultInt(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return def
}

func envOrDefaultBool(key string, def bool) bool {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(strings.ToLower(v)); err == nil {
			return b
		}
	}
	return def
}

func envOrDefaultDuration(key string, def time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return def
}

// envOrDefaultSeconds parses a bare number of seconds, e.g. "30".
func envOrDefaultSeconds(key string, def time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			return time.Duration(n) * time.Second
		}
	}
	return def
}

func splitList(v string) []string {
	if v == "" {
		return nil
	}
	parts := strings.Split(v, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if s := strings.TrimSpace(p); s != "" {
			out = append(out, s)
		}
	}
	return out
}
