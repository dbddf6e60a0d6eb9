// Package httpapi exposes the voice pipeline over REST.
package httpapi

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"

	"voice-agent-service/internal/audio"
	"voice-agent-service/internal/capitals"
	"voice-agent-service/internal/config"
	"voice-agent-service/internal/models"
	"voice-agent-service/internal/observability/logging"
	"voice-agent-service/internal/room"
	"voice-agent-service/internal/session"
)

// Pipeline runs queries through the voice pipeline.
type Pipeline interface {
	ProcessText(ctx context.Context, s *session.Session, text string) (models.VoiceResult, error)
	ProcessUtterance(ctx context.Context, s *session.Session, utt *audio.Utterance) (models.VoiceResult, error)
}

// RoomControl drives the media-room bridge.
type RoomControl interface {
	Connect(ctx context.Context, roomName, identity string) error
	Disconnect() error
	StartUtterance() error
	StopUtterance() error
	Status() room.Status
}

// Server holds the handler dependencies.
type Server struct {
	cfg      *config.Configuration
	pipeline Pipeline
	bridge   RoomControl
	store    *audio.Store
	table    *capitals.Table
	log      zerolog.Logger
}

// New constructs the API server. bridge and store may be nil; the
// corresponding endpoints then report the feature as unavailable.
func New(cfg *config.Configuration, pipeline Pipeline, bridge RoomControl, store *audio.Store, table *capitals.Table) *Server {
	return &Server{
		cfg:      cfg,
		pipeline: pipeline,
		bridge:   bridge,
		store:    store,
		table:    table,
		log:      logging.WithComponent("httpapi"),
	}
}

// Router constructs the HTTP router for the service.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()

	// Basic middleware
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)

	// Health endpoints
	r.Get("/v1/liveness", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	r.Get("/v1/readiness", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ready"))
	})

	r.Post("/process-text", s.handleProcessText)
	r.Post("/process-voice", s.handleProcessVoice)
	r.Get("/audio/{filename}", s.handleAudio)
	r.Get("/status", s.handleStatus)
	r.Get("/entities", s.handleEntities)

	r.Route("/livekit", func(r chi.Router) {
		r.Post("/connect", s.handleRoomConnect)
		r.Post("/disconnect", s.handleRoomDisconnect)
		r.Get("/status", s.handleRoomStatus)
		r.Post("/utterance/start", s.handleUtteranceStart)
		r.Post("/utterance/stop", s.handleUtteranceStop)
	})

	return r
}
