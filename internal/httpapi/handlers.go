package httpapi

import (
	"encoding/base64"
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"voice-agent-service/internal/audio"
	"voice-agent-service/internal/models"
	"voice-agent-service/internal/room"
	"voice-agent-service/internal/session"
)

type processTextRequest struct {
	Text string `json:"text"`
}

type processVoiceRequest struct {
	AudioData string `json:"audio_data"`
}

type roomConnectRequest struct {
	RoomName        string `json:"room_name"`
	ParticipantName string `json:"participant_name"`
}

type errorResponse struct {
	Error string `json:"error"`
}

// voiceResultResponse is the wire shape for pipeline results. The
// internal model keeps its own field names; clients see snake_case
// keys and a `response` field.
type voiceResultResponse struct {
	SessionID       string `json:"session_id"`
	TranscribedText string `json:"transcribed_text,omitempty"`
	Mode            string `json:"mode,omitempty"`
	QueryType       string `json:"query_type,omitempty"`
	Entity          string `json:"entity,omitempty"`
	Capital         string `json:"capital,omitempty"`
	Response        string `json:"response"`
	AudioFilePath   string `json:"audio_file_path,omitempty"`
	Success         bool   `json:"success"`
	ErrorKind       string `json:"error_kind,omitempty"`
}

func toVoiceResultResponse(r models.VoiceResult) voiceResultResponse {
	return voiceResultResponse{
		SessionID:       r.SessionID,
		TranscribedText: r.TranscribedText,
		Mode:            string(r.Mode),
		QueryType:       string(r.QueryType),
		Entity:          r.Entity,
		Capital:         r.Capital,
		Response:        r.ResponseText,
		AudioFilePath:   r.AudioFilePath,
		Success:         r.Success,
		ErrorKind:       r.ErrorKind,
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, errorResponse{Error: msg})
}

func (s *Server) handleProcessText(w http.ResponseWriter, r *http.Request) {
	var req processTextRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if strings.TrimSpace(req.Text) == "" {
		writeError(w, http.StatusBadRequest, "text is required")
		return
	}

	result, err := s.pipeline.ProcessText(r.Context(), session.NewSession(), req.Text)
	if err != nil {
		s.writePipelineError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toVoiceResultResponse(result))
}

func (s *Server) handleProcessVoice(w http.ResponseWriter, r *http.Request) {
	var req processVoiceRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.AudioData == "" {
		writeError(w, http.StatusBadRequest, "audio_data is required")
		return
	}

	data, err := decodeAudio(req.AudioData)
	if err != nil {
		writeError(w, http.StatusBadRequest, "audio_data is not valid base64")
		return
	}
	if len(data) == 0 {
		writeError(w, http.StatusBadRequest, "audio_data is empty")
		return
	}

	result, err := s.pipeline.ProcessUtterance(r.Context(), session.NewSession(), audio.UtteranceFromBytes(data))
	if err != nil {
		s.writePipelineError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toVoiceResultResponse(result))
}

// decodeAudio accepts base64 payloads whose padding was stripped by the
// sender.
func decodeAudio(encoded string) ([]byte, error) {
	encoded = strings.TrimSpace(encoded)
	if rem := len(encoded) % 4; rem != 0 {
		encoded += strings.Repeat("=", 4-rem)
	}
	return base64.StdEncoding.DecodeString(encoded)
}

func (s *Server) writePipelineError(w http.ResponseWriter, err error) {
	if errors.Is(err, session.ErrSessionBusy) {
		writeError(w, http.StatusConflict, "session is already processing a request")
		return
	}
	s.log.Error().Err(err).Msg("Pipeline request failed")
	writeError(w, http.StatusInternalServerError, "internal error")
}

func (s *Server) handleAudio(w http.ResponseWriter, r *http.Request) {
	if s.store == nil {
		writeError(w, http.StatusNotFound, "audio persistence is disabled")
		return
	}
	path, err := s.store.Path(chi.URLParam(r, "filename"))
	if err != nil {
		writeError(w, http.StatusNotFound, "audio file not found")
		return
	}
	w.Header().Set("Content-Type", "audio/mpeg")
	http.ServeFile(w, r, path)
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	countries, states := s.table.Counts()

	status := map[string]any{
		"service": s.cfg.Service.Principal,
		"transcription": map[string]any{
			"provider":         s.cfg.Transcription.Provider,
			"mode":             s.cfg.Transcription.Mode,
			"fallback_enabled": s.cfg.Transcription.EnableFallback,
		},
		"dependencies": map[string]any{
			"llm_configured":     s.cfg.LLM.APIKey != "",
			"tts_configured":     s.cfg.TTS.APIKey != "",
			"livekit_configured": s.cfg.LiveKit.URL != "",
			"kafka_enabled":      s.cfg.Kafka.Enabled,
		},
		"entities": map[string]int{
			"countries": countries,
			"states":    states,
		},
	}
	if s.bridge != nil {
		status["livekit"] = s.bridge.Status()
	}
	writeJSON(w, http.StatusOK, status)
}

func (s *Server) handleEntities(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string][]string{
		"countries": s.table.Countries(),
		"states":    s.table.States(),
	})
}

func (s *Server) handleRoomConnect(w http.ResponseWriter, r *http.Request) {
	if s.bridge == nil {
		writeError(w, http.StatusServiceUnavailable, "media room support is not configured")
		return
	}

	var req roomConnectRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.RoomName == "" {
		writeError(w, http.StatusBadRequest, "room_name is required")
		return
	}
	identity := req.ParticipantName
	if identity == "" {
		identity = s.cfg.Service.Principal
	}

	if err := s.bridge.Connect(r.Context(), req.RoomName, identity); err != nil {
		if errors.Is(err, room.ErrAlreadyConnected) {
			writeError(w, http.StatusConflict, "already connected to a room")
			return
		}
		s.log.Error().Err(err).Str("room", req.RoomName).Msg("Room connect failed")
		writeError(w, http.StatusBadGateway, "failed to connect to room")
		return
	}
	writeJSON(w, http.StatusOK, s.bridge.Status())
}

func (s *Server) handleRoomDisconnect(w http.ResponseWriter, r *http.Request) {
	if s.bridge == nil {
		writeError(w, http.StatusServiceUnavailable, "media room support is not configured")
		return
	}
	if err := s.bridge.Disconnect(); err != nil {
		s.log.Error().Err(err).Msg("Room disconnect failed")
		writeError(w, http.StatusInternalServerError, "failed to disconnect")
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"disconnected": true})
}

func (s *Server) handleRoomStatus(w http.ResponseWriter, r *http.Request) {
	if s.bridge == nil {
		writeJSON(w, http.StatusOK, room.Status{Connected: false})
		return
	}
	writeJSON(w, http.StatusOK, s.bridge.Status())
}

func (s *Server) handleUtteranceStart(w http.ResponseWriter, r *http.Request) {
	s.writeUtteranceSignal(w, "recording", func() error { return s.bridge.StartUtterance() })
}

func (s *Server) handleUtteranceStop(w http.ResponseWriter, r *http.Request) {
	s.writeUtteranceSignal(w, "processing", func() error { return s.bridge.StopUtterance() })
}

func (s *Server) writeUtteranceSignal(w http.ResponseWriter, state string, signal func() error) {
	if s.bridge == nil {
		writeError(w, http.StatusServiceUnavailable, "media room support is not configured")
		return
	}
	if err := signal(); err != nil {
		switch {
		case errors.Is(err, room.ErrNotConnected):
			writeError(w, http.StatusConflict, "not connected to a room")
		case errors.Is(err, room.ErrNotRecording):
			writeError(w, http.StatusConflict, "no utterance in progress")
		default:
			s.log.Error().Err(err).Msg("Utterance signal failed")
			writeError(w, http.StatusInternalServerError, "internal error")
		}
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"state": state})
}
