package httpapi

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"voice-agent-service/internal/audio"
	"voice-agent-service/internal/capitals"
	"voice-agent-service/internal/config"
	"voice-agent-service/internal/models"
	"voice-agent-service/internal/room"
	"voice-agent-service/internal/session"
)

type fakePipeline struct {
	textResult models.VoiceResult
	uttResult  models.VoiceResult
	err        error

	lastText     string
	lastUttBytes []byte
}

func (f *fakePipeline) ProcessText(ctx context.Context, s *session.Session, text string) (models.VoiceResult, error) {
	f.lastText = text
	return f.textResult, f.err
}

func (f *fakePipeline) ProcessUtterance(ctx context.Context, s *session.Session, utt *audio.Utterance) (models.VoiceResult, error) {
	f.lastUttBytes = utt.Bytes()
	return f.uttResult, f.err
}

type fakeBridge struct {
	status     room.Status
	connectErr error
	startErr   error
	stopErr    error

	connectedRoom string
	disconnected  bool
}

func (f *fakeBridge) Connect(ctx context.Context, roomName, identity string) error {
	if f.connectErr != nil {
		return f.connectErr
	}
	f.connectedRoom = roomName
	f.status = room.Status{Connected: true, RoomName: roomName}
	return nil
}

func (f *fakeBridge) Disconnect() error {
	f.disconnected = true
	f.status = room.Status{}
	return nil
}

func (f *fakeBridge) StartUtterance() error { return f.startErr }
func (f *fakeBridge) StopUtterance() error  { return f.stopErr }
func (f *fakeBridge) Status() room.Status   { return f.status }

func testConfig() *config.Configuration {
	return &config.Configuration{
		Service: config.ServiceConfig{Principal: "svc-voice-agent"},
		Transcription: config.TranscriptionConfig{
			Provider:       "mock",
			Mode:           "streaming",
			EnableFallback: true,
		},
	}
}

func newTestServer(t *testing.T, pipeline Pipeline, bridge RoomControl, store *audio.Store) http.Handler {
	t.Helper()
	table, err := capitals.Load()
	if err != nil {
		t.Fatalf("capitals.Load failed: %v", err)
	}
	return New(testConfig(), pipeline, bridge, store, table).Router()
}

func doJSON(t *testing.T, h http.Handler, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestProcessText(t *testing.T) {
	pipeline := &fakePipeline{textResult: models.VoiceResult{
		Success:      true,
		ResponseText: "The capital of France is Paris.",
		Capital:      "Paris",
	}}
	h := newTestServer(t, pipeline, nil, nil)

	rec := doJSON(t, h, http.MethodPost, "/process-text", `{"text":"What is the capital of France?"}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body)
	}

	var result struct {
		Response string `json:"response"`
		Capital  string `json:"capital"`
		Success  bool   `json:"success"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &result); err != nil {
		t.Fatalf("bad response body: %v", err)
	}
	if !result.Success || result.Capital != "Paris" {
		t.Errorf("unexpected result: %+v", result)
	}
	if result.Response != "The capital of France is Paris." {
		t.Errorf("response = %q", result.Response)
	}
	if pipeline.lastText != "What is the capital of France?" {
		t.Errorf("pipeline got text %q", pipeline.lastText)
	}
}

func TestVoiceResult_WireKeys(t *testing.T) {
	pipeline := &fakePipeline{uttResult: models.VoiceResult{
		SessionID:       "s-1",
		TranscribedText: "What is the capital of France",
		Mode:            models.ModeStreaming,
		QueryType:       models.QueryCountry,
		Entity:          "France",
		Capital:         "Paris",
		ResponseText:    "The capital of France is Paris.",
		AudioFilePath:   "response_abc.mp3",
		Success:         true,
	}}
	h := newTestServer(t, pipeline, nil, nil)

	body, _ := json.Marshal(processVoiceRequest{AudioData: base64.StdEncoding.EncodeToString([]byte{1, 2})})
	rec := doJSON(t, h, http.MethodPost, "/process-voice", string(body))
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body)
	}

	var raw map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &raw); err != nil {
		t.Fatalf("bad response body: %v", err)
	}
	for _, key := range []string{
		"session_id", "transcribed_text", "mode", "query_type",
		"entity", "capital", "response", "audio_file_path", "success",
	} {
		if _, ok := raw[key]; !ok {
			t.Errorf("missing key %q in response body %s", key, rec.Body)
		}
	}
	for _, key := range []string{"responseText", "transcribedText", "audioFilePath"} {
		if _, ok := raw[key]; ok {
			t.Errorf("unexpected key %q in response body", key)
		}
	}
}

func TestProcessText_Validation(t *testing.T) {
	h := newTestServer(t, &fakePipeline{}, nil, nil)

	if rec := doJSON(t, h, http.MethodPost, "/process-text", `{"text":"  "}`); rec.Code != http.StatusBadRequest {
		t.Errorf("blank text: status = %d", rec.Code)
	}
	if rec := doJSON(t, h, http.MethodPost, "/process-text", `{broken`); rec.Code != http.StatusBadRequest {
		t.Errorf("malformed body: status = %d", rec.Code)
	}
}

func TestProcessText_SessionBusy(t *testing.T) {
	h := newTestServer(t, &fakePipeline{err: session.ErrSessionBusy}, nil, nil)

	rec := doJSON(t, h, http.MethodPost, "/process-text", `{"text":"hello"}`)
	if rec.Code != http.StatusConflict {
		t.Errorf("status = %d, want 409", rec.Code)
	}
}

func TestProcessVoice(t *testing.T) {
	pipeline := &fakePipeline{uttResult: models.VoiceResult{Success: true, ResponseText: "ok"}}
	h := newTestServer(t, pipeline, nil, nil)

	payload := []byte{0x01, 0x02, 0x03, 0x04, 0x05}
	encoded := base64.StdEncoding.EncodeToString(payload)
	body, _ := json.Marshal(processVoiceRequest{AudioData: encoded})

	rec := doJSON(t, h, http.MethodPost, "/process-voice", string(body))
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body)
	}
	if !bytes.Equal(pipeline.lastUttBytes, payload) {
		t.Errorf("pipeline got bytes %v, want %v", pipeline.lastUttBytes, payload)
	}
}

func TestProcessVoice_RepairsStrippedPadding(t *testing.T) {
	pipeline := &fakePipeline{uttResult: models.VoiceResult{Success: true}}
	h := newTestServer(t, pipeline, nil, nil)

	payload := []byte{0x01, 0x02, 0x03, 0x04, 0x05}
	encoded := strings.TrimRight(base64.StdEncoding.EncodeToString(payload), "=")
	body, _ := json.Marshal(processVoiceRequest{AudioData: encoded})

	rec := doJSON(t, h, http.MethodPost, "/process-voice", string(body))
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body)
	}
	if !bytes.Equal(pipeline.lastUttBytes, payload) {
		t.Errorf("pipeline got bytes %v, want %v", pipeline.lastUttBytes, payload)
	}
}

func TestProcessVoice_Validation(t *testing.T) {
	h := newTestServer(t, &fakePipeline{}, nil, nil)

	if rec := doJSON(t, h, http.MethodPost, "/process-voice", `{"audio_data":""}`); rec.Code != http.StatusBadRequest {
		t.Errorf("empty audio: status = %d", rec.Code)
	}
	if rec := doJSON(t, h, http.MethodPost, "/process-voice", `{"audio_data":"!!!not-base64!!!"}`); rec.Code != http.StatusBadRequest {
		t.Errorf("bad base64: status = %d", rec.Code)
	}
}

func TestAudioDownload(t *testing.T) {
	store, err := audio.NewStore(t.TempDir())
	if err != nil {
		t.Fatalf("NewStore failed: %v", err)
	}
	name, err := store.Save([]byte("mp3-bytes"), "mp3")
	if err != nil {
		t.Fatalf("Save failed: %v", err)
	}
	h := newTestServer(t, &fakePipeline{}, nil, store)

	rec := doJSON(t, h, http.MethodGet, "/audio/"+name, "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	if rec.Body.String() != "mp3-bytes" {
		t.Errorf("body = %q", rec.Body.String())
	}
	if ct := rec.Header().Get("Content-Type"); ct != "audio/mpeg" {
		t.Errorf("content type = %q", ct)
	}

	if rec := doJSON(t, h, http.MethodGet, "/audio/no-such-file.mp3", ""); rec.Code != http.StatusNotFound {
		t.Errorf("missing file: status = %d", rec.Code)
	}
}

func TestStatus(t *testing.T) {
	h := newTestServer(t, &fakePipeline{}, &fakeBridge{}, nil)

	rec := doJSON(t, h, http.MethodGet, "/status", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}

	var status struct {
		Service       string `json:"service"`
		Transcription struct {
			Provider string `json:"provider"`
			Mode     string `json:"mode"`
		} `json:"transcription"`
		Entities struct {
			Countries int `json:"countries"`
			States    int `json:"states"`
		} `json:"entities"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &status); err != nil {
		t.Fatalf("bad response body: %v", err)
	}
	if status.Service != "svc-voice-agent" || status.Transcription.Provider != "mock" {
		t.Errorf("unexpected status: %+v", status)
	}
	if status.Entities.Countries == 0 || status.Entities.States != 50 {
		t.Errorf("unexpected entity counts: %+v", status.Entities)
	}
}

func TestEntities(t *testing.T) {
	h := newTestServer(t, &fakePipeline{}, nil, nil)

	rec := doJSON(t, h, http.MethodGet, "/entities", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}

	var entities map[string][]string
	if err := json.Unmarshal(rec.Body.Bytes(), &entities); err != nil {
		t.Fatalf("bad response body: %v", err)
	}
	if len(entities["states"]) != 50 {
		t.Errorf("states = %d, want 50", len(entities["states"]))
	}
	found := false
	for _, c := range entities["countries"] {
		if c == "France" {
			found = true
		}
	}
	if !found {
		t.Error("expected France in countries")
	}
}

func TestRoomConnect(t *testing.T) {
	bridge := &fakeBridge{}
	h := newTestServer(t, &fakePipeline{}, bridge, nil)

	rec := doJSON(t, h, http.MethodPost, "/livekit/connect", `{"room_name":"demo"}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body)
	}
	if bridge.connectedRoom != "demo" {
		t.Errorf("connected room = %q", bridge.connectedRoom)
	}

	if rec := doJSON(t, h, http.MethodPost, "/livekit/connect", `{}`); rec.Code != http.StatusBadRequest {
		t.Errorf("missing room_name: status = %d", rec.Code)
	}
}

func TestRoomConnect_AlreadyConnected(t *testing.T) {
	bridge := &fakeBridge{connectErr: room.ErrAlreadyConnected}
	h := newTestServer(t, &fakePipeline{}, bridge, nil)

	rec := doJSON(t, h, http.MethodPost, "/livekit/connect", `{"room_name":"demo"}`)
	if rec.Code != http.StatusConflict {
		t.Errorf("status = %d, want 409", rec.Code)
	}
}

func TestRoomDisconnectAndStatus(t *testing.T) {
	bridge := &fakeBridge{status: room.Status{Connected: true, RoomName: "demo"}}
	h := newTestServer(t, &fakePipeline{}, bridge, nil)

	rec := doJSON(t, h, http.MethodGet, "/livekit/status", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	var st room.Status
	if err := json.Unmarshal(rec.Body.Bytes(), &st); err != nil {
		t.Fatalf("bad response body: %v", err)
	}
	if !st.Connected || st.RoomName != "demo" {
		t.Errorf("unexpected status: %+v", st)
	}
	if !strings.Contains(rec.Body.String(), `"room_name":"demo"`) {
		t.Errorf("expected snake_case room_name key, body %s", rec.Body)
	}

	if rec := doJSON(t, h, http.MethodPost, "/livekit/disconnect", ""); rec.Code != http.StatusOK {
		t.Errorf("disconnect: status = %d", rec.Code)
	}
	if !bridge.disconnected {
		t.Error("bridge not disconnected")
	}
}

func TestUtteranceSignals(t *testing.T) {
	bridge := &fakeBridge{}
	h := newTestServer(t, &fakePipeline{}, bridge, nil)

	if rec := doJSON(t, h, http.MethodPost, "/livekit/utterance/start", ""); rec.Code != http.StatusOK {
		t.Errorf("start: status = %d", rec.Code)
	}
	if rec := doJSON(t, h, http.MethodPost, "/livekit/utterance/stop", ""); rec.Code != http.StatusOK {
		t.Errorf("stop: status = %d", rec.Code)
	}

	bridge.startErr = room.ErrNotConnected
	if rec := doJSON(t, h, http.MethodPost, "/livekit/utterance/start", ""); rec.Code != http.StatusConflict {
		t.Errorf("start while disconnected: status = %d", rec.Code)
	}
	bridge.stopErr = room.ErrNotRecording
	if rec := doJSON(t, h, http.MethodPost, "/livekit/utterance/stop", ""); rec.Code != http.StatusConflict {
		t.Errorf("stop without start: status = %d", rec.Code)
	}
}

func TestHealthEndpoints(t *testing.T) {
	h := newTestServer(t, &fakePipeline{}, nil, nil)

	if rec := doJSON(t, h, http.MethodGet, "/v1/liveness", ""); rec.Code != http.StatusOK {
		t.Errorf("liveness: status = %d", rec.Code)
	}
	if rec := doJSON(t, h, http.MethodGet, "/v1/readiness", ""); rec.Code != http.StatusOK {
		t.Errorf("readiness: status = %d", rec.Code)
	}
}
