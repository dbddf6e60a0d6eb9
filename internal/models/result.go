// Package models defines the data structures shared across the voice pipeline.
package models

// TranscriptionMode identifies which transcription path produced a result.
type TranscriptionMode string

const (
	// ModeStreaming - result produced by the realtime streaming recognizer.
	ModeStreaming TranscriptionMode = "streaming"
	// ModeBatch - result produced by the bucket upload + job poll path.
	ModeBatch TranscriptionMode = "batch"
)

// TranscriptionResult is the outcome of one transcription attempt.
// Mode always reflects the path that actually produced the text, which
// may differ from the configured preference when fallback kicked in.
type TranscriptionResult struct {
	Text       string            `json:"text"`
	Confidence float64           `json:"confidence"`
	Mode       TranscriptionMode `json:"mode"`
}

// QueryType classifies what the user asked about.
type QueryType string

const (
	QueryCountry QueryType = "country"
	QueryState   QueryType = "state"
	QueryOther   QueryType = "other"
)

// IntentResult is the classifier's verdict for one utterance.
type IntentResult struct {
	QueryType QueryType `json:"queryType"`
	Entity    string    `json:"entity,omitempty"`
}

// VoiceResult is the terminal outcome of processing one utterance or one
// text query. Pipeline failures are folded into Success/ErrorKind rather
// than surfaced as errors; callers always receive a usable result.
type VoiceResult struct {
	SessionID       string            `json:"sessionId"`
	TranscribedText string            `json:"transcribedText,omitempty"`
	Mode            TranscriptionMode `json:"mode,omitempty"`
	QueryType       QueryType         `json:"queryType,omitempty"`
	Entity          string            `json:"entity,omitempty"`
	Capital         string            `json:"capital,omitempty"`
	ResponseText    string            `json:"responseText"`
	ResponseAudio   []byte            `json:"-"`
	AudioFilePath   string            `json:"audioFilePath,omitempty"`
	Success         bool              `json:"success"`
	ErrorKind       string            `json:"errorKind,omitempty"`
}
