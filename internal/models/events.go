package models

// TranscriptEvent is published when a transcription attempt completes.
type TranscriptEvent struct {
	EventType  string  `json:"eventType"`
	SessionID  string  `json:"sessionId"`
	Timestamp  int64   `json:"timestamp"`
	Text       string  `json:"text"`
	Confidence float64 `json:"confidence"`
	Mode       string  `json:"mode"`
}

// VoiceResultEvent is published when a pipeline run finishes, success or not.
type VoiceResultEvent struct {
	EventType string `json:"eventType"`
	SessionID string `json:"sessionId"`
	Timestamp int64  `json:"timestamp"`
	QueryType string `json:"queryType,omitempty"`
	Entity    string `json:"entity,omitempty"`
	Response  string `json:"response"`
	Success   bool   `json:"success"`
	ErrorKind string `json:"errorKind,omitempty"`
}
