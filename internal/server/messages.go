package server

import "time"

// CreateContextRequest loads a model. Secondary opens a context that
// coexists with the current one instead of replacing it.
type CreateContextRequest struct {
	ModelPath string            `json:"model_path"`
	Language  string            `json:"language,omitempty"`
	Secondary bool              `json:"secondary,omitempty"`
	Metadata  map[string]string `json:"metadata,omitempty"`
}

type CreateContextResponse struct {
	Handle uint64 `json:"handle"`
	Status string `json:"status"`
}

// TranscribeRequest carries either float samples or little-endian PCM16
// bytes, never both.
type TranscribeRequest struct {
	Handle  uint64    `json:"handle"`
	Samples []float32 `json:"samples,omitempty"`
	PCM16   []byte    `json:"pcm16,omitempty"`
}

type Segment struct {
	Text    string `json:"text"`
	StartMs int64  `json:"start_ms"`
	EndMs   int64  `json:"end_ms"`
}

type TranscribeResponse struct {
	Text      string            `json:"text"`
	Status    string            `json:"status"`
	RequestID string            `json:"request_id,omitempty"`
	Samples   int               `json:"samples"`
	Segments  []Segment         `json:"segments,omitempty"`
	Metadata  map[string]string `json:"metadata,omitempty"`
}

type ReleaseContextRequest struct {
	Handle uint64 `json:"handle"`
}

type ReleaseContextResponse struct{}

type ListContextsRequest struct{}

type ContextInfo struct {
	Handle    uint64    `json:"handle"`
	ModelPath string    `json:"model_path"`
	Language  string    `json:"language"`
	State     string    `json:"state"`
	Current   bool      `json:"current"`
	LoadedAt  time.Time `json:"loaded_at"`
}

type ListContextsResponse struct {
	Contexts []ContextInfo `json:"contexts"`
}
