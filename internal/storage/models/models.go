package models

import "time"

const (
	RunStatusOK     = "ok"
	RunStatusFailed = "failed"
)

// GenerationRun is one pipeline call as recorded for diagnostics. RawContent is
// kept only for failed runs.
type GenerationRun struct {
	TraceID          string    `json:"trace_id"`
	Flow             string    `json:"flow"`
	Model            string    `json:"model"`
	Status           string    `json:"status"`
	ErrorKind        string    `json:"error_kind,omitempty"`
	ErrorMessage     string    `json:"error_message,omitempty"`
	RawContent       string    `json:"raw_content,omitempty"`
	KbItemIDs        []string  `json:"kb_item_ids"`
	PromptTokens     int       `json:"prompt_tokens"`
	CompletionTokens int       `json:"completion_tokens"`
	Cached           bool      `json:"cached"`
	LatencyMS        int       `json:"latency_ms"`
	CreatedAt        time.Time `json:"created_at"`
}

type RunStats struct {
	Flow       string  `json:"flow"`
	Total      int     `json:"total"`
	Failed     int     `json:"failed"`
	AvgLatency float64 `json:"avg_latency_ms"`
}
