package analytics

import "time"

type EventType string

const (
	EventSearch   EventType = "search"
	EventIndexDoc EventType = "index_document"
)

// Envelope is decoded first to route a message by its Type.
type Envelope struct {
	Type EventType `json:"type"`
}

type SearchEvent struct {
	Type      EventType `json:"type"`
	Query     string    `json:"query"`
	Rewritten string    `json:"rewritten"`
	Ignored   []string  `json:"ignored,omitempty"`
	TotalHits uint64    `json:"total_hits"`
	Returned  int       `json:"returned"`
	Snippets  int       `json:"snippets"`
	LatencyMs int64     `json:"latency_ms"`
	CacheHit  bool      `json:"cache_hit"`
	Timestamp time.Time `json:"timestamp"`
	RequestID string    `json:"request_id"`
}

type IndexEvent struct {
	Type       EventType `json:"type"`
	DocumentID string    `json:"document_id"`
	SizeBytes  int       `json:"size_bytes"`
	LatencyMs  int64     `json:"latency_ms"`
	Timestamp  time.Time `json:"timestamp"`
}
