package models

// SearchResponse is the response for GET /api/v1/search (and /api/scrape).
type SearchResponse struct {
	// Products is the ordered result set. Never null: zero matches is [].
	Products []Product `json:"products"`

	// Query is the query actually searched, after defaulting.
	Query string `json:"query,omitempty"`

	// Timing provides duration breakdowns for the operation.
	Timing *TimingInfo `json:"timing,omitempty"`

	// Error is populated only when the search failed.
	Error *ErrorDetail `json:"error,omitempty"`
}

// TimingInfo breaks down the time spent serving a search.
type TimingInfo struct {
	// TotalMs is the end-to-end duration in milliseconds.
	TotalMs int64 `json:"total_ms"`
}

// HealthResponse is the response for GET /api/v1/health.
type HealthResponse struct {
	Status       string       `json:"status"` // "healthy" or "degraded"
	Uptime       string       `json:"uptime"`
	SessionStats SessionStats `json:"session_stats"`
	Version      string       `json:"version"`
}

// SessionStats reports renderer session usage.
type SessionStats struct {
	Engine         string `json:"engine"`
	MaxSessions    int    `json:"max_sessions"`
	ActiveSessions int    `json:"active_sessions"`
}
