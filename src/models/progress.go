package models

// -----------------------------------------------------------------------------
// Progress events pushed to websocket subscribers
// -----------------------------------------------------------------------------

type MProgressEvent struct {
	RunID     string `json:"run_id"`
	Kind      string `json:"kind"` // "task", "issuer", "run_started", "run_finished"
	Symbol    string `json:"symbol,omitempty"`
	Year      int    `json:"year,omitempty"`
	Done      int    `json:"done"`
	Total     int    `json:"total"`
	Success   bool   `json:"success"`
	Message   string `json:"message,omitempty"`
	Timestamp int64  `json:"timestamp"`
}

// -----------------------------------------------------------------------------
// SubscribeCommand for client messages
// -----------------------------------------------------------------------------

type MSubscribeCommand struct {
	Command string `json:"command"`
	RunID   string `json:"run_id"`
}

// -----------------------------------------------------------------------------
// Service status reported by /api/health and the gRPC control plane
// -----------------------------------------------------------------------------

type MServiceStatus struct {
	Name              string  `json:"name"`
	DBType            string  `json:"db_type"`
	Issuers           int     `json:"issuers"`
	SessionsIdle      int     `json:"sessions_idle"`
	SessionsInUse     int     `json:"sessions_in_use"`
	SessionsCreated   int     `json:"sessions_created"`
	SessionsDiscarded int     `json:"sessions_discarded"`
	UptimeSeconds     float64 `json:"uptime_seconds"`
}
