package types

// Query statuses recorded in history.
const (
	StatusPending = "pending"
	StatusOK      = "ok"
	StatusTimeout = "timeout"
	StatusError   = "error"
)

// HistoryEntry is one control query and its outcome.
type HistoryEntry struct {
	// Request id assigned by the control endpoint.
	// example: 3f2b9c1e-8f5e-4c61-9a1d-2f1b7f0c9a10
	ID string `json:"id" example:"3f2b9c1e-8f5e-4c61-9a1d-2f1b7f0c9a10"`
	// Prompt submitted with the query.
	// example: How many people are visible?
	Prompt string `json:"prompt" example:"How many people are visible?"`
	// One of pending, ok, timeout, error.
	// example: ok
	Status string `json:"status" example:"ok"`
	// Model reply (or error text when status is error).
	// example: Two people are visible.
	Reply string `json:"reply" example:"Two people are visible."`
	// RFC3339 creation time.
	CreatedAt string `json:"created_at" example:"2026-01-02T15:04:05Z"`
	// RFC3339 time of the last status change.
	UpdatedAt string `json:"updated_at" example:"2026-01-02T15:04:07Z"`
}
