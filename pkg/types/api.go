package types

// ErrorResponse is a consistent JSON error payload.
type ErrorResponse struct {
	// Error message.
	// example: inference failed
	Error string `json:"error" example:"inference failed"`
	// HTTP status code.
	// example: 502
	Code int `json:"code" example:"502"`
}

// StatusResponse is returned by GET /status.
type StatusResponse struct {
	// Whether the frame loop is running.
	// example: true
	Running bool `json:"running" example:"true"`
	// Whether a model call is currently outstanding.
	// example: false
	Busy bool `json:"busy" example:"false"`
	// Prompt the loop is currently submitting with.
	// example: Describe the scene.
	Prompt string `json:"prompt" example:"Describe the scene."`
	// Request id the current prompt belongs to.
	// example: 3f2b9c1e-8f5e-4c61-9a1d-2f1b7f0c9a10
	PromptID string `json:"prompt_id,omitempty" example:"3f2b9c1e-8f5e-4c61-9a1d-2f1b7f0c9a10"`
	// Most recent reply from the model.
	// example: A person is walking a dog across the street.
	LastReply string `json:"last_reply,omitempty" example:"A person is walking a dog across the street."`
	// Last inference error observed, if any.
	LastError string `json:"last_error,omitempty"`
	// Prompts waiting in the mailbox.
	// example: 0
	MailboxDepth int `json:"mailbox_depth" example:"0"`
	// Replies waiting to be collected.
	// example: 1
	PendingReplies int `json:"pending_replies" example:"1"`
	// Frames read since start.
	// example: 1200
	Frames uint64 `json:"frames" example:"1200"`
	// Frames not submitted because a call was in flight.
	// example: 1150
	FramesSkipped uint64 `json:"frames_skipped" example:"1150"`
	// Model calls started since start.
	// example: 50
	Calls uint64 `json:"calls" example:"50"`
	// Uptime in seconds.
	// example: 3600
	UptimeSeconds int64 `json:"uptime_seconds" example:"3600"`
	// Server time in unix seconds.
	// example: 1700000000
	ServerTimeUnix int64 `json:"server_time_unix" example:"1700000000"`
	// Broker delivery counts; absent when no broker is configured.
	Broker *BrokerStats `json:"broker,omitempty"`
}

// BrokerStats counts events sent to the message broker.
type BrokerStats struct {
	// example: 120
	Published uint64 `json:"published" example:"120"`
	// Events dropped while disconnected or not acknowledged in time.
	// example: 2
	Failed uint64 `json:"failed" example:"2"`
}

// HistoryResponse is returned by GET /history.
type HistoryResponse struct {
	Items []HistoryEntry `json:"items"`
	// Total rows stored.
	// example: 42
	Total int `json:"total" example:"42"`
	// example: 0
	Offset int `json:"offset" example:"0"`
	// example: 20
	Limit int `json:"limit" example:"20"`
}
