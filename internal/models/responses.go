package models

import "time"

// HealthResponse represents a basic health check response
// @Description Health check response
type HealthResponse struct {
	Status    string    `json:"status" example:"healthy"`                 // Health status
	Timestamp time.Time `json:"timestamp" example:"2023-01-01T00:00:00Z"` // Timestamp of the check
	Version   string    `json:"version" example:"1.0.0"`                  // Application version
}

// WorkerStatus summarizes one worker heartbeat for the detailed health check
type WorkerStatus struct {
	Status        string    `json:"status" example:"running"`
	LastHeartbeat time.Time `json:"last_heartbeat"`
	Metadata      string    `json:"metadata,omitempty"`
	Stale         bool      `json:"stale"` // heartbeat older than the staleness window
}

// DetailedHealthResponse represents the detailed health check response
// @Description Detailed health check with worker heartbeat summary
type DetailedHealthResponse struct {
	OK        bool                    `json:"ok" example:"true"`
	Timestamp time.Time               `json:"timestamp"`
	Workers   map[string]WorkerStatus `json:"workers,omitempty"`
	Error     string                  `json:"error,omitempty"`
}

// SendMessageRequest enqueues an outbound message for delivery
// @Description Send message request payload
type SendMessageRequest struct {
	ThreadID string            `json:"thread_id"` // external (Airbnb) thread id
	Message  string            `json:"message"`
	Metadata map[string]string `json:"metadata,omitempty"`
}

// SendMessageResponse is returned after a message was enqueued
type SendMessageResponse struct {
	Success  bool   `json:"success"`
	OutboxID int64  `json:"outbox_id,omitempty"`
	Error    string `json:"error,omitempty"`
}

// AIWebhookRequest is the payload posted by an external AI service when it
// has a reply ready for a conversation
// @Description AI webhook payload
type AIWebhookRequest struct {
	ConversationID string            `json:"conversation_id"` // external thread id
	Message        string            `json:"message"`
	Sender         string            `json:"sender,omitempty"`
	Metadata       map[string]string `json:"metadata,omitempty"`
}

// BackfillRequest launches a historical scrape job
type BackfillRequest struct {
	Months int `json:"months,omitempty"` // default 2
}

// BackfillResponse reports the launched job
type BackfillResponse struct {
	Success bool   `json:"success"`
	JobName string `json:"job_name,omitempty"`
	Error   string `json:"error,omitempty"`
}
