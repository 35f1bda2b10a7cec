package models

import "time"

// Thread lifecycle statuses
const (
	ThreadStatusOpen     = "open"
	ThreadStatusClosed   = "closed"
	ThreadStatusArchived = "archived"
)

// Message directions
const (
	DirectionInbound  = "inbound"
	DirectionOutbound = "outbound"
)

// Outbox item statuses
const (
	OutboxStatusPending    = "pending"
	OutboxStatusProcessing = "processing"
	OutboxStatusSent       = "sent"
	OutboxStatusFailed     = "failed"
)

// Worker heartbeat statuses
const (
	WorkerStatusRunning = "running"
	WorkerStatusStopped = "stopped"
	WorkerStatusError   = "error"
)

// Listing represents an Airbnb property managed by the host
type Listing struct {
	ID         int64     `db:"id" json:"id"`
	ExternalID string    `db:"external_id" json:"external_id"`
	Name       string    `db:"name" json:"name"`
	Status     string    `db:"status" json:"status"` // active, inactive, archived
	CreatedAt  time.Time `db:"created_at" json:"created_at"`
	UpdatedAt  time.Time `db:"updated_at" json:"updated_at"`
}

// Thread represents one ongoing conversation with a guest
type Thread struct {
	ID            int64      `db:"id" json:"id"`
	ExternalID    string     `db:"external_id" json:"external_id"`
	ListingID     int64      `db:"listing_id" json:"listing_id"`
	GuestName     string     `db:"guest_name" json:"guest_name"`
	LastMessageAt *time.Time `db:"last_message_at" json:"last_message_at,omitempty"`
	LastScrapedAt *time.Time `db:"last_scraped_at" json:"last_scraped_at,omitempty"`
	Status        string     `db:"status" json:"status"`
	CreatedAt     time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt     time.Time  `db:"updated_at" json:"updated_at"`
}

// Message represents one inbound or outbound message within a thread.
// Rows are immutable once created.
type Message struct {
	ID         int64     `db:"id" json:"id"`
	ThreadID   int64     `db:"thread_id" json:"thread_id"`
	Direction  string    `db:"direction" json:"direction"`
	Content    string    `db:"content" json:"content"`
	ExternalID string    `db:"external_id" json:"external_id"`
	SenderName string    `db:"sender_name" json:"sender_name"`
	SentAt     time.Time `db:"sent_at" json:"sent_at"`
	CreatedAt  time.Time `db:"created_at" json:"created_at"`
}

// OutboxItem is a durable send-queue entry
type OutboxItem struct {
	ID           int64      `db:"id" json:"id"`
	ThreadID     int64      `db:"thread_id" json:"thread_id"`
	PayloadJSON  string     `db:"payload_json" json:"payload_json"`
	Status       string     `db:"status" json:"status"`
	RetryCount   int        `db:"retry_count" json:"retry_count"`
	ErrorMessage *string    `db:"error_message" json:"error_message,omitempty"`
	ProcessedAt  *time.Time `db:"processed_at" json:"processed_at,omitempty"`
	CreatedAt    time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt    time.Time  `db:"updated_at" json:"updated_at"`

	// ThreadExternalID is joined in by dequeue queries so the delivery
	// worker can address the Airbnb thread without an extra lookup.
	ThreadExternalID string `db:"thread_external_id" json:"thread_external_id,omitempty"`
}

// OutboxPayload is the serialized body of an OutboxItem
type OutboxPayload struct {
	Message   string            `json:"message"`
	Metadata  map[string]string `json:"metadata,omitempty"`
	CreatedAt time.Time         `json:"created_at"`
}

// WorkerHeartbeat records per-worker liveness for health monitoring
type WorkerHeartbeat struct {
	ID            int64     `db:"id" json:"id"`
	WorkerName    string    `db:"worker_name" json:"worker_name"`
	LastHeartbeat time.Time `db:"last_heartbeat" json:"last_heartbeat"`
	Status        string    `db:"status" json:"status"`
	Metadata      string    `db:"metadata" json:"metadata"` // JSON blob (counters, last error)
	CreatedAt     time.Time `db:"created_at" json:"created_at"`
}

// ThreadSnapshot is one scraped conversation with its recent messages
type ThreadSnapshot struct {
	ExternalThreadID  string            `json:"external_thread_id"`
	GuestName         string            `json:"guest_name"`
	ListingExternalID string            `json:"listing_external_id,omitempty"`
	ListingName       string            `json:"listing_name,omitempty"`
	LastMessageAt     *time.Time        `json:"last_message_at,omitempty"`
	Messages          []MessageSnapshot `json:"messages"`
}

// MessageSnapshot is one scraped message inside a ThreadSnapshot
type MessageSnapshot struct {
	Direction         string     `json:"direction"`
	Content           string     `json:"content"`
	ExternalMessageID string     `json:"external_message_id,omitempty"`
	SenderName        string     `json:"sender_name,omitempty"`
	SentAt            *time.Time `json:"sent_at,omitempty"`
}
