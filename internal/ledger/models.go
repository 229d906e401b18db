package ledger

import "time"

// CallRecord is the durable system-of-record for one call. The softphone's
// in-memory session is ephemeral UI state; this row is what survives.
//
// Multi-tenant invariant: WorkspaceID is required on every row.
//
// Status is written by two independent paths: client-reported lifecycle
// callbacks and vendor webhooks. The paths are eventually consistent,
// last-write-wins; no ordering reconciliation is attempted.
type CallRecord struct {
	ID          string `json:"id" db:"id"`
	WorkspaceID string `json:"workspace_id" db:"workspace_id"`

	PhoneNumber string `json:"phone_number" db:"phone_number"`
	ContactID   string `json:"contact_id,omitempty" db:"contact_id"`
	ContactName string `json:"contact_name,omitempty" db:"contact_name"`

	Direction string     `json:"direction" db:"direction"`
	Status    CallStatus `json:"status" db:"status"`

	// DurationSeconds is the connected time in seconds.
	DurationSeconds int `json:"duration" db:"duration"`

	Muted  bool `json:"muted,omitempty" db:"muted"`
	OnHold bool `json:"on_hold,omitempty" db:"on_hold"`

	RecordingEnabled bool   `json:"recording_enabled" db:"recording_enabled"`
	RecordingURL     string `json:"recording_url,omitempty" db:"recording_url"`

	TransferredTo string `json:"transferred_to,omitempty" db:"transferred_to"`

	StartedAt *time.Time `json:"started_at,omitempty" db:"started_at"`
	EndedAt   *time.Time `json:"ended_at,omitempty" db:"ended_at"`
	CreatedAt time.Time  `json:"created_at" db:"created_at"`
}

type CallStatus string

const (
	CallStatusInitiated CallStatus = "initiated"
	CallStatusConnected CallStatus = "connected"
	CallStatusCompleted CallStatus = "completed"
	CallStatusFailed    CallStatus = "failed"
	CallStatusMissed    CallStatus = "missed"
)

// CallNote references its call row by foreign key; rows cascade on delete.
type CallNote struct {
	ID        string    `json:"id" db:"id"`
	CallID    string    `json:"call_id" db:"call_id"`
	Text      string    `json:"text" db:"text"`
	Timestamp time.Time `json:"timestamp" db:"timestamp"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
}

// CallTranscript references its call row by foreign key; cascade on delete.
type CallTranscript struct {
	ID        string    `json:"id" db:"id"`
	CallID    string    `json:"call_id" db:"call_id"`
	Speaker   string    `json:"speaker" db:"speaker"`
	Text      string    `json:"text" db:"text"`
	Timestamp time.Time `json:"timestamp" db:"timestamp"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
}

// Summary aggregates a workspace's call activity for the analytics view.
type Summary struct {
	WorkspaceID string `json:"workspace_id"`

	TotalCalls     int `json:"total_calls"`
	CompletedCalls int `json:"completed_calls"`
	FailedCalls    int `json:"failed_calls"`
	MissedCalls    int `json:"missed_calls"`
	InboundCalls   int `json:"inbound_calls"`
	OutboundCalls  int `json:"outbound_calls"`
	RecordedCalls  int `json:"recorded_calls"`

	TotalDurationSeconds int `json:"total_duration_seconds"`
	AvgDurationSeconds   int `json:"avg_duration_seconds"`
}
