package callstate

import "time"

// Call is the ephemeral, UI-facing view of one phone call. It lives in the
// session manager's memory; the store below persists a serialized copy so a
// process restart can rehydrate the last known state. The ledger row is the
// durable system-of-record, never this struct.
type Call struct {
	// ID is assigned by the vendor SDK once a call object exists.
	ID string `json:"id"`

	PhoneNumber       string `json:"phoneNumber"`
	RemoteNumber      string `json:"remoteNumber,omitempty"`
	RemoteDisplayName string `json:"remoteDisplayName,omitempty"`
	ContactID         string `json:"contactId,omitempty"`
	ContactName       string `json:"contactName,omitempty"`

	Direction Direction `json:"direction,omitempty"`
	Status    Status    `json:"status"`

	// StartTime is set only on the transition into StatusActive.
	StartTime *time.Time `json:"startTime,omitempty"`

	// DurationSeconds is derived from StartTime, not authoritative.
	DurationSeconds int `json:"duration,omitempty"`

	IsRecording bool `json:"isRecording,omitempty"`
}

// Live reports whether the call still occupies the single live-call slot.
func (c *Call) Live() bool {
	if c == nil {
		return false
	}
	return c.Status != StatusIdle && c.Status != StatusEnded
}

type Status string

const (
	StatusIdle       Status = "idle"
	StatusConnecting Status = "connecting"
	StatusRinging    Status = "ringing"
	StatusIncoming   Status = "incoming"
	StatusActive     Status = "active"
	StatusEnded      Status = "ended"
	StatusFailed     Status = "failed"
)

type Direction string

const (
	DirectionInbound  Direction = "inbound"
	DirectionOutbound Direction = "outbound"
)

// PendingRequest is a call the user asked for before the session was ready.
// At most one is kept; a newer request overwrites an older unfulfilled one.
type PendingRequest struct {
	PhoneNumber string `json:"phoneNumber"`
	ContactID   string `json:"contactId,omitempty"`
	ContactName string `json:"contactName,omitempty"`
}
