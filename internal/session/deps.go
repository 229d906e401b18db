package session

import (
	"context"
	"time"
)

// Ledger is the backend call-ledger surface the manager reports into. Every
// call is best-effort from the manager's perspective: a failed POST is
// logged and the live call continues; the ledger never vetoes call state.
type Ledger interface {
	// Token fetches calling credentials for the SDK login handshake.
	Token(ctx context.Context) (Credentials, error)

	Initiate(ctx context.Context, req InitiateRequest) (callID string, err error)
	Connected(ctx context.Context, callID string, startTime time.Time) error
	Ended(ctx context.Context, callID string, endTime time.Time, durationSeconds int) error

	SetMute(ctx context.Context, callID string, muted bool) error
	SetHold(ctx context.Context, callID string, onHold bool) error
	Transfer(ctx context.Context, callID, transferTo string) error
	AddNote(ctx context.Context, callID, text string, at time.Time) error
	SetRecording(ctx context.Context, callID string, start bool) error
}

// Credentials is what the token endpoint returns. Either Password or Token
// is set; the manager supports both login forms, and absence of both is a
// fatal auth error.
type Credentials struct {
	UserName string `json:"userName"`
	Password string `json:"password,omitempty"`
	Token    string `json:"token,omitempty"`
}

type InitiateRequest struct {
	PhoneNumber     string `json:"phoneNumber"`
	ContactID       string `json:"contactId,omitempty"`
	ContactName     string `json:"contactName,omitempty"`
	EnableRecording bool   `json:"enableRecording"`
}

// Microphone models the capture-permission prompt. Request blocks until the
// user answers; a denial error is scoped to the call being attempted, never
// to the whole session.
type Microphone interface {
	Request(ctx context.Context) error
}

// Ringtone is the single shared alerting sound for incoming calls. Play and
// Stop must both be idempotent: stopping silence or re-playing an already
// looping tone is a no-op, not an error.
type Ringtone interface {
	Play()
	Stop()
}

// NoopRingtone satisfies Ringtone for headless deployments and tests.
type NoopRingtone struct{}

func (NoopRingtone) Play() {}
func (NoopRingtone) Stop() {}
