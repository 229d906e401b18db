package ledger

import (
	"context"
	"fmt"
	"time"
)

// Vendor webhook events. These arrive asynchronously and independently of
// the client-reported lifecycle callbacks; both paths update the same call
// row, last-write-wins, eventually consistent by design.
const (
	WebhookCallStarted    = "call.started"
	WebhookCallConnected  = "call.connected"
	WebhookCallEnded      = "call.ended"
	WebhookCallFailed     = "call.failed"
	WebhookRecordingReady = "recording.ready"
)

// WebhookEvent is the vendor push payload.
type WebhookEvent struct {
	Event string      `json:"event"`
	Call  WebhookCall `json:"call"`
}

type WebhookCall struct {
	CallID          string     `json:"callId"`
	PhoneNumber     string     `json:"phoneNumber,omitempty"`
	StartedAt       *time.Time `json:"startedAt,omitempty"`
	EndedAt         *time.Time `json:"endedAt,omitempty"`
	DurationSeconds int        `json:"duration,omitempty"`
	FailureCode     int        `json:"failureCode,omitempty"`
	RecordingURL    string     `json:"recordingUrl,omitempty"`
}

// ApplyWebhook maps a vendor event onto the ledger row. Unknown events are
// rejected; a missing row is ErrNotFound (the vendor can push for calls the
// ledger never saw, e.g. test calls placed outside the CRM).
func (s *Service) ApplyWebhook(ctx context.Context, ev WebhookEvent) error {
	if ev.Call.CallID == "" {
		return ErrInvalidArgument
	}

	switch ev.Event {
	case WebhookCallStarted:
		started := ev.Call.StartedAt
		if started == nil {
			now := s.clock().UTC()
			started = &now
		}
		return s.update(ctx, `UPDATE calls SET status = $1, started_at = COALESCE(started_at, $2) WHERE id = $3`,
			CallStatusInitiated, started.UTC(), ev.Call.CallID)

	case WebhookCallConnected:
		started := ev.Call.StartedAt
		if started == nil {
			now := s.clock().UTC()
			started = &now
		}
		return s.update(ctx, `UPDATE calls SET status = $1, started_at = $2 WHERE id = $3`,
			CallStatusConnected, started.UTC(), ev.Call.CallID)

	case WebhookCallEnded:
		ended := ev.Call.EndedAt
		if ended == nil {
			now := s.clock().UTC()
			ended = &now
		}
		return s.update(ctx, `UPDATE calls SET status = $1, ended_at = $2, duration = $3 WHERE id = $4`,
			CallStatusCompleted, ended.UTC(), ev.Call.DurationSeconds, ev.Call.CallID)

	case WebhookCallFailed:
		return s.update(ctx, `UPDATE calls SET status = $1 WHERE id = $2`,
			CallStatusFailed, ev.Call.CallID)

	case WebhookRecordingReady:
		if ev.Call.RecordingURL == "" {
			return ErrInvalidArgument
		}
		return s.update(ctx, `UPDATE calls SET recording_url = $1 WHERE id = $2`,
			ev.Call.RecordingURL, ev.Call.CallID)

	default:
		return fmt.Errorf("%w: unknown webhook event %q", ErrInvalidArgument, ev.Event)
	}
}
