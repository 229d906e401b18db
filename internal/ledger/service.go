package ledger

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

var (
	ErrNotFound        = errors.New("ledger: not found")
	ErrInvalidArgument = errors.New("ledger: invalid argument")
)

// Service persists call lifecycle transitions.
//
// Invariants:
// - workspace_id is required and enforced on every insert and list query.
// - Per-call updates are keyed by call id only: the webhook path has no
//   workspace context, and call ids are unguessable UUIDs.
// - Updates are last-write-wins. Client callbacks and vendor webhooks race
//   on the same row by design; see ApplyWebhook.
type Service struct {
	db *sql.DB
	// clock is injectable for deterministic tests.
	clock func() time.Time
}

func NewService(db *sql.DB) *Service {
	return &Service{db: db, clock: time.Now}
}

type InitiateParams struct {
	WorkspaceID     string
	PhoneNumber     string
	ContactID       string
	ContactName     string
	Direction       string
	EnableRecording bool
}

// Initiate creates the call row and returns its id.
func (s *Service) Initiate(ctx context.Context, p InitiateParams) (CallRecord, error) {
	if p.WorkspaceID == "" || p.PhoneNumber == "" {
		return CallRecord{}, ErrInvalidArgument
	}
	if p.Direction == "" {
		p.Direction = "outbound"
	}

	rec := CallRecord{
		ID:               uuid.NewString(),
		WorkspaceID:      p.WorkspaceID,
		PhoneNumber:      p.PhoneNumber,
		ContactID:        p.ContactID,
		ContactName:      p.ContactName,
		Direction:        p.Direction,
		Status:           CallStatusInitiated,
		RecordingEnabled: p.EnableRecording,
		CreatedAt:        s.clock().UTC(),
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO calls (id, workspace_id, phone_number, contact_id, contact_name, direction, status, duration, recording_enabled, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, 0, $8, $9)`,
		rec.ID, rec.WorkspaceID, rec.PhoneNumber, nullable(rec.ContactID), nullable(rec.ContactName),
		rec.Direction, rec.Status, rec.RecordingEnabled, rec.CreatedAt,
	)
	if err != nil {
		return CallRecord{}, fmt.Errorf("ledger: initiate insert: %w", err)
	}
	return rec, nil
}

// MarkConnected records the transition into the connected state.
func (s *Service) MarkConnected(ctx context.Context, callID string, startTime time.Time) error {
	if callID == "" {
		return ErrInvalidArgument
	}
	if startTime.IsZero() {
		startTime = s.clock()
	}
	return s.update(ctx, `UPDATE calls SET status = $1, started_at = $2 WHERE id = $3`,
		CallStatusConnected, startTime.UTC(), callID)
}

// MarkEnded finalizes the row with its duration.
func (s *Service) MarkEnded(ctx context.Context, callID string, endTime time.Time, durationSeconds int) error {
	if callID == "" || durationSeconds < 0 {
		return ErrInvalidArgument
	}
	if endTime.IsZero() {
		endTime = s.clock()
	}
	return s.update(ctx, `UPDATE calls SET status = $1, ended_at = $2, duration = $3 WHERE id = $4`,
		CallStatusCompleted, endTime.UTC(), durationSeconds, callID)
}

func (s *Service) SetMute(ctx context.Context, callID string, muted bool) error {
	if callID == "" {
		return ErrInvalidArgument
	}
	return s.update(ctx, `UPDATE calls SET muted = $1 WHERE id = $2`, muted, callID)
}

func (s *Service) SetHold(ctx context.Context, callID string, onHold bool) error {
	if callID == "" {
		return ErrInvalidArgument
	}
	return s.update(ctx, `UPDATE calls SET on_hold = $1 WHERE id = $2`, onHold, callID)
}

func (s *Service) Transfer(ctx context.Context, callID, transferTo string) error {
	if callID == "" || transferTo == "" {
		return ErrInvalidArgument
	}
	return s.update(ctx, `UPDATE calls SET transferred_to = $1 WHERE id = $2`, transferTo, callID)
}

func (s *Service) SetRecording(ctx context.Context, callID string, enabled bool) error {
	if callID == "" {
		return ErrInvalidArgument
	}
	return s.update(ctx, `UPDATE calls SET recording_enabled = $1 WHERE id = $2`, enabled, callID)
}

// AddNote attaches a note to a call.
func (s *Service) AddNote(ctx context.Context, callID, text string, at time.Time) (CallNote, error) {
	if callID == "" || text == "" {
		return CallNote{}, ErrInvalidArgument
	}
	if at.IsZero() {
		at = s.clock()
	}
	note := CallNote{
		ID:        uuid.NewString(),
		CallID:    callID,
		Text:      text,
		Timestamp: at.UTC(),
		CreatedAt: s.clock().UTC(),
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO call_notes (id, call_id, text, timestamp, created_at)
		VALUES ($1, $2, $3, $4, $5)`,
		note.ID, note.CallID, note.Text, note.Timestamp, note.CreatedAt,
	)
	if err != nil {
		return CallNote{}, fmt.Errorf("ledger: note insert: %w", err)
	}
	return note, nil
}

type HistoryParams struct {
	WorkspaceID string
	ContactID   string
	Limit       int
	Offset      int
}

// History lists a workspace's calls, newest first.
func (s *Service) History(ctx context.Context, p HistoryParams) ([]CallRecord, error) {
	if p.WorkspaceID == "" {
		return nil, ErrInvalidArgument
	}
	if p.Limit <= 0 || p.Limit > 100 {
		p.Limit = 50
	}
	if p.Offset < 0 {
		p.Offset = 0
	}

	query := `
		SELECT id, workspace_id, phone_number, COALESCE(contact_id, ''), COALESCE(contact_name, ''),
		       direction, status, duration, muted, on_hold, recording_enabled,
		       COALESCE(recording_url, ''), COALESCE(transferred_to, ''), started_at, ended_at, created_at
		FROM calls
		WHERE workspace_id = $1`
	args := []any{p.WorkspaceID}
	if p.ContactID != "" {
		query += ` AND contact_id = $2 ORDER BY created_at DESC LIMIT $3 OFFSET $4`
		args = append(args, p.ContactID, p.Limit, p.Offset)
	} else {
		query += ` ORDER BY created_at DESC LIMIT $2 OFFSET $3`
		args = append(args, p.Limit, p.Offset)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("ledger: history query: %w", err)
	}
	defer rows.Close()

	var out []CallRecord
	for rows.Next() {
		var r CallRecord
		if err := rows.Scan(
			&r.ID, &r.WorkspaceID, &r.PhoneNumber, &r.ContactID, &r.ContactName,
			&r.Direction, &r.Status, &r.DurationSeconds, &r.Muted, &r.OnHold,
			&r.RecordingEnabled, &r.RecordingURL, &r.TransferredTo,
			&r.StartedAt, &r.EndedAt, &r.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("ledger: history scan: %w", err)
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// Summary aggregates workspace call activity over a time window.
func (s *Service) Summary(ctx context.Context, workspaceID string, from, to time.Time) (Summary, error) {
	if workspaceID == "" {
		return Summary{}, ErrInvalidArgument
	}
	if from.IsZero() || to.IsZero() || !to.After(from) {
		return Summary{}, ErrInvalidArgument
	}

	out := Summary{WorkspaceID: workspaceID}
	err := s.db.QueryRowContext(ctx, `
		SELECT COUNT(*),
		       COUNT(*) FILTER (WHERE status = 'completed'),
		       COUNT(*) FILTER (WHERE status = 'failed'),
		       COUNT(*) FILTER (WHERE status = 'missed'),
		       COUNT(*) FILTER (WHERE direction = 'inbound'),
		       COUNT(*) FILTER (WHERE direction = 'outbound'),
		       COUNT(*) FILTER (WHERE recording_url IS NOT NULL AND recording_url <> ''),
		       COALESCE(SUM(duration), 0)
		FROM calls
		WHERE workspace_id = $1 AND created_at >= $2 AND created_at < $3`,
		workspaceID, from.UTC(), to.UTC(),
	).Scan(
		&out.TotalCalls, &out.CompletedCalls, &out.FailedCalls, &out.MissedCalls,
		&out.InboundCalls, &out.OutboundCalls, &out.RecordedCalls, &out.TotalDurationSeconds,
	)
	if err != nil {
		return Summary{}, fmt.Errorf("ledger: summary query: %w", err)
	}
	if out.TotalCalls > 0 {
		out.AvgDurationSeconds = out.TotalDurationSeconds / out.TotalCalls
	}
	return out, nil
}

func (s *Service) update(ctx context.Context, query string, args ...any) error {
	res, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("ledger: update: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return ErrNotFound
	}
	return nil
}

func nullable(s string) any {
	if s == "" {
		return nil
	}
	return s
}
