package ledger

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"crm-softphone/pkg/utils"
)

// CallDetail is one call row with its notes and transcript segments.
type CallDetail struct {
	CallRecord
	Notes      []CallNote       `json:"notes"`
	Transcript []CallTranscript `json:"transcript"`
}

// GetCall loads a call with notes and transcripts. The three reads run in
// one read-only transaction so a concurrent webhook update cannot produce a
// torn view.
func (s *Service) GetCall(ctx context.Context, workspaceID, callID string) (CallDetail, error) {
	if workspaceID == "" || callID == "" {
		return CallDetail{}, ErrInvalidArgument
	}

	var out CallDetail
	err := utils.WithTx(ctx, s.db, &sql.TxOptions{ReadOnly: true}, func(ctx context.Context, tx *sql.Tx) error {
		err := tx.QueryRowContext(ctx, `
			SELECT id, workspace_id, phone_number, COALESCE(contact_id, ''), COALESCE(contact_name, ''),
			       direction, status, duration, muted, on_hold, recording_enabled,
			       COALESCE(recording_url, ''), COALESCE(transferred_to, ''), started_at, ended_at, created_at
			FROM calls
			WHERE workspace_id = $1 AND id = $2`,
			workspaceID, callID,
		).Scan(
			&out.ID, &out.WorkspaceID, &out.PhoneNumber, &out.ContactID, &out.ContactName,
			&out.Direction, &out.Status, &out.DurationSeconds, &out.Muted, &out.OnHold,
			&out.RecordingEnabled, &out.RecordingURL, &out.TransferredTo,
			&out.StartedAt, &out.EndedAt, &out.CreatedAt,
		)
		if errors.Is(err, sql.ErrNoRows) {
			return ErrNotFound
		}
		if err != nil {
			return fmt.Errorf("ledger: call lookup: %w", err)
		}

		rows, err := tx.QueryContext(ctx, `
			SELECT id, call_id, text, timestamp, created_at
			FROM call_notes WHERE call_id = $1 ORDER BY created_at`, callID)
		if err != nil {
			return fmt.Errorf("ledger: notes query: %w", err)
		}
		defer rows.Close()
		for rows.Next() {
			var n CallNote
			if err := rows.Scan(&n.ID, &n.CallID, &n.Text, &n.Timestamp, &n.CreatedAt); err != nil {
				return fmt.Errorf("ledger: note scan: %w", err)
			}
			out.Notes = append(out.Notes, n)
		}
		if err := rows.Err(); err != nil {
			return err
		}

		trows, err := tx.QueryContext(ctx, `
			SELECT id, call_id, speaker, text, timestamp, created_at
			FROM call_transcripts WHERE call_id = $1 ORDER BY created_at`, callID)
		if err != nil {
			return fmt.Errorf("ledger: transcripts query: %w", err)
		}
		defer trows.Close()
		for trows.Next() {
			var tr CallTranscript
			if err := trows.Scan(&tr.ID, &tr.CallID, &tr.Speaker, &tr.Text, &tr.Timestamp, &tr.CreatedAt); err != nil {
				return fmt.Errorf("ledger: transcript scan: %w", err)
			}
			out.Transcript = append(out.Transcript, tr)
		}
		return trows.Err()
	})
	if err != nil {
		return CallDetail{}, err
	}
	return out, nil
}

// DeleteCall removes a call row; notes and transcripts go with it via the
// schema's ON DELETE CASCADE.
func (s *Service) DeleteCall(ctx context.Context, workspaceID, callID string) error {
	if workspaceID == "" || callID == "" {
		return ErrInvalidArgument
	}
	res, err := s.db.ExecContext(ctx,
		`DELETE FROM calls WHERE workspace_id = $1 AND id = $2`, workspaceID, callID)
	if err != nil {
		return fmt.Errorf("ledger: delete: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return ErrNotFound
	}
	return nil
}

// EndByID finalizes a call using the server clock and the stored start
// time, for the dashboard's force-end action where the client never
// reported a duration.
func (s *Service) EndByID(ctx context.Context, workspaceID, callID string) (int, error) {
	if workspaceID == "" || callID == "" {
		return 0, ErrInvalidArgument
	}

	var duration int
	err := utils.WithTx(ctx, s.db, &sql.TxOptions{}, func(ctx context.Context, tx *sql.Tx) error {
		var startedAt *time.Time
		err := tx.QueryRowContext(ctx,
			`SELECT started_at FROM calls WHERE workspace_id = $1 AND id = $2`,
			workspaceID, callID,
		).Scan(&startedAt)
		if errors.Is(err, sql.ErrNoRows) {
			return ErrNotFound
		}
		if err != nil {
			return fmt.Errorf("ledger: end lookup: %w", err)
		}

		now := s.clock().UTC()
		if startedAt != nil {
			duration = int(now.Sub(*startedAt) / time.Second)
		}
		if duration < 0 {
			duration = 0
		}
		_, err = tx.ExecContext(ctx,
			`UPDATE calls SET status = $1, ended_at = $2, duration = $3 WHERE id = $4`,
			CallStatusCompleted, now, duration, callID)
		return err
	})
	if err != nil {
		return 0, err
	}
	return duration, nil
}
