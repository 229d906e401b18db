// Package crm is the thin collaborator surface onto the CRM's people data.
// The full CRUD stack (people/companies/notes/tasks views) lives elsewhere;
// the telephony side only needs to resolve contacts for call correlation.
package crm

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
)

var (
	ErrNotFound        = errors.New("crm: contact not found")
	ErrInvalidArgument = errors.New("crm: invalid argument")
)

type Contact struct {
	ID          string `json:"id" db:"id"`
	WorkspaceID string `json:"workspace_id" db:"workspace_id"`
	Name        string `json:"name" db:"name"`
	Email       string `json:"email,omitempty" db:"email"`
	Phone       string `json:"phone,omitempty" db:"phone"`
	Company     string `json:"company,omitempty" db:"company"`
}

// ContactRepo reads the people table. Workspace scoping is enforced on
// every query.
type ContactRepo struct {
	db *sql.DB
}

func NewContactRepo(db *sql.DB) *ContactRepo {
	return &ContactRepo{db: db}
}

func (r *ContactRepo) GetContact(ctx context.Context, workspaceID, contactID string) (Contact, error) {
	if workspaceID == "" || contactID == "" {
		return Contact{}, ErrInvalidArgument
	}
	var c Contact
	err := r.db.QueryRowContext(ctx, `
		SELECT id, workspace_id, name, COALESCE(email, ''), COALESCE(phone, ''), COALESCE(company, '')
		FROM people
		WHERE workspace_id = $1 AND id = $2`,
		workspaceID, contactID,
	).Scan(&c.ID, &c.WorkspaceID, &c.Name, &c.Email, &c.Phone, &c.Company)
	if errors.Is(err, sql.ErrNoRows) {
		return Contact{}, ErrNotFound
	}
	if err != nil {
		return Contact{}, fmt.Errorf("crm: contact lookup: %w", err)
	}
	return c, nil
}

// FindByPhone resolves an inbound caller to a contact by comparing bare
// digit strings, the same normalization the dialer applies.
func (r *ContactRepo) FindByPhone(ctx context.Context, workspaceID, phone string) (Contact, error) {
	if workspaceID == "" {
		return Contact{}, ErrInvalidArgument
	}
	digits := strings.Map(func(ch rune) rune {
		if ch >= '0' && ch <= '9' {
			return ch
		}
		return -1
	}, phone)
	if digits == "" {
		return Contact{}, ErrInvalidArgument
	}

	var c Contact
	err := r.db.QueryRowContext(ctx, `
		SELECT id, workspace_id, name, COALESCE(email, ''), COALESCE(phone, ''), COALESCE(company, '')
		FROM people
		WHERE workspace_id = $1 AND regexp_replace(COALESCE(phone, ''), '\D', '', 'g') = $2
		LIMIT 1`,
		workspaceID, digits,
	).Scan(&c.ID, &c.WorkspaceID, &c.Name, &c.Email, &c.Phone, &c.Company)
	if errors.Is(err, sql.ErrNoRows) {
		return Contact{}, ErrNotFound
	}
	if err != nil {
		return Contact{}, fmt.Errorf("crm: phone lookup: %w", err)
	}
	return c, nil
}
