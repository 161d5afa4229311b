package auth

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

const (
	RoleParent  = "parent"
	RoleStudent = "student"
)

// Session is a signed-in portal user. CMSToken is only ever held in
// memory; the table stores it sealed.
type Session struct {
	ID        string
	Role      string
	CMSUserID string
	ProfileID string
	Email     string
	CMSToken  string
	ExpiresAt time.Time
	CreatedAt time.Time
}

type Repo struct {
	DB     *sql.DB
	Sealer *Sealer
}

func NewRepo(db *sql.DB, sealer *Sealer) *Repo {
	return &Repo{DB: db, Sealer: sealer}
}

func (r *Repo) Create(ctx context.Context, s *Session) error {
	box, err := r.Sealer.Seal([]byte(s.CMSToken))
	if err != nil {
		return fmt.Errorf("create session: %w", err)
	}
	_, err = r.DB.ExecContext(ctx, `
		INSERT INTO sessions (id, role, cms_user_id, profile_id, email, cms_token, expires_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`, s.ID, s.Role, s.CMSUserID, s.ProfileID, s.Email, box, s.ExpiresAt.UTC())
	if err != nil {
		return fmt.Errorf("create session: %w", err)
	}
	return nil
}

// Get returns the live session with id, or nil when it is missing or expired.
func (r *Repo) Get(ctx context.Context, id string) (*Session, error) {
	row := r.DB.QueryRowContext(ctx, `
		SELECT id, role, cms_user_id, profile_id, email, cms_token, expires_at, created_at
		FROM sessions
		WHERE id = ?
	`, id)

	var s Session
	var box []byte
	if err := row.Scan(&s.ID, &s.Role, &s.CMSUserID, &s.ProfileID, &s.Email, &box, &s.ExpiresAt, &s.CreatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get session: %w", err)
	}
	if !s.ExpiresAt.After(time.Now()) {
		return nil, nil
	}
	tok, err := r.Sealer.Open(box)
	if err != nil {
		return nil, fmt.Errorf("get session: %w", err)
	}
	s.CMSToken = string(tok)
	return &s, nil
}

func (r *Repo) Delete(ctx context.Context, id string) error {
	if _, err := r.DB.ExecContext(ctx, `DELETE FROM sessions WHERE id = ?`, id); err != nil {
		return fmt.Errorf("delete session: %w", err)
	}
	return nil
}

// DeleteExpired removes sessions past their expiry and reports how many.
func (r *Repo) DeleteExpired(ctx context.Context, now time.Time) (int64, error) {
	res, err := r.DB.ExecContext(ctx, `DELETE FROM sessions WHERE expires_at <= ?`, now.UTC())
	if err != nil {
		return 0, fmt.Errorf("delete expired sessions: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("delete expired sessions rows: %w", err)
	}
	return n, nil
}
