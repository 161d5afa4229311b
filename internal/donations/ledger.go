package donations

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"schoolsite/pkg/models"
)

// Ledger remembers which checkout sessions were already recorded.
type Ledger struct {
	DB *sql.DB
}

func NewLedger(db *sql.DB) *Ledger {
	return &Ledger{DB: db}
}

// Get returns nil, nil when the session was never recorded.
func (l *Ledger) Get(ctx context.Context, sessionID string) (*models.DonationRecord, error) {
	var d models.DonationRecord
	err := l.DB.QueryRowContext(ctx, `
		SELECT session_id, cms_donation_id, email, amount_cents, currency, frequency, recorded_at
		FROM donations
		WHERE session_id = ?
	`, sessionID).Scan(&d.SessionID, &d.CMSDonationID, &d.Email, &d.AmountCents, &d.Currency, &d.Frequency, &d.RecordedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get donation: %w", err)
	}
	return &d, nil
}

func (l *Ledger) Insert(ctx context.Context, d models.DonationRecord) error {
	_, err := l.DB.ExecContext(ctx, `
		INSERT INTO donations (session_id, cms_donation_id, email, amount_cents, currency, frequency)
		VALUES (?, ?, ?, ?, ?, ?)
	`, d.SessionID, d.CMSDonationID, d.Email, d.AmountCents, d.Currency, d.Frequency)
	if err != nil {
		return fmt.Errorf("insert donation: %w", err)
	}
	return nil
}

func (l *Ledger) List(ctx context.Context, limit int) ([]models.DonationRecord, error) {
	if limit <= 0 || limit > 500 {
		limit = 50
	}
	rows, err := l.DB.QueryContext(ctx, `
		SELECT session_id, cms_donation_id, email, amount_cents, currency, frequency, recorded_at
		FROM donations
		ORDER BY recorded_at DESC
		LIMIT ?
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("list donations: %w", err)
	}
	defer rows.Close()

	out := []models.DonationRecord{}
	for rows.Next() {
		var d models.DonationRecord
		if err := rows.Scan(&d.SessionID, &d.CMSDonationID, &d.Email, &d.AmountCents, &d.Currency, &d.Frequency, &d.RecordedAt); err != nil {
			return nil, fmt.Errorf("scan donation: %w", err)
		}
		out = append(out, d)
	}
	return out, rows.Err()
}
