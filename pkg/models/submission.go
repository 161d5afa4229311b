package models

import "time"

// Submission is one ledger entry for a form forwarded to the CMS.
type Submission struct {
	ID        int64     `json:"id"`
	Kind      string    `json:"kind"`
	CMSID     string    `json:"cms_id,omitempty"`
	Status    string    `json:"status"`
	Error     string    `json:"error,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// DonationRecord is one ledger entry for a completed checkout session.
type DonationRecord struct {
	SessionID     string    `json:"session_id"`
	CMSDonationID string    `json:"cms_donation_id,omitempty"`
	Email         string    `json:"email,omitempty"`
	AmountCents   int64     `json:"amount_cents"`
	Currency      string    `json:"currency"`
	Frequency     string    `json:"frequency"`
	RecordedAt    time.Time `json:"recorded_at"`
}
