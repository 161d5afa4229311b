package donations

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"schoolsite/internal/cmsclient"
	"schoolsite/internal/forms"
	"schoolsite/internal/submissions"
	"schoolsite/pkg/logger"
	"schoolsite/pkg/models"
)

// Service turns donation forms into checkout sessions and completed
// sessions into CMS donation records.
type Service struct {
	Stripe    *Stripe
	CMS       *cmsclient.Client
	Ledger    *Ledger
	Announcer submissions.Announcer
	Counter   submissions.Counter

	School     string
	Currency   string
	PublicURL  string
	SuccessURL string
	CancelURL  string
	Now        func() time.Time

	mu sync.Mutex
}

// Cents converts an amount in currency units to the smallest unit.
func Cents(amount decimal.Decimal) int64 {
	return amount.Shift(2).Round(0).IntPart()
}

// Units converts the smallest unit back to currency units.
func Units(cents int64) decimal.Decimal {
	return decimal.New(cents, -2)
}

// Checkout creates a Stripe Checkout Session for a validated donation.
func (s *Service) Checkout(ctx context.Context, d forms.Donation) (*CheckoutSession, error) {
	item := LineItem{
		Name:        fmt.Sprintf("Donation to %s - %s", s.School, d.Designation),
		Description: "Support " + d.Designation,
		Currency:    strings.ToLower(s.Currency),
		UnitAmount:  Cents(d.Amount),
	}
	if d.Frequency == forms.FrequencyMonthly {
		item.Monthly = true
		item.Name = "Monthly Donation - " + d.Designation
		item.Description = "Monthly support for " + d.Designation
	}
	return s.Stripe.CreateCheckout(ctx, CheckoutParams{
		Item:  item,
		Email: d.Email,
		Metadata: map[string]string{
			"designation": d.Designation,
			"frequency":   d.Frequency,
			"firstName":   d.FirstName,
			"lastName":    d.LastName,
			"phone":       d.Phone,
			"address":     d.Address,
			"city":        d.City,
			"tributeType": d.TributeType,
			"tributeName": d.TributeName,
		},
		SuccessURL: s.absolute(s.SuccessURL),
		CancelURL:  s.absolute(s.CancelURL),
	})
}

func (s *Service) absolute(path string) string {
	return strings.TrimRight(s.PublicURL, "/") + path
}

// Record stores a completed session as a CMS donation. A session already in
// the ledger is returned as is; recorded reports whether this call wrote it.
func (s *Service) Record(ctx context.Context, cs *CheckoutSession) (rec *models.DonationRecord, recorded bool, err error) {
	if cs == nil || cs.ID == "" {
		return nil, false, errors.New("record donation: session without id")
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if existing, err := s.Ledger.Get(ctx, cs.ID); err != nil || existing != nil {
		return existing, false, err
	}

	defer func() {
		if s.Counter != nil {
			outcome := submissions.StatusForwarded
			if err != nil {
				outcome = submissions.StatusFailed
			}
			s.Counter.Submission(submissions.KindDonation, outcome)
		}
	}()

	donatorID, err := s.donator(ctx, cs)
	if err != nil {
		return nil, false, err
	}

	md := cs.Metadata
	comments := ""
	if md["tributeName"] != "" {
		comments = md["tributeType"] + ": " + md["tributeName"]
	}
	row, err := s.CMS.Create(ctx, "donations", map[string]any{
		"donator":         donatorID,
		"amount":          Units(cs.AmountTotal).InexactFloat64(),
		"donationDestiny": md["designation"],
		"donationDate":    s.now().UTC().Format(time.RFC3339),
		"succesfull":      true,
		"frecuency":       md["frequency"],
		"comments":        comments,
	}, "")
	if err != nil {
		return nil, false, fmt.Errorf("create donation: %w", err)
	}

	rec = &models.DonationRecord{
		SessionID:     cs.ID,
		CMSDonationID: row.ID(),
		Email:         strings.ToLower(cs.Email),
		AmountCents:   cs.AmountTotal,
		Currency:      cs.Currency,
		Frequency:     md["frequency"],
		RecordedAt:    s.now().UTC(),
	}
	if err := s.Ledger.Insert(ctx, *rec); err != nil {
		// The CMS holds the donation; a replay would duplicate it.
		logger.FromContext(ctx).Error("donation ledger", "session", cs.ID, "err", err)
	}
	if s.Announcer != nil {
		s.Announcer.Publish(submissions.EventName(submissions.KindDonation), map[string]any{
			"amount":      Units(cs.AmountTotal).StringFixed(2),
			"currency":    cs.Currency,
			"designation": md["designation"],
			"frequency":   md["frequency"],
		})
	}
	return rec, true, nil
}

// donator finds the donor by e-mail or creates one.
func (s *Service) donator(ctx context.Context, cs *CheckoutSession) (string, error) {
	email := strings.ToLower(strings.TrimSpace(cs.Email))
	if email != "" {
		row, err := s.CMS.Uncached().First(ctx, "donators", cmsclient.NewQuery().Eq(email, "email"), "")
		if err == nil {
			return row.ID(), nil
		}
		if !errors.Is(err, cmsclient.ErrNotFound) {
			return "", fmt.Errorf("find donator: %w", err)
		}
	}
	md := cs.Metadata
	row, err := s.CMS.Create(ctx, "donators", map[string]any{
		"firstName": md["firstName"],
		"lastName":  md["lastName"],
		"email":     email,
		"phone":     md["phone"],
		"address":   md["address"],
		"city":      md["city"],
	}, "")
	if err != nil {
		return "", fmt.Errorf("create donator: %w", err)
	}
	return row.ID(), nil
}

func (s *Service) now() time.Time {
	if s.Now != nil {
		return s.Now()
	}
	return time.Now()
}
