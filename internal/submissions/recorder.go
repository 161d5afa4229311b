package submissions

import (
	"context"
	"errors"

	"schoolsite/internal/forms"
	"schoolsite/pkg/logger"
	"schoolsite/pkg/models"
)

// Submission kinds. Kinds are ledger keys, metric labels and the prefix
// of live feed events.
const (
	KindAdmissions      = "admissions"
	KindSpotlight       = "spotlight"
	KindSeatReservation = "seat_reservation"
	KindLeaveRequest    = "leave_request"
	KindDonation        = "donation"
)

// EventName is the live feed event announced for a forwarded kind.
func EventName(kind string) string {
	switch kind {
	case KindSeatReservation, KindLeaveRequest:
		return kind + ".created"
	case KindDonation:
		return kind + ".recorded"
	}
	return kind + ".submitted"
}

// Announcer publishes an event to live listeners.
type Announcer interface {
	Publish(kind string, data any)
}

// Counter counts submissions by outcome.
type Counter interface {
	Submission(kind, outcome string)
}

// Recorder writes a ledger entry, counts it and announces successful
// submissions. Every dependency is optional.
type Recorder struct {
	Repo      *Repo
	Announcer Announcer
	Counter   Counter
}

// Done records the outcome of forwarding one submission. Ledger failures are
// logged, never returned: the CMS already holds the data.
func (r *Recorder) Done(ctx context.Context, kind, cmsID string, err error, announce any) {
	if r == nil {
		return
	}
	status := StatusForwarded
	msg := ""
	if err != nil {
		msg = err.Error()
		status = StatusFailed
		var fe forms.FieldErrors
		if errors.As(err, &fe) {
			status = StatusRejected
		}
	}
	if r.Counter != nil {
		r.Counter.Submission(kind, status)
	}
	if r.Repo != nil {
		if _, rerr := r.Repo.Record(ctx, models.Submission{Kind: kind, CMSID: cmsID, Status: status, Error: msg}); rerr != nil {
			logger.FromContext(ctx).Error("submission ledger", "kind", kind, "err", rerr)
		}
	}
	if err == nil && r.Announcer != nil {
		r.Announcer.Publish(EventName(kind), announce)
	}
}
