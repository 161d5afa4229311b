package forms

import (
	"strings"
	"time"
)

type SeatReservation struct {
	Student string `json:"student" validate:"required"`
	Confirm string `json:"confirm" validate:"required,oneof=SI NO"`
}

func (s *SeatReservation) Validate() error {
	trim(&s.Student, &s.Confirm)
	s.Confirm = strings.ToUpper(s.Confirm)
	return Check(s)
}

const (
	LeaveFullDay = "full-day"
	LeavePartial = "partial"
)

type LeaveRequest struct {
	Student     string   `json:"student" validate:"required"`
	Type        string   `json:"type" validate:"required,oneof=full-day partial"`
	Reason      string   `json:"reason" validate:"required,max=2000"`
	DateStart   string   `json:"dateStart,omitempty" validate:"required_if=Type full-day,omitempty,isodate"`
	DateEnd     string   `json:"dateEnd,omitempty" validate:"required_if=Type full-day,omitempty,isodate"`
	DatePartial string   `json:"datePartial,omitempty" validate:"required_if=Type partial,omitempty,isodate"`
	Subjects    []string `json:"subjects,omitempty"`
}

func (l *LeaveRequest) Validate() error {
	trim(&l.Student, &l.Type, &l.Reason, &l.DateStart, &l.DateEnd, &l.DatePartial)
	subjects := l.Subjects[:0]
	for _, s := range l.Subjects {
		if s = strings.TrimSpace(s); s != "" {
			subjects = append(subjects, s)
		}
	}
	l.Subjects = subjects

	extra := FieldErrors{}
	switch l.Type {
	case LeaveFullDay:
		l.DatePartial, l.Subjects = "", nil
		start, err1 := time.Parse(time.DateOnly, l.DateStart)
		end, err2 := time.Parse(time.DateOnly, l.DateEnd)
		if err1 == nil && err2 == nil && end.Before(start) {
			extra["dateEnd"] = "must not be before dateStart"
		}
	case LeavePartial:
		l.DateStart, l.DateEnd = "", ""
		if len(l.Subjects) == 0 {
			extra["subjects"] = "must have at least 1 item(s)"
		}
	}
	return merge(Check(l), extra)
}
