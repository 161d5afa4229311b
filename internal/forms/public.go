package forms

import (
	"strings"

	"github.com/shopspring/decimal"
)

type Spotlight struct {
	FullName           string `json:"fullname" validate:"required,max=200"`
	City               string `json:"city,omitempty" validate:"max=200"`
	University         string `json:"university,omitempty" validate:"max=200"`
	Profession         string `json:"profession,omitempty" validate:"max=200"`
	GraduationYear     string `json:"graduationYear" validate:"required,isodate"`
	ArtisticPath       string `json:"artisticPath,omitempty" validate:"max=5000"`
	Accomplishments    string `json:"accomplishments,omitempty" validate:"max=5000"`
	HughesImpact       string `json:"hughesImpact,omitempty" validate:"max=5000"`
	MessageForStudents string `json:"messageForStudents,omitempty" validate:"max=5000"`
}

func (s *Spotlight) Validate() error {
	trim(&s.FullName, &s.City, &s.University, &s.Profession, &s.GraduationYear,
		&s.ArtisticPath, &s.Accomplishments, &s.HughesImpact, &s.MessageForStudents)
	return Check(s)
}

const (
	FrequencyOnce    = "once"
	FrequencyMonthly = "monthly"
)

type Donation struct {
	Amount      decimal.Decimal `json:"amount"`
	Frequency   string          `json:"frequency" validate:"required,oneof=once monthly"`
	Designation string          `json:"designation" validate:"required,max=200"`
	FirstName   string          `json:"firstName,omitempty" validate:"max=100"`
	LastName    string          `json:"lastName,omitempty" validate:"max=100"`
	Email       string          `json:"email,omitempty" validate:"omitempty,email"`
	Phone       string          `json:"phone,omitempty" validate:"omitempty,phone"`
	Address     string          `json:"address,omitempty" validate:"max=300"`
	City        string          `json:"city,omitempty" validate:"max=100"`
	TributeType string          `json:"tributeType,omitempty" validate:"max=50"`
	TributeName string          `json:"tributeName,omitempty" validate:"max=200"`
}

func (d *Donation) Validate() error {
	trim(&d.Frequency, &d.Designation, &d.FirstName, &d.LastName, &d.Email, &d.Phone,
		&d.Address, &d.City, &d.TributeType, &d.TributeName)
	d.Frequency = strings.ToLower(d.Frequency)
	d.Email = strings.ToLower(d.Email)
	if d.Frequency == "" {
		d.Frequency = FrequencyOnce
	}
	extra := FieldErrors{}
	if !d.Amount.GreaterThan(decimal.Zero) {
		extra["amount"] = "must be greater than 0"
	}
	return merge(Check(d), extra)
}
