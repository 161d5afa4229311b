package forms

import "strings"

// Grades offered, in order. Kinder and 1st have no "reason for change".
var Grades = []string{"Kinder", "1st", "2nd", "3rd", "4th", "5th", "6th", "7th", "8th", "9th", "10th", "11th", "12th"}

// Admission is the admissions application as posted by the site.
type Admission struct {
	StudentName       string `json:"studentName" validate:"required,max=200"`
	BirthDate         string `json:"birthDate,omitempty" validate:"omitempty,isodate"`
	IncomingCourse    string `json:"incomingCourse" validate:"required,oneof=Kinder 1st 2nd 3rd 4th 5th 6th 7th 8th 9th 10th 11th 12th"`
	CurrentSchool     string `json:"currentSchool,omitempty"`
	ChangeReason      string `json:"changeReason,omitempty"`
	HasSiblingsHS     string `json:"hasSiblingsHS,omitempty" validate:"omitempty,oneof=yes no"`
	SiblingNames      string `json:"siblingNames,omitempty" validate:"required_if=HasSiblingsHS yes"`
	FatherName        string `json:"fatherName,omitempty"`
	FatherPhone       string `json:"fatherPhone,omitempty" validate:"omitempty,phone"`
	MotherName        string `json:"motherName,omitempty"`
	MotherPhone       string `json:"motherPhone,omitempty" validate:"omitempty,phone"`
	ParentsEmail      string `json:"parentsEmail" validate:"required,email"`
	Address           string `json:"address,omitempty"`
	HowDidYouHear     string `json:"howDidYouHear,omitempty"`
	AdditionalComment string `json:"additionalComments,omitempty"`
}

// Normalize trims fields and drops values that do not apply.
func (a *Admission) Normalize() {
	trim(&a.StudentName, &a.IncomingCourse, &a.CurrentSchool, &a.ChangeReason, &a.HasSiblingsHS,
		&a.SiblingNames, &a.FatherName, &a.FatherPhone, &a.MotherName, &a.MotherPhone,
		&a.ParentsEmail, &a.Address, &a.HowDidYouHear, &a.AdditionalComment, &a.BirthDate)
	a.ParentsEmail = strings.ToLower(a.ParentsEmail)
	a.HasSiblingsHS = strings.ToLower(a.HasSiblingsHS)
	if a.HasSiblingsHS != "yes" {
		a.SiblingNames = ""
	}
	if !AsksChangeReason(a.IncomingCourse) {
		a.ChangeReason = ""
	}
}

// AsksChangeReason reports whether a grade collects the reason for
// changing schools.
func AsksChangeReason(grade string) bool {
	return grade != "" && grade != "Kinder" && grade != "1st"
}

func (a *Admission) Validate() error {
	a.Normalize()
	return Check(a)
}
