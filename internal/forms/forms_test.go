package forms

import (
	"errors"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fieldErrors(t *testing.T, err error) FieldErrors {
	t.Helper()
	var fe FieldErrors
	require.True(t, errors.As(err, &fe), "expected FieldErrors, got %v", err)
	return fe
}

func TestAdmissionRequiredFields(t *testing.T) {
	a := Admission{}
	fe := fieldErrors(t, a.Validate())
	assert.Contains(t, fe, "studentName")
	assert.Contains(t, fe, "incomingCourse")
	assert.Contains(t, fe, "parentsEmail")
}

func TestAdmissionRules(t *testing.T) {
	valid := func() Admission {
		return Admission{StudentName: " Ana ", IncomingCourse: "5th", ParentsEmail: "MOM@Example.com"}
	}

	a := valid()
	require.NoError(t, a.Validate())
	assert.Equal(t, "Ana", a.StudentName)
	assert.Equal(t, "mom@example.com", a.ParentsEmail)

	a = valid()
	a.FatherPhone = "call me"
	assert.Contains(t, fieldErrors(t, a.Validate()), "fatherPhone")

	a = valid()
	a.MotherPhone = "+1 (555) 123-4567"
	assert.NoError(t, a.Validate())

	a = valid()
	a.HasSiblingsHS = "yes"
	assert.Contains(t, fieldErrors(t, a.Validate()), "siblingNames")

	a = valid()
	a.HasSiblingsHS = "no"
	a.SiblingNames = "ignored"
	require.NoError(t, a.Validate())
	assert.Empty(t, a.SiblingNames)

	a = valid()
	a.IncomingCourse = "13th"
	assert.Contains(t, fieldErrors(t, a.Validate()), "incomingCourse")

	a = valid()
	a.IncomingCourse = "1st"
	a.ChangeReason = "moving"
	require.NoError(t, a.Validate())
	assert.Empty(t, a.ChangeReason)
}

func TestAsksChangeReason(t *testing.T) {
	assert.False(t, AsksChangeReason("Kinder"))
	assert.False(t, AsksChangeReason("1st"))
	assert.True(t, AsksChangeReason("2nd"))
	assert.True(t, AsksChangeReason("12th"))
}

func TestLeaveRequest(t *testing.T) {
	full := LeaveRequest{Student: "3", Type: LeaveFullDay, Reason: "doctor", DateStart: "2026-03-02", DateEnd: "2026-03-03", Subjects: []string{"Math"}}
	require.NoError(t, full.Validate())
	assert.Nil(t, full.Subjects)

	backwards := LeaveRequest{Student: "3", Type: LeaveFullDay, Reason: "x", DateStart: "2026-03-04", DateEnd: "2026-03-03"}
	assert.Contains(t, fieldErrors(t, backwards.Validate()), "dateEnd")

	missing := LeaveRequest{Student: "3", Type: LeaveFullDay, Reason: "x"}
	fe := fieldErrors(t, missing.Validate())
	assert.Contains(t, fe, "dateStart")
	assert.Contains(t, fe, "dateEnd")

	partial := LeaveRequest{Student: "3", Type: LeavePartial, Reason: "x", DatePartial: "2026-03-02", Subjects: []string{" ", ""}}
	assert.Contains(t, fieldErrors(t, partial.Validate()), "subjects")

	partial.Subjects = []string{"Math", " Art "}
	require.NoError(t, partial.Validate())
	assert.Equal(t, []string{"Math", "Art"}, partial.Subjects)

	bad := LeaveRequest{Student: "3", Type: "half", Reason: "x"}
	assert.Contains(t, fieldErrors(t, bad.Validate()), "type")
}

func TestSeatReservation(t *testing.T) {
	s := SeatReservation{Student: "3", Confirm: "si"}
	require.NoError(t, s.Validate())
	assert.Equal(t, "SI", s.Confirm)

	s = SeatReservation{Student: "3", Confirm: "maybe"}
	assert.Contains(t, fieldErrors(t, s.Validate()), "confirm")
}

func TestSpotlight(t *testing.T) {
	s := Spotlight{FullName: "Luis", GraduationYear: "2012"}
	assert.Contains(t, fieldErrors(t, s.Validate()), "graduationYear")

	s.GraduationYear = "2012-06-01"
	assert.NoError(t, s.Validate())
}

func TestDonation(t *testing.T) {
	d := Donation{Amount: decimal.Zero, Designation: "General"}
	fe := fieldErrors(t, d.Validate())
	assert.Contains(t, fe, "amount")
	assert.Equal(t, FrequencyOnce, d.Frequency)

	d = Donation{Amount: decimal.RequireFromString("25.50"), Frequency: "Monthly", Designation: "Arts", Email: "bad"}
	assert.Contains(t, fieldErrors(t, d.Validate()), "email")

	d.Email = "Donor@Example.com"
	require.NoError(t, d.Validate())
	assert.Equal(t, FrequencyMonthly, d.Frequency)
	assert.Equal(t, "donor@example.com", d.Email)
}

func TestFieldErrorsMessage(t *testing.T) {
	err := FieldErrors{"a": "is required"}
	assert.Equal(t, "invalid form: a: is required", err.Error())
}
