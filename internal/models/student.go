package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// StudentStatusActive is the status assigned to newly created students.
const StudentStatusActive = "ACTIVE"

// Student represents a learner registered in the system.
type Student struct {
	ID             int64           `db:"id" json:"id"`
	Name           string          `db:"name" json:"name"`
	Email          string          `db:"email" json:"email"`
	Phone          *string         `db:"phone" json:"phone,omitempty"`
	Balance        decimal.Decimal `db:"balance" json:"balance"`
	CourseID       *int64          `db:"course_id" json:"course_id,omitempty"`
	EnrollmentDate time.Time       `db:"enrollment_date" json:"enrollment_date"`
	Status         string          `db:"status" json:"status"`
}

// Enrolled reports whether the student references a course.
func (s *Student) Enrolled() bool {
	return s != nil && s.CourseID != nil
}

// PhoneValue returns the phone number or an empty string.
func (s *Student) PhoneValue() string {
	if s == nil || s.Phone == nil {
		return ""
	}
	return *s.Phone
}
