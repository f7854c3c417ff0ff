package models

import "github.com/shopspring/decimal"

// Course is an offering students can enroll in. Fee is the amount charged on
// enrollment.
type Course struct {
	ID          int64           `db:"id" json:"id"`
	CourseName  string          `db:"course_name" json:"course_name"`
	Duration    *string         `db:"duration" json:"duration,omitempty"`
	Fee         decimal.Decimal `db:"fee" json:"fee"`
	Description *string         `db:"description" json:"description,omitempty"`
}
