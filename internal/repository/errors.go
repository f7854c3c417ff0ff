package repository

import (
	"errors"

	"github.com/lib/pq"
)

// ErrDuplicateEmail is returned when the students_email_key constraint fires.
var ErrDuplicateEmail = errors.New("student email already exists")

const (
	uniqueViolation         = "23505"
	studentsEmailConstraint = "students_email_key"
)

func isUniqueViolation(err error, constraint string) bool {
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && string(pqErr.Code) == uniqueViolation && pqErr.Constraint == constraint
}
