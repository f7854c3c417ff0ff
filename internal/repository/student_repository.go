package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/shopspring/decimal"

	"github.com/noah-isme/student-management/internal/models"
)

const studentColumns = "id, name, email, phone, balance, course_id, enrollment_date, status"

// StudentRepository manages persistence for student records.
type StudentRepository struct {
	db *sqlx.DB
}

// NewStudentRepository constructs a StudentRepository.
func NewStudentRepository(db *sqlx.DB) *StudentRepository {
	return &StudentRepository{db: db}
}

// FindAll returns every student ordered by ID.
func (r *StudentRepository) FindAll(ctx context.Context) ([]models.Student, error) {
	query := "SELECT " + studentColumns + " FROM students ORDER BY id"
	students := []models.Student{}
	if err := r.db.SelectContext(ctx, &students, query); err != nil {
		return nil, fmt.Errorf("list students: %w", err)
	}
	return students, nil
}

// FindByID fetches a student by ID. It returns sql.ErrNoRows when absent.
func (r *StudentRepository) FindByID(ctx context.Context, id int64) (*models.Student, error) {
	query := "SELECT " + studentColumns + " FROM students WHERE id = $1"
	var student models.Student
	if err := r.db.GetContext(ctx, &student, query, id); err != nil {
		return nil, err
	}
	return &student, nil
}

// FindByEmail fetches a student by email. It returns sql.ErrNoRows when absent.
func (r *StudentRepository) FindByEmail(ctx context.Context, email string) (*models.Student, error) {
	query := "SELECT " + studentColumns + " FROM students WHERE email = $1"
	var student models.Student
	if err := r.db.GetContext(ctx, &student, query, email); err != nil {
		return nil, err
	}
	return &student, nil
}

// FindByCourse returns the students currently referencing a course.
func (r *StudentRepository) FindByCourse(ctx context.Context, courseID int64) ([]models.Student, error) {
	return r.findByCourse(ctx, r.db, courseID, false)
}

// FindByCourseTx is FindByCourse inside tx, locking the returned rows.
func (r *StudentRepository) FindByCourseTx(ctx context.Context, tx *sqlx.Tx, courseID int64) ([]models.Student, error) {
	return r.findByCourse(ctx, tx, courseID, true)
}

func (r *StudentRepository) findByCourse(ctx context.Context, q sqlx.QueryerContext, courseID int64, lock bool) ([]models.Student, error) {
	query := "SELECT " + studentColumns + " FROM students WHERE course_id = $1 ORDER BY id"
	if lock {
		query += " FOR UPDATE"
	}
	students := []models.Student{}
	if err := sqlx.SelectContext(ctx, q, &students, query, courseID); err != nil {
		return nil, fmt.Errorf("list course students: %w", err)
	}
	return students, nil
}

// Create inserts a new student and assigns its generated ID.
func (r *StudentRepository) Create(ctx context.Context, student *models.Student) error {
	if student.EnrollmentDate.IsZero() {
		student.EnrollmentDate = time.Now().UTC()
	}
	if student.Status == "" {
		student.Status = models.StudentStatusActive
	}
	const query = `INSERT INTO students (name, email, phone, balance, course_id, enrollment_date, status)
        VALUES ($1, $2, $3, $4, $5, $6, $7) RETURNING id`
	err := r.db.QueryRowxContext(ctx, query,
		student.Name, student.Email, student.Phone, student.Balance, student.CourseID, student.EnrollmentDate, student.Status,
	).Scan(&student.ID)
	if err != nil {
		if isUniqueViolation(err, studentsEmailConstraint) {
			return ErrDuplicateEmail
		}
		return fmt.Errorf("create student: %w", err)
	}
	return nil
}

// Update replaces the profile fields of a student. Balance, course and
// enrollment date are owned by the fee and enrollment operations.
func (r *StudentRepository) Update(ctx context.Context, student *models.Student) error {
	const query = `UPDATE students SET name = $2, email = $3, phone = $4, status = $5 WHERE id = $1`
	res, err := r.db.ExecContext(ctx, query, student.ID, student.Name, student.Email, student.Phone, student.Status)
	if err != nil {
		if isUniqueViolation(err, studentsEmailConstraint) {
			return ErrDuplicateEmail
		}
		return fmt.Errorf("update student: %w", err)
	}
	return requireAffected(res, "update student")
}

// Delete removes a student; fee transactions cascade at the database level.
func (r *StudentRepository) Delete(ctx context.Context, id int64) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM students WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete student: %w", err)
	}
	return requireAffected(res, "delete student")
}

// FindByIDForUpdate loads a student inside tx holding a row lock until the
// transaction ends.
func (r *StudentRepository) FindByIDForUpdate(ctx context.Context, tx *sqlx.Tx, id int64) (*models.Student, error) {
	query := "SELECT " + studentColumns + " FROM students WHERE id = $1 FOR UPDATE"
	var student models.Student
	if err := tx.GetContext(ctx, &student, query, id); err != nil {
		return nil, err
	}
	return &student, nil
}

// UpdateBalanceTx persists a new balance inside tx.
func (r *StudentRepository) UpdateBalanceTx(ctx context.Context, tx *sqlx.Tx, id int64, balance decimal.Decimal) error {
	res, err := tx.ExecContext(ctx, `UPDATE students SET balance = $2 WHERE id = $1`, id, balance)
	if err != nil {
		return fmt.Errorf("update student balance: %w", err)
	}
	return requireAffected(res, "update student balance")
}

// UpdateEnrollmentTx points the student at a course and replaces its balance.
func (r *StudentRepository) UpdateEnrollmentTx(ctx context.Context, tx *sqlx.Tx, id, courseID int64, balance decimal.Decimal) error {
	res, err := tx.ExecContext(ctx, `UPDATE students SET course_id = $2, balance = $3 WHERE id = $1`, id, courseID, balance)
	if err != nil {
		return fmt.Errorf("update student enrollment: %w", err)
	}
	return requireAffected(res, "update student enrollment")
}

// DeleteByIDsTx removes the given students inside tx and reports how many rows went.
func (r *StudentRepository) DeleteByIDsTx(ctx context.Context, tx *sqlx.Tx, ids []int64) (int64, error) {
	if len(ids) == 0 {
		return 0, nil
	}
	res, err := tx.ExecContext(ctx, `DELETE FROM students WHERE id = ANY($1)`, pq.Array(ids))
	if err != nil {
		return 0, fmt.Errorf("delete students: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("delete students: %w", err)
	}
	return n, nil
}

func requireAffected(res sql.Result, op string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	if n == 0 {
		return sql.ErrNoRows
	}
	return nil
}
