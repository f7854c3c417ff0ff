package repository

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/student-management/internal/models"
)

const courseColumns = "id, course_name, duration, fee, description"

// CourseRepository handles persistence of courses.
type CourseRepository struct {
	db *sqlx.DB
}

// NewCourseRepository constructs the repository.
func NewCourseRepository(db *sqlx.DB) *CourseRepository {
	return &CourseRepository{db: db}
}

// FindAll returns every course ordered by ID.
func (r *CourseRepository) FindAll(ctx context.Context) ([]models.Course, error) {
	query := "SELECT " + courseColumns + " FROM courses ORDER BY id"
	courses := []models.Course{}
	if err := r.db.SelectContext(ctx, &courses, query); err != nil {
		return nil, fmt.Errorf("list courses: %w", err)
	}
	return courses, nil
}

// FindByID returns a course by its ID or sql.ErrNoRows.
func (r *CourseRepository) FindByID(ctx context.Context, id int64) (*models.Course, error) {
	return r.findByID(ctx, r.db, id, "")
}

// FindByIDTx reads a course inside tx without locking it.
func (r *CourseRepository) FindByIDTx(ctx context.Context, tx *sqlx.Tx, id int64) (*models.Course, error) {
	return r.findByID(ctx, tx, id, "")
}

// FindByIDForUpdate reads and locks a course inside tx.
func (r *CourseRepository) FindByIDForUpdate(ctx context.Context, tx *sqlx.Tx, id int64) (*models.Course, error) {
	return r.findByID(ctx, tx, id, " FOR UPDATE")
}

func (r *CourseRepository) findByID(ctx context.Context, q sqlx.QueryerContext, id int64, suffix string) (*models.Course, error) {
	query := "SELECT " + courseColumns + " FROM courses WHERE id = $1" + suffix
	var course models.Course
	if err := sqlx.GetContext(ctx, q, &course, query, id); err != nil {
		return nil, err
	}
	return &course, nil
}

// Create persists a new course and assigns its generated ID.
func (r *CourseRepository) Create(ctx context.Context, course *models.Course) error {
	const query = `INSERT INTO courses (course_name, duration, fee, description) VALUES ($1, $2, $3, $4) RETURNING id`
	if err := r.db.QueryRowxContext(ctx, query, course.CourseName, course.Duration, course.Fee, course.Description).Scan(&course.ID); err != nil {
		return fmt.Errorf("create course: %w", err)
	}
	return nil
}

// Update replaces all fields of a course by ID.
func (r *CourseRepository) Update(ctx context.Context, course *models.Course) error {
	const query = `UPDATE courses SET course_name = $2, duration = $3, fee = $4, description = $5 WHERE id = $1`
	res, err := r.db.ExecContext(ctx, query, course.ID, course.CourseName, course.Duration, course.Fee, course.Description)
	if err != nil {
		return fmt.Errorf("update course: %w", err)
	}
	return requireAffected(res, "update course")
}

// DeleteTx removes a course inside tx. Dependent students must already be gone.
func (r *CourseRepository) DeleteTx(ctx context.Context, tx *sqlx.Tx, id int64) error {
	res, err := tx.ExecContext(ctx, `DELETE FROM courses WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete course: %w", err)
	}
	return requireAffected(res, "delete course")
}
