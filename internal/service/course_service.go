package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/jmoiron/sqlx"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/noah-isme/student-management/internal/models"
	"github.com/noah-isme/student-management/pkg/database"
	appErrors "github.com/noah-isme/student-management/pkg/errors"
)

const (
	courseCacheAll     = "courses:all"
	courseCachePattern = "courses:*"
)

// maxFee is the largest value a NUMERIC(10,2) column holds.
var maxFee = decimal.RequireFromString("99999999.99")

type courseRepository interface {
	FindAll(ctx context.Context) ([]models.Course, error)
	FindByID(ctx context.Context, id int64) (*models.Course, error)
	FindByIDForUpdate(ctx context.Context, tx *sqlx.Tx, id int64) (*models.Course, error)
	Create(ctx context.Context, course *models.Course) error
	Update(ctx context.Context, course *models.Course) error
	DeleteTx(ctx context.Context, tx *sqlx.Tx, id int64) error
}

type courseStudentRemover interface {
	FindByCourseTx(ctx context.Context, tx *sqlx.Tx, courseID int64) ([]models.Student, error)
	DeleteByIDsTx(ctx context.Context, tx *sqlx.Tx, ids []int64) (int64, error)
}

// CourseRequest is the payload for creating or replacing a course.
type CourseRequest struct {
	CourseName  string          `json:"course_name" validate:"required,max=100"`
	Duration    *string         `json:"duration" validate:"omitempty,max=50"`
	Fee         decimal.Decimal `json:"fee"`
	Description *string         `json:"description" validate:"omitempty,max=500"`
}

// CourseService manages courses. Reads go through the cache when enabled.
type CourseService struct {
	db        txProvider
	repo      courseRepository
	students  courseStudentRemover
	cache     *CacheService
	cacheTTL  time.Duration
	validator *validator.Validate
	logger    *zap.Logger
}

// NewCourseService constructs CourseService. cache may be nil.
func NewCourseService(db txProvider, repo courseRepository, students courseStudentRemover, cache *CacheService, cacheTTL time.Duration, validate *validator.Validate, logger *zap.Logger) *CourseService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &CourseService{db: db, repo: repo, students: students, cache: cache, cacheTTL: cacheTTL, validator: validate, logger: logger}
}

// List returns every course ordered by ID.
func (s *CourseService) List(ctx context.Context) ([]models.Course, error) {
	var cached []models.Course
	if s.cache.Get(ctx, courseCacheAll, &cached) {
		return cached, nil
	}
	courses, err := s.repo.FindAll(ctx)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list courses")
	}
	s.cache.Set(ctx, courseCacheAll, courses, s.cacheTTL)
	return courses, nil
}

// Get returns a single course.
func (s *CourseService) Get(ctx context.Context, id int64) (*models.Course, error) {
	key := courseCacheKey(id)
	var cached models.Course
	if s.cache.Get(ctx, key, &cached) {
		return &cached, nil
	}
	course, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, courseLookupError(err)
	}
	s.cache.Set(ctx, key, course, s.cacheTTL)
	return course, nil
}

// Create stores a new course.
func (s *CourseService) Create(ctx context.Context, req CourseRequest) (*models.Course, error) {
	if err := s.validate(&req); err != nil {
		return nil, err
	}
	course := &models.Course{CourseName: req.CourseName, Duration: req.Duration, Fee: req.Fee, Description: req.Description}
	if err := s.repo.Create(ctx, course); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create course")
	}
	s.cache.Invalidate(ctx, courseCachePattern)
	s.logger.Info("course created", zap.Int64("course_id", course.ID))
	return course, nil
}

// Update replaces every field of a course. Enrolled students keep the
// balance they were charged at enrollment.
func (s *CourseService) Update(ctx context.Context, id int64, req CourseRequest) (*models.Course, error) {
	if err := s.validate(&req); err != nil {
		return nil, err
	}
	course := &models.Course{ID: id, CourseName: req.CourseName, Duration: req.Duration, Fee: req.Fee, Description: req.Description}
	if err := s.repo.Update(ctx, course); err != nil {
		return nil, courseLookupError(err)
	}
	s.cache.Invalidate(ctx, courseCachePattern)
	return course, nil
}

// Delete removes a course together with every student enrolled in it and
// returns how many students were removed.
func (s *CourseService) Delete(ctx context.Context, id int64) (int, error) {
	var removed int64
	err := database.WithTx(ctx, s.db, func(tx *sqlx.Tx) error {
		if _, err := s.repo.FindByIDForUpdate(ctx, tx, id); err != nil {
			return courseLookupError(err)
		}
		enrolled, err := s.students.FindByCourseTx(ctx, tx, id)
		if err != nil {
			return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load course students")
		}
		ids := make([]int64, 0, len(enrolled))
		for _, st := range enrolled {
			ids = append(ids, st.ID)
		}
		if removed, err = s.students.DeleteByIDsTx(ctx, tx, ids); err != nil {
			return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to remove course students")
		}
		if err := s.repo.DeleteTx(ctx, tx, id); err != nil {
			return courseLookupError(err)
		}
		return nil
	})
	if err != nil {
		var appErr *appErrors.Error
		if !errors.As(err, &appErr) {
			err = appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to delete course")
		}
		return 0, err
	}
	s.cache.Invalidate(ctx, courseCachePattern)
	s.logger.Warn("course deleted with enrolled students", zap.Int64("course_id", id), zap.Int64("students_removed", removed))
	return int(removed), nil
}

func (s *CourseService) validate(req *CourseRequest) error {
	req.CourseName = strings.TrimSpace(req.CourseName)
	req.Duration = trimOptional(req.Duration)
	req.Description = trimOptional(req.Description)
	if err := s.validator.Struct(req); err != nil {
		return appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid course payload")
	}
	if req.Fee.IsNegative() || req.Fee.GreaterThan(maxFee) {
		return appErrors.Clone(appErrors.ErrValidation, "fee must be between 0 and "+maxFee.StringFixed(2))
	}
	if !req.Fee.Equal(req.Fee.Round(2)) {
		return appErrors.Clone(appErrors.ErrValidation, "fee must have at most two decimal places")
	}
	return nil
}

func courseCacheKey(id int64) string {
	return fmt.Sprintf("courses:%d", id)
}

func courseLookupError(err error) error {
	if errors.Is(err, sql.ErrNoRows) {
		return appErrors.Clone(appErrors.ErrNotFound, "course not found")
	}
	return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load course")
}
