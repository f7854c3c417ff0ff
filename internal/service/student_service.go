package service

import (
	"context"
	"database/sql"
	"errors"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/jmoiron/sqlx"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/noah-isme/student-management/internal/models"
	"github.com/noah-isme/student-management/internal/repository"
	"github.com/noah-isme/student-management/pkg/database"
	appErrors "github.com/noah-isme/student-management/pkg/errors"
)

type studentRepository interface {
	FindAll(ctx context.Context) ([]models.Student, error)
	FindByID(ctx context.Context, id int64) (*models.Student, error)
	FindByEmail(ctx context.Context, email string) (*models.Student, error)
	FindByCourse(ctx context.Context, courseID int64) ([]models.Student, error)
	Create(ctx context.Context, student *models.Student) error
	Update(ctx context.Context, student *models.Student) error
	Delete(ctx context.Context, id int64) error
	FindByIDForUpdate(ctx context.Context, tx *sqlx.Tx, id int64) (*models.Student, error)
	UpdateEnrollmentTx(ctx context.Context, tx *sqlx.Tx, id, courseID int64, balance decimal.Decimal) error
}

type courseLookup interface {
	FindByID(ctx context.Context, id int64) (*models.Course, error)
	FindByIDTx(ctx context.Context, tx *sqlx.Tx, id int64) (*models.Course, error)
}

type ledgerWriter interface {
	CreateTx(ctx context.Context, tx *sqlx.Tx, entry *models.FeeTransaction) error
}

// CreateStudentRequest is the payload for registering a student.
type CreateStudentRequest struct {
	Name   string  `json:"name" validate:"required,max=100"`
	Email  string  `json:"email" validate:"required,email,max=100"`
	Phone  *string `json:"phone" validate:"omitempty,max=15"`
	Status string  `json:"status" validate:"omitempty,max=20"`
}

// UpdateStudentRequest replaces a student's profile fields. An empty status
// keeps the stored one.
type UpdateStudentRequest struct {
	Name   string  `json:"name" validate:"required,max=100"`
	Email  string  `json:"email" validate:"required,email,max=100"`
	Phone  *string `json:"phone" validate:"omitempty,max=15"`
	Status string  `json:"status" validate:"omitempty,max=20"`
}

// EnrollRequest names the course a student joins.
type EnrollRequest struct {
	CourseID int64 `json:"course_id" validate:"required,gt=0"`
}

// StudentService handles student records and course enrollment.
type StudentService struct {
	db        txProvider
	repo      studentRepository
	courses   courseLookup
	ledger    ledgerWriter
	validator *validator.Validate
	logger    *zap.Logger
}

// NewStudentService constructs StudentService.
func NewStudentService(db txProvider, repo studentRepository, courses courseLookup, ledger ledgerWriter, validate *validator.Validate, logger *zap.Logger) *StudentService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &StudentService{db: db, repo: repo, courses: courses, ledger: ledger, validator: validate, logger: logger}
}

// List returns every student ordered by ID.
func (s *StudentService) List(ctx context.Context) ([]models.Student, error) {
	students, err := s.repo.FindAll(ctx)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list students")
	}
	return students, nil
}

// Get returns a single student.
func (s *StudentService) Get(ctx context.Context, id int64) (*models.Student, error) {
	student, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, studentLookupError(err)
	}
	return student, nil
}

// GetByEmail looks a student up by email address.
func (s *StudentService) GetByEmail(ctx context.Context, email string) (*models.Student, error) {
	email = strings.TrimSpace(email)
	if email == "" {
		return nil, appErrors.Clone(appErrors.ErrValidation, "email is required")
	}
	student, err := s.repo.FindByEmail(ctx, email)
	if err != nil {
		return nil, studentLookupError(err)
	}
	return student, nil
}

// ListByCourse returns the students enrolled in a course.
func (s *StudentService) ListByCourse(ctx context.Context, courseID int64) ([]models.Student, error) {
	if _, err := s.courses.FindByID(ctx, courseID); err != nil {
		return nil, courseLookupError(err)
	}
	students, err := s.repo.FindByCourse(ctx, courseID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list course students")
	}
	return students, nil
}

// Create registers a student with a zero balance.
func (s *StudentService) Create(ctx context.Context, req CreateStudentRequest) (*models.Student, error) {
	req.Name = strings.TrimSpace(req.Name)
	req.Email = strings.TrimSpace(req.Email)
	req.Phone = trimOptional(req.Phone)
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid student payload")
	}
	student := &models.Student{
		Name:    req.Name,
		Email:   req.Email,
		Phone:   req.Phone,
		Balance: decimal.Zero,
		Status:  strings.TrimSpace(req.Status),
	}
	if err := s.repo.Create(ctx, student); err != nil {
		return nil, studentWriteError(err, "failed to create student")
	}
	s.logger.Info("student created", zap.Int64("student_id", student.ID))
	return student, nil
}

// Update replaces name, email, phone and status.
func (s *StudentService) Update(ctx context.Context, id int64, req UpdateStudentRequest) (*models.Student, error) {
	req.Name = strings.TrimSpace(req.Name)
	req.Email = strings.TrimSpace(req.Email)
	req.Phone = trimOptional(req.Phone)
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid student payload")
	}
	student, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, studentLookupError(err)
	}
	student.Name = req.Name
	student.Email = req.Email
	student.Phone = req.Phone
	if status := strings.TrimSpace(req.Status); status != "" {
		student.Status = status
	}
	if err := s.repo.Update(ctx, student); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "student not found")
		}
		return nil, studentWriteError(err, "failed to update student")
	}
	return student, nil
}

// Delete removes a student and, through the foreign key, its ledger.
func (s *StudentService) Delete(ctx context.Context, id int64) error {
	if err := s.repo.Delete(ctx, id); err != nil {
		return studentLookupError(err)
	}
	s.logger.Info("student deleted", zap.Int64("student_id", id))
	return nil
}

// Enroll assigns the student to a course and replaces the balance with the
// course fee. Any prior balance is discarded.
func (s *StudentService) Enroll(ctx context.Context, studentID, courseID int64) (*models.Student, error) {
	if err := s.validator.Struct(EnrollRequest{CourseID: courseID}); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid enrollment payload")
	}
	var enrolled *models.Student
	err := database.WithTx(ctx, s.db, func(tx *sqlx.Tx) error {
		student, err := s.repo.FindByIDForUpdate(ctx, tx, studentID)
		if err != nil {
			return studentLookupError(err)
		}
		course, err := s.courses.FindByIDTx(ctx, tx, courseID)
		if err != nil {
			return courseLookupError(err)
		}
		if err := s.repo.UpdateEnrollmentTx(ctx, tx, student.ID, course.ID, course.Fee); err != nil {
			return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to enroll student")
		}
		entry := &models.FeeTransaction{
			StudentID:     student.ID,
			Type:          models.FeeTransactionEnrollment,
			Amount:        course.Fee,
			BalanceBefore: student.Balance,
			BalanceAfter:  course.Fee,
		}
		if err := s.ledger.CreateTx(ctx, tx, entry); err != nil {
			return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to record enrollment")
		}
		student.CourseID = &course.ID
		student.Balance = course.Fee
		enrolled = student
		return nil
	})
	if err != nil {
		var appErr *appErrors.Error
		if !errors.As(err, &appErr) {
			err = appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to enroll student")
		}
		return nil, err
	}
	s.logger.Info("student enrolled",
		zap.Int64("student_id", studentID),
		zap.Int64("course_id", courseID),
		zap.String("balance", enrolled.Balance.StringFixed(2)),
	)
	return enrolled, nil
}

func studentWriteError(err error, message string) error {
	if errors.Is(err, repository.ErrDuplicateEmail) {
		return appErrors.Clone(appErrors.ErrConflict, "email already registered")
	}
	return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, message)
}

func trimOptional(v *string) *string {
	if v == nil {
		return nil
	}
	trimmed := strings.TrimSpace(*v)
	if trimmed == "" {
		return nil
	}
	return &trimmed
}
