package service

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/noah-isme/student-management/internal/models"
	"github.com/noah-isme/student-management/pkg/export"
	appErrors "github.com/noah-isme/student-management/pkg/errors"
)

// Roster export formats.
const (
	ExportFormatCSV = "csv"
	ExportFormatPDF = "pdf"
)

var rosterHeaders = []string{"ID", "Name", "Email", "Phone", "Balance", "Course", "Status"}

type rosterSource interface {
	FindAll(ctx context.Context) ([]models.Student, error)
}

type courseCatalog interface {
	List(ctx context.Context) ([]models.Course, error)
}

type renderer interface {
	ContentType() string
	Extension() string
	Render(data export.Dataset) ([]byte, error)
}

type fileStorage interface {
	Save(filename string, data []byte) (string, error)
}

// ExportResult is a rendered roster document.
type ExportResult struct {
	Filename    string
	ContentType string
	Data        []byte
}

// ExportService renders the student roster as CSV or PDF.
type ExportService struct {
	students  rosterSource
	courses   courseCatalog
	renderers map[string]renderer
	storage   fileStorage
	logger    *zap.Logger
	now       func() time.Time
}

// NewExportService constructs ExportService. storage may be nil when files
// are never written to disk.
func NewExportService(students rosterSource, courses courseCatalog, storage fileStorage, logger *zap.Logger) *ExportService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ExportService{
		students: students,
		courses:  courses,
		renderers: map[string]renderer{
			ExportFormatCSV: export.NewCSVExporter(),
			ExportFormatPDF: export.NewPDFExporter(),
		},
		storage: storage,
		logger:  logger,
		now:     time.Now,
	}
}

// ExportStudents renders every student in the requested format.
func (s *ExportService) ExportStudents(ctx context.Context, format string) (*ExportResult, error) {
	format = strings.ToLower(strings.TrimSpace(format))
	r, ok := s.renderers[format]
	if !ok {
		return nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("unsupported export format %q", format))
	}

	dataset, err := s.rosterDataset(ctx)
	if err != nil {
		return nil, err
	}
	data, err := r.Render(dataset)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to render roster")
	}

	filename := fmt.Sprintf("students_%s.%s", s.now().UTC().Format("20060102_150405"), r.Extension())
	return &ExportResult{Filename: filename, ContentType: r.ContentType(), Data: data}, nil
}

// SaveStudents renders the roster and writes it to storage, returning the
// stored path.
func (s *ExportService) SaveStudents(ctx context.Context, format string) (string, error) {
	if s.storage == nil {
		return "", appErrors.Clone(appErrors.ErrInternal, "export storage not configured")
	}
	result, err := s.ExportStudents(ctx, format)
	if err != nil {
		return "", err
	}
	path, err := s.storage.Save(result.Filename, result.Data)
	if err != nil {
		return "", appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to store roster")
	}
	s.logger.Info("roster exported", zap.String("path", path), zap.Int("bytes", len(result.Data)))
	return path, nil
}

func (s *ExportService) rosterDataset(ctx context.Context) (export.Dataset, error) {
	students, err := s.students.FindAll(ctx)
	if err != nil {
		return export.Dataset{}, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load students")
	}
	courses, err := s.courses.List(ctx)
	if err != nil {
		return export.Dataset{}, err
	}
	names := make(map[int64]string, len(courses))
	for _, c := range courses {
		names[c.ID] = c.CourseName
	}

	rows := make([]map[string]string, 0, len(students))
	for _, st := range students {
		course := ""
		if st.CourseID != nil {
			course = names[*st.CourseID]
		}
		rows = append(rows, map[string]string{
			"ID":      strconv.FormatInt(st.ID, 10),
			"Name":    st.Name,
			"Email":   st.Email,
			"Phone":   st.PhoneValue(),
			"Balance": st.Balance.StringFixed(2),
			"Course":  course,
			"Status":  st.Status,
		})
	}
	return export.Dataset{Title: "Student Roster", Headers: rosterHeaders, Rows: rows}, nil
}
