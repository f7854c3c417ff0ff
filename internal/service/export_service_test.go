package service

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/noah-isme/student-management/internal/models"
	appErrors "github.com/noah-isme/student-management/pkg/errors"
)

type stubCatalog struct {
	courses []models.Course
	err     error
}

func (s stubCatalog) List(ctx context.Context) ([]models.Course, error) {
	return s.courses, s.err
}

type memoryStorage struct {
	files map[string][]byte
}

func (m *memoryStorage) Save(filename string, data []byte) (string, error) {
	if m.files == nil {
		m.files = map[string][]byte{}
	}
	m.files[filename] = data
	return "/exports/" + filename, nil
}

func newExportFixture() (*ExportService, *memoryStorage) {
	phone := "0812"
	students := newFakeStudentRepo(
		models.Student{ID: 1, Name: "Asha", Email: "asha@example.com", Phone: &phone, Balance: dec("300"), CourseID: int64Ptr(1), Status: "ACTIVE"},
		models.Student{ID: 2, Name: "Ben", Email: "ben@example.com", Balance: dec("0"), Status: "ACTIVE"},
	)
	catalog := stubCatalog{courses: []models.Course{{ID: 1, CourseName: "Go Programming"}}}
	storage := &memoryStorage{}
	svc := NewExportService(students, catalog, storage, zap.NewNop())
	svc.now = func() time.Time { return time.Date(2024, 3, 1, 9, 30, 0, 0, time.UTC) }
	return svc, storage
}

func TestExportStudentsCSV(t *testing.T) {
	svc, _ := newExportFixture()

	result, err := svc.ExportStudents(context.Background(), "CSV")
	require.NoError(t, err)
	assert.Equal(t, "students_20240301_093000.csv", result.Filename)
	assert.Equal(t, "text/csv", result.ContentType)

	lines := strings.Split(strings.TrimSpace(string(result.Data)), "\n")
	require.Len(t, lines, 3)
	assert.Equal(t, "ID,Name,Email,Phone,Balance,Course,Status", lines[0])
	assert.Equal(t, "1,Asha,asha@example.com,0812,300.00,Go Programming,ACTIVE", lines[1])
	assert.Equal(t, "2,Ben,ben@example.com,,0.00,,ACTIVE", lines[2])
}

func TestExportStudentsPDF(t *testing.T) {
	svc, _ := newExportFixture()

	result, err := svc.ExportStudents(context.Background(), "pdf")
	require.NoError(t, err)
	assert.Equal(t, "application/pdf", result.ContentType)
	assert.True(t, strings.HasPrefix(string(result.Data), "%PDF-"))
}

func TestExportStudentsUnknownFormat(t *testing.T) {
	svc, _ := newExportFixture()

	_, err := svc.ExportStudents(context.Background(), "xlsx")
	assert.True(t, appErrors.HasCode(err, appErrors.ErrValidation.Code))
}

func TestSaveStudentsWritesToStorage(t *testing.T) {
	svc, storage := newExportFixture()

	path, err := svc.SaveStudents(context.Background(), "csv")
	require.NoError(t, err)
	assert.Equal(t, "/exports/students_20240301_093000.csv", path)
	assert.Contains(t, storage.files, "students_20240301_093000.csv")
}
