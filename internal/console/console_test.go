package console

import (
	"bytes"
	"context"
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/student-management/internal/models"
	"github.com/noah-isme/student-management/internal/service"
	appErrors "github.com/noah-isme/student-management/pkg/errors"
)

type memoryBackend struct {
	students map[int64]*models.Student
	courses  map[int64]*models.Course
	ledger   []models.FeeTransaction
	exported string
	nextID   int64
}

func newMemoryBackend() *memoryBackend {
	return &memoryBackend{
		students: map[int64]*models.Student{},
		courses:  map[int64]*models.Course{1: {ID: 1, CourseName: "Go Programming", Fee: decimal.RequireFromString("500.00")}},
		nextID:   1,
	}
}

func (m *memoryBackend) services() Services {
	return Services{Students: m, Fees: feeBackend{m}, Courses: courseBackend{m}, Exporter: m}
}

func (m *memoryBackend) List(ctx context.Context) ([]models.Student, error) {
	out := []models.Student{}
	for id := int64(1); id < m.nextID; id++ {
		if s, ok := m.students[id]; ok {
			out = append(out, *s)
		}
	}
	return out, nil
}

func (m *memoryBackend) Get(ctx context.Context, id int64) (*models.Student, error) {
	s, ok := m.students[id]
	if !ok {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "student not found")
	}
	copied := *s
	return &copied, nil
}

func (m *memoryBackend) Create(ctx context.Context, req service.CreateStudentRequest) (*models.Student, error) {
	s := &models.Student{ID: m.nextID, Name: req.Name, Email: req.Email, Phone: req.Phone, Status: models.StudentStatusActive}
	m.students[s.ID] = s
	m.nextID++
	return s, nil
}

func (m *memoryBackend) Update(ctx context.Context, id int64, req service.UpdateStudentRequest) (*models.Student, error) {
	s, ok := m.students[id]
	if !ok {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "student not found")
	}
	s.Name, s.Email, s.Phone, s.Status = req.Name, req.Email, req.Phone, req.Status
	return s, nil
}

func (m *memoryBackend) Delete(ctx context.Context, id int64) error {
	if _, ok := m.students[id]; !ok {
		return appErrors.Clone(appErrors.ErrNotFound, "student not found")
	}
	delete(m.students, id)
	return nil
}

func (m *memoryBackend) Enroll(ctx context.Context, studentID, courseID int64) (*models.Student, error) {
	s, err := m.Get(ctx, studentID)
	if err != nil {
		return nil, err
	}
	course, ok := m.courses[courseID]
	if !ok {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "course not found")
	}
	stored := m.students[s.ID]
	stored.CourseID = &course.ID
	stored.Balance = course.Fee
	return stored, nil
}

func (m *memoryBackend) SaveStudents(ctx context.Context, format string) (string, error) {
	m.exported = format
	return "/tmp/students." + format, nil
}

type feeBackend struct{ m *memoryBackend }

func (f feeBackend) ProcessPayment(ctx context.Context, id int64, amount decimal.Decimal) error {
	s, ok := f.m.students[id]
	if !ok {
		return appErrors.Clone(appErrors.ErrNotFound, "student not found")
	}
	if !amount.IsPositive() {
		return appErrors.ErrInvalidAmount
	}
	if s.Balance.LessThan(amount) {
		return appErrors.Clone(appErrors.ErrInsufficientFunds, "insufficient balance: current balance is "+s.Balance.StringFixed(2))
	}
	f.m.ledger = append(f.m.ledger, models.FeeTransaction{StudentID: id, Type: models.FeeTransactionPayment, Amount: amount, BalanceBefore: s.Balance, BalanceAfter: s.Balance.Sub(amount), CreatedAt: time.Now()})
	s.Balance = s.Balance.Sub(amount)
	return nil
}

func (f feeBackend) ProcessRefund(ctx context.Context, id int64, amount decimal.Decimal) error {
	s, ok := f.m.students[id]
	if !ok {
		return appErrors.Clone(appErrors.ErrNotFound, "student not found")
	}
	s.Balance = s.Balance.Add(amount)
	return nil
}

func (f feeBackend) GetBalance(ctx context.Context, id int64) (decimal.Decimal, error) {
	s, ok := f.m.students[id]
	if !ok {
		return decimal.Zero, appErrors.Clone(appErrors.ErrNotFound, "student not found")
	}
	return s.Balance, nil
}

func (f feeBackend) PayFullFee(ctx context.Context, id int64) error {
	s, ok := f.m.students[id]
	if !ok {
		return appErrors.Clone(appErrors.ErrNotFound, "student not found")
	}
	if !s.Enrolled() {
		return appErrors.ErrNotEnrolled
	}
	return f.ProcessPayment(ctx, id, s.Balance)
}

func (f feeBackend) ListTransactions(ctx context.Context, id int64) ([]models.FeeTransaction, error) {
	return f.m.ledger, nil
}

type courseBackend struct{ m *memoryBackend }

func (c courseBackend) List(ctx context.Context) ([]models.Course, error) {
	out := []models.Course{}
	for _, co := range c.m.courses {
		out = append(out, *co)
	}
	return out, nil
}

func (c courseBackend) Create(ctx context.Context, req service.CourseRequest) (*models.Course, error) {
	co := &models.Course{ID: int64(len(c.m.courses) + 1), CourseName: req.CourseName, Duration: req.Duration, Fee: req.Fee}
	c.m.courses[co.ID] = co
	return co, nil
}

func (c courseBackend) Delete(ctx context.Context, id int64) (int, error) {
	if _, ok := c.m.courses[id]; !ok {
		return 0, appErrors.Clone(appErrors.ErrNotFound, "course not found")
	}
	delete(c.m.courses, id)
	removed := 0
	for sid, s := range c.m.students {
		if s.CourseID != nil && *s.CourseID == id {
			delete(c.m.students, sid)
			removed++
		}
	}
	return removed, nil
}

func runScript(t *testing.T, backend *memoryBackend, lines ...string) string {
	t.Helper()
	var out bytes.Buffer
	in := strings.NewReader(strings.Join(lines, "\n") + "\n")
	err := New(in, &out, backend.services(), nil).Run(context.Background())
	require.NoError(t, err)
	return out.String()
}

func TestConsoleFeeLifecycle(t *testing.T) {
	backend := newMemoryBackend()
	out := runScript(t, backend,
		"1", "Asha", "asha@example.com", "0812",
		"8", "1", "1",
		"5", "1", "200.00",
		"5", "1", "400.00",
		"6", "1", "50.00",
		"7", "1",
		"0",
	)

	assert.Contains(t, out, "Student added successfully! ID: 1")
	assert.Contains(t, out, "Balance due: 500.00")
	assert.Contains(t, out, "New balance: 300.00")
	assert.Contains(t, out, "Error: insufficient balance: current balance is 300.00")
	assert.Contains(t, out, "New balance: 350.00")
	assert.Contains(t, out, "Current balance: 350.00")
	assert.Contains(t, out, "Thank you for using Student Management System!")
}

func TestConsoleListsStudentsInTable(t *testing.T) {
	backend := newMemoryBackend()
	out := runScript(t, backend,
		"2",
		"1", "Asha", "asha@example.com", "",
		"2",
		"0",
	)

	assert.Contains(t, out, "No students found.")
	assert.Regexp(t, `ID\s+Name\s+Email\s+Phone\s+Balance\s+Course\s+Status`, out)
	assert.Regexp(t, `1\s+Asha\s+asha@example.com\s+-\s+0.00\s+-\s+ACTIVE`, out)
}

func TestConsoleUpdateKeepsBlankFields(t *testing.T) {
	backend := newMemoryBackend()
	runScript(t, backend,
		"1", "Asha", "asha@example.com", "0812",
		"3", "1", "Asha Rao", "", "", "",
		"0",
	)

	s := backend.students[1]
	assert.Equal(t, "Asha Rao", s.Name)
	assert.Equal(t, "asha@example.com", s.Email)
	assert.Equal(t, "0812", s.PhoneValue())
	assert.Equal(t, models.StudentStatusActive, s.Status)
}

func TestConsoleRecoversFromBadInput(t *testing.T) {
	backend := newMemoryBackend()
	out := runScript(t, backend,
		"42",
		"5", "abc",
		"7", "9",
		"9", "1",
		"0",
	)

	assert.Contains(t, out, "Invalid choice! Please try again.")
	assert.Contains(t, out, `Error: "abc" is not a valid ID`)
	assert.Contains(t, out, "Error: student not found")
}

func TestConsolePayFullFeeRequiresCourse(t *testing.T) {
	backend := newMemoryBackend()
	out := runScript(t, backend,
		"1", "Asha", "asha@example.com", "",
		"9", "1",
		"8", "1", "1",
		"9", "1",
		"0",
	)

	assert.Contains(t, out, "Error: student is not enrolled in any course")
	assert.Contains(t, out, "Full fee paid successfully!")
	assert.Contains(t, out, "New balance: 0.00")
}

func TestConsoleCourseDeletionNeedsConfirmation(t *testing.T) {
	backend := newMemoryBackend()
	out := runScript(t, backend,
		"1", "Asha", "asha@example.com", "",
		"8", "1", "1",
		"12", "1", "no",
		"12", "1", "YES",
		"0",
	)

	assert.Contains(t, out, "Deletion cancelled.")
	assert.Contains(t, out, "Students removed: 1")
	assert.Empty(t, backend.students)
}

func TestConsoleCoursesHistoryAndExport(t *testing.T) {
	backend := newMemoryBackend()
	out := runScript(t, backend,
		"11", "Rust", "8 weeks", "650.00", "",
		"10",
		"1", "Asha", "asha@example.com", "",
		"8", "1", "1",
		"5", "1", "100",
		"13", "1",
		"14", "",
		"0",
	)

	assert.Contains(t, out, "Course added successfully! ID: 2")
	assert.Regexp(t, `2\s+Rust\s+8 weeks\s+650.00`, out)
	assert.Regexp(t, `PAYMENT\s+100.00\s+500.00\s+400.00`, out)
	assert.Contains(t, out, "Roster written to /tmp/students.csv")
	assert.Equal(t, "csv", backend.exported)
}

func TestConsoleExitsOnEOF(t *testing.T) {
	backend := newMemoryBackend()
	var out bytes.Buffer

	err := New(strings.NewReader("1\nAsha\n"), &out, backend.services(), nil).Run(context.Background())
	require.NoError(t, err)
	assert.Empty(t, backend.students)
}

func TestConsoleStopsOnCancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := New(strings.NewReader("2\n"), &bytes.Buffer{}, newMemoryBackend().services(), nil).Run(ctx)
	assert.ErrorIs(t, err, context.Canceled)
}
