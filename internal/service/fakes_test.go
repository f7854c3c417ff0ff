package service

import (
	"context"
	"database/sql"
	"errors"
	"sort"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/student-management/internal/models"
	"github.com/noah-isme/student-management/internal/repository"
)

type txProviderMock struct {
	db   *sqlx.DB
	mock sqlmock.Sqlmock
}

func newTxProviderMock(t *testing.T) (txProvider, sqlmock.Sqlmock) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	sqlxdb := sqlx.NewDb(db, "sqlmock")
	t.Cleanup(func() { db.Close() })
	return &txProviderMock{db: sqlxdb, mock: mock}, mock
}

func (t *txProviderMock) BeginTxx(ctx context.Context, opts *sql.TxOptions) (*sqlx.Tx, error) {
	return t.db.BeginTxx(ctx, opts)
}

func dec(v string) decimal.Decimal {
	return decimal.RequireFromString(v)
}

type fakeStudentRepo struct {
	students  map[int64]models.Student
	nextID    int64
	err       error
	updateErr error
}

func newFakeStudentRepo(students ...models.Student) *fakeStudentRepo {
	repo := &fakeStudentRepo{students: map[int64]models.Student{}, nextID: 1}
	for _, st := range students {
		repo.students[st.ID] = st
		if st.ID >= repo.nextID {
			repo.nextID = st.ID + 1
		}
	}
	return repo
}

func (f *fakeStudentRepo) FindAll(ctx context.Context) ([]models.Student, error) {
	if f.err != nil {
		return nil, f.err
	}
	out := make([]models.Student, 0, len(f.students))
	for _, st := range f.students {
		out = append(out, st)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (f *fakeStudentRepo) FindByID(ctx context.Context, id int64) (*models.Student, error) {
	if f.err != nil {
		return nil, f.err
	}
	st, ok := f.students[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	return &st, nil
}

func (f *fakeStudentRepo) FindByEmail(ctx context.Context, email string) (*models.Student, error) {
	for _, st := range f.students {
		if st.Email == email {
			found := st
			return &found, nil
		}
	}
	return nil, sql.ErrNoRows
}

func (f *fakeStudentRepo) FindByCourse(ctx context.Context, courseID int64) ([]models.Student, error) {
	all, err := f.FindAll(ctx)
	if err != nil {
		return nil, err
	}
	out := []models.Student{}
	for _, st := range all {
		if st.CourseID != nil && *st.CourseID == courseID {
			out = append(out, st)
		}
	}
	return out, nil
}

func (f *fakeStudentRepo) FindByCourseTx(ctx context.Context, tx *sqlx.Tx, courseID int64) ([]models.Student, error) {
	return f.FindByCourse(ctx, courseID)
}

func (f *fakeStudentRepo) Create(ctx context.Context, student *models.Student) error {
	for _, st := range f.students {
		if st.Email == student.Email {
			return repository.ErrDuplicateEmail
		}
	}
	student.ID = f.nextID
	f.nextID++
	if student.Status == "" {
		student.Status = models.StudentStatusActive
	}
	if student.EnrollmentDate.IsZero() {
		student.EnrollmentDate = time.Now().UTC()
	}
	f.students[student.ID] = *student
	return nil
}

func (f *fakeStudentRepo) Update(ctx context.Context, student *models.Student) error {
	if _, ok := f.students[student.ID]; !ok {
		return sql.ErrNoRows
	}
	for id, st := range f.students {
		if id != student.ID && st.Email == student.Email {
			return repository.ErrDuplicateEmail
		}
	}
	stored := f.students[student.ID]
	stored.Name, stored.Email, stored.Phone, stored.Status = student.Name, student.Email, student.Phone, student.Status
	f.students[student.ID] = stored
	return nil
}

func (f *fakeStudentRepo) Delete(ctx context.Context, id int64) error {
	if _, ok := f.students[id]; !ok {
		return sql.ErrNoRows
	}
	delete(f.students, id)
	return nil
}

func (f *fakeStudentRepo) FindByIDForUpdate(ctx context.Context, tx *sqlx.Tx, id int64) (*models.Student, error) {
	return f.FindByID(ctx, id)
}

func (f *fakeStudentRepo) UpdateBalanceTx(ctx context.Context, tx *sqlx.Tx, id int64, balance decimal.Decimal) error {
	if f.updateErr != nil {
		return f.updateErr
	}
	st, ok := f.students[id]
	if !ok {
		return sql.ErrNoRows
	}
	st.Balance = balance
	f.students[id] = st
	return nil
}

func (f *fakeStudentRepo) UpdateEnrollmentTx(ctx context.Context, tx *sqlx.Tx, id, courseID int64, balance decimal.Decimal) error {
	if f.updateErr != nil {
		return f.updateErr
	}
	st, ok := f.students[id]
	if !ok {
		return sql.ErrNoRows
	}
	cid := courseID
	st.CourseID = &cid
	st.Balance = balance
	f.students[id] = st
	return nil
}

func (f *fakeStudentRepo) DeleteByIDsTx(ctx context.Context, tx *sqlx.Tx, ids []int64) (int64, error) {
	var n int64
	for _, id := range ids {
		if _, ok := f.students[id]; ok {
			delete(f.students, id)
			n++
		}
	}
	return n, nil
}

func (f *fakeStudentRepo) balance(id int64) decimal.Decimal {
	return f.students[id].Balance
}

type fakeCourseRepo struct {
	courses map[int64]models.Course
	nextID  int64
	reads   int
	err     error
}

func newFakeCourseRepo(courses ...models.Course) *fakeCourseRepo {
	repo := &fakeCourseRepo{courses: map[int64]models.Course{}, nextID: 1}
	for _, c := range courses {
		repo.courses[c.ID] = c
		if c.ID >= repo.nextID {
			repo.nextID = c.ID + 1
		}
	}
	return repo
}

func (f *fakeCourseRepo) FindAll(ctx context.Context) ([]models.Course, error) {
	f.reads++
	if f.err != nil {
		return nil, f.err
	}
	out := make([]models.Course, 0, len(f.courses))
	for _, c := range f.courses {
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (f *fakeCourseRepo) FindByID(ctx context.Context, id int64) (*models.Course, error) {
	f.reads++
	if f.err != nil {
		return nil, f.err
	}
	c, ok := f.courses[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	return &c, nil
}

func (f *fakeCourseRepo) FindByIDTx(ctx context.Context, tx *sqlx.Tx, id int64) (*models.Course, error) {
	return f.FindByID(ctx, id)
}

func (f *fakeCourseRepo) FindByIDForUpdate(ctx context.Context, tx *sqlx.Tx, id int64) (*models.Course, error) {
	return f.FindByID(ctx, id)
}

func (f *fakeCourseRepo) Create(ctx context.Context, course *models.Course) error {
	if f.err != nil {
		return f.err
	}
	course.ID = f.nextID
	f.nextID++
	f.courses[course.ID] = *course
	return nil
}

func (f *fakeCourseRepo) Update(ctx context.Context, course *models.Course) error {
	if _, ok := f.courses[course.ID]; !ok {
		return sql.ErrNoRows
	}
	f.courses[course.ID] = *course
	return nil
}

func (f *fakeCourseRepo) DeleteTx(ctx context.Context, tx *sqlx.Tx, id int64) error {
	if _, ok := f.courses[id]; !ok {
		return sql.ErrNoRows
	}
	delete(f.courses, id)
	return nil
}

type fakeLedger struct {
	entries []models.FeeTransaction
	err     error
}

func (f *fakeLedger) CreateTx(ctx context.Context, tx *sqlx.Tx, entry *models.FeeTransaction) error {
	if f.err != nil {
		return f.err
	}
	entry.ID = int64(len(f.entries) + 1)
	entry.CreatedAt = time.Now().UTC()
	f.entries = append(f.entries, *entry)
	return nil
}

func (f *fakeLedger) ListByStudent(ctx context.Context, studentID int64) ([]models.FeeTransaction, error) {
	out := []models.FeeTransaction{}
	for i := len(f.entries) - 1; i >= 0; i-- {
		if f.entries[i].StudentID == studentID {
			out = append(out, f.entries[i])
		}
	}
	return out, nil
}

var errDatabaseDown = errors.New("connection reset by peer")

func int64Ptr(v int64) *int64 { return &v }
