package service

import (
	"context"
	"testing"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/noah-isme/student-management/internal/models"
	appErrors "github.com/noah-isme/student-management/pkg/errors"
)

type feeFixture struct {
	svc      *FeeService
	students *fakeStudentRepo
	ledger   *fakeLedger
	metrics  *MetricsService
	mock     sqlmock.Sqlmock
}

func newFeeFixture(t *testing.T, students ...models.Student) feeFixture {
	db, mock := newTxProviderMock(t)
	repo := newFakeStudentRepo(students...)
	ledger := &fakeLedger{}
	metrics := NewMetricsService()
	return feeFixture{
		svc:      NewFeeService(db, repo, ledger, metrics, zap.NewNop()),
		students: repo,
		ledger:   ledger,
		metrics:  metrics,
		mock:     mock,
	}
}

func enrolledStudent(id int64, balance string) models.Student {
	return models.Student{ID: id, Name: "Asha", Email: "asha@example.com", Balance: dec(balance), CourseID: int64Ptr(1), Status: models.StudentStatusActive}
}

func TestProcessPaymentDeductsBalance(t *testing.T) {
	f := newFeeFixture(t, enrolledStudent(1, "500.00"))
	f.mock.ExpectBegin()
	f.mock.ExpectCommit()

	require.NoError(t, f.svc.ProcessPayment(context.Background(), 1, dec("200.00")))

	assert.Equal(t, "300.00", f.students.balance(1).StringFixed(2))
	require.Len(t, f.ledger.entries, 1)
	entry := f.ledger.entries[0]
	assert.Equal(t, models.FeeTransactionPayment, entry.Type)
	assert.True(t, entry.BalanceBefore.Equal(dec("500")))
	assert.True(t, entry.BalanceAfter.Equal(dec("300")))
	assert.NoError(t, f.mock.ExpectationsWereMet())
	assert.Equal(t, float64(1), testutil.ToFloat64(f.metrics.feeOperations.WithLabelValues(feeOpPayment, "success")))
	assert.Equal(t, float64(200), testutil.ToFloat64(f.metrics.feeAmount.WithLabelValues(feeOpPayment)))
}

func TestProcessPaymentMayReachZero(t *testing.T) {
	f := newFeeFixture(t, enrolledStudent(1, "300.00"))
	f.mock.ExpectBegin()
	f.mock.ExpectCommit()

	require.NoError(t, f.svc.ProcessPayment(context.Background(), 1, dec("300.00")))
	assert.True(t, f.students.balance(1).IsZero())
	assert.NoError(t, f.mock.ExpectationsWereMet())
}

func TestProcessPaymentRejectsInvalidAmounts(t *testing.T) {
	f := newFeeFixture(t, enrolledStudent(1, "500.00"))

	for _, amount := range []string{"0", "-10.00", "1.005"} {
		err := f.svc.ProcessPayment(context.Background(), 1, dec(amount))
		assert.True(t, appErrors.HasCode(err, appErrors.ErrInvalidAmount.Code), amount)
	}
	assert.Equal(t, "500.00", f.students.balance(1).StringFixed(2))
	assert.Empty(t, f.ledger.entries)
	// amount checks happen before a transaction is opened
	assert.NoError(t, f.mock.ExpectationsWereMet())
}

func TestProcessPaymentInsufficientFundsLeavesBalance(t *testing.T) {
	f := newFeeFixture(t, enrolledStudent(1, "300.00"))
	f.mock.ExpectBegin()
	f.mock.ExpectRollback()

	err := f.svc.ProcessPayment(context.Background(), 1, dec("400.00"))
	require.Error(t, err)

	appErr := appErrors.FromError(err)
	assert.Equal(t, appErrors.ErrInsufficientFunds.Code, appErr.Code)
	assert.Equal(t, "300.00", appErr.Details["current_balance"])
	assert.Contains(t, appErr.Message, "300.00")
	assert.Equal(t, "300.00", f.students.balance(1).StringFixed(2))
	assert.Empty(t, f.ledger.entries)
	assert.NoError(t, f.mock.ExpectationsWereMet())
}

func TestProcessPaymentUnknownStudent(t *testing.T) {
	f := newFeeFixture(t)
	f.mock.ExpectBegin()
	f.mock.ExpectRollback()

	err := f.svc.ProcessPayment(context.Background(), 99, dec("10.00"))
	assert.True(t, appErrors.HasCode(err, appErrors.ErrNotFound.Code))
	assert.NoError(t, f.mock.ExpectationsWereMet())
}

func TestProcessPaymentLedgerFailureRollsBack(t *testing.T) {
	f := newFeeFixture(t, enrolledStudent(1, "500.00"))
	f.ledger.err = errDatabaseDown
	f.mock.ExpectBegin()
	f.mock.ExpectRollback()

	err := f.svc.ProcessPayment(context.Background(), 1, dec("100.00"))
	assert.True(t, appErrors.HasCode(err, appErrors.ErrInternal.Code))
	assert.ErrorIs(t, err, errDatabaseDown)
	assert.NoError(t, f.mock.ExpectationsWereMet())
}

func TestProcessPaymentCommitFailureIsInternal(t *testing.T) {
	f := newFeeFixture(t, enrolledStudent(1, "500.00"))
	f.mock.ExpectBegin()
	f.mock.ExpectCommit().WillReturnError(errDatabaseDown)

	err := f.svc.ProcessPayment(context.Background(), 1, dec("100.00"))
	assert.True(t, appErrors.HasCode(err, appErrors.ErrInternal.Code))
	assert.NoError(t, f.mock.ExpectationsWereMet())
}

func TestProcessRefundCreditsWithoutUpperBound(t *testing.T) {
	f := newFeeFixture(t, enrolledStudent(1, "99999.00"))
	f.mock.ExpectBegin()
	f.mock.ExpectCommit()

	require.NoError(t, f.svc.ProcessRefund(context.Background(), 1, dec("5000.50")))
	assert.Equal(t, "104999.50", f.students.balance(1).StringFixed(2))
	require.Len(t, f.ledger.entries, 1)
	assert.Equal(t, models.FeeTransactionRefund, f.ledger.entries[0].Type)
	assert.NoError(t, f.mock.ExpectationsWereMet())
}

func TestProcessRefundRejectsNonPositive(t *testing.T) {
	f := newFeeFixture(t, enrolledStudent(1, "10.00"))

	err := f.svc.ProcessRefund(context.Background(), 1, decimal.Zero)
	assert.True(t, appErrors.HasCode(err, appErrors.ErrInvalidAmount.Code))
	assert.Equal(t, float64(1), testutil.ToFloat64(f.metrics.feeOperations.WithLabelValues(feeOpRefund, appErrors.ErrInvalidAmount.Code)))
}

func TestGetBalance(t *testing.T) {
	f := newFeeFixture(t, enrolledStudent(1, "42.10"))

	balance, err := f.svc.GetBalance(context.Background(), 1)
	require.NoError(t, err)
	assert.Equal(t, "42.10", balance.StringFixed(2))

	_, err = f.svc.GetBalance(context.Background(), 2)
	assert.True(t, appErrors.HasCode(err, appErrors.ErrNotFound.Code))
}

func TestGetBalanceRepositoryFailureIsInternal(t *testing.T) {
	f := newFeeFixture(t)
	f.students.err = errDatabaseDown

	_, err := f.svc.GetBalance(context.Background(), 1)
	assert.True(t, appErrors.HasCode(err, appErrors.ErrInternal.Code))
}

func TestPayFullFeeSettlesOutstandingBalance(t *testing.T) {
	f := newFeeFixture(t, enrolledStudent(1, "300.00"))
	f.mock.ExpectBegin()
	f.mock.ExpectCommit()

	require.NoError(t, f.svc.PayFullFee(context.Background(), 1))
	assert.True(t, f.students.balance(1).IsZero())
	require.Len(t, f.ledger.entries, 1)
	assert.Equal(t, "300.00", f.ledger.entries[0].Amount.StringFixed(2))
	assert.NoError(t, f.mock.ExpectationsWereMet())
}

func TestPayFullFeeRequiresEnrollment(t *testing.T) {
	student := enrolledStudent(1, "250.00")
	student.CourseID = nil
	f := newFeeFixture(t, student)
	f.mock.ExpectBegin()
	f.mock.ExpectRollback()

	err := f.svc.PayFullFee(context.Background(), 1)
	assert.True(t, appErrors.HasCode(err, appErrors.ErrNotEnrolled.Code))
	assert.Equal(t, "250.00", f.students.balance(1).StringFixed(2))
	assert.NoError(t, f.mock.ExpectationsWereMet())
}

func TestPayFullFeeZeroBalanceIsInvalidAmount(t *testing.T) {
	f := newFeeFixture(t, enrolledStudent(1, "0.00"))
	f.mock.ExpectBegin()
	f.mock.ExpectRollback()

	err := f.svc.PayFullFee(context.Background(), 1)
	assert.True(t, appErrors.HasCode(err, appErrors.ErrInvalidAmount.Code))
	assert.NoError(t, f.mock.ExpectationsWereMet())
}

func TestPayFullFeeUnknownStudent(t *testing.T) {
	f := newFeeFixture(t)
	f.mock.ExpectBegin()
	f.mock.ExpectRollback()

	err := f.svc.PayFullFee(context.Background(), 7)
	assert.True(t, appErrors.HasCode(err, appErrors.ErrNotFound.Code))
}

func TestListTransactionsNewestFirst(t *testing.T) {
	f := newFeeFixture(t, enrolledStudent(1, "500.00"))
	f.mock.ExpectBegin()
	f.mock.ExpectCommit()
	f.mock.ExpectBegin()
	f.mock.ExpectCommit()

	require.NoError(t, f.svc.ProcessPayment(context.Background(), 1, dec("100.00")))
	require.NoError(t, f.svc.ProcessRefund(context.Background(), 1, dec("20.00")))

	entries, err := f.svc.ListTransactions(context.Background(), 1)
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, models.FeeTransactionRefund, entries[0].Type)
	assert.Equal(t, "420.00", entries[0].BalanceAfter.StringFixed(2))

	_, err = f.svc.ListTransactions(context.Background(), 9)
	assert.True(t, appErrors.HasCode(err, appErrors.ErrNotFound.Code))
}

func TestEnrollPayRefundLifecycle(t *testing.T) {
	db, mock := newTxProviderMock(t)
	students := newFakeStudentRepo(models.Student{ID: 1, Name: "Asha", Email: "asha@example.com", Balance: decimal.Zero, Status: models.StudentStatusActive})
	courses := newFakeCourseRepo(models.Course{ID: 1, CourseName: "Go Programming", Fee: dec("500.00")})
	ledger := &fakeLedger{}
	studentSvc := NewStudentService(db, students, courses, ledger, nil, zap.NewNop())
	feeSvc := NewFeeService(db, students, ledger, nil, zap.NewNop())
	ctx := context.Background()

	mock.ExpectBegin()
	mock.ExpectCommit()
	_, err := studentSvc.Enroll(ctx, 1, 1)
	require.NoError(t, err)
	assert.Equal(t, "500.00", students.balance(1).StringFixed(2))

	mock.ExpectBegin()
	mock.ExpectCommit()
	require.NoError(t, feeSvc.ProcessPayment(ctx, 1, dec("200.00")))
	assert.Equal(t, "300.00", students.balance(1).StringFixed(2))

	mock.ExpectBegin()
	mock.ExpectRollback()
	err = feeSvc.ProcessPayment(ctx, 1, dec("400.00"))
	assert.True(t, appErrors.HasCode(err, appErrors.ErrInsufficientFunds.Code))
	balance, err := feeSvc.GetBalance(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, "300.00", balance.StringFixed(2))

	mock.ExpectBegin()
	mock.ExpectCommit()
	require.NoError(t, feeSvc.ProcessRefund(ctx, 1, dec("50.00")))
	balance, err = feeSvc.GetBalance(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, "350.00", balance.StringFixed(2))

	types := make([]models.FeeTransactionType, 0, len(ledger.entries))
	for _, e := range ledger.entries {
		types = append(types, e.Type)
	}
	assert.Equal(t, []models.FeeTransactionType{models.FeeTransactionEnrollment, models.FeeTransactionPayment, models.FeeTransactionRefund}, types)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestFeeServiceWorksWithoutMetrics(t *testing.T) {
	db, mock := newTxProviderMock(t)
	repo := newFakeStudentRepo(enrolledStudent(1, "50.00"))
	svc := NewFeeService(db, repo, &fakeLedger{}, nil, nil)
	mock.ExpectBegin()
	mock.ExpectCommit()

	require.NoError(t, svc.ProcessPayment(context.Background(), 1, dec("50.00")))
	assert.True(t, repo.balance(1).IsZero())
}
