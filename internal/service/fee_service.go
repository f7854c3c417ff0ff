package service

import (
	"context"
	"database/sql"
	"errors"

	"github.com/jmoiron/sqlx"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/noah-isme/student-management/internal/models"
	"github.com/noah-isme/student-management/pkg/database"
	appErrors "github.com/noah-isme/student-management/pkg/errors"
)

type txProvider interface {
	BeginTxx(ctx context.Context, opts *sql.TxOptions) (*sqlx.Tx, error)
}

type studentBalanceStore interface {
	FindByID(ctx context.Context, id int64) (*models.Student, error)
	FindByIDForUpdate(ctx context.Context, tx *sqlx.Tx, id int64) (*models.Student, error)
	UpdateBalanceTx(ctx context.Context, tx *sqlx.Tx, id int64, balance decimal.Decimal) error
}

type feeLedger interface {
	CreateTx(ctx context.Context, tx *sqlx.Tx, entry *models.FeeTransaction) error
	ListByStudent(ctx context.Context, studentID int64) ([]models.FeeTransaction, error)
}

// Fee operation labels used for metrics and logs.
const (
	feeOpPayment = "payment"
	feeOpRefund  = "refund"
	feeOpFullFee = "pay_full_fee"
)

// FeeService applies payments and refunds to student balances.
type FeeService struct {
	db       txProvider
	students studentBalanceStore
	ledger   feeLedger
	metrics  *MetricsService
	logger   *zap.Logger
}

// NewFeeService constructs a FeeService.
func NewFeeService(db txProvider, students studentBalanceStore, ledger feeLedger, metrics *MetricsService, logger *zap.Logger) *FeeService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &FeeService{db: db, students: students, ledger: ledger, metrics: metrics, logger: logger}
}

// ProcessPayment deducts amount from the student's balance.
func (s *FeeService) ProcessPayment(ctx context.Context, studentID int64, amount decimal.Decimal) error {
	if err := validateAmount(amount); err != nil {
		s.metrics.RecordFeeOperation(feeOpPayment, outcomeOf(err), decimal.Zero)
		return err
	}
	err := database.WithTx(ctx, s.db, func(tx *sqlx.Tx) error {
		student, err := s.lockStudent(ctx, tx, studentID)
		if err != nil {
			return err
		}
		return s.applyPayment(ctx, tx, student, amount)
	})
	s.finish(feeOpPayment, studentID, amount, err)
	return s.normalize(err, "failed to process payment")
}

// ProcessRefund credits amount back to the student's balance. There is no
// upper bound on the resulting balance.
func (s *FeeService) ProcessRefund(ctx context.Context, studentID int64, amount decimal.Decimal) error {
	if err := validateAmount(amount); err != nil {
		s.metrics.RecordFeeOperation(feeOpRefund, outcomeOf(err), decimal.Zero)
		return err
	}
	err := database.WithTx(ctx, s.db, func(tx *sqlx.Tx) error {
		student, err := s.lockStudent(ctx, tx, studentID)
		if err != nil {
			return err
		}
		newBalance := student.Balance.Add(amount)
		return s.record(ctx, tx, student, models.FeeTransactionRefund, amount, newBalance)
	})
	s.finish(feeOpRefund, studentID, amount, err)
	return s.normalize(err, "failed to process refund")
}

// GetBalance reads the committed balance straight from the database.
func (s *FeeService) GetBalance(ctx context.Context, studentID int64) (decimal.Decimal, error) {
	student, err := s.students.FindByID(ctx, studentID)
	if err != nil {
		return decimal.Zero, studentLookupError(err)
	}
	return student.Balance, nil
}

// PayFullFee settles the student's entire outstanding balance. The balance is
// read and paid under the same row lock, so a zero balance is rejected as an
// invalid amount.
func (s *FeeService) PayFullFee(ctx context.Context, studentID int64) error {
	var paid decimal.Decimal
	err := database.WithTx(ctx, s.db, func(tx *sqlx.Tx) error {
		student, err := s.lockStudent(ctx, tx, studentID)
		if err != nil {
			return err
		}
		if !student.Enrolled() {
			return appErrors.Clone(appErrors.ErrNotEnrolled, "student is not enrolled in any course")
		}
		paid = student.Balance
		if err := validateAmount(paid); err != nil {
			return err
		}
		return s.applyPayment(ctx, tx, student, paid)
	})
	s.finish(feeOpFullFee, studentID, paid, err)
	return s.normalize(err, "failed to pay full fee")
}

// ListTransactions returns the student's ledger, newest first.
func (s *FeeService) ListTransactions(ctx context.Context, studentID int64) ([]models.FeeTransaction, error) {
	if _, err := s.students.FindByID(ctx, studentID); err != nil {
		return nil, studentLookupError(err)
	}
	entries, err := s.ledger.ListByStudent(ctx, studentID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list fee transactions")
	}
	return entries, nil
}

func (s *FeeService) lockStudent(ctx context.Context, tx *sqlx.Tx, studentID int64) (*models.Student, error) {
	student, err := s.students.FindByIDForUpdate(ctx, tx, studentID)
	if err != nil {
		return nil, studentLookupError(err)
	}
	return student, nil
}

func (s *FeeService) applyPayment(ctx context.Context, tx *sqlx.Tx, student *models.Student, amount decimal.Decimal) error {
	newBalance := student.Balance.Sub(amount)
	if newBalance.IsNegative() {
		return insufficientFunds(student.Balance)
	}
	return s.record(ctx, tx, student, models.FeeTransactionPayment, amount, newBalance)
}

// record persists the new balance and its ledger row in tx.
func (s *FeeService) record(ctx context.Context, tx *sqlx.Tx, student *models.Student, kind models.FeeTransactionType, amount, newBalance decimal.Decimal) error {
	if err := s.students.UpdateBalanceTx(ctx, tx, student.ID, newBalance); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update balance")
	}
	entry := &models.FeeTransaction{
		StudentID:     student.ID,
		Type:          kind,
		Amount:        amount,
		BalanceBefore: student.Balance,
		BalanceAfter:  newBalance,
	}
	if err := s.ledger.CreateTx(ctx, tx, entry); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to record fee transaction")
	}
	student.Balance = newBalance
	return nil
}

func (s *FeeService) finish(op string, studentID int64, amount decimal.Decimal, err error) {
	s.metrics.RecordFeeOperation(op, outcomeOf(err), amount)
	fields := []zap.Field{zap.String("operation", op), zap.Int64("student_id", studentID), zap.String("amount", amount.StringFixed(2))}
	switch {
	case err == nil:
		s.logger.Info("fee operation applied", fields...)
	case isDomainError(err):
		s.logger.Info("fee operation rejected", append(fields, zap.Error(err))...)
	default:
		s.logger.Error("fee operation failed", append(fields, zap.Error(err))...)
	}
}

func (s *FeeService) normalize(err error, message string) error {
	if err == nil {
		return nil
	}
	var appErr *appErrors.Error
	if errors.As(err, &appErr) {
		return err
	}
	return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, message)
}

// validateAmount requires a strictly positive amount with at most two
// decimal places.
func validateAmount(amount decimal.Decimal) error {
	if !amount.IsPositive() {
		return appErrors.ErrInvalidAmount
	}
	if !amount.Equal(amount.Round(2)) {
		return appErrors.Clone(appErrors.ErrInvalidAmount, "amount must have at most two decimal places")
	}
	return nil
}

func insufficientFunds(balance decimal.Decimal) error {
	err := appErrors.Clone(appErrors.ErrInsufficientFunds, "insufficient balance: current balance is "+balance.StringFixed(2))
	return appErrors.WithDetail(err, "current_balance", balance.StringFixed(2))
}

func studentLookupError(err error) error {
	if errors.Is(err, sql.ErrNoRows) {
		return appErrors.Clone(appErrors.ErrNotFound, "student not found")
	}
	return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load student")
}

func isDomainError(err error) bool {
	var appErr *appErrors.Error
	return errors.As(err, &appErr) && appErr.Code != appErrors.ErrInternal.Code
}

func outcomeOf(err error) string {
	if err == nil {
		return "success"
	}
	var appErr *appErrors.Error
	if errors.As(err, &appErr) {
		return appErr.Code
	}
	return appErrors.ErrInternal.Code
}
