package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/student-management/internal/models"
)

// FeeTransactionRepository writes and reads the fee ledger.
type FeeTransactionRepository struct {
	db *sqlx.DB
}

// NewFeeTransactionRepository constructs the repository.
func NewFeeTransactionRepository(db *sqlx.DB) *FeeTransactionRepository {
	return &FeeTransactionRepository{db: db}
}

// CreateTx appends a ledger entry inside tx, filling reference, timestamp and ID.
func (r *FeeTransactionRepository) CreateTx(ctx context.Context, tx *sqlx.Tx, entry *models.FeeTransaction) error {
	if entry.Reference == "" {
		entry.Reference = uuid.NewString()
	}
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now().UTC()
	}
	const query = `INSERT INTO fee_transactions (reference, student_id, type, amount, balance_before, balance_after, created_at)
        VALUES ($1, $2, $3, $4, $5, $6, $7) RETURNING id`
	err := tx.QueryRowxContext(ctx, query,
		entry.Reference, entry.StudentID, entry.Type, entry.Amount, entry.BalanceBefore, entry.BalanceAfter, entry.CreatedAt,
	).Scan(&entry.ID)
	if err != nil {
		return fmt.Errorf("create fee transaction: %w", err)
	}
	return nil
}

// ListByStudent returns a student's ledger, newest first.
func (r *FeeTransactionRepository) ListByStudent(ctx context.Context, studentID int64) ([]models.FeeTransaction, error) {
	const query = `SELECT id, reference, student_id, type, amount, balance_before, balance_after, created_at
        FROM fee_transactions WHERE student_id = $1 ORDER BY created_at DESC, id DESC`
	entries := []models.FeeTransaction{}
	if err := r.db.SelectContext(ctx, &entries, query, studentID); err != nil {
		return nil, fmt.Errorf("list fee transactions: %w", err)
	}
	return entries, nil
}
