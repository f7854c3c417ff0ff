package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// FeeTransactionType labels a ledger entry.
type FeeTransactionType string

// Ledger entry types.
const (
	FeeTransactionPayment    FeeTransactionType = "PAYMENT"
	FeeTransactionRefund     FeeTransactionType = "REFUND"
	FeeTransactionEnrollment FeeTransactionType = "ENROLLMENT"
)

// FeeTransaction is an append-only record of a balance mutation.
type FeeTransaction struct {
	ID            int64              `db:"id" json:"id"`
	Reference     string             `db:"reference" json:"reference"`
	StudentID     int64              `db:"student_id" json:"student_id"`
	Type          FeeTransactionType `db:"type" json:"type"`
	Amount        decimal.Decimal    `db:"amount" json:"amount"`
	BalanceBefore decimal.Decimal    `db:"balance_before" json:"balance_before"`
	BalanceAfter  decimal.Decimal    `db:"balance_after" json:"balance_after"`
	CreatedAt     time.Time          `db:"created_at" json:"created_at"`
}
