package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"
)

// TxProvider opens transactions. *sqlx.DB satisfies it.
type TxProvider interface {
	BeginTxx(ctx context.Context, opts *sql.TxOptions) (*sqlx.Tx, error)
}

// WithTx runs fn inside a single transaction. The transaction is committed
// when fn returns nil and rolled back on error or panic.
func WithTx(ctx context.Context, provider TxProvider, fn func(tx *sqlx.Tx) error) (err error) {
	if provider == nil {
		return errors.New("transaction provider unavailable")
	}
	tx, err := provider.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}

	committed := false
	defer func() {
		if committed {
			return
		}
		if p := recover(); p != nil {
			_ = tx.Rollback()
			panic(p)
		}
		_ = tx.Rollback()
	}()

	if err = fn(tx); err != nil {
		return err
	}

	if err = tx.Commit(); err != nil {
		committed = true // a failed commit has already released the tx
		return fmt.Errorf("commit transaction: %w", err)
	}
	committed = true
	return nil
}
