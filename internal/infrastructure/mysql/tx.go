package mysql

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

// Tx is the subset of *sql.Tx used by repositories. Write methods take a Tx so
// several repositories can share one unit of work.
type Tx interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
	Commit() error
	Rollback() error
}

type TransactionManager interface {
	BeginTx(ctx context.Context, opts *sql.TxOptions) (Tx, error)
}

type SQLTransactionManager struct {
	db *sql.DB
}

func NewTransactionManager(db *sql.DB) *SQLTransactionManager {
	return &SQLTransactionManager{db: db}
}

func (m *SQLTransactionManager) BeginTx(ctx context.Context, opts *sql.TxOptions) (Tx, error) {
	tx, err := m.db.BeginTx(ctx, opts)
	if err != nil {
		return nil, err
	}
	return tx, nil
}

// RunInTx runs fn inside a REPEATABLE READ transaction bounded by timeout. The
// transaction is committed when fn returns nil and rolled back otherwise.
func RunInTx(ctx context.Context, tm TransactionManager, timeout time.Duration, fn func(ctx context.Context, tx Tx) error) error {
	txCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	tx, err := tm.BeginTx(txCtx, &sql.TxOptions{Isolation: sql.LevelRepeatableRead})
	if err != nil {
		return Classify(fmt.Errorf("beginning transaction: %w", err))
	}
	// MySQL ignores rollback if already committed.
	defer tx.Rollback()

	if err := fn(txCtx, tx); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return Classify(fmt.Errorf("committing transaction: %w", err))
	}
	return nil
}
