package mysql

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	mysqldrv "github.com/go-sql-driver/mysql"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "cashdesk/internal/errors"
)

func TestIsRetryable(t *testing.T) {
	assert.True(t, IsRetryable(&mysqldrv.MySQLError{Number: 1213}))
	assert.True(t, IsRetryable(fmt.Errorf("updating stock: %w", &mysqldrv.MySQLError{Number: 1205})))
	assert.True(t, IsRetryable(apperrors.NewConcurrencyConflictError("stock_state", 1, 3)))
	assert.False(t, IsRetryable(&mysqldrv.MySQLError{Number: 1062}))
	assert.False(t, IsRetryable(apperrors.NewInsufficientStockError(1, 5, 2)))
	assert.False(t, IsRetryable(nil))
}

func TestClassify(t *testing.T) {
	dup := Classify(fmt.Errorf("inserting invoice: %w", &mysqldrv.MySQLError{Number: 1062, Message: "Duplicate entry"}))
	_, ok := apperrors.IsDuplicateNumberError(dup)
	assert.True(t, ok)

	transient := Classify(fmt.Errorf("querying: %w", driver.ErrBadConn))
	_, ok = apperrors.IsTransientError(transient)
	assert.True(t, ok)

	gone := Classify(&mysqldrv.MySQLError{Number: 2006})
	_, ok = apperrors.IsTransientError(gone)
	assert.True(t, ok)

	deadlock := &mysqldrv.MySQLError{Number: 1213}
	assert.Same(t, deadlock, Classify(deadlock))

	plain := errors.New("boom")
	assert.Equal(t, plain, Classify(plain))
	assert.Nil(t, Classify(nil))

	insufficient := apperrors.NewInsufficientStockError(1, 2, 1)
	assert.Equal(t, error(insufficient), Classify(insufficient))
}

func TestStatements(t *testing.T) {
	stmts := Statements()
	require.NotEmpty(t, stmts)

	tables := []string{"products", "cashiers", "stock_states", "stock_movements", "sales_invoices",
		"invoice_lines", "invoice_tax_details", "invoice_payments", "refunds", "sequences"}
	require.Len(t, stmts, len(tables))
	for i, table := range tables {
		assert.True(t, strings.HasPrefix(stmts[i], "CREATE TABLE IF NOT EXISTS "+table+" "), stmts[i])
	}
}

func TestSplitStatements_SkipsComments(t *testing.T) {
	stmts := splitStatements("-- header\nCREATE TABLE a (id INT);\n\n  ;\n-- only a comment\n")
	assert.Equal(t, []string{"CREATE TABLE a (id INT)"}, stmts)
}

type fakeTx struct {
	committed  bool
	rolledBack bool
	commitErr  error
}

func (f *fakeTx) ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error) {
	return nil, errors.New("not implemented")
}

func (f *fakeTx) QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error) {
	return nil, errors.New("not implemented")
}

func (f *fakeTx) QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row {
	return nil
}

func (f *fakeTx) Commit() error {
	f.committed = true
	return f.commitErr
}

func (f *fakeTx) Rollback() error {
	f.rolledBack = true
	return nil
}

type fakeManager struct {
	tx       *fakeTx
	beginErr error
	opts     *sql.TxOptions
}

func (m *fakeManager) BeginTx(ctx context.Context, opts *sql.TxOptions) (Tx, error) {
	m.opts = opts
	if m.beginErr != nil {
		return nil, m.beginErr
	}
	return m.tx, nil
}

func TestRunInTx_Commits(t *testing.T) {
	tm := &fakeManager{tx: &fakeTx{}}

	err := RunInTx(context.Background(), tm, time.Second, func(ctx context.Context, tx Tx) error {
		_, hasDeadline := ctx.Deadline()
		assert.True(t, hasDeadline)
		return nil
	})

	require.NoError(t, err)
	assert.True(t, tm.tx.committed)
	assert.Equal(t, sql.LevelRepeatableRead, tm.opts.Isolation)
}

func TestRunInTx_RollsBackOnError(t *testing.T) {
	tm := &fakeManager{tx: &fakeTx{}}
	want := apperrors.NewInsufficientStockError(1, 11, 10)

	err := RunInTx(context.Background(), tm, time.Second, func(ctx context.Context, tx Tx) error {
		return want
	})

	assert.Equal(t, error(want), err)
	assert.False(t, tm.tx.committed)
	assert.True(t, tm.tx.rolledBack)
}

func TestRunInTx_BeginFailureIsTransient(t *testing.T) {
	tm := &fakeManager{beginErr: driver.ErrBadConn}

	err := RunInTx(context.Background(), tm, time.Second, func(ctx context.Context, tx Tx) error {
		t.Fatal("fn must not run")
		return nil
	})

	_, ok := apperrors.IsTransientError(err)
	assert.True(t, ok)
}
