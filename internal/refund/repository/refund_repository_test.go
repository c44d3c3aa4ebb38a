package repository

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"cashdesk/internal/domain"
	apperrors "cashdesk/internal/errors"
	"cashdesk/internal/testutil"
)

// Unit Tests

func TestNewMySQLRefundRepository(t *testing.T) {
	repo := NewMySQLRefundRepository(&sql.DB{})

	assert.NotNil(t, repo)
	assert.NotNil(t, repo.db)
}

func TestCountingStatuses(t *testing.T) {
	assert.Equal(t, []string{"PENDING", "APPROVED", "PROCESSED"}, countingStatuses())
}

// Integration Tests

func seedInvoice(t *testing.T, db *sql.DB, number string) uint {
	t.Helper()

	result, err := db.Exec(`
		INSERT INTO sales_invoices
			(invoice_number, issued_at, cashier_id, counter_id, tax_policy,
			 subtotal, discount_amount, taxable_amount, cgst, sgst, igst, round_off, grand_total,
			 amount_paid, payment_status, is_cancelled, version, created_at, updated_at)
		VALUES (?, UTC_TIMESTAMP(6), 1, 1, 'INTRA_STATE',
			300.00, 0.00, 300.00, 27.00, 27.00, 0.00, 0.00, 354.00,
			0.00, 'PENDING', 0, 0, UTC_TIMESTAMP(6), UTC_TIMESTAMP(6))`,
		number,
	)
	require.NoError(t, err)

	id, err := result.LastInsertId()
	require.NoError(t, err)
	return uint(id)
}

func newRefund(number string, invoiceID uint, line, qty int, at time.Time) *domain.Refund {
	return &domain.Refund{
		RefundNumber:      number,
		OriginalInvoiceID: invoiceID,
		InvoiceLineNumber: line,
		ProductID:         1,
		QuantityReturned:  qty,
		UnitPrice:         decimal.RequireFromString("100.00"),
		RefundAmount:      decimal.RequireFromString("100.00").Mul(decimal.NewFromInt(int64(qty))),
		TaxRefunded:       decimal.RequireFromString("18.00").Mul(decimal.NewFromInt(int64(qty))),
		Reason:            "wrong size",
		Type:              domain.RefundPartialReturn,
		Status:            domain.RefundPending,
		ProcessedBy:       3,
		Lifecycle:         domain.NewLifecycle(at),
	}
}

func insert(t *testing.T, db *sql.DB, repo *MySQLRefundRepository, rf *domain.Refund) uint {
	t.Helper()
	ctx := context.Background()

	tx, err := db.BeginTx(ctx, nil)
	require.NoError(t, err)
	id, err := repo.Insert(ctx, tx, rf)
	require.NoError(t, err)
	require.NoError(t, tx.Commit())
	return id
}

func TestRefundRepository_InsertUpdateFind(t *testing.T) {
	db := testutil.SetupTestDB(t)
	testutil.SetupTestTables(t, db)
	defer testutil.CleanupTestDB(t, db)

	repo := NewMySQLRefundRepository(db)
	ctx := context.Background()
	now := time.Now().UTC().Truncate(time.Microsecond)
	invoiceID := seedInvoice(t, db, "INV-20260117-0001")

	rf := newRefund("REF-20260117-0002", invoiceID, 1, 2, now)
	id := insert(t, db, repo, rf)
	assert.NotZero(t, id)

	tx, err := db.BeginTx(ctx, nil)
	require.NoError(t, err)
	locked, err := repo.FindByIDForUpdate(ctx, tx, id)
	require.NoError(t, err)
	expected := locked.Version
	require.NoError(t, locked.Approve(9, "receipt checked", now))
	locked.Touch(now)
	require.NoError(t, repo.Update(ctx, tx, locked, expected))
	require.NoError(t, tx.Commit())

	stored, err := repo.FindByID(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, domain.RefundApproved, stored.Status)
	require.NotNil(t, stored.ApprovedBy)
	assert.Equal(t, 9, *stored.ApprovedBy)
	assert.Contains(t, stored.Notes, "approved by 9: receipt checked")
	assert.Equal(t, expected+1, stored.Version)
	assert.True(t, stored.RefundAmount.Equal(decimal.RequireFromString("200.00")))

	// The stale version no longer matches.
	tx, err = db.BeginTx(ctx, nil)
	require.NoError(t, err)
	err = repo.Update(ctx, tx, stored, expected)
	_, ok := apperrors.IsConcurrencyConflictError(err)
	assert.True(t, ok)
	require.NoError(t, tx.Rollback())
}

func TestRefundRepository_DuplicateNumber(t *testing.T) {
	db := testutil.SetupTestDB(t)
	testutil.SetupTestTables(t, db)
	defer testutil.CleanupTestDB(t, db)

	repo := NewMySQLRefundRepository(db)
	ctx := context.Background()
	now := time.Now().UTC().Truncate(time.Microsecond)
	invoiceID := seedInvoice(t, db, "INV-20260117-0001")

	insert(t, db, repo, newRefund("REF-20260117-0002", invoiceID, 1, 1, now))

	tx, err := db.BeginTx(ctx, nil)
	require.NoError(t, err)
	defer tx.Rollback()

	_, err = repo.Insert(ctx, tx, newRefund("REF-20260117-0002", invoiceID, 1, 1, now))
	_, ok := apperrors.IsDuplicateNumberError(err)
	assert.True(t, ok, "expected duplicate number error, got %v", err)
}

func TestRefundRepository_SumsAndCountsIgnoreClosedRefunds(t *testing.T) {
	db := testutil.SetupTestDB(t)
	testutil.SetupTestTables(t, db)
	defer testutil.CleanupTestDB(t, db)

	repo := NewMySQLRefundRepository(db)
	ctx := context.Background()
	now := time.Now().UTC().Truncate(time.Microsecond)
	invoiceID := seedInvoice(t, db, "INV-20260117-0001")

	insert(t, db, repo, newRefund("REF-1", invoiceID, 1, 1, now))
	insert(t, db, repo, newRefund("REF-2", invoiceID, 1, 2, now))
	insert(t, db, repo, newRefund("REF-3", invoiceID, 2, 1, now))
	rejected := newRefund("REF-4", invoiceID, 1, 5, now)
	rejected.Status = domain.RefundRejected
	insert(t, db, repo, rejected)

	tx, err := db.BeginTx(ctx, nil)
	require.NoError(t, err)
	defer tx.Rollback()

	sum, err := repo.SumQuantityByLine(ctx, tx, invoiceID, 1)
	require.NoError(t, err)
	assert.Equal(t, 3, sum)

	sum, err = repo.SumQuantityByLine(ctx, tx, invoiceID, 3)
	require.NoError(t, err)
	assert.Zero(t, sum)

	count, err := repo.CountActiveByInvoice(ctx, tx, invoiceID)
	require.NoError(t, err)
	assert.Equal(t, 3, count)
}

func TestRefundRepository_Lists(t *testing.T) {
	db := testutil.SetupTestDB(t)
	testutil.SetupTestTables(t, db)
	defer testutil.CleanupTestDB(t, db)

	repo := NewMySQLRefundRepository(db)
	ctx := context.Background()
	now := time.Now().UTC().Truncate(time.Microsecond)
	first := seedInvoice(t, db, "INV-20260117-0001")
	second := seedInvoice(t, db, "INV-20260117-0002")

	insert(t, db, repo, newRefund("REF-1", first, 1, 1, now))
	insert(t, db, repo, newRefund("REF-2", second, 1, 1, now.Add(time.Second)))
	cancelled := newRefund("REF-3", first, 1, 1, now)
	cancelled.Status = domain.RefundCancelled
	insert(t, db, repo, cancelled)

	byInvoice, err := repo.ListByInvoice(ctx, first)
	require.NoError(t, err)
	require.Len(t, byInvoice, 2)
	assert.Equal(t, "REF-1", byInvoice[0].RefundNumber)

	pending, err := repo.ListByStatus(ctx, domain.RefundPending, 10)
	require.NoError(t, err)
	require.Len(t, pending, 2)
	assert.Equal(t, "REF-1", pending[0].RefundNumber)

	limited, err := repo.ListByStatus(ctx, domain.RefundPending, 1)
	require.NoError(t, err)
	assert.Len(t, limited, 1)

	_, err = repo.FindByID(ctx, 999999)
	_, ok := apperrors.IsNotFoundError(err)
	assert.True(t, ok)
}
