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

func TestNewMySQLInvoiceRepository(t *testing.T) {
	repo := NewMySQLInvoiceRepository(&sql.DB{})

	assert.NotNil(t, repo)
	assert.NotNil(t, repo.db)
	assert.NotNil(t, repo.reader)
}

// Integration Tests

func d(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func newInvoice(number string, productID, cashierID int, at time.Time) *domain.SalesInvoice {
	name := "Meera"
	return &domain.SalesInvoice{
		InvoiceNumber: number,
		IssuedAt:      at,
		CashierID:     cashierID,
		CounterID:     1,
		Customer:      domain.Customer{Name: &name},
		TaxPolicy:     domain.TaxIntraState,
		Lines: []domain.InvoiceLine{{
			LineNumber: 1, ProductID: productID, ProductName: "Rice 5kg", ProductSKU: "RICE-5KG",
			UnitPrice: d("100.00"), Quantity: 3, DiscountPercent: d("0"), DiscountAmount: d("0"),
			LineTotal: d("300.00"), TaxableAmount: d("300.00"), GSTRate: d("18.00"),
			CGST: d("27.00"), SGST: d("27.00"), IGST: d("0"), FinalAmount: d("354.00"),
		}},
		TaxDetails: []domain.InvoiceTaxDetail{{
			GSTRate: d("18.00"), TaxableAmount: d("300.00"), CGST: d("27.00"), SGST: d("27.00"), IGST: d("0"),
		}},
		Subtotal:       d("300.00"),
		DiscountAmount: d("0"),
		TaxableAmount:  d("300.00"),
		CGST:           d("27.00"),
		SGST:           d("27.00"),
		IGST:           d("0"),
		RoundOff:       d("0"),
		GrandTotal:     d("354.00"),
		AmountPaid:     d("0"),
		PaymentStatus:  domain.PaymentPending,
		Lifecycle:      domain.NewLifecycle(at),
	}
}

func insertInvoice(t *testing.T, db *sql.DB, repo *MySQLInvoiceRepository, inv *domain.SalesInvoice) uint {
	t.Helper()
	ctx := context.Background()

	tx, err := db.BeginTx(ctx, nil)
	require.NoError(t, err)
	id, err := repo.Insert(ctx, tx, inv)
	require.NoError(t, err)
	require.NoError(t, tx.Commit())
	return id
}

func TestInvoiceRepository_InsertAndFind(t *testing.T) {
	db := testutil.SetupTestDB(t)
	testutil.SetupTestTables(t, db)
	defer testutil.CleanupTestDB(t, db)

	repo := NewMySQLInvoiceRepository(db)
	ctx := context.Background()
	productID := testutil.SeedProduct(t, db, "RICE-5KG", "100.00", "18.00", 10)
	counter := 1
	cashierID := testutil.SeedCashier(t, db, "asha", &counter)
	now := time.Now().UTC().Truncate(time.Microsecond)

	inv := newInvoice("INV-20260117-0001", productID, cashierID, now)
	id := insertInvoice(t, db, repo, inv)
	assert.NotZero(t, id)
	assert.NotZero(t, inv.Lines[0].ID)
	assert.Equal(t, id, inv.Lines[0].InvoiceID)

	stored, err := repo.FindByID(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, "INV-20260117-0001", stored.InvoiceNumber)
	assert.True(t, stored.GrandTotal.Equal(d("354.00")))
	require.NotNil(t, stored.Customer.Name)
	assert.Equal(t, "Meera", *stored.Customer.Name)
	require.Len(t, stored.Lines, 1)
	assert.Equal(t, productID, stored.Lines[0].ProductID)
	assert.True(t, stored.Lines[0].CGST.Equal(d("27.00")))
	require.Len(t, stored.TaxDetails, 1)
	assert.True(t, stored.TaxDetails[0].TaxableAmount.Equal(d("300.00")))
	require.NoError(t, stored.CheckTotals())

	byNumber, err := repo.FindByNumber(ctx, "INV-20260117-0001")
	require.NoError(t, err)
	assert.Equal(t, id, byNumber.ID)
}

func TestInvoiceRepository_DuplicateNumber(t *testing.T) {
	db := testutil.SetupTestDB(t)
	testutil.SetupTestTables(t, db)
	defer testutil.CleanupTestDB(t, db)

	repo := NewMySQLInvoiceRepository(db)
	ctx := context.Background()
	productID := testutil.SeedProduct(t, db, "RICE-5KG", "100.00", "18.00", 10)
	now := time.Now().UTC().Truncate(time.Microsecond)

	insertInvoice(t, db, repo, newInvoice("INV-20260117-0001", productID, 1, now))

	tx, err := db.BeginTx(ctx, nil)
	require.NoError(t, err)
	defer tx.Rollback()

	_, err = repo.Insert(ctx, tx, newInvoice("INV-20260117-0001", productID, 1, now))
	_, ok := apperrors.IsDuplicateNumberError(err)
	assert.True(t, ok, "expected duplicate number error, got %v", err)
}

func TestInvoiceRepository_NotFound(t *testing.T) {
	db := testutil.SetupTestDB(t)
	testutil.SetupTestTables(t, db)
	defer testutil.CleanupTestDB(t, db)

	repo := NewMySQLInvoiceRepository(db)

	_, err := repo.FindByID(context.Background(), 999999)
	_, ok := apperrors.IsNotFoundError(err)
	assert.True(t, ok)

	_, err = repo.FindByNumber(context.Background(), "INV-19990101-0001")
	_, ok = apperrors.IsNotFoundError(err)
	assert.True(t, ok)
}

func TestInvoiceRepository_PaymentAndCancellation(t *testing.T) {
	db := testutil.SetupTestDB(t)
	testutil.SetupTestTables(t, db)
	defer testutil.CleanupTestDB(t, db)

	repo := NewMySQLInvoiceRepository(db)
	ctx := context.Background()
	productID := testutil.SeedProduct(t, db, "RICE-5KG", "100.00", "18.00", 10)
	now := time.Now().UTC().Truncate(time.Microsecond)
	id := insertInvoice(t, db, repo, newInvoice("INV-20260117-0002", productID, 1, now))

	tx, err := db.BeginTx(ctx, nil)
	require.NoError(t, err)
	locked, err := repo.FindByIDForUpdate(ctx, tx, id)
	require.NoError(t, err)
	expected := locked.Version

	_, err = locked.ApplyPayment(d("100.00"), now)
	require.NoError(t, err)
	require.NoError(t, repo.UpdatePayment(ctx, tx, locked, expected))
	paymentID, err := repo.InsertPayment(ctx, tx, domain.Payment{
		InvoiceID: id, Mode: domain.PaymentCash, Amount: d("100.00"), ReceivedBy: 1, CreatedAt: now,
	})
	require.NoError(t, err)
	require.NoError(t, tx.Commit())

	stored, err := repo.FindByID(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, domain.PaymentPartiallyPaid, stored.PaymentStatus)
	assert.True(t, stored.AmountPaid.Equal(d("100.00")))
	assert.Equal(t, expected+1, stored.Version)

	payments, err := repo.ListPayments(ctx, id)
	require.NoError(t, err)
	require.Len(t, payments, 1)
	assert.Equal(t, paymentID, payments[0].ID)
	assert.Equal(t, domain.PaymentCash, payments[0].Mode)

	// A stale version must not overwrite the newer row.
	tx, err = db.BeginTx(ctx, nil)
	require.NoError(t, err)
	stale := *stored
	stale.IsCancelled = true
	err = repo.UpdateCancellation(ctx, tx, &stale, expected)
	_, ok := apperrors.IsConcurrencyConflictError(err)
	assert.True(t, ok)
	require.NoError(t, tx.Rollback())
}
