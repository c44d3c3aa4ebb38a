package domain

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "cashdesk/internal/errors"
)

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func sampleInvoice() SalesInvoice {
	return SalesInvoice{
		InvoiceNumber: "INV-20260117-0001",
		Lines: []InvoiceLine{
			{
				LineNumber:    1,
				ProductID:     10,
				UnitPrice:     dec("100.00"),
				Quantity:      3,
				LineTotal:     dec("300.00"),
				TaxableAmount: dec("300.00"),
				GSTRate:       dec("18"),
				CGST:          dec("27.00"),
				SGST:          dec("27.00"),
				IGST:          decimal.Zero,
				FinalAmount:   dec("354.00"),
			},
		},
		Subtotal:       dec("300.00"),
		DiscountAmount: decimal.Zero,
		TaxableAmount:  dec("300.00"),
		CGST:           dec("27.00"),
		SGST:           dec("27.00"),
		IGST:           decimal.Zero,
		RoundOff:       decimal.Zero,
		GrandTotal:     dec("354.00"),
		AmountPaid:     decimal.Zero,
		PaymentStatus:  PaymentPending,
	}
}

func TestSalesInvoice_CheckTotals(t *testing.T) {
	inv := sampleInvoice()
	require.NoError(t, inv.CheckTotals())
	assert.True(t, inv.TotalTax().Equal(dec("54.00")))

	inv.GrandTotal = dec("354.01")
	assert.Error(t, inv.CheckTotals())
}

func TestSalesInvoice_CheckTotals_LineNumbering(t *testing.T) {
	inv := sampleInvoice()
	inv.Lines[0].LineNumber = 2

	assert.Error(t, inv.CheckTotals())
}

func TestSalesInvoice_FindLine(t *testing.T) {
	inv := sampleInvoice()
	inv.Lines = append(inv.Lines, InvoiceLine{LineNumber: 2, ProductID: 10, Quantity: 1})

	line, ok := inv.FindLine(10, 0)
	require.True(t, ok)
	assert.Equal(t, 1, line.LineNumber)

	line, ok = inv.FindLine(10, 2)
	require.True(t, ok)
	assert.Equal(t, 2, line.LineNumber)

	_, ok = inv.FindLine(11, 0)
	assert.False(t, ok)
}

func TestSalesInvoice_Cancel(t *testing.T) {
	now := time.Now()
	inv := sampleInvoice()

	require.NoError(t, inv.Cancel(4, "customer walked away", now))
	assert.True(t, inv.IsCancelled)
	require.NotNil(t, inv.CancelledBy)
	assert.Equal(t, 4, *inv.CancelledBy)
	assert.True(t, inv.GrandTotal.Equal(dec("354.00")))

	err := inv.Cancel(4, "again", now)
	_, ok := apperrors.IsInvalidStateError(err)
	assert.True(t, ok)
}

func TestSalesInvoice_Cancel_RejectsPaidInvoice(t *testing.T) {
	inv := sampleInvoice()
	inv.PaymentStatus = PaymentPartiallyPaid

	err := inv.Cancel(4, "too late", time.Now())
	_, ok := apperrors.IsInvalidStateError(err)
	assert.True(t, ok)
	assert.False(t, inv.IsCancelled)
}

func TestInitialPaymentStatus(t *testing.T) {
	assert.Equal(t, PaymentPending, InitialPaymentStatus(dec("354.00")))
	assert.Equal(t, PaymentPaid, InitialPaymentStatus(decimal.Zero))
	assert.Equal(t, PaymentPaid, InitialPaymentStatus(dec("0.00")))
}

func TestSalesInvoice_ZeroTotal(t *testing.T) {
	inv := SalesInvoice{
		InvoiceNumber: "INV-20260117-0002",
		GrandTotal:    decimal.Zero,
		AmountPaid:    decimal.Zero,
		PaymentStatus: InitialPaymentStatus(decimal.Zero),
	}

	_, err := inv.ApplyPayment(dec("1.00"), time.Now())
	_, ok := apperrors.IsInvalidStateError(err)
	assert.True(t, ok)

	require.NoError(t, inv.Cancel(4, "free sample returned", time.Now()))
	assert.True(t, inv.IsCancelled)
}

func TestSalesInvoice_ApplyPayment(t *testing.T) {
	now := time.Now()
	inv := sampleInvoice()

	status, err := inv.ApplyPayment(dec("100.00"), now)
	require.NoError(t, err)
	assert.Equal(t, PaymentPartiallyPaid, status)

	_, err = inv.ApplyPayment(dec("300.00"), now)
	_, ok := apperrors.IsValidationError(err)
	assert.True(t, ok, "overpayment must be rejected")
	assert.True(t, inv.AmountPaid.Equal(dec("100.00")))

	status, err = inv.ApplyPayment(dec("254.00"), now)
	require.NoError(t, err)
	assert.Equal(t, PaymentPaid, status)

	_, err = inv.ApplyPayment(dec("1.00"), now)
	_, ok = apperrors.IsInvalidStateError(err)
	assert.True(t, ok)
}

func TestSalesInvoice_ApplyPayment_Cancelled(t *testing.T) {
	inv := sampleInvoice()
	inv.IsCancelled = true

	_, err := inv.ApplyPayment(dec("10.00"), time.Now())
	_, ok := apperrors.IsInvalidStateError(err)
	assert.True(t, ok)
}

func TestTaxPolicy_Valid(t *testing.T) {
	assert.True(t, TaxIntraState.Valid())
	assert.True(t, TaxInterState.Valid())
	assert.False(t, TaxPolicy("EXPORT").Valid())
}
