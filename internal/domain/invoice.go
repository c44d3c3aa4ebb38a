package domain

import (
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	apperrors "cashdesk/internal/errors"
)

type PaymentStatus string

const (
	PaymentPending       PaymentStatus = "PENDING"
	PaymentPartiallyPaid PaymentStatus = "PARTIALLY_PAID"
	PaymentPaid          PaymentStatus = "PAID"
)

// TaxPolicy selects how GST is split; it is always an explicit input, never inferred.
type TaxPolicy string

const (
	TaxIntraState TaxPolicy = "INTRA_STATE"
	TaxInterState TaxPolicy = "INTER_STATE"
)

func (p TaxPolicy) Valid() bool {
	return p == TaxIntraState || p == TaxInterState
}

type PaymentMode string

const (
	PaymentCash  PaymentMode = "CASH"
	PaymentCard  PaymentMode = "CARD"
	PaymentUPI   PaymentMode = "UPI"
	PaymentOther PaymentMode = "OTHER"
)

type Customer struct {
	Name  *string
	Phone *string
	Email *string
	GSTIN *string
}

type InvoiceLine struct {
	ID              uint            `db:"id"`
	InvoiceID       uint            `db:"invoice_id"`
	LineNumber      int             `db:"line_number"`
	ProductID       int             `db:"product_id"`
	ProductName     string          `db:"product_name"`
	ProductSKU      string          `db:"product_sku"`
	ProductBarcode  *string         `db:"product_barcode"`
	UnitPrice       decimal.Decimal `db:"unit_price"`
	Quantity        int             `db:"quantity"`
	DiscountPercent decimal.Decimal `db:"discount_percent"`
	DiscountAmount  decimal.Decimal `db:"discount_amount"`
	LineTotal       decimal.Decimal `db:"line_total"`
	TaxableAmount   decimal.Decimal `db:"taxable_amount"`
	GSTRate         decimal.Decimal `db:"gst_rate"`
	CGST            decimal.Decimal `db:"cgst"`
	SGST            decimal.Decimal `db:"sgst"`
	IGST            decimal.Decimal `db:"igst"`
	FinalAmount     decimal.Decimal `db:"final_amount"`
}

func (l InvoiceLine) TaxAmount() decimal.Decimal {
	return l.CGST.Add(l.SGST).Add(l.IGST)
}

// InvoiceTaxDetail summarizes tax for all lines sharing one GST rate.
type InvoiceTaxDetail struct {
	ID            uint            `db:"id"`
	InvoiceID     uint            `db:"invoice_id"`
	GSTRate       decimal.Decimal `db:"gst_rate"`
	TaxableAmount decimal.Decimal `db:"taxable_amount"`
	CGST          decimal.Decimal `db:"cgst"`
	SGST          decimal.Decimal `db:"sgst"`
	IGST          decimal.Decimal `db:"igst"`
}

type Payment struct {
	ID         uint            `db:"id"`
	InvoiceID  uint            `db:"invoice_id"`
	Mode       PaymentMode     `db:"payment_mode"`
	Amount     decimal.Decimal `db:"amount"`
	Reference  *string         `db:"reference"`
	ReceivedBy int             `db:"received_by"`
	CreatedAt  time.Time       `db:"created_at"`
}

type SalesInvoice struct {
	ID                 uint
	InvoiceNumber      string
	IssuedAt           time.Time
	CashierID          int
	CounterID          int
	Customer           Customer
	TaxPolicy          TaxPolicy
	Lines              []InvoiceLine
	TaxDetails         []InvoiceTaxDetail
	Subtotal           decimal.Decimal
	DiscountAmount     decimal.Decimal
	TaxableAmount      decimal.Decimal
	CGST               decimal.Decimal
	SGST               decimal.Decimal
	IGST               decimal.Decimal
	RoundOff           decimal.Decimal
	GrandTotal         decimal.Decimal
	AmountPaid         decimal.Decimal
	PaymentStatus      PaymentStatus
	Notes              *string
	IsCancelled        bool
	CancelledAt        *time.Time
	CancelledBy        *int
	CancellationReason *string
	Lifecycle
}

func (i SalesInvoice) TotalTax() decimal.Decimal {
	return i.CGST.Add(i.SGST).Add(i.IGST)
}

// CheckTotals verifies the monetary identities of the invoice and each of its lines.
func (i SalesInvoice) CheckTotals() error {
	var problems []string

	if !i.TaxableAmount.Equal(i.Subtotal.Sub(i.DiscountAmount)) {
		problems = append(problems, "taxableAmount != subtotal - discountAmount")
	}
	if !i.GrandTotal.Equal(i.TaxableAmount.Add(i.TotalTax()).Add(i.RoundOff)) {
		problems = append(problems, "grandTotal != taxableAmount + tax + roundOff")
	}
	for idx, line := range i.Lines {
		if line.LineNumber != idx+1 {
			problems = append(problems, fmt.Sprintf("line %d has lineNumber %d", idx+1, line.LineNumber))
		}
		if !line.FinalAmount.Equal(line.TaxableAmount.Add(line.TaxAmount())) {
			problems = append(problems, fmt.Sprintf("line %d finalAmount != taxableAmount + tax", line.LineNumber))
		}
	}

	if len(problems) > 0 {
		return apperrors.NewInternalError(fmt.Sprintf("invoice %s totals inconsistent: %s", i.InvoiceNumber, strings.Join(problems, "; ")), nil)
	}
	return nil
}

// FindLine returns the line selling productID. A zero lineNumber selects the first such line.
func (i SalesInvoice) FindLine(productID, lineNumber int) (InvoiceLine, bool) {
	for _, line := range i.Lines {
		if line.ProductID != productID {
			continue
		}
		if lineNumber == 0 || line.LineNumber == lineNumber {
			return line, true
		}
	}
	return InvoiceLine{}, false
}

// InitialPaymentStatus is the status a freshly issued invoice starts in. Nothing is owed on
// a zero total, so it is settled from the start.
func InitialPaymentStatus(grandTotal decimal.Decimal) PaymentStatus {
	if grandTotal.IsZero() {
		return PaymentPaid
	}
	return PaymentPending
}

// nothingReceived is true while no money has been taken against the invoice.
func (i SalesInvoice) nothingReceived() bool {
	if i.PaymentStatus == PaymentPending {
		return true
	}
	return i.PaymentStatus == PaymentPaid && i.GrandTotal.IsZero() && i.AmountPaid.IsZero()
}

// Cancel records cancellation metadata. Lines and monetary fields are never changed.
func (i *SalesInvoice) Cancel(actorID int, reason string, at time.Time) error {
	if i.IsCancelled {
		return apperrors.NewInvalidStateError("invoice", "CANCELLED", "cancel")
	}
	if !i.nothingReceived() {
		return apperrors.NewInvalidStateError("invoice", string(i.PaymentStatus), "cancel")
	}

	i.IsCancelled = true
	i.CancelledAt = &at
	i.CancelledBy = &actorID
	i.CancellationReason = &reason
	i.Touch(at)
	return nil
}

// ApplyPayment adds amount to the paid balance and returns the resulting payment status.
func (i *SalesInvoice) ApplyPayment(amount decimal.Decimal, at time.Time) (PaymentStatus, error) {
	if i.IsCancelled {
		return "", apperrors.NewInvalidStateError("invoice", "CANCELLED", "record payment for")
	}
	if i.PaymentStatus == PaymentPaid {
		return "", apperrors.NewInvalidStateError("invoice", string(PaymentPaid), "record payment for")
	}
	if !amount.IsPositive() {
		return "", apperrors.NewValidationError("invalid payment", apperrors.ValidationDetail{Field: "amount", Message: "amount must be greater than zero"})
	}

	paid := i.AmountPaid.Add(amount)
	if paid.GreaterThan(i.GrandTotal) {
		return "", apperrors.NewValidationError("invalid payment", apperrors.ValidationDetail{
			Field:   "amount",
			Message: fmt.Sprintf("payment exceeds outstanding balance %s", i.GrandTotal.Sub(i.AmountPaid).StringFixed(2)),
		})
	}

	i.AmountPaid = paid
	if paid.Equal(i.GrandTotal) {
		i.PaymentStatus = PaymentPaid
	} else {
		i.PaymentStatus = PaymentPartiallyPaid
	}
	i.Touch(at)
	return i.PaymentStatus, nil
}
