package domain

import (
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	apperrors "cashdesk/internal/errors"
)

type RefundType string

const (
	RefundFullReturn    RefundType = "FULL_RETURN"
	RefundPartialReturn RefundType = "PARTIAL_RETURN"
	RefundExchange      RefundType = "EXCHANGE"
	RefundDamagedReturn RefundType = "DAMAGED_RETURN"
	RefundExpiredReturn RefundType = "EXPIRED_RETURN"
)

func (t RefundType) Valid() bool {
	switch t {
	case RefundFullReturn, RefundPartialReturn, RefundExchange, RefundDamagedReturn, RefundExpiredReturn:
		return true
	}
	return false
}

type RefundStatus string

const (
	RefundPending   RefundStatus = "PENDING"
	RefundApproved  RefundStatus = "APPROVED"
	RefundRejected  RefundStatus = "REJECTED"
	RefundProcessed RefundStatus = "PROCESSED"
	RefundCancelled RefundStatus = "CANCELLED"
)

var refundTransitions = map[RefundStatus][]RefundStatus{
	RefundPending:  {RefundApproved, RefundRejected, RefundCancelled},
	RefundApproved: {RefundProcessed, RefundCancelled},
}

func (s RefundStatus) CanTransitionTo(next RefundStatus) bool {
	for _, allowed := range refundTransitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

func (s RefundStatus) IsTerminal() bool {
	return len(refundTransitions[s]) == 0
}

// CountsAgainstSale reports whether a refund in this status consumes returnable quantity.
func (s RefundStatus) CountsAgainstSale() bool {
	return s != RefundRejected && s != RefundCancelled
}

type Refund struct {
	ID                uint            `db:"id"`
	RefundNumber      string          `db:"refund_number"`
	OriginalInvoiceID uint            `db:"original_invoice_id"`
	InvoiceLineNumber int             `db:"invoice_line_number"`
	ProductID         int             `db:"product_id"`
	QuantityReturned  int             `db:"quantity_returned"`
	UnitPrice         decimal.Decimal `db:"unit_price"`
	RefundAmount      decimal.Decimal `db:"refund_amount"`
	TaxRefunded       decimal.Decimal `db:"tax_refunded"`
	Reason            string          `db:"reason"`
	Type              RefundType      `db:"refund_type"`
	Status            RefundStatus    `db:"status"`
	ProcessedBy       int             `db:"processed_by"`
	ApprovedBy        *int            `db:"approved_by"`
	RejectedBy        *int            `db:"rejected_by"`
	Notes             string          `db:"notes"`
	CustomerName      *string         `db:"customer_name"`
	CustomerPhone     *string         `db:"customer_phone"`
	Lifecycle
}

func (r *Refund) transition(next RefundStatus, action string, at time.Time) error {
	if !r.Status.CanTransitionTo(next) {
		return apperrors.NewInvalidStateError("refund", string(r.Status), action)
	}
	r.Status = next
	r.UpdatedAt = at
	return nil
}

func (r *Refund) appendNote(at time.Time, format string, args ...any) {
	entry := fmt.Sprintf("[%s] %s", at.UTC().Format(time.RFC3339), fmt.Sprintf(format, args...))
	if r.Notes == "" {
		r.Notes = entry
		return
	}
	r.Notes = r.Notes + "\n" + entry
}

func (r *Refund) Approve(approverID int, notes string, at time.Time) error {
	if err := r.transition(RefundApproved, "approve", at); err != nil {
		return err
	}
	r.ApprovedBy = &approverID
	if strings.TrimSpace(notes) != "" {
		r.appendNote(at, "approved by %d: %s", approverID, notes)
	} else {
		r.appendNote(at, "approved by %d", approverID)
	}
	return nil
}

func (r *Refund) MarkProcessed(at time.Time) error {
	if err := r.transition(RefundProcessed, "process", at); err != nil {
		return err
	}
	r.appendNote(at, "restocked %d units of product %d", r.QuantityReturned, r.ProductID)
	return nil
}

func (r *Refund) Reject(rejecterID int, reason string, at time.Time) error {
	if err := r.transition(RefundRejected, "reject", at); err != nil {
		return err
	}
	r.RejectedBy = &rejecterID
	r.appendNote(at, "rejected by %d: %s", rejecterID, reason)
	return nil
}

func (r *Refund) Cancel(actorID int, reason string, at time.Time) error {
	if err := r.transition(RefundCancelled, "cancel", at); err != nil {
		return err
	}
	r.appendNote(at, "cancelled by %d: %s", actorID, reason)
	return nil
}
