package dto

import (
	"strings"
	"time"

	"cashdesk/internal/domain"
)

type CreateRefundRequest struct {
	InvoiceID     uint    `json:"invoiceId" validate:"gt=0"`
	ProductID     int     `json:"productId" validate:"gt=0"`
	LineNumber    int     `json:"lineNumber,omitempty" validate:"gte=0"`
	Quantity      int     `json:"quantity" validate:"gt=0,lte=2147483647"`
	Reason        string  `json:"reason" validate:"required,max=255"`
	RefundType    string  `json:"refundType" validate:"required,oneof=FULL_RETURN PARTIAL_RETURN EXCHANGE DAMAGED_RETURN EXPIRED_RETURN"`
	CustomerName  *string `json:"customerName,omitempty" validate:"omitempty,max=255"`
	CustomerPhone *string `json:"customerPhone,omitempty" validate:"omitempty,max=32"`
}

type RefundDecisionRequest struct {
	Notes string `json:"notes,omitempty" validate:"max=1000"`
}

type RefundReasonRequest struct {
	Reason string `json:"reason" validate:"required,max=255"`
}

type RefundResponse struct {
	ID                uint      `json:"id"`
	RefundNumber      string    `json:"refundNumber"`
	OriginalInvoiceID uint      `json:"originalInvoiceId"`
	InvoiceLineNumber int       `json:"invoiceLineNumber"`
	ProductID         int       `json:"productId"`
	QuantityReturned  int       `json:"quantityReturned"`
	UnitPrice         string    `json:"unitPrice"`
	RefundAmount      string    `json:"refundAmount"`
	TaxRefunded       string    `json:"taxRefunded"`
	TotalRefund       string    `json:"totalRefund"`
	Reason            string    `json:"reason"`
	RefundType        string    `json:"refundType"`
	Status            string    `json:"status"`
	ProcessedBy       int       `json:"processedBy"`
	ApprovedBy        *int      `json:"approvedBy,omitempty"`
	RejectedBy        *int      `json:"rejectedBy,omitempty"`
	Notes             []string  `json:"notes"`
	CustomerName      *string   `json:"customerName,omitempty"`
	CustomerPhone     *string   `json:"customerPhone,omitempty"`
	CreatedAt         time.Time `json:"createdAt"`
	UpdatedAt         time.Time `json:"updatedAt"`
}

func NewRefundResponse(rf domain.Refund) RefundResponse {
	notes := []string{}
	if rf.Notes != "" {
		notes = strings.Split(rf.Notes, "\n")
	}
	return RefundResponse{
		ID:                rf.ID,
		RefundNumber:      rf.RefundNumber,
		OriginalInvoiceID: rf.OriginalInvoiceID,
		InvoiceLineNumber: rf.InvoiceLineNumber,
		ProductID:         rf.ProductID,
		QuantityReturned:  rf.QuantityReturned,
		UnitPrice:         money(rf.UnitPrice),
		RefundAmount:      money(rf.RefundAmount),
		TaxRefunded:       money(rf.TaxRefunded),
		TotalRefund:       money(rf.RefundAmount.Add(rf.TaxRefunded)),
		Reason:            rf.Reason,
		RefundType:        string(rf.Type),
		Status:            string(rf.Status),
		ProcessedBy:       rf.ProcessedBy,
		ApprovedBy:        rf.ApprovedBy,
		RejectedBy:        rf.RejectedBy,
		Notes:             notes,
		CustomerName:      rf.CustomerName,
		CustomerPhone:     rf.CustomerPhone,
		CreatedAt:         rf.CreatedAt,
		UpdatedAt:         rf.UpdatedAt,
	}
}

type RefundEnvelope struct {
	TraceID string         `json:"traceId"`
	Refund  RefundResponse `json:"refund"`
}

type RefundListResponse struct {
	TraceID string           `json:"traceId"`
	Refunds []RefundResponse `json:"refunds"`
}

func NewRefundListResponse(traceID string, refunds []domain.Refund) RefundListResponse {
	resp := RefundListResponse{TraceID: traceID, Refunds: make([]RefundResponse, 0, len(refunds))}
	for _, rf := range refunds {
		resp.Refunds = append(resp.Refunds, NewRefundResponse(rf))
	}
	return resp
}
