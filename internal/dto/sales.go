package dto

import (
	"time"

	"github.com/shopspring/decimal"

	"cashdesk/internal/domain"
)

type CustomerRequest struct {
	Name  *string `json:"name,omitempty" validate:"omitempty,max=255"`
	Phone *string `json:"phone,omitempty" validate:"omitempty,max=32"`
	Email *string `json:"email,omitempty" validate:"omitempty,email,max=255"`
	GSTIN *string `json:"gstin,omitempty" validate:"omitempty,len=15,alphanum"`
}

type InvoiceLineRequest struct {
	ProductID       int              `json:"productId" validate:"gt=0"`
	Quantity        int              `json:"quantity" validate:"gt=0,lte=2147483647"`
	DiscountPercent *decimal.Decimal `json:"discountPercent,omitempty"`
	UnitPrice       *decimal.Decimal `json:"unitPrice,omitempty"`
}

// CreateInvoiceRequest is sold by the actor in the X-Actor-ID header.
type CreateInvoiceRequest struct {
	Customer  *CustomerRequest     `json:"customer,omitempty"`
	TaxPolicy string               `json:"taxPolicy,omitempty" validate:"omitempty,oneof=INTRA_STATE INTER_STATE"`
	Notes     *string              `json:"notes,omitempty" validate:"omitempty,max=1000"`
	Lines     []InvoiceLineRequest `json:"lines" validate:"required,min=1,max=200,dive"`
}

type RecordPaymentRequest struct {
	Mode      string          `json:"mode" validate:"required,oneof=CASH CARD UPI OTHER"`
	Amount    decimal.Decimal `json:"amount"`
	Reference *string         `json:"reference,omitempty" validate:"omitempty,max=128"`
}

type CancelInvoiceRequest struct {
	Reason string `json:"reason" validate:"required,max=255"`
}

type InvoiceLineResponse struct {
	LineNumber      int     `json:"lineNumber"`
	ProductID       int     `json:"productId"`
	ProductName     string  `json:"productName"`
	ProductSKU      string  `json:"productSku"`
	ProductBarcode  *string `json:"productBarcode,omitempty"`
	UnitPrice       string  `json:"unitPrice"`
	Quantity        int     `json:"quantity"`
	DiscountPercent string  `json:"discountPercent"`
	DiscountAmount  string  `json:"discountAmount"`
	LineTotal       string  `json:"lineTotal"`
	TaxableAmount   string  `json:"taxableAmount"`
	GSTRate         string  `json:"gstRate"`
	CGST            string  `json:"cgst"`
	SGST            string  `json:"sgst"`
	IGST            string  `json:"igst"`
	FinalAmount     string  `json:"finalAmount"`
}

type TaxDetailResponse struct {
	GSTRate       string `json:"gstRate"`
	TaxableAmount string `json:"taxableAmount"`
	CGST          string `json:"cgst"`
	SGST          string `json:"sgst"`
	IGST          string `json:"igst"`
}

type CustomerResponse struct {
	Name  *string `json:"name,omitempty"`
	Phone *string `json:"phone,omitempty"`
	Email *string `json:"email,omitempty"`
	GSTIN *string `json:"gstin,omitempty"`
}

type InvoiceResponse struct {
	TraceID            string                `json:"traceId"`
	ID                 uint                  `json:"id"`
	InvoiceNumber      string                `json:"invoiceNumber"`
	IssuedAt           time.Time             `json:"issuedAt"`
	CashierID          int                   `json:"cashierId"`
	CounterID          int                   `json:"counterId"`
	Customer           CustomerResponse      `json:"customer"`
	TaxPolicy          string                `json:"taxPolicy"`
	Lines              []InvoiceLineResponse `json:"lines"`
	TaxDetails         []TaxDetailResponse   `json:"taxDetails"`
	Subtotal           string                `json:"subtotal"`
	DiscountAmount     string                `json:"discountAmount"`
	TaxableAmount      string                `json:"taxableAmount"`
	CGST               string                `json:"cgst"`
	SGST               string                `json:"sgst"`
	IGST               string                `json:"igst"`
	TotalTax           string                `json:"totalTax"`
	RoundOff           string                `json:"roundOff"`
	GrandTotal         string                `json:"grandTotal"`
	AmountPaid         string                `json:"amountPaid"`
	PaymentStatus      string                `json:"paymentStatus"`
	Notes              *string               `json:"notes,omitempty"`
	IsCancelled        bool                  `json:"isCancelled"`
	CancelledAt        *time.Time            `json:"cancelledAt,omitempty"`
	CancelledBy        *int                  `json:"cancelledBy,omitempty"`
	CancellationReason *string               `json:"cancellationReason,omitempty"`
}

func money(d decimal.Decimal) string {
	return d.StringFixed(2)
}

func NewInvoiceResponse(traceID string, inv *domain.SalesInvoice) InvoiceResponse {
	resp := InvoiceResponse{
		TraceID:       traceID,
		ID:            inv.ID,
		InvoiceNumber: inv.InvoiceNumber,
		IssuedAt:      inv.IssuedAt,
		CashierID:     inv.CashierID,
		CounterID:     inv.CounterID,
		Customer: CustomerResponse{
			Name:  inv.Customer.Name,
			Phone: inv.Customer.Phone,
			Email: inv.Customer.Email,
			GSTIN: inv.Customer.GSTIN,
		},
		TaxPolicy:          string(inv.TaxPolicy),
		Lines:              make([]InvoiceLineResponse, 0, len(inv.Lines)),
		TaxDetails:         make([]TaxDetailResponse, 0, len(inv.TaxDetails)),
		Subtotal:           money(inv.Subtotal),
		DiscountAmount:     money(inv.DiscountAmount),
		TaxableAmount:      money(inv.TaxableAmount),
		CGST:               money(inv.CGST),
		SGST:               money(inv.SGST),
		IGST:               money(inv.IGST),
		TotalTax:           money(inv.TotalTax()),
		RoundOff:           money(inv.RoundOff),
		GrandTotal:         money(inv.GrandTotal),
		AmountPaid:         money(inv.AmountPaid),
		PaymentStatus:      string(inv.PaymentStatus),
		Notes:              inv.Notes,
		IsCancelled:        inv.IsCancelled,
		CancelledAt:        inv.CancelledAt,
		CancelledBy:        inv.CancelledBy,
		CancellationReason: inv.CancellationReason,
	}

	for _, l := range inv.Lines {
		resp.Lines = append(resp.Lines, InvoiceLineResponse{
			LineNumber:      l.LineNumber,
			ProductID:       l.ProductID,
			ProductName:     l.ProductName,
			ProductSKU:      l.ProductSKU,
			ProductBarcode:  l.ProductBarcode,
			UnitPrice:       money(l.UnitPrice),
			Quantity:        l.Quantity,
			DiscountPercent: money(l.DiscountPercent),
			DiscountAmount:  money(l.DiscountAmount),
			LineTotal:       money(l.LineTotal),
			TaxableAmount:   money(l.TaxableAmount),
			GSTRate:         money(l.GSTRate),
			CGST:            money(l.CGST),
			SGST:            money(l.SGST),
			IGST:            money(l.IGST),
			FinalAmount:     money(l.FinalAmount),
		})
	}
	for _, d := range inv.TaxDetails {
		resp.TaxDetails = append(resp.TaxDetails, TaxDetailResponse{
			GSTRate:       money(d.GSTRate),
			TaxableAmount: money(d.TaxableAmount),
			CGST:          money(d.CGST),
			SGST:          money(d.SGST),
			IGST:          money(d.IGST),
		})
	}
	return resp
}

type PaymentResponse struct {
	ID         uint      `json:"id"`
	InvoiceID  uint      `json:"invoiceId"`
	Mode       string    `json:"mode"`
	Amount     string    `json:"amount"`
	Reference  *string   `json:"reference,omitempty"`
	ReceivedBy int       `json:"receivedBy"`
	CreatedAt  time.Time `json:"createdAt"`
}

func NewPaymentResponse(p domain.Payment) PaymentResponse {
	return PaymentResponse{
		ID:         p.ID,
		InvoiceID:  p.InvoiceID,
		Mode:       string(p.Mode),
		Amount:     money(p.Amount),
		Reference:  p.Reference,
		ReceivedBy: p.ReceivedBy,
		CreatedAt:  p.CreatedAt,
	}
}

type RecordPaymentResponse struct {
	TraceID       string          `json:"traceId"`
	Payment       PaymentResponse `json:"payment"`
	AmountPaid    string          `json:"amountPaid"`
	Outstanding   string          `json:"outstanding"`
	PaymentStatus string          `json:"paymentStatus"`
}

type PaymentListResponse struct {
	TraceID  string            `json:"traceId"`
	Payments []PaymentResponse `json:"payments"`
}
