package controller

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"cashdesk/internal/commons"
	"cashdesk/internal/domain"
	"cashdesk/internal/dto"
	"cashdesk/internal/sales/service"
	"cashdesk/internal/sales/usecase"
)

type SaleUseCase interface {
	CreateInvoice(ctx context.Context, cmd usecase.CreateInvoiceCommand) (*domain.SalesInvoice, error)
	CancelInvoice(ctx context.Context, invoiceID uint, actorID int, reason string) (*domain.SalesInvoice, error)
	RecordPayment(ctx context.Context, cmd service.PaymentCommand) (*domain.SalesInvoice, *domain.Payment, error)
	GetInvoice(ctx context.Context, id uint) (*domain.SalesInvoice, error)
	GetInvoiceByNumber(ctx context.Context, number string) (*domain.SalesInvoice, error)
	ListPayments(ctx context.Context, invoiceID uint) ([]domain.Payment, error)
}

type InvoiceController struct {
	useCase SaleUseCase
	logger  *zap.Logger
}

func NewInvoiceController(useCase SaleUseCase, logger *zap.Logger) *InvoiceController {
	return &InvoiceController{
		useCase: useCase,
		logger:  logger,
	}
}

func invoiceIDParam(r *http.Request) (uint, error) {
	id, err := commons.PathID(chi.URLParam(r, "id"), "id")
	if err != nil {
		return 0, err
	}
	return uint(id), nil
}

func toCommand(cashierID int, req dto.CreateInvoiceRequest) usecase.CreateInvoiceCommand {
	cmd := usecase.CreateInvoiceCommand{
		CashierID: cashierID,
		TaxPolicy: domain.TaxPolicy(req.TaxPolicy),
		Notes:     req.Notes,
		Lines:     make([]service.LineRequest, len(req.Lines)),
	}
	if req.Customer != nil {
		cmd.Customer = domain.Customer{
			Name:  req.Customer.Name,
			Phone: req.Customer.Phone,
			Email: req.Customer.Email,
			GSTIN: req.Customer.GSTIN,
		}
	}
	for i, l := range req.Lines {
		discount := decimal.Zero
		if l.DiscountPercent != nil {
			discount = *l.DiscountPercent
		}
		cmd.Lines[i] = service.LineRequest{
			ProductID:         l.ProductID,
			Quantity:          l.Quantity,
			DiscountPercent:   discount,
			UnitPriceOverride: l.UnitPrice,
		}
	}
	return cmd
}

func (c *InvoiceController) CreateInvoice(w http.ResponseWriter, r *http.Request) {
	traceID := commons.NewTraceID()
	logger := c.logger.With(zap.String("traceId", traceID))

	cashierID, err := commons.ActorID(r)
	if err != nil {
		commons.WriteError(w, traceID, err, logger)
		return
	}

	var req dto.CreateInvoiceRequest
	if err := commons.DecodeJSON(r, &req); err != nil {
		commons.WriteError(w, traceID, err, logger)
		return
	}
	if err := commons.ValidateStruct(req); err != nil {
		commons.WriteError(w, traceID, err, logger)
		return
	}

	inv, err := c.useCase.CreateInvoice(r.Context(), toCommand(cashierID, req))
	if err != nil {
		commons.WriteError(w, traceID, err, logger)
		return
	}

	logger.Info("sale completed",
		zap.String("invoiceNumber", inv.InvoiceNumber),
		zap.String("grandTotal", inv.GrandTotal.StringFixed(2)),
	)
	commons.WriteJSON(w, http.StatusCreated, dto.NewInvoiceResponse(traceID, inv), logger)
}

func (c *InvoiceController) GetInvoice(w http.ResponseWriter, r *http.Request) {
	traceID := commons.NewTraceID()
	logger := c.logger.With(zap.String("traceId", traceID))

	id, err := invoiceIDParam(r)
	if err != nil {
		commons.WriteError(w, traceID, err, logger)
		return
	}

	inv, err := c.useCase.GetInvoice(r.Context(), id)
	if err != nil {
		commons.WriteError(w, traceID, err, logger)
		return
	}

	commons.WriteJSON(w, http.StatusOK, dto.NewInvoiceResponse(traceID, inv), logger)
}

func (c *InvoiceController) GetInvoiceByNumber(w http.ResponseWriter, r *http.Request) {
	traceID := commons.NewTraceID()
	logger := c.logger.With(zap.String("traceId", traceID))

	inv, err := c.useCase.GetInvoiceByNumber(r.Context(), chi.URLParam(r, "number"))
	if err != nil {
		commons.WriteError(w, traceID, err, logger)
		return
	}

	commons.WriteJSON(w, http.StatusOK, dto.NewInvoiceResponse(traceID, inv), logger)
}

func (c *InvoiceController) RecordPayment(w http.ResponseWriter, r *http.Request) {
	traceID := commons.NewTraceID()
	logger := c.logger.With(zap.String("traceId", traceID))

	id, err := invoiceIDParam(r)
	if err != nil {
		commons.WriteError(w, traceID, err, logger)
		return
	}

	actorID, err := commons.ActorID(r)
	if err != nil {
		commons.WriteError(w, traceID, err, logger)
		return
	}

	var req dto.RecordPaymentRequest
	if err := commons.DecodeJSON(r, &req); err != nil {
		commons.WriteError(w, traceID, err, logger)
		return
	}
	if err := commons.ValidateStruct(req); err != nil {
		commons.WriteError(w, traceID, err, logger)
		return
	}

	inv, payment, err := c.useCase.RecordPayment(r.Context(), service.PaymentCommand{
		InvoiceID:  id,
		Mode:       domain.PaymentMode(req.Mode),
		Amount:     req.Amount,
		Reference:  req.Reference,
		ReceivedBy: actorID,
	})
	if err != nil {
		commons.WriteError(w, traceID, err, logger)
		return
	}

	commons.WriteJSON(w, http.StatusCreated, dto.RecordPaymentResponse{
		TraceID:       traceID,
		Payment:       dto.NewPaymentResponse(*payment),
		AmountPaid:    inv.AmountPaid.StringFixed(2),
		Outstanding:   inv.GrandTotal.Sub(inv.AmountPaid).StringFixed(2),
		PaymentStatus: string(inv.PaymentStatus),
	}, logger)
}

func (c *InvoiceController) ListPayments(w http.ResponseWriter, r *http.Request) {
	traceID := commons.NewTraceID()
	logger := c.logger.With(zap.String("traceId", traceID))

	id, err := invoiceIDParam(r)
	if err != nil {
		commons.WriteError(w, traceID, err, logger)
		return
	}

	payments, err := c.useCase.ListPayments(r.Context(), id)
	if err != nil {
		commons.WriteError(w, traceID, err, logger)
		return
	}

	resp := dto.PaymentListResponse{TraceID: traceID, Payments: make([]dto.PaymentResponse, 0, len(payments))}
	for _, p := range payments {
		resp.Payments = append(resp.Payments, dto.NewPaymentResponse(p))
	}
	commons.WriteJSON(w, http.StatusOK, resp, logger)
}

func (c *InvoiceController) CancelInvoice(w http.ResponseWriter, r *http.Request) {
	traceID := commons.NewTraceID()
	logger := c.logger.With(zap.String("traceId", traceID))

	id, err := invoiceIDParam(r)
	if err != nil {
		commons.WriteError(w, traceID, err, logger)
		return
	}

	actorID, err := commons.ActorID(r)
	if err != nil {
		commons.WriteError(w, traceID, err, logger)
		return
	}

	var req dto.CancelInvoiceRequest
	if err := commons.DecodeJSON(r, &req); err != nil {
		commons.WriteError(w, traceID, err, logger)
		return
	}
	if err := commons.ValidateStruct(req); err != nil {
		commons.WriteError(w, traceID, err, logger)
		return
	}

	inv, err := c.useCase.CancelInvoice(r.Context(), id, actorID, req.Reason)
	if err != nil {
		commons.WriteError(w, traceID, err, logger)
		return
	}

	commons.WriteJSON(w, http.StatusOK, dto.NewInvoiceResponse(traceID, inv), logger)
}
