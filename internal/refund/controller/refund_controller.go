package controller

import (
	"context"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"cashdesk/internal/commons"
	"cashdesk/internal/domain"
	"cashdesk/internal/dto"
	apperrors "cashdesk/internal/errors"
	"cashdesk/internal/refund/usecase"
)

type RefundUseCase interface {
	CreateRefund(ctx context.Context, cmd usecase.CreateRefundCommand) (*domain.Refund, error)
	ApproveRefund(ctx context.Context, id uint, approverID int, notes string) (*domain.Refund, error)
	RejectRefund(ctx context.Context, id uint, rejecterID int, reason string) (*domain.Refund, error)
	CancelRefund(ctx context.Context, id uint, actorID int, reason string) (*domain.Refund, error)
	GetRefund(ctx context.Context, id uint) (*domain.Refund, error)
	ListPending(ctx context.Context, limit int) ([]domain.Refund, error)
	ListByInvoice(ctx context.Context, invoiceID uint) ([]domain.Refund, error)
}

type RefundController struct {
	useCase RefundUseCase
	logger  *zap.Logger
}

func NewRefundController(useCase RefundUseCase, logger *zap.Logger) *RefundController {
	return &RefundController{
		useCase: useCase,
		logger:  logger,
	}
}

func (c *RefundController) CreateRefund(w http.ResponseWriter, r *http.Request) {
	traceID := commons.NewTraceID()
	logger := c.logger.With(zap.String("traceId", traceID))

	actorID, err := commons.ActorID(r)
	if err != nil {
		commons.WriteError(w, traceID, err, logger)
		return
	}

	var req dto.CreateRefundRequest
	if err := commons.DecodeJSON(r, &req); err != nil {
		commons.WriteError(w, traceID, err, logger)
		return
	}
	if err := commons.ValidateStruct(req); err != nil {
		commons.WriteError(w, traceID, err, logger)
		return
	}

	rf, err := c.useCase.CreateRefund(r.Context(), usecase.CreateRefundCommand{
		InvoiceID:     req.InvoiceID,
		ProductID:     req.ProductID,
		LineNumber:    req.LineNumber,
		Quantity:      req.Quantity,
		Reason:        req.Reason,
		Type:          domain.RefundType(req.RefundType),
		RequestedBy:   actorID,
		CustomerName:  req.CustomerName,
		CustomerPhone: req.CustomerPhone,
	})
	if err != nil {
		commons.WriteError(w, traceID, err, logger)
		return
	}

	logger.Info("refund requested", zap.String("refundNumber", rf.RefundNumber))
	commons.WriteJSON(w, http.StatusCreated, dto.RefundEnvelope{TraceID: traceID, Refund: dto.NewRefundResponse(*rf)}, logger)
}

func (c *RefundController) GetRefund(w http.ResponseWriter, r *http.Request) {
	traceID := commons.NewTraceID()
	logger := c.logger.With(zap.String("traceId", traceID))

	id, err := commons.PathID(chi.URLParam(r, "id"), "id")
	if err != nil {
		commons.WriteError(w, traceID, err, logger)
		return
	}

	rf, err := c.useCase.GetRefund(r.Context(), uint(id))
	if err != nil {
		commons.WriteError(w, traceID, err, logger)
		return
	}

	commons.WriteJSON(w, http.StatusOK, dto.RefundEnvelope{TraceID: traceID, Refund: dto.NewRefundResponse(*rf)}, logger)
}

func (c *RefundController) ListPending(w http.ResponseWriter, r *http.Request) {
	traceID := commons.NewTraceID()
	logger := c.logger.With(zap.String("traceId", traceID))

	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			commons.WriteError(w, traceID, apperrors.NewValidationError("invalid query", apperrors.ValidationDetail{
				Field:   "limit",
				Message: "limit must be a positive integer",
			}), logger)
			return
		}
		limit = n
	}

	refunds, err := c.useCase.ListPending(r.Context(), limit)
	if err != nil {
		commons.WriteError(w, traceID, err, logger)
		return
	}

	commons.WriteJSON(w, http.StatusOK, dto.NewRefundListResponse(traceID, refunds), logger)
}

func (c *RefundController) ListByInvoice(w http.ResponseWriter, r *http.Request) {
	traceID := commons.NewTraceID()
	logger := c.logger.With(zap.String("traceId", traceID))

	invoiceID, err := commons.PathID(chi.URLParam(r, "invoiceId"), "invoiceId")
	if err != nil {
		commons.WriteError(w, traceID, err, logger)
		return
	}

	refunds, err := c.useCase.ListByInvoice(r.Context(), uint(invoiceID))
	if err != nil {
		commons.WriteError(w, traceID, err, logger)
		return
	}

	commons.WriteJSON(w, http.StatusOK, dto.NewRefundListResponse(traceID, refunds), logger)
}

func (c *RefundController) ApproveRefund(w http.ResponseWriter, r *http.Request) {
	traceID := commons.NewTraceID()
	logger := c.logger.With(zap.String("traceId", traceID))

	id, actorID, ok := c.decisionParams(w, r, traceID, logger)
	if !ok {
		return
	}

	var req dto.RefundDecisionRequest
	if r.ContentLength != 0 {
		if err := commons.DecodeJSON(r, &req); err != nil {
			commons.WriteError(w, traceID, err, logger)
			return
		}
	}
	if err := commons.ValidateStruct(req); err != nil {
		commons.WriteError(w, traceID, err, logger)
		return
	}

	rf, err := c.useCase.ApproveRefund(r.Context(), id, actorID, req.Notes)
	if err != nil {
		commons.WriteError(w, traceID, err, logger)
		return
	}

	logger.Info("refund approved", zap.String("refundNumber", rf.RefundNumber), zap.Int("approverId", actorID))
	commons.WriteJSON(w, http.StatusOK, dto.RefundEnvelope{TraceID: traceID, Refund: dto.NewRefundResponse(*rf)}, logger)
}

func (c *RefundController) RejectRefund(w http.ResponseWriter, r *http.Request) {
	c.withReason(w, r, c.useCase.RejectRefund)
}

func (c *RefundController) CancelRefund(w http.ResponseWriter, r *http.Request) {
	c.withReason(w, r, c.useCase.CancelRefund)
}

func (c *RefundController) withReason(
	w http.ResponseWriter,
	r *http.Request,
	fn func(ctx context.Context, id uint, actorID int, reason string) (*domain.Refund, error),
) {
	traceID := commons.NewTraceID()
	logger := c.logger.With(zap.String("traceId", traceID))

	id, actorID, ok := c.decisionParams(w, r, traceID, logger)
	if !ok {
		return
	}

	var req dto.RefundReasonRequest
	if err := commons.DecodeJSON(r, &req); err != nil {
		commons.WriteError(w, traceID, err, logger)
		return
	}
	if err := commons.ValidateStruct(req); err != nil {
		commons.WriteError(w, traceID, err, logger)
		return
	}

	rf, err := fn(r.Context(), id, actorID, req.Reason)
	if err != nil {
		commons.WriteError(w, traceID, err, logger)
		return
	}

	commons.WriteJSON(w, http.StatusOK, dto.RefundEnvelope{TraceID: traceID, Refund: dto.NewRefundResponse(*rf)}, logger)
}

func (c *RefundController) decisionParams(w http.ResponseWriter, r *http.Request, traceID string, logger *zap.Logger) (uint, int, bool) {
	id, err := commons.PathID(chi.URLParam(r, "id"), "id")
	if err != nil {
		commons.WriteError(w, traceID, err, logger)
		return 0, 0, false
	}
	actorID, err := commons.ActorID(r)
	if err != nil {
		commons.WriteError(w, traceID, err, logger)
		return 0, 0, false
	}
	return uint(id), actorID, true
}
