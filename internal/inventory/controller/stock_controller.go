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
	"cashdesk/internal/events"
	"cashdesk/internal/inventory/service"
)

type Ledger interface {
	ApplyMovement(ctx context.Context, cmd domain.MovementCommand) (*domain.StockMovement, error)
	GetStock(ctx context.Context, productID int) (*domain.StockState, error)
	HasSufficientStock(ctx context.Context, productID int, quantity int) (bool, error)
	ListMovements(ctx context.Context, productID int, limit int) ([]domain.StockMovement, error)
	Reconcile(ctx context.Context, productID int) (*service.Reconciliation, error)
}

type Alerts interface {
	ListAlerts(ctx context.Context) ([]domain.StockAlert, error)
}

type StockController struct {
	ledger   Ledger
	alerts   Alerts
	notifier service.Notifier
	logger   *zap.Logger
}

func NewStockController(ledger Ledger, alerts Alerts, notifier service.Notifier, logger *zap.Logger) *StockController {
	return &StockController{
		ledger:   ledger,
		alerts:   alerts,
		notifier: notifier,
		logger:   logger,
	}
}

func productIDParam(r *http.Request) (int, error) {
	id, err := commons.PathID(chi.URLParam(r, "productId"), "productId")
	if err != nil {
		return 0, err
	}
	return int(id), nil
}

func (c *StockController) GetStock(w http.ResponseWriter, r *http.Request) {
	traceID := commons.NewTraceID()
	logger := c.logger.With(zap.String("traceId", traceID))

	productID, err := productIDParam(r)
	if err != nil {
		commons.WriteError(w, traceID, err, logger)
		return
	}

	state, err := c.ledger.GetStock(r.Context(), productID)
	if err != nil {
		commons.WriteError(w, traceID, err, logger)
		return
	}
	resp := dto.NewStockResponse(traceID, *state)

	// ?quantity=n adds an advisory availability flag for point-of-sale lookups
	if raw := r.URL.Query().Get("quantity"); raw != "" {
		quantity, err := strconv.Atoi(raw)
		if err != nil || quantity <= 0 {
			commons.WriteValidationError(w, traceID, logger, "invalid quantity", apperrors.ValidationDetail{
				Field:   "quantity",
				Message: "quantity must be a positive integer",
			})
			return
		}
		sufficient, err := c.ledger.HasSufficientStock(r.Context(), productID, quantity)
		if err != nil {
			commons.WriteError(w, traceID, err, logger)
			return
		}
		resp.RequestedQuantity = &quantity
		resp.SufficientStock = &sufficient
	}

	commons.WriteJSON(w, http.StatusOK, resp, logger)
}

func (c *StockController) ListMovements(w http.ResponseWriter, r *http.Request) {
	traceID := commons.NewTraceID()
	logger := c.logger.With(zap.String("traceId", traceID))

	productID, err := productIDParam(r)
	if err != nil {
		commons.WriteError(w, traceID, err, logger)
		return
	}

	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		limit, err = strconv.Atoi(raw)
		if err != nil || limit <= 0 {
			commons.WriteValidationError(w, traceID, logger, "invalid limit", apperrors.ValidationDetail{
				Field:   "limit",
				Message: "limit must be a positive integer",
			})
			return
		}
	}

	movements, err := c.ledger.ListMovements(r.Context(), productID, limit)
	if err != nil {
		commons.WriteError(w, traceID, err, logger)
		return
	}

	resp := dto.MovementListResponse{
		TraceID:   traceID,
		ProductID: productID,
		Movements: make([]dto.MovementResponse, 0, len(movements)),
	}
	for _, m := range movements {
		resp.Movements = append(resp.Movements, dto.NewMovementResponse(m))
	}
	commons.WriteJSON(w, http.StatusOK, resp, logger)
}

// RecordMovement applies a manual movement such as a goods receipt or a stock-take adjustment.
func (c *StockController) RecordMovement(w http.ResponseWriter, r *http.Request) {
	traceID := commons.NewTraceID()
	logger := c.logger.With(zap.String("traceId", traceID))

	productID, err := productIDParam(r)
	if err != nil {
		commons.WriteError(w, traceID, err, logger)
		return
	}

	actorID, err := commons.ActorID(r)
	if err != nil {
		commons.WriteError(w, traceID, err, logger)
		return
	}

	var req dto.RecordMovementRequest
	if err := commons.DecodeJSON(r, &req); err != nil {
		commons.WriteError(w, traceID, err, logger)
		return
	}
	if err := commons.ValidateStruct(req); err != nil {
		commons.WriteError(w, traceID, err, logger)
		return
	}

	movement, err := c.ledger.ApplyMovement(r.Context(), domain.MovementCommand{
		ProductID:     productID,
		Type:          domain.MovementType(req.MovementType),
		Quantity:      req.Quantity,
		Direction:     domain.AdjustmentDirection(req.Direction),
		Reason:        req.Reason,
		ReferenceType: domain.ReferenceManual,
		ActorID:       actorID,
	})
	if err != nil {
		commons.WriteError(w, traceID, err, logger)
		return
	}

	logger.Info("manual stock movement recorded",
		zap.Int("productId", productID),
		zap.Uint("movementId", movement.ID),
		zap.Int("actorId", actorID),
	)
	resp := dto.NewMovementResponse(*movement)
	c.notifier.Notify(r.Context(), events.StockMovement, resp)
	commons.WriteJSON(w, http.StatusCreated, resp, logger)
}

func (c *StockController) Reconcile(w http.ResponseWriter, r *http.Request) {
	traceID := commons.NewTraceID()
	logger := c.logger.With(zap.String("traceId", traceID))

	productID, err := productIDParam(r)
	if err != nil {
		commons.WriteError(w, traceID, err, logger)
		return
	}

	rec, err := c.ledger.Reconcile(r.Context(), productID)
	if err != nil {
		commons.WriteError(w, traceID, err, logger)
		return
	}

	commons.WriteJSON(w, http.StatusOK, struct {
		TraceID string `json:"traceId"`
		*service.Reconciliation
	}{TraceID: traceID, Reconciliation: rec}, logger)
}

func (c *StockController) ListAlerts(w http.ResponseWriter, r *http.Request) {
	traceID := commons.NewTraceID()
	logger := c.logger.With(zap.String("traceId", traceID))

	alerts, err := c.alerts.ListAlerts(r.Context())
	if err != nil {
		commons.WriteError(w, traceID, err, logger)
		return
	}

	commons.WriteJSON(w, http.StatusOK, dto.AlertListResponse{TraceID: traceID, Alerts: alerts}, logger)
}
