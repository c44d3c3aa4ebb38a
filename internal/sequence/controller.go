package sequence

import (
	"context"
	"net/http"

	"go.uber.org/zap"

	"cashdesk/internal/commons"
)

type Admin interface {
	Current(ctx context.Context) (int64, error)
	ResetSequence(ctx context.Context, next int64, actorID int) error
}

type ResetSequenceRequest struct {
	NextValue int64 `json:"nextValue" validate:"gte=1"`
}

type SequenceResponse struct {
	TraceID   string `json:"traceId"`
	Counter   string `json:"counter"`
	LastValue int64  `json:"lastValue"`
	NextValue int64  `json:"nextValue"`
}

type Controller struct {
	admin  Admin
	logger *zap.Logger
}

func NewController(admin Admin, logger *zap.Logger) *Controller {
	return &Controller{
		admin:  admin,
		logger: logger,
	}
}

func (c *Controller) HandleGetSequence(w http.ResponseWriter, r *http.Request) {
	traceID := commons.NewTraceID()
	logger := c.logger.With(zap.String("traceId", traceID))

	current, err := c.admin.Current(r.Context())
	if err != nil {
		commons.WriteError(w, traceID, err, logger)
		return
	}

	commons.WriteJSON(w, http.StatusOK, SequenceResponse{
		TraceID:   traceID,
		Counter:   InvoiceCounter,
		LastValue: current,
		NextValue: current + 1,
	}, logger)
}

func (c *Controller) HandleResetSequence(w http.ResponseWriter, r *http.Request) {
	traceID := commons.NewTraceID()
	logger := c.logger.With(zap.String("traceId", traceID))

	actorID, err := commons.ActorID(r)
	if err != nil {
		commons.WriteError(w, traceID, err, logger)
		return
	}

	var req ResetSequenceRequest
	if err := commons.DecodeJSON(r, &req); err != nil {
		commons.WriteError(w, traceID, err, logger)
		return
	}
	if err := commons.ValidateStruct(req); err != nil {
		commons.WriteError(w, traceID, err, logger)
		return
	}

	if err := c.admin.ResetSequence(r.Context(), req.NextValue, actorID); err != nil {
		commons.WriteError(w, traceID, err, logger)
		return
	}

	commons.WriteJSON(w, http.StatusOK, SequenceResponse{
		TraceID:   traceID,
		Counter:   InvoiceCounter,
		LastValue: req.NextValue - 1,
		NextValue: req.NextValue,
	}, logger)
}
