package commons

import (
	"encoding/json"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	apperrors "cashdesk/internal/errors"
)

const ActorHeader = "X-Actor-ID"

type ErrorResponse struct {
	TraceID   string                       `json:"traceId"`
	Status    int                          `json:"status"`
	Code      string                       `json:"code"`
	Message   string                       `json:"message"`
	Details   []apperrors.ValidationDetail `json:"details,omitempty"`
	Timestamp time.Time                    `json:"timestamp"`
}

func NewTraceID() string {
	return uuid.New().String()
}

func WriteJSON(w http.ResponseWriter, status int, data interface{}, logger *zap.Logger) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		logger.Error("failed to encode response", zap.Error(err))
	}
}

func WriteValidationError(w http.ResponseWriter, traceID string, logger *zap.Logger, message string, details ...apperrors.ValidationDetail) {
	WriteJSON(w, http.StatusBadRequest, ErrorResponse{
		TraceID:   traceID,
		Status:    http.StatusBadRequest,
		Code:      "VALIDATION_ERROR",
		Message:   message,
		Details:   details,
		Timestamp: time.Now().UTC(),
	}, logger)
}

// StatusFor maps an application error onto its HTTP status and error code.
func StatusFor(err error) (int, string) {
	if _, ok := apperrors.IsValidationError(err); ok {
		return http.StatusBadRequest, "VALIDATION_ERROR"
	}
	if _, ok := apperrors.IsNotFoundError(err); ok {
		return http.StatusNotFound, "NOT_FOUND"
	}
	if _, ok := apperrors.IsInsufficientStockError(err); ok {
		return http.StatusUnprocessableEntity, "INSUFFICIENT_STOCK"
	}
	if _, ok := apperrors.IsNoCounterAssignedError(err); ok {
		return http.StatusUnprocessableEntity, "NO_COUNTER_ASSIGNED"
	}
	if _, ok := apperrors.IsInvalidStateError(err); ok {
		return http.StatusConflict, "INVALID_STATE"
	}
	// checked before the conflict kinds it may wrap
	if _, ok := apperrors.IsDeadlockError(err); ok {
		return http.StatusConflict, "DEADLOCK"
	}
	if _, ok := apperrors.IsDuplicateNumberError(err); ok {
		return http.StatusConflict, "DUPLICATE_NUMBER"
	}
	if _, ok := apperrors.IsConflictError(err); ok {
		return http.StatusConflict, "CONFLICT"
	}
	if _, ok := apperrors.IsConcurrencyConflictError(err); ok {
		return http.StatusConflict, "CONCURRENCY_CONFLICT"
	}
	if _, ok := apperrors.IsTransientError(err); ok {
		return http.StatusServiceUnavailable, "STORE_UNAVAILABLE"
	}
	return http.StatusInternalServerError, "INTERNAL_ERROR"
}

// WriteError writes the JSON error envelope for err. Unexpected errors are logged and
// their message is not exposed.
func WriteError(w http.ResponseWriter, traceID string, err error, logger *zap.Logger) {
	status, code := StatusFor(err)
	message := err.Error()
	var details []apperrors.ValidationDetail

	if ve, ok := apperrors.IsValidationError(err); ok {
		message = ve.Message
		details = ve.Details
	}

	switch {
	case status >= http.StatusInternalServerError && status != http.StatusServiceUnavailable:
		logger.Error("unexpected error", zap.Error(err))
		message = "an unexpected error occurred"
	case status == http.StatusServiceUnavailable:
		logger.Warn("store unavailable", zap.Error(err))
		message = "service temporarily unavailable, retry later"
	default:
		logger.Info("request rejected", zap.String("code", code), zap.Error(err))
	}

	WriteJSON(w, status, ErrorResponse{
		TraceID:   traceID,
		Status:    status,
		Code:      code,
		Message:   message,
		Details:   details,
		Timestamp: time.Now().UTC(),
	}, logger)
}

// DecodeJSON decodes the request body into dst, reporting malformed input as a ValidationError.
func DecodeJSON(r *http.Request, dst interface{}) error {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		return apperrors.NewValidationError("invalid JSON body", apperrors.ValidationDetail{
			Field:   "body",
			Message: "request body must be valid JSON",
		})
	}
	return nil
}

// ActorID reads the authenticated actor from the X-Actor-ID header set by the gateway.
func ActorID(r *http.Request) (int, error) {
	raw := strings.TrimSpace(r.Header.Get(ActorHeader))
	id, err := strconv.Atoi(raw)
	if raw == "" || err != nil || id <= 0 {
		return 0, apperrors.NewValidationError("missing actor", apperrors.ValidationDetail{
			Field:   ActorHeader,
			Message: "X-Actor-ID header must be a positive integer",
		})
	}
	return id, nil
}

// PathID parses a positive integer URL parameter.
func PathID(raw, field string) (uint64, error) {
	id, err := strconv.ParseUint(raw, 10, 64)
	if err != nil || id == 0 {
		return 0, apperrors.NewValidationError("invalid "+field, apperrors.ValidationDetail{
			Field:   field,
			Message: field + " must be a positive integer",
		})
	}
	return id, nil
}
