package usecase

import (
	"context"
	"strings"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.uber.org/zap"

	"cashdesk/internal/commons"
	"cashdesk/internal/domain"
	apperrors "cashdesk/internal/errors"
	"cashdesk/internal/events"
	"cashdesk/internal/refund/service"
)

var tracer = otel.Tracer("cashdesk/refund")

const (
	DefaultPendingLimit = 50
	MaxPendingLimit     = 200
)

type NumberGenerator interface {
	Next(ctx context.Context, prefix string) (string, error)
}

type RefundService interface {
	CreateRefund(ctx context.Context, draft service.RefundDraft) (*domain.Refund, error)
	ApproveRefund(ctx context.Context, id uint, approverID int, notes string) (*domain.Refund, error)
	RejectRefund(ctx context.Context, id uint, rejecterID int, reason string) (*domain.Refund, error)
	CancelRefund(ctx context.Context, id uint, actorID int, reason string) (*domain.Refund, error)
}

type RefundReader interface {
	FindByID(ctx context.Context, id uint) (*domain.Refund, error)
	ListByInvoice(ctx context.Context, invoiceID uint) ([]domain.Refund, error)
	ListByStatus(ctx context.Context, status domain.RefundStatus, limit int) ([]domain.Refund, error)
}

type Notifier interface {
	Notify(ctx context.Context, t events.Type, payload any)
}

type CreateRefundCommand struct {
	InvoiceID     uint
	ProductID     int
	LineNumber    int
	Quantity      int
	Reason        string
	Type          domain.RefundType
	RequestedBy   int
	CustomerName  *string
	CustomerPhone *string
}

// RefundSummary is the payload of refund events.
type RefundSummary struct {
	RefundID     uint   `json:"refundId"`
	RefundNumber string `json:"refundNumber"`
	InvoiceID    uint   `json:"invoiceId"`
	ProductID    int    `json:"productId"`
	Quantity     int    `json:"quantity"`
	RefundAmount string `json:"refundAmount"`
	TaxRefunded  string `json:"taxRefunded"`
	Status       string `json:"status"`
}

func summarize(rf *domain.Refund) RefundSummary {
	return RefundSummary{
		RefundID:     rf.ID,
		RefundNumber: rf.RefundNumber,
		InvoiceID:    rf.OriginalInvoiceID,
		ProductID:    rf.ProductID,
		Quantity:     rf.QuantityReturned,
		RefundAmount: rf.RefundAmount.StringFixed(2),
		TaxRefunded:  rf.TaxRefunded.StringFixed(2),
		Status:       string(rf.Status),
	}
}

type RefundUseCase struct {
	numbers  NumberGenerator
	service  RefundService
	reader   RefundReader
	notifier Notifier
	retrier  *commons.Retrier
	prefix   string
	logger   *zap.Logger
}

func NewRefundUseCase(
	numbers NumberGenerator,
	service RefundService,
	reader RefundReader,
	notifier Notifier,
	retrier *commons.Retrier,
	prefix string,
	logger *zap.Logger,
) *RefundUseCase {
	return &RefundUseCase{
		numbers:  numbers,
		service:  service,
		reader:   reader,
		notifier: notifier,
		retrier:  retrier,
		prefix:   prefix,
		logger:   logger,
	}
}

func validateCreate(cmd CreateRefundCommand) error {
	var details []apperrors.ValidationDetail

	if cmd.InvoiceID == 0 {
		details = append(details, apperrors.ValidationDetail{Field: "invoiceId", Message: "invoiceId must be a positive integer"})
	}
	if cmd.ProductID <= 0 {
		details = append(details, apperrors.ValidationDetail{Field: "productId", Message: "productId must be a positive integer"})
	}
	if cmd.LineNumber < 0 {
		details = append(details, apperrors.ValidationDetail{Field: "lineNumber", Message: "lineNumber must not be negative"})
	}
	if cmd.Quantity <= 0 {
		details = append(details, apperrors.ValidationDetail{Field: "quantity", Message: "quantity must be greater than zero"})
	}
	if strings.TrimSpace(cmd.Reason) == "" {
		details = append(details, apperrors.ValidationDetail{Field: "reason", Message: "reason is required"})
	}
	if !cmd.Type.Valid() {
		details = append(details, apperrors.ValidationDetail{Field: "refundType", Message: "unknown refund type"})
	}

	if len(details) > 0 {
		return apperrors.NewValidationError("invalid refund", details...)
	}
	return nil
}

func (uc *RefundUseCase) CreateRefund(ctx context.Context, cmd CreateRefundCommand) (*domain.Refund, error) {
	ctx, span := tracer.Start(ctx, "RefundUseCase.CreateRefund")
	defer span.End()

	if err := validateCreate(cmd); err != nil {
		return nil, err
	}

	var refund *domain.Refund
	err := uc.retrier.Do(ctx, "create_refund", func(ctx context.Context, attempt int) error {
		number, err := uc.numbers.Next(ctx, uc.prefix)
		if err != nil {
			return err
		}
		span.SetAttributes(attribute.Int("attempt", attempt), attribute.String("refund.number", number))

		rf, err := uc.service.CreateRefund(ctx, service.RefundDraft{
			RefundNumber:  number,
			InvoiceID:     cmd.InvoiceID,
			ProductID:     cmd.ProductID,
			LineNumber:    cmd.LineNumber,
			Quantity:      cmd.Quantity,
			Reason:        cmd.Reason,
			Type:          cmd.Type,
			RequestedBy:   cmd.RequestedBy,
			CustomerName:  cmd.CustomerName,
			CustomerPhone: cmd.CustomerPhone,
		})
		if err != nil {
			return err
		}
		refund = rf
		return nil
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "refund request failed")
		return nil, err
	}

	uc.logger.Info("refund requested", zap.String("refundNumber", refund.RefundNumber), zap.Uint("invoiceId", refund.OriginalInvoiceID))
	uc.notifier.Notify(ctx, events.RefundRequested, summarize(refund))
	return refund, nil
}

func (uc *RefundUseCase) run(ctx context.Context, operation string, event events.Type, fn func(ctx context.Context) (*domain.Refund, error)) (*domain.Refund, error) {
	ctx, span := tracer.Start(ctx, "RefundUseCase."+operation)
	defer span.End()

	var refund *domain.Refund
	err := uc.retrier.Do(ctx, operation, func(ctx context.Context, attempt int) error {
		rf, err := fn(ctx)
		if err != nil {
			return err
		}
		refund = rf
		return nil
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, operation+" failed")
		return nil, err
	}

	uc.notifier.Notify(ctx, event, summarize(refund))
	return refund, nil
}

func (uc *RefundUseCase) ApproveRefund(ctx context.Context, id uint, approverID int, notes string) (*domain.Refund, error) {
	return uc.run(ctx, "approve_refund", events.RefundProcessed, func(ctx context.Context) (*domain.Refund, error) {
		return uc.service.ApproveRefund(ctx, id, approverID, notes)
	})
}

func (uc *RefundUseCase) RejectRefund(ctx context.Context, id uint, rejecterID int, reason string) (*domain.Refund, error) {
	if strings.TrimSpace(reason) == "" {
		return nil, apperrors.NewValidationError("invalid rejection", apperrors.ValidationDetail{Field: "reason", Message: "reason is required"})
	}
	return uc.run(ctx, "reject_refund", events.RefundRejected, func(ctx context.Context) (*domain.Refund, error) {
		return uc.service.RejectRefund(ctx, id, rejecterID, reason)
	})
}

func (uc *RefundUseCase) CancelRefund(ctx context.Context, id uint, actorID int, reason string) (*domain.Refund, error) {
	if strings.TrimSpace(reason) == "" {
		return nil, apperrors.NewValidationError("invalid cancellation", apperrors.ValidationDetail{Field: "reason", Message: "reason is required"})
	}
	return uc.run(ctx, "cancel_refund", events.RefundCancelled, func(ctx context.Context) (*domain.Refund, error) {
		return uc.service.CancelRefund(ctx, id, actorID, reason)
	})
}

func (uc *RefundUseCase) GetRefund(ctx context.Context, id uint) (*domain.Refund, error) {
	return uc.reader.FindByID(ctx, id)
}

func (uc *RefundUseCase) ListPending(ctx context.Context, limit int) ([]domain.Refund, error) {
	if limit <= 0 {
		limit = DefaultPendingLimit
	}
	if limit > MaxPendingLimit {
		limit = MaxPendingLimit
	}
	return uc.reader.ListByStatus(ctx, domain.RefundPending, limit)
}

func (uc *RefundUseCase) ListByInvoice(ctx context.Context, invoiceID uint) ([]domain.Refund, error) {
	return uc.reader.ListByInvoice(ctx, invoiceID)
}
