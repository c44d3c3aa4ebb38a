package service

import (
	"context"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"cashdesk/internal/domain"
	apperrors "cashdesk/internal/errors"
	"cashdesk/internal/infrastructure/mysql"
)

type InvoiceRepository interface {
	FindByIDForUpdate(ctx context.Context, tx mysql.Tx, id uint) (*domain.SalesInvoice, error)
}

type RefundRepository interface {
	Insert(ctx context.Context, tx mysql.Tx, rf *domain.Refund) (uint, error)
	Update(ctx context.Context, tx mysql.Tx, rf *domain.Refund, expectedVersion int) error
	FindByIDForUpdate(ctx context.Context, tx mysql.Tx, id uint) (*domain.Refund, error)
	SumQuantityByLine(ctx context.Context, tx mysql.Tx, invoiceID uint, lineNumber int) (int, error)
}

type Ledger interface {
	ApplyMovementTx(ctx context.Context, tx mysql.Tx, cmd domain.MovementCommand) (*domain.StockMovement, error)
}

type RefundDraft struct {
	RefundNumber  string
	InvoiceID     uint
	ProductID     int
	// LineNumber selects the invoice line when a product was sold on several lines. Zero
	// picks the first line with the product.
	LineNumber    int
	Quantity      int
	Reason        string
	Type          domain.RefundType
	RequestedBy   int
	CustomerName  *string
	CustomerPhone *string
}

type RefundService struct {
	tm        mysql.TransactionManager
	invoices  InvoiceRepository
	refunds   RefundRepository
	ledger    Ledger
	txTimeout time.Duration
	now       func() time.Time
	logger    *zap.Logger
}

func NewRefundService(
	tm mysql.TransactionManager,
	invoices InvoiceRepository,
	refunds RefundRepository,
	ledger Ledger,
	txTimeout time.Duration,
	logger *zap.Logger,
) *RefundService {
	return &RefundService{
		tm:        tm,
		invoices:  invoices,
		refunds:   refunds,
		ledger:    ledger,
		txTimeout: txTimeout,
		now:       func() time.Time { return time.Now().UTC() },
		logger:    logger,
	}
}

// prorate returns amount * qty / soldQty rounded to two places.
func prorate(amount decimal.Decimal, qty, soldQty int) decimal.Decimal {
	return amount.Mul(decimal.NewFromInt(int64(qty))).Div(decimal.NewFromInt(int64(soldQty))).Round(2)
}

// CreateRefund records a PENDING refund priced from the original invoice line.
func (s *RefundService) CreateRefund(ctx context.Context, draft RefundDraft) (*domain.Refund, error) {
	var refund *domain.Refund

	err := mysql.RunInTx(ctx, s.tm, s.txTimeout, func(ctx context.Context, tx mysql.Tx) error {
		// 1. Lock the invoice so concurrent claims on it serialize
		inv, err := s.invoices.FindByIDForUpdate(ctx, tx, draft.InvoiceID)
		if err != nil {
			return err
		}
		if inv.IsCancelled {
			return apperrors.NewInvalidStateError("invoice", "CANCELLED", "refund")
		}

		// 2. Locate the sold line
		line, ok := inv.FindLine(draft.ProductID, draft.LineNumber)
		if !ok {
			return apperrors.NewValidationError("product not on invoice", apperrors.ValidationDetail{
				Field:   "productId",
				Message: fmt.Sprintf("product %d was not sold on invoice %s", draft.ProductID, inv.InvoiceNumber),
			})
		}

		// 3. Cap the cumulative refunded quantity at the sold quantity
		claimed, err := s.refunds.SumQuantityByLine(ctx, tx, inv.ID, line.LineNumber)
		if err != nil {
			return err
		}
		if remaining := line.Quantity - claimed; draft.Quantity > remaining {
			return apperrors.NewValidationError("refund exceeds sold quantity", apperrors.ValidationDetail{
				Field:   "quantity",
				Message: fmt.Sprintf("only %d of %d units remain refundable on line %d", remaining, line.Quantity, line.LineNumber),
			})
		}

		// 4. Price from the invoice line, never the current catalog
		now := s.now()
		rf := &domain.Refund{
			RefundNumber:      draft.RefundNumber,
			OriginalInvoiceID: inv.ID,
			InvoiceLineNumber: line.LineNumber,
			ProductID:         line.ProductID,
			QuantityReturned:  draft.Quantity,
			UnitPrice:         line.UnitPrice,
			RefundAmount:      prorate(line.TaxableAmount, draft.Quantity, line.Quantity),
			TaxRefunded:       prorate(line.TaxAmount(), draft.Quantity, line.Quantity),
			Reason:            draft.Reason,
			Type:              draft.Type,
			Status:            domain.RefundPending,
			ProcessedBy:       draft.RequestedBy,
			CustomerName:      draft.CustomerName,
			CustomerPhone:     draft.CustomerPhone,
			Lifecycle:         domain.NewLifecycle(now),
		}
		if rf.CustomerName == nil {
			rf.CustomerName = inv.Customer.Name
		}
		if rf.CustomerPhone == nil {
			rf.CustomerPhone = inv.Customer.Phone
		}

		if _, err := s.refunds.Insert(ctx, tx, rf); err != nil {
			return err
		}

		refund = rf
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("refund requested",
		zap.String("refundNumber", refund.RefundNumber),
		zap.Uint("invoiceId", refund.OriginalInvoiceID),
		zap.Int("productId", refund.ProductID),
		zap.Int("quantity", refund.QuantityReturned),
	)
	return refund, nil
}

// ApproveRefund approves a PENDING refund, returns the goods to stock and marks it PROCESSED,
// all in one transaction.
func (s *RefundService) ApproveRefund(ctx context.Context, id uint, approverID int, notes string) (*domain.Refund, error) {
	refund, err := s.transition(ctx, id, func(ctx context.Context, tx mysql.Tx, rf *domain.Refund, now time.Time) error {
		if err := rf.Approve(approverID, notes, now); err != nil {
			return err
		}

		_, err := s.ledger.ApplyMovementTx(ctx, tx, domain.MovementCommand{
			ProductID:     rf.ProductID,
			Type:          domain.MovementReturn,
			Quantity:      rf.QuantityReturned,
			Reason:        "refund " + rf.RefundNumber,
			ReferenceType: domain.ReferenceRefund,
			ReferenceID:   &rf.ID,
			ActorID:       approverID,
		})
		if err != nil {
			return err
		}

		return rf.MarkProcessed(now)
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("refund processed",
		zap.String("refundNumber", refund.RefundNumber),
		zap.Int("approverId", approverID),
		zap.Int("restocked", refund.QuantityReturned),
	)
	return refund, nil
}

func (s *RefundService) RejectRefund(ctx context.Context, id uint, rejecterID int, reason string) (*domain.Refund, error) {
	refund, err := s.transition(ctx, id, func(ctx context.Context, tx mysql.Tx, rf *domain.Refund, now time.Time) error {
		return rf.Reject(rejecterID, reason, now)
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("refund rejected", zap.String("refundNumber", refund.RefundNumber), zap.Int("rejecterId", rejecterID))
	return refund, nil
}

func (s *RefundService) CancelRefund(ctx context.Context, id uint, actorID int, reason string) (*domain.Refund, error) {
	refund, err := s.transition(ctx, id, func(ctx context.Context, tx mysql.Tx, rf *domain.Refund, now time.Time) error {
		return rf.Cancel(actorID, reason, now)
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("refund cancelled", zap.String("refundNumber", refund.RefundNumber), zap.Int("actorId", actorID))
	return refund, nil
}

// transition locks the refund, applies fn and persists the result with a version check.
func (s *RefundService) transition(
	ctx context.Context,
	id uint,
	fn func(ctx context.Context, tx mysql.Tx, rf *domain.Refund, now time.Time) error,
) (*domain.Refund, error) {
	var refund *domain.Refund

	err := mysql.RunInTx(ctx, s.tm, s.txTimeout, func(ctx context.Context, tx mysql.Tx) error {
		rf, err := s.refunds.FindByIDForUpdate(ctx, tx, id)
		if err != nil {
			return err
		}

		now := s.now()
		expectedVersion := rf.Version
		if err := fn(ctx, tx, rf, now); err != nil {
			return err
		}
		rf.Touch(now)

		if err := s.refunds.Update(ctx, tx, rf, expectedVersion); err != nil {
			return err
		}

		refund = rf
		return nil
	})
	if err != nil {
		return nil, err
	}
	return refund, nil
}
