package usecase

import (
	"context"
	"fmt"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"cashdesk/internal/commons"
	"cashdesk/internal/domain"
	apperrors "cashdesk/internal/errors"
	"cashdesk/internal/events"
	"cashdesk/internal/infrastructure/mysql"
	"cashdesk/internal/refund/service"
	"cashdesk/internal/testutil"
)

type mockNumberGenerator struct {
	prefixes []string
	next     int
}

func (m *mockNumberGenerator) Next(ctx context.Context, prefix string) (string, error) {
	m.next++
	m.prefixes = append(m.prefixes, prefix)
	return fmt.Sprintf("%s-20260117-%04d", prefix, m.next), nil
}

type mockRefundService struct {
	CreateRefundFunc  func(ctx context.Context, draft service.RefundDraft) (*domain.Refund, error)
	ApproveRefundFunc func(ctx context.Context, id uint, approverID int, notes string) (*domain.Refund, error)
	RejectRefundFunc  func(ctx context.Context, id uint, rejecterID int, reason string) (*domain.Refund, error)
	CancelRefundFunc  func(ctx context.Context, id uint, actorID int, reason string) (*domain.Refund, error)
}

func (m *mockRefundService) CreateRefund(ctx context.Context, draft service.RefundDraft) (*domain.Refund, error) {
	return m.CreateRefundFunc(ctx, draft)
}

func (m *mockRefundService) ApproveRefund(ctx context.Context, id uint, approverID int, notes string) (*domain.Refund, error) {
	return m.ApproveRefundFunc(ctx, id, approverID, notes)
}

func (m *mockRefundService) RejectRefund(ctx context.Context, id uint, rejecterID int, reason string) (*domain.Refund, error) {
	return m.RejectRefundFunc(ctx, id, rejecterID, reason)
}

func (m *mockRefundService) CancelRefund(ctx context.Context, id uint, actorID int, reason string) (*domain.Refund, error) {
	return m.CancelRefundFunc(ctx, id, actorID, reason)
}

type mockRefundReader struct {
	FindByIDFunc      func(ctx context.Context, id uint) (*domain.Refund, error)
	ListByInvoiceFunc func(ctx context.Context, invoiceID uint) ([]domain.Refund, error)
	ListByStatusFunc  func(ctx context.Context, status domain.RefundStatus, limit int) ([]domain.Refund, error)
}

func (m *mockRefundReader) FindByID(ctx context.Context, id uint) (*domain.Refund, error) {
	return m.FindByIDFunc(ctx, id)
}

func (m *mockRefundReader) ListByInvoice(ctx context.Context, invoiceID uint) ([]domain.Refund, error) {
	return m.ListByInvoiceFunc(ctx, invoiceID)
}

func (m *mockRefundReader) ListByStatus(ctx context.Context, status domain.RefundStatus, limit int) ([]domain.Refund, error) {
	return m.ListByStatusFunc(ctx, status, limit)
}

func retryable(err error) bool {
	if mysql.IsRetryable(err) {
		return true
	}
	_, ok := apperrors.IsDuplicateNumberError(err)
	return ok
}

func newUseCase(svc *mockRefundService, reader *mockRefundReader) (*RefundUseCase, *mockNumberGenerator, *testutil.RecordingNotifier) {
	numbers := &mockNumberGenerator{}
	notifier := &testutil.RecordingNotifier{}
	retrier := commons.NewRetrier(3, retryable, zap.NewNop()).WithBackoffs(0)
	return NewRefundUseCase(numbers, svc, reader, notifier, retrier, "REF", zap.NewNop()), numbers, notifier
}

func fromDraft(draft service.RefundDraft) *domain.Refund {
	return &domain.Refund{
		ID:                7,
		RefundNumber:      draft.RefundNumber,
		OriginalInvoiceID: draft.InvoiceID,
		InvoiceLineNumber: 1,
		ProductID:         draft.ProductID,
		QuantityReturned:  draft.Quantity,
		UnitPrice:         decimal.RequireFromString("100.00"),
		RefundAmount:      decimal.RequireFromString("200.00"),
		TaxRefunded:       decimal.RequireFromString("36.00"),
		Reason:            draft.Reason,
		Type:              draft.Type,
		Status:            domain.RefundPending,
		ProcessedBy:       draft.RequestedBy,
	}
}

func validCommand() CreateRefundCommand {
	return CreateRefundCommand{
		InvoiceID:   12,
		ProductID:   1,
		Quantity:    2,
		Reason:      "wrong size",
		Type:        domain.RefundPartialReturn,
		RequestedBy: 3,
	}
}

func TestCreateRefund_Success(t *testing.T) {
	var got service.RefundDraft
	uc, numbers, notifier := newUseCase(&mockRefundService{
		CreateRefundFunc: func(ctx context.Context, draft service.RefundDraft) (*domain.Refund, error) {
			got = draft
			return fromDraft(draft), nil
		},
	}, nil)

	rf, err := uc.CreateRefund(context.Background(), validCommand())
	require.NoError(t, err)

	assert.Equal(t, "REF-20260117-0001", rf.RefundNumber)
	assert.Equal(t, []string{"REF"}, numbers.prefixes)
	assert.Equal(t, uint(12), got.InvoiceID)
	assert.Equal(t, 3, got.RequestedBy)

	require.Len(t, notifier.Events(), 1)
	evt := notifier.Events()[0]
	assert.Equal(t, events.RefundRequested, evt.Type)
	summary, ok := evt.Payload.(RefundSummary)
	require.True(t, ok)
	assert.Equal(t, "200.00", summary.RefundAmount)
	assert.Equal(t, "PENDING", summary.Status)
}

func TestCreateRefund_DrawsFreshNumberOnCollision(t *testing.T) {
	calls := 0
	uc, numbers, _ := newUseCase(&mockRefundService{
		CreateRefundFunc: func(ctx context.Context, draft service.RefundDraft) (*domain.Refund, error) {
			calls++
			if calls == 1 {
				return nil, apperrors.NewDuplicateNumberError("duplicate document number", nil)
			}
			return fromDraft(draft), nil
		},
	}, nil)

	rf, err := uc.CreateRefund(context.Background(), validCommand())
	require.NoError(t, err)

	assert.Equal(t, 2, calls)
	assert.Len(t, numbers.prefixes, 2)
	assert.Equal(t, "REF-20260117-0002", rf.RefundNumber)
}

func TestCreateRefund_DoesNotRetryBusinessErrors(t *testing.T) {
	calls := 0
	uc, _, notifier := newUseCase(&mockRefundService{
		CreateRefundFunc: func(ctx context.Context, draft service.RefundDraft) (*domain.Refund, error) {
			calls++
			return nil, apperrors.NewInvalidStateError("invoice", "CANCELLED", "refund")
		},
	}, nil)

	_, err := uc.CreateRefund(context.Background(), validCommand())
	_, ok := apperrors.IsInvalidStateError(err)
	assert.True(t, ok)
	assert.Equal(t, 1, calls)
	assert.Empty(t, notifier.Events())
}

func TestCreateRefund_Validation(t *testing.T) {
	tests := []struct {
		name   string
		modify func(*CreateRefundCommand)
		field  string
	}{
		{name: "no invoice", modify: func(c *CreateRefundCommand) { c.InvoiceID = 0 }, field: "invoiceId"},
		{name: "no product", modify: func(c *CreateRefundCommand) { c.ProductID = 0 }, field: "productId"},
		{name: "negative line", modify: func(c *CreateRefundCommand) { c.LineNumber = -1 }, field: "lineNumber"},
		{name: "zero quantity", modify: func(c *CreateRefundCommand) { c.Quantity = 0 }, field: "quantity"},
		{name: "blank reason", modify: func(c *CreateRefundCommand) { c.Reason = "  " }, field: "reason"},
		{name: "unknown type", modify: func(c *CreateRefundCommand) { c.Type = "STORE_CREDIT" }, field: "refundType"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			uc, numbers, _ := newUseCase(&mockRefundService{}, nil)
			cmd := validCommand()
			tt.modify(&cmd)

			_, err := uc.CreateRefund(context.Background(), cmd)
			ve, ok := apperrors.IsValidationError(err)
			require.True(t, ok)
			require.Len(t, ve.Details, 1)
			assert.Equal(t, tt.field, ve.Details[0].Field)
			assert.Empty(t, numbers.prefixes)
		})
	}
}

func TestDecisions_PublishEvents(t *testing.T) {
	refund := func(status domain.RefundStatus) *domain.Refund {
		return &domain.Refund{ID: 7, RefundNumber: "REF-20260117-0001", Status: status}
	}
	uc, _, notifier := newUseCase(&mockRefundService{
		ApproveRefundFunc: func(ctx context.Context, id uint, approverID int, notes string) (*domain.Refund, error) {
			return refund(domain.RefundProcessed), nil
		},
		RejectRefundFunc: func(ctx context.Context, id uint, rejecterID int, reason string) (*domain.Refund, error) {
			return refund(domain.RefundRejected), nil
		},
		CancelRefundFunc: func(ctx context.Context, id uint, actorID int, reason string) (*domain.Refund, error) {
			return refund(domain.RefundCancelled), nil
		},
	}, nil)
	ctx := context.Background()

	_, err := uc.ApproveRefund(ctx, 7, 9, "")
	require.NoError(t, err)
	_, err = uc.RejectRefund(ctx, 7, 9, "no receipt")
	require.NoError(t, err)
	_, err = uc.CancelRefund(ctx, 7, 9, "duplicate")
	require.NoError(t, err)

	assert.Equal(t, []events.Type{events.RefundProcessed, events.RefundRejected, events.RefundCancelled}, notifier.Types())
}

func TestDecisions_RequireReason(t *testing.T) {
	uc, _, _ := newUseCase(&mockRefundService{}, nil)

	_, err := uc.RejectRefund(context.Background(), 7, 9, " ")
	_, ok := apperrors.IsValidationError(err)
	assert.True(t, ok)

	_, err = uc.CancelRefund(context.Background(), 7, 9, "")
	_, ok = apperrors.IsValidationError(err)
	assert.True(t, ok)
}

func TestApproveRefund_RetriesConcurrencyConflicts(t *testing.T) {
	calls := 0
	uc, _, _ := newUseCase(&mockRefundService{
		ApproveRefundFunc: func(ctx context.Context, id uint, approverID int, notes string) (*domain.Refund, error) {
			calls++
			return nil, apperrors.NewConcurrencyConflictError("stock_state", 1, 4)
		},
	}, nil)

	_, err := uc.ApproveRefund(context.Background(), 7, 9, "")
	_, ok := apperrors.IsDeadlockError(err)
	assert.True(t, ok)
	assert.Equal(t, 3, calls)
}

func TestListPending_ClampsLimit(t *testing.T) {
	var limits []int
	uc, _, _ := newUseCase(nil, &mockRefundReader{
		ListByStatusFunc: func(ctx context.Context, status domain.RefundStatus, limit int) ([]domain.Refund, error) {
			assert.Equal(t, domain.RefundPending, status)
			limits = append(limits, limit)
			return nil, nil
		},
	})

	for _, limit := range []int{0, 10, 1000} {
		_, err := uc.ListPending(context.Background(), limit)
		require.NoError(t, err)
	}
	assert.Equal(t, []int{DefaultPendingLimit, 10, MaxPendingLimit}, limits)
}
