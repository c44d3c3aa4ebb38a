package events

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

type Type string

const (
	InvoiceCreated   Type = "invoice.created"
	InvoiceCancelled Type = "invoice.cancelled"
	PaymentRecorded  Type = "invoice.payment_recorded"
	RefundRequested  Type = "refund.requested"
	RefundProcessed  Type = "refund.processed"
	RefundRejected   Type = "refund.rejected"
	RefundCancelled  Type = "refund.cancelled"
	StockMovement    Type = "stock.movement_recorded"
	StockAlert       Type = "stock.alert"
)

// Event is the envelope delivered to the broadcast collaborator. Payload is opaque to it.
type Event struct {
	ID         string    `json:"id"`
	Type       Type      `json:"type"`
	OccurredAt time.Time `json:"occurredAt"`
	Payload    any       `json:"payload"`
}

func New(t Type, payload any) Event {
	return Event{
		ID:         uuid.New().String(),
		Type:       t,
		OccurredAt: time.Now().UTC(),
		Payload:    payload,
	}
}

type Publisher interface {
	Publish(ctx context.Context, event Event) error
}

type NopPublisher struct{}

func (NopPublisher) Publish(ctx context.Context, event Event) error {
	return nil
}

// Notifier delivers events fire-and-forget: a failed delivery is logged and never
// reaches the caller, whose transaction has already committed.
type Notifier struct {
	publisher Publisher
	timeout   time.Duration
	logger    *zap.Logger
}

func NewNotifier(publisher Publisher, timeout time.Duration, logger *zap.Logger) *Notifier {
	if publisher == nil {
		publisher = NopPublisher{}
	}
	return &Notifier{
		publisher: publisher,
		timeout:   timeout,
		logger:    logger,
	}
}

func (n *Notifier) Notify(ctx context.Context, t Type, payload any) {
	event := New(t, payload)

	// Detached from the request so a client disconnect after commit does not drop the event.
	pubCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), n.timeout)
	defer cancel()

	if err := n.publisher.Publish(pubCtx, event); err != nil {
		n.logger.Warn("event delivery failed",
			zap.String("eventId", event.ID),
			zap.String("eventType", string(t)),
			zap.Error(err),
		)
		return
	}
	n.logger.Debug("event published", zap.String("eventId", event.ID), zap.String("eventType", string(t)))
}
