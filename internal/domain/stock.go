package domain

import (
	"fmt"
	"math"
	"time"

	apperrors "cashdesk/internal/errors"
)

type MovementType string

const (
	MovementIn         MovementType = "IN"
	MovementOut        MovementType = "OUT"
	MovementReturn     MovementType = "RETURN"
	MovementAdjustment MovementType = "ADJUSTMENT"
)

func (t MovementType) Valid() bool {
	switch t {
	case MovementIn, MovementOut, MovementReturn, MovementAdjustment:
		return true
	}
	return false
}

// AdjustmentDirection is required for ADJUSTMENT movements, whose quantity is an unsigned magnitude.
type AdjustmentDirection string

const (
	AdjustIncrease AdjustmentDirection = "INCREASE"
	AdjustDecrease AdjustmentDirection = "DECREASE"
)

type ReferenceType string

const (
	ReferenceInvoice             ReferenceType = "INVOICE"
	ReferenceRefund              ReferenceType = "REFUND"
	ReferenceInvoiceCancellation ReferenceType = "INVOICE_CANCELLATION"
	ReferenceManual              ReferenceType = "MANUAL"
)

// MaxStock is the largest stock level a stock_states row can hold (signed INT column).
const MaxStock = math.MaxInt32

// StockState is the materialized projection of the movement ledger for one product.
type StockState struct {
	ProductID      int        `db:"product_id"`
	InitialStock   int        `db:"initial_stock"`
	CurrentStock   int        `db:"current_stock"`
	ReservedStock  int        `db:"reserved_stock"`
	LastMovementAt *time.Time `db:"last_movement_at"`
	Lifecycle
}

func (s StockState) AvailableStock() int {
	return availableStock(s.CurrentStock, s.ReservedStock)
}

func availableStock(current, reserved int) int {
	available := current - reserved
	if available < 0 {
		return 0
	}
	return available
}

// StockMovement is an append-only ledger row; it is never updated once written.
type StockMovement struct {
	ID            uint          `db:"id"`
	ProductID     int           `db:"product_id"`
	MovementType  MovementType  `db:"movement_type"`
	Quantity      int           `db:"quantity"`
	PreviousStock int           `db:"previous_stock"`
	NewStock      int           `db:"new_stock"`
	ReferenceType ReferenceType `db:"reference_type"`
	ReferenceID   *uint         `db:"reference_id"`
	Reason        string        `db:"reason"`
	ActorID       int           `db:"actor_id"`
	CreatedAt     time.Time     `db:"created_at"`
}

// Delta is the signed change this movement applied to current stock.
func (m StockMovement) Delta() int {
	return m.NewStock - m.PreviousStock
}

type MovementCommand struct {
	ProductID     int
	Type          MovementType
	Quantity      int
	Direction     AdjustmentDirection
	Reason        string
	ReferenceType ReferenceType
	ReferenceID   *uint
	ActorID       int
}

// Delta validates the command and returns the signed stock change it requests.
func (c MovementCommand) Delta() (int, error) {
	var details []apperrors.ValidationDetail

	if c.ProductID <= 0 {
		details = append(details, apperrors.ValidationDetail{Field: "productId", Message: "productId must be a positive integer"})
	}
	if c.Quantity <= 0 {
		details = append(details, apperrors.ValidationDetail{Field: "quantity", Message: "quantity must be greater than zero"})
	}
	if c.Quantity > MaxStock {
		details = append(details, apperrors.ValidationDetail{Field: "quantity", Message: fmt.Sprintf("quantity must not exceed %d", MaxStock)})
	}
	if !c.Type.Valid() {
		details = append(details, apperrors.ValidationDetail{Field: "movementType", Message: fmt.Sprintf("unknown movement type %q", c.Type)})
	}
	if c.Type == MovementAdjustment && c.Direction != AdjustIncrease && c.Direction != AdjustDecrease {
		details = append(details, apperrors.ValidationDetail{Field: "direction", Message: "adjustments require direction INCREASE or DECREASE"})
	}
	if len(details) > 0 {
		return 0, apperrors.NewValidationError("invalid stock movement", details...)
	}

	switch c.Type {
	case MovementIn, MovementReturn:
		return c.Quantity, nil
	case MovementOut:
		return -c.Quantity, nil
	default:
		if c.Direction == AdjustDecrease {
			return -c.Quantity, nil
		}
		return c.Quantity, nil
	}
}

// Apply computes the movement for cmd and mutates the state in memory. On rejection the state is untouched.
func (s *StockState) Apply(cmd MovementCommand, at time.Time) (*StockMovement, error) {
	delta, err := cmd.Delta()
	if err != nil {
		return nil, err
	}
	if cmd.ProductID != s.ProductID {
		return nil, apperrors.NewInternalError(fmt.Sprintf("movement for product %d applied to stock of product %d", cmd.ProductID, s.ProductID), nil)
	}

	if delta > 0 && s.CurrentStock > MaxStock-delta {
		return nil, apperrors.NewValidationError("stock limit exceeded", apperrors.ValidationDetail{
			Field:   "quantity",
			Message: fmt.Sprintf("stock of product %d would exceed %d", s.ProductID, MaxStock),
		})
	}

	newStock := s.CurrentStock + delta
	if delta < 0 && (newStock < 0 || newStock-s.ReservedStock < 0) {
		return nil, apperrors.NewInsufficientStockError(s.ProductID, cmd.Quantity, s.AvailableStock())
	}

	movement := &StockMovement{
		ProductID:     s.ProductID,
		MovementType:  cmd.Type,
		Quantity:      cmd.Quantity,
		PreviousStock: s.CurrentStock,
		NewStock:      newStock,
		ReferenceType: cmd.ReferenceType,
		ReferenceID:   cmd.ReferenceID,
		Reason:        cmd.Reason,
		ActorID:       cmd.ActorID,
		CreatedAt:     at,
	}

	s.CurrentStock = newStock
	s.LastMovementAt = &at
	s.Touch(at)

	return movement, nil
}

type StockAlertType string

const (
	AlertLowStock   StockAlertType = "LOW_STOCK"
	AlertOutOfStock StockAlertType = "OUT_OF_STOCK"
)

type StockAlert struct {
	ProductID    int            `json:"productId"`
	ProductName  string         `json:"productName"`
	ProductSKU   string         `json:"productSku"`
	CurrentStock int            `json:"currentStock"`
	Threshold    int            `json:"threshold"`
	AlertType    StockAlertType `json:"alertType"`
	Severity     string         `json:"severity"`
}

// ClassifyStock reports whether a stock level warrants an alert.
func ClassifyStock(current, threshold int) (StockAlertType, bool) {
	if current <= 0 {
		return AlertOutOfStock, true
	}
	if current <= threshold {
		return AlertLowStock, true
	}
	return "", false
}

func NewStockAlert(item CatalogItem) (StockAlert, bool) {
	alertType, ok := ClassifyStock(item.CurrentStock, item.LowStockThreshold)
	if !ok || !item.IsActive {
		return StockAlert{}, false
	}
	severity := "WARNING"
	if alertType == AlertOutOfStock {
		severity = "CRITICAL"
	}
	return StockAlert{
		ProductID:    item.ID,
		ProductName:  item.Name,
		ProductSKU:   item.SKU,
		CurrentStock: item.CurrentStock,
		Threshold:    item.LowStockThreshold,
		AlertType:    alertType,
		Severity:     severity,
	}, true
}
