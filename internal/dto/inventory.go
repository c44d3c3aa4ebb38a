package dto

import (
	"time"

	"cashdesk/internal/domain"
)

type RecordMovementRequest struct {
	MovementType string `json:"movementType" validate:"required,oneof=IN OUT RETURN ADJUSTMENT"`
	Quantity     int    `json:"quantity" validate:"gt=0,lte=2147483647"`
	Direction    string `json:"direction,omitempty" validate:"omitempty,oneof=INCREASE DECREASE"`
	Reason       string `json:"reason" validate:"required,max=255"`
}

type StockResponse struct {
	TraceID        string     `json:"traceId"`
	ProductID      int        `json:"productId"`
	InitialStock   int        `json:"initialStock"`
	CurrentStock   int        `json:"currentStock"`
	ReservedStock  int        `json:"reservedStock"`
	AvailableStock int        `json:"availableStock"`
	LastMovementAt *time.Time `json:"lastMovementAt,omitempty"`
	Version        int        `json:"version"`

	// Set only when the caller asked about a quantity. Advisory; sales re-check under the row lock.
	RequestedQuantity *int  `json:"requestedQuantity,omitempty"`
	SufficientStock   *bool `json:"sufficientStock,omitempty"`
}

func NewStockResponse(traceID string, s domain.StockState) StockResponse {
	return StockResponse{
		TraceID:        traceID,
		ProductID:      s.ProductID,
		InitialStock:   s.InitialStock,
		CurrentStock:   s.CurrentStock,
		ReservedStock:  s.ReservedStock,
		AvailableStock: s.AvailableStock(),
		LastMovementAt: s.LastMovementAt,
		Version:        s.Version,
	}
}

type MovementResponse struct {
	ID            uint      `json:"id"`
	ProductID     int       `json:"productId"`
	MovementType  string    `json:"movementType"`
	Quantity      int       `json:"quantity"`
	PreviousStock int       `json:"previousStock"`
	NewStock      int       `json:"newStock"`
	ReferenceType string    `json:"referenceType"`
	ReferenceID   *uint     `json:"referenceId,omitempty"`
	Reason        string    `json:"reason"`
	ActorID       int       `json:"actorId"`
	CreatedAt     time.Time `json:"createdAt"`
}

func NewMovementResponse(m domain.StockMovement) MovementResponse {
	return MovementResponse{
		ID:            m.ID,
		ProductID:     m.ProductID,
		MovementType:  string(m.MovementType),
		Quantity:      m.Quantity,
		PreviousStock: m.PreviousStock,
		NewStock:      m.NewStock,
		ReferenceType: string(m.ReferenceType),
		ReferenceID:   m.ReferenceID,
		Reason:        m.Reason,
		ActorID:       m.ActorID,
		CreatedAt:     m.CreatedAt,
	}
}

type MovementListResponse struct {
	TraceID   string             `json:"traceId"`
	ProductID int                `json:"productId"`
	Movements []MovementResponse `json:"movements"`
}

type AlertListResponse struct {
	TraceID string              `json:"traceId"`
	Alerts  []domain.StockAlert `json:"alerts"`
}
