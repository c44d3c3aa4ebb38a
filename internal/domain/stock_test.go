package domain

import (
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "cashdesk/internal/errors"
)

func uintPtr(v uint) *uint {
	return &v
}

func TestStockState_AvailableStock(t *testing.T) {
	tests := []struct {
		name     string
		current  int
		reserved int
		want     int
	}{
		{name: "no reservation", current: 10, reserved: 0, want: 10},
		{name: "partially reserved", current: 10, reserved: 4, want: 6},
		{name: "over reserved clamps to zero", current: 3, reserved: 5, want: 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			state := StockState{ProductID: 1, CurrentStock: tt.current, ReservedStock: tt.reserved}
			assert.Equal(t, tt.want, state.AvailableStock())
		})
	}
}

func TestMovementCommand_Delta(t *testing.T) {
	tests := []struct {
		name    string
		cmd     MovementCommand
		want    int
		wantErr bool
	}{
		{name: "in adds", cmd: MovementCommand{ProductID: 1, Type: MovementIn, Quantity: 5}, want: 5},
		{name: "return adds", cmd: MovementCommand{ProductID: 1, Type: MovementReturn, Quantity: 2}, want: 2},
		{name: "out subtracts", cmd: MovementCommand{ProductID: 1, Type: MovementOut, Quantity: 3}, want: -3},
		{name: "adjustment increase", cmd: MovementCommand{ProductID: 1, Type: MovementAdjustment, Quantity: 4, Direction: AdjustIncrease}, want: 4},
		{name: "adjustment decrease", cmd: MovementCommand{ProductID: 1, Type: MovementAdjustment, Quantity: 4, Direction: AdjustDecrease}, want: -4},
		{name: "adjustment without direction", cmd: MovementCommand{ProductID: 1, Type: MovementAdjustment, Quantity: 4}, wantErr: true},
		{name: "zero quantity", cmd: MovementCommand{ProductID: 1, Type: MovementOut, Quantity: 0}, wantErr: true},
		{name: "negative quantity", cmd: MovementCommand{ProductID: 1, Type: MovementIn, Quantity: -1}, wantErr: true},
		{name: "unknown type", cmd: MovementCommand{ProductID: 1, Type: "TRANSFER", Quantity: 1}, wantErr: true},
		{name: "missing product", cmd: MovementCommand{Type: MovementIn, Quantity: 1}, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := tt.cmd.Delta()
			if tt.wantErr {
				_, ok := apperrors.IsValidationError(err)
				assert.True(t, ok, "expected ValidationError, got %v", err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestStockState_Apply_Out(t *testing.T) {
	now := time.Date(2026, 1, 17, 10, 0, 0, 0, time.UTC)
	state := StockState{ProductID: 7, CurrentStock: 10}

	movement, err := state.Apply(MovementCommand{
		ProductID:     7,
		Type:          MovementOut,
		Quantity:      3,
		Reason:        "INV-20260117-0001",
		ReferenceType: ReferenceInvoice,
		ReferenceID:   uintPtr(1),
		ActorID:       2,
	}, now)

	require.NoError(t, err)
	assert.Equal(t, 10, movement.PreviousStock)
	assert.Equal(t, 7, movement.NewStock)
	assert.Equal(t, -3, movement.Delta())
	assert.Equal(t, 3, movement.Quantity)
	assert.Equal(t, MovementOut, movement.MovementType)
	assert.Equal(t, 7, state.CurrentStock)
	assert.Equal(t, 1, state.Version)
	require.NotNil(t, state.LastMovementAt)
	assert.Equal(t, now, *state.LastMovementAt)
}

func TestStockState_Apply_RejectsNegativeStock(t *testing.T) {
	state := StockState{ProductID: 7, CurrentStock: 10}
	before := state

	movement, err := state.Apply(MovementCommand{ProductID: 7, Type: MovementOut, Quantity: 11}, time.Now())

	assert.Nil(t, movement)
	ise, ok := apperrors.IsInsufficientStockError(err)
	require.True(t, ok)
	assert.Equal(t, 11, ise.Requested)
	assert.Equal(t, 10, ise.Available)
	assert.Equal(t, before, state)
}

func TestStockState_Apply_RespectsReservedStock(t *testing.T) {
	state := StockState{ProductID: 7, CurrentStock: 10, ReservedStock: 4}

	_, err := state.Apply(MovementCommand{ProductID: 7, Type: MovementOut, Quantity: 7}, time.Now())
	_, ok := apperrors.IsInsufficientStockError(err)
	assert.True(t, ok)

	movement, err := state.Apply(MovementCommand{ProductID: 7, Type: MovementOut, Quantity: 6}, time.Now())
	require.NoError(t, err)
	assert.Equal(t, 4, movement.NewStock)
	assert.Equal(t, 0, state.AvailableStock())
}

func TestStockState_Apply_DeltasSumToNetChange(t *testing.T) {
	state := StockState{ProductID: 3, InitialStock: 20, CurrentStock: 20}
	commands := []MovementCommand{
		{ProductID: 3, Type: MovementOut, Quantity: 5},
		{ProductID: 3, Type: MovementIn, Quantity: 12},
		{ProductID: 3, Type: MovementReturn, Quantity: 2},
		{ProductID: 3, Type: MovementAdjustment, Quantity: 9, Direction: AdjustDecrease},
		{ProductID: 3, Type: MovementOut, Quantity: 50},
	}

	sum := 0
	for _, cmd := range commands {
		movement, err := state.Apply(cmd, time.Now())
		if err != nil {
			continue
		}
		sum += movement.Delta()
	}

	assert.Equal(t, 20, state.CurrentStock)
	assert.Equal(t, state.CurrentStock-state.InitialStock, sum)
}

func TestStockState_Apply_ProductMismatch(t *testing.T) {
	state := StockState{ProductID: 1, CurrentStock: 5}

	_, err := state.Apply(MovementCommand{ProductID: 2, Type: MovementIn, Quantity: 1}, time.Now())
	assert.Error(t, err)
	assert.Equal(t, 5, state.CurrentStock)
}

func TestStockState_Apply_RejectsStockAboveColumnLimit(t *testing.T) {
	tests := []struct {
		name    string
		current int
		cmd     MovementCommand
	}{
		{name: "in wraps int", current: 10, cmd: MovementCommand{ProductID: 4, Type: MovementIn, Quantity: math.MaxInt}},
		{name: "return past limit", current: MaxStock - 1, cmd: MovementCommand{ProductID: 4, Type: MovementReturn, Quantity: 2}},
		{name: "adjustment increase past limit", current: 10, cmd: MovementCommand{ProductID: 4, Type: MovementAdjustment, Quantity: MaxStock, Direction: AdjustIncrease}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			state := StockState{ProductID: 4, CurrentStock: tt.current}
			before := state

			movement, err := state.Apply(tt.cmd, time.Now())

			assert.Nil(t, movement)
			ve, ok := apperrors.IsValidationError(err)
			require.True(t, ok)
			assert.Equal(t, "quantity", ve.Details[0].Field)
			assert.Equal(t, before, state)
			assert.GreaterOrEqual(t, state.CurrentStock, 0)
		})
	}
}

func TestStockState_Apply_FillsToColumnLimit(t *testing.T) {
	state := StockState{ProductID: 4, CurrentStock: 10}

	movement, err := state.Apply(MovementCommand{ProductID: 4, Type: MovementIn, Quantity: MaxStock - 10}, time.Now())

	require.NoError(t, err)
	assert.Equal(t, MaxStock, movement.NewStock)
	assert.Equal(t, MaxStock, state.CurrentStock)
}

func TestNewStockAlert(t *testing.T) {
	item := func(current, threshold int, active bool) CatalogItem {
		return CatalogItem{
			Product:      Product{ID: 1, Name: "Rice 5kg", SKU: "RICE-5", LowStockThreshold: threshold, IsActive: active},
			CurrentStock: current,
		}
	}

	alert, ok := NewStockAlert(item(0, 5, true))
	require.True(t, ok)
	assert.Equal(t, AlertOutOfStock, alert.AlertType)
	assert.Equal(t, "CRITICAL", alert.Severity)

	alert, ok = NewStockAlert(item(3, 5, true))
	require.True(t, ok)
	assert.Equal(t, AlertLowStock, alert.AlertType)
	assert.Equal(t, "WARNING", alert.Severity)

	_, ok = NewStockAlert(item(6, 5, true))
	assert.False(t, ok)

	_, ok = NewStockAlert(item(0, 5, false))
	assert.False(t, ok)
}
