package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"

	"cashdesk/internal/domain"
	apperrors "cashdesk/internal/errors"
	"cashdesk/internal/infrastructure/mysql"
)

const stockColumns = `product_id, initial_stock, current_stock, reserved_stock, last_movement_at,
		       version, created_at, updated_at, deleted_at`

type MySQLStockRepository struct {
	db *sqlx.DB
}

func NewMySQLStockRepository(db *sql.DB) *MySQLStockRepository {
	return &MySQLStockRepository{db: mysql.Reader(db)}
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanStockState(row rowScanner) (*domain.StockState, error) {
	var s domain.StockState
	err := row.Scan(
		&s.ProductID, &s.InitialStock, &s.CurrentStock, &s.ReservedStock, &s.LastMovementAt,
		&s.Version, &s.CreatedAt, &s.UpdatedAt, &s.DeletedAt,
	)
	if err != nil {
		return nil, err
	}
	return &s, nil
}

func (r *MySQLStockRepository) FindByProductIDForUpdate(ctx context.Context, tx mysql.Tx, productID int) (*domain.StockState, error) {
	query := `SELECT ` + stockColumns + `
		FROM stock_states
		WHERE product_id = ? AND deleted_at IS NULL
		FOR UPDATE`

	state, err := scanStockState(tx.QueryRowContext(ctx, query, productID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperrors.NewNotFoundError(fmt.Sprintf("stock for product %d not found", productID))
	}
	if err != nil {
		return nil, mysql.Classify(fmt.Errorf("locking stock for product %d: %w", productID, err))
	}
	return state, nil
}

// LockForUpdate locks the stock rows of productIDs in ascending product order.
func (r *MySQLStockRepository) LockForUpdate(ctx context.Context, tx mysql.Tx, productIDs []int) ([]domain.StockState, error) {
	if len(productIDs) == 0 {
		return nil, nil
	}

	query, args, err := sqlx.In(`SELECT `+stockColumns+`
		FROM stock_states
		WHERE product_id IN (?) AND deleted_at IS NULL
		ORDER BY product_id
		FOR UPDATE`, productIDs)
	if err != nil {
		return nil, fmt.Errorf("building stock lock query: %w", err)
	}

	rows, err := tx.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, mysql.Classify(fmt.Errorf("locking stock rows: %w", err))
	}
	defer rows.Close()

	var states []domain.StockState
	for rows.Next() {
		state, err := scanStockState(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning stock row: %w", err)
		}
		states = append(states, *state)
	}

	if err := rows.Err(); err != nil {
		return nil, mysql.Classify(fmt.Errorf("iterating stock rows: %w", err))
	}

	return states, nil
}

// UpdateStock writes state only if the stored version still equals expectedVersion.
func (r *MySQLStockRepository) UpdateStock(ctx context.Context, tx mysql.Tx, state domain.StockState, expectedVersion int) error {
	query := `
		UPDATE stock_states
		SET current_stock = ?, reserved_stock = ?, last_movement_at = ?, version = ?, updated_at = ?
		WHERE product_id = ? AND version = ?
	`

	result, err := tx.ExecContext(ctx, query,
		state.CurrentStock, state.ReservedStock, state.LastMovementAt, state.Version, state.UpdatedAt,
		state.ProductID, expectedVersion,
	)
	if err != nil {
		return mysql.Classify(fmt.Errorf("updating stock for product %d: %w", state.ProductID, err))
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("getting rows affected: %w", err)
	}

	if rowsAffected == 0 {
		return apperrors.NewConcurrencyConflictError("stock_state", int64(state.ProductID), expectedVersion)
	}

	return nil
}

func (r *MySQLStockRepository) InsertMovement(ctx context.Context, tx mysql.Tx, m domain.StockMovement) (uint, error) {
	query := `
		INSERT INTO stock_movements
			(product_id, movement_type, quantity, previous_stock, new_stock,
			 reference_type, reference_id, reason, actor_id, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	result, err := tx.ExecContext(ctx, query,
		m.ProductID, m.MovementType, m.Quantity, m.PreviousStock, m.NewStock,
		m.ReferenceType, m.ReferenceID, m.Reason, m.ActorID, m.CreatedAt,
	)
	if err != nil {
		return 0, mysql.Classify(fmt.Errorf("inserting stock movement: %w", err))
	}

	id, err := result.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("getting movement id: %w", err)
	}

	return uint(id), nil
}

func (r *MySQLStockRepository) FindByProductID(ctx context.Context, productID int) (*domain.StockState, error) {
	query := `SELECT ` + stockColumns + `
		FROM stock_states
		WHERE product_id = ? AND deleted_at IS NULL`

	var state domain.StockState
	err := r.db.GetContext(ctx, &state, query, productID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperrors.NewNotFoundError(fmt.Sprintf("stock for product %d not found", productID))
	}
	if err != nil {
		return nil, mysql.Classify(fmt.Errorf("querying stock for product %d: %w", productID, err))
	}
	return &state, nil
}

// ListMovements returns the newest movements first.
func (r *MySQLStockRepository) ListMovements(ctx context.Context, productID int, limit int) ([]domain.StockMovement, error) {
	query := `
		SELECT id, product_id, movement_type, quantity, previous_stock, new_stock,
		       reference_type, reference_id, reason, actor_id, created_at
		FROM stock_movements
		WHERE product_id = ?
		ORDER BY id DESC
		LIMIT ?`

	movements := []domain.StockMovement{}
	if err := r.db.SelectContext(ctx, &movements, query, productID, limit); err != nil {
		return nil, mysql.Classify(fmt.Errorf("listing movements for product %d: %w", productID, err))
	}
	return movements, nil
}

// SumMovementDeltas returns the net signed change recorded by the ledger and the number of movements.
func (r *MySQLStockRepository) SumMovementDeltas(ctx context.Context, productID int) (int, int, error) {
	query := `
		SELECT COALESCE(SUM(new_stock - previous_stock), 0) AS net, COUNT(*) AS movements
		FROM stock_movements
		WHERE product_id = ?`

	var out struct {
		Net       int `db:"net"`
		Movements int `db:"movements"`
	}
	if err := r.db.GetContext(ctx, &out, query, productID); err != nil {
		return 0, 0, mysql.Classify(fmt.Errorf("summing movements for product %d: %w", productID, err))
	}
	return out.Net, out.Movements, nil
}

// ListAlertCandidates returns active products at or below their low-stock threshold.
func (r *MySQLStockRepository) ListAlertCandidates(ctx context.Context) ([]domain.CatalogItem, error) {
	query := `
		SELECT p.id, p.sku, p.name, p.barcode, p.selling_price, p.cost_price, p.gst_rate,
		       p.low_stock_threshold, p.is_active, s.current_stock, s.reserved_stock
		FROM products p
		JOIN stock_states s ON s.product_id = p.id AND s.deleted_at IS NULL
		WHERE p.is_active = 1 AND s.current_stock <= p.low_stock_threshold
		ORDER BY s.current_stock ASC, p.id ASC`

	items := []domain.CatalogItem{}
	if err := r.db.SelectContext(ctx, &items, query); err != nil {
		return nil, mysql.Classify(fmt.Errorf("listing stock alert candidates: %w", err))
	}
	return items, nil
}
