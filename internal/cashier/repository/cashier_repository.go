package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"cashdesk/internal/domain"
	apperrors "cashdesk/internal/errors"
	"cashdesk/internal/infrastructure/mysql"
)

// MySQLCashierRepository resolves the cashier and counter behind a sale.
type MySQLCashierRepository struct {
	db *sql.DB
}

func NewMySQLCashierRepository(db *sql.DB) *MySQLCashierRepository {
	return &MySQLCashierRepository{db: db}
}

func (r *MySQLCashierRepository) FindByID(ctx context.Context, id int) (*domain.Cashier, error) {
	query := `
		SELECT id, username, full_name, counter_id, is_active
		FROM cashiers
		WHERE id = ?
	`

	var c domain.Cashier
	err := r.db.QueryRowContext(ctx, query, id).Scan(
		&c.ID, &c.Username, &c.FullName, &c.CounterID, &c.IsActive,
	)

	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperrors.NewNotFoundError(fmt.Sprintf("cashier with id %d not found", id))
	}
	if err != nil {
		return nil, mysql.Classify(fmt.Errorf("querying cashier by id: %w", err))
	}

	return &c, nil
}
