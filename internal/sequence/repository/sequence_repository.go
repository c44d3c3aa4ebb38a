package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"cashdesk/internal/infrastructure/mysql"
)

type MySQLSequenceRepository struct {
	db *sql.DB
}

func NewMySQLSequenceRepository(db *sql.DB) *MySQLSequenceRepository {
	return &MySQLSequenceRepository{db: db}
}

// Next increments the named counter and returns the new value. It runs in autocommit
// mode, so the counter row lock is released as soon as the statement finishes.
func (r *MySQLSequenceRepository) Next(ctx context.Context, name string) (int64, error) {
	query := `
		INSERT INTO sequences (name, value) VALUES (?, LAST_INSERT_ID(1))
		ON DUPLICATE KEY UPDATE value = LAST_INSERT_ID(value + 1)
	`

	result, err := r.db.ExecContext(ctx, query, name)
	if err != nil {
		return 0, mysql.Classify(fmt.Errorf("incrementing sequence %s: %w", name, err))
	}

	value, err := result.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("reading sequence %s value: %w", name, err)
	}

	return value, nil
}

func (r *MySQLSequenceRepository) Current(ctx context.Context, name string) (int64, error) {
	var value int64
	err := r.db.QueryRowContext(ctx, `SELECT value FROM sequences WHERE name = ?`, name).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, nil
	}
	if err != nil {
		return 0, mysql.Classify(fmt.Errorf("querying sequence %s: %w", name, err))
	}
	return value, nil
}

// Set stores value as the last issued number, so the next call to Next returns value+1.
func (r *MySQLSequenceRepository) Set(ctx context.Context, name string, value int64) error {
	query := `
		INSERT INTO sequences (name, value) VALUES (?, ?)
		ON DUPLICATE KEY UPDATE value = VALUES(value)
	`

	if _, err := r.db.ExecContext(ctx, query, name, value); err != nil {
		return mysql.Classify(fmt.Errorf("setting sequence %s: %w", name, err))
	}
	return nil
}
