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

const refundColumns = `id, refund_number, original_invoice_id, invoice_line_number, product_id,
		       quantity_returned, unit_price, refund_amount, tax_refunded, reason, refund_type, status,
		       processed_by, approved_by, rejected_by, notes, customer_name, customer_phone,
		       version, created_at, updated_at, deleted_at`

type MySQLRefundRepository struct {
	db *sqlx.DB
}

func NewMySQLRefundRepository(db *sql.DB) *MySQLRefundRepository {
	return &MySQLRefundRepository{db: mysql.Reader(db)}
}

func (r *MySQLRefundRepository) Insert(ctx context.Context, tx mysql.Tx, rf *domain.Refund) (uint, error) {
	query := `
		INSERT INTO refunds
			(refund_number, original_invoice_id, invoice_line_number, product_id, quantity_returned,
			 unit_price, refund_amount, tax_refunded, reason, refund_type, status, processed_by,
			 approved_by, rejected_by, notes, customer_name, customer_phone, version, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	result, err := tx.ExecContext(ctx, query,
		rf.RefundNumber, rf.OriginalInvoiceID, rf.InvoiceLineNumber, rf.ProductID, rf.QuantityReturned,
		rf.UnitPrice, rf.RefundAmount, rf.TaxRefunded, rf.Reason, rf.Type, rf.Status, rf.ProcessedBy,
		rf.ApprovedBy, rf.RejectedBy, rf.Notes, rf.CustomerName, rf.CustomerPhone, rf.Version, rf.CreatedAt, rf.UpdatedAt,
	)
	if err != nil {
		return 0, mysql.Classify(fmt.Errorf("inserting refund %s: %w", rf.RefundNumber, err))
	}

	id, err := result.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("getting refund id: %w", err)
	}
	rf.ID = uint(id)
	return rf.ID, nil
}

// Update writes the workflow fields, bumping the version only if it is still expectedVersion.
func (r *MySQLRefundRepository) Update(ctx context.Context, tx mysql.Tx, rf *domain.Refund, expectedVersion int) error {
	query := `
		UPDATE refunds
		SET status = ?, approved_by = ?, rejected_by = ?, notes = ?, version = ?, updated_at = ?
		WHERE id = ? AND version = ?
	`

	result, err := tx.ExecContext(ctx, query,
		rf.Status, rf.ApprovedBy, rf.RejectedBy, rf.Notes, rf.Version, rf.UpdatedAt,
		rf.ID, expectedVersion,
	)
	if err != nil {
		return mysql.Classify(fmt.Errorf("updating refund %d: %w", rf.ID, err))
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("getting rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return apperrors.NewConcurrencyConflictError("refund", int64(rf.ID), expectedVersion)
	}
	return nil
}

func scanRefund(row *sql.Row) (*domain.Refund, error) {
	var rf domain.Refund
	err := row.Scan(
		&rf.ID, &rf.RefundNumber, &rf.OriginalInvoiceID, &rf.InvoiceLineNumber, &rf.ProductID,
		&rf.QuantityReturned, &rf.UnitPrice, &rf.RefundAmount, &rf.TaxRefunded, &rf.Reason, &rf.Type, &rf.Status,
		&rf.ProcessedBy, &rf.ApprovedBy, &rf.RejectedBy, &rf.Notes, &rf.CustomerName, &rf.CustomerPhone,
		&rf.Version, &rf.CreatedAt, &rf.UpdatedAt, &rf.DeletedAt,
	)
	if err != nil {
		return nil, err
	}
	return &rf, nil
}

func (r *MySQLRefundRepository) FindByIDForUpdate(ctx context.Context, tx mysql.Tx, id uint) (*domain.Refund, error) {
	query := `SELECT ` + refundColumns + ` FROM refunds WHERE id = ? AND deleted_at IS NULL FOR UPDATE`

	rf, err := scanRefund(tx.QueryRowContext(ctx, query, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperrors.NewNotFoundError(fmt.Sprintf("refund with id %d not found", id))
	}
	if err != nil {
		return nil, mysql.Classify(fmt.Errorf("locking refund %d: %w", id, err))
	}
	return rf, nil
}

func (r *MySQLRefundRepository) FindByID(ctx context.Context, id uint) (*domain.Refund, error) {
	query := `SELECT ` + refundColumns + ` FROM refunds WHERE id = ? AND deleted_at IS NULL`

	var rf domain.Refund
	err := r.db.GetContext(ctx, &rf, query, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperrors.NewNotFoundError(fmt.Sprintf("refund with id %d not found", id))
	}
	if err != nil {
		return nil, mysql.Classify(fmt.Errorf("querying refund %d: %w", id, err))
	}
	return &rf, nil
}

func (r *MySQLRefundRepository) ListByInvoice(ctx context.Context, invoiceID uint) ([]domain.Refund, error) {
	query := `SELECT ` + refundColumns + `
		FROM refunds
		WHERE original_invoice_id = ? AND deleted_at IS NULL
		ORDER BY id`

	refunds := []domain.Refund{}
	if err := r.db.SelectContext(ctx, &refunds, query, invoiceID); err != nil {
		return nil, mysql.Classify(fmt.Errorf("listing refunds of invoice %d: %w", invoiceID, err))
	}
	return refunds, nil
}

// ListByStatus returns the oldest refunds first.
func (r *MySQLRefundRepository) ListByStatus(ctx context.Context, status domain.RefundStatus, limit int) ([]domain.Refund, error) {
	query := `SELECT ` + refundColumns + `
		FROM refunds
		WHERE status = ? AND deleted_at IS NULL
		ORDER BY created_at, id
		LIMIT ?`

	refunds := []domain.Refund{}
	if err := r.db.SelectContext(ctx, &refunds, query, status, limit); err != nil {
		return nil, mysql.Classify(fmt.Errorf("listing %s refunds: %w", status, err))
	}
	return refunds, nil
}

// SumQuantityByLine totals the quantity already claimed against one invoice line. Callers
// hold the invoice row lock, which serializes concurrent claims.
func (r *MySQLRefundRepository) SumQuantityByLine(ctx context.Context, tx mysql.Tx, invoiceID uint, lineNumber int) (int, error) {
	query, args, err := sqlx.In(`
		SELECT COALESCE(SUM(quantity_returned), 0)
		FROM refunds
		WHERE original_invoice_id = ? AND invoice_line_number = ? AND status IN (?) AND deleted_at IS NULL`,
		invoiceID, lineNumber, countingStatuses(),
	)
	if err != nil {
		return 0, fmt.Errorf("building refund sum query: %w", err)
	}

	var total int
	if err := tx.QueryRowContext(ctx, query, args...).Scan(&total); err != nil {
		return 0, mysql.Classify(fmt.Errorf("summing refunds of invoice %d: %w", invoiceID, err))
	}
	return total, nil
}

func (r *MySQLRefundRepository) CountActiveByInvoice(ctx context.Context, tx mysql.Tx, invoiceID uint) (int, error) {
	query, args, err := sqlx.In(`
		SELECT COUNT(*)
		FROM refunds
		WHERE original_invoice_id = ? AND status IN (?) AND deleted_at IS NULL`,
		invoiceID, countingStatuses(),
	)
	if err != nil {
		return 0, fmt.Errorf("building refund count query: %w", err)
	}

	var count int
	if err := tx.QueryRowContext(ctx, query, args...).Scan(&count); err != nil {
		return 0, mysql.Classify(fmt.Errorf("counting refunds of invoice %d: %w", invoiceID, err))
	}
	return count, nil
}

func countingStatuses() []string {
	var out []string
	for _, s := range []domain.RefundStatus{domain.RefundPending, domain.RefundApproved, domain.RefundProcessed} {
		if s.CountsAgainstSale() {
			out = append(out, string(s))
		}
	}
	return out
}
