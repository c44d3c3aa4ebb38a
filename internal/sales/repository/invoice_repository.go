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

const invoiceColumns = `id, invoice_number, issued_at, cashier_id, counter_id,
		       customer_name, customer_phone, customer_email, customer_gstin, tax_policy,
		       subtotal, discount_amount, taxable_amount, cgst, sgst, igst, round_off, grand_total,
		       amount_paid, payment_status, notes, is_cancelled, cancelled_at, cancelled_by,
		       cancellation_reason, version, created_at, updated_at, deleted_at`

const lineColumns = `id, invoice_id, line_number, product_id, product_name, product_sku, product_barcode,
		       unit_price, quantity, discount_percent, discount_amount, line_total, taxable_amount,
		       gst_rate, cgst, sgst, igst, final_amount`

// querier is satisfied by both *sql.DB and mysql.Tx.
type querier interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

type MySQLInvoiceRepository struct {
	db     *sql.DB
	reader *sqlx.DB
}

func NewMySQLInvoiceRepository(db *sql.DB) *MySQLInvoiceRepository {
	return &MySQLInvoiceRepository{db: db, reader: mysql.Reader(db)}
}

// Insert writes the invoice header, its lines and the per-rate tax summary, and sets the
// generated ids on inv.
func (r *MySQLInvoiceRepository) Insert(ctx context.Context, tx mysql.Tx, inv *domain.SalesInvoice) (uint, error) {
	query := `
		INSERT INTO sales_invoices
			(invoice_number, issued_at, cashier_id, counter_id,
			 customer_name, customer_phone, customer_email, customer_gstin, tax_policy,
			 subtotal, discount_amount, taxable_amount, cgst, sgst, igst, round_off, grand_total,
			 amount_paid, payment_status, notes, is_cancelled, version, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, 0, ?, ?, ?)
	`

	result, err := tx.ExecContext(ctx, query,
		inv.InvoiceNumber, inv.IssuedAt, inv.CashierID, inv.CounterID,
		inv.Customer.Name, inv.Customer.Phone, inv.Customer.Email, inv.Customer.GSTIN, inv.TaxPolicy,
		inv.Subtotal, inv.DiscountAmount, inv.TaxableAmount, inv.CGST, inv.SGST, inv.IGST, inv.RoundOff, inv.GrandTotal,
		inv.AmountPaid, inv.PaymentStatus, inv.Notes, inv.Version, inv.CreatedAt, inv.UpdatedAt,
	)
	if err != nil {
		return 0, mysql.Classify(fmt.Errorf("inserting invoice %s: %w", inv.InvoiceNumber, err))
	}

	id, err := result.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("getting invoice id: %w", err)
	}
	inv.ID = uint(id)

	for i := range inv.Lines {
		line := &inv.Lines[i]
		line.InvoiceID = inv.ID
		lineID, err := r.insertLine(ctx, tx, *line)
		if err != nil {
			return 0, err
		}
		line.ID = lineID
	}

	for i := range inv.TaxDetails {
		detail := &inv.TaxDetails[i]
		detail.InvoiceID = inv.ID
		detailID, err := r.insertTaxDetail(ctx, tx, *detail)
		if err != nil {
			return 0, err
		}
		detail.ID = detailID
	}

	return inv.ID, nil
}

func (r *MySQLInvoiceRepository) insertLine(ctx context.Context, tx mysql.Tx, l domain.InvoiceLine) (uint, error) {
	query := `
		INSERT INTO invoice_lines
			(invoice_id, line_number, product_id, product_name, product_sku, product_barcode,
			 unit_price, quantity, discount_percent, discount_amount, line_total, taxable_amount,
			 gst_rate, cgst, sgst, igst, final_amount)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	result, err := tx.ExecContext(ctx, query,
		l.InvoiceID, l.LineNumber, l.ProductID, l.ProductName, l.ProductSKU, l.ProductBarcode,
		l.UnitPrice, l.Quantity, l.DiscountPercent, l.DiscountAmount, l.LineTotal, l.TaxableAmount,
		l.GSTRate, l.CGST, l.SGST, l.IGST, l.FinalAmount,
	)
	if err != nil {
		return 0, mysql.Classify(fmt.Errorf("inserting invoice line %d: %w", l.LineNumber, err))
	}

	id, err := result.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("getting invoice line id: %w", err)
	}
	return uint(id), nil
}

func (r *MySQLInvoiceRepository) insertTaxDetail(ctx context.Context, tx mysql.Tx, d domain.InvoiceTaxDetail) (uint, error) {
	query := `
		INSERT INTO invoice_tax_details (invoice_id, gst_rate, taxable_amount, cgst, sgst, igst)
		VALUES (?, ?, ?, ?, ?, ?)
	`

	result, err := tx.ExecContext(ctx, query, d.InvoiceID, d.GSTRate, d.TaxableAmount, d.CGST, d.SGST, d.IGST)
	if err != nil {
		return 0, mysql.Classify(fmt.Errorf("inserting tax detail for rate %s: %w", d.GSTRate.StringFixed(2), err))
	}

	id, err := result.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("getting tax detail id: %w", err)
	}
	return uint(id), nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanInvoice(row rowScanner) (*domain.SalesInvoice, error) {
	var inv domain.SalesInvoice
	err := row.Scan(
		&inv.ID, &inv.InvoiceNumber, &inv.IssuedAt, &inv.CashierID, &inv.CounterID,
		&inv.Customer.Name, &inv.Customer.Phone, &inv.Customer.Email, &inv.Customer.GSTIN, &inv.TaxPolicy,
		&inv.Subtotal, &inv.DiscountAmount, &inv.TaxableAmount, &inv.CGST, &inv.SGST, &inv.IGST, &inv.RoundOff, &inv.GrandTotal,
		&inv.AmountPaid, &inv.PaymentStatus, &inv.Notes, &inv.IsCancelled, &inv.CancelledAt, &inv.CancelledBy,
		&inv.CancellationReason, &inv.Version, &inv.CreatedAt, &inv.UpdatedAt, &inv.DeletedAt,
	)
	if err != nil {
		return nil, err
	}
	return &inv, nil
}

func (r *MySQLInvoiceRepository) loadLines(ctx context.Context, q querier, invoiceID uint) ([]domain.InvoiceLine, error) {
	query := `SELECT ` + lineColumns + ` FROM invoice_lines WHERE invoice_id = ? ORDER BY line_number`

	rows, err := q.QueryContext(ctx, query, invoiceID)
	if err != nil {
		return nil, mysql.Classify(fmt.Errorf("querying invoice lines: %w", err))
	}
	defer rows.Close()

	var lines []domain.InvoiceLine
	for rows.Next() {
		var l domain.InvoiceLine
		err := rows.Scan(
			&l.ID, &l.InvoiceID, &l.LineNumber, &l.ProductID, &l.ProductName, &l.ProductSKU, &l.ProductBarcode,
			&l.UnitPrice, &l.Quantity, &l.DiscountPercent, &l.DiscountAmount, &l.LineTotal, &l.TaxableAmount,
			&l.GSTRate, &l.CGST, &l.SGST, &l.IGST, &l.FinalAmount,
		)
		if err != nil {
			return nil, fmt.Errorf("scanning invoice line: %w", err)
		}
		lines = append(lines, l)
	}

	if err := rows.Err(); err != nil {
		return nil, mysql.Classify(fmt.Errorf("iterating invoice lines: %w", err))
	}
	return lines, nil
}

func (r *MySQLInvoiceRepository) findOne(ctx context.Context, q querier, where string, arg any, notFound string) (*domain.SalesInvoice, error) {
	query := `SELECT ` + invoiceColumns + ` FROM sales_invoices WHERE ` + where

	inv, err := scanInvoice(q.QueryRowContext(ctx, query, arg))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperrors.NewNotFoundError(notFound)
	}
	if err != nil {
		return nil, mysql.Classify(fmt.Errorf("querying invoice: %w", err))
	}

	inv.Lines, err = r.loadLines(ctx, q, inv.ID)
	if err != nil {
		return nil, err
	}
	return inv, nil
}

func (r *MySQLInvoiceRepository) withTaxDetails(ctx context.Context, inv *domain.SalesInvoice) (*domain.SalesInvoice, error) {
	query := `
		SELECT id, invoice_id, gst_rate, taxable_amount, cgst, sgst, igst
		FROM invoice_tax_details
		WHERE invoice_id = ?
		ORDER BY gst_rate`

	details := []domain.InvoiceTaxDetail{}
	if err := r.reader.SelectContext(ctx, &details, query, inv.ID); err != nil {
		return nil, mysql.Classify(fmt.Errorf("querying tax details: %w", err))
	}
	inv.TaxDetails = details
	return inv, nil
}

func (r *MySQLInvoiceRepository) FindByID(ctx context.Context, id uint) (*domain.SalesInvoice, error) {
	inv, err := r.findOne(ctx, r.db, "id = ? AND deleted_at IS NULL", id, fmt.Sprintf("invoice with id %d not found", id))
	if err != nil {
		return nil, err
	}
	return r.withTaxDetails(ctx, inv)
}

func (r *MySQLInvoiceRepository) FindByNumber(ctx context.Context, number string) (*domain.SalesInvoice, error) {
	inv, err := r.findOne(ctx, r.db, "invoice_number = ? AND deleted_at IS NULL", number, fmt.Sprintf("invoice %s not found", number))
	if err != nil {
		return nil, err
	}
	return r.withTaxDetails(ctx, inv)
}

// FindByIDForUpdate locks the invoice header row. Lines are immutable and read without a lock.
func (r *MySQLInvoiceRepository) FindByIDForUpdate(ctx context.Context, tx mysql.Tx, id uint) (*domain.SalesInvoice, error) {
	return r.findOne(ctx, tx, "id = ? AND deleted_at IS NULL FOR UPDATE", id, fmt.Sprintf("invoice with id %d not found", id))
}

func (r *MySQLInvoiceRepository) checkAffected(result sql.Result, inv *domain.SalesInvoice, expectedVersion int) error {
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("getting rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return apperrors.NewConcurrencyConflictError("invoice", int64(inv.ID), expectedVersion)
	}
	return nil
}

func (r *MySQLInvoiceRepository) UpdatePayment(ctx context.Context, tx mysql.Tx, inv *domain.SalesInvoice, expectedVersion int) error {
	query := `
		UPDATE sales_invoices
		SET amount_paid = ?, payment_status = ?, version = ?, updated_at = ?
		WHERE id = ? AND version = ?
	`

	result, err := tx.ExecContext(ctx, query, inv.AmountPaid, inv.PaymentStatus, inv.Version, inv.UpdatedAt, inv.ID, expectedVersion)
	if err != nil {
		return mysql.Classify(fmt.Errorf("updating payment of invoice %d: %w", inv.ID, err))
	}
	return r.checkAffected(result, inv, expectedVersion)
}

func (r *MySQLInvoiceRepository) UpdateCancellation(ctx context.Context, tx mysql.Tx, inv *domain.SalesInvoice, expectedVersion int) error {
	query := `
		UPDATE sales_invoices
		SET is_cancelled = ?, cancelled_at = ?, cancelled_by = ?, cancellation_reason = ?, version = ?, updated_at = ?
		WHERE id = ? AND version = ?
	`

	result, err := tx.ExecContext(ctx, query,
		inv.IsCancelled, inv.CancelledAt, inv.CancelledBy, inv.CancellationReason, inv.Version, inv.UpdatedAt,
		inv.ID, expectedVersion,
	)
	if err != nil {
		return mysql.Classify(fmt.Errorf("cancelling invoice %d: %w", inv.ID, err))
	}
	return r.checkAffected(result, inv, expectedVersion)
}

func (r *MySQLInvoiceRepository) InsertPayment(ctx context.Context, tx mysql.Tx, p domain.Payment) (uint, error) {
	query := `
		INSERT INTO invoice_payments (invoice_id, payment_mode, amount, reference, received_by, created_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`

	result, err := tx.ExecContext(ctx, query, p.InvoiceID, p.Mode, p.Amount, p.Reference, p.ReceivedBy, p.CreatedAt)
	if err != nil {
		return 0, mysql.Classify(fmt.Errorf("inserting payment: %w", err))
	}

	id, err := result.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("getting payment id: %w", err)
	}
	return uint(id), nil
}

func (r *MySQLInvoiceRepository) ListPayments(ctx context.Context, invoiceID uint) ([]domain.Payment, error) {
	query := `
		SELECT id, invoice_id, payment_mode, amount, reference, received_by, created_at
		FROM invoice_payments
		WHERE invoice_id = ?
		ORDER BY id`

	payments := []domain.Payment{}
	if err := r.reader.SelectContext(ctx, &payments, query, invoiceID); err != nil {
		return nil, mysql.Classify(fmt.Errorf("listing payments of invoice %d: %w", invoiceID, err))
	}
	return payments, nil
}
