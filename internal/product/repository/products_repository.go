package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/jmoiron/sqlx"

	"cashdesk/internal/domain"
	"cashdesk/internal/infrastructure/mysql"
)

const productColumns = `p.id, p.sku, p.name, p.barcode, p.selling_price, p.cost_price, p.gst_rate,
		       p.low_stock_threshold, p.is_active`

// MySQLRepository reads the catalog. Products are owned elsewhere and never written here.
type MySQLRepository struct {
	db *sqlx.DB
}

func NewMySQLRepository(db *sql.DB) *MySQLRepository {
	return &MySQLRepository{db: mysql.Reader(db)}
}

// FindByIDs returns the catalog entries for ids joined with their stock projection.
func (r *MySQLRepository) FindByIDs(ctx context.Context, ids []int) ([]domain.CatalogItem, error) {
	if len(ids) == 0 {
		return nil, nil
	}

	query, args, err := sqlx.In(`
		SELECT `+productColumns+`,
		       COALESCE(s.current_stock, 0) AS current_stock,
		       COALESCE(s.reserved_stock, 0) AS reserved_stock
		FROM products p
		LEFT JOIN stock_states s ON s.product_id = p.id AND s.deleted_at IS NULL
		WHERE p.id IN (?)
		ORDER BY p.id`, ids)
	if err != nil {
		return nil, fmt.Errorf("building product query: %w", err)
	}

	var items []domain.CatalogItem
	if err := r.db.SelectContext(ctx, &items, r.db.Rebind(query), args...); err != nil {
		return nil, mysql.Classify(fmt.Errorf("querying products: %w", err))
	}
	return items, nil
}

// FindByIDsTx reads products inside a sale transaction so prices and rates are taken
// from the same snapshot as the locked stock rows.
func (r *MySQLRepository) FindByIDsTx(ctx context.Context, tx mysql.Tx, ids []int) (map[int]domain.Product, error) {
	if len(ids) == 0 {
		return map[int]domain.Product{}, nil
	}

	query, args, err := sqlx.In(`SELECT `+productColumns+` FROM products p WHERE p.id IN (?)`, ids)
	if err != nil {
		return nil, fmt.Errorf("building product query: %w", err)
	}

	rows, err := tx.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, mysql.Classify(fmt.Errorf("querying products: %w", err))
	}
	defer rows.Close()

	products := make(map[int]domain.Product, len(ids))
	for rows.Next() {
		var p domain.Product
		err := rows.Scan(
			&p.ID, &p.SKU, &p.Name, &p.Barcode, &p.SellingPrice, &p.CostPrice, &p.GSTRate,
			&p.LowStockThreshold, &p.IsActive,
		)
		if err != nil {
			return nil, fmt.Errorf("scanning product row: %w", err)
		}
		products[p.ID] = p
	}

	if err := rows.Err(); err != nil {
		return nil, mysql.Classify(fmt.Errorf("iterating product rows: %w", err))
	}

	return products, nil
}
