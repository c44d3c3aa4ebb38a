package testutil

import (
	"context"
	"database/sql"
	"fmt"
	"testing"

	_ "github.com/go-sql-driver/mysql"

	"cashdesk/internal/infrastructure/mysql"
)

// SetupTestDB opens the test database. It expects a MySQL server on localhost:3306 with
// a database named 'cashdesk_test' and skips the test when none is reachable.
func SetupTestDB(t *testing.T) *sql.DB {
	dsn := "root:@tcp(localhost:3306)/cashdesk_test?parseTime=true&loc=UTC"
	db, err := sql.Open("mysql", dsn)
	if err != nil {
		t.Fatalf("failed to open test database: %v", err)
	}

	// Verify connection
	err = db.Ping()
	if err != nil {
		t.Skipf("test database not available: %v", err)
	}

	return db
}

// CleanupTestDB empties every table, children first, and closes the pool.
func CleanupTestDB(t *testing.T, db *sql.DB) {
	if db == nil {
		return
	}

	tables := []string{
		"refunds", "invoice_payments", "invoice_tax_details", "invoice_lines", "sales_invoices",
		"stock_movements", "stock_states", "cashiers", "products", "sequences",
	}
	for _, table := range tables {
		_, err := db.Exec(fmt.Sprintf("DELETE FROM %s", table))
		if err != nil {
			t.Logf("failed to clean table %s: %v", table, err)
		}
	}

	db.Close()
}

// SetupTestTables applies the production schema.
func SetupTestTables(t *testing.T, db *sql.DB) {
	if err := mysql.Migrate(context.Background(), db); err != nil {
		t.Fatalf("failed to create tables: %v", err)
	}
}

// SeedProduct inserts an active product with its stock row and returns the product id.
func SeedProduct(t *testing.T, db *sql.DB, sku string, price, gstRate string, stock int) int {
	t.Helper()

	result, err := db.Exec(`
		INSERT INTO products (sku, name, barcode, selling_price, cost_price, gst_rate, low_stock_threshold, is_active)
		VALUES (?, ?, NULL, ?, 0.00, ?, 5, 1)`,
		sku, "Product "+sku, price, gstRate,
	)
	if err != nil {
		t.Fatalf("failed to seed product %s: %v", sku, err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		t.Fatalf("failed to read product id: %v", err)
	}

	_, err = db.Exec(`
		INSERT INTO stock_states (product_id, initial_stock, current_stock, reserved_stock, version, created_at, updated_at)
		VALUES (?, ?, ?, 0, 0, UTC_TIMESTAMP(6), UTC_TIMESTAMP(6))`,
		id, stock, stock,
	)
	if err != nil {
		t.Fatalf("failed to seed stock for %s: %v", sku, err)
	}

	return int(id)
}

// SeedCashier inserts a cashier, optionally assigned to a counter, and returns its id.
func SeedCashier(t *testing.T, db *sql.DB, username string, counterID *int) int {
	t.Helper()

	result, err := db.Exec(`
		INSERT INTO cashiers (username, full_name, counter_id, is_active) VALUES (?, ?, ?, 1)`,
		username, "Cashier "+username, counterID,
	)
	if err != nil {
		t.Fatalf("failed to seed cashier %s: %v", username, err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		t.Fatalf("failed to read cashier id: %v", err)
	}
	return int(id)
}
