package domain

import "github.com/shopspring/decimal"

// Product is owned by the catalog; this core only reads it.
type Product struct {
	ID                int             `db:"id"`
	SKU               string          `db:"sku"`
	Name              string          `db:"name"`
	Barcode           *string         `db:"barcode"`
	SellingPrice      decimal.Decimal `db:"selling_price"`
	CostPrice         decimal.Decimal `db:"cost_price"`
	GSTRate           decimal.Decimal `db:"gst_rate"`
	LowStockThreshold int             `db:"low_stock_threshold"`
	IsActive          bool            `db:"is_active"`
}

func (p Product) BarcodeOrEmpty() string {
	if p.Barcode == nil {
		return ""
	}
	return *p.Barcode
}

// CatalogItem is a product joined with its current stock projection.
type CatalogItem struct {
	Product
	CurrentStock  int `db:"current_stock"`
	ReservedStock int `db:"reserved_stock"`
}

func (c CatalogItem) AvailableStock() int {
	return availableStock(c.CurrentStock, c.ReservedStock)
}
