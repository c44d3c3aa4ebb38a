package product

import "github.com/shopspring/decimal"

type SearchProductsRequest struct {
	ProductIDs []int `json:"productIds" validate:"required,min=1,max=100,dive,gt=0"`
}

type SearchProductsResponse struct {
	TraceID  string       `json:"traceId"`
	Products []ProductDTO `json:"products"`
	NotFound []int        `json:"notFound"`
}

type ProductDTO struct {
	ID                int             `json:"id"`
	SKU               string          `json:"sku"`
	Name              string          `json:"name"`
	Barcode           string          `json:"barcode,omitempty"`
	SellingPrice      decimal.Decimal `json:"sellingPrice"`
	GSTRate           decimal.Decimal `json:"gstRate"`
	CurrentStock      int             `json:"currentStock"`
	ReservedStock     int             `json:"reservedStock"`
	AvailableStock    int             `json:"availableStock"`
	LowStockThreshold int             `json:"lowStockThreshold"`
	IsActive          bool            `json:"isActive"`
}
