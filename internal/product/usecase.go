package product

import (
	"context"

	"cashdesk/internal/domain"
)

type searchUseCase struct {
	repo Repository
}

func NewSearchUseCase(repo Repository) SearchUseCase {
	return &searchUseCase{repo: repo}
}

// uniqueIDs drops repeated ids and keeps the order the till sent them in.
func uniqueIDs(ids []int) []int {
	seen := make(map[int]struct{}, len(ids))
	out := make([]int, 0, len(ids))
	for _, id := range ids {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}

func toProductDTO(item domain.CatalogItem) ProductDTO {
	return ProductDTO{
		ID:                item.ID,
		SKU:               item.SKU,
		Name:              item.Name,
		Barcode:           item.BarcodeOrEmpty(),
		SellingPrice:      item.SellingPrice,
		GSTRate:           item.GSTRate,
		CurrentStock:      item.CurrentStock,
		ReservedStock:     item.ReservedStock,
		AvailableStock:    item.AvailableStock(),
		LowStockThreshold: item.LowStockThreshold,
		IsActive:          item.IsActive,
	}
}

// SearchProducts answers in request order; ids the catalog does not know go to NotFound.
func (uc *searchUseCase) SearchProducts(ctx context.Context, req SearchProductsRequest) (*SearchProductsResponse, error) {
	ids := uniqueIDs(req.ProductIDs)

	items, err := uc.repo.FindByIDs(ctx, ids)
	if err != nil {
		return nil, err
	}

	byID := make(map[int]domain.CatalogItem, len(items))
	for _, item := range items {
		byID[item.ID] = item
	}

	resp := &SearchProductsResponse{
		Products: make([]ProductDTO, 0, len(items)),
		NotFound: []int{},
	}
	for _, id := range ids {
		item, ok := byID[id]
		if !ok {
			resp.NotFound = append(resp.NotFound, id)
			continue
		}
		resp.Products = append(resp.Products, toProductDTO(item))
	}
	return resp, nil
}
