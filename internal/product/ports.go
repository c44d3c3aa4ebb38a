package product

import (
	"context"

	"cashdesk/internal/domain"
)

type SearchUseCase interface {
	SearchProducts(ctx context.Context, req SearchProductsRequest) (*SearchProductsResponse, error)
}

type Repository interface {
	FindByIDs(ctx context.Context, ids []int) ([]domain.CatalogItem, error)
}
