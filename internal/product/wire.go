package product

import (
	"database/sql"

	"go.uber.org/zap"

	"cashdesk/internal/product/repository"
)

func NewModule(db *sql.DB, logger *zap.Logger) *Controller {
	repo := repository.NewMySQLRepository(db)
	uc := NewSearchUseCase(repo)
	return NewController(uc, logger)
}
