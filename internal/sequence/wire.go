package sequence

import (
	"database/sql"

	"go.uber.org/zap"

	"cashdesk/internal/sequence/repository"
)

// NewModule returns the generator used by sales and refunds, and the admin controller.
func NewModule(db *sql.DB, logger *zap.Logger) (*Generator, *Controller) {
	repo := repository.NewMySQLSequenceRepository(db)
	gen := NewGenerator(repo, logger)
	return gen, NewController(gen, logger)
}
