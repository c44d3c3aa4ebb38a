package inventory

import (
	"database/sql"

	"go.uber.org/zap"

	"cashdesk/internal/commons"
	"cashdesk/internal/config"
	"cashdesk/internal/infrastructure/mysql"
	"cashdesk/internal/inventory/controller"
	"cashdesk/internal/inventory/repository"
	"cashdesk/internal/inventory/service"
)

type Module struct {
	Ledger     *service.LedgerService
	Alerts     *service.AlertService
	Controller *controller.StockController
}

// NewModule wires the stock ledger. locker may be nil, in which case scans are only
// serialized within this process.
func NewModule(db *sql.DB, cfg *config.Config, locker service.Locker, notifier service.Notifier, logger *zap.Logger) *Module {
	repo := repository.NewMySQLStockRepository(db)
	retrier := commons.NewRetrier(cfg.Sales.MaxRetryAttempts, mysql.IsRetryable, logger)

	ledger := service.NewLedgerService(
		mysql.NewTransactionManager(db),
		repo,
		retrier,
		cfg.Database.TxTimeout,
		logger,
	)
	alerts := service.NewAlertService(repo, locker, notifier, cfg.Alerts.Interval, cfg.Alerts.LockTTL, logger)

	return &Module{
		Ledger:     ledger,
		Alerts:     alerts,
		Controller: controller.NewStockController(ledger, alerts, notifier, logger),
	}
}
