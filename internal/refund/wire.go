package refund

import (
	"database/sql"

	"go.uber.org/zap"

	"cashdesk/internal/commons"
	"cashdesk/internal/config"
	apperrors "cashdesk/internal/errors"
	"cashdesk/internal/infrastructure/mysql"
	"cashdesk/internal/refund/controller"
	refundrepo "cashdesk/internal/refund/repository"
	"cashdesk/internal/refund/service"
	"cashdesk/internal/refund/usecase"
	salesrepo "cashdesk/internal/sales/repository"
)

func retryable(err error) bool {
	if mysql.IsRetryable(err) {
		return true
	}
	_, ok := apperrors.IsDuplicateNumberError(err)
	return ok
}

func NewModule(
	db *sql.DB,
	cfg *config.Config,
	ledger service.Ledger,
	numbers usecase.NumberGenerator,
	notifier usecase.Notifier,
	logger *zap.Logger,
) (*usecase.RefundUseCase, *controller.RefundController) {
	refundRepo := refundrepo.NewMySQLRefundRepository(db)

	svc := service.NewRefundService(
		mysql.NewTransactionManager(db),
		salesrepo.NewMySQLInvoiceRepository(db),
		refundRepo,
		ledger,
		cfg.Database.TxTimeout,
		logger,
	)

	uc := usecase.NewRefundUseCase(
		numbers,
		svc,
		refundRepo,
		notifier,
		commons.NewRetrier(cfg.Sales.MaxRetryAttempts, retryable, logger),
		cfg.Refunds.Prefix,
		logger,
	)

	return uc, controller.NewRefundController(uc, logger)
}
