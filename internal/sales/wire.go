package sales

import (
	"database/sql"

	"go.uber.org/zap"

	cashierrepo "cashdesk/internal/cashier/repository"
	"cashdesk/internal/commons"
	"cashdesk/internal/config"
	"cashdesk/internal/domain"
	apperrors "cashdesk/internal/errors"
	"cashdesk/internal/infrastructure/mysql"
	productrepo "cashdesk/internal/product/repository"
	refundrepo "cashdesk/internal/refund/repository"
	"cashdesk/internal/sales/controller"
	salesrepo "cashdesk/internal/sales/repository"
	"cashdesk/internal/sales/service"
	"cashdesk/internal/sales/usecase"
	"cashdesk/internal/tax"
)

// retryable also covers a number that collides after an administrative sequence reset;
// the next attempt draws a fresh one.
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
) (*usecase.SaleUseCase, *controller.InvoiceController) {
	invoiceRepo := salesrepo.NewMySQLInvoiceRepository(db)

	rounding := tax.NoRounding
	if cfg.Sales.RoundGrandTotal {
		rounding = tax.NearestUnit
	}

	saleSvc := service.NewSaleService(
		mysql.NewTransactionManager(db),
		ledger,
		productrepo.NewMySQLRepository(db),
		invoiceRepo,
		refundrepo.NewMySQLRefundRepository(db),
		rounding,
		cfg.Database.TxTimeout,
		logger,
	)

	uc := usecase.NewSaleUseCase(
		cashierrepo.NewMySQLCashierRepository(db),
		numbers,
		saleSvc,
		invoiceRepo,
		notifier,
		commons.NewRetrier(cfg.Sales.MaxRetryAttempts, retryable, logger),
		usecase.Options{
			InvoicePrefix:    cfg.Sales.InvoicePrefix,
			DefaultTaxPolicy: domain.TaxPolicy(cfg.Sales.TaxPolicy),
			PhoneRegion:      cfg.Sales.PhoneRegion,
		},
		logger,
	)

	return uc, controller.NewInvoiceController(uc, logger)
}
