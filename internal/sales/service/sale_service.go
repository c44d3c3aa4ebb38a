package service

import (
	"context"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"cashdesk/internal/domain"
	apperrors "cashdesk/internal/errors"
	"cashdesk/internal/infrastructure/mysql"
	"cashdesk/internal/tax"
)

type Ledger interface {
	LockProducts(ctx context.Context, tx mysql.Tx, productIDs []int) (map[int]domain.StockState, error)
	ApplyMovementTx(ctx context.Context, tx mysql.Tx, cmd domain.MovementCommand) (*domain.StockMovement, error)
}

type ProductRepository interface {
	FindByIDsTx(ctx context.Context, tx mysql.Tx, ids []int) (map[int]domain.Product, error)
}

type InvoiceRepository interface {
	Insert(ctx context.Context, tx mysql.Tx, inv *domain.SalesInvoice) (uint, error)
	FindByIDForUpdate(ctx context.Context, tx mysql.Tx, id uint) (*domain.SalesInvoice, error)
	UpdatePayment(ctx context.Context, tx mysql.Tx, inv *domain.SalesInvoice, expectedVersion int) error
	UpdateCancellation(ctx context.Context, tx mysql.Tx, inv *domain.SalesInvoice, expectedVersion int) error
	InsertPayment(ctx context.Context, tx mysql.Tx, p domain.Payment) (uint, error)
}

// RefundCounter reports refunds that still hold returnable quantity of an invoice.
type RefundCounter interface {
	CountActiveByInvoice(ctx context.Context, tx mysql.Tx, invoiceID uint) (int, error)
}

type LineRequest struct {
	ProductID         int
	Quantity          int
	DiscountPercent   decimal.Decimal
	UnitPriceOverride *decimal.Decimal
}

// SaleDraft is a validated sale whose cashier, counter and number are already resolved.
type SaleDraft struct {
	InvoiceNumber string
	CashierID     int
	CounterID     int
	Customer      domain.Customer
	TaxPolicy     domain.TaxPolicy
	Notes         *string
	Lines         []LineRequest
}

type PaymentCommand struct {
	InvoiceID  uint
	Mode       domain.PaymentMode
	Amount     decimal.Decimal
	Reference  *string
	ReceivedBy int
}

type SaleService struct {
	tm        mysql.TransactionManager
	ledger    Ledger
	products  ProductRepository
	invoices  InvoiceRepository
	refunds   RefundCounter
	rounding  tax.RoundingPolicy
	txTimeout time.Duration
	now       func() time.Time
	logger    *zap.Logger
}

func NewSaleService(
	tm mysql.TransactionManager,
	ledger Ledger,
	products ProductRepository,
	invoices InvoiceRepository,
	refunds RefundCounter,
	rounding tax.RoundingPolicy,
	txTimeout time.Duration,
	logger *zap.Logger,
) *SaleService {
	return &SaleService{
		tm:        tm,
		ledger:    ledger,
		products:  products,
		invoices:  invoices,
		refunds:   refunds,
		rounding:  rounding,
		txTimeout: txTimeout,
		now:       func() time.Time { return time.Now().UTC() },
		logger:    logger,
	}
}

func productIDs(lines []LineRequest) []int {
	ids := make([]int, 0, len(lines))
	for _, l := range lines {
		ids = append(ids, l.ProductID)
	}
	return ids
}

// CreateInvoice runs one attempt of a sale: either the invoice, its lines and every stock
// decrement are committed together, or nothing is.
func (s *SaleService) CreateInvoice(ctx context.Context, draft SaleDraft) (*domain.SalesInvoice, error) {
	var invoice *domain.SalesInvoice

	err := mysql.RunInTx(ctx, s.tm, s.txTimeout, func(ctx context.Context, tx mysql.Tx) error {
		ids := productIDs(draft.Lines)

		// 1. Lock every stock row up front, lowest product id first
		if _, err := s.ledger.LockProducts(ctx, tx, ids); err != nil {
			return err
		}

		// 2. Snapshot catalog data and compute line taxes in caller order
		products, err := s.products.FindByIDsTx(ctx, tx, ids)
		if err != nil {
			return err
		}

		inv, err := s.buildInvoice(draft, products)
		if err != nil {
			return err
		}

		// 3. Persist the invoice so movements can reference it
		if _, err := s.invoices.Insert(ctx, tx, inv); err != nil {
			return err
		}

		// 4. Decrement stock per line; any shortfall aborts the whole sale
		for _, line := range inv.Lines {
			_, err := s.ledger.ApplyMovementTx(ctx, tx, domain.MovementCommand{
				ProductID:     line.ProductID,
				Type:          domain.MovementOut,
				Quantity:      line.Quantity,
				Reason:        inv.InvoiceNumber,
				ReferenceType: domain.ReferenceInvoice,
				ReferenceID:   &inv.ID,
				ActorID:       inv.CashierID,
			})
			if err != nil {
				return err
			}
		}

		invoice = inv
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("invoice created",
		zap.String("invoiceNumber", invoice.InvoiceNumber),
		zap.Uint("invoiceId", invoice.ID),
		zap.Int("lines", len(invoice.Lines)),
		zap.String("grandTotal", invoice.GrandTotal.StringFixed(2)),
	)
	return invoice, nil
}

func (s *SaleService) buildInvoice(draft SaleDraft, products map[int]domain.Product) (*domain.SalesInvoice, error) {
	now := s.now()
	lines := make([]domain.InvoiceLine, 0, len(draft.Lines))
	lineTaxes := make([]tax.LineTax, 0, len(draft.Lines))
	rateLines := make([]tax.RateLine, 0, len(draft.Lines))

	for i, req := range draft.Lines {
		product, ok := products[req.ProductID]
		if !ok {
			return nil, apperrors.NewNotFoundError(fmt.Sprintf("product %d not found", req.ProductID))
		}
		if !product.IsActive {
			return nil, apperrors.NewValidationError("inactive product", apperrors.ValidationDetail{
				Field:   fmt.Sprintf("lines[%d].productId", i),
				Message: fmt.Sprintf("product %d is not available for sale", req.ProductID),
			})
		}

		unitPrice := product.SellingPrice
		if req.UnitPriceOverride != nil {
			unitPrice = *req.UnitPriceOverride
		}

		lt, err := tax.ComputeLine(tax.LineInput{
			UnitPrice:       unitPrice,
			Quantity:        req.Quantity,
			DiscountPercent: req.DiscountPercent,
			GSTRate:         product.GSTRate,
			Policy:          draft.TaxPolicy,
		})
		if err != nil {
			return nil, err
		}

		lines = append(lines, domain.InvoiceLine{
			LineNumber:      i + 1,
			ProductID:       product.ID,
			ProductName:     product.Name,
			ProductSKU:      product.SKU,
			ProductBarcode:  product.Barcode,
			UnitPrice:       unitPrice,
			Quantity:        req.Quantity,
			DiscountPercent: req.DiscountPercent,
			DiscountAmount:  lt.DiscountAmount,
			LineTotal:       lt.LineTotal,
			TaxableAmount:   lt.TaxableAmount,
			GSTRate:         product.GSTRate,
			CGST:            lt.CGST,
			SGST:            lt.SGST,
			IGST:            lt.IGST,
			FinalAmount:     lt.FinalAmount,
		})
		lineTaxes = append(lineTaxes, lt)
		rateLines = append(rateLines, tax.RateLine{GSTRate: product.GSTRate, Tax: lt})
	}

	totals := tax.Aggregate(lineTaxes, s.rounding)

	details := make([]domain.InvoiceTaxDetail, 0)
	for _, summary := range tax.Breakdown(rateLines) {
		details = append(details, domain.InvoiceTaxDetail{
			GSTRate:       summary.GSTRate,
			TaxableAmount: summary.TaxableAmount,
			CGST:          summary.CGST,
			SGST:          summary.SGST,
			IGST:          summary.IGST,
		})
	}

	inv := &domain.SalesInvoice{
		InvoiceNumber:  draft.InvoiceNumber,
		IssuedAt:       now,
		CashierID:      draft.CashierID,
		CounterID:      draft.CounterID,
		Customer:       draft.Customer,
		TaxPolicy:      draft.TaxPolicy,
		Lines:          lines,
		TaxDetails:     details,
		Subtotal:       totals.Subtotal,
		DiscountAmount: totals.DiscountAmount,
		TaxableAmount:  totals.TaxableAmount,
		CGST:           totals.CGST,
		SGST:           totals.SGST,
		IGST:           totals.IGST,
		RoundOff:       totals.RoundOff,
		GrandTotal:     totals.GrandTotal,
		AmountPaid:     decimal.Zero,
		PaymentStatus:  domain.InitialPaymentStatus(totals.GrandTotal),
		Notes:          draft.Notes,
		Lifecycle:      domain.NewLifecycle(now),
	}

	if err := inv.CheckTotals(); err != nil {
		return nil, err
	}
	return inv, nil
}

// CancelInvoice voids an unpaid invoice and returns every sold unit to stock.
func (s *SaleService) CancelInvoice(ctx context.Context, invoiceID uint, actorID int, reason string) (*domain.SalesInvoice, error) {
	var invoice *domain.SalesInvoice

	err := mysql.RunInTx(ctx, s.tm, s.txTimeout, func(ctx context.Context, tx mysql.Tx) error {
		inv, err := s.invoices.FindByIDForUpdate(ctx, tx, invoiceID)
		if err != nil {
			return err
		}

		active, err := s.refunds.CountActiveByInvoice(ctx, tx, invoiceID)
		if err != nil {
			return err
		}
		if active > 0 {
			return apperrors.NewInvalidStateError("invoice", "REFUNDED", "cancel")
		}

		expectedVersion := inv.Version
		if err := inv.Cancel(actorID, reason, s.now()); err != nil {
			return err
		}

		ids := make([]int, 0, len(inv.Lines))
		for _, line := range inv.Lines {
			ids = append(ids, line.ProductID)
		}
		if _, err := s.ledger.LockProducts(ctx, tx, ids); err != nil {
			return err
		}

		for _, line := range inv.Lines {
			_, err := s.ledger.ApplyMovementTx(ctx, tx, domain.MovementCommand{
				ProductID:     line.ProductID,
				Type:          domain.MovementReturn,
				Quantity:      line.Quantity,
				Reason:        "cancellation of " + inv.InvoiceNumber,
				ReferenceType: domain.ReferenceInvoiceCancellation,
				ReferenceID:   &inv.ID,
				ActorID:       actorID,
			})
			if err != nil {
				return err
			}
		}

		if err := s.invoices.UpdateCancellation(ctx, tx, inv, expectedVersion); err != nil {
			return err
		}

		invoice = inv
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("invoice cancelled",
		zap.String("invoiceNumber", invoice.InvoiceNumber),
		zap.Int("actorId", actorID),
	)
	return invoice, nil
}

func (s *SaleService) RecordPayment(ctx context.Context, cmd PaymentCommand) (*domain.SalesInvoice, *domain.Payment, error) {
	var (
		invoice *domain.SalesInvoice
		payment *domain.Payment
	)

	err := mysql.RunInTx(ctx, s.tm, s.txTimeout, func(ctx context.Context, tx mysql.Tx) error {
		inv, err := s.invoices.FindByIDForUpdate(ctx, tx, cmd.InvoiceID)
		if err != nil {
			return err
		}

		now := s.now()
		expectedVersion := inv.Version
		if _, err := inv.ApplyPayment(cmd.Amount, now); err != nil {
			return err
		}

		p := domain.Payment{
			InvoiceID:  inv.ID,
			Mode:       cmd.Mode,
			Amount:     cmd.Amount,
			Reference:  cmd.Reference,
			ReceivedBy: cmd.ReceivedBy,
			CreatedAt:  now,
		}
		id, err := s.invoices.InsertPayment(ctx, tx, p)
		if err != nil {
			return err
		}
		p.ID = id

		if err := s.invoices.UpdatePayment(ctx, tx, inv, expectedVersion); err != nil {
			return err
		}

		invoice = inv
		payment = &p
		return nil
	})
	if err != nil {
		return nil, nil, err
	}

	s.logger.Info("payment recorded",
		zap.String("invoiceNumber", invoice.InvoiceNumber),
		zap.String("amount", payment.Amount.StringFixed(2)),
		zap.String("paymentStatus", string(invoice.PaymentStatus)),
	)
	return invoice, payment, nil
}
