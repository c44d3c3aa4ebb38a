package usecase

import (
	"context"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
	"github.com/ttacon/libphonenumber"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.uber.org/zap"

	"cashdesk/internal/commons"
	"cashdesk/internal/domain"
	apperrors "cashdesk/internal/errors"
	"cashdesk/internal/events"
	"cashdesk/internal/sales/service"
)

var tracer = otel.Tracer("cashdesk/sales")

var hundred = decimal.NewFromInt(100)

type CashierRepository interface {
	FindByID(ctx context.Context, id int) (*domain.Cashier, error)
}

type NumberGenerator interface {
	Next(ctx context.Context, prefix string) (string, error)
}

type SaleService interface {
	CreateInvoice(ctx context.Context, draft service.SaleDraft) (*domain.SalesInvoice, error)
	CancelInvoice(ctx context.Context, invoiceID uint, actorID int, reason string) (*domain.SalesInvoice, error)
	RecordPayment(ctx context.Context, cmd service.PaymentCommand) (*domain.SalesInvoice, *domain.Payment, error)
}

type InvoiceReader interface {
	FindByID(ctx context.Context, id uint) (*domain.SalesInvoice, error)
	FindByNumber(ctx context.Context, number string) (*domain.SalesInvoice, error)
	ListPayments(ctx context.Context, invoiceID uint) ([]domain.Payment, error)
}

type Notifier interface {
	Notify(ctx context.Context, t events.Type, payload any)
}

type CreateInvoiceCommand struct {
	CashierID int
	Customer  domain.Customer
	// TaxPolicy falls back to the store default when empty.
	TaxPolicy domain.TaxPolicy
	Notes     *string
	Lines     []service.LineRequest
}

type Options struct {
	InvoicePrefix    string
	DefaultTaxPolicy domain.TaxPolicy
	PhoneRegion      string
}

// InvoiceSummary is the payload of invoice events.
type InvoiceSummary struct {
	InvoiceID     uint   `json:"invoiceId"`
	InvoiceNumber string `json:"invoiceNumber"`
	CashierID     int    `json:"cashierId"`
	CounterID     int    `json:"counterId"`
	GrandTotal    string `json:"grandTotal"`
	AmountPaid    string `json:"amountPaid"`
	PaymentStatus string `json:"paymentStatus"`
	LineCount     int    `json:"lineCount"`
}

func summarize(inv *domain.SalesInvoice) InvoiceSummary {
	return InvoiceSummary{
		InvoiceID:     inv.ID,
		InvoiceNumber: inv.InvoiceNumber,
		CashierID:     inv.CashierID,
		CounterID:     inv.CounterID,
		GrandTotal:    inv.GrandTotal.StringFixed(2),
		AmountPaid:    inv.AmountPaid.StringFixed(2),
		PaymentStatus: string(inv.PaymentStatus),
		LineCount:     len(inv.Lines),
	}
}

type SaleUseCase struct {
	cashiers CashierRepository
	numbers  NumberGenerator
	service  SaleService
	reader   InvoiceReader
	notifier Notifier
	retrier  *commons.Retrier
	opts     Options
	logger   *zap.Logger
}

func NewSaleUseCase(
	cashiers CashierRepository,
	numbers NumberGenerator,
	service SaleService,
	reader InvoiceReader,
	notifier Notifier,
	retrier *commons.Retrier,
	opts Options,
	logger *zap.Logger,
) *SaleUseCase {
	return &SaleUseCase{
		cashiers: cashiers,
		numbers:  numbers,
		service:  service,
		reader:   reader,
		notifier: notifier,
		retrier:  retrier,
		opts:     opts,
		logger:   logger,
	}
}

func (uc *SaleUseCase) CreateInvoice(ctx context.Context, cmd CreateInvoiceCommand) (*domain.SalesInvoice, error) {
	ctx, span := tracer.Start(ctx, "SaleUseCase.CreateInvoice")
	defer span.End()

	uc.logger.Info("sale started", zap.Int("cashierId", cmd.CashierID), zap.Int("lineCount", len(cmd.Lines)))

	// 1. Validate outside any transaction
	if cmd.TaxPolicy == "" {
		cmd.TaxPolicy = uc.opts.DefaultTaxPolicy
	}
	customer, err := uc.validate(cmd)
	if err != nil {
		return nil, err
	}

	// 2. Resolve who is selling and where
	cashier, err := uc.cashiers.FindByID(ctx, cmd.CashierID)
	if err != nil {
		return nil, err
	}
	if !cashier.IsActive {
		return nil, apperrors.NewValidationError("inactive cashier", apperrors.ValidationDetail{
			Field:   "cashierId",
			Message: fmt.Sprintf("cashier %d is not active", cashier.ID),
		})
	}
	if !cashier.HasCounter() {
		return nil, apperrors.NewNoCounterAssignedError(cashier.ID)
	}

	// 3. Number and commit, retrying lock conflicts with a fresh number each time
	var invoice *domain.SalesInvoice
	err = uc.retrier.Do(ctx, "create_invoice", func(ctx context.Context, attempt int) error {
		number, err := uc.numbers.Next(ctx, uc.opts.InvoicePrefix)
		if err != nil {
			return err
		}
		span.SetAttributes(attribute.Int("attempt", attempt), attribute.String("invoice.number", number))

		inv, err := uc.service.CreateInvoice(ctx, service.SaleDraft{
			InvoiceNumber: number,
			CashierID:     cashier.ID,
			CounterID:     *cashier.CounterID,
			Customer:      customer,
			TaxPolicy:     cmd.TaxPolicy,
			Notes:         cmd.Notes,
			Lines:         cmd.Lines,
		})
		if err != nil {
			return err
		}
		invoice = inv
		return nil
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "sale failed")
		return nil, err
	}

	// 4. Broadcast after commit
	uc.notifier.Notify(ctx, events.InvoiceCreated, summarize(invoice))
	return invoice, nil
}

func hasAtMostTwoDecimals(d decimal.Decimal) bool {
	return d.Equal(d.Round(2))
}

func (uc *SaleUseCase) validate(cmd CreateInvoiceCommand) (domain.Customer, error) {
	var details []apperrors.ValidationDetail

	if cmd.CashierID <= 0 {
		details = append(details, apperrors.ValidationDetail{Field: "cashierId", Message: "cashierId must be a positive integer"})
	}
	if len(cmd.Lines) == 0 {
		details = append(details, apperrors.ValidationDetail{Field: "lines", Message: "an invoice needs at least one line"})
	}
	if !cmd.TaxPolicy.Valid() {
		details = append(details, apperrors.ValidationDetail{Field: "taxPolicy", Message: "taxPolicy must be INTRA_STATE or INTER_STATE"})
	}

	for i, line := range cmd.Lines {
		field := func(name string) string { return fmt.Sprintf("lines[%d].%s", i, name) }

		if line.ProductID <= 0 {
			details = append(details, apperrors.ValidationDetail{Field: field("productId"), Message: "productId must be a positive integer"})
		}
		if line.Quantity <= 0 {
			details = append(details, apperrors.ValidationDetail{Field: field("quantity"), Message: "quantity must be greater than zero"})
		}
		if line.DiscountPercent.IsNegative() || line.DiscountPercent.GreaterThan(hundred) || !hasAtMostTwoDecimals(line.DiscountPercent) {
			details = append(details, apperrors.ValidationDetail{Field: field("discountPercent"), Message: "discountPercent must be between 0 and 100 with at most 2 decimals"})
		}
		if p := line.UnitPriceOverride; p != nil && (p.IsNegative() || !hasAtMostTwoDecimals(*p)) {
			details = append(details, apperrors.ValidationDetail{Field: field("unitPrice"), Message: "unitPrice must be non-negative with at most 2 decimals"})
		}
	}

	customer := cmd.Customer
	if customer.Phone != nil && strings.TrimSpace(*customer.Phone) != "" {
		normalized, err := normalizePhone(*customer.Phone, uc.opts.PhoneRegion)
		if err != nil {
			details = append(details, apperrors.ValidationDetail{Field: "customer.phone", Message: err.Error()})
		} else {
			customer.Phone = &normalized
		}
	}

	if len(details) > 0 {
		return domain.Customer{}, apperrors.NewValidationError("invalid sale", details...)
	}
	return customer, nil
}

// normalizePhone returns the number in E.164 form.
func normalizePhone(raw, region string) (string, error) {
	num, err := libphonenumber.Parse(raw, region)
	if err != nil {
		return "", fmt.Errorf("phone number could not be parsed")
	}
	if !libphonenumber.IsValidNumber(num) {
		return "", fmt.Errorf("phone number is not valid for region %s", region)
	}
	return libphonenumber.Format(num, libphonenumber.E164), nil
}

func (uc *SaleUseCase) CancelInvoice(ctx context.Context, invoiceID uint, actorID int, reason string) (*domain.SalesInvoice, error) {
	if strings.TrimSpace(reason) == "" {
		return nil, apperrors.NewValidationError("invalid cancellation", apperrors.ValidationDetail{Field: "reason", Message: "reason is required"})
	}

	var invoice *domain.SalesInvoice
	err := uc.retrier.Do(ctx, "cancel_invoice", func(ctx context.Context, attempt int) error {
		inv, err := uc.service.CancelInvoice(ctx, invoiceID, actorID, reason)
		if err != nil {
			return err
		}
		invoice = inv
		return nil
	})
	if err != nil {
		return nil, err
	}

	uc.notifier.Notify(ctx, events.InvoiceCancelled, summarize(invoice))
	return invoice, nil
}

func (uc *SaleUseCase) RecordPayment(ctx context.Context, cmd service.PaymentCommand) (*domain.SalesInvoice, *domain.Payment, error) {
	if !hasAtMostTwoDecimals(cmd.Amount) {
		return nil, nil, apperrors.NewValidationError("invalid payment", apperrors.ValidationDetail{Field: "amount", Message: "amount must have at most 2 decimals"})
	}

	var (
		invoice *domain.SalesInvoice
		payment *domain.Payment
	)
	err := uc.retrier.Do(ctx, "record_payment", func(ctx context.Context, attempt int) error {
		inv, p, err := uc.service.RecordPayment(ctx, cmd)
		if err != nil {
			return err
		}
		invoice, payment = inv, p
		return nil
	})
	if err != nil {
		return nil, nil, err
	}

	uc.notifier.Notify(ctx, events.PaymentRecorded, summarize(invoice))
	return invoice, payment, nil
}

func (uc *SaleUseCase) GetInvoice(ctx context.Context, id uint) (*domain.SalesInvoice, error) {
	return uc.reader.FindByID(ctx, id)
}

func (uc *SaleUseCase) GetInvoiceByNumber(ctx context.Context, number string) (*domain.SalesInvoice, error) {
	return uc.reader.FindByNumber(ctx, number)
}

func (uc *SaleUseCase) ListPayments(ctx context.Context, invoiceID uint) ([]domain.Payment, error) {
	if _, err := uc.reader.FindByID(ctx, invoiceID); err != nil {
		return nil, err
	}
	return uc.reader.ListPayments(ctx, invoiceID)
}
