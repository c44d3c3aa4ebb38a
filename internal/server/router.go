package server

import (
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/ulule/limiter/v3"
	"github.com/ulule/limiter/v3/drivers/middleware/stdlib"
	"github.com/ulule/limiter/v3/drivers/store/memory"
	"go.uber.org/zap"

	"cashdesk/internal/commons"
	inventory "cashdesk/internal/inventory/controller"
	"cashdesk/internal/product"
	refund "cashdesk/internal/refund/controller"
	sales "cashdesk/internal/sales/controller"
	"cashdesk/internal/sequence"
)

type Controllers struct {
	Invoices  *sales.InvoiceController
	Stock     *inventory.StockController
	Refunds   *refund.RefundController
	Products  *product.Controller
	Sequences *sequence.Controller
}

// rateLimit builds a per-client-IP limiter from a formatted rate such as "600-M".
func rateLimit(rate string) (func(http.Handler) http.Handler, error) {
	parsed, err := limiter.NewRateFromFormatted(rate)
	if err != nil {
		return nil, fmt.Errorf("parsing rate limit %q: %w", rate, err)
	}

	instance := limiter.New(memory.NewStore(), parsed)
	return stdlib.NewMiddleware(instance).Handler, nil
}

func healthz(logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		commons.WriteJSON(w, http.StatusOK, map[string]string{"status": "ok"}, logger)
	}
}

func NewRouter(c Controllers, rate string, logger *zap.Logger) (http.Handler, error) {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)

	if rate != "" {
		mw, err := rateLimit(rate)
		if err != nil {
			return nil, err
		}
		r.Use(mw)
		logger.Info("rate limiting enabled", zap.String("rate", rate))
	}

	r.Get("/healthz", healthz(logger))

	r.Route("/api/v1", func(r chi.Router) {
		r.Route("/sales/invoices", func(r chi.Router) {
			r.Post("/", c.Invoices.CreateInvoice)
			r.Get("/number/{number}", c.Invoices.GetInvoiceByNumber)
			r.Get("/{id}", c.Invoices.GetInvoice)
			r.Post("/{id}/cancel", c.Invoices.CancelInvoice)
			r.Post("/{id}/payments", c.Invoices.RecordPayment)
			r.Get("/{id}/payments", c.Invoices.ListPayments)
		})

		r.Route("/inventory", func(r chi.Router) {
			r.Get("/alerts", c.Stock.ListAlerts)
			r.Get("/{productId}", c.Stock.GetStock)
			r.Get("/{productId}/movements", c.Stock.ListMovements)
			r.Post("/{productId}/movements", c.Stock.RecordMovement)
			r.Get("/{productId}/reconcile", c.Stock.Reconcile)
		})

		r.Route("/refunds", func(r chi.Router) {
			r.Post("/", c.Refunds.CreateRefund)
			r.Get("/pending", c.Refunds.ListPending)
			r.Get("/invoice/{invoiceId}", c.Refunds.ListByInvoice)
			r.Get("/{id}", c.Refunds.GetRefund)
			r.Post("/{id}/approve", c.Refunds.ApproveRefund)
			r.Post("/{id}/reject", c.Refunds.RejectRefund)
			r.Post("/{id}/cancel", c.Refunds.CancelRefund)
		})

		r.Post("/products/search", c.Products.HandleSearchProducts)

		r.Route("/admin/invoice-sequence", func(r chi.Router) {
			r.Get("/", c.Sequences.HandleGetSequence)
			r.Post("/reset", c.Sequences.HandleResetSequence)
		})
	})

	return r, nil
}
