// Package memstore is an in-memory stand-in for the MySQL repositories. A transaction holds
// a store-wide lock until it commits or rolls back, which gives the same serialization the
// row locks give in MySQL. Non-transactional reads take the lock themselves, so they must
// not be called while the same goroutine holds a transaction.
package memstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"cashdesk/internal/domain"
	apperrors "cashdesk/internal/errors"
	"cashdesk/internal/infrastructure/mysql"
)

var errNoSQL = errors.New("memstore: raw SQL is not supported")

type state struct {
	products  map[int]domain.Product
	cashiers  map[int]domain.Cashier
	stock     map[int]domain.StockState
	movements []domain.StockMovement
	invoices  map[uint]domain.SalesInvoice
	payments  []domain.Payment
	refunds   map[uint]domain.Refund

	nextMovementID uint
	nextInvoiceID  uint
	nextLineID     uint
	nextDetailID   uint
	nextPaymentID  uint
	nextRefundID   uint
}

func (s *state) clone() *state {
	c := &state{
		products:       make(map[int]domain.Product, len(s.products)),
		cashiers:       make(map[int]domain.Cashier, len(s.cashiers)),
		stock:          make(map[int]domain.StockState, len(s.stock)),
		movements:      append([]domain.StockMovement(nil), s.movements...),
		invoices:       make(map[uint]domain.SalesInvoice, len(s.invoices)),
		payments:       append([]domain.Payment(nil), s.payments...),
		refunds:        make(map[uint]domain.Refund, len(s.refunds)),
		nextMovementID: s.nextMovementID,
		nextInvoiceID:  s.nextInvoiceID,
		nextLineID:     s.nextLineID,
		nextDetailID:   s.nextDetailID,
		nextPaymentID:  s.nextPaymentID,
		nextRefundID:   s.nextRefundID,
	}
	for k, v := range s.products {
		c.products[k] = v
	}
	for k, v := range s.cashiers {
		c.cashiers[k] = v
	}
	for k, v := range s.stock {
		c.stock[k] = v
	}
	for k, v := range s.invoices {
		c.invoices[k] = copyInvoice(v)
	}
	for k, v := range s.refunds {
		c.refunds[k] = v
	}
	return c
}

func copyInvoice(inv domain.SalesInvoice) domain.SalesInvoice {
	inv.Lines = append([]domain.InvoiceLine(nil), inv.Lines...)
	inv.TaxDetails = append([]domain.InvoiceTaxDetail(nil), inv.TaxDetails...)
	return inv
}

type Store struct {
	mu   sync.Mutex
	data *state

	seqMu     sync.Mutex
	sequences map[string]int64

	// stockConflicts makes the next n stock updates fail with a version conflict.
	stockConflicts int
}

func New() *Store {
	return &Store{
		data: &state{
			products: make(map[int]domain.Product),
			cashiers: make(map[int]domain.Cashier),
			stock:    make(map[int]domain.StockState),
			invoices: make(map[uint]domain.SalesInvoice),
			refunds:  make(map[uint]domain.Refund),
		},
		sequences: make(map[string]int64),
	}
}

// AddProduct seeds a product together with its stock row.
func (s *Store) AddProduct(p domain.Product, stock int) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now().UTC()
	s.data.products[p.ID] = p
	s.data.stock[p.ID] = domain.StockState{
		ProductID:    p.ID,
		InitialStock: stock,
		CurrentStock: stock,
		Lifecycle:    domain.NewLifecycle(now),
	}
}

func (s *Store) AddCashier(c domain.Cashier) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.data.cashiers[c.ID] = c
}

// SetCurrentStock overwrites the projection without a movement, simulating drift.
func (s *Store) SetCurrentStock(productID, current int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	st := s.data.stock[productID]
	st.CurrentStock = current
	s.data.stock[productID] = st
}

func (s *Store) FailStockUpdates(n int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stockConflicts = n
}

func (s *Store) StockOf(productID int) domain.StockState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.data.stock[productID]
}

func (s *Store) MovementsOf(productID int) []domain.StockMovement {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []domain.StockMovement
	for _, m := range s.data.movements {
		if m.ProductID == productID {
			out = append(out, m)
		}
	}
	return out
}

func (s *Store) InvoiceCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.data.invoices)
}

// BeginTx satisfies mysql.TransactionManager.
func (s *Store) BeginTx(ctx context.Context, opts *sql.TxOptions) (mysql.Tx, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.Lock()
	return &tx{store: s, snapshot: s.data.clone()}, nil
}

type tx struct {
	store    *Store
	snapshot *state
	done     bool
}

func (t *tx) ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error) {
	return nil, errNoSQL
}

func (t *tx) QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error) {
	return nil, errNoSQL
}

func (t *tx) QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row {
	return nil
}

func (t *tx) Commit() error {
	if t.done {
		return sql.ErrTxDone
	}
	t.done = true
	t.store.mu.Unlock()
	return nil
}

func (t *tx) Rollback() error {
	if t.done {
		return sql.ErrTxDone
	}
	t.done = true
	t.store.data = t.snapshot
	t.store.mu.Unlock()
	return nil
}

func (s *Store) Products() *ProductRepo { return &ProductRepo{s: s} }
func (s *Store) Cashiers() *CashierRepo { return &CashierRepo{s: s} }
func (s *Store) Stock() *StockRepo { return &StockRepo{s: s} }
func (s *Store) Invoices() *InvoiceRepo { return &InvoiceRepo{s: s} }
func (s *Store) Refunds() *RefundRepo { return &RefundRepo{s: s} }
func (s *Store) Sequences() *SequenceRepo { return &SequenceRepo{s: s} }

type ProductRepo struct{ s *Store }

func (r *ProductRepo) FindByIDsTx(ctx context.Context, _ mysql.Tx, ids []int) (map[int]domain.Product, error) {
	out := make(map[int]domain.Product, len(ids))
	for _, id := range ids {
		if p, ok := r.s.data.products[id]; ok {
			out[id] = p
		}
	}
	return out, nil
}

func (r *ProductRepo) FindByIDs(ctx context.Context, ids []int) ([]domain.CatalogItem, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	var out []domain.CatalogItem
	for _, id := range ids {
		p, ok := r.s.data.products[id]
		if !ok {
			continue
		}
		st := r.s.data.stock[id]
		out = append(out, domain.CatalogItem{Product: p, CurrentStock: st.CurrentStock, ReservedStock: st.ReservedStock})
	}
	return out, nil
}

type CashierRepo struct{ s *Store }

func (r *CashierRepo) FindByID(ctx context.Context, id int) (*domain.Cashier, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	c, ok := r.s.data.cashiers[id]
	if !ok {
		return nil, apperrors.NewNotFoundError(fmt.Sprintf("cashier with id %d not found", id))
	}
	return &c, nil
}

type StockRepo struct{ s *Store }

func (r *StockRepo) FindByProductIDForUpdate(ctx context.Context, _ mysql.Tx, productID int) (*domain.StockState, error) {
	st, ok := r.s.data.stock[productID]
	if !ok {
		return nil, apperrors.NewNotFoundError(fmt.Sprintf("stock for product %d not found", productID))
	}
	return &st, nil
}

func (r *StockRepo) LockForUpdate(ctx context.Context, _ mysql.Tx, productIDs []int) ([]domain.StockState, error) {
	var out []domain.StockState
	for _, id := range productIDs {
		if st, ok := r.s.data.stock[id]; ok {
			out = append(out, st)
		}
	}
	return out, nil
}

func (r *StockRepo) UpdateStock(ctx context.Context, _ mysql.Tx, st domain.StockState, expectedVersion int) error {
	stored, ok := r.s.data.stock[st.ProductID]
	if r.s.stockConflicts > 0 || !ok || stored.Version != expectedVersion {
		if r.s.stockConflicts > 0 {
			r.s.stockConflicts--
		}
		return apperrors.NewConcurrencyConflictError("stock_state", int64(st.ProductID), expectedVersion)
	}
	r.s.data.stock[st.ProductID] = st
	return nil
}

func (r *StockRepo) InsertMovement(ctx context.Context, _ mysql.Tx, m domain.StockMovement) (uint, error) {
	r.s.data.nextMovementID++
	m.ID = r.s.data.nextMovementID
	r.s.data.movements = append(r.s.data.movements, m)
	return m.ID, nil
}

func (r *StockRepo) FindByProductID(ctx context.Context, productID int) (*domain.StockState, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	return r.FindByProductIDForUpdate(ctx, nil, productID)
}

func (r *StockRepo) ListMovements(ctx context.Context, productID int, limit int) ([]domain.StockMovement, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	var out []domain.StockMovement
	for i := len(r.s.data.movements) - 1; i >= 0 && len(out) < limit; i-- {
		if m := r.s.data.movements[i]; m.ProductID == productID {
			out = append(out, m)
		}
	}
	return out, nil
}

func (r *StockRepo) SumMovementDeltas(ctx context.Context, productID int) (int, int, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	net, count := 0, 0
	for _, m := range r.s.data.movements {
		if m.ProductID == productID {
			net += m.Delta()
			count++
		}
	}
	return net, count, nil
}

func (r *StockRepo) ListAlertCandidates(ctx context.Context) ([]domain.CatalogItem, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	var out []domain.CatalogItem
	for id, p := range r.s.data.products {
		st := r.s.data.stock[id]
		if p.IsActive && st.CurrentStock <= p.LowStockThreshold {
			out = append(out, domain.CatalogItem{Product: p, CurrentStock: st.CurrentStock, ReservedStock: st.ReservedStock})
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CurrentStock < out[j].CurrentStock || (out[i].CurrentStock == out[j].CurrentStock && out[i].ID < out[j].ID) })
	return out, nil
}

type InvoiceRepo struct{ s *Store }

func (r *InvoiceRepo) Insert(ctx context.Context, _ mysql.Tx, inv *domain.SalesInvoice) (uint, error) {
	for _, existing := range r.s.data.invoices {
		if existing.InvoiceNumber == inv.InvoiceNumber {
			return 0, apperrors.NewDuplicateNumberError("duplicate document number", nil)
		}
	}

	r.s.data.nextInvoiceID++
	inv.ID = r.s.data.nextInvoiceID
	for i := range inv.Lines {
		r.s.data.nextLineID++
		inv.Lines[i].ID = r.s.data.nextLineID
		inv.Lines[i].InvoiceID = inv.ID
	}
	for i := range inv.TaxDetails {
		r.s.data.nextDetailID++
		inv.TaxDetails[i].ID = r.s.data.nextDetailID
		inv.TaxDetails[i].InvoiceID = inv.ID
	}
	r.s.data.invoices[inv.ID] = copyInvoice(*inv)
	return inv.ID, nil
}

func (r *InvoiceRepo) find(id uint) (*domain.SalesInvoice, error) {
	inv, ok := r.s.data.invoices[id]
	if !ok {
		return nil, apperrors.NewNotFoundError(fmt.Sprintf("invoice with id %d not found", id))
	}
	out := copyInvoice(inv)
	return &out, nil
}

func (r *InvoiceRepo) FindByIDForUpdate(ctx context.Context, _ mysql.Tx, id uint) (*domain.SalesInvoice, error) {
	return r.find(id)
}

func (r *InvoiceRepo) FindByID(ctx context.Context, id uint) (*domain.SalesInvoice, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	return r.find(id)
}

func (r *InvoiceRepo) FindByNumber(ctx context.Context, number string) (*domain.SalesInvoice, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	for id, inv := range r.s.data.invoices {
		if inv.InvoiceNumber == number {
			return r.find(id)
		}
	}
	return nil, apperrors.NewNotFoundError(fmt.Sprintf("invoice %s not found", number))
}

func (r *InvoiceRepo) update(inv *domain.SalesInvoice, expectedVersion int) error {
	stored, ok := r.s.data.invoices[inv.ID]
	if !ok || stored.Version != expectedVersion {
		return apperrors.NewConcurrencyConflictError("invoice", int64(inv.ID), expectedVersion)
	}
	r.s.data.invoices[inv.ID] = copyInvoice(*inv)
	return nil
}

func (r *InvoiceRepo) UpdatePayment(ctx context.Context, _ mysql.Tx, inv *domain.SalesInvoice, expectedVersion int) error {
	return r.update(inv, expectedVersion)
}

func (r *InvoiceRepo) UpdateCancellation(ctx context.Context, _ mysql.Tx, inv *domain.SalesInvoice, expectedVersion int) error {
	return r.update(inv, expectedVersion)
}

func (r *InvoiceRepo) InsertPayment(ctx context.Context, _ mysql.Tx, p domain.Payment) (uint, error) {
	r.s.data.nextPaymentID++
	p.ID = r.s.data.nextPaymentID
	r.s.data.payments = append(r.s.data.payments, p)
	return p.ID, nil
}

func (r *InvoiceRepo) ListPayments(ctx context.Context, invoiceID uint) ([]domain.Payment, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	if _, ok := r.s.data.invoices[invoiceID]; !ok {
		return nil, apperrors.NewNotFoundError(fmt.Sprintf("invoice with id %d not found", invoiceID))
	}
	out := []domain.Payment{}
	for _, p := range r.s.data.payments {
		if p.InvoiceID == invoiceID {
			out = append(out, p)
		}
	}
	return out, nil
}

type RefundRepo struct{ s *Store }

func (r *RefundRepo) Insert(ctx context.Context, _ mysql.Tx, rf *domain.Refund) (uint, error) {
	for _, existing := range r.s.data.refunds {
		if existing.RefundNumber == rf.RefundNumber {
			return 0, apperrors.NewDuplicateNumberError("duplicate document number", nil)
		}
	}
	r.s.data.nextRefundID++
	rf.ID = r.s.data.nextRefundID
	r.s.data.refunds[rf.ID] = *rf
	return rf.ID, nil
}

func (r *RefundRepo) Update(ctx context.Context, _ mysql.Tx, rf *domain.Refund, expectedVersion int) error {
	stored, ok := r.s.data.refunds[rf.ID]
	if !ok || stored.Version != expectedVersion {
		return apperrors.NewConcurrencyConflictError("refund", int64(rf.ID), expectedVersion)
	}
	r.s.data.refunds[rf.ID] = *rf
	return nil
}

func (r *RefundRepo) find(id uint) (*domain.Refund, error) {
	rf, ok := r.s.data.refunds[id]
	if !ok {
		return nil, apperrors.NewNotFoundError(fmt.Sprintf("refund with id %d not found", id))
	}
	return &rf, nil
}

func (r *RefundRepo) FindByIDForUpdate(ctx context.Context, _ mysql.Tx, id uint) (*domain.Refund, error) {
	return r.find(id)
}

func (r *RefundRepo) FindByID(ctx context.Context, id uint) (*domain.Refund, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	return r.find(id)
}

func (r *RefundRepo) sorted(match func(domain.Refund) bool) []domain.Refund {
	out := []domain.Refund{}
	for _, rf := range r.s.data.refunds {
		if match(rf) {
			out = append(out, rf)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func (r *RefundRepo) ListByInvoice(ctx context.Context, invoiceID uint) ([]domain.Refund, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	return r.sorted(func(rf domain.Refund) bool { return rf.OriginalInvoiceID == invoiceID }), nil
}

func (r *RefundRepo) ListByStatus(ctx context.Context, status domain.RefundStatus, limit int) ([]domain.Refund, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	out := r.sorted(func(rf domain.Refund) bool { return rf.Status == status })
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (r *RefundRepo) SumQuantityByLine(ctx context.Context, _ mysql.Tx, invoiceID uint, lineNumber int) (int, error) {
	total := 0
	for _, rf := range r.s.data.refunds {
		if rf.OriginalInvoiceID == invoiceID && rf.InvoiceLineNumber == lineNumber && rf.Status.CountsAgainstSale() {
			total += rf.QuantityReturned
		}
	}
	return total, nil
}

func (r *RefundRepo) CountActiveByInvoice(ctx context.Context, _ mysql.Tx, invoiceID uint) (int, error) {
	count := 0
	for _, rf := range r.s.data.refunds {
		if rf.OriginalInvoiceID == invoiceID && rf.Status.CountsAgainstSale() {
			count++
		}
	}
	return count, nil
}

// SequenceRepo has its own lock; numbers are drawn outside business transactions.
type SequenceRepo struct{ s *Store }

func (r *SequenceRepo) Next(ctx context.Context, name string) (int64, error) {
	r.s.seqMu.Lock()
	defer r.s.seqMu.Unlock()
	r.s.sequences[name]++
	return r.s.sequences[name], nil
}

func (r *SequenceRepo) Current(ctx context.Context, name string) (int64, error) {
	r.s.seqMu.Lock()
	defer r.s.seqMu.Unlock()
	return r.s.sequences[name], nil
}

func (r *SequenceRepo) Set(ctx context.Context, name string, value int64) error {
	r.s.seqMu.Lock()
	defer r.s.seqMu.Unlock()
	r.s.sequences[name] = value
	return nil
}

// Product is a convenience constructor for seeding.
func Product(id int, sku, price, gstRate string) domain.Product {
	return domain.Product{
		ID:                id,
		SKU:               sku,
		Name:              "Product " + strings.ToLower(sku),
		SellingPrice:      decimal.RequireFromString(price),
		CostPrice:         decimal.Zero,
		GSTRate:           decimal.RequireFromString(gstRate),
		LowStockThreshold: 5,
		IsActive:          true,
	}
}
