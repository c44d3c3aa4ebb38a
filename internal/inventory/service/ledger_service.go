package service

import (
	"context"
	"fmt"
	"sort"
	"time"

	"go.uber.org/zap"

	"cashdesk/internal/commons"
	"cashdesk/internal/domain"
	apperrors "cashdesk/internal/errors"
	"cashdesk/internal/infrastructure/mysql"
)

type StockRepository interface {
	FindByProductIDForUpdate(ctx context.Context, tx mysql.Tx, productID int) (*domain.StockState, error)
	LockForUpdate(ctx context.Context, tx mysql.Tx, productIDs []int) ([]domain.StockState, error)
	UpdateStock(ctx context.Context, tx mysql.Tx, state domain.StockState, expectedVersion int) error
	InsertMovement(ctx context.Context, tx mysql.Tx, movement domain.StockMovement) (uint, error)
	FindByProductID(ctx context.Context, productID int) (*domain.StockState, error)
	ListMovements(ctx context.Context, productID int, limit int) ([]domain.StockMovement, error)
	SumMovementDeltas(ctx context.Context, productID int) (int, int, error)
}

const (
	DefaultMovementLimit = 50
	MaxMovementLimit     = 500
)

// Reconciliation compares the stored projection with the value replayed from the ledger.
type Reconciliation struct {
	ProductID     int  `json:"productId"`
	InitialStock  int  `json:"initialStock"`
	CurrentStock  int  `json:"currentStock"`
	LedgerNet     int  `json:"ledgerNet"`
	MovementCount int  `json:"movementCount"`
	ExpectedStock int  `json:"expectedStock"`
	Drift         int  `json:"drift"`
	Consistent    bool `json:"consistent"`
}

// LedgerService is the only writer of stock_states and stock_movements.
type LedgerService struct {
	tm        mysql.TransactionManager
	repo      StockRepository
	retrier   *commons.Retrier
	txTimeout time.Duration
	now       func() time.Time
	logger    *zap.Logger
}

func NewLedgerService(
	tm mysql.TransactionManager,
	repo StockRepository,
	retrier *commons.Retrier,
	txTimeout time.Duration,
	logger *zap.Logger,
) *LedgerService {
	return &LedgerService{
		tm:        tm,
		repo:      repo,
		retrier:   retrier,
		txTimeout: txTimeout,
		now:       func() time.Time { return time.Now().UTC() },
		logger:    logger,
	}
}

// ApplyMovement records a single movement in its own transaction, retrying lock and version conflicts.
func (s *LedgerService) ApplyMovement(ctx context.Context, cmd domain.MovementCommand) (*domain.StockMovement, error) {
	if _, err := cmd.Delta(); err != nil {
		return nil, err
	}

	var movement *domain.StockMovement
	err := s.retrier.Do(ctx, "apply_movement", func(ctx context.Context, attempt int) error {
		return mysql.RunInTx(ctx, s.tm, s.txTimeout, func(ctx context.Context, tx mysql.Tx) error {
			m, err := s.ApplyMovementTx(ctx, tx, cmd)
			if err != nil {
				return err
			}
			movement = m
			return nil
		})
	})
	if err != nil {
		return nil, err
	}
	return movement, nil
}

// ApplyMovementTx records a movement inside the caller's transaction. Nothing is written
// when the movement is rejected.
func (s *LedgerService) ApplyMovementTx(ctx context.Context, tx mysql.Tx, cmd domain.MovementCommand) (*domain.StockMovement, error) {
	// 1. Validate before touching any row
	if _, err := cmd.Delta(); err != nil {
		return nil, err
	}

	// 2. Lock the projection row
	state, err := s.repo.FindByProductIDForUpdate(ctx, tx, cmd.ProductID)
	if err != nil {
		return nil, err
	}
	expectedVersion := state.Version

	// 3. Compute the movement against the locked state
	movement, err := state.Apply(cmd, s.now())
	if err != nil {
		if ise, ok := apperrors.IsInsufficientStockError(err); ok {
			s.logger.Info("stock movement rejected",
				zap.Int("productId", ise.ProductID),
				zap.Int("requested", ise.Requested),
				zap.Int("available", ise.Available),
				zap.String("movementType", string(cmd.Type)),
			)
		}
		return nil, err
	}

	// 4. Append to the ledger, then move the projection with a version check
	id, err := s.repo.InsertMovement(ctx, tx, *movement)
	if err != nil {
		return nil, err
	}
	movement.ID = id

	if err := s.repo.UpdateStock(ctx, tx, *state, expectedVersion); err != nil {
		return nil, err
	}

	s.logger.Debug("stock movement recorded",
		zap.Uint("movementId", id),
		zap.Int("productId", movement.ProductID),
		zap.String("movementType", string(movement.MovementType)),
		zap.Int("previousStock", movement.PreviousStock),
		zap.Int("newStock", movement.NewStock),
	)
	return movement, nil
}

// LockProducts locks the stock rows of every distinct product in ascending id order, so
// concurrent multi-line transactions always acquire locks in the same sequence.
func (s *LedgerService) LockProducts(ctx context.Context, tx mysql.Tx, productIDs []int) (map[int]domain.StockState, error) {
	ids := uniqueSorted(productIDs)

	states, err := s.repo.LockForUpdate(ctx, tx, ids)
	if err != nil {
		return nil, err
	}

	locked := make(map[int]domain.StockState, len(states))
	for _, st := range states {
		locked[st.ProductID] = st
	}
	for _, id := range ids {
		if _, ok := locked[id]; !ok {
			return nil, apperrors.NewNotFoundError(fmt.Sprintf("stock for product %d not found", id))
		}
	}
	return locked, nil
}

func uniqueSorted(ids []int) []int {
	seen := make(map[int]struct{}, len(ids))
	out := make([]int, 0, len(ids))
	for _, id := range ids {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	sort.Ints(out)
	return out
}

// HasSufficientStock is advisory only. The authoritative check happens under the row lock.
func (s *LedgerService) HasSufficientStock(ctx context.Context, productID int, quantity int) (bool, error) {
	state, err := s.repo.FindByProductID(ctx, productID)
	if err != nil {
		return false, err
	}
	return state.AvailableStock() >= quantity, nil
}

func (s *LedgerService) GetStock(ctx context.Context, productID int) (*domain.StockState, error) {
	return s.repo.FindByProductID(ctx, productID)
}

func (s *LedgerService) ListMovements(ctx context.Context, productID int, limit int) ([]domain.StockMovement, error) {
	if limit <= 0 {
		limit = DefaultMovementLimit
	}
	if limit > MaxMovementLimit {
		limit = MaxMovementLimit
	}

	if _, err := s.repo.FindByProductID(ctx, productID); err != nil {
		return nil, err
	}
	return s.repo.ListMovements(ctx, productID, limit)
}

// Reconcile replays the ledger for one product. A non-zero drift means the projection was
// written outside the ledger.
func (s *LedgerService) Reconcile(ctx context.Context, productID int) (*Reconciliation, error) {
	state, err := s.repo.FindByProductID(ctx, productID)
	if err != nil {
		return nil, err
	}

	net, count, err := s.repo.SumMovementDeltas(ctx, productID)
	if err != nil {
		return nil, err
	}

	expected := state.InitialStock + net
	rec := &Reconciliation{
		ProductID:     productID,
		InitialStock:  state.InitialStock,
		CurrentStock:  state.CurrentStock,
		LedgerNet:     net,
		MovementCount: count,
		ExpectedStock: expected,
		Drift:         state.CurrentStock - expected,
		Consistent:    state.CurrentStock == expected,
	}

	if !rec.Consistent {
		s.logger.Warn("stock projection drift detected",
			zap.Int("productId", productID),
			zap.Int("currentStock", state.CurrentStock),
			zap.Int("expectedStock", expected),
		)
	}
	return rec, nil
}
