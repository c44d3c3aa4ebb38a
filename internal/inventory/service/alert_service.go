package service

import (
	"context"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"

	"cashdesk/internal/domain"
	"cashdesk/internal/events"
)

const alertLockKey = "cashdesk:stock-alerts"

var tracer = otel.Tracer("cashdesk/inventory")

type AlertRepository interface {
	ListAlertCandidates(ctx context.Context) ([]domain.CatalogItem, error)
}

// Locker grants at most one holder per key. ok is false when the key is already held.
type Locker interface {
	TryObtain(ctx context.Context, key string, ttl time.Duration) (release func(context.Context) error, ok bool, err error)
}

type Notifier interface {
	Notify(ctx context.Context, t events.Type, payload any)
}

// LocalLocker serializes scans within one process when no shared lock store is configured.
type LocalLocker struct {
	mu sync.Mutex
}

func (l *LocalLocker) TryObtain(ctx context.Context, key string, ttl time.Duration) (func(context.Context) error, bool, error) {
	if !l.mu.TryLock() {
		return nil, false, nil
	}
	return func(context.Context) error {
		l.mu.Unlock()
		return nil
	}, true, nil
}

type AlertService struct {
	repo     AlertRepository
	locker   Locker
	notifier Notifier
	interval time.Duration
	lockTTL  time.Duration
	logger   *zap.Logger
}

func NewAlertService(
	repo AlertRepository,
	locker Locker,
	notifier Notifier,
	interval time.Duration,
	lockTTL time.Duration,
	logger *zap.Logger,
) *AlertService {
	if locker == nil {
		locker = &LocalLocker{}
	}
	return &AlertService{
		repo:     repo,
		locker:   locker,
		notifier: notifier,
		interval: interval,
		lockTTL:  lockTTL,
		logger:   logger,
	}
}

func (s *AlertService) ListAlerts(ctx context.Context) ([]domain.StockAlert, error) {
	items, err := s.repo.ListAlertCandidates(ctx)
	if err != nil {
		return nil, err
	}

	alerts := []domain.StockAlert{}
	for _, item := range items {
		if alert, ok := domain.NewStockAlert(item); ok {
			alerts = append(alerts, alert)
		}
	}
	return alerts, nil
}

// CheckOnce publishes one event per alert. It returns 0 without scanning when another
// node holds the scan lock.
func (s *AlertService) CheckOnce(ctx context.Context) (int, error) {
	ctx, span := tracer.Start(ctx, "AlertService.CheckOnce")
	defer span.End()

	release, ok, err := s.locker.TryObtain(ctx, alertLockKey, s.lockTTL)
	if err != nil {
		return 0, err
	}
	if !ok {
		s.logger.Debug("stock alert scan skipped, lock held elsewhere")
		return 0, nil
	}
	defer func() {
		if err := release(context.WithoutCancel(ctx)); err != nil {
			s.logger.Warn("failed to release stock alert lock", zap.Error(err))
		}
	}()

	alerts, err := s.ListAlerts(ctx)
	if err != nil {
		return 0, err
	}

	for _, alert := range alerts {
		s.notifier.Notify(ctx, events.StockAlert, alert)
	}

	span.SetAttributes(attribute.Int("alerts", len(alerts)))
	if len(alerts) > 0 {
		s.logger.Info("stock alerts published", zap.Int("count", len(alerts)))
	}
	return len(alerts), nil
}

// Run scans every interval until ctx is cancelled.
func (s *AlertService) Run(ctx context.Context) {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	s.logger.Info("stock alert poller started", zap.Duration("interval", s.interval))
	for {
		select {
		case <-ctx.Done():
			s.logger.Info("stock alert poller stopped")
			return
		case <-ticker.C:
			if _, err := s.CheckOnce(ctx); err != nil {
				s.logger.Error("stock alert scan failed", zap.Error(err))
			}
		}
	}
}
