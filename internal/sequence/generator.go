package sequence

import (
	"context"
	"fmt"
	"regexp"
	"time"

	"go.uber.org/zap"

	apperrors "cashdesk/internal/errors"
)

const (
	DefaultPrefix = "INV"
	// InvoiceCounter is the single counter shared by every prefix and terminal.
	InvoiceCounter = "invoice_number"
)

var prefixPattern = regexp.MustCompile(`^[A-Z][A-Z0-9]{0,9}$`)

type Repository interface {
	Next(ctx context.Context, name string) (int64, error)
	Current(ctx context.Context, name string) (int64, error)
	Set(ctx context.Context, name string, value int64) error
}

type Generator struct {
	repo   Repository
	now    func() time.Time
	logger *zap.Logger
}

func NewGenerator(repo Repository, logger *zap.Logger) *Generator {
	return &Generator{
		repo:   repo,
		now:    func() time.Time { return time.Now().UTC() },
		logger: logger,
	}
}

// WithClock replaces the date source used in generated numbers. The date is always taken in
// UTC, the same zone the services stamp IssuedAt and CreatedAt in.
func (g *Generator) WithClock(now func() time.Time) *Generator {
	g.now = now
	return g
}

func FormatNumber(prefix string, date time.Time, seq int64) string {
	return fmt.Sprintf("%s-%s-%04d", prefix, date.Format("20060102"), seq)
}

func ValidatePrefix(prefix string) error {
	if !prefixPattern.MatchString(prefix) {
		return apperrors.NewValidationError("invalid document prefix", apperrors.ValidationDetail{
			Field:   "prefix",
			Message: "prefix must be 1-10 uppercase letters or digits starting with a letter",
		})
	}
	return nil
}

// Next returns {prefix}-{yyyyMMdd}-{seq}. A number handed out here and never persisted
// is burned; the counter never goes back.
func (g *Generator) Next(ctx context.Context, prefix string) (string, error) {
	if prefix == "" {
		prefix = DefaultPrefix
	}
	if err := ValidatePrefix(prefix); err != nil {
		return "", err
	}

	seq, err := g.repo.Next(ctx, InvoiceCounter)
	if err != nil {
		return "", err
	}

	number := FormatNumber(prefix, g.now().UTC(), seq)
	g.logger.Debug("document number issued", zap.String("number", number), zap.Int64("sequence", seq))
	return number, nil
}

// Current returns the last issued sequence value, 0 if none.
func (g *Generator) Current(ctx context.Context) (int64, error) {
	return g.repo.Current(ctx, InvoiceCounter)
}

// ResetSequence makes next the value of the following Next call. Administrative use only.
func (g *Generator) ResetSequence(ctx context.Context, next int64, actorID int) error {
	if next < 1 {
		return apperrors.NewValidationError("invalid sequence value", apperrors.ValidationDetail{
			Field:   "nextValue",
			Message: "nextValue must be at least 1",
		})
	}

	if err := g.repo.Set(ctx, InvoiceCounter, next-1); err != nil {
		return err
	}

	g.logger.Warn("invoice sequence reset", zap.Int64("nextValue", next), zap.Int("actorId", actorID))
	return nil
}
