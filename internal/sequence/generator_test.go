package sequence

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	apperrors "cashdesk/internal/errors"
)

type mockRepository struct {
	mu     sync.Mutex
	values map[string]int64
	err    error
}

func newMockRepository() *mockRepository {
	return &mockRepository{values: make(map[string]int64)}
}

func (m *mockRepository) Next(ctx context.Context, name string) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return 0, m.err
	}
	m.values[name]++
	return m.values[name], nil
}

func (m *mockRepository) Current(ctx context.Context, name string) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.values[name], m.err
}

func (m *mockRepository) Set(ctx context.Context, name string, value int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	m.values[name] = value
	return nil
}

func fixedClock() time.Time {
	return time.Date(2026, 1, 17, 9, 30, 0, 0, time.UTC)
}

func TestGenerator_Next(t *testing.T) {
	gen := NewGenerator(newMockRepository(), zap.NewNop()).WithClock(fixedClock)

	first, err := gen.Next(context.Background(), "")
	require.NoError(t, err)
	assert.Equal(t, "INV-20260117-0001", first)

	second, err := gen.Next(context.Background(), "REF")
	require.NoError(t, err)
	assert.Equal(t, "REF-20260117-0002", second)
}

func TestGenerator_Next_DatesNumbersInUTC(t *testing.T) {
	ist := time.FixedZone("IST", 5*60*60+30*60)
	// 01:00 on the 18th in IST is still the 17th in UTC
	earlyMorning := func() time.Time { return time.Date(2026, 1, 18, 1, 0, 0, 0, ist) }
	gen := NewGenerator(newMockRepository(), zap.NewNop()).WithClock(earlyMorning)

	number, err := gen.Next(context.Background(), "INV")
	require.NoError(t, err)
	assert.Equal(t, "INV-20260117-0001", number)
	assert.Equal(t, earlyMorning().UTC().Format("20060102"), strings.Split(number, "-")[1])
}

func TestGenerator_DefaultClockIsUTC(t *testing.T) {
	gen := NewGenerator(newMockRepository(), zap.NewNop())
	assert.Equal(t, time.UTC, gen.now().Location())
}

func TestGenerator_Next_WidensPastFourDigits(t *testing.T) {
	repo := newMockRepository()
	repo.values[InvoiceCounter] = 12344
	gen := NewGenerator(repo, zap.NewNop()).WithClock(fixedClock)

	number, err := gen.Next(context.Background(), "INV")
	require.NoError(t, err)
	assert.Equal(t, "INV-20260117-12345", number)
}

func TestGenerator_Next_RejectsBadPrefix(t *testing.T) {
	gen := NewGenerator(newMockRepository(), zap.NewNop())

	for _, prefix := range []string{"inv", "1NV", "INV-", "TOOLONGPREFIX", "IN V"} {
		t.Run(prefix, func(t *testing.T) {
			_, err := gen.Next(context.Background(), prefix)
			_, ok := apperrors.IsValidationError(err)
			assert.True(t, ok)
		})
	}
}

func TestGenerator_Next_PropagatesStoreError(t *testing.T) {
	repo := newMockRepository()
	repo.err = apperrors.NewTransientError("store unavailable", errors.New("dial tcp"))
	gen := NewGenerator(repo, zap.NewNop())

	_, err := gen.Next(context.Background(), "INV")
	_, ok := apperrors.IsTransientError(err)
	assert.True(t, ok)
}

func TestGenerator_Next_ConcurrentCallersGetDistinctNumbers(t *testing.T) {
	gen := NewGenerator(newMockRepository(), zap.NewNop()).WithClock(fixedClock)

	const callers = 50
	numbers := make(chan string, callers)
	var wg sync.WaitGroup
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			n, err := gen.Next(context.Background(), "INV")
			if assert.NoError(t, err) {
				numbers <- n
			}
		}()
	}
	wg.Wait()
	close(numbers)

	seen := make(map[string]bool)
	for n := range numbers {
		assert.False(t, seen[n], "duplicate number %s", n)
		seen[n] = true
	}
	assert.Len(t, seen, callers)
}

func TestGenerator_ResetSequence(t *testing.T) {
	repo := newMockRepository()
	gen := NewGenerator(repo, zap.NewNop()).WithClock(fixedClock)

	require.NoError(t, gen.ResetSequence(context.Background(), 500, 1))

	current, err := gen.Current(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(499), current)

	number, err := gen.Next(context.Background(), "INV")
	require.NoError(t, err)
	assert.Equal(t, "INV-20260117-0500", number)

	err = gen.ResetSequence(context.Background(), 0, 1)
	_, ok := apperrors.IsValidationError(err)
	assert.True(t, ok)
}

func TestController_ResetRequiresActor(t *testing.T) {
	ctrl := NewController(NewGenerator(newMockRepository(), zap.NewNop()), zap.NewNop())

	req := httptest.NewRequest(http.MethodPost, "/admin/invoice-sequence/reset", strings.NewReader(`{"nextValue": 10}`))
	rec := httptest.NewRecorder()
	ctrl.HandleResetSequence(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestController_ResetAndGet(t *testing.T) {
	ctrl := NewController(NewGenerator(newMockRepository(), zap.NewNop()), zap.NewNop())

	req := httptest.NewRequest(http.MethodPost, "/admin/invoice-sequence/reset", strings.NewReader(`{"nextValue": 10}`))
	req.Header.Set("X-Actor-ID", "1")
	rec := httptest.NewRecorder()
	ctrl.HandleResetSequence(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = httptest.NewRecorder()
	ctrl.HandleGetSequence(rec, httptest.NewRequest(http.MethodGet, "/admin/invoice-sequence", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), fmt.Sprintf(`"lastValue":%d`, 9))
	assert.Contains(t, rec.Body.String(), `"nextValue":10`)
}
