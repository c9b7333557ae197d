package service

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/outboundiq/costwatch/internal/clock"
	"github.com/outboundiq/costwatch/internal/config"
	costsdomain "github.com/outboundiq/costwatch/internal/costs/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type fakeAggregator struct {
	mu         sync.Mutex
	recomputes atomic.Int64
	summary    costsdomain.MonthlySummary
	err        error
	withNil    bool
	gate       chan struct{}
}

func (f *fakeAggregator) GetOrCreate(ctx context.Context, year, month int) (*costsdomain.MonthlySummary, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	summary := f.summary
	return &summary, nil
}

func (f *fakeAggregator) Recompute(ctx context.Context, year, month int) (*costsdomain.MonthlySummary, error) {
	f.mu.Lock()
	summary := f.summary
	err := f.err
	withNil := f.withNil
	f.mu.Unlock()

	// The gate holds the recomputation open after it has read its inputs,
	// so tests can land writes and invalidations mid-flight.
	if f.gate != nil {
		<-f.gate
	}
	f.recomputes.Add(1)

	if err != nil {
		if withNil {
			return nil, err
		}
		return &summary, err
	}
	return &summary, nil
}

func (f *fakeAggregator) Trends(ctx context.Context, months int) ([]costsdomain.MonthlySummary, error) {
	return nil, nil
}

func (f *fakeAggregator) setSummary(summary costsdomain.MonthlySummary) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.summary = summary
}

func (f *fakeAggregator) fail(err error, withNil bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.err = err
	f.withNil = withNil
}

func setupCache(t *testing.T, now time.Time, summary costsdomain.MonthlySummary) (*Service, *fakeAggregator, *clock.FakeClock) {
	t.Helper()

	fake := clock.NewFakeClock(now)
	aggregator := &fakeAggregator{summary: summary}
	holder := config.NewStaticCostConfigHolder(config.DefaultCostConfig())

	svc := NewService(ServiceParam{
		Log:        zap.NewNop(),
		Clock:      fake,
		Costs:      holder,
		Aggregator: aggregator,
	}).(*Service)
	return svc, aggregator, fake
}

func marchSummary() costsdomain.MonthlySummary {
	return costsdomain.MonthlySummary{
		Year:                2025,
		Month:               3,
		InstantlyCost:       75,
		GoogleWorkspaceCost: 48,
		OpenRouterCost:      4.60,
		TotalCost:           127.60,
		EmailsSent:          100,
		MeetingsBooked:      5,
		CostPerEmail:        1.276,
		CostPerMeeting:      25.52,
		ExchangeRate:        0.92,
	}
}

func TestSnapshotCachedWithinTTL(t *testing.T) {
	now := time.Date(2025, 3, 15, 10, 0, 0, 0, time.UTC)
	svc, aggregator, fake := setupCache(t, now, marchSummary())
	ctx := context.Background()

	first, err := svc.Snapshot(ctx, false)
	require.NoError(t, err)

	fake.Advance(30 * time.Second)
	second, err := svc.Snapshot(ctx, false)
	require.NoError(t, err)

	assert.Equal(t, first.ComputedAt, second.ComputedAt, "within TTL the snapshot is reused")
	assert.Equal(t, int64(1), aggregator.recomputes.Load())
}

func TestSnapshotRecomputesAfterTTL(t *testing.T) {
	now := time.Date(2025, 3, 15, 10, 0, 0, 0, time.UTC)
	svc, aggregator, fake := setupCache(t, now, marchSummary())
	ctx := context.Background()

	first, err := svc.Snapshot(ctx, false)
	require.NoError(t, err)

	fake.Advance(61 * time.Second)
	second, err := svc.Snapshot(ctx, false)
	require.NoError(t, err)

	assert.True(t, second.ComputedAt.After(first.ComputedAt))
	assert.Equal(t, int64(2), aggregator.recomputes.Load())
}

func TestSnapshotForceRefreshBypassesTTL(t *testing.T) {
	now := time.Date(2025, 3, 15, 10, 0, 0, 0, time.UTC)
	svc, aggregator, fake := setupCache(t, now, marchSummary())
	ctx := context.Background()

	first, err := svc.Snapshot(ctx, false)
	require.NoError(t, err)

	fake.Advance(time.Second)
	second, err := svc.Snapshot(ctx, true)
	require.NoError(t, err)

	assert.True(t, second.ComputedAt.After(first.ComputedAt))
	assert.Equal(t, int64(2), aggregator.recomputes.Load())
}

func TestInvalidateDropsCachedSnapshot(t *testing.T) {
	now := time.Date(2025, 3, 15, 10, 0, 0, 0, time.UTC)
	svc, aggregator, _ := setupCache(t, now, marchSummary())
	ctx := context.Background()

	_, err := svc.Snapshot(ctx, false)
	require.NoError(t, err)

	svc.Invalidate()

	_, err = svc.Snapshot(ctx, false)
	require.NoError(t, err)
	assert.Equal(t, int64(2), aggregator.recomputes.Load(), "invalidation forces a recompute before TTL")
}

func TestSnapshotDerivedFields(t *testing.T) {
	now := time.Date(2025, 3, 15, 10, 0, 0, 0, time.UTC)
	svc, _, _ := setupCache(t, now, marchSummary())

	snapshot, err := svc.Snapshot(context.Background(), false)
	require.NoError(t, err)

	assert.InDelta(t, 200-127.60, snapshot.BudgetRemaining, 1e-9)
	assert.False(t, snapshot.OverBudget)
	assert.Equal(t, "€127.60", snapshot.Display.TotalCost)
	assert.Equal(t, "€4.60", snapshot.Display.OpenRouterCost)
	assert.Equal(t, "€1.28", snapshot.Display.CostPerEmail)
	assert.Equal(t, "€25.52", snapshot.Display.CostPerMeeting)
	assert.GreaterOrEqual(t, snapshot.EfficiencyScore, 0)
	assert.LessOrEqual(t, snapshot.EfficiencyScore, 100)
}

func TestSnapshotOverBudget(t *testing.T) {
	now := time.Date(2025, 3, 15, 10, 0, 0, 0, time.UTC)
	summary := marchSummary()
	summary.TotalCost = 250
	svc, _, _ := setupCache(t, now, summary)

	snapshot, err := svc.Snapshot(context.Background(), false)
	require.NoError(t, err)

	assert.True(t, snapshot.OverBudget)
	assert.Zero(t, snapshot.BudgetRemaining, "remaining budget floors at zero")
}

func TestSnapshotServesStaleOnRefreshFailure(t *testing.T) {
	now := time.Date(2025, 3, 15, 10, 0, 0, 0, time.UTC)
	svc, aggregator, fake := setupCache(t, now, marchSummary())
	ctx := context.Background()

	first, err := svc.Snapshot(ctx, false)
	require.NoError(t, err)

	aggregator.fail(errors.New("db down"), true)
	fake.Advance(2 * time.Minute)

	stale, err := svc.Snapshot(ctx, false)
	require.NoError(t, err)
	assert.Equal(t, first.ComputedAt, stale.ComputedAt, "stale snapshot beats an error page")
}

func TestSnapshotFailsWithoutStaleFallback(t *testing.T) {
	now := time.Date(2025, 3, 15, 10, 0, 0, 0, time.UTC)
	svc, aggregator, _ := setupCache(t, now, marchSummary())

	aggregator.fail(errors.New("db down"), true)

	_, err := svc.Snapshot(context.Background(), false)
	assert.Error(t, err)
}

func TestSnapshotUsesUnpersistedSummary(t *testing.T) {
	now := time.Date(2025, 3, 15, 10, 0, 0, 0, time.UTC)
	svc, aggregator, _ := setupCache(t, now, marchSummary())

	// Persist failures still return the computed summary.
	aggregator.fail(errors.New("write failed"), false)

	snapshot, err := svc.Snapshot(context.Background(), false)
	require.NoError(t, err)
	assert.InDelta(t, 127.60, snapshot.Summary.TotalCost, 1e-9)
}

func TestInvalidateDuringRefreshIsNotLost(t *testing.T) {
	now := time.Date(2025, 3, 15, 10, 0, 0, 0, time.UTC)
	svc, aggregator, _ := setupCache(t, now, marchSummary())
	ctx := context.Background()

	aggregator.gate = make(chan struct{})

	done := make(chan struct{})
	go func() {
		defer close(done)
		_, err := svc.Snapshot(ctx, false)
		assert.NoError(t, err)
	}()

	// The refresh has read the pre-write data and is held open. A write
	// lands and invalidates before it completes.
	time.Sleep(50 * time.Millisecond)
	updated := marchSummary()
	updated.EmailsSent = 101
	aggregator.setSummary(updated)
	svc.Invalidate()

	close(aggregator.gate)
	<-done

	snapshot, err := svc.Snapshot(ctx, false)
	require.NoError(t, err)
	assert.Equal(t, int64(101), snapshot.Summary.EmailsSent, "read after invalidation sees the new write")
	assert.Equal(t, int64(2), aggregator.recomputes.Load(), "the stale in-flight result must not repopulate the cache")
}

func TestForceRefreshRunsOwnRecompute(t *testing.T) {
	now := time.Date(2025, 3, 15, 10, 0, 0, 0, time.UTC)
	svc, aggregator, _ := setupCache(t, now, marchSummary())
	ctx := context.Background()

	aggregator.gate = make(chan struct{})

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		_, err := svc.Snapshot(ctx, false)
		assert.NoError(t, err)
	}()
	// Let the lazy flight get in first, then force a refresh.
	time.Sleep(50 * time.Millisecond)
	go func() {
		defer wg.Done()
		_, err := svc.Snapshot(ctx, true)
		assert.NoError(t, err)
	}()
	time.Sleep(50 * time.Millisecond)
	close(aggregator.gate)
	wg.Wait()

	assert.Equal(t, int64(2), aggregator.recomputes.Load(), "a forced refresh never joins a lazy flight")
}

func TestConcurrentSnapshotsCollapse(t *testing.T) {
	now := time.Date(2025, 3, 15, 10, 0, 0, 0, time.UTC)
	svc, aggregator, _ := setupCache(t, now, marchSummary())
	ctx := context.Background()

	aggregator.gate = make(chan struct{})

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := svc.Snapshot(ctx, false)
			assert.NoError(t, err)
		}()
	}

	// Let the callers pile up behind the in-flight refresh.
	time.Sleep(50 * time.Millisecond)
	close(aggregator.gate)
	wg.Wait()

	assert.Equal(t, int64(1), aggregator.recomputes.Load(), "burst collapses into one recompute")
}
