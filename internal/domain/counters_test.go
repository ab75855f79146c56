package domain_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/Joy-oyo/fenverest/internal/domain"
	"github.com/Joy-oyo/fenverest/internal/persistence/memory"
)

func mustParseDay(t *testing.T, day string) time.Time {
	t.Helper()
	parsed, err := time.Parse("2006-01-02", day)
	require.NoError(t, err)
	return parsed
}

func TestRecordViewAccumulates(t *testing.T) {
	store := memory.NewStore()
	service := domain.NewCounterService(store)
	ctx := context.Background()

	for i := 0; i < 4; i++ {
		require.NoError(t, service.RecordView(ctx, "act-1"))
	}

	snapshot, err := service.Snapshot(ctx, "act-1")
	require.NoError(t, err)
	require.Equal(t, int64(4), snapshot.Totals.Views)
	require.Len(t, snapshot.Daily, 1)
	require.Equal(t, int64(4), snapshot.Daily[0].Views)
}

func TestSnapshotOfUntouchedActivityIsEmpty(t *testing.T) {
	store := memory.NewStore()
	service := domain.NewCounterService(store)

	snapshot, err := service.Snapshot(context.Background(), "never-seen")
	require.NoError(t, err)
	require.Equal(t, domain.CounterTotals{}, snapshot.Totals)
	require.Empty(t, snapshot.Daily)
}

func TestConcurrentViewsLoseNothing(t *testing.T) {
	store := memory.NewStore()
	service := domain.NewCounterService(store)
	ctx := context.Background()

	const writers = 32
	var wg sync.WaitGroup
	for i := 0; i < writers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := service.RecordView(ctx, "act-1"); err != nil {
				t.Error(err)
			}
		}()
	}
	wg.Wait()

	snapshot, err := service.Snapshot(ctx, "act-1")
	require.NoError(t, err)
	require.Equal(t, int64(writers), snapshot.Totals.Views)
}

func TestSnapshotDailyIsOrderedAscending(t *testing.T) {
	store := memory.NewStore()
	ctx := context.Background()

	days := []string{"2026-03-03", "2026-03-01", "2026-03-02"}
	for _, day := range days {
		parsed := mustParseDay(t, day)
		require.NoError(t, store.IncrementCounters(ctx, "act-1", domain.CounterDelta{Views: 1, Day: parsed}))
	}

	snapshot, err := store.CounterSnapshot(ctx, "act-1")
	require.NoError(t, err)
	require.Len(t, snapshot.Daily, 3)
	for i := 1; i < len(snapshot.Daily); i++ {
		require.True(t, snapshot.Daily[i-1].Day.Before(snapshot.Daily[i].Day))
	}
	require.Equal(t, int64(3), snapshot.Totals.Views)
}
