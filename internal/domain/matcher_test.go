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

func newTestMatcher(t *testing.T) (*domain.InterestMatcher, *memory.Store, *int, string) {
	t.Helper()
	store := memory.NewStore()

	// The stub counts invocations so tests can pin down exactly when the
	// match rule runs.
	calls := new(int)
	predicate := domain.MatchPredicateFunc(func(ctx context.Context, userID, activityID string) (bool, error) {
		*calls++
		return true, nil
	})
	matcher := domain.NewInterestMatcher(store, predicate)

	activity, err := domain.NewEnrollmentManager(store).CreateActivity(context.Background(), domain.CreateActivityInput{
		OwnerID:     "org-1",
		OwnerRole:   domain.RoleOrganizer,
		Title:       "Sunset Yoga",
		ScheduledAt: time.Now().Add(24 * time.Hour),
		DurationMin: 60,
		Capacity:    12,
	})
	require.NoError(t, err)
	return matcher, store, calls, activity.ID
}

func TestRecordInterestLikeEvaluatesPredicateOnce(t *testing.T) {
	matcher, store, predicateCalls, activityID := newTestMatcher(t)
	ctx := context.Background()

	outcome, err := matcher.RecordInterest(ctx, activityID, "user-1", domain.SwipeLike)
	require.NoError(t, err)
	require.True(t, outcome.IsMatch)
	require.Equal(t, 1, *predicateCalls)

	snapshot, err := store.CounterSnapshot(ctx, activityID)
	require.NoError(t, err)
	require.Equal(t, int64(1), snapshot.Totals.Likes)
	require.Equal(t, int64(0), snapshot.Totals.Passes)
}

func TestRecordInterestPassSkipsPredicate(t *testing.T) {
	matcher, store, predicateCalls, activityID := newTestMatcher(t)
	ctx := context.Background()

	outcome, err := matcher.RecordInterest(ctx, activityID, "user-1", domain.SwipePass)
	require.NoError(t, err)
	require.False(t, outcome.IsMatch)
	require.Equal(t, 0, *predicateCalls)

	snapshot, err := store.CounterSnapshot(ctx, activityID)
	require.NoError(t, err)
	require.Equal(t, int64(1), snapshot.Totals.Passes)
}

func TestRecordInterestIdenticalResubmitIsIdempotent(t *testing.T) {
	matcher, store, _, activityID := newTestMatcher(t)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		_, err := matcher.RecordInterest(ctx, activityID, "user-1", domain.SwipeLike)
		require.NoError(t, err)
	}

	interest, err := store.GetInterest(ctx, activityID, "user-1")
	require.NoError(t, err)
	require.NotNil(t, interest)
	require.Equal(t, domain.SwipeLike, interest.Action)

	snapshot, err := store.CounterSnapshot(ctx, activityID)
	require.NoError(t, err)
	require.Equal(t, int64(1), snapshot.Totals.Likes)
}

func TestRecordInterestCorrectionMovesCounters(t *testing.T) {
	matcher, store, _, activityID := newTestMatcher(t)
	ctx := context.Background()

	_, err := matcher.RecordInterest(ctx, activityID, "user-1", domain.SwipeLike)
	require.NoError(t, err)
	_, err = matcher.RecordInterest(ctx, activityID, "user-1", domain.SwipePass)
	require.NoError(t, err)

	snapshot, err := store.CounterSnapshot(ctx, activityID)
	require.NoError(t, err)
	require.Equal(t, int64(0), snapshot.Totals.Likes)
	require.Equal(t, int64(1), snapshot.Totals.Passes)

	// Repeating likes from more users keeps likes+passes equal to the
	// number of distinct interest records.
	_, err = matcher.RecordInterest(ctx, activityID, "user-2", domain.SwipeLike)
	require.NoError(t, err)
	snapshot, err = store.CounterSnapshot(ctx, activityID)
	require.NoError(t, err)
	require.Equal(t, int64(2), snapshot.Totals.Likes+snapshot.Totals.Passes)
}

func TestRecordInterestDailyBucket(t *testing.T) {
	matcher, store, _, activityID := newTestMatcher(t)
	ctx := context.Background()

	_, err := matcher.RecordInterest(ctx, activityID, "user-1", domain.SwipeLike)
	require.NoError(t, err)

	snapshot, err := store.CounterSnapshot(ctx, activityID)
	require.NoError(t, err)
	require.Len(t, snapshot.Daily, 1)
	require.Equal(t, domain.BucketDay(time.Now()), snapshot.Daily[0].Day)
	require.Equal(t, int64(1), snapshot.Daily[0].Likes)
}

func TestRecordInterestRejectsInvalidInput(t *testing.T) {
	matcher, _, predicateCalls, activityID := newTestMatcher(t)
	ctx := context.Background()

	_, err := matcher.RecordInterest(ctx, activityID, "user-1", domain.SwipeAction("superlike"))
	require.ErrorIs(t, err, domain.ErrInvalidSwipeAction)

	_, err = matcher.RecordInterest(ctx, "missing", "user-1", domain.SwipeLike)
	require.ErrorIs(t, err, domain.ErrActivityNotFound)
	require.Equal(t, 0, *predicateCalls)
}

func TestRecordInterestRejectsCancelledActivity(t *testing.T) {
	matcher, store, _, activityID := newTestMatcher(t)
	ctx := context.Background()

	_, err := domain.NewEnrollmentManager(store).CancelActivity(ctx, activityID, "org-1")
	require.NoError(t, err)

	_, err = matcher.RecordInterest(ctx, activityID, "user-1", domain.SwipeLike)
	require.ErrorIs(t, err, domain.ErrActivityNotOpen)
}

func TestRecordInterestResubmissionKeepsOriginalCreatedAt(t *testing.T) {
	matcher, store, _, activityID := newTestMatcher(t)
	ctx := context.Background()

	first, err := matcher.RecordInterest(ctx, activityID, "user-1", domain.SwipeLike)
	require.NoError(t, err)

	time.Sleep(5 * time.Millisecond)

	second, err := matcher.RecordInterest(ctx, activityID, "user-1", domain.SwipePass)
	require.NoError(t, err)
	require.True(t, second.Interest.CreatedAt.Equal(first.Interest.CreatedAt))
	require.True(t, second.Interest.UpdatedAt.After(second.Interest.CreatedAt))

	stored, err := store.GetInterest(ctx, activityID, "user-1")
	require.NoError(t, err)
	require.True(t, stored.CreatedAt.Equal(first.Interest.CreatedAt))
}

func TestConcurrentSwipesOnOnePairSerialize(t *testing.T) {
	store := memory.NewStore()
	predicate := domain.MatchPredicateFunc(func(ctx context.Context, userID, activityID string) (bool, error) {
		return false, nil
	})
	matcher := domain.NewInterestMatcher(store, predicate)
	ctx := context.Background()

	activity, err := domain.NewEnrollmentManager(store).CreateActivity(ctx, domain.CreateActivityInput{
		OwnerID:     "org-1",
		OwnerRole:   domain.RoleOrganizer,
		Title:       "Sunset Yoga",
		ScheduledAt: time.Now().Add(24 * time.Hour),
		DurationMin: 60,
		Capacity:    12,
	})
	require.NoError(t, err)

	const swipers = 40
	actions := []domain.SwipeAction{domain.SwipeLike, domain.SwipePass}

	var wg sync.WaitGroup
	for i := 0; i < swipers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			if _, err := matcher.RecordInterest(ctx, activity.ID, "user-1", actions[i%len(actions)]); err != nil {
				t.Error(err)
			}
		}(i)
	}
	wg.Wait()

	// Every swipe overwrote the same record, so the counters must net out
	// to exactly one regardless of interleaving.
	snapshot, err := store.CounterSnapshot(ctx, activity.ID)
	require.NoError(t, err)
	require.Equal(t, int64(1), snapshot.Totals.Likes+snapshot.Totals.Passes)
	require.GreaterOrEqual(t, snapshot.Totals.Likes, int64(0))
	require.GreaterOrEqual(t, snapshot.Totals.Passes, int64(0))

	interest, err := store.GetInterest(ctx, activity.ID, "user-1")
	require.NoError(t, err)
	require.NotNil(t, interest)
	require.True(t, interest.Action.Valid())
}

func TestSwipeCounterDelta(t *testing.T) {
	day := domain.BucketDay(time.Now())
	like := domain.SwipeLike
	pass := domain.SwipePass

	require.True(t, domain.SwipeCounterDelta(&like, domain.SwipeLike, day).IsZero())

	fresh := domain.SwipeCounterDelta(nil, domain.SwipeLike, day)
	require.Equal(t, int64(1), fresh.Likes)
	require.Equal(t, int64(0), fresh.Passes)

	corrected := domain.SwipeCounterDelta(&like, domain.SwipePass, day)
	require.Equal(t, int64(-1), corrected.Likes)
	require.Equal(t, int64(1), corrected.Passes)

	reversed := domain.SwipeCounterDelta(&pass, domain.SwipeLike, day)
	require.Equal(t, int64(1), reversed.Likes)
	require.Equal(t, int64(-1), reversed.Passes)
}
