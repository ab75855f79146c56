//go:build integration

package postgres

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/require"
	postgrescontainer "github.com/testcontainers/testcontainers-go/modules/postgres"

	"github.com/Joy-oyo/fenverest/internal/domain"
)

func setupRepository(t *testing.T, ctx context.Context) *Repository {
	t.Helper()

	pg, err := postgrescontainer.RunContainer(ctx,
		postgrescontainer.WithDatabase("fenverest"),
		postgrescontainer.WithUsername("fenverest"),
		postgrescontainer.WithPassword("fenverest"),
	)
	require.NoError(t, err)
	t.Cleanup(func() { _ = pg.Terminate(ctx) })

	connStr, err := pg.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)
	require.NoError(t, waitForDatabase(ctx, connStr))

	runMigrations(t, ctx, connStr)

	pool, err := pgxpool.New(ctx, connStr)
	require.NoError(t, err)
	t.Cleanup(func() { pool.Close() })

	return NewRepository(pool)
}

func seedActivity(t *testing.T, ctx context.Context, repo *Repository, capacity int) domain.Activity {
	t.Helper()
	now := time.Now().UTC()
	activity := domain.Activity{
		ID:             uuid.NewString(),
		Title:          "Integration Ride",
		Description:    "canal loop",
		OwnerID:        uuid.NewString(),
		ScheduledAt:    now.Add(24 * time.Hour),
		DurationMin:    45,
		Capacity:       capacity,
		ParticipantIDs: []string{},
		Status:         domain.ActivityStatusScheduled,
		Tags:           []string{"cycling"},
		Difficulty:     "intermediate",
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	require.NoError(t, repo.CreateActivity(ctx, activity))
	return activity
}

func TestRepositoryConcurrentJoinsRespectCapacity(t *testing.T) {
	ctx := context.Background()
	repo := setupRepository(t, ctx)

	const capacity = 1
	const contenders = 8
	activity := seedActivity(t, ctx, repo, capacity)
	day := domain.BucketDay(time.Now())

	var wg sync.WaitGroup
	errs := make([]error, contenders)
	for i := 0; i < contenders; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = repo.AddParticipant(ctx, activity.ID, fmt.Sprintf("user-%d", i), day)
		}(i)
	}
	wg.Wait()

	admitted := 0
	for _, err := range errs {
		if err == nil {
			admitted++
		} else {
			require.ErrorIs(t, err, domain.ErrActivityFull)
		}
	}
	require.Equal(t, capacity, admitted)

	stored, err := repo.GetActivity(ctx, activity.ID)
	require.NoError(t, err)
	require.Len(t, stored.ParticipantIDs, capacity)

	snapshot, err := repo.CounterSnapshot(ctx, activity.ID)
	require.NoError(t, err)
	require.Equal(t, int64(capacity), snapshot.Totals.Joins)
}

func TestRepositoryInterestCorrection(t *testing.T) {
	ctx := context.Background()
	repo := setupRepository(t, ctx)
	activity := seedActivity(t, ctx, repo, 10)

	now := time.Now().UTC()
	interest := domain.Interest{
		UserID:     "user-1",
		ActivityID: activity.ID,
		Action:     domain.SwipeLike,
		CreatedAt:  now,
		UpdatedAt:  now,
	}

	_, prior, err := repo.UpsertInterest(ctx, interest)
	require.NoError(t, err)
	require.Nil(t, prior)

	// Identical resubmission keeps counters untouched.
	_, prior, err = repo.UpsertInterest(ctx, interest)
	require.NoError(t, err)
	require.NotNil(t, prior)
	require.Equal(t, domain.SwipeLike, *prior)

	snapshot, err := repo.CounterSnapshot(ctx, activity.ID)
	require.NoError(t, err)
	require.Equal(t, int64(1), snapshot.Totals.Likes)
	require.Equal(t, int64(0), snapshot.Totals.Passes)

	// Correction moves the count across actions in one commit. The stored
	// record keeps the first swipe's created_at.
	interest.Action = domain.SwipePass
	interest.UpdatedAt = time.Now().UTC()
	interest.CreatedAt = interest.UpdatedAt
	stored, prior, err := repo.UpsertInterest(ctx, interest)
	require.NoError(t, err)
	require.Equal(t, domain.SwipeLike, *prior)
	require.WithinDuration(t, now, stored.CreatedAt, time.Millisecond)

	snapshot, err = repo.CounterSnapshot(ctx, activity.ID)
	require.NoError(t, err)
	require.Equal(t, int64(0), snapshot.Totals.Likes)
	require.Equal(t, int64(1), snapshot.Totals.Passes)

	stored, err := repo.GetInterest(ctx, activity.ID, "user-1")
	require.NoError(t, err)
	require.NotNil(t, stored)
	require.Equal(t, domain.SwipePass, stored.Action)
}

func TestRepositoryConcurrentSwipesSerializePerPair(t *testing.T) {
	ctx := context.Background()
	repo := setupRepository(t, ctx)
	activity := seedActivity(t, ctx, repo, 10)

	const swipers = 8
	actions := []domain.SwipeAction{domain.SwipeLike, domain.SwipePass}

	var wg sync.WaitGroup
	for i := 0; i < swipers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			now := time.Now().UTC()
			_, _, err := repo.UpsertInterest(ctx, domain.Interest{
				UserID:     "user-1",
				ActivityID: activity.ID,
				Action:     actions[i%len(actions)],
				CreatedAt:  now,
				UpdatedAt:  now,
			})
			if err != nil {
				t.Error(err)
			}
		}(i)
	}
	wg.Wait()

	// All swipes overwrote the same record, so the counters net out to one.
	snapshot, err := repo.CounterSnapshot(ctx, activity.ID)
	require.NoError(t, err)
	require.Equal(t, int64(1), snapshot.Totals.Likes+snapshot.Totals.Passes)
	require.GreaterOrEqual(t, snapshot.Totals.Likes, int64(0))
	require.GreaterOrEqual(t, snapshot.Totals.Passes, int64(0))

	stored, err := repo.GetInterest(ctx, activity.ID, "user-1")
	require.NoError(t, err)
	require.NotNil(t, stored)
}

func TestRepositoryDeleteCascades(t *testing.T) {
	ctx := context.Background()
	repo := setupRepository(t, ctx)
	activity := seedActivity(t, ctx, repo, 5)

	_, err := repo.AddParticipant(ctx, activity.ID, "user-1", domain.BucketDay(time.Now()))
	require.NoError(t, err)

	now := time.Now().UTC()
	_, _, err = repo.UpsertInterest(ctx, domain.Interest{
		UserID: "user-2", ActivityID: activity.ID, Action: domain.SwipeLike, CreatedAt: now, UpdatedAt: now,
	})
	require.NoError(t, err)

	require.NoError(t, repo.DeleteActivity(ctx, activity.ID))

	_, err = repo.GetActivity(ctx, activity.ID)
	require.ErrorIs(t, err, domain.ErrActivityNotFound)

	interest, err := repo.GetInterest(ctx, activity.ID, "user-2")
	require.NoError(t, err)
	require.Nil(t, interest)

	snapshot, err := repo.CounterSnapshot(ctx, activity.ID)
	require.NoError(t, err)
	require.Equal(t, domain.CounterTotals{}, snapshot.Totals)
	require.Empty(t, snapshot.Daily)
}

func TestRepositoryPatchAndStatusRules(t *testing.T) {
	ctx := context.Background()
	repo := setupRepository(t, ctx)
	activity := seedActivity(t, ctx, repo, 5)

	cancelled := domain.ActivityStatusCancelled
	updated, err := repo.UpdateActivity(ctx, activity.ID, domain.ActivityPatch{Status: &cancelled})
	require.NoError(t, err)
	require.Equal(t, domain.ActivityStatusCancelled, updated.Status)

	scheduled := domain.ActivityStatusScheduled
	_, err = repo.UpdateActivity(ctx, activity.ID, domain.ActivityPatch{Status: &scheduled})
	require.ErrorIs(t, err, domain.ErrActivityNotOpen)

	_, err = repo.AddParticipant(ctx, activity.ID, "user-1", domain.BucketDay(time.Now()))
	require.ErrorIs(t, err, domain.ErrActivityNotOpen)
}

func TestRepositoryPreferencesRoundTrip(t *testing.T) {
	ctx := context.Background()
	repo := setupRepository(t, ctx)

	_, err := repo.GetPreferences(ctx, "user-1")
	require.ErrorIs(t, err, domain.ErrPreferencesNotFound)

	prefs := domain.UserPreferences{
		UserID:       "user-1",
		Interests:    []string{"cycling", "yoga"},
		Difficulties: []string{"beginner"},
		UpdatedAt:    time.Now().UTC(),
	}
	require.NoError(t, repo.PutPreferences(ctx, prefs))

	prefs.Interests = []string{"climbing"}
	require.NoError(t, repo.PutPreferences(ctx, prefs))

	stored, err := repo.GetPreferences(ctx, "user-1")
	require.NoError(t, err)
	require.Equal(t, []string{"climbing"}, stored.Interests)
	require.Equal(t, []string{"beginner"}, stored.Difficulties)
}

func runMigrations(t *testing.T, ctx context.Context, connStr string) {
	files := []string{
		"../../../migrations/001_init.sql",
	}

	pool, err := pgxpool.New(ctx, connStr)
	require.NoError(t, err)
	defer pool.Close()

	for _, rel := range files {
		path := resolvePath(t, rel)
		contents, readErr := os.ReadFile(path)
		require.NoError(t, readErr)

		_, execErr := pool.Exec(ctx, string(contents))
		require.NoError(t, execErr)
	}
}

func resolvePath(t *testing.T, rel string) string {
	t.Helper()
	_, file, _, ok := runtime.Caller(0)
	require.True(t, ok)
	return filepath.Join(filepath.Dir(file), rel)
}

func waitForDatabase(ctx context.Context, connStr string) error {
	deadline := time.Now().Add(30 * time.Second)
	for {
		pool, err := pgxpool.New(ctx, connStr)
		if err == nil {
			err = pool.Ping(ctx)
			pool.Close()
			if err == nil {
				return nil
			}
		}
		if time.Now().After(deadline) {
			return err
		}
		time.Sleep(time.Second)
	}
}
