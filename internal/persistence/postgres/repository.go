// Package postgres provides pgx-backed persistence for activities, interests
// and aggregate counters. Every public operation commits as one transaction:
// the membership or interest write, its counter deltas and its outbox row
// land together or not at all.
package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/Joy-oyo/fenverest/internal/domain"
	"github.com/Joy-oyo/fenverest/internal/events"
	"github.com/Joy-oyo/fenverest/internal/observability"
)

// Repository provides Postgres-backed persistence for the engine.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a Repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

const activityColumns = `activity_id, title, description, owner_id, scheduled_at, duration_min, capacity, participant_ids, status, tags, difficulty, created_at, updated_at`

// CreateActivity persists the activity and records its outbox event inside a
// single transaction.
func (r *Repository) CreateActivity(ctx context.Context, activity domain.Activity) error {
	tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return storeErr(err)
	}
	defer tx.Rollback(ctx)

	const stmt = `INSERT INTO activities (` + activityColumns + `)
        VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13)`

	_, err = tx.Exec(ctx, stmt,
		activity.ID,
		activity.Title,
		activity.Description,
		activity.OwnerID,
		activity.ScheduledAt,
		activity.DurationMin,
		activity.Capacity,
		activity.ParticipantIDs,
		activity.Status,
		activity.Tags,
		activity.Difficulty,
		activity.CreatedAt,
		activity.UpdatedAt,
	)
	if err != nil {
		return storeErr(err)
	}

	if err := insertOutbox(ctx, tx, activity.ID, "activity.created", events.ActivityCreated{
		ActivityID:  activity.ID,
		OwnerID:     activity.OwnerID,
		Title:       activity.Title,
		ScheduledAt: activity.ScheduledAt,
		DurationMin: activity.DurationMin,
		Capacity:    activity.Capacity,
		Difficulty:  activity.Difficulty,
	}); err != nil {
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		return storeErr(err)
	}
	observability.RecordActivityCreated(activity.CreatedAt)
	return nil
}

// GetActivity retrieves an activity by ID.
func (r *Repository) GetActivity(ctx context.Context, activityID string) (*domain.Activity, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+activityColumns+` FROM activities WHERE activity_id=$1`, activityID)
	activity, err := scanActivity(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrActivityNotFound
		}
		return nil, storeErr(err)
	}
	return activity, nil
}

// ListActivities returns activities matching the filter ordered by schedule.
func (r *Repository) ListActivities(ctx context.Context, filter domain.ActivityFilter) ([]domain.Activity, error) {
	query := `SELECT ` + activityColumns + ` FROM activities WHERE 1=1`
	args := []interface{}{}

	if filter.Title != "" {
		args = append(args, "%"+filter.Title+"%")
		query += fmt.Sprintf(" AND title ILIKE $%d", len(args))
	}
	if filter.Status != "" {
		args = append(args, filter.Status)
		query += fmt.Sprintf(" AND status = $%d", len(args))
	}
	if filter.Difficulty != "" {
		args = append(args, filter.Difficulty)
		query += fmt.Sprintf(" AND difficulty = $%d", len(args))
	}
	if filter.OwnerID != "" {
		args = append(args, filter.OwnerID)
		query += fmt.Sprintf(" AND owner_id = $%d", len(args))
	}
	if filter.ParticipantID != "" {
		args = append(args, filter.ParticipantID)
		query += fmt.Sprintf(" AND participant_ids @> ARRAY[$%d]::text[]", len(args))
	}
	query += ` ORDER BY scheduled_at ASC, activity_id ASC`

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, storeErr(err)
	}
	defer rows.Close()

	results := make([]domain.Activity, 0)
	for rows.Next() {
		activity, err := scanActivity(rows)
		if err != nil {
			return nil, storeErr(err)
		}
		results = append(results, *activity)
	}
	if err := rows.Err(); err != nil {
		return nil, storeErr(err)
	}
	return results, nil
}

// UpdateActivity applies a patch under the activity row lock so field updates
// and status transitions observe a consistent snapshot.
func (r *Repository) UpdateActivity(ctx context.Context, activityID string, patch domain.ActivityPatch) (*domain.Activity, error) {
	tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return nil, storeErr(err)
	}
	defer tx.Rollback(ctx)

	activity, err := lockActivity(ctx, tx, activityID)
	if err != nil {
		return nil, err
	}

	prevStatus := activity.Status
	if err := patch.Apply(activity); err != nil {
		return nil, err
	}
	activity.UpdatedAt = time.Now().UTC()

	if err := writeActivity(ctx, tx, activity); err != nil {
		return nil, err
	}

	if activity.Status != prevStatus && activity.Status.Terminal() {
		if err := insertOutbox(ctx, tx, activity.ID, "activity.closed", events.ActivityClosed{
			ActivityID: activity.ID,
			OwnerID:    activity.OwnerID,
			Reason:     string(activity.Status),
			OccurredAt: activity.UpdatedAt,
		}); err != nil {
			return nil, err
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, storeErr(err)
	}
	return activity, nil
}

// AddParticipant admits userID while holding the activity row lock: the
// capacity check, the membership write, the joins counter and the outbox row
// commit as one unit, so concurrent joins on the last slot serialize and
// exactly one succeeds.
func (r *Repository) AddParticipant(ctx context.Context, activityID, userID string, day time.Time) (*domain.Activity, error) {
	tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return nil, storeErr(err)
	}
	defer tx.Rollback(ctx)

	activity, err := lockActivity(ctx, tx, activityID)
	if err != nil {
		return nil, err
	}
	if err := activity.Admit(userID); err != nil {
		return nil, err
	}
	activity.UpdatedAt = time.Now().UTC()

	if err := writeActivity(ctx, tx, activity); err != nil {
		return nil, err
	}
	if err := applyCounterDelta(ctx, tx, activityID, domain.CounterDelta{Joins: 1, Day: day}); err != nil {
		return nil, err
	}
	if err := insertOutbox(ctx, tx, activityID, "enrollment.changed", events.EnrollmentChanged{
		ActivityID: activityID,
		UserID:     userID,
		Change:     "joined",
		Enrolled:   len(activity.ParticipantIDs),
		Capacity:   activity.Capacity,
		OccurredAt: activity.UpdatedAt,
	}); err != nil {
		return nil, err
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, storeErr(err)
	}
	return activity, nil
}

// RemoveParticipant withdraws userID under the same row-lock discipline.
func (r *Repository) RemoveParticipant(ctx context.Context, activityID, userID string) (*domain.Activity, error) {
	tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return nil, storeErr(err)
	}
	defer tx.Rollback(ctx)

	activity, err := lockActivity(ctx, tx, activityID)
	if err != nil {
		return nil, err
	}
	if err := activity.Withdraw(userID); err != nil {
		return nil, err
	}
	activity.UpdatedAt = time.Now().UTC()

	if err := writeActivity(ctx, tx, activity); err != nil {
		return nil, err
	}
	if err := insertOutbox(ctx, tx, activityID, "enrollment.changed", events.EnrollmentChanged{
		ActivityID: activityID,
		UserID:     userID,
		Change:     "left",
		Enrolled:   len(activity.ParticipantIDs),
		Capacity:   activity.Capacity,
		OccurredAt: activity.UpdatedAt,
	}); err != nil {
		return nil, err
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, storeErr(err)
	}
	return activity, nil
}

// DeleteActivity removes the activity, its interest records and its counters
// in a single transactional fan-out.
func (r *Repository) DeleteActivity(ctx context.Context, activityID string) error {
	tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return storeErr(err)
	}
	defer tx.Rollback(ctx)

	activity, err := lockActivity(ctx, tx, activityID)
	if err != nil {
		return err
	}

	for _, stmt := range []string{
		`DELETE FROM interests WHERE activity_id=$1`,
		`DELETE FROM activity_counter_days WHERE activity_id=$1`,
		`DELETE FROM activity_counters WHERE activity_id=$1`,
		`DELETE FROM activities WHERE activity_id=$1`,
	} {
		if _, err := tx.Exec(ctx, stmt, activityID); err != nil {
			return storeErr(err)
		}
	}

	if err := insertOutbox(ctx, tx, activityID, "activity.closed", events.ActivityClosed{
		ActivityID: activityID,
		OwnerID:    activity.OwnerID,
		Reason:     "deleted",
		OccurredAt: time.Now().UTC(),
	}); err != nil {
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		return storeErr(err)
	}
	return nil
}

// UpsertInterest records a swipe keyed on the (user, activity) pair. The
// activity row lock serializes concurrent swipes on the pair, so the prior
// action, the overwrite and the counter correction form one atomic unit.
func (r *Repository) UpsertInterest(ctx context.Context, interest domain.Interest) (domain.Interest, *domain.SwipeAction, error) {
	tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return domain.Interest{}, nil, storeErr(err)
	}
	defer tx.Rollback(ctx)

	activity, err := lockActivity(ctx, tx, interest.ActivityID)
	if err != nil {
		return domain.Interest{}, nil, err
	}
	if activity.Status == domain.ActivityStatusCancelled {
		return domain.Interest{}, nil, fmt.Errorf("%w: activity is cancelled", domain.ErrActivityNotOpen)
	}

	var prior *domain.SwipeAction
	var priorAction domain.SwipeAction
	err = tx.QueryRow(ctx,
		`SELECT action FROM interests WHERE activity_id=$1 AND user_id=$2`,
		interest.ActivityID, interest.UserID,
	).Scan(&priorAction)
	switch {
	case err == nil:
		prior = &priorAction
	case errors.Is(err, pgx.ErrNoRows):
	default:
		return domain.Interest{}, nil, storeErr(err)
	}

	stored := interest
	// created_at keeps the first swipe's timestamp on overwrite.
	err = tx.QueryRow(ctx,
		`INSERT INTO interests (activity_id, user_id, action, created_at, updated_at)
         VALUES ($1,$2,$3,$4,$5)
         ON CONFLICT (activity_id, user_id)
         DO UPDATE SET action = EXCLUDED.action, updated_at = EXCLUDED.updated_at
         RETURNING created_at, updated_at`,
		interest.ActivityID, interest.UserID, interest.Action, interest.CreatedAt, interest.UpdatedAt,
	).Scan(&stored.CreatedAt, &stored.UpdatedAt)
	if err != nil {
		return domain.Interest{}, nil, storeErr(err)
	}

	delta := domain.SwipeCounterDelta(prior, interest.Action, domain.BucketDay(interest.UpdatedAt))
	if err := applyCounterDelta(ctx, tx, interest.ActivityID, delta); err != nil {
		return domain.Interest{}, nil, err
	}

	recorded := events.InterestRecorded{
		ActivityID: interest.ActivityID,
		UserID:     interest.UserID,
		Action:     string(interest.Action),
		OccurredAt: interest.UpdatedAt,
	}
	if prior != nil {
		recorded.PreviousAction = string(*prior)
	}
	if err := insertOutbox(ctx, tx, interest.ActivityID, "interest.recorded", recorded); err != nil {
		return domain.Interest{}, nil, err
	}

	if err := tx.Commit(ctx); err != nil {
		return domain.Interest{}, nil, storeErr(err)
	}
	return stored, prior, nil
}

// GetInterest fetches the current swipe for the pair, if any.
func (r *Repository) GetInterest(ctx context.Context, activityID, userID string) (*domain.Interest, error) {
	var interest domain.Interest
	err := r.pool.QueryRow(ctx,
		`SELECT activity_id, user_id, action, created_at, updated_at FROM interests WHERE activity_id=$1 AND user_id=$2`,
		activityID, userID,
	).Scan(&interest.ActivityID, &interest.UserID, &interest.Action, &interest.CreatedAt, &interest.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, storeErr(err)
	}
	return &interest, nil
}

// IncrementCounters applies a delta as atomic in-database adds.
func (r *Repository) IncrementCounters(ctx context.Context, activityID string, delta domain.CounterDelta) error {
	tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return storeErr(err)
	}
	defer tx.Rollback(ctx)

	if err := applyCounterDelta(ctx, tx, activityID, delta); err != nil {
		return err
	}
	if err := tx.Commit(ctx); err != nil {
		return storeErr(err)
	}
	return nil
}

// CounterSnapshot returns totals and the daily breakdown read in one
// transaction, so a reader never observes a total without its bucket.
func (r *Repository) CounterSnapshot(ctx context.Context, activityID string) (*domain.ActivityCounters, error) {
	tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{AccessMode: pgx.ReadOnly})
	if err != nil {
		return nil, storeErr(err)
	}
	defer tx.Rollback(ctx)

	snapshot := &domain.ActivityCounters{ActivityID: activityID}
	err = tx.QueryRow(ctx,
		`SELECT views, likes, passes, joins FROM activity_counters WHERE activity_id=$1`,
		activityID,
	).Scan(&snapshot.Totals.Views, &snapshot.Totals.Likes, &snapshot.Totals.Passes, &snapshot.Totals.Joins)
	if err != nil && !errors.Is(err, pgx.ErrNoRows) {
		return nil, storeErr(err)
	}

	rows, err := tx.Query(ctx,
		`SELECT day, views, likes, passes, joins FROM activity_counter_days WHERE activity_id=$1 ORDER BY day ASC`,
		activityID,
	)
	if err != nil {
		return nil, storeErr(err)
	}
	defer rows.Close()

	for rows.Next() {
		var bucket domain.DailyCounters
		if err := rows.Scan(&bucket.Day, &bucket.Views, &bucket.Likes, &bucket.Passes, &bucket.Joins); err != nil {
			return nil, storeErr(err)
		}
		bucket.Day = bucket.Day.UTC()
		snapshot.Daily = append(snapshot.Daily, bucket)
	}
	if err := rows.Err(); err != nil {
		return nil, storeErr(err)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, storeErr(err)
	}
	return snapshot, nil
}

// GetPreferences implements matching.PreferenceRepository.
func (r *Repository) GetPreferences(ctx context.Context, userID string) (*domain.UserPreferences, error) {
	var prefs domain.UserPreferences
	err := r.pool.QueryRow(ctx,
		`SELECT user_id, interests, difficulties, updated_at FROM user_preferences WHERE user_id=$1`,
		userID,
	).Scan(&prefs.UserID, &prefs.Interests, &prefs.Difficulties, &prefs.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrPreferencesNotFound
		}
		return nil, storeErr(err)
	}
	return &prefs, nil
}

// PutPreferences implements matching.PreferenceRepository.
func (r *Repository) PutPreferences(ctx context.Context, prefs domain.UserPreferences) error {
	_, err := r.pool.Exec(ctx,
		`INSERT INTO user_preferences (user_id, interests, difficulties, updated_at)
         VALUES ($1,$2,$3,$4)
         ON CONFLICT (user_id)
         DO UPDATE SET interests = EXCLUDED.interests, difficulties = EXCLUDED.difficulties, updated_at = EXCLUDED.updated_at`,
		prefs.UserID, prefs.Interests, prefs.Difficulties, prefs.UpdatedAt,
	)
	return storeErr(err)
}

func lockActivity(ctx context.Context, tx pgx.Tx, activityID string) (*domain.Activity, error) {
	row := tx.QueryRow(ctx, `SELECT `+activityColumns+` FROM activities WHERE activity_id=$1 FOR UPDATE`, activityID)
	activity, err := scanActivity(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrActivityNotFound
		}
		return nil, storeErr(err)
	}
	return activity, nil
}

func writeActivity(ctx context.Context, tx pgx.Tx, activity *domain.Activity) error {
	_, err := tx.Exec(ctx,
		`UPDATE activities
         SET title=$2, description=$3, scheduled_at=$4, duration_min=$5, capacity=$6,
             participant_ids=$7, status=$8, tags=$9, difficulty=$10, updated_at=$11
         WHERE activity_id=$1`,
		activity.ID,
		activity.Title,
		activity.Description,
		activity.ScheduledAt,
		activity.DurationMin,
		activity.Capacity,
		activity.ParticipantIDs,
		activity.Status,
		activity.Tags,
		activity.Difficulty,
		activity.UpdatedAt,
	)
	return storeErr(err)
}

func applyCounterDelta(ctx context.Context, tx pgx.Tx, activityID string, delta domain.CounterDelta) error {
	if delta.IsZero() {
		return nil
	}

	_, err := tx.Exec(ctx,
		`INSERT INTO activity_counters (activity_id, views, likes, passes, joins)
         VALUES ($1,$2,$3,$4,$5)
         ON CONFLICT (activity_id)
         DO UPDATE SET views = activity_counters.views + EXCLUDED.views,
                       likes = activity_counters.likes + EXCLUDED.likes,
                       passes = activity_counters.passes + EXCLUDED.passes,
                       joins = activity_counters.joins + EXCLUDED.joins`,
		activityID, delta.Views, delta.Likes, delta.Passes, delta.Joins,
	)
	if err != nil {
		return storeErr(err)
	}

	_, err = tx.Exec(ctx,
		`INSERT INTO activity_counter_days (activity_id, day, views, likes, passes, joins)
         VALUES ($1,$2,$3,$4,$5,$6)
         ON CONFLICT (activity_id, day)
         DO UPDATE SET views = activity_counter_days.views + EXCLUDED.views,
                       likes = activity_counter_days.likes + EXCLUDED.likes,
                       passes = activity_counter_days.passes + EXCLUDED.passes,
                       joins = activity_counter_days.joins + EXCLUDED.joins`,
		activityID, domain.BucketDay(delta.Day), delta.Views, delta.Likes, delta.Passes, delta.Joins,
	)
	return storeErr(err)
}

func scanActivity(row pgx.Row) (*domain.Activity, error) {
	var activity domain.Activity
	err := row.Scan(
		&activity.ID,
		&activity.Title,
		&activity.Description,
		&activity.OwnerID,
		&activity.ScheduledAt,
		&activity.DurationMin,
		&activity.Capacity,
		&activity.ParticipantIDs,
		&activity.Status,
		&activity.Tags,
		&activity.Difficulty,
		&activity.CreatedAt,
		&activity.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &activity, nil
}

func storeErr(err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%w: %v", domain.ErrStoreUnavailable, err)
}

func insertOutbox(ctx context.Context, tx pgx.Tx, aggregateID, eventType string, payload interface{}) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return err
	}

	meta, ok := eventCatalog[eventType]
	if !ok {
		return fmt.Errorf("unknown event type: %s", eventType)
	}

	const stmt = `INSERT INTO outbox (aggregate_type, aggregate_id, event_type, topic, schema_subject, partition_key, payload)
        VALUES ($1,$2,$3,$4,$5,$6,$7)`

	_, err = tx.Exec(ctx, stmt,
		"activity",
		aggregateID,
		eventType,
		meta.Topic,
		meta.SchemaSubject,
		aggregateID,
		body,
	)
	return storeErr(err)
}

// EventMetadata describes how to route an outbox event.
type EventMetadata struct {
	Topic         string
	SchemaSubject string
}

var eventCatalog = map[string]EventMetadata{
	"activity.created":   {Topic: "activity_events", SchemaSubject: "activity_created-value"},
	"activity.closed":    {Topic: "activity_events", SchemaSubject: "activity_closed-value"},
	"enrollment.changed": {Topic: "engagement_events", SchemaSubject: "enrollment_changed-value"},
	"interest.recorded":  {Topic: "engagement_events", SchemaSubject: "interest_recorded-value"},
}
