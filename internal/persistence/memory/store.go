// Package memory provides an in-memory store for tests and local development.
package memory

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/Joy-oyo/fenverest/internal/domain"
)

// Store keeps all engine state behind one mutex, so every operation commits
// as a single atomic unit just like the transactional production store.
type Store struct {
	mu          sync.Mutex
	activities  map[string]domain.Activity
	interests   map[string]domain.Interest
	counters    map[string]*counterState
	preferences map[string]domain.UserPreferences
}

type counterState struct {
	totals domain.CounterTotals
	daily  map[time.Time]*domain.DailyCounters
}

// NewStore constructs an empty Store.
func NewStore() *Store {
	return &Store{
		activities:  make(map[string]domain.Activity),
		interests:   make(map[string]domain.Interest),
		counters:    make(map[string]*counterState),
		preferences: make(map[string]domain.UserPreferences),
	}
}

func interestKey(activityID, userID string) string {
	return activityID + "|" + userID
}

// CreateActivity implements domain.ActivityRepository.
func (s *Store) CreateActivity(ctx context.Context, activity domain.Activity) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.activities[activity.ID]; exists {
		return fmt.Errorf("%w: duplicate activity id %s", domain.ErrInvalidInput, activity.ID)
	}
	s.activities[activity.ID] = cloneActivity(activity)
	return nil
}

// GetActivity implements domain.ActivityRepository.
func (s *Store) GetActivity(ctx context.Context, activityID string) (*domain.Activity, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.getLocked(activityID)
}

func (s *Store) getLocked(activityID string) (*domain.Activity, error) {
	activity, ok := s.activities[activityID]
	if !ok {
		return nil, domain.ErrActivityNotFound
	}
	copied := cloneActivity(activity)
	return &copied, nil
}

// ListActivities implements domain.ActivityRepository.
func (s *Store) ListActivities(ctx context.Context, filter domain.ActivityFilter) ([]domain.Activity, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	results := make([]domain.Activity, 0)
	for _, activity := range s.activities {
		if filter.Title != "" && !strings.Contains(strings.ToLower(activity.Title), strings.ToLower(filter.Title)) {
			continue
		}
		if filter.Status != "" && activity.Status != filter.Status {
			continue
		}
		if filter.Difficulty != "" && activity.Difficulty != filter.Difficulty {
			continue
		}
		if filter.OwnerID != "" && activity.OwnerID != filter.OwnerID {
			continue
		}
		if filter.ParticipantID != "" && !activity.HasParticipant(filter.ParticipantID) {
			continue
		}
		results = append(results, cloneActivity(activity))
	}

	sort.Slice(results, func(i, j int) bool {
		if results[i].ScheduledAt.Equal(results[j].ScheduledAt) {
			return results[i].ID < results[j].ID
		}
		return results[i].ScheduledAt.Before(results[j].ScheduledAt)
	})
	return results, nil
}

// UpdateActivity implements domain.ActivityRepository.
func (s *Store) UpdateActivity(ctx context.Context, activityID string, patch domain.ActivityPatch) (*domain.Activity, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	activity, err := s.getLocked(activityID)
	if err != nil {
		return nil, err
	}
	if err := patch.Apply(activity); err != nil {
		return nil, err
	}
	activity.UpdatedAt = time.Now().UTC()
	s.activities[activityID] = cloneActivity(*activity)
	return activity, nil
}

// AddParticipant implements domain.ActivityRepository. The store mutex is the
// per-activity exclusion scope: the capacity check, the membership write and
// the joins counter commit together or not at all.
func (s *Store) AddParticipant(ctx context.Context, activityID, userID string, day time.Time) (*domain.Activity, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	activity, err := s.getLocked(activityID)
	if err != nil {
		return nil, err
	}
	if err := activity.Admit(userID); err != nil {
		return nil, err
	}
	activity.UpdatedAt = time.Now().UTC()
	s.activities[activityID] = cloneActivity(*activity)
	s.applyDeltaLocked(activityID, domain.CounterDelta{Joins: 1, Day: day})
	return activity, nil
}

// RemoveParticipant implements domain.ActivityRepository.
func (s *Store) RemoveParticipant(ctx context.Context, activityID, userID string) (*domain.Activity, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	activity, err := s.getLocked(activityID)
	if err != nil {
		return nil, err
	}
	if err := activity.Withdraw(userID); err != nil {
		return nil, err
	}
	activity.UpdatedAt = time.Now().UTC()
	s.activities[activityID] = cloneActivity(*activity)
	return activity, nil
}

// DeleteActivity implements domain.ActivityRepository. The purge of interest
// records and counters happens under the same lock as the activity removal.
func (s *Store) DeleteActivity(ctx context.Context, activityID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.activities[activityID]; !ok {
		return domain.ErrActivityNotFound
	}
	delete(s.activities, activityID)
	for key, interest := range s.interests {
		if interest.ActivityID == activityID {
			delete(s.interests, key)
		}
	}
	delete(s.counters, activityID)
	return nil
}

// UpsertInterest implements domain.InterestRepository.
func (s *Store) UpsertInterest(ctx context.Context, interest domain.Interest) (domain.Interest, *domain.SwipeAction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	activity, ok := s.activities[interest.ActivityID]
	if !ok {
		return domain.Interest{}, nil, domain.ErrActivityNotFound
	}
	if activity.Status == domain.ActivityStatusCancelled {
		return domain.Interest{}, nil, fmt.Errorf("%w: activity is cancelled", domain.ErrActivityNotOpen)
	}

	key := interestKey(interest.ActivityID, interest.UserID)
	var prior *domain.SwipeAction
	if existing, ok := s.interests[key]; ok {
		action := existing.Action
		prior = &action
		interest.CreatedAt = existing.CreatedAt
	}
	s.interests[key] = interest
	s.applyDeltaLocked(interest.ActivityID, domain.SwipeCounterDelta(prior, interest.Action, domain.BucketDay(interest.UpdatedAt)))
	return interest, prior, nil
}

// GetInterest implements domain.InterestRepository.
func (s *Store) GetInterest(ctx context.Context, activityID, userID string) (*domain.Interest, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	interest, ok := s.interests[interestKey(activityID, userID)]
	if !ok {
		return nil, nil
	}
	return &interest, nil
}

// IncrementCounters implements domain.CounterRepository.
func (s *Store) IncrementCounters(ctx context.Context, activityID string, delta domain.CounterDelta) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.applyDeltaLocked(activityID, delta)
	return nil
}

// CounterSnapshot implements domain.CounterRepository.
func (s *Store) CounterSnapshot(ctx context.Context, activityID string) (*domain.ActivityCounters, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	snapshot := &domain.ActivityCounters{ActivityID: activityID}
	state, ok := s.counters[activityID]
	if !ok {
		return snapshot, nil
	}
	snapshot.Totals = state.totals
	for _, bucket := range state.daily {
		snapshot.Daily = append(snapshot.Daily, *bucket)
	}
	sort.Slice(snapshot.Daily, func(i, j int) bool {
		return snapshot.Daily[i].Day.Before(snapshot.Daily[j].Day)
	})
	return snapshot, nil
}

func (s *Store) applyDeltaLocked(activityID string, delta domain.CounterDelta) {
	if delta.IsZero() {
		return
	}
	state, ok := s.counters[activityID]
	if !ok {
		state = &counterState{daily: make(map[time.Time]*domain.DailyCounters)}
		s.counters[activityID] = state
	}
	state.totals.Views += delta.Views
	state.totals.Likes += delta.Likes
	state.totals.Passes += delta.Passes
	state.totals.Joins += delta.Joins

	day := domain.BucketDay(delta.Day)
	bucket, ok := state.daily[day]
	if !ok {
		bucket = &domain.DailyCounters{Day: day}
		state.daily[day] = bucket
	}
	bucket.Views += delta.Views
	bucket.Likes += delta.Likes
	bucket.Passes += delta.Passes
	bucket.Joins += delta.Joins
}

// GetPreferences implements matching.PreferenceRepository.
func (s *Store) GetPreferences(ctx context.Context, userID string) (*domain.UserPreferences, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	prefs, ok := s.preferences[userID]
	if !ok {
		return nil, domain.ErrPreferencesNotFound
	}
	copied := prefs
	copied.Interests = append([]string(nil), prefs.Interests...)
	copied.Difficulties = append([]string(nil), prefs.Difficulties...)
	return &copied, nil
}

// PutPreferences implements matching.PreferenceRepository.
func (s *Store) PutPreferences(ctx context.Context, prefs domain.UserPreferences) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	prefs.Interests = append([]string(nil), prefs.Interests...)
	prefs.Difficulties = append([]string(nil), prefs.Difficulties...)
	s.preferences[prefs.UserID] = prefs
	return nil
}

func cloneActivity(activity domain.Activity) domain.Activity {
	activity.ParticipantIDs = append([]string(nil), activity.ParticipantIDs...)
	activity.Tags = append([]string(nil), activity.Tags...)
	return activity
}
