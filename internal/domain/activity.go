package domain

import (
	"fmt"
	"strings"
	"time"
)

// ActivityStatus tracks the lifecycle of a scheduled activity.
type ActivityStatus string

const (
	ActivityStatusScheduled ActivityStatus = "scheduled"
	ActivityStatusCompleted ActivityStatus = "completed"
	ActivityStatusCancelled ActivityStatus = "cancelled"
)

// Terminal reports whether no further status transitions are allowed.
func (s ActivityStatus) Terminal() bool {
	return s == ActivityStatusCompleted || s == ActivityStatusCancelled
}

// Activity is a time-boxed, capacity-limited offering published by an organizer.
type Activity struct {
	ID             string
	Title          string
	Description    string
	OwnerID        string
	ScheduledAt    time.Time
	DurationMin    int
	Capacity       int
	ParticipantIDs []string
	Status         ActivityStatus
	Tags           []string
	Difficulty     string
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// HasParticipant reports whether userID is currently enrolled.
func (a *Activity) HasParticipant(userID string) bool {
	for _, id := range a.ParticipantIDs {
		if id == userID {
			return true
		}
	}
	return false
}

// Admit adds userID to the participant set after re-checking every join
// precondition. It must be called against the snapshot the store holds under
// its per-activity exclusion scope so that capacity stays linearizable.
func (a *Activity) Admit(userID string) error {
	if a.Status != ActivityStatusScheduled {
		return fmt.Errorf("%w: activity is %s", ErrActivityNotOpen, a.Status)
	}
	if a.HasParticipant(userID) {
		return ErrAlreadyEnrolled
	}
	if len(a.ParticipantIDs) >= a.Capacity {
		return ErrActivityFull
	}
	a.ParticipantIDs = append(a.ParticipantIDs, userID)
	return nil
}

// Withdraw removes userID from the participant set.
func (a *Activity) Withdraw(userID string) error {
	for i, id := range a.ParticipantIDs {
		if id == userID {
			a.ParticipantIDs = append(a.ParticipantIDs[:i], a.ParticipantIDs[i+1:]...)
			return nil
		}
	}
	return ErrNotEnrolled
}

// ActivityPatch carries the owner-editable fields. Membership is deliberately
// absent: participant changes only flow through Join and Leave.
type ActivityPatch struct {
	Title       *string
	Description *string
	ScheduledAt *time.Time
	DurationMin *int
	Capacity    *int
	Tags        []string
	Difficulty  *string
	Status      *ActivityStatus
}

// Apply mutates the activity in place, enforcing field validity and the
// terminal status-transition rule.
func (p ActivityPatch) Apply(a *Activity) error {
	if p.Status != nil {
		next := *p.Status
		if next != ActivityStatusScheduled && next != ActivityStatusCompleted && next != ActivityStatusCancelled {
			return fmt.Errorf("%w: unknown status %q", ErrInvalidInput, next)
		}
		if next != a.Status {
			if a.Status.Terminal() {
				return fmt.Errorf("%w: activity is already %s", ErrActivityNotOpen, a.Status)
			}
			a.Status = next
		}
	}
	if p.Title != nil {
		if strings.TrimSpace(*p.Title) == "" {
			return fmt.Errorf("%w: title must not be empty", ErrInvalidInput)
		}
		a.Title = *p.Title
	}
	if p.Description != nil {
		a.Description = *p.Description
	}
	if p.ScheduledAt != nil {
		if p.ScheduledAt.IsZero() {
			return fmt.Errorf("%w: scheduled_at is required", ErrInvalidInput)
		}
		a.ScheduledAt = p.ScheduledAt.UTC()
	}
	if p.DurationMin != nil {
		if *p.DurationMin <= 0 {
			return fmt.Errorf("%w: duration_min must be > 0", ErrInvalidInput)
		}
		a.DurationMin = *p.DurationMin
	}
	if p.Capacity != nil {
		if *p.Capacity < 1 {
			return fmt.Errorf("%w: capacity must be at least 1", ErrInvalidInput)
		}
		if *p.Capacity < len(a.ParticipantIDs) {
			return fmt.Errorf("%w: capacity cannot drop below current enrollment", ErrInvalidInput)
		}
		a.Capacity = *p.Capacity
	}
	if p.Tags != nil {
		a.Tags = p.Tags
	}
	if p.Difficulty != nil {
		a.Difficulty = *p.Difficulty
	}
	return nil
}

// ActivityFilter narrows List results. Zero values mean "no constraint".
type ActivityFilter struct {
	Title         string
	Status        ActivityStatus
	Difficulty    string
	OwnerID       string
	ParticipantID string
}

// SwipeAction is a participant's directional signal toward an activity.
type SwipeAction string

const (
	SwipeLike SwipeAction = "like"
	SwipePass SwipeAction = "pass"
)

// Valid reports whether the action is one of the known swipe kinds.
func (s SwipeAction) Valid() bool {
	return s == SwipeLike || s == SwipePass
}

// Interest records the single per-(user, activity) swipe. A repeat swipe
// overwrites Action in place rather than growing the ledger.
type Interest struct {
	UserID     string
	ActivityID string
	Action     SwipeAction
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

// MatchOutcome is derived at write time from the interest just recorded and
// the activity it targets. It is returned to the caller, never stored.
type MatchOutcome struct {
	Interest Interest
	IsMatch  bool
}

// UserPreferences holds the stated interests a participant swipes with.
type UserPreferences struct {
	UserID       string
	Interests    []string
	Difficulties []string
	UpdatedAt    time.Time
}

// CounterTotals are the lifetime aggregate counters for one activity.
type CounterTotals struct {
	Views  int64
	Likes  int64
	Passes int64
	Joins  int64
}

// DailyCounters is one calendar-day bucket of the breakdown.
type DailyCounters struct {
	Day    time.Time
	Views  int64
	Likes  int64
	Passes int64
	Joins  int64
}

// ActivityCounters is a point-in-time snapshot of an activity's aggregates.
// Daily is ordered ascending by day.
type ActivityCounters struct {
	ActivityID string
	Totals     CounterTotals
	Daily      []DailyCounters
}

// CounterDelta is a signed adjustment applied atomically to the lifetime
// totals and to the bucket for Day.
type CounterDelta struct {
	Views  int64
	Likes  int64
	Passes int64
	Joins  int64
	Day    time.Time
}

// IsZero reports whether applying the delta would change nothing.
func (d CounterDelta) IsZero() bool {
	return d.Views == 0 && d.Likes == 0 && d.Passes == 0 && d.Joins == 0
}

// SwipeCounterDelta computes the counter adjustment for an interest upsert so
// that likes+passes always equals the number of distinct interest records: a
// superseded action is decremented in the same unit that increments the new
// one, and an identical resubmission nets out to zero.
func SwipeCounterDelta(prior *SwipeAction, next SwipeAction, day time.Time) CounterDelta {
	delta := CounterDelta{Day: day}
	if prior != nil && *prior == next {
		return delta
	}
	if prior != nil {
		switch *prior {
		case SwipeLike:
			delta.Likes--
		case SwipePass:
			delta.Passes--
		}
	}
	switch next {
	case SwipeLike:
		delta.Likes++
	case SwipePass:
		delta.Passes++
	}
	return delta
}

// BucketDay truncates a timestamp to its UTC calendar day.
func BucketDay(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}
