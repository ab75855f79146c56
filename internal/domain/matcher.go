package domain

import (
	"context"
	"fmt"
	"time"
)

// InterestRepository persists swipe signals. UpsertInterest is keyed on the
// (user, activity) pair: it returns the record as stored (original CreatedAt
// on overwrite) plus the action it superseded, if any, and commits the
// interest write together with its counter correction as one atomic unit.
// Concurrent swipes by the same user on the same activity serialize inside
// the store; both can never observe "no prior interest".
type InterestRepository interface {
	UpsertInterest(ctx context.Context, interest Interest) (stored Interest, prior *SwipeAction, err error)
	GetInterest(ctx context.Context, activityID, userID string) (*Interest, error)
}

// MatchPredicate is the pluggable business rule deciding whether a like
// constitutes a match. The engine invokes it exactly once per like-producing
// call and never on pass.
type MatchPredicate interface {
	Matches(ctx context.Context, userID, activityID string) (bool, error)
}

// MatchPredicateFunc adapts a function to the MatchPredicate interface.
type MatchPredicateFunc func(ctx context.Context, userID, activityID string) (bool, error)

// Matches implements MatchPredicate.
func (f MatchPredicateFunc) Matches(ctx context.Context, userID, activityID string) (bool, error) {
	return f(ctx, userID, activityID)
}

// InterestMatcher records like/pass signals and derives match outcomes.
type InterestMatcher struct {
	interests InterestRepository
	predicate MatchPredicate
	now       func() time.Time
}

// NewInterestMatcher constructs an InterestMatcher.
func NewInterestMatcher(interests InterestRepository, predicate MatchPredicate) *InterestMatcher {
	return &InterestMatcher{interests: interests, predicate: predicate, now: time.Now}
}

// RecordInterest upserts the (user, activity) swipe, corrects the aggregate
// counters net of any superseded action, and evaluates the match predicate
// for likes. The predicate runs after the interest record is durably written
// so the outcome is never computed against stale state.
func (m *InterestMatcher) RecordInterest(ctx context.Context, activityID, userID string, action SwipeAction) (*MatchOutcome, error) {
	if !action.Valid() {
		return nil, fmt.Errorf("%w: %q", ErrInvalidSwipeAction, action)
	}

	now := m.now().UTC()
	interest := Interest{
		UserID:     userID,
		ActivityID: activityID,
		Action:     action,
		CreatedAt:  now,
		UpdatedAt:  now,
	}

	stored, _, err := m.interests.UpsertInterest(ctx, interest)
	if err != nil {
		return nil, err
	}

	outcome := &MatchOutcome{Interest: stored}
	if action == SwipeLike {
		isMatch, err := m.predicate.Matches(ctx, userID, activityID)
		if err != nil {
			return nil, err
		}
		outcome.IsMatch = isMatch
	}
	return outcome, nil
}
