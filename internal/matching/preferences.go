// Package matching provides the preference-intersection match rule.
package matching

import (
	"context"
	"errors"

	"github.com/Joy-oyo/fenverest/internal/domain"
)

// PreferenceRepository stores participant swipe preferences.
type PreferenceRepository interface {
	GetPreferences(ctx context.Context, userID string) (*domain.UserPreferences, error)
	PutPreferences(ctx context.Context, prefs domain.UserPreferences) error
}

// PreferencePredicate implements domain.MatchPredicate: a like is a match
// when the liker's interests intersect the activity's tags, or the activity's
// difficulty is among the liker's preferred difficulties. Users without
// stored preferences never match.
type PreferencePredicate struct {
	activities  domain.ActivityRepository
	preferences PreferenceRepository
}

// NewPreferencePredicate constructs the predicate.
func NewPreferencePredicate(activities domain.ActivityRepository, preferences PreferenceRepository) *PreferencePredicate {
	return &PreferencePredicate{activities: activities, preferences: preferences}
}

// Matches implements domain.MatchPredicate.
func (p *PreferencePredicate) Matches(ctx context.Context, userID, activityID string) (bool, error) {
	prefs, err := p.preferences.GetPreferences(ctx, userID)
	if err != nil {
		if errors.Is(err, domain.ErrPreferencesNotFound) {
			return false, nil
		}
		return false, err
	}

	activity, err := p.activities.GetActivity(ctx, activityID)
	if err != nil {
		return false, err
	}

	if intersects(prefs.Interests, activity.Tags) {
		return true, nil
	}
	if activity.Difficulty != "" && contains(prefs.Difficulties, activity.Difficulty) {
		return true, nil
	}
	return false, nil
}

func intersects(a, b []string) bool {
	if len(a) == 0 || len(b) == 0 {
		return false
	}
	set := make(map[string]struct{}, len(a))
	for _, item := range a {
		set[item] = struct{}{}
	}
	for _, item := range b {
		if _, ok := set[item]; ok {
			return true
		}
	}
	return false
}

func contains(list []string, want string) bool {
	for _, item := range list {
		if item == want {
			return true
		}
	}
	return false
}
