// Package domain defines the enrollment and interest-matching engine.
package domain

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// ActivityRepository captures persistence operations for activities and
// membership. AddParticipant and RemoveParticipant evaluate the membership
// laws and the joins-counter bump against one consistent snapshot inside the
// store's per-activity exclusion scope, so two concurrent joins on the last
// slot can never both succeed.
type ActivityRepository interface {
	CreateActivity(ctx context.Context, activity Activity) error
	GetActivity(ctx context.Context, activityID string) (*Activity, error)
	ListActivities(ctx context.Context, filter ActivityFilter) ([]Activity, error)
	UpdateActivity(ctx context.Context, activityID string, patch ActivityPatch) (*Activity, error)
	AddParticipant(ctx context.Context, activityID, userID string, day time.Time) (*Activity, error)
	RemoveParticipant(ctx context.Context, activityID, userID string) (*Activity, error)
	// DeleteActivity removes the activity together with its interests and
	// counters as a single transactional fan-out.
	DeleteActivity(ctx context.Context, activityID string) error
}

// RoleOrganizer is the role allowed to create and mutate activities. The
// identity gate supplies it; the engine only compares.
const RoleOrganizer = "organizer"

// EnrollmentManager enforces capacity and ownership rules for activities.
type EnrollmentManager struct {
	activities ActivityRepository
	now        func() time.Time
}

// NewEnrollmentManager constructs an EnrollmentManager.
func NewEnrollmentManager(activities ActivityRepository) *EnrollmentManager {
	return &EnrollmentManager{activities: activities, now: time.Now}
}

// CreateActivityInput captures the payload from the API layer.
type CreateActivityInput struct {
	OwnerID     string
	OwnerRole   string
	Title       string
	Description string
	ScheduledAt time.Time
	DurationMin int
	Capacity    int
	Tags        []string
	Difficulty  string
}

// Validate ensures the activity fields are well formed.
func (in CreateActivityInput) Validate() error {
	if strings.TrimSpace(in.Title) == "" {
		return fmt.Errorf("%w: title is required", ErrInvalidInput)
	}
	if in.ScheduledAt.IsZero() {
		return fmt.Errorf("%w: scheduled_at is required", ErrInvalidInput)
	}
	if in.DurationMin <= 0 {
		return fmt.Errorf("%w: duration_min must be > 0", ErrInvalidInput)
	}
	if in.Capacity < 1 {
		return fmt.Errorf("%w: capacity must be at least 1", ErrInvalidInput)
	}
	return nil
}

// CreateActivity publishes a new scheduled activity for an organizer.
func (m *EnrollmentManager) CreateActivity(ctx context.Context, in CreateActivityInput) (*Activity, error) {
	if in.OwnerRole != RoleOrganizer {
		return nil, fmt.Errorf("%w: organizer role required", ErrNotAuthorized)
	}
	if err := in.Validate(); err != nil {
		return nil, err
	}

	now := m.now().UTC()
	activity := Activity{
		ID:             uuid.NewString(),
		Title:          in.Title,
		Description:    in.Description,
		OwnerID:        in.OwnerID,
		ScheduledAt:    in.ScheduledAt.UTC(),
		DurationMin:    in.DurationMin,
		Capacity:       in.Capacity,
		ParticipantIDs: []string{},
		Status:         ActivityStatusScheduled,
		Tags:           in.Tags,
		Difficulty:     in.Difficulty,
		CreatedAt:      now,
		UpdatedAt:      now,
	}

	if err := m.activities.CreateActivity(ctx, activity); err != nil {
		return nil, err
	}
	return &activity, nil
}

// GetActivity fetches one activity by ID.
func (m *EnrollmentManager) GetActivity(ctx context.Context, activityID string) (*Activity, error) {
	return m.activities.GetActivity(ctx, activityID)
}

// ListActivities returns activities matching the filter.
func (m *EnrollmentManager) ListActivities(ctx context.Context, filter ActivityFilter) ([]Activity, error) {
	return m.activities.ListActivities(ctx, filter)
}

// Join enrolls userID into the activity. The existence, status, duplicate and
// capacity checks run atomically in the store; the Nth join exactly filling
// capacity succeeds and the next one fails with ErrActivityFull.
func (m *EnrollmentManager) Join(ctx context.Context, activityID, userID string) (*Activity, error) {
	return m.activities.AddParticipant(ctx, activityID, userID, BucketDay(m.now()))
}

// Leave withdraws userID. The joins counter is historical and is not
// decremented; a later rejoin counts again.
func (m *EnrollmentManager) Leave(ctx context.Context, activityID, userID string) (*Activity, error) {
	return m.activities.RemoveParticipant(ctx, activityID, userID)
}

// UpdateActivity applies an owner-issued patch to non-membership fields.
func (m *EnrollmentManager) UpdateActivity(ctx context.Context, activityID, callerID string, patch ActivityPatch) (*Activity, error) {
	if err := m.requireOwner(ctx, activityID, callerID); err != nil {
		return nil, err
	}
	return m.activities.UpdateActivity(ctx, activityID, patch)
}

// CancelActivity transitions the activity to its terminal cancelled status.
func (m *EnrollmentManager) CancelActivity(ctx context.Context, activityID, callerID string) (*Activity, error) {
	status := ActivityStatusCancelled
	return m.UpdateActivity(ctx, activityID, callerID, ActivityPatch{Status: &status})
}

// DeleteActivity removes the activity and cascades the purge of its interest
// records and counters in one transactional unit.
func (m *EnrollmentManager) DeleteActivity(ctx context.Context, activityID, callerID string) error {
	if err := m.requireOwner(ctx, activityID, callerID); err != nil {
		return err
	}
	return m.activities.DeleteActivity(ctx, activityID)
}

func (m *EnrollmentManager) requireOwner(ctx context.Context, activityID, callerID string) error {
	activity, err := m.activities.GetActivity(ctx, activityID)
	if err != nil {
		return err
	}
	// OwnerID is immutable, so checking outside the store's write scope is safe.
	if activity.OwnerID != callerID {
		return fmt.Errorf("%w: caller does not own this activity", ErrNotAuthorized)
	}
	return nil
}
