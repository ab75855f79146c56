// Package events defines the payloads published on the engagement streams.
package events

import "time"

// ActivityCreated is emitted when an organizer publishes a new activity.
type ActivityCreated struct {
	ActivityID  string    `json:"activity_id"`
	OwnerID     string    `json:"owner_id"`
	Title       string    `json:"title"`
	ScheduledAt time.Time `json:"scheduled_at"`
	DurationMin int       `json:"duration_min"`
	Capacity    int       `json:"capacity"`
	Difficulty  string    `json:"difficulty,omitempty"`
}

// ActivityClosed is emitted when an activity reaches a terminal status or is
// deleted by its owner.
type ActivityClosed struct {
	ActivityID string    `json:"activity_id"`
	OwnerID    string    `json:"owner_id"`
	Reason     string    `json:"reason"`
	OccurredAt time.Time `json:"occurred_at"`
}

// EnrollmentChanged tracks join/leave membership transitions.
type EnrollmentChanged struct {
	ActivityID string    `json:"activity_id"`
	UserID     string    `json:"user_id"`
	Change     string    `json:"change"`
	Enrolled   int       `json:"enrolled"`
	Capacity   int       `json:"capacity"`
	OccurredAt time.Time `json:"occurred_at"`
}

// InterestRecorded tracks swipe signals, including the action a resubmission
// superseded so downstream consumers can mirror the counter correction.
type InterestRecorded struct {
	ActivityID     string    `json:"activity_id"`
	UserID         string    `json:"user_id"`
	Action         string    `json:"action"`
	PreviousAction string    `json:"previous_action,omitempty"`
	OccurredAt     time.Time `json:"occurred_at"`
}
