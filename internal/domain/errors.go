package domain

import "errors"

var (
	// ErrInvalidInput indicates malformed input the caller must fix.
	ErrInvalidInput = errors.New("invalid input")
	// ErrNotAuthorized indicates the caller lacks the required role or ownership.
	ErrNotAuthorized = errors.New("not authorized")
	// ErrActivityNotFound is returned when an activity cannot be located.
	ErrActivityNotFound = errors.New("activity not found")
	// ErrActivityNotOpen indicates the activity is not in a joinable state.
	ErrActivityNotOpen = errors.New("activity not open")
	// ErrAlreadyEnrolled indicates the user is already a participant.
	ErrAlreadyEnrolled = errors.New("already enrolled")
	// ErrNotEnrolled indicates the user is not currently a participant.
	ErrNotEnrolled = errors.New("not enrolled")
	// ErrActivityFull indicates the capacity check lost; retrying the same
	// activity will keep failing until someone leaves.
	ErrActivityFull = errors.New("activity is full")
	// ErrInvalidSwipeAction indicates a swipe action outside {like, pass}.
	ErrInvalidSwipeAction = errors.New("invalid swipe action")
	// ErrPreferencesNotFound is returned when a user has no stored preferences.
	ErrPreferencesNotFound = errors.New("preferences not found")
	// ErrStoreUnavailable wraps transient store I/O failures. The engine does
	// not retry; a failed operation leaves no partial mutation behind.
	ErrStoreUnavailable = errors.New("store unavailable")
)
