package domain

import (
	"context"
	"time"
)

// CounterRepository exposes the aggregate counter store. Increment is an
// atomic add per (activity, field, day); Snapshot never returns a total
// without its matching daily bucket.
type CounterRepository interface {
	IncrementCounters(ctx context.Context, activityID string, delta CounterDelta) error
	CounterSnapshot(ctx context.Context, activityID string) (*ActivityCounters, error)
}

// CounterService owns the aggregate counters component. The enrollment and
// interest paths feed joins/likes/passes through their own atomic commits;
// this service covers view tracking and reads.
type CounterService struct {
	counters CounterRepository
	now      func() time.Time
}

// NewCounterService constructs a CounterService.
func NewCounterService(counters CounterRepository) *CounterService {
	return &CounterService{counters: counters, now: time.Now}
}

// RecordView bumps the view counters for today's bucket.
func (s *CounterService) RecordView(ctx context.Context, activityID string) error {
	return s.counters.IncrementCounters(ctx, activityID, CounterDelta{
		Views: 1,
		Day:   BucketDay(s.now()),
	})
}

// Snapshot returns the point-in-time counters for one activity.
func (s *CounterService) Snapshot(ctx context.Context, activityID string) (*ActivityCounters, error) {
	return s.counters.CounterSnapshot(ctx, activityID)
}
