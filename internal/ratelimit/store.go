package ratelimit

import (
	"context"
	"fmt"
	"time"
)

// SubmissionCounter is the slice of the claim repository the limiter reads.
type SubmissionCounter interface {
	CountByIPHashSince(ctx context.Context, ipHash string, since time.Time) (int64, error)
}

var _ Limiter = (*StoreLimiter)(nil)

// StoreLimiter counts recent claim rows for the identity. It keeps no state
// of its own and takes no locks, so two racing submissions can both pass.
type StoreLimiter struct {
	counter SubmissionCounter
	limit   int64
	window  time.Duration
	now     func() time.Time
}

func NewStoreLimiter(counter SubmissionCounter, limit int, window time.Duration) (*StoreLimiter, error) {
	return newStoreLimiter(counter, limit, window, time.Now)
}

func newStoreLimiter(
	counter SubmissionCounter,
	limit int,
	window time.Duration,
	nowFn func() time.Time,
) (*StoreLimiter, error) {
	if counter == nil {
		return nil, fmt.Errorf("submission counter is required")
	}
	if limit <= 0 {
		limit = DefaultLimit
	}
	if window <= 0 {
		window = DefaultWindow
	}
	if nowFn == nil {
		nowFn = time.Now
	}

	return &StoreLimiter{
		counter: counter,
		limit:   int64(limit),
		window:  window,
		now:     nowFn,
	}, nil
}

func (l *StoreLimiter) IsLimited(ctx context.Context, identityHash string) (bool, error) {
	since := l.now().UTC().Add(-l.window)
	count, err := l.counter.CountByIPHashSince(ctx, identityHash, since)
	if err != nil {
		return false, fmt.Errorf("failed to count recent submissions: %w", err)
	}
	return count >= l.limit, nil
}

func (l *StoreLimiter) Record(context.Context, string, time.Time) error {
	return nil
}
