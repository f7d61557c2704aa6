package ratelimit

import (
	"context"
	"time"
)

const (
	DefaultLimit  = 5
	DefaultWindow = time.Hour
)

// Limiter throttles claim submissions per hashed client identity.
type Limiter interface {
	IsLimited(ctx context.Context, identityHash string) (bool, error)
	// Record notes an accepted submission. Backends that derive counts from
	// stored claims treat it as a no-op.
	Record(ctx context.Context, identityHash string, at time.Time) error
}
