package service

import (
	"context"
	"time"
)

// LoginAttemptLimiter is the pre-auth fixed-window limiter in front of the
// login endpoint. It is a blunt volume control keyed by client IP; the
// per-account throttle behind it remains the security boundary, so callers
// fail open when the limiter backend is down.
type LoginAttemptLimiter interface {
	Allow(ctx context.Context, key string) (allowed bool, retryAfter time.Duration, err error)
}

type noopLoginLimiter struct{}

func (noopLoginLimiter) Allow(context.Context, string) (bool, time.Duration, error) {
	return true, 0, nil
}

// NewNoopLoginLimiter is used when no redis backend is configured.
func NewNoopLoginLimiter() LoginAttemptLimiter { return noopLoginLimiter{} }
