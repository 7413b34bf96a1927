package service

import (
	"fmt"
	"time"

	"github.com/modvault/session-security/internal/domain"
	"github.com/modvault/session-security/internal/observability"
	"github.com/modvault/session-security/internal/repository"
)

// AccountLockedError carries the remaining lockout for the caller's
// "try again in N seconds" message.
type AccountLockedError struct {
	RetryAfter time.Duration
}

func (e *AccountLockedError) Error() string {
	return fmt.Sprintf("account locked, retry in %s", e.RetryAfter.Round(time.Second))
}

// LoginThrottle is the per-account failed-attempt counter and lockout clock.
// The mutations are atomic read-modify-writes in the user repository; this
// service owns the policy (threshold, lock duration) and the read-side checks.
type LoginThrottle struct {
	users     repository.UserRepository
	threshold int
	lockout   time.Duration
	now       Clock
}

func NewLoginThrottle(users repository.UserRepository, threshold int, lockout time.Duration) *LoginThrottle {
	if threshold < 1 {
		threshold = 1
	}
	return &LoginThrottle{users: users, threshold: threshold, lockout: lockout, now: systemClock}
}

func (t *LoginThrottle) WithClock(now Clock) *LoginThrottle {
	t.now = now
	return t
}

func (t *LoginThrottle) IsLocked(u *domain.User) bool {
	return u.LockedUntil != nil && u.LockedUntil.After(t.now())
}

// RemainingLock is monotonically non-increasing while locked and zero once
// the lock window has passed.
func (t *LoginThrottle) RemainingLock(u *domain.User) time.Duration {
	if u.LockedUntil == nil {
		return 0
	}
	remaining := u.LockedUntil.Sub(t.now())
	if remaining < 0 {
		return 0
	}
	return remaining
}

// RecordFailure registers one failed attempt. Reaching the threshold locks
// the account for the configured window and resets the counter, leaving one
// probation attempt once the lock elapses.
func (t *LoginThrottle) RecordFailure(userID uint) (*domain.User, error) {
	user, locked, err := t.users.RecordLoginFailure(userID, t.threshold, t.lockout, t.now())
	if err != nil {
		return nil, fmt.Errorf("record login failure: %w", err)
	}
	if locked {
		observability.RecordLockout()
	}
	return user, nil
}

func (t *LoginThrottle) RecordSuccess(userID uint) (*domain.User, error) {
	user, err := t.users.RecordLoginSuccess(userID)
	if err != nil {
		return nil, fmt.Errorf("record login success: %w", err)
	}
	return user, nil
}
