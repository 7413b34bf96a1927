package service

import (
	"sort"
	"sync"
	"time"

	"github.com/modvault/session-security/internal/domain"
	"github.com/modvault/session-security/internal/repository"
)

type inMemoryUserRepo struct {
	mu      sync.Mutex
	nextID  uint
	byID    map[uint]*domain.User
	byEmail map[string]*domain.User

	failureErr error // injected into RecordLoginFailure
	successErr error // injected into RecordLoginSuccess
}

func newInMemoryUserRepo() *inMemoryUserRepo {
	return &inMemoryUserRepo{nextID: 1, byID: map[uint]*domain.User{}, byEmail: map[string]*domain.User{}}
}

func (r *inMemoryUserRepo) Create(u *domain.User) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := *u
	cp.ID = r.nextID
	r.nextID++
	r.byID[cp.ID] = &cp
	r.byEmail[cp.Email] = &cp
	*u = cp
	return nil
}

func (r *inMemoryUserRepo) FindByID(id uint) (*domain.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	u, ok := r.byID[id]
	if !ok {
		return nil, repository.ErrUserNotFound
	}
	cp := *u
	return &cp, nil
}

func (r *inMemoryUserRepo) FindByEmail(email string) (*domain.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	u, ok := r.byEmail[email]
	if !ok {
		return nil, repository.ErrUserNotFound
	}
	cp := *u
	return &cp, nil
}

func (r *inMemoryUserRepo) RecordLoginFailure(userID uint, threshold int, lockout time.Duration, now time.Time) (*domain.User, bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.failureErr != nil {
		return nil, false, r.failureErr
	}
	u, ok := r.byID[userID]
	if !ok {
		return nil, false, repository.ErrUserNotFound
	}
	u.TotalLoginAttempts++
	u.FailedLoginCount++
	failedAt := now
	u.LastFailedAttempt = &failedAt
	locked := false
	if u.FailedLoginCount >= threshold {
		until := now.Add(lockout)
		u.LockedUntil = &until
		u.FailedLoginCount = 0
		locked = true
	}
	cp := *u
	return &cp, locked, nil
}

func (r *inMemoryUserRepo) RecordLoginSuccess(userID uint) (*domain.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.successErr != nil {
		return nil, r.successErr
	}
	u, ok := r.byID[userID]
	if !ok {
		return nil, repository.ErrUserNotFound
	}
	u.FailedLoginCount = 0
	u.LastFailedAttempt = nil
	u.LockedUntil = nil
	cp := *u
	return &cp, nil
}

type inMemorySessionRepo struct {
	mu      sync.Mutex
	nextID  uint
	byToken map[string]*domain.Session

	createErr error
}

func newInMemorySessionRepo() *inMemorySessionRepo {
	return &inMemorySessionRepo{nextID: 1, byToken: map[string]*domain.Session{}}
}

func (r *inMemorySessionRepo) Create(s *domain.Session) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.createErr != nil {
		return r.createErr
	}
	cp := *s
	cp.ID = r.nextID
	r.nextID++
	r.byToken[cp.SessionToken] = &cp
	*s = cp
	return nil
}

func (r *inMemorySessionRepo) FindActiveByToken(token string) (*domain.Session, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.byToken[token]
	if !ok || !s.IsActive || s.ExpiresAt.Before(time.Now()) {
		return nil, repository.ErrSessionNotFound
	}
	cp := *s
	return &cp, nil
}

func (r *inMemorySessionRepo) ListActiveByUserID(userID uint) ([]domain.Session, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []domain.Session
	for _, s := range r.byToken {
		if s.UserID == userID && s.IsActive && s.ExpiresAt.After(time.Now()) {
			out = append(out, *s)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].LoginTime.After(out[j].LoginTime) })
	return out, nil
}

func (r *inMemorySessionRepo) TouchActivity(sessionID uint) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, s := range r.byToken {
		if s.ID == sessionID && s.IsActive {
			s.LastActivity = time.Now()
		}
	}
	return nil
}

func (r *inMemorySessionRepo) Deactivate(token string, reason domain.LogoutReason) (*domain.Session, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.byToken[token]
	if !ok || !s.IsActive {
		return nil, repository.ErrSessionNotFound
	}
	now := time.Now().UTC()
	s.IsActive = false
	s.LogoutTime = &now
	s.LogoutReason = &reason
	cp := *s
	return &cp, nil
}

func (r *inMemorySessionRepo) ForceLogoutAllForUser(userID uint, excludeToken string) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	now := time.Now().UTC()
	reason := domain.LogoutForced
	var count int64
	for _, s := range r.byToken {
		if s.UserID != userID || !s.IsActive || s.SessionToken == excludeToken {
			continue
		}
		s.IsActive = false
		s.LogoutTime = &now
		s.LogoutReason = &reason
		count++
	}
	return count, nil
}

func (r *inMemorySessionRepo) ExpireStale() (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	now := time.Now().UTC()
	reason := domain.LogoutTokenExpired
	var count int64
	for _, s := range r.byToken {
		if s.IsActive && s.ExpiresAt.Before(now) {
			s.IsActive = false
			s.LogoutTime = &now
			s.LogoutReason = &reason
			count++
		}
	}
	return count, nil
}

type inMemoryHistoryRepo struct {
	mu      sync.Mutex
	nextID  uint
	entries []*domain.LoginHistory

	recordErr error
	queryErr  error // injected into every read
}

func newInMemoryHistoryRepo() *inMemoryHistoryRepo {
	return &inMemoryHistoryRepo{nextID: 1}
}

func (r *inMemoryHistoryRepo) Record(entry *domain.LoginHistory) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.recordErr != nil {
		return r.recordErr
	}
	cp := *entry
	cp.ID = r.nextID
	r.nextID++
	r.entries = append(r.entries, &cp)
	*entry = cp
	return nil
}

func (r *inMemoryHistoryRepo) FindByUser(userID uint, limit int) ([]domain.LoginHistory, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.queryErr != nil {
		return nil, r.queryErr
	}
	var out []domain.LoginHistory
	for _, e := range r.entries {
		if e.UserID == userID {
			out = append(out, *e)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].AttemptedAt.After(out[j].AttemptedAt) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (r *inMemoryHistoryRepo) CountFailedByEmailSince(email string, since time.Time) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.queryErr != nil {
		return 0, r.queryErr
	}
	var count int64
	for _, e := range r.entries {
		if e.Email == email && !e.Success && !e.AttemptedAt.Before(since) {
			count++
		}
	}
	return count, nil
}

func (r *inMemoryHistoryRepo) CountSuccessfulByUserSince(userID uint, since time.Time) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.queryErr != nil {
		return 0, r.queryErr
	}
	var count int64
	for _, e := range r.entries {
		if e.UserID == userID && e.Success && !e.AttemptedAt.Before(since) {
			count++
		}
	}
	return count, nil
}

func (r *inMemoryHistoryRepo) RecentSuccessfulByUser(userID uint, since time.Time, limit int) ([]domain.LoginHistory, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.queryErr != nil {
		return nil, r.queryErr
	}
	var out []domain.LoginHistory
	for _, e := range r.entries {
		if e.UserID == userID && e.Success && !e.AttemptedAt.Before(since) {
			out = append(out, *e)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].AttemptedAt.After(out[j].AttemptedAt) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (r *inMemoryHistoryRepo) FindSuspiciousSince(since time.Time, limit int) ([]domain.LoginHistory, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.queryErr != nil {
		return nil, r.queryErr
	}
	var out []domain.LoginHistory
	for _, e := range r.entries {
		if e.IsSuspiciousActivity && !e.AttemptedAt.Before(since) {
			out = append(out, *e)
		}
	}
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (r *inMemoryHistoryRepo) AggregateStats(userID uint, since time.Time) (domain.LoginStats, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.queryErr != nil {
		return domain.LoginStats{}, r.queryErr
	}
	stats := domain.LoginStats{}
	for _, e := range r.entries {
		if e.UserID != userID || e.AttemptedAt.Before(since) {
			continue
		}
		stats.TotalAttempts++
		if e.Success {
			stats.SuccessfulLogins++
		} else {
			stats.FailedAttempts++
		}
	}
	if stats.TotalAttempts > 0 {
		stats.SuccessRate = float64(stats.SuccessfulLogins) / float64(stats.TotalAttempts) * 100
	}
	return stats, nil
}

func (r *inMemoryHistoryRepo) BackfillSessionEnd(sessionToken string, logoutTime time.Time, reason domain.LogoutReason) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i := len(r.entries) - 1; i >= 0; i-- {
		e := r.entries[i]
		if e.SessionToken == sessionToken && e.Success {
			duration := logoutTime.Sub(e.AttemptedAt).Milliseconds()
			if duration < 0 {
				duration = 0
			}
			e.SessionDuration = &duration
			lt := logoutTime
			e.LogoutTime = &lt
			e.LogoutReason = &reason
			return nil
		}
	}
	return nil
}

func (r *inMemoryHistoryRepo) lastEntry() *domain.LoginHistory {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.entries) == 0 {
		return nil
	}
	cp := *r.entries[len(r.entries)-1]
	return &cp
}

func fixedClock(at time.Time) Clock {
	return func() time.Time { return at }
}
