package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/modvault/session-security/internal/domain"
	"github.com/modvault/session-security/internal/fingerprint"
	"github.com/modvault/session-security/internal/geo"
	"github.com/modvault/session-security/internal/observability"
	"github.com/modvault/session-security/internal/repository"
	"github.com/modvault/session-security/internal/security"
)

var ErrInvalidCredentials = errors.New("invalid credentials")

const sessionTokenRetries = 3

type LoginRequest struct {
	Email     string
	Password  string
	UserAgent string
	IPAddress string
}

type LoginResult struct {
	User       *domain.User
	Session    *domain.Session
	Credential string
	Risk       Assessment
}

// SessionLifecycle orchestrates the login/logout flow: throttle gate,
// credential check, risk scoring, session creation and the login-history
// record for every attempt.
type SessionLifecycle struct {
	users    repository.UserRepository
	sessions repository.SessionRepository
	history  repository.LoginHistoryRepository
	throttle *LoginThrottle
	risk     *RiskAnalyzer
	geo      *geo.Resolver
	jwtMgr   *security.JWTManager

	sessionTTL time.Duration
	now        Clock
	logger     *slog.Logger
}

func NewSessionLifecycle(
	users repository.UserRepository,
	sessions repository.SessionRepository,
	history repository.LoginHistoryRepository,
	throttle *LoginThrottle,
	risk *RiskAnalyzer,
	geoResolver *geo.Resolver,
	jwtMgr *security.JWTManager,
	sessionTTL time.Duration,
	logger *slog.Logger,
) *SessionLifecycle {
	if logger == nil {
		logger = slog.Default()
	}
	return &SessionLifecycle{
		users:      users,
		sessions:   sessions,
		history:    history,
		throttle:   throttle,
		risk:       risk,
		geo:        geoResolver,
		jwtMgr:     jwtMgr,
		sessionTTL: sessionTTL,
		now:        systemClock,
		logger:     logger,
	}
}

func (s *SessionLifecycle) WithClock(now Clock) *SessionLifecycle {
	s.now = now
	return s
}

// Login runs the full attempt pipeline. Expected business failures come back
// as ErrInvalidCredentials or *AccountLockedError; anything else means the
// attempt was denied because a security-critical write failed.
func (s *SessionLifecycle) Login(ctx context.Context, req LoginRequest) (*LoginResult, error) {
	device := fingerprint.Parse(req.UserAgent)
	location, _ := s.geo.Resolve(ctx, req.IPAddress)

	user, err := s.users.FindByEmail(req.Email)
	if err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			s.recordAttempt(failedAttempt(0, req.Email, device, location, domain.FailureUserNotFound, s.now()))
			observability.RecordLoginAttempt("user_not_found")
			return nil, ErrInvalidCredentials
		}
		return nil, fmt.Errorf("lookup user: %w", err)
	}

	// Attempts during an active lock window never mutate throttle state and
	// never reach the credential check or the analyzer.
	if s.throttle.IsLocked(user) {
		retryAfter := s.throttle.RemainingLock(user)
		s.recordAttempt(failedAttempt(user.ID, req.Email, device, location, domain.FailureAccountLocked, s.now()))
		observability.RecordLoginAttempt("locked")
		return nil, &AccountLockedError{RetryAfter: retryAfter}
	}

	if !security.VerifyPassword(user.PasswordHash, req.Password) {
		// Fail closed: a throttle write failure denies the attempt rather
		// than letting it through unthrottled.
		if _, err := s.throttle.RecordFailure(user.ID); err != nil {
			return nil, err
		}
		s.recordAttempt(failedAttempt(user.ID, req.Email, device, location, domain.FailureInvalidCredentials, s.now()))
		observability.RecordLoginAttempt("invalid_credentials")
		return nil, ErrInvalidCredentials
	}

	if _, err := s.throttle.RecordSuccess(user.ID); err != nil {
		return nil, err
	}

	assessment := s.risk.Analyze(req.Email, user.ID, req.IPAddress, req.UserAgent)

	session, credential, err := s.createSession(user, device, location)
	if err != nil {
		return nil, err
	}

	entry := &domain.LoginHistory{
		UserID:               user.ID,
		Email:                req.Email,
		Success:              true,
		AttemptedAt:          s.now(),
		SessionToken:         session.SessionToken,
		IsFirstLogin:         assessment.IsFirstLogin,
		IsSuspiciousActivity: assessment.IsSuspiciousActivity,
		SuspiciousReasons:    assessment.SuspiciousReasons,
		RiskScore:            assessment.ClampedScore(),
	}
	applyContext(entry, device, location)
	if err := s.history.Record(entry); err != nil {
		// The history record is part of the attempt's contract; undo the
		// session rather than finish login in an unrecorded state.
		if _, derr := s.sessions.Deactivate(session.SessionToken, domain.LogoutManual); derr != nil {
			s.logger.Error("rollback session after history failure", "error", derr)
		}
		return nil, fmt.Errorf("record login history: %w", err)
	}

	if assessment.IsSuspiciousActivity {
		observability.RecordSuspiciousLogin(len(assessment.SuspiciousReasons))
		s.logger.Warn("suspicious login",
			"user_id", user.ID,
			"risk_score", entry.RiskScore,
			"reasons", assessment.SuspiciousReasons,
		)
	}
	observability.RecordLoginAttempt("success")

	return &LoginResult{User: user, Session: session, Credential: credential, Risk: assessment}, nil
}

// createSession generates the opaque token, signs the bearer credential that
// embeds it, and inserts the record. The token's uniqueness is enforced by
// the store's unique index; the rare collision is retried with a fresh token.
func (s *SessionLifecycle) createSession(user *domain.User, device fingerprint.DeviceInfo, location geo.Location) (*domain.Session, string, error) {
	var lastErr error
	for attempt := 0; attempt < sessionTokenRetries; attempt++ {
		token, err := security.NewSessionToken()
		if err != nil {
			return nil, "", err
		}
		credential, err := s.jwtMgr.Sign(user.ID, token, user.IsAdmin, s.sessionTTL)
		if err != nil {
			return nil, "", fmt.Errorf("sign credential: %w", err)
		}
		now := s.now()
		session := &domain.Session{
			UserID:       user.ID,
			SessionToken: token,
			Credential:   credential,
			UserAgent:    device.UserAgent,
			Browser:      device.Browser,
			OS:           device.OS,
			DeviceClass:  device.DeviceClass,
			IsMobile:     device.IsMobile,
			IPAddress:    location.IPAddress,
			Country:      location.Country,
			Region:       location.Region,
			City:         location.City,
			Timezone:     location.Timezone,
			Latitude:     location.Latitude,
			Longitude:    location.Longitude,
			LoginTime:    now,
			LastActivity: now,
			ExpiresAt:    now.Add(s.sessionTTL),
			IsActive:     true,
		}
		if err := s.sessions.Create(session); err != nil {
			lastErr = err
			continue
		}
		return session, credential, nil
	}
	return nil, "", fmt.Errorf("create session: %w", lastErr)
}

// Logout ends the session and back-fills the originating history record with
// the session duration. The back-fill is best-effort; ending the session is
// not. A token with no active session is a no-op.
func (s *SessionLifecycle) Logout(token string, reason domain.LogoutReason) error {
	session, err := s.sessions.Deactivate(token, reason)
	if err != nil {
		if errors.Is(err, repository.ErrSessionNotFound) {
			return nil
		}
		return fmt.Errorf("deactivate session: %w", err)
	}
	observability.RecordSessionTermination(string(reason))

	logoutTime := s.now()
	if session.LogoutTime != nil {
		logoutTime = *session.LogoutTime
	}
	if err := s.history.BackfillSessionEnd(session.SessionToken, logoutTime, reason); err != nil {
		s.logger.Warn("login history back-fill failed", "session_token", session.SessionToken, "error", err)
	}
	return nil
}

// ForceLogout bulk-deactivates a user's active sessions, optionally keeping
// one. Used for "log out my other devices" and the admin force-logout action.
func (s *SessionLifecycle) ForceLogout(userID uint, excludeToken string) (int64, error) {
	count, err := s.sessions.ForceLogoutAllForUser(userID, excludeToken)
	if err != nil {
		return 0, fmt.Errorf("force logout: %w", err)
	}
	for i := int64(0); i < count; i++ {
		observability.RecordSessionTermination(string(domain.LogoutForced))
	}
	return count, nil
}

// Touch bumps last activity for an authenticated request. Failures are
// logged only; activity tracking must not fail the request.
func (s *SessionLifecycle) Touch(sessionID uint) {
	if err := s.sessions.TouchActivity(sessionID); err != nil {
		s.logger.Warn("session activity touch failed", "session_id", sessionID, "error", err)
	}
}

func (s *SessionLifecycle) ActiveSession(token string) (*domain.Session, error) {
	return s.sessions.FindActiveByToken(token)
}

func (s *SessionLifecycle) ListSessions(userID uint, currentToken string) ([]SessionView, error) {
	sessions, err := s.sessions.ListActiveByUserID(userID)
	if err != nil {
		return nil, err
	}
	views := make([]SessionView, 0, len(sessions))
	for _, session := range sessions {
		views = append(views, SessionView{
			SessionToken: session.SessionToken,
			Browser:      session.Browser,
			OS:           session.OS,
			DeviceClass:  session.DeviceClass,
			IPAddress:    session.IPAddress,
			Country:      session.Country,
			City:         session.City,
			LoginTime:    session.LoginTime,
			LastActivity: session.LastActivity,
			ExpiresAt:    session.ExpiresAt,
			IsCurrent:    session.SessionToken == currentToken,
		})
	}
	return views, nil
}

// RevokeSession ends one of the caller's own sessions. Returns
// ErrSessionNotFound when the token is absent, inactive, or another user's.
func (s *SessionLifecycle) RevokeSession(userID uint, token string) error {
	session, err := s.sessions.FindActiveByToken(token)
	if err != nil {
		return err
	}
	if session.UserID != userID {
		return repository.ErrSessionNotFound
	}
	return s.Logout(token, domain.LogoutManual)
}

type SessionView struct {
	SessionToken string    `json:"session_token"`
	Browser      string    `json:"browser"`
	OS           string    `json:"os"`
	DeviceClass  string    `json:"device_class"`
	IPAddress    string    `json:"ip_address"`
	Country      string    `json:"country"`
	City         string    `json:"city"`
	LoginTime    time.Time `json:"login_time"`
	LastActivity time.Time `json:"last_activity"`
	ExpiresAt    time.Time `json:"expires_at"`
	IsCurrent    bool      `json:"is_current"`
}

func failedAttempt(userID uint, email string, device fingerprint.DeviceInfo, location geo.Location, reason domain.FailureReason, at time.Time) *domain.LoginHistory {
	entry := &domain.LoginHistory{
		UserID:        userID,
		Email:         email,
		Success:       false,
		FailureReason: &reason,
		AttemptedAt:   at,
	}
	applyContext(entry, device, location)
	return entry
}

func applyContext(entry *domain.LoginHistory, device fingerprint.DeviceInfo, location geo.Location) {
	entry.UserAgent = device.UserAgent
	entry.Browser = device.Browser
	entry.OS = device.OS
	entry.DeviceClass = device.DeviceClass
	entry.IsMobile = device.IsMobile
	entry.IPAddress = location.IPAddress
	entry.Country = location.Country
	entry.Region = location.Region
	entry.City = location.City
	entry.Timezone = location.Timezone
	entry.Latitude = location.Latitude
	entry.Longitude = location.Longitude
}

// recordAttempt writes a failed-attempt record. The deny outcome stands even
// if the write fails, so this logs rather than propagates.
func (s *SessionLifecycle) recordAttempt(entry *domain.LoginHistory) {
	if err := s.history.Record(entry); err != nil {
		s.logger.Error("record login attempt failed", "email", entry.Email, "error", err)
	}
}
