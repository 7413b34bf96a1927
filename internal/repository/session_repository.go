package repository

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/modvault/session-security/internal/domain"
	"github.com/modvault/session-security/internal/observability"
)

var ErrSessionNotFound = errors.New("session not found")

type SessionRepository interface {
	Create(s *domain.Session) error
	FindActiveByToken(token string) (*domain.Session, error)
	ListActiveByUserID(userID uint) ([]domain.Session, error)
	TouchActivity(sessionID uint) error
	Deactivate(token string, reason domain.LogoutReason) (*domain.Session, error)
	ForceLogoutAllForUser(userID uint, excludeToken string) (int64, error)
	ExpireStale() (int64, error)
}

type GormSessionRepository struct{ db *gorm.DB }

func NewSessionRepository(db *gorm.DB) SessionRepository { return &GormSessionRepository{db: db} }

// Create inserts the session record. A session token collision trips the
// unique index and surfaces as an error; the caller retries with a new token.
func (r *GormSessionRepository) Create(s *domain.Session) error {
	err := r.db.Create(s).Error
	if err != nil {
		observability.RecordRepositoryOperation(context.Background(), "session", "create", "error")
		return err
	}
	observability.RecordRepositoryOperation(context.Background(), "session", "create", "success")
	return nil
}

func (r *GormSessionRepository) FindActiveByToken(token string) (*domain.Session, error) {
	var s domain.Session
	err := r.db.Where("session_token = ? AND is_active = ? AND expires_at > ?", token, true, time.Now()).
		First(&s).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			observability.RecordRepositoryOperation(context.Background(), "session", "find_active_by_token", "not_found")
			return nil, ErrSessionNotFound
		}
		observability.RecordRepositoryOperation(context.Background(), "session", "find_active_by_token", "error")
		return nil, err
	}
	observability.RecordRepositoryOperation(context.Background(), "session", "find_active_by_token", "success")
	return &s, nil
}

func (r *GormSessionRepository) ListActiveByUserID(userID uint) ([]domain.Session, error) {
	var sessions []domain.Session
	err := r.db.Where("user_id = ? AND is_active = ? AND expires_at > ?", userID, true, time.Now()).
		Order("login_time DESC").
		Find(&sessions).Error
	if err != nil {
		observability.RecordRepositoryOperation(context.Background(), "session", "list_active_by_user_id", "error")
		return sessions, err
	}
	observability.RecordRepositoryOperation(context.Background(), "session", "list_active_by_user_id", "success")
	return sessions, nil
}

func (r *GormSessionRepository) TouchActivity(sessionID uint) error {
	err := r.db.Model(&domain.Session{}).
		Where("id = ? AND is_active = ?", sessionID, true).
		Update("last_activity", time.Now()).Error
	if err != nil {
		observability.RecordRepositoryOperation(context.Background(), "session", "touch_activity", "error")
		return err
	}
	observability.RecordRepositoryOperation(context.Background(), "session", "touch_activity", "success")
	return nil
}

// Deactivate flips the active flag and stamps the logout fields in one
// update. Calling it again for the same token is a no-op that returns
// ErrSessionNotFound without touching LogoutTime.
func (r *GormSessionRepository) Deactivate(token string, reason domain.LogoutReason) (*domain.Session, error) {
	var ended *domain.Session
	err := r.db.Transaction(func(tx *gorm.DB) error {
		var s domain.Session
		err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Where("session_token = ? AND is_active = ?", token, true).
			First(&s).Error
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrSessionNotFound
			}
			return err
		}
		now := time.Now().UTC()
		if err := tx.Model(&domain.Session{}).
			Where("id = ? AND is_active = ?", s.ID, true).
			Updates(map[string]any{
				"is_active":     false,
				"logout_time":   now,
				"logout_reason": reason,
			}).Error; err != nil {
			return err
		}
		s.IsActive = false
		s.LogoutTime = &now
		s.LogoutReason = &reason
		ended = &s
		return nil
	})
	if err != nil {
		if errors.Is(err, ErrSessionNotFound) {
			observability.RecordRepositoryOperation(context.Background(), "session", "deactivate", "not_found")
		} else {
			observability.RecordRepositoryOperation(context.Background(), "session", "deactivate", "error")
		}
		return nil, err
	}
	observability.RecordRepositoryOperation(context.Background(), "session", "deactivate", "success")
	return ended, nil
}

// ForceLogoutAllForUser deactivates every active session for the user, except
// the one matching excludeToken when it is non-empty.
func (r *GormSessionRepository) ForceLogoutAllForUser(userID uint, excludeToken string) (int64, error) {
	now := time.Now().UTC()
	q := r.db.Model(&domain.Session{}).
		Where("user_id = ? AND is_active = ?", userID, true)
	if excludeToken != "" {
		q = q.Where("session_token <> ?", excludeToken)
	}
	res := q.Updates(map[string]any{
		"is_active":     false,
		"logout_time":   now,
		"logout_reason": domain.LogoutForced,
	})
	if res.Error != nil {
		observability.RecordRepositoryOperation(context.Background(), "session", "force_logout_all_for_user", "error")
		return res.RowsAffected, res.Error
	}
	observability.RecordRepositoryOperation(context.Background(), "session", "force_logout_all_for_user", "success")
	return res.RowsAffected, nil
}

// ExpireStale deactivates every active session whose expiry has passed,
// reason token_expired. Scheduling is the caller's concern.
func (r *GormSessionRepository) ExpireStale() (int64, error) {
	now := time.Now().UTC()
	res := r.db.Model(&domain.Session{}).
		Where("is_active = ? AND expires_at < ?", true, now).
		Updates(map[string]any{
			"is_active":     false,
			"logout_time":   now,
			"logout_reason": domain.LogoutTokenExpired,
		})
	if res.Error != nil {
		observability.RecordRepositoryOperation(context.Background(), "session", "expire_stale", "error")
		return res.RowsAffected, res.Error
	}
	observability.RecordRepositoryOperation(context.Background(), "session", "expire_stale", "success")
	return res.RowsAffected, nil
}
