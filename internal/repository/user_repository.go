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

var ErrUserNotFound = errors.New("user not found")

type UserRepository interface {
	FindByID(id uint) (*domain.User, error)
	FindByEmail(email string) (*domain.User, error)
	Create(user *domain.User) error

	// RecordLoginFailure applies the throttle mutation atomically: it bumps
	// TotalLoginAttempts and FailedLoginCount, and when the count reaches
	// threshold it sets LockedUntil=now+lockout and resets the count to zero
	// in the same transaction. Returns the updated user and whether this
	// failure triggered a lockout.
	RecordLoginFailure(userID uint, threshold int, lockout time.Duration, now time.Time) (*domain.User, bool, error)

	// RecordLoginSuccess clears FailedLoginCount, LastFailedAttempt and
	// LockedUntil. TotalLoginAttempts is never reset.
	RecordLoginSuccess(userID uint) (*domain.User, error)
}

type GormUserRepository struct{ db *gorm.DB }

func NewUserRepository(db *gorm.DB) UserRepository { return &GormUserRepository{db: db} }

func (r *GormUserRepository) FindByID(id uint) (*domain.User, error) {
	var u domain.User
	err := r.db.First(&u, id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			observability.RecordRepositoryOperation(context.Background(), "user", "find_by_id", "not_found")
			return nil, ErrUserNotFound
		}
		observability.RecordRepositoryOperation(context.Background(), "user", "find_by_id", "error")
		return nil, err
	}
	observability.RecordRepositoryOperation(context.Background(), "user", "find_by_id", "success")
	return &u, nil
}

func (r *GormUserRepository) FindByEmail(email string) (*domain.User, error) {
	var u domain.User
	err := r.db.Where("email = ?", email).First(&u).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			observability.RecordRepositoryOperation(context.Background(), "user", "find_by_email", "not_found")
			return nil, ErrUserNotFound
		}
		observability.RecordRepositoryOperation(context.Background(), "user", "find_by_email", "error")
		return nil, err
	}
	observability.RecordRepositoryOperation(context.Background(), "user", "find_by_email", "success")
	return &u, nil
}

func (r *GormUserRepository) Create(user *domain.User) error {
	err := r.db.Create(user).Error
	if err != nil {
		observability.RecordRepositoryOperation(context.Background(), "user", "create", "error")
		return err
	}
	observability.RecordRepositoryOperation(context.Background(), "user", "create", "success")
	return nil
}

func (r *GormUserRepository) RecordLoginFailure(userID uint, threshold int, lockout time.Duration, now time.Time) (*domain.User, bool, error) {
	var updated *domain.User
	locked := false
	err := r.db.Transaction(func(tx *gorm.DB) error {
		var u domain.User
		err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).First(&u, userID).Error
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrUserNotFound
			}
			return err
		}

		u.TotalLoginAttempts++
		u.FailedLoginCount++
		failedAt := now
		u.LastFailedAttempt = &failedAt
		if u.FailedLoginCount >= threshold {
			until := now.Add(lockout)
			u.LockedUntil = &until
			u.FailedLoginCount = 0
			locked = true
		}

		if err := tx.Model(&domain.User{}).
			Where("id = ?", u.ID).
			Updates(map[string]any{
				"total_login_attempts": u.TotalLoginAttempts,
				"failed_login_count":   u.FailedLoginCount,
				"last_failed_attempt":  u.LastFailedAttempt,
				"locked_until":         u.LockedUntil,
			}).Error; err != nil {
			return err
		}
		updated = &u
		return nil
	})
	if err != nil {
		outcome := "error"
		if errors.Is(err, ErrUserNotFound) {
			outcome = "not_found"
		}
		observability.RecordRepositoryOperation(context.Background(), "user", "record_login_failure", outcome)
		return nil, false, err
	}
	observability.RecordRepositoryOperation(context.Background(), "user", "record_login_failure", "success")
	return updated, locked, nil
}

func (r *GormUserRepository) RecordLoginSuccess(userID uint) (*domain.User, error) {
	var updated *domain.User
	err := r.db.Transaction(func(tx *gorm.DB) error {
		var u domain.User
		err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).First(&u, userID).Error
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrUserNotFound
			}
			return err
		}
		u.FailedLoginCount = 0
		u.LastFailedAttempt = nil
		u.LockedUntil = nil
		if err := tx.Model(&domain.User{}).
			Where("id = ?", u.ID).
			Updates(map[string]any{
				"failed_login_count":  0,
				"last_failed_attempt": nil,
				"locked_until":        nil,
			}).Error; err != nil {
			return err
		}
		updated = &u
		return nil
	})
	if err != nil {
		outcome := "error"
		if errors.Is(err, ErrUserNotFound) {
			outcome = "not_found"
		}
		observability.RecordRepositoryOperation(context.Background(), "user", "record_login_success", outcome)
		return nil, err
	}
	observability.RecordRepositoryOperation(context.Background(), "user", "record_login_success", "success")
	return updated, nil
}
