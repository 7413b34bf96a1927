package repository

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"

	"github.com/modvault/session-security/internal/domain"
	"github.com/modvault/session-security/internal/observability"
)

type LoginHistoryRepository interface {
	Record(entry *domain.LoginHistory) error
	FindByUser(userID uint, limit int) ([]domain.LoginHistory, error)
	CountFailedByEmailSince(email string, since time.Time) (int64, error)
	CountSuccessfulByUserSince(userID uint, since time.Time) (int64, error)
	RecentSuccessfulByUser(userID uint, since time.Time, limit int) ([]domain.LoginHistory, error)
	FindSuspiciousSince(since time.Time, limit int) ([]domain.LoginHistory, error)
	AggregateStats(userID uint, since time.Time) (domain.LoginStats, error)
	BackfillSessionEnd(sessionToken string, logoutTime time.Time, reason domain.LogoutReason) error
}

type GormLoginHistoryRepository struct{ db *gorm.DB }

func NewLoginHistoryRepository(db *gorm.DB) LoginHistoryRepository {
	return &GormLoginHistoryRepository{db: db}
}

func (r *GormLoginHistoryRepository) Record(entry *domain.LoginHistory) error {
	err := r.db.Create(entry).Error
	if err != nil {
		observability.RecordRepositoryOperation(context.Background(), "login_history", "record", "error")
		return err
	}
	observability.RecordRepositoryOperation(context.Background(), "login_history", "record", "success")
	return nil
}

func (r *GormLoginHistoryRepository) FindByUser(userID uint, limit int) ([]domain.LoginHistory, error) {
	var entries []domain.LoginHistory
	q := r.db.Where("user_id = ?", userID).Order("attempted_at DESC")
	if limit > 0 {
		q = q.Limit(limit)
	}
	if err := q.Find(&entries).Error; err != nil {
		observability.RecordRepositoryOperation(context.Background(), "login_history", "find_by_user", "error")
		return nil, err
	}
	observability.RecordRepositoryOperation(context.Background(), "login_history", "find_by_user", "success")
	return entries, nil
}

func (r *GormLoginHistoryRepository) CountFailedByEmailSince(email string, since time.Time) (int64, error) {
	var count int64
	err := r.db.Model(&domain.LoginHistory{}).
		Where("email = ? AND success = ? AND attempted_at >= ?", email, false, since).
		Count(&count).Error
	if err != nil {
		observability.RecordRepositoryOperation(context.Background(), "login_history", "count_failed_by_email", "error")
		return 0, err
	}
	observability.RecordRepositoryOperation(context.Background(), "login_history", "count_failed_by_email", "success")
	return count, nil
}

func (r *GormLoginHistoryRepository) CountSuccessfulByUserSince(userID uint, since time.Time) (int64, error) {
	var count int64
	err := r.db.Model(&domain.LoginHistory{}).
		Where("user_id = ? AND success = ? AND attempted_at >= ?", userID, true, since).
		Count(&count).Error
	if err != nil {
		observability.RecordRepositoryOperation(context.Background(), "login_history", "count_successful_by_user", "error")
		return 0, err
	}
	observability.RecordRepositoryOperation(context.Background(), "login_history", "count_successful_by_user", "success")
	return count, nil
}

func (r *GormLoginHistoryRepository) RecentSuccessfulByUser(userID uint, since time.Time, limit int) ([]domain.LoginHistory, error) {
	var entries []domain.LoginHistory
	q := r.db.Where("user_id = ? AND success = ? AND attempted_at >= ?", userID, true, since).
		Order("attempted_at DESC")
	if limit > 0 {
		q = q.Limit(limit)
	}
	if err := q.Find(&entries).Error; err != nil {
		observability.RecordRepositoryOperation(context.Background(), "login_history", "recent_successful_by_user", "error")
		return nil, err
	}
	observability.RecordRepositoryOperation(context.Background(), "login_history", "recent_successful_by_user", "success")
	return entries, nil
}

func (r *GormLoginHistoryRepository) FindSuspiciousSince(since time.Time, limit int) ([]domain.LoginHistory, error) {
	var entries []domain.LoginHistory
	q := r.db.Where("is_suspicious_activity = ? AND attempted_at >= ?", true, since).
		Order("attempted_at DESC")
	if limit > 0 {
		q = q.Limit(limit)
	}
	if err := q.Find(&entries).Error; err != nil {
		observability.RecordRepositoryOperation(context.Background(), "login_history", "find_suspicious", "error")
		return nil, err
	}
	observability.RecordRepositoryOperation(context.Background(), "login_history", "find_suspicious", "success")
	return entries, nil
}

// AggregateStats derives counts, distinct device/IP cardinality and success
// rate from the window's raw attempts. Distinct sets are folded in Go to stay
// portable across sqlite and postgres.
func (r *GormLoginHistoryRepository) AggregateStats(userID uint, since time.Time) (domain.LoginStats, error) {
	var entries []domain.LoginHistory
	err := r.db.Where("user_id = ? AND attempted_at >= ?", userID, since).
		Order("attempted_at DESC").
		Find(&entries).Error
	if err != nil {
		observability.RecordRepositoryOperation(context.Background(), "login_history", "aggregate_stats", "error")
		return domain.LoginStats{}, err
	}

	stats := domain.LoginStats{}
	devices := make(map[string]struct{})
	ips := make(map[string]struct{})
	for _, e := range entries {
		stats.TotalAttempts++
		if e.Success {
			stats.SuccessfulLogins++
			if stats.LastLogin == nil {
				t := e.AttemptedAt
				stats.LastLogin = &t
			}
		} else {
			stats.FailedAttempts++
		}
		if e.UserAgent != "" {
			devices[e.UserAgent] = struct{}{}
		}
		if e.IPAddress != "" {
			ips[e.IPAddress] = struct{}{}
		}
	}
	stats.UniqueDeviceCount = len(devices)
	stats.UniqueIPCount = len(ips)
	if stats.TotalAttempts > 0 {
		stats.SuccessRate = float64(stats.SuccessfulLogins) / float64(stats.TotalAttempts) * 100
	}
	observability.RecordRepositoryOperation(context.Background(), "login_history", "aggregate_stats", "success")
	return stats, nil
}

// BackfillSessionEnd completes the session linkage on the attempt that opened
// the session. The only mutation allowed on an existing history record.
func (r *GormLoginHistoryRepository) BackfillSessionEnd(sessionToken string, logoutTime time.Time, reason domain.LogoutReason) error {
	var entry domain.LoginHistory
	err := r.db.Where("session_token = ? AND success = ?", sessionToken, true).
		Order("attempted_at DESC").
		First(&entry).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			observability.RecordRepositoryOperation(context.Background(), "login_history", "backfill_session_end", "not_found")
			return nil // best-effort: a missing originating record is not an error
		}
		observability.RecordRepositoryOperation(context.Background(), "login_history", "backfill_session_end", "error")
		return err
	}
	duration := logoutTime.Sub(entry.AttemptedAt).Milliseconds()
	if duration < 0 {
		duration = 0
	}
	err = r.db.Model(&domain.LoginHistory{}).
		Where("id = ?", entry.ID).
		Updates(map[string]any{
			"session_duration": duration,
			"logout_time":      logoutTime,
			"logout_reason":    reason,
		}).Error
	if err != nil {
		observability.RecordRepositoryOperation(context.Background(), "login_history", "backfill_session_end", "error")
		return err
	}
	observability.RecordRepositoryOperation(context.Background(), "login_history", "backfill_session_end", "success")
	return nil
}
