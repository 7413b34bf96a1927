package repository

import (
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/modvault/session-security/internal/domain"
)

func TestSessionRepositoryFindActiveByToken(t *testing.T) {
	repo, _ := newSessionRepoForTest(t)

	if err := repo.Create(testSession(1, "tok-active", time.Hour)); err != nil {
		t.Fatalf("create active: %v", err)
	}
	expired := testSession(1, "tok-expired", -time.Hour)
	if err := repo.Create(expired); err != nil {
		t.Fatalf("create expired: %v", err)
	}

	s, err := repo.FindActiveByToken("tok-active")
	if err != nil {
		t.Fatalf("find active: %v", err)
	}
	if s.SessionToken != "tok-active" {
		t.Fatalf("unexpected session: %+v", s)
	}

	if _, err := repo.FindActiveByToken("tok-expired"); !errors.Is(err, ErrSessionNotFound) {
		t.Fatalf("expired session should be not found, got %v", err)
	}
	if _, err := repo.FindActiveByToken("tok-missing"); !errors.Is(err, ErrSessionNotFound) {
		t.Fatalf("missing session should be not found, got %v", err)
	}
}

func TestSessionRepositoryDeactivateIsIdempotent(t *testing.T) {
	repo, _ := newSessionRepoForTest(t)

	if err := repo.Create(testSession(1, "tok-1", time.Hour)); err != nil {
		t.Fatalf("create: %v", err)
	}

	ended, err := repo.Deactivate("tok-1", domain.LogoutManual)
	if err != nil {
		t.Fatalf("first deactivate: %v", err)
	}
	if ended.IsActive {
		t.Fatal("session still marked active")
	}
	if ended.LogoutTime == nil || ended.LogoutReason == nil || *ended.LogoutReason != domain.LogoutManual {
		t.Fatalf("logout fields not stamped: %+v", ended)
	}

	if _, err := repo.Deactivate("tok-1", domain.LogoutManual); !errors.Is(err, ErrSessionNotFound) {
		t.Fatalf("second deactivate should report not found, got %v", err)
	}

	if _, err := repo.FindActiveByToken("tok-1"); !errors.Is(err, ErrSessionNotFound) {
		t.Fatalf("deactivated session should not be findable, got %v", err)
	}
}

func TestSessionRepositoryForceLogoutAllForUser(t *testing.T) {
	repo, _ := newSessionRepoForTest(t)

	for _, tok := range []string{"u1-a", "u1-b", "u1-c"} {
		if err := repo.Create(testSession(1, tok, time.Hour)); err != nil {
			t.Fatalf("create %s: %v", tok, err)
		}
	}
	if err := repo.Create(testSession(2, "u2-a", time.Hour)); err != nil {
		t.Fatalf("create other user: %v", err)
	}

	count, err := repo.ForceLogoutAllForUser(1, "u1-b")
	if err != nil {
		t.Fatalf("force logout: %v", err)
	}
	if count != 2 {
		t.Fatalf("revoked count = %d, want 2", count)
	}

	kept, err := repo.FindActiveByToken("u1-b")
	if err != nil {
		t.Fatalf("excluded session should survive: %v", err)
	}
	if !kept.IsActive {
		t.Fatal("excluded session deactivated")
	}
	if _, err := repo.FindActiveByToken("u2-a"); err != nil {
		t.Fatalf("other user's session should survive: %v", err)
	}

	// No exclusion revokes the remaining one.
	count, err = repo.ForceLogoutAllForUser(1, "")
	if err != nil {
		t.Fatalf("force logout all: %v", err)
	}
	if count != 1 {
		t.Fatalf("revoked count = %d, want 1", count)
	}
}

func TestSessionRepositoryExpireStale(t *testing.T) {
	repo, db := newSessionRepoForTest(t)

	if err := repo.Create(testSession(1, "fresh", time.Hour)); err != nil {
		t.Fatalf("create fresh: %v", err)
	}
	if err := repo.Create(testSession(1, "stale-1", -time.Minute)); err != nil {
		t.Fatalf("create stale-1: %v", err)
	}
	if err := repo.Create(testSession(2, "stale-2", -time.Hour)); err != nil {
		t.Fatalf("create stale-2: %v", err)
	}

	count, err := repo.ExpireStale()
	if err != nil {
		t.Fatalf("expire stale: %v", err)
	}
	if count != 2 {
		t.Fatalf("expired count = %d, want 2", count)
	}

	var s domain.Session
	if err := db.Where("session_token = ?", "stale-1").First(&s).Error; err != nil {
		t.Fatalf("load stale-1: %v", err)
	}
	if s.IsActive || s.LogoutReason == nil || *s.LogoutReason != domain.LogoutTokenExpired {
		t.Fatalf("stale session not expired properly: %+v", s)
	}

	// Second sweep finds nothing.
	count, err = repo.ExpireStale()
	if err != nil {
		t.Fatalf("second sweep: %v", err)
	}
	if count != 0 {
		t.Fatalf("second sweep expired %d, want 0", count)
	}
}

func TestSessionRepositoryTouchActivity(t *testing.T) {
	repo, db := newSessionRepoForTest(t)

	s := testSession(1, "tok-touch", time.Hour)
	s.LastActivity = time.Now().Add(-time.Hour)
	if err := repo.Create(s); err != nil {
		t.Fatalf("create: %v", err)
	}

	if err := repo.TouchActivity(s.ID); err != nil {
		t.Fatalf("touch: %v", err)
	}

	var reloaded domain.Session
	if err := db.First(&reloaded, s.ID).Error; err != nil {
		t.Fatalf("reload: %v", err)
	}
	if !reloaded.LastActivity.After(time.Now().Add(-time.Minute)) {
		t.Fatalf("last activity not advanced: %v", reloaded.LastActivity)
	}
}

func testSession(userID uint, token string, ttl time.Duration) *domain.Session {
	now := time.Now().UTC()
	return &domain.Session{
		UserID:       userID,
		SessionToken: token,
		IPAddress:    "192.0.2.1",
		LoginTime:    now,
		LastActivity: now,
		ExpiresAt:    now.Add(ttl),
		IsActive:     true,
	}
}

func newSessionRepoForTest(t *testing.T) (SessionRepository, *gorm.DB) {
	t.Helper()
	db := newDBForTest(t, &domain.Session{})
	return NewSessionRepository(db), db
}

func newDBForTest(t *testing.T, models ...any) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", strings.ReplaceAll(t.Name(), "/", "_"))
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	if err := db.AutoMigrate(models...); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return db
}
