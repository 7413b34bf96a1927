package service

import (
	"errors"
	"testing"
	"time"

	"github.com/modvault/session-security/internal/domain"
)

const (
	knownIP    = "192.0.2.10"
	knownAgent = "known-agent"
)

func seedSuccess(t *testing.T, history *inMemoryHistoryRepo, userID uint, ip, agent string, at time.Time) {
	t.Helper()
	err := history.Record(&domain.LoginHistory{
		UserID:      userID,
		Email:       "user@example.com",
		Success:     true,
		AttemptedAt: at,
		IPAddress:   ip,
		UserAgent:   agent,
	})
	if err != nil {
		t.Fatalf("seed success: %v", err)
	}
}

func seedFailure(t *testing.T, history *inMemoryHistoryRepo, email string, at time.Time) {
	t.Helper()
	reason := domain.FailureInvalidCredentials
	err := history.Record(&domain.LoginHistory{
		Email:         email,
		Success:       false,
		FailureReason: &reason,
		AttemptedAt:   at,
	})
	if err != nil {
		t.Fatalf("seed failure: %v", err)
	}
}

func TestAnalyzeFirstLoginIsClean(t *testing.T) {
	history := newInMemoryHistoryRepo()
	now := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)
	analyzer := NewRiskAnalyzer(history, nil).WithClock(fixedClock(now))

	got := analyzer.Analyze("user@example.com", 1, "203.0.113.5", "never-seen-agent")
	if !got.IsFirstLogin {
		t.Fatal("expected first login")
	}
	// No prior successes means no baseline to be "unusual" against.
	if got.RiskScore != 0 || got.IsSuspiciousActivity || len(got.SuspiciousReasons) != 0 {
		t.Fatalf("first login should be clean: %+v", got)
	}
}

func TestAnalyzeRecentFailures(t *testing.T) {
	history := newInMemoryHistoryRepo()
	now := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)
	analyzer := NewRiskAnalyzer(history, nil).WithClock(fixedClock(now))

	seedSuccess(t, history, 1, knownIP, knownAgent, now.Add(-24*time.Hour))
	for i := 0; i < 3; i++ {
		seedFailure(t, history, "user@example.com", now.Add(-time.Duration(i+1)*time.Minute))
	}
	// A failure outside the 15 minute window does not count.
	seedFailure(t, history, "user@example.com", now.Add(-16*time.Minute))

	got := analyzer.Analyze("user@example.com", 1, knownIP, knownAgent)
	if got.RiskScore != 30 {
		t.Fatalf("score = %d, want 30", got.RiskScore)
	}
	if len(got.SuspiciousReasons) != 1 || got.SuspiciousReasons[0] != ReasonMultipleFailedAttempts {
		t.Fatalf("reasons: %v", got.SuspiciousReasons)
	}
	// Exactly 30 does not cross the >30 threshold and one reason is not >2.
	if got.IsSuspiciousActivity {
		t.Fatal("score of exactly 30 with one reason should not flag")
	}
}

func TestAnalyzeUnusualLocationAndDevice(t *testing.T) {
	history := newInMemoryHistoryRepo()
	now := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)
	analyzer := NewRiskAnalyzer(history, nil).WithClock(fixedClock(now))

	seedSuccess(t, history, 1, knownIP, knownAgent, now.Add(-24*time.Hour))

	got := analyzer.Analyze("user@example.com", 1, "198.51.100.7", "new-agent")
	if got.RiskScore != 35 {
		t.Fatalf("score = %d, want 35", got.RiskScore)
	}
	if !got.IsSuspiciousActivity {
		t.Fatal("35 crosses the score threshold")
	}
	wantReasons := map[string]bool{ReasonUnusualLocation: true, ReasonUnusualDevice: true}
	for _, reason := range got.SuspiciousReasons {
		if !wantReasons[reason] {
			t.Fatalf("unexpected reason %q", reason)
		}
		delete(wantReasons, reason)
	}
	if len(wantReasons) != 0 {
		t.Fatalf("missing reasons: %v", wantReasons)
	}
}

func TestAnalyzeRapidLogins(t *testing.T) {
	history := newInMemoryHistoryRepo()
	now := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)
	analyzer := NewRiskAnalyzer(history, nil).WithClock(fixedClock(now))

	for i := 0; i < 3; i++ {
		seedSuccess(t, history, 1, knownIP, knownAgent, now.Add(-time.Duration(i+1)*time.Minute))
	}

	got := analyzer.Analyze("user@example.com", 1, knownIP, knownAgent)
	if got.RiskScore != 25 {
		t.Fatalf("score = %d, want 25", got.RiskScore)
	}
	if len(got.SuspiciousReasons) != 1 || got.SuspiciousReasons[0] != ReasonRapidLogins {
		t.Fatalf("reasons: %v", got.SuspiciousReasons)
	}
}

func TestAnalyzeChecksAreAdditive(t *testing.T) {
	history := newInMemoryHistoryRepo()
	now := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)
	analyzer := NewRiskAnalyzer(history, nil).WithClock(fixedClock(now))

	// Baseline plus enough recent activity to trip all four checks.
	for i := 0; i < 3; i++ {
		seedSuccess(t, history, 1, knownIP, knownAgent, now.Add(-time.Duration(i+1)*time.Minute))
	}
	for i := 0; i < 3; i++ {
		seedFailure(t, history, "user@example.com", now.Add(-time.Duration(i+1)*time.Minute))
	}

	got := analyzer.Analyze("user@example.com", 1, "198.51.100.7", "new-agent")
	if got.RiskScore != 90 {
		t.Fatalf("score = %d, want 90", got.RiskScore)
	}
	if len(got.SuspiciousReasons) != 4 {
		t.Fatalf("reasons = %v, want all four", got.SuspiciousReasons)
	}
	if !got.IsSuspiciousActivity {
		t.Fatal("expected suspicious")
	}
}

func TestAnalyzeReasonCountAloneCanFlag(t *testing.T) {
	got := Assessment{SuspiciousReasons: []string{"a", "b", "c"}, RiskScore: 10}
	// Mirror of the decision rule: >2 reasons flags even with a low score.
	flagged := got.RiskScore > suspiciousScoreThreshold || len(got.SuspiciousReasons) > suspiciousReasonThreshold
	if !flagged {
		t.Fatal("three reasons should flag regardless of score")
	}
}

func TestAnalyzeDegradesOnQueryError(t *testing.T) {
	history := newInMemoryHistoryRepo()
	history.queryErr = errors.New("db down")
	analyzer := NewRiskAnalyzer(history, nil)

	got := analyzer.Analyze("user@example.com", 1, knownIP, knownAgent)
	if !got.Degraded {
		t.Fatal("expected degraded assessment")
	}
	if got.IsSuspiciousActivity || got.RiskScore != 0 || len(got.SuspiciousReasons) != 0 {
		t.Fatalf("degraded assessment should be all-clear: %+v", got)
	}
}

func TestClampedScore(t *testing.T) {
	if got := (Assessment{RiskScore: 150}).ClampedScore(); got != 100 {
		t.Fatalf("clamp high = %d, want 100", got)
	}
	if got := (Assessment{RiskScore: -5}).ClampedScore(); got != 0 {
		t.Fatalf("clamp low = %d, want 0", got)
	}
	if got := (Assessment{RiskScore: 45}).ClampedScore(); got != 45 {
		t.Fatalf("clamp in range = %d, want 45", got)
	}
}
