package service

import (
	"log/slog"
	"time"

	"github.com/modvault/session-security/internal/repository"
)

// Suspicious-activity reasons.
const (
	ReasonMultipleFailedAttempts = "multiple_failed_attempts"
	ReasonUnusualLocation        = "unusual_location"
	ReasonUnusualDevice          = "unusual_device"
	ReasonRapidLogins            = "rapid_logins"
)

// Risk check weights and windows.
const (
	failedAttemptsWindow = 15 * time.Minute
	failedAttemptsMin    = 3
	knownHistoryWindow   = 30 * 24 * time.Hour
	knownHistoryLimit    = 10
	rapidLoginWindow     = 5 * time.Minute
	rapidLoginMin        = 3

	scoreFailedAttempts  = 30
	scoreUnusualLocation = 20
	scoreUnusualDevice   = 15
	scoreRapidLogins     = 25

	suspiciousScoreThreshold  = 30
	suspiciousReasonThreshold = 2
)

// Assessment is the outcome of scoring one login attempt. Degraded marks an
// all-clear produced because a history query failed, as opposed to a genuine
// clean result; scoring never blocks a login either way.
type Assessment struct {
	IsFirstLogin         bool     `json:"is_first_login"`
	IsSuspiciousActivity bool     `json:"is_suspicious_activity"`
	SuspiciousReasons    []string `json:"suspicious_reasons,omitempty"`
	RiskScore            int      `json:"risk_score"`
	Degraded             bool     `json:"-"`
}

// ClampedScore bounds the additive score to the persisted [0,100] range.
func (a Assessment) ClampedScore() int {
	if a.RiskScore > 100 {
		return 100
	}
	if a.RiskScore < 0 {
		return 0
	}
	return a.RiskScore
}

// RiskAnalyzer scores login attempts against the account's history. The
// checks are independent and additive; order does not change the result.
type RiskAnalyzer struct {
	history repository.LoginHistoryRepository
	now     Clock
	logger  *slog.Logger
}

func NewRiskAnalyzer(history repository.LoginHistoryRepository, logger *slog.Logger) *RiskAnalyzer {
	if logger == nil {
		logger = slog.Default()
	}
	return &RiskAnalyzer{history: history, now: systemClock, logger: logger}
}

func (r *RiskAnalyzer) WithClock(now Clock) *RiskAnalyzer {
	r.now = now
	return r
}

// Analyze never fails: any query error degrades to the all-clear default so
// a scoring outage cannot block logins.
func (r *RiskAnalyzer) Analyze(email string, userID uint, ipAddress, userAgent string) Assessment {
	assessment := Assessment{}
	now := r.now()

	priorSuccesses, err := r.history.CountSuccessfulByUserSince(userID, time.Time{})
	if err != nil {
		return r.degraded("first-login check", err)
	}
	assessment.IsFirstLogin = priorSuccesses == 0

	recentFailures, err := r.history.CountFailedByEmailSince(email, now.Add(-failedAttemptsWindow))
	if err != nil {
		return r.degraded("recent-failures check", err)
	}
	if recentFailures >= failedAttemptsMin {
		assessment.SuspiciousReasons = append(assessment.SuspiciousReasons, ReasonMultipleFailedAttempts)
		assessment.RiskScore += scoreFailedAttempts
	}

	known, err := r.history.RecentSuccessfulByUser(userID, now.Add(-knownHistoryWindow), knownHistoryLimit)
	if err != nil {
		return r.degraded("known-history lookup", err)
	}
	knownIPs := make(map[string]struct{}, len(known))
	knownAgents := make(map[string]struct{}, len(known))
	for _, entry := range known {
		if entry.IPAddress != "" {
			knownIPs[entry.IPAddress] = struct{}{}
		}
		if entry.UserAgent != "" {
			knownAgents[entry.UserAgent] = struct{}{}
		}
	}
	// Empty known-sets skip these checks: a first login is not "unusual".
	if len(knownIPs) > 0 {
		if _, ok := knownIPs[ipAddress]; !ok {
			assessment.SuspiciousReasons = append(assessment.SuspiciousReasons, ReasonUnusualLocation)
			assessment.RiskScore += scoreUnusualLocation
		}
	}
	if len(knownAgents) > 0 {
		if _, ok := knownAgents[userAgent]; !ok {
			assessment.SuspiciousReasons = append(assessment.SuspiciousReasons, ReasonUnusualDevice)
			assessment.RiskScore += scoreUnusualDevice
		}
	}

	rapidSuccesses, err := r.history.CountSuccessfulByUserSince(userID, now.Add(-rapidLoginWindow))
	if err != nil {
		return r.degraded("rapid-logins check", err)
	}
	if rapidSuccesses >= rapidLoginMin {
		assessment.SuspiciousReasons = append(assessment.SuspiciousReasons, ReasonRapidLogins)
		assessment.RiskScore += scoreRapidLogins
	}

	assessment.IsSuspiciousActivity = assessment.RiskScore > suspiciousScoreThreshold ||
		len(assessment.SuspiciousReasons) > suspiciousReasonThreshold
	return assessment
}

func (r *RiskAnalyzer) degraded(check string, err error) Assessment {
	r.logger.Warn("risk analysis degraded to all-clear", "check", check, "error", err)
	return Assessment{Degraded: true}
}
