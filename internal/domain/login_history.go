package domain

import "time"

// FailureReason is the closed set of login failure causes.
type FailureReason string

const (
	FailureInvalidCredentials FailureReason = "invalid_credentials"
	FailureUserNotFound       FailureReason = "user_not_found"
	FailureAccountLocked      FailureReason = "account_locked"
	FailureServerError        FailureReason = "server_error"
	FailureTwoFactor          FailureReason = "2fa_failed"
)

func (r FailureReason) Valid() bool {
	switch r {
	case FailureInvalidCredentials, FailureUserNotFound, FailureAccountLocked,
		FailureServerError, FailureTwoFactor:
		return true
	}
	return false
}

// LoginHistory is one login attempt, successful or not. Records are append-only;
// the session linkage fields (SessionToken, SessionDuration, LogoutTime,
// LogoutReason) are the only ones back-filled later, when the session ends.
type LoginHistory struct {
	ID     uint   `gorm:"primaryKey" json:"id"`
	UserID uint   `gorm:"index" json:"user_id"` // zero when the account lookup itself failed
	Email  string `gorm:"size:255;index;not null" json:"email"`

	Success       bool           `gorm:"index;not null" json:"success"`
	FailureReason *FailureReason `gorm:"size:32" json:"failure_reason,omitempty"`
	AttemptedAt   time.Time      `gorm:"index;not null" json:"attempted_at"`

	UserAgent   string  `gorm:"size:512" json:"user_agent"`
	Browser     string  `gorm:"size:64" json:"browser"`
	OS          string  `gorm:"size:64" json:"os"`
	DeviceClass string  `gorm:"size:32" json:"device_class"`
	IsMobile    bool    `json:"is_mobile"`
	IPAddress   string  `gorm:"size:64" json:"ip_address"`
	Country     string  `gorm:"size:64" json:"country"`
	Region      string  `gorm:"size:64" json:"region"`
	City        string  `gorm:"size:64" json:"city"`
	Timezone    string  `gorm:"size:64" json:"timezone"`
	Latitude    float64 `json:"latitude"`
	Longitude   float64 `json:"longitude"`

	SessionToken    string        `gorm:"size:64;index" json:"session_token,omitempty"`
	SessionDuration *int64        `json:"session_duration_ms,omitempty"`
	LogoutTime      *time.Time    `json:"logout_time,omitempty"`
	LogoutReason    *LogoutReason `gorm:"size:32" json:"logout_reason,omitempty"`

	IsFirstLogin         bool     `json:"is_first_login"`
	IsSuspiciousActivity bool     `gorm:"index" json:"is_suspicious_activity"`
	SuspiciousReasons    []string `gorm:"serializer:json" json:"suspicious_reasons,omitempty"`
	RiskScore            int      `json:"risk_score"` // clamped to [0,100] on write

	CreatedAt time.Time `json:"created_at"`
}

// LoginStats is the aggregate view over a user's recent attempts.
type LoginStats struct {
	TotalAttempts     int64      `json:"total_attempts"`
	SuccessfulLogins  int64      `json:"successful_logins"`
	FailedAttempts    int64      `json:"failed_attempts"`
	UniqueDeviceCount int        `json:"unique_device_count"`
	UniqueIPCount     int        `json:"unique_ip_count"`
	LastLogin         *time.Time `json:"last_login,omitempty"`
	SuccessRate       float64    `json:"success_rate"`
}
