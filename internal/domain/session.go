package domain

import "time"

// LogoutReason is the closed set of ways a session can end.
type LogoutReason string

const (
	LogoutManual       LogoutReason = "manual"
	LogoutTimeout      LogoutReason = "timeout"
	LogoutForced       LogoutReason = "force_logout"
	LogoutTokenExpired LogoutReason = "token_expired"
)

func (r LogoutReason) Valid() bool {
	switch r {
	case LogoutManual, LogoutTimeout, LogoutForced, LogoutTokenExpired:
		return true
	}
	return false
}

// Session tracks one logged-in device/browser instance and its bearer credential.
// IsActive flips true->false exactly once; LogoutTime and LogoutReason are stamped
// in the same update as the flag.
type Session struct {
	ID           uint          `gorm:"primaryKey" json:"id"`
	UserID       uint          `gorm:"index;not null" json:"user_id"`
	SessionToken string        `gorm:"size:64;uniqueIndex;not null" json:"session_token"`
	Credential   string        `gorm:"size:1024;not null" json:"-"`
	UserAgent    string        `gorm:"size:512" json:"user_agent"`
	Browser      string        `gorm:"size:64" json:"browser"`
	OS           string        `gorm:"size:64" json:"os"`
	DeviceClass  string        `gorm:"size:32" json:"device_class"`
	IsMobile     bool          `json:"is_mobile"`
	IPAddress    string        `gorm:"size:64" json:"ip_address"`
	Country      string        `gorm:"size:64" json:"country"`
	Region       string        `gorm:"size:64" json:"region"`
	City         string        `gorm:"size:64" json:"city"`
	Timezone     string        `gorm:"size:64" json:"timezone"`
	Latitude     float64       `json:"latitude"`
	Longitude    float64       `json:"longitude"`
	LoginTime    time.Time     `gorm:"not null" json:"login_time"`
	LastActivity time.Time     `gorm:"not null" json:"last_activity"`
	ExpiresAt    time.Time     `gorm:"index;not null" json:"expires_at"`
	IsActive     bool          `gorm:"index;not null;default:true" json:"is_active"`
	LogoutTime   *time.Time    `json:"logout_time,omitempty"`
	LogoutReason *LogoutReason `gorm:"size:32" json:"logout_reason,omitempty"`
	CreatedAt    time.Time     `json:"created_at"`
	UpdatedAt    time.Time     `json:"updated_at"`
}
