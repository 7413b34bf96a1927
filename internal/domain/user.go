package domain

import "time"

// User carries the credential hash and the embedded login-throttle sub-state.
//
// FailedLoginCount stays in [0,5): the fifth consecutive failure sets LockedUntil
// and resets the counter in the same atomic update, so a count of 5 is never
// observable. TotalLoginAttempts is monotonic and never reset.
type User struct {
	ID           uint   `gorm:"primaryKey" json:"id"`
	Email        string `gorm:"size:255;uniqueIndex;not null" json:"email"`
	DisplayName  string `gorm:"size:128" json:"display_name"`
	PasswordHash string `gorm:"size:128;not null" json:"-"`
	IsAdmin      bool   `gorm:"not null;default:false" json:"is_admin"`

	FailedLoginCount   int        `gorm:"not null;default:0" json:"-"`
	LastFailedAttempt  *time.Time `json:"-"`
	LockedUntil        *time.Time `json:"-"`
	TotalLoginAttempts int64      `gorm:"not null;default:0" json:"-"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}
