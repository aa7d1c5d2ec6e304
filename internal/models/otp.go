package models

import "time"

// OTP is a one-time password-reset code issued to a user.
type OTP struct {
	ID        string    `json:"id" gorm:"primaryKey;type:varchar(36)"`
	UserID    string    `json:"userId" gorm:"type:varchar(36);not null;index:idx_user_otps_user_code"`
	Code      string    `json:"-" gorm:"type:varchar(6);not null;index:idx_user_otps_user_code"`
	CreatedAt time.Time `json:"createdAt" gorm:"not null"`
	ExpiresAt time.Time `json:"expiresAt" gorm:"not null"`
}

// TableName keeps the table name used by existing deployments.
func (OTP) TableName() string {
	return "user_otps"
}

// ExpiredAt reports whether the code is no longer usable at now.
func (o *OTP) ExpiredAt(now time.Time) bool {
	return !now.Before(o.ExpiresAt)
}
