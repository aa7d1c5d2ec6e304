package models

import "time"

// Role is the authorization level of a user.
type Role string

const (
	RoleUser  Role = "user"
	RoleAdmin Role = "admin"
)

// Valid reports whether r is one of the known roles.
func (r Role) Valid() bool {
	return r == RoleUser || r == RoleAdmin
}

// User represents a registered account.
type User struct {
	ID                     string    `json:"id" gorm:"primaryKey;type:varchar(36)"`
	Username               string    `json:"username" gorm:"uniqueIndex;type:varchar(100);not null"`
	Email                  string    `json:"email" gorm:"uniqueIndex;type:varchar(255);not null"`
	PhoneNumber            string    `json:"phoneNumber" gorm:"uniqueIndex;type:varchar(32);not null"`
	PasswordHash           string    `json:"-" gorm:"type:varchar(255);not null"`
	NormalizedPasswordHash string    `json:"-" gorm:"type:varchar(255);not null"` // bcrypt of the trimmed, lower-cased password
	Role                   Role      `json:"role" gorm:"type:varchar(10);not null;default:'user'"`
	OTPs                   []OTP     `json:"-" gorm:"constraint:OnDelete:CASCADE"`
	CreatedAt              time.Time `json:"createdAt"`
	UpdatedAt              time.Time `json:"updatedAt"`
}

// IsAdmin reports whether the user holds the admin role.
func (u *User) IsAdmin() bool {
	return u.Role == RoleAdmin
}
