// Package notify delivers password-reset codes to users.
package notify

import (
	"context"
	"fmt"
	"time"
)

// ResetMail is the content of a password-reset notification.
type ResetMail struct {
	To        string    `json:"to"`
	Username  string    `json:"username"`
	Code      string    `json:"code"`
	ExpiresAt time.Time `json:"expiresAt"`
}

// Subject is the subject line of the reset email.
func (m ResetMail) Subject() string {
	return "Password Reset OTP"
}

// Body is the plain-text body of the reset email.
func (m ResetMail) Body() string {
	return fmt.Sprintf("Hello %s,\r\n\r\nYour OTP for password reset is: %s\r\nIt expires at %s.\r\n",
		m.Username, m.Code, m.ExpiresAt.UTC().Format(time.RFC1123))
}

// Notifier sends a reset code and returns once the channel has accepted or refused it.
type Notifier interface {
	SendPasswordReset(ctx context.Context, mail ResetMail) error
}
