package repositories

import (
	"context"
	"time"

	"authsvc/internal/models"
)

// OTPRepository defines the interface for password-reset code storage.
type OTPRepository interface {
	Create(ctx context.Context, otp *models.OTP) error
	// FindLatest returns the most recently created code for the user that equals code.
	FindLatest(ctx context.Context, userID, code string) (*models.OTP, error)
	Delete(ctx context.Context, id string) error
	DeleteExpired(ctx context.Context, now time.Time) (int64, error)
}
