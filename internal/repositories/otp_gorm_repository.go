package repositories

import (
	"context"
	"errors"
	"fmt"
	"time"

	"authsvc/internal/models"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// GORMOTPRepository is a GORM implementation of OTPRepository.
type GORMOTPRepository struct {
	db *gorm.DB
}

// NewGORMOTPRepository creates a new instance of GORMOTPRepository.
func NewGORMOTPRepository(db *gorm.DB) *GORMOTPRepository {
	return &GORMOTPRepository{
		db: db,
	}
}

// Create stores a new code.
func (r *GORMOTPRepository) Create(ctx context.Context, otp *models.OTP) error {
	if otp.ID == "" {
		otp.ID = uuid.New().String()
	}
	if err := r.db.WithContext(ctx).Create(otp).Error; err != nil {
		return fmt.Errorf("failed to create otp: %w", err)
	}
	return nil
}

// FindLatest returns the newest record for userID whose code equals code.
func (r *GORMOTPRepository) FindLatest(ctx context.Context, userID, code string) (*models.OTP, error) {
	var otp models.OTP
	err := r.db.WithContext(ctx).
		Where("user_id = ? AND code = ?", userID, code).
		Order("created_at DESC").
		First(&otp).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("otp not found: %w", ErrNotFound)
		}
		return nil, fmt.Errorf("failed to find otp: %w", err)
	}
	return &otp, nil
}

// Delete removes a code by ID.
func (r *GORMOTPRepository) Delete(ctx context.Context, id string) error {
	res := r.db.WithContext(ctx).Delete(&models.OTP{}, "id = ?", id)
	if res.Error != nil {
		return fmt.Errorf("failed to delete otp: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("otp with ID %s not found for deletion: %w", id, ErrNotFound)
	}
	return nil
}

// DeleteExpired removes every code whose expiry is at or before now.
func (r *GORMOTPRepository) DeleteExpired(ctx context.Context, now time.Time) (int64, error) {
	res := r.db.WithContext(ctx).Where("expires_at <= ?", now).Delete(&models.OTP{})
	if res.Error != nil {
		return 0, fmt.Errorf("failed to delete expired otps: %w", res.Error)
	}
	return res.RowsAffected, nil
}
