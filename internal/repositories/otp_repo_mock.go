package repositories

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"authsvc/internal/models"

	"github.com/google/uuid"
)

// MockOTPRepository is an in-memory implementation of OTPRepository.
type MockOTPRepository struct {
	otps map[string]models.OTP
	mu   sync.RWMutex
}

// NewMockOTPRepository creates a new instance of MockOTPRepository.
func NewMockOTPRepository() *MockOTPRepository {
	return &MockOTPRepository{
		otps: make(map[string]models.OTP),
	}
}

// Create stores a new code.
func (r *MockOTPRepository) Create(_ context.Context, otp *models.OTP) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if otp.ID == "" {
		otp.ID = uuid.New().String()
	}
	r.otps[otp.ID] = *otp
	return nil
}

// FindLatest returns the newest record for userID whose code equals code.
func (r *MockOTPRepository) FindLatest(ctx context.Context, userID, code string) (*models.OTP, error) {
	otps, err := r.ListByUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	for _, o := range otps {
		if o.Code == code {
			found := o
			return &found, nil
		}
	}
	return nil, fmt.Errorf("otp not found: %w", ErrNotFound)
}

// ListByUser returns every code issued to userID, newest first.
func (r *MockOTPRepository) ListByUser(_ context.Context, userID string) ([]models.OTP, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	otps := make([]models.OTP, 0)
	for _, o := range r.otps {
		if o.UserID == userID {
			otps = append(otps, o)
		}
	}
	sort.Slice(otps, func(i, j int) bool { return otps[i].CreatedAt.After(otps[j].CreatedAt) })
	return otps, nil
}

// Delete removes a code by ID.
func (r *MockOTPRepository) Delete(_ context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.otps[id]; !ok {
		return fmt.Errorf("otp with ID %s not found for deletion: %w", id, ErrNotFound)
	}
	delete(r.otps, id)
	return nil
}

// DeleteExpired removes every code whose expiry is at or before now.
func (r *MockOTPRepository) DeleteExpired(_ context.Context, now time.Time) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var n int64
	for id, o := range r.otps {
		if !now.Before(o.ExpiresAt) {
			delete(r.otps, id)
			n++
		}
	}
	return n, nil
}
