package services

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"io"
	"math/big"
	"time"

	"authsvc/internal/apperr"
	"authsvc/internal/models"
	"authsvc/internal/notify"
	"authsvc/internal/repositories"

	"github.com/samber/oops"
	"go.uber.org/zap"
)

// OTP settings.
const (
	OTPDigits     = 6
	DefaultOTPTTL = 10 * time.Minute
	// DefaultSendTimeout bounds a single hand-off to the notifier.
	DefaultSendTimeout = 15 * time.Second
)

var otpSpace = big.NewInt(1_000_000)

// OTPService issues, verifies and consumes password-reset codes.
// Issuing a code never invalidates earlier ones; each is checked against its own expiry.
type OTPService struct {
	repo     repositories.OTPRepository
	notifier notify.Notifier
	ttl         time.Duration
	sendTimeout time.Duration
	now         func() time.Time
	random      io.Reader
	logger      *zap.Logger
}

// NewOTPService creates an OTPService. A zero ttl selects DefaultOTPTTL.
func NewOTPService(repo repositories.OTPRepository, notifier notify.Notifier, ttl time.Duration, logger *zap.Logger) *OTPService {
	if ttl <= 0 {
		ttl = DefaultOTPTTL
	}
	return &OTPService{
		repo:        repo,
		notifier:    notifier,
		ttl:         ttl,
		sendTimeout: DefaultSendTimeout,
		now:         time.Now,
		random:      rand.Reader,
		logger:      logger,
	}
}

// WithSendTimeout limits how long Issue waits for the notifier. Non-positive
// values keep the current limit.
func (s *OTPService) WithSendTimeout(d time.Duration) *OTPService {
	if d > 0 {
		s.sendTimeout = d
	}
	return s
}

// WithClock replaces the time source used for issuing and verifying codes.
func (s *OTPService) WithClock(now func() time.Time) *OTPService {
	s.now = now
	return s
}

// WithRandom replaces the entropy source used to generate codes.
func (s *OTPService) WithRandom(r io.Reader) *OTPService {
	s.random = r
	return s
}

// GenerateCode draws a uniformly random code from 000000..999999.
func GenerateCode(r io.Reader) (string, error) {
	n, err := rand.Int(r, otpSpace)
	if err != nil {
		return "", fmt.Errorf("failed to generate otp: %w", err)
	}
	return fmt.Sprintf("%0*d", OTPDigits, n.Int64()), nil
}

// Issue creates and stores a code for user, then sends it to the user's email.
// When delivery fails the stored record is returned together with a DELIVERY_FAILED
// error; the code stays valid until it expires.
func (s *OTPService) Issue(ctx context.Context, user *models.User) (*models.OTP, error) {
	code, err := GenerateCode(s.random)
	if err != nil {
		return nil, oops.Code(apperr.CodeInternal).With("user_id", user.ID).Wrap(err)
	}

	now := s.now()
	otp := &models.OTP{
		UserID:    user.ID,
		Code:      code,
		CreatedAt: now,
		ExpiresAt: now.Add(s.ttl),
	}
	if err := s.repo.Create(ctx, otp); err != nil {
		return nil, oops.Code(apperr.CodeInternal).With("user_id", user.ID).Wrap(err)
	}

	sendCtx, cancel := context.WithTimeout(ctx, s.sendTimeout)
	defer cancel()
	err = s.notifier.SendPasswordReset(sendCtx, notify.ResetMail{
		To:        user.Email,
		Username:  user.Username,
		Code:      code,
		ExpiresAt: otp.ExpiresAt,
	})
	if err != nil {
		return otp, oops.Code(apperr.CodeDeliveryFailed).
			With("user_id", user.ID).
			With("otp_id", otp.ID).
			Wrapf(err, "failed to send otp")
	}

	s.log().Info("otp issued", zap.String("user_id", user.ID), zap.String("otp_id", otp.ID), zap.Time("expires_at", otp.ExpiresAt))
	return otp, nil
}

// Verify returns the newest record for userID matching code exactly. It fails with
// OTP_INVALID when no record matches and OTP_EXPIRED when the match is at or past
// its expiry. Expired records are left in place.
func (s *OTPService) Verify(ctx context.Context, userID, code string) (*models.OTP, error) {
	otp, err := s.repo.FindLatest(ctx, userID, code)
	if err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			return nil, oops.Code(apperr.CodeOTPInvalid).With("user_id", userID).Errorf("Invalid OTP")
		}
		return nil, oops.Code(apperr.CodeInternal).With("user_id", userID).Wrap(err)
	}
	if otp.ExpiredAt(s.now()) {
		return nil, oops.Code(apperr.CodeOTPExpired).
			With("user_id", userID).
			With("otp_id", otp.ID).
			Errorf("OTP has expired")
	}
	return otp, nil
}

// Consume deletes a used record so it cannot be replayed.
func (s *OTPService) Consume(ctx context.Context, otp *models.OTP) error {
	if err := s.repo.Delete(ctx, otp.ID); err != nil {
		return oops.Code(apperr.CodeInternal).With("otp_id", otp.ID).Wrap(err)
	}
	return nil
}

// PurgeExpired removes codes that can no longer be used.
func (s *OTPService) PurgeExpired(ctx context.Context) (int64, error) {
	n, err := s.repo.DeleteExpired(ctx, s.now())
	if err != nil {
		return 0, oops.Code(apperr.CodeInternal).Wrap(err)
	}
	return n, nil
}

func (s *OTPService) log() *zap.Logger {
	if s != nil && s.logger != nil {
		return s.logger
	}
	return zap.L()
}
