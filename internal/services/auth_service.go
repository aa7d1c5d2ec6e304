package services

import (
	"context"
	"errors"
	"sync"
	"time"

	"authsvc/internal/apperr"
	"authsvc/internal/models"
	"authsvc/internal/password"
	"authsvc/internal/repositories"

	"github.com/go-playground/validator/v10"
	"github.com/samber/oops"
	"go.uber.org/zap"
)

const invalidCredentials = "Invalid credentials"

// RegisterInput is the registration request.
type RegisterInput struct {
	Username        string `json:"username" validate:"required,min=3,max=100,excludes=@"`
	Email           string `json:"email" validate:"required,email,max=255"`
	PhoneNumber     string `json:"phoneNumber" validate:"required,max=32"`
	Password        string `json:"password" validate:"required"`
	ConfirmPassword string `json:"confirmPassword" validate:"required,eqfield=Password"`
}

// LoginInput is the login request. Identifier is an email or a username.
type LoginInput struct {
	Identifier string `json:"identifier" validate:"required"`
	Password   string `json:"password" validate:"required"`
}

// ResetInput is the reset-password request.
type ResetInput struct {
	Email       string `json:"email" validate:"required"`
	OTP         string `json:"otp" validate:"required"`
	NewPassword string `json:"newPassword" validate:"required"`
}

// RegisterResult is returned by a successful registration.
type RegisterResult struct {
	User     *models.User  `json:"user"`
	Strength password.Tier `json:"strength"`
}

// LoginResult is returned by a successful login.
type LoginResult struct {
	Token     string       `json:"token"`
	ExpiresAt time.Time    `json:"expiresAt"`
	User      *models.User `json:"user"`
}

// AuthService runs the register, login and password-reset workflows.
type AuthService struct {
	users    repositories.UserRepository
	otps     *OTPService
	sessions *SessionIssuer
	hasher   PasswordHasher
	validate *validator.Validate
	logger   *zap.Logger
	// adminEmail is granted the admin role when it registers.
	adminEmail string

	dummyOnce sync.Once
	dummyHash string
}

// NewAuthService creates a new AuthService.
func NewAuthService(users repositories.UserRepository, otps *OTPService, sessions *SessionIssuer, hasher PasswordHasher, logger *zap.Logger) *AuthService {
	return &AuthService{
		users:    users,
		otps:     otps,
		sessions: sessions,
		hasher:   hasher,
		validate: newValidator(),
		logger:   logger,
	}
}

// WithAdminEmail makes the account registered under email an admin.
func (s *AuthService) WithAdminEmail(email string) *AuthService {
	s.adminEmail = email
	return s
}

// Sessions returns the issuer used to mint session tokens.
func (s *AuthService) Sessions() *SessionIssuer {
	return s.sessions
}

// EvaluatePassword scores a candidate password for identity without side effects.
func (s *AuthService) EvaluatePassword(candidate, identity string) password.Result {
	return password.Evaluate(candidate, identity)
}

// Register validates input, enforces the password policy and uniqueness, and stores the new user.
// Self-registered users get the user role unless they claim the configured admin email.
func (s *AuthService) Register(ctx context.Context, in RegisterInput) (*RegisterResult, error) {
	if err := validateStruct(s.validate, in); err != nil {
		return nil, err
	}

	strength := password.Evaluate(in.Password, in.Username)
	if !strength.Acceptable() {
		return nil, weakPasswordError(strength)
	}

	if err := ensureAvailable(ctx, s.users, "", in.Email, in.PhoneNumber, in.Username); err != nil {
		return nil, err
	}

	user := &models.User{
		Username:    in.Username,
		Email:       in.Email,
		PhoneNumber: in.PhoneNumber,
		Role:        models.RoleUser,
	}
	if s.adminEmail != "" && in.Email == s.adminEmail {
		user.Role = models.RoleAdmin
	}
	if err := s.setPassword(user, in.Password); err != nil {
		return nil, err
	}

	if err := s.users.Create(ctx, user); err != nil {
		if errors.Is(err, repositories.ErrDuplicate) {
			return nil, oops.Code(apperr.CodeConflict).Errorf("Account details already registered")
		}
		return nil, oops.Code(apperr.CodeInternal).With("operation", "create user").Wrap(err)
	}

	s.log().Info("user registered", zap.String("user_id", user.ID), zap.String("strength", strength.Tier.String()))
	return &RegisterResult{User: user, Strength: strength.Tier}, nil
}

// Login authenticates by email or username and issues a session token. Unknown
// identifiers and wrong passwords produce the same error.
func (s *AuthService) Login(ctx context.Context, in LoginInput) (*LoginResult, error) {
	if err := validateStruct(s.validate, in); err != nil {
		return nil, err
	}

	user, err := s.users.GetByIdentifier(ctx, in.Identifier)
	if err != nil {
		if !errors.Is(err, repositories.ErrNotFound) {
			return nil, oops.Code(apperr.CodeInternal).With("operation", "lookup identifier").Wrap(err)
		}
		// Spend the same bcrypt effort as a real comparison.
		s.hasher.Matches(s.dummy(), in.Password)
		return nil, oops.Code(apperr.CodeInvalidCredentials).Errorf(invalidCredentials)
	}

	if !s.hasher.Matches(user.PasswordHash, in.Password) {
		return nil, oops.Code(apperr.CodeInvalidCredentials).With("user_id", user.ID).Errorf(invalidCredentials)
	}

	token, expiresAt, err := s.sessions.Issue(user)
	if err != nil {
		return nil, err
	}

	s.log().Info("user logged in", zap.String("user_id", user.ID))
	return &LoginResult{Token: token, ExpiresAt: expiresAt, User: user}, nil
}

// ForgotPassword issues a reset code for the account registered under email and
// sends it. It reports a missing account as USER_NOT_FOUND.
func (s *AuthService) ForgotPassword(ctx context.Context, email string) error {
	if email == "" {
		return oops.Code(apperr.CodeValidation).With("errors", map[string]string{"email": "Email is required"}).Errorf("Validation failed")
	}

	user, err := s.userByEmail(ctx, email)
	if err != nil {
		return err
	}

	if _, err := s.otps.Issue(ctx, user); err != nil {
		return err
	}
	return nil
}

// ResetPassword replaces the password of the account under in.Email after checking
// the reset code. The code is deleted once the new password is stored.
func (s *AuthService) ResetPassword(ctx context.Context, in ResetInput) error {
	if in.Email == "" || in.OTP == "" || in.NewPassword == "" {
		return oops.Code(apperr.CodeValidation).Errorf("Email, OTP, and new password are required")
	}

	user, err := s.userByEmail(ctx, in.Email)
	if err != nil {
		return err
	}

	otp, err := s.otps.Verify(ctx, user.ID, in.OTP)
	if err != nil {
		return err
	}

	if s.reusesPassword(user, in.NewPassword) {
		return oops.Code(apperr.CodePasswordReused).With("user_id", user.ID).Errorf("New password must be different from the old password")
	}

	strength := password.Evaluate(in.NewPassword, user.Username)
	if !strength.Acceptable() {
		return weakPasswordError(strength)
	}

	if err := s.setPassword(user, in.NewPassword); err != nil {
		return err
	}
	if err := s.users.Update(ctx, user); err != nil {
		return oops.Code(apperr.CodeInternal).With("operation", "update password").With("user_id", user.ID).Wrap(err)
	}
	if err := s.otps.Consume(ctx, otp); err != nil {
		return err
	}

	s.log().Info("password reset", zap.String("user_id", user.ID))
	return nil
}

// reusesPassword compares candidate with the current password both verbatim and
// after trimming and case-folding.
func (s *AuthService) reusesPassword(user *models.User, candidate string) bool {
	if s.hasher.Matches(user.PasswordHash, candidate) {
		return true
	}
	return user.NormalizedPasswordHash != "" &&
		s.hasher.Matches(user.NormalizedPasswordHash, password.Normalize(candidate))
}

func (s *AuthService) setPassword(user *models.User, plain string) error {
	hash, err := s.hasher.Hash(plain)
	if err != nil {
		return oops.Code(apperr.CodeInternal).Wrap(err)
	}
	normalized, err := s.hasher.Hash(password.Normalize(plain))
	if err != nil {
		return oops.Code(apperr.CodeInternal).Wrap(err)
	}
	user.PasswordHash = hash
	user.NormalizedPasswordHash = normalized
	return nil
}

func (s *AuthService) userByEmail(ctx context.Context, email string) (*models.User, error) {
	user, err := s.users.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			return nil, oops.Code(apperr.CodeUserNotFound).Errorf("User not found")
		}
		return nil, oops.Code(apperr.CodeInternal).With("operation", "lookup email").Wrap(err)
	}
	return user, nil
}

func weakPasswordError(res password.Result) error {
	return oops.Code(apperr.CodeWeakPassword).
		With("strength", res.Tier.String()).
		With("suggestions", res.Suggestions).
		Errorf("Password is not strong enough. Please improve your password.")
}

func (s *AuthService) dummy() string {
	s.dummyOnce.Do(func() {
		// Hash of a value no user can submit; only its cost matters.
		s.dummyHash, _ = s.hasher.Hash("\x00authsvc-timing-equalizer")
	})
	return s.dummyHash
}

func (s *AuthService) log() *zap.Logger {
	if s != nil && s.logger != nil {
		return s.logger
	}
	return zap.L()
}

// ensureAvailable checks email, phone and username against every user except excludeID.
// Empty values are skipped.
func ensureAvailable(ctx context.Context, users repositories.UserRepository, excludeID, email, phone, username string) error {
	checks := []struct {
		value  string
		lookup func(context.Context, string) (*models.User, error)
		code   string
		msg    string
	}{
		{email, users.GetByEmail, apperr.CodeEmailTaken, "Email already registered"},
		{phone, users.GetByPhoneNumber, apperr.CodePhoneTaken, "Phone number already registered"},
		{username, users.GetByUsername, apperr.CodeUsernameTaken, "Username already taken"},
	}
	for _, c := range checks {
		if c.value == "" {
			continue
		}
		existing, err := c.lookup(ctx, c.value)
		switch {
		case err == nil && existing.ID != excludeID:
			return oops.Code(c.code).Errorf("%s", c.msg)
		case err != nil && !errors.Is(err, repositories.ErrNotFound):
			return oops.Code(apperr.CodeInternal).With("operation", "uniqueness check").Wrap(err)
		}
	}
	return nil
}
