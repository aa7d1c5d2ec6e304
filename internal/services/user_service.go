package services

import (
	"context"
	"errors"

	"authsvc/internal/apperr"
	"authsvc/internal/models"
	"authsvc/internal/repositories"

	"github.com/go-playground/validator/v10"
	"github.com/samber/oops"
	"go.uber.org/zap"
)

// Actor is the authenticated identity a request runs as.
type Actor struct {
	UserID string
	Role   models.Role
}

// IsAdmin reports whether the actor holds the admin role.
func (a Actor) IsAdmin() bool {
	return a.Role == models.RoleAdmin
}

// UpdateInput carries the fields a PATCH may change. Nil fields are left alone.
type UpdateInput struct {
	Username    *string      `json:"username" validate:"omitempty,min=3,max=100,excludes=@"`
	Email       *string      `json:"email" validate:"omitempty,email,max=255"`
	PhoneNumber *string      `json:"phoneNumber" validate:"omitempty,max=32"`
	Role        *models.Role `json:"role" validate:"omitempty,oneof=user admin"`
}

func (in UpdateInput) empty() bool {
	return in.Username == nil && in.Email == nil && in.PhoneNumber == nil && in.Role == nil
}

// UserService exposes account records to authenticated callers.
type UserService struct {
	users    repositories.UserRepository
	validate *validator.Validate
	logger   *zap.Logger
}

// NewUserService creates a new UserService.
func NewUserService(users repositories.UserRepository, logger *zap.Logger) *UserService {
	return &UserService{
		users:    users,
		validate: newValidator(),
		logger:   logger,
	}
}

// ResolveActor loads the caller named by claims from the store; the role carried
// in the token is ignored. A caller who no longer exists gets TOKEN_INVALID.
func (s *UserService) ResolveActor(ctx context.Context, claims *SessionClaims) (Actor, error) {
	user, err := s.users.GetByID(ctx, claims.UserID)
	if err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			return Actor{}, oops.Code(apperr.CodeTokenInvalid).With("user_id", claims.UserID).Errorf("Invalid or expired token")
		}
		return Actor{}, oops.Code(apperr.CodeInternal).With("user_id", claims.UserID).Wrap(err)
	}
	if user.Role != claims.Role {
		s.log().Debug("token role is stale", zap.String("user_id", user.ID), zap.String("token_role", string(claims.Role)), zap.String("role", string(user.Role)))
	}
	return Actor{UserID: user.ID, Role: user.Role}, nil
}

// PromoteAdmin grants the admin role to the user registered under email. It
// returns USER_NOT_FOUND when nobody holds that email yet.
func (s *UserService) PromoteAdmin(ctx context.Context, email string) error {
	user, err := s.users.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			return oops.Code(apperr.CodeUserNotFound).With("email", email).Errorf("User not found")
		}
		return oops.Code(apperr.CodeInternal).With("email", email).Wrap(err)
	}
	if user.IsAdmin() {
		return nil
	}
	user.Role = models.RoleAdmin
	if err := s.users.Update(ctx, user); err != nil {
		return oops.Code(apperr.CodeInternal).With("user_id", user.ID).Wrap(err)
	}
	s.log().Info("user promoted to admin", zap.String("user_id", user.ID))
	return nil
}

// Profile returns the actor's own record.
func (s *UserService) Profile(ctx context.Context, actor Actor) (*models.User, error) {
	return s.Get(ctx, actor, actor.UserID)
}

// Get returns the user with the given id.
func (s *UserService) Get(ctx context.Context, _ Actor, id string) (*models.User, error) {
	user, err := s.users.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			return nil, oops.Code(apperr.CodeUserNotFound).With("user_id", id).Errorf("User not found")
		}
		return nil, oops.Code(apperr.CodeInternal).With("user_id", id).Wrap(err)
	}
	return user, nil
}

// List returns every user.
func (s *UserService) List(ctx context.Context, _ Actor) ([]models.User, error) {
	users, err := s.users.List(ctx)
	if err != nil {
		return nil, oops.Code(apperr.CodeInternal).Wrap(err)
	}
	return users, nil
}

// Update changes profile fields of user id. Users may edit themselves; admins may
// edit anyone and are the only ones allowed to change roles.
func (s *UserService) Update(ctx context.Context, actor Actor, id string, in UpdateInput) (*models.User, error) {
	if in.empty() {
		return nil, oops.Code(apperr.CodeValidation).Errorf("No update data provided")
	}
	if err := validateStruct(s.validate, in); err != nil {
		return nil, err
	}
	if actor.UserID != id && !actor.IsAdmin() {
		return nil, oops.Code(apperr.CodeForbidden).With("actor_id", actor.UserID).With("user_id", id).Errorf("Not allowed to modify this user")
	}
	if in.Role != nil && !actor.IsAdmin() {
		return nil, oops.Code(apperr.CodeForbidden).With("actor_id", actor.UserID).Errorf("Only admins can change roles")
	}

	user, err := s.Get(ctx, actor, id)
	if err != nil {
		return nil, err
	}

	var email, phone, username string
	if in.Email != nil && *in.Email != user.Email {
		email = *in.Email
	}
	if in.PhoneNumber != nil && *in.PhoneNumber != user.PhoneNumber {
		phone = *in.PhoneNumber
	}
	if in.Username != nil && *in.Username != user.Username {
		username = *in.Username
	}
	if err := ensureAvailable(ctx, s.users, user.ID, email, phone, username); err != nil {
		return nil, err
	}

	if in.Username != nil {
		user.Username = *in.Username
	}
	if in.Email != nil {
		user.Email = *in.Email
	}
	if in.PhoneNumber != nil {
		user.PhoneNumber = *in.PhoneNumber
	}
	if in.Role != nil {
		user.Role = *in.Role
	}

	if err := s.users.Update(ctx, user); err != nil {
		if errors.Is(err, repositories.ErrDuplicate) {
			return nil, oops.Code(apperr.CodeConflict).Errorf("Account details already registered")
		}
		return nil, oops.Code(apperr.CodeInternal).With("user_id", id).Wrap(err)
	}

	s.log().Info("user updated", zap.String("user_id", id), zap.String("actor_id", actor.UserID))
	return user, nil
}

// Delete removes user id. Users may delete themselves; admins may delete anyone.
func (s *UserService) Delete(ctx context.Context, actor Actor, id string) error {
	if actor.UserID != id && !actor.IsAdmin() {
		return oops.Code(apperr.CodeForbidden).With("actor_id", actor.UserID).With("user_id", id).Errorf("Not allowed to delete this user")
	}
	if err := s.users.Delete(ctx, id); err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			return oops.Code(apperr.CodeUserNotFound).With("user_id", id).Errorf("User not found")
		}
		return oops.Code(apperr.CodeInternal).With("user_id", id).Wrap(err)
	}

	s.log().Info("user deleted", zap.String("user_id", id), zap.String("actor_id", actor.UserID))
	return nil
}

func (s *UserService) log() *zap.Logger {
	if s != nil && s.logger != nil {
		return s.logger
	}
	return zap.L()
}
