package handlers

import (
	"time"

	"authsvc/internal/middleware"
	"authsvc/internal/services"

	"github.com/gofiber/fiber/v2"
)

// AuthHandler handles HTTP requests for registration, login and password reset.
type AuthHandler struct {
	authService  *services.AuthService
	cookieSecure bool
}

// NewAuthHandler creates a new AuthHandler. cookieSecure sets the Secure flag on the session cookie.
func NewAuthHandler(authService *services.AuthService, cookieSecure bool) *AuthHandler {
	return &AuthHandler{
		authService:  authService,
		cookieSecure: cookieSecure,
	}
}

// RegisterRoutes registers the public account routes with the Fiber app.
func (h *AuthHandler) RegisterRoutes(router fiber.Router) {
	router.Post("/user/register", h.HandleRegister)
	router.Post("/user/login", h.HandleLogin)
	router.Post("/user/logout", h.HandleLogout)
	router.Post("/user/forgot-password", h.HandleForgotPassword)
	router.Post("/user/reset-password", h.HandleResetPassword)
	router.Post("/user/password-strength", h.HandlePasswordStrength)
}

// HandleRegister handles new user registration.
func (h *AuthHandler) HandleRegister(c *fiber.Ctx) error {
	var req services.RegisterInput
	if err := c.BodyParser(&req); err != nil {
		return badRequestBody(err)
	}

	res, err := h.authService.Register(c.UserContext(), req)
	if err != nil {
		return err
	}

	return c.Status(fiber.StatusCreated).JSON(fiber.Map{
		"message":  "User registered successfully",
		"user":     res.User,
		"strength": res.Strength,
	})
}

// HandleLogin authenticates by email or username, sets the session cookie and
// returns the token in the body as well.
func (h *AuthHandler) HandleLogin(c *fiber.Ctx) error {
	var req services.LoginInput
	if err := c.BodyParser(&req); err != nil {
		return badRequestBody(err)
	}

	res, err := h.authService.Login(c.UserContext(), req)
	if err != nil {
		return err
	}

	c.Cookie(&fiber.Cookie{
		Name:     middleware.SessionCookie,
		Value:    res.Token,
		Path:     "/",
		Expires:  res.ExpiresAt,
		HTTPOnly: true,
		Secure:   h.cookieSecure,
		SameSite: fiber.CookieSameSiteLaxMode,
	})

	return c.JSON(fiber.Map{
		"message":   "Login successful",
		"user":      res.User,
		"token":     res.Token,
		"expiresAt": res.ExpiresAt,
	})
}

// HandleLogout clears the session cookie. Tokens are stateless, so a copy held
// elsewhere stays valid until it expires.
func (h *AuthHandler) HandleLogout(c *fiber.Ctx) error {
	c.Cookie(&fiber.Cookie{
		Name:     middleware.SessionCookie,
		Value:    "",
		Path:     "/",
		Expires:  time.Unix(0, 0),
		HTTPOnly: true,
		Secure:   h.cookieSecure,
		SameSite: fiber.CookieSameSiteLaxMode,
	})
	return c.JSON(fiber.Map{"message": "Logout successful"})
}

type forgotPasswordRequest struct {
	Email string `json:"email"`
}

// HandleForgotPassword issues and sends a reset code.
func (h *AuthHandler) HandleForgotPassword(c *fiber.Ctx) error {
	var req forgotPasswordRequest
	if err := c.BodyParser(&req); err != nil {
		return badRequestBody(err)
	}

	if err := h.authService.ForgotPassword(c.UserContext(), req.Email); err != nil {
		return err
	}
	return c.JSON(fiber.Map{"message": "OTP sent successfully"})
}

// HandleResetPassword sets a new password after checking the reset code.
func (h *AuthHandler) HandleResetPassword(c *fiber.Ctx) error {
	var req services.ResetInput
	if err := c.BodyParser(&req); err != nil {
		return badRequestBody(err)
	}

	if err := h.authService.ResetPassword(c.UserContext(), req); err != nil {
		return err
	}
	return c.JSON(fiber.Map{"message": "Password reset successful"})
}

type passwordStrengthRequest struct {
	Password string `json:"password"`
	Username string `json:"username"`
}

// HandlePasswordStrength scores a candidate password without storing anything.
func (h *AuthHandler) HandlePasswordStrength(c *fiber.Ctx) error {
	var req passwordStrengthRequest
	if err := c.BodyParser(&req); err != nil {
		return badRequestBody(err)
	}

	res := h.authService.EvaluatePassword(req.Password, req.Username)
	return c.JSON(fiber.Map{
		"strength":    res.Tier,
		"score":       res.Score,
		"suggestions": res.Suggestions,
		"acceptable":  res.Acceptable(),
	})
}
