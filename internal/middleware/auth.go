package middleware

import (
	"context"
	"strings"

	"authsvc/internal/apperr"
	"authsvc/internal/services"

	"github.com/gofiber/fiber/v2"
	"github.com/samber/oops"
)

// SessionCookie is the cookie carrying the session token.
const SessionCookie = "token"

const actorKey = "actor"

// ActorResolver turns validated claims into the caller's current identity.
type ActorResolver interface {
	ResolveActor(ctx context.Context, claims *services.SessionClaims) (services.Actor, error)
}

// AuthRequired is a Fiber middleware that admits requests carrying a valid session
// token, taken from the session cookie or an "Authorization: Bearer" header.
// A missing token is rejected with TOKEN_MISSING and a bad one with TOKEN_INVALID.
// The caller's role is looked up through actors on every request.
func AuthRequired(sessions *services.SessionIssuer, actors ActorResolver) fiber.Handler {
	return func(c *fiber.Ctx) error {
		token := bearerToken(c)
		if token == "" {
			return oops.Code(apperr.CodeTokenMissing).
				With("path", c.Path()).
				Errorf("Access denied. No token provided.")
		}

		claims, err := sessions.Validate(token)
		if err != nil {
			return err
		}

		actor, err := actors.ResolveActor(c.UserContext(), claims)
		if err != nil {
			return err
		}

		// Store the caller in Fiber context for subsequent handlers
		c.Locals(actorKey, actor)
		return c.Next()
	}
}

// CurrentActor returns the caller stored by AuthRequired.
func CurrentActor(c *fiber.Ctx) (services.Actor, bool) {
	actor, ok := c.Locals(actorKey).(services.Actor)
	return actor, ok && actor.UserID != ""
}

func bearerToken(c *fiber.Ctx) string {
	if token := c.Cookies(SessionCookie); token != "" {
		return token
	}
	// Expected format: "Bearer <token>"
	parts := strings.SplitN(c.Get(fiber.HeaderAuthorization), " ", 2)
	if len(parts) == 2 && strings.EqualFold(parts[0], "Bearer") {
		return strings.TrimSpace(parts[1])
	}
	return ""
}
