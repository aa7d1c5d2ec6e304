package services

import (
	"fmt"
	"time"

	"authsvc/internal/apperr"
	"authsvc/internal/models"

	"github.com/dgrijalva/jwt-go"
	"github.com/samber/oops"
)

// DefaultSessionTTL is how long a session token stays valid.
const DefaultSessionTTL = 24 * time.Hour

// SessionClaims are the claims carried by a session token.
type SessionClaims struct {
	UserID string      `json:"user_id"`
	Role   models.Role `json:"role"`
	jwt.StandardClaims
}

// SessionIssuer mints and validates signed, time-bounded session tokens.
// Tokens are not stored server-side.
type SessionIssuer struct {
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

// NewSessionIssuer creates a SessionIssuer signing with secret. A zero ttl selects DefaultSessionTTL.
func NewSessionIssuer(secret string, ttl time.Duration) *SessionIssuer {
	if ttl <= 0 {
		ttl = DefaultSessionTTL
	}
	return &SessionIssuer{
		secret: []byte(secret),
		ttl:    ttl,
		now:    time.Now,
	}
}

// WithClock replaces the clock used to stamp issued tokens.
func (s *SessionIssuer) WithClock(now func() time.Time) *SessionIssuer {
	s.now = now
	return s
}

// TTL returns the lifetime of issued tokens.
func (s *SessionIssuer) TTL() time.Duration {
	return s.ttl
}

// Issue signs a token for user and returns it with its expiry.
func (s *SessionIssuer) Issue(user *models.User) (string, time.Time, error) {
	issuedAt := s.now()
	expiresAt := issuedAt.Add(s.ttl)

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, SessionClaims{
		UserID: user.ID,
		Role:   user.Role,
		StandardClaims: jwt.StandardClaims{
			Subject:   user.ID,
			IssuedAt:  issuedAt.Unix(),
			ExpiresAt: expiresAt.Unix(),
		},
	})

	signed, err := token.SignedString(s.secret)
	if err != nil {
		return "", time.Time{}, oops.Code(apperr.CodeInternal).Wrapf(err, "failed to sign session token")
	}
	return signed, expiresAt, nil
}

// Validate parses tokenString and returns its claims if the signature and expiry hold.
func (s *SessionIssuer) Validate(tokenString string) (*SessionClaims, error) {
	claims := &SessionClaims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return s.secret, nil
	})
	if err != nil {
		return nil, oops.Code(apperr.CodeTokenInvalid).With("reason", err.Error()).Errorf("Invalid or expired token")
	}
	if !token.Valid || claims.UserID == "" {
		return nil, oops.Code(apperr.CodeTokenInvalid).Errorf("Invalid or expired token")
	}
	return claims, nil
}
