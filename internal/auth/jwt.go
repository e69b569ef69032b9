// Package auth issues and validates the bearer tokens the broker can
// optionally require on its API. Authentication is off when no secret is
// configured.
package auth

import (
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/labstack/echo/v4"
)

// JWTClaims represents the claims in a broker token.
type JWTClaims struct {
	Subject string `json:"sub_name,omitempty"`
	Role    string `json:"role"`
	jwt.RegisteredClaims
}

// Service signs and validates tokens with a shared HMAC secret.
type Service struct {
	secret []byte
}

// NewService creates an auth service. An empty secret produces a disabled
// service whose middleware passes every request through.
func NewService(secret string) *Service {
	if secret == "" {
		return &Service{}
	}
	return &Service{secret: []byte(secret)}
}

// Enabled reports whether a secret is configured.
func (s *Service) Enabled() bool {
	return len(s.secret) > 0
}

// GenerateToken generates a client token valid for 24 hours.
func (s *Service) GenerateToken(subject string) (string, error) {
	if !s.Enabled() {
		return "", fmt.Errorf("auth is not configured")
	}
	claims := &JWTClaims{
		Subject: subject,
		Role:    "client",
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(24 * time.Hour)),
			IssuedAt:  jwt.NewNumericDate(time.Now()),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(s.secret)
}

// ValidateToken validates a token and returns its claims.
func (s *Service) ValidateToken(tokenString string) (*JWTClaims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &JWTClaims{}, func(token *jwt.Token) (interface{}, error) {
		return s.secret, nil
	})
	if err != nil {
		return nil, err
	}

	if claims, ok := token.Claims.(*JWTClaims); ok && token.Valid {
		return claims, nil
	}

	return nil, jwt.ErrInvalidKey
}

// Middleware returns an echo middleware that enforces a bearer token when
// auth is enabled and is a no-op otherwise.
func (s *Service) Middleware() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			if !s.Enabled() {
				return next(c)
			}

			authHeader := c.Request().Header.Get("Authorization")
			token, ok := strings.CutPrefix(authHeader, "Bearer ")
			if !ok || token == "" {
				return c.JSON(http.StatusUnauthorized, map[string]string{
					"error": "missing bearer token",
				})
			}

			if _, err := s.ValidateToken(token); err != nil {
				return c.JSON(http.StatusUnauthorized, map[string]string{
					"error": "invalid or expired token",
				})
			}
			return next(c)
		}
	}
}
