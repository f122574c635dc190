package middleware

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"firebase.google.com/go/v4/auth"
	"github.com/labstack/echo/v4"

	"github.com/anonto42/nano-midea/socialsync/internal/repositories"
	"github.com/anonto42/nano-midea/socialsync/internal/store"
)

// Context keys set by the auth middlewares.
const (
	HandleKey = "handle"
	UIDKey    = "uid"
)

// TokenVerifier is the part of *auth.Client the middleware uses.
type TokenVerifier interface {
	VerifyIDToken(ctx context.Context, idToken string) (*auth.Token, error)
}

// FirebaseAuthMiddleware creates an Echo middleware to verify Firebase ID tokens
// and resolve the caller's handle
func FirebaseAuthMiddleware(verifier TokenVerifier, users repositories.UserRepository) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			idToken, err := bearerToken(c)
			if err != nil {
				return err
			}

			ctx := c.Request().Context()
			token, err := verifier.VerifyIDToken(ctx, idToken)
			if err != nil {
				return echo.NewHTTPError(http.StatusForbidden, "Invalid or expired ID token")
			}

			user, err := users.GetUserByUID(ctx, token.UID)
			if errors.Is(err, store.ErrNotFound) {
				return echo.NewHTTPError(http.StatusForbidden, "No user registered for this token")
			}
			if err != nil {
				return echo.NewHTTPError(http.StatusInternalServerError, "Failed to resolve user")
			}

			c.Set(UIDKey, token.UID)
			c.Set(HandleKey, user.Handle)
			return next(c)
		}
	}
}

// Handle returns the authenticated caller's handle, or "" outside the auth
// middlewares.
func Handle(c echo.Context) string {
	h, _ := c.Get(HandleKey).(string)
	return h
}

func bearerToken(c echo.Context) (string, error) {
	authHeader := c.Request().Header.Get("Authorization")
	if authHeader == "" {
		return "", echo.NewHTTPError(http.StatusUnauthorized, "Authorization header is missing")
	}
	parts := strings.Split(authHeader, " ")
	if len(parts) != 2 || strings.ToLower(parts[0]) != "bearer" || parts[1] == "" {
		return "", echo.NewHTTPError(http.StatusUnauthorized, "Authorization header must be in Bearer format")
	}
	return parts[1], nil
}
