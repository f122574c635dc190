package middleware

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/anonto42/nano-midea/socialsync/internal/identity"
)

// JWTAuthMiddleware checks for a valid locally issued JWT and extracts the
// caller's handle.
func JWTAuthMiddleware(secret string) echo.MiddlewareFunc {
	key := []byte(secret)
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			tokenString, err := bearerToken(c)
			if err != nil {
				return err
			}
			claims, err := identity.ParseToken(key, tokenString)
			if err != nil {
				return echo.NewHTTPError(http.StatusUnauthorized, "Invalid token")
			}

			c.Set("user", claims)
			c.Set(UIDKey, claims.Handle)
			c.Set(HandleKey, claims.Handle)
			return next(c)
		}
	}
}
