package middleware

import (
	"net/http"

	"notekeep/internal/utils"
	"notekeep/internal/utils/apierror"

	"github.com/labstack/echo/v4"
)

type AuthMiddlewareConfig struct {
	// Secret verifies the HMAC signature of session tokens minted by the
	// auth layer.
	Secret []byte
}

// NewAuthMiddleware rejects unauthenticated requests before the core is
// invoked and stores the parsed session in the request context.
func NewAuthMiddleware(cfg *AuthMiddlewareConfig) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			session, err := utils.ParseSessionTokenCtx(c, cfg.Secret)
			if err != nil {
				return c.JSON(http.StatusUnauthorized, apierror.UnauthorizedError)
			}

			c.Set("session", session)
			return next(c)
		}
	}
}
