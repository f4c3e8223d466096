package middleware

import (
	"context"
	"net/http"
	"shop-service/internal/access"
	"shop-service/pkg/logger"
	"shop-service/prometheus"
	"strings"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"
)

const principalKey = "principal"

// Authenticator resolves a bearer token to a principal
type Authenticator interface {
	Authenticate(ctx context.Context, token string) (*access.Principal, error)
}

// PrincipalMiddleware authenticates the bearer token when one is present.
// Requests without an Authorization header continue as anonymous; a header
// that does not hold a valid access token is rejected.
func PrincipalMiddleware(auth Authenticator) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			log := logger.FromContext(c)

			authHeader := c.Request().Header.Get("Authorization")
			if authHeader == "" {
				return next(c)
			}

			parts := strings.Split(authHeader, " ")
			if len(parts) != 2 || strings.ToLower(parts[0]) != "bearer" {
				log.Warn("Invalid Authorization header format")
				return c.JSON(http.StatusUnauthorized, echo.Map{"error": "invalid authorization format, expected Bearer token"})
			}

			principal, err := auth.Authenticate(c.Request().Context(), parts[1])
			if err != nil {
				log.Warn("Invalid JWT token", zap.Error(err))
				return c.JSON(http.StatusUnauthorized, echo.Map{"error": "invalid or expired token"})
			}

			c.Set(principalKey, principal)
			log.Debug("Request authenticated",
				zap.Uint("user_id", principal.UserID),
				zap.Bool("is_superuser", principal.IsSuperuser))

			return next(c)
		}
	}
}

// GetPrincipal returns the authenticated caller, or nil for anonymous requests
func GetPrincipal(c echo.Context) *access.Principal {
	p, _ := c.Get(principalKey).(*access.Principal)
	return p
}

// SuperuserOrReadOnly lets anyone read and only superusers write
func SuperuserOrReadOnly(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		method := c.Request().Method
		principal := GetPrincipal(c)

		if access.Allow(principal, access.IsMutating(method)) {
			return next(c)
		}

		log := logger.FromContext(c)
		if principal == nil {
			log.Warn("Anonymous write rejected", zap.String("method", method))
			prometheus.RecordAccessDenied(method, "unauthenticated")
			return c.JSON(http.StatusUnauthorized, echo.Map{"error": "authentication credentials were not provided"})
		}

		log.Warn("Write by non-superuser rejected",
			zap.String("method", method),
			zap.Uint("user_id", principal.UserID))
		prometheus.RecordAccessDenied(method, "forbidden")
		return c.JSON(http.StatusForbidden, echo.Map{"error": "you do not have permission to perform this action"})
	}
}
