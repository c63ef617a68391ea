package middleware

import (
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"

	"github.com/odonto/odonto/internal/platform/auth"
)

// Audit records who touched identification data. Only /api/v1 requests
// are logged; health checks and static routes are skipped.
func Audit(logger zerolog.Logger) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			path := c.Request().URL.Path
			if !strings.HasPrefix(path, "/api/v1/") {
				return next(c)
			}

			err := next(c)

			rid, _ := c.Get("request_id").(string)
			status := c.Response().Status
			if err != nil {
				status = http.StatusInternalServerError
				if he, ok := err.(*echo.HTTPError); ok {
					status = he.Code
				}
			}
			logger.Info().
				Str("audit", "access").
				Str("request_id", rid).
				Str("user_id", auth.UserIDFromContext(c.Request().Context())).
				Strs("roles", auth.RolesFromContext(c.Request().Context())).
				Str("action", auditAction(c.Request().Method, path)).
				Str("path", path).
				Int("status", status).
				Bool("failed", err != nil).
				Msg("audit")
			return err
		}
	}
}

func auditAction(method, path string) string {
	if strings.HasSuffix(path, "/match") || strings.HasSuffix(path, "/matches") {
		return "match"
	}
	switch method {
	case "POST":
		return "create"
	case "PUT", "PATCH":
		return "update"
	case "DELETE":
		return "delete"
	}
	return "read"
}
