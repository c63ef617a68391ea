package auth

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/labstack/echo/v4"
)

func runWithRoles(roles []string, mw echo.MiddlewareFunc) error {
	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	if roles != nil {
		req = req.WithContext(context.WithValue(req.Context(), UserRolesKey, roles))
	}
	c := e.NewContext(req, httptest.NewRecorder())
	return mw(func(c echo.Context) error {
		return c.String(http.StatusOK, "ok")
	})(c)
}

func TestRequireRole_Allowed(t *testing.T) {
	err := runWithRoles([]string{RoleInvestigator}, RequireRole(RoleOdontologist, RoleInvestigator))
	if err != nil {
		t.Errorf("unexpected error: %v", err)
	}
}

func TestRequireRole_AdminBypass(t *testing.T) {
	if err := runWithRoles([]string{RoleAdmin}, RequireRole(RoleOdontologist)); err != nil {
		t.Errorf("admin should pass every role check, got %v", err)
	}
}

func TestRequireRole_Forbidden(t *testing.T) {
	for _, roles := range [][]string{nil, {}, {RoleInvestigator}} {
		err := runWithRoles(roles, RequireRole(RoleOdontologist))
		httpErr, ok := err.(*echo.HTTPError)
		if !ok || httpErr.Code != http.StatusForbidden {
			t.Errorf("roles %v: expected 403, got %v", roles, err)
		}
	}
}
