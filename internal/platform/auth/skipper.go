package auth

import "github.com/labstack/echo/v4"

// publicPaths bypass the login gate.
var publicPaths = map[string]bool{
	"/health":    true,
	"/health/db": true,
}

func IsPublicPath(path string) bool {
	return publicPaths[path]
}

// AuthSkipper matches requests to public infrastructure endpoints.
func AuthSkipper(c echo.Context) bool {
	return IsPublicPath(c.Request().URL.Path)
}
