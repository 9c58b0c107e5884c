package handler

import (
	"net/http"

	"github.com/labstack/echo/v4"
)

// ctxClaims extracts the subject injected by the Auth middleware and fails
// fast when it is absent: a handler mounted without the middleware must not
// act on behalf of nobody.
func ctxClaims(c echo.Context) (subject string, err error) {
	role, _ := c.Get("role").(string)
	subject, _ = c.Get("subject").(string)
	if role == "" || subject == "" {
		return "", echo.NewHTTPError(http.StatusUnauthorized, "missing authentication claims")
	}
	return subject, nil
}
