package middleware // declare the middleware package; contains reusable HTTP middleware functions

import (
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/screening-license/internal/utils"
)

// Context keys set by TokenAuth.
const (
	CtxSubject = "token_subject"
	CtxScope   = "token_scope"
	CtxKind    = "token_kind"
)

// TokenAuth validates a Bearer token and stores its subject, scope and
// record kind in the request context.  Wizard handlers read the session id
// from the subject; box-office handlers read the record id.
func TokenAuth(secret string) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			auth := c.Request().Header.Get("Authorization")
			if !strings.HasPrefix(auth, "Bearer ") {
				return c.JSON(http.StatusUnauthorized, echo.Map{"error": "missing bearer token"})
			}
			claims, err := utils.ParseToken(secret, strings.TrimPrefix(auth, "Bearer "))
			if err != nil {
				return c.JSON(http.StatusUnauthorized, echo.Map{"error": "invalid token"})
			}
			c.Set(CtxSubject, claims.Subject)
			c.Set(CtxScope, claims.Scope)
			c.Set(CtxKind, claims.Kind)
			return next(c)
		}
	}
}
