package middleware

// identity.go holds helpers shared by the middleware and the handlers for
// reading the authenticated token from the Echo context.

import "github.com/labstack/echo/v4"

// Subject returns the token subject stored by TokenAuth, or "" when the
// request is not authenticated.
func Subject(c echo.Context) string {
	s, _ := c.Get(CtxSubject).(string)
	return s
}

// Kind returns the record kind of a box-office token.
func Kind(c echo.Context) string {
	s, _ := c.Get(CtxKind).(string)
	return s
}

// subjectOrAnon names the rate-limit caller: the session id, or
// "anon:<ip>" for unauthenticated requests.
func subjectOrAnon(c echo.Context) string {
	if s := Subject(c); s != "" {
		return s
	}
	ip := c.RealIP()
	if ip == "" {
		ip = "unknown"
	}
	return "anon:" + ip
}
