package handler

import (
	"net/http"
	"strings"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/screening-license/internal/utils"
	"github.com/iliyamo/screening-license/internal/wizard"
)

// SessionHandler opens wizard sessions.
type SessionHandler struct {
	Registry *wizard.Registry // Registry holds live sessions
	Secret   string           // Secret signs session tokens
	TTL      time.Duration    // TTL is the session token lifetime
}

// NewSessionHandler panics on a nil registry or an empty secret.
func NewSessionHandler(reg *wizard.Registry, secret string, ttl time.Duration) *SessionHandler {
	if reg == nil || secret == "" {
		panic("nil dependency passed to NewSessionHandler")
	}
	return &SessionHandler{Registry: reg, Secret: secret, TTL: ttl}
}

// Start handles POST /v1/sessions.  A request carrying a still valid
// session token resumes that session (a page reload); anything else starts
// a new one.  Either way the start-of-session expiry rules run.
func (h *SessionHandler) Start(c echo.Context) error {
	sid := ""
	if auth := c.Request().Header.Get("Authorization"); strings.HasPrefix(auth, "Bearer ") { // an existing token resumes its session
		if claims, err := utils.ParseToken(h.Secret, strings.TrimPrefix(auth, "Bearer ")); err == nil && claims.Scope == utils.ScopeSession {
			sid = claims.Subject
		}
	}
	if sid == "" {
		sid = wizard.NewSessionID()
	}

	s, res, err := h.Registry.Start(c.Request().Context(), sid, c.Request().Header.Get("Accept-Language"))
	if err != nil {
		return fail(c, err)
	}
	tok, err := utils.NewSessionToken(h.Secret, sid, h.TTL) // always hand out a fresh token
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(http.StatusCreated, echo.Map{
		"token":      tok.Token,
		"expires_at": tok.Exp,
		"expired":    res.Expired,
		"fresh_load": res.FreshLoad,
		"state":      s.State(),
	})
}
