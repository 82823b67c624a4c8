package handler

import (
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/screening-license/internal/formstate"
	"github.com/iliyamo/screening-license/internal/middleware"
	"github.com/iliyamo/screening-license/internal/wizard"
)

// FormHandler serves the draft and the step navigation of a session.
type FormHandler struct {
	Registry *wizard.Registry
}

func NewFormHandler(reg *wizard.Registry) *FormHandler {
	if reg == nil {
		panic("nil registry passed to NewFormHandler")
	}
	return &FormHandler{Registry: reg}
}

// session resolves the caller's session.  Every call counts as activity
// and runs the idle check first.
func (h *FormHandler) session(c echo.Context) (*wizard.Session, error) {
	return h.Registry.Get(c.Request().Context(), middleware.Subject(c))
}

// Get handles GET /v1/form.  It is also the review step's read model.
func (h *FormHandler) Get(c echo.Context) error {
	s, err := h.session(c)
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(http.StatusOK, s.State())
}

// Patch handles PATCH /v1/form.  Live field checks come back in
// field_errors; they never block the merge.
func (h *FormHandler) Patch(c echo.Context) error {
	p, err := formstate.DecodePatch(c.Request().Body)
	if err != nil {
		return fail(c, err)
	}
	s, err := h.session(c)
	if err != nil {
		return fail(c, err)
	}
	st, err := s.Patch(p)
	if err != nil {
		return failWithItems(c, s, err)
	}
	return c.JSON(http.StatusOK, st)
}

// Next handles POST /v1/form/next.  A body, when sent, is merged as a
// patch before the step is validated.  A blocked step answers 422 with
// the error map.
func (h *FormHandler) Next(c echo.Context) error {
	p, err := formstate.DecodePatch(c.Request().Body)
	if err != nil {
		return fail(c, err)
	}
	s, err := h.session(c)
	if err != nil {
		return fail(c, err)
	}
	out, err := s.Next(c.Request().Context(), &p)
	if err != nil {
		return failWithItems(c, s, err)
	}
	if !out.Advanced {
		return c.JSON(http.StatusUnprocessableEntity, echo.Map{
			"error":  "validation failed",
			"step":   out.Step,
			"errors": out.Validation.Errors,
			"first":  out.Validation.First,
		})
	}
	return c.JSON(http.StatusOK, echo.Map{"outcome": out, "state": s.State()})
}

// Prev handles POST /v1/form/prev.
func (h *FormHandler) Prev(c echo.Context) error {
	s, err := h.session(c)
	if err != nil {
		return fail(c, err)
	}
	if _, err := s.Prev(c.Request().Context()); err != nil {
		return fail(c, err)
	}
	return c.JSON(http.StatusOK, s.State())
}

// Step handles POST /v1/form/step with {"step": n}; only earlier steps
// are reachable.
func (h *FormHandler) Step(c echo.Context) error {
	var body struct {
		Step int `json:"step"`
	}
	if err := c.Bind(&body); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid request body"})
	}
	s, err := h.session(c)
	if err != nil {
		return fail(c, err)
	}
	if _, err := s.GoTo(c.Request().Context(), body.Step); err != nil {
		return fail(c, err)
	}
	return c.JSON(http.StatusOK, s.State())
}

// Reset handles POST /v1/form/reset.
func (h *FormHandler) Reset(c echo.Context) error {
	s, err := h.session(c)
	if err != nil {
		return fail(c, err)
	}
	if err := s.Reset(c.Request().Context()); err != nil {
		return fail(c, err)
	}
	return c.JSON(http.StatusOK, s.State())
}

// Validate handles GET /v1/form/validate/:step.
func (h *FormHandler) Validate(c echo.Context) error {
	step, err := strconv.Atoi(c.Param("step"))
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid step"})
	}
	s, err := h.session(c)
	if err != nil {
		return fail(c, err)
	}
	res, err := s.Validate(step)
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"valid": res.OK(), "errors": res.Errors, "first": res.First})
}

// SetLocale handles PUT /v1/locale with {"locale": "de"}.
func (h *FormHandler) SetLocale(c echo.Context) error {
	var body struct {
		Locale string `json:"locale"`
	}
	if err := c.Bind(&body); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid request body"})
	}
	s, err := h.session(c)
	if err != nil {
		return fail(c, err)
	}
	if err := s.SetLocale(c.Request().Context(), body.Locale); err != nil {
		return fail(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"locale": s.Locale()})
}

// Activity handles POST /v1/activity.  Resolving the session already
// records the activity.
func (h *FormHandler) Activity(c echo.Context) error {
	if _, err := h.session(c); err != nil {
		return fail(c, err)
	}
	return c.NoContent(http.StatusNoContent)
}
