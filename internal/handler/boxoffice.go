package handler

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/screening-license/internal/boxoffice"
	"github.com/iliyamo/screening-license/internal/middleware"
	"github.com/iliyamo/screening-license/internal/model"
)

// BoxOfficeHandler serves the box-office return of the record named in
// the caller's box-office token.
type BoxOfficeHandler struct {
	Service *boxoffice.Service
}

func NewBoxOfficeHandler(svc *boxoffice.Service) *BoxOfficeHandler {
	if svc == nil {
		panic("nil service passed to NewBoxOfficeHandler")
	}
	return &BoxOfficeHandler{Service: svc}
}

// record checks that the :submission path segment is the token's record.
func record(c echo.Context) (model.RecordKind, string, bool) {
	id := c.Param("submission")
	if id == "" || id != middleware.Subject(c) {
		return "", "", false
	}
	return model.RecordKind(middleware.Kind(c)), id, true
}

// Options handles GET /v1/box-office/:submission.
func (h *BoxOfficeHandler) Options(c echo.Context) error {
	kind, id, ok := record(c)
	if !ok {
		return c.JSON(http.StatusForbidden, echo.Map{"error": "forbidden"})
	}
	opts, err := h.Service.Options(c.Request().Context(), kind, id)
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"items": opts})
}

// Screening handles GET /v1/box-office/:submission/:screening.  The
// optional ?sold=0:12,1:4 query previews the fee for those figures.
func (h *BoxOfficeHandler) Screening(c echo.Context) error {
	kind, id, ok := record(c)
	if !ok {
		return c.JSON(http.StatusForbidden, echo.Map{"error": "forbidden"})
	}
	var sold map[int]int64
	if raw := c.QueryParam("sold"); raw != "" {
		var err error
		if sold, err = boxoffice.ParseSold(raw); err != nil {
			return fail(c, err)
		}
	}
	view, err := h.Service.Screening(c.Request().Context(), kind, id, c.Param("screening"), sold)
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(http.StatusOK, view)
}

// Save handles POST /v1/box-office/:submission/:screening with
// {"tickets_sold": {"0": 12}}.  A screening is saved once; later saves
// answer 409.
func (h *BoxOfficeHandler) Save(c echo.Context) error {
	kind, id, ok := record(c)
	if !ok {
		return c.JSON(http.StatusForbidden, echo.Map{"error": "forbidden"})
	}
	var body struct {
		TicketsSold map[int]int64 `json:"tickets_sold"`
	}
	if err := bindStrict(c, &body); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid request body"})
	}
	view, err := h.Service.Save(c.Request().Context(), kind, id, c.Param("screening"), body.TicketsSold)
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(http.StatusOK, view)
}
