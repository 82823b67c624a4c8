package router

import (
	"github.com/labstack/echo/v4"

	"github.com/iliyamo/screening-license/internal/handler"
)

// RegisterBoxOffice mounts the box-office routes on a group that already
// requires a box-office token.
func RegisterBoxOffice(g *echo.Group, h *handler.BoxOfficeHandler) {
	g.GET("/:submission", h.Options)
	g.GET("/:submission/:screening", h.Screening)
	g.POST("/:submission/:screening", h.Save)
}
