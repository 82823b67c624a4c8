package router

import (
	"github.com/labstack/echo/v4"
)

// RegisterForm mounts the wizard routes on a session-authenticated group.
func RegisterForm(g *echo.Group, h Handlers, mw Middleware) {
	g.GET("/form", h.Form.Get)
	g.PATCH("/form", h.Form.Patch)
	g.POST("/form/next", h.Form.Next)
	g.POST("/form/prev", h.Form.Prev)
	g.POST("/form/step", h.Form.Step)
	g.POST("/form/reset", h.Form.Reset)
	g.GET("/form/validate/:step", h.Form.Validate)
	g.PUT("/locale", h.Form.SetLocale)
	g.POST("/activity", h.Form.Activity)

	g.POST("/form/films", h.Lists.AddFilm)
	g.PUT("/form/films/:film", h.Lists.UpdateFilm)
	g.DELETE("/form/films/:film", h.Lists.RemoveFilm)
	g.POST("/form/films/:film/catalog", h.Lists.ApplyCatalog)
	g.POST("/form/films/:film/screenings", h.Lists.AddScreening)
	g.PUT("/form/films/:film/screenings/:screening", h.Lists.UpdateScreening)
	g.DELETE("/form/films/:film/screenings/:screening", h.Lists.RemoveScreening)
	g.POST("/form/films/:film/screenings/:screening/tickets", h.Lists.AddTicket)
	g.PUT("/form/films/:film/screenings/:screening/tickets/:ticket", h.Lists.SetTicket)
	g.DELETE("/form/films/:film/screenings/:screening/tickets/:ticket", h.Lists.RemoveTicket)
	g.POST("/form/parties", h.Lists.AddParty)
	g.DELETE("/form/parties/:name", h.Lists.RemoveParty)

	g.GET("/catalog/search", h.Catalog.Search, mw.RateLimit)
}
