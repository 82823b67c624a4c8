package router // package router defines how HTTP routes are registered for the API

import (
	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/iliyamo/screening-license/internal/handler"
	"github.com/iliyamo/screening-license/internal/middleware"
	"github.com/iliyamo/screening-license/internal/utils"
)

// Handlers bundles everything RegisterRoutes mounts.
type Handlers struct {
	Session   *handler.SessionHandler
	Form      *handler.FormHandler
	Lists     *handler.ListHandler
	BoxOffice *handler.BoxOfficeHandler
	Catalog   *handler.CatalogHandler
	Health    echo.HandlerFunc
}

// Middleware are the Redis backed wrappers for the catalog and image
// routes.  Either may be a pass-through when Redis is unavailable.
type Middleware struct {
	RateLimit echo.MiddlewareFunc
	Cache     echo.MiddlewareFunc
}

// RegisterRoutes mounts every route.  Health and metrics are public, as
// are session start and poster images; wizard routes need a session token
// and box-office routes a box-office token.
func RegisterRoutes(e *echo.Echo, h Handlers, mw Middleware, secret string) {
	e.GET("/healthz", h.Health)
	e.GET("/metrics", echo.WrapHandler(promhttp.Handler()))

	v1 := e.Group("/v1")
	v1.POST("/sessions", h.Session.Start)
	v1.GET("/images/:id", h.Catalog.Image, mw.RateLimit, mw.Cache)

	auth := middleware.TokenAuth(secret)
	RegisterForm(v1.Group("", auth, middleware.RequireScope(utils.ScopeSession)), h, mw)
	RegisterBoxOffice(v1.Group("/box-office", auth, middleware.RequireScope(utils.ScopeBoxOffice)), h.BoxOffice)
}
