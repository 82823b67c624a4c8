package handler

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/screening-license/internal/catalog"
	"github.com/iliyamo/screening-license/internal/middleware"
)

// CatalogHandler serves title search and poster images.
type CatalogHandler struct {
	Searcher *catalog.Searcher
	Images   *catalog.ImageFetcher
}

func NewCatalogHandler(s *catalog.Searcher, img *catalog.ImageFetcher) *CatalogHandler {
	if s == nil || img == nil {
		panic("nil dependency passed to NewCatalogHandler")
	}
	return &CatalogHandler{Searcher: s, Images: img}
}

// Search handles GET /v1/catalog/search?q=.  A search replaced by a newer
// one from the same session answers 409.
func (h *CatalogHandler) Search(c echo.Context) error {
	items, err := h.Searcher.SearchSession(c.Request().Context(), middleware.Subject(c), c.QueryParam("q"))
	if err != nil {
		if statusOf(err) == http.StatusInternalServerError {
			return c.JSON(http.StatusInternalServerError, echo.Map{"error": "Search failed"})
		}
		return fail(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"items": items})
}

// Image handles GET /v1/images/:id.
func (h *CatalogHandler) Image(c echo.Context) error {
	img, err := h.Images.Fetch(c.Request().Context(), c.Param("id"))
	if err != nil {
		return c.JSON(http.StatusNotFound, echo.Map{"error": "Image not found"})
	}
	c.Response().Header().Set("Cache-Control", catalog.ImageCacheControl)
	return c.Blob(http.StatusOK, img.ContentType, img.Body)
}
