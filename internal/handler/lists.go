package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/url"
	"strconv"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/screening-license/internal/formstate"
	"github.com/iliyamo/screening-license/internal/model"
)

// TitleLookup resolves a catalog id.  *repository.CatalogRepo satisfies it.
type TitleLookup interface {
	Get(ctx context.Context, id string) (model.CatalogTitle, error)
}

// ListHandler edits the films, screenings, tickets and involved parties
// of a session's draft.
type ListHandler struct {
	Form   *FormHandler
	Titles TitleLookup
}

func NewListHandler(form *FormHandler, titles TitleLookup) *ListHandler {
	if form == nil || titles == nil {
		panic("nil dependency passed to NewListHandler")
	}
	return &ListHandler{Form: form, Titles: titles}
}

var errBadIndex = errors.New("invalid index")

func indexes(c echo.Context, names ...string) ([]int, error) {
	out := make([]int, len(names))
	for i, n := range names {
		v, err := strconv.Atoi(c.Param(n))
		if err != nil || v < 0 {
			return nil, errBadIndex
		}
		out[i] = v
	}
	return out, nil
}

// bindStrict decodes a JSON body and rejects unknown keys.
func bindStrict(c echo.Context, dst any) error {
	dec := json.NewDecoder(c.Request().Body)
	dec.DisallowUnknownFields()
	return dec.Decode(dst)
}

// edit runs fn against the session's store and answers with the state.
// Scoped item errors travel with list failures.
func (h *ListHandler) edit(c echo.Context, status int, fn func(st *formstate.Store) (echo.Map, error)) error {
	s, err := h.Form.session(c)
	if err != nil {
		return fail(c, err)
	}
	extra, err := fn(s.Form())
	if err != nil {
		return failWithItems(c, s, err)
	}
	body := echo.Map{"state": s.State()}
	for k, v := range extra {
		body[k] = v
	}
	return c.JSON(status, body)
}

// AddFilm handles POST /v1/form/films.
func (h *ListHandler) AddFilm(c echo.Context) error {
	return h.edit(c, http.StatusCreated, func(st *formstate.Store) (echo.Map, error) {
		idx, err := st.AddFilm()
		return echo.Map{"film": idx}, err
	})
}

// UpdateFilm handles PUT /v1/form/films/:film.
func (h *ListHandler) UpdateFilm(c echo.Context) error {
	ix, err := indexes(c, "film")
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": err.Error()})
	}
	var p formstate.FilmPatch
	if err := bindStrict(c, &p); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid request body"})
	}
	return h.edit(c, http.StatusOK, func(st *formstate.Store) (echo.Map, error) {
		return nil, st.UpdateFilm(ix[0], p)
	})
}

// RemoveFilm handles DELETE /v1/form/films/:film.
func (h *ListHandler) RemoveFilm(c echo.Context) error {
	ix, err := indexes(c, "film")
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": err.Error()})
	}
	return h.edit(c, http.StatusOK, func(st *formstate.Store) (echo.Map, error) {
		return nil, st.RemoveFilm(ix[0])
	})
}

// ApplyCatalog handles POST /v1/form/films/:film/catalog with {"id": ...}.
func (h *ListHandler) ApplyCatalog(c echo.Context) error {
	ix, err := indexes(c, "film")
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": err.Error()})
	}
	var body struct {
		ID string `json:"id"`
	}
	if err := bindStrict(c, &body); err != nil || body.ID == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "catalog id is required"})
	}
	title, err := h.Titles.Get(c.Request().Context(), body.ID)
	if err != nil {
		return fail(c, err)
	}
	return h.edit(c, http.StatusOK, func(st *formstate.Store) (echo.Map, error) {
		return nil, st.ApplyCatalog(ix[0], title)
	})
}

// AddScreening handles POST /v1/form/films/:film/screenings.
func (h *ListHandler) AddScreening(c echo.Context) error {
	ix, err := indexes(c, "film")
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": err.Error()})
	}
	return h.edit(c, http.StatusCreated, func(st *formstate.Store) (echo.Map, error) {
		guid, err := st.AddScreening(ix[0])
		return echo.Map{"screening_guid": guid}, err
	})
}

// UpdateScreening handles PUT /v1/form/films/:film/screenings/:screening.
func (h *ListHandler) UpdateScreening(c echo.Context) error {
	ix, err := indexes(c, "film", "screening")
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": err.Error()})
	}
	var p formstate.ScreeningPatch
	if err := bindStrict(c, &p); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid request body"})
	}
	return h.edit(c, http.StatusOK, func(st *formstate.Store) (echo.Map, error) {
		return nil, st.UpdateScreening(ix[0], ix[1], p)
	})
}

// RemoveScreening handles DELETE /v1/form/films/:film/screenings/:screening.
func (h *ListHandler) RemoveScreening(c echo.Context) error {
	ix, err := indexes(c, "film", "screening")
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": err.Error()})
	}
	return h.edit(c, http.StatusOK, func(st *formstate.Store) (echo.Map, error) {
		return nil, st.RemoveScreening(ix[0], ix[1])
	})
}

// AddTicket handles POST .../screenings/:screening/tickets.
func (h *ListHandler) AddTicket(c echo.Context) error {
	ix, err := indexes(c, "film", "screening")
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": err.Error()})
	}
	return h.edit(c, http.StatusCreated, func(st *formstate.Store) (echo.Map, error) {
		idx, err := st.AddTicket(ix[0], ix[1])
		return echo.Map{"ticket": idx}, err
	})
}

// SetTicket handles PUT .../tickets/:ticket.  A duplicate type answers 409
// with the scoped error under item_errors.
func (h *ListHandler) SetTicket(c echo.Context) error {
	ix, err := indexes(c, "film", "screening", "ticket")
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": err.Error()})
	}
	var p formstate.TicketPatch
	if err := bindStrict(c, &p); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid request body"})
	}
	return h.edit(c, http.StatusOK, func(st *formstate.Store) (echo.Map, error) {
		return nil, st.SetTicket(ix[0], ix[1], ix[2], p)
	})
}

// RemoveTicket handles DELETE .../tickets/:ticket.
func (h *ListHandler) RemoveTicket(c echo.Context) error {
	ix, err := indexes(c, "film", "screening", "ticket")
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": err.Error()})
	}
	return h.edit(c, http.StatusOK, func(st *formstate.Store) (echo.Map, error) {
		return nil, st.RemoveTicket(ix[0], ix[1], ix[2])
	})
}

// AddParty handles POST /v1/form/parties with {"name": ...}.
func (h *ListHandler) AddParty(c echo.Context) error {
	var body struct {
		Name string `json:"name"`
	}
	if err := bindStrict(c, &body); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid request body"})
	}
	return h.edit(c, http.StatusCreated, func(st *formstate.Store) (echo.Map, error) {
		return nil, st.AddParty(body.Name)
	})
}

// RemoveParty handles DELETE /v1/form/parties/:name.
func (h *ListHandler) RemoveParty(c echo.Context) error {
	name, err := url.PathUnescape(c.Param("name"))
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid party name"})
	}
	return h.edit(c, http.StatusOK, func(st *formstate.Store) (echo.Map, error) {
		return nil, st.RemoveParty(name)
	})
}
