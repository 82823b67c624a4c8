package handler // handler contains the echo handlers of the wizard, box-office and catalog routes

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/screening-license/internal/boxoffice"
	"github.com/iliyamo/screening-license/internal/catalog"
	"github.com/iliyamo/screening-license/internal/formstate"
	"github.com/iliyamo/screening-license/internal/repository"
	"github.com/iliyamo/screening-license/internal/wizard"
)

// statusOf maps service errors to HTTP statuses.
func statusOf(err error) int {
	switch {
	case errors.Is(err, formstate.ErrBadPatch),
		errors.Is(err, wizard.ErrInvalidStep),
		errors.Is(err, wizard.ErrUnknownLocale),
		errors.Is(err, boxoffice.ErrInvalidSold),
		errors.Is(err, repository.ErrUnknownKind):
		return http.StatusBadRequest
	case errors.Is(err, repository.ErrNotFound),
		errors.Is(err, formstate.ErrNotFound),
		errors.Is(err, boxoffice.ErrScreeningNotFound),
		errors.Is(err, catalog.ErrImageNotFound):
		return http.StatusNotFound
	case errors.Is(err, wizard.ErrTransitioning),
		errors.Is(err, boxoffice.ErrAlreadyLocked),
		errors.Is(err, repository.ErrConflict),
		errors.Is(err, formstate.ErrDuplicateParty),
		errors.Is(err, formstate.ErrDuplicateTicketType),
		errors.Is(err, formstate.ErrMaxFilms),
		errors.Is(err, formstate.ErrMaxScreenings),
		errors.Is(err, formstate.ErrMaxTickets),
		errors.Is(err, formstate.ErrMaxParties),
		errors.Is(err, formstate.ErrLastFilm),
		errors.Is(err, formstate.ErrFirstScreening),
		errors.Is(err, catalog.ErrSuperseded):
		return http.StatusConflict
	case errors.Is(err, formstate.ErrEmptyParty),
		errors.Is(err, formstate.ErrPartyTooLong),
		errors.Is(err, formstate.ErrInvalidTicketType):
		return http.StatusUnprocessableEntity
	}
	return http.StatusInternalServerError
}

// fail writes err as {"error": ...}.  Internal errors get a generic text.
func fail(c echo.Context, err error) error {
	status := statusOf(err)
	msg := err.Error()
	if status == http.StatusInternalServerError {
		c.Logger().Errorf("request failed: %v", err)
		msg = "internal error"
	}
	return c.JSON(status, echo.Map{"error": msg})
}

// failWithItems is fail plus the session's scoped item errors, for edits
// that a duplicate or cap rejected.
func failWithItems(c echo.Context, s *wizard.Session, err error) error {
	status := statusOf(err)
	if status == http.StatusInternalServerError {
		return fail(c, err)
	}
	return c.JSON(status, echo.Map{"error": err.Error(), "item_errors": s.State().ItemErrors})
}
