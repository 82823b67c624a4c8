package formstate

import (
	"errors"
	"fmt"
	"slices"
	"strings"
	"unicode/utf8"

	"github.com/iliyamo/screening-license/internal/model"
)

var (
	ErrMaxFilms            = errors.New("film limit reached")
	ErrMaxScreenings       = errors.New("screening limit reached")
	ErrMaxTickets          = errors.New("ticket limit reached")
	ErrMaxParties          = errors.New("party limit reached")
	ErrDuplicateParty      = errors.New("party already listed")
	ErrDuplicateTicketType = errors.New("ticket type already used in this screening")
	ErrEmptyParty          = errors.New("party name is empty")
	ErrPartyTooLong        = errors.New("party name too long")
	ErrInvalidTicketType   = errors.New("unknown ticket type")
	ErrLastFilm            = errors.New("at least one film is required")
	ErrFirstScreening      = errors.New("the first screening cannot be removed")
	ErrNotFound            = errors.New("item not found")
)

const partiesPath = "parties"

// FilmPath, ScreeningPath and TicketPath name list items in ItemErrors.
func FilmPath(f int) string         { return fmt.Sprintf("films.%d", f) }
func ScreeningPath(f, s int) string { return fmt.Sprintf("films.%d.screenings.%d", f, s) }
func TicketPath(f, s, t int) string {
	return fmt.Sprintf("films.%d.screenings.%d.tickets.%d", f, s, t)
}

// PartiesPath is the ItemErrors path of the involved parties list.
func PartiesPath() string { return partiesPath }

type FilmPatch struct {
	Title         *string   `json:"title,omitempty"`
	YearOfRelease *int      `json:"year_of_release,omitempty"`
	Studios       *[]string `json:"studios,omitempty"`
}

type ScreeningPatch struct {
	ScreeningDate      *string `json:"screening_date,omitempty"`
	NumberOfScreenings *int    `json:"number_of_screenings,omitempty"`
	Format             *string `json:"format,omitempty"`
}

type TicketPatch struct {
	TicketType       *string  `json:"ticket_type,omitempty"`
	TicketPrice      *float64 `json:"ticket_price,omitempty"`
	CustomTicketType *string  `json:"custom_ticket_type,omitempty"`
}

// AddFilm appends an untitled film and returns its index.
func (s *Store) AddFilm() (int, error) {
	idx := -1
	err := s.mutate(func(d *model.FormDraft) error {
		list := d.FilmScreenings.ScreeningsList
		if len(list) >= model.MaxFilms {
			return ErrMaxFilms
		}
		d.FilmScreenings.ScreeningsList = append(list, NewFilm(s.newID, d.FilmScreenings.ChargingTickets))
		idx = len(d.FilmScreenings.ScreeningsList) - 1
		return nil
	})
	return idx, err
}

// RemoveFilm deletes film f.  The last film cannot be removed.
func (s *Store) RemoveFilm(f int) error {
	return s.mutate(func(d *model.FormDraft) error {
		list := d.FilmScreenings.ScreeningsList
		if f < 0 || f >= len(list) {
			return ErrNotFound
		}
		if len(list) == 1 {
			return ErrLastFilm
		}
		d.FilmScreenings.ScreeningsList = slices.Delete(list, f, f+1)
		s.clearItemErrs("films.")
		return nil
	})
}

// UpdateFilm edits the descriptive fields of film f.
func (s *Store) UpdateFilm(f int, p FilmPatch) error {
	return s.mutate(func(d *model.FormDraft) error {
		film, err := filmAt(d, f)
		if err != nil {
			return err
		}
		set(&film.Title, p.Title)
		set(&film.YearOfRelease, p.YearOfRelease)
		if p.Studios != nil {
			film.Studios = append([]string{}, (*p.Studios)...)
		}
		return nil
	})
}

// ApplyCatalog copies a catalog pick into film f.  Downloadable titles
// switch every screening of the film to the download format.
func (s *Store) ApplyCatalog(f int, t model.CatalogTitle) error {
	return s.mutate(func(d *model.FormDraft) error {
		film, err := filmAt(d, f)
		if err != nil {
			return err
		}
		film.Title = t.Title
		film.YearOfRelease = t.Year
		film.IvaID = t.IvaID
		film.PosterPath = t.PosterPath
		film.MediaType = t.MediaType
		if t.MediaType == model.MediaDigitalDownload {
			for i := range film.Screenings {
				film.Screenings[i].Format = model.FormatFBMDownload
			}
		}
		return nil
	})
}

// AddScreening appends a screening to film f and returns its guid.
func (s *Store) AddScreening(f int) (string, error) {
	var guid string
	err := s.mutate(func(d *model.FormDraft) error {
		film, err := filmAt(d, f)
		if err != nil {
			return err
		}
		if len(film.Screenings) >= model.MaxScreenings {
			return ErrMaxScreenings
		}
		sc := NewScreening(s.newID, d.FilmScreenings.ChargingTickets, film.MediaType)
		film.Screenings = append(film.Screenings, sc)
		guid = sc.ScreeningGUID
		return nil
	})
	return guid, err
}

// RemoveScreening deletes screening sc of film f.  The first screening
// of a film is kept.
func (s *Store) RemoveScreening(f, sc int) error {
	return s.mutate(func(d *model.FormDraft) error {
		film, err := filmAt(d, f)
		if err != nil {
			return err
		}
		if sc < 0 || sc >= len(film.Screenings) {
			return ErrNotFound
		}
		if sc == 0 {
			return ErrFirstScreening
		}
		film.Screenings = slices.Delete(film.Screenings, sc, sc+1)
		s.clearItemErrs(FilmPath(f) + ".screenings.")
		return nil
	})
}

// UpdateScreening edits screening sc of film f.  The guid never changes.
func (s *Store) UpdateScreening(f, sc int, p ScreeningPatch) error {
	return s.mutate(func(d *model.FormDraft) error {
		scr, err := screeningAt(d, f, sc)
		if err != nil {
			return err
		}
		set(&scr.ScreeningDate, p.ScreeningDate)
		set(&scr.NumberOfScreenings, p.NumberOfScreenings)
		set(&scr.Format, p.Format)
		return nil
	})
}

// AddTicket appends an empty ticket to a screening and returns its index.
func (s *Store) AddTicket(f, sc int) (int, error) {
	idx := -1
	err := s.mutate(func(d *model.FormDraft) error {
		scr, err := screeningAt(d, f, sc)
		if err != nil {
			return err
		}
		if len(scr.TicketInfo) >= model.MaxTickets {
			return ErrMaxTickets
		}
		scr.TicketInfo = append(scr.TicketInfo, model.TicketInfo{})
		idx = len(scr.TicketInfo) - 1
		return nil
	})
	return idx, err
}

// SetTicket edits ticket t.  A type already used by another ticket of the
// same screening is rejected and recorded as an item error on the ticket.
// Choosing a type other than "other" drops the custom label.
func (s *Store) SetTicket(f, sc, t int, p TicketPatch) error {
	return s.mutate(func(d *model.FormDraft) error {
		scr, err := screeningAt(d, f, sc)
		if err != nil {
			return err
		}
		if t < 0 || t >= len(scr.TicketInfo) {
			return ErrNotFound
		}
		path := TicketPath(f, sc, t)
		delete(s.itemErrs, path)

		next := scr.TicketInfo[t]
		if p.TicketType != nil {
			if !validTicketType(*p.TicketType) {
				return ErrInvalidTicketType
			}
			next.TicketType = *p.TicketType
		}
		set(&next.TicketPrice, p.TicketPrice)
		set(&next.CustomTicketType, p.CustomTicketType)
		if !next.IsOther() {
			next.CustomTicketType = ""
		}

		if duplicateTicket(scr.TicketInfo, t, next) {
			s.setTicketDupErr(path, next)
			return ErrDuplicateTicketType
		}
		scr.TicketInfo[t] = next
		return nil
	})
}

// RemoveTicket deletes ticket t of a screening.
func (s *Store) RemoveTicket(f, sc, t int) error {
	return s.mutate(func(d *model.FormDraft) error {
		scr, err := screeningAt(d, f, sc)
		if err != nil {
			return err
		}
		if t < 0 || t >= len(scr.TicketInfo) {
			return ErrNotFound
		}
		scr.TicketInfo = slices.Delete(scr.TicketInfo, t, t+1)
		s.clearItemErrs(ScreeningPath(f, sc) + ".tickets.")
		return nil
	})
}

// AddParty appends a trimmed party name.  Names compare case-insensitively.
func (s *Store) AddParty(name string) error {
	name = strings.TrimSpace(name)
	return s.mutate(func(d *model.FormDraft) error {
		delete(s.itemErrs, partiesPath)
		if name == "" {
			return ErrEmptyParty
		}
		if utf8.RuneCountInString(name) > model.MaxTextLength {
			return ErrPartyTooLong
		}
		parties := d.EventSummary.InvolvedParties
		for _, p := range parties {
			if strings.EqualFold(p, name) {
				s.setItemErr(partiesPath, "validation.partyExists", map[string]any{"party": name})
				return ErrDuplicateParty
			}
		}
		if len(parties) >= model.MaxParties {
			return ErrMaxParties
		}
		d.EventSummary.InvolvedParties = append(parties, name)
		return nil
	})
}

// RemoveParty deletes the party matching name case-insensitively.
func (s *Store) RemoveParty(name string) error {
	name = strings.TrimSpace(name)
	return s.mutate(func(d *model.FormDraft) error {
		i := slices.IndexFunc(d.EventSummary.InvolvedParties, func(p string) bool {
			return strings.EqualFold(p, name)
		})
		if i < 0 {
			return ErrNotFound
		}
		d.EventSummary.InvolvedParties = slices.Delete(d.EventSummary.InvolvedParties, i, i+1)
		delete(s.itemErrs, partiesPath)
		return nil
	})
}

// checkParties trims a replacement party list and applies the AddParty
// rules to it.  Expects s.mu held.
func (s *Store) checkParties(in []string) ([]string, error) {
	if len(in) > model.MaxParties {
		return nil, ErrMaxParties
	}
	out := make([]string, 0, len(in))
	for _, name := range in {
		name = strings.TrimSpace(name)
		switch {
		case name == "":
			return nil, ErrEmptyParty
		case utf8.RuneCountInString(name) > model.MaxTextLength:
			return nil, ErrPartyTooLong
		}
		if slices.ContainsFunc(out, func(p string) bool { return strings.EqualFold(p, name) }) {
			s.setItemErr(partiesPath, "validation.partyExists", map[string]any{"party": name})
			return nil, ErrDuplicateParty
		}
		out = append(out, name)
	}
	return out, nil
}

// checkFilms applies the list caps, ticket type rules and per-screening
// duplicate check to a replacement film list.  Expects s.mu held.
func (s *Store) checkFilms(films []model.Film) error {
	if len(films) > model.MaxFilms {
		return ErrMaxFilms
	}
	for f, film := range films {
		if len(film.Screenings) > model.MaxScreenings {
			return ErrMaxScreenings
		}
		for sc, scr := range film.Screenings {
			if len(scr.TicketInfo) > model.MaxTickets {
				return ErrMaxTickets
			}
			for t, ticket := range scr.TicketInfo {
				if !validTicketType(ticket.TicketType) {
					return ErrInvalidTicketType
				}
				if duplicateTicket(scr.TicketInfo[:t], -1, ticket) {
					s.setTicketDupErr(TicketPath(f, sc, t), ticket)
					return ErrDuplicateTicketType
				}
			}
		}
	}
	return nil
}

func (s *Store) setTicketDupErr(path string, t model.TicketInfo) {
	if t.IsOther() {
		s.setItemErr(path, "validation.customTicketTypeExists", map[string]any{"customType": strings.TrimSpace(t.CustomTicketType)})
		return
	}
	s.setItemErr(path, "validation.ticketTypeExists", map[string]any{"value": t.TicketType})
}

func filmAt(d *model.FormDraft, f int) (*model.Film, error) {
	if f < 0 || f >= len(d.FilmScreenings.ScreeningsList) {
		return nil, ErrNotFound
	}
	return &d.FilmScreenings.ScreeningsList[f], nil
}

func screeningAt(d *model.FormDraft, f, sc int) (*model.Screening, error) {
	film, err := filmAt(d, f)
	if err != nil {
		return nil, err
	}
	if sc < 0 || sc >= len(film.Screenings) {
		return nil, ErrNotFound
	}
	return &film.Screenings[sc], nil
}

func validTicketType(v string) bool {
	if v == "" {
		return true
	}
	key, ok := strings.CutPrefix(v, model.TicketKeyPrefix)
	return ok && slices.Contains(model.TicketTypes, key)
}

// duplicateTicket reports whether next collides with another ticket of the
// screening.  Unset types and blank custom labels never collide.
func duplicateTicket(tickets []model.TicketInfo, skip int, next model.TicketInfo) bool {
	if next.TicketType == "" || (next.IsOther() && strings.TrimSpace(next.CustomTicketType) == "") {
		return false
	}
	id := next.IdentityKey()
	for i, t := range tickets {
		if i != skip && t.TicketType != "" && t.IdentityKey() == id {
			return true
		}
	}
	return false
}
