package validation

import (
	"fmt"
	"strings"

	"github.com/iliyamo/screening-license/internal/model"
)

// Films validates step 4.  Paths follow films.<i>.screenings.<j>.tickets.<k>.
func Films(fs model.FilmScreenings, tr Translator, locale string) Result {
	c := newCollector(tr, locale)
	films := fs.ScreeningsList

	if len(films) > model.MaxFilms {
		c.addf("max_films_exceeded", "validation.maxFilmsExceeded", map[string]any{"max": model.MaxFilms})
	}
	noTitle := false
	if len(films) == 0 {
		c.add("films.0.title", "validation.atLeastOneFilm")
	} else if !anyTitled(films) {
		c.add("films.0.title", "validation.atLeastOneFilmWithTitle")
		noTitle = true
	}

	for i, f := range films {
		fp := fmt.Sprintf("films.%d", i)
		if strings.TrimSpace(f.Title) == "" && !(noTitle && i == 0) {
			c.add(fp+".title", "validation.filmTitleRequired")
		}
		if f.YearOfRelease == 0 {
			c.add(fp+".year", "validation.yearRequired")
		}
		if len(f.Screenings) > model.MaxScreenings {
			c.addf(fp+".max_screenings_exceeded", "validation.maxScreeningsExceeded", map[string]any{"max": model.MaxScreenings})
		}
		if len(f.Screenings) == 0 {
			c.add(fp+".screenings.0.date", "validation.atLeastOneScreeningRequired")
			continue
		}
		for j, s := range f.Screenings {
			screening(c, fmt.Sprintf("%s.screenings.%d", fp, j), s, fs.ChargingTickets)
		}
	}
	return c.result()
}

func screening(c *collector, sp string, s model.Screening, charging bool) {
	if s.ScreeningDate == "" {
		c.add(sp+".date", "validation.screeningDateRequired")
	}
	if s.Format == "" {
		c.add(sp+".format", "validation.formatRequired")
	}
	if !charging {
		return
	}
	switch {
	case len(s.TicketInfo) == 0:
		c.add(sp+".tickets.0.type", "validation.atLeastOneTicketType")
	case len(s.TicketInfo) > model.MaxTickets:
		c.addf(sp+".max_tickets_exceeded", "validation.maxTicketsExceeded", map[string]any{"max": model.MaxTickets})
	default:
		seen := map[string]bool{}
		for k, t := range s.TicketInfo {
			tp := fmt.Sprintf("%s.tickets.%d", sp, k)
			if t.TicketType != "" && !(t.IsOther() && strings.TrimSpace(t.CustomTicketType) == "") {
				id := t.IdentityKey()
				if seen[id] {
					c.addf(tp+".type", "validation.ticketTypeExists", map[string]any{"value": ticketLabel(c, t)})
				}
				seen[id] = true
			}
			if t.TicketType == "" {
				c.add(tp+".type", "validation.selectTicketType")
			}
			switch {
			case !(t.TicketPrice > 0):
				c.add(tp+".price", "validation.ticketPriceRequired")
			case t.TicketPrice > model.MaxTicketPrice:
				c.add(tp+".price", "validation.ticketPriceExceedsMax")
			}
			if t.IsOther() && strings.TrimSpace(t.CustomTicketType) == "" {
				c.add(tp+".custom_type", "validation.customTicketTypeRequired")
			}
		}
	}
}

func anyTitled(films []model.Film) bool {
	for _, f := range films {
		if strings.TrimSpace(f.Title) != "" {
			return true
		}
	}
	return false
}

// ticketLabel names a ticket type in messages: keyed types by their
// localized label, custom ones by their text.
func ticketLabel(c *collector, t model.TicketInfo) string {
	if t.IsOther() {
		return strings.TrimSpace(t.CustomTicketType)
	}
	if key := t.TicketKey(); key != "" {
		return c.tr.T(c.locale, "form.filmScreenings."+key)
	}
	return t.TicketType
}
