package formstate

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"

	"github.com/iliyamo/screening-license/internal/model"
)

// IDFunc returns a new unique screening identifier.
type IDFunc func() string

// NewGUID is the production IDFunc.
func NewGUID() string { return uuid.NewString() }

// NewDraft returns the default draft with a fresh start time.
func NewDraft(now time.Time, newID IDFunc) model.FormDraft {
	return model.FormDraft{
		StartTime: now,
		Promotion: model.Promotion{
			PromotionMethods: []string{},
		},
		EventSummary: model.EventSummary{
			InvolvedParties: []string{},
		},
		InteractiveElements: model.InteractiveElements{
			FullLengthFilm: true,
		},
		FilmScreenings: model.FilmScreenings{
			ChargingTickets: true,
			ScreeningsList:  []model.Film{NewFilm(newID, true)},
		},
	}
}

// NewFilm returns an untitled film with one screening.
func NewFilm(newID IDFunc, charging bool) model.Film {
	return model.Film{
		Studios:    []string{},
		Screenings: []model.Screening{NewScreening(newID, charging, "")},
	}
}

// NewScreening returns a screening with a fresh guid.  It carries one empty
// ticket when tickets are charged, and downloadable titles default to the
// download format.
func NewScreening(newID IDFunc, charging bool, mediaType string) model.Screening {
	s := model.Screening{
		ScreeningGUID:      newID(),
		NumberOfScreenings: 1,
		TicketInfo:         []model.TicketInfo{},
	}
	if charging {
		s.TicketInfo = append(s.TicketInfo, model.TicketInfo{})
	}
	if mediaType == model.MediaDigitalDownload {
		s.Format = model.FormatFBMDownload
	}
	return s
}

// Hydrate rebuilds a draft from stored JSON by decoding it over the
// defaults.  Sections missing from older stored shapes keep their default
// values; undecodable data yields the defaults.
func Hydrate(stored []byte, now time.Time, newID IDFunc) model.FormDraft {
	d := NewDraft(now, newID)
	if len(stored) == 0 {
		return d
	}
	// Decoding into a populated slice would merge stored films into the
	// default film's fields.
	d.FilmScreenings.ScreeningsList = nil
	if err := json.Unmarshal(stored, &d); err != nil {
		return NewDraft(now, newID)
	}
	if d.StartTime.IsZero() {
		d.StartTime = now
	}
	if d.FilmScreenings.ScreeningsList == nil {
		d.FilmScreenings.ScreeningsList = []model.Film{NewFilm(newID, d.FilmScreenings.ChargingTickets)}
	}
	normalizeSlices(&d)
	repairGUIDs(d.FilmScreenings.ScreeningsList, newID)
	return d
}

// repairGUIDs assigns fresh identifiers to screenings whose guid is empty
// or already used by an earlier screening.
func repairGUIDs(films []model.Film, newID IDFunc) {
	seen := map[string]bool{}
	for fi := range films {
		for si := range films[fi].Screenings {
			s := &films[fi].Screenings[si]
			for s.ScreeningGUID == "" || seen[s.ScreeningGUID] {
				s.ScreeningGUID = newID()
			}
			seen[s.ScreeningGUID] = true
		}
	}
}

// normalizeSlices replaces nil slices with empty ones so the draft always
// serializes lists as [] rather than null.
func normalizeSlices(d *model.FormDraft) {
	if d.Promotion.PromotionMethods == nil {
		d.Promotion.PromotionMethods = []string{}
	}
	if d.EventSummary.InvolvedParties == nil {
		d.EventSummary.InvolvedParties = []string{}
	}
	for fi := range d.FilmScreenings.ScreeningsList {
		f := &d.FilmScreenings.ScreeningsList[fi]
		if f.Studios == nil {
			f.Studios = []string{}
		}
		if f.Screenings == nil {
			f.Screenings = []model.Screening{}
		}
		for si := range f.Screenings {
			if f.Screenings[si].TicketInfo == nil {
				f.Screenings[si].TicketInfo = []model.TicketInfo{}
			}
		}
	}
}

// Clone returns a deep copy of d.
func Clone(d model.FormDraft) model.FormDraft {
	out := d
	if d.EndTime != nil {
		t := *d.EndTime
		out.EndTime = &t
	}
	if d.ScreeningDetails.HasWebsite != nil {
		v := *d.ScreeningDetails.HasWebsite
		out.ScreeningDetails.HasWebsite = &v
	}
	out.Promotion.PromotionMethods = append([]string{}, d.Promotion.PromotionMethods...)
	out.EventSummary.InvolvedParties = append([]string{}, d.EventSummary.InvolvedParties...)
	out.FilmScreenings.ScreeningsList = CloneFilms(d.FilmScreenings.ScreeningsList)
	return out
}

// CloneFilms deep-copies a film list.
func CloneFilms(films []model.Film) []model.Film {
	if films == nil {
		return nil
	}
	out := make([]model.Film, len(films))
	for i, f := range films {
		out[i] = f
		out[i].Studios = append([]string{}, f.Studios...)
		out[i].Screenings = make([]model.Screening, len(f.Screenings))
		for j, s := range f.Screenings {
			out[i].Screenings[j] = s
			out[i].Screenings[j].TicketInfo = append([]model.TicketInfo{}, s.TicketInfo...)
		}
	}
	return out
}
