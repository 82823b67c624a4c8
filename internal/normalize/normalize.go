// Package normalize turns a validated draft into the locale-independent
// record payload.  Every value is clamped or truncated to its bound and any
// label the form may have shown translated is mapped back to its canonical
// English token.
package normalize

import (
	"math"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/iliyamo/screening-license/internal/model"
)

// Catalog is the message lookup used to undo localization.
type Catalog interface {
	T(locale, key string) string
	KeyOf(prefix, value string) (string, bool)
}

const (
	baseLocale    = "en"
	countryPrefix = "form.contactInfo.countries."
	venuePrefix   = "form.screeningDetails."
	promoPrefix   = "form.capacityAndEvent."
	ticketPrefix  = "form.filmScreenings."

	minYear      = 1800
	maxScreenM   = 1000
	maxRepeats   = 100
	isoMillis    = "2006-01-02T15:04:05.000Z07:00"
	maxYearAhead = 10
)

var formatTokens = map[string]string{
	"formatOwnCopy":     model.FormatOwnCopy,
	"rentACopy":         model.FormatRentCopy,
	"formatFBMDownload": model.FormatFBMDownload,
	"vsr":               model.FormatVSR,
}

var screeningTypeTokens = map[string]string{
	"indoors":  model.ScreeningIndoors,
	"outdoors": model.ScreeningOutdoors,
	"driveIn":  model.ScreeningDriveIn,
}

var promotionTokens = map[string]string{
	"promotionSocialMedia": model.PromotionSocialMedia,
	"promotionNewsletter":  model.PromotionNewsletter,
	"promotionWebsite":     model.PromotionWebsite,
	"promotionPrint":       model.PromotionPrint,
	"promotionRadio":       model.PromotionRadio,
	"promotionTV":          model.PromotionTV,
}

// Submission builds the record payload for d as of now.
func Submission(d model.FormDraft, now time.Time, cat Catalog) model.Submission {
	start := d.StartTime
	if start.IsZero() || start.After(now) {
		start = now
	}
	ci := d.ContactInfo
	sd := d.ScreeningDetails

	sub := model.Submission{
		Timestamp: now.Unix(),
		FormTiming: model.FormTiming{
			StartTime:       start.UTC().Format(isoMillis),
			EndTime:         now.UTC().Format(isoMillis),
			DurationSeconds: int64(now.Sub(start) / time.Second),
		},
		ContactInfo: model.ContactInfo{
			FirstName:   Truncate(ci.FirstName, model.MaxTextLength),
			LastName:    Truncate(ci.LastName, model.MaxTextLength),
			CompanyName: Truncate(ci.CompanyName, model.MaxTextLength),
			Address:     address(ci.Address, cat),
			Email:       Truncate(strings.TrimSpace(ci.Email), model.MaxTextLength),
			Phone:       Phone(ci.Phone),
		},
		FinanceInfo: model.FinanceInfo{
			STSLAccountNumber: Truncate(d.FinanceDetails.STSLAccountNumber, model.MaxTextLength),
		},
		ScreeningDetails: model.SubmittedVenue{
			ScreeningType:     token(cat, venuePrefix, screeningTypeTokens, sd.ScreeningType),
			ScreeningAddress:  address(sd.ScreeningAddress, cat),
			HasWebsite:        sd.HasWebsite,
			EventWebsite:      Truncate(strings.TrimSpace(sd.EventWebsite), model.MaxTextLength),
			Format:            token(cat, venuePrefix, formatTokens, sd.Format),
			DCP35mmCapability: sd.DCP35mmCapability,
			TheatricalRelease: sd.TheatricalRelease,
			ScreenSize: model.ScreenSize{
				WidthM:  clampFloat(sd.ScreenSize.WidthM, 0, maxScreenM),
				HeightM: clampFloat(sd.ScreenSize.HeightM, 0, maxScreenM),
			},
		},
		Capacity: model.SubmittedCapacity{MaxLegalCapacity: Capacity(d.Capacity.MaxLegalCapacity)},
		Promotion: model.Promotion{
			IsPromoted:               d.Promotion.IsPromoted,
			PromotionMethods:         promotionMethods(d.Promotion.PromotionMethods, cat),
			CommunicationResponsible: Truncate(d.Promotion.CommunicationResponsible, model.MaxResponsibleLength),
			ThirdPartyAdvertising:    d.Promotion.ThirdPartyAdvertising,
		},
		EventSummary: model.EventSummary{
			Summary:                Truncate(d.EventSummary.Summary, model.MaxSummaryLength),
			HasBrandActivities:     d.EventSummary.HasBrandActivities,
			RelatedBrandActivities: Truncate(d.EventSummary.RelatedBrandActivities, model.MaxSummaryLength),
			InvolvedParties:        truncateAll(d.EventSummary.InvolvedParties, model.MaxTextLength),
		},
		InteractiveElements:    d.InteractiveElements,
		FilmScreenings:         Films(d.FilmScreenings, now, cat),
		NewsletterSubscription: d.NewsletterSubscription,
	}
	return sub
}

// Films normalizes the film list.  The box-office flow reuses it when it
// writes the list back.
func Films(fs model.FilmScreenings, now time.Time, cat Catalog) model.FilmScreenings {
	out := model.FilmScreenings{
		ChargingTickets: fs.ChargingTickets,
		ScreeningsList:  make([]model.Film, 0, len(fs.ScreeningsList)),
	}
	maxYear := now.Year() + maxYearAhead
	for _, f := range fs.ScreeningsList {
		nf := model.Film{
			Title:         Truncate(f.Title, model.MaxTextLength),
			YearOfRelease: clampInt(f.YearOfRelease, minYear, maxYear),
			Studios:       truncateAll(f.Studios, model.MaxTextLength),
			IvaID:         Truncate(f.IvaID, model.MaxTextLength),
			PosterPath:    Truncate(f.PosterPath, model.MaxTextLength),
			MediaType:     f.MediaType,
			Screenings:    make([]model.Screening, 0, len(f.Screenings)),
		}
		for _, s := range f.Screenings {
			ns := model.Screening{
				ScreeningDate:      Truncate(s.ScreeningDate, model.MaxTextLength),
				ScreeningGUID:      s.ScreeningGUID,
				NumberOfScreenings: clampInt(s.NumberOfScreenings, 1, maxRepeats),
				Approved:           s.Approved,
				BoxOfficeReturn:    s.BoxOfficeReturn,
				Format:             token(cat, venuePrefix, formatTokens, s.Format),
				TicketInfo:         make([]model.TicketInfo, 0, len(s.TicketInfo)),
			}
			for _, t := range s.TicketInfo {
				ns.TicketInfo = append(ns.TicketInfo, ticket(t, cat))
			}
			nf.Screenings = append(nf.Screenings, ns)
		}
		out.ScreeningsList = append(out.ScreeningsList, nf)
	}
	return out
}

func ticket(t model.TicketInfo, cat Catalog) model.TicketInfo {
	nt := model.TicketInfo{
		TicketPrice: clampFloat(t.TicketPrice, 0, model.MaxTicketPrice),
		TicketsSold: clampInt64(t.TicketsSold, 0, model.MaxCapacity),
	}
	switch key := t.TicketKey(); {
	case key != "":
		nt.TicketType = cat.T(baseLocale, ticketPrefix+key)
	default:
		nt.TicketType = canonical(cat, ticketPrefix, t.TicketType)
	}
	nt.TicketType = Truncate(nt.TicketType, model.MaxTextLength)
	if t.IsOther() {
		nt.CustomTicketType = Truncate(t.CustomTicketType, model.MaxTextLength)
	}
	return nt
}

func address(a model.Address, cat Catalog) model.Address {
	return model.Address{
		Street1:    Truncate(a.Street1, model.MaxTextLength),
		Street2:    Truncate(a.Street2, model.MaxTextLength),
		City:       Truncate(a.City, model.MaxTextLength),
		State:      Truncate(a.State, model.MaxTextLength),
		PostalCode: Truncate(a.PostalCode, model.MaxTextLength),
		Country:    Truncate(canonical(cat, countryPrefix, a.Country), model.MaxTextLength),
	}
}

func promotionMethods(in []string, cat Catalog) []string {
	out := make([]string, 0, len(in))
	for _, m := range in {
		out = append(out, token(cat, promoPrefix, promotionTokens, m))
	}
	return out
}

// canonical maps a label shown in any locale to its base-locale label.
func canonical(cat Catalog, prefix, v string) string {
	if key, ok := cat.KeyOf(prefix, v); ok {
		return cat.T(baseLocale, prefix+key)
	}
	return v
}

// token maps a label shown in any locale to its stored token.  Values that
// are already tokens, or match nothing, pass through.
func token(cat Catalog, prefix string, tokens map[string]string, v string) string {
	if key, ok := cat.KeyOf(prefix, v); ok {
		if t, ok := tokens[key]; ok {
			return t
		}
	}
	return v
}

// Capacity clamps a capacity to [1, MaxCapacity]; non-positive values
// become 0, meaning "not given".
func Capacity(v int64) int64 {
	if v <= 0 {
		return 0
	}
	return min(v, model.MaxCapacity)
}

// Phone keeps only digits and plus signs.
func Phone(v string) string {
	return strings.Map(func(r rune) rune {
		if r == '+' || (r >= '0' && r <= '9') {
			return r
		}
		return -1
	}, v)
}

// Truncate cuts s to at most n runes after trimming surrounding space.
func Truncate(s string, n int) string {
	s = strings.TrimSpace(s)
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	r := []rune(s)
	return string(r[:n])
}

func truncateAll(in []string, n int) []string {
	out := make([]string, 0, len(in))
	for _, s := range in {
		out = append(out, Truncate(s, n))
	}
	return out
}

func clampFloat(v, lo, hi float64) float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return lo
	}
	return math.Max(lo, math.Min(hi, v))
}

func clampInt(v, lo, hi int) int { return max(lo, min(hi, v)) }

func clampInt64(v, lo, hi int64) int64 { return max(lo, min(hi, v)) }
