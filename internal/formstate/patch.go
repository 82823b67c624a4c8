package formstate

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/iliyamo/screening-license/internal/model"
)

// ErrBadPatch wraps every patch decoding failure, including unknown keys.
var ErrBadPatch = errors.New("bad patch")

// Patch is a typed partial update of the draft.  Nil fields are left
// alone.  Object sections merge field by field onto the current section;
// FilmScreenings.ScreeningsList replaces the list wholesale when present.
type Patch struct {
	StartTime              *time.Time                `json:"startTime,omitempty"`
	PrivacyConsent         *bool                     `json:"privacyConsent,omitempty"`
	NewsletterSubscription *bool                     `json:"newsletter_subscription,omitempty"`
	ContactInfo            *ContactInfoPatch         `json:"contact_info,omitempty"`
	FinanceDetails         *FinanceDetailsPatch      `json:"finance_details,omitempty"`
	ScreeningDetails       *ScreeningDetailsPatch    `json:"screening_details,omitempty"`
	Capacity               *CapacityPatch            `json:"capacity,omitempty"`
	Promotion              *PromotionPatch           `json:"promotion,omitempty"`
	EventSummary           *EventSummaryPatch        `json:"event_summary,omitempty"`
	InteractiveElements    *InteractiveElementsPatch `json:"interactive_elements,omitempty"`
	FilmScreenings         *FilmScreeningsPatch      `json:"film_screenings,omitempty"`
}

type ContactInfoPatch struct {
	FirstName   *string        `json:"first_name,omitempty"`
	LastName    *string        `json:"last_name,omitempty"`
	CompanyName *string        `json:"company_name,omitempty"`
	Address     *model.Address `json:"address,omitempty"`
	Email       *string        `json:"email,omitempty"`
	Phone       *string        `json:"phone,omitempty"`
}

type FinanceDetailsPatch struct {
	STSLAccountNumber *string `json:"stsl_account_number,omitempty"`
	STSLUserName      *string `json:"stsl_user_name,omitempty"`
}

type ScreeningDetailsPatch struct {
	ScreeningType     *string           `json:"screening_type,omitempty"`
	ScreeningAddress  *model.Address    `json:"screening_address,omitempty"`
	UseSameAddress    *bool             `json:"use_same_address,omitempty"`
	HasWebsite        *bool             `json:"has_website,omitempty"`
	EventWebsite      *string           `json:"event_website,omitempty"`
	Format            *string           `json:"format,omitempty"`
	DCP35mmCapability *bool             `json:"dcp_35mm_capability,omitempty"`
	TheatricalRelease *bool             `json:"theatrical_release,omitempty"`
	ScreenSize        *model.ScreenSize `json:"screen_size,omitempty"`
}

type CapacityPatch struct {
	MaxLegalCapacity *int64 `json:"max_legal_capacity,omitempty"`
}

type PromotionPatch struct {
	IsPromoted               *bool     `json:"is_promoted,omitempty"`
	PromotionMethods         *[]string `json:"promotion_methods,omitempty"`
	CommunicationResponsible *string   `json:"communication_responsible,omitempty"`
	ThirdPartyAdvertising    *bool     `json:"third_party_advertising,omitempty"`
}

type EventSummaryPatch struct {
	Summary                *string   `json:"summary,omitempty"`
	HasBrandActivities     *bool     `json:"has_brand_activities,omitempty"`
	RelatedBrandActivities *string   `json:"related_brand_activities,omitempty"`
	InvolvedParties        *[]string `json:"involved_parties,omitempty"`
}

type InteractiveElementsPatch struct {
	FullLengthFilm        *bool `json:"full_length_film,omitempty"`
	AudienceParticipation *bool `json:"audience_participation,omitempty"`
	LivePerformance       *bool `json:"live_performance,omitempty"`
	HasTheme              *bool `json:"has_theme,omitempty"`
	SpecialEffects        *bool `json:"special_effects,omitempty"`
	CharacterLikeness     *bool `json:"character_likness,omitempty"`
}

type FilmScreeningsPatch struct {
	ChargingTickets *bool         `json:"charging_tickets,omitempty"`
	ScreeningsList  *[]model.Film `json:"screenings_list,omitempty"`
}

// DecodePatch reads a JSON patch and rejects keys that name no section or
// field.  An empty body is an empty patch.
func DecodePatch(r io.Reader) (Patch, error) {
	var p Patch
	body, err := io.ReadAll(r)
	if err != nil {
		return p, fmt.Errorf("%w: %v", ErrBadPatch, err)
	}
	if len(bytes.TrimSpace(body)) == 0 {
		return p, nil
	}
	dec := json.NewDecoder(bytes.NewReader(body))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&p); err != nil {
		return Patch{}, fmt.Errorf("%w: %v", ErrBadPatch, err)
	}
	if dec.More() {
		return Patch{}, fmt.Errorf("%w: trailing data", ErrBadPatch)
	}
	return p, nil
}

// IsEmpty reports whether the patch touches nothing.
func (p Patch) IsEmpty() bool {
	return p == Patch{}
}

// apply merges p onto d.
func apply(d *model.FormDraft, p Patch, newID IDFunc) {
	if p.StartTime != nil {
		d.StartTime = *p.StartTime
	}
	if p.PrivacyConsent != nil {
		d.PrivacyConsent = *p.PrivacyConsent
	}
	if p.NewsletterSubscription != nil {
		d.NewsletterSubscription = *p.NewsletterSubscription
	}
	if c := p.ContactInfo; c != nil {
		ci := &d.ContactInfo
		set(&ci.FirstName, c.FirstName)
		set(&ci.LastName, c.LastName)
		set(&ci.CompanyName, c.CompanyName)
		set(&ci.Address, c.Address)
		set(&ci.Email, c.Email)
		set(&ci.Phone, c.Phone)
		if d.ScreeningDetails.UseSameAddress {
			d.ScreeningDetails.ScreeningAddress = ci.Address
		}
	}
	if f := p.FinanceDetails; f != nil {
		set(&d.FinanceDetails.STSLAccountNumber, f.STSLAccountNumber)
		set(&d.FinanceDetails.STSLUserName, f.STSLUserName)
	}
	if s := p.ScreeningDetails; s != nil {
		sd := &d.ScreeningDetails
		set(&sd.ScreeningType, s.ScreeningType)
		set(&sd.ScreeningAddress, s.ScreeningAddress)
		set(&sd.UseSameAddress, s.UseSameAddress)
		if s.HasWebsite != nil {
			v := *s.HasWebsite
			sd.HasWebsite = &v
		}
		set(&sd.EventWebsite, s.EventWebsite)
		set(&sd.Format, s.Format)
		set(&sd.DCP35mmCapability, s.DCP35mmCapability)
		set(&sd.TheatricalRelease, s.TheatricalRelease)
		set(&sd.ScreenSize, s.ScreenSize)
		if sd.UseSameAddress {
			sd.ScreeningAddress = d.ContactInfo.Address
		}
	}
	if c := p.Capacity; c != nil {
		set(&d.Capacity.MaxLegalCapacity, c.MaxLegalCapacity)
	}
	if pr := p.Promotion; pr != nil {
		set(&d.Promotion.IsPromoted, pr.IsPromoted)
		if pr.PromotionMethods != nil {
			d.Promotion.PromotionMethods = append([]string{}, (*pr.PromotionMethods)...)
		}
		set(&d.Promotion.CommunicationResponsible, pr.CommunicationResponsible)
		set(&d.Promotion.ThirdPartyAdvertising, pr.ThirdPartyAdvertising)
	}
	if e := p.EventSummary; e != nil {
		set(&d.EventSummary.Summary, e.Summary)
		set(&d.EventSummary.HasBrandActivities, e.HasBrandActivities)
		set(&d.EventSummary.RelatedBrandActivities, e.RelatedBrandActivities)
		if e.InvolvedParties != nil {
			d.EventSummary.InvolvedParties = append([]string{}, (*e.InvolvedParties)...)
		}
	}
	if ie := p.InteractiveElements; ie != nil {
		el := &d.InteractiveElements
		set(&el.FullLengthFilm, ie.FullLengthFilm)
		set(&el.AudienceParticipation, ie.AudienceParticipation)
		set(&el.LivePerformance, ie.LivePerformance)
		set(&el.HasTheme, ie.HasTheme)
		set(&el.SpecialEffects, ie.SpecialEffects)
		set(&el.CharacterLikeness, ie.CharacterLikeness)
	}
	if fs := p.FilmScreenings; fs != nil {
		set(&d.FilmScreenings.ChargingTickets, fs.ChargingTickets)
		if fs.ScreeningsList != nil {
			d.FilmScreenings.ScreeningsList = CloneFilms(*fs.ScreeningsList)
			if d.FilmScreenings.ScreeningsList == nil {
				d.FilmScreenings.ScreeningsList = []model.Film{}
			}
		}
		if d.FilmScreenings.ScreeningsList == nil {
			d.FilmScreenings.ScreeningsList = []model.Film{NewFilm(newID, d.FilmScreenings.ChargingTickets)}
		}
	}
	normalizeSlices(d)
	repairGUIDs(d.FilmScreenings.ScreeningsList, newID)
}

func set[T any](dst *T, src *T) {
	if src != nil {
		*dst = *src
	}
}
