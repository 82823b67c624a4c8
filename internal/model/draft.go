package model

import "time"

// FormDraft is the working, partially-filled screening license request.
// It is kept per wizard session, persisted through the secure store and
// only turned into a Submission when the user confirms the review step.
//
// Fields:
//  StartTime / EndTime    – bracket the user's time on the form.
//  PrivacyConsent         – must be true to leave step 1.
//  ContactInfo            – requester identity, postal address, email, phone.
//  FinanceDetails         – billing account (required) and optional user name.
//  ScreeningDetails       – venue type, address, website, format, screen size.
//  Capacity               – maximum legal audience of the venue.
//  Promotion              – promotion flag and its conditional follow-ups.
//  EventSummary           – free text summary, brand activities, parties.
//  InteractiveElements    – six content characteristic flags.
//  FilmScreenings         – ticket charging flag and the list of films.
//  NewsletterSubscription – marketing opt-in.
type FormDraft struct {
	StartTime              time.Time           `json:"startTime"`
	EndTime                *time.Time          `json:"endTime,omitempty"`
	PrivacyConsent         bool                `json:"privacyConsent"`
	ContactInfo            ContactInfo         `json:"contact_info"`
	FinanceDetails         FinanceDetails      `json:"finance_details"`
	ScreeningDetails       ScreeningDetails    `json:"screening_details"`
	Capacity               Capacity            `json:"capacity"`
	Promotion              Promotion           `json:"promotion"`
	EventSummary           EventSummary        `json:"event_summary"`
	InteractiveElements    InteractiveElements `json:"interactive_elements"`
	FilmScreenings         FilmScreenings      `json:"film_screenings"`
	NewsletterSubscription bool                `json:"newsletter_subscription"`
}

// Address is shared by the contact and the screening venue.
type Address struct {
	Street1    string `json:"street_1"`
	Street2    string `json:"street_2"`
	City       string `json:"city"`
	State      string `json:"state"`
	PostalCode string `json:"postal_code"`
	Country    string `json:"country"`
}

type ContactInfo struct {
	FirstName   string  `json:"first_name"`
	LastName    string  `json:"last_name"`
	CompanyName string  `json:"company_name"`
	Address     Address `json:"address"`
	Email       string  `json:"email"`
	Phone       string  `json:"phone"`
}

type FinanceDetails struct {
	STSLAccountNumber string `json:"stsl_account_number"`
	STSLUserName      string `json:"stsl_user_name,omitempty"`
}

// ScreeningDetails describes the venue.  HasWebsite stays nil until the
// user answers the question; the website is only required when it is true.
// UseSameAddress mirrors the contact address into ScreeningAddress and is
// not part of the submitted record.
type ScreeningDetails struct {
	ScreeningType     string     `json:"screening_type"`
	ScreeningAddress  Address    `json:"screening_address"`
	UseSameAddress    bool       `json:"use_same_address"`
	HasWebsite        *bool      `json:"has_website,omitempty"`
	EventWebsite      string     `json:"event_website"`
	Format            string     `json:"format"`
	DCP35mmCapability bool       `json:"dcp_35mm_capability"`
	TheatricalRelease bool       `json:"theatrical_release"`
	ScreenSize        ScreenSize `json:"screen_size"`
}

type ScreenSize struct {
	WidthM  float64 `json:"width_m"`
	HeightM float64 `json:"height_m"`
}

type Capacity struct {
	MaxLegalCapacity int64 `json:"max_legal_capacity"`
}

type Promotion struct {
	IsPromoted               bool     `json:"is_promoted"`
	PromotionMethods         []string `json:"promotion_methods"`
	CommunicationResponsible string   `json:"communication_responsible"`
	ThirdPartyAdvertising    bool     `json:"third_party_advertising"`
}

// EventSummary also carries the involved parties list that the promotion
// section edits.
type EventSummary struct {
	Summary                string   `json:"summary"`
	HasBrandActivities     bool     `json:"has_brand_activities"`
	RelatedBrandActivities string   `json:"related_brand_activities"`
	InvolvedParties        []string `json:"involved_parties"`
}

type InteractiveElements struct {
	FullLengthFilm        bool `json:"full_length_film"`
	AudienceParticipation bool `json:"audience_participation"`
	LivePerformance       bool `json:"live_performance"`
	HasTheme              bool `json:"has_theme"`
	SpecialEffects        bool `json:"special_effects"`
	CharacterLikeness     bool `json:"character_likness"`
}

// Promotion methods offered by the form.  Values are the canonical tokens
// stored on the record; localized labels are mapped back on submission.
const (
	PromotionSocialMedia = "social_media"
	PromotionNewsletter  = "newsletter"
	PromotionWebsite     = "website"
	PromotionPrint       = "print"
	PromotionRadio       = "radio"
	PromotionTV          = "tv"
)

var PromotionMethods = []string{
	PromotionSocialMedia, PromotionNewsletter, PromotionWebsite,
	PromotionPrint, PromotionRadio, PromotionTV,
}

// Venue screening types.
const (
	ScreeningIndoors  = "Indoors"
	ScreeningOutdoors = "Outdoors"
	ScreeningDriveIn  = "Drive In"
)

var ScreeningTypes = []string{ScreeningIndoors, ScreeningOutdoors, ScreeningDriveIn}

// Text length bounds.
const (
	MaxTextLength        = 300
	MaxResponsibleLength = 500
	MaxSummaryLength     = 2000
	MaxCapacity          = 1_000_000
	MaxTicketPrice       = 1_000_000
)
