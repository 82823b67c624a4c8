package model

import "strings"

// List bounds shared by the form store and the validators.
const (
	MaxFilms      = 15
	MaxScreenings = 10
	MaxTickets    = 10
	MaxParties    = 15
)

// Media types reported by the film catalog.
const (
	MediaSpecialPermission = "SPECIAL_PERMISSION"
	MediaDigitalDownload   = "DIGITAL_DOWNLOAD"
)

// Canonical screening formats.  These English tokens are what the stored
// record carries regardless of the language the form was filled in.
const (
	FormatOwnCopy     = "user-owned copy"
	FormatRentCopy    = "rent a copy"
	FormatFBMDownload = "filmbankmedia download"
	FormatVSR         = "virtual screening room"
)

var Formats = []string{FormatOwnCopy, FormatRentCopy, FormatFBMDownload, FormatVSR}

// TicketKeyPrefix marks a ticket type that refers to a translation key
// rather than free text.
const TicketKeyPrefix = "key:"

// Ticket type keys.  A ticket holds TicketKeyPrefix+key in TicketType.
const (
	TicketAdult   = "ticketTypeAdult"
	TicketChild   = "ticketTypeChild"
	TicketSenior  = "ticketTypeSenior"
	TicketStudent = "ticketTypeStudent"
	TicketPremium = "ticketTypePremium"
	TicketOther   = "ticketTypeOther"
)

var TicketTypes = []string{TicketAdult, TicketChild, TicketSenior, TicketStudent, TicketPremium, TicketOther}

// FilmScreenings wraps every film with the global ticket charging flag.
type FilmScreenings struct {
	ChargingTickets bool   `json:"charging_tickets"`
	ScreeningsList  []Film `json:"screenings_list"`
}

// Film is one title in the request.  Catalog fields are set when the
// title was picked from the catalog search.
type Film struct {
	Title         string      `json:"title"`
	YearOfRelease int         `json:"year_of_release"`
	Studios       []string    `json:"studios"`
	Screenings    []Screening `json:"screenings"`
	IvaID         string      `json:"iva_id,omitempty"`
	PosterPath    string      `json:"poster_path,omitempty"`
	MediaType     string      `json:"media_type,omitempty"`
}

// Screening is one dated showing of a film.  ScreeningGUID is assigned
// when the screening is created and is the join key the box-office flow
// uses to find it again.
type Screening struct {
	ScreeningDate      string       `json:"screening_date"`
	ScreeningGUID      string       `json:"screening_guid"`
	NumberOfScreenings int          `json:"number_of_screenings"`
	Approved           bool         `json:"approved"`
	BoxOfficeReturn    bool         `json:"box_office_return"`
	TicketInfo         []TicketInfo `json:"ticket_info"`
	Format             string       `json:"format"`
}

// TicketInfo holds a price point of a screening.  CustomTicketType is only
// meaningful when TicketType is the "other" key.
type TicketInfo struct {
	TicketType       string  `json:"ticket_type"`
	TicketPrice      float64 `json:"ticket_price"`
	TicketsSold      int64   `json:"tickets_sold"`
	CustomTicketType string  `json:"custom_ticket_type,omitempty"`
}

// TicketKey returns the translation key of a keyed ticket type, or "" for
// free text values.
func (t TicketInfo) TicketKey() string {
	if strings.HasPrefix(t.TicketType, TicketKeyPrefix) {
		return strings.TrimPrefix(t.TicketType, TicketKeyPrefix)
	}
	return ""
}

// IsOther reports whether the ticket uses a custom label.
func (t TicketInfo) IsOther() bool {
	return t.TicketKey() == TicketOther
}

// IdentityKey is the value used to detect duplicate ticket types within a
// screening.  Custom labels compare case-insensitively.
func (t TicketInfo) IdentityKey() string {
	if t.IsOther() {
		return TicketKeyPrefix + TicketOther + ":" + strings.ToLower(strings.TrimSpace(t.CustomTicketType))
	}
	return t.TicketType
}
