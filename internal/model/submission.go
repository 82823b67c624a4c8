package model

// RecordKind selects which hosted record type a submission is created as.
// Both kinds share one schema.
type RecordKind string

const (
	KindGeneral  RecordKind = "general"
	KindRegional RecordKind = "regional"
)

// Valid reports whether k names a known record kind.
func (k RecordKind) Valid() bool {
	return k == KindGeneral || k == KindRegional
}

// Submission is the normalized wire payload sent to the records service.
type Submission struct {
	Timestamp              int64               `json:"timestamp"`
	FormTiming             FormTiming          `json:"form_timing"`
	ContactInfo            ContactInfo         `json:"contact_info"`
	FinanceInfo            FinanceInfo         `json:"finance_info"`
	ScreeningDetails       SubmittedVenue      `json:"screening_details"`
	Capacity               SubmittedCapacity   `json:"capacity"`
	Promotion              Promotion           `json:"promotion"`
	EventSummary           EventSummary        `json:"event_summary"`
	InteractiveElements    InteractiveElements `json:"interactive_elements"`
	FilmScreenings         FilmScreenings      `json:"film_screenings"`
	NewsletterSubscription bool                `json:"newsletter_subscription"`
}

type FormTiming struct {
	StartTime       string `json:"start_time"`
	EndTime         string `json:"end_time"`
	DurationSeconds int64  `json:"duration_seconds"`
}

type FinanceInfo struct {
	STSLAccountNumber string `json:"stsl_account_number"`
}

// SubmittedVenue is ScreeningDetails without the form-only fields.
type SubmittedVenue struct {
	ScreeningType     string     `json:"screening_type"`
	ScreeningAddress  Address    `json:"screening_address"`
	HasWebsite        *bool      `json:"has_website,omitempty"`
	EventWebsite      string     `json:"event_website"`
	Format            string     `json:"format"`
	DCP35mmCapability bool       `json:"dcp_35mm_capability"`
	TheatricalRelease bool       `json:"theatrical_release"`
	ScreenSize        ScreenSize `json:"screen_size"`
}

// SubmittedCapacity drops a zero capacity from the payload.
type SubmittedCapacity struct {
	MaxLegalCapacity int64 `json:"max_legal_capacity,omitempty"`
}

// Record is a persisted submission as returned by the records service.
type Record struct {
	ID   string     `json:"id"`
	Kind RecordKind `json:"kind"`
	Submission
	CreatedAt string `json:"createdAt,omitempty"`
	UpdatedAt string `json:"updatedAt,omitempty"`
}

// SubmissionResult is what the confirmation step renders.  Exactly one of
// Data and Error is set.
type SubmissionResult struct {
	Data  *SubmissionData  `json:"data,omitempty"`
	Error *SubmissionError `json:"error,omitempty"`
}

// SubmissionData carries the created record id and the token that opens the
// box-office flow for it.
type SubmissionData struct {
	ID             string `json:"id"`
	Kind           string `json:"kind"`
	Timestamp      int64  `json:"timestamp"`
	BoxOfficeToken string `json:"box_office_token,omitempty"`
}

type SubmissionError struct {
	Message string `json:"message"`
}
