// Package queue defines message payloads exchanged over the message broker.
package queue

// Queue names.  Routing keys equal the queue names on the default exchange.
const (
	SubmissionCreatedQueue = "submission.created"
	BoxOfficeLockedQueue   = "boxoffice.locked"
)

// SubmissionCreatedEvent is published when a screening request has been
// stored.  It names the record and sizes its film list so downstream
// consumers can log or notify without reading the record itself.
type SubmissionCreatedEvent struct {
	SubmissionID string `json:"submission_id"`
	Kind         string `json:"kind"`
	Company      string `json:"company"`
	Films        int    `json:"films"`
	Screenings   int    `json:"screenings"`
	Charging     bool   `json:"charging_tickets"`
	DurationSecs int64  `json:"duration_seconds"`
	CreatedAt    string `json:"created_at"`
}

// BoxOfficeLockedEvent is published when a screening's box-office return
// has been saved and locked.
type BoxOfficeLockedEvent struct {
	SubmissionID   string  `json:"submission_id"`
	Kind           string  `json:"kind"`
	ScreeningGUID  string  `json:"screening_guid"`
	FilmTitle      string  `json:"film_title"`
	ScreeningDate  string  `json:"screening_date"`
	TicketsSold    int64   `json:"tickets_sold"`
	TotalRevenue   float64 `json:"total_revenue"`
	TotalFee       float64 `json:"total_fee"`
	MinimumApplied bool    `json:"minimum_applied"`
	LockedAt       string  `json:"locked_at"`
}
