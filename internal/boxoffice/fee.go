// Package boxoffice computes licence fees from reported ticket sales and
// locks a screening's box-office return once it has been saved.
package boxoffice

import "github.com/iliyamo/screening-license/internal/model"

// Tier maps a minimum ticket price to the share of revenue charged.
type Tier struct {
	MinPrice   float64 `json:"min_price"`
	Percentage float64 `json:"percentage"`
}

// Tiers is ordered from the highest threshold down.  A ticket uses the
// first tier whose threshold it reaches; cheaper tickets use the last.
var Tiers = []Tier{
	{MinPrice: 5.00, Percentage: 0.40},
	{MinPrice: 4.50, Percentage: 0.45},
	{MinPrice: 4.00, Percentage: 0.50},
	{MinPrice: 3.50, Percentage: 0.57},
	{MinPrice: 3.00, Percentage: 0.67},
	{MinPrice: 2.50, Percentage: 0.80},
	{MinPrice: 2.00, Percentage: 1.00},
}

// MinimumGuarantee is the lowest fee charged for a screening.
const MinimumGuarantee = 105.0

// TierFor returns the tier applied to a ticket price.
func TierFor(price float64) Tier {
	for _, t := range Tiers {
		if price >= t.MinPrice {
			return t
		}
	}
	return Tiers[len(Tiers)-1]
}

// Line is the fee breakdown of one ticket type.
type Line struct {
	TicketType       string  `json:"ticket_type"`
	CustomTicketType string  `json:"custom_ticket_type,omitempty"`
	TicketPrice      float64 `json:"ticket_price"`
	TicketsSold      int64   `json:"tickets_sold"`
	Percentage       float64 `json:"percentage"`
	Revenue          float64 `json:"revenue"`
	Fee              float64 `json:"fee"`
}

// Summary aggregates the lines of a screening.  TotalFee never drops
// below MinimumGuarantee.
type Summary struct {
	Lines            []Line  `json:"lines"`
	TotalRevenue     float64 `json:"total_revenue"`
	CalculatedFee    float64 `json:"calculated_fee"`
	TotalFee         float64 `json:"total_fee"`
	MinimumApplied   bool    `json:"minimum_applied"`
	MinimumGuarantee float64 `json:"minimum_guarantee"`
}

// Compute prices every ticket.  The live preview and the locked value both
// come from here, so they cannot disagree.
func Compute(tickets []model.TicketInfo) Summary {
	s := Summary{Lines: make([]Line, 0, len(tickets)), MinimumGuarantee: MinimumGuarantee}
	for _, t := range tickets {
		tier := TierFor(t.TicketPrice)
		revenue := t.TicketPrice * float64(t.TicketsSold)
		l := Line{
			TicketType:       t.TicketType,
			CustomTicketType: t.CustomTicketType,
			TicketPrice:      t.TicketPrice,
			TicketsSold:      t.TicketsSold,
			Percentage:       tier.Percentage,
			Revenue:          revenue,
			Fee:              revenue * tier.Percentage,
		}
		s.Lines = append(s.Lines, l)
		s.TotalRevenue += l.Revenue
		s.CalculatedFee += l.Fee
	}
	s.TotalFee = max(s.CalculatedFee, MinimumGuarantee)
	s.MinimumApplied = s.CalculatedFee < MinimumGuarantee
	return s
}
