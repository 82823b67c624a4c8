package validation

import (
	"strings"
	"unicode/utf8"

	"github.com/iliyamo/screening-license/internal/model"
)

// Event validates step 3: capacity, promotion and the event summary.
func Event(d model.FormDraft, tr Translator, locale string) Result {
	c := newCollector(tr, locale)

	switch capacity := d.Capacity.MaxLegalCapacity; {
	case capacity == 0:
		c.add("capacity.max_legal_capacity", "validation.required")
	case capacity < 0:
		c.add("capacity.max_legal_capacity", "validation.positive")
	case capacity > model.MaxCapacity:
		c.addf("capacity.max_legal_capacity", "validation.max", map[string]any{"max": model.MaxCapacity})
	}

	if p := d.Promotion; p.IsPromoted {
		if len(p.PromotionMethods) == 0 {
			c.add("promotion.promotion_methods", "validation.required")
		}
		switch {
		case p.CommunicationResponsible == "":
			c.add("promotion.communication_responsible", "validation.required")
		case utf8.RuneCountInString(p.CommunicationResponsible) > model.MaxResponsibleLength:
			c.addf("promotion.communication_responsible", "validation.maxLength", map[string]any{"max": model.MaxResponsibleLength})
		}
		parties := d.EventSummary.InvolvedParties
		switch {
		case p.ThirdPartyAdvertising && len(parties) == 0:
			c.add("event_summary.involved_parties", "validation.required")
		case anyLonger(parties, model.MaxTextLength):
			c.addf("event_summary.involved_parties", "validation.maxLength", map[string]any{"max": model.MaxTextLength})
		}
	}
	parties := d.EventSummary.InvolvedParties
	if len(parties) > model.MaxParties {
		c.addf("max_parties_exceeded", "validation.maxPartiesExceeded", map[string]any{"max": model.MaxParties})
	}
	if dup, ok := duplicateParty(parties); ok {
		c.addf("event_summary.involved_parties", "validation.partyExists", map[string]any{"party": dup})
	}

	es := d.EventSummary
	switch {
	case strings.TrimSpace(es.Summary) == "":
		c.add("event_summary.summary", "validation.required")
	case utf8.RuneCountInString(es.Summary) > model.MaxSummaryLength:
		c.addf("event_summary.summary", "validation.maxLength", map[string]any{"max": model.MaxSummaryLength})
	}
	if es.HasBrandActivities {
		switch {
		case strings.TrimSpace(es.RelatedBrandActivities) == "":
			c.add("event_summary.related_brand_activities", "validation.required")
		case utf8.RuneCountInString(es.RelatedBrandActivities) > model.MaxSummaryLength:
			c.addf("event_summary.related_brand_activities", "validation.maxLength", map[string]any{"max": model.MaxSummaryLength})
		}
	}
	return c.result()
}

func anyLonger(list []string, max int) bool {
	for _, s := range list {
		if utf8.RuneCountInString(s) > max {
			return true
		}
	}
	return false
}

// duplicateParty returns the first name repeated ignoring case.
func duplicateParty(parties []string) (string, bool) {
	seen := make(map[string]bool, len(parties))
	for _, p := range parties {
		k := strings.ToLower(strings.TrimSpace(p))
		if seen[k] {
			return strings.TrimSpace(p), true
		}
		seen[k] = true
	}
	return "", false
}
