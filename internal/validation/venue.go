package validation

import (
	"net/url"
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/iliyamo/screening-license/internal/model"
)

var schemeRE = regexp.MustCompile(`(?i)^https?://`)

// Venue validates step 2.  The venue address is skipped when it mirrors
// the contact address.
func Venue(d model.FormDraft, tr Translator, locale string) Result {
	c := newCollector(tr, locale)
	sd := d.ScreeningDetails
	if sd.ScreeningType == "" {
		c.add("screening_details.screening_type", "validation.selectScreeningType")
	}

	if !sd.UseSameAddress {
		a := sd.ScreeningAddress
		addressField(c, "screening_details.screening_address.street_1", a.Street1, "validation.streetRequired")
		addressField(c, "screening_details.screening_address.city", a.City, "validation.cityRequired")
		addressField(c, "screening_details.screening_address.state", a.State, "validation.stateRequired")
		addressField(c, "screening_details.screening_address.postal_code", a.PostalCode, "validation.postalCodeRequired")
		addressField(c, "screening_details.screening_address.country", a.Country, "validation.countryRequired")
	}

	if sd.HasWebsite == nil {
		c.add("screening_details.has_website", "validation.websiteSelectionRequired")
	} else if *sd.HasWebsite {
		if key := WebsiteError(sd.EventWebsite); key != "" {
			c.add("screening_details.event_website", key)
		}
	}

	if !(sd.ScreenSize.WidthM > 0) {
		c.add("screening_details.screen_size.width_m", "validation.screenWidthPositive")
	}
	if !(sd.ScreenSize.HeightM > 0) {
		c.add("screening_details.screen_size.height_m", "validation.screenWidthPositive")
	}
	return c.result()
}

func addressField(c *collector, path, v, requiredKey string) {
	switch {
	case v == "":
		c.add(path, requiredKey)
	case utf8.RuneCountInString(v) > model.MaxTextLength:
		c.addf(path, "validation.maxLength", map[string]any{"max": model.MaxTextLength})
	}
}

// WebsiteError checks a required event website.  A missing scheme is
// assumed to be https.
func WebsiteError(v string) string {
	v = strings.TrimSpace(v)
	if v == "" {
		return "validation.websiteRequired"
	}
	if !schemeRE.MatchString(v) {
		v = "https://" + v
	}
	u, err := url.Parse(v)
	if err != nil || u.Host == "" || strings.ContainsAny(u.Host, " \t") {
		return "validation.validUrl"
	}
	return ""
}
