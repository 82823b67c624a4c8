package validation

import (
	"net/mail"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/nyaruka/phonenumbers"

	"github.com/iliyamo/screening-license/internal/model"
)

// phoneMinLength is the length below which a phone number is still
// considered being typed.
const phoneMinLength = 8

// Contact validates step 1: consent, billing account, requester and
// postal address.
func Contact(d model.FormDraft, tr Translator, locale string) Result {
	c := newCollector(tr, locale)
	if !d.PrivacyConsent {
		c.add("privacyConsent", "validation.required")
	}
	if strings.TrimSpace(d.FinanceDetails.STSLAccountNumber) == "" {
		c.add("finance_details.stsl_account_number", "validation.required")
	}

	ci := d.ContactInfo
	textField(c, "contact_info.first_name", ci.FirstName)
	textField(c, "contact_info.last_name", ci.LastName)
	textField(c, "contact_info.company_name", ci.CompanyName)
	if textField(c, "contact_info.email", ci.Email) {
		if key := EmailError(ci.Email); key != "" {
			c.add("contact_info.email", key)
		}
	}
	if textField(c, "contact_info.phone", ci.Phone) {
		// Step validation is the commit point, so the stored number is
		// checked against itself and the firm rule applies.
		if key, vars := PhoneError(ci.Phone, ci.Phone); key != "" {
			c.addf("contact_info.phone", key, vars)
		}
	}

	a := ci.Address
	textField(c, "contact_info.address.street_1", a.Street1)
	textField(c, "contact_info.address.city", a.City)
	textField(c, "contact_info.address.state", a.State)
	textField(c, "contact_info.address.postal_code", a.PostalCode)
	textField(c, "contact_info.address.country", a.Country)
	return c.result()
}

// textField applies the shared required and length rules and reports
// whether the value passed them.
func textField(c *collector, path, v string) bool {
	if strings.TrimSpace(v) == "" {
		c.add(path, "validation.required")
		return false
	}
	if utf8.RuneCountInString(v) > model.MaxTextLength {
		c.addf(path, "validation.maxLength", map[string]any{"max": model.MaxTextLength})
		return false
	}
	return true
}

// EmailError returns the message key for an invalid address, or "".
func EmailError(v string) string {
	v = strings.TrimSpace(v)
	addr, err := mail.ParseAddress(v)
	if err != nil || addr.Address != v || !strings.Contains(v[strings.LastIndex(v, "@")+1:], ".") {
		return "validation.email"
	}
	return ""
}

// PhoneError applies the two-stage phone rule.  While the number is
// shorter than the minimum it only fails once the user has committed it,
// that is when value equals the stored number.  Longer numbers must parse
// as a valid international number with a national part of at least three
// digits.
func PhoneError(value, committed string) (string, map[string]any) {
	if strings.TrimSpace(value) == "" {
		return "validation.required", nil
	}
	if utf8.RuneCountInString(value) < phoneMinLength {
		if committed == value {
			return "validation.minLength", map[string]any{"min": phoneMinLength}
		}
		return "", nil
	}
	num, err := phonenumbers.Parse(value, "")
	if err != nil {
		if committed == value {
			return "validation.pattern", nil
		}
		return "", nil
	}
	if !phonenumbers.IsValidNumber(num) {
		return "validation.pattern", nil
	}
	if len(strconv.FormatUint(num.GetNationalNumber(), 10)) < 3 {
		return "validation.minLength", map[string]any{"min": 3}
	}
	return "", nil
}
