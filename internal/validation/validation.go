// Package validation holds the per-step validators of the wizard.  Each
// validator is a pure function of the draft and a locale; it returns the
// localized message of every failing field, keyed by field path.
package validation

import (
	"github.com/iliyamo/screening-license/internal/model"
)

// Translator resolves message keys for a locale.
type Translator interface {
	T(locale, key string) string
	Tf(locale, key string, vars map[string]any) string
}

// ErrorMap maps a field path to its localized error.  A missing key means
// the field is valid.
type ErrorMap map[string]string

// Result is the outcome of validating one step.  First is the path of the
// first failing field in form order, the one a client scrolls to.
type Result struct {
	Errors ErrorMap `json:"errors"`
	First  string   `json:"first,omitempty"`
}

// OK reports whether the step passed.
func (r Result) OK() bool { return len(r.Errors) == 0 }

// collector records errors in form order.  A later error on the same path
// replaces the earlier message without moving the path.
type collector struct {
	tr     Translator
	locale string
	errs   ErrorMap
	order  []string
}

func newCollector(tr Translator, locale string) *collector {
	return &collector{tr: tr, locale: locale, errs: ErrorMap{}}
}

func (c *collector) add(path, key string) {
	c.put(path, c.tr.T(c.locale, key))
}

func (c *collector) addf(path, key string, vars map[string]any) {
	c.put(path, c.tr.Tf(c.locale, key, vars))
}

func (c *collector) put(path, msg string) {
	if _, seen := c.errs[path]; !seen {
		c.order = append(c.order, path)
	}
	c.errs[path] = msg
}

func (c *collector) result() Result {
	r := Result{Errors: c.errs}
	if len(c.order) > 0 {
		r.First = c.order[0]
	}
	return r
}

// Step runs the validator of a wizard step.  The review and confirmation
// steps have no fields and always pass.
func Step(step int, d model.FormDraft, tr Translator, locale string) Result {
	switch step {
	case 1:
		return Contact(d, tr, locale)
	case 2:
		return Venue(d, tr, locale)
	case 3:
		return Event(d, tr, locale)
	case 4:
		return Films(d.FilmScreenings, tr, locale)
	default:
		return Result{Errors: ErrorMap{}}
	}
}
