// Package wizard drives the six step screening request: navigation guarded
// by the step validators, submission of the normalized request on the
// review step and the per-session state kept between requests.
package wizard

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"sync/atomic"
	"time"

	"github.com/iliyamo/screening-license/internal/formstate"
	"github.com/iliyamo/screening-license/internal/i18n"
	"github.com/iliyamo/screening-license/internal/metrics"
	"github.com/iliyamo/screening-license/internal/model"
	"github.com/iliyamo/screening-license/internal/normalize"
	"github.com/iliyamo/screening-license/internal/queue"
	"github.com/iliyamo/screening-license/internal/records"
	"github.com/iliyamo/screening-license/internal/securestore"
	"github.com/iliyamo/screening-license/internal/validation"
	"github.com/iliyamo/screening-license/pkg/logger"
)

var (
	ErrInvalidStep   = errors.New("invalid step")
	ErrUnknownLocale = errors.New("unknown locale")
)

// Publisher receives submission events.
type Publisher interface {
	PublishSubmissionCreated(ctx context.Context, ev queue.SubmissionCreatedEvent) error
}

// TokenIssuer mints the token that opens the box-office flow of a record.
type TokenIssuer func(submissionID string, kind model.RecordKind) (string, error)

// Deps are shared by every session.
type Deps struct {
	Records   records.Client
	Publisher Publisher
	Bundle    *i18n.Bundle
	Tokens    TokenIssuer
	Kind      model.RecordKind
	Log       logger.Logger
	Metrics   *metrics.Metrics
	Now       func() time.Time
}

// Session is one client's wizard.
type Session struct {
	id    string
	deps  *Deps
	local *securestore.Store
	form  *formstate.Store
	seq   *sequencer
	log   logger.Logger

	resetInProgress atomic.Bool
}

// State is the read model of a session.  It doubles as the review step.
type State struct {
	SessionID        string                  `json:"session_id"`
	Locale           string                  `json:"locale"`
	Step             int                     `json:"step"`
	Transitioning    bool                    `json:"is_transitioning"`
	Draft            model.FormDraft         `json:"form_data"`
	SubmissionResult *model.SubmissionResult `json:"submission_result,omitempty"`
	ItemErrors       map[string]string       `json:"item_errors,omitempty"`
	FieldErrors      map[string]string       `json:"field_errors,omitempty"`
}

// Outcome reports a navigation attempt.  Validation carries the errors of
// the step that blocked advancing.
type Outcome struct {
	Step             int                     `json:"step"`
	Advanced         bool                    `json:"advanced"`
	Validation       validation.Result       `json:"validation"`
	SubmissionResult *model.SubmissionResult `json:"submission_result,omitempty"`
}

func (s *Session) ID() string { return s.id }

// Form exposes the draft store for list editing.
func (s *Session) Form() *formstate.Store { return s.form }

func (s *Session) Transitioning() bool { return s.seq.active() }

func (s *Session) Locale() string {
	var l string
	if s.local.Get(context.Background(), securestore.KeyLocale, &l) && s.deps.Bundle.Has(l) {
		return l
	}
	return i18n.BaseLocale
}

// SetLocale stores the display locale.  It survives every clear.
func (s *Session) SetLocale(ctx context.Context, locale string) error {
	if !s.deps.Bundle.Has(locale) {
		return fmt.Errorf("%w: %q", ErrUnknownLocale, locale)
	}
	s.local.Set(ctx, securestore.KeyLocale, locale)
	return nil
}

// Activity records user input for the idle timeout.
func (s *Session) Activity(ctx context.Context) { s.local.Touch(ctx, false) }

// checkIdle wipes the draft when the idle window has passed.
func (s *Session) checkIdle(ctx context.Context) bool {
	if !s.local.ExpireIfIdle(ctx, s.resetInProgress.Load()) {
		return false
	}
	s.form.Discard()
	s.log.Info("draft expired after inactivity")
	return true
}

func (s *Session) State() State {
	locale := s.Locale()
	return State{
		SessionID:        s.id,
		Locale:           locale,
		Step:             s.form.Step(),
		Transitioning:    s.seq.active(),
		Draft:            s.form.Draft(),
		SubmissionResult: s.form.Result(),
		ItemErrors:       s.itemErrorMessages(locale),
	}
}

// Patch merges p into the draft.  A phone change is checked as live
// input against the number stored before the merge: a short or
// unparsable number only fails once the same value is sent again.
func (s *Session) Patch(p formstate.Patch) (State, error) {
	before := s.form.Draft().ContactInfo.Phone
	if err := s.form.Update(p); err != nil {
		return s.State(), err
	}
	st := s.State()
	if p.ContactInfo != nil && p.ContactInfo.Phone != nil {
		if key, vars := validation.PhoneError(*p.ContactInfo.Phone, before); key != "" {
			st.FieldErrors = map[string]string{"contact_info.phone": s.deps.Bundle.Tf(st.Locale, key, vars)}
		}
	}
	return st, nil
}

// Validate runs a step validator against the current draft.
func (s *Session) Validate(step int) (validation.Result, error) {
	if step < formstate.FirstStep || step > formstate.ConfirmationStep {
		return validation.Result{}, ErrInvalidStep
	}
	return validation.Step(step, s.form.Draft(), s.deps.Bundle, s.Locale()), nil
}

// Next merges p, if any, then advances past the current step when its
// validator passes.  On the review step it submits.
func (s *Session) Next(ctx context.Context, p *formstate.Patch) (Outcome, error) {
	if err := s.seq.begin(); err != nil {
		return Outcome{}, err
	}
	defer s.seq.end()

	if p != nil && !p.IsEmpty() {
		if err := s.form.Update(*p); err != nil {
			return Outcome{Step: s.form.Step()}, err
		}
	}
	step := s.form.Step()
	switch {
	case step == formstate.ConfirmationStep:
		return Outcome{Step: step}, ErrInvalidStep
	case step == formstate.ReviewStep:
		res := s.submit(ctx)
		return Outcome{Step: formstate.ConfirmationStep, Advanced: true, SubmissionResult: &res}, nil
	}

	res := validation.Step(step, s.form.Draft(), s.deps.Bundle, s.Locale())
	if !res.OK() {
		return Outcome{Step: step, Validation: res}, nil
	}
	s.form.Flush()
	s.moveTo(ctx, step, step+1)
	return Outcome{Step: step + 1, Advanced: true, Validation: res}, nil
}

// Prev goes back one step.  Step 1 stays put; the confirmation step only
// leaves through Reset.
func (s *Session) Prev(ctx context.Context) (int, error) {
	if err := s.seq.begin(); err != nil {
		return 0, err
	}
	defer s.seq.end()

	step := s.form.Step()
	if step == formstate.ConfirmationStep {
		return step, ErrInvalidStep
	}
	if step > formstate.FirstStep {
		s.moveTo(ctx, step, step-1)
		step--
	}
	return step, nil
}

// GoTo jumps back to an earlier step.  Forward jumps would skip
// validation and are refused.
func (s *Session) GoTo(ctx context.Context, target int) (int, error) {
	if err := s.seq.begin(); err != nil {
		return 0, err
	}
	defer s.seq.end()

	step := s.form.Step()
	if step == formstate.ConfirmationStep || target < formstate.FirstStep || target > step {
		return step, ErrInvalidStep
	}
	if target != step {
		s.moveTo(ctx, step, target)
	}
	return target, nil
}

// Reset starts a new request.  The idle check leaves a reset alone.
// Like the other navigation actions it is refused while a transition
// settles.
func (s *Session) Reset(ctx context.Context) error {
	if err := s.seq.begin(); err != nil {
		return err
	}
	defer s.seq.end()
	s.resetInProgress.Store(true)
	defer s.resetInProgress.Store(false)
	from := s.form.Step()
	s.form.Reset(ctx)
	s.deps.Metrics.Transition(strconv.Itoa(from), strconv.Itoa(formstate.FirstStep))
	return nil
}

func (s *Session) moveTo(ctx context.Context, from, to int) {
	s.form.SetStep(ctx, to)
	s.deps.Metrics.Transition(strconv.Itoa(from), strconv.Itoa(to))
}

// submit sends the normalized draft once and always lands on the
// confirmation step with either the record or an error.
func (s *Session) submit(ctx context.Context) model.SubmissionResult {
	draft := s.form.Draft()
	now := s.deps.Now()
	payload := normalize.Submission(draft, now, s.deps.Bundle)
	kind := s.deps.Kind

	res := s.create(ctx, kind, payload)
	s.form.Complete(ctx, res)
	s.deps.Metrics.Transition(strconv.Itoa(formstate.ReviewStep), strconv.Itoa(formstate.ConfirmationStep))

	if res.Data != nil {
		s.deps.Metrics.Submission(string(kind), "success")
		s.publishCreated(ctx, res.Data.ID, payload)
	} else {
		s.deps.Metrics.Submission(string(kind), "failure")
	}
	return res
}

func (s *Session) create(ctx context.Context, kind model.RecordKind, payload model.Submission) (res model.SubmissionResult) {
	failed := func() model.SubmissionResult {
		return model.SubmissionResult{Error: &model.SubmissionError{
			Message: s.deps.Bundle.T(s.Locale(), "form.submission.failed"),
		}}
	}
	defer func() {
		if r := recover(); r != nil {
			s.log.Error("submission panicked", "kind", kind, "panic", fmt.Sprint(r))
			res = failed()
		}
	}()

	rec, err := s.deps.Records.Create(ctx, kind, payload)
	if err != nil {
		s.log.Error("submission failed", "kind", kind, "error", err)
		return failed()
	}
	data := &model.SubmissionData{ID: rec.ID, Kind: string(kind), Timestamp: payload.Timestamp}
	if s.deps.Tokens != nil {
		tok, err := s.deps.Tokens(rec.ID, kind)
		if err != nil {
			s.log.Warn("box office token not issued", "submission_id", rec.ID, "error", err)
		}
		data.BoxOfficeToken = tok
	}
	s.log.Info("submission created", "kind", kind, "submission_id", rec.ID)
	return model.SubmissionResult{Data: data}
}

func (s *Session) publishCreated(ctx context.Context, id string, p model.Submission) {
	if s.deps.Publisher == nil {
		return
	}
	screenings := 0
	for _, f := range p.FilmScreenings.ScreeningsList {
		screenings += len(f.Screenings)
	}
	pctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
	defer cancel()
	err := s.deps.Publisher.PublishSubmissionCreated(pctx, queue.SubmissionCreatedEvent{
		SubmissionID: id,
		Kind:         string(s.deps.Kind),
		Company:      p.ContactInfo.CompanyName,
		Films:        len(p.FilmScreenings.ScreeningsList),
		Screenings:   screenings,
		Charging:     p.FilmScreenings.ChargingTickets,
		DurationSecs: p.FormTiming.DurationSeconds,
		CreatedAt:    s.deps.Now().UTC().Format(time.RFC3339),
	})
	if err != nil {
		s.log.Warn("submission event not published", "submission_id", id, "error", err)
	}
}

// itemErrorMessages localizes the scoped duplicate errors.  A keyed
// ticket type in the message is shown by its label.
func (s *Session) itemErrorMessages(locale string) map[string]string {
	errs := s.form.ItemErrors()
	if len(errs) == 0 {
		return nil
	}
	out := make(map[string]string, len(errs))
	for path, e := range errs {
		vars := make(map[string]any, len(e.Vars))
		for k, v := range e.Vars {
			vars[k] = v
		}
		if v, ok := vars["value"].(string); ok && strings.HasPrefix(v, model.TicketKeyPrefix) {
			vars["value"] = s.deps.Bundle.T(locale, "form.filmScreenings."+strings.TrimPrefix(v, model.TicketKeyPrefix))
		}
		out[path] = s.deps.Bundle.Tf(locale, e.Key, vars)
	}
	return out
}
