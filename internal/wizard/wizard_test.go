package wizard

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/iliyamo/screening-license/internal/boxoffice"
	"github.com/iliyamo/screening-license/internal/formstate"
	"github.com/iliyamo/screening-license/internal/i18n"
	"github.com/iliyamo/screening-license/internal/model"
	"github.com/iliyamo/screening-license/internal/queue"
	"github.com/iliyamo/screening-license/internal/records"
	"github.com/iliyamo/screening-license/internal/securestore"
	"github.com/iliyamo/screening-license/pkg/logger"
)

type clock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *clock) Advance(d time.Duration) {
	c.mu.Lock()
	c.t = c.t.Add(d)
	c.mu.Unlock()
}

type fakePublisher struct {
	mu     sync.Mutex
	events []queue.SubmissionCreatedEvent
}

func (p *fakePublisher) PublishSubmissionCreated(_ context.Context, ev queue.SubmissionCreatedEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, ev)
	return nil
}

type harness struct {
	reg   *Registry
	clock *clock
	store *records.MemoryStore
	pub   *fakePublisher
}

func newHarness(t *testing.T, settle time.Duration) *harness {
	t.Helper()
	h := &harness{
		clock: &clock{t: time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)},
		store: records.NewMemoryStore(),
		pub:   &fakePublisher{},
	}
	h.reg = NewRegistry(Config{
		Backend:     securestore.NewMemoryBackend(),
		Secret:      []byte("test-secret-test-secret-test-sec"),
		Form:        formstate.Options{PersistDebounce: -1},
		SettleDelay: settle,
	}, Deps{
		Records:   records.NewMySQL(h.store),
		Publisher: h.pub,
		Bundle:    i18n.Default(),
		Tokens:    func(id string, _ model.RecordKind) (string, error) { return "tok-" + id, nil },
		Kind:      model.KindRegional,
		Log:       logger.NewNop(),
		Now:       h.clock.Now,
	})
	t.Cleanup(h.reg.Close)
	return h
}

func patch(t *testing.T, body string) *formstate.Patch {
	t.Helper()
	p, err := formstate.DecodePatch(strings.NewReader(body))
	if err != nil {
		t.Fatalf("decode patch: %v", err)
	}
	return &p
}

const (
	contactPatch = `{"privacyConsent": true,
		"contact_info": {"first_name": "Ada", "last_name": "Lovelace", "company_name": "Analytical Ltd",
			"email": "ada@example.com", "phone": "+44 20 7946 0958",
			"address": {"street_1": "1 Main St", "city": "Manchester", "state": "Lancashire", "postal_code": "M1 1AA", "country": "United Kingdom"}},
		"finance_details": {"stsl_account_number": "ST-1001"}}`
	venuePatch = `{"screening_details": {"screening_type": "Outdoors", "use_same_address": true,
		"has_website": false, "screen_size": {"width_m": 8, "height_m": 4.5}}}`
	eventPatch = `{"capacity": {"max_legal_capacity": 200},
		"event_summary": {"summary": "Summer classics in the park"}}`
	filmsPatch = `{"film_screenings": {"charging_tickets": true, "screenings_list": [{
		"title": "The Third Man", "year_of_release": 1949, "studios": [],
		"screenings": [{"screening_date": "2026-07-01", "screening_guid": "g1", "number_of_screenings": 1,
			"format": "rent a copy",
			"ticket_info": [{"ticket_type": "key:ticketTypeAdult", "ticket_price": 3}]}]}]}}`
)

func walkToReview(t *testing.T, ctx context.Context, s *Session) {
	t.Helper()
	for i, body := range []string{contactPatch, venuePatch, eventPatch, filmsPatch} {
		out, err := s.Next(ctx, patch(t, body))
		if err != nil {
			t.Fatalf("step %d: %v", i+1, err)
		}
		if !out.Advanced {
			t.Fatalf("step %d blocked: %v", i+1, out.Validation.Errors)
		}
	}
	if got := s.form.Step(); got != formstate.ReviewStep {
		t.Fatalf("step = %d, want review", got)
	}
}

func TestConsentRequiredBlocksFirstStep(t *testing.T) {
	h := newHarness(t, -1)
	ctx := context.Background()
	s, _, err := h.reg.Start(ctx, "sid-a", "en")
	if err != nil {
		t.Fatalf("start: %v", err)
	}
	out, err := s.Next(ctx, patch(t, `{"privacyConsent": false}`))
	if err != nil {
		t.Fatalf("next: %v", err)
	}
	if out.Advanced || out.Step != 1 {
		t.Fatalf("outcome = %+v", out)
	}
	if _, ok := out.Validation.Errors["privacyConsent"]; !ok {
		t.Fatalf("missing privacyConsent error: %v", out.Validation.Errors)
	}
	if s.State().Step != 1 {
		t.Fatalf("step moved to %d", s.State().Step)
	}
}

func TestFullWalkSubmitsNormalizedRequest(t *testing.T) {
	h := newHarness(t, -1)
	ctx := context.Background()
	s, _, err := h.reg.Start(ctx, "sid-b", "en")
	if err != nil {
		t.Fatalf("start: %v", err)
	}
	walkToReview(t, ctx, s)
	h.clock.Advance(90 * time.Second)

	out, err := s.Next(ctx, nil)
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	res := out.SubmissionResult
	if out.Step != formstate.ConfirmationStep || res == nil || res.Data == nil {
		t.Fatalf("outcome = %+v", out)
	}
	if res.Data.BoxOfficeToken != "tok-"+res.Data.ID {
		t.Fatalf("token = %q", res.Data.BoxOfficeToken)
	}

	rec, err := records.NewMySQL(h.store).Get(ctx, model.KindRegional, res.Data.ID)
	if err != nil {
		t.Fatalf("get record: %v", err)
	}
	tk := rec.FilmScreenings.ScreeningsList[0].Screenings[0].TicketInfo[0]
	if tk.TicketPrice != 3.0 || tk.TicketType != "Adult" {
		t.Fatalf("ticket = %+v", tk)
	}
	if rec.FormTiming.DurationSeconds < 90 {
		t.Fatalf("duration = %d", rec.FormTiming.DurationSeconds)
	}
	if rec.ScreeningDetails.ScreeningAddress.City != "Manchester" {
		t.Fatalf("same address not applied: %+v", rec.ScreeningDetails.ScreeningAddress)
	}

	tk.TicketsSold = 10
	sum := boxoffice.Compute([]model.TicketInfo{tk})
	if sum.TotalRevenue != 30 || sum.TotalFee != 105 {
		t.Fatalf("fee summary = %+v", sum)
	}

	st := s.State()
	if st.Step != formstate.ConfirmationStep || st.SubmissionResult == nil || st.Draft.ContactInfo.FirstName != "" {
		t.Fatalf("draft not reset after submit: %+v", st)
	}
	if len(h.pub.events) != 1 || h.pub.events[0].SubmissionID != res.Data.ID {
		t.Fatalf("events = %+v", h.pub.events)
	}
	if _, err := s.Next(ctx, nil); !errors.Is(err, ErrInvalidStep) {
		t.Fatalf("next on confirmation: want ErrInvalidStep, got %v", err)
	}
}

func TestSubmissionFailureStillCompletes(t *testing.T) {
	h := newHarness(t, -1)
	ctx := context.Background()
	s, _, err := h.reg.Start(ctx, "sid-f", "de")
	if err != nil {
		t.Fatalf("start: %v", err)
	}
	walkToReview(t, ctx, s)
	h.store.Fail = errors.New("connection refused")

	out, err := s.Next(ctx, nil)
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	res := out.SubmissionResult
	if res == nil || res.Error == nil || res.Data != nil {
		t.Fatalf("result = %+v", res)
	}
	if want := i18n.Default().T("de", "form.submission.failed"); res.Error.Message != want {
		t.Fatalf("message = %q, want %q", res.Error.Message, want)
	}
	if s.State().Step != formstate.ConfirmationStep || len(h.pub.events) != 0 {
		t.Fatalf("unexpected state after failure")
	}
}

func TestNavigationDuringSettleIsRejected(t *testing.T) {
	h := newHarness(t, time.Hour)
	ctx := context.Background()
	s, _, err := h.reg.Start(ctx, "sid-t", "en")
	if err != nil {
		t.Fatalf("start: %v", err)
	}
	if _, err := s.Next(ctx, patch(t, contactPatch)); err != nil {
		t.Fatalf("next: %v", err)
	}
	if !s.Transitioning() {
		t.Fatalf("expected transition flag")
	}
	if _, err := s.Prev(ctx); !errors.Is(err, ErrTransitioning) {
		t.Fatalf("prev: want ErrTransitioning, got %v", err)
	}
	if _, err := s.Next(ctx, nil); !errors.Is(err, ErrTransitioning) {
		t.Fatalf("next: want ErrTransitioning, got %v", err)
	}
	if err := s.Reset(ctx); !errors.Is(err, ErrTransitioning) {
		t.Fatalf("reset: want ErrTransitioning, got %v", err)
	}
	if st := s.State(); st.Step != 2 || st.Draft.ContactInfo.FirstName != "Ada" {
		t.Fatalf("refused reset changed the form: step=%d first=%q", st.Step, st.Draft.ContactInfo.FirstName)
	}
}

func TestGoToOnlyMovesBack(t *testing.T) {
	h := newHarness(t, -1)
	ctx := context.Background()
	s, _, _ := h.reg.Start(ctx, "sid-g", "en")
	walkToReview(t, ctx, s)

	if _, err := s.GoTo(ctx, 6); !errors.Is(err, ErrInvalidStep) {
		t.Fatalf("forward jump: want ErrInvalidStep, got %v", err)
	}
	step, err := s.GoTo(ctx, 2)
	if err != nil || step != 2 {
		t.Fatalf("GoTo(2) = %d, %v", step, err)
	}
	if step, _ := s.Prev(ctx); step != 1 {
		t.Fatalf("prev = %d", step)
	}
	if step, _ := s.Prev(ctx); step != 1 {
		t.Fatalf("prev at first step = %d", step)
	}
	if s.State().Draft.ContactInfo.FirstName != "Ada" {
		t.Fatalf("navigating back lost the draft")
	}
}

func TestIdleSessionResetsOnNextInteraction(t *testing.T) {
	h := newHarness(t, -1)
	ctx := context.Background()
	s, _, _ := h.reg.Start(ctx, "sid-d", "en")
	if out, _ := s.Next(ctx, patch(t, contactPatch)); !out.Advanced {
		t.Fatalf("contact step blocked: %v", out.Validation.Errors)
	}

	h.clock.Advance(31 * time.Minute)
	got, err := h.reg.Get(ctx, "sid-d")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	st := got.State()
	if st.Step != 1 || st.Draft.ContactInfo.FirstName != "" || st.Draft.PrivacyConsent {
		t.Fatalf("draft not reset: step=%d draft=%+v", st.Step, st.Draft.ContactInfo)
	}
	if len(st.Draft.FilmScreenings.ScreeningsList) != 1 {
		t.Fatalf("default film skeleton missing")
	}
}

func TestSweepEvictsIdleSessions(t *testing.T) {
	h := newHarness(t, -1)
	ctx := context.Background()
	h.reg.Start(ctx, "sid-1", "en")
	h.reg.Start(ctx, "sid-2", "en")

	if n := h.reg.Sweep(ctx); n != 0 {
		t.Fatalf("swept %d active sessions", n)
	}
	h.clock.Advance(time.Hour)
	if n := h.reg.Sweep(ctx); n != 2 {
		t.Fatalf("swept %d, want 2", n)
	}
}

func TestSessionSurvivesEviction(t *testing.T) {
	h := newHarness(t, -1)
	ctx := context.Background()
	s, _, _ := h.reg.Start(ctx, "sid-r", "en")
	s.Form().Update(*patch(t, `{"contact_info": {"first_name": "Grace"}}`))
	h.reg.Close()

	again, err := h.reg.Get(ctx, "sid-r")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got := again.State().Draft.ContactInfo.FirstName; got != "Grace" {
		t.Fatalf("first name = %q", got)
	}
}

func TestLocale(t *testing.T) {
	h := newHarness(t, -1)
	ctx := context.Background()
	s, _, _ := h.reg.Start(ctx, "sid-l", "de-AT,de;q=0.9,en;q=0.5")
	if s.Locale() != "de" {
		t.Fatalf("locale = %q", s.Locale())
	}
	if err := s.SetLocale(ctx, "fr"); !errors.Is(err, ErrUnknownLocale) {
		t.Fatalf("want ErrUnknownLocale, got %v", err)
	}
	if err := s.SetLocale(ctx, "en"); err != nil || s.Locale() != "en" {
		t.Fatalf("set en: %v %q", err, s.Locale())
	}
	s.Reset(ctx)
	if s.Locale() != "en" {
		t.Fatalf("locale lost on reset")
	}
}

func TestDuplicateTicketMessageUsesLabel(t *testing.T) {
	h := newHarness(t, -1)
	ctx := context.Background()
	s, _, _ := h.reg.Start(ctx, "sid-x", "de")
	f := s.Form()
	f.Update(*patch(t, `{"film_screenings": {"charging_tickets": true}}`))
	if _, err := f.AddTicket(0, 0); err != nil {
		t.Fatalf("add ticket: %v", err)
	}
	adult := "key:" + model.TicketAdult
	if err := f.SetTicket(0, 0, 0, formstate.TicketPatch{TicketType: &adult}); err != nil {
		t.Fatalf("set first: %v", err)
	}
	if err := f.SetTicket(0, 0, 1, formstate.TicketPatch{TicketType: &adult}); !errors.Is(err, formstate.ErrDuplicateTicketType) {
		t.Fatalf("want duplicate, got %v", err)
	}
	msg := s.State().ItemErrors[formstate.TicketPath(0, 0, 1)]
	label := i18n.Default().T("de", "form.filmScreenings."+model.TicketAdult)
	if !strings.Contains(msg, label) {
		t.Fatalf("message %q does not name %q", msg, label)
	}
}

func TestPatchCannotBypassListRules(t *testing.T) {
	h := newHarness(t, -1)
	ctx := context.Background()
	s, _, err := h.reg.Start(ctx, "sid-lists", "en")
	if err != nil {
		t.Fatalf("start: %v", err)
	}
	for _, body := range []string{contactPatch, venuePatch} {
		if out, err := s.Next(ctx, patch(t, body)); err != nil || !out.Advanced {
			t.Fatalf("walk: %v %v", err, out.Validation.Errors)
		}
	}

	parties := make([]string, model.MaxParties+1)
	for i := range parties {
		parties[i] = fmt.Sprintf("%q", fmt.Sprintf("party %d", i))
	}
	eventWith := func(list string) string {
		return `{"capacity": {"max_legal_capacity": 200}, "promotion": {"is_promoted": false},
			"event_summary": {"summary": "Summer classics", "involved_parties": [` + list + `]}}`
	}
	for _, tc := range []struct {
		name string
		body string
		want error
	}{
		{"over the party cap", eventWith(strings.Join(parties, ",")), formstate.ErrMaxParties},
		{"parties equal ignoring case", eventWith(`"Acme", "ACME"`), formstate.ErrDuplicateParty},
	} {
		if _, err := s.Next(ctx, patch(t, tc.body)); !errors.Is(err, tc.want) {
			t.Fatalf("%s: err = %v, want %v", tc.name, err, tc.want)
		}
		if s.form.Step() != 3 {
			t.Fatalf("%s: advanced to step %d", tc.name, s.form.Step())
		}
	}
	if got := s.form.Draft().EventSummary.InvolvedParties; len(got) != 0 {
		t.Fatalf("rejected parties stored: %q", got)
	}

	if out, err := s.Next(ctx, patch(t, eventPatch)); err != nil || !out.Advanced {
		t.Fatalf("event step: %v %v", err, out.Validation.Errors)
	}
	dupTickets := strings.Replace(filmsPatch,
		`[{"ticket_type": "key:ticketTypeAdult", "ticket_price": 3}]`,
		`[{"ticket_type": "key:ticketTypeAdult", "ticket_price": 3}, {"ticket_type": "key:ticketTypeAdult", "ticket_price": 5}]`, 1)
	if _, err := s.Next(ctx, patch(t, dupTickets)); !errors.Is(err, formstate.ErrDuplicateTicketType) {
		t.Fatalf("duplicate tickets: err = %v", err)
	}
	if s.form.Step() != 4 {
		t.Fatalf("advanced past films with duplicate tickets")
	}
	msg := s.State().ItemErrors[formstate.TicketPath(0, 0, 1)]
	if !strings.Contains(msg, "Adult") {
		t.Fatalf("item error = %q", msg)
	}
}

func TestPatchPhoneIsLenientWhileTyping(t *testing.T) {
	h := newHarness(t, -1)
	ctx := context.Background()
	s, _, err := h.reg.Start(ctx, "sid-phone", "en")
	if err != nil {
		t.Fatalf("start: %v", err)
	}
	short := patch(t, `{"contact_info": {"phone": "+4420"}}`)

	st, err := s.Patch(*short)
	if err != nil {
		t.Fatalf("first patch: %v", err)
	}
	if _, ok := st.FieldErrors["contact_info.phone"]; ok {
		t.Fatalf("error shown while typing: %v", st.FieldErrors)
	}
	if st.Draft.ContactInfo.Phone != "+4420" {
		t.Fatalf("phone not stored: %q", st.Draft.ContactInfo.Phone)
	}

	st, err = s.Patch(*short)
	if err != nil {
		t.Fatalf("second patch: %v", err)
	}
	if st.FieldErrors["contact_info.phone"] == "" {
		t.Fatalf("committed short number accepted")
	}

	st, _ = s.Patch(*patch(t, `{"contact_info": {"phone": "+44 20 7946 0958"}}`))
	if len(st.FieldErrors) != 0 {
		t.Fatalf("valid number flagged: %v", st.FieldErrors)
	}
	st, _ = s.Patch(*patch(t, `{"contact_info": {"first_name": "Ada"}}`))
	if st.FieldErrors != nil {
		t.Fatalf("untouched phone checked: %v", st.FieldErrors)
	}
}
