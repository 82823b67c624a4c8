package formstate

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/iliyamo/screening-license/internal/model"
	"github.com/iliyamo/screening-license/internal/securestore"
	"github.com/iliyamo/screening-license/pkg/logger"
)

var testSecret = []byte("0123456789abcdef0123456789abcdef")

func seqIDs() IDFunc {
	n := 0
	return func() string {
		n++
		return fmt.Sprintf("guid-%d", n)
	}
}

func newTestStore(t *testing.T) (*Store, *securestore.Store) {
	t.Helper()
	ctx := context.Background()
	local, err := securestore.Open(ctx, securestore.NewMemoryBackend(), testSecret, "sid", securestore.Options{}, logger.NewNop(), nil)
	if err != nil {
		t.Fatalf("open local: %v", err)
	}
	st := New(ctx, local, Options{PersistDebounce: -1, NewID: seqIDs()}, logger.NewNop())
	return st, local
}

func strp(s string) *string { return &s }

func TestDefaultDraftSkeleton(t *testing.T) {
	st, _ := newTestStore(t)
	d := st.Draft()
	films := d.FilmScreenings.ScreeningsList
	if len(films) != 1 || len(films[0].Screenings) != 1 || len(films[0].Screenings[0].TicketInfo) != 1 {
		t.Fatalf("unexpected skeleton: %+v", films)
	}
	if !d.FilmScreenings.ChargingTickets || !d.InteractiveElements.FullLengthFilm {
		t.Fatal("defaults not applied")
	}
	if st.Step() != FirstStep {
		t.Fatalf("step = %d", st.Step())
	}
}

func TestUpdatePreservesSiblingFields(t *testing.T) {
	st, _ := newTestStore(t)
	st.Update(Patch{ContactInfo: &ContactInfoPatch{Phone: strp("+49 30 1234567"), FirstName: strp("Ada")}})
	st.Update(Patch{ContactInfo: &ContactInfoPatch{Email: strp("x@example.com")}})

	ci := st.Draft().ContactInfo
	if ci.Phone != "+49 30 1234567" || ci.FirstName != "Ada" || ci.Email != "x@example.com" {
		t.Fatalf("sibling fields lost: %+v", ci)
	}
}

func TestUpdateWithoutFilmsKeepsList(t *testing.T) {
	st, _ := newTestStore(t)
	if err := st.UpdateFilm(0, FilmPatch{Title: strp("Metropolis")}); err != nil {
		t.Fatalf("update film: %v", err)
	}
	yes := true
	st.Update(Patch{FilmScreenings: &FilmScreeningsPatch{ChargingTickets: &yes}})
	if got := st.Draft().FilmScreenings.ScreeningsList[0].Title; got != "Metropolis" {
		t.Fatalf("film list replaced: title %q", got)
	}
}

func TestSameAddressCopiesContact(t *testing.T) {
	st, _ := newTestStore(t)
	addr := model.Address{Street1: "1 Main St", City: "Berlin", PostalCode: "10115", Country: "Germany", State: "BE"}
	st.Update(Patch{ContactInfo: &ContactInfoPatch{Address: &addr}})
	yes := true
	st.Update(Patch{ScreeningDetails: &ScreeningDetailsPatch{UseSameAddress: &yes}})
	if got := st.Draft().ScreeningDetails.ScreeningAddress; got != addr {
		t.Fatalf("venue address = %+v", got)
	}

	addr.City = "Hamburg"
	st.Update(Patch{ContactInfo: &ContactInfoPatch{Address: &addr}})
	if got := st.Draft().ScreeningDetails.ScreeningAddress.City; got != "Hamburg" {
		t.Fatalf("venue address not following contact: %q", got)
	}
}

func TestDecodePatchRejectsUnknownKeys(t *testing.T) {
	if _, err := DecodePatch(strings.NewReader(`{"contact_info":{"nickname":"x"}}`)); !errors.Is(err, ErrBadPatch) {
		t.Fatalf("err = %v, want ErrBadPatch", err)
	}
	if _, err := DecodePatch(strings.NewReader(`{"how_did_you_hear":"x"}`)); !errors.Is(err, ErrBadPatch) {
		t.Fatalf("err = %v, want ErrBadPatch", err)
	}
	p, err := DecodePatch(strings.NewReader(`{"capacity":{"max_legal_capacity":120}}`))
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if p.Capacity == nil || *p.Capacity.MaxLegalCapacity != 120 {
		t.Fatalf("patch = %+v", p)
	}
	if p, err := DecodePatch(strings.NewReader("  ")); err != nil || !p.IsEmpty() {
		t.Fatalf("empty body: %+v, %v", p, err)
	}
}

func TestGUIDStableAcrossEdits(t *testing.T) {
	st, _ := newTestStore(t)
	guid := st.Draft().FilmScreenings.ScreeningsList[0].Screenings[0].ScreeningGUID
	if guid == "" {
		t.Fatal("no guid assigned")
	}
	_ = st.UpdateFilm(0, FilmPatch{Title: strp("Nosferatu")})
	_ = st.UpdateScreening(0, 0, ScreeningPatch{ScreeningDate: strp("2026-11-01"), Format: strp(model.FormatRentCopy)})
	_, _ = st.AddScreening(0)
	_, _ = st.AddTicket(0, 0)
	st.Update(Patch{Capacity: &CapacityPatch{}})
	if got := st.Draft().FilmScreenings.ScreeningsList[0].Screenings[0].ScreeningGUID; got != guid {
		t.Fatalf("guid changed from %q to %q", guid, got)
	}
}

func TestListCapsDoNotMutate(t *testing.T) {
	st, _ := newTestStore(t)
	for i := 1; i < model.MaxFilms; i++ {
		if _, err := st.AddFilm(); err != nil {
			t.Fatalf("add film %d: %v", i, err)
		}
	}
	if _, err := st.AddFilm(); !errors.Is(err, ErrMaxFilms) {
		t.Fatalf("16th film: %v", err)
	}
	if n := len(st.Draft().FilmScreenings.ScreeningsList); n != model.MaxFilms {
		t.Fatalf("film count = %d", n)
	}

	for i := 1; i < model.MaxScreenings; i++ {
		if _, err := st.AddScreening(0); err != nil {
			t.Fatalf("add screening %d: %v", i, err)
		}
	}
	if _, err := st.AddScreening(0); !errors.Is(err, ErrMaxScreenings) {
		t.Fatalf("11th screening: %v", err)
	}
	if n := len(st.Draft().FilmScreenings.ScreeningsList[0].Screenings); n != model.MaxScreenings {
		t.Fatalf("screening count = %d", n)
	}

	for i := 1; i < model.MaxTickets; i++ {
		if _, err := st.AddTicket(0, 0); err != nil {
			t.Fatalf("add ticket %d: %v", i, err)
		}
	}
	if _, err := st.AddTicket(0, 0); !errors.Is(err, ErrMaxTickets) {
		t.Fatalf("11th ticket: %v", err)
	}
	if n := len(st.Draft().FilmScreenings.ScreeningsList[0].Screenings[0].TicketInfo); n != model.MaxTickets {
		t.Fatalf("ticket count = %d", n)
	}
}

func TestRemovalGuards(t *testing.T) {
	st, _ := newTestStore(t)
	if err := st.RemoveFilm(0); !errors.Is(err, ErrLastFilm) {
		t.Fatalf("remove last film: %v", err)
	}
	if err := st.RemoveScreening(0, 0); !errors.Is(err, ErrFirstScreening) {
		t.Fatalf("remove first screening: %v", err)
	}
	if err := st.RemoveTicket(0, 0, 5); !errors.Is(err, ErrNotFound) {
		t.Fatalf("remove missing ticket: %v", err)
	}
	if _, err := st.AddScreening(0); err != nil {
		t.Fatal(err)
	}
	if err := st.RemoveScreening(0, 1); err != nil {
		t.Fatalf("remove second screening: %v", err)
	}
}

func TestDuplicatePartyIsRejected(t *testing.T) {
	st, _ := newTestStore(t)
	if err := st.AddParty("  Acme Films "); err != nil {
		t.Fatalf("add: %v", err)
	}
	if err := st.AddParty("ACME films"); !errors.Is(err, ErrDuplicateParty) {
		t.Fatalf("duplicate: %v", err)
	}
	if got := st.Draft().EventSummary.InvolvedParties; len(got) != 1 || got[0] != "Acme Films" {
		t.Fatalf("parties = %q", got)
	}
	if e, ok := st.ItemErrors()[PartiesPath()]; !ok || e.Key != "validation.partyExists" {
		t.Fatalf("item error = %+v", e)
	}
	if err := st.AddParty("Other Co"); err != nil {
		t.Fatalf("add: %v", err)
	}
	if _, ok := st.ItemErrors()[PartiesPath()]; ok {
		t.Fatal("item error not cleared by the next edit")
	}
	if err := st.AddParty(" "); !errors.Is(err, ErrEmptyParty) {
		t.Fatalf("blank: %v", err)
	}
}

func TestDuplicateTicketType(t *testing.T) {
	st, _ := newTestStore(t)
	adult := model.TicketKeyPrefix + model.TicketAdult
	other := model.TicketKeyPrefix + model.TicketOther
	if _, err := st.AddTicket(0, 0); err != nil {
		t.Fatal(err)
	}
	if err := st.SetTicket(0, 0, 0, TicketPatch{TicketType: &adult}); err != nil {
		t.Fatalf("first ticket: %v", err)
	}
	if err := st.SetTicket(0, 0, 1, TicketPatch{TicketType: &adult}); !errors.Is(err, ErrDuplicateTicketType) {
		t.Fatalf("duplicate: %v", err)
	}
	path := TicketPath(0, 0, 1)
	if e := st.ItemErrors()[path]; e.Key != "validation.ticketTypeExists" {
		t.Fatalf("item error = %+v", e)
	}
	if got := st.Draft().FilmScreenings.ScreeningsList[0].Screenings[0].TicketInfo[1].TicketType; got != "" {
		t.Fatalf("duplicate applied: %q", got)
	}

	if err := st.SetTicket(0, 0, 1, TicketPatch{TicketType: &other, CustomTicketType: strp("Family")}); err != nil {
		t.Fatalf("custom: %v", err)
	}
	if _, ok := st.ItemErrors()[path]; ok {
		t.Fatal("item error survived an edit of the ticket")
	}
	if _, err := st.AddTicket(0, 0); err != nil {
		t.Fatal(err)
	}
	if err := st.SetTicket(0, 0, 2, TicketPatch{TicketType: &other, CustomTicketType: strp(" family ")}); !errors.Is(err, ErrDuplicateTicketType) {
		t.Fatalf("custom duplicate: %v", err)
	}
	if e := st.ItemErrors()[TicketPath(0, 0, 2)]; e.Key != "validation.customTicketTypeExists" {
		t.Fatalf("item error = %+v", e)
	}

	bogus := "key:ticketTypeVIP"
	if err := st.SetTicket(0, 0, 2, TicketPatch{TicketType: &bogus}); !errors.Is(err, ErrInvalidTicketType) {
		t.Fatalf("unknown type: %v", err)
	}
}

func TestSwitchingAwayFromOtherDropsLabel(t *testing.T) {
	st, _ := newTestStore(t)
	other := model.TicketKeyPrefix + model.TicketOther
	child := model.TicketKeyPrefix + model.TicketChild
	_ = st.SetTicket(0, 0, 0, TicketPatch{TicketType: &other, CustomTicketType: strp("Family")})
	_ = st.SetTicket(0, 0, 0, TicketPatch{TicketType: &child})
	if got := st.Draft().FilmScreenings.ScreeningsList[0].Screenings[0].TicketInfo[0]; got.CustomTicketType != "" {
		t.Fatalf("custom label kept: %+v", got)
	}
}

func TestApplyCatalogDownloadFormat(t *testing.T) {
	st, _ := newTestStore(t)
	if _, err := st.AddScreening(0); err != nil {
		t.Fatal(err)
	}
	err := st.ApplyCatalog(0, model.CatalogTitle{IvaID: "Movie/1", Title: "Casablanca", Year: 1942, MediaType: model.MediaDigitalDownload})
	if err != nil {
		t.Fatalf("apply: %v", err)
	}
	f := st.Draft().FilmScreenings.ScreeningsList[0]
	if f.Title != "Casablanca" || f.YearOfRelease != 1942 || f.IvaID != "Movie/1" {
		t.Fatalf("film = %+v", f)
	}
	for i, s := range f.Screenings {
		if s.Format != model.FormatFBMDownload {
			t.Fatalf("screening %d format = %q", i, s.Format)
		}
	}
	guid, _ := st.AddScreening(0)
	last := st.Draft().FilmScreenings.ScreeningsList[0].Screenings[2]
	if last.ScreeningGUID != guid || last.Format != model.FormatFBMDownload {
		t.Fatalf("new screening = %+v", last)
	}
}

func TestHydrateMergesOverDefaults(t *testing.T) {
	now := time.Unix(1_700_000_000, 0)
	stored := []byte(`{"contact_info":{"first_name":"Ada"},"film_screenings":{"charging_tickets":false,"screenings_list":[{"title":"M","screenings":[{"screening_guid":""},{"screening_guid":"a"},{"screening_guid":"a"}]}]}}`)
	d := Hydrate(stored, now, seqIDs())
	if d.ContactInfo.FirstName != "Ada" || !d.InteractiveElements.FullLengthFilm {
		t.Fatalf("merge lost data: %+v", d)
	}
	if !d.StartTime.Equal(now) {
		t.Fatalf("start time = %v", d.StartTime)
	}
	scr := d.FilmScreenings.ScreeningsList[0].Screenings
	if scr[0].ScreeningGUID == "" || scr[1].ScreeningGUID != "a" || scr[2].ScreeningGUID == "a" {
		t.Fatalf("guids not repaired: %+v", scr)
	}
	if d.Promotion.PromotionMethods == nil || d.FilmScreenings.ScreeningsList[0].Studios == nil {
		t.Fatal("nil slices after hydrate")
	}

	if d := Hydrate([]byte("{not json"), now, seqIDs()); len(d.FilmScreenings.ScreeningsList) != 1 {
		t.Fatal("corrupt data did not fall back to defaults")
	}
}

func TestDraftPersistsAcrossReopen(t *testing.T) {
	ctx := context.Background()
	b := securestore.NewMemoryBackend()
	open := func() *Store {
		local, err := securestore.Open(ctx, b, testSecret, "sid", securestore.Options{}, logger.NewNop(), nil)
		if err != nil {
			t.Fatal(err)
		}
		return New(ctx, local, Options{PersistDebounce: -1, NewID: seqIDs()}, logger.NewNop())
	}
	st := open()
	st.Update(Patch{EventSummary: &EventSummaryPatch{Summary: strp("Outdoor classics night")}})
	st.SetStep(ctx, 3)

	again := open()
	if got := again.Draft().EventSummary.Summary; got != "Outdoor classics night" {
		t.Fatalf("summary = %q", got)
	}
	if again.Step() != 3 {
		t.Fatalf("step = %d", again.Step())
	}
}

func TestResetKeepsConfirmationResult(t *testing.T) {
	ctx := context.Background()
	st, local := newTestStore(t)
	res := model.SubmissionResult{Data: &model.SubmissionData{ID: "rec-1", Kind: "regional"}}
	st.Update(Patch{ContactInfo: &ContactInfoPatch{FirstName: strp("Ada")}})
	local.Set(ctx, securestore.KeyLocale, "de")
	st.Complete(ctx, res)

	if st.Step() != ConfirmationStep || st.Draft().ContactInfo.FirstName != "" {
		t.Fatal("complete did not advance and wipe")
	}
	var stored model.SubmissionResult
	if !local.Get(ctx, securestore.KeySubmissionResult, &stored) || stored.Data.ID != "rec-1" {
		t.Fatal("result not kept through the wipe")
	}

	st.Reset(ctx)
	if st.Step() != FirstStep || st.Result() != nil {
		t.Fatal("reset did not return to step 1")
	}
	if !local.Get(ctx, securestore.KeySubmissionResult, &stored) {
		t.Fatal("result dropped by reset on the confirmation step")
	}
	var loc string
	if !local.Get(ctx, securestore.KeyLocale, &loc) || loc != "de" {
		t.Fatal("locale lost")
	}

	st.Reset(ctx)
	if local.Get(ctx, securestore.KeySubmissionResult, &stored) {
		t.Fatal("result kept by a reset outside the confirmation step")
	}
}

func TestDebouncerLeadingAndTrailing(t *testing.T) {
	calls := make(chan struct{}, 10)
	d := newDebouncer(30*time.Millisecond, func() { calls <- struct{}{} })
	defer d.Stop()

	d.Trigger()
	if len(calls) != 1 {
		t.Fatalf("leading call missing: %d", len(calls))
	}
	<-calls
	d.Trigger()
	d.Trigger()
	if len(calls) != 0 {
		t.Fatalf("burst not coalesced: %d", len(calls))
	}
	select {
	case <-calls:
	case <-time.After(time.Second):
		t.Fatal("trailing call missing")
	}

	d.Trigger()
	d.Flush()
	if len(calls) == 0 {
		t.Fatal("no call after trigger and flush")
	}
}

func TestPatchedListsFollowListRules(t *testing.T) {
	many := make([]string, model.MaxParties+1)
	for i := range many {
		many[i] = fmt.Sprintf("party %d", i)
	}
	adult := model.TicketKeyPrefix + model.TicketTypes[0]
	dupTickets := []model.Film{{Title: "Alien", Screenings: []model.Screening{{
		ScreeningGUID: "g1",
		TicketInfo:    []model.TicketInfo{{TicketType: adult, TicketPrice: 3}, {TicketType: adult, TicketPrice: 4}},
	}}}}

	tests := []struct {
		name    string
		patch   Patch
		want    error
		itemKey string
	}{
		{"too many parties", Patch{EventSummary: &EventSummaryPatch{InvolvedParties: &many}}, ErrMaxParties, ""},
		{"parties equal ignoring case", Patch{EventSummary: &EventSummaryPatch{InvolvedParties: &[]string{"Acme", " ACME "}}}, ErrDuplicateParty, PartiesPath()},
		{"blank party", Patch{EventSummary: &EventSummaryPatch{InvolvedParties: &[]string{"Acme", "  "}}}, ErrEmptyParty, ""},
		{"same ticket type twice", Patch{FilmScreenings: &FilmScreeningsPatch{ScreeningsList: &dupTickets}}, ErrDuplicateTicketType, TicketPath(0, 0, 1)},
		{"unknown ticket type", Patch{FilmScreenings: &FilmScreeningsPatch{ScreeningsList: &[]model.Film{{Screenings: []model.Screening{{
			TicketInfo: []model.TicketInfo{{TicketType: "key:bogus"}},
		}}}}}}, ErrInvalidTicketType, ""},
	}
	for _, tc := range tests {
		st, _ := newTestStore(t)
		before := st.Draft()
		if err := st.Update(tc.patch); !errors.Is(err, tc.want) {
			t.Fatalf("%s: err = %v, want %v", tc.name, err, tc.want)
		}
		after := st.Draft()
		if len(after.EventSummary.InvolvedParties) != len(before.EventSummary.InvolvedParties) ||
			len(after.FilmScreenings.ScreeningsList[0].Screenings[0].TicketInfo) != len(before.FilmScreenings.ScreeningsList[0].Screenings[0].TicketInfo) {
			t.Fatalf("%s: rejected patch changed the draft", tc.name)
		}
		if tc.itemKey != "" {
			if _, ok := st.ItemErrors()[tc.itemKey]; !ok {
				t.Fatalf("%s: no item error at %s: %v", tc.name, tc.itemKey, st.ItemErrors())
			}
		}
	}

	st, _ := newTestStore(t)
	if err := st.Update(Patch{EventSummary: &EventSummaryPatch{InvolvedParties: &[]string{" Acme ", "Globex"}}}); err != nil {
		t.Fatalf("valid parties: %v", err)
	}
	if got := st.Draft().EventSummary.InvolvedParties; len(got) != 2 || got[0] != "Acme" {
		t.Fatalf("parties = %q", got)
	}
}
