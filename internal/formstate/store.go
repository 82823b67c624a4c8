// Package formstate owns a session's working draft: typed section patches,
// list editing with caps and duplicate checks, hydration from the sealed
// session storage and debounced persistence back into it.
package formstate

import (
	"context"
	"encoding/json"
	"strings"
	"sync"
	"time"

	"github.com/iliyamo/screening-license/internal/model"
	"github.com/iliyamo/screening-license/internal/securestore"
	"github.com/iliyamo/screening-license/pkg/logger"
)

// Wizard step bounds.
const (
	FirstStep        = 1
	ReviewStep       = 5
	ConfirmationStep = 6
)

// Local is the sealed key/value storage the draft is persisted into.
type Local interface {
	Set(ctx context.Context, key string, v any)
	Get(ctx context.Context, key string, dst any) bool
	Clear(ctx context.Context, preserve ...string)
}

// ItemError is a duplicate-entry error scoped to one list item.  It is
// dropped on the next edit of that item.
type ItemError struct {
	Key  string         `json:"key"`
	Vars map[string]any `json:"vars,omitempty"`
}

// Options tunes a Store.  Zero values take the defaults.
type Options struct {
	PersistDebounce time.Duration // default 1s, negative writes synchronously
	NewID           IDFunc
	Now             func() time.Time
}

// Store is the single source of truth for one session's form.
type Store struct {
	mu       sync.Mutex
	local    Local
	log      logger.Logger
	newID    IDFunc
	now      func() time.Time
	draft    model.FormDraft
	step     int
	result   *model.SubmissionResult
	itemErrs map[string]ItemError

	writeMu sync.Mutex
	persist *debouncer
}

// New hydrates a store from local.  Stored data is merged over the
// defaults; a missing or out of range step starts at step 1.
func New(ctx context.Context, local Local, opts Options, log logger.Logger) *Store {
	if opts.NewID == nil {
		opts.NewID = NewGUID
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.PersistDebounce == 0 {
		opts.PersistDebounce = time.Second
	}
	s := &Store{
		local:    local,
		log:      log,
		newID:    opts.NewID,
		now:      opts.Now,
		step:     FirstStep,
		itemErrs: map[string]ItemError{},
	}

	var raw json.RawMessage
	local.Get(ctx, securestore.KeyFormData, &raw)
	s.draft = Hydrate(raw, s.now(), s.newID)

	var step int
	if local.Get(ctx, securestore.KeyCurrentStep, &step) && step >= FirstStep && step <= ConfirmationStep {
		s.step = step
	}
	var res model.SubmissionResult
	if local.Get(ctx, securestore.KeySubmissionResult, &res) && (res.Data != nil || res.Error != nil) {
		s.result = &res
	}
	s.persist = newDebouncer(opts.PersistDebounce, s.writeDraft)
	return s
}

// Draft returns a deep copy of the current draft.
func (s *Store) Draft() model.FormDraft {
	s.mu.Lock()
	defer s.mu.Unlock()
	return Clone(s.draft)
}

// Step returns the current wizard step.
func (s *Store) Step() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.step
}

// SetStep moves to step and persists it immediately.
func (s *Store) SetStep(ctx context.Context, step int) {
	s.mu.Lock()
	s.step = step
	s.mu.Unlock()
	s.local.Set(ctx, securestore.KeyCurrentStep, step)
}

// Result returns the recorded submission outcome, if any.
func (s *Store) Result() *model.SubmissionResult {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.result == nil {
		return nil
	}
	r := *s.result
	return &r
}

// ItemErrors returns the scoped duplicate errors keyed by item path.
func (s *Store) ItemErrors() map[string]ItemError {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make(map[string]ItemError, len(s.itemErrs))
	for k, v := range s.itemErrs {
		out[k] = v
	}
	return out
}

// Update merges p into the draft.  Replaced party and film lists must
// satisfy the same caps and duplicate rules as the list operations;
// otherwise nothing is merged and the offending item gets an item error.
func (s *Store) Update(p Patch) error {
	return s.mutate(func(d *model.FormDraft) error {
		apply(d, p, s.newID)
		if p.EventSummary != nil && p.EventSummary.InvolvedParties != nil {
			s.clearItemErrs(partiesPath)
			parties, err := s.checkParties(d.EventSummary.InvolvedParties)
			if err != nil {
				return err
			}
			d.EventSummary.InvolvedParties = parties
		}
		if p.FilmScreenings != nil && p.FilmScreenings.ScreeningsList != nil {
			s.clearItemErrs("films.")
			if err := s.checkFilms(d.FilmScreenings.ScreeningsList); err != nil {
				return err
			}
		}
		return nil
	})
}

// mutate runs fn on a copy of the draft and commits the copy only when fn
// succeeds.  fn runs with s.mu held.
func (s *Store) mutate(fn func(d *model.FormDraft) error) error {
	s.mu.Lock()
	next := Clone(s.draft)
	if err := fn(&next); err != nil {
		s.mu.Unlock()
		return err
	}
	s.draft = next
	s.mu.Unlock()
	s.persist.Trigger()
	return nil
}

// Reset starts a brand-new draft at step 1.  A result shown on the
// confirmation step stays in storage so that view can render again.
func (s *Store) Reset(ctx context.Context) {
	s.mu.Lock()
	wasConfirming := s.step == ConfirmationStep
	prev := s.result
	s.draft = NewDraft(s.now(), s.newID)
	s.step = FirstStep
	s.result = nil
	s.itemErrs = map[string]ItemError{}
	fresh := Clone(s.draft)
	s.mu.Unlock()

	s.writeMu.Lock()
	s.local.Clear(ctx, securestore.KeyLocale, securestore.KeyLastActivity, securestore.KeyFormLastAccessed)
	s.local.Set(ctx, securestore.KeyFormData, fresh)
	s.local.Set(ctx, securestore.KeyCurrentStep, FirstStep)
	if wasConfirming && prev != nil {
		s.local.Set(ctx, securestore.KeySubmissionResult, prev)
	}
	s.writeMu.Unlock()
}

// Complete records the submission outcome, moves to the confirmation step
// and wipes the draft.  Only the result, step, locale and activity survive
// in storage.
func (s *Store) Complete(ctx context.Context, res model.SubmissionResult) {
	s.mu.Lock()
	s.result = &res
	s.step = ConfirmationStep
	s.draft = NewDraft(s.now(), s.newID)
	s.itemErrs = map[string]ItemError{}
	fresh := Clone(s.draft)
	s.mu.Unlock()

	s.writeMu.Lock()
	s.local.Set(ctx, securestore.KeySubmissionResult, res)
	s.local.Set(ctx, securestore.KeyCurrentStep, ConfirmationStep)
	s.local.Clear(ctx, securestore.KeySubmissionResult, securestore.KeyCurrentStep,
		securestore.KeyLocale, securestore.KeyLastActivity, securestore.KeyFormLastAccessed)
	s.local.Set(ctx, securestore.KeyFormData, fresh)
	s.writeMu.Unlock()
}

// Discard forgets the in-memory state after the backing storage was wiped
// by the idle timeout.
func (s *Store) Discard() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.draft = NewDraft(s.now(), s.newID)
	s.step = FirstStep
	s.result = nil
	s.itemErrs = map[string]ItemError{}
}

// Flush writes a pending draft change now.
func (s *Store) Flush() { s.persist.Flush() }

// Close flushes and stops the persistence timer.
func (s *Store) Close() {
	s.persist.Flush()
	s.persist.Stop()
}

func (s *Store) writeDraft() {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	s.mu.Lock()
	d := Clone(s.draft)
	s.mu.Unlock()
	s.local.Set(context.Background(), securestore.KeyFormData, d)
}

// setItemErr and clearItemErrs expect s.mu held.
func (s *Store) setItemErr(path, key string, vars map[string]any) {
	s.itemErrs[path] = ItemError{Key: key, Vars: vars}
}

func (s *Store) clearItemErrs(prefix string) {
	for k := range s.itemErrs {
		if strings.HasPrefix(k, prefix) {
			delete(s.itemErrs, k)
		}
	}
}
