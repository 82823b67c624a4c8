// Package securestore keeps a wizard session's named values sealed at rest.
// Reads go through a plaintext cache that mirrors the backend; any value that
// fails to open or decode is treated as absent.  Inactivity and cold-start
// rules decide when the stored draft is wiped.
package securestore

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/iliyamo/screening-license/internal/metrics"
	"github.com/iliyamo/screening-license/pkg/logger"
)

// Keys of the values a session stores.
const (
	KeyFormData         = "formData"
	KeyCurrentStep      = "currentStep"
	KeySubmissionResult = "submissionResult"
	KeyLastActivity     = "lastActivityTimestamp"
	KeyFormLastAccessed = "formLastAccessed"
	KeyLocale           = "locale"
)

// Options tunes the expiry rules.  Zero values take the defaults.
type Options struct {
	IdleTimeout      time.Duration // default 30m
	FreshLoadWindow  time.Duration // default 60s
	ActivityThrottle time.Duration // default 5s
	Now              func() time.Time
}

func (o Options) withDefaults() Options {
	if o.IdleTimeout <= 0 {
		o.IdleTimeout = 30 * time.Minute
	}
	if o.FreshLoadWindow <= 0 {
		o.FreshLoadWindow = time.Minute
	}
	if o.ActivityThrottle <= 0 {
		o.ActivityThrottle = 5 * time.Second
	}
	if o.Now == nil {
		o.Now = time.Now
	}
	return o
}

// Store is the sealed key/value view of one session.
type Store struct {
	mu      sync.Mutex
	sid     string
	backend Backend
	seal    *sealer
	opts    Options
	log     logger.Logger
	metrics *metrics.Metrics

	raw   map[string][]byte // sealed, exactly as in the backend
	cache map[string][]byte // opened JSON of raw entries

	lastActivityWrite time.Time
}

// Open derives the session key and loads the stored values.  A backend
// read failure is logged and the session starts empty.
func Open(ctx context.Context, b Backend, secret []byte, sid string, opts Options, log logger.Logger, m *metrics.Metrics) (*Store, error) {
	s, err := newSealer(secret, sid)
	if err != nil {
		return nil, err
	}
	st := &Store{
		sid:     sid,
		backend: b,
		seal:    s,
		opts:    opts.withDefaults(),
		log:     log.With("session_id", sid),
		metrics: m,
		raw:     map[string][]byte{},
		cache:   map[string][]byte{},
	}
	raw, err := b.Load(ctx, sid)
	if err != nil {
		st.log.Warn("securestore: load failed", "error", err)
		st.metrics.StorageError("load")
		return st, nil
	}
	st.raw = raw
	return st, nil
}

// Set seals v under key and refreshes the activity timestamp.  Failures
// are logged and leave both the cache and the backend untouched.
func (s *Store) Set(ctx context.Context, key string, v any) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.setLocked(ctx, key, v)
	if key != KeyLastActivity {
		s.touchLocked(ctx, false)
	}
}

func (s *Store) setLocked(ctx context.Context, key string, v any) bool {
	plain, err := json.Marshal(v)
	if err != nil {
		s.log.Warn("securestore: encode failed", "key", key, "error", err)
		s.metrics.StorageError("encode")
		return false
	}
	sealed, err := s.seal.seal(key, plain)
	if err != nil {
		s.log.Warn("securestore: seal failed", "key", key, "error", err)
		s.metrics.StorageError("seal")
		return false
	}
	if err := s.backend.Put(ctx, s.sid, key, sealed); err != nil {
		s.log.Warn("securestore: write failed", "key", key, "error", err)
		s.metrics.StorageError("write")
		return false
	}
	s.raw[key] = sealed
	s.cache[key] = plain
	return true
}

// Get decodes the value under key into dst and reports whether it was
// present and readable.
func (s *Store) Get(ctx context.Context, key string, dst any) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	ok := s.getLocked(key, dst)
	if ok && key != KeyLastActivity {
		s.touchLocked(ctx, false)
	}
	return ok
}

func (s *Store) getLocked(key string, dst any) bool {
	plain, ok := s.cache[key]
	if !ok {
		sealed, present := s.raw[key]
		if !present {
			return false
		}
		opened, err := s.seal.open(key, sealed)
		if err != nil {
			s.log.Debug("securestore: unreadable value treated as absent", "key", key)
			s.metrics.StorageError("open")
			return false
		}
		plain = opened
	}
	if err := json.Unmarshal(plain, dst); err != nil {
		s.log.Debug("securestore: undecodable value treated as absent", "key", key)
		s.metrics.StorageError("decode")
		delete(s.cache, key)
		return false
	}
	s.cache[key] = plain
	return true
}

// Has reports whether a readable value exists under key.
func (s *Store) Has(key string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	var v json.RawMessage
	return s.getLocked(key, &v)
}

// Clear removes every key except preserve.  Preserved values are kept
// sealed as they are and re-cached when they still open.
func (s *Store) Clear(ctx context.Context, preserve ...string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.clearLocked(ctx, preserve...)
}

func (s *Store) clearLocked(ctx context.Context, preserve ...string) {
	keep := make(map[string][]byte, len(preserve))
	for _, k := range preserve {
		if v, ok := s.raw[k]; ok {
			keep[k] = v
		}
	}
	if err := s.backend.Reset(ctx, s.sid, keep); err != nil {
		s.log.Warn("securestore: clear failed", "error", err)
		s.metrics.StorageError("clear")
		return
	}
	s.raw = keep
	s.cache = map[string][]byte{}
	for k, v := range keep {
		if plain, err := s.seal.open(k, v); err == nil {
			s.cache[k] = plain
		}
	}
}

// Touch records user activity.  Writes are throttled unless force is set.
func (s *Store) Touch(ctx context.Context, force bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.touchLocked(ctx, force)
}

func (s *Store) touchLocked(ctx context.Context, force bool) {
	now := s.opts.Now()
	if !force && now.Sub(s.lastActivityWrite) <= s.opts.ActivityThrottle {
		return
	}
	if s.setLocked(ctx, KeyLastActivity, now.UnixMilli()) {
		s.lastActivityWrite = now
	}
}

// LastActivity returns the recorded activity time.
func (s *Store) LastActivity() (time.Time, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.millisLocked(KeyLastActivity)
}

func (s *Store) millisLocked(key string) (time.Time, bool) {
	var ms int64
	if !s.getLocked(key, &ms) {
		return time.Time{}, false
	}
	return time.UnixMilli(ms), true
}

// TimedOut reports whether the idle window has passed since the last
// recorded activity.  A session without any activity counts as timed out.
func (s *Store) TimedOut() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.timedOutLocked()
}

func (s *Store) timedOutLocked() bool {
	last, ok := s.millisLocked(KeyLastActivity)
	if !ok {
		return true
	}
	return s.opts.Now().Sub(last) > s.opts.IdleTimeout
}

// InitResult reports what Init wiped.
type InitResult struct {
	Expired   bool // idle timeout cleared everything
	FreshLoad bool // cold start cleared the draft
}

// Init runs the start-of-session rules: an idle session is wiped, and a
// cold start (no access recorded within the fresh-load window) clears the
// draft unless the confirmation step is showing.
func (s *Store) Init(ctx context.Context, confirmationStep int) InitResult {
	s.mu.Lock()
	defer s.mu.Unlock()

	var res InitResult
	if _, ok := s.millisLocked(KeyLastActivity); !ok {
		s.touchLocked(ctx, true)
	}
	if s.timedOutLocked() {
		s.clearLocked(ctx)
		res.Expired = true
		s.metrics.Expired("idle")
	}

	now := s.opts.Now()
	lastAccess, seen := s.millisLocked(KeyFormLastAccessed)
	s.setLocked(ctx, KeyFormLastAccessed, now.UnixMilli())
	initial := !seen || now.Sub(lastAccess) > s.opts.FreshLoadWindow

	var step int
	onConfirmation := s.getLocked(KeyCurrentStep, &step) && step == confirmationStep
	if initial && !onConfirmation {
		s.clearLocked(ctx, KeyLocale, KeyLastActivity, KeyFormLastAccessed)
		res.FreshLoad = true
		if !res.Expired {
			s.metrics.Expired("fresh_load")
		}
	}
	// A wiped session has no activity left; record the visit itself.
	if res.Expired {
		s.touchLocked(ctx, true)
	}
	return res
}

// ExpireIfIdle wipes the session when the idle window has passed, keeping
// only the activity timestamp and locale, and reports whether it did.
// While a reset is in progress the activity is refreshed instead.
func (s *Store) ExpireIfIdle(ctx context.Context, resetInProgress bool) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.timedOutLocked() {
		return false
	}
	if resetInProgress {
		s.touchLocked(ctx, true)
		return false
	}
	s.clearLocked(ctx, KeyLastActivity, KeyLocale)
	s.metrics.Expired("idle")
	return true
}

// SessionID returns the id the store was opened for.
func (s *Store) SessionID() string { return s.sid }
