package wizard

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/iliyamo/screening-license/internal/formstate"
	"github.com/iliyamo/screening-license/internal/securestore"
)

// Config holds the per-session settings of a Registry.
type Config struct {
	Backend       securestore.Backend
	Secret        []byte
	Storage       securestore.Options
	Form          formstate.Options
	SettleDelay   time.Duration // default 500ms, negative disables
	SweepInterval time.Duration // default 1m
}

// Registry keeps live sessions in memory.  A session missing from memory
// is reopened from its sealed storage.
type Registry struct {
	cfg  Config
	deps Deps

	mu       sync.Mutex
	sessions map[string]*Session
}

func NewRegistry(cfg Config, deps Deps) *Registry {
	if cfg.Backend == nil || len(cfg.Secret) == 0 {
		panic("wizard.NewRegistry: storage backend and secret are required")
	}
	if deps.Records == nil || deps.Bundle == nil || deps.Log == nil {
		panic("wizard.NewRegistry: nil dependency")
	}
	if !deps.Kind.Valid() {
		panic("wizard.NewRegistry: invalid record kind " + string(deps.Kind))
	}
	if deps.Now == nil {
		deps.Now = time.Now
	}
	if cfg.SettleDelay == 0 {
		cfg.SettleDelay = 500 * time.Millisecond
	}
	if cfg.SweepInterval <= 0 {
		cfg.SweepInterval = time.Minute
	}
	if cfg.Form.Now == nil {
		cfg.Form.Now = deps.Now
	}
	if cfg.Storage.Now == nil {
		cfg.Storage.Now = deps.Now
	}
	return &Registry{cfg: cfg, deps: deps, sessions: make(map[string]*Session)}
}

// NewSessionID returns a fresh random session id.
func NewSessionID() string { return uuid.NewString() }

// Start opens sid for a page load: the idle and cold-start rules run
// before the draft is hydrated.  langs seed the locale of a session that
// has none stored.
func (r *Registry) Start(ctx context.Context, sid string, langs ...string) (*Session, securestore.InitResult, error) {
	r.mu.Lock()
	if old := r.sessions[sid]; old != nil {
		delete(r.sessions, sid)
		r.mu.Unlock()
		old.close()
	} else {
		r.mu.Unlock()
	}

	local, err := r.openLocal(ctx, sid)
	if err != nil {
		return nil, securestore.InitResult{}, err
	}
	ir := local.Init(ctx, formstate.ConfirmationStep)
	var stored string
	if !local.Get(ctx, securestore.KeyLocale, &stored) || !r.deps.Bundle.Has(stored) {
		local.Set(ctx, securestore.KeyLocale, r.deps.Bundle.Match(langs...))
	}

	s := r.newSession(ctx, sid, local)
	r.mu.Lock()
	r.sessions[sid] = s
	r.mu.Unlock()
	s.log.Info("session started", "expired", ir.Expired, "fresh_load", ir.FreshLoad)
	return s, ir, nil
}

// Get returns the session for sid, applying the idle timeout and counting
// the call as activity.
func (r *Registry) Get(ctx context.Context, sid string) (*Session, error) {
	if sid == "" {
		return nil, errors.New("wizard: empty session id")
	}
	r.mu.Lock()
	s := r.sessions[sid]
	r.mu.Unlock()

	if s == nil {
		local, err := r.openLocal(ctx, sid)
		if err != nil {
			return nil, err
		}
		fresh := r.newSession(ctx, sid, local)
		r.mu.Lock()
		if s = r.sessions[sid]; s == nil {
			s = fresh
			r.sessions[sid] = s
		}
		r.mu.Unlock()
		if s != fresh {
			fresh.close()
		}
	}
	s.checkIdle(ctx)
	s.Activity(ctx)
	return s, nil
}

// Sweep expires idle sessions and drops them from memory.
func (r *Registry) Sweep(ctx context.Context) int {
	r.mu.Lock()
	all := make([]*Session, 0, len(r.sessions))
	for _, s := range r.sessions {
		all = append(all, s)
	}
	r.mu.Unlock()

	n := 0
	for _, s := range all {
		if !s.checkIdle(ctx) {
			continue
		}
		n++
		r.mu.Lock()
		if r.sessions[s.id] == s {
			delete(r.sessions, s.id)
		}
		r.mu.Unlock()
		s.close()
	}
	return n
}

// Run sweeps on an interval until ctx is done, then flushes every
// session.
func (r *Registry) Run(ctx context.Context) {
	t := time.NewTicker(r.cfg.SweepInterval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			r.Close()
			return
		case <-t.C:
			if n := r.Sweep(ctx); n > 0 {
				r.deps.Log.Info("idle sessions expired", "count", n)
			}
		}
	}
}

// Close flushes pending drafts and forgets every session.
func (r *Registry) Close() {
	r.mu.Lock()
	all := r.sessions
	r.sessions = make(map[string]*Session)
	r.mu.Unlock()
	for _, s := range all {
		s.close()
	}
}

func (r *Registry) openLocal(ctx context.Context, sid string) (*securestore.Store, error) {
	return securestore.Open(ctx, r.cfg.Backend, r.cfg.Secret, sid, r.cfg.Storage, r.deps.Log, r.deps.Metrics)
}

func (r *Registry) newSession(ctx context.Context, sid string, local *securestore.Store) *Session {
	log := r.deps.Log.With("session_id", sid)
	return &Session{
		id:    sid,
		deps:  &r.deps,
		local: local,
		form:  formstate.New(ctx, local, r.cfg.Form, log),
		seq:   newSequencer(r.cfg.SettleDelay),
		log:   log,
	}
}

func (s *Session) close() {
	s.seq.stop()
	s.form.Close()
}
