// Package catalog serves the film title search used by the films step and
// proxies catalog poster images.
package catalog

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/cenkalti/backoff/v5"

	"github.com/iliyamo/screening-license/internal/metrics"
	"github.com/iliyamo/screening-license/internal/model"
	"github.com/iliyamo/screening-license/pkg/logger"
)

const (
	MinQueryLength = 2
	ResultLimit    = 50
)

// ErrSuperseded is returned to a session search replaced by a newer one
// before it finished.
var ErrSuperseded = errors.New("search superseded")

// ErrSearchFailed is returned once every attempt has failed.
var ErrSearchFailed = errors.New("search failed")

// Titles is the catalog storage.  *repository.CatalogRepo satisfies it.
type Titles interface {
	SearchPrefix(ctx context.Context, prefix, mediaType string, limit int) ([]model.CatalogTitle, error)
}

type SearchOptions struct {
	Attempts   uint          // default 3
	RetryDelay time.Duration // first retry delay, doubled each time; default 1s
	Debounce   time.Duration // per-session quiet period; default 300ms, negative disables
	MediaType  string        // default DIGITAL_DOWNLOAD
}

// Searcher runs prefix searches over normalized titles.
type Searcher struct {
	titles  Titles
	opts    SearchOptions
	log     logger.Logger
	metrics *metrics.Metrics

	mu      sync.Mutex
	pending map[string]*pendingSearch
}

type pendingSearch struct {
	cancel context.CancelCauseFunc
}

func NewSearcher(titles Titles, opts SearchOptions, log logger.Logger, m *metrics.Metrics) *Searcher {
	if titles == nil || log == nil {
		panic("catalog.NewSearcher: nil dependency")
	}
	if opts.Attempts == 0 {
		opts.Attempts = 3
	}
	if opts.RetryDelay == 0 {
		opts.RetryDelay = time.Second
	}
	if opts.Debounce == 0 {
		opts.Debounce = 300 * time.Millisecond
	}
	if opts.MediaType == "" {
		opts.MediaType = model.MediaDigitalDownload
	}
	return &Searcher{titles: titles, opts: opts, log: log, metrics: m, pending: make(map[string]*pendingSearch)}
}

// Normalize lowercases q, trims it and collapses inner whitespace.
func Normalize(q string) string {
	return strings.Join(strings.Fields(strings.ToLower(q)), " ")
}

// Search returns up to ResultLimit titles whose normalized title starts
// with the normalized query.  Queries shorter than MinQueryLength return
// an empty list without touching storage.
func (s *Searcher) Search(ctx context.Context, q string) ([]model.CatalogTitle, error) {
	norm := Normalize(q)
	if utf8.RuneCountInString(norm) < MinQueryLength {
		return []model.CatalogTitle{}, nil
	}

	start := time.Now()
	defer func() { s.metrics.ObserveSearch(time.Since(start).Seconds()) }()

	b := backoff.NewExponentialBackOff()
	b.InitialInterval = s.opts.RetryDelay
	b.Multiplier = 2
	b.RandomizationFactor = 0

	items, err := backoff.Retry(ctx, func() ([]model.CatalogTitle, error) {
		items, err := s.titles.SearchPrefix(ctx, norm, s.opts.MediaType, ResultLimit)
		if err != nil && ctx.Err() != nil {
			return nil, backoff.Permanent(err)
		}
		return items, err
	},
		backoff.WithBackOff(b),
		backoff.WithMaxTries(s.opts.Attempts),
		backoff.WithNotify(func(err error, d time.Duration) {
			s.log.Warn("catalog search attempt failed", "error", err, "retry_in", d.String())
		}),
	)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		s.log.Error("catalog search failed", "error", err)
		return nil, ErrSearchFailed
	}
	if items == nil {
		items = []model.CatalogTitle{}
	}
	return items, nil
}

// SearchSession debounces searches per session.  A new call for sid aborts
// the one still waiting or running, which then returns ErrSuperseded.
func (s *Searcher) SearchSession(ctx context.Context, sid, q string) ([]model.CatalogTitle, error) {
	ctx, cancel := context.WithCancelCause(ctx)
	defer cancel(nil)
	me := &pendingSearch{cancel: cancel}

	s.mu.Lock()
	if prev := s.pending[sid]; prev != nil {
		prev.cancel(ErrSuperseded)
	}
	s.pending[sid] = me
	s.mu.Unlock()

	defer func() {
		s.mu.Lock()
		if s.pending[sid] == me {
			delete(s.pending, sid)
		}
		s.mu.Unlock()
	}()

	if s.opts.Debounce > 0 {
		t := time.NewTimer(s.opts.Debounce)
		select {
		case <-ctx.Done():
			t.Stop()
			return nil, superseded(ctx)
		case <-t.C:
		}
	}
	items, err := s.Search(ctx, q)
	if err != nil && ctx.Err() != nil {
		return nil, superseded(ctx)
	}
	return items, err
}

func superseded(ctx context.Context) error {
	if errors.Is(context.Cause(ctx), ErrSuperseded) {
		return ErrSuperseded
	}
	return ctx.Err()
}
