package wizard

import (
	"errors"
	"sync"
	"time"
)

// ErrTransitioning is returned for navigation attempted while a previous
// transition has not settled.
var ErrTransitioning = errors.New("step transition in progress")

// sequencer guards step navigation.  A transition holds the flag from
// begin until settle has passed after end.
type sequencer struct {
	mu            sync.Mutex
	settle        time.Duration
	transitioning bool
	timer         *time.Timer
}

func newSequencer(settle time.Duration) *sequencer {
	return &sequencer{settle: settle}
}

func (q *sequencer) begin() error {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.transitioning {
		return ErrTransitioning
	}
	q.transitioning = true
	return nil
}

func (q *sequencer) end() {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.settle <= 0 {
		q.transitioning = false
		return
	}
	if q.timer != nil {
		q.timer.Stop()
	}
	q.timer = time.AfterFunc(q.settle, func() {
		q.mu.Lock()
		q.transitioning = false
		q.mu.Unlock()
	})
}

func (q *sequencer) active() bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.transitioning
}

func (q *sequencer) stop() {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.timer != nil {
		q.timer.Stop()
	}
	q.transitioning = false
}
