package session

import (
	"fmt"
	"sync"
	"time"
)

// DefaultMaxIdle is how long a session may sit inactive before eviction.
const DefaultMaxIdle = 7 * 24 * time.Hour

// Reaper periodically evicts idle sessions from the in-process store. The
// archived copy is untouched, so an evicted session can be warmed back in.
type Reaper struct {
	store    *Store
	maxIdle  time.Duration
	interval time.Duration

	mu      sync.Mutex
	stopCh  chan struct{}
	running bool
}

// NewReaper creates a reaper over the store. A zero maxIdle falls back to
// DefaultMaxIdle.
func NewReaper(store *Store, maxIdle time.Duration) *Reaper {
	if maxIdle <= 0 {
		maxIdle = DefaultMaxIdle
	}
	return &Reaper{
		store:    store,
		maxIdle:  maxIdle,
		interval: time.Hour,
	}
}

// Start begins the background sweep. A stopped reaper can be started again.
func (r *Reaper) Start() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.running {
		return fmt.Errorf("reaper is already running")
	}
	r.running = true
	r.stopCh = make(chan struct{})
	go r.run(r.stopCh)
	return nil
}

// Stop ends the background sweep.
func (r *Reaper) Stop() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if !r.running {
		return fmt.Errorf("reaper is not running")
	}
	r.running = false
	close(r.stopCh)
	return nil
}

func (r *Reaper) run(stopCh <-chan struct{}) {
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			evicted := r.store.EvictIdle(r.maxIdle)
			if evicted > 0 {
				r.store.logger.Info().Int("evicted", evicted).Msg("Idle sessions evicted")
			}
		case <-stopCh:
			return
		}
	}
}

// EvictIdle removes sessions inactive for longer than maxIdle, skipping any
// with an active run, and returns how many were removed.
func (s *Store) EvictIdle(maxIdle time.Duration) int {
	cutoff := time.Now().Add(-maxIdle)

	s.mu.Lock()
	defer s.mu.Unlock()

	evicted := 0
	for id, st := range s.sessions {
		if st.running || st.lastActiveAt.After(cutoff) {
			continue
		}
		delete(s.sessions, id)
		evicted++
	}
	return evicted
}
