package bus

import (
	"sync"
	"sync/atomic"

	"github.com/rs/zerolog"
)

// DefaultBufferSize is the per-subscriber channel capacity.
const DefaultBufferSize = 256

// Bus is the process-wide publish/subscribe fabric for lifecycle events.
//
// Publishing never blocks on a slow subscriber: each subscription owns a
// buffered channel and events are dropped (and counted) when that buffer is
// full. The subscriber set is only locked while it is copied, never while
// events are delivered.
type Bus struct {
	mu      sync.Mutex
	subs    map[uint64]*Subscription
	nextID  uint64
	buffer  int
	dropped atomic.Uint64
	logger  zerolog.Logger
}

// Subscription is one independent consumer of the event stream.
type Subscription struct {
	id    uint64
	ch    chan Event
	kinds map[Kind]struct{} // nil means all kinds
	bus   *Bus

	mu     sync.Mutex
	done   bool
	closed sync.Once
}

// New creates an event bus with the given per-subscriber buffer size.
func New(buffer int, logger zerolog.Logger) *Bus {
	if buffer <= 0 {
		buffer = DefaultBufferSize
	}
	return &Bus{
		subs:   make(map[uint64]*Subscription),
		buffer: buffer,
		logger: logger,
	}
}

// Subscribe registers a new consumer. With no kinds given, the subscription
// receives every event; otherwise only the listed kinds. Subscriptions may be
// added at any time, including mid-run.
func (b *Bus) Subscribe(kinds ...Kind) *Subscription {
	sub := &Subscription{
		ch:  make(chan Event, b.buffer),
		bus: b,
	}
	if len(kinds) > 0 {
		sub.kinds = make(map[Kind]struct{}, len(kinds))
		for _, k := range kinds {
			sub.kinds[k] = struct{}{}
		}
	}

	b.mu.Lock()
	b.nextID++
	sub.id = b.nextID
	b.subs[sub.id] = sub
	b.mu.Unlock()

	return sub
}

// Events returns the subscription's receive channel. It is closed when the
// subscription is cancelled.
func (s *Subscription) Events() <-chan Event {
	return s.ch
}

// Close detaches the subscription from the bus and closes its channel.
// Safe to call more than once.
func (s *Subscription) Close() {
	s.closed.Do(func() {
		s.bus.mu.Lock()
		delete(s.bus.subs, s.id)
		s.bus.mu.Unlock()

		s.mu.Lock()
		s.done = true
		close(s.ch)
		s.mu.Unlock()
	})
}

func (s *Subscription) wants(kind Kind) bool {
	if s.kinds == nil {
		return true
	}
	_, ok := s.kinds[kind]
	return ok
}

// Publish delivers an event to every matching subscriber without blocking.
// Events for full subscriber buffers are dropped and counted.
func (b *Bus) Publish(evt Event) {
	b.mu.Lock()
	targets := make([]*Subscription, 0, len(b.subs))
	for _, sub := range b.subs {
		if sub.wants(evt.Kind) {
			targets = append(targets, sub)
		}
	}
	b.mu.Unlock()

	for _, sub := range targets {
		if !sub.trySend(evt) {
			b.dropped.Add(1)
			b.logger.Warn().
				Str("kind", string(evt.Kind)).
				Str("session_id", evt.SessionID).
				Msg("Dropping event for slow subscriber")
		}
	}
}

// trySend delivers without blocking. A subscription that closed between the
// snapshot and delivery just discards the event.
func (s *Subscription) trySend(evt Event) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.done {
		return true
	}
	select {
	case s.ch <- evt:
		return true
	default:
		return false
	}
}

// Emit is a convenience wrapper that builds and publishes an event.
func (b *Bus) Emit(kind Kind, sessionID string, payload map[string]any) {
	b.Publish(NewEvent(kind, sessionID, payload))
}

// Dropped reports how many events were discarded because a subscriber's
// buffer was full.
func (b *Bus) Dropped() uint64 {
	return b.dropped.Load()
}

// SubscriberCount reports the number of attached subscriptions.
func (b *Bus) SubscriberCount() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.subs)
}
