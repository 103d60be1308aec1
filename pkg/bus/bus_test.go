package bus

import (
	"os"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testLogger() zerolog.Logger {
	return zerolog.New(os.Stdout).Level(zerolog.Disabled)
}

func TestPublishSubscribe(t *testing.T) {
	t.Run("should deliver events to all subscribers", func(t *testing.T) {
		b := New(8, testLogger())

		sub1 := b.Subscribe()
		sub2 := b.Subscribe()
		defer sub1.Close()
		defer sub2.Close()

		b.Emit(KindStatusText, "s1", map[string]any{"text": "working"})

		for _, sub := range []*Subscription{sub1, sub2} {
			select {
			case evt := <-sub.Events():
				assert.Equal(t, KindStatusText, evt.Kind)
				assert.Equal(t, "s1", evt.SessionID)
				assert.Equal(t, "working", evt.Payload["text"])
				assert.NotEmpty(t, evt.ID)
				assert.False(t, evt.Timestamp.IsZero())
			case <-time.After(time.Second):
				t.Fatal("event not delivered")
			}
		}
	})

	t.Run("should filter by kind", func(t *testing.T) {
		b := New(8, testLogger())

		sub := b.Subscribe(KindResult)
		defer sub.Close()

		b.Emit(KindAgentThink, "s1", map[string]any{"iteration": 1})
		b.Emit(KindResult, "s1", map[string]any{"text": "done"})

		select {
		case evt := <-sub.Events():
			assert.Equal(t, KindResult, evt.Kind)
		case <-time.After(time.Second):
			t.Fatal("event not delivered")
		}

		select {
		case evt, ok := <-sub.Events():
			if ok {
				t.Fatalf("unexpected extra event: %v", evt.Kind)
			}
		default:
		}
	})

	t.Run("should deliver to zero subscribers without error", func(t *testing.T) {
		b := New(8, testLogger())
		b.Emit(KindError, "s1", nil)
		assert.Equal(t, uint64(0), b.Dropped())
	})
}

func TestSlowSubscriber(t *testing.T) {
	t.Run("should drop events instead of blocking", func(t *testing.T) {
		b := New(2, testLogger())

		sub := b.Subscribe()
		defer sub.Close()

		done := make(chan struct{})
		go func() {
			for i := 0; i < 10; i++ {
				b.Emit(KindStatusText, "s1", nil)
			}
			close(done)
		}()

		select {
		case <-done:
		case <-time.After(time.Second):
			t.Fatal("publish blocked on slow subscriber")
		}

		assert.Equal(t, uint64(8), b.Dropped())
	})
}

func TestSubscriptionClose(t *testing.T) {
	t.Run("should detach subscriber", func(t *testing.T) {
		b := New(8, testLogger())

		sub := b.Subscribe()
		require.Equal(t, 1, b.SubscriberCount())

		sub.Close()
		assert.Equal(t, 0, b.SubscriberCount())

		// Publishing after close must not panic.
		b.Emit(KindResult, "s1", nil)
	})

	t.Run("should be safe to close twice", func(t *testing.T) {
		b := New(8, testLogger())
		sub := b.Subscribe()
		sub.Close()
		sub.Close()
	})

	t.Run("should close the event channel", func(t *testing.T) {
		b := New(8, testLogger())
		sub := b.Subscribe()
		sub.Close()

		_, ok := <-sub.Events()
		assert.False(t, ok)
	})
}

func TestConcurrentPublishAndSubscribe(t *testing.T) {
	t.Run("should survive subscribers joining and leaving mid-stream", func(t *testing.T) {
		b := New(16, testLogger())

		stop := make(chan struct{})
		go func() {
			for {
				select {
				case <-stop:
					return
				default:
					b.Emit(KindAgentThink, "s1", map[string]any{"iteration": 1})
				}
			}
		}()

		for i := 0; i < 50; i++ {
			sub := b.Subscribe()
			// Drain a little, then leave.
			select {
			case <-sub.Events():
			case <-time.After(10 * time.Millisecond):
			}
			sub.Close()
		}
		close(stop)

		assert.Equal(t, 0, b.SubscriberCount())
	})
}
