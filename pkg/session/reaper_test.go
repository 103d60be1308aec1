package session

import (
	"context"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func quietLogger() zerolog.Logger {
	return zerolog.New(os.Stdout).Level(zerolog.Disabled)
}

func TestEvictIdle(t *testing.T) {
	t.Run("should evict sessions past the idle cutoff", func(t *testing.T) {
		s := New(Config{Logger: quietLogger()})
		require.NoError(t, s.Append(context.Background(), "old", Message{Role: RoleUser, Content: "hi"}))
		require.NoError(t, s.Append(context.Background(), "fresh", Message{Role: RoleUser, Content: "hi"}))

		s.mu.Lock()
		s.sessions["old"].lastActiveAt = time.Now().Add(-48 * time.Hour)
		s.mu.Unlock()

		evicted := s.EvictIdle(24 * time.Hour)
		assert.Equal(t, 1, evicted)
		assert.Equal(t, []string{"fresh"}, s.IDs())
	})

	t.Run("should never evict a session with an active run", func(t *testing.T) {
		s := New(Config{Logger: quietLogger()})
		require.NoError(t, s.Append(context.Background(), "busy", Message{Role: RoleUser, Content: "hi"}))
		require.NoError(t, s.BeginRun("busy"))
		defer s.EndRun("busy")

		s.mu.Lock()
		s.sessions["busy"].lastActiveAt = time.Now().Add(-48 * time.Hour)
		s.mu.Unlock()

		assert.Equal(t, 0, s.EvictIdle(24*time.Hour))
		assert.Equal(t, 1, s.Len())
	})
}

func TestReaperLifecycle(t *testing.T) {
	t.Run("should reject double start and double stop", func(t *testing.T) {
		r := NewReaper(New(Config{Logger: quietLogger()}), time.Hour)
		require.NoError(t, r.Start())
		assert.Error(t, r.Start())
		require.NoError(t, r.Stop())
		assert.Error(t, r.Stop())
	})

	t.Run("should support restart after stop", func(t *testing.T) {
		r := NewReaper(New(Config{Logger: quietLogger()}), time.Hour)
		require.NoError(t, r.Start())
		require.NoError(t, r.Stop())
		require.NoError(t, r.Start())
		require.NoError(t, r.Stop())
	})

	t.Run("should tolerate concurrent start and stop calls", func(t *testing.T) {
		r := NewReaper(New(Config{Logger: quietLogger()}), time.Hour)

		var wg sync.WaitGroup
		for i := 0; i < 8; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				if r.Start() == nil {
					_ = r.Stop()
				}
			}()
		}
		wg.Wait()

		// Whatever interleaving happened, the reaper ends up stopped and
		// startable again.
		require.NoError(t, r.Start())
		require.NoError(t, r.Stop())
	})
}
