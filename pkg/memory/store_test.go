package memory

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ferroclaw/ferroclaw/pkg/session"
)

func testLogger() zerolog.Logger {
	return zerolog.New(os.Stdout).Level(zerolog.Disabled)
}

func newTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "memory.db"), testLogger())
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func TestHistory(t *testing.T) {
	t.Run("should round-trip messages in order", func(t *testing.T) {
		s := newTestStore(t)
		ctx := context.Background()

		base := time.Now().UTC().Truncate(time.Millisecond)
		msgs := []session.Message{
			{Role: session.RoleUser, Content: "first", Timestamp: base},
			{Role: session.RoleTool, Content: "42", ToolName: "calc", ToolCallID: "c1", Timestamp: base.Add(time.Second)},
			{Role: session.RoleAssistant, Content: "second", Timestamp: base.Add(2 * time.Second)},
		}
		for _, msg := range msgs {
			require.NoError(t, s.Append(ctx, "sess", msg))
		}

		got, err := s.Recent(ctx, "sess", 10)
		require.NoError(t, err)
		require.Len(t, got, 3)
		assert.Equal(t, "first", got[0].Content)
		assert.Equal(t, session.RoleTool, got[1].Role)
		assert.Equal(t, "calc", got[1].ToolName)
		assert.Equal(t, "c1", got[1].ToolCallID)
		assert.Equal(t, "second", got[2].Content)
		assert.True(t, got[0].Timestamp.Equal(base))
	})

	t.Run("should return only the most recent messages", func(t *testing.T) {
		s := newTestStore(t)
		ctx := context.Background()

		for i := 0; i < 5; i++ {
			require.NoError(t, s.Append(ctx, "sess", session.Message{
				Role:      session.RoleUser,
				Content:   string(rune('a' + i)),
				Timestamp: time.Now(),
			}))
		}

		got, err := s.Recent(ctx, "sess", 2)
		require.NoError(t, err)
		require.Len(t, got, 2)
		assert.Equal(t, "d", got[0].Content)
		assert.Equal(t, "e", got[1].Content)
	})

	t.Run("should isolate sessions", func(t *testing.T) {
		s := newTestStore(t)
		ctx := context.Background()

		require.NoError(t, s.Append(ctx, "a", session.Message{Role: session.RoleUser, Content: "for a", Timestamp: time.Now()}))
		require.NoError(t, s.Append(ctx, "b", session.Message{Role: session.RoleUser, Content: "for b", Timestamp: time.Now()}))

		got, err := s.Recent(ctx, "a", 10)
		require.NoError(t, err)
		require.Len(t, got, 1)
		assert.Equal(t, "for a", got[0].Content)
	})

	t.Run("should return nothing for an unknown session or zero limit", func(t *testing.T) {
		s := newTestStore(t)

		got, err := s.Recent(context.Background(), "ghost", 10)
		require.NoError(t, err)
		assert.Empty(t, got)

		got, err = s.Recent(context.Background(), "ghost", 0)
		require.NoError(t, err)
		assert.Empty(t, got)
	})
}

func TestFacts(t *testing.T) {
	t.Run("should save and get a fact", func(t *testing.T) {
		s := newTestStore(t)
		ctx := context.Background()

		require.NoError(t, s.SaveFact(ctx, "owner_name", "Harun"))
		fact, err := s.GetFact(ctx, "owner_name")
		require.NoError(t, err)
		assert.Equal(t, "Harun", fact.Value)
		assert.False(t, fact.UpdatedAt.IsZero())
	})

	t.Run("should overwrite on duplicate key", func(t *testing.T) {
		s := newTestStore(t)
		ctx := context.Background()

		require.NoError(t, s.SaveFact(ctx, "tz", "UTC"))
		require.NoError(t, s.SaveFact(ctx, "tz", "Asia/Jakarta"))

		fact, err := s.GetFact(ctx, "tz")
		require.NoError(t, err)
		assert.Equal(t, "Asia/Jakarta", fact.Value)
	})

	t.Run("should report missing keys", func(t *testing.T) {
		s := newTestStore(t)
		_, err := s.GetFact(context.Background(), "nope")
		assert.ErrorIs(t, err, ErrFactNotFound)
	})

	t.Run("should reject empty keys", func(t *testing.T) {
		s := newTestStore(t)
		assert.Error(t, s.SaveFact(context.Background(), "", "x"))
	})

	t.Run("should search by key and value substrings", func(t *testing.T) {
		s := newTestStore(t)
		ctx := context.Background()

		require.NoError(t, s.SaveFact(ctx, "favorite_color", "blue"))
		require.NoError(t, s.SaveFact(ctx, "favorite_food", "nasi goreng"))
		require.NoError(t, s.SaveFact(ctx, "birthday", "march 3"))

		facts, err := s.SearchFacts(ctx, "favorite", 10)
		require.NoError(t, err)
		assert.Len(t, facts, 2)

		facts, err = s.SearchFacts(ctx, "goreng", 10)
		require.NoError(t, err)
		require.Len(t, facts, 1)
		assert.Equal(t, "favorite_food", facts[0].Key)
	})

	t.Run("should delete facts idempotently", func(t *testing.T) {
		s := newTestStore(t)
		ctx := context.Background()

		require.NoError(t, s.SaveFact(ctx, "gone", "soon"))
		require.NoError(t, s.DeleteFact(ctx, "gone"))
		require.NoError(t, s.DeleteFact(ctx, "gone"))

		_, err := s.GetFact(ctx, "gone")
		assert.ErrorIs(t, err, ErrFactNotFound)
	})
}

func TestStoreAsArchiver(t *testing.T) {
	t.Run("should warm a session store from the archive", func(t *testing.T) {
		s := newTestStore(t)
		ctx := context.Background()

		require.NoError(t, s.Append(ctx, "sess", session.Message{
			Role: session.RoleUser, Content: "earlier conversation", Timestamp: time.Now(),
		}))

		sessions := session.New(session.Config{Archiver: s, Logger: testLogger()})
		require.NoError(t, sessions.Warm(ctx, "sess", 50))

		msgs := sessions.Messages("sess")
		require.Len(t, msgs, 1)
		assert.Equal(t, "earlier conversation", msgs[0].Content)
	})
}
