package memory

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ferroclaw/ferroclaw/pkg/tool"
)

func TestMemoryTools(t *testing.T) {
	store := newTestStore(t)
	registry := tool.NewRegistry(testLogger())
	require.NoError(t, RegisterTools(registry, store))

	dispatcher := tool.NewDispatcher(registry, 0, testLogger())
	ctx := context.Background()

	t.Run("should register all memory tools", func(t *testing.T) {
		assert.Equal(t, []string{"forget", "recall", "remember"}, registry.Names())
	})

	t.Run("should remember and recall by exact key", func(t *testing.T) {
		outcome := dispatcher.Dispatch(ctx, "remember", map[string]any{
			"key":   "owner_name",
			"value": "Harun",
		})
		require.Equal(t, tool.StatusSuccess, outcome.Status)

		outcome = dispatcher.Dispatch(ctx, "recall", map[string]any{"query": "owner_name"})
		require.Equal(t, tool.StatusSuccess, outcome.Status)
		assert.Contains(t, outcome.Output, "Harun")
	})

	t.Run("should recall by substring search", func(t *testing.T) {
		_ = dispatcher.Dispatch(ctx, "remember", map[string]any{"key": "favorite_color", "value": "blue"})
		_ = dispatcher.Dispatch(ctx, "remember", map[string]any{"key": "favorite_food", "value": "nasi goreng"})

		outcome := dispatcher.Dispatch(ctx, "recall", map[string]any{"query": "favorite"})
		require.Equal(t, tool.StatusSuccess, outcome.Status)
		assert.Contains(t, outcome.Output, "blue")
		assert.Contains(t, outcome.Output, "nasi goreng")
	})

	t.Run("should answer gracefully when nothing matches", func(t *testing.T) {
		outcome := dispatcher.Dispatch(ctx, "recall", map[string]any{"query": "never stored"})
		require.Equal(t, tool.StatusSuccess, outcome.Status)
		assert.Contains(t, outcome.Output, "nothing remembered")
	})

	t.Run("should forget a fact", func(t *testing.T) {
		_ = dispatcher.Dispatch(ctx, "remember", map[string]any{"key": "temp", "value": "x"})
		outcome := dispatcher.Dispatch(ctx, "forget", map[string]any{"key": "temp"})
		require.Equal(t, tool.StatusSuccess, outcome.Status)

		outcome = dispatcher.Dispatch(ctx, "recall", map[string]any{"query": "temp"})
		assert.Contains(t, outcome.Output, "nothing remembered")
	})

	t.Run("should reject missing arguments via schema validation", func(t *testing.T) {
		outcome := dispatcher.Dispatch(ctx, "remember", map[string]any{"key": "only-key"})
		assert.Equal(t, tool.StatusFailure, outcome.Status)
	})
}
