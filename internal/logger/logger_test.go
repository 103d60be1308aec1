package logger

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew(t *testing.T) {
	t.Run("should default to info on an unknown level", func(t *testing.T) {
		l, err := New(Config{Level: "chatty"})
		require.NoError(t, err)
		defer l.Close()
		assert.Equal(t, "info", l.GetLevel().String())
	})

	t.Run("should honor the configured level", func(t *testing.T) {
		l, err := New(Config{Level: "debug"})
		require.NoError(t, err)
		defer l.Close()
		assert.Equal(t, "debug", l.GetLevel().String())
	})

	t.Run("should create the log file and its directory", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "logs", "ferroclaw.log")
		l, err := New(Config{Level: "info", File: path})
		require.NoError(t, err)

		l.Info().Str("k", "v").Msg("hello")
		require.NoError(t, l.Close())

		data, err := os.ReadFile(path)
		require.NoError(t, err)
		assert.Contains(t, string(data), "hello")
	})
}
