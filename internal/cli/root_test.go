package cli

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRootCmd(t *testing.T) {
	t.Run("should expose the expected subcommands", func(t *testing.T) {
		names := make(map[string]bool)
		for _, cmd := range GetRootCmd().Commands() {
			names[cmd.Name()] = true
		}
		assert.True(t, names["chat"])
		assert.True(t, names["ask"])
	})

	t.Run("should carry the config flag", func(t *testing.T) {
		flag := GetRootCmd().PersistentFlags().Lookup("config")
		require.NotNil(t, flag)
	})
}

func TestFirstPositive(t *testing.T) {
	assert.Equal(t, 5, firstPositive(0, 5, 9))
	assert.Equal(t, 3, firstPositive(3))
	assert.Equal(t, 0, firstPositive(0, 0))
}
