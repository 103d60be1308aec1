package skills

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testLogger() zerolog.Logger {
	return zerolog.New(os.Stdout).Level(zerolog.Disabled)
}

func writeSkill(t *testing.T, dir, name, content string) {
	t.Helper()
	require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644))
}

const codingSkill = `---
title: Coding Assistant
description: Help with programming tasks.
---

# Coding Assistant

Read the existing code before changing it.
`

func TestLoad(t *testing.T) {
	t.Run("should load skills with frontmatter", func(t *testing.T) {
		dir := t.TempDir()
		writeSkill(t, dir, "coding.md", codingSkill)

		lib := NewLibrary(dir, testLogger())
		n, err := lib.Load()
		require.NoError(t, err)
		assert.Equal(t, 1, n)

		skill, ok := lib.Get("coding")
		require.True(t, ok)
		assert.Equal(t, "Coding Assistant", skill.Title)
		assert.Equal(t, "Help with programming tasks.", skill.Description)
		assert.Contains(t, skill.Content, "Read the existing code")
		assert.NotContains(t, skill.Content, "title:")
	})

	t.Run("should fall back to the filename without frontmatter", func(t *testing.T) {
		dir := t.TempDir()
		writeSkill(t, dir, "daily_report.md", "# Daily Report\n\nSummarize the day.")

		lib := NewLibrary(dir, testLogger())
		_, err := lib.Load()
		require.NoError(t, err)

		skill, ok := lib.Get("daily_report")
		require.True(t, ok)
		assert.Equal(t, "daily report", skill.Title)
		assert.Contains(t, skill.Content, "Summarize the day")
	})

	t.Run("should ignore non-markdown files and subdirectories", func(t *testing.T) {
		dir := t.TempDir()
		writeSkill(t, dir, "real.md", "content")
		writeSkill(t, dir, "notes.txt", "not a skill")
		require.NoError(t, os.Mkdir(filepath.Join(dir, "nested"), 0o755))

		lib := NewLibrary(dir, testLogger())
		n, err := lib.Load()
		require.NoError(t, err)
		assert.Equal(t, 1, n)
	})

	t.Run("should load zero skills from a missing directory", func(t *testing.T) {
		lib := NewLibrary(filepath.Join(t.TempDir(), "absent"), testLogger())
		n, err := lib.Load()
		require.NoError(t, err)
		assert.Equal(t, 0, n)
	})

	t.Run("should replace the set on reload", func(t *testing.T) {
		dir := t.TempDir()
		writeSkill(t, dir, "old.md", "old")

		lib := NewLibrary(dir, testLogger())
		_, err := lib.Load()
		require.NoError(t, err)

		require.NoError(t, os.Remove(filepath.Join(dir, "old.md")))
		writeSkill(t, dir, "new.md", "new")
		_, err = lib.Load()
		require.NoError(t, err)

		_, ok := lib.Get("old")
		assert.False(t, ok)
		_, ok = lib.Get("new")
		assert.True(t, ok)
		assert.Equal(t, []string{"new"}, lib.Names())
	})
}

func TestBuildPrompt(t *testing.T) {
	dir := t.TempDir()
	writeSkill(t, dir, "coding.md", codingSkill)
	writeSkill(t, dir, "writing.md", "---\ntitle: Writing\n---\n\nWrite plainly.")

	lib := NewLibrary(dir, testLogger())
	_, err := lib.Load()
	require.NoError(t, err)

	t.Run("should concatenate active skills in the given order", func(t *testing.T) {
		prompt := lib.BuildPrompt([]string{"writing", "coding"})
		assert.Contains(t, prompt, "## Skill: Writing")
		assert.Contains(t, prompt, "## Skill: Coding Assistant")
		assert.Less(t,
			strings.Index(prompt, "Writing"),
			strings.Index(prompt, "Coding Assistant"),
		)
	})

	t.Run("should skip unknown names", func(t *testing.T) {
		prompt := lib.BuildPrompt([]string{"ghost", "coding"})
		assert.Contains(t, prompt, "Coding Assistant")
		assert.NotContains(t, prompt, "ghost")
	})

	t.Run("should return empty for no active skills", func(t *testing.T) {
		assert.Empty(t, lib.BuildPrompt(nil))
	})
}

func TestParseFrontmatter(t *testing.T) {
	t.Run("should return the raw file when the block is unterminated", func(t *testing.T) {
		raw := "---\ntitle: broken\nno closing fence"
		fm, body := parseFrontmatter(raw)
		assert.Empty(t, fm.Title)
		assert.Equal(t, raw, body)
	})

	t.Run("should return the raw file on invalid yaml", func(t *testing.T) {
		raw := "---\n[not yaml\n---\nbody"
		fm, body := parseFrontmatter(raw)
		assert.Empty(t, fm.Title)
		assert.Equal(t, raw, body)
	})
}

func TestWatcher(t *testing.T) {
	t.Run("should reload after a file change", func(t *testing.T) {
		dir := t.TempDir()
		lib := NewLibrary(dir, testLogger())
		_, err := lib.Load()
		require.NoError(t, err)

		w, err := NewWatcher(lib, testLogger())
		require.NoError(t, err)
		defer w.Stop()

		writeSkill(t, dir, "fresh.md", "---\ntitle: Fresh\n---\n\nbody")

		require.Eventually(t, func() bool {
			_, ok := lib.Get("fresh")
			return ok
		}, 3*time.Second, 50*time.Millisecond)
	})

	t.Run("should not reload after stop even with a pending debounce", func(t *testing.T) {
		dir := t.TempDir()
		writeSkill(t, dir, "first.md", "---\ntitle: First\n---\n\nbody")

		lib := NewLibrary(dir, testLogger())
		_, err := lib.Load()
		require.NoError(t, err)
		require.Len(t, lib.Names(), 1)

		w, err := NewWatcher(lib, testLogger())
		require.NoError(t, err)

		// Arm the debounce directly, then stop before it can fire.
		writeSkill(t, dir, "second.md", "---\ntitle: Second\n---\n\nbody")
		w.scheduleReload()
		require.NoError(t, w.Stop())

		time.Sleep(w.debounce + 200*time.Millisecond)
		assert.Equal(t, []string{"first"}, lib.Names())
	})
}
