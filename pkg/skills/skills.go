// Package skills loads markdown behavior extensions. A skill is a markdown
// file with optional YAML frontmatter; its body is merged into the system
// prompt of runs that have the skill active.
package skills

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/rs/zerolog"
	"gopkg.in/yaml.v3"
)

// Skill is one loaded behavior extension.
type Skill struct {
	// Name is the filename without the .md extension.
	Name        string
	Title       string
	Description string
	// Content is the markdown body without frontmatter.
	Content string
	Path    string
}

type frontmatter struct {
	Title       string `yaml:"title"`
	Description string `yaml:"description"`
}

// Library holds the skills loaded from one directory. Load replaces the whole
// set atomically; reads are safe for concurrent use.
type Library struct {
	mu     sync.RWMutex
	dir    string
	skills map[string]Skill
	logger zerolog.Logger
}

// NewLibrary creates a library over a skills directory. Call Load to populate it.
func NewLibrary(dir string, logger zerolog.Logger) *Library {
	return &Library{
		dir:    dir,
		skills: make(map[string]Skill),
		logger: logger,
	}
}

// Dir returns the library's source directory.
func (l *Library) Dir() string { return l.dir }

// Load scans the directory for .md files and replaces the loaded set,
// returning how many skills are now available. A missing directory loads
// zero skills. A file that fails to read is skipped, not fatal.
func (l *Library) Load() (int, error) {
	entries, err := os.ReadDir(l.dir)
	if err != nil {
		if os.IsNotExist(err) {
			l.mu.Lock()
			l.skills = make(map[string]Skill)
			l.mu.Unlock()
			return 0, nil
		}
		return 0, fmt.Errorf("failed to read skills directory: %w", err)
	}

	loaded := make(map[string]Skill)
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(strings.ToLower(entry.Name()), ".md") {
			continue
		}
		path := filepath.Join(l.dir, entry.Name())
		skill, err := loadSkill(path)
		if err != nil {
			l.logger.Warn().Str("file", entry.Name()).Err(err).Msg("Failed to load skill")
			continue
		}
		loaded[skill.Name] = skill
	}

	l.mu.Lock()
	l.skills = loaded
	l.mu.Unlock()

	l.logger.Info().Int("count", len(loaded)).Str("dir", l.dir).Msg("Skills loaded")
	return len(loaded), nil
}

// Get returns one skill by name.
func (l *Library) Get(name string) (Skill, bool) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	skill, ok := l.skills[name]
	return skill, ok
}

// Names lists loaded skill names, sorted.
func (l *Library) Names() []string {
	l.mu.RLock()
	defer l.mu.RUnlock()

	names := make([]string, 0, len(l.skills))
	for name := range l.skills {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// All returns the loaded skills in name order.
func (l *Library) All() []Skill {
	l.mu.RLock()
	defer l.mu.RUnlock()

	names := make([]string, 0, len(l.skills))
	for name := range l.skills {
		names = append(names, name)
	}
	sort.Strings(names)

	out := make([]Skill, 0, len(names))
	for _, name := range names {
		out = append(out, l.skills[name])
	}
	return out
}

// BuildPrompt concatenates the bodies of the named skills, in the given
// order, into instruction text for a run's system prompt. Unknown names are
// skipped.
func (l *Library) BuildPrompt(active []string) string {
	l.mu.RLock()
	defer l.mu.RUnlock()

	var b strings.Builder
	for _, name := range active {
		skill, ok := l.skills[name]
		if !ok {
			continue
		}
		if b.Len() > 0 {
			b.WriteString("\n\n")
		}
		fmt.Fprintf(&b, "## Skill: %s\n\n%s", skill.Title, skill.Content)
	}
	return b.String()
}

func loadSkill(path string) (Skill, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return Skill{}, err
	}

	name := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	fm, body := parseFrontmatter(string(raw))

	title := fm.Title
	if title == "" {
		title = strings.ReplaceAll(name, "_", " ")
	}

	return Skill{
		Name:        name,
		Title:       title,
		Description: fm.Description,
		Content:     strings.TrimSpace(body),
		Path:        path,
	}, nil
}

// parseFrontmatter splits a leading YAML frontmatter block from the body.
// Files without a block, or with one that fails to parse, are returned whole.
func parseFrontmatter(raw string) (frontmatter, string) {
	var fm frontmatter
	if !strings.HasPrefix(raw, "---\n") {
		return fm, raw
	}

	rest := raw[len("---\n"):]
	end := strings.Index(rest, "\n---")
	if end < 0 {
		return fm, raw
	}

	block := rest[:end]
	body := rest[end+len("\n---"):]
	body = strings.TrimPrefix(body, "\n")

	if err := yaml.Unmarshal([]byte(block), &fm); err != nil {
		return frontmatter{}, raw
	}
	return fm, body
}
