// Package coretools registers the baseline filesystem and runtime tools
// every agent gets: file read/write/list confined to a workspace root, and
// the current time.
package coretools

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/ferroclaw/ferroclaw/pkg/tool"
)

const defaultMaxReadBytes = 200_000

// Options configures core tool registration.
type Options struct {
	// WorkspaceRoot confines all file tools; paths outside it are rejected.
	WorkspaceRoot string
}

// Register adds the core tools to a registry.
func Register(registry *tool.Registry, opts Options) error {
	if opts.WorkspaceRoot == "" {
		return fmt.Errorf("workspace root is required")
	}
	root, err := filepath.Abs(opts.WorkspaceRoot)
	if err != nil {
		return fmt.Errorf("failed to resolve workspace root: %w", err)
	}

	tools := []tool.Tool{
		readFileTool(root),
		writeFileTool(root),
		listFilesTool(root),
		currentTimeTool(),
	}
	for _, t := range tools {
		if err := registry.Register(t); err != nil {
			return fmt.Errorf("failed to register tool %s: %w", t.Name(), err)
		}
	}
	return nil
}

func readFileTool(root string) tool.Tool {
	return tool.NewFunc(
		"read_file",
		"Read a file from the workspace",
		tool.ObjectSchema(map[string]any{
			"path": map[string]any{"type": "string", "description": "File path relative to the workspace"},
		}, "path"),
		func(ctx context.Context, args map[string]any) (string, error) {
			path, _ := args["path"].(string)
			target, err := resolveInWorkspace(root, path)
			if err != nil {
				return "", err
			}

			data, err := os.ReadFile(target)
			if err != nil {
				return "", fmt.Errorf("failed to read file: %w", err)
			}
			if len(data) > defaultMaxReadBytes {
				data = data[:defaultMaxReadBytes]
			}
			return string(data), nil
		},
	)
}

func writeFileTool(root string) tool.Tool {
	return tool.NewFunc(
		"write_file",
		"Write content to a file in the workspace, creating parent directories as needed",
		tool.ObjectSchema(map[string]any{
			"path":    map[string]any{"type": "string", "description": "File path relative to the workspace"},
			"content": map[string]any{"type": "string", "description": "Content to write"},
		}, "path", "content"),
		func(ctx context.Context, args map[string]any) (string, error) {
			path, _ := args["path"].(string)
			content, _ := args["content"].(string)

			target, err := resolveInWorkspace(root, path)
			if err != nil {
				return "", err
			}
			if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
				return "", fmt.Errorf("failed to create directories: %w", err)
			}
			if err := os.WriteFile(target, []byte(content), 0o644); err != nil {
				return "", fmt.Errorf("failed to write file: %w", err)
			}
			return fmt.Sprintf("wrote %d bytes to %s", len(content), path), nil
		},
	)
}

func listFilesTool(root string) tool.Tool {
	return tool.NewFunc(
		"list_files",
		"List files in a workspace directory",
		tool.ObjectSchema(map[string]any{
			"path": map[string]any{"type": "string", "description": "Directory path relative to the workspace, defaults to the root"},
		}),
		func(ctx context.Context, args map[string]any) (string, error) {
			path, _ := args["path"].(string)
			if path == "" {
				path = "."
			}
			target, err := resolveInWorkspace(root, path)
			if err != nil {
				return "", err
			}

			entries, err := os.ReadDir(target)
			if err != nil {
				return "", fmt.Errorf("failed to list directory: %w", err)
			}

			names := make([]string, 0, len(entries))
			for _, entry := range entries {
				name := entry.Name()
				if entry.IsDir() {
					name += "/"
				}
				names = append(names, name)
			}
			sort.Strings(names)
			if len(names) == 0 {
				return "(empty)", nil
			}
			return strings.Join(names, "\n"), nil
		},
	)
}

func currentTimeTool() tool.Tool {
	return tool.NewFunc(
		"current_time",
		"Get the current date and time",
		tool.ObjectSchema(map[string]any{
			"timezone": map[string]any{"type": "string", "description": "IANA timezone name, defaults to local time"},
		}),
		func(ctx context.Context, args map[string]any) (string, error) {
			loc := time.Local
			if tz, ok := args["timezone"].(string); ok && tz != "" {
				parsed, err := time.LoadLocation(tz)
				if err != nil {
					return "", fmt.Errorf("unknown timezone %q", tz)
				}
				loc = parsed
			}
			return time.Now().In(loc).Format("Monday, 2 January 2006 15:04:05 MST"), nil
		},
	)
}

// resolveInWorkspace joins a path against the workspace root and rejects
// anything that escapes it.
func resolveInWorkspace(root, path string) (string, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		return "", fmt.Errorf("path is required")
	}
	if strings.Contains(path, "://") {
		return "", fmt.Errorf("path must be a local file")
	}

	candidate := path
	if !filepath.IsAbs(candidate) {
		candidate = filepath.Join(root, candidate)
	}
	candidate = filepath.Clean(candidate)

	rel, err := filepath.Rel(root, candidate)
	if err != nil {
		return "", fmt.Errorf("failed to resolve path: %w", err)
	}
	if rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", fmt.Errorf("path escapes the workspace: %s", path)
	}
	return candidate, nil
}
