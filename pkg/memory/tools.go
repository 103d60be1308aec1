package memory

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/ferroclaw/ferroclaw/pkg/tool"
)

// RegisterTools adds the remember/recall/forget tools backed by this store.
func RegisterTools(registry *tool.Registry, store *Store) error {
	tools := []tool.Tool{
		rememberTool(store),
		recallTool(store),
		forgetTool(store),
	}
	for _, t := range tools {
		if err := registry.Register(t); err != nil {
			return err
		}
	}
	return nil
}

func rememberTool(store *Store) tool.Tool {
	return tool.NewFunc(
		"remember",
		"Store a fact in long-term memory under a short key",
		tool.ObjectSchema(map[string]any{
			"key":   map[string]any{"type": "string", "description": "Short identifier for the fact"},
			"value": map[string]any{"type": "string", "description": "The fact to remember"},
		}, "key", "value"),
		func(ctx context.Context, args map[string]any) (string, error) {
			key, _ := args["key"].(string)
			value, _ := args["value"].(string)
			if err := store.SaveFact(ctx, key, value); err != nil {
				return "", err
			}
			return fmt.Sprintf("remembered %q", key), nil
		},
	)
}

func recallTool(store *Store) tool.Tool {
	return tool.NewFunc(
		"recall",
		"Look up facts in long-term memory by key or content",
		tool.ObjectSchema(map[string]any{
			"query": map[string]any{"type": "string", "description": "Key or text to search for"},
		}, "query"),
		func(ctx context.Context, args map[string]any) (string, error) {
			query, _ := args["query"].(string)

			if fact, err := store.GetFact(ctx, query); err == nil {
				return fmt.Sprintf("%s: %s", fact.Key, fact.Value), nil
			} else if !errors.Is(err, ErrFactNotFound) {
				return "", err
			}

			facts, err := store.SearchFacts(ctx, query, 10)
			if err != nil {
				return "", err
			}
			if len(facts) == 0 {
				return fmt.Sprintf("nothing remembered about %q", query), nil
			}

			lines := make([]string, len(facts))
			for i, fact := range facts {
				lines[i] = fmt.Sprintf("%s: %s", fact.Key, fact.Value)
			}
			return strings.Join(lines, "\n"), nil
		},
	)
}

func forgetTool(store *Store) tool.Tool {
	return tool.NewFunc(
		"forget",
		"Remove a fact from long-term memory",
		tool.ObjectSchema(map[string]any{
			"key": map[string]any{"type": "string", "description": "Key of the fact to remove"},
		}, "key"),
		func(ctx context.Context, args map[string]any) (string, error) {
			key, _ := args["key"].(string)
			if err := store.DeleteFact(ctx, key); err != nil {
				return "", err
			}
			return fmt.Sprintf("forgot %q", key), nil
		},
	)
}
