// Package tool defines the capability contract the reasoning loop dispatches
// against: named tools with JSON-schema parameters and bounded execution.
package tool

import "context"

// Tool is one capability the model can invoke. Implementations must be safe
// for concurrent Execute calls; the loop may dispatch several invocations of
// one iteration at once.
type Tool interface {
	// Name is the unique registry key used in model tool calls.
	Name() string

	// Description tells the model what the tool does.
	Description() string

	// Parameters returns the JSON Schema for the tool's arguments.
	Parameters() map[string]any

	// Execute runs the tool. It must honor ctx cancellation.
	Execute(ctx context.Context, args map[string]any) (string, error)
}

// Func adapts a plain function into a Tool.
type Func struct {
	name        string
	description string
	parameters  map[string]any
	fn          func(ctx context.Context, args map[string]any) (string, error)
}

// NewFunc builds a function-backed tool.
func NewFunc(name, description string, parameters map[string]any, fn func(ctx context.Context, args map[string]any) (string, error)) *Func {
	return &Func{
		name:        name,
		description: description,
		parameters:  parameters,
		fn:          fn,
	}
}

func (f *Func) Name() string               { return f.name }
func (f *Func) Description() string        { return f.description }
func (f *Func) Parameters() map[string]any { return f.parameters }

func (f *Func) Execute(ctx context.Context, args map[string]any) (string, error) {
	return f.fn(ctx, args)
}

// ObjectSchema builds a JSON Schema for an object with the given properties
// and required field names.
func ObjectSchema(properties map[string]any, required ...string) map[string]any {
	if properties == nil {
		properties = map[string]any{}
	}
	schema := map[string]any{
		"type":       "object",
		"properties": properties,
	}
	if len(required) > 0 {
		schema["required"] = required
	}
	return schema
}
