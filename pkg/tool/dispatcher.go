package tool

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"
)

// DefaultTimeout bounds a single tool invocation.
const DefaultTimeout = 60 * time.Second

// maxOutputBytes caps tool output handed back to the model.
const maxOutputBytes = 10 * 1024

// Status classifies a tool invocation outcome.
type Status int

const (
	StatusSuccess Status = iota
	StatusFailure
	StatusTimeout
)

func (s Status) String() string {
	switch s {
	case StatusSuccess:
		return "success"
	case StatusTimeout:
		return "timeout"
	default:
		return "failure"
	}
}

// Outcome is the result of one tool invocation. Failures are data, not
// errors: the loop feeds them back to the model rather than aborting.
type Outcome struct {
	Status   Status
	Output   string
	Duration time.Duration
}

// Dispatcher executes registered tools with validation and a timeout.
type Dispatcher struct {
	registry *Registry
	timeout  time.Duration
	logger   zerolog.Logger
}

// NewDispatcher creates a dispatcher over the registry. A non-positive
// timeout falls back to DefaultTimeout.
func NewDispatcher(registry *Registry, timeout time.Duration, logger zerolog.Logger) *Dispatcher {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Dispatcher{
		registry: registry,
		timeout:  timeout,
		logger:   logger,
	}
}

// Timeout returns the configured per-invocation bound.
func (d *Dispatcher) Timeout() time.Duration {
	return d.timeout
}

// Dispatch runs one tool invocation to an Outcome. Unknown tools and
// schema-invalid arguments short-circuit to Failure without execution. A
// handler overrunning the timeout is abandoned and reported as Timeout; its
// context is cancelled so well-behaved tools stop promptly.
func (d *Dispatcher) Dispatch(ctx context.Context, name string, args map[string]any) Outcome {
	start := time.Now()
	if args == nil {
		args = map[string]any{}
	}

	t, _ := d.registry.Get(name)
	if t == nil {
		return Outcome{
			Status:   StatusFailure,
			Output:   fmt.Sprintf("tool not found: %s", name),
			Duration: time.Since(start),
		}
	}

	if err := d.registry.ValidateArgs(name, args); err != nil {
		d.logger.Warn().Str("tool", name).Err(err).Msg("Tool argument validation failed")
		return Outcome{
			Status:   StatusFailure,
			Output:   err.Error(),
			Duration: time.Since(start),
		}
	}

	execCtx, cancel := context.WithTimeout(ctx, d.timeout)
	defer cancel()

	type result struct {
		output string
		err    error
	}
	resultCh := make(chan result, 1)
	go func() {
		output, err := t.Execute(execCtx, args)
		resultCh <- result{output: output, err: err}
	}()

	select {
	case res := <-resultCh:
		duration := time.Since(start)
		if res.err != nil {
			d.logger.Warn().
				Str("tool", name).
				Dur("duration", duration).
				Err(res.err).
				Msg("Tool execution failed")
			return Outcome{
				Status:   StatusFailure,
				Output:   res.err.Error(),
				Duration: duration,
			}
		}
		d.logger.Debug().
			Str("tool", name).
			Dur("duration", duration).
			Msg("Tool execution completed")
		return Outcome{
			Status:   StatusSuccess,
			Output:   truncateOutput(res.output),
			Duration: duration,
		}

	case <-execCtx.Done():
		duration := time.Since(start)
		if ctx.Err() != nil {
			// Caller cancelled the run, not a tool-level timeout.
			return Outcome{
				Status:   StatusFailure,
				Output:   fmt.Sprintf("invocation cancelled: %v", ctx.Err()),
				Duration: duration,
			}
		}
		d.logger.Warn().
			Str("tool", name).
			Dur("duration", duration).
			Msg("Tool execution timed out")
		return Outcome{
			Status:   StatusTimeout,
			Output:   fmt.Sprintf("tool execution timed out after %v", d.timeout),
			Duration: duration,
		}
	}
}

func truncateOutput(output string) string {
	if len(output) <= maxOutputBytes {
		return output
	}
	return output[:maxOutputBytes] + "\n... [output truncated]"
}
