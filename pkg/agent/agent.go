package agent

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"unicode/utf8"

	gonanoid "github.com/matoous/go-nanoid/v2"
	"github.com/rs/zerolog"

	"github.com/ferroclaw/ferroclaw/pkg/bus"
	"github.com/ferroclaw/ferroclaw/pkg/provider"
	"github.com/ferroclaw/ferroclaw/pkg/session"
	"github.com/ferroclaw/ferroclaw/pkg/tool"
)

const (
	// DefaultMaxIterations bounds one run's reasoning cycles.
	DefaultMaxIterations = 20
	// DefaultMaxTokens is the per-completion output cap.
	DefaultMaxTokens = 4096
	// DefaultHistoryBudget is the context window handed to the model,
	// in estimated tokens.
	DefaultHistoryBudget = 6000

	// resultEventMaxBytes caps tool output carried inside events; the full
	// output still reaches the model through the transcript.
	resultEventMaxBytes = 512
)

// Config tunes one agent's reasoning loop.
type Config struct {
	Name          string
	Model         string
	SystemPrompt  string
	MaxIterations int
	MaxTokens     int
	Temperature   float64
	HistoryBudget int
}

func (c *Config) applyDefaults() {
	if c.Name == "" {
		c.Name = "agent"
	}
	if c.MaxIterations <= 0 {
		c.MaxIterations = DefaultMaxIterations
	}
	if c.MaxTokens <= 0 {
		c.MaxTokens = DefaultMaxTokens
	}
	if c.HistoryBudget <= 0 {
		c.HistoryBudget = DefaultHistoryBudget
	}
}

// Options wires an agent's collaborators.
type Options struct {
	Chain      *provider.Chain
	Registry   *tool.Registry
	Dispatcher *tool.Dispatcher
	Store      *session.Store
	Bus        *bus.Bus
	Config     Config
	Logger     zerolog.Logger
}

// Agent owns one reasoning loop over a provider chain, a tool registry,
// and a session store. It is safe for concurrent Run calls on distinct
// sessions; the store serializes runs per session.
type Agent struct {
	chain      *provider.Chain
	registry   *tool.Registry
	dispatcher *tool.Dispatcher
	store      *session.Store
	bus        *bus.Bus
	cfg        Config
	logger     zerolog.Logger
}

// New builds an agent. All collaborators are required.
func New(opts Options) (*Agent, error) {
	if opts.Chain == nil {
		return nil, fmt.Errorf("provider chain is required")
	}
	if opts.Registry == nil {
		return nil, fmt.Errorf("tool registry is required")
	}
	if opts.Dispatcher == nil {
		return nil, fmt.Errorf("tool dispatcher is required")
	}
	if opts.Store == nil {
		return nil, fmt.Errorf("session store is required")
	}
	if opts.Bus == nil {
		return nil, fmt.Errorf("event bus is required")
	}

	cfg := opts.Config
	cfg.applyDefaults()

	return &Agent{
		chain:      opts.Chain,
		registry:   opts.Registry,
		dispatcher: opts.Dispatcher,
		store:      opts.Store,
		bus:        opts.Bus,
		cfg:        cfg,
		logger:     opts.Logger.With().Str("agent", cfg.Name).Logger(),
	}, nil
}

// Name returns the agent's configured name.
func (a *Agent) Name() string { return a.cfg.Name }

// RunParams describes one user request.
type RunParams struct {
	SessionID string
	UserText  string

	// SkillText is extra instruction material appended to the system prompt
	// for this run only.
	SkillText string

	// PinnedProvider restricts the chain to one backend; fallback is
	// disabled while a pin is set.
	PinnedProvider string
}

// run carries the mutable state of one request through the loop.
type run struct {
	id        string
	sessionID string
	iteration int
	events    int
}

// Run executes the think/act/observe loop for one user request and returns
// the final answer. A session with a run already in flight is rejected with
// session.ErrSessionBusy before any event is published.
func (a *Agent) Run(ctx context.Context, params RunParams) (string, error) {
	if params.SessionID == "" {
		return "", fmt.Errorf("session id cannot be empty")
	}
	if strings.TrimSpace(params.UserText) == "" {
		return "", fmt.Errorf("user text cannot be empty")
	}

	if err := a.store.BeginRun(params.SessionID); err != nil {
		return "", err
	}
	defer a.store.EndRun(params.SessionID)

	r := &run{id: gonanoid.Must(), sessionID: params.SessionID}
	logger := a.logger.With().
		Str("session_id", params.SessionID).
		Str("run_id", r.id).
		Logger()

	a.emit(r, bus.KindStatusText, map[string]any{
		"text": fmt.Sprintf("%s is working on the request", a.cfg.Name),
	})

	a.persist(ctx, logger, params.SessionID, session.Message{
		Role:    session.RoleUser,
		Content: params.UserText,
	})

	view, dropped := a.store.View(params.SessionID, a.cfg.HistoryBudget)
	if dropped > 0 {
		a.emit(r, bus.KindMemoryTruncate, map[string]any{"turns_dropped": dropped})
	}
	transcript := historyToTranscript(view)
	specs := a.toolSpecs()

	for {
		if ctx.Err() != nil {
			return a.fail(r, logger, "cancelled", fmt.Errorf("%w: %v", ErrRunCancelled, ctx.Err()))
		}
		if r.iteration >= a.cfg.MaxIterations {
			return a.fail(r, logger, "max_iterations",
				fmt.Errorf("%w: no final answer after %d iterations", ErrMaxIterations, a.cfg.MaxIterations))
		}
		r.iteration++

		var trimmed int
		transcript, trimmed = truncateTranscript(transcript, a.cfg.HistoryBudget)
		if trimmed > 0 {
			a.emit(r, bus.KindMemoryTruncate, map[string]any{"turns_dropped": trimmed})
		}

		a.emit(r, bus.KindAgentThink, map[string]any{"iteration": r.iteration})

		resp, err := a.chain.Complete(ctx, provider.Request{
			Model:       a.cfg.Model,
			System:      a.systemPrompt(params.SkillText),
			Messages:    transcript,
			Tools:       specs,
			MaxTokens:   a.cfg.MaxTokens,
			Temperature: a.cfg.Temperature,
		}, params.PinnedProvider)
		if err != nil {
			if ctx.Err() != nil {
				return a.fail(r, logger, "cancelled", fmt.Errorf("%w: %v", ErrRunCancelled, ctx.Err()))
			}
			return a.fail(r, logger, "provider", fmt.Errorf("completion failed: %w", err))
		}

		if !resp.HasToolCalls() {
			a.persist(ctx, logger, params.SessionID, session.Message{
				Role:    session.RoleAssistant,
				Content: resp.Content,
			})
			a.emit(r, bus.KindResult, map[string]any{"text": resp.Content})
			logger.Info().
				Int("iterations", r.iteration).
				Int("events", r.events).
				Msg("Run completed")
			return resp.Content, nil
		}

		transcript = append(transcript, provider.Message{
			Role:      provider.RoleAssistant,
			Content:   resp.Content,
			ToolCalls: resp.ToolCalls,
		})
		transcript = append(transcript, a.act(ctx, r, logger, params.SessionID, resp.ToolCalls)...)
	}
}

// act dispatches every requested tool call concurrently and returns the
// outcome messages in request order, so transcripts stay deterministic.
func (a *Agent) act(ctx context.Context, r *run, logger zerolog.Logger, sessionID string, calls []provider.ToolCall) []provider.Message {
	outcomes := make([]tool.Outcome, len(calls))
	var wg sync.WaitGroup
	for i, call := range calls {
		a.emit(r, bus.KindToolUse, map[string]any{
			"tool":      call.Name,
			"arguments": call.Arguments,
		})
		wg.Add(1)
		go func(i int, call provider.ToolCall) {
			defer wg.Done()
			outcomes[i] = a.dispatcher.Dispatch(ctx, call.Name, call.Arguments)
		}(i, call)
	}
	wg.Wait()

	observed := make([]provider.Message, 0, len(calls))
	for i, call := range calls {
		outcome := outcomes[i]
		if outcome.Status == tool.StatusTimeout {
			a.emit(r, bus.KindToolTimeout, map[string]any{
				"tool":       call.Name,
				"elapsed_ms": outcome.Duration.Milliseconds(),
			})
		}
		a.emit(r, bus.KindToolResult, map[string]any{
			"tool":   call.Name,
			"status": outcome.Status.String(),
			"output": clip(outcome.Output, resultEventMaxBytes),
		})

		feedback := outcome.Output
		if outcome.Status != tool.StatusSuccess {
			feedback = fmt.Sprintf("[%s] %s", outcome.Status, outcome.Output)
		}
		observed = append(observed, provider.Message{
			Role:       provider.RoleTool,
			Content:    feedback,
			ToolCallID: call.ID,
			ToolName:   call.Name,
		})
		a.persist(ctx, logger, sessionID, session.Message{
			Role:       session.RoleTool,
			Content:    feedback,
			ToolName:   call.Name,
			ToolCallID: call.ID,
		})
	}
	return observed
}

// fail publishes the run's single terminal error event and returns err.
func (a *Agent) fail(r *run, logger zerolog.Logger, kind string, err error) (string, error) {
	a.emit(r, bus.KindError, map[string]any{
		"kind":    kind,
		"message": err.Error(),
	})
	logger.Warn().
		Str("error_kind", kind).
		Int("iterations", r.iteration).
		Err(err).
		Msg("Run failed")
	return "", err
}

func (a *Agent) emit(r *run, kind bus.Kind, payload map[string]any) {
	if payload == nil {
		payload = map[string]any{}
	}
	payload["run_id"] = r.id
	r.events++
	a.bus.Emit(kind, r.sessionID, payload)
}

// persist appends to the session history; append failures are logged, not
// fatal, so a run can still answer from its in-memory transcript.
func (a *Agent) persist(ctx context.Context, logger zerolog.Logger, sessionID string, msg session.Message) {
	if err := a.store.Append(ctx, sessionID, msg); err != nil {
		logger.Warn().Err(err).Msg("Failed to persist message")
	}
}

func (a *Agent) systemPrompt(skillText string) string {
	parts := make([]string, 0, 2)
	if a.cfg.SystemPrompt != "" {
		parts = append(parts, a.cfg.SystemPrompt)
	}
	if skillText != "" {
		parts = append(parts, skillText)
	}
	return strings.Join(parts, "\n\n")
}

func (a *Agent) toolSpecs() []provider.ToolSpec {
	tools := a.registry.List()
	specs := make([]provider.ToolSpec, 0, len(tools))
	for _, t := range tools {
		specs = append(specs, provider.ToolSpec{
			Name:        t.Name(),
			Description: t.Description(),
			Schema:      t.Parameters(),
		})
	}
	return specs
}

// clip bounds s to max bytes, backing up so a multi-byte rune is never cut
// mid-sequence.
func clip(s string, max int) string {
	if len(s) <= max {
		return s
	}
	for max > 0 && !utf8.RuneStart(s[max]) {
		max--
	}
	return s[:max] + "..."
}
