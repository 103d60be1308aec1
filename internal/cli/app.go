package cli

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/ferroclaw/ferroclaw/internal/config"
	"github.com/ferroclaw/ferroclaw/internal/logger"
	"github.com/ferroclaw/ferroclaw/pkg/agent"
	"github.com/ferroclaw/ferroclaw/pkg/bus"
	"github.com/ferroclaw/ferroclaw/pkg/coretools"
	"github.com/ferroclaw/ferroclaw/pkg/memory"
	"github.com/ferroclaw/ferroclaw/pkg/provider"
	"github.com/ferroclaw/ferroclaw/pkg/router"
	"github.com/ferroclaw/ferroclaw/pkg/schedule"
	"github.com/ferroclaw/ferroclaw/pkg/session"
	"github.com/ferroclaw/ferroclaw/pkg/skills"
	"github.com/ferroclaw/ferroclaw/pkg/tool"
)

// app wires every component for one process.
type app struct {
	cfg       *config.Config
	log       *logger.Logger
	bus       *bus.Bus
	sessions  *session.Store
	archive   *memory.Store
	registry  *tool.Registry
	library   *skills.Library
	watcher   *skills.Watcher
	router    *router.Router
	scheduler *schedule.Service
	reaper    *session.Reaper
}

func buildApp(cfg *config.Config) (*app, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	for _, dir := range []string{cfg.DataDir, cfg.WorkspacePath, cfg.SkillsDir} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("failed to create %s: %w", dir, err)
		}
	}

	log, err := logger.New(cfg.Logging)
	if err != nil {
		return nil, err
	}

	providers := make([]provider.Provider, 0, len(cfg.Providers))
	for _, pc := range cfg.Providers {
		switch pc.Name {
		case "anthropic":
			providers = append(providers, provider.NewAnthropicProvider(pc.APIKey, pc.Model))
		case "openai":
			providers = append(providers, provider.NewOpenAIProvider(pc.APIKey, pc.Model, pc.BaseURL))
		}
	}
	chain, err := provider.NewChain(providers, cfg.Limits.RetryAttempts, log.Logger)
	if err != nil {
		return nil, err
	}

	archive, err := memory.Open(filepath.Join(cfg.DataDir, "memory.db"), log.Logger)
	if err != nil {
		return nil, err
	}

	eventBus := bus.New(bus.DefaultBufferSize, log.Logger)
	sessions := session.New(session.Config{Archiver: archive, Logger: log.Logger})

	registry := tool.NewRegistry(log.Logger)
	if err := coretools.Register(registry, coretools.Options{WorkspaceRoot: cfg.WorkspacePath}); err != nil {
		return nil, err
	}
	if err := memory.RegisterTools(registry, archive); err != nil {
		return nil, err
	}
	dispatcher := tool.NewDispatcher(registry,
		time.Duration(cfg.Limits.ToolTimeoutSeconds)*time.Second, log.Logger)

	library := skills.NewLibrary(cfg.SkillsDir, log.Logger)
	if _, err := library.Load(); err != nil {
		return nil, err
	}
	watcher, err := skills.NewWatcher(library, log.Logger)
	if err != nil {
		log.Warn().Err(err).Msg("Skill hot reload disabled")
		watcher = nil
	}

	routes := router.New(log.Logger)
	for _, ac := range cfg.Agents {
		a, err := agent.New(agent.Options{
			Chain:      chain,
			Registry:   registry,
			Dispatcher: dispatcher,
			Store:      sessions,
			Bus:        eventBus,
			Logger:     log.Logger,
			Config: agent.Config{
				Name:          ac.Name,
				Model:         ac.Model,
				SystemPrompt:  ac.SystemPrompt,
				MaxIterations: firstPositive(ac.MaxIterations, cfg.Limits.MaxIterations),
				MaxTokens:     cfg.Limits.MaxTokens,
				Temperature:   cfg.Limits.Temperature,
				HistoryBudget: cfg.Limits.HistoryBudget,
			},
		})
		if err != nil {
			return nil, fmt.Errorf("agent %s: %w", ac.Name, err)
		}
		if err := routes.Register(router.Route{
			Name:        ac.Name,
			Description: ac.Description,
			Skills:      ac.Skills,
			Keywords:    ac.Keywords,
			Default:     ac.Default,
			Runner:      a,
		}); err != nil {
			return nil, err
		}
	}

	a := &app{
		cfg:      cfg,
		log:      log,
		bus:      eventBus,
		sessions: sessions,
		archive:  archive,
		registry: registry,
		library:  library,
		watcher:  watcher,
		router:   routes,
	}

	scheduler, err := schedule.NewService(a.runJob, log.Logger)
	if err != nil {
		return nil, err
	}
	a.scheduler = scheduler

	a.reaper = session.NewReaper(sessions, session.DefaultMaxIdle)
	if err := a.reaper.Start(); err != nil {
		return nil, err
	}

	return a, nil
}

// run submits one user request through the router, merging the session's
// active skills into the prompt.
func (a *app) run(ctx context.Context, target, sessionID, text, pinned string) (string, error) {
	active := a.sessions.ActiveSkills(sessionID)
	return a.router.Dispatch(ctx, target, active, agent.RunParams{
		SessionID:      sessionID,
		UserText:       text,
		SkillText:      a.library.BuildPrompt(active),
		PinnedProvider: pinned,
	})
}

func (a *app) runJob(ctx context.Context, job schedule.Job) error {
	_, err := a.run(ctx, job.Target, job.SessionID, job.Prompt, "")
	return err
}

func (a *app) close() {
	if a.reaper != nil {
		a.reaper.Stop()
	}
	if a.scheduler != nil {
		a.scheduler.Stop()
	}
	if a.watcher != nil {
		a.watcher.Stop()
	}
	if a.archive != nil {
		a.archive.Close()
	}
	if a.log != nil {
		a.log.Close()
	}
}

func firstPositive(values ...int) int {
	for _, v := range values {
		if v > 0 {
			return v
		}
	}
	return 0
}
