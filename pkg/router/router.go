// Package router selects one configured sub-agent for each inbound request.
// Matching rules are evaluated in a fixed priority order: explicit target,
// active skill, keyword score, then the default route. The router holds no
// session history of its own.
package router

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/rs/zerolog"

	"github.com/ferroclaw/ferroclaw/pkg/agent"
)

// ErrNoRoute is returned when no rule matches and no default is configured.
var ErrNoRoute = errors.New("no route matched the request")

// ErrUnknownTarget is returned when an explicit target names no route.
var ErrUnknownTarget = errors.New("unknown routing target")

// Runner is the sub-agent contract the router dispatches to. *agent.Agent
// satisfies it.
type Runner interface {
	Name() string
	Run(ctx context.Context, params agent.RunParams) (string, error)
}

// Route binds one sub-agent to its matching rules.
type Route struct {
	// Name identifies the route for explicit targeting. Defaults to the
	// runner's name.
	Name string

	// Description says what this sub-agent handles.
	Description string

	// Skills routes requests whose session has one of these skills active.
	Skills []string

	// Keywords score free-text matching; the highest-scoring route wins.
	Keywords []string

	// Default marks the fallback route when nothing else matches.
	Default bool

	Runner Runner
}

// Router dispatches requests over an ordered set of routes. Registration
// happens at startup; resolution is read-only and safe for concurrent use.
type Router struct {
	mu     sync.RWMutex
	routes []Route
	logger zerolog.Logger
}

// New creates an empty router.
func New(logger zerolog.Logger) *Router {
	return &Router{logger: logger}
}

// Register adds a route. Names must be unique and at most one route may be
// the default.
func (r *Router) Register(route Route) error {
	if route.Runner == nil {
		return fmt.Errorf("route runner cannot be nil")
	}
	if route.Name == "" {
		route.Name = route.Runner.Name()
	}
	if route.Name == "" {
		return fmt.Errorf("route name cannot be empty")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	for _, existing := range r.routes {
		if existing.Name == route.Name {
			return fmt.Errorf("route %s: already registered", route.Name)
		}
		if existing.Default && route.Default {
			return fmt.Errorf("route %s: default route already set to %s", route.Name, existing.Name)
		}
	}
	r.routes = append(r.routes, route)

	r.logger.Info().
		Str("route", route.Name).
		Strs("keywords", route.Keywords).
		Bool("default", route.Default).
		Msg("Route registered")
	return nil
}

// Names lists routes in registration order.
func (r *Router) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, len(r.routes))
	for i, route := range r.routes {
		names[i] = route.Name
	}
	return names
}

// Resolve picks the route for a request. A non-empty target must name a
// registered route. Otherwise the first route sharing an active skill wins,
// then the route with the highest keyword score in the text, then the
// default. Ties go to registration order.
func (r *Router) Resolve(target, text string, activeSkills []string) (*Route, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if len(r.routes) == 0 {
		return nil, fmt.Errorf("%w: no routes registered", ErrNoRoute)
	}

	if target != "" {
		for i := range r.routes {
			if r.routes[i].Name == target {
				return &r.routes[i], nil
			}
		}
		return nil, fmt.Errorf("%w: %q", ErrUnknownTarget, target)
	}

	if route := r.bySkill(activeSkills); route != nil {
		return route, nil
	}
	if route := r.byKeywords(text); route != nil {
		return route, nil
	}
	for i := range r.routes {
		if r.routes[i].Default {
			return &r.routes[i], nil
		}
	}
	return nil, ErrNoRoute
}

func (r *Router) bySkill(activeSkills []string) *Route {
	if len(activeSkills) == 0 {
		return nil
	}
	active := make(map[string]struct{}, len(activeSkills))
	for _, s := range activeSkills {
		active[s] = struct{}{}
	}
	for i := range r.routes {
		for _, skill := range r.routes[i].Skills {
			if _, ok := active[skill]; ok {
				return &r.routes[i]
			}
		}
	}
	return nil
}

func (r *Router) byKeywords(text string) *Route {
	lower := strings.ToLower(text)
	best := -1
	bestScore := 0
	for i := range r.routes {
		score := 0
		for _, kw := range r.routes[i].Keywords {
			if kw != "" && strings.Contains(lower, strings.ToLower(kw)) {
				score++
			}
		}
		if score > bestScore {
			bestScore = score
			best = i
		}
	}
	if best < 0 {
		return nil
	}
	return &r.routes[best]
}

// Dispatch resolves a route and runs the request on its sub-agent.
func (r *Router) Dispatch(ctx context.Context, target string, activeSkills []string, params agent.RunParams) (string, error) {
	route, err := r.Resolve(target, params.UserText, activeSkills)
	if err != nil {
		return "", err
	}

	r.logger.Debug().
		Str("route", route.Name).
		Str("session_id", params.SessionID).
		Msg("Dispatching request")
	return route.Runner.Run(ctx, params)
}
