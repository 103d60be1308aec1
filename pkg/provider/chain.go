package provider

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"
)

// ErrExhausted is returned when every provider in the chain has failed for
// one logical request.
var ErrExhausted = errors.New("all providers exhausted")

// ErrUnknownProvider is returned when a request pins a provider the chain
// does not contain.
var ErrUnknownProvider = errors.New("unknown provider")

// Chain tries an ordered list of providers for each request. Each provider
// gets its own retry budget; when it is exhausted the chain advances to the
// next one with the same logical request.
type Chain struct {
	providers   []Provider
	maxAttempts int
	delayFn     func(int) time.Duration
	logger      zerolog.Logger
}

// NewChain builds a chain over the given providers in order.
func NewChain(providers []Provider, maxAttempts int, logger zerolog.Logger) (*Chain, error) {
	if len(providers) == 0 {
		return nil, fmt.Errorf("at least one provider is required")
	}
	if maxAttempts <= 0 {
		maxAttempts = DefaultMaxAttempts
	}
	return &Chain{
		providers:   providers,
		maxAttempts: maxAttempts,
		delayFn:     BackoffDelay,
		logger:      logger,
	}, nil
}

// Names lists the configured providers in chain order.
func (c *Chain) Names() []string {
	names := make([]string, len(c.providers))
	for i, p := range c.providers {
		names[i] = p.Name()
	}
	return names
}

// Complete runs one logical request through the chain. An empty pinned name
// enables fallback across all providers; a non-empty one restricts the call
// to that provider (retries still apply, fallback does not).
func (c *Chain) Complete(ctx context.Context, req Request, pinned string) (*Response, error) {
	candidates := c.providers
	if pinned != "" {
		p := c.byName(pinned)
		if p == nil {
			return nil, fmt.Errorf("%w: %q", ErrUnknownProvider, pinned)
		}
		candidates = []Provider{p}
	}

	var lastErr error
	for _, p := range candidates {
		resp, attempts, err := completeWithRetry(ctx, p, req, c.maxAttempts, c.delayFn, c.logger)
		if err == nil {
			return resp, nil
		}
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		lastErr = err
		c.logger.Warn().
			Str("provider", p.Name()).
			Int("attempts", attempts).
			Err(err).
			Msg("Provider exhausted, advancing in chain")
	}

	return nil, fmt.Errorf("%w: %w", ErrExhausted, lastErr)
}

func (c *Chain) byName(name string) Provider {
	for _, p := range c.providers {
		if p.Name() == name {
			return p
		}
	}
	return nil
}
