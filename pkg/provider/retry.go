package provider

import (
	"context"
	"time"

	"github.com/rs/zerolog"
)

const (
	// DefaultMaxAttempts bounds per-provider retries for transient failures.
	DefaultMaxAttempts = 3

	baseDelay = 500 * time.Millisecond
	maxDelay  = 8 * time.Second
)

// BackoffDelay computes the wait before retrying a given zero-based attempt.
// Pure function of the attempt count: base delay doubled each attempt, capped.
func BackoffDelay(attempt int) time.Duration {
	if attempt < 0 {
		attempt = 0
	}
	d := baseDelay << uint(attempt)
	if d > maxDelay || d <= 0 {
		d = maxDelay
	}
	return d
}

// retryState tracks the explicit state of one provider call: how many
// attempts were made and the last classified failure.
type retryState struct {
	attempts int
	lastErr  *Error
}

// completeWithRetry runs a single provider against one request, retrying
// transient failures up to maxAttempts. It returns the response, the number
// of attempts made, and the last error if the provider is exhausted.
func completeWithRetry(ctx context.Context, p Provider, req Request, maxAttempts int, delayFn func(int) time.Duration, logger zerolog.Logger) (*Response, int, error) {
	if maxAttempts <= 0 {
		maxAttempts = DefaultMaxAttempts
	}
	if delayFn == nil {
		delayFn = BackoffDelay
	}

	state := retryState{}
	for state.attempts < maxAttempts {
		if err := ctx.Err(); err != nil {
			return nil, state.attempts, err
		}

		resp, err := p.Complete(ctx, req)
		state.attempts++
		if err == nil {
			return resp, state.attempts, nil
		}
		if ctx.Err() != nil {
			return nil, state.attempts, ctx.Err()
		}

		state.lastErr = Classify(p.Name(), err)
		if state.lastErr.Kind == Fatal {
			logger.Warn().
				Str("provider", p.Name()).
				Err(state.lastErr).
				Msg("Fatal provider error, not retrying")
			return nil, state.attempts, state.lastErr
		}

		if state.attempts >= maxAttempts {
			break
		}

		delay := delayFn(state.attempts - 1)
		logger.Info().
			Str("provider", p.Name()).
			Int("attempt", state.attempts).
			Dur("delay", delay).
			Err(state.lastErr).
			Msg("Retrying after transient provider error")

		select {
		case <-ctx.Done():
			return nil, state.attempts, ctx.Err()
		case <-time.After(delay):
		}
	}

	return nil, state.attempts, state.lastErr
}
