// Package schedule runs agent prompts on timers: one-shot "at" times, fixed
// "every" intervals, and five-field cron expressions.
package schedule

import (
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
)

// Kind selects how a spec computes its next firing time.
type Kind string

const (
	KindAt    Kind = "at"
	KindEvery Kind = "every"
	KindCron  Kind = "cron"
)

// Spec is a time specification for job execution.
type Spec struct {
	Kind Kind `json:"kind"`

	// At is an RFC 3339 timestamp for one-shot jobs.
	At string `json:"at,omitempty"`

	// Every is the interval for recurring jobs.
	Every time.Duration `json:"every,omitempty"`

	// Expr is a five-field cron expression; TZ optionally overrides the
	// zone it is evaluated in.
	Expr string `json:"expr,omitempty"`
	TZ   string `json:"tz,omitempty"`
}

// NextRun computes the next firing time after now. A pure function of its
// inputs so schedules are testable without a clock.
func NextRun(spec Spec, now time.Time) (time.Time, error) {
	switch spec.Kind {
	case KindAt:
		if spec.At == "" {
			return time.Time{}, fmt.Errorf("'at' schedule requires a timestamp")
		}
		at, err := time.Parse(time.RFC3339, spec.At)
		if err != nil {
			return time.Time{}, fmt.Errorf("invalid timestamp: %w", err)
		}
		return at, nil

	case KindEvery:
		if spec.Every <= 0 {
			return time.Time{}, fmt.Errorf("'every' schedule requires a positive interval")
		}
		return now.Add(spec.Every), nil

	case KindCron:
		if spec.Expr == "" {
			return time.Time{}, fmt.Errorf("'cron' schedule requires an expression")
		}
		parser := cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow)
		sched, err := parser.Parse(spec.Expr)
		if err != nil {
			return time.Time{}, fmt.Errorf("invalid cron expression: %w", err)
		}
		if spec.TZ != "" {
			loc, err := time.LoadLocation(spec.TZ)
			if err != nil {
				return time.Time{}, fmt.Errorf("invalid timezone: %w", err)
			}
			now = now.In(loc)
		}
		return sched.Next(now), nil

	default:
		return time.Time{}, fmt.Errorf("unknown schedule kind: %s", spec.Kind)
	}
}
