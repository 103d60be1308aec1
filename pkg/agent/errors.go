package agent

import "errors"

// ErrMaxIterations is returned when a run hits its iteration ceiling without
// the model producing a final answer.
var ErrMaxIterations = errors.New("maximum reasoning iterations reached")

// ErrRunCancelled is returned when the caller cancels an in-flight run.
var ErrRunCancelled = errors.New("run cancelled")
