// Package agent drives the think/act/observe loop: it assembles bounded
// context from the session store, consults the provider chain, dispatches
// requested tool calls, and feeds outcomes back until the model produces a
// final answer.
//
// Invariants:
// - Iterations within a run are strictly sequential.
// - A session has at most one active run; concurrent requests are rejected.
// - Tool failures and timeouts are fed back to the model, never abort a run.
// - Every run publishes exactly one terminal event (result or error).
package agent
