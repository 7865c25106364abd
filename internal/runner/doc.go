// Package runner drives the solve loop: it invokes the model, dispatches the
// tool calls it asks for, and interprets submission verdicts into
// continue/stop decisions.
//
// Invariant:
//   - every tool call of a turn receives exactly one tool result, appended in
//     call order, before the next model invocation.
//
// Flow:
//
//	user(task) -> assistant(tool calls) -> tool results -> assistant(...) -> ... -> stopped
package runner
