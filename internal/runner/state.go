package runner

import (
	"time"

	"github.com/petasbytes/solver-agent/internal/submit"
)

// StopReason records why a run ended.
type StopReason string

const (
	StopSuccess         StopReason = "success"
	StopTimeout         StopReason = "timeout"
	StopIterationBudget StopReason = "iteration_budget"
	StopCancelled       StopReason = "cancelled"
)

// LoopState is the state shared by the loop and the submission evaluator.
// Running goes from true to false exactly once.
type LoopState struct {
	RetryCount int
	Running    bool
	StartedAt  time.Time
	Reason     StopReason
}

// NewLoopState returns a running state started at start.
func NewLoopState(start time.Time) *LoopState {
	return &LoopState{Running: true, StartedAt: start}
}

// Stop marks the run stopped. It reports false if it was already stopped,
// in which case the first reason is kept.
func (s *LoopState) Stop(reason StopReason) bool {
	if !s.Running {
		return false
	}
	s.Running = false
	s.Reason = reason
	return true
}

// Policy holds the submission circuit breakers.
type Policy struct {
	RetryLimit int           // attempts after which a continuation URL ends the run
	TimeLimit  time.Duration // wall-clock ceiling measured from StartedAt
}

// DefaultPolicy is two retries and three minutes.
var DefaultPolicy = Policy{RetryLimit: 2, TimeLimit: 180 * time.Second}

// Outcome is the loop-control result of one submission.
type Outcome int

const (
	OutcomeRetry Outcome = iota
	OutcomeSuccess
	OutcomeTimeout
	OutcomeError   // the submission capability itself failed
	OutcomeSkipped // submitted after the run had already stopped
)

func (o Outcome) String() string {
	switch o {
	case OutcomeRetry:
		return "retry"
	case OutcomeSuccess:
		return "success"
	case OutcomeTimeout:
		return "timeout"
	case OutcomeError:
		return "error"
	case OutcomeSkipped:
		return "skipped"
	}
	return "unknown"
}

// Decide maps a verdict to an outcome. retryCount must already include the
// attempt being decided. Rules apply in order:
//
//  1. correct, or retries exhausted while a continuation URL is offered: success
//  2. no continuation URL: retry
//  3. wall clock at or past the limit: timeout
//  4. otherwise: retry
//
// Rule 1 ends the run as "success" even when no answer was ever accepted, as
// long as the task keeps offering a continuation.
func Decide(p Policy, retryCount int, startedAt time.Time, resp submit.Response, now time.Time) Outcome {
	switch {
	case resp.IsCorrect() || (retryCount > p.RetryLimit && resp.HasNextURL()):
		return OutcomeSuccess
	case !resp.HasNextURL():
		return OutcomeRetry
	case now.Sub(startedAt) >= p.TimeLimit:
		return OutcomeTimeout
	default:
		return OutcomeRetry
	}
}
