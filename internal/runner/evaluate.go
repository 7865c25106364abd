package runner

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/petasbytes/solver-agent/internal/submit"
	"github.com/petasbytes/solver-agent/memory"
	"github.com/petasbytes/solver-agent/tools"
)

var errSubmitterMissing = errors.New("submit_answer is not configured")

// Evaluator handles submit_answer calls and applies their verdict to the
// loop state.
type Evaluator struct {
	submitter tools.Submitter
	policy    Policy
	now       func() time.Time
	obs       Observer
}

// NewEvaluator returns an Evaluator. A nil now uses time.Now.
func NewEvaluator(submitter tools.Submitter, policy Policy, now func() time.Time, obs Observer) *Evaluator {
	if now == nil {
		now = time.Now
	}
	return &Evaluator{submitter: submitter, policy: policy, now: now, obs: obs}
}

// Evaluate submits the answer in call and returns the tool result together
// with whether this call stopped the run.
//
// Every attempt on a running state increments RetryCount. A payload string
// that does not parse as JSON is judged incorrect without reaching the
// endpoint. Undecodable arguments, a missing submission_url and submitter
// failures short-circuit with an error result and leave Running alone.
// Calls made after the run has stopped are answered without submitting.
func (e *Evaluator) Evaluate(ctx context.Context, state *LoopState, call memory.ToolCall) (memory.Message, bool) {
	if !state.Running {
		e.record(ctx, state, OutcomeSkipped, submit.Response{})
		return memory.ToolResult(call.ID, SkippedMessage, false), false
	}

	state.RetryCount++
	resp, err := e.submit(ctx, call)
	if err != nil {
		e.obs.log().Warn("submission failed",
			zap.String("call_id", call.ID),
			zap.Int("attempt", state.RetryCount),
			zap.Error(err),
		)
		e.record(ctx, state, OutcomeError, submit.Response{})
		return memory.ToolResult(call.ID, submissionFailure(call.Arguments, err), true), false
	}

	outcome := Decide(e.policy, state.RetryCount, state.StartedAt, resp, e.now())
	e.record(ctx, state, outcome, resp)

	switch outcome {
	case OutcomeSuccess:
		state.Stop(StopSuccess)
		return memory.ToolResult(call.ID, SuccessMessage, false), true
	case OutcomeTimeout:
		state.Stop(StopTimeout)
		return memory.ToolResult(call.ID, TimeoutMessage, false), true
	default:
		return memory.ToolResult(call.ID, RetryMessage(resp.Reason), false), false
	}
}

func (e *Evaluator) submit(ctx context.Context, call memory.ToolCall) (submit.Response, error) {
	args, err := tools.DecodeSubmitAnswer([]byte(call.Arguments))
	if err != nil {
		return submit.Response{}, err
	}
	if e.submitter == nil {
		return submit.Response{}, errSubmitterMissing
	}
	payload, err := submit.NormalizePayload(args.Payload)
	if err != nil {
		e.obs.log().Debug("unparsable payload", zap.String("call_id", call.ID), zap.Error(err))
		return submit.Failure(submit.ReasonUnparsablePayload), nil
	}
	return e.submitter.Submit(ctx, args.SubmissionURL, payload)
}

func (e *Evaluator) record(ctx context.Context, state *LoopState, outcome Outcome, resp submit.Response) {
	e.obs.Metrics.RecordSubmission(outcome.String())
	e.obs.log().Info("submission",
		zap.String("outcome", outcome.String()),
		zap.Int("attempt", state.RetryCount),
		zap.Bool("correct", resp.IsCorrect()),
		zap.String("next_url", resp.NextURL),
		zap.String("reason", resp.Reason),
	)
	e.obs.Events.Emit(ctx, "submission", map[string]any{
		"attempt":      state.RetryCount,
		"outcome":      outcome.String(),
		"correct":      resp.IsCorrect(),
		"has_next_url": resp.HasNextURL(),
	})
}
