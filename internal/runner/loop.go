package runner

import (
	"context"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/petasbytes/solver-agent/internal/provider"
	"github.com/petasbytes/solver-agent/internal/telemetry"
	"github.com/petasbytes/solver-agent/memory"
	"github.com/petasbytes/solver-agent/tools"
)

// DefaultMaxIterations bounds model invocations per run.
const DefaultMaxIterations = 20

// Config tunes a Loop.
type Config struct {
	MaxIterations int           // model invocations per run; <= 0 uses DefaultMaxIterations
	Pause         time.Duration // minimum spacing between model invocations; 0 disables
	Policy        Policy
	Now           func() time.Time // clock for the wall-clock ceiling; nil uses time.Now
}

// Result summarizes a finished run.
type Result struct {
	StopReason StopReason    `json:"stop_reason"`
	Iterations int           `json:"iterations"`
	RetryCount int           `json:"retry_count"`
	Elapsed    time.Duration `json:"elapsed"`
}

// Loop is the solve loop. It is not safe for concurrent Runs.
type Loop struct {
	model      provider.Model
	defs       []tools.ToolDefinition
	dispatcher *Dispatcher
	evaluator  *Evaluator
	cfg        Config
	limiter    *rate.Limiter
	obs        Observer
}

// New wires a Loop. Submissions go to submitter; every other tool call goes
// to its registry handler.
func New(model provider.Model, registry *tools.Registry, submitter tools.Submitter, cfg Config, obs Observer) *Loop {
	if cfg.MaxIterations <= 0 {
		cfg.MaxIterations = DefaultMaxIterations
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	if cfg.Policy.TimeLimit <= 0 {
		cfg.Policy = DefaultPolicy
	}
	limit := rate.Inf
	if cfg.Pause > 0 {
		limit = rate.Every(cfg.Pause)
	}
	return &Loop{
		model:      model,
		defs:       registry.Definitions(),
		dispatcher: NewDispatcher(registry, obs),
		evaluator:  NewEvaluator(submitter, cfg.Policy, cfg.Now, obs),
		cfg:        cfg,
		limiter:    rate.NewLimiter(limit, 1),
		obs:        obs,
	}
}

// Run iterates until a submission stops the run, the iteration budget is
// spent, or ctx is cancelled. It returns the full conversation.
//
// Model errors are logged and consume the iteration; nothing that happens
// inside an iteration aborts the run.
func (l *Loop) Run(ctx context.Context, conv *memory.Conversation) ([]memory.Message, Result) {
	runID, ok := telemetry.RunIDFromContext(ctx)
	if !ok {
		runID = telemetry.NewRunID()
		ctx = telemetry.WithRunID(ctx, runID)
	}
	log := l.obs.log().With(zap.String("run_id", runID))

	state := NewLoopState(l.cfg.Now())
	l.obs.Events.Emit(ctx, "run_started", map[string]any{
		"max_iterations": l.cfg.MaxIterations,
		"retry_limit":    l.cfg.Policy.RetryLimit,
		"time_limit_ms":  l.cfg.Policy.TimeLimit.Milliseconds(),
	})
	log.Info("run started", zap.Int("max_iterations", l.cfg.MaxIterations))

	iterations := 0
	for state.Running && iterations < l.cfg.MaxIterations {
		if err := l.limiter.Wait(ctx); err != nil {
			state.Stop(StopCancelled)
			break
		}
		iterations++
		turnCtx := telemetry.WithTurnID(ctx, telemetry.TurnID(runID, iterations))
		l.obs.Metrics.RecordIteration()

		start := time.Now()
		resp, err := l.model.Invoke(turnCtx, conv.Messages(), l.defs)
		l.obs.Metrics.RecordModelCall(err)
		l.emitModelInvoked(turnCtx, resp, time.Since(start), err)
		if err != nil {
			if ctx.Err() != nil {
				state.Stop(StopCancelled)
				break
			}
			log.Warn("model invocation failed", zap.Int("iteration", iterations), zap.Error(err))
			continue
		}
		resp.Role = memory.RoleAssistant
		conv.Append(resp)
		log.Debug("model turn", zap.Int("iteration", iterations), zap.Int("tool_calls", len(resp.ToolCalls)), zap.String("text", resp.Text))

		conv.Append(l.handleToolCalls(turnCtx, state, resp.ToolCalls)...)
	}
	state.Stop(StopIterationBudget)

	res := Result{
		StopReason: state.Reason,
		Iterations: iterations,
		RetryCount: state.RetryCount,
		Elapsed:    l.cfg.Now().Sub(state.StartedAt),
	}
	l.obs.Metrics.RecordRun(string(res.StopReason), res.Elapsed)
	l.obs.Events.Emit(ctx, "run_stopped", map[string]any{
		"reason":      string(res.StopReason),
		"iterations":  res.Iterations,
		"retry_count": res.RetryCount,
		"elapsed_ms":  res.Elapsed.Milliseconds(),
	})
	log.Info("run stopped",
		zap.String("reason", string(res.StopReason)),
		zap.Int("iterations", res.Iterations),
		zap.Int("retry_count", res.RetryCount),
		zap.Duration("elapsed", res.Elapsed),
	)
	return conv.Messages(), res
}

// handleToolCalls answers every call of one turn, in order.
func (l *Loop) handleToolCalls(ctx context.Context, state *LoopState, calls []memory.ToolCall) []memory.Message {
	results := make([]memory.Message, 0, len(calls))
	for _, call := range calls {
		if call.Name == string(tools.SubmitAnswer) {
			msg, _ := l.evaluator.Evaluate(ctx, state, call)
			results = append(results, msg)
			continue
		}
		results = append(results, l.dispatcher.Dispatch(ctx, call))
	}
	return results
}

func (l *Loop) emitModelInvoked(ctx context.Context, resp memory.Message, took time.Duration, err error) {
	fields := map[string]any{
		"duration_ms": took.Milliseconds(),
		"tool_calls":  len(resp.ToolCalls),
		"error":       nil,
	}
	if err != nil {
		fields["error"] = "model error"
	}
	l.obs.Events.Emit(ctx, "model_invoked", fields)
}
