package runner

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/petasbytes/solver-agent/memory"
	"github.com/petasbytes/solver-agent/tools"
)

var errMalformedArgs = errors.New("arguments are not valid JSON")

// Dispatcher invokes non-submission tools and turns every outcome into a
// tool result message.
type Dispatcher struct {
	registry *tools.Registry
	obs      Observer
}

// NewDispatcher returns a Dispatcher over registry.
func NewDispatcher(registry *tools.Registry, obs Observer) *Dispatcher {
	return &Dispatcher{registry: registry, obs: obs}
}

// Dispatch runs call and returns its result. It never fails: unknown tools,
// malformed arguments, handler errors and handler panics all come back as an
// error result naming the tool and its arguments.
func (d *Dispatcher) Dispatch(ctx context.Context, call memory.ToolCall) memory.Message {
	start := time.Now()
	out, label, err := d.invoke(ctx, call)
	took := time.Since(start)

	d.obs.Metrics.RecordToolCall(label, took, err)
	d.emit(ctx, call, took, len(out), err)

	if err != nil {
		d.obs.log().Warn("tool call failed",
			zap.String("tool", call.Name),
			zap.String("call_id", call.ID),
			zap.Duration("took", took),
			zap.Error(err),
		)
		d.obs.log().Debug("tool call arguments", zap.String("call_id", call.ID), zap.String("args", call.Arguments))
		return memory.ToolResult(call.ID, toolFailure(call.Name, call.Arguments, err), true)
	}
	d.obs.log().Info("tool call",
		zap.String("tool", call.Name),
		zap.String("call_id", call.ID),
		zap.Duration("took", took),
		zap.Int("output_size", len(out)),
	)
	return memory.ToolResult(call.ID, toolSuccess(out), false)
}

// invoke returns the handler output and the metrics label for the tool.
func (d *Dispatcher) invoke(ctx context.Context, call memory.ToolCall) (out string, label string, err error) {
	def, err := d.registry.Lookup(call.Name)
	if err != nil {
		return "", "unknown", err
	}
	label = string(def.Name)

	args := bytes.TrimSpace([]byte(call.Arguments))
	if len(args) == 0 {
		args = []byte("{}")
	}
	if !json.Valid(args) {
		return "", label, errMalformedArgs
	}

	defer func() {
		if r := recover(); r != nil {
			out, err = "", fmt.Errorf("tool panicked: %v", r)
		}
	}()
	out, err = def.Function(ctx, json.RawMessage(args))
	return out, label, err
}

// emit writes a tool_exec event. Error strings are generic so raw payloads
// never reach the events file.
func (d *Dispatcher) emit(ctx context.Context, call memory.ToolCall, took time.Duration, outSize int, err error) {
	if !d.obs.Events.Enabled() {
		return
	}
	fields := map[string]any{
		"tool_name":   call.Name,
		"call_id":     call.ID,
		"duration_ms": took.Milliseconds(),
		"input_size":  len(call.Arguments),
		"output_size": outSize,
		"error":       nil,
	}
	switch {
	case err == nil:
	case errors.Is(err, tools.ErrUnknownTool):
		fields["error"] = "tool not found"
	case errors.Is(err, errMalformedArgs):
		fields["error"] = "malformed arguments"
	default:
		fields["error"] = "tool error"
	}
	d.obs.Events.Emit(ctx, "tool_exec", fields)
}
