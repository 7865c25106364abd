package runner_test

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/petasbytes/solver-agent/internal/runner"
	"github.com/petasbytes/solver-agent/internal/submit"
	"github.com/petasbytes/solver-agent/internal/telemetry"
	"github.com/petasbytes/solver-agent/memory"
	"github.com/petasbytes/solver-agent/tools"
)

func newLoop(m *scriptedModel, s *fakeSubmitter, clock *fakeClock, obs runner.Observer) *runner.Loop {
	return runner.New(m, newRegistry(), s, runner.Config{Policy: runner.DefaultPolicy, Now: clock.Now}, obs)
}

func seed() *memory.Conversation {
	return memory.NewConversation(
		memory.Message{Role: memory.RoleSystem, Text: "solve"},
		memory.Message{Role: memory.RoleUser, Text: "https://x/q1"},
	)
}

// assertPaired checks that every tool call in msgs is answered, in order,
// by the tool messages that immediately follow its assistant turn.
func assertPaired(t *testing.T, msgs []memory.Message) {
	t.Helper()
	for i, m := range msgs {
		if m.Role != memory.RoleAssistant || len(m.ToolCalls) == 0 {
			continue
		}
		for j, call := range m.ToolCalls {
			k := i + 1 + j
			if k >= len(msgs) || msgs[k].Role != memory.RoleTool || msgs[k].ToolCallID != call.ID {
				t.Fatalf("call %s at message %d has no matching result", call.ID, i)
			}
		}
		if k := i + 1 + len(m.ToolCalls); k < len(msgs) && msgs[k].Role == memory.RoleTool {
			t.Fatalf("extra tool result after message %d", i)
		}
	}
}

func TestRun_NoNextURLRunsExactlyTheIterationBudget(t *testing.T) {
	m := submitEveryTurn()
	s := always(verdict(false, "", "wrong"))
	clock := newClock()

	msgs, res := newLoop(m, s, clock, runner.Observer{}).Run(context.Background(), seed())

	if m.calls != 20 {
		t.Fatalf("model invocations: got %d want 20", m.calls)
	}
	if res.StopReason != runner.StopIterationBudget || res.Iterations != 20 || res.RetryCount != 20 {
		t.Fatalf("unexpected result: %+v", res)
	}
	// seed(2) + 20 * (assistant + result)
	if len(msgs) != 42 {
		t.Fatalf("history length: got %d want 42", len(msgs))
	}
	assertPaired(t, msgs)
}

func TestRun_NoNextURLIgnoresWallClock(t *testing.T) {
	m := submitEveryTurn()
	clock := newClock()
	s := &fakeSubmitter{respond: func(int) (submit.Response, error) {
		clock.Advance(time.Minute)
		return verdict(false, "", "wrong"), nil
	}}

	_, res := newLoop(m, s, clock, runner.Observer{}).Run(context.Background(), seed())
	if res.StopReason != runner.StopIterationBudget || m.calls != 20 {
		t.Fatalf("unexpected result: %+v calls=%d", res, m.calls)
	}
}

func TestRun_NextURLEveryTimeStopsOnThirdAttempt(t *testing.T) {
	m := submitEveryTurn()
	s := &fakeSubmitter{respond: func(n int) (submit.Response, error) {
		return verdict(false, fmt.Sprintf("https://x/%d", n+1), "wrong"), nil
	}}

	msgs, res := newLoop(m, s, newClock(), runner.Observer{}).Run(context.Background(), seed())

	if res.StopReason != runner.StopSuccess || res.RetryCount != 3 || m.calls != 3 {
		t.Fatalf("unexpected result: %+v calls=%d", res, m.calls)
	}
	last := msgs[len(msgs)-1]
	if last.Text != runner.SuccessMessage {
		t.Fatalf("last message: %q", last.Text)
	}
	if !strings.HasPrefix(msgs[3].Text, "Retry again!") {
		t.Fatalf("first attempt should retry: %q", msgs[3].Text)
	}
}

func TestRun_CorrectStopsImmediately(t *testing.T) {
	m := submitEveryTurn()
	s := always(verdict(true, "", ""))

	_, res := newLoop(m, s, newClock(), runner.Observer{}).Run(context.Background(), seed())
	if res.StopReason != runner.StopSuccess || m.calls != 1 || res.RetryCount != 1 {
		t.Fatalf("unexpected result: %+v calls=%d", res, m.calls)
	}
}

func TestRun_TimeoutOnceWallClockPassed(t *testing.T) {
	m := submitEveryTurn()
	clock := newClock()
	s := &fakeSubmitter{respond: func(n int) (submit.Response, error) {
		if n == 2 {
			clock.Advance(181 * time.Second)
		}
		return verdict(false, "https://x/next", "wrong"), nil
	}}

	msgs, res := newLoop(m, s, clock, runner.Observer{}).Run(context.Background(), seed())
	if res.StopReason != runner.StopTimeout || res.RetryCount != 2 || m.calls != 2 {
		t.Fatalf("unexpected result: %+v calls=%d", res, m.calls)
	}
	if msgs[len(msgs)-1].Text != runner.TimeoutMessage {
		t.Fatalf("last message: %q", msgs[len(msgs)-1].Text)
	}
	if res.Elapsed < 180*time.Second {
		t.Fatalf("elapsed: %v", res.Elapsed)
	}
}

func TestRun_PlainTextTurnsDoNotStop(t *testing.T) {
	m := &scriptedModel{next: func(n int, _ []memory.Message) (memory.Message, error) {
		return memory.Message{Role: memory.RoleAssistant, Text: "thinking"}, nil
	}}

	msgs, res := newLoop(m, always(verdict(true, "", "")), newClock(), runner.Observer{}).Run(context.Background(), seed())
	if res.StopReason != runner.StopIterationBudget || m.calls != 20 || len(msgs) != 22 {
		t.Fatalf("unexpected result: %+v calls=%d len=%d", res, m.calls, len(msgs))
	}
}

func TestRun_EveryRequestAnsweredBeforeNextInvocation(t *testing.T) {
	m := &scriptedModel{}
	m.next = func(n int, history []memory.Message) (memory.Message, error) {
		assertPaired(t, history)
		calls := []memory.ToolCall{
			{ID: fmt.Sprintf("a%d", n), Name: "run_code", Arguments: `{"code":"print(1)"}`},
			{ID: fmt.Sprintf("b%d", n), Name: "nonexistent_tool", Arguments: `{}`},
			{ID: fmt.Sprintf("c%d", n), Name: "run_code", Arguments: `{bad json`},
			submitCall(fmt.Sprintf("d%d", n)),
			{ID: fmt.Sprintf("e%d", n), Name: "run_code", Arguments: `{"code":"boom"}`},
		}
		return memory.Message{Role: memory.RoleAssistant, ToolCalls: calls}, nil
	}
	s := &fakeSubmitter{respond: func(n int) (submit.Response, error) {
		if n == 2 {
			return submit.Response{}, errors.New("connection reset")
		}
		return verdict(false, "", "wrong"), nil
	}}

	msgs, res := newLoop(m, s, newClock(), runner.Observer{}).Run(context.Background(), seed())
	assertPaired(t, msgs)

	requests, results := 0, 0
	for _, msg := range msgs {
		requests += len(msg.ToolCalls)
		if msg.Role == memory.RoleTool {
			results++
		}
	}
	if requests != results || requests != 100 {
		t.Fatalf("requests=%d results=%d", requests, results)
	}
	if res.RetryCount != 20 {
		t.Fatalf("retry count: %d", res.RetryCount)
	}
}

func TestRun_SubmissionsAfterStopInSameTurnAreSkipped(t *testing.T) {
	m := &scriptedModel{next: func(n int, _ []memory.Message) (memory.Message, error) {
		return memory.Message{Role: memory.RoleAssistant, ToolCalls: []memory.ToolCall{
			submitCall("first"),
			submitCall("second"),
			{ID: "after", Name: "run_code", Arguments: `{"code":"print(1)"}`},
		}}, nil
	}}
	s := always(verdict(true, "", ""))

	msgs, res := newLoop(m, s, newClock(), runner.Observer{}).Run(context.Background(), seed())
	if res.StopReason != runner.StopSuccess || res.RetryCount != 1 || s.calls != 1 || m.calls != 1 {
		t.Fatalf("unexpected result: %+v submits=%d calls=%d", res, s.calls, m.calls)
	}
	assertPaired(t, msgs)
	if msgs[4].Text != runner.SkippedMessage {
		t.Fatalf("second submission: %q", msgs[4].Text)
	}
	if msgs[5].IsError {
		t.Fatalf("remaining calls of the turn still run: %+v", msgs[5])
	}
}

func TestRun_ModelErrorsConsumeIterations(t *testing.T) {
	m := &scriptedModel{next: func(n int, _ []memory.Message) (memory.Message, error) {
		if n%2 == 1 {
			return memory.Message{}, errors.New("503 overloaded")
		}
		return memory.Message{Role: memory.RoleAssistant, Text: "ok"}, nil
	}}

	msgs, res := newLoop(m, always(verdict(true, "", "")), newClock(), runner.Observer{}).Run(context.Background(), seed())
	if res.StopReason != runner.StopIterationBudget || m.calls != 20 {
		t.Fatalf("unexpected result: %+v calls=%d", res, m.calls)
	}
	if len(msgs) != 12 {
		t.Fatalf("failed turns must not be appended: len=%d", len(msgs))
	}
}

func TestRun_Cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	m := &scriptedModel{next: func(n int, _ []memory.Message) (memory.Message, error) {
		if n == 3 {
			cancel()
		}
		return memory.Message{Role: memory.RoleAssistant, Text: "…"}, nil
	}}

	_, res := newLoop(m, always(verdict(true, "", "")), newClock(), runner.Observer{}).Run(ctx, seed())
	if res.StopReason != runner.StopCancelled || m.calls != 3 || res.Iterations != 3 {
		t.Fatalf("unexpected result: %+v calls=%d", res, m.calls)
	}
}

func TestRun_PauseSpacesInvocations(t *testing.T) {
	var stamps []time.Time
	m := &scriptedModel{next: func(n int, _ []memory.Message) (memory.Message, error) {
		stamps = append(stamps, time.Now())
		return memory.Message{Role: memory.RoleAssistant, Text: "x"}, nil
	}}
	cfg := runner.Config{MaxIterations: 3, Pause: 30 * time.Millisecond, Policy: runner.DefaultPolicy}
	l := runner.New(m, newRegistry(), always(verdict(true, "", "")), cfg, runner.Observer{})

	_, res := l.Run(context.Background(), seed())
	if res.Iterations != 3 {
		t.Fatalf("iterations: %d", res.Iterations)
	}
	for i := 1; i < len(stamps); i++ {
		if gap := stamps[i].Sub(stamps[i-1]); gap < 25*time.Millisecond {
			t.Fatalf("invocations %d and %d only %v apart", i-1, i, gap)
		}
	}
}

func TestRun_EmitsRunEvents(t *testing.T) {
	sink := telemetry.NewSink(t.TempDir(), true)
	m := submitEveryTurn()
	s := always(verdict(true, "", ""))

	ctx := telemetry.WithRunID(context.Background(), "run-abc")
	newLoop(m, s, newClock(), runner.Observer{Events: sink}).Run(ctx, seed())

	lines := readEventLines(t, sink)
	started := lastEvent(t, lines, "run_started")
	if started["run_id"] != "run-abc" {
		t.Fatalf("run_started: %v", started)
	}
	invoked := lastEvent(t, lines, "model_invoked")
	if invoked["turn_id"] != "run-abc/1" {
		t.Fatalf("model_invoked: %v", invoked)
	}
	sub := lastEvent(t, lines, "submission")
	if sub["outcome"] != "success" || sub["attempt"] != float64(1) {
		t.Fatalf("submission: %v", sub)
	}
	stopped := lastEvent(t, lines, "run_stopped")
	if stopped["reason"] != "success" || stopped["iterations"] != float64(1) {
		t.Fatalf("run_stopped: %v", stopped)
	}
	if strings.Contains(strings.Join(lines, "\n"), "x/submit") {
		t.Fatal("submission arguments leaked into events")
	}
}

func TestRun_ZeroConfigUsesDefaultPolicy(t *testing.T) {
	m := submitEveryTurn()
	s := always(verdict(false, "https://x/2", "wrong"))

	_, res := runner.New(m, newRegistry(), s, runner.Config{}, runner.Observer{}).Run(context.Background(), seed())

	if m.calls != 3 {
		t.Fatalf("model invocations: got %d want 3", m.calls)
	}
	if res.StopReason != runner.StopSuccess || res.RetryCount != 3 {
		t.Fatalf("unexpected result: %+v", res)
	}
}

func TestRun_SubmissionsBypassRegistryHandler(t *testing.T) {
	m := submitEveryTurn()
	viaRegistry := always(verdict(false, "", "registry"))
	viaLoop := always(verdict(true, "", ""))
	reg := tools.NewRegistry(tools.Deps{Submitter: viaRegistry})

	_, res := runner.New(m, reg, viaLoop, runner.Config{}, runner.Observer{}).Run(context.Background(), seed())

	if res.StopReason != runner.StopSuccess {
		t.Fatalf("unexpected result: %+v", res)
	}
	if viaRegistry.calls != 0 || viaLoop.calls != 1 {
		t.Fatalf("registry calls=%d loop calls=%d", viaRegistry.calls, viaLoop.calls)
	}
}
