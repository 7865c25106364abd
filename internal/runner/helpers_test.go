package runner_test

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/petasbytes/solver-agent/internal/sandbox"
	"github.com/petasbytes/solver-agent/internal/submit"
	"github.com/petasbytes/solver-agent/memory"
	"github.com/petasbytes/solver-agent/tools"
)

// scriptedModel replays turns produced by next and records what it was sent.
type scriptedModel struct {
	mu    sync.Mutex
	next  func(n int, history []memory.Message) (memory.Message, error)
	calls int
	seen  [][]memory.Message
}

func (m *scriptedModel) Invoke(ctx context.Context, msgs []memory.Message, defs []tools.ToolDefinition) (memory.Message, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls++
	m.seen = append(m.seen, msgs)
	return m.next(m.calls, msgs)
}

// submitEveryTurn asks for one submission per turn.
func submitEveryTurn() *scriptedModel {
	return &scriptedModel{next: func(n int, _ []memory.Message) (memory.Message, error) {
		return memory.Message{Role: memory.RoleAssistant, ToolCalls: []memory.ToolCall{
			submitCall(fmt.Sprintf("s%d", n)),
		}}, nil
	}}
}

func submitCall(id string) memory.ToolCall {
	return memory.ToolCall{ID: id, Name: "submit_answer", Arguments: `{"submission_url":"https://x/submit","payload":"{\"answer\": 42}"}`}
}

// fakeSubmitter returns verdicts from respond, called with the 1-based attempt.
type fakeSubmitter struct {
	respond  func(n int) (submit.Response, error)
	calls    int
	payloads []json.RawMessage
}

func (f *fakeSubmitter) Submit(ctx context.Context, url string, payload json.RawMessage) (submit.Response, error) {
	f.calls++
	f.payloads = append(f.payloads, payload)
	return f.respond(f.calls)
}

func verdict(correct bool, nextURL, reason string) submit.Response {
	return submit.Response{Correct: &correct, NextURL: nextURL, Reason: reason}
}

func always(r submit.Response) *fakeSubmitter {
	return &fakeSubmitter{respond: func(int) (submit.Response, error) { return r, nil }}
}

// fakeClock advances only when told to.
type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newClock() *fakeClock { return &fakeClock{now: time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)} }

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

// fakeRunner backs run_code and add_dependencies.
type fakeRunner struct {
	panicOn string
}

func (f *fakeRunner) RunPython(ctx context.Context, code string) (sandbox.ExecResult, error) {
	if code == f.panicOn {
		panic("interpreter crashed")
	}
	if code == "fail" {
		return sandbox.ExecResult{}, errors.New("exec: python: not found")
	}
	return sandbox.ExecResult{Stdout: "ok\n"}, nil
}

func (f *fakeRunner) Install(ctx context.Context, packages []string) (sandbox.ExecResult, error) {
	return sandbox.ExecResult{}, nil
}

func newRegistry() *tools.Registry {
	return tools.NewRegistry(tools.Deps{Runner: &fakeRunner{panicOn: "boom"}})
}
