package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/petasbytes/solver-agent/internal/browser"
	"github.com/petasbytes/solver-agent/internal/fsops"
	"github.com/petasbytes/solver-agent/internal/sandbox"
	"github.com/petasbytes/solver-agent/internal/submit"
)

// Renderer renders a page after its scripts have run.
type Renderer interface {
	Render(ctx context.Context, url string) (browser.Page, error)
}

// CodeRunner executes code and installs packages in the workspace.
type CodeRunner interface {
	RunPython(ctx context.Context, code string) (sandbox.ExecResult, error)
	Install(ctx context.Context, packages []string) (sandbox.ExecResult, error)
}

// Submitter posts an answer to a verification endpoint.
type Submitter interface {
	Submit(ctx context.Context, submissionURL string, payload json.RawMessage) (submit.Response, error)
}

// Deps are the capabilities behind the tools. A nil capability makes the
// corresponding tool fail at call time with a "not configured" error.
type Deps struct {
	Renderer     Renderer
	Workspace    *fsops.Workspace
	HTTPClient   *http.Client // downloads; nil uses http.DefaultClient
	MaxDownload  int64        // bytes; 0 means unlimited
	MaxHTMLRunes int          // 0 means unlimited
	Runner       CodeRunner
	Submitter    Submitter // direct submit_answer calls only; the loop uses its own
}

// Registry is the fixed mapping from Name to ToolDefinition, built once.
type Registry struct {
	defs map[Name]ToolDefinition
}

// NewRegistry wires every Name to its capability.
func NewRegistry(d Deps) *Registry {
	r := &Registry{defs: make(map[Name]ToolDefinition, len(Names()))}
	for _, n := range Names() {
		r.defs[n] = d.definition(n)
	}
	return r
}

func (d Deps) definition(n Name) ToolDefinition {
	switch n {
	case GetRenderedHTML:
		return d.getRenderedHTML()
	case DownloadFile:
		return d.downloadFile()
	case RunCode:
		return d.runCode()
	case AddDependencies:
		return d.addDependencies()
	case SubmitAnswer:
		return d.submitAnswer()
	}
	panic(fmt.Sprintf("tools: no definition for %q", n))
}

// Definitions returns all tool definitions in advertisement order.
func (r *Registry) Definitions() []ToolDefinition {
	out := make([]ToolDefinition, 0, len(r.defs))
	for _, n := range Names() {
		out = append(out, r.defs[n])
	}
	return out
}

// Lookup resolves a model-supplied identifier. Unknown identifiers wrap
// ErrUnknownTool.
func (r *Registry) Lookup(name string) (ToolDefinition, error) {
	n, err := ParseName(name)
	if err != nil {
		return ToolDefinition{}, err
	}
	return r.defs[n], nil
}

func notConfigured(n Name) error {
	return fmt.Errorf("%s is not configured", n)
}
