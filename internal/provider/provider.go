// Package provider adapts chat-completion APIs to the solver's model boundary:
// a conversation plus tool definitions in, one assistant message out.
package provider

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"github.com/petasbytes/solver-agent/memory"
	"github.com/petasbytes/solver-agent/tools"
)

// Model invokes a language model once.
type Model interface {
	Invoke(ctx context.Context, msgs []memory.Message, defs []tools.ToolDefinition) (memory.Message, error)
}

// Options configures a provider client.
type Options struct {
	Model      string
	APIKey     string
	BaseURL    string
	MaxTokens  int64
	HTTPClient *http.Client
}

const (
	TypeAnthropic  = "anthropic"
	TypeOpenAI     = "openai"
	TypeOpenRouter = "openrouter"
)

// OpenRouterBaseURL is used for the openrouter type when no base URL is set.
const OpenRouterBaseURL = "https://openrouter.ai/api/v1"

// New returns the Model for providerType.
func New(providerType string, opts Options) (Model, error) {
	switch strings.ToLower(providerType) {
	case TypeAnthropic:
		return NewAnthropic(opts), nil
	case TypeOpenAI:
		return NewOpenAI(opts), nil
	case TypeOpenRouter:
		if opts.BaseURL == "" {
			opts.BaseURL = OpenRouterBaseURL
		}
		return NewOpenAI(opts), nil
	default:
		return nil, fmt.Errorf("unsupported provider type %q", providerType)
	}
}

// splitSystem separates system messages, joined in order, from the rest.
func splitSystem(msgs []memory.Message) (string, []memory.Message) {
	var system []string
	rest := make([]memory.Message, 0, len(msgs))
	for _, m := range msgs {
		if m.Role == memory.RoleSystem {
			system = append(system, m.Text)
			continue
		}
		rest = append(rest, m)
	}
	return strings.Join(system, "\n\n"), rest
}
