package provider

import (
	"context"
	"errors"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"

	"github.com/petasbytes/solver-agent/memory"
	"github.com/petasbytes/solver-agent/tools"
)

// OpenAI invokes an OpenAI-compatible chat completions endpoint (OpenAI,
// OpenRouter).
type OpenAI struct {
	client    openai.Client
	model     string
	maxTokens int64
}

// NewOpenAI builds a client. An empty API key lets the SDK read
// OPENAI_API_KEY from the environment.
func NewOpenAI(opts Options) *OpenAI {
	var reqOpts []option.RequestOption
	if opts.APIKey != "" {
		reqOpts = append(reqOpts, option.WithAPIKey(opts.APIKey))
	}
	if opts.BaseURL != "" {
		reqOpts = append(reqOpts, option.WithBaseURL(opts.BaseURL))
	}
	if opts.HTTPClient != nil {
		reqOpts = append(reqOpts, option.WithHTTPClient(opts.HTTPClient))
	}
	return &OpenAI{client: openai.NewClient(reqOpts...), model: opts.Model, maxTokens: opts.MaxTokens}
}

// Invoke sends the conversation and returns the first choice.
func (o *OpenAI) Invoke(ctx context.Context, msgs []memory.Message, defs []tools.ToolDefinition) (memory.Message, error) {
	params := openai.ChatCompletionNewParams{
		Model:    openai.ChatModel(o.model),
		Messages: openAIMessages(msgs),
		Tools:    openAITools(defs),
	}
	if o.maxTokens > 0 {
		params.MaxTokens = openai.Int(o.maxTokens)
	}

	completion, err := o.client.Chat.Completions.New(ctx, params)
	if err != nil {
		return memory.Message{}, err
	}
	if len(completion.Choices) == 0 {
		return memory.Message{}, errors.New("completion has no choices")
	}

	choice := completion.Choices[0].Message
	out := memory.Message{Role: memory.RoleAssistant, Text: choice.Content}
	for _, tc := range choice.ToolCalls {
		out.ToolCalls = append(out.ToolCalls, memory.ToolCall{
			ID:        tc.ID,
			Name:      tc.Function.Name,
			Arguments: tc.Function.Arguments,
		})
	}
	return out, nil
}

func openAITools(defs []tools.ToolDefinition) []openai.ChatCompletionToolParam {
	out := make([]openai.ChatCompletionToolParam, 0, len(defs))
	for _, t := range defs {
		params := openai.FunctionParameters{
			"type":       "object",
			"properties": t.InputSchema.Properties,
		}
		if len(t.InputSchema.Required) > 0 {
			params["required"] = t.InputSchema.Required
		}
		out = append(out, openai.ChatCompletionToolParam{
			Function: openai.FunctionDefinitionParam{
				Name:        string(t.Name),
				Description: openai.String(t.Description),
				Parameters:  params,
			},
		})
	}
	return out
}

func openAIMessages(msgs []memory.Message) []openai.ChatCompletionMessageParamUnion {
	out := make([]openai.ChatCompletionMessageParamUnion, 0, len(msgs))
	for _, m := range msgs {
		switch m.Role {
		case memory.RoleSystem:
			out = append(out, openai.SystemMessage(m.Text))
		case memory.RoleTool:
			out = append(out, openai.ToolMessage(m.Text, m.ToolCallID))
		case memory.RoleAssistant:
			asst := openai.ChatCompletionAssistantMessageParam{}
			if m.Text != "" {
				asst.Content.OfString = openai.String(m.Text)
			}
			for _, tc := range m.ToolCalls {
				asst.ToolCalls = append(asst.ToolCalls, openai.ChatCompletionMessageToolCallParam{
					ID: tc.ID,
					Function: openai.ChatCompletionMessageToolCallFunctionParam{
						Name:      tc.Name,
						Arguments: tc.Arguments,
					},
				})
			}
			out = append(out, openai.ChatCompletionMessageParamUnion{OfAssistant: &asst})
		default:
			out = append(out, openai.UserMessage(m.Text))
		}
	}
	return out
}
