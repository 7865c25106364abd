package tools

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/invopop/jsonschema"
)

// Name identifies one of the tools in the closed set.
type Name string

const (
	GetRenderedHTML Name = "get_rendered_html"
	DownloadFile    Name = "download_file"
	RunCode         Name = "run_code"
	AddDependencies Name = "add_dependencies"
	SubmitAnswer    Name = "submit_answer"
)

// Names lists every tool in advertisement order.
func Names() []Name {
	return []Name{GetRenderedHTML, DownloadFile, RunCode, AddDependencies, SubmitAnswer}
}

// ErrUnknownTool is returned for identifiers outside the closed set.
var ErrUnknownTool = errors.New("unknown tool")

// ParseName maps a model-supplied identifier to a Name.
func ParseName(s string) (Name, error) {
	for _, n := range Names() {
		if string(n) == s {
			return n, nil
		}
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownTool, s)
}

// ToolDefinition pairs a tool's advertised contract with its handler.
// Handlers receive the raw JSON arguments emitted by the model.
type ToolDefinition struct {
	Name        Name
	Description string
	InputSchema InputSchema
	Function    func(ctx context.Context, input json.RawMessage) (string, error)
}

// InputSchema is the provider-neutral object schema of a tool's arguments.
type InputSchema struct {
	Properties map[string]any `json:"properties"`
	Required   []string       `json:"required,omitempty"`
}

// MarshalJSON renders the schema as a complete JSON Schema object.
func (s InputSchema) MarshalJSON() ([]byte, error) {
	type alias InputSchema
	return json.Marshal(struct {
		Type string `json:"type"`
		alias
	}{Type: "object", alias: alias(s)})
}

// GenerateSchema reflects T into an InputSchema. Field descriptions come from
// `jsonschema_description` tags; fields without omitempty are required.
func GenerateSchema[T any]() InputSchema {
	reflector := jsonschema.Reflector{
		AllowAdditionalProperties: false,
		DoNotReference:            true,
	}
	var v T
	schema := reflector.Reflect(v)

	props := map[string]any{}
	if schema.Properties != nil {
		b, err := json.Marshal(schema.Properties)
		if err != nil {
			panic(fmt.Sprintf("tools: marshal schema properties: %v", err))
		}
		if err := json.Unmarshal(b, &props); err != nil {
			panic(fmt.Sprintf("tools: decode schema properties: %v", err))
		}
	}
	return InputSchema{Properties: props, Required: schema.Required}
}

// decodeInput unmarshals tool arguments strictly. Empty input decodes as {}.
func decodeInput(input json.RawMessage, v any) error {
	if len(input) == 0 {
		input = json.RawMessage("{}")
	}
	if err := json.Unmarshal(input, v); err != nil {
		return fmt.Errorf("invalid arguments: %w", err)
	}
	return nil
}

// encodeResult renders v as compact JSON without HTML escaping, so markup and
// program output reach the model as written.
func encodeResult(v any) (string, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(v); err != nil {
		return "", err
	}
	return string(bytes.TrimSuffix(buf.Bytes(), []byte("\n"))), nil
}

const truncationSentinel = "\n-- truncated --\n"

// clampRunes clamps s to at most n runes.
func clampRunes(s string, n int) (string, bool) {
	if n <= 0 {
		return s, false
	}
	r := []rune(s)
	if len(r) <= n {
		return s, false
	}
	return string(r[:n]), true
}
