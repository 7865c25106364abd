package tools

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
)

type RunCodeInput struct {
	Code string `json:"code" jsonschema_description:"Python source to execute. The working directory is the workspace, so downloaded files are reachable by relative path. Print what you need to see."`
}

func (d Deps) runCode() ToolDefinition {
	return ToolDefinition{
		Name:        RunCode,
		Description: "Execute Python code in the workspace and return stdout, stderr and the exit code. A non-zero exit code is reported, not raised. Do not use it to submit answers; use submit_answer.",
		InputSchema: GenerateSchema[RunCodeInput](),
		Function: func(ctx context.Context, input json.RawMessage) (string, error) {
			var in RunCodeInput
			if err := decodeInput(input, &in); err != nil {
				return "", err
			}
			if strings.TrimSpace(in.Code) == "" {
				return "", errors.New("code is required")
			}
			if d.Runner == nil {
				return "", notConfigured(RunCode)
			}

			res, err := d.Runner.RunPython(ctx, in.Code)
			if err != nil {
				return "", err
			}
			return encodeResult(res)
		},
	}
}
