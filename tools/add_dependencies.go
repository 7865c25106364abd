package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
)

type AddDependenciesInput struct {
	Dependencies []string `json:"dependencies" jsonschema_description:"Python package names (optionally with version specifiers) to install."`
}

func (d Deps) addDependencies() ToolDefinition {
	return ToolDefinition{
		Name:        AddDependencies,
		Description: "Install Python packages into the environment run_code uses.",
		InputSchema: GenerateSchema[AddDependenciesInput](),
		Function: func(ctx context.Context, input json.RawMessage) (string, error) {
			var in AddDependenciesInput
			if err := decodeInput(input, &in); err != nil {
				return "", err
			}
			if d.Runner == nil {
				return "", notConfigured(AddDependencies)
			}

			res, err := d.Runner.Install(ctx, in.Dependencies)
			if err != nil {
				return "", err
			}
			if res.ExitCode != 0 {
				return "", fmt.Errorf("install exited with code %d: %s", res.ExitCode, strings.TrimSpace(res.Stderr))
			}
			return "Successfully installed dependencies: " + strings.Join(in.Dependencies, ", "), nil
		},
	}
}
