package cli

import (
	"encoding/json"

	"github.com/spf13/cobra"

	"github.com/petasbytes/solver-agent/tools"
)

type toolSchema struct {
	Name        tools.Name        `json:"name"`
	Description string            `json:"description"`
	InputSchema tools.InputSchema `json:"input_schema"`
}

// NewToolsCmd prints the tool schemas advertised to the model.
func NewToolsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "tools",
		Short: "Print the advertised tool schemas as JSON",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			defs := tools.NewRegistry(tools.Deps{}).Definitions()
			out := make([]toolSchema, 0, len(defs))
			for _, d := range defs {
				out = append(out, toolSchema{Name: d.Name, Description: d.Description, InputSchema: d.InputSchema})
			}
			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(out)
		},
	}
}
