// Package tools defines the fixed set of tools the solver advertises to the
// model.
//
// Includes:
//   - Name: the closed set of tool identifiers; ParseName rejects anything else.
//   - ToolDefinition: name, description, JSON input schema, handler.
//   - GenerateSchema[T](): derive JSON Schema from Go structs.
//   - Registry: one definition per Name, wired to its capability (browser,
//     download, sandbox, submission).
package tools
