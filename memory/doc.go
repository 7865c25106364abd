// Package memory holds the conversation history of a single solver run.
//
// History model:
//   - Append-only for the duration of a run; the agent loop is the only writer.
//   - Assistant messages may carry tool calls; each call is answered by exactly
//     one tool message carrying the matching ToolCallID.
//   - Nothing is reloaded across process runs. SaveConversation only writes a
//     transcript for inspection.
package memory
