package memory

import (
	"encoding/json"
	"os"
	"path/filepath"
)

// Role identifies the author of a message.
type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleTool      Role = "tool"
)

// ToolCall is a model request to invoke one named tool.
type ToolCall struct {
	ID   string `json:"id"`
	Name string `json:"name"`
	// Arguments is the JSON argument string exactly as the model produced it.
	Arguments string `json:"arguments,omitempty"`
}

// Message is one entry of the conversation.
// Tool messages answer a single ToolCall via ToolCallID.
type Message struct {
	Role       Role       `json:"role"`
	Text       string     `json:"text,omitempty"`
	ToolCalls  []ToolCall `json:"tool_calls,omitempty"`
	ToolCallID string     `json:"tool_call_id,omitempty"`
	IsError    bool       `json:"is_error,omitempty"`
}

// ToolResult builds the tool message answering callID.
func ToolResult(callID, content string, isError bool) Message {
	return Message{Role: RoleTool, Text: content, ToolCallID: callID, IsError: isError}
}

// Conversation is the ordered, append-only history of a run.
type Conversation struct {
	msgs []Message
}

// NewConversation seeds a conversation with the given messages.
func NewConversation(seed ...Message) *Conversation {
	c := &Conversation{msgs: make([]Message, 0, len(seed)+16)}
	c.msgs = append(c.msgs, seed...)
	return c
}

// Append adds messages to the end of the history.
func (c *Conversation) Append(msgs ...Message) {
	c.msgs = append(c.msgs, msgs...)
}

// Len returns the number of messages.
func (c *Conversation) Len() int { return len(c.msgs) }

// Messages returns a copy of the history so callers cannot mutate it.
func (c *Conversation) Messages() []Message {
	out := make([]Message, len(c.msgs))
	copy(out, c.msgs)
	return out
}

// SaveConversation writes msgs as indented JSON, creating parent directories.
func SaveConversation(path string, msgs []Message) error {
	b, err := json.MarshalIndent(msgs, "", " ")
	if err != nil {
		return err
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return err
		}
	}
	return os.WriteFile(path, b, 0o644)
}
