package core

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// Conversation roles. Tool results are stored as RoleTool messages referencing
// the originating call via ToolCallID.
const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
	RoleTool      = "tool"
)

// ToolCall is a structured request, emitted by the model, to invoke a named
// tool. Arguments hold the raw JSON payload exactly as produced by the
// provider; validation against the tool schema happens in the registry.
type ToolCall struct {
	ID        string          `json:"id"`
	Name      string          `json:"name"`
	Arguments json.RawMessage `json:"arguments,omitempty"`
}

// Message is a single entry in a session's ordered history. After it has been
// appended to a session it must be treated as immutable.
//
// Invariants:
//   - An assistant message carrying ToolCalls is always followed by exactly
//     one RoleTool message per call, in call order, each referencing the call
//     through ToolCallID.
//   - Marker is set only on the synthetic message that replaces a
//     consolidated history prefix.
type Message struct {
	ID         string     `json:"id"`
	Role       string     `json:"role"`
	Content    string     `json:"content,omitempty"`
	ToolCalls  []ToolCall `json:"tool_calls,omitempty"`
	ToolCallID string     `json:"tool_call_id,omitempty"`
	Marker     bool       `json:"marker,omitempty"`
	Timestamp  time.Time  `json:"timestamp"`
}

// NewMessage creates a bare message with a fresh ID and UTC timestamp.
func NewMessage(role, content string) Message {
	return Message{
		ID:        NewID(),
		Role:      role,
		Content:   content,
		Timestamp: time.Now().UTC(),
	}
}

// NewUserMessage creates a user-authored text message.
func NewUserMessage(content string) Message { return NewMessage(RoleUser, content) }

// NewAssistantMessage creates an assistant text message.
func NewAssistantMessage(content string) Message { return NewMessage(RoleAssistant, content) }

// NewToolCallMessage creates the assistant message that requests execution of
// one or more tools. Content may carry accompanying reasoning text.
func NewToolCallMessage(content string, calls []ToolCall) Message {
	m := NewMessage(RoleAssistant, content)
	m.ToolCalls = calls
	return m
}

// NewToolResultMessage records the outcome of a previously emitted tool call.
func NewToolResultMessage(callID, content string) Message {
	m := NewMessage(RoleTool, content)
	m.ToolCallID = callID
	return m
}

// NewConsolidationMarker creates the synthetic message inserted in place of a
// consolidated history prefix.
func NewConsolidationMarker(summary string) Message {
	m := NewMessage(RoleSystem, summary)
	m.Marker = true
	return m
}

// IsConsolidationMarker reports whether this message replaced a consolidated
// history prefix.
func (m Message) IsConsolidationMarker() bool { return m.Marker }

// HasToolCalls reports whether the message requests any tool executions.
func (m Message) HasToolCalls() bool { return len(m.ToolCalls) > 0 }

// NewID generates a unique identifier for messages and tool calls.
func NewID() string { return uuid.NewString() }
