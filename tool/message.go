package tool

import (
	"context"
	"strings"
)

// SendFunc delivers a message to a channel/chat. The engine wires this to the
// outbound queue so the tool itself never touches the bus.
type SendFunc func(channel, chatID, content string) error

// MessageTool lets the model send a message to the conversation before the
// iteration loop finishes, e.g. progress notes during long tool chains.
// Destination defaults to the originating channel/chat of the invocation.
type MessageTool struct {
	send SendFunc
}

// NewMessageTool constructs a message tool delivering through send.
func NewMessageTool(send SendFunc) *MessageTool {
	return &MessageTool{send: send}
}

// Name implements Tool.
func (t *MessageTool) Name() string { return "message" }

// Description implements Tool.
func (t *MessageTool) Description() string {
	return "Send a message to the user immediately, without waiting for the current turn to finish."
}

// Parameters implements Tool.
func (t *MessageTool) Parameters() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"content": map[string]any{
				"type":        "string",
				"description": "The message text to send",
			},
		},
		"required": []string{"content"},
	}
}

// Call implements Tool.
func (t *MessageTool) Call(_ context.Context, toolCtx *Context, args map[string]any) (any, error) {
	content, ok := args["content"].(string)
	if !ok || strings.TrimSpace(content) == "" {
		return nil, NewToolError(t.Name(), "content must be a non-empty string", CodeValidation)
	}
	if toolCtx.Channel == "" || toolCtx.ChatID == "" {
		return nil, NewToolError(t.Name(), "no destination chat for this invocation", CodeExecution)
	}
	if err := t.send(toolCtx.Channel, toolCtx.ChatID, content); err != nil {
		return nil, NewToolError(t.Name(), err.Error(), CodeExecution)
	}
	return "message sent", nil
}
