// Package tool implements the function / tool calling subsystem that lets the
// agent invoke structured capabilities (filesystem, shell, messaging,
// subagents) with schema validated arguments, consistent error handling and
// rich metadata for LLM guidance.
package tool

import (
	"context"
	"fmt"

	"github.com/hupe1980/meshbot/internal/util"
	"github.com/hupe1980/meshbot/logging"
)

// Tool defines the interface for extending agent capabilities with external functions.
//
// Tool implementations should:
//   - Provide clear, descriptive names and descriptions
//   - Define proper JSON schema for parameters
//   - Handle errors gracefully
//   - Be thread-safe if used concurrently
type Tool interface {
	// Name returns the unique identifier for this tool.
	// Names should follow function naming conventions (snake_case recommended).
	Name() string

	// Description returns a human-readable description of what this tool does.
	// This description is provided to the LLM to help it understand when and
	// how to use the tool.
	Description() string

	// Parameters returns a JSON schema describing the expected input format.
	// This schema is used for parameter validation and LLM function calling.
	Parameters() map[string]any

	// Call executes the tool with already-validated arguments. Side effects
	// (filesystem writes, shell execution, outbound HTTP, message sends) are
	// the tool's own responsibility.
	Call(ctx context.Context, toolCtx *Context, args map[string]any) (any, error)
}

// Context carries per-invocation routing metadata into tool executions:
// the session's origin channel/chat (for tools that send messages or spawn
// subagents addressed back to the conversation) and a logger.
type Context struct {
	Channel string
	ChatID  string
	CallID  string
	logger  logging.Logger
}

// NewContext constructs a tool invocation context. A nil logger is replaced
// with a NoOpLogger.
func NewContext(channel, chatID, callID string, logger logging.Logger) *Context {
	if logger == nil {
		logger = logging.NoOpLogger{}
	}
	return &Context{Channel: channel, ChatID: chatID, CallID: callID, logger: logger}
}

// Logger returns the invocation logger (never nil).
func (c *Context) Logger() logging.Logger { return c.logger }

// ValidationError represents parameter validation errors with detailed information.
type ValidationError = util.ValidationError

// Error codes attached to ToolError for categorization.
const (
	CodeValidation = "VALIDATION_ERROR"
	CodeExecution  = "EXECUTION_ERROR"
	CodeDenied     = "DENIED"
	CodeNotFound   = "NOT_FOUND"
)

// ToolError represents errors that occur during tool lookup or execution.
type ToolError struct {
	Tool    string `json:"tool"`              // Name of the tool that failed
	Message string `json:"message"`           // Error message
	Code    string `json:"code"`              // Error code for categorization
	Details any    `json:"details,omitempty"` // Additional error details
}

func (e *ToolError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("tool error [%s] in %s: %s", e.Code, e.Tool, e.Message)
	}
	return fmt.Sprintf("tool error in %s: %s", e.Tool, e.Message)
}

// NewToolError creates a new ToolError with the specified details.
func NewToolError(tool, message, code string) *ToolError {
	return &ToolError{
		Tool:    tool,
		Message: message,
		Code:    code,
	}
}
