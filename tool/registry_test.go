package tool

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/meshbot/core"
)

func newEchoTool(name string) Tool {
	return NewFunctionTool(name, "echoes the input",
		map[string]any{
			"type": "object",
			"properties": map[string]any{
				"text": map[string]any{"type": "string", "description": "text to echo"},
			},
			"required": []string{"text"},
		},
		func(_ context.Context, _ *Context, args map[string]any) (any, error) {
			return args["text"], nil
		},
	)
}

func TestRegistryRegisterDuplicate(t *testing.T) {
	r := NewRegistry()
	require.NoError(t, r.Register(newEchoTool("echo")))
	err := r.Register(newEchoTool("echo"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "already registered")
}

func TestRegistrySpecsSorted(t *testing.T) {
	r := NewRegistry()
	r.MustRegister(newEchoTool("zeta"), newEchoTool("alpha"), newEchoTool("mid"))

	specs := r.Specs()
	require.Len(t, specs, 3)
	assert.Equal(t, "alpha", specs[0].Function.Name)
	assert.Equal(t, "mid", specs[1].Function.Name)
	assert.Equal(t, "zeta", specs[2].Function.Name)
	assert.Equal(t, "function", specs[0].Type)
}

func TestRegistryRestricted(t *testing.T) {
	r := NewRegistry()
	r.MustRegister(newEchoTool("echo"), newEchoTool("spawn"), newEchoTool("message"))

	restricted := r.Restricted("spawn", "message")
	assert.Equal(t, []string{"echo"}, restricted.Names())

	// The original registry is untouched.
	assert.Equal(t, []string{"echo", "message", "spawn"}, r.Names())
}

func TestInvokeUnknownTool(t *testing.T) {
	r := NewRegistry()
	result := r.Invoke(context.Background(), core.ToolCall{ID: "c1", Name: "missing"}, NewContext("", "", "c1", nil))
	assert.False(t, result.Success)
	assert.Contains(t, result.Error, "NOT_FOUND")
}

func TestInvokeMalformedArguments(t *testing.T) {
	r := NewRegistry()
	r.MustRegister(newEchoTool("echo"))

	result := r.Invoke(context.Background(), core.ToolCall{
		ID:        "c1",
		Name:      "echo",
		Arguments: json.RawMessage(`[1,2,3]`),
	}, NewContext("", "", "c1", nil))

	assert.False(t, result.Success)
	assert.Contains(t, result.Error, "VALIDATION_ERROR")
}

func TestInvokeSchemaViolationNeverExecutes(t *testing.T) {
	executed := false
	tl := NewFunctionTool("strict", "requires text",
		map[string]any{
			"type": "object",
			"properties": map[string]any{
				"text": map[string]any{"type": "string", "description": "required text"},
			},
			"required": []string{"text"},
		},
		func(_ context.Context, _ *Context, _ map[string]any) (any, error) {
			executed = true
			return "ran", nil
		},
	)
	r := NewRegistry()
	r.MustRegister(tl)

	result := r.Invoke(context.Background(), core.ToolCall{
		ID:        "c1",
		Name:      "strict",
		Arguments: json.RawMessage(`{"wrong":"field"}`),
	}, NewContext("", "", "c1", nil))

	assert.False(t, result.Success)
	assert.False(t, executed, "tool body must not run when validation fails")
}

// rawTool implements Tool directly without any argument checking of its own,
// the way hand-rolled tools like the exec and fs tools do.
type rawTool struct {
	executed bool
}

func (r *rawTool) Name() string        { return "raw" }
func (r *rawTool) Description() string { return "no internal validation" }

func (r *rawTool) Parameters() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"path": map[string]any{"type": "string", "description": "required path"},
		},
		"required": []string{"path"},
	}
}

func (r *rawTool) Call(_ context.Context, _ *Context, args map[string]any) (any, error) {
	r.executed = true
	return args["path"], nil
}

func TestInvokeValidatesForToolsWithoutOwnChecks(t *testing.T) {
	raw := &rawTool{}
	r := NewRegistry()
	r.MustRegister(raw)

	result := r.Invoke(context.Background(), core.ToolCall{
		ID:        "c1",
		Name:      "raw",
		Arguments: json.RawMessage(`{"path":42}`),
	}, NewContext("", "", "c1", nil))

	assert.False(t, result.Success)
	assert.Contains(t, result.Error, "VALIDATION_ERROR")
	assert.False(t, raw.executed, "registry must reject before the tool runs")

	result = r.Invoke(context.Background(), core.ToolCall{
		ID:        "c2",
		Name:      "raw",
		Arguments: json.RawMessage(`{}`),
	}, NewContext("", "", "c2", nil))

	assert.False(t, result.Success)
	assert.False(t, raw.executed, "missing required field must not execute")
}

func TestInvokeExecutionErrorBecomesResult(t *testing.T) {
	tl := NewFunctionTool("boom", "always fails",
		map[string]any{"type": "object", "properties": map[string]any{}},
		func(_ context.Context, _ *Context, _ map[string]any) (any, error) {
			return nil, errors.New("kaboom")
		},
	)
	r := NewRegistry()
	r.MustRegister(tl)

	result := r.Invoke(context.Background(), core.ToolCall{ID: "c1", Name: "boom"}, NewContext("", "", "c1", nil))
	assert.False(t, result.Success)
	assert.Contains(t, result.Content(), "Error:")
}

func TestInvokeSuccess(t *testing.T) {
	r := NewRegistry()
	r.MustRegister(newEchoTool("echo"))

	result := r.Invoke(context.Background(), core.ToolCall{
		ID:        "c1",
		Name:      "echo",
		Arguments: json.RawMessage(`{"text":"hello"}`),
	}, NewContext("", "", "c1", nil))

	require.True(t, result.Success)
	assert.Equal(t, "hello", result.Content())
}
