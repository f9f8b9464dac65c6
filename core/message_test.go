package core

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMessageConstructors(t *testing.T) {
	user := NewUserMessage("hi")
	assert.Equal(t, RoleUser, user.Role)
	assert.NotEmpty(t, user.ID)
	assert.False(t, user.Timestamp.IsZero())

	call := NewToolCallMessage("thinking", []ToolCall{{ID: "c1", Name: "echo"}})
	assert.Equal(t, RoleAssistant, call.Role)
	assert.True(t, call.HasToolCalls())

	result := NewToolResultMessage("c1", "output")
	assert.Equal(t, RoleTool, result.Role)
	assert.Equal(t, "c1", result.ToolCallID)

	marker := NewConsolidationMarker("summary")
	assert.True(t, marker.IsConsolidationMarker())
	assert.False(t, user.IsConsolidationMarker())
}

func TestMessageJSONPreservesToolCallArguments(t *testing.T) {
	msg := NewToolCallMessage("", []ToolCall{
		{ID: "c1", Name: "exec", Arguments: json.RawMessage(`{"command":"ls -la"}`)},
	})

	raw, err := json.Marshal(msg)
	require.NoError(t, err)

	var decoded Message
	require.NoError(t, json.Unmarshal(raw, &decoded))
	require.Len(t, decoded.ToolCalls, 1)
	assert.JSONEq(t, `{"command":"ls -la"}`, string(decoded.ToolCalls[0].Arguments))
}

func TestNewIDUniqueness(t *testing.T) {
	seen := make(map[string]bool)
	for i := 0; i < 100; i++ {
		id := NewID()
		assert.False(t, seen[id])
		seen[id] = true
	}
}
