package subagent

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/meshbot/bus"
	"github.com/hupe1980/meshbot/core"
	"github.com/hupe1980/meshbot/model"
	"github.com/hupe1980/meshbot/tool"
)

func echoTool() tool.Tool {
	return tool.NewFunctionTool("echo", "echoes text",
		map[string]any{
			"type": "object",
			"properties": map[string]any{
				"text": map[string]any{"type": "string", "description": "text"},
			},
			"required": []string{"text"},
		},
		func(_ context.Context, _ *tool.Context, args map[string]any) (any, error) {
			return args["text"], nil
		},
	)
}

func fakeSpawnTool() tool.Tool {
	return tool.NewFunctionTool("spawn", "placeholder",
		map[string]any{"type": "object", "properties": map[string]any{}},
		func(_ context.Context, _ *tool.Context, _ map[string]any) (any, error) {
			return "spawned", nil
		},
	)
}

func TestSpawnDeliversResultToOriginChat(t *testing.T) {
	b := bus.New(16)
	m := model.NewMockModel("test").
		Enqueue(model.Response{Content: "Researched the topic; wrote notes.md.", FinishReason: "stop"})

	registry := tool.NewRegistry()
	registry.MustRegister(echoTool())
	mgr := NewManager(b, m, registry)

	handle, err := mgr.Spawn(context.Background(), tool.Task{
		Label:        "research",
		Instructions: "Research the topic and save notes.",
		Channel:      "telegram",
		ChatID:       "42",
	})
	require.NoError(t, err)
	assert.NotEmpty(t, handle)

	mgr.Wait()

	out, ok := b.ConsumeOutbound(context.Background())
	require.True(t, ok)
	assert.Equal(t, "telegram", out.Channel)
	assert.Equal(t, "42", out.ChatID)
	assert.Contains(t, out.Content, `subagent "research" finished`)
	assert.Contains(t, out.Content, "Researched the topic")
}

func TestSubagentCannotReferenceSpawnOrMessage(t *testing.T) {
	b := bus.New(16)

	registry := tool.NewRegistry()
	registry.MustRegister(
		echoTool(),
		fakeSpawnTool(),
		tool.NewMessageTool(func(_, _, _ string) error { return nil }),
	)

	// The model tries to recurse; the restricted registry must reject it.
	m := model.NewMockModel("test").
		Enqueue(model.Response{ToolCalls: []core.ToolCall{
			{ID: "c1", Name: "spawn", Arguments: json.RawMessage(`{}`)},
		}, FinishReason: "tool_calls"}).
		Enqueue(model.Response{Content: "gave up on recursion", FinishReason: "stop"})

	mgr := NewManager(b, m, registry)

	// The spawn and message tools are not even advertised to the model.
	for _, def := range mgr.registry.Specs() {
		assert.NotEqual(t, "spawn", def.Function.Name)
		assert.NotEqual(t, "message", def.Function.Name)
	}

	_, err := mgr.Spawn(context.Background(), tool.Task{
		Label:        "sneaky",
		Instructions: "spawn another agent",
		Channel:      "telegram",
		ChatID:       "42",
	})
	require.NoError(t, err)
	mgr.Wait()

	out, ok := b.ConsumeOutbound(context.Background())
	require.True(t, ok)
	assert.Contains(t, out.Content, "gave up on recursion")

	// The scripted spawn call was answered with a not-found result, and the
	// placeholder spawn tool never executed.
	calls := m.Calls()
	require.Len(t, calls, 2)
	last := calls[1].Messages[len(calls[1].Messages)-1]
	assert.Equal(t, core.RoleTool, last.Role)
	assert.Contains(t, last.Content, "NOT_FOUND")
}

func TestSubagentRunsIsolatedFromParentHistory(t *testing.T) {
	b := bus.New(16)
	m := model.NewMockModel("test").
		Enqueue(model.Response{Content: "done", FinishReason: "stop"})

	mgr := NewManager(b, m, tool.NewRegistry())
	_, err := mgr.Spawn(context.Background(), tool.Task{
		Label:        "task",
		Instructions: "just the task",
		Channel:      "cli",
		ChatID:       "1",
	})
	require.NoError(t, err)
	mgr.Wait()

	calls := m.Calls()
	require.Len(t, calls, 1)
	require.Len(t, calls[0].Messages, 1, "a fresh run sees only its own instructions")
	assert.Equal(t, "just the task", calls[0].Messages[0].Content)
}

func TestSpawnRejectsEmptyInstructions(t *testing.T) {
	mgr := NewManager(bus.New(1), model.NewMockModel("test"), tool.NewRegistry())
	_, err := mgr.Spawn(context.Background(), tool.Task{Label: "x", Instructions: "   "})
	assert.Error(t, err)
}

func TestSubagentBudgetExceeded(t *testing.T) {
	b := bus.New(16)
	m := model.NewMockModel("test")
	for i := 0; i < 2; i++ {
		m.Enqueue(model.Response{ToolCalls: []core.ToolCall{
			{ID: "c", Name: "echo", Arguments: json.RawMessage(`{"text":"x"}`)},
		}, FinishReason: "tool_calls"})
	}

	registry := tool.NewRegistry()
	registry.MustRegister(echoTool())
	mgr := NewManager(b, m, registry, func(o *Options) { o.MaxIterations = 2 })

	_, err := mgr.Spawn(context.Background(), tool.Task{
		Label:        "loop",
		Instructions: "never finish",
		Channel:      "cli",
		ChatID:       "1",
	})
	require.NoError(t, err)
	mgr.Wait()

	out, ok := b.ConsumeOutbound(context.Background())
	require.True(t, ok)
	assert.Contains(t, out.Content, "tool budget exhausted")
	assert.Equal(t, 2, m.CallCount())
}
