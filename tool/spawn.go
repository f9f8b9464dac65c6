package tool

import (
	"context"
	"strings"
)

// Task describes delegated background work handed to the subagent manager.
// It exists only for the task's lifetime and is never persisted.
type Task struct {
	// Label is a short human-readable identifier used in logs and the
	// completion notice.
	Label string
	// Instructions is the full prompt for the isolated run.
	Instructions string
	// Channel/ChatID address the origin conversation for result delivery.
	Channel string
	ChatID  string
}

// Spawner starts isolated background work. Implemented by subagent.Manager;
// declared here so the tool package does not depend on it.
type Spawner interface {
	Spawn(ctx context.Context, task Task) (string, error)
}

// SpawnTool delegates a task to an isolated subagent. The subagent runs the
// same model/tool iteration with a restricted registry that excludes this
// tool, so spawn chains cannot recurse.
type SpawnTool struct {
	spawner Spawner
}

// NewSpawnTool constructs a spawn tool backed by the given spawner.
func NewSpawnTool(spawner Spawner) *SpawnTool {
	return &SpawnTool{spawner: spawner}
}

// Name implements Tool.
func (t *SpawnTool) Name() string { return "spawn" }

// Description implements Tool.
func (t *SpawnTool) Description() string {
	return "Delegate a task to a background subagent. The subagent works independently " +
		"and its result is delivered to this conversation when it finishes."
}

// Parameters implements Tool.
func (t *SpawnTool) Parameters() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"label": map[string]any{
				"type":        "string",
				"description": "Short label for the task",
			},
			"instructions": map[string]any{
				"type":        "string",
				"description": "Complete instructions for the subagent",
			},
		},
		"required": []string{"label", "instructions"},
	}
}

// Call implements Tool.
func (t *SpawnTool) Call(ctx context.Context, toolCtx *Context, args map[string]any) (any, error) {
	label, ok := args["label"].(string)
	if !ok || strings.TrimSpace(label) == "" {
		return nil, NewToolError(t.Name(), "label must be a non-empty string", CodeValidation)
	}
	instructions, ok := args["instructions"].(string)
	if !ok || strings.TrimSpace(instructions) == "" {
		return nil, NewToolError(t.Name(), "instructions must be a non-empty string", CodeValidation)
	}

	handle, err := t.spawner.Spawn(ctx, Task{
		Label:        label,
		Instructions: instructions,
		Channel:      toolCtx.Channel,
		ChatID:       toolCtx.ChatID,
	})
	if err != nil {
		return nil, NewToolError(t.Name(), err.Error(), CodeExecution)
	}
	return "subagent started: " + handle, nil
}
