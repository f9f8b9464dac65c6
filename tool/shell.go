package tool

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"strings"
	"time"
)

// ExecTool runs a shell command inside the workspace. Every request passes
// the ShellGuard denylist before a process is started; a refused command
// yields a DENIED ToolError and zero side effects.
type ExecTool struct {
	workdir   string
	guard     *ShellGuard
	timeout   time.Duration
	maxOutput int
}

// ExecToolOptions configures the exec tool.
type ExecToolOptions struct {
	Guard     *ShellGuard
	Timeout   time.Duration
	MaxOutput int
}

// NewExecTool constructs an exec tool rooted at workdir.
func NewExecTool(workdir string, optFns ...func(o *ExecToolOptions)) *ExecTool {
	opts := ExecToolOptions{
		Guard:     NewShellGuard(),
		Timeout:   60 * time.Second,
		MaxOutput: 10000,
	}
	for _, fn := range optFns {
		fn(&opts)
	}
	return &ExecTool{
		workdir:   workdir,
		guard:     opts.Guard,
		timeout:   opts.Timeout,
		maxOutput: opts.MaxOutput,
	}
}

// Name implements Tool.
func (t *ExecTool) Name() string { return "exec" }

// Description implements Tool.
func (t *ExecTool) Description() string {
	return "Execute a shell command in the workspace and return its combined output. " +
		"Commands run with a bounded timeout; dangerous commands are refused."
}

// Parameters implements Tool.
func (t *ExecTool) Parameters() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"command": map[string]any{
				"type":        "string",
				"description": "The shell command to execute",
			},
		},
		"required": []string{"command"},
	}
}

// Call implements Tool.
func (t *ExecTool) Call(ctx context.Context, toolCtx *Context, args map[string]any) (any, error) {
	command, ok := args["command"].(string)
	if !ok || strings.TrimSpace(command) == "" {
		return nil, NewToolError(t.Name(), "command must be a non-empty string", CodeValidation)
	}

	if pattern, denied := t.guard.Check(command); denied {
		toolCtx.Logger().Warn("tool.exec.denied", "pattern", pattern)
		return nil, NewToolError(
			t.Name(),
			fmt.Sprintf("command refused: matches dangerous pattern %q", pattern),
			CodeDenied,
		)
	}

	execCtx, cancel := context.WithTimeout(ctx, t.timeout)
	defer cancel()

	cmd := exec.CommandContext(execCtx, "sh", "-c", command)
	cmd.Dir = t.workdir

	var buf bytes.Buffer
	cmd.Stdout = &buf
	cmd.Stderr = &buf

	err := cmd.Run()
	output := buf.String()
	if len(output) > t.maxOutput {
		output = output[:t.maxOutput] + "\n... (output truncated)"
	}

	if execCtx.Err() == context.DeadlineExceeded {
		return nil, NewToolError(t.Name(), fmt.Sprintf("command timed out after %s", t.timeout), CodeExecution)
	}
	if err != nil {
		return nil, NewToolError(t.Name(), fmt.Sprintf("command failed: %v\n%s", err, output), CodeExecution)
	}

	if output == "" {
		return "(command completed with no output)", nil
	}
	return output, nil
}
