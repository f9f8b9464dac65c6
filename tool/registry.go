package tool

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/hupe1980/meshbot/core"
	"github.com/hupe1980/meshbot/internal/util"
	"github.com/hupe1980/meshbot/model"
)

// Registry holds tool definitions looked up by name. Selection is a mapping
// from name to a handler satisfying the common invocation contract, never a
// chain of type switches, so new tools can be added without touching dispatch
// logic. Safe for concurrent use.
type Registry struct {
	mu    sync.RWMutex
	tools map[string]Tool
}

// NewRegistry constructs an empty registry.
func NewRegistry() *Registry {
	return &Registry{tools: make(map[string]Tool)}
}

// Register adds a tool. Registering a duplicate name is an error.
func (r *Registry) Register(t Tool) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.tools[t.Name()]; exists {
		return fmt.Errorf("tool %q already registered", t.Name())
	}
	r.tools[t.Name()] = t
	return nil
}

// MustRegister registers tools, panicking on duplicates. Intended for static
// wiring at startup where a duplicate is a programming error.
func (r *Registry) MustRegister(tools ...Tool) {
	for _, t := range tools {
		if err := r.Register(t); err != nil {
			panic(err)
		}
	}
}

// Get returns the named tool.
func (r *Registry) Get(name string) (Tool, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	t, ok := r.tools[name]
	return t, ok
}

// Names returns the sorted names of all registered tools.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.tools))
	for name := range r.tools {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Specs returns the declarations of all registered tools in name order,
// shaped for the model provider.
func (r *Registry) Specs() []model.ToolDefinition {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.tools))
	for name := range r.tools {
		names = append(names, name)
	}
	sort.Strings(names)

	specs := make([]model.ToolDefinition, 0, len(names))
	for _, name := range names {
		t := r.tools[name]
		specs = append(specs, model.ToolDefinition{
			Type: "function",
			Function: model.FunctionDefinition{
				Name:        t.Name(),
				Description: t.Description(),
				Parameters:  t.Parameters(),
			},
		})
	}
	return specs
}

// Restricted returns a new registry holding every tool except the excluded
// names. Used to build subagent capability sets that cannot reference the
// spawn or message-send tools.
func (r *Registry) Restricted(exclude ...string) *Registry {
	excluded := make(map[string]bool, len(exclude))
	for _, name := range exclude {
		excluded[name] = true
	}

	r.mu.RLock()
	defer r.mu.RUnlock()
	restricted := NewRegistry()
	for name, t := range r.tools {
		if !excluded[name] {
			restricted.tools[name] = t
		}
	}
	return restricted
}

// Invoke resolves and executes a tool call, returning a structured Result.
// It never returns an error: unknown tools, malformed arguments, schema
// violations and execution failures are all captured in the Result so they
// can be fed back to the model as a tool-role message.
func (r *Registry) Invoke(ctx context.Context, call core.ToolCall, toolCtx *Context) Result {
	t, ok := r.Get(call.Name)
	if !ok {
		return failureResult(call.Name, NewToolError(call.Name, "tool not found", CodeNotFound))
	}

	args := make(map[string]any)
	if len(call.Arguments) > 0 {
		if err := json.Unmarshal(call.Arguments, &args); err != nil {
			return failureResult(call.Name, NewToolError(
				call.Name,
				fmt.Sprintf("arguments are not a JSON object: %v", err),
				CodeValidation,
			))
		}
	}

	// Schema conformance is enforced here for every tool, so a violating call
	// never reaches the tool's side effects regardless of how the tool itself
	// handles arguments.
	if err := util.ValidateParameters(args, t.Parameters()); err != nil {
		return failureResult(call.Name, NewToolError(
			call.Name,
			fmt.Sprintf("parameter validation failed: %v", err),
			CodeValidation,
		))
	}

	logger := toolCtx.Logger()
	start := time.Now()

	payload, err := t.Call(ctx, toolCtx, args)
	if err != nil {
		logger.Warn("tool.invoke.failed", "tool", call.Name, "call_id", call.ID, "error", err.Error())
		return failureResult(call.Name, err)
	}

	logger.Debug("tool.invoke.success", "tool", call.Name, "call_id", call.ID, "duration_ms", time.Since(start).Milliseconds())
	return successResult(call.Name, payload)
}
