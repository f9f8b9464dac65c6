package subagent

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/hupe1980/meshbot/bus"
	"github.com/hupe1980/meshbot/core"
	"github.com/hupe1980/meshbot/logging"
	"github.com/hupe1980/meshbot/model"
	"github.com/hupe1980/meshbot/tool"
)

const subagentInstructions = `You are a subagent working on one delegated task.
Complete the task using the available tools, then reply with a concise final
report of what you did and what the outcome was. You cannot interact with the
user; your final reply is delivered to them verbatim.`

// Options configures a Manager.
type Options struct {
	// MaxIterations caps model/tool round trips per task.
	MaxIterations int
	// TaskTimeout bounds a whole task run.
	TaskTimeout time.Duration
	// MaxTokens is forwarded on every model request.
	MaxTokens int64
	// Logger receives subagent telemetry.
	Logger logging.Logger
}

// Manager runs delegated tasks. It implements tool.Spawner.
//
// Isolation contract: a task sees none of the parent session's history, and
// its registry excludes the spawn and message tools, so a subagent can neither
// recurse nor impersonate the assistant mid-conversation.
type Manager struct {
	bus      *bus.MessageBus
	model    model.Model
	registry *tool.Registry

	maxIterations int
	taskTimeout   time.Duration
	maxTokens     int64
	logger        logging.Logger

	wg sync.WaitGroup
}

// NewManager builds a Manager over the full registry; the restriction is
// applied here, once, so callers cannot accidentally hand a subagent the
// spawn tool.
func NewManager(b *bus.MessageBus, m model.Model, registry *tool.Registry, optFns ...func(o *Options)) *Manager {
	opts := Options{
		MaxIterations: 10,
		TaskTimeout:   10 * time.Minute,
		MaxTokens:     4096,
		Logger:        logging.NoOpLogger{},
	}
	for _, fn := range optFns {
		fn(&opts)
	}
	if opts.MaxIterations < 1 {
		opts.MaxIterations = 1
	}

	return &Manager{
		bus:           b,
		model:         m,
		registry:      registry.Restricted("spawn", "message"),
		maxIterations: opts.MaxIterations,
		taskTimeout:   opts.TaskTimeout,
		maxTokens:     opts.MaxTokens,
		logger:        opts.Logger,
	}
}

// Spawn implements tool.Spawner. It returns immediately with a task handle;
// the run proceeds in the background on a detached context so it outlives the
// spawning iteration.
func (m *Manager) Spawn(_ context.Context, task tool.Task) (string, error) {
	if strings.TrimSpace(task.Instructions) == "" {
		return "", fmt.Errorf("spawn: empty instructions")
	}
	id := core.NewID()[:8]

	m.wg.Add(1)
	go func() {
		defer m.wg.Done()

		ctx, cancel := context.WithTimeout(context.Background(), m.taskTimeout)
		defer cancel()

		report := m.run(ctx, id, task)
		delivered := m.bus.PublishOutbound(ctx, bus.OutboundMessage{
			Channel: task.Channel,
			ChatID:  task.ChatID,
			Content: fmt.Sprintf("[subagent %q finished]\n%s", task.Label, report),
		})
		if !delivered {
			m.logger.Warn("subagent.result.dropped", "task_id", id, "label", task.Label)
		}
	}()

	return id, nil
}

// Wait blocks until all in-flight tasks have delivered their results.
func (m *Manager) Wait() { m.wg.Wait() }

// run drives the isolated iteration loop and returns the final report.
func (m *Manager) run(ctx context.Context, id string, task tool.Task) string {
	logger := m.logger
	start := time.Now()
	logger.Info("subagent.task.started", "task_id", id, "label", task.Label)

	msgs := []core.Message{core.NewUserMessage(task.Instructions)}
	specs := m.registry.Specs()

	for iteration := 1; iteration <= m.maxIterations; iteration++ {
		resp, err := m.model.Complete(ctx, model.Request{
			Instructions: subagentInstructions,
			Messages:     msgs,
			Tools:        specs,
			MaxTokens:    m.maxTokens,
		})
		if err != nil {
			logger.Error("subagent.task.failed", "task_id", id, "error", err.Error())
			return "Task failed: " + err.Error()
		}

		if !resp.HasToolCalls() {
			logger.Info("subagent.task.done", "task_id", id, "iterations", iteration, "duration", time.Since(start).String())
			if report := strings.TrimSpace(resp.Content); report != "" {
				return report
			}
			return "Task completed with no report."
		}

		msgs = append(msgs, core.NewToolCallMessage(resp.Content, resp.ToolCalls))
		for _, call := range resp.ToolCalls {
			toolCtx := tool.NewContext(task.Channel, task.ChatID, call.ID, logger)
			result := m.registry.Invoke(ctx, call, toolCtx)
			msgs = append(msgs, core.NewToolResultMessage(call.ID, result.Content()))
		}
	}

	logger.Warn("subagent.task.budget_exceeded", "task_id", id, "max", m.maxIterations)
	return "Task stopped: tool budget exhausted before completion."
}
