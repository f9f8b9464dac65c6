package engine

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/hupe1980/meshbot/bus"
	"github.com/hupe1980/meshbot/core"
	"github.com/hupe1980/meshbot/logging"
	"github.com/hupe1980/meshbot/memory"
	"github.com/hupe1980/meshbot/model"
	"github.com/hupe1980/meshbot/prompt"
	"github.com/hupe1980/meshbot/session"
	"github.com/hupe1980/meshbot/tool"
)

const (
	// iterationFallback is the single reply produced when the iteration cap
	// is reached without a final text response.
	iterationFallback = "I wasn't able to finish this request within my tool budget. " +
		"Here is where I got to; ask me to continue if you'd like me to keep going."

	// failureReply is sent when the model call ultimately fails.
	failureReply = "Sorry, I hit a problem talking to my model and couldn't process that. Please try again."
)

// Options configures an AgentLoop.
type Options struct {
	// MaxIterations caps model/tool round trips per inbound message.
	MaxIterations int
	// MaxRetries bounds repeat attempts for transient model failures.
	MaxRetries int
	// RetryBaseDelay seeds the exponential backoff between retries.
	RetryBaseDelay time.Duration
	// ModelTimeout bounds each individual model call.
	ModelTimeout time.Duration
	// MaxTokens is forwarded on every model request.
	MaxTokens int64
	// Workers sizes the inbound consumer pool. Sessions are still serialized
	// individually regardless of pool size.
	Workers int
	// Consolidator, when set, compresses session history after replies.
	Consolidator *memory.Consolidator
	// Logger receives engine telemetry.
	Logger logging.Logger
}

// AgentLoop owns conversation processing end to end.
type AgentLoop struct {
	bus      *bus.MessageBus
	model    model.Model
	registry *tool.Registry
	sessions session.Store
	builder  *prompt.Builder

	maxIterations  int
	maxRetries     int
	retryBaseDelay time.Duration
	modelTimeout   time.Duration
	maxTokens      int64
	workers        int
	consolidator   *memory.Consolidator
	logger         logging.Logger

	sessionLocks  keyedMutex
	consolidating sync.Map // session key -> struct{} while a pass is in flight
	wg            sync.WaitGroup
}

// New constructs an AgentLoop over the given bus, model, tools and sessions.
func New(b *bus.MessageBus, m model.Model, registry *tool.Registry, sessions session.Store, builder *prompt.Builder, optFns ...func(o *Options)) *AgentLoop {
	opts := Options{
		MaxIterations:  20,
		MaxRetries:     3,
		RetryBaseDelay: 500 * time.Millisecond,
		ModelTimeout:   2 * time.Minute,
		MaxTokens:      4096,
		Workers:        4,
		Logger:         logging.NoOpLogger{},
	}
	for _, fn := range optFns {
		fn(&opts)
	}
	if opts.MaxIterations < 1 {
		opts.MaxIterations = 1
	}
	if opts.Workers < 1 {
		opts.Workers = 1
	}

	return &AgentLoop{
		bus:            b,
		model:          m,
		registry:       registry,
		sessions:       sessions,
		builder:        builder,
		maxIterations:  opts.MaxIterations,
		maxRetries:     opts.MaxRetries,
		retryBaseDelay: opts.RetryBaseDelay,
		modelTimeout:   opts.ModelTimeout,
		maxTokens:      opts.MaxTokens,
		workers:        opts.Workers,
		consolidator:   opts.Consolidator,
		logger:         opts.Logger,
	}
}

// Send delivers a message to the outbound queue. Satisfies tool.SendFunc so
// the message tool can emit mid-iteration progress.
func (l *AgentLoop) Send(channel, chatID, content string) error {
	ok := l.bus.PublishOutbound(context.Background(), bus.OutboundMessage{
		Channel: channel,
		ChatID:  chatID,
		Content: content,
	})
	if !ok {
		return errors.New("outbound queue closed")
	}
	return nil
}

// Run consumes inbound messages until the context is cancelled or the bus is
// closed and drained. It blocks; callers typically run it in a goroutine and
// cancel the context on shutdown. Background consolidations finish before Run
// returns.
func (l *AgentLoop) Run(ctx context.Context) {
	var workers sync.WaitGroup
	for i := 0; i < l.workers; i++ {
		workers.Add(1)
		go func() {
			defer workers.Done()
			for {
				msg, ok := l.bus.ConsumeInbound(ctx)
				if !ok {
					return
				}
				l.handle(ctx, msg)
			}
		}()
	}
	workers.Wait()
	l.wg.Wait()
}

// handle processes a single inbound message under the session lock.
func (l *AgentLoop) handle(ctx context.Context, msg bus.InboundMessage) {
	key := msg.SessionKey()
	mu := l.sessionLocks.lock(key)
	defer mu.Unlock()

	reply, err := l.converse(ctx, key, msg.Channel, msg.ChatID, msg.Content)
	if err != nil {
		l.logger.Error("engine.process.failed", "session", key, "error", err.Error())
		reply = failureReply
	}

	if reply != "" {
		l.bus.PublishOutbound(ctx, bus.OutboundMessage{
			Channel: msg.Channel,
			ChatID:  msg.ChatID,
			Content: reply,
		})
	}

	if err == nil {
		l.maybeConsolidate(key)
	}
}

// ProcessDirect runs one message through the full iteration loop and returns
// the reply synchronously, bypassing the inbound/outbound queues. Used by the
// CLI one-shot path and scheduled heartbeats.
func (l *AgentLoop) ProcessDirect(ctx context.Context, channel, chatID, content string) (string, error) {
	key := channel + ":" + chatID
	mu := l.sessionLocks.lock(key)
	defer mu.Unlock()

	reply, err := l.converse(ctx, key, channel, chatID, content)
	if err != nil {
		return "", err
	}
	l.maybeConsolidate(key)
	return reply, nil
}

// converse appends the user message and drives the model/tool iteration until
// a text reply, a failure, or the iteration cap. Caller holds the session lock.
func (l *AgentLoop) converse(ctx context.Context, key, channel, chatID, content string) (string, error) {
	if err := l.sessions.Append(key, core.NewUserMessage(content)); err != nil {
		return "", fmt.Errorf("persist user message: %w", err)
	}

	instructions := l.builder.Instructions()
	specs := l.registry.Specs()

	for iteration := 1; iteration <= l.maxIterations; iteration++ {
		sess, err := l.sessions.Load(key)
		if err != nil {
			return "", fmt.Errorf("load session %s: %w", key, err)
		}

		resp, err := l.completeWithRetry(ctx, model.Request{
			Instructions: instructions,
			Messages:     l.builder.History(sess),
			Tools:        specs,
			MaxTokens:    l.maxTokens,
		})
		if err != nil {
			return "", err
		}

		if !resp.HasToolCalls() {
			reply := strings.TrimSpace(resp.Content)
			if reply == "" {
				reply = "(no response)"
			}
			if err := l.sessions.Append(key, core.NewAssistantMessage(reply)); err != nil {
				return "", fmt.Errorf("persist reply: %w", err)
			}
			return reply, nil
		}

		if err := l.sessions.Append(key, core.NewToolCallMessage(resp.Content, resp.ToolCalls)); err != nil {
			return "", fmt.Errorf("persist tool calls: %w", err)
		}

		// One result per call, in call order. The registry turns every
		// failure mode into a Result, so the pairing always completes.
		results := make([]core.Message, 0, len(resp.ToolCalls))
		for _, call := range resp.ToolCalls {
			toolCtx := tool.NewContext(channel, chatID, call.ID, l.logger)
			result := l.registry.Invoke(ctx, call, toolCtx)
			results = append(results, core.NewToolResultMessage(call.ID, result.Content()))
		}
		if err := l.sessions.Append(key, results...); err != nil {
			return "", fmt.Errorf("persist tool results: %w", err)
		}

		l.logger.Debug("engine.iteration", "session", key, "iteration", iteration, "tool_calls", len(resp.ToolCalls))
	}

	// Cap reached: exactly one fallback reply, recorded in the session like
	// any other assistant message.
	l.logger.Warn("engine.iterations.exceeded", "session", key, "max", l.maxIterations)
	if err := l.sessions.Append(key, core.NewAssistantMessage(iterationFallback)); err != nil {
		return "", fmt.Errorf("persist fallback: %w", err)
	}
	return iterationFallback, nil
}

// completeWithRetry calls the model, retrying transient failures with
// exponential backoff. Fatal classifications (auth, malformed) surface
// immediately.
func (l *AgentLoop) completeWithRetry(ctx context.Context, req model.Request) (*model.Response, error) {
	var lastErr error
	for attempt := 0; attempt <= l.maxRetries; attempt++ {
		if attempt > 0 {
			delay := l.retryBaseDelay << (attempt - 1)
			l.logger.Warn("engine.model.retry", "attempt", attempt, "delay", delay.String(), "error", lastErr.Error())
			select {
			case <-time.After(delay):
			case <-ctx.Done():
				return nil, ctx.Err()
			}
		}

		callCtx, cancel := context.WithTimeout(ctx, l.modelTimeout)
		resp, err := l.model.Complete(callCtx, req)
		cancel()
		if err == nil {
			return resp, nil
		}
		lastErr = err

		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		if !model.IsTransient(err) {
			return nil, err
		}
	}
	return nil, fmt.Errorf("model call failed after %d attempts: %w", l.maxRetries+1, lastErr)
}

// maybeConsolidate kicks off an asynchronous consolidation pass when the
// session has outgrown its window. At most one pass per session is in flight;
// the pass re-acquires the session lock so it never interleaves with message
// processing.
func (l *AgentLoop) maybeConsolidate(key string) {
	if l.consolidator == nil {
		return
	}
	sess, err := l.sessions.Load(key)
	if err != nil || !l.consolidator.ShouldConsolidate(sess) {
		return
	}
	if _, inFlight := l.consolidating.LoadOrStore(key, struct{}{}); inFlight {
		return
	}

	l.wg.Add(1)
	go func() {
		defer l.wg.Done()
		defer l.consolidating.Delete(key)

		mu := l.sessionLocks.lock(key)
		defer mu.Unlock()

		sess, err := l.sessions.Load(key)
		if err != nil || !l.consolidator.ShouldConsolidate(sess) {
			return
		}
		if err := l.consolidator.Consolidate(context.Background(), key); err != nil {
			// Skip this cycle; the next reply re-triggers the pass.
			l.logger.Warn("engine.consolidate.skipped", "session", key, "error", err.Error())
		}
	}()
}
