// Package meshbot provides a high-level façade over the conversation runtime:
// the message bus, the agent loop, tools, sessions, long-term memory, skills,
// chat channel adapters and scheduled heartbeats. Most applications interact
// with this package by:
//  1. Creating a Bot via New() from a config.Config
//  2. Registering extra tools or channel adapters
//  3. Calling Run() to serve, or ProcessDirect() for one-shot invocations
//
// The façade delegates processing to engine.AgentLoop while keeping setup
// ergonomics concise. Defaults are safe for local development; production
// deployments enable channel adapters and provide API keys via config or
// environment.
package meshbot

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	anthropicsdk "github.com/anthropics/anthropic-sdk-go"

	"github.com/hupe1980/meshbot/bus"
	"github.com/hupe1980/meshbot/channel"
	"github.com/hupe1980/meshbot/channel/discord"
	"github.com/hupe1980/meshbot/channel/slack"
	"github.com/hupe1980/meshbot/config"
	"github.com/hupe1980/meshbot/engine"
	"github.com/hupe1980/meshbot/logging"
	"github.com/hupe1980/meshbot/memory"
	"github.com/hupe1980/meshbot/model"
	anthropicmodel "github.com/hupe1980/meshbot/model/anthropic"
	openaimodel "github.com/hupe1980/meshbot/model/openai"
	"github.com/hupe1980/meshbot/prompt"
	"github.com/hupe1980/meshbot/schedule"
	"github.com/hupe1980/meshbot/session"
	"github.com/hupe1980/meshbot/skill"
	"github.com/hupe1980/meshbot/subagent"
	"github.com/hupe1980/meshbot/tool"
)

// Options overrides parts of the assembled runtime.
type Options struct {
	// Model replaces the config-selected provider (e.g. a MockModel in tests).
	Model model.Model
	// SessionStore replaces the file-backed store.
	SessionStore session.Store
	// Logger replaces the config-built logger.
	Logger logging.Logger
}

// Bot is the assembled runtime.
type Bot struct {
	cfg       *config.Config
	logger    logging.Logger
	bus       *bus.MessageBus
	model     model.Model
	registry  *tool.Registry
	sessions  session.Store
	memories  *memory.Store
	skills    *skill.Library
	loop      *engine.AgentLoop
	subagents *subagent.Manager
	channels  *channel.Manager
	scheduler *schedule.Scheduler
}

// New assembles a Bot from config.
func New(cfg *config.Config, optFns ...func(o *Options)) (*Bot, error) {
	var opts Options
	for _, fn := range optFns {
		fn(&opts)
	}

	logger := opts.Logger
	if logger == nil {
		logger = buildLogger(cfg.Logging)
	}

	b := bus.New(bus.DefaultQueueSize)

	m := opts.Model
	if m == nil {
		var err error
		m, err = buildModel(cfg.Model)
		if err != nil {
			return nil, err
		}
	}

	sessions := opts.SessionStore
	if sessions == nil {
		store, err := session.NewFileStore(filepath.Join(cfg.Workspace, "sessions"), func(o *session.FileStoreOptions) {
			o.Logger = logger
		})
		if err != nil {
			return nil, err
		}
		sessions = store
	}

	memories, err := memory.NewStore(filepath.Join(cfg.Workspace, "memory"), logger)
	if err != nil {
		return nil, err
	}

	skills, err := skill.NewLibrary(filepath.Join(cfg.Workspace, "skills"), logger)
	if err != nil {
		return nil, err
	}

	builder := prompt.NewBuilder(memories, skills, func(o *prompt.BuilderOptions) {
		if cfg.Agent.SystemPrompt != "" {
			o.SystemPrompt = cfg.Agent.SystemPrompt
		}
		o.HistoryWindow = cfg.Agent.HistoryWindow
	})

	consolidator := memory.NewConsolidator(memories, sessions, memory.NewModelSummarizer(m), func(o *memory.ConsolidatorOptions) {
		o.Window = cfg.Memory.Window
		o.Retain = cfg.Memory.Retain
		o.Logger = logger
	})

	registry := tool.NewRegistry()
	registry.MustRegister(
		tool.NewReadFileTool(cfg.Workspace, cfg.Tools.RestrictToWorkdir),
		tool.NewWriteFileTool(cfg.Workspace, cfg.Tools.RestrictToWorkdir),
		tool.NewAppendFileTool(cfg.Workspace, cfg.Tools.RestrictToWorkdir),
		tool.NewEditFileTool(cfg.Workspace, cfg.Tools.RestrictToWorkdir),
		tool.NewListDirTool(cfg.Workspace, cfg.Tools.RestrictToWorkdir),
		tool.NewExecTool(cfg.Workspace, func(o *tool.ExecToolOptions) {
			o.Timeout = time.Duration(cfg.Tools.ExecTimeoutSeconds) * time.Second
		}),
	)

	loop := engine.New(b, m, registry, sessions, builder, func(o *engine.Options) {
		o.MaxIterations = cfg.Agent.MaxIterations
		o.MaxRetries = cfg.Agent.MaxRetries
		o.Workers = cfg.Agent.Workers
		o.MaxTokens = cfg.Model.MaxTokens
		o.Consolidator = consolidator
		o.Logger = logger
	})

	subagents := subagent.NewManager(b, m, registry, func(o *subagent.Options) {
		o.Logger = logger
	})
	registry.MustRegister(
		tool.NewMessageTool(loop.Send),
		tool.NewSpawnTool(subagents),
	)

	channels := channel.NewManager(b, logger)
	if cfg.Channels.Discord.Enabled {
		adapter, err := discord.New(b, func(o *discord.Options) {
			o.BotToken = cfg.Channels.Discord.BotToken
			o.Logger = logger
		})
		if err != nil {
			return nil, err
		}
		if err := channels.Register(adapter); err != nil {
			return nil, err
		}
	}
	if cfg.Channels.Slack.Enabled {
		adapter, err := slack.New(b, func(o *slack.Options) {
			o.AppToken = cfg.Channels.Slack.AppToken
			o.BotToken = cfg.Channels.Slack.BotToken
			o.Logger = logger
		})
		if err != nil {
			return nil, err
		}
		if err := channels.Register(adapter); err != nil {
			return nil, err
		}
	}

	scheduler := schedule.New(loop, func(o *schedule.Options) {
		o.Logger = logger
	})
	for _, job := range cfg.Heartbeat {
		if err := scheduler.Add(job); err != nil {
			return nil, err
		}
	}

	return &Bot{
		cfg:       cfg,
		logger:    logger,
		bus:       b,
		model:     m,
		registry:  registry,
		sessions:  sessions,
		memories:  memories,
		skills:    skills,
		loop:      loop,
		subagents: subagents,
		channels:  channels,
		scheduler: scheduler,
	}, nil
}

// Bus exposes the message bus for custom adapters.
func (b *Bot) Bus() *bus.MessageBus { return b.bus }

// Tools exposes the registry so applications can add their own tools before Run.
func (b *Bot) Tools() *tool.Registry { return b.registry }

// RegisterChannel adds a custom channel adapter before Run.
func (b *Bot) RegisterChannel(a channel.Adapter) error { return b.channels.Register(a) }

// ProcessDirect runs one message through the agent loop and returns the reply.
func (b *Bot) ProcessDirect(ctx context.Context, chatID, content string) (string, error) {
	return b.loop.ProcessDirect(ctx, "cli", chatID, content)
}

// Run serves until the context is cancelled: channels feed the bus, the agent
// loop processes, heartbeats fire on schedule. It blocks.
func (b *Bot) Run(ctx context.Context) error {
	if err := b.skills.Watch(); err != nil {
		return fmt.Errorf("watch skills: %w", err)
	}
	defer b.skills.Close()

	b.scheduler.Start()
	defer b.scheduler.Stop()

	loopDone := make(chan struct{})
	go func() {
		defer close(loopDone)
		b.loop.Run(ctx)
	}()

	err := b.channels.Start(ctx)

	// Unblock the engine workers, then wait for in-flight work to land.
	b.bus.Close()
	<-loopDone
	b.subagents.Wait()
	b.channels.Close()

	if err != nil && ctx.Err() == nil {
		return err
	}
	return nil
}

// buildModel selects the provider from config.
func buildModel(cfg config.ModelConfig) (model.Model, error) {
	switch cfg.Provider {
	case "anthropic":
		return anthropicmodel.NewModel(func(o *anthropicmodel.Options) {
			o.Model = anthropicsdk.Model(cfg.Name)
			o.MaxTokens = cfg.MaxTokens
			o.Temperature = cfg.Temperature
			o.APIKey = cfg.APIKey
		}), nil
	case "openai":
		return openaimodel.NewModel(func(o *openaimodel.Options) {
			o.Model = cfg.Name
			o.MaxCompletionTokens = cfg.MaxTokens
			o.Temperature = cfg.Temperature
			o.APIKey = cfg.APIKey
		}), nil
	case "mock":
		return model.NewMockModel("mock"), nil
	default:
		return nil, fmt.Errorf("unsupported model provider %q", cfg.Provider)
	}
}

// buildLogger maps the logging config onto a MeshbotLogger.
func buildLogger(cfg config.LoggingConfig) logging.Logger {
	level := logging.LogLevelInfo
	switch cfg.Level {
	case "debug":
		level = logging.LogLevelDebug
	case "warn":
		level = logging.LogLevelWarn
	case "error":
		level = logging.LogLevelError
	}
	return logging.NewLogger(&logging.LoggerConfig{Level: level, Format: cfg.Format})
}
