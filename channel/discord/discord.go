// Package discord implements the channel Adapter for Discord using the
// Gateway WebSocket.
package discord

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/bwmarrin/discordgo"
	"github.com/hupe1980/meshbot/bus"
	"github.com/hupe1980/meshbot/channel"
	"github.com/hupe1980/meshbot/logging"
)

const (
	maxRetries  = 3
	baseBackoff = 2 * time.Second
	maxBackoff  = 2 * time.Minute
)

// session abstracts the discordgo.Session methods the adapter uses, enabling
// test mocks.
type session interface {
	Open() error
	Close() error
	ChannelMessageSend(channelID, content string, options ...discordgo.RequestOption) (*discordgo.Message, error)
	AddHandler(handler interface{}) func()
}

// Adapter implements channel.Adapter for Discord.
type Adapter struct {
	sess   session
	bus    *bus.MessageBus
	logger logging.Logger

	botToken string

	mu        sync.Mutex
	botUserID string
	connected bool
	closed    bool
}

var _ channel.Adapter = (*Adapter)(nil)

// Options holds parameters for creating a Discord Adapter.
type Options struct {
	// BotToken is the Discord bot token.
	BotToken string
	// Logger receives adapter telemetry.
	Logger logging.Logger
	// Session injects a mock session for tests.
	Session session
}

// New creates a Discord Adapter publishing into b.
func New(b *bus.MessageBus, optFns ...func(o *Options)) (*Adapter, error) {
	opts := Options{Logger: logging.NoOpLogger{}}
	for _, fn := range optFns {
		fn(&opts)
	}
	if opts.Session == nil && opts.BotToken == "" {
		return nil, fmt.Errorf("discord: bot token is required")
	}
	return &Adapter{
		sess:     opts.Session,
		bus:      b,
		logger:   opts.Logger,
		botToken: opts.BotToken,
	}, nil
}

// Name implements channel.Adapter.
func (a *Adapter) Name() string { return "discord" }

// Start implements channel.Adapter: opens the gateway and registers the
// message handler that forwards into the bus.
func (a *Adapter) Start(_ context.Context) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.closed {
		return fmt.Errorf("discord: adapter already closed")
	}
	if a.connected {
		return nil
	}

	if a.sess == nil {
		dg, err := discordgo.New("Bot " + a.botToken)
		if err != nil {
			return fmt.Errorf("discord: create session: %w", err)
		}
		dg.Identify.Intents = discordgo.IntentsGuildMessages | discordgo.IntentsDirectMessages | discordgo.IntentsMessageContent
		a.sess = dg
	}

	a.sess.AddHandler(func(_ *discordgo.Session, r *discordgo.Ready) {
		a.mu.Lock()
		a.botUserID = r.User.ID
		a.mu.Unlock()
		a.logger.Info("discord.connected", "user", r.User.Username, "user_id", r.User.ID)
	})
	a.sess.AddHandler(func(_ *discordgo.Session, _ *discordgo.Disconnect) {
		a.logger.Warn("discord.disconnected", "note", "library auto-reconnects")
	})
	a.sess.AddHandler(func(_ *discordgo.Session, m *discordgo.MessageCreate) {
		a.handleMessage(m)
	})

	if err := a.sess.Open(); err != nil {
		return fmt.Errorf("discord: open gateway: %w", err)
	}
	a.connected = true
	return nil
}

// Send implements channel.Adapter, retrying rate-limited posts with backoff.
func (a *Adapter) Send(ctx context.Context, msg bus.OutboundMessage) error {
	a.mu.Lock()
	connected := a.connected
	a.mu.Unlock()
	if !connected {
		return fmt.Errorf("discord: not connected")
	}
	if msg.ChatID == "" {
		return fmt.Errorf("discord: no destination channel")
	}

	err := retryOnRateLimit(ctx, func() error {
		_, sendErr := a.sess.ChannelMessageSend(msg.ChatID, msg.Content)
		return sendErr
	})
	if err != nil {
		return fmt.Errorf("discord: send message: %w", err)
	}
	return nil
}

// Close implements channel.Adapter.
func (a *Adapter) Close() error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.closed {
		return nil
	}
	a.closed = true
	a.connected = false
	if a.sess != nil {
		return a.sess.Close()
	}
	return nil
}

// handleMessage converts a message event into an inbound bus message. Bot and
// self messages are filtered.
func (a *Adapter) handleMessage(m *discordgo.MessageCreate) {
	if m.Author == nil || m.Author.Bot {
		return
	}
	a.mu.Lock()
	botID := a.botUserID
	a.mu.Unlock()
	if m.Author.ID == botID {
		return
	}

	ts, _ := discordgo.SnowflakeTimestamp(m.ID)
	ok := a.bus.TryPublishInbound(bus.InboundMessage{
		Channel:   a.Name(),
		ChatID:    m.ChannelID,
		SenderID:  m.Author.ID,
		Content:   m.Content,
		Timestamp: ts,
	})
	if !ok {
		// Platform callbacks must not block; a full queue drops with a log.
		a.logger.Warn("discord.inbound.dropped", "chat_id", m.ChannelID)
	}
}

// retryOnRateLimit retries fn with exponential backoff on 429 responses.
func retryOnRateLimit(ctx context.Context, fn func() error) error {
	wait := baseBackoff
	for attempt := 0; ; attempt++ {
		err := fn()
		if err == nil {
			return nil
		}
		restErr, ok := err.(*discordgo.RESTError)
		if !ok || restErr.Response == nil || restErr.Response.StatusCode != 429 {
			return err
		}
		if attempt == maxRetries {
			return err
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(wait):
		}
		wait *= 2
		if wait > maxBackoff {
			wait = maxBackoff
		}
	}
}
