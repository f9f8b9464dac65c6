// Package slack implements the channel Adapter for Slack using Socket Mode.
package slack

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
	"sync"
	"time"

	slackapi "github.com/slack-go/slack"
	"github.com/slack-go/slack/slackevents"
	"github.com/slack-go/slack/socketmode"

	"github.com/hupe1980/meshbot/bus"
	"github.com/hupe1980/meshbot/channel"
	"github.com/hupe1980/meshbot/logging"
)

const maxRetries = 3

// slackClient abstracts the Slack API methods the adapter uses, enabling
// test mocks.
type slackClient interface {
	AuthTest() (*slackapi.AuthTestResponse, error)
	PostMessage(channelID string, options ...slackapi.MsgOption) (string, string, error)
}

// socketClient abstracts the Socket Mode client methods the adapter uses.
type socketClient interface {
	Run() error
	EventsChan() chan socketmode.Event
	Ack(req socketmode.Request, payload ...interface{})
}

// realSocketClient wraps *socketmode.Client to implement socketClient.
type realSocketClient struct {
	client *socketmode.Client
}

func (r *realSocketClient) Run() error                        { return r.client.Run() }
func (r *realSocketClient) EventsChan() chan socketmode.Event { return r.client.Events }
func (r *realSocketClient) Ack(req socketmode.Request, payload ...interface{}) {
	r.client.Ack(req, payload...)
}

// Adapter implements channel.Adapter for Slack Socket Mode.
type Adapter struct {
	client socketClientPair
	bus    *bus.MessageBus
	logger logging.Logger

	appToken string
	botToken string

	mu        sync.Mutex
	botUserID string
	connected bool
	closed    bool
	cancel    context.CancelFunc
}

type socketClientPair struct {
	api    slackClient
	socket socketClient
}

var _ channel.Adapter = (*Adapter)(nil)

// Options holds parameters for creating a Slack Adapter.
type Options struct {
	// AppToken is the xapp-... app-level token required for Socket Mode.
	AppToken string
	// BotToken is the xoxb-... bot token.
	BotToken string
	// Logger receives adapter telemetry.
	Logger logging.Logger
	// Client/Socket inject mocks for tests.
	Client slackClient
	Socket socketClient
}

// New creates a Slack Adapter publishing into b.
func New(b *bus.MessageBus, optFns ...func(o *Options)) (*Adapter, error) {
	opts := Options{Logger: logging.NoOpLogger{}}
	for _, fn := range optFns {
		fn(&opts)
	}
	if opts.Client == nil && opts.BotToken == "" {
		return nil, fmt.Errorf("slack: bot token is required")
	}
	if opts.Socket == nil && opts.AppToken == "" {
		return nil, fmt.Errorf("slack: app token is required for socket mode")
	}
	return &Adapter{
		client:   socketClientPair{api: opts.Client, socket: opts.Socket},
		bus:      b,
		logger:   opts.Logger,
		appToken: opts.AppToken,
		botToken: opts.BotToken,
	}, nil
}

// Name implements channel.Adapter.
func (a *Adapter) Name() string { return "slack" }

// Start implements channel.Adapter: authenticates, then runs the Socket Mode
// event pump in the background.
func (a *Adapter) Start(ctx context.Context) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.closed {
		return fmt.Errorf("slack: adapter already closed")
	}
	if a.connected {
		return nil
	}

	if a.client.api == nil {
		api := slackapi.New(a.botToken, slackapi.OptionAppLevelToken(a.appToken))
		a.client.api = api
		a.client.socket = &realSocketClient{client: socketmode.New(api)}
	}

	auth, err := a.client.api.AuthTest()
	if err != nil {
		return fmt.Errorf("slack: auth test: %w", err)
	}
	a.botUserID = auth.UserID

	runCtx, cancel := context.WithCancel(ctx)
	a.cancel = cancel

	go func() {
		if err := a.client.socket.Run(); err != nil && runCtx.Err() == nil {
			a.logger.Error("slack.socket.stopped", "error", err.Error())
		}
	}()
	go a.pumpEvents(runCtx)

	a.connected = true
	return nil
}

// Send implements channel.Adapter, retrying rate-limited posts.
func (a *Adapter) Send(ctx context.Context, msg bus.OutboundMessage) error {
	a.mu.Lock()
	connected := a.connected
	a.mu.Unlock()
	if !connected {
		return fmt.Errorf("slack: not connected")
	}
	if msg.ChatID == "" {
		return fmt.Errorf("slack: no destination channel")
	}

	err := retryOnRateLimit(ctx, func() error {
		_, _, postErr := a.client.api.PostMessage(msg.ChatID, slackapi.MsgOptionText(msg.Content, false))
		return postErr
	})
	if err != nil {
		return fmt.Errorf("slack: post message: %w", err)
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
	if a.cancel != nil {
		a.cancel()
	}
	return nil
}

// pumpEvents reads Socket Mode events and forwards messages into the bus.
func (a *Adapter) pumpEvents(ctx context.Context) {
	events := a.client.socket.EventsChan()
	for {
		select {
		case <-ctx.Done():
			return
		case evt, ok := <-events:
			if !ok {
				return
			}
			a.handleSocketEvent(evt)
		}
	}
}

func (a *Adapter) handleSocketEvent(evt socketmode.Event) {
	switch evt.Type {
	case socketmode.EventTypeEventsAPI:
		eventsAPIEvent, ok := evt.Data.(slackevents.EventsAPIEvent)
		if !ok {
			return
		}
		if evt.Request != nil {
			a.client.socket.Ack(*evt.Request)
		}
		a.handleEventsAPI(eventsAPIEvent)

	case socketmode.EventTypeConnected:
		a.logger.Info("slack.connected")

	case socketmode.EventTypeConnectionError:
		a.logger.Warn("slack.connection_error")

	case socketmode.EventTypeDisconnect:
		a.logger.Warn("slack.disconnect", "note", "server requested reconnect")
	}
}

func (a *Adapter) handleEventsAPI(event slackevents.EventsAPIEvent) {
	if event.Type != slackevents.CallbackEvent {
		return
	}
	switch ev := event.InnerEvent.Data.(type) {
	case *slackevents.MessageEvent:
		// Subtypes cover edits, deletes and joins; only fresh user messages
		// reach the engine.
		if ev.User == a.botUserID || ev.BotID != "" || ev.SubType != "" {
			return
		}
		a.publish(ev.Channel, ev.User, ev.Text, ev.TimeStamp)
	case *slackevents.AppMentionEvent:
		if ev.User == a.botUserID {
			return
		}
		a.publish(ev.Channel, ev.User, ev.Text, ev.TimeStamp)
	}
}

func (a *Adapter) publish(chatID, userID, text, ts string) {
	ok := a.bus.TryPublishInbound(bus.InboundMessage{
		Channel:   a.Name(),
		ChatID:    chatID,
		SenderID:  userID,
		Content:   text,
		Timestamp: parseSlackTimestamp(ts),
	})
	if !ok {
		a.logger.Warn("slack.inbound.dropped", "chat_id", chatID)
	}
}

// retryOnRateLimit retries fn honoring Slack's RetryAfter hint.
func retryOnRateLimit(ctx context.Context, fn func() error) error {
	for attempt := 0; ; attempt++ {
		err := fn()
		if err == nil {
			return nil
		}
		var rle *slackapi.RateLimitedError
		if !errors.As(err, &rle) {
			return err
		}
		if attempt == maxRetries {
			return err
		}
		wait := rle.RetryAfter
		if wait <= 0 {
			wait = time.Duration(math.Pow(2, float64(attempt))) * time.Second
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(wait):
		}
	}
}

// parseSlackTimestamp converts "1234567890.123456" to a time.Time.
func parseSlackTimestamp(ts string) time.Time {
	parts := strings.SplitN(ts, ".", 2)
	if len(parts) == 0 {
		return time.Time{}
	}
	sec, err := strconv.ParseInt(parts[0], 10, 64)
	if err != nil {
		return time.Time{}
	}
	return time.Unix(sec, 0)
}
