package channel

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/hupe1980/meshbot/bus"
	"github.com/hupe1980/meshbot/logging"
)

// Adapter is one platform connection. Start blocks no longer than connection
// setup; received messages flow to the bus from the adapter's own goroutines.
type Adapter interface {
	// Name is the channel identifier used in session keys ("discord", "slack").
	Name() string

	// Start connects and begins forwarding inbound messages to the bus.
	Start(ctx context.Context) error

	// Send delivers one outbound message on this platform.
	Send(ctx context.Context, msg bus.OutboundMessage) error

	// Close tears the connection down. Idempotent.
	Close() error
}

// Manager starts adapters and routes outbound traffic to them by channel name.
type Manager struct {
	bus    *bus.MessageBus
	logger logging.Logger

	mu       sync.RWMutex
	adapters map[string]Adapter
}

// NewManager constructs an empty Manager.
func NewManager(b *bus.MessageBus, logger logging.Logger) *Manager {
	if logger == nil {
		logger = logging.NoOpLogger{}
	}
	return &Manager{bus: b, logger: logger, adapters: make(map[string]Adapter)}
}

// Register adds an adapter. Duplicate names are an error.
func (m *Manager) Register(a Adapter) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, exists := m.adapters[a.Name()]; exists {
		return fmt.Errorf("channel %q already registered", a.Name())
	}
	m.adapters[a.Name()] = a
	return nil
}

// Names returns the registered channel names, sorted.
func (m *Manager) Names() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	names := make([]string, 0, len(m.adapters))
	for name := range m.adapters {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Start connects every adapter, then dispatches outbound messages until the
// context is cancelled or the bus is closed and drained. It blocks.
func (m *Manager) Start(ctx context.Context) error {
	m.mu.RLock()
	adapters := make([]Adapter, 0, len(m.adapters))
	for _, a := range m.adapters {
		adapters = append(adapters, a)
	}
	m.mu.RUnlock()

	for _, a := range adapters {
		if err := a.Start(ctx); err != nil {
			return fmt.Errorf("start channel %s: %w", a.Name(), err)
		}
		m.logger.Info("channel.started", "channel", a.Name())
	}

	for {
		msg, ok := m.bus.ConsumeOutbound(ctx)
		if !ok {
			return nil
		}
		m.dispatch(ctx, msg)
	}
}

// dispatch routes one outbound message. An unknown channel is logged and
// dropped; it usually means a heartbeat or CLI session with no adapter.
func (m *Manager) dispatch(ctx context.Context, msg bus.OutboundMessage) {
	m.mu.RLock()
	a, ok := m.adapters[msg.Channel]
	m.mu.RUnlock()
	if !ok {
		m.logger.Debug("channel.dispatch.no_adapter", "channel", msg.Channel, "chat_id", msg.ChatID)
		return
	}
	if err := a.Send(ctx, msg); err != nil {
		m.logger.Error("channel.send.failed", "channel", msg.Channel, "chat_id", msg.ChatID, "error", err.Error())
	}
}

// Close tears down every adapter.
func (m *Manager) Close() error {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var firstErr error
	for _, a := range m.adapters {
		if err := a.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}
