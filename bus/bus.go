// Package bus implements the inbound/outbound queue pair decoupling chat
// adapters from the processing engine. Both directions are FIFO per producer;
// no ordering is guaranteed across producers. Closing the bus is a terminal
// signal that lets consumers exit their drain loops cleanly.
package bus

import (
	"context"
	"sync"
	"sync/atomic"
	"time"
)

// InboundMessage is a message received from a chat adapter. Immutable once
// enqueued.
type InboundMessage struct {
	Channel     string    `json:"channel"`
	ChatID      string    `json:"chat_id"`
	SenderID    string    `json:"sender_id"`
	Content     string    `json:"content"`
	Attachments []string  `json:"attachments,omitempty"`
	ReplyTo     string    `json:"reply_to,omitempty"`
	Timestamp   time.Time `json:"timestamp"`
}

// SessionKey returns the composite conversation identifier "{channel}:{chat_id}".
func (m InboundMessage) SessionKey() string { return m.Channel + ":" + m.ChatID }

// OutboundMessage is a message destined for a chat adapter.
type OutboundMessage struct {
	Channel     string    `json:"channel"`
	ChatID      string    `json:"chat_id"`
	Content     string    `json:"content"`
	Attachments []string  `json:"attachments,omitempty"`
	Timestamp   time.Time `json:"timestamp"`
}

// MessageBus is a pair of bounded FIFO queues. Publish blocks when a queue is
// full (backpressure); the TryPublish variants never block and account for
// drops instead, for producers that must not stall (e.g. platform callbacks).
type MessageBus struct {
	inbound  chan InboundMessage
	outbound chan OutboundMessage

	closeOnce sync.Once
	done      chan struct{}

	inboundDropped  atomic.Int64
	outboundDropped atomic.Int64
}

// DefaultQueueSize bounds each direction of the bus.
const DefaultQueueSize = 128

// New creates a MessageBus with the given queue size per direction.
// size <= 0 falls back to DefaultQueueSize.
func New(size int) *MessageBus {
	if size <= 0 {
		size = DefaultQueueSize
	}
	return &MessageBus{
		inbound:  make(chan InboundMessage, size),
		outbound: make(chan OutboundMessage, size),
		done:     make(chan struct{}),
	}
}

// PublishInbound enqueues an inbound message, blocking while the queue is
// full. It returns false if the bus is closed or the context is cancelled.
func (b *MessageBus) PublishInbound(ctx context.Context, msg InboundMessage) bool {
	if msg.Timestamp.IsZero() {
		msg.Timestamp = time.Now().UTC()
	}
	select {
	case <-b.done:
		return false
	default:
	}
	select {
	case b.inbound <- msg:
		return true
	case <-b.done:
		return false
	case <-ctx.Done():
		return false
	}
}

// PublishOutbound enqueues an outbound message, blocking while the queue is
// full. It returns false if the bus is closed or the context is cancelled.
func (b *MessageBus) PublishOutbound(ctx context.Context, msg OutboundMessage) bool {
	if msg.Timestamp.IsZero() {
		msg.Timestamp = time.Now().UTC()
	}
	select {
	case <-b.done:
		return false
	default:
	}
	select {
	case b.outbound <- msg:
		return true
	case <-b.done:
		return false
	case <-ctx.Done():
		return false
	}
}

// TryPublishInbound enqueues without blocking. A full queue counts the message
// as dropped and returns false; drops are never silent.
func (b *MessageBus) TryPublishInbound(msg InboundMessage) bool {
	if msg.Timestamp.IsZero() {
		msg.Timestamp = time.Now().UTC()
	}
	select {
	case <-b.done:
		return false
	default:
	}
	select {
	case b.inbound <- msg:
		return true
	default:
		b.inboundDropped.Add(1)
		return false
	}
}

// TryPublishOutbound enqueues without blocking, accounting for drops.
func (b *MessageBus) TryPublishOutbound(msg OutboundMessage) bool {
	if msg.Timestamp.IsZero() {
		msg.Timestamp = time.Now().UTC()
	}
	select {
	case <-b.done:
		return false
	default:
	}
	select {
	case b.outbound <- msg:
		return true
	default:
		b.outboundDropped.Add(1)
		return false
	}
}

// ConsumeInbound blocks until a message is available. ok is false when the
// bus is closed (and drained) or the context is cancelled.
func (b *MessageBus) ConsumeInbound(ctx context.Context) (InboundMessage, bool) {
	select {
	case msg := <-b.inbound:
		return msg, true
	default:
	}
	select {
	case msg := <-b.inbound:
		return msg, true
	case <-b.done:
		// Drain anything still queued before signalling closure.
		select {
		case msg := <-b.inbound:
			return msg, true
		default:
			return InboundMessage{}, false
		}
	case <-ctx.Done():
		return InboundMessage{}, false
	}
}

// ConsumeOutbound blocks until a message is available. ok is false when the
// bus is closed (and drained) or the context is cancelled.
func (b *MessageBus) ConsumeOutbound(ctx context.Context) (OutboundMessage, bool) {
	select {
	case msg := <-b.outbound:
		return msg, true
	default:
	}
	select {
	case msg := <-b.outbound:
		return msg, true
	case <-b.done:
		select {
		case msg := <-b.outbound:
			return msg, true
		default:
			return OutboundMessage{}, false
		}
	case <-ctx.Done():
		return OutboundMessage{}, false
	}
}

// Close marks the bus terminal. Queued messages remain consumable; subsequent
// publishes are rejected. Safe to call multiple times.
func (b *MessageBus) Close() {
	b.closeOnce.Do(func() { close(b.done) })
}

// Dropped returns the number of messages rejected by the non-blocking publish
// variants, per direction.
func (b *MessageBus) Dropped() (inbound, outbound int64) {
	return b.inboundDropped.Load(), b.outboundDropped.Load()
}
