package bus

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSessionKey(t *testing.T) {
	msg := InboundMessage{Channel: "telegram", ChatID: "42"}
	assert.Equal(t, "telegram:42", msg.SessionKey())
}

func TestInboundFIFO(t *testing.T) {
	b := New(16)
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		ok := b.PublishInbound(ctx, InboundMessage{Channel: "test", ChatID: "1", Content: fmt.Sprintf("msg-%d", i)})
		require.True(t, ok)
	}

	for i := 0; i < 5; i++ {
		msg, ok := b.ConsumeInbound(ctx)
		require.True(t, ok)
		assert.Equal(t, fmt.Sprintf("msg-%d", i), msg.Content)
	}
}

func TestPublishSetsTimestamp(t *testing.T) {
	b := New(1)
	require.True(t, b.PublishInbound(context.Background(), InboundMessage{Channel: "test", ChatID: "1"}))
	msg, ok := b.ConsumeInbound(context.Background())
	require.True(t, ok)
	assert.False(t, msg.Timestamp.IsZero())
}

func TestCloseRejectsPublishButDrains(t *testing.T) {
	b := New(16)
	ctx := context.Background()

	require.True(t, b.PublishOutbound(ctx, OutboundMessage{Channel: "test", ChatID: "1", Content: "queued"}))
	b.Close()

	assert.False(t, b.PublishOutbound(ctx, OutboundMessage{Channel: "test", ChatID: "1", Content: "late"}))

	// The already-queued message is still consumable after close.
	msg, ok := b.ConsumeOutbound(ctx)
	require.True(t, ok)
	assert.Equal(t, "queued", msg.Content)

	_, ok = b.ConsumeOutbound(ctx)
	assert.False(t, ok)
}

func TestCloseIsIdempotent(t *testing.T) {
	b := New(1)
	b.Close()
	assert.NotPanics(t, func() { b.Close() })
}

func TestTryPublishAccountsDrops(t *testing.T) {
	b := New(1)

	assert.True(t, b.TryPublishInbound(InboundMessage{Channel: "test", ChatID: "1"}))
	assert.False(t, b.TryPublishInbound(InboundMessage{Channel: "test", ChatID: "1"}))
	assert.False(t, b.TryPublishInbound(InboundMessage{Channel: "test", ChatID: "1"}))

	inDropped, outDropped := b.Dropped()
	assert.Equal(t, int64(2), inDropped)
	assert.Equal(t, int64(0), outDropped)
}

func TestConsumeHonorsContext(t *testing.T) {
	b := New(1)
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	start := time.Now()
	_, ok := b.ConsumeInbound(ctx)
	assert.False(t, ok)
	assert.Less(t, time.Since(start), time.Second)
}

func TestPublishBlocksUntilConsumed(t *testing.T) {
	b := New(1)
	ctx := context.Background()
	require.True(t, b.PublishInbound(ctx, InboundMessage{Channel: "test", ChatID: "1", Content: "first"}))

	published := make(chan bool, 1)
	go func() {
		published <- b.PublishInbound(ctx, InboundMessage{Channel: "test", ChatID: "1", Content: "second"})
	}()

	select {
	case <-published:
		t.Fatal("publish returned before the queue had room")
	case <-time.After(20 * time.Millisecond):
	}

	_, ok := b.ConsumeInbound(ctx)
	require.True(t, ok)

	select {
	case ok := <-published:
		assert.True(t, ok)
	case <-time.After(time.Second):
		t.Fatal("publish did not complete after room was made")
	}
}
