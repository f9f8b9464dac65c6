package schedule

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/meshbot/config"
)

type recordingInvoker struct {
	channel, chatID, content string
}

func (r *recordingInvoker) ProcessDirect(_ context.Context, channel, chatID, content string) (string, error) {
	r.channel, r.chatID, r.content = channel, chatID, content
	return "done", nil
}

func TestAddValidatesCronExpression(t *testing.T) {
	s := New(&recordingInvoker{})
	err := s.Add(config.HeartbeatJob{Name: "bad", Cron: "not a cron", Prompt: "p"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "bad")
}

func TestAddAcceptsStandardExpression(t *testing.T) {
	s := New(&recordingInvoker{})
	assert.NoError(t, s.Add(config.HeartbeatJob{Name: "morning", Cron: "0 9 * * *", Prompt: "p"}))
}

func TestFireUsesHeartbeatSession(t *testing.T) {
	inv := &recordingInvoker{}
	s := New(inv)
	s.fire(config.HeartbeatJob{Name: "morning", Cron: "0 9 * * *", Prompt: "Summarize my day"})

	assert.Equal(t, "heartbeat", inv.channel)
	assert.Equal(t, "morning", inv.chatID)
	assert.Equal(t, "Summarize my day", inv.content)
}
