package memory

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/meshbot/core"
	"github.com/hupe1980/meshbot/session"
)

// scriptedSummarizer returns a fixed summary or a fixed error.
type scriptedSummarizer struct {
	summary *Summary
	err     error
	calls   int
}

func (s *scriptedSummarizer) Summarize(_ context.Context, _ []core.Message) (*Summary, error) {
	s.calls++
	if s.err != nil {
		return nil, s.err
	}
	return s.summary, nil
}

func seedSession(t *testing.T, store session.Store, key string, n int) {
	t.Helper()
	for i := 0; i < n; i++ {
		require.NoError(t, store.Append(key, core.NewUserMessage("msg")))
	}
}

func TestShouldConsolidateStrictlyGreaterThanWindow(t *testing.T) {
	sessions := session.NewInMemoryStore()
	c := NewConsolidator(nil, sessions, nil, func(o *ConsolidatorOptions) { o.Window = 5 })

	key := "cli:default"
	seedSession(t, sessions, key, 5)
	sess, err := sessions.Load(key)
	require.NoError(t, err)
	assert.False(t, c.ShouldConsolidate(sess), "exactly window messages must not trigger")

	seedSession(t, sessions, key, 1)
	assert.True(t, c.ShouldConsolidate(sess))
}

func TestConsolidateReplacesPrefixAndWritesMemory(t *testing.T) {
	mem, err := NewStore(t.TempDir(), nil)
	require.NoError(t, err)
	sessions := session.NewInMemoryStore()
	summarizer := &scriptedSummarizer{summary: &Summary{
		Facts:     []string{"User works nights"},
		Narrative: "Talked about scheduling.",
	}}
	c := NewConsolidator(mem, sessions, summarizer, func(o *ConsolidatorOptions) {
		o.Window = 5
		o.Retain = 2
	})

	key := "cli:default"
	seedSession(t, sessions, key, 10)
	require.NoError(t, c.Consolidate(context.Background(), key))

	sess, err := sessions.Load(key)
	require.NoError(t, err)
	msgs := sess.GetMessages()
	require.Len(t, msgs, 3) // marker + 2 retained
	assert.True(t, msgs[0].IsConsolidationMarker())
	assert.Contains(t, msgs[0].Content, "Talked about scheduling.")

	assert.Equal(t, []string{"User works nights"}, mem.Facts())
	assert.Contains(t, mem.ReadEvents(), "Talked about scheduling.")
}

func TestConsolidateIsIdempotentOnFacts(t *testing.T) {
	mem, err := NewStore(t.TempDir(), nil)
	require.NoError(t, err)
	sessions := session.NewInMemoryStore()
	summarizer := &scriptedSummarizer{summary: &Summary{
		Facts:     []string{"User works nights"},
		Narrative: "n",
	}}
	c := NewConsolidator(mem, sessions, summarizer, func(o *ConsolidatorOptions) {
		o.Window = 3
		o.Retain = 1
	})

	key := "cli:default"
	seedSession(t, sessions, key, 8)
	require.NoError(t, c.Consolidate(context.Background(), key))

	seedSession(t, sessions, key, 8)
	require.NoError(t, c.Consolidate(context.Background(), key))

	assert.Len(t, mem.Facts(), 1, "repeated consolidation must not duplicate facts")
}

func TestConsolidateSkipsOnSummarizerFailure(t *testing.T) {
	mem, err := NewStore(t.TempDir(), nil)
	require.NoError(t, err)
	sessions := session.NewInMemoryStore()
	summarizer := &scriptedSummarizer{err: errors.New("model unavailable")}
	c := NewConsolidator(mem, sessions, summarizer, func(o *ConsolidatorOptions) {
		o.Window = 3
		o.Retain = 1
	})

	key := "cli:default"
	seedSession(t, sessions, key, 10)
	require.Error(t, c.Consolidate(context.Background(), key))

	// Nothing changed: the session keeps its full history and the memory
	// documents are untouched.
	sess, err := sessions.Load(key)
	require.NoError(t, err)
	assert.Equal(t, 10, sess.Len())
	assert.Empty(t, mem.Facts())
	assert.Empty(t, mem.ReadEvents())
}

func TestConsolidateNeverSplitsToolPairs(t *testing.T) {
	mem, err := NewStore(t.TempDir(), nil)
	require.NoError(t, err)
	sessions := session.NewInMemoryStore()
	summarizer := &scriptedSummarizer{summary: &Summary{Narrative: "n"}}
	c := NewConsolidator(mem, sessions, summarizer, func(o *ConsolidatorOptions) {
		o.Window = 2
		o.Retain = 1
	})

	key := "cli:default"
	require.NoError(t, sessions.Append(key,
		core.NewUserMessage("do it"),
		core.NewUserMessage("still waiting"),
		core.NewToolCallMessage("", []core.ToolCall{{ID: "c1", Name: "exec"}}),
		core.NewToolResultMessage("c1", "done"),
	))

	require.NoError(t, c.Consolidate(context.Background(), key))

	sess, err := sessions.Load(key)
	require.NoError(t, err)
	msgs := sess.GetMessages()

	// The retained tail would have started at the tool result; the cut moves
	// earlier so the call/result pair stays together.
	require.True(t, msgs[0].IsConsolidationMarker())
	require.Len(t, msgs, 3)
	assert.True(t, msgs[1].HasToolCalls())
	assert.Equal(t, "c1", msgs[2].ToolCallID)
}

func TestParseSummary(t *testing.T) {
	tests := []struct {
		name      string
		content   string
		facts     []string
		narrative string
	}{
		{
			name:      "well formed",
			content:   "FACTS:\n- fact one\n- fact two\n\nSUMMARY:\nIt went well.",
			facts:     []string{"fact one", "fact two"},
			narrative: "It went well.",
		},
		{
			name:      "no facts",
			content:   "FACTS:\n- none\n\nSUMMARY:\nNothing durable.",
			facts:     nil,
			narrative: "Nothing durable.",
		},
		{
			name:      "free form fallback",
			content:   "The user asked about the weather.",
			facts:     nil,
			narrative: "The user asked about the weather.",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := parseSummary(tt.content)
			assert.Equal(t, tt.facts, s.Facts)
			assert.Equal(t, tt.narrative, s.Narrative)
		})
	}
}
