package memory

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/hupe1980/meshbot/core"
	"github.com/hupe1980/meshbot/logging"
	"github.com/hupe1980/meshbot/session"
)

// Summary is the distilled output of one consolidation pass.
type Summary struct {
	// Facts are durable statements worth remembering across conversations.
	Facts []string
	// Narrative is a short prose recap of what happened in the block.
	Narrative string
}

// Summarizer condenses a block of conversation into facts and a narrative.
type Summarizer interface {
	Summarize(ctx context.Context, msgs []core.Message) (*Summary, error)
}

// ConsolidatorOptions configures a Consolidator.
type ConsolidatorOptions struct {
	// Window is the unconsolidated-message count above which a pass triggers.
	Window int
	// Retain is how many trailing messages survive a pass verbatim.
	Retain int
	// Logger receives consolidation telemetry.
	Logger logging.Logger
}

// Consolidator compresses aged session history: the prefix of the history is
// summarized into long-term memory and replaced in the session by a single
// marker message, while the most recent messages stay verbatim.
//
// A failed summarization aborts the pass without touching the session or the
// memory documents; the next pass retries over the same (now larger) block.
type Consolidator struct {
	store      *Store
	sessions   session.Store
	summarizer Summarizer
	window     int
	retain     int
	logger     logging.Logger
}

// NewConsolidator constructs a consolidator over the given stores.
func NewConsolidator(store *Store, sessions session.Store, summarizer Summarizer, optFns ...func(o *ConsolidatorOptions)) *Consolidator {
	opts := ConsolidatorOptions{
		Window: 50,
		Retain: 4,
		Logger: logging.NoOpLogger{},
	}
	for _, fn := range optFns {
		fn(&opts)
	}
	if opts.Retain < 1 {
		opts.Retain = 1
	}
	return &Consolidator{
		store:      store,
		sessions:   sessions,
		summarizer: summarizer,
		window:     opts.Window,
		retain:     opts.Retain,
		logger:     opts.Logger,
	}
}

// ShouldConsolidate reports whether the session has accumulated strictly more
// unconsolidated messages than the window.
func (c *Consolidator) ShouldConsolidate(sess *session.Session) bool {
	return sess.SinceConsolidation() > c.window
}

// Consolidate runs one pass over the session. The boundary between summarized
// prefix and retained tail never splits a tool call from its result: the cut
// moves earlier until the first retained message is not a tool result.
func (c *Consolidator) Consolidate(ctx context.Context, key string) error {
	sess, err := c.sessions.Load(key)
	if err != nil {
		return err
	}

	msgs := sess.GetMessages()
	cut := len(msgs) - c.retain
	for cut > 0 && msgs[cut].Role == core.RoleTool {
		cut--
	}
	if cut <= 0 {
		return nil
	}

	block := msgs[:cut]
	start := time.Now()

	summary, err := c.summarizer.Summarize(ctx, block)
	if err != nil {
		c.logger.Warn("memory.consolidate.summarize_failed", "session", key, "error", err.Error())
		return fmt.Errorf("summarize session %s: %w", key, err)
	}

	if err := c.store.MergeFacts(summary.Facts); err != nil {
		return err
	}
	if err := c.store.AppendEvent(time.Now(), key, summary.Narrative); err != nil {
		return err
	}

	marker := core.NewConsolidationMarker(markerText(summary, len(block)))
	if err := c.sessions.Consolidate(key, cut, marker); err != nil {
		return err
	}

	c.logger.Info("memory.consolidate.done",
		"session", key,
		"summarized", len(block),
		"facts", len(summary.Facts),
		"duration", time.Since(start).String(),
	)
	return nil
}

func markerText(summary *Summary, count int) string {
	narrative := strings.TrimSpace(summary.Narrative)
	if narrative == "" {
		narrative = "No notable events."
	}
	return fmt.Sprintf("[Earlier conversation consolidated (%d messages)]\n%s", count, narrative)
}
