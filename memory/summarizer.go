package memory

import (
	"context"
	"fmt"
	"strings"

	"github.com/hupe1980/meshbot/core"
	"github.com/hupe1980/meshbot/model"
)

const summarizerInstructions = `You condense conversation history into long-term memory.

Given a transcript, respond in exactly this format:

FACTS:
- one durable fact per line, or "none"

SUMMARY:
One short paragraph describing what happened.

Facts are stable statements about the user, their preferences, their
environment, or commitments made. Do not record transient chit-chat.`

// ModelSummarizer implements Summarizer with a single model completion. It
// renders the block as a plain transcript and parses the structured reply.
type ModelSummarizer struct {
	model     model.Model
	maxTokens int64
}

// NewModelSummarizer wraps a model for consolidation summaries.
func NewModelSummarizer(m model.Model) *ModelSummarizer {
	return &ModelSummarizer{model: m, maxTokens: 1024}
}

// Summarize implements Summarizer.
func (s *ModelSummarizer) Summarize(ctx context.Context, msgs []core.Message) (*Summary, error) {
	transcript := renderTranscript(msgs)
	if transcript == "" {
		return &Summary{}, nil
	}

	resp, err := s.model.Complete(ctx, model.Request{
		Instructions: summarizerInstructions,
		Messages:     []core.Message{core.NewUserMessage(transcript)},
		MaxTokens:    s.maxTokens,
	})
	if err != nil {
		return nil, fmt.Errorf("consolidation completion: %w", err)
	}

	return parseSummary(resp.Content), nil
}

// renderTranscript flattens messages into "role: content" lines. Tool calls
// appear by name only; large tool results are elided to their first line.
func renderTranscript(msgs []core.Message) string {
	var b strings.Builder
	for _, msg := range msgs {
		switch {
		case msg.IsConsolidationMarker():
			fmt.Fprintf(&b, "(earlier summary) %s\n", msg.Content)
		case msg.HasToolCalls():
			names := make([]string, 0, len(msg.ToolCalls))
			for _, tc := range msg.ToolCalls {
				names = append(names, tc.Name)
			}
			fmt.Fprintf(&b, "assistant: [used tools: %s]\n", strings.Join(names, ", "))
			if msg.Content != "" {
				fmt.Fprintf(&b, "assistant: %s\n", msg.Content)
			}
		case msg.Role == core.RoleTool:
			line := msg.Content
			if i := strings.IndexByte(line, '\n'); i >= 0 {
				line = line[:i] + " ..."
			}
			fmt.Fprintf(&b, "tool: %s\n", line)
		default:
			fmt.Fprintf(&b, "%s: %s\n", msg.Role, msg.Content)
		}
	}
	return strings.TrimSpace(b.String())
}

// parseSummary extracts the FACTS bullets and the SUMMARY paragraph. Replies
// that ignore the format degrade gracefully to a narrative-only summary.
func parseSummary(content string) *Summary {
	summary := &Summary{}

	factsIdx := strings.Index(content, "FACTS:")
	narrIdx := strings.Index(content, "SUMMARY:")

	if factsIdx < 0 && narrIdx < 0 {
		summary.Narrative = strings.TrimSpace(content)
		return summary
	}

	if factsIdx >= 0 {
		section := content[factsIdx+len("FACTS:"):]
		if narrIdx > factsIdx {
			section = content[factsIdx+len("FACTS:") : narrIdx]
		}
		for _, line := range strings.Split(section, "\n") {
			line = strings.TrimSpace(line)
			rest, ok := strings.CutPrefix(line, "- ")
			if !ok {
				continue
			}
			rest = strings.TrimSpace(rest)
			if rest == "" || strings.EqualFold(rest, "none") {
				continue
			}
			summary.Facts = append(summary.Facts, rest)
		}
	}

	if narrIdx >= 0 {
		summary.Narrative = strings.TrimSpace(content[narrIdx+len("SUMMARY:"):])
	}

	return summary
}
