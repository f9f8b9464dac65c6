package prompt

import (
	"strings"
	"time"

	"github.com/hupe1980/meshbot/core"
	"github.com/hupe1980/meshbot/memory"
	"github.com/hupe1980/meshbot/session"
	"github.com/hupe1980/meshbot/skill"
)

const defaultSystemPrompt = `You are a capable personal assistant. You can use
tools to read and modify files in your workspace, run shell commands, send
messages, and delegate work to subagents. Be concise and direct. When a task
needs multiple steps, work through them with tools rather than describing what
you would do.`

// BuilderOptions configures a Builder.
type BuilderOptions struct {
	// SystemPrompt overrides the built-in base prompt.
	SystemPrompt string
	// HistoryWindow bounds how many trailing session messages are sent.
	HistoryWindow int
	// MemoryBudget bounds the memory snippet length in runes.
	MemoryBudget int
}

// Builder assembles the model context for one request. Memory and skills are
// read fresh on every build so consolidations and skill edits take effect on
// the next turn.
type Builder struct {
	systemPrompt  string
	memory        *memory.Store
	skills        *skill.Library
	historyWindow int
	memoryBudget  int
}

// NewBuilder constructs a Builder. The memory store and skill library are
// both optional; a nil store simply contributes nothing to the prompt.
func NewBuilder(mem *memory.Store, skills *skill.Library, optFns ...func(o *BuilderOptions)) *Builder {
	opts := BuilderOptions{
		SystemPrompt:  defaultSystemPrompt,
		HistoryWindow: 100,
		MemoryBudget:  4000,
	}
	for _, fn := range optFns {
		fn(&opts)
	}
	return &Builder{
		systemPrompt:  opts.SystemPrompt,
		memory:        mem,
		skills:        skills,
		historyWindow: opts.HistoryWindow,
		memoryBudget:  opts.MemoryBudget,
	}
}

// Instructions renders the full system prompt: base prompt, memory snapshot,
// always-on skill bodies, and a catalog of the remaining skills.
func (b *Builder) Instructions() string {
	var sections []string
	sections = append(sections, strings.TrimSpace(b.systemPrompt))
	sections = append(sections, "Current time: "+time.Now().UTC().Format(time.RFC3339))

	if b.memory != nil {
		if snippet := b.memory.Snippet(b.memoryBudget); snippet != "" {
			sections = append(sections, "## Long-term memory\n\n"+snippet)
		}
	}

	if b.skills != nil {
		for _, s := range b.skills.Active() {
			sections = append(sections, "## Skill: "+s.Name+"\n\n"+s.Body)
		}
		if summaries := b.skills.Summaries(); len(summaries) > 0 {
			sections = append(sections,
				"## Available skills\n\n"+strings.Join(summaries, "\n"))
		}
	}

	return strings.Join(sections, "\n\n")
}

// History returns the trailing window of the session's messages. The window
// never starts at a dangling tool result: leading results without their call
// are trimmed so providers always see complete call/result pairs.
func (b *Builder) History(sess *session.Session) []core.Message {
	msgs := sess.Tail(b.historyWindow)
	for len(msgs) > 0 && msgs[0].Role == core.RoleTool {
		msgs = msgs[1:]
	}
	return msgs
}
