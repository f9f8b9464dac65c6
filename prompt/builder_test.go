package prompt

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/meshbot/core"
	"github.com/hupe1980/meshbot/memory"
	"github.com/hupe1980/meshbot/session"
	"github.com/hupe1980/meshbot/skill"
)

func TestInstructionsIncludeMemoryAndSkills(t *testing.T) {
	mem, err := memory.NewStore(t.TempDir(), nil)
	require.NoError(t, err)
	require.NoError(t, mem.MergeFacts([]string{"User prefers short answers"}))

	skillDir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(skillDir, "tone.md"),
		[]byte("---\nname: tone\nalways: true\n---\nBe warm but brief.\n"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(skillDir, "git.md"),
		[]byte("---\nname: git\ndescription: Version control workflows\n---\nUse git.\n"), 0o644))

	skills, err := skill.NewLibrary(skillDir, nil)
	require.NoError(t, err)
	defer skills.Close()

	b := NewBuilder(mem, skills)
	instructions := b.Instructions()

	assert.Contains(t, instructions, "User prefers short answers")
	assert.Contains(t, instructions, "Be warm but brief.")
	assert.Contains(t, instructions, "git: Version control workflows")
	// Non-always skill bodies are cataloged, not injected.
	assert.NotContains(t, instructions, "Use git.")
}

func TestInstructionsCustomSystemPrompt(t *testing.T) {
	b := NewBuilder(nil, nil, func(o *BuilderOptions) {
		o.SystemPrompt = "You are a pirate."
	})
	assert.Contains(t, b.Instructions(), "You are a pirate.")
}

func TestHistoryWindow(t *testing.T) {
	b := NewBuilder(nil, nil, func(o *BuilderOptions) {
		o.HistoryWindow = 3
	})

	sess := session.NewSession("k")
	for i := 0; i < 10; i++ {
		sess.Append(core.NewUserMessage("m"))
	}
	assert.Len(t, b.History(sess), 3)
}

func TestHistoryTrimsDanglingToolResults(t *testing.T) {
	b := NewBuilder(nil, nil, func(o *BuilderOptions) {
		o.HistoryWindow = 2
	})

	sess := session.NewSession("k")
	sess.Append(
		core.NewUserMessage("go"),
		core.NewToolCallMessage("", []core.ToolCall{{ID: "c1", Name: "exec"}}),
		core.NewToolResultMessage("c1", "out"),
		core.NewAssistantMessage("done"),
	)

	// The raw window would start at the tool result, leaving it without its
	// call; the builder drops it.
	history := b.History(sess)
	require.Len(t, history, 1)
	assert.Equal(t, core.RoleAssistant, history[0].Role)
}
