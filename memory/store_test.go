package memory

import (
	"os"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMergeFactsCreatesDocument(t *testing.T) {
	store, err := NewStore(t.TempDir(), nil)
	require.NoError(t, err)

	require.NoError(t, store.MergeFacts([]string{"User prefers dark mode", "User lives in Berlin"}))

	facts := store.Facts()
	require.Len(t, facts, 2)
	assert.Equal(t, "User prefers dark mode", facts[0])
	assert.Equal(t, "User lives in Berlin", facts[1])
}

func TestMergeFactsIsIdempotent(t *testing.T) {
	store, err := NewStore(t.TempDir(), nil)
	require.NoError(t, err)

	facts := []string{"User prefers dark mode", "Project deadline is Friday"}
	require.NoError(t, store.MergeFacts(facts))
	require.NoError(t, store.MergeFacts(facts))
	require.NoError(t, store.MergeFacts(facts))

	assert.Len(t, store.Facts(), 2)
}

func TestMergeFactsDeduplicatesNearIdenticalPhrasings(t *testing.T) {
	store, err := NewStore(t.TempDir(), nil)
	require.NoError(t, err)

	require.NoError(t, store.MergeFacts([]string{"User prefers dark mode."}))
	require.NoError(t, store.MergeFacts([]string{"user  prefers dark mode"}))

	assert.Len(t, store.Facts(), 1)
}

func TestMergeFactsPreservesExistingContent(t *testing.T) {
	store, err := NewStore(t.TempDir(), nil)
	require.NoError(t, err)

	require.NoError(t, store.MergeFacts([]string{"first fact"}))
	require.NoError(t, store.MergeFacts([]string{"second fact"}))

	doc := store.ReadFacts()
	assert.Contains(t, doc, "- first fact")
	assert.Contains(t, doc, "- second fact")
	assert.True(t, strings.Index(doc, "first fact") < strings.Index(doc, "second fact"))
}

func TestMergeFactsSkipsEmpty(t *testing.T) {
	store, err := NewStore(t.TempDir(), nil)
	require.NoError(t, err)

	require.NoError(t, store.MergeFacts([]string{"", "   ", "real fact"}))
	assert.Len(t, store.Facts(), 1)

	// No facts at all leaves the document untouched.
	dir := t.TempDir()
	empty, err := NewStore(dir, nil)
	require.NoError(t, err)
	require.NoError(t, empty.MergeFacts(nil))
	_, statErr := os.Stat(empty.FactsPath())
	assert.True(t, os.IsNotExist(statErr))
}

func TestAppendEvent(t *testing.T) {
	store, err := NewStore(t.TempDir(), nil)
	require.NoError(t, err)

	ts := time.Date(2026, 3, 14, 15, 9, 0, 0, time.UTC)
	require.NoError(t, store.AppendEvent(ts, "telegram:42", "Discussed the quarterly report."))
	require.NoError(t, store.AppendEvent(ts.Add(time.Hour), "telegram:42", "Scheduled a follow-up."))

	doc := store.ReadEvents()
	assert.Contains(t, doc, "# History")
	assert.Contains(t, doc, "2026-03-14T15:09:00Z")
	assert.Contains(t, doc, "Discussed the quarterly report.")
	assert.Contains(t, doc, "Scheduled a follow-up.")
	assert.True(t, strings.Index(doc, "quarterly") < strings.Index(doc, "follow-up"))
}

func TestSnippetTruncation(t *testing.T) {
	store, err := NewStore(t.TempDir(), nil)
	require.NoError(t, err)

	assert.Empty(t, store.Snippet(100))

	require.NoError(t, store.MergeFacts([]string{strings.Repeat("x", 500)}))
	snippet := store.Snippet(50)
	assert.Contains(t, snippet, "memory truncated")
	assert.LessOrEqual(t, len(snippet), 100)
}
