package tool

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testCtx() *Context { return NewContext("", "", "c1", nil) }

func TestWriteThenReadFile(t *testing.T) {
	dir := t.TempDir()
	write := NewWriteFileTool(dir, true)
	read := NewReadFileTool(dir, true)

	_, err := write.Call(context.Background(), testCtx(), map[string]any{
		"path":    "notes/today.md",
		"content": "remember the milk",
	})
	require.NoError(t, err)

	out, err := read.Call(context.Background(), testCtx(), map[string]any{
		"path": "notes/today.md",
	})
	require.NoError(t, err)
	assert.Equal(t, "remember the milk", out)
}

func TestAppendFile(t *testing.T) {
	dir := t.TempDir()
	appendTool := NewAppendFileTool(dir, true)

	for _, chunk := range []string{"one\n", "two\n"} {
		_, err := appendTool.Call(context.Background(), testCtx(), map[string]any{
			"path":    "log.txt",
			"content": chunk,
		})
		require.NoError(t, err)
	}

	data, err := os.ReadFile(filepath.Join(dir, "log.txt"))
	require.NoError(t, err)
	assert.Equal(t, "one\ntwo\n", string(data))
}

func TestEditFileReplacesFirstOccurrence(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "f.txt"), []byte("aaa bbb aaa"), 0o644))

	edit := NewEditFileTool(dir, true)
	_, err := edit.Call(context.Background(), testCtx(), map[string]any{
		"path":     "f.txt",
		"old_text": "aaa",
		"new_text": "xxx",
	})
	require.NoError(t, err)

	data, err := os.ReadFile(filepath.Join(dir, "f.txt"))
	require.NoError(t, err)
	assert.Equal(t, "xxx bbb aaa", string(data))
}

func TestEditFileMissingOldText(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "f.txt"), []byte("content"), 0o644))

	edit := NewEditFileTool(dir, true)
	_, err := edit.Call(context.Background(), testCtx(), map[string]any{
		"path":     "f.txt",
		"old_text": "nope",
		"new_text": "x",
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not found")
}

func TestListDir(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "b.txt"), nil, 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "a.txt"), nil, 0o644))
	require.NoError(t, os.Mkdir(filepath.Join(dir, "sub"), 0o755))

	list := NewListDirTool(dir, true)
	out, err := list.Call(context.Background(), testCtx(), map[string]any{"path": "."})
	require.NoError(t, err)
	assert.Equal(t, "a.txt\nb.txt\nsub/", out)
}

func TestWorkspaceEscapeDenied(t *testing.T) {
	dir := t.TempDir()

	tests := []struct {
		name string
		path string
	}{
		{"dotdot relative", "../outside.txt"},
		{"nested dotdot", "sub/../../outside.txt"},
		{"absolute outside", "/etc/passwd"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			read := NewReadFileTool(dir, true)
			_, err := read.Call(context.Background(), testCtx(), map[string]any{"path": tt.path})
			require.Error(t, err)
			toolErr, ok := err.(*ToolError)
			require.True(t, ok)
			assert.Equal(t, CodeDenied, toolErr.Code)
		})
	}
}

func TestUnrestrictedAllowsAbsolutePaths(t *testing.T) {
	dir := t.TempDir()
	outside := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(outside, "f.txt"), []byte("ok"), 0o644))

	read := NewReadFileTool(dir, false)
	out, err := read.Call(context.Background(), testCtx(), map[string]any{
		"path": filepath.Join(outside, "f.txt"),
	})
	require.NoError(t, err)
	assert.Equal(t, "ok", out)
}
