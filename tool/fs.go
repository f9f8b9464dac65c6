package tool

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// fsRoot resolves paths relative to the workspace and optionally refuses
// escapes outside it. Shared by the filesystem tools.
type fsRoot struct {
	workspace string
	restrict  bool
}

func (r fsRoot) resolve(tool, path string) (string, error) {
	if path == "" {
		return "", NewToolError(tool, "path must not be empty", CodeValidation)
	}
	if !filepath.IsAbs(path) {
		path = filepath.Join(r.workspace, path)
	}
	path = filepath.Clean(path)
	if r.restrict {
		rel, err := filepath.Rel(r.workspace, path)
		if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
			return "", NewToolError(tool, fmt.Sprintf("path %q escapes the workspace", path), CodeDenied)
		}
	}
	return path, nil
}

func pathSchema(desc string) map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"path": map[string]any{"type": "string", "description": desc},
		},
		"required": []string{"path"},
	}
}

func stringArg(tool string, args map[string]any, key string) (string, error) {
	v, ok := args[key].(string)
	if !ok {
		return "", NewToolError(tool, fmt.Sprintf("%s must be a string", key), CodeValidation)
	}
	return v, nil
}

// ReadFileTool returns the contents of a file in the workspace.
type ReadFileTool struct{ root fsRoot }

// NewReadFileTool constructs a read_file tool rooted at workspace.
func NewReadFileTool(workspace string, restrict bool) *ReadFileTool {
	return &ReadFileTool{root: fsRoot{workspace: workspace, restrict: restrict}}
}

// Name implements Tool.
func (t *ReadFileTool) Name() string { return "read_file" }

// Description implements Tool.
func (t *ReadFileTool) Description() string { return "Read the contents of a file." }

// Parameters implements Tool.
func (t *ReadFileTool) Parameters() map[string]any {
	return pathSchema("Path of the file to read, absolute or relative to the workspace")
}

// Call implements Tool.
func (t *ReadFileTool) Call(_ context.Context, _ *Context, args map[string]any) (any, error) {
	path, err := stringArg(t.Name(), args, "path")
	if err != nil {
		return nil, err
	}
	resolved, err := t.root.resolve(t.Name(), path)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(resolved)
	if err != nil {
		return nil, NewToolError(t.Name(), err.Error(), CodeExecution)
	}
	return string(data), nil
}

// WriteFileTool creates or overwrites a file in the workspace.
type WriteFileTool struct{ root fsRoot }

// NewWriteFileTool constructs a write_file tool rooted at workspace.
func NewWriteFileTool(workspace string, restrict bool) *WriteFileTool {
	return &WriteFileTool{root: fsRoot{workspace: workspace, restrict: restrict}}
}

// Name implements Tool.
func (t *WriteFileTool) Name() string { return "write_file" }

// Description implements Tool.
func (t *WriteFileTool) Description() string {
	return "Write content to a file, creating parent directories as needed. Overwrites existing content."
}

// Parameters implements Tool.
func (t *WriteFileTool) Parameters() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"path":    map[string]any{"type": "string", "description": "Path of the file to write"},
			"content": map[string]any{"type": "string", "description": "Content to write"},
		},
		"required": []string{"path", "content"},
	}
}

// Call implements Tool.
func (t *WriteFileTool) Call(_ context.Context, _ *Context, args map[string]any) (any, error) {
	path, err := stringArg(t.Name(), args, "path")
	if err != nil {
		return nil, err
	}
	content, err := stringArg(t.Name(), args, "content")
	if err != nil {
		return nil, err
	}
	resolved, err := t.root.resolve(t.Name(), path)
	if err != nil {
		return nil, err
	}
	if err := os.MkdirAll(filepath.Dir(resolved), 0o755); err != nil {
		return nil, NewToolError(t.Name(), err.Error(), CodeExecution)
	}
	if err := os.WriteFile(resolved, []byte(content), 0o644); err != nil {
		return nil, NewToolError(t.Name(), err.Error(), CodeExecution)
	}
	return fmt.Sprintf("wrote %d bytes to %s", len(content), path), nil
}

// AppendFileTool appends content to a file in the workspace.
type AppendFileTool struct{ root fsRoot }

// NewAppendFileTool constructs an append_file tool rooted at workspace.
func NewAppendFileTool(workspace string, restrict bool) *AppendFileTool {
	return &AppendFileTool{root: fsRoot{workspace: workspace, restrict: restrict}}
}

// Name implements Tool.
func (t *AppendFileTool) Name() string { return "append_file" }

// Description implements Tool.
func (t *AppendFileTool) Description() string {
	return "Append content to the end of a file, creating it if missing."
}

// Parameters implements Tool.
func (t *AppendFileTool) Parameters() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"path":    map[string]any{"type": "string", "description": "Path of the file to append to"},
			"content": map[string]any{"type": "string", "description": "Content to append"},
		},
		"required": []string{"path", "content"},
	}
}

// Call implements Tool.
func (t *AppendFileTool) Call(_ context.Context, _ *Context, args map[string]any) (any, error) {
	path, err := stringArg(t.Name(), args, "path")
	if err != nil {
		return nil, err
	}
	content, err := stringArg(t.Name(), args, "content")
	if err != nil {
		return nil, err
	}
	resolved, err := t.root.resolve(t.Name(), path)
	if err != nil {
		return nil, err
	}
	if err := os.MkdirAll(filepath.Dir(resolved), 0o755); err != nil {
		return nil, NewToolError(t.Name(), err.Error(), CodeExecution)
	}
	f, err := os.OpenFile(resolved, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, NewToolError(t.Name(), err.Error(), CodeExecution)
	}
	defer f.Close()
	if _, err := f.WriteString(content); err != nil {
		return nil, NewToolError(t.Name(), err.Error(), CodeExecution)
	}
	return fmt.Sprintf("appended %d bytes to %s", len(content), path), nil
}

// EditFileTool replaces an exact substring in a file.
type EditFileTool struct{ root fsRoot }

// NewEditFileTool constructs an edit_file tool rooted at workspace.
func NewEditFileTool(workspace string, restrict bool) *EditFileTool {
	return &EditFileTool{root: fsRoot{workspace: workspace, restrict: restrict}}
}

// Name implements Tool.
func (t *EditFileTool) Name() string { return "edit_file" }

// Description implements Tool.
func (t *EditFileTool) Description() string {
	return "Replace the first occurrence of old_text with new_text in a file. old_text must match exactly."
}

// Parameters implements Tool.
func (t *EditFileTool) Parameters() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"path":     map[string]any{"type": "string", "description": "Path of the file to edit"},
			"old_text": map[string]any{"type": "string", "description": "Exact text to replace"},
			"new_text": map[string]any{"type": "string", "description": "Replacement text"},
		},
		"required": []string{"path", "old_text", "new_text"},
	}
}

// Call implements Tool.
func (t *EditFileTool) Call(_ context.Context, _ *Context, args map[string]any) (any, error) {
	path, err := stringArg(t.Name(), args, "path")
	if err != nil {
		return nil, err
	}
	oldText, err := stringArg(t.Name(), args, "old_text")
	if err != nil {
		return nil, err
	}
	newText, err := stringArg(t.Name(), args, "new_text")
	if err != nil {
		return nil, err
	}
	resolved, err := t.root.resolve(t.Name(), path)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(resolved)
	if err != nil {
		return nil, NewToolError(t.Name(), err.Error(), CodeExecution)
	}
	content := string(data)
	if !strings.Contains(content, oldText) {
		return nil, NewToolError(t.Name(), "old_text not found in file", CodeExecution)
	}
	content = strings.Replace(content, oldText, newText, 1)
	if err := os.WriteFile(resolved, []byte(content), 0o644); err != nil {
		return nil, NewToolError(t.Name(), err.Error(), CodeExecution)
	}
	return fmt.Sprintf("edited %s", path), nil
}

// ListDirTool lists directory entries in the workspace.
type ListDirTool struct{ root fsRoot }

// NewListDirTool constructs a list_dir tool rooted at workspace.
func NewListDirTool(workspace string, restrict bool) *ListDirTool {
	return &ListDirTool{root: fsRoot{workspace: workspace, restrict: restrict}}
}

// Name implements Tool.
func (t *ListDirTool) Name() string { return "list_dir" }

// Description implements Tool.
func (t *ListDirTool) Description() string { return "List the entries of a directory." }

// Parameters implements Tool.
func (t *ListDirTool) Parameters() map[string]any {
	return pathSchema("Path of the directory to list, absolute or relative to the workspace")
}

// Call implements Tool.
func (t *ListDirTool) Call(_ context.Context, _ *Context, args map[string]any) (any, error) {
	path, err := stringArg(t.Name(), args, "path")
	if err != nil {
		return nil, err
	}
	resolved, err := t.root.resolve(t.Name(), path)
	if err != nil {
		return nil, err
	}
	entries, err := os.ReadDir(resolved)
	if err != nil {
		return nil, NewToolError(t.Name(), err.Error(), CodeExecution)
	}
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() {
			name += "/"
		}
		names = append(names, name)
	}
	sort.Strings(names)
	if len(names) == 0 {
		return "(empty directory)", nil
	}
	return strings.Join(names, "\n"), nil
}
