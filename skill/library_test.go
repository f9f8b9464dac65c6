package skill

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeSkill(t *testing.T, dir, name, content string) {
	t.Helper()
	require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644))
}

func TestLibraryLoadsDirectory(t *testing.T) {
	dir := t.TempDir()
	writeSkill(t, dir, "alpha.md", "---\nname: alpha\nalways: true\n---\nalpha body\n")
	writeSkill(t, dir, "beta.md", "---\nname: beta\ndescription: beta skill\n---\nbeta body\n")
	writeSkill(t, dir, "notes.txt", "not a skill")

	lib, err := NewLibrary(dir, nil)
	require.NoError(t, err)
	defer lib.Close()

	all := lib.All()
	require.Len(t, all, 2)
	assert.Equal(t, "alpha", all[0].Name)
	assert.Equal(t, "beta", all[1].Name)

	active := lib.Active()
	require.Len(t, active, 1)
	assert.Equal(t, "alpha", active[0].Name)

	summaries := lib.Summaries()
	require.Len(t, summaries, 2)
	assert.Equal(t, "beta: beta skill", summaries[1])
}

func TestLibraryMissingDirIsEmpty(t *testing.T) {
	lib, err := NewLibrary(filepath.Join(t.TempDir(), "nope"), nil)
	require.NoError(t, err)
	defer lib.Close()
	assert.Empty(t, lib.All())
}

func TestLibrarySkipsBrokenSkills(t *testing.T) {
	dir := t.TempDir()
	writeSkill(t, dir, "good.md", "---\nname: good\n---\nbody\n")
	writeSkill(t, dir, "bad.md", "---\nname: broken\nno closing")

	lib, err := NewLibrary(dir, nil)
	require.NoError(t, err)
	defer lib.Close()

	require.Len(t, lib.All(), 1)
	_, ok := lib.Get("good")
	assert.True(t, ok)
}

func TestLibraryHotReload(t *testing.T) {
	dir := t.TempDir()
	writeSkill(t, dir, "alpha.md", "---\nname: alpha\n---\nv1\n")

	lib, err := NewLibrary(dir, nil)
	require.NoError(t, err)
	defer lib.Close()
	require.NoError(t, lib.Watch())

	writeSkill(t, dir, "beta.md", "---\nname: beta\n---\nnew skill\n")

	// The watcher reload is asynchronous.
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if _, ok := lib.Get("beta"); ok {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatal("new skill was not hot-reloaded")
}
