package transfer

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/beamdrop/beamdrop/internal/files"
)

func TestBuildQueueSingleFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "note.txt")
	require.NoError(t, os.WriteFile(path, []byte("hello"), 0644))

	queue, err := BuildQueue([]files.FileInfo{{Path: path, Name: "note.txt", Size: 5, Type: "text/plain"}})
	require.NoError(t, err)
	require.Len(t, queue, 1)

	infos := QueueFileInfos(queue)
	assert.Equal(t, "note.txt", infos[0].Name)
	assert.Equal(t, int64(5), infos[0].Size)
	assert.Empty(t, infos[0].Path)
	assert.NotEmpty(t, infos[0].ID)
}

func TestBuildQueueExpandsDirectory(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "nested"), 0755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "a.txt"), []byte("a"), 0644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "nested", "b.txt"), []byte("bb"), 0644))

	queue, err := BuildQueue([]files.FileInfo{{Path: dir, Name: filepath.Base(dir), Size: 0}})
	require.NoError(t, err)

	infos := QueueFileInfos(queue)
	require.Len(t, infos, 2)

	byName := make(map[string]FileInfo)
	for _, info := range infos {
		byName[info.Name] = info
	}

	assert.Equal(t, "nested/b.txt", byName["b.txt"].Path)
	assert.Equal(t, "a.txt", byName["a.txt"].Path)
}

func TestBuildQueueAssignsUniqueIDs(t *testing.T) {
	dir := t.TempDir()
	p1 := filepath.Join(dir, "one.txt")
	p2 := filepath.Join(dir, "two.txt")
	require.NoError(t, os.WriteFile(p1, []byte("1"), 0644))
	require.NoError(t, os.WriteFile(p2, []byte("2"), 0644))

	queue, err := BuildQueue([]files.FileInfo{
		{Path: p1, Name: "one.txt", Size: 1},
		{Path: p2, Name: "two.txt", Size: 1},
	})
	require.NoError(t, err)

	infos := QueueFileInfos(queue)
	require.Len(t, infos, 2)
	assert.NotEqual(t, infos[0].ID, infos[1].ID)
}
