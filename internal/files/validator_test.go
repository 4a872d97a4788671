package files

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidateFilesAcceptsReadableFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "note.txt")
	require.NoError(t, os.WriteFile(path, []byte("hi"), 0644))

	infos, err := ValidateFiles([]string{path})
	require.NoError(t, err)
	require.Len(t, infos, 1)
	assert.Equal(t, "note.txt", infos[0].Name)
	assert.True(t, infos[0].IsReadable)
}

func TestValidateFilesRejectsMissingFile(t *testing.T) {
	_, err := ValidateFiles([]string{"/no/such/path.txt"})
	assert.Error(t, err)
}

func TestValidateFilesAcceptsEmptyFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "empty.txt")
	require.NoError(t, os.WriteFile(path, nil, 0644))

	infos, err := ValidateFiles([]string{path})
	require.NoError(t, err)
	require.Len(t, infos, 1)
	assert.Equal(t, int64(0), infos[0].Size)
}

func TestValidateFilesRejectsEmptyInput(t *testing.T) {
	_, err := ValidateFiles(nil)
	assert.Error(t, err)
}

func TestGetTotalSize(t *testing.T) {
	infos := []FileInfo{{Size: 10}, {Size: 20}, {Size: 5}}
	assert.Equal(t, int64(35), GetTotalSize(infos))
}
