package utils

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFormatSize(t *testing.T) {
	assert.Equal(t, "512 B", FormatSize(512))
	assert.Equal(t, "1.00 KB", FormatSize(1024))
	assert.Equal(t, "1.00 MB", FormatSize(1024*1024))
	assert.Equal(t, "1.00 GB", FormatSize(1024*1024*1024))
}

func TestFormatSpeed(t *testing.T) {
	assert.Equal(t, "500 B/s", FormatSpeed(500))
	assert.Equal(t, "1.00 KB/s", FormatSpeed(1024))
	assert.Equal(t, "1.00 MB/s", FormatSpeed(1024*1024))
}

func TestTruncateString(t *testing.T) {
	assert.Equal(t, "short", TruncateString("short", 10))
	assert.Equal(t, "exactlyten", TruncateString("exactlyten", 10))
	assert.Equal(t, "abcdefg...", TruncateString("abcdefghijklmnop", 10))
	assert.Equal(t, "ab", TruncateString("abcdef", 2))
}

func TestGetUniqueFilenameAvoidsCollision(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "file.txt")
	require.NoError(t, os.WriteFile(path, []byte("x"), 0644))

	unique := GetUniqueFilename(path)
	assert.Equal(t, filepath.Join(dir, "file (1).txt"), unique)
}

func TestGetUniqueFilenameReturnsOriginalWhenFree(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "fresh.txt")
	assert.Equal(t, path, GetUniqueFilename(path))
}
