package transfer

import (
	"io"
	"mime"
	"os"
	"path/filepath"

	"github.com/google/uuid"

	"github.com/beamdrop/beamdrop/internal/files"
)

// queuedFile is one outbound entry: its declared metadata plus a handle
// to its byte source. Sources are opened lazily, one at a time, so
// queuing a large directory tree never holds more than one file open.
type queuedFile struct {
	info FileInfo
	open func() (io.ReadCloser, error)
}

// BuildQueue assigns a fresh UUID and totalChunks to each selected file,
// expanding any directory into one queued entry per regular file beneath
// it with FileInfo.Path set to the slash-joined path relative to the
// directory root.
func BuildQueue(selected []files.FileInfo) ([]queuedFile, error) {
	var queue []queuedFile

	for _, f := range selected {
		stat, err := os.Stat(f.Path)
		if err != nil {
			return nil, NewFileError("stat", f.Path, err)
		}

		if !stat.IsDir() {
			queue = append(queue, newQueuedFile(f.Path, f.Name, "", f.Size, f.Type))
			continue
		}

		root := f.Path
		walkErr := filepath.Walk(root, func(path string, info os.FileInfo, err error) error {
			if err != nil {
				return err
			}
			if info.IsDir() {
				return nil
			}
			rel, err := filepath.Rel(root, path)
			if err != nil {
				return err
			}
			rel = filepath.ToSlash(rel)
			queue = append(queue, newQueuedFile(path, info.Name(), rel, info.Size(), mimeOrDefault(path)))
			return nil
		})
		if walkErr != nil {
			return nil, NewFileError("walk directory", f.Path, walkErr)
		}
	}

	return queue, nil
}

// QueueFileInfos extracts each entry's declared metadata, in queue order,
// for callers (the CLI progress UI) that need file IDs/names/sizes up
// front without reaching into the unexported queue element type.
func QueueFileInfos(queue []queuedFile) []FileInfo {
	infos := make([]FileInfo, len(queue))
	for i, qf := range queue {
		infos[i] = qf.info
	}
	return infos
}

func newQueuedFile(path, name, relPath string, size int64, mimeType string) queuedFile {
	totalChunks := int((size + ChunkSize - 1) / ChunkSize)
	return queuedFile{
		info: FileInfo{
			ID:          uuid.NewString(),
			Name:        name,
			Size:        size,
			Type:        mimeType,
			TotalChunks: totalChunks,
			Path:        relPath,
		},
		open: func() (io.ReadCloser, error) {
			return os.Open(path)
		},
	}
}

func mimeOrDefault(path string) string {
	if t := mime.TypeByExtension(filepath.Ext(path)); t != "" {
		return t
	}
	return "application/octet-stream"
}
