package store

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/iamNilotpal/dataqueue/internal/core/ports"
)

// Loads the marker file. found is false when the file does not exist yet.
func loadMarker(fs ports.FileSystemPort, path string) (value uint64, found bool, err error) {
	exists, err := fs.Exists(path)
	if err != nil {
		return 0, false, err
	}
	if !exists {
		return 0, false, nil
	}

	data, err := fs.ReadFile(path)
	if err != nil {
		return 0, true, err
	}

	text := strings.TrimSpace(string(data))
	if text == "" {
		return 0, true, nil
	}

	value, err = strconv.ParseUint(text, 10, 64)
	if err != nil {
		return 0, true, fmt.Errorf("malformed marker file %s : %w", path, err)
	}
	return value, true, nil
}

// Replaces the marker file with value. The write is atomic and synced, so a
// crash leaves either the previous or the new value on disk.
func persistMarker(fs ports.FileSystemPort, path string, value uint64) error {
	return fs.WriteFileAtomic(path, []byte(strconv.FormatUint(value, 10)+"\n"), 0644)
}
