package ports

import "os"

// FileSystemPort is the subset of file system operations the store needs
// beyond plain reads and appends on an open segment.
type FileSystemPort interface {
	// CreateDir creates the directory and any missing parents.
	CreateDir(dirPath string, permission os.FileMode) error

	// ReadDir returns the paths matching a glob pattern, sorted lexically.
	ReadDir(pattern string) ([]string, error)

	// DeleteFile removes a file. A missing file is not an error.
	DeleteFile(filePath string) error

	// Exists reports whether the path exists.
	Exists(filePath string) (bool, error)

	// WriteFileAtomic replaces filePath with contents so that readers observe
	// either the old or the new contents, and the result survives a crash.
	WriteFileAtomic(filePath string, contents []byte, permission os.FileMode) error

	// ReadFile returns the contents of a file.
	ReadFile(filePath string) ([]byte, error)
}
