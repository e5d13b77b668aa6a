package ports

import "io"

// FileSystem abstracts file system operations.
type FileSystem interface {
	// ReadFile reads the entire contents of a file.
	ReadFile(path string) ([]byte, error)

	// Open opens a file for random access. Media containers are read this way
	// so sample data is not held in memory.
	Open(path string) (io.ReadSeekCloser, error)

	// WriteFile writes data to a file, creating it and its parent
	// directories if necessary. Frames and summaries are written this way.
	WriteFile(path string, data []byte) error

	// MkdirAll creates a directory and all parent directories.
	MkdirAll(path string) error

	// Exists checks if a file or directory exists.
	Exists(path string) (bool, error)
}
