package summarizer

import (
	"fmt"
	"path/filepath"

	"github.com/user/texdecode/pkg/ports"
)

// Writer writes formatted summaries through a FileSystem.
type Writer struct {
	formatter Formatter
	fs        ports.FileSystem
}

// NewWriter creates a new Writer with the given Formatter.
func NewWriter(formatter Formatter, fs ports.FileSystem) *Writer {
	return &Writer{
		formatter: formatter,
		fs:        fs,
	}
}

// Write renders summary and stores it at path, creating the parent directory.
func (w *Writer) Write(path string, summary *Summary) error {
	if dir := filepath.Dir(path); dir != "." {
		if err := w.fs.MkdirAll(dir); err != nil {
			return fmt.Errorf("summarizer: create %s: %w", dir, err)
		}
	}

	content := w.formatter.Format(summary)
	if content == "" {
		return fmt.Errorf("summarizer: empty summary for %s", path)
	}
	if err := w.fs.WriteFile(path, []byte(content)); err != nil {
		return fmt.Errorf("summarizer: write %s: %w", path, err)
	}
	return nil
}
