// Package summarizer provides summary generation for decode runs.
package summarizer

import (
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// Formatter renders a Summary.
type Formatter interface {
	Format(summary *Summary) string
}

// FormatFunc adapts a function to Formatter.
type FormatFunc func(summary *Summary) string

// Format implements the Formatter interface.
func (f FormatFunc) Format(summary *Summary) string {
	return f(summary)
}

// YAMLFormatter renders a Summary as YAML for scripts comparing runs.
type YAMLFormatter struct{}

// Format implements the Formatter interface. Labels are never translated.
func (YAMLFormatter) Format(s *Summary) string {
	out, err := yaml.Marshal(s)
	if err != nil {
		// Summary holds only plain values.
		return ""
	}
	return string(out)
}

// ForPath picks YAML for .yaml and .yml paths and markdown otherwise.
func ForPath(path string, markdown Formatter) Formatter {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return YAMLFormatter{}
	default:
		return markdown
	}
}
