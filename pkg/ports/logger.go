// Package ports defines the interfaces between the decoder core and the
// platform, graphics and infrastructure adapters.
package ports

import "strings"

// LogLevel represents the severity level of a log message.
type LogLevel int

const (
	// LevelDebug covers per-buffer detail from the session and the codec
	// backends (informational codes, pipeline state).
	LevelDebug LogLevel = iota
	// LevelInfo covers run progress from the orchestrator and the pump.
	LevelInfo
	// LevelWarn covers skipped units, missing frames and teardown failures.
	LevelWarn
	// LevelError covers failures that end a run.
	LevelError
	// LevelQuiet suppresses all log output.
	LevelQuiet
)

var levelNames = [...]string{"debug", "info", "warn", "error", "quiet"}

// String returns the string representation of the log level.
func (l LogLevel) String() string {
	if l < 0 || int(l) >= len(levelNames) {
		return "unknown"
	}
	return levelNames[l]
}

// LookupLogLevel parses a level name, ignoring case. "warning" is accepted
// for warn.
func LookupLogLevel(s string) (LogLevel, bool) {
	s = strings.ToLower(strings.TrimSpace(s))
	if s == "warning" {
		return LevelWarn, true
	}
	for i, name := range levelNames {
		if s == name {
			return LogLevel(i), true
		}
	}
	return LevelInfo, false
}

// ParseLogLevel parses a level name, falling back to info.
func ParseLogLevel(s string) LogLevel {
	l, _ := LookupLogLevel(s)
	return l
}

// Logger abstracts logging. Messages are l10n keys; adapters translate them
// and apply args.
type Logger interface {
	Debug(msg string, args ...interface{})
	Info(msg string, args ...interface{})
	Warn(msg string, args ...interface{})
	Error(msg string, args ...interface{})

	// WithComponent returns a Logger that prefixes messages with the
	// component name. Nested components are joined with a dot.
	WithComponent(component string) Logger
}
