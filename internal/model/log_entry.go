// internal/model/log_entry.go
package model

import "time"

type Level string

const (
	LevelInfo    Level = "info"
	LevelSuccess Level = "success"
	LevelWarning Level = "warning"
	LevelError   Level = "error"
)

// Icon is the glyph shown next to log lines of this level.
func (l Level) Icon() string {
	switch l {
	case LevelError:
		return "❌"
	case LevelSuccess:
		return "✅"
	case LevelWarning:
		return "⚠️"
	default:
		return "🔵"
	}
}

type LogEntry struct {
	Timestamp time.Time `json:"timestamp"`
	Level     Level     `json:"level"`
	Icon      string    `json:"icon"`
	Message   string    `json:"message"`
}

func NewLogEntry(at time.Time, level Level, message string) LogEntry {
	return LogEntry{Timestamp: at, Level: level, Icon: level.Icon(), Message: message}
}

// NewestFirst returns a reversed copy of entries for display.
func NewestFirst(entries []LogEntry) []LogEntry {
	out := make([]LogEntry, len(entries))
	for i, e := range entries {
		out[len(entries)-1-i] = e
	}
	return out
}
