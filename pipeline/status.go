package pipeline

import (
	"fmt"
	"regexp"
	"strings"
	"time"
)

// Status is the lifecycle state of a stage. A stage holds exactly one status.
type Status int

const (
	Idle Status = iota
	Running
	Complete
)

func (s Status) String() string {
	switch s {
	case Idle:
		return "idle"
	case Running:
		return "running"
	case Complete:
		return "complete"
	default:
		return "unknown"
	}
}

// MarshalText implements encoding.TextMarshaler.
func (s Status) MarshalText() ([]byte, error) { return []byte(s.String()), nil }

// ParseStatus parses "idle", "running" or "complete".
func ParseStatus(name string) (Status, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "idle":
		return Idle, nil
	case "running":
		return Running, nil
	case "complete", "completed":
		return Complete, nil
	default:
		return 0, fmt.Errorf("unknown status %q", name)
	}
}

// Level is the severity of a solver log line.
type Level string

const (
	LevelInfo  Level = "INFO"
	LevelWarn  Level = "WARN"
	LevelError Level = "ERROR"
)

// LogEntry is one line streamed by a solver run. Entries are immutable once
// appended to a stage's buffer.
type LogEntry struct {
	ID      string    `json:"id" yaml:"id"`
	Time    time.Time `json:"time" yaml:"time"`
	Level   Level     `json:"level" yaml:"level"`
	Message string    `json:"message" yaml:"message"`
}

var levelTag = regexp.MustCompile(`\[(INFO|WARN|ERROR)\]\s*`)

// ParseMessage derives the level of a script line from its embedded tag and
// returns the line with the first tag removed. A line containing "[WARN]" is WARN,
// otherwise one containing "[ERROR]" is ERROR, otherwise INFO.
func ParseMessage(raw string) (Level, string) {
	level := LevelInfo
	switch {
	case strings.Contains(raw, "[WARN]"):
		level = LevelWarn
	case strings.Contains(raw, "[ERROR]"):
		level = LevelError
	}
	loc := levelTag.FindStringIndex(raw)
	if loc == nil {
		return level, raw
	}
	return level, raw[:loc[0]] + raw[loc[1]:]
}
