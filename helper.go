package modlog

import (
	"strings"
	"time"
)

// Level is the severity of a record or the threshold of a directive.
// Levels are ordered from most to least restrictive; LevelOff disables
// output entirely and is never carried by a record.
type Level int8

const (
	LevelOff Level = iota
	LevelError
	LevelWarn
	LevelInfo
	LevelDebug
	LevelTrace
)

var levelNames = [...]string{"off", "error", "warn", "info", "debug", "trace"}

// ParseLevel parses a case-insensitive level name.
// Returns a ConfigError if the name is not one of off, error, warn, info, debug, trace.
func ParseLevel(name string) (Level, error) {
	s := strings.ToLower(strings.TrimSpace(name))
	for i, n := range levelNames {
		if s == n {
			return Level(i), nil
		}
	}
	return LevelOff, &ConfigError{Token: name, Reason: "unknown level name"}
}

func (l Level) String() string {
	if l < LevelOff || int(l) >= len(levelNames) {
		return "off"
	}
	return levelNames[l]
}

// Upper returns the level name in uppercase, as used by the line formatters.
func (l Level) Upper() string {
	return strings.ToUpper(l.String())
}

func (l Level) valid() bool {
	return l >= LevelOff && int(l) < len(levelNames)
}

// dayIndex collapses a timestamp to a comparable calendar-day ordinal,
// used to detect day-boundary crossings for rotation.
func dayIndex(t time.Time) int {
	return t.Year()*1000 + t.YearDay()
}
