package modlog

import (
	"fmt"
	"time"
)

// Record is one emitted log entry as handed over by the facade/integration
// layer: a timestamp, a severity, the originating module path, the already
// rendered message and an optional source location. Records are values,
// created per call and consumed synchronously by the engine.
type Record struct {
	Time    time.Time
	Level   Level
	Module  string
	Message string
	File    string
	Line    int
}

// Formatter renders an accepted record into a single line, without the
// trailing newline. The sink appends exactly one newline per line.
type Formatter func(r Record) (string, error)

// DefaultFormat produces lines like
//
//	INFO [server.db] connection pool ready
func DefaultFormat(r Record) (string, error) {
	return fmt.Sprintf("%s [%s] %s", r.Level.Upper(), r.Module, r.Message), nil
}

// DetailedFormat produces lines like
//
//	[2026-08-30 12:11:07.184321] INFO [server.db] pool.go:40: connection pool ready
//
// The source location is omitted when the record does not carry one.
func DetailedFormat(r Record) (string, error) {
	ts := r.Time.Format("2006-01-02 15:04:05.000000")
	if r.File == emptyString {
		return fmt.Sprintf("[%s] %s [%s] %s", ts, r.Level.Upper(), r.Module, r.Message), nil
	}
	return fmt.Sprintf("[%s] %s [%s] %s:%d: %s", ts, r.Level.Upper(), r.Module, r.File, r.Line, r.Message), nil
}
