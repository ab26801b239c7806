package modlog

import "fmt"

// ConfigError reports malformed directive text or specfile content.
// Construction of the offending specification is rejected wholesale; a
// previously active snapshot stays in force.
type ConfigError struct {
	Token  string
	Reason string
}

func (e *ConfigError) Error() string {
	if e.Token == emptyString {
		return "invalid log specification: " + e.Reason
	}
	return fmt.Sprintf("invalid log specification: %s (token %q)", e.Reason, e.Token)
}

// WatchError reports a failure to observe the specfile. The watcher retries
// with bounded backoff and never terminates its loop on one of these.
type WatchError struct {
	Path string
	Err  error
}

func (e *WatchError) Error() string {
	return fmt.Sprintf("specfile watch on %s: %v", e.Path, e.Err)
}

func (e *WatchError) Unwrap() error { return e.Err }

// FormatError reports that a single record failed to render. The record is
// dropped and a one-line diagnostic is written in its place.
type FormatError struct {
	Err error
}

func (e *FormatError) Error() string {
	return fmt.Sprintf("record rendering failed: %v", e.Err)
}

func (e *FormatError) Unwrap() error { return e.Err }
