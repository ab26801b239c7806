package modlog

// Sink is a destination for formatted log lines. Write receives one line
// without its trailing newline and persists it as exactly one
// newline-terminated line; implementations serialize their own writes and
// recover from their own I/O failures. Close flushes and releases the
// destination and is safe to call more than once.
type Sink interface {
	Write(line string) error
	Close() error
}
