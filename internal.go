package modlog

import (
	"io"
	"sync"

	"gopkg.in/natefinch/lumberjack.v2"
)

// WriterSink adapts any io.Writer into a Sink. Writes are serialized with a
// mutex so lines from concurrent callers never interleave. If the sink was
// built over a writer it owns (see NewRollingSink), Close closes it;
// otherwise Close is a no-op, so wrapping os.Stderr is safe.
type WriterSink struct {
	mu     sync.Mutex
	w      io.Writer
	closer io.Closer
	closed bool
}

// NewWriterSink wraps a caller-owned writer. The sink never closes it.
func NewWriterSink(w io.Writer) *WriterSink {
	return &WriterSink{w: w}
}

// NewRollingSink returns a WriterSink backed by a lumberjack rolling file,
// suitable as the independent destination of a duplication sink. Rotation
// and retention of this file are handled entirely by lumberjack and are
// fully decoupled from any RotatingFileSink.
func NewRollingSink(path string, maxSizeMB, maxBackups, maxAgeDays int) *WriterSink {
	lj := &lumberjack.Logger{
		Filename:   path,
		MaxSize:    maxSizeMB,
		MaxBackups: maxBackups,
		MaxAge:     maxAgeDays,
	}
	return &WriterSink{w: lj, closer: lj}
}

func (s *WriterSink) Write(line string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	_, err := io.WriteString(s.w, line+"\n")
	return err
}

func (s *WriterSink) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	if s.closer != nil {
		return s.closer.Close()
	}
	return nil
}
