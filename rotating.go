package modlog

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// RotationPolicy configures one RotatingFileSink: where the active file
// lives, when it rolls over and how many rotated files to keep.
type RotationPolicy struct {
	Directory string `validate:"required"`
	BaseName  string `validate:"required"`
	// Suffix is the file extension including the dot; defaults to ".log".
	Suffix string
	// MaxBytes rotates the file once its size reaches this limit.
	// Zero disables size-based rotation.
	MaxBytes int64 `validate:"gte=0"`
	// DailyRollover rotates on the first write after a calendar-day
	// boundary has been crossed since the file was opened.
	DailyRollover bool
	// Retention keeps only this many rotated files, deleting the oldest.
	// Zero keeps all rotated files. The active file is never deleted.
	Retention int `validate:"gte=0"`
}

type sinkState int

const (
	stateClosed sinkState = iota
	stateOpen
	stateDegraded
)

// RotatingFileSink owns one destination file and rotates it by size and/or
// calendar day, renaming the full file to {base}_r{index}{suffix} with a
// monotonically increasing index and pruning the oldest rotated files
// beyond the retention count.
//
// All writes and rotations pass through one mutex, so lines appear in the
// file in arrival order and a write never targets a file mid-rotation.
// On any I/O failure the sink enters a degraded state: every subsequent
// write is still attempted, but only the first occurrence of a distinct
// error condition is reported through the diagnostics logger. A later
// successful write returns the sink to normal operation on its own.
type RotatingFileSink struct {
	mu     sync.Mutex
	policy RotationPolicy
	diag   zerolog.Logger

	file      *os.File
	size      int64
	openedDay int
	rollIdx   int
	state     sinkState
	closed    bool
	lastCond  string

	now func() time.Time // test seam
}

// NewRotatingFileSink validates the policy, makes sure the directory
// exists and determines the next rotation index from files already on
// disk. The base file itself is opened lazily on the first write.
func NewRotatingFileSink(policy RotationPolicy, diag zerolog.Logger) (*RotatingFileSink, error) {
	if err := validatePolicy(&policy); err != nil {
		return nil, err
	}
	if policy.Suffix == emptyString {
		policy.Suffix = defaultSuffix
	}
	if err := os.MkdirAll(policy.Directory, 0o755); err != nil {
		return nil, fmt.Errorf("creating log directory %s: %w", policy.Directory, err)
	}

	s := &RotatingFileSink{
		policy: policy,
		diag:   diag,
		state:  stateClosed,
		now:    time.Now,
	}
	s.rollIdx = s.highestRotatedIndex()
	return s, nil
}

// Write appends one newline-terminated line to the active file. A day
// boundary rotates before the write so the line lands in the new file; the
// size limit rotates after, once the line that reached it is durable.
// Errors are reported to the caller and to the (rate-limited) diagnostics
// channel, but the sink stays usable: the next write tries again.
func (s *RotatingFileSink) Write(line string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return os.ErrClosed
	}

	now := s.now()
	if err := s.ensureOpen(now); err != nil {
		s.degrade("open", err)
		return err
	}
	if s.policy.DailyRollover && dayIndex(now) != s.openedDay {
		if err := s.rotate(now); err != nil {
			s.degrade("rotate", err)
			return err
		}
	}

	n, err := s.file.WriteString(line + "\n")
	if err != nil {
		s.degrade("write", err)
		return err
	}
	s.size += int64(n)
	s.heal()

	// Size-based rotation runs once the line that reached the limit has
	// been persisted, so a full file is rotated even if no further record
	// ever arrives. The line is already durable; a rotation failure here
	// only degrades the sink.
	if s.policy.MaxBytes > 0 && s.size >= s.policy.MaxBytes {
		if err := s.rotate(now); err != nil {
			s.degrade("rotate", err)
		}
	}
	return nil
}

// Close flushes and closes the active file. Idempotent; writes after Close
// fail with os.ErrClosed.
func (s *RotatingFileSink) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil
	}
	s.closed = true
	s.state = stateClosed

	if s.file == nil {
		return nil
	}
	syncErr := s.file.Sync()
	closeErr := s.file.Close()
	s.file = nil
	if closeErr != nil {
		return closeErr
	}
	return syncErr
}

// Path returns the canonical base file this sink writes to.
func (s *RotatingFileSink) Path() string {
	return filepath.Join(s.policy.Directory, s.policy.BaseName+s.policy.Suffix)
}

// Degraded reports whether the sink is currently in its fault mode.
func (s *RotatingFileSink) Degraded() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state == stateDegraded
}

// UpdatePolicy adjusts the rotation limits of a live sink. Only the
// thresholds change; directory, base name and suffix are fixed at
// construction. Used when a specfile reload carries rotation overrides.
func (s *RotatingFileSink) UpdatePolicy(maxBytes int64, dailyRollover bool, retention int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if maxBytes >= 0 {
		s.policy.MaxBytes = maxBytes
	}
	s.policy.DailyRollover = dailyRollover
	if retention >= 0 {
		s.policy.Retention = retention
	}
}

func (s *RotatingFileSink) ensureOpen(now time.Time) error {
	if s.file != nil {
		return nil
	}
	f, err := os.OpenFile(s.Path(), os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return err
	}
	info, err := f.Stat()
	if err != nil {
		f.Close()
		return err
	}
	s.file = f
	s.size = info.Size()
	s.openedDay = dayIndex(now)
	if s.state == stateClosed {
		s.state = stateOpen
	}
	return nil
}

// rotate closes the active file, renames it to the next indexed name,
// opens a fresh base file and prunes rotated files beyond retention.
// Runs under the sink mutex; no write can land mid-sequence.
func (s *RotatingFileSink) rotate(now time.Time) error {
	if err := s.file.Close(); err != nil {
		s.file = nil
		return err
	}
	s.file = nil

	s.rollIdx++
	if err := os.Rename(s.Path(), s.rotatedPath(s.rollIdx)); err != nil {
		s.rollIdx--
		return err
	}

	if err := s.ensureOpen(now); err != nil {
		return err
	}
	s.size = 0
	s.openedDay = dayIndex(now)

	s.pruneRotated()
	return nil
}

// pruneRotated deletes the oldest rotated files beyond the retention
// count. The active base file never matches the rotated pattern, so it can
// never be deleted here. Deletion failures are reported but do not fail
// the rotation that triggered the cleanup.
func (s *RotatingFileSink) pruneRotated() {
	if s.policy.Retention <= 0 {
		return
	}
	indices := s.rotatedIndices()
	if len(indices) <= s.policy.Retention {
		return
	}
	sort.Ints(indices)
	for _, idx := range indices[:len(indices)-s.policy.Retention] {
		if err := os.Remove(s.rotatedPath(idx)); err != nil {
			s.diag.Warn().Err(err).Str("file", s.rotatedPath(idx)).Msg("retention cleanup failed")
		}
	}
}

func (s *RotatingFileSink) rotatedPath(idx int) string {
	name := fmt.Sprintf("%s%s%05d%s", s.policy.BaseName, rotatedSeparator, idx, s.policy.Suffix)
	return filepath.Join(s.policy.Directory, name)
}

// rotatedIndices enumerates rotated files matching {base}_r*{suffix} and
// returns their parsed indices. Files whose index part does not parse are
// ignored rather than deleted.
func (s *RotatingFileSink) rotatedIndices() []int {
	pattern := filepath.Join(s.policy.Directory, s.policy.BaseName+rotatedSeparator+"*"+s.policy.Suffix)
	matches, err := filepath.Glob(pattern)
	if err != nil {
		return nil
	}
	var indices []int
	prefix := s.policy.BaseName + rotatedSeparator
	for _, m := range matches {
		name := filepath.Base(m)
		core := strings.TrimSuffix(strings.TrimPrefix(name, prefix), s.policy.Suffix)
		idx, err := strconv.Atoi(core)
		if err != nil {
			continue
		}
		indices = append(indices, idx)
	}
	return indices
}

func (s *RotatingFileSink) highestRotatedIndex() int {
	max := 0
	for _, idx := range s.rotatedIndices() {
		if idx > max {
			max = idx
		}
	}
	return max
}

// degrade records an I/O failure. The first occurrence of a distinct
// condition is emitted to diagnostics; repeats are suppressed until a
// write succeeds again.
func (s *RotatingFileSink) degrade(op string, err error) {
	s.state = stateDegraded
	cond := op + ": " + err.Error()
	if cond == s.lastCond {
		return
	}
	s.lastCond = cond
	s.diag.Error().Err(err).Str("op", op).Str("file", s.Path()).Msg("log sink degraded; dropping records until it recovers")
}

// heal returns a degraded sink to normal operation after a successful
// write and re-arms diagnostic reporting.
func (s *RotatingFileSink) heal() {
	if s.state != stateDegraded {
		return
	}
	s.state = stateOpen
	s.lastCond = emptyString
	s.diag.Info().Str("file", s.Path()).Msg("log sink recovered")
}
