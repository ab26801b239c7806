package modlog

import (
	"errors"
	"fmt"
	"io"
	"os"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"go.uber.org/atomic"
)

// DuplicateConfig describes the independent secondary destination that
// mirrors records at or above a duplication threshold. Exactly one of
// Writer or Path should be set: Writer wraps a caller-owned stream (e.g.
// os.Stderr), Path opens a rolling file of its own whose rotation is
// entirely decoupled from the primary sink.
//
// Threshold sets the startup duplication level; LevelOff disables
// mirroring. A specfile that carries a duplicate entry replaces it at
// runtime; one that omits the entry at startup leaves it in force.
type DuplicateConfig struct {
	Writer     io.Writer
	Path       string
	Threshold  Level
	MaxSizeMB  int
	MaxBackups int
	MaxAgeDays int
}

// Config configures a Service.
type Config struct {
	// BaseSpec is the startup filtering policy in directive text form,
	// e.g. "info,server.db=debug". An unparsable BaseSpec fails
	// Initialize before any record can be processed.
	BaseSpec string
	// SpecFile, when set, is watched for operator edits and hot-reloaded.
	// If the file does not exist at startup it is seeded from BaseSpec.
	SpecFile string
	// Rotation configures the primary sink.
	Rotation RotationPolicy `validate:"required"`
	// Duplicate, when set, configures the duplication sink.
	Duplicate *DuplicateConfig
	// Format renders accepted records; defaults to DefaultFormat.
	Format Formatter
	// Diagnostics receives the backend's own structured diagnostics
	// (degraded sinks, rejected specfiles, watch errors); defaults to
	// os.Stderr.
	Diagnostics io.Writer
	// WatchDebounce coalesces specfile event bursts; defaults to 100ms.
	WatchDebounce time.Duration
}

// Service is the explicit, once-initialized process-scoped handle tying
// the registry, engine, sinks and watcher together. Construct it with a
// Config, call Initialize before logging and Close on shutdown; both are
// idempotent and Close drains in-flight writes.
type Service struct {
	Config Config

	diag      zerolog.Logger
	registry  *Registry
	engine    *Engine
	primary   *RotatingFileSink
	duplicate Sink
	watcher   *SpecWatcher

	isInitialized atomic.Bool
	mu            sync.RWMutex
}

// NewService returns an uninitialized service for the given configuration.
func NewService(cfg Config) *Service {
	return &Service{Config: cfg}
}

// Initialize builds the sink set, seeds the registry from BaseSpec (and
// the specfile, if one exists) and starts the watcher. Contract violations
// in the supplied configuration fail fast here; everything after
// initialization degrades gracefully instead of failing.
func (s *Service) Initialize() error {
	if s == nil {
		return errors.New(errMsgNilService)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.isInitialized.Load() {
		return nil
	}

	if err := validateStruct(&s.Config); err != nil {
		return fmt.Errorf("%s: %w", errMsgConfigInvalid, err)
	}

	baseSpec, err := ParseSpec(s.Config.BaseSpec)
	if err != nil {
		return err
	}
	if dup := s.Config.Duplicate; dup != nil {
		if !dup.Threshold.valid() {
			return &ConfigError{Reason: "duplication threshold out of range"}
		}
		// Directive text cannot express duplication; the configured
		// threshold rides on the startup specification.
		baseSpec = baseSpec.withDuplicate(dup.Threshold)
	}

	diagOut := s.Config.Diagnostics
	if diagOut == nil {
		diagOut = os.Stderr
	}
	s.diag = zerolog.New(diagOut).With().Timestamp().Str("component", "modlog").Logger()

	s.primary, err = NewRotatingFileSink(s.Config.Rotation, s.diag)
	if err != nil {
		return err
	}

	if dup := s.Config.Duplicate; dup != nil {
		switch {
		case dup.Writer != nil:
			s.duplicate = NewWriterSink(dup.Writer)
		case dup.Path != emptyString:
			s.duplicate = NewRollingSink(dup.Path, dup.MaxSizeMB, dup.MaxBackups, dup.MaxAgeDays)
		default:
			s.closeSinksLocked()
			return &ConfigError{Reason: "duplicate sink needs a Writer or a Path"}
		}
	}

	s.registry = NewRegistry(baseSpec)

	if s.Config.SpecFile != emptyString {
		if err := s.adoptSpecFile(baseSpec); err != nil {
			s.closeSinksLocked()
			return err
		}
	}

	s.engine, err = NewEngine(EngineConfig{
		Registry:  s.registry,
		Primary:   s.primary,
		Duplicate: s.duplicate,
		Format:    s.Config.Format,
	}, s.diag)
	if err != nil {
		s.closeSinksLocked()
		return err
	}

	if s.watcher != nil {
		s.watcher.Start()
	}
	s.isInitialized.Store(true)
	return nil
}

// adoptSpecFile wires the hot-reload path: a missing specfile is seeded
// from the base specification so the operator has a template to edit; an
// existing one is loaded and published over the base. A corrupt existing
// file is reported and ignored, leaving the base specification in force;
// the watcher will pick up the operator's fix.
func (s *Service) adoptSpecFile(base *LogSpecification) error {
	path := s.Config.SpecFile

	if _, statErr := os.Stat(path); os.IsNotExist(statErr) {
		if saveErr := SpecFileFrom(base).Save(path); saveErr != nil {
			return fmt.Errorf("seeding specfile %s: %w", path, saveErr)
		}
		s.diag.Info().Str("specfile", path).Msg("specfile created from startup specification")
	} else if f, loadErr := LoadSpecFile(path); loadErr != nil {
		s.diag.Error().Err(loadErr).Str("specfile", path).Msg("specfile rejected at startup; using base specification")
	} else if spec, specErr := f.Specification(); specErr != nil {
		s.diag.Error().Err(specErr).Str("specfile", path).Msg("specfile rejected at startup; using base specification")
	} else {
		if f.Duplicate == emptyString {
			spec = spec.withDuplicate(base.DuplicateLevel())
		}
		s.registry.Replace(spec)
		s.applyRotation(f)
	}

	watcher, err := NewSpecWatcher(path, s.registry, func(f *SpecFile, _ *Snapshot) {
		s.applyRotation(f)
	}, s.Config.WatchDebounce, s.diag)
	if err != nil {
		return err
	}
	s.watcher = watcher
	return nil
}

// applyRotation forwards specfile rotation overrides to the primary sink.
func (s *Service) applyRotation(f *SpecFile) {
	if f.Rotation == nil {
		return
	}
	s.primary.UpdatePolicy(f.Rotation.MaxBytes, f.Rotation.Daily, f.Rotation.Retention)
}

// Submit feeds one record into the engine. Safe to call from any
// goroutine; records arriving after Close are discarded.
func (s *Service) Submit(r Record) {
	if s == nil || !s.isInitialized.Load() {
		return
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	if !s.isInitialized.Load() {
		return
	}
	s.engine.Log(r)
}

// Log is a convenience over Submit for callers without a facade.
func (s *Service) Log(level Level, module, msg string) {
	if s == nil || !s.isInitialized.Load() {
		return
	}
	s.Submit(Record{Time: time.Now(), Level: level, Module: module, Message: msg})
}

// Enabled lets integrations skip argument rendering for records the
// active specification would discard anyway.
func (s *Service) Enabled(module string, level Level) bool {
	if s == nil || !s.isInitialized.Load() {
		return false
	}
	return s.registry.Current().Spec().Enabled(module, level)
}

// UpdateSpec replaces the active specification programmatically. The same
// publish point serves specfile reloads, so whichever source replaced
// last wins.
func (s *Service) UpdateSpec(text string) error {
	if s == nil || !s.isInitialized.Load() {
		return errors.New(errMsgNilService)
	}
	spec, err := ParseSpec(text)
	if err != nil {
		return err
	}
	// Directive text cannot express a duplication threshold; carry the
	// active one forward so a programmatic update does not silently stop
	// mirroring.
	spec = spec.withDuplicate(s.registry.Current().Spec().DuplicateLevel())
	snap := s.registry.Replace(spec)
	s.diag.Info().Uint64("generation", snap.Generation()).Msg("log specification replaced programmatically")
	return nil
}

// Generation exposes the active snapshot's publish sequence number.
func (s *Service) Generation() uint64 {
	if s == nil || !s.isInitialized.Load() {
		return 0
	}
	return s.registry.Current().Generation()
}

// Close stops the watcher, drains in-flight writes and closes every sink.
// Safe to call multiple times and on a nil service.
func (s *Service) Close() error {
	if s == nil {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.isInitialized.Load() {
		return nil
	}
	// New submissions bounce here; the write lock above waited for
	// in-flight Submit calls to finish.
	s.isInitialized.Store(false)

	var errs []error
	if s.watcher != nil {
		if err := s.watcher.Stop(); err != nil {
			errs = append(errs, err)
		}
		s.watcher = nil
	}
	errs = append(errs, s.closeSinksLocked())
	return errors.Join(errs...)
}

func (s *Service) closeSinksLocked() error {
	var errs []error
	if s.primary != nil {
		if err := s.primary.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	if s.duplicate != nil {
		if err := s.duplicate.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
