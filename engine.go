package modlog

import (
	"fmt"

	"github.com/rs/zerolog"
	"go.uber.org/atomic"
)

// EngineConfig wires an Engine: the registry to consult, the primary sink,
// an optional duplication sink and the line formatter.
type EngineConfig struct {
	Registry  *Registry `validate:"required"`
	Primary   Sink      `validate:"required"`
	Duplicate Sink
	Format    Formatter
}

// Engine is the synchronous write path. For each record it reads the
// current snapshot, applies the specification's matching, formats accepted
// records and fans them out to the configured sinks. It runs no goroutines
// of its own; callers invoke Log concurrently at arbitrary rates.
type Engine struct {
	registry  *Registry
	primary   *sinkPort
	duplicate *sinkPort
	format    Formatter
}

// sinkPort pairs a sink with rate-limited failure reporting: one
// diagnostic per distinct error condition, re-armed by the next successful
// write. RotatingFileSink does its own reporting and is left alone here.
type sinkPort struct {
	sink     Sink
	diag     zerolog.Logger
	name     string
	reports  bool
	lastCond atomic.String
}

func newSinkPort(sink Sink, name string, diag zerolog.Logger) *sinkPort {
	_, selfReporting := sink.(*RotatingFileSink)
	return &sinkPort{sink: sink, diag: diag, name: name, reports: !selfReporting}
}

func (p *sinkPort) write(line string) {
	err := p.sink.Write(line)
	if !p.reports {
		return
	}
	if err == nil {
		if p.lastCond.Load() != emptyString {
			p.lastCond.Store(emptyString)
		}
		return
	}
	cond := err.Error()
	if p.lastCond.Swap(cond) != cond {
		p.diag.Warn().Err(err).Str("sink", p.name).Msg("sink write failed; suppressing repeats")
	}
}

// NewEngine validates the wiring and returns an engine. Format defaults to
// DefaultFormat.
func NewEngine(cfg EngineConfig, diag zerolog.Logger) (*Engine, error) {
	if err := validateStruct(&cfg); err != nil {
		return nil, fmt.Errorf("%s: %w", errMsgConfigInvalid, err)
	}
	format := cfg.Format
	if format == nil {
		format = DefaultFormat
	}
	e := &Engine{
		registry: cfg.Registry,
		primary:  newSinkPort(cfg.Primary, "primary", diag),
		format:   format,
	}
	if cfg.Duplicate != nil {
		e.duplicate = newSinkPort(cfg.Duplicate, "duplicate", diag)
	}
	return e, nil
}

// Log filters, formats and dispatches one record. Disabled records are
// discarded before any formatting work. Sinks are dispatched
// independently: a failure in one never prevents delivery to the other.
func (e *Engine) Log(r Record) {
	spec := e.registry.Current().Spec()
	if !spec.Enabled(r.Module, r.Level) {
		return
	}
	if !spec.MessageAllowed(r.Message) {
		return
	}

	line, err := e.format(r)
	if err != nil {
		// The record is dropped; one diagnostic line takes its place
		// so the gap is visible in the output itself.
		line = fmt.Sprintf("%s [%s] <record dropped: %v>", r.Level.Upper(), r.Module, &FormatError{Err: err})
	}

	e.primary.write(line)
	if e.duplicate != nil && r.Level <= spec.DuplicateLevel() {
		e.duplicate.write(line)
	}
}
