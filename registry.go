package modlog

import "go.uber.org/atomic"

// Snapshot is an immutable, shareable handle to one LogSpecification plus a
// monotonically increasing generation number. A snapshot never changes
// underneath its holder; replacement always produces a new one.
type Snapshot struct {
	spec       *LogSpecification
	generation uint64
}

// Spec returns the specification this snapshot was published with.
func (s *Snapshot) Spec() *LogSpecification { return s.spec }

// Generation returns the publish sequence number. Callers can compare it
// against Registry.Current().Generation() to detect staleness without
// re-deriving equality on the full specification.
func (s *Snapshot) Generation() uint64 { return s.generation }

// Registry holds the currently active specification behind an atomically
// swappable pointer. Current is wait-free for readers; Replace is
// linearizable, with each successful replacement bumping the generation by
// exactly one.
type Registry struct {
	current atomic.Pointer[Snapshot]
}

// NewRegistry creates a registry seeded with the given specification at
// generation 1.
func NewRegistry(spec *LogSpecification) *Registry {
	r := &Registry{}
	r.current.Store(&Snapshot{spec: spec, generation: 1})
	return r
}

// Current returns the active snapshot. Never blocks and never returns a
// torn value; the returned snapshot stays valid for as long as the caller
// keeps it, regardless of later replacements.
func (r *Registry) Current() *Snapshot {
	return r.current.Load()
}

// Replace publishes a new specification atomically and returns the snapshot
// it was published as. Concurrent replacements serialize through the CAS
// loop; the last one to complete is the one subsequently observed.
func (r *Registry) Replace(spec *LogSpecification) *Snapshot {
	for {
		old := r.current.Load()
		next := &Snapshot{spec: spec, generation: old.generation + 1}
		if r.current.CompareAndSwap(old, next) {
			return next
		}
	}
}
