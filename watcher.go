package modlog

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/rs/zerolog"
)

// ReloadFunc is invoked after a specfile change has been parsed and
// published; it receives the decoded document so rotation overrides can be
// applied to the sinks the specfile governs. It runs on the watcher's
// goroutine and must not block for long.
type ReloadFunc func(f *SpecFile, snap *Snapshot)

// SpecWatcher observes one specfile and republishes it through the
// registry whenever the operator saves a valid version. It watches the
// parent directory rather than the file itself, because editors commonly
// save via write-temp-then-rename and a watch on the file would be lost.
//
// Event bursts from one logical save are coalesced with a debounce timer.
// A corrupted save leaves the registry untouched and emits one diagnostic;
// transient backend errors are retried with bounded exponential backoff.
// The watcher never calls into application goroutines.
type SpecWatcher struct {
	path     string
	registry *Registry
	onReload ReloadFunc
	debounce time.Duration
	diag     zerolog.Logger

	watcher *fsnotify.Watcher
	ctx     context.Context
	cancel  context.CancelFunc
	wg      sync.WaitGroup

	mu      sync.Mutex
	running bool
	timer   *time.Timer
}

// NewSpecWatcher prepares a watcher for the given specfile path. The
// parent directory must exist. Start begins observation; Stop is
// idempotent and waits for the background task to finish.
func NewSpecWatcher(path string, registry *Registry, onReload ReloadFunc, debounce time.Duration, diag zerolog.Logger) (*SpecWatcher, error) {
	if registry == nil {
		return nil, errors.New("spec watcher needs a registry")
	}
	if debounce <= 0 {
		debounce = defaultWatchDebounce * time.Millisecond
	}

	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, &WatchError{Path: path, Err: err}
	}
	if err := fsw.Add(filepath.Dir(path)); err != nil {
		closeErr := fsw.Close()
		return nil, &WatchError{Path: path, Err: errors.Join(err, closeErr)}
	}

	ctx, cancel := context.WithCancel(context.Background())
	return &SpecWatcher{
		path:     path,
		registry: registry,
		onReload: onReload,
		debounce: debounce,
		diag:     diag,
		watcher:  fsw,
		ctx:      ctx,
		cancel:   cancel,
	}, nil
}

// Start launches the watch loop on its own goroutine. Calling Start on a
// running watcher is a no-op.
func (w *SpecWatcher) Start() {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.running {
		return
	}
	w.running = true
	w.wg.Add(1)
	go w.run()
}

// Stop cancels the watch loop, disarms any pending debounce timer and
// waits for the background goroutine to exit. A debounce timer that has
// already fired either completes its reload before Stop returns or finds
// the watcher stopped and publishes nothing. Safe to call repeatedly.
func (w *SpecWatcher) Stop() error {
	w.mu.Lock()
	if !w.running {
		w.mu.Unlock()
		return nil
	}
	w.running = false
	if w.timer != nil {
		w.timer.Stop()
		w.timer = nil
	}
	w.cancel()
	err := w.watcher.Close()
	w.mu.Unlock()

	w.wg.Wait()
	return err
}

func (w *SpecWatcher) run() {
	defer w.wg.Done()

	filename := filepath.Base(w.path)
	backoff := newBackoff(100*time.Millisecond, 5*time.Second)

	for {
		select {
		case <-w.ctx.Done():
			return

		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			backoff.reset()
			w.handleEvent(event, filename)

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			w.diag.Warn().Err(&WatchError{Path: w.path, Err: err}).Msg("specfile watch hiccup; retrying")
			select {
			case <-time.After(backoff.next()):
			case <-w.ctx.Done():
				return
			}
			// Re-arm the directory watch in case the backend dropped it.
			if addErr := w.watcher.Add(filepath.Dir(w.path)); addErr != nil {
				w.diag.Warn().Err(addErr).Msg("re-adding specfile watch failed")
			}
		}
	}
}

// handleEvent reacts to events on the specfile only. Write covers in-place
// saves, Create and Rename cover atomic write-then-rename saves. The
// debounce timer is re-armed on every event, so only the last event of a
// burst triggers a reload.
func (w *SpecWatcher) handleEvent(event fsnotify.Event, filename string) {
	if filepath.Base(event.Name) != filename {
		return
	}
	if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) && !event.Has(fsnotify.Rename) {
		return
	}

	w.mu.Lock()
	defer w.mu.Unlock()
	if !w.running {
		return
	}
	if w.timer != nil {
		w.timer.Stop()
	}
	w.timer = time.AfterFunc(w.debounce, w.reload)
}

// reload parses the stabilized file and publishes it. It holds the
// watcher mutex for its whole run, so Stop cannot return while a reload
// is mid-publish and nothing is published after Stop. A parse failure
// leaves the active snapshot in force.
func (w *SpecWatcher) reload() {
	w.mu.Lock()
	defer w.mu.Unlock()
	if !w.running {
		return
	}

	f, err := LoadSpecFile(w.path)
	if err != nil {
		w.diag.Error().Err(err).Str("specfile", w.path).Msg("specfile rejected; keeping active specification")
		return
	}
	spec, err := f.Specification()
	if err != nil {
		w.diag.Error().Err(err).Str("specfile", w.path).Msg("specfile rejected; keeping active specification")
		return
	}

	snap := w.registry.Replace(spec)
	w.diag.Info().Uint64("generation", snap.Generation()).Str("specfile", w.path).Msg("log specification reloaded")
	if w.onReload != nil {
		w.onReload(f, snap)
	}
}

// backoff is a bounded exponential delay for transient watch errors.
type backoff struct {
	cur, base, cap time.Duration
}

func newBackoff(base, cap time.Duration) *backoff {
	return &backoff{cur: base, base: base, cap: cap}
}

func (b *backoff) next() time.Duration {
	d := b.cur
	b.cur *= 2
	if b.cur > b.cap {
		b.cur = b.cap
	}
	return d
}

func (b *backoff) reset() { b.cur = b.base }
