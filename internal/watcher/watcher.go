// Package watcher turns raw filesystem notifications into debounced
// change events. Every notification for a non-ignored path resets a
// quiescence timer and joins the pending set; once the timer elapses a
// single ChangeEvent carrying the accumulated paths is emitted. Bursts
// (editor save sequences, bulk copies) therefore collapse into one
// rebuild instead of one per raw event.
package watcher

import (
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/conneroisu/sitegen/internal/config"
	sgerrors "github.com/conneroisu/sitegen/internal/errors"
	"github.com/conneroisu/sitegen/internal/logging"
)

// ChangeEvent names the paths (relative to the watched root) that
// changed within one debounce window.
type ChangeEvent struct {
	Paths     []string
	Timestamp time.Time
}

// FilterFunc reports whether a root-relative path should be observed.
type FilterFunc func(rel string) bool

// Watcher subscribes to filesystem notifications for an input tree and
// emits debounced ChangeEvents. Create/modify/delete/rename are treated
// uniformly as "this path changed".
type Watcher struct {
	root     string
	fsw      *fsnotify.Watcher
	debounce *debouncer
	filters  []FilterFunc
	errs     chan error
	log      logging.Logger

	mu      sync.RWMutex
	stopped bool
}

// New creates a Watcher for root with the given debounce window.
func New(root string, debounce time.Duration, log logging.Logger) (*Watcher, error) {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, &sgerrors.WatchError{Err: err}
	}

	return &Watcher{
		root:     root,
		fsw:      fsw,
		debounce: newDebouncer(debounce),
		errs:     make(chan error, 8),
		log:      log.WithComponent("watcher"),
	}, nil
}

// AddFilter registers a filter. A path is observed only when every
// registered filter accepts it. Filters must be added before Start.
func (w *Watcher) AddFilter(f FilterFunc) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.filters = append(w.filters, f)
}

// Events returns the channel of debounced change events. The sequence
// never terminates while the watcher runs; after Stop no further events
// are delivered.
func (w *Watcher) Events() <-chan ChangeEvent {
	return w.debounce.out
}

// Errors returns the channel of watch errors. Errors are surfaced, not
// terminal: the watcher keeps running after reporting one.
func (w *Watcher) Errors() <-chan error {
	return w.errs
}

// Start subscribes to the root tree and launches the notification and
// debounce loops. The loops run until Stop is called.
func (w *Watcher) Start() error {
	if err := w.addRecursive(w.root); err != nil {
		return &sgerrors.WatchError{Err: err}
	}

	go w.debounce.run()
	go w.loop()

	return nil
}

// Stop tears the subscription down, cancels any pending debounce timer
// and closes the event channel. Safe to call once.
func (w *Watcher) Stop() error {
	w.mu.Lock()
	if w.stopped {
		w.mu.Unlock()
		return nil
	}
	w.stopped = true
	w.mu.Unlock()

	err := w.fsw.Close()
	w.debounce.stop()
	return err
}

// addRecursive subscribes dir and every subdirectory that passes the
// filters.
func (w *Watcher) addRecursive(dir string) error {
	return filepath.WalkDir(dir, func(path string, d fs.DirEntry, walkErr error) error {
		if walkErr != nil {
			return walkErr
		}
		if !d.IsDir() {
			return nil
		}
		rel, err := filepath.Rel(w.root, path)
		if err != nil {
			return err
		}
		if rel != "." && !w.accepted(rel) {
			return filepath.SkipDir
		}
		return w.fsw.Add(path)
	})
}

func (w *Watcher) accepted(rel string) bool {
	w.mu.RLock()
	defer w.mu.RUnlock()
	for _, f := range w.filters {
		if !f(rel) {
			return false
		}
	}
	return true
}

func (w *Watcher) loop() {
	for {
		select {
		case event, ok := <-w.fsw.Events:
			if !ok {
				return
			}
			w.handle(event)
		case err, ok := <-w.fsw.Errors:
			if !ok {
				return
			}
			w.log.Error(err, "notification error")
			select {
			case w.errs <- &sgerrors.WatchError{Err: err}:
			default:
			}
		}
	}
}

func (w *Watcher) handle(event fsnotify.Event) {
	rel, err := filepath.Rel(w.root, event.Name)
	if err != nil || strings.HasPrefix(rel, "..") {
		return
	}
	if !w.accepted(rel) {
		return
	}

	// fsnotify does not recurse: a directory created under the root
	// must be subscribed explicitly, and its pre-existing contents
	// reported, or a bulk copy would go half-observed.
	if event.Op&fsnotify.Create != 0 {
		if info, statErr := os.Stat(event.Name); statErr == nil && info.IsDir() {
			if addErr := w.addRecursive(event.Name); addErr != nil {
				w.log.Warn("could not watch new directory", "path", event.Name, "add_error", addErr)
			}
			w.reportTree(event.Name)
			return
		}
	}

	w.debounce.add(rel)
}

// reportTree feeds every file already present under dir into the
// debouncer, as if each had just been created.
func (w *Watcher) reportTree(dir string) {
	_ = filepath.WalkDir(dir, func(path string, d fs.DirEntry, walkErr error) error {
		if walkErr != nil || d.IsDir() {
			return nil
		}
		rel, err := filepath.Rel(w.root, path)
		if err != nil || !w.accepted(rel) {
			return nil
		}
		w.debounce.add(rel)
		return nil
	})
}

// debouncer accumulates paths until the quiescence window elapses with
// no further additions, then emits them as one ChangeEvent.
type debouncer struct {
	delay   time.Duration
	in      chan string
	out     chan ChangeEvent
	done    chan struct{}
	mu      sync.Mutex
	pending map[string]struct{}
	timer   *time.Timer
}

func newDebouncer(delay time.Duration) *debouncer {
	return &debouncer{
		delay:   delay,
		in:      make(chan string, 128),
		out:     make(chan ChangeEvent, 16),
		done:    make(chan struct{}),
		pending: make(map[string]struct{}),
	}
}

func (d *debouncer) run() {
	for {
		select {
		case <-d.done:
			return
		case rel := <-d.in:
			d.arm(rel)
		}
	}
}

func (d *debouncer) add(rel string) {
	select {
	case d.in <- rel:
	default:
		// Input buffer full under an extreme burst; the pending set
		// already guarantees a rebuild is coming.
	}
}

func (d *debouncer) arm(rel string) {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.pending[rel] = struct{}{}

	if d.timer != nil {
		d.timer.Stop()
	}
	d.timer = time.AfterFunc(d.delay, d.flush)
}

func (d *debouncer) flush() {
	d.mu.Lock()
	if len(d.pending) == 0 {
		d.mu.Unlock()
		return
	}
	paths := make([]string, 0, len(d.pending))
	for p := range d.pending {
		paths = append(paths, p)
	}
	d.pending = make(map[string]struct{})
	d.mu.Unlock()

	select {
	case d.out <- ChangeEvent{Paths: paths, Timestamp: time.Now()}:
	case <-d.done:
	}
}

func (d *debouncer) stop() {
	d.mu.Lock()
	if d.timer != nil {
		d.timer.Stop()
	}
	d.mu.Unlock()

	close(d.done)
}

// NoDotFilter rejects paths with a dot-prefixed component.
func NoDotFilter(rel string) bool {
	for _, part := range strings.Split(rel, string(filepath.Separator)) {
		if strings.HasPrefix(part, ".") {
			return false
		}
	}
	return true
}

// NotUnderFilter rejects rel paths equal to or beneath dir (itself
// relative to the watched root). Used to exclude the output directory,
// which would otherwise feed the build's own writes back into it.
func NotUnderFilter(dir string) FilterFunc {
	dir = filepath.Clean(dir)
	return func(rel string) bool {
		if dir == "" || dir == "." {
			return true
		}
		rel = filepath.Clean(rel)
		return rel != dir && !strings.HasPrefix(rel, dir+string(filepath.Separator))
	}
}

// ConfigFilters builds the standard filter set for cfg: dot paths, the
// output directory when it lives under the input root, and every
// ignore-list entry.
func ConfigFilters(cfg *config.Config) []FilterFunc {
	filters := []FilterFunc{NoDotFilter}

	if rel, err := filepath.Rel(cfg.Input, cfg.Output); err == nil && !strings.HasPrefix(rel, "..") {
		filters = append(filters, NotUnderFilter(rel))
	}

	for _, ig := range cfg.Ignore {
		if !filepath.IsAbs(ig) {
			filters = append(filters, NotUnderFilter(ig))
		}
	}

	return filters
}
