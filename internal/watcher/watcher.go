// Package watcher observes the uploads directory and emits debounced
// file events so newly dropped documents are ingested automatically.
package watcher

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

// Operation represents a file system operation type.
type Operation int

const (
	// OpCreate indicates a new file appeared.
	OpCreate Operation = iota
	// OpModify indicates an existing file was modified.
	OpModify
	// OpDelete indicates a file was deleted or renamed away.
	OpDelete
)

// String returns a human-readable representation of the operation.
func (op Operation) String() string {
	switch op {
	case OpCreate:
		return "CREATE"
	case OpModify:
		return "MODIFY"
	case OpDelete:
		return "DELETE"
	default:
		return "UNKNOWN"
	}
}

// FileEvent is one debounced file system event.
type FileEvent struct {
	// Path is the absolute path of the file.
	Path string

	Operation Operation

	// Timestamp is when the last underlying event was detected.
	Timestamp time.Time
}

// Options configures the watcher.
type Options struct {
	// DebounceWindow coalesces rapid event bursts per file (editors
	// often write a file several times in quick succession).
	// Default: 500ms.
	DebounceWindow time.Duration

	// EventBufferSize is the event channel buffer. Default: 100.
	EventBufferSize int

	// Filter selects which file names produce events; nil accepts all.
	Filter func(name string) bool
}

// DefaultOptions returns the default watcher options.
func DefaultOptions() Options {
	return Options{
		DebounceWindow:  500 * time.Millisecond,
		EventBufferSize: 100,
	}
}

// UploadWatcher watches a single directory (non-recursive) via
// fsnotify and emits debounced events.
type UploadWatcher struct {
	opts Options

	mu      sync.Mutex
	fsw     *fsnotify.Watcher
	pending map[string]*pendingEvent
	events  chan FileEvent
	errs    chan error
	stopped bool
	done    chan struct{}
}

type pendingEvent struct {
	event FileEvent
	timer *time.Timer
}

// New creates an upload watcher.
func New(opts Options) *UploadWatcher {
	if opts.DebounceWindow <= 0 {
		opts.DebounceWindow = 500 * time.Millisecond
	}
	if opts.EventBufferSize <= 0 {
		opts.EventBufferSize = 100
	}
	return &UploadWatcher{
		opts:    opts,
		pending: make(map[string]*pendingEvent),
		events:  make(chan FileEvent, opts.EventBufferSize),
		errs:    make(chan error, 10),
		done:    make(chan struct{}),
	}
}

// Start begins watching dir. It returns immediately; events flow on
// Events() until Stop is called or the context is cancelled.
func (w *UploadWatcher) Start(ctx context.Context, dir string) error {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create watcher: %w", err)
	}
	if err := fsw.Add(dir); err != nil {
		_ = fsw.Close()
		return fmt.Errorf("failed to watch %s: %w", dir, err)
	}

	w.mu.Lock()
	w.fsw = fsw
	w.mu.Unlock()

	go w.loop(ctx)
	return nil
}

func (w *UploadWatcher) loop(ctx context.Context) {
	defer w.closeChannels()

	for {
		select {
		case <-ctx.Done():
			return
		case <-w.done:
			return
		case ev, ok := <-w.fsw.Events:
			if !ok {
				return
			}
			w.handle(ev)
		case err, ok := <-w.fsw.Errors:
			if !ok {
				return
			}
			select {
			case w.errs <- err:
			default:
			}
		}
	}
}

// handle debounces one raw fsnotify event per path.
func (w *UploadWatcher) handle(ev fsnotify.Event) {
	if w.opts.Filter != nil && !w.opts.Filter(ev.Name) {
		return
	}

	var op Operation
	switch {
	case ev.Op.Has(fsnotify.Create):
		op = OpCreate
	case ev.Op.Has(fsnotify.Write):
		op = OpModify
	case ev.Op.Has(fsnotify.Remove), ev.Op.Has(fsnotify.Rename):
		op = OpDelete
	default:
		return
	}

	w.mu.Lock()
	defer w.mu.Unlock()
	if w.stopped {
		return
	}

	if p, exists := w.pending[ev.Name]; exists {
		// Coalesce: keep the original operation unless the file was
		// deleted after, and push the timer out.
		if op == OpDelete {
			p.event.Operation = OpDelete
		}
		p.event.Timestamp = time.Now()
		p.timer.Reset(w.opts.DebounceWindow)
		return
	}

	p := &pendingEvent{
		event: FileEvent{Path: ev.Name, Operation: op, Timestamp: time.Now()},
	}
	p.timer = time.AfterFunc(w.opts.DebounceWindow, func() {
		w.flush(ev.Name)
	})
	w.pending[ev.Name] = p
}

// flush emits a debounced event once its quiet window elapses.
func (w *UploadWatcher) flush(path string) {
	w.mu.Lock()
	p, ok := w.pending[path]
	if ok {
		delete(w.pending, path)
	}
	stopped := w.stopped
	w.mu.Unlock()

	if !ok || stopped {
		return
	}
	select {
	case w.events <- p.event:
	default:
		// Buffer full; drop rather than block the watcher.
	}
}

// Events returns the debounced event channel. Closed on stop.
func (w *UploadWatcher) Events() <-chan FileEvent { return w.events }

// Errors returns the non-fatal error channel. Closed on stop.
func (w *UploadWatcher) Errors() <-chan error { return w.errs }

// Stop stops watching. Safe to call multiple times.
func (w *UploadWatcher) Stop() error {
	w.mu.Lock()
	if w.stopped {
		w.mu.Unlock()
		return nil
	}
	w.stopped = true
	for _, p := range w.pending {
		p.timer.Stop()
	}
	w.pending = make(map[string]*pendingEvent)
	fsw := w.fsw
	w.mu.Unlock()

	close(w.done)
	if fsw != nil {
		return fsw.Close()
	}
	return nil
}

func (w *UploadWatcher) closeChannels() {
	w.mu.Lock()
	defer w.mu.Unlock()
	if !w.stopped {
		w.stopped = true
	}
	close(w.events)
	close(w.errs)
}
