// Package watch watches the project tree for changes and coalesces them
// into a debounced rebuild trigger, skipping paths that match the ignore
// patterns. It does not serialize builds itself; superseding a running
// build per entry HTML is done by the pipeline engine.
package watch

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	gitignore "github.com/sabhiram/go-gitignore"
)

// Options configures a Watcher.
type Options struct {
	// Paths are the root directories to watch, recursively.
	Paths []string
	// Ignore holds gitignore-style patterns; matches are never reported.
	Ignore []string
	// Debounce is the quiet period after the last filesystem event before
	// the trigger fires.
	Debounce time.Duration
	// PollFallback is carried from the watch.poll_fallback setting but is
	// not read by the Watcher: events always come from fsnotify, and there
	// is no timer-based poll loop.
	PollFallback bool
}

// Watcher coalesces filesystem events into a single rebuild trigger per
// debounce window: multiple events arriving during the quiet period
// collapse into one signal on Triggers, matching spec.md's "queues exactly
// one future build" requirement.
type Watcher struct {
	opts    Options
	logger  *slog.Logger
	ignore  *gitignore.GitIgnore
	fsw     *fsnotify.Watcher
	trigger chan struct{}

	mu      sync.Mutex
	pending bool
	timer   *time.Timer
}

// New constructs a Watcher and starts the underlying fsnotify watcher on
// opts.Paths (recursively). Call Run to begin coalescing events.
func New(opts Options, logger *slog.Logger) (*Watcher, error) {
	if opts.Debounce <= 0 {
		opts.Debounce = 500 * time.Millisecond
	}

	var ignore *gitignore.GitIgnore
	if len(opts.Ignore) > 0 {
		ignore = gitignore.CompileIgnoreLines(opts.Ignore...)
	}

	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}

	w := &Watcher{
		opts:    opts,
		logger:  logger,
		ignore:  ignore,
		fsw:     fsw,
		trigger: make(chan struct{}, 1),
	}

	for _, root := range opts.Paths {
		if err := w.addRecursive(root); err != nil {
			fsw.Close()
			return nil, err
		}
	}

	return w, nil
}

func (w *Watcher) addRecursive(root string) error {
	resolved, err := filepath.EvalSymlinks(root)
	if err != nil {
		resolved = root
	}
	return filepath.Walk(resolved, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return nil
		}
		if info.IsDir() {
			if w.matchIgnore(path) {
				return filepath.SkipDir
			}
			return w.fsw.Add(path)
		}
		return nil
	})
}

func (w *Watcher) matchIgnore(path string) bool {
	if w.ignore == nil {
		return false
	}
	return w.ignore.MatchesPath(path)
}

// Triggers returns the channel that receives one signal per coalesced
// batch of filesystem events.
func (w *Watcher) Triggers() <-chan struct{} {
	return w.trigger
}

// Run drains fsnotify events until ctx is cancelled, debouncing them into
// Triggers signals. It must run in its own goroutine.
func (w *Watcher) Run(ctx context.Context) error {
	defer w.fsw.Close()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case event, ok := <-w.fsw.Events:
			if !ok {
				return nil
			}
			if w.matchIgnore(event.Name) {
				continue
			}
			w.logger.Debug("watch event", "op", event.Op.String(), "path", event.Name)
			if event.Op&fsnotify.Create == fsnotify.Create {
				if err := w.fsw.Add(event.Name); err != nil {
					w.logger.Debug("watch add failed", "path", event.Name, "error", err)
				}
			}
			w.schedule()
		case err, ok := <-w.fsw.Errors:
			if !ok {
				return nil
			}
			w.logger.Warn("watch error", "error", err)
		}
	}
}

// schedule resets the debounce timer; only the last scheduled fire in a
// burst actually sends, collapsing a whole burst into one trigger.
func (w *Watcher) schedule() {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.timer != nil {
		w.timer.Stop()
	}
	w.timer = time.AfterFunc(w.opts.Debounce, func() {
		select {
		case w.trigger <- struct{}{}:
		default:
			// a trigger is already pending and not yet consumed; the
			// queued one covers this batch too.
		}
	})
}
