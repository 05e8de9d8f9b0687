package confloader

import (
	"fmt"
	"log/slog"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

// DefaultDebounce collapses the burst of events an editor save produces.
const DefaultDebounce = 200 * time.Millisecond

// Watcher calls a function after a config file changes. The parent
// directory is watched so that rename-on-save editors are seen too.
type Watcher struct {
	fs       *fsnotify.Watcher
	path     string
	onChange func()
	debounce time.Duration
	log      *slog.Logger

	mu    sync.Mutex
	timer *time.Timer

	done      chan struct{}
	closeOnce sync.Once
	wg        sync.WaitGroup
}

// WatcherOption configures a Watcher.
type WatcherOption func(*Watcher)

// WithLogger sets the watcher's logger.
func WithLogger(log *slog.Logger) WatcherOption {
	return func(w *Watcher) { w.log = log }
}

// WithDebounce sets how long the file must stay quiet before onChange
// runs. Zero calls onChange for every event.
func WithDebounce(d time.Duration) WatcherOption {
	return func(w *Watcher) { w.debounce = d }
}

// Watch starts watching path. onChange runs on the watcher's goroutine,
// never concurrently with itself.
func Watch(path string, onChange func(), opts ...WatcherOption) (*Watcher, error) {
	fs, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("confloader: %w", err)
	}
	w := &Watcher{
		fs:       fs,
		path:     filepath.Clean(path),
		onChange: onChange,
		debounce: DefaultDebounce,
		log:      slog.Default(),
		done:     make(chan struct{}),
	}
	for _, opt := range opts {
		opt(w)
	}

	if err := fs.Add(filepath.Dir(w.path)); err != nil {
		fs.Close()
		return nil, fmt.Errorf("confloader: watch %s: %w", w.path, err)
	}

	w.wg.Add(1)
	go w.loop()
	w.log.Debug("watching config file", "path", w.path)
	return w, nil
}

func (w *Watcher) loop() {
	defer w.wg.Done()

	fire := make(chan struct{}, 1)
	for {
		select {
		case ev, ok := <-w.fs.Events:
			if !ok {
				return
			}
			if filepath.Clean(ev.Name) != w.path || ev.Op&(fsnotify.Write|fsnotify.Create) == 0 {
				continue
			}
			w.schedule(fire)
		case err, ok := <-w.fs.Errors:
			if !ok {
				return
			}
			w.log.Warn("config watcher error", "path", w.path, "error", err)
		case <-fire:
			w.log.Debug("config file changed", "path", w.path)
			w.onChange()
		case <-w.done:
			return
		}
	}
}

// schedule (re)arms the debounce timer. The timer only signals fire so
// onChange always runs on the loop goroutine.
func (w *Watcher) schedule(fire chan<- struct{}) {
	signal := func() {
		select {
		case fire <- struct{}{}:
		default:
		}
	}
	if w.debounce <= 0 {
		signal()
		return
	}

	w.mu.Lock()
	defer w.mu.Unlock()
	if w.timer != nil {
		w.timer.Stop()
	}
	w.timer = time.AfterFunc(w.debounce, signal)
}

// Close stops the watcher and waits for a running onChange to return.
// Calling it again is a no-op.
func (w *Watcher) Close() error {
	var err error
	w.closeOnce.Do(func() {
		close(w.done)
		w.mu.Lock()
		if w.timer != nil {
			w.timer.Stop()
		}
		w.mu.Unlock()
		err = w.fs.Close()
		w.wg.Wait()
	})
	return err
}
