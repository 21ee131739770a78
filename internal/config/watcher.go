package config

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/gmstack/balancer/internal/observability"
)

// Watcher reloads the balancer configuration when its file changes on
// disk. The parent directory is watched because editors replace the
// file on save, which would invalidate a watch on the file itself.
// Events are debounced into a single reload, and a file that fails to
// load or validate is rejected so the running configuration stays in
// effect.
type Watcher struct {
	path     string
	apply    func(*Config)
	reject   func(error)
	logger   observability.Logger
	debounce time.Duration

	fs     *fsnotify.Watcher
	cancel context.CancelFunc
	done   chan struct{}
}

// WatcherOption is a functional option for configuring the watcher.
type WatcherOption func(*Watcher)

// WithDebounceDelay sets how long the watcher waits after the last
// file event before reloading.
func WithDebounceDelay(delay time.Duration) WatcherOption {
	return func(w *Watcher) {
		w.debounce = delay
	}
}

// WithLogger sets the logger for the watcher.
func WithLogger(logger observability.Logger) WatcherOption {
	return func(w *Watcher) {
		w.logger = logger
	}
}

// WithErrorCallback sets a callback invoked when a reload is rejected
// or the underlying watch fails.
func WithErrorCallback(callback func(error)) WatcherOption {
	return func(w *Watcher) {
		w.reject = callback
	}
}

// NewWatcher creates a watcher for the given configuration file. The
// apply callback receives each successfully validated configuration.
func NewWatcher(path string, apply func(*Config), opts ...WatcherOption) (*Watcher, error) {
	absPath, err := filepath.Abs(path)
	if err != nil {
		return nil, err
	}

	w := &Watcher{
		path:     absPath,
		apply:    apply,
		logger:   observability.NopLogger(),
		debounce: 100 * time.Millisecond,
		done:     make(chan struct{}),
	}

	for _, opt := range opts {
		opt(w)
	}

	return w, nil
}

// Start begins watching. It fails if the configuration file does not
// exist or its directory cannot be watched.
func (w *Watcher) Start(ctx context.Context) error {
	if w.cancel != nil {
		return nil
	}

	if _, err := os.Stat(w.path); err != nil {
		return fmt.Errorf("cannot watch config file: %w", err)
	}

	fs, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	if err := fs.Add(filepath.Dir(w.path)); err != nil {
		_ = fs.Close()
		return err
	}
	w.fs = fs

	ctx, w.cancel = context.WithCancel(ctx)

	w.logger.Info("watching configuration file",
		observability.String("path", w.path),
	)

	go w.loop(ctx)

	return nil
}

// Stop stops the watcher and waits for the watch loop to exit.
func (w *Watcher) Stop() error {
	if w.cancel == nil {
		return nil
	}

	w.cancel()
	<-w.done

	return w.fs.Close()
}

// loop waits out the debounce window after each burst of events for
// the watched file, then reloads once.
func (w *Watcher) loop(ctx context.Context) {
	defer close(w.done)

	timer := time.NewTimer(w.debounce)
	defer timer.Stop()
	if !timer.Stop() {
		<-timer.C
	}

	for {
		select {
		case <-ctx.Done():
			return

		case event, ok := <-w.fs.Events:
			if !ok {
				return
			}
			if filepath.Clean(event.Name) != w.path {
				continue
			}
			if event.Op&(fsnotify.Write|fsnotify.Create) == 0 {
				continue
			}
			if !timer.Stop() {
				select {
				case <-timer.C:
				default:
				}
			}
			timer.Reset(w.debounce)

		case <-timer.C:
			w.reload()

		case err, ok := <-w.fs.Errors:
			if !ok {
				return
			}
			w.logger.Error("config watch error", observability.Error(err))
			if w.reject != nil {
				w.reject(err)
			}
		}
	}
}

// reload loads and validates the file, handing the result to the
// apply callback. A bad file is reported and otherwise ignored.
func (w *Watcher) reload() {
	cfg, err := LoadConfig(w.path)
	if err == nil {
		err = ValidateConfig(cfg)
	}
	if err != nil {
		w.logger.Error("config reload rejected",
			observability.String("path", w.path),
			observability.Error(err),
		)
		if w.reject != nil {
			w.reject(err)
		}
		return
	}

	w.logger.Info("configuration file changed",
		observability.String("path", w.path),
	)
	if w.apply != nil {
		w.apply(cfg)
	}
}
