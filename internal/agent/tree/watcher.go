package tree

import (
	"context"
	"fmt"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/moolen/telcoagent/internal/logging"
)

// ReloadCallback receives a newly loaded and validated tree.
type ReloadCallback func(spec *AgentSpec) error

// WatcherConfig configures a tree file watcher.
type WatcherConfig struct {
	FilePath string
	// DebounceMillis coalesces bursts of writes. Defaults to 500.
	DebounceMillis int
	// Validator, when set, checks tool names before the callback runs.
	Validator ToolChecker
}

// Watcher reloads the agent tree when its YAML file changes. A file that
// fails to load or validate is logged and the previous tree stays active.
type Watcher struct {
	config   WatcherConfig
	callback ReloadCallback
	watcher  *fsnotify.Watcher
	logger   *logging.Logger

	cancel context.CancelFunc
	stopped chan struct{}
	ready   chan struct{}

	mu            sync.Mutex
	debounceTimer *time.Timer
}

// NewWatcher creates a watcher for config.FilePath.
func NewWatcher(config WatcherConfig, callback ReloadCallback) (*Watcher, error) {
	if config.FilePath == "" {
		return nil, fmt.Errorf("FilePath must not be empty")
	}
	if callback == nil {
		return nil, fmt.Errorf("callback must not be nil")
	}
	if config.DebounceMillis == 0 {
		config.DebounceMillis = 500
	}
	return &Watcher{
		config:   config,
		callback: callback,
		logger:   logging.GetLogger("tree.watcher"),
	}, nil
}

// Start loads the file once, invokes the callback and begins watching.
func (w *Watcher) Start(ctx context.Context) error {
	if w.cancel != nil {
		return fmt.Errorf("watcher already started")
	}

	spec, err := w.load()
	if err != nil {
		return err
	}
	if err := w.callback(spec); err != nil {
		return fmt.Errorf("initial reload callback failed: %w", err)
	}

	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create file watcher: %w", err)
	}
	if err := fsw.Add(w.config.FilePath); err != nil {
		fsw.Close()
		return fmt.Errorf("failed to watch %q: %w", w.config.FilePath, err)
	}
	w.watcher = fsw

	watchCtx, cancel := context.WithCancel(ctx)
	w.cancel = cancel
	w.stopped = make(chan struct{})
	w.ready = make(chan struct{})

	go w.watchLoop(watchCtx, fsw, w.stopped, w.ready)

	select {
	case <-w.ready:
	case <-time.After(5 * time.Second):
		w.abortStart()
		return fmt.Errorf("timeout waiting for watcher to start")
	}

	w.logger.Info("Watching agent tree %s", w.config.FilePath)
	return nil
}

// abortStart undoes a partial Start so the watcher can be started again and
// Stop has nothing to wait for.
func (w *Watcher) abortStart() {
	w.cancel()
	if w.watcher != nil {
		w.watcher.Close()
	}
	w.cancel = nil
	w.watcher = nil
}

// Stop ends watching and waits for the loop to exit.
func (w *Watcher) Stop(context.Context) error {
	if w.cancel == nil {
		return nil
	}
	w.cancel()

	w.mu.Lock()
	if w.debounceTimer != nil {
		w.debounceTimer.Stop()
	}
	w.mu.Unlock()

	select {
	case <-w.stopped:
	case <-time.After(5 * time.Second):
		return fmt.Errorf("timeout waiting for watcher to stop")
	}
	w.cancel = nil
	return nil
}

// Name implements lifecycle.Component.
func (w *Watcher) Name() string {
	return "Agent Tree Watcher"
}

func (w *Watcher) watchLoop(ctx context.Context, fsw *fsnotify.Watcher, stopped, ready chan struct{}) {
	defer close(stopped)
	defer fsw.Close()

	close(ready)

	for {
		select {
		case <-ctx.Done():
			return

		case event, ok := <-fsw.Events:
			if !ok {
				return
			}
			if filepath.Clean(event.Name) != filepath.Clean(w.config.FilePath) {
				continue
			}
			switch {
			case event.Has(fsnotify.Write), event.Has(fsnotify.Create):
				w.scheduleReload()
			case event.Has(fsnotify.Rename), event.Has(fsnotify.Remove):
				// Editors replace files atomically; re-add once the new file exists.
				time.Sleep(50 * time.Millisecond)
				if err := fsw.Add(w.config.FilePath); err != nil {
					w.logger.Warn("Failed to re-watch %s: %v", w.config.FilePath, err)
					continue
				}
				w.scheduleReload()
			}

		case err, ok := <-fsw.Errors:
			if !ok {
				return
			}
			w.logger.Error("File watcher error: %v", err)
		}
	}
}

func (w *Watcher) scheduleReload() {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.debounceTimer != nil {
		w.debounceTimer.Stop()
	}
	w.debounceTimer = time.AfterFunc(time.Duration(w.config.DebounceMillis)*time.Millisecond, w.reload)
}

func (w *Watcher) reload() {
	spec, err := w.load()
	if err != nil {
		w.logger.Error("Keeping previous agent tree: %v", err)
		return
	}
	if err := w.callback(spec); err != nil {
		w.logger.Error("Agent tree reload callback failed: %v", err)
		return
	}
	w.logger.Info("Reloaded agent tree from %s", w.config.FilePath)
}

func (w *Watcher) load() (*AgentSpec, error) {
	spec, err := Load(w.config.FilePath)
	if err != nil {
		return nil, err
	}
	if w.config.Validator != nil {
		if err := spec.Validate(w.config.Validator); err != nil {
			return nil, err
		}
	}
	return spec, nil
}
