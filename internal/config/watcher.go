// internal/config/watcher.go
package config

import (
	"context"
	"fmt"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/valpere/AutoScrapexter/internal/utils"
)

// debounce collapses the burst of events editors produce for one save.
const debounce = 100 * time.Millisecond

// ConfigWatcher reloads the configuration file when it changes. Invalid
// edits are logged and ignored; callbacks only ever see valid configs.
type ConfigWatcher struct {
	watcher    *fsnotify.Watcher
	configPath string
	logger     utils.Logger
	callbacks  []func(*Config)
	mu         sync.RWMutex
	stopped    bool
	done       chan struct{}
}

// NewConfigWatcher creates a new configuration file watcher
func NewConfigWatcher(configPath string, logger utils.Logger) (*ConfigWatcher, error) {
	if logger == nil {
		logger = utils.NewNopLogger()
	}

	abs, err := filepath.Abs(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve config path: %w", err)
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create file watcher: %w", err)
	}

	cw := &ConfigWatcher{
		watcher:    watcher,
		configPath: abs,
		logger:     logger.WithField("component", "config-watcher"),
		callbacks:  make([]func(*Config), 0),
		done:       make(chan struct{}),
	}

	// The directory, not the file: editors that save by rename replace the
	// watched inode.
	if err := watcher.Add(filepath.Dir(abs)); err != nil {
		watcher.Close()
		return nil, fmt.Errorf("failed to watch config directory: %w", err)
	}

	go cw.watch()

	return cw, nil
}

// OnChange registers a callback to be called when the config changes
func (cw *ConfigWatcher) OnChange(callback func(*Config)) {
	cw.mu.Lock()
	defer cw.mu.Unlock()
	cw.callbacks = append(cw.callbacks, callback)
}

// watch handles file system events
func (cw *ConfigWatcher) watch() {
	defer close(cw.done)

	var timer *time.Timer
	defer func() {
		if timer != nil {
			timer.Stop()
		}
	}()

	for {
		select {
		case event, ok := <-cw.watcher.Events:
			if !ok {
				return
			}
			if filepath.Clean(event.Name) != cw.configPath {
				continue
			}
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) && !event.Has(fsnotify.Rename) {
				continue
			}
			if timer == nil {
				timer = time.AfterFunc(debounce, cw.handleConfigChange)
			} else {
				timer.Reset(debounce)
			}

		case err, ok := <-cw.watcher.Errors:
			if !ok {
				return
			}
			cw.logger.Warnf("config watcher error: %v", err)
		}
	}
}

// handleConfigChange processes configuration file changes
func (cw *ConfigWatcher) handleConfigChange() {
	cw.mu.RLock()
	if cw.stopped {
		cw.mu.RUnlock()
		return
	}
	callbacks := make([]func(*Config), len(cw.callbacks))
	copy(callbacks, cw.callbacks)
	cw.mu.RUnlock()

	config, err := LoadFromFile(cw.configPath)
	if err != nil {
		cw.logger.Errorf("failed to reload config, keeping the previous one: %v", err)
		return
	}
	cw.logger.Infof("configuration reloaded from %s", cw.configPath)

	for _, callback := range callbacks {
		callback(config)
	}
}

// Run blocks until ctx is done, then closes the watcher.
func (cw *ConfigWatcher) Run(ctx context.Context) error {
	select {
	case <-ctx.Done():
	case <-cw.done:
	}
	return cw.Close()
}

// Close stops the watcher and releases resources
func (cw *ConfigWatcher) Close() error {
	cw.mu.Lock()
	if cw.stopped {
		cw.mu.Unlock()
		return nil
	}
	cw.stopped = true
	cw.mu.Unlock()

	return cw.watcher.Close()
}
