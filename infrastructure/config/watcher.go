package config

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/fsnotify/fsnotify"

	"github.com/felixgeelhaar/heapscope/domain/config"
	"github.com/felixgeelhaar/heapscope/infrastructure/logging"
)

// Watcher reloads a configuration file whenever it changes on disk.
type Watcher struct {
	path     string
	loader   *Loader
	onChange func(*config.AgentConfig)
	fsw      *fsnotify.Watcher
}

// NewWatcher watches path and calls onChange with every configuration that
// loads successfully. Invalid edits are logged and skipped.
func NewWatcher(path string, loader *Loader, onChange func(*config.AgentConfig)) (*Watcher, error) {
	if loader == nil {
		loader = NewLoader()
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve config path: %w", err)
	}

	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create watcher: %w", err)
	}
	// Editors often replace the file, so watch the directory.
	if err := fsw.Add(filepath.Dir(abs)); err != nil {
		_ = fsw.Close()
		return nil, fmt.Errorf("failed to watch path: %w", err)
	}

	return &Watcher{
		path:     abs,
		loader:   loader,
		onChange: onChange,
		fsw:      fsw,
	}, nil
}

// Run processes file events until ctx is done or the watcher is closed.
func (w *Watcher) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-w.fsw.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(ev.Name) != w.path || !ev.Has(fsnotify.Write|fsnotify.Create) {
				continue
			}
			w.reload()
		case err, ok := <-w.fsw.Errors:
			if !ok {
				return nil
			}
			logging.Warn().
				Add(logging.Component("config")).
				Add(logging.ErrorField(err)).
				Msg("config watch error")
		}
	}
}

func (w *Watcher) reload() {
	cfg, err := w.loader.LoadFile(w.path)
	if err != nil {
		logging.Warn().
			Add(logging.Component("config")).
			Add(logging.Str("path", w.path)).
			Add(logging.ErrorField(err)).
			Msg("config reload skipped")
		return
	}
	logging.Info().
		Add(logging.Component("config")).
		Add(logging.Str("path", w.path)).
		Msg("config reloaded")
	if w.onChange != nil {
		w.onChange(cfg)
	}
}

// Close stops watching.
func (w *Watcher) Close() error {
	return w.fsw.Close()
}

// ApplyLogLevel is an onChange callback that updates the default logger level.
func ApplyLogLevel(cfg *config.AgentConfig) {
	logging.SetLevel(cfg.Logging.Level)
}
