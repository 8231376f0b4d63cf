package router

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"
)

// WatchConfig reloads the configuration file at path whenever it changes,
// until ctx is done. Invalid files are logged and ignored.
func (r *Router) WatchConfig(ctx context.Context, path string) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create config watcher: %w", err)
	}
	defer watcher.Close()

	// Editors often replace the file, so watch the directory.
	abs, err := filepath.Abs(path)
	if err != nil {
		return fmt.Errorf("failed to resolve config path: %w", err)
	}
	if err := watcher.Add(filepath.Dir(abs)); err != nil {
		return fmt.Errorf("failed to watch config directory: %w", err)
	}

	// The running address may come from a flag, so restarts are only
	// flagged when the file's own value moves.
	fileListen := r.Config().ListenAddr
	if cfg, err := LoadConfig(abs); err == nil {
		fileListen = cfg.ListenAddr
	}

	for {
		select {
		case <-ctx.Done():
			return nil
		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(event.Name) != abs || !event.Has(fsnotify.Write|fsnotify.Create) {
				continue
			}
			r.reload(abs, &fileListen)
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			r.logger.Warn("config watcher error", zap.Error(err))
		}
	}
}

// reload applies the file at path. fileListen holds the listen address the
// file declared last time and is updated in place.
func (r *Router) reload(path string, fileListen *string) {
	cfg, err := LoadConfig(path)
	if err != nil {
		r.logger.Warn("ignoring invalid config", zap.String("path", path), zap.Error(err))
		return
	}

	current := r.Config().ListenAddr
	if cfg.ListenAddr != *fileListen {
		r.logger.Warn("listen address change requires a restart",
			zap.String("current", current),
			zap.String("configured", cfg.ListenAddr),
		)
		*fileListen = cfg.ListenAddr
	}
	cfg.ListenAddr = current

	if err := r.SetConfig(cfg); err != nil {
		r.logger.Warn("ignoring invalid config", zap.String("path", path), zap.Error(err))
		return
	}
	r.logger.Info("config reloaded",
		zap.String("path", path),
		zap.String("strategy", string(cfg.Strategy)),
		zap.Duration("deadline", cfg.Deadline),
	)
}
