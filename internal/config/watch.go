package config

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/1ureka/rdstream/internal/util"
)

// reloadDebounce coalesces the burst of events editors emit on save.
const reloadDebounce = 200 * time.Millisecond

// Watch reloads path whenever it changes, validates it for role and passes
// the new configuration to onChange. Files that fail to parse or validate are
// logged and skipped. It blocks until ctx is done.
//
// The parent directory is watched rather than the file so that editors which
// replace the file on save keep triggering reloads.
func Watch(ctx context.Context, path string, role Role, onChange func(*Config)) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create config watcher: %w", err)
	}
	defer watcher.Close()

	abs, err := filepath.Abs(path)
	if err != nil {
		return err
	}
	if err := watcher.Add(filepath.Dir(abs)); err != nil {
		return fmt.Errorf("failed to watch %s: %w", path, err)
	}

	var pending <-chan time.Time
	for {
		select {
		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(event.Name) != abs {
				continue
			}
			if event.Has(fsnotify.Write) || event.Has(fsnotify.Create) || event.Has(fsnotify.Rename) {
				pending = time.After(reloadDebounce)
			}

		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			util.LogWarning("config watcher: %v", err)

		case <-pending:
			pending = nil
			cfg, err := reload(abs, role)
			if err != nil {
				util.LogWarning("config reload skipped: %v", err)
				continue
			}
			onChange(cfg)

		case <-ctx.Done():
			return nil
		}
	}
}

func reload(path string, role Role) (*Config, error) {
	cfg, err := Load(path)
	if err != nil {
		return nil, err
	}
	cfg.Role = role
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}
