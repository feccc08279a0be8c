package rules

import (
	"context"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"
)

// Watch monitors the rules file and calls onChange with the freshly
// loaded rule set each time it is written. Runs until ctx is cancelled.
//
// A failed reload (unreadable file, bad YAML) is logged and the previous
// rule set stays active; onChange is not called.
func Watch(ctx context.Context, path string, log *zap.Logger, onChange func([]*Rule)) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer watcher.Close()

	if err := watcher.Add(path); err != nil {
		return err
	}

	log.Info("watching rules file for changes", zap.String("path", path))

	for {
		select {
		case <-ctx.Done():
			return nil

		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			// Editors often save via rename, which arrives as Create.
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) {
				continue
			}

			loaded, err := LoadFile(path, log)
			if err != nil {
				log.Error("rules reload failed, keeping previous rules",
					zap.String("path", path),
					zap.Error(err),
				)
				continue
			}

			log.Info("rules reloaded", zap.String("path", path), zap.Int("count", len(loaded)))
			onChange(loaded)

			// Re-add in case an atomic save replaced the inode.
			_ = watcher.Add(path)

		case werr, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			log.Error("rules watcher error", zap.Error(werr))
		}
	}
}
