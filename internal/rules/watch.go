package rules

import (
	"context"
	"crypto/sha256"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"

	appLog "calnorm/internal/log"
)

// Watch calls onChange whenever the content of the rule file at path
// changes, until ctx is done. Events are debounced, and writes that leave
// the bytes as they were are ignored, so a run re-saving identical rules
// does not trigger itself. onChange runs on the watch goroutine.
func Watch(ctx context.Context, path string, debounce time.Duration, onChange func()) error {
	dir, base := filepath.Dir(path), filepath.Base(path)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return fmt.Errorf("create rules dir: %w", err)
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create watcher: %w", err)
	}
	defer watcher.Close()

	// The file is replaced by rename on save, so watch the directory.
	if err := watcher.Add(dir); err != nil {
		return fmt.Errorf("watch %s: %w", dir, err)
	}
	appLog.Debug("watching rule file", "path", path)

	last := digest(path)
	var (
		timer  *time.Timer
		settle <-chan time.Time
	)
	defer func() {
		if timer != nil {
			timer.Stop()
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return nil

		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if filepath.Base(event.Name) != base || event.Op == fsnotify.Chmod {
				continue
			}
			if timer == nil {
				timer = time.NewTimer(debounce)
			} else {
				timer.Reset(debounce)
			}
			settle = timer.C

		case <-settle:
			settle = nil
			sum := digest(path)
			if sum == last {
				continue
			}
			last = sum
			appLog.Info("rule file changed", "path", path)
			onChange()

		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			appLog.Error("rule watcher error", err, "path", path)
		}
	}
}

// digest hashes the file content; a missing file hashes to the zero value.
func digest(path string) [sha256.Size]byte {
	data, err := os.ReadFile(path)
	if err != nil {
		return [sha256.Size]byte{}
	}
	return sha256.Sum256(data)
}
