package cli

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"
)

// fileWatcher reports debounced writes to a fixed set of files. It watches
// the parent directories so atomic replacements (rename over the file) are
// seen too.
type fileWatcher struct {
	w        *fsnotify.Watcher
	files    map[string]struct{}
	debounce time.Duration
	logger   *zap.Logger
}

func newFileWatcher(paths []string, debounce time.Duration, logger *zap.Logger) (*fileWatcher, error) {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("creating watcher: %w", err)
	}

	fw := &fileWatcher{w: w, files: make(map[string]struct{}, len(paths)), debounce: debounce, logger: logger}
	dirs := make(map[string]struct{})

	for _, p := range paths {
		abs, err := filepath.Abs(p)
		if err != nil {
			_ = w.Close()

			return nil, fmt.Errorf("bad path %q: %w", p, err)
		}

		fw.files[abs] = struct{}{}

		dir := filepath.Dir(abs)
		if _, ok := dirs[dir]; ok {
			continue
		}

		if err := w.Add(dir); err != nil {
			_ = w.Close()

			return nil, fmt.Errorf("watching %s: %w", dir, err)
		}

		dirs[dir] = struct{}{}
	}

	return fw, nil
}

// Run calls onChange, from Run's goroutine, once per burst of writes to a
// watched file. It returns nil when ctx is done.
func (fw *fileWatcher) Run(ctx context.Context, onChange func(path string)) error {
	timers := make(map[string]*time.Timer)
	fired := make(chan string, len(fw.files))

	defer func() {
		for _, t := range timers {
			t.Stop()
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return nil
		case path := <-fired:
			fw.logger.Debug("file changed", zap.String("path", path))
			onChange(path)
		case event, ok := <-fw.w.Events:
			if !ok {
				return nil
			}

			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) {
				continue
			}

			abs, _ := filepath.Abs(event.Name)
			if _, ok := fw.files[abs]; !ok {
				continue
			}

			if t, exists := timers[abs]; exists {
				t.Stop()
			}

			timers[abs] = time.AfterFunc(fw.debounce, func() {
				select {
				case fired <- abs:
				case <-ctx.Done():
				}
			})
		case err, ok := <-fw.w.Errors:
			if !ok {
				return nil
			}

			fw.logger.Warn("watcher error", zap.Error(err))
		}
	}
}

func (fw *fileWatcher) Close() error {
	return fw.w.Close()
}
