package importance

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"
)

// Watcher watches a corpus directory for task file changes.
type Watcher struct {
	dir      string
	debounce time.Duration
	onChange func()
	logger   *slog.Logger
}

// NewWatcher creates a watcher that calls onChange once per burst of changes.
func NewWatcher(dir string, debounce time.Duration, onChange func(), logger *slog.Logger) *Watcher {
	if logger == nil {
		logger = slog.Default()
	}
	return &Watcher{
		dir:      dir,
		debounce: debounce,
		onChange: onChange,
		logger:   logger,
	}
}

// Watch blocks until ctx is cancelled, firing onChange after each debounced burst.
func (w *Watcher) Watch(ctx context.Context) error {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("creating watcher: %w", err)
	}
	defer func() { _ = fw.Close() }()

	if err := fw.Add(w.dir); err != nil {
		return fmt.Errorf("watching %s: %w", w.dir, err)
	}

	// Rebuilds run on this goroutine, so a slow rebuild delays the next one
	// instead of overlapping it.
	timer := time.NewTimer(w.debounce)
	timer.Stop()
	defer timer.Stop()

	pending := 0
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case <-timer.C:
			w.logger.Debug("corpus settled", "changes", pending)
			pending = 0
			w.onChange()

		case event, ok := <-fw.Events:
			if !ok {
				return nil
			}
			if !isCorpusEvent(event) {
				continue
			}
			w.logger.Debug("corpus change detected", "file", event.Name, "op", event.Op.String())
			pending++
			timer.Reset(w.debounce)

		case err, ok := <-fw.Errors:
			if !ok {
				return nil
			}
			w.logger.Error("watcher error", "error", err)
		}
	}
}

// isCorpusEvent reports whether event touches a visible task JSON file.
func isCorpusEvent(event fsnotify.Event) bool {
	if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) &&
		!event.Has(fsnotify.Remove) && !event.Has(fsnotify.Rename) {
		return false
	}
	name := filepath.Base(event.Name)
	if strings.HasPrefix(name, ".") {
		return false
	}
	return filepath.Ext(name) == ".json"
}

// Watch rebuilds the table whenever the corpus changes until ctx is cancelled.
// onRebuild receives each new table.
func (s *Store) Watch(ctx context.Context, debounce time.Duration, onRebuild func(*Table)) error {
	w := NewWatcher(s.corpusDir, debounce, func() {
		t, err := s.Rebuild()
		if err != nil {
			s.logger.Error("rebuild failed", "error", err)
			return
		}
		if onRebuild != nil {
			onRebuild(t)
		}
	}, s.logger)
	return w.Watch(ctx)
}
