// Package watch re-runs work when a source file is saved.
package watch

import (
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"

	"github.com/teranos/pyrunner/errors"
)

// DefaultDebounce collapses the burst of events an editor save produces
const DefaultDebounce = 200 * time.Millisecond

// ChangeCallback is called once per debounced change of the watched file
type ChangeCallback func(path string)

// FileWatcher watches one file for changes. The parent directory is
// watched rather than the file itself so editors that save by renaming a
// temp file over the original are still seen.
type FileWatcher struct {
	path           string
	watcher        *fsnotify.Watcher
	onChange       ChangeCallback
	logger         *zap.SugaredLogger
	debouncePeriod time.Duration

	mu            sync.Mutex
	debounceTimer *time.Timer
	started       bool
	stopped       bool
	done          chan struct{}
}

// NewFileWatcher creates a watcher for path. Call Start to begin delivering
// callbacks.
func NewFileWatcher(path string, debounce time.Duration, onChange ChangeCallback, logger *zap.SugaredLogger) (*FileWatcher, error) {
	if onChange == nil {
		return nil, errors.New("change callback is required")
	}
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}
	if debounce <= 0 {
		debounce = DefaultDebounce
	}

	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to resolve %s", path)
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, errors.Wrap(err, "failed to create fsnotify watcher")
	}
	if err := watcher.Add(filepath.Dir(abs)); err != nil {
		watcher.Close()
		return nil, errors.Wrapf(err, "failed to watch directory of %s", path)
	}

	return &FileWatcher{
		path:           abs,
		watcher:        watcher,
		onChange:       onChange,
		logger:         logger,
		debouncePeriod: debounce,
		done:           make(chan struct{}),
	}, nil
}

// Path returns the absolute path being watched
func (fw *FileWatcher) Path() string {
	return fw.path
}

// Start begins watching for changes
func (fw *FileWatcher) Start() {
	fw.mu.Lock()
	defer fw.mu.Unlock()
	if fw.started || fw.stopped {
		return
	}
	fw.started = true
	go fw.watchLoop()
}

func (fw *FileWatcher) watchLoop() {
	defer close(fw.done)
	for {
		select {
		case event, ok := <-fw.watcher.Events:
			if !ok {
				return
			}
			if !fw.relevant(event) {
				continue
			}
			fw.logger.Debugw("Source change detected",
				"file", event.Name,
				"op", event.Op.String())
			fw.scheduleChange()

		case err, ok := <-fw.watcher.Errors:
			if !ok {
				return
			}
			fw.logger.Warnw("File watcher error", "error", err)
		}
	}
}

// relevant reports whether event is a write or create of the watched file
func (fw *FileWatcher) relevant(event fsnotify.Event) bool {
	if event.Op&fsnotify.Write != fsnotify.Write && event.Op&fsnotify.Create != fsnotify.Create {
		return false
	}
	name, err := filepath.Abs(event.Name)
	if err != nil {
		return false
	}
	return name == fw.path && !isEditorArtifact(name)
}

// scheduleChange debounces rapid file changes into a single callback
func (fw *FileWatcher) scheduleChange() {
	fw.mu.Lock()
	defer fw.mu.Unlock()

	if fw.stopped {
		return
	}
	if fw.debounceTimer != nil {
		fw.debounceTimer.Stop()
	}
	fw.debounceTimer = time.AfterFunc(fw.debouncePeriod, func() {
		fw.mu.Lock()
		stopped := fw.stopped
		fw.mu.Unlock()
		if !stopped {
			fw.onChange(fw.path)
		}
	})
}

// Stop stops watching. Pending callbacks are dropped.
func (fw *FileWatcher) Stop() error {
	fw.mu.Lock()
	if fw.stopped {
		fw.mu.Unlock()
		return nil
	}
	fw.stopped = true
	if fw.debounceTimer != nil {
		fw.debounceTimer.Stop()
	}
	started := fw.started
	fw.mu.Unlock()

	err := fw.watcher.Close()
	if started {
		<-fw.done
	}
	return err
}

// isEditorArtifact matches swap and backup files some editors write next
// to the original
func isEditorArtifact(path string) bool {
	base := filepath.Base(path)
	return strings.HasSuffix(base, "~") ||
		strings.HasSuffix(base, ".swp") ||
		strings.HasPrefix(base, ".#")
}
