package batch

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"cvmatch/internal/errors"

	"github.com/fsnotify/fsnotify"
)

// DefaultDebounce is the quiet period after the last event before files
// are processed
const DefaultDebounce = 2 * time.Second

// DirWatcher watches a directory and reports files that were created or
// changed, once events have been quiet for the debounce delay
type DirWatcher struct {
	mu sync.Mutex

	dir    string
	accept func(name string) bool

	// File metadata
	lastModTime map[string]time.Time
	pending     map[string]struct{}

	// Watcher components
	fsWatcher     *fsnotify.Watcher
	debounceDelay time.Duration
	debounceTimer *time.Timer

	// Control channels
	stopChan  chan struct{}
	readyChan chan struct{}
	done      chan struct{}

	onChange func(files []string)
	logger   *errors.Logger

	running bool
}

// NewDirWatcher creates a watcher for dir. accept filters file names and
// onChange receives the changed files in name order.
func NewDirWatcher(dir string, debounceDelay time.Duration, accept func(string) bool, onChange func([]string), logger *errors.Logger) *DirWatcher {
	if debounceDelay <= 0 {
		debounceDelay = DefaultDebounce
	}
	if accept == nil {
		accept = func(string) bool { return true }
	}

	return &DirWatcher{
		dir:           dir,
		accept:        accept,
		lastModTime:   make(map[string]time.Time),
		pending:       make(map[string]struct{}),
		debounceDelay: debounceDelay,
		stopChan:      make(chan struct{}),
		readyChan:     make(chan struct{}, 1), // Buffered to prevent blocking
		done:          make(chan struct{}),
		onChange:      onChange,
		logger:        errors.OrNop(logger),
	}
}

// Start begins watching the directory. Files already present count as seen.
func (dw *DirWatcher) Start() error {
	dw.mu.Lock()
	defer dw.mu.Unlock()

	if dw.running {
		return fmt.Errorf("directory watcher is already running")
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create file watcher: %w", err)
	}
	if err := watcher.Add(dw.dir); err != nil {
		if closeErr := watcher.Close(); closeErr != nil {
			dw.logger.LogError(closeErr, "Failed to close file watcher during cleanup")
		}
		return fmt.Errorf("failed to watch directory %s: %w", dw.dir, err)
	}
	dw.fsWatcher = watcher
	dw.recordExisting()

	dw.running = true
	go dw.watchLoop()

	dw.logger.Info("Directory watcher started",
		"dir", dw.dir,
		"debounce_delay", dw.debounceDelay)
	return nil
}

// Stop stops the watcher and waits for a running callback to return
func (dw *DirWatcher) Stop() error {
	dw.mu.Lock()
	if !dw.running {
		dw.mu.Unlock()
		return nil
	}
	close(dw.stopChan)
	if dw.debounceTimer != nil {
		dw.debounceTimer.Stop()
	}
	dw.running = false
	dw.mu.Unlock()

	<-dw.done

	if err := dw.fsWatcher.Close(); err != nil {
		dw.logger.LogError(err, "Failed to close file system watcher")
		return err
	}

	dw.logger.Info("Directory watcher stopped", "dir", dw.dir)
	return nil
}

// recordExisting stores the modification times of files already present
func (dw *DirWatcher) recordExisting() {
	entries, err := os.ReadDir(dw.dir)
	if err != nil {
		return
	}
	for _, entry := range entries {
		if entry.IsDir() || !dw.accept(entry.Name()) {
			continue
		}
		if info, err := entry.Info(); err == nil {
			dw.lastModTime[filepath.Join(dw.dir, entry.Name())] = info.ModTime()
		}
	}
}

// watchLoop is the main event loop for file watching
func (dw *DirWatcher) watchLoop() {
	defer close(dw.done)

	for {
		select {
		case event, ok := <-dw.fsWatcher.Events:
			if !ok {
				return
			}
			if dw.shouldProcessEvent(event) {
				dw.schedule(event.Name)
			}

		case err, ok := <-dw.fsWatcher.Errors:
			if !ok {
				return
			}
			dw.logger.LogError(err, "File watcher error", "dir", dw.dir)

		case <-dw.readyChan:
			if files := dw.takeChanged(); len(files) > 0 {
				dw.onChange(files)
			}

		case <-dw.stopChan:
			return
		}
	}
}

// shouldProcessEvent keeps writes, creates and renames of accepted files
func (dw *DirWatcher) shouldProcessEvent(event fsnotify.Event) bool {
	if !dw.accept(filepath.Base(event.Name)) {
		return false
	}
	return event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) != 0
}

// schedule marks a file pending and restarts the debounce timer
func (dw *DirWatcher) schedule(name string) {
	dw.mu.Lock()
	defer dw.mu.Unlock()

	dw.pending[name] = struct{}{}

	if dw.debounceTimer != nil {
		dw.debounceTimer.Stop()
	}
	dw.debounceTimer = time.AfterFunc(dw.debounceDelay, func() {
		select {
		case dw.readyChan <- struct{}{}:
		default:
			// Already signalled
		}
	})
}

// takeChanged drains the pending set, keeping files that exist and whose
// modification time moved since they were last seen
func (dw *DirWatcher) takeChanged() []string {
	dw.mu.Lock()
	defer dw.mu.Unlock()

	var changed []string
	for name := range dw.pending {
		delete(dw.pending, name)

		stat, err := os.Stat(name)
		if err != nil || stat.IsDir() {
			continue
		}
		lastMod, seen := dw.lastModTime[name]
		if !seen || stat.ModTime().After(lastMod) {
			dw.lastModTime[name] = stat.ModTime()
			changed = append(changed, name)
		}
	}
	sort.Strings(changed)
	return changed
}

// Watch processes files as they appear in dir until ctx is cancelled.
// onOutcome, when set, receives every outcome.
func (p *Processor) Watch(ctx context.Context, dir string, debounce time.Duration, onOutcome func(Outcome)) error {
	watcher := NewDirWatcher(dir, debounce, p.Accepts, func(files []string) {
		for _, file := range files {
			if ctx.Err() != nil {
				return
			}
			outcome := p.ProcessFile(ctx, file)
			if onOutcome != nil {
				onOutcome(outcome)
			}
		}
	}, p.logger)

	if err := watcher.Start(); err != nil {
		return err
	}

	<-ctx.Done()
	return watcher.Stop()
}
