package policy

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	loggingpkg "github.com/drblury/routeflow/internal/runtime/logging"
)

const defaultDebounce = 250 * time.Millisecond

// Watcher reloads Sources into a Registry whenever a watched file changes.
// A reload that fails leaves the previous policy set active.
type Watcher struct {
	sources  Sources
	registry *Registry
	logger   loggingpkg.ServiceLogger
	debounce time.Duration

	fsw   *fsnotify.Watcher
	files map[string]struct{}
	dirs  map[string]struct{}

	mu      sync.Mutex
	reloads int
}

// NewWatcher watches every path in sources. Directories are watched
// directly; files are watched through their parent directory so editors
// that replace files atomically still trigger a reload.
func NewWatcher(sources Sources, registry *Registry, logger loggingpkg.ServiceLogger) (*Watcher, error) {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}

	w := &Watcher{
		sources:  sources,
		registry: registry,
		logger:   logger,
		debounce: defaultDebounce,
		fsw:      fsw,
		files:    make(map[string]struct{}),
		dirs:     make(map[string]struct{}),
	}

	for _, path := range sources.Paths {
		abs, err := filepath.Abs(path)
		if err != nil {
			fsw.Close()
			return nil, err
		}
		info, err := os.Stat(abs)
		if err != nil {
			fsw.Close()
			return nil, err
		}
		dir := abs
		if !info.IsDir() {
			dir = filepath.Dir(abs)
			w.files[abs] = struct{}{}
		} else {
			w.dirs[abs] = struct{}{}
		}
		if err := fsw.Add(dir); err != nil {
			fsw.Close()
			return nil, err
		}
	}
	return w, nil
}

// Reload loads the sources once and swaps them into the registry.
func (w *Watcher) Reload() error {
	policies, err := w.sources.Load()
	if err != nil {
		w.logger.Error("Policy reload failed, keeping previous set", err, nil)
		return err
	}
	w.registry.Replace(policies)

	w.mu.Lock()
	w.reloads++
	w.mu.Unlock()

	w.logger.Info("Policies reloaded", loggingpkg.LogFields{
		"count":    len(policies),
		"policies": w.registry.Names(),
	})
	return nil
}

// Reloads reports how many reloads succeeded.
func (w *Watcher) Reloads() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.reloads
}

// Run processes file events until ctx is cancelled, then closes the watcher.
func (w *Watcher) Run(ctx context.Context) error {
	defer w.fsw.Close()

	var (
		timer   *time.Timer
		timerCh <-chan time.Time
	)
	for {
		select {
		case <-ctx.Done():
			if timer != nil {
				timer.Stop()
			}
			return nil
		case event, ok := <-w.fsw.Events:
			if !ok {
				return nil
			}
			if !w.relevant(event) {
				continue
			}
			w.logger.Debug("Policy source changed", loggingpkg.LogFields{
				"path": event.Name,
				"op":   event.Op.String(),
			})
			if timer == nil {
				timer = time.NewTimer(w.debounce)
			} else {
				timer.Reset(w.debounce)
			}
			timerCh = timer.C
		case err, ok := <-w.fsw.Errors:
			if !ok {
				return nil
			}
			w.logger.Error("Policy watcher error", err, nil)
		case <-timerCh:
			timerCh = nil
			_ = w.Reload()
		}
	}
}

func (w *Watcher) relevant(event fsnotify.Event) bool {
	if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) &&
		!event.Has(fsnotify.Remove) && !event.Has(fsnotify.Rename) {
		return false
	}
	return w.relevantPath(event.Name)
}

func (w *Watcher) relevantPath(path string) bool {
	name, err := filepath.Abs(path)
	if err != nil {
		return false
	}
	if _, ok := w.files[name]; ok {
		return true
	}
	if _, ok := w.dirs[filepath.Dir(name)]; ok {
		return isPolicyFile(name)
	}
	return false
}
