package appshell

import (
	"fmt"
	"path/filepath"

	"github.com/fsnotify/fsnotify"
)

// PackageWatcher observes an application's manifest on disk and reports
// modification. Observation only: the runtime never hot-reloads a
// package, it just surfaces the fact for tooling and diagnostics.
type PackageWatcher struct {
	watcher *fsnotify.Watcher
	logger  Logger
	done    chan struct{}
}

// NewPackageWatcher creates a watcher.
func NewPackageWatcher(logger Logger) (*PackageWatcher, error) {
	if logger == nil {
		logger = NopLogger{}
	}
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create package watcher: %w", err)
	}
	return &PackageWatcher{
		watcher: watcher,
		logger:  logger,
		done:    make(chan struct{}),
	}, nil
}

// Watch starts observing manifestPath and invokes onChange for each
// write or rename of the manifest. onChange runs on the watcher's
// goroutine.
func (w *PackageWatcher) Watch(manifestPath string, onChange func(path string)) error {
	// Watch the directory: editors replace manifests atomically, which
	// a file-level watch would lose track of.
	dir := filepath.Dir(manifestPath)
	if err := w.watcher.Add(dir); err != nil {
		return fmt.Errorf("failed to watch %s: %w", dir, err)
	}

	go func() {
		for {
			select {
			case event, ok := <-w.watcher.Events:
				if !ok {
					return
				}
				if filepath.Clean(event.Name) != filepath.Clean(manifestPath) {
					continue
				}
				if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) == 0 {
					continue
				}
				w.logger.Debug("Package manifest changed", "path", event.Name, "op", event.Op.String())
				onChange(event.Name)
			case err, ok := <-w.watcher.Errors:
				if !ok {
					return
				}
				w.logger.Error("Package watcher error", "error", err)
			case <-w.done:
				return
			}
		}
	}()
	return nil
}

// Close stops the watcher.
func (w *PackageWatcher) Close() error {
	close(w.done)
	return w.watcher.Close()
}

// WatchApplicationPackage relays manifest changes to the application's
// observers as package-updated events. The application is never
// reloaded; listeners decide what to do with the information.
func WatchApplicationPackage(app *Application, watcher *PackageWatcher) error {
	manifest := app.Manifest()
	if manifest == nil {
		return ErrManifestMissing
	}
	return watcher.Watch(manifest.PackageFilePath, func(path string) {
		app.postOrDrop(func() {
			app.notifyObservers(NewLifecycleEvent(EventTypePackageUpdated, app.eventSource(),
				map[string]string{"path": path}, nil))
		})
	})
}
