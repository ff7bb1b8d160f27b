package appshell

// Window is an open application window. The runtime never draws; it
// only tracks existence.
type Window interface {
	ID() string
	Close() error
}

// WindowFactory constructs windows for an application. It is handed to
// the window manager during initialization.
type WindowFactory func(app *Application) (Window, error)

// WindowManager abstracts the desktop window manager. It serializes its
// own event emission, so CreatingWindow and NoWindowsOpen for the same
// moment never race each other.
type WindowManager interface {
	// Initialize wires the manager to an application. eventPage returns
	// the current background browser for windows that need the shared
	// background context; it may return nil.
	Initialize(app *Application, factory WindowFactory, eventPage func() Browser) error

	// Shutdown closes all windows and releases manager resources.
	Shutdown() error

	// AllWindows lists the currently open windows.
	AllWindows() []Window

	OnCreatingWindow(fn func())
	OnCreatedWindow(fn func(w Window, first bool))
	OnNoWindowsOpen(fn func())
}

// WindowCoordinator wraps the window manager for one application and
// relays its signals onto the application's dispatch context. It is
// created lazily, at most once per application.
type WindowCoordinator struct {
	app      *Application
	manager  WindowManager
	detached bool // set during teardown; drops NoWindowsOpen afterwards
}

func newWindowCoordinator(app *Application, manager WindowManager) (*WindowCoordinator, error) {
	wc := &WindowCoordinator{app: app, manager: manager}

	manager.OnCreatingWindow(func() {
		app.postOrDrop(app.onCreatingWindow)
	})
	manager.OnCreatedWindow(func(w Window, first bool) {
		app.postOrDrop(func() {
			app.logger().Debug("Window created", "app", app.Name(), "window", w.ID(), "first", first)
		})
	})
	manager.OnNoWindowsOpen(func() {
		app.postOrDrop(func() {
			if wc.detached {
				return
			}
			// An application with zero open windows terminates itself.
			app.closeOnDispatch(false)
		})
	})

	if err := manager.Initialize(app, app.windowFactory, app.eventPageBrowser); err != nil {
		return nil, err
	}
	return wc, nil
}

// AllWindows lists the application's open windows.
func (wc *WindowCoordinator) AllWindows() []Window {
	return wc.manager.AllWindows()
}

// detachNoWindows stops the zero-window self-close policy. Runs on the
// dispatch context during event-page teardown.
func (wc *WindowCoordinator) detachNoWindows() {
	wc.detached = true
}

// shutdown closes the underlying window manager.
func (wc *WindowCoordinator) shutdown() {
	if err := wc.manager.Shutdown(); err != nil {
		wc.app.logger().Error("Window manager shutdown failed", "app", wc.app.Name(), "error", err)
	}
}
