package appshell

import (
	"fmt"
)

// backgroundDocument is the synthesized document the event page
// navigates to; the packaged-content handler generates it from the
// manifest's background scripts.
const backgroundDocument = "_background.html"

// virtualScheme is the scheme packaged content is served on.
const virtualScheme = "app"

// EventPageSession owns the single hidden browser instance hosting the
// application's background logic. Created at most once per application.
type EventPageSession struct {
	app     *Application
	browser Browser

	schemeInstalled bool
	detached        bool // teardown in progress: drop engine callbacks
	closed          bool
}

func newEventPageSession(app *Application) *EventPageSession {
	return &EventPageSession{app: app}
}

// create constructs the browser, wires its callbacks, and issues the
// single CreateControl call. Runs on the dispatch context.
func (s *EventPageSession) create() error {
	app := s.app

	browser, err := app.engine.NewBrowser()
	if err != nil {
		return fmt.Errorf("failed to construct event page browser: %w", err)
	}
	s.browser = browser

	browser.OnBeforeCreate(s.onBeforeCreate)
	browser.OnLoadEnd(func(mainFrame bool) {
		app.postOrDrop(func() { s.onLoadEnd(mainFrame) })
	})
	browser.OnRenderProcessTerminated(func(reason string) {
		app.postOrDrop(func() { s.onRenderProcessTerminated(reason) })
	})
	browser.OnRenderProcessStarting(s.renderProcessArgs)

	if err := browser.CreateControl(); err != nil {
		return fmt.Errorf("failed to create event page control: %w", err)
	}
	return nil
}

// onBeforeCreate installs the virtual-scheme handler (once) and
// supplies the initial document URL. Failures here degrade the launch
// but never abort it; the engine proceeds with whatever setup holds.
func (s *EventPageSession) onBeforeCreate(setup *BrowserSetup) {
	app := s.app
	defer func() {
		if rec := recover(); rec != nil {
			app.logger().Error("Event page setup hook failed", "app", app.Name(), "panic", rec)
		}
	}()

	if !s.schemeInstalled {
		setup.Scheme = virtualScheme
		setup.ContentHandler = NewPackageContentHandler(app.pkg.Dir, app.Manifest())
		s.schemeInstalled = true
	}
	setup.URL = s.backgroundURL()
}

// backgroundURL synthesizes the event page's document URL from the
// manifest.
func (s *EventPageSession) backgroundURL() string {
	return fmt.Sprintf("%s://%s/%s", virtualScheme, s.app.Manifest().Name, backgroundDocument)
}

// onLoadEnd marks the transition from "browser loading" to "awaiting
// first window": it arms the launch timeout and raises Launched.
// Subframe loads are ignored. Runs on the dispatch context.
func (s *EventPageSession) onLoadEnd(mainFrame bool) {
	if !mainFrame || s.detached {
		return
	}
	app := s.app
	app.timers.ArmLaunch(app.host.Settings().StartupTimeout, func() {
		app.postOrDrop(app.onLaunchTimeout)
	})
	app.notifyObservers(NewLifecycleEvent(EventTypeLaunched, app.eventSource(), nil, nil))
	app.logger().Info("Application launched", "app", app.Name())
}

// onRenderProcessTerminated is observed but intentionally policy-free:
// no automatic restart is attempted.
func (s *EventPageSession) onRenderProcessTerminated(reason string) {
	if s.detached {
		return
	}
	s.app.logger().Warn("Event page render process terminated", "app", s.app.Name(), "reason", reason)
}

// renderProcessArgs runs on the engine's execution context; the plugin
// router lives on the dispatch context, so the call is marshaled over.
func (s *EventPageSession) renderProcessArgs() []string {
	var args []string
	err := s.app.dispatch.Invoke(func() {
		args = s.app.routerOnDispatch().RenderProcessArgs()
	})
	if err != nil {
		return nil
	}
	return args
}

// Browser exposes the underlying browser, nil before create.
func (s *EventPageSession) Browser() Browser {
	return s.browser
}

// close tears the event page down: detach the zero-window policy, shut
// down the window coordinator, cancel the unload timer, detach engine
// callbacks, force-close the browser, then finalize. Idempotent. Runs
// on the dispatch context.
func (s *EventPageSession) close() {
	if s.closed {
		return
	}
	s.closed = true
	app := s.app

	if app.windows != nil {
		app.windows.detachNoWindows()
		app.windows.shutdown()
	}
	app.timers.CancelUnload()
	s.detached = true

	if s.browser != nil {
		s.browser.Close(true)
	}
	s.finalize()
}

// finalize disposes the browser and drives the application to its
// terminal state if another path has not already done so.
func (s *EventPageSession) finalize() {
	app := s.app
	if s.browser != nil {
		s.browser.Dispose()
		s.browser = nil
	}
	if app.State() != StateClosed {
		app.setState(StateClosed)
		app.disposeOnDispatch()
	}
}
