package appshell

import (
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
)

// Application is one hosted web-application instance. It owns the
// lifecycle state machine, the plugin set, the hidden event page, and
// the window coordinator. All state mutation happens on the
// application's dispatch context; public methods marshal onto it.
type Application struct {
	id     string
	host   *Host
	pkg    *AppPackage
	engine Engine

	dispatch *Dispatcher
	timers   *TimeoutGuard

	state atomic.Int32 // ApplicationState, written on the dispatch context only

	// Construction-time collaborators.
	kernelPlugins     []Plugin
	loader            PluginLoader
	windowManager     WindowManager
	windowFactory     WindowFactory
	notifier          SessionNotifier
	renderInitMessage string

	// Plugin set: append-only during bootstrap, sealed once running.
	plugins       []Plugin
	pluginNames   map[string]bool
	pluginsSealed bool

	// Lazily created, memoized, reference-identity stable.
	router    *PluginRouter
	eventPage *EventPageSession
	windows   *WindowCoordinator

	observers   []*observerRegistration
	closedFired bool
	disposed    bool
	disposeOnce sync.Once

	// SetCookie serialization: the completion signal is reused across
	// calls, guarded by cookieMu so overlapping calls cannot steal each
	// other's confirmation.
	cookieMu   sync.Mutex
	cookieDone chan bool
}

// ApplicationOption configures an Application at construction.
type ApplicationOption func(*Application)

// WithKernelPlugins supplies the built-in capability plugins that are
// always loaded regardless of the manifest.
func WithKernelPlugins(plugins ...Plugin) ApplicationOption {
	return func(app *Application) {
		app.kernelPlugins = append(app.kernelPlugins, plugins...)
	}
}

// WithPluginLoader supplies the loader used to resolve in-process
// manifest plugins.
func WithPluginLoader(loader PluginLoader) ApplicationOption {
	return func(app *Application) {
		app.loader = loader
	}
}

// WithWindowManager supplies the desktop window manager backing the
// lazily created window coordinator.
func WithWindowManager(manager WindowManager) ApplicationOption {
	return func(app *Application) {
		app.windowManager = manager
	}
}

// WithWindowFactory supplies the factory handed to the window manager.
func WithWindowFactory(factory WindowFactory) ApplicationOption {
	return func(app *Application) {
		app.windowFactory = factory
	}
}

// WithSessionNotifier subscribes the application to OS session-end
// notifications; a session end forces an unconditional close.
func WithSessionNotifier(notifier SessionNotifier) ApplicationOption {
	return func(app *Application) {
		app.notifier = notifier
	}
}

// WithRenderInitMessage sets the plugin-init message passed as the
// first positional render-process bootstrap argument.
func WithRenderInitMessage(message string) ApplicationOption {
	return func(app *Application) {
		app.renderInitMessage = message
	}
}

// NewApplication creates an application instance attached to a host
// context, an unpacked package, and a browser engine.
func NewApplication(host *Host, pkg *AppPackage, engine Engine, opts ...ApplicationOption) *Application {
	app := &Application{
		id:          uuid.NewString(),
		host:        host,
		pkg:         pkg,
		engine:      engine,
		dispatch:    NewDispatcher(),
		timers:      &TimeoutGuard{},
		pluginNames: make(map[string]bool),
		cookieDone:  make(chan bool, 1),
	}
	app.state.Store(int32(StateCreated))
	for _, opt := range opts {
		opt(app)
	}

	if app.notifier != nil {
		app.notifier.OnSessionEnding(func() {
			app.postOrDrop(func() { app.closeOnDispatch(true) })
		})
	}
	return app
}

// ID returns the application's instance identifier.
func (app *Application) ID() string {
	return app.id
}

// Name returns the manifest name, or the instance ID before a package
// is attached.
func (app *Application) Name() string {
	if manifest := app.Manifest(); manifest != nil {
		return manifest.Name
	}
	return app.id
}

// Manifest returns the application's manifest, nil when the package or
// manifest is missing.
func (app *Application) Manifest() *Manifest {
	if app.pkg == nil {
		return nil
	}
	return app.pkg.Manifest
}

// Package returns the application package.
func (app *Application) Package() *AppPackage {
	return app.pkg
}

// State returns the current lifecycle state. Readable from any
// goroutine.
func (app *Application) State() ApplicationState {
	return ApplicationState(app.state.Load())
}

func (app *Application) logger() Logger {
	return app.host.Logger()
}

func (app *Application) eventSource() string {
	return fmt.Sprintf("appshell/application/%s", app.Name())
}

// postOrDrop marshals fn onto the dispatch context, dropping late
// callbacks that arrive after disposal.
func (app *Application) postOrDrop(fn func()) {
	if err := app.dispatch.Post(fn); err != nil {
		app.logger().Debug("Dropped callback", "app", app.Name(), "error", ErrApplicationDisposed)
	}
}

// Launch boots the application: it verifies the package, appends the
// built-in runtime plugin, transitions to the launched state, and
// starts event-page creation. A missing package or manifest is a
// recoverable no-op: it is logged and the state stays created. A
// bootstrap failure is caught and logged; the application is left
// launched without a browser, degraded but alive.
func (app *Application) Launch() {
	_ = app.dispatch.Invoke(app.launchOnDispatch)
}

func (app *Application) launchOnDispatch() {
	if app.State() != StateCreated {
		app.logger().Debug("Launch ignored", "app", app.Name(), "state", app.State())
		return
	}
	if app.pkg == nil {
		app.logger().Error("Cannot launch application", "error", ErrPackageMissing)
		return
	}
	if app.pkg.Manifest == nil {
		app.logger().Error("Cannot launch application", "package", app.pkg.Dir, "error", ErrManifestMissing)
		return
	}

	app.host.Metrics().Launches.Inc()

	runtime := &runtimePlugin{}
	if err := runtime.Initialize(app); err != nil {
		app.logger().Error("Runtime plugin initialization failed", "app", app.Name(), "error", err)
	}
	if err := app.addPlugin(runtime); err != nil {
		app.logger().Error("Failed to attach runtime plugin", "app", app.Name(), "error", err)
	}

	app.setState(StateLaunched)

	// Wire the window manager before the event page exists so window
	// signals are never lost during bring-up.
	if app.windowManager != nil {
		app.windowsOnDispatch()
	}

	// Event-page creation failures stop the launch sequence here
	// without crashing the process or rolling the state back.
	func() {
		defer func() {
			if rec := recover(); rec != nil {
				app.logger().Error("Event page creation panicked", "app", app.Name(), "error", panicError(rec))
			}
		}()
		session := app.eventPageOnDispatch()
		if err := session.create(); err != nil {
			app.logger().Error("Event page creation failed", "app", app.Name(), "error", err)
		}
	}()
}

// Close drives the application toward its terminal state. Running
// applications get the graceful path: the Exiting event, a bounded
// synchronous delay for observers, the unload-grace timer, then forced
// event-page teardown. Applications that never reached running skip the
// grace entirely. Close is idempotent: further calls while closing or
// closed are no-ops.
func (app *Application) Close() {
	_ = app.dispatch.Invoke(func() { app.closeOnDispatch(false) })
}

// closeOnDispatch runs the close branches on the dispatch context.
// sessionEnding is carried into the Exiting event payload.
func (app *Application) closeOnDispatch(sessionEnding bool) {
	if app.State() >= StateClosing {
		return
	}

	switch {
	case app.State() >= StateRunning:
		app.setState(StateClosing)
		app.timers.ArmUnload(app.host.Settings().UnloadGrace, func() {
			app.postOrDrop(app.forceCloseEventPage)
		})
		app.notifyObservers(NewLifecycleEvent(EventTypeExiting, app.eventSource(),
			ExitingData{SessionEnding: sessionEnding}, nil))
		// Give Exiting observers a bounded window to react before the
		// event page goes away underneath them.
		time.Sleep(app.host.Settings().ExitingNotifyDelay)
		app.forceCloseEventPage()

	case app.eventPage != nil:
		// Never reached running: nothing user-visible to notify.
		app.setState(StateClosing)
		app.forceCloseEventPage()

	default:
		app.setState(StateClosed)
		app.disposeOnDispatch()
	}
}

func (app *Application) forceCloseEventPage() {
	if app.eventPage != nil {
		app.eventPage.close()
	}
}

// Dispose converges the application to closed and releases the
// dispatch context. Safe to call multiple times and after Close; the
// Closed event still fires at most once.
func (app *Application) Dispose() {
	app.disposeOnce.Do(func() {
		_ = app.dispatch.Invoke(func() {
			if app.State() != StateClosed {
				app.closeOnDispatch(false)
			}
			app.disposeOnDispatch()
		})
		app.dispatch.Close()
	})
}

// disposeOnDispatch releases per-application resources. Idempotent.
func (app *Application) disposeOnDispatch() {
	if app.disposed {
		return
	}
	app.disposed = true
	app.timers.Dispose()
	app.host.unregisterRunning(app)
}

// setState mutates the lifecycle state and runs entry side effects.
// Runs on the dispatch context only.
func (app *Application) setState(next ApplicationState) {
	prev := app.State()
	if prev == next {
		return
	}
	app.state.Store(int32(next))
	app.logger().Debug("Application state changed", "app", app.Name(), "from", prev, "to", next)

	switch next {
	case StateRunning:
		app.pluginsSealed = true
		app.host.registerRunning(app)
	case StateClosed:
		app.onClosed()
	}
}

// onClosed fires the Closed event once and runs the plugin shutdown
// pass. Every plugin failure is caught and logged with the plugin's
// identity; shutdown continues for the remaining plugins.
func (app *Application) onClosed() {
	if app.closedFired {
		return
	}
	app.closedFired = true

	app.host.Metrics().Closes.Inc()
	app.notifyObservers(NewLifecycleEvent(EventTypeClosed, app.eventSource(), nil, nil))

	for _, plugin := range app.plugins {
		err := func() (err error) {
			defer func() {
				if rec := recover(); rec != nil {
					err = panicError(rec)
				}
			}()
			return plugin.Shutdown()
		}()
		if err != nil {
			app.logger().Error("Plugin shutdown failed", "app", app.Name(), "plugin", plugin.Name(), "error", err)
		}
	}
	app.host.unregisterRunning(app)
	app.logger().Info("Application closed", "app", app.Name())
}

// onCreatingWindow cancels the launch timeout and promotes the state to
// running exactly once; later firings are no-ops for the transition.
func (app *Application) onCreatingWindow() {
	app.timers.CancelLaunch()
	if app.State() < StateRunning {
		app.setState(StateRunning)
	}
}

// onLaunchTimeout closes an application that failed to produce a window
// in time.
func (app *Application) onLaunchTimeout() {
	app.host.Metrics().LaunchTimeouts.Inc()
	app.logger().Warn("Launch timed out before first window", "app", app.Name())
	app.closeOnDispatch(false)
}

// addPlugin appends a plugin to the ordered set. The set is sealed once
// the application is running.
func (app *Application) addPlugin(plugin Plugin) error {
	if plugin == nil {
		return ErrPluginNil
	}
	if plugin.Name() == "" {
		return ErrPluginNameEmpty
	}
	if app.pluginsSealed {
		return ErrPluginSetSealed
	}
	if app.pluginNames[plugin.Name()] {
		return fmt.Errorf("%w: %s", ErrPluginAlreadyPresent, plugin.Name())
	}
	app.pluginNames[plugin.Name()] = true
	app.plugins = append(app.plugins, plugin)
	return nil
}

// Plugins returns a snapshot of the plugin set in attachment order.
func (app *Application) Plugins() []Plugin {
	var snapshot []Plugin
	_ = app.dispatch.Invoke(func() {
		snapshot = append(snapshot, app.plugins...)
	})
	return snapshot
}

// Router returns the plugin router, bootstrapping it on first access.
// The same instance is returned on every call.
func (app *Application) Router() *PluginRouter {
	var router *PluginRouter
	_ = app.dispatch.Invoke(func() {
		router = app.routerOnDispatch()
	})
	return router
}

func (app *Application) routerOnDispatch() *PluginRouter {
	if app.router == nil {
		app.router = newPluginRouter(app)
	}
	return app.router
}

// EventPage returns the event-page session, creating the session object
// (not the browser) on first access.
func (app *Application) EventPage() *EventPageSession {
	var session *EventPageSession
	_ = app.dispatch.Invoke(func() {
		session = app.eventPageOnDispatch()
	})
	return session
}

func (app *Application) eventPageOnDispatch() *EventPageSession {
	if app.eventPage == nil {
		app.eventPage = newEventPageSession(app)
	}
	return app.eventPage
}

// eventPageBrowser is the accessor handed to the window manager so that
// windows can share the background context. The manager may call it
// from any goroutine, so the read is marshaled onto the dispatch
// context. Returns nil before creation and after disposal.
func (app *Application) eventPageBrowser() Browser {
	var browser Browser
	_ = app.dispatch.Invoke(func() {
		if app.eventPage != nil {
			browser = app.eventPage.Browser()
		}
	})
	return browser
}

// Windows returns the window coordinator, constructing and wiring it on
// first access. Returns nil when no window manager was configured.
func (app *Application) Windows() *WindowCoordinator {
	var coordinator *WindowCoordinator
	_ = app.dispatch.Invoke(func() {
		coordinator = app.windowsOnDispatch()
	})
	return coordinator
}

func (app *Application) windowsOnDispatch() *WindowCoordinator {
	if app.windows != nil {
		return app.windows
	}
	if app.windowManager == nil {
		app.logger().Error("Cannot create window coordinator", "app", app.Name(), "error", ErrWindowManagerMissing)
		return nil
	}
	coordinator, err := newWindowCoordinator(app, app.windowManager)
	if err != nil {
		app.logger().Error("Window coordinator initialization failed", "app", app.Name(), "error", err)
		return nil
	}
	app.windows = coordinator
	return coordinator
}

// RegisterObserver subscribes an observer to lifecycle events,
// optionally filtered by event type. Delivery order is registration
// order.
func (app *Application) RegisterObserver(observer Observer, eventTypes ...string) error {
	if observer == nil {
		return ErrObserverNil
	}
	typeSet := make(map[string]bool, len(eventTypes))
	for _, eventType := range eventTypes {
		typeSet[eventType] = true
	}
	return app.dispatch.Invoke(func() {
		app.observers = append(app.observers, &observerRegistration{
			observer:     observer,
			eventTypes:   typeSet,
			registeredAt: time.Now(),
		})
	})
}

// UnregisterObserver removes an observer. Idempotent: unknown observers
// are ignored.
func (app *Application) UnregisterObserver(observer Observer) error {
	if observer == nil {
		return ErrObserverNil
	}
	return app.dispatch.Invoke(func() {
		for i, registration := range app.observers {
			if registration.observer.ObserverID() == observer.ObserverID() {
				app.observers = append(app.observers[:i], app.observers[i+1:]...)
				return
			}
		}
	})
}

// GetObservers returns information about currently registered
// observers, in registration order.
func (app *Application) GetObservers() []ObserverInfo {
	var info []ObserverInfo
	_ = app.dispatch.Invoke(func() {
		info = make([]ObserverInfo, 0, len(app.observers))
		for _, registration := range app.observers {
			eventTypes := make([]string, 0, len(registration.eventTypes))
			for eventType := range registration.eventTypes {
				eventTypes = append(eventTypes, eventType)
			}
			info = append(info, ObserverInfo{
				ID:           registration.observer.ObserverID(),
				EventTypes:   eventTypes,
				RegisteredAt: registration.registeredAt,
			})
		}
	})
	return info
}

// notifyObservers delivers an event synchronously, in registration
// order, on the dispatch context. Observer errors and panics are logged
// and never interrupt delivery.
func (app *Application) notifyObservers(event CloudEvent) {
	if err := ValidateLifecycleEvent(event); err != nil {
		app.logger().Error("Refusing to deliver invalid event", "app", app.Name(), "type", event.Type(), "error", err)
		return
	}
	for _, registration := range app.observers {
		if !registration.wants(event.Type()) {
			continue
		}
		func() {
			defer func() {
				if rec := recover(); rec != nil {
					app.logger().Error("Observer panicked", "app", app.Name(),
						"observer", registration.observer.ObserverID(), "event", event.Type(), "error", panicError(rec))
				}
			}()
			if err := registration.observer.OnEvent(observerContext(), event); err != nil {
				app.logger().Error("Observer error", "app", app.Name(),
					"observer", registration.observer.ObserverID(), "event", event.Type(), "error", err)
			}
		}()
	}
}

// OnProtocolInvoke relays an external protocol activation to observers.
// Pure event relay; no state mutation.
func (app *Application) OnProtocolInvoke(uri string) {
	_ = app.dispatch.Invoke(func() {
		app.notifyObservers(NewLifecycleEvent(EventTypeProtocolInvoke, app.eventSource(),
			ProtocolInvokeData{URI: uri}, nil))
	})
}

// SetCookie writes a cookie through the engine's store. The mutation
// runs on the engine's I/O executor while the caller blocks, bounded by
// the configured cookie wait timeout. Returns the store's confirmation,
// or false on timeout or when no store is available. Calls on the same
// application are serialized.
func (app *Application) SetCookie(name, value, domain, path string, httpOnly, secure bool, expires time.Time, scope string) bool {
	store := app.engine.CookieStore()
	if store == nil {
		app.logger().Error("Cannot set cookie", "app", app.Name(), "error", ErrCookieStoreMissing)
		return false
	}

	app.cookieMu.Lock()
	defer app.cookieMu.Unlock()

	// Reset the reusable completion signal: drop any stale confirmation
	// left behind by a timed-out predecessor.
	select {
	case <-app.cookieDone:
	default:
	}

	cookie := Cookie{
		Name:     name,
		Value:    value,
		Domain:   domain,
		Path:     path,
		HTTPOnly: httpOnly,
		Secure:   secure,
		Expires:  expires,
	}
	done := app.cookieDone
	app.engine.ScheduleIO(func() {
		ok := store.Set(scope, cookie)
		select {
		case done <- ok:
		default:
		}
	})

	select {
	case ok := <-done:
		return ok
	case <-time.After(app.host.Settings().CookieWaitTimeout):
		app.logger().Warn("Cookie store did not confirm in time", "app", app.Name(), "cookie", name)
		return false
	}
}

// runtimePlugin is the built-in capability module appended to every
// launched application. It gives plugins access to their owning
// application and host.
type runtimePlugin struct {
	app *Application
}

func (p *runtimePlugin) Name() string {
	return "appshell.runtime"
}

func (p *runtimePlugin) Initialize(app *Application) error {
	p.app = app
	return nil
}

func (p *runtimePlugin) Shutdown() error {
	p.app = nil
	return nil
}

// Host returns the host context the owning application runs in.
func (p *runtimePlugin) Host() *Host {
	if p.app == nil {
		return nil
	}
	return p.app.host
}

func panicError(rec any) error {
	if err, ok := rec.(error); ok {
		return fmt.Errorf("panic: %w", err)
	}
	return fmt.Errorf("panic: %v", rec)
}
