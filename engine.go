package appshell

import (
	"net/http"
	"time"
)

// Engine abstracts the embedded browser engine. Rendering and script
// execution live entirely behind this interface; the runtime only
// sequences lifecycle around it.
type Engine interface {
	// NewBrowser constructs an unrealized browser instance. No engine
	// resources are committed until CreateControl is called on it.
	NewBrowser() (Browser, error)

	// CookieStore returns the engine's cookie store. Mutations must be
	// issued on the engine's I/O executor via ScheduleIO.
	CookieStore() CookieStore

	// ScheduleIO runs fn on the engine's I/O-affine execution context.
	ScheduleIO(fn func())
}

// BrowserSetup is handed to the before-create hook so the host can
// override the initial document URL and install a handler for the
// virtual scheme that serves packaged content.
type BrowserSetup struct {
	// URL is the initial document the browser navigates to.
	URL string

	// Scheme is the virtual scheme name ContentHandler is mounted on.
	Scheme string

	// ContentHandler serves packaged application content.
	ContentHandler http.Handler
}

// Browser is a single browser instance owned by the runtime. Handlers
// must be attached before CreateControl; the engine invokes them from
// its own execution contexts.
type Browser interface {
	// OnBeforeCreate registers the hook run once before the underlying
	// control exists. The hook may mutate the setup in place.
	OnBeforeCreate(fn func(setup *BrowserSetup))

	// OnLoadEnd registers the navigation-finished callback. mainFrame
	// is false for subframe loads.
	OnLoadEnd(fn func(mainFrame bool))

	// OnRenderProcessTerminated registers the callback invoked when the
	// browser's render process dies.
	OnRenderProcessTerminated(fn func(reason string))

	// OnRenderProcessStarting registers the callback that supplies the
	// positional bootstrap arguments for every new render process.
	OnRenderProcessStarting(fn func() []string)

	// CreateControl realizes the browser. Called exactly once.
	CreateControl() error

	// Close requests the browser to close. force skips unload handlers.
	Close(force bool)

	// Dispose releases native resources. Idempotent.
	Dispose()
}

// Cookie is the record SetCookie hands to the store.
type Cookie struct {
	Name     string
	Value    string
	Domain   string
	Path     string
	HTTPOnly bool
	Secure   bool
	Expires  time.Time
}

// CookieStore persists cookies for a scope (a store partition such as
// a profile or session name). Set reports whether the store accepted
// the cookie.
type CookieStore interface {
	Set(scope string, cookie Cookie) bool
}

// SessionNotifier delivers OS session-end notifications. The runtime
// subscribes once per application; the callback may arrive on any
// goroutine.
type SessionNotifier interface {
	OnSessionEnding(fn func())
}
