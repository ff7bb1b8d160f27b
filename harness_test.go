package appshell

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	cloudevents "github.com/cloudevents/sdk-go/v2"
	"github.com/stretchr/testify/require"
)

// testSettings keeps every timing knob short so lifecycle tests run in
// milliseconds.
func testSettings() HostSettings {
	return HostSettings{
		StartupTimeout:      60 * time.Millisecond,
		UnloadGrace:         40 * time.Millisecond,
		ExitingNotifyDelay:  10 * time.Millisecond,
		CookieWaitTimeout:   150 * time.Millisecond,
		CookiePurgeSchedule: "",
	}
}

// recordingLogger collects log entries for assertions on log-and-carry-on paths.
type recordingLogger struct {
	mu      sync.Mutex
	entries []string
}

func (l *recordingLogger) record(level, msg string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.entries = append(l.entries, level+": "+msg)
}

func (l *recordingLogger) Info(msg string, _ ...any)  { l.record("info", msg) }
func (l *recordingLogger) Error(msg string, _ ...any) { l.record("error", msg) }
func (l *recordingLogger) Warn(msg string, _ ...any)  { l.record("warn", msg) }
func (l *recordingLogger) Debug(msg string, _ ...any) { l.record("debug", msg) }

func (l *recordingLogger) contains(fragment string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	for _, entry := range l.entries {
		if strings.Contains(entry, fragment) {
			return true
		}
	}
	return false
}

// fakeBrowser is a scripted browser double.
type fakeBrowser struct {
	mu sync.Mutex

	beforeCreate     func(*BrowserSetup)
	loadEnd          func(bool)
	renderTerminated func(string)
	renderStarting   func() []string

	setup       BrowserSetup
	created     bool
	closed      bool
	forceClosed bool
	disposed    bool
	createErr   error
}

func (b *fakeBrowser) OnBeforeCreate(fn func(*BrowserSetup)) { b.beforeCreate = fn }
func (b *fakeBrowser) OnLoadEnd(fn func(bool))               { b.loadEnd = fn }
func (b *fakeBrowser) OnRenderProcessTerminated(fn func(string)) {
	b.renderTerminated = fn
}
func (b *fakeBrowser) OnRenderProcessStarting(fn func() []string) {
	b.renderStarting = fn
}

func (b *fakeBrowser) CreateControl() error {
	if b.createErr != nil {
		return b.createErr
	}
	if b.beforeCreate != nil {
		b.beforeCreate(&b.setup)
	}
	b.mu.Lock()
	b.created = true
	b.mu.Unlock()
	return nil
}

func (b *fakeBrowser) Close(force bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.closed = true
	b.forceClosed = force
}

func (b *fakeBrowser) Dispose() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.disposed = true
}

func (b *fakeBrowser) isForceClosed() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.closed && b.forceClosed
}

// finishLoad simulates the engine reporting navigation completion.
func (b *fakeBrowser) finishLoad(mainFrame bool) {
	if b.loadEnd != nil {
		b.loadEnd(mainFrame)
	}
}

// fakeEngine hands out fake browsers and runs I/O work on its own
// goroutine like a real engine executor would.
type fakeEngine struct {
	mu        sync.Mutex
	browsers  []*fakeBrowser
	store     CookieStore
	stallIO   bool  // swallow ScheduleIO work to simulate a wedged executor
	createErr error // propagated to CreateControl of new browsers
}

func (e *fakeEngine) NewBrowser() (Browser, error) {
	b := &fakeBrowser{createErr: e.createErr}
	e.mu.Lock()
	e.browsers = append(e.browsers, b)
	e.mu.Unlock()
	return b, nil
}

func (e *fakeEngine) CookieStore() CookieStore { return e.store }

func (e *fakeEngine) ScheduleIO(fn func()) {
	if e.stallIO {
		return
	}
	go fn()
}

// lastBrowser returns the most recently created browser, nil when the
// engine was never asked for one.
func (e *fakeEngine) lastBrowser() *fakeBrowser {
	e.mu.Lock()
	defer e.mu.Unlock()
	if len(e.browsers) == 0 {
		return nil
	}
	return e.browsers[len(e.browsers)-1]
}

func (e *fakeEngine) browser(t *testing.T) *fakeBrowser {
	t.Helper()
	e.mu.Lock()
	defer e.mu.Unlock()
	require.NotEmpty(t, e.browsers, "no browser created")
	return e.browsers[len(e.browsers)-1]
}

// fakeWindowManager records wiring and lets tests fire window signals.
type fakeWindowManager struct {
	mu          sync.Mutex
	initialized bool
	shutdownRun bool
	factory     WindowFactory
	eventPage   func() Browser

	creating  func()
	created   func(Window, bool)
	noWindows func()
}

func (m *fakeWindowManager) Initialize(app *Application, factory WindowFactory, eventPage func() Browser) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.initialized = true
	m.factory = factory
	m.eventPage = eventPage
	return nil
}

func (m *fakeWindowManager) Shutdown() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.shutdownRun = true
	return nil
}

func (m *fakeWindowManager) AllWindows() []Window { return nil }

func (m *fakeWindowManager) OnCreatingWindow(fn func())          { m.creating = fn }
func (m *fakeWindowManager) OnCreatedWindow(fn func(Window, bool)) { m.created = fn }
func (m *fakeWindowManager) OnNoWindowsOpen(fn func())           { m.noWindows = fn }

func (m *fakeWindowManager) fireCreatingWindow() {
	if m.creating != nil {
		m.creating()
	}
}

func (m *fakeWindowManager) fireNoWindowsOpen() {
	if m.noWindows != nil {
		m.noWindows()
	}
}

func (m *fakeWindowManager) wasShutdown() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.shutdownRun
}

func (m *fakeWindowManager) wasInitialized() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.initialized
}

// backgroundBrowser calls the stored event-page accessor the way a real
// window manager would, from whatever goroutine the caller is on.
func (m *fakeWindowManager) backgroundBrowser() Browser {
	m.mu.Lock()
	accessor := m.eventPage
	m.mu.Unlock()
	if accessor == nil {
		return nil
	}
	return accessor()
}

// countingPlugin tracks lifecycle calls; failInit/failShutdown make it
// misbehave.
type countingPlugin struct {
	name         string
	failInit     error
	failShutdown error
	panicInit    bool

	mu        sync.Mutex
	inits     int
	shutdowns int
}

func (p *countingPlugin) Name() string { return p.name }

func (p *countingPlugin) Initialize(_ *Application) error {
	p.mu.Lock()
	p.inits++
	p.mu.Unlock()
	if p.panicInit {
		panic("plugin init blew up")
	}
	return p.failInit
}

func (p *countingPlugin) Shutdown() error {
	p.mu.Lock()
	p.shutdowns++
	p.mu.Unlock()
	return p.failShutdown
}

func (p *countingPlugin) initCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.inits
}

func (p *countingPlugin) shutdownCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.shutdowns
}

// mapLoader resolves declarations from a fixed table.
type mapLoader struct {
	plugins  map[string]Plugin
	failures map[string]error
}

func (l *mapLoader) Load(decl PluginDeclaration) (Plugin, error) {
	if err, ok := l.failures[decl.Name]; ok {
		return nil, err
	}
	if plugin, ok := l.plugins[decl.Name]; ok {
		return plugin, nil
	}
	return nil, ErrPluginNotLoadable
}

// eventRecorder is an Observer accumulating delivered events in order.
type eventRecorder struct {
	id string

	mu     sync.Mutex
	events []cloudevents.Event
}

func (r *eventRecorder) OnEvent(_ context.Context, event cloudevents.Event) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, event)
	return nil
}

func (r *eventRecorder) ObserverID() string { return r.id }

func (r *eventRecorder) typeCount(eventType string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	count := 0
	for _, event := range r.events {
		if event.Type() == eventType {
			count++
		}
	}
	return count
}

func (r *eventRecorder) snapshot() []cloudevents.Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]cloudevents.Event, len(r.events))
	copy(out, r.events)
	return out
}

func (r *eventRecorder) types() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, 0, len(r.events))
	for _, event := range r.events {
		out = append(out, event.Type())
	}
	return out
}

// writeTestPackage lays a minimal package on disk and returns its dir.
func writeTestPackage(t *testing.T, manifest string) string {
	t.Helper()
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "manifest.json"), []byte(manifest), 0o600))
	return dir
}

const minimalManifest = `{
	"name": "notes",
	"version": "1.0.0",
	"background_scripts": ["background.js"]
}`

// newTestApp assembles a host, engine, window manager, and application
// with test timings. Callers may pass extra options.
func newTestApp(t *testing.T, opts ...ApplicationOption) (*Application, *fakeEngine, *fakeWindowManager, *Host) {
	t.Helper()

	dir := writeTestPackage(t, minimalManifest)
	pkg, err := LoadPackage(dir)
	require.NoError(t, err)

	host := NewHost(testSettings(), &recordingLogger{})
	engine := &fakeEngine{store: newTestCookieStore(t)}
	wm := &fakeWindowManager{}

	all := append([]ApplicationOption{WithWindowManager(wm)}, opts...)
	app := NewApplication(host, pkg, engine, all...)
	t.Cleanup(app.Dispose)
	return app, engine, wm, host
}

// newTestAppOnHost is newTestApp with a caller-provided host, for tests
// asserting on host-level registry and metrics behavior.
func newTestAppOnHost(t *testing.T, host *Host, opts ...ApplicationOption) (*Application, *fakeEngine, *fakeWindowManager, *Host) {
	t.Helper()

	dir := writeTestPackage(t, minimalManifest)
	pkg, err := LoadPackage(dir)
	require.NoError(t, err)

	engine := &fakeEngine{store: newTestCookieStore(t)}
	wm := &fakeWindowManager{}

	all := append([]ApplicationOption{WithWindowManager(wm)}, opts...)
	app := NewApplication(host, pkg, engine, all...)
	t.Cleanup(app.Dispose)
	return app, engine, wm, host
}

func newTestCookieStore(t *testing.T) *MemoryCookieStore {
	t.Helper()
	store, err := NewMemoryCookieStore("")
	require.NoError(t, err)
	t.Cleanup(store.Close)
	return store
}

// drain waits until everything queued on the dispatch context has run.
func drain(app *Application) {
	_ = app.dispatch.Invoke(func() {})
}

// waitForState polls until the application reaches the wanted state.
func waitForState(t *testing.T, app *Application, want ApplicationState) {
	t.Helper()
	require.Eventually(t, func() bool {
		return app.State() == want
	}, time.Second, 2*time.Millisecond, "state never reached %s, still %s", want, app.State())
}
