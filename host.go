package appshell

import (
	cmap "github.com/orcaman/concurrent-map/v2"
	"github.com/prometheus/client_golang/prometheus"
)

// Host is the process-wide shared context applications are attached to:
// settings, logging, metrics, and the registry of running applications.
// It replaces ambient global state with an explicit injected object.
type Host struct {
	settings HostSettings
	logger   Logger
	metrics  *Metrics
	running  cmap.ConcurrentMap[string, *Application]
}

// HostOption configures a Host.
type HostOption func(*Host)

// WithMetricsRegisterer registers host metrics with reg instead of
// leaving them unregistered.
func WithMetricsRegisterer(reg prometheus.Registerer) HostOption {
	return func(h *Host) {
		h.metrics = NewMetrics(reg)
	}
}

// NewHost creates a host context. A nil logger falls back to NopLogger.
func NewHost(settings HostSettings, logger Logger, opts ...HostOption) *Host {
	if logger == nil {
		logger = NopLogger{}
	}
	h := &Host{
		settings: settings,
		logger:   logger,
		running:  cmap.New[*Application](),
	}
	for _, opt := range opts {
		opt(h)
	}
	if h.metrics == nil {
		h.metrics = NewMetrics(nil)
	}
	return h
}

// Settings returns the host's timing settings.
func (h *Host) Settings() HostSettings {
	return h.settings
}

// Logger returns the host logger.
func (h *Host) Logger() Logger {
	return h.logger
}

// Metrics returns the host metric set.
func (h *Host) Metrics() *Metrics {
	return h.metrics
}

// registerRunning adds an application to the running registry. Called
// when an application enters the running state.
func (h *Host) registerRunning(app *Application) {
	h.running.Set(app.ID(), app)
	h.metrics.RunningApps.Set(float64(h.running.Count()))
	h.logger.Debug("Application registered as running", "app", app.Name(), "id", app.ID())
}

// unregisterRunning removes an application from the running registry.
// Idempotent; teardown paths may call it more than once.
func (h *Host) unregisterRunning(app *Application) {
	h.running.Remove(app.ID())
	h.metrics.RunningApps.Set(float64(h.running.Count()))
}

// Running lists the currently running applications, for cross-app
// introspection.
func (h *Host) Running() []*Application {
	apps := make([]*Application, 0, h.running.Count())
	for _, app := range h.running.Items() {
		apps = append(apps, app)
	}
	return apps
}

// RunningByID looks up a running application by its instance ID.
func (h *Host) RunningByID(id string) (*Application, bool) {
	return h.running.Get(id)
}
