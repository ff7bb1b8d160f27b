package appshell

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics collects lifecycle counters for the host. All counters are
// best-effort observability; the lifecycle never depends on them.
type Metrics struct {
	Launches           prometheus.Counter
	Closes             prometheus.Counter
	LaunchTimeouts     prometheus.Counter
	PluginInitFailures *prometheus.CounterVec
	RunningApps        prometheus.Gauge
}

// NewMetrics creates the metric set and registers it with reg. A nil
// registerer leaves the metrics unregistered, which tests rely on.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		Launches: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "appshell",
			Name:      "application_launches_total",
			Help:      "Number of application launch attempts.",
		}),
		Closes: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "appshell",
			Name:      "application_closes_total",
			Help:      "Number of applications that reached the closed state.",
		}),
		LaunchTimeouts: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "appshell",
			Name:      "application_launch_timeouts_total",
			Help:      "Launches aborted because no window appeared in time.",
		}),
		PluginInitFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "appshell",
			Name:      "plugin_init_failures_total",
			Help:      "Plugin initialization failures by plugin name.",
		}, []string{"plugin"}),
		RunningApps: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "appshell",
			Name:      "running_applications",
			Help:      "Applications currently in the running state.",
		}),
	}

	if reg != nil {
		reg.MustRegister(m.Launches, m.Closes, m.LaunchTimeouts, m.PluginInitFailures, m.RunningApps)
	}
	return m
}
