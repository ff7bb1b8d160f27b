package appshell

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewHostDefaults(t *testing.T) {
	host := NewHost(DefaultSettings(), nil)

	assert.IsType(t, NopLogger{}, host.Logger())
	require.NotNil(t, host.Metrics())
	assert.Empty(t, host.Running())
}

func TestHostRunningRegistry(t *testing.T) {
	host := NewHost(testSettings(), &recordingLogger{})
	app, _, wm, _ := newTestAppOnHost(t, host)

	app.Launch()
	wm.fireCreatingWindow()
	waitForState(t, app, StateRunning)

	require.Len(t, host.Running(), 1)
	found, ok := host.RunningByID(app.ID())
	require.True(t, ok)
	assert.Same(t, app, found)

	app.Close()
	waitForState(t, app, StateClosed)
	assert.Empty(t, host.Running())
	_, ok = host.RunningByID(app.ID())
	assert.False(t, ok)
}

func TestHostRunningGaugeTracksRegistry(t *testing.T) {
	reg := prometheus.NewRegistry()
	host := NewHost(testSettings(), &recordingLogger{}, WithMetricsRegisterer(reg))
	app, _, wm, _ := newTestAppOnHost(t, host)

	app.Launch()
	wm.fireCreatingWindow()
	waitForState(t, app, StateRunning)
	assert.Equal(t, 1.0, testutil.ToFloat64(host.Metrics().RunningApps))

	app.Close()
	waitForState(t, app, StateClosed)
	assert.Equal(t, 0.0, testutil.ToFloat64(host.Metrics().RunningApps))
}

func TestHostLaunchCounter(t *testing.T) {
	reg := prometheus.NewRegistry()
	host := NewHost(testSettings(), &recordingLogger{}, WithMetricsRegisterer(reg))
	app, _, _, _ := newTestAppOnHost(t, host)

	app.Launch()
	drain(app)

	assert.Equal(t, 1.0, testutil.ToFloat64(host.Metrics().Launches))
}
