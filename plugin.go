// Package appshell hosts web applications on top of an embedded
// browser engine. It sequences plugin initialization, owns the hidden
// event page that runs an application's background logic, and
// serializes state transitions from browser callbacks, window-manager
// signals, OS session notifications, and timers into one consistent
// lifecycle per application.
//
// Basic usage:
//
//	host := appshell.NewHost(appshell.DefaultSettings(), logger)
//	pkg, _ := appshell.LoadPackage("/path/to/app")
//	app := appshell.NewApplication(host, pkg, engine,
//		appshell.WithWindowManager(wm),
//		appshell.WithKernelPlugins(storagePlugin, notifyPlugin),
//	)
//	app.Launch()
package appshell

import (
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v4"
)

// Plugin is a capability module attached to an application. Kernel
// plugins are always present and supplied at construction; app plugins
// come from the manifest. Failures during Initialize or Shutdown are
// tolerated: they are logged and never block the rest of the set.
type Plugin interface {
	// Name returns the unique identifier for this plugin.
	Name() string

	// Initialize prepares the plugin with its owning application.
	Initialize(app *Application) error

	// Shutdown releases plugin resources. Called once when the
	// application reaches its terminal state.
	Shutdown() error
}

// PluginLoader resolves an in-process plugin declaration to a live
// plugin instance. Discovery and assembly loading live behind this
// interface.
type PluginLoader interface {
	Load(decl PluginDeclaration) (Plugin, error)
}

const (
	pluginLoadRetries  = 3
	pluginLoadInterval = 50 * time.Millisecond
)

// loadWithRetry resolves a declaration through the loader, retrying
// transient failures a bounded number of times.
func loadWithRetry(loader PluginLoader, decl PluginDeclaration) (Plugin, error) {
	var plugin Plugin
	op := func() error {
		var err error
		plugin, err = loader.Load(decl)
		return err
	}
	policy := backoff.WithMaxRetries(backoff.NewConstantBackOff(pluginLoadInterval), pluginLoadRetries)
	if err := backoff.Retry(op, policy); err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrPluginNotLoadable, decl.Name, err)
	}
	if plugin == nil {
		return nil, fmt.Errorf("%w: %s: loader returned nil", ErrPluginNotLoadable, decl.Name)
	}
	return plugin, nil
}

// RenderPluginDescriptor is the serializable record handed to every new
// render process: the package location plus the ordered list of
// renderer-hosted plugin declarations.
type RenderPluginDescriptor struct {
	PackagePath string                  `json:"package_path"`
	Plugins     []RenderPluginReference `json:"plugins"`
}

// RenderPluginReference is one renderer-hosted plugin entry of the
// descriptor. Order matches the manifest's declaration order.
type RenderPluginReference struct {
	Name          string         `json:"name"`
	Code          string         `json:"code"`
	RunInRenderer bool           `json:"run_in_renderer"`
	Settings      map[string]any `json:"settings,omitempty"`
}
