package appshell

import (
	"encoding/json"
	"time"
)

// PluginRouter bootstraps the application's plugin set and builds the
// payload handed to new render processes. It is created at most once
// per application; repeated accessor reads return the same instance
// without re-running the bootstrap, even when the manifest declares no
// plugins.
type PluginRouter struct {
	app         *Application
	descriptor  RenderPluginDescriptor
	initMessage string
}

// newPluginRouter runs the one-time bootstrap. Runs on the dispatch
// context.
func newPluginRouter(app *Application) *PluginRouter {
	r := &PluginRouter{
		app:         app,
		initMessage: app.renderInitMessage,
	}
	r.bootstrap()
	return r
}

func (r *PluginRouter) bootstrap() {
	app := r.app

	// Kernel plugins first. Each failure is isolated so one broken or
	// slow plugin never blocks the rest.
	for _, plugin := range app.kernelPlugins {
		r.initializePlugin(plugin)
		if err := app.addPlugin(plugin); err != nil {
			app.logger().Error("Failed to attach kernel plugin", "app", app.Name(), "plugin", plugin.Name(), "error", err)
		}
	}

	manifest := app.Manifest()
	if manifest == nil || len(manifest.ApplicationPlugins) == 0 {
		return
	}

	r.descriptor.PackagePath = app.pkg.Dir
	for _, decl := range manifest.ApplicationPlugins {
		if decl.InProcess() {
			r.loadInProcess(decl)
			continue
		}
		r.descriptor.Plugins = append(r.descriptor.Plugins, RenderPluginReference{
			Name:          decl.Name,
			Code:          decl.Code,
			RunInRenderer: decl.RunInRenderer,
			Settings:      decl.Settings,
		})
	}
}

// initializePlugin calls Initialize with panic isolation and timing.
func (r *PluginRouter) initializePlugin(plugin Plugin) {
	app := r.app
	started := time.Now()
	err := func() (err error) {
		defer func() {
			if rec := recover(); rec != nil {
				err = panicError(rec)
			}
		}()
		return plugin.Initialize(app)
	}()
	elapsed := time.Since(started)

	if err != nil {
		app.host.Metrics().PluginInitFailures.WithLabelValues(plugin.Name()).Inc()
		app.logger().Error("Plugin initialization failed", "app", app.Name(), "plugin", plugin.Name(), "elapsed", elapsed, "error", err)
		return
	}
	app.logger().Debug("Plugin initialized", "app", app.Name(), "plugin", plugin.Name(), "elapsed", elapsed)
}

// loadInProcess resolves one manifest declaration through the external
// loader and attaches the result.
func (r *PluginRouter) loadInProcess(decl PluginDeclaration) {
	app := r.app
	if app.loader == nil {
		app.logger().Error("Skipping in-process plugin", "app", app.Name(), "plugin", decl.Name, "error", ErrPluginLoaderMissing)
		return
	}
	plugin, err := loadWithRetry(app.loader, decl)
	if err != nil {
		app.host.Metrics().PluginInitFailures.WithLabelValues(decl.Name).Inc()
		app.logger().Error("Failed to load in-process plugin", "app", app.Name(), "plugin", decl.Name, "error", err)
		return
	}
	r.initializePlugin(plugin)
	if err := app.addPlugin(plugin); err != nil {
		app.logger().Error("Failed to attach in-process plugin", "app", app.Name(), "plugin", decl.Name, "error", err)
	}
}

// Descriptor returns the accumulated render-plugin descriptor.
func (r *PluginRouter) Descriptor() RenderPluginDescriptor {
	return r.descriptor
}

// RenderProcessArgs builds the positional bootstrap arguments supplied
// to each new render process: index 0 is the plugin-init message (may
// be empty), index 1 the serialized descriptor. The order is a contract
// with the render-side plugin bridge; reordering breaks it.
func (r *PluginRouter) RenderProcessArgs() []string {
	serialized, err := json.Marshal(r.descriptor)
	if err != nil {
		// The descriptor is plain data; marshal failure means a
		// settings value is not JSON-encodable. Ship an empty
		// descriptor rather than failing the render process.
		r.app.logger().Error("Failed to serialize render plugin descriptor", "app", r.app.Name(), "error", err)
		serialized = []byte("{}")
	}
	return []string{r.initMessage, string(serialized)}
}
