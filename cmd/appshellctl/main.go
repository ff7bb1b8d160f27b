// Command appshellctl inspects application packages: it loads a
// package's manifest, reports the declared plugins and how they
// partition between the host process and render processes, and prints
// the render bootstrap descriptor.
package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/pflag"

	"github.com/appshell-framework/appshell"
	"github.com/appshell-framework/appshell/logging"
)

func main() {
	var (
		settingsPath string
		asJSON       bool
		watch        bool
	)
	pflag.StringVar(&settingsPath, "settings", "", "optional host settings TOML file")
	pflag.BoolVar(&asJSON, "json", false, "emit the render plugin descriptor as JSON")
	pflag.BoolVar(&watch, "watch", false, "keep watching the manifest for changes")
	pflag.Parse()

	if pflag.NArg() != 1 {
		fmt.Fprintln(os.Stderr, "usage: appshellctl [flags] <package-dir>")
		os.Exit(2)
	}

	logger, err := logging.NewDevelopment()
	if err != nil {
		fmt.Fprintln(os.Stderr, "failed to create logger:", err)
		os.Exit(1)
	}
	defer func() { _ = logger.Sync() }()

	if err := run(pflag.Arg(0), settingsPath, asJSON, watch, logger); err != nil {
		logger.Error("Package inspection failed", "error", err)
		os.Exit(1)
	}
}

func run(dir, settingsPath string, asJSON, watch bool, logger *logging.ZapLogger) error {
	settings, err := appshell.LoadSettings(settingsPath)
	if err != nil {
		return err
	}

	pkg, err := appshell.LoadPackage(dir)
	if err != nil {
		return err
	}
	manifest := pkg.Manifest

	fmt.Printf("package:  %s\n", pkg.Dir)
	fmt.Printf("manifest: %s\n", manifest.PackageFilePath)
	fmt.Printf("name:     %s\n", manifest.Name)
	if manifest.Version != "" {
		fmt.Printf("version:  %s\n", manifest.Version)
	}
	fmt.Printf("background scripts: %d\n", len(manifest.BackgroundScripts))
	for _, script := range manifest.BackgroundScripts {
		fmt.Printf("  - %s\n", script)
	}

	descriptor := appshell.RenderPluginDescriptor{PackagePath: pkg.Dir}
	fmt.Printf("plugins: %d\n", len(manifest.ApplicationPlugins))
	for _, decl := range manifest.ApplicationPlugins {
		target := "in-process"
		if !decl.InProcess() {
			target = "renderer"
			descriptor.Plugins = append(descriptor.Plugins, appshell.RenderPluginReference{
				Name:          decl.Name,
				Code:          decl.Code,
				RunInRenderer: decl.RunInRenderer,
				Settings:      decl.Settings,
			})
		}
		fmt.Printf("  - %-24s %-10s %s\n", decl.Name, target, decl.Code)
	}

	if asJSON {
		encoded, err := json.MarshalIndent(descriptor, "", "  ")
		if err != nil {
			return err
		}
		fmt.Println(string(encoded))
	}

	logger.Debug("Settings in effect", "startupTimeout", settings.StartupTimeout, "unloadGrace", settings.UnloadGrace)

	if watch {
		return watchManifest(manifest.PackageFilePath, logger)
	}
	return nil
}

func watchManifest(path string, logger *logging.ZapLogger) error {
	watcher, err := appshell.NewPackageWatcher(logger)
	if err != nil {
		return err
	}
	defer func() { _ = watcher.Close() }()

	if err := watcher.Watch(path, func(changed string) {
		logger.Info("Manifest changed", "path", changed)
	}); err != nil {
		return err
	}

	fmt.Println("watching", path, "(ctrl-c to stop)")
	select {}
}
