package appshell

import (
	"errors"
)

// Framework errors
var (
	// Package and manifest errors
	ErrPackageMissing      = errors.New("application package is missing")
	ErrManifestMissing     = errors.New("application manifest is missing")
	ErrManifestUnsupported = errors.New("unsupported manifest format")
	ErrManifestNameMissing = errors.New("manifest name is required")

	// Plugin errors
	ErrPluginNil            = errors.New("plugin is nil")
	ErrPluginNameEmpty      = errors.New("plugin name is empty")
	ErrPluginAlreadyPresent = errors.New("plugin already present")
	ErrPluginLoaderMissing  = errors.New("no plugin loader configured")
	ErrPluginNotLoadable    = errors.New("plugin could not be loaded")
	ErrPluginSetSealed      = errors.New("plugin set is sealed after bootstrap")

	// Lifecycle errors
	ErrApplicationDisposed  = errors.New("application already disposed")
	ErrDispatcherClosed     = errors.New("dispatcher is closed")
	ErrWindowManagerMissing = errors.New("no window manager configured")

	// Observer errors
	ErrObserverNil  = errors.New("observer is nil")
	ErrInvalidEvent = errors.New("invalid lifecycle event")

	// Cookie store errors
	ErrCookieStoreMissing = errors.New("engine provides no cookie store")

	// Settings errors
	ErrSettingsFileMissing = errors.New("settings file not found")
)
