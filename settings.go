package appshell

import (
	"fmt"
	"os"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/kelseyhightower/envconfig"
)

// HostSettings carries the tunable timing knobs of the runtime.
// Values can be loaded from a TOML file and overridden from the
// environment (APPSHELL_ prefix).
type HostSettings struct {
	// StartupTimeout bounds how long a launched application may take to
	// produce its first window before it is closed automatically.
	StartupTimeout time.Duration `toml:"startup_timeout" envconfig:"STARTUP_TIMEOUT"`

	// UnloadGrace is how long Exiting observers get before the event
	// page is torn down regardless.
	UnloadGrace time.Duration `toml:"unload_grace" envconfig:"UNLOAD_GRACE"`

	// ExitingNotifyDelay is the fixed synchronous pause after the
	// Exiting event is raised, giving observers a chance to react
	// before teardown proceeds.
	ExitingNotifyDelay time.Duration `toml:"exiting_notify_delay" envconfig:"EXITING_NOTIFY_DELAY"`

	// CookieWaitTimeout bounds how long SetCookie blocks its caller
	// waiting for the store to confirm.
	CookieWaitTimeout time.Duration `toml:"cookie_wait_timeout" envconfig:"COOKIE_WAIT_TIMEOUT"`

	// CookiePurgeSchedule is the cron schedule used by the in-memory
	// cookie store to sweep expired entries.
	CookiePurgeSchedule string `toml:"cookie_purge_schedule" envconfig:"COOKIE_PURGE_SCHEDULE"`
}

// DefaultSettings returns the settings used when no file or environment
// overrides are present.
func DefaultSettings() HostSettings {
	return HostSettings{
		StartupTimeout:      30 * time.Second,
		UnloadGrace:         time.Second,
		ExitingNotifyDelay:  200 * time.Millisecond,
		CookieWaitTimeout:   5 * time.Second,
		CookiePurgeSchedule: "@every 1m",
	}
}

// duration lets TOML carry durations as strings ("30s", "1m").
type duration time.Duration

func (d *duration) UnmarshalText(text []byte) error {
	parsed, err := time.ParseDuration(string(text))
	if err != nil {
		return err
	}
	*d = duration(parsed)
	return nil
}

// settingsFile is the TOML shape of HostSettings.
type settingsFile struct {
	StartupTimeout      duration `toml:"startup_timeout"`
	UnloadGrace         duration `toml:"unload_grace"`
	ExitingNotifyDelay  duration `toml:"exiting_notify_delay"`
	CookieWaitTimeout   duration `toml:"cookie_wait_timeout"`
	CookiePurgeSchedule string   `toml:"cookie_purge_schedule"`
}

// LoadSettings reads host settings from an optional TOML file and then
// applies environment overrides. An empty path skips the file step.
func LoadSettings(path string) (HostSettings, error) {
	settings := DefaultSettings()

	if path != "" {
		if _, err := os.Stat(path); err != nil {
			return settings, fmt.Errorf("%w: %s", ErrSettingsFileMissing, path)
		}
		var file settingsFile
		meta, err := toml.DecodeFile(path, &file)
		if err != nil {
			return settings, fmt.Errorf("failed to decode settings file %s: %w", path, err)
		}
		if meta.IsDefined("startup_timeout") {
			settings.StartupTimeout = time.Duration(file.StartupTimeout)
		}
		if meta.IsDefined("unload_grace") {
			settings.UnloadGrace = time.Duration(file.UnloadGrace)
		}
		if meta.IsDefined("exiting_notify_delay") {
			settings.ExitingNotifyDelay = time.Duration(file.ExitingNotifyDelay)
		}
		if meta.IsDefined("cookie_wait_timeout") {
			settings.CookieWaitTimeout = time.Duration(file.CookieWaitTimeout)
		}
		if meta.IsDefined("cookie_purge_schedule") {
			settings.CookiePurgeSchedule = file.CookiePurgeSchedule
		}
	}

	if err := envconfig.Process("APPSHELL", &settings); err != nil {
		return settings, fmt.Errorf("failed to apply environment overrides: %w", err)
	}

	return settings, nil
}
