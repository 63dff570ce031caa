package config

const (
	defaultRuntimeDir          = "~/.local/share/lux"
	defaultLogDir              = "~/.local/share/lux/logs"
	defaultLogFormat           = "console"
	defaultLogLevel            = "info"
	defaultReadCooldownMillis  = 100
	defaultWriteCooldownMillis = 200
	defaultStep                = 5
	defaultSet                 = 50
	defaultHistoryMaxEntries   = 1000
	defaultNotifyAppName       = "lux"
)

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Paths: Paths{
			RuntimeDir: defaultRuntimeDir,
			LogDir:     defaultLogDir,
		},
		Brightness: Brightness{
			ReadCooldownMillis:  defaultReadCooldownMillis,
			WriteCooldownMillis: defaultWriteCooldownMillis,
			DefaultStep:         defaultStep,
			DefaultSet:          defaultSet,
		},
		History: History{
			Enabled:    true,
			MaxEntries: defaultHistoryMaxEntries,
		},
		Notifications: Notifications{
			Enabled: false,
			AppName: defaultNotifyAppName,
		},
		Logging: Logging{
			Format: defaultLogFormat,
			Level:  defaultLogLevel,
		},
	}
}
