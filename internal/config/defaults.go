package config

// DefaultConfig returns a Config populated with all default values.
func DefaultConfig() *Config {
	return &Config{
		Tracking: TrackingConfig{
			DebounceMs:   5000,
			HostnameMode: "heuristic",
		},
		Retention: RetentionConfig{
			Policy:             RetentionIndefinite,
			Days:               30,
			PruneIntervalHours: 24,
		},
		Storage: StorageConfig{
			Path:              "~/.config/sitetime",
			SQLiteFile:        "sitetime.db",
			SQLiteJournalMode: "wal",
			Timezone:          "",
		},
		Daemon: DaemonConfig{
			Host: "127.0.0.1",
			Port: 8721,
			AllowedOrigins: []string{
				"chrome-extension://*",
				"moz-extension://*",
			},
			MaxRequestSize: 1048576,
		},
		Native: NativeConfig{
			MaxMessageSize: 1048576,
		},
		Logging: LoggingConfig{
			Level:      "info",
			Format:     "text",
			File:       "sitetime.log",
			MaxSize:    10485760,
			MaxBackups: 3,
		},
	}
}
