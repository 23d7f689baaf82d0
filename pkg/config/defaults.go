package config

import (
	"strings"
	"time"
)

// ApplyDefaults fills unset configuration fields with working values.
//
// Zero values (0, "", false) are replaced; explicit values are preserved.
func ApplyDefaults(cfg *Config) {
	applyLoggingDefaults(&cfg.Logging)
	applyServerDefaults(&cfg.Server)
	applyVolumeDefaults(&cfg.Volume)
	applyLedgerDefaults(&cfg.Ledger)
	applyMetricsDefaults(&cfg.Metrics)
}

func applyLoggingDefaults(cfg *LoggingConfig) {
	if cfg.Level == "" {
		cfg.Level = "INFO"
	}
	cfg.Level = strings.ToUpper(cfg.Level)

	if cfg.Format == "" {
		cfg.Format = "text"
	}
	if cfg.Output == "" {
		cfg.Output = "stdout"
	}
}

func applyServerDefaults(cfg *ServerConfig) {
	if cfg.ShutdownTimeout == 0 {
		cfg.ShutdownTimeout = 30 * time.Second
	}
}

func applyVolumeDefaults(cfg *VolumeConfig) {
	if cfg.Root == "" {
		cfg.Root = "/var/lib/mediafs/volume"
	}
	if cfg.Mountpoint == "" {
		cfg.Mountpoint = "/mnt/mediafs"
	}
}

func applyLedgerDefaults(cfg *LedgerConfig) {
	if cfg.Type == "" {
		cfg.Type = "badger"
	}
	if cfg.Type == "badger" && cfg.Badger.Dir == "" {
		cfg.Badger.Dir = "/var/lib/mediafs/ledger"
	}
}

func applyMetricsDefaults(cfg *MetricsConfig) {
	if cfg.Enabled && cfg.Listen == "" {
		cfg.Listen = ":9464"
	}
}
