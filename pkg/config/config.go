// Package config loads, defaults, and validates the daemon configuration.
//
// Configuration sources (in order of precedence):
//  1. Environment variables (MEDIAFS_*)
//  2. Configuration file (YAML or TOML)
//  3. Default values
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config is the complete mediafs daemon configuration.
type Config struct {
	// Logging controls log output behavior
	Logging LoggingConfig `mapstructure:"logging"`

	// Server contains daemon-wide settings
	Server ServerConfig `mapstructure:"server"`

	// Volume configures the mediated storage volume and its mount
	Volume VolumeConfig `mapstructure:"volume"`

	// Ledger selects the ownership ledger backend
	Ledger LedgerConfig `mapstructure:"ledger"`

	// Index configures the content index collaborator
	Index IndexConfig `mapstructure:"index"`

	// Metrics configures the Prometheus endpoint
	Metrics MetricsConfig `mapstructure:"metrics"`

	// Packages statically declares installed packages and their grants
	Packages []PackageConfig `mapstructure:"packages" validate:"dive"`
}

// LoggingConfig controls logging behavior.
type LoggingConfig struct {
	// Level is the minimum log level to output
	// Valid values: DEBUG, INFO, WARN, ERROR (case-insensitive)
	Level string `mapstructure:"level" validate:"required,oneof=DEBUG INFO WARN ERROR debug info warn error"`

	// Format specifies the log output format
	// Valid values: text, json
	Format string `mapstructure:"format" validate:"required,oneof=text json"`

	// Output specifies where logs are written
	// Valid values: stdout, stderr, or a file path
	Output string `mapstructure:"output" validate:"required"`
}

// ServerConfig contains daemon-wide settings.
type ServerConfig struct {
	// ShutdownTimeout is the maximum time to wait for graceful shutdown
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout" validate:"required,gt=0"`
}

// VolumeConfig configures the mediated volume.
type VolumeConfig struct {
	// Root is the physical backing directory of the volume
	Root string `mapstructure:"root" validate:"required"`

	// Mountpoint is where the mediated view is exposed over FUSE
	Mountpoint string `mapstructure:"mountpoint" validate:"required"`

	// AllowOther passes allow_other to the mount so other uids reach it.
	// Mediation depends on it: without allow_other only the daemon's own
	// uid could issue calls.
	AllowOther bool `mapstructure:"allow_other"`
}

// LedgerConfig selects and configures the ownership ledger backend.
type LedgerConfig struct {
	// Type specifies which ledger implementation to use
	// Valid values: memory, badger
	Type string `mapstructure:"type" validate:"required,oneof=memory badger"`

	// Badger contains BadgerDB-specific configuration
	// Only used when Type = "badger"
	Badger BadgerConfig `mapstructure:"badger"`
}

// BadgerConfig configures the BadgerDB ledger backend.
type BadgerConfig struct {
	// Dir is the database directory
	Dir string `mapstructure:"dir"`
}

// IndexConfig configures the content index.
type IndexConfig struct {
	// ScanOnStart walks the volume at startup and indexes pre-existing
	// content as system-contributed
	ScanOnStart bool `mapstructure:"scan_on_start"`
}

// MetricsConfig configures the Prometheus metrics endpoint.
type MetricsConfig struct {
	// Enabled turns the metrics endpoint on
	Enabled bool `mapstructure:"enabled"`

	// Listen is the metrics HTTP listen address
	Listen string `mapstructure:"listen"`
}

// PackageConfig declares one installed package: its uid binding and its
// broad storage grants.
type PackageConfig struct {
	// UID is the uid assigned to the package at install time
	UID uint32 `mapstructure:"uid" validate:"required,gte=10000"`

	// Name is the package name
	Name string `mapstructure:"name" validate:"required"`

	// ReadExternal grants broad read over media contributed by others
	ReadExternal bool `mapstructure:"read_external"`

	// WriteExternal grants broad write over files contributed by others
	WriteExternal bool `mapstructure:"write_external"`
}

// Load reads, defaults, and validates the configuration.
//
// configPath may be empty, in which case the default location
// ($XDG_CONFIG_HOME/mediafs or ~/.config/mediafs) is searched; a missing
// file is not an error and yields the defaults.
func Load(configPath string) (*Config, error) {
	v := viper.New()
	setupViper(v, configPath)

	if err := readConfigFile(v); err != nil {
		return nil, err
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	ApplyDefaults(&cfg)

	if err := Validate(&cfg); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return &cfg, nil
}

// setupViper configures environment variable support and file search.
func setupViper(v *viper.Viper, configPath string) {
	// Example: MEDIAFS_LOGGING_LEVEL=DEBUG
	v.SetEnvPrefix("MEDIAFS")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.AddConfigPath(getConfigDir())
		v.SetConfigName("config")
		v.SetConfigType("yaml")
	}
}

// readConfigFile reads the configuration file if present.
func readConfigFile(v *viper.Viper) error {
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); ok {
			return nil
		}
		return fmt.Errorf("failed to read config file: %w", err)
	}
	return nil
}

// getConfigDir returns the configuration directory, honoring
// XDG_CONFIG_HOME.
func getConfigDir() string {
	if xdgConfig := os.Getenv("XDG_CONFIG_HOME"); xdgConfig != "" {
		return filepath.Join(xdgConfig, "mediafs")
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "."
	}
	return filepath.Join(home, ".config", "mediafs")
}

// GetDefaultConfigPath returns the default configuration file path.
func GetDefaultConfigPath() string {
	return filepath.Join(getConfigDir(), "config.yaml")
}
