// Package config handles configuration management using Viper
package config

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/viper"
)

// Config represents the application configuration
type Config struct {
	// Card selects the DRM device to drive
	Card CardConfig `mapstructure:"card"`

	// Output controls modesetting and the present loop
	Output OutputConfig `mapstructure:"output"`

	// Logging configuration
	Logging LoggingConfig `mapstructure:"logging"`
}

// CardConfig selects the DRM device
type CardConfig struct {
	Path  string `mapstructure:"path"`  // explicit device path; overrides Index when set
	Index int    `mapstructure:"index"` // /dev/dri/card<index>
}

// OutputConfig contains modesetting and present-loop settings
type OutputConfig struct {
	Mode           string `mapstructure:"mode"`             // "preferred", "current" or "<width>x<height>[@<rate>]"
	ScanIntervalMS int    `mapstructure:"scan_interval_ms"` // connector rescan period
	FlipTimeoutMS  int    `mapstructure:"flip_timeout_ms"`  // teardown wait for a pending page flip
	ClearColor     string `mapstructure:"clear_color"`      // placeholder frame color, "#rrggbb"
}

// LoggingConfig contains logging settings
type LoggingConfig struct {
	Level string `mapstructure:"level"` // overrides LOG_LEVEL env var when set
}

var (
	// DefaultConfig provides sensible defaults
	DefaultConfig = Config{
		Card: CardConfig{
			Path:  "",
			Index: 0,
		},
		Output: OutputConfig{
			Mode:           "preferred",
			ScanIntervalMS: 2000,
			FlipTimeoutMS:  2000,
			ClearColor:     "#000000",
		},
		Logging: LoggingConfig{
			Level: "",
		},
	}

	// Global config instance
	cfg *Config

	// Override config path if set
	configPathOverride string
)

// SetConfigPath allows overriding the config path
func SetConfigPath(path string) {
	configPathOverride = path
}

// Init initializes the configuration system
func Init() error {
	viper.SetConfigName("scanout")
	viper.SetConfigType("toml")

	if configPathOverride != "" {
		viper.SetConfigFile(configPathOverride)
	} else {
		viper.AddConfigPath("/etc/scanout")
		if home := os.Getenv("HOME"); home != "" {
			viper.AddConfigPath(filepath.Join(home, ".config", "scanout"))
		}
		viper.AddConfigPath(".")
	}

	viper.SetDefault("card.path", DefaultConfig.Card.Path)
	viper.SetDefault("card.index", DefaultConfig.Card.Index)

	viper.SetDefault("output.mode", DefaultConfig.Output.Mode)
	viper.SetDefault("output.scan_interval_ms", DefaultConfig.Output.ScanIntervalMS)
	viper.SetDefault("output.flip_timeout_ms", DefaultConfig.Output.FlipTimeoutMS)
	viper.SetDefault("output.clear_color", DefaultConfig.Output.ClearColor)

	viper.SetDefault("logging.level", DefaultConfig.Logging.Level)

	// Read config file if it exists
	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return fmt.Errorf("error reading config file: %w", err)
		}
		// Config file not found, use defaults
	}

	cfg = &Config{}
	if err := viper.Unmarshal(cfg); err != nil {
		return fmt.Errorf("unable to unmarshal config: %w", err)
	}

	return nil
}

// Get returns the current configuration
func Get() *Config {
	if cfg == nil {
		c := DefaultConfig
		return &c
	}
	return cfg
}

// DevicePath resolves the DRM device path from the config
func (c *Config) DevicePath() string {
	if c.Card.Path != "" {
		return c.Card.Path
	}
	return fmt.Sprintf("/dev/dri/card%d", c.Card.Index)
}
