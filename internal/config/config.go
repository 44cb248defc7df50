// Package config provides configuration management for the trade reconciler.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"
	_ "time/tzdata"

	"github.com/spf13/viper"

	apperrors "trade-reconciler/internal/errors"
	"trade-reconciler/internal/factory"
	"trade-reconciler/internal/inventory"
	"trade-reconciler/internal/logging"
)

// Config holds all application configuration.
type Config struct {
	Ledger     LedgerConfig     `mapstructure:"ledger"`
	Fees       FeesConfig       `mapstructure:"fees"`
	Settlement SettlementConfig `mapstructure:"settlement"`
	Dispatch   DispatchConfig   `mapstructure:"dispatch"`
	Store      StoreConfig      `mapstructure:"store"`
	Log        LogConfig        `mapstructure:"log"`
	UI         UIConfig         `mapstructure:"ui"`

	// Path is the file the configuration was read from, if any.
	Path string `mapstructure:"-"`
}

// LedgerConfig holds matching configuration.
type LedgerConfig struct {
	Discipline string `mapstructure:"discipline"` // "lifo", "fifo"
	Broker     string `mapstructure:"broker"`
	Timezone   string `mapstructure:"timezone"` // zone for fill times without an offset
}

// FeesConfig holds the commission schedule.
type FeesConfig struct {
	Model          string  `mapstructure:"model"` // zero, flat, per_share
	PerOrder       float64 `mapstructure:"per_order"`
	PerShare       float64 `mapstructure:"per_share"`
	Minimum        float64 `mapstructure:"minimum"`
	MaxPercent     float64 `mapstructure:"max_percent"`
	RegulatoryRate float64 `mapstructure:"regulatory_rate"`
}

// SettlementConfig holds settlement-date configuration.
type SettlementConfig struct {
	Days int `mapstructure:"days"`
}

// DispatchConfig holds worker pool configuration.
type DispatchConfig struct {
	Workers   int `mapstructure:"workers"`
	QueueSize int `mapstructure:"queue_size"`
	BatchSize int `mapstructure:"batch_size"`
}

// StoreConfig holds persistence configuration.
type StoreConfig struct {
	DBPath string `mapstructure:"db_path"`
}

// LogConfig holds logging configuration.
type LogConfig struct {
	Level      string `mapstructure:"level"`
	Console    bool   `mapstructure:"console"`
	File       bool   `mapstructure:"file"`
	FilePath   string `mapstructure:"file_path"`
	MaxSize    int    `mapstructure:"max_size"` // megabytes
	MaxBackups int    `mapstructure:"max_backups"`
	MaxAge     int    `mapstructure:"max_age"` // days
}

// UIConfig holds output configuration.
type UIConfig struct {
	ColorEnabled bool   `mapstructure:"color_enabled"`
	DateFormat   string `mapstructure:"date_format"`
}

// DefaultConfigDir returns the default configuration directory.
func DefaultConfigDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".config/trade-reconciler"
	}
	return filepath.Join(home, ".config", "trade-reconciler")
}

// Load loads configuration from the specified directory.
// If configDir is empty, uses the default config directory. A missing
// config.toml is created from the template and the defaults are used.
func Load(configDir string) (*Config, error) {
	if configDir == "" {
		configDir = DefaultConfigDir()
	}

	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("toml")
	v.AddConfigPath(configDir)
	setDefaults(v, configDir)

	cfg := &Config{}
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("loading config.toml: %w", err)
		}
		path, err := createTemplateConfig(configDir)
		if err != nil {
			return nil, err
		}
		cfg.Path = path
	} else {
		cfg.Path = v.ConfigFileUsed()
	}

	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("decoding config: %w", err)
	}

	applyEnvOverrides(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return cfg, nil
}

// Default returns the built-in configuration rooted at configDir.
func Default(configDir string) *Config {
	v := viper.New()
	setDefaults(v, configDir)
	cfg := &Config{}
	_ = v.Unmarshal(cfg)
	return cfg
}

func setDefaults(v *viper.Viper, configDir string) {
	v.SetDefault("ledger.discipline", "lifo")
	v.SetDefault("ledger.broker", "IB")
	v.SetDefault("ledger.timezone", "America/New_York")

	v.SetDefault("fees.model", "per_share")
	v.SetDefault("fees.per_order", 1.0)
	v.SetDefault("fees.per_share", 0.005)
	v.SetDefault("fees.minimum", 1.0)
	v.SetDefault("fees.max_percent", 0.01)
	v.SetDefault("fees.regulatory_rate", 0.0000278)

	v.SetDefault("settlement.days", 1)

	v.SetDefault("dispatch.workers", 0)
	v.SetDefault("dispatch.queue_size", 256)
	v.SetDefault("dispatch.batch_size", 100)

	v.SetDefault("store.db_path", filepath.Join(configDir, "reconciler.db"))

	v.SetDefault("log.level", "info")
	v.SetDefault("log.console", false)
	v.SetDefault("log.file", true)
	v.SetDefault("log.file_path", filepath.Join(configDir, "logs", "reconciler.log"))
	v.SetDefault("log.max_size", 100)
	v.SetDefault("log.max_backups", 7)
	v.SetDefault("log.max_age", 30)

	v.SetDefault("ui.color_enabled", true)
	v.SetDefault("ui.date_format", "2006-01-02")
}

func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("RECONCILER_DISCIPLINE"); v != "" {
		cfg.Ledger.Discipline = v
	}
	if v := os.Getenv("RECONCILER_BROKER"); v != "" {
		cfg.Ledger.Broker = v
	}
	if v := os.Getenv("RECONCILER_DB_PATH"); v != "" {
		cfg.Store.DBPath = v
	}
	if v := os.Getenv("RECONCILER_LOG_LEVEL"); v != "" {
		cfg.Log.Level = v
	}
	if v := os.Getenv("RECONCILER_WORKERS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Dispatch.Workers = n
		}
	}
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	if _, err := inventory.ParseDiscipline(c.Ledger.Discipline); err != nil {
		return fmt.Errorf("%w: %v", apperrors.ErrConfigInvalid, err)
	}
	if _, err := c.Location(); err != nil {
		return fmt.Errorf("%w: invalid timezone %q", apperrors.ErrConfigInvalid, c.Ledger.Timezone)
	}
	if _, err := factory.NewFeeModel(c.FeeModelConfig()); err != nil {
		return fmt.Errorf("%w: %v", apperrors.ErrConfigInvalid, err)
	}

	for name, v := range map[string]float64{
		"fees.per_order":       c.Fees.PerOrder,
		"fees.per_share":       c.Fees.PerShare,
		"fees.minimum":         c.Fees.Minimum,
		"fees.regulatory_rate": c.Fees.RegulatoryRate,
	} {
		if v < 0 {
			return fmt.Errorf("%w: %s must be non-negative", apperrors.ErrConfigInvalid, name)
		}
	}
	if c.Fees.MaxPercent < 0 || c.Fees.MaxPercent > 1 {
		return fmt.Errorf("%w: fees.max_percent must be between 0 and 1", apperrors.ErrConfigInvalid)
	}
	if c.Settlement.Days < 0 {
		return fmt.Errorf("%w: settlement.days must be non-negative", apperrors.ErrConfigInvalid)
	}
	if c.Dispatch.Workers < 0 || c.Dispatch.QueueSize < 0 || c.Dispatch.BatchSize < 0 {
		return fmt.Errorf("%w: dispatch sizes must be non-negative", apperrors.ErrConfigInvalid)
	}

	switch strings.ToLower(c.Log.Level) {
	case "", "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("%w: invalid log level: %s", apperrors.ErrConfigInvalid, c.Log.Level)
	}

	return nil
}

// Discipline returns the configured matching discipline.
func (c *Config) Discipline() inventory.Discipline {
	d, err := inventory.ParseDiscipline(c.Ledger.Discipline)
	if err != nil {
		return inventory.DefaultDiscipline
	}
	return d
}

// Location returns the zone used for fill times without an offset.
func (c *Config) Location() (*time.Location, error) {
	if c.Ledger.Timezone == "" {
		return time.UTC, nil
	}
	return time.LoadLocation(c.Ledger.Timezone)
}

// FeeModelConfig returns the fee settings in the form the factory expects.
func (c *Config) FeeModelConfig() factory.FeeModelConfig {
	return factory.FeeModelConfig{
		Model:          c.Fees.Model,
		PerOrder:       c.Fees.PerOrder,
		PerShare:       c.Fees.PerShare,
		Minimum:        c.Fees.Minimum,
		MaxPercent:     c.Fees.MaxPercent,
		RegulatoryRate: c.Fees.RegulatoryRate,
	}
}

// LoggingConfig returns the log settings in the form the logging package
// expects.
func (c *Config) LoggingConfig() logging.LogConfig {
	return logging.LogConfig{
		Level:      c.Log.Level,
		Console:    c.Log.Console,
		File:       c.Log.File,
		FilePath:   c.Log.FilePath,
		MaxSize:    c.Log.MaxSize,
		MaxBackups: c.Log.MaxBackups,
		MaxAge:     c.Log.MaxAge,
	}
}
