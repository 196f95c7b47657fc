package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/mcuadros/go-defaults"
	"github.com/sirupsen/logrus"
	"github.com/srg/rclink/internal/catalog"
	"github.com/srg/rclink/internal/device"
	"github.com/srg/rclink/internal/encoder"
	"gopkg.in/yaml.v3"
)

// Transmit period bounds accepted by the vehicle firmware.
const (
	MinTxPeriod = 20 * time.Millisecond
	MaxTxPeriod = 50 * time.Millisecond
)

// Config holds application configuration
type Config struct {
	LogLevel         string        `yaml:"log_level" json:"log_level"`
	ScanTimeout      time.Duration `yaml:"scan_timeout" json:"scan_timeout" default:"25s"`
	ConnectTimeout   time.Duration `yaml:"connect_timeout" json:"connect_timeout" default:"10s"`
	HandshakeTimeout time.Duration `yaml:"handshake_timeout" json:"handshake_timeout" default:"30s"`
	TxPeriod         time.Duration `yaml:"tx_period" json:"tx_period" default:"50ms"`
	Profile          string        `yaml:"profile" json:"profile" default:"quad"`
	RandomAddress    bool          `yaml:"random_address" json:"random_address" default:"false"`

	Service   string `yaml:"service" json:"service" default:"6e400001-b5a3-f393-e0a9-e50e24dcca9e"`
	TxChar    string `yaml:"tx_characteristic" json:"tx_characteristic" default:"6e400002-b5a3-f393-e0a9-e50e24dcca9e"`
	RxChar    string `yaml:"rx_characteristic" json:"rx_characteristic" default:"6e400003-b5a3-f393-e0a9-e50e24dcca9e"`
	OutputFmt string `yaml:"output_format" json:"output_format" default:"table"`

	ConfigPushRate  float64 `yaml:"config_push_rate" json:"config_push_rate" default:"2"`
	ConfigPushBurst int     `yaml:"config_push_burst" json:"config_push_burst" default:"1"`

	Vehicle encoder.VehicleConfig `yaml:"vehicle" json:"vehicle"`
}

// DefaultConfig returns default configuration values
func DefaultConfig() *Config {
	cfg := &Config{}
	defaults.SetDefaults(cfg)
	return cfg
}

// Load reads a YAML config file over the defaults. An empty path yields the defaults.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()
	if path == "" {
		return cfg, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config %s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config %s: %w", path, err)
	}
	return cfg, nil
}

// Validate checks value ranges and UUID syntax.
func (c *Config) Validate() error {
	var errs []error

	if c.LogLevel != "" {
		if _, err := logrus.ParseLevel(c.LogLevel); err != nil {
			errs = append(errs, err)
		}
	}
	if c.ScanTimeout <= 0 {
		errs = append(errs, fmt.Errorf("scan_timeout must be positive, got %s", c.ScanTimeout))
	}
	if c.ConnectTimeout <= 0 {
		errs = append(errs, fmt.Errorf("connect_timeout must be positive, got %s", c.ConnectTimeout))
	}
	if c.HandshakeTimeout < 0 {
		errs = append(errs, fmt.Errorf("handshake_timeout must not be negative, got %s", c.HandshakeTimeout))
	}
	if c.TxPeriod < MinTxPeriod || c.TxPeriod > MaxTxPeriod {
		errs = append(errs, fmt.Errorf("tx_period must be between %s and %s, got %s", MinTxPeriod, MaxTxPeriod, c.TxPeriod))
	}
	if _, err := encoder.ProfileByName(c.Profile); err != nil {
		errs = append(errs, err)
	}
	if _, err := device.ValidateUUID(c.Service, c.TxChar, c.RxChar); err != nil {
		errs = append(errs, err)
	}
	if device.SameUUID(c.TxChar, c.RxChar) {
		errs = append(errs, errors.New("tx_characteristic and rx_characteristic must differ"))
	}
	switch c.OutputFmt {
	case "table", "json":
	default:
		errs = append(errs, fmt.Errorf("unsupported output_format %q (must be table or json)", c.OutputFmt))
	}
	if c.ConfigPushRate < 0 {
		errs = append(errs, fmt.Errorf("config_push_rate must not be negative, got %g", c.ConfigPushRate))
	}
	if err := c.Vehicle.Validate(); err != nil {
		errs = append(errs, err)
	}

	return errors.Join(errs...)
}

// Roles returns the characteristic role mapping.
func (c *Config) Roles() catalog.Roles {
	return catalog.Roles{Receive: c.RxChar, Transmit: c.TxChar}
}

// VehicleProfile resolves the configured frame profile.
func (c *Config) VehicleProfile() (encoder.Profile, error) {
	return encoder.ProfileByName(c.Profile)
}

// NewLogger creates a configured logger instance
func (c *Config) NewLogger() *logrus.Logger {
	logger := logrus.New()

	level := logrus.InfoLevel
	if c.LogLevel != "" {
		if parsed, err := logrus.ParseLevel(strings.TrimSpace(c.LogLevel)); err == nil {
			level = parsed
		}
	}
	logger.SetLevel(level)

	// Use structured logging format
	logger.SetFormatter(&logrus.TextFormatter{
		FullTimestamp:   true,
		TimestampFormat: time.RFC3339,
	})

	return logger
}
