// Package config loads settings from defaults, an optional config file,
// FEEDPRINTER_* environment variables and command-line flags.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/nixxel-company-limited/escpos-feed-printer/escpos"
	"github.com/nixxel-company-limited/escpos-feed-printer/picture"
	"github.com/nixxel-company-limited/escpos-feed-printer/poller"
	"github.com/nixxel-company-limited/escpos-feed-printer/printer"
)

// ErrConfiguration marks missing or invalid settings. It is fatal.
var ErrConfiguration = errors.New("configuration error")

// EnvPrefix prefixes every environment variable, e.g. FEEDPRINTER_PRINTER_HOST.
const EnvPrefix = "FEEDPRINTER"

// Config holds all application configuration
type Config struct {
	Printer PrinterConfig `mapstructure:"printer"`
	Feed    FeedConfig    `mapstructure:"feed"`
	Cache   CacheConfig   `mapstructure:"cache"`
	Scratch ScratchConfig `mapstructure:"scratch"`
	Log     LogConfig     `mapstructure:"log"`
}

// PrinterConfig selects and tunes the printer transport
type PrinterConfig struct {
	Transport   string        `mapstructure:"transport"` // "usb" or "network"
	Host        string        `mapstructure:"host"`      // network only, port is always 9100
	VendorID    uint16        `mapstructure:"vendor_id"`
	ProductID   uint16        `mapstructure:"product_id"`
	Policy      string        `mapstructure:"policy"` // "auto", "per-job" or "persistent"
	DialTimeout time.Duration `mapstructure:"dial_timeout"`
	Width       int           `mapstructure:"width"`
	MinDots     int           `mapstructure:"min_dots"`
	DotsPerLine int           `mapstructure:"dots_per_line"`
}

// FeedConfig points at the content source
type FeedConfig struct {
	URL               string        `mapstructure:"url"`
	Token             string        `mapstructure:"token"`
	Limit             int           `mapstructure:"limit"`
	Interval          time.Duration `mapstructure:"interval"`
	Timeout           time.Duration `mapstructure:"timeout"`
	MaxLookupFailures int           `mapstructure:"max_lookup_failures"`
}

// CacheConfig locates the seen-items cache
type CacheConfig struct {
	Path    string `mapstructure:"path"`
	Backend string `mapstructure:"backend"` // "json" or "bolt"
}

// ScratchConfig locates temporary image files
type ScratchConfig struct {
	Dir string `mapstructure:"dir"`
}

// LogConfig holds logging configuration
type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"` // "console" or "json"
}

var defaults = map[string]any{
	"printer.transport":        "",
	"printer.host":             "",
	"printer.vendor_id":        0,
	"printer.product_id":       0,
	"printer.policy":           "auto",
	"printer.dial_timeout":     5 * time.Second,
	"printer.width":            picture.DefaultWidth,
	"printer.min_dots":         escpos.DefaultMinDots,
	"printer.dots_per_line":    escpos.DotsPerLine,
	"feed.url":                 "",
	"feed.token":               "",
	"feed.limit":               poller.DefaultLimit,
	"feed.interval":            poller.DefaultInterval,
	"feed.timeout":             30 * time.Second,
	"feed.max_lookup_failures": 0,
	"cache.path":               "seen.json",
	"cache.backend":            "json",
	"scratch.dir":              "",
	"log.level":                "info",
	"log.format":               "console",
}

// New returns a viper instance with defaults and environment overrides set.
func New() *viper.Viper {
	v := viper.New()
	for key, value := range defaults {
		v.SetDefault(key, value)
	}
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	return v
}

// defaultConfigPath returns the default config directory for the current OS
func defaultConfigPath() string {
	switch runtime.GOOS {
	case "windows":
		return filepath.Join(os.Getenv("APPDATA"), "feedprinter")
	default:
		home, _ := os.UserHomeDir()
		return filepath.Join(home, ".config", "feedprinter")
	}
}

// Load reads the config file, if any, and unmarshals the merged settings.
// An explicit file must exist; otherwise feedprinter.{yaml,toml,json} is
// looked up in the working directory and the user config directory.
func Load(v *viper.Viper, file string) (*Config, error) {
	if file != "" {
		v.SetConfigFile(file)
	} else {
		v.SetConfigName("feedprinter")
		v.AddConfigPath(".")
		v.AddConfigPath(defaultConfigPath())
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if file != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("%w: reading config file: %w", ErrConfiguration, err)
		}
		// Config file not found is OK, use defaults
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("%w: parsing config: %w", ErrConfiguration, err)
	}
	return cfg, nil
}

// Transport returns the printer transport and connection policy.
func (c *Config) Transport() (printer.Transport, printer.Policy, error) {
	if c.Printer.Transport == "" {
		return printer.Transport{}, 0, fmt.Errorf("%w: printer.transport is required (usb or network)", ErrConfiguration)
	}
	kind, err := printer.ParseKind(c.Printer.Transport)
	if err != nil {
		return printer.Transport{}, 0, fmt.Errorf("%w: %w", ErrConfiguration, err)
	}
	policy, err := printer.ParsePolicy(c.Printer.Policy)
	if err != nil {
		return printer.Transport{}, 0, fmt.Errorf("%w: %w", ErrConfiguration, err)
	}

	t := printer.Transport{
		Kind:        kind,
		Host:        strings.TrimSpace(c.Printer.Host),
		DialTimeout: c.Printer.DialTimeout,
		VendorID:    c.Printer.VendorID,
		ProductID:   c.Printer.ProductID,
	}
	if kind == printer.KindNetwork && t.Host == "" {
		return printer.Transport{}, 0, fmt.Errorf("%w: printer.host is required for the network transport", ErrConfiguration)
	}
	return t, policy, nil
}

// Validate checks the settings every command needs.
func (c *Config) Validate() error {
	if _, _, err := c.Transport(); err != nil {
		return err
	}
	if c.Printer.Width < 8 {
		return fmt.Errorf("%w: printer.width must be at least 8 dots", ErrConfiguration)
	}
	if c.Printer.DotsPerLine <= 0 {
		return fmt.Errorf("%w: printer.dots_per_line must be positive", ErrConfiguration)
	}
	if c.Printer.MinDots < 0 {
		return fmt.Errorf("%w: printer.min_dots must not be negative", ErrConfiguration)
	}
	switch c.Cache.Backend {
	case "json", "bolt":
	default:
		return fmt.Errorf("%w: unknown cache.backend %q", ErrConfiguration, c.Cache.Backend)
	}
	return nil
}

// ValidateFeed checks the settings the poll loop needs.
func (c *Config) ValidateFeed() error {
	if c.Feed.URL == "" {
		return fmt.Errorf("%w: feed.url is required", ErrConfiguration)
	}
	if c.Cache.Path == "" {
		return fmt.Errorf("%w: cache.path is required", ErrConfiguration)
	}
	if c.Feed.Interval <= 0 {
		return fmt.Errorf("%w: feed.interval must be positive", ErrConfiguration)
	}
	return nil
}

// Composer returns the job composer for the configured printer.
func (c *Config) Composer() escpos.Composer {
	comp := escpos.NewComposer()
	comp.MinDots = c.Printer.MinDots
	comp.DotsPerLine = c.Printer.DotsPerLine
	return comp
}
