// Package config loads marksync settings.
//
// Settings come from, in increasing precedence: built-in defaults, a
// marksync.yaml file (searched in the working directory and in
// $HOME/.config/marksync unless a path is given), MARKSYNC_* environment
// variables and bound command-line flags. Nested keys map to environment
// variables by upper-casing and replacing dots with underscores, so
// dashboard.port is MARKSYNC_DASHBOARD_PORT.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/marksync/marksync/internal/cache"
	"github.com/marksync/marksync/internal/eventlog"
	"github.com/marksync/marksync/internal/tree"
)

// EnvPrefix is the prefix of environment variables read by Load.
const EnvPrefix = "MARKSYNC"

// Keys recognized in the config file, the environment and flag bindings.
const (
	KeyAccountUsername = "account.username"
	KeyAccountURL      = "account.url"
	KeyLogFile         = "log.file"
	KeyLogMaxSizeMB    = "log.max_size_mb"
	KeyLogMaxBackups   = "log.max_backups"
	KeyLogMaxAgeDays   = "log.max_age_days"
	KeyLogCompress     = "log.compress"
	KeyJournalPath     = "journal.path"
	KeyDashboardHost   = "dashboard.host"
	KeyDashboardPort   = "dashboard.port"
	KeyWatchDir        = "watch.dir"
	KeyWatchTarget     = "watch.target"
	KeyWatchDebounce   = "watch.debounce"
	KeyMessagesCatalog = "messages.catalog"
)

// Config is the full set of settings.
type Config struct {
	Account   cache.Account   `mapstructure:"account"`
	Log       LogConfig       `mapstructure:"log"`
	Journal   JournalConfig   `mapstructure:"journal"`
	Dashboard DashboardConfig `mapstructure:"dashboard"`
	Watch     WatchConfig     `mapstructure:"watch"`
	Messages  MessagesConfig  `mapstructure:"messages"`

	// File is the config file that was read, if any.
	File string `mapstructure:"-"`
}

// LogConfig controls the event log file. An empty File logs to stderr.
type LogConfig struct {
	File       string `mapstructure:"file"`
	MaxSizeMB  int    `mapstructure:"max_size_mb"`
	MaxBackups int    `mapstructure:"max_backups"`
	MaxAgeDays int    `mapstructure:"max_age_days"`
	Compress   bool   `mapstructure:"compress"`
}

// JournalConfig locates the sqlite event journal. An empty Path disables it.
type JournalConfig struct {
	Path string `mapstructure:"path"`
}

// DashboardConfig controls the dashboard server. Port 0 disables it.
type DashboardConfig struct {
	Host string `mapstructure:"host"`
	Port int    `mapstructure:"port"`
}

// WatchConfig controls the snapshot import daemon. An empty Dir disables it.
type WatchConfig struct {
	Dir      string        `mapstructure:"dir"`
	Target   uint64        `mapstructure:"target"`
	Debounce time.Duration `mapstructure:"debounce"`
}

// MessagesConfig points at an optional TOML message catalog.
type MessagesConfig struct {
	Catalog string `mapstructure:"catalog"`
}

// Options tune Load.
type Options struct {
	// File is an explicit config file. When empty, marksync.yaml is searched
	// for and a missing file is not an error.
	File string

	// Flags maps config keys to command-line flags that override them when
	// set.
	Flags map[string]*pflag.Flag
}

// Defaults returns the configuration used when nothing is set.
func Defaults() *Config {
	return &Config{
		Log: LogConfig{
			MaxSizeMB:  10,
			MaxBackups: 3,
			MaxAgeDays: 28,
		},
		Journal: JournalConfig{
			Path: filepath.Join(".marksync", "journal.db"),
		},
		Dashboard: DashboardConfig{
			Port: 8080,
		},
		Watch: WatchConfig{
			Target:   uint64(tree.RootID),
			Debounce: 250 * time.Millisecond,
		},
	}
}

func setDefaults(v *viper.Viper) {
	d := Defaults()
	v.SetDefault(KeyAccountUsername, "")
	v.SetDefault(KeyAccountURL, "")
	v.SetDefault(KeyLogFile, d.Log.File)
	v.SetDefault(KeyLogMaxSizeMB, d.Log.MaxSizeMB)
	v.SetDefault(KeyLogMaxBackups, d.Log.MaxBackups)
	v.SetDefault(KeyLogMaxAgeDays, d.Log.MaxAgeDays)
	v.SetDefault(KeyLogCompress, d.Log.Compress)
	v.SetDefault(KeyJournalPath, d.Journal.Path)
	v.SetDefault(KeyDashboardHost, d.Dashboard.Host)
	v.SetDefault(KeyDashboardPort, d.Dashboard.Port)
	v.SetDefault(KeyWatchDir, d.Watch.Dir)
	v.SetDefault(KeyWatchTarget, d.Watch.Target)
	v.SetDefault(KeyWatchDebounce, d.Watch.Debounce)
	v.SetDefault(KeyMessagesCatalog, d.Messages.Catalog)
}

// Load reads the configuration.
func Load(opts Options) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if opts.File != "" {
		v.SetConfigFile(opts.File)
	} else {
		v.SetConfigName("marksync")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		if home, err := os.UserHomeDir(); err == nil {
			v.AddConfigPath(filepath.Join(home, ".config", "marksync"))
		}
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if opts.File != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
	}

	for key, flag := range opts.Flags {
		if flag == nil {
			continue
		}
		if err := v.BindPFlag(key, flag); err != nil {
			return nil, fmt.Errorf("failed to bind flag %s: %w", flag.Name, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to decode config: %w", err)
	}
	cfg.File = v.ConfigFileUsed()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks value ranges.
func (c *Config) Validate() error {
	if c.Dashboard.Port < 0 || c.Dashboard.Port > 65535 {
		return fmt.Errorf("invalid %s %d", KeyDashboardPort, c.Dashboard.Port)
	}
	if c.Log.MaxSizeMB < 0 || c.Log.MaxBackups < 0 || c.Log.MaxAgeDays < 0 {
		return fmt.Errorf("log rotation limits must not be negative")
	}
	if c.Watch.Debounce < 0 {
		return fmt.Errorf("invalid %s %s", KeyWatchDebounce, c.Watch.Debounce)
	}
	return nil
}

// Rotate returns the rotation settings for the event log file.
func (c *Config) Rotate() eventlog.RotateConfig {
	return eventlog.RotateConfig{
		Filename:   c.Log.File,
		MaxSizeMB:  c.Log.MaxSizeMB,
		MaxBackups: c.Log.MaxBackups,
		MaxAgeDays: c.Log.MaxAgeDays,
		Compress:   c.Log.Compress,
	}
}

// WatchTarget returns the folder the import daemon replaces.
func (c *Config) WatchTarget() tree.ID {
	return tree.ID(c.Watch.Target)
}
