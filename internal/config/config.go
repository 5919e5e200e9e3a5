// Package config provides configuration management for openwtv using Viper.
// It supports configuration from files, environment variables, and defaults.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jmylchreest/openwtv/pkg/extend"
	"github.com/robfig/cron/v3"
	"github.com/spf13/viper"
)

// Default configuration values.
const (
	defaultHTTPTimeout     = 30 * time.Second
	defaultMaxResponseSize = 4 << 20
	defaultPollInterval    = 500 * time.Millisecond
	defaultResolution      = "720p"
	defaultRefreshSchedule = "@every 30s"
	defaultLogMaxSizeMB    = 10
	defaultLogMaxBackups   = 3
	defaultLogMaxAgeDays   = 28
)

// EnvPrefix is the prefix for environment variable overrides.
const EnvPrefix = "OPENWTV"

// Config holds all configuration for the application.
type Config struct {
	Server    ServerConfig    `mapstructure:"server" yaml:"server"`
	HTTP      HTTPConfig      `mapstructure:"http" yaml:"http"`
	Transcode TranscodeConfig `mapstructure:"transcode" yaml:"transcode"`
	Refresh   RefreshConfig   `mapstructure:"refresh" yaml:"refresh"`
	Logging   LoggingConfig   `mapstructure:"logging" yaml:"logging"`
}

// ServerConfig identifies the Extend server to talk to.
type ServerConfig struct {
	Address string `mapstructure:"address" yaml:"address"`
	Port    int    `mapstructure:"port" yaml:"port"`
	// Password is never written back out; config dump omits it.
	Password string `mapstructure:"password" yaml:"-" masq:"secret"`
}

// HTTPConfig holds transport settings for Extend requests.
type HTTPConfig struct {
	Timeout         time.Duration `mapstructure:"timeout" yaml:"timeout"`
	UserAgent       string        `mapstructure:"user_agent" yaml:"user_agent"`
	MaxResponseSize int64         `mapstructure:"max_response_size" yaml:"max_response_size"`
}

// TranscodeConfig holds playback preparation settings.
type TranscodeConfig struct {
	Resolution     string        `mapstructure:"resolution" yaml:"resolution"` // 720p, 1080p, 768p
	PollInterval   time.Duration `mapstructure:"poll_interval" yaml:"poll_interval"`
	GroupID        int           `mapstructure:"group_id" yaml:"group_id"`
	VerifyPlaylist bool          `mapstructure:"verify_playlist" yaml:"verify_playlist"`

	// LegacyChannelParser lets channels missing a field inherit it from the
	// previous channel instead of failing the channel list.
	LegacyChannelParser bool `mapstructure:"legacy_channel_parser" yaml:"legacy_channel_parser"`
}

// RefreshConfig holds the channel list refresh schedule.
type RefreshConfig struct {
	Schedule string `mapstructure:"schedule" yaml:"schedule"` // cron expression or @every descriptor
}

// LoggingConfig holds logging configuration.
type LoggingConfig struct {
	Level      string `mapstructure:"level" yaml:"level"`   // trace, debug, info, warn, error
	Format     string `mapstructure:"format" yaml:"format"` // json, text
	AddSource  bool   `mapstructure:"add_source" yaml:"add_source"`
	TimeFormat string `mapstructure:"time_format" yaml:"time_format"`

	// File enables rotated file output in addition to stderr.
	File       string `mapstructure:"file" yaml:"file"`
	MaxSizeMB  int    `mapstructure:"max_size_mb" yaml:"max_size_mb"`
	MaxBackups int    `mapstructure:"max_backups" yaml:"max_backups"`
	MaxAgeDays int    `mapstructure:"max_age_days" yaml:"max_age_days"`
	Compress   bool   `mapstructure:"compress" yaml:"compress"`
}

// Load reads configuration from file and environment variables.
// Environment variables take precedence over file configuration.
// Environment variables are prefixed with OPENWTV_ and use underscores for nesting.
// Example: OPENWTV_SERVER_PORT=7799.
func Load(configPath string) (*Config, error) {
	v := viper.New()
	Prepare(v, configPath)

	if _, err := ReadFile(v); err != nil {
		return nil, err
	}

	return Decode(v)
}

// Prepare installs the defaults, the config file location and the
// environment binding on v. An empty configPath searches $HOME, the working
// directory and /etc/openwtv for .openwtv.yaml.
func Prepare(v *viper.Viper, configPath string) {
	SetDefaults(v)

	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.SetConfigName(".openwtv")
		v.SetConfigType("yaml")
		v.AddConfigPath("$HOME")
		v.AddConfigPath(".")
		v.AddConfigPath("/etc/openwtv")
	}

	BindEnv(v)
}

// ReadFile reads the config file located by Prepare and returns its path.
// Finding no file in the search paths is not an error and returns "".
// A file set explicitly must exist and parse.
func ReadFile(v *viper.Viper) (string, error) {
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if errors.As(err, &notFound) {
			return "", nil
		}
		return "", fmt.Errorf("reading config file: %w", err)
	}
	return v.ConfigFileUsed(), nil
}

// BindEnv enables OPENWTV_ environment overrides on v.
func BindEnv(v *viper.Viper) {
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
}

// Decode unmarshals and validates the configuration held by v.
func Decode(v *viper.Viper) (*Config, error) {
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshaling config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return &cfg, nil
}

// SetDefaults configures default values for all configuration options.
// This should be called before reading the config file to ensure defaults are in place.
func SetDefaults(v *viper.Viper) {
	v.SetDefault("server.address", "")
	v.SetDefault("server.port", extend.DefaultPort)
	v.SetDefault("server.password", "")

	v.SetDefault("http.timeout", defaultHTTPTimeout)
	v.SetDefault("http.user_agent", "")
	v.SetDefault("http.max_response_size", defaultMaxResponseSize)

	v.SetDefault("transcode.resolution", defaultResolution)
	v.SetDefault("transcode.poll_interval", defaultPollInterval)
	v.SetDefault("transcode.group_id", 0)
	v.SetDefault("transcode.verify_playlist", false)
	v.SetDefault("transcode.legacy_channel_parser", false)

	v.SetDefault("refresh.schedule", defaultRefreshSchedule)

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "text")
	v.SetDefault("logging.add_source", false)
	v.SetDefault("logging.time_format", time.RFC3339)
	v.SetDefault("logging.file", "")
	v.SetDefault("logging.max_size_mb", defaultLogMaxSizeMB)
	v.SetDefault("logging.max_backups", defaultLogMaxBackups)
	v.SetDefault("logging.max_age_days", defaultLogMaxAgeDays)
	v.SetDefault("logging.compress", true)
}

// Validate checks the configuration for errors.
// The server address and password are checked where a command needs them,
// since commands such as version and config dump run without a server.
func (c *Config) Validate() error {
	const maxPort = 65535
	if c.Server.Port < 1 || c.Server.Port > maxPort {
		return fmt.Errorf("server.port must be between 1 and %d", maxPort)
	}

	if c.HTTP.Timeout <= 0 {
		return fmt.Errorf("http.timeout must be positive")
	}
	if c.HTTP.MaxResponseSize < 0 {
		return fmt.Errorf("http.max_response_size must not be negative")
	}

	if _, err := extend.ParseResolution(c.Transcode.Resolution); err != nil {
		return fmt.Errorf("transcode.resolution: %w", err)
	}
	if c.Transcode.PollInterval <= 0 {
		return fmt.Errorf("transcode.poll_interval must be positive")
	}

	if _, err := cron.ParseStandard(c.Refresh.Schedule); err != nil {
		return fmt.Errorf("refresh.schedule: %w", err)
	}

	validLevels := map[string]bool{"trace": true, "debug": true, "info": true, "warn": true, "error": true}
	if !validLevels[c.Logging.Level] {
		return fmt.Errorf("logging.level must be one of: trace, debug, info, warn, error")
	}
	validFormats := map[string]bool{"json": true, "text": true}
	if !validFormats[c.Logging.Format] {
		return fmt.Errorf("logging.format must be one of: json, text")
	}
	if c.Logging.File != "" && c.Logging.MaxSizeMB < 1 {
		return fmt.Errorf("logging.max_size_mb must be at least 1")
	}

	return nil
}

// ParsedResolution returns the transcode resolution; call after Validate.
func (c *TranscodeConfig) ParsedResolution() extend.Resolution {
	r, _ := extend.ParseResolution(c.Resolution)
	return r
}
