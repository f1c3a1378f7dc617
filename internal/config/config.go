// File: internal/config/config.go
package config

import (
	"fmt"
	"path/filepath"
	"time"

	"github.com/mitchellh/go-homedir"
	"github.com/spf13/viper"
)

// UnlockMethod selects how a session unlocks the handset before interacting.
type UnlockMethod string

const (
	UnlockPin   UnlockMethod = "pin"
	UnlockNoPin UnlockMethod = "no_pin"
)

// Config holds the entire application configuration.
type Config struct {
	Logger     LoggerConfig     `mapstructure:"logger" yaml:"logger"`
	Device     DeviceConfig     `mapstructure:"device" yaml:"device"`
	Mirror     MirrorConfig     `mapstructure:"mirror" yaml:"mirror"`
	Schedule   ScheduleConfig   `mapstructure:"schedule" yaml:"schedule"`
	Session    SessionConfig    `mapstructure:"session" yaml:"session"`
	Perception PerceptionConfig `mapstructure:"perception" yaml:"perception"`
	Heartbeat  HeartbeatConfig  `mapstructure:"heartbeat" yaml:"heartbeat"`
	Store      StoreConfig      `mapstructure:"store" yaml:"store"`
}

// LoggerConfig holds all the configuration for the logger.
type LoggerConfig struct {
	Level       string `mapstructure:"level" yaml:"level"`
	Format      string `mapstructure:"format" yaml:"format"`
	AddSource   bool   `mapstructure:"add_source" yaml:"add_source"`
	ServiceName string `mapstructure:"service_name" yaml:"service_name"`
	LogFile     string `mapstructure:"log_file" yaml:"log_file"`
	MaxSize     int    `mapstructure:"max_size" yaml:"max_size"`
	MaxBackups  int    `mapstructure:"max_backups" yaml:"max_backups"`
	MaxAge      int    `mapstructure:"max_age" yaml:"max_age"`
	Compress    bool   `mapstructure:"compress" yaml:"compress"`
}

// DeviceConfig tunes the adb transport to the handset.
type DeviceConfig struct {
	ADBPath string `mapstructure:"adb_path" yaml:"adb_path"`
	// CommandRate caps how many adb commands per second may be dispatched.
	// Burst allows short sequences (wake + unlock) to go through unthrottled.
	CommandRate  float64 `mapstructure:"command_rate" yaml:"command_rate"`
	CommandBurst int     `mapstructure:"command_burst" yaml:"command_burst"`
	// Fallback resolution used when `wm size` detection fails.
	FallbackWidth  int `mapstructure:"fallback_width" yaml:"fallback_width"`
	FallbackHeight int `mapstructure:"fallback_height" yaml:"fallback_height"`
}

// MirrorConfig holds settings for the scrcpy mirror process.
type MirrorConfig struct {
	ScrcpyPath  string        `mapstructure:"scrcpy_path" yaml:"scrcpy_path"`
	WindowTitle string        `mapstructure:"window_title" yaml:"window_title"`
	MaxSize     int           `mapstructure:"max_size" yaml:"max_size"`
	StartupWait time.Duration `mapstructure:"startup_wait" yaml:"startup_wait"`
	StopTimeout time.Duration `mapstructure:"stop_timeout" yaml:"stop_timeout"`
}

// ScheduleConfig configures the daily time-window scheduler.
type ScheduleConfig struct {
	Profile       string        `mapstructure:"profile" yaml:"profile"`
	PollInterval  time.Duration `mapstructure:"poll_interval" yaml:"poll_interval"`
	Tolerance     time.Duration `mapstructure:"tolerance" yaml:"tolerance"`
	ActivationGap time.Duration `mapstructure:"activation_gap" yaml:"activation_gap"`
	// Daily regeneration window, "HH:MM" inclusive bounds.
	RegenStart   string        `mapstructure:"regen_start" yaml:"regen_start"`
	RegenEnd     string        `mapstructure:"regen_end" yaml:"regen_end"`
	RegenBackoff time.Duration `mapstructure:"regen_backoff" yaml:"regen_backoff"`
}

// SessionConfig holds per-session unlock settings. The credential is never
// written back to disk; bind DROIDPILOT_SESSION_CREDENTIAL instead of putting
// it in the config file.
type SessionConfig struct {
	UnlockMethod string        `mapstructure:"unlock_method" yaml:"unlock_method"`
	Credential   string        `mapstructure:"credential" yaml:"-"`
	UnlockSettle time.Duration `mapstructure:"unlock_settle" yaml:"unlock_settle"`
}

// PerceptionConfig configures the frame classifier.
type PerceptionConfig struct {
	APIKey     string        `mapstructure:"api_key" yaml:"-"`
	Model      string        `mapstructure:"model" yaml:"model"`
	Endpoint   string        `mapstructure:"endpoint" yaml:"endpoint"`
	APITimeout time.Duration `mapstructure:"api_timeout" yaml:"api_timeout"`
	MaxElapsed time.Duration `mapstructure:"max_elapsed" yaml:"max_elapsed"`
	Threshold  float64       `mapstructure:"threshold" yaml:"threshold"`
}

// HeartbeatConfig tunes the adb keep-alive task.
type HeartbeatConfig struct {
	Interval time.Duration `mapstructure:"interval" yaml:"interval"`
}

// StoreConfig locates the persisted label counters.
type StoreConfig struct {
	DataDir    string `mapstructure:"data_dir" yaml:"data_dir"`
	CountsFile string `mapstructure:"counts_file" yaml:"counts_file"`
}

// CountsPath resolves the full path of the counter file, expanding a leading
// "~" in the data directory.
func (s StoreConfig) CountsPath() (string, error) {
	dir, err := homedir.Expand(s.DataDir)
	if err != nil {
		return "", fmt.Errorf("failed to expand store data_dir %q: %w", s.DataDir, err)
	}
	return filepath.Join(dir, s.CountsFile), nil
}

// SetDefaults initializes default values for all configuration parameters.
func SetDefaults(v *viper.Viper) {
	// -- Logger --
	v.SetDefault("logger.level", "info")
	v.SetDefault("logger.format", "console")
	v.SetDefault("logger.add_source", false)
	v.SetDefault("logger.service_name", "droidpilot")
	v.SetDefault("logger.log_file", "droidpilot.log")
	v.SetDefault("logger.max_size", 100)
	v.SetDefault("logger.max_backups", 5)
	v.SetDefault("logger.max_age", 30)
	v.SetDefault("logger.compress", true)

	// -- Device --
	v.SetDefault("device.adb_path", "adb")
	v.SetDefault("device.command_rate", 20.0)
	v.SetDefault("device.command_burst", 5)
	v.SetDefault("device.fallback_width", 1080)
	v.SetDefault("device.fallback_height", 1920)

	// -- Mirror --
	v.SetDefault("mirror.scrcpy_path", "scrcpy")
	v.SetDefault("mirror.window_title", "Droidpilot_Mirror")
	v.SetDefault("mirror.max_size", 800)
	v.SetDefault("mirror.startup_wait", "2s")
	v.SetDefault("mirror.stop_timeout", "5s")

	// -- Schedule --
	v.SetDefault("schedule.profile", "u")
	v.SetDefault("schedule.poll_interval", "60s")
	v.SetDefault("schedule.tolerance", "5m")
	v.SetDefault("schedule.activation_gap", "15m")
	v.SetDefault("schedule.regen_start", "00:30")
	v.SetDefault("schedule.regen_end", "00:40")
	v.SetDefault("schedule.regen_backoff", "10m")

	// -- Session --
	v.SetDefault("session.unlock_method", "no_pin")
	v.SetDefault("session.unlock_settle", "2s")

	// -- Perception --
	v.SetDefault("perception.model", "gemini-2.5-flash")
	v.SetDefault("perception.api_timeout", "30s")
	v.SetDefault("perception.max_elapsed", "2m")
	v.SetDefault("perception.threshold", 0.51)

	// -- Heartbeat --
	v.SetDefault("heartbeat.interval", "30s")

	// -- Store --
	v.SetDefault("store.data_dir", "~/.droidpilot")
	v.SetDefault("store.counts_file", "label_counts.csv")
}

// NewDefaultConfig creates a new configuration struct populated with defaults.
func NewDefaultConfig() *Config {
	v := viper.New()
	SetDefaults(v)

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		// Cannot happen with the static defaults above.
		panic(fmt.Sprintf("failed to unmarshal default config: %v", err))
	}
	return &cfg
}

// NewConfigFromViper creates a validated configuration from a viper instance.
func NewConfigFromViper(v *viper.Viper) (*Config, error) {
	var cfg Config

	// Sensitive values come from the environment, never the config file.
	v.BindEnv("perception.api_key", "DROIDPILOT_PERCEPTION_API_KEY")
	v.BindEnv("session.credential", "DROIDPILOT_SESSION_CREDENTIAL")

	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return &cfg, nil
}

// Validate checks the configuration for structurally sane values. Profile and
// unlock-method semantics are re-checked by the orchestrator before any task
// starts, since they may also arrive via the command surface.
func (c *Config) Validate() error {
	if c.Device.CommandRate <= 0 {
		return fmt.Errorf("device.command_rate must be positive")
	}
	if c.Device.CommandBurst <= 0 {
		return fmt.Errorf("device.command_burst must be a positive integer")
	}
	if c.Device.FallbackWidth <= 0 || c.Device.FallbackHeight <= 0 {
		return fmt.Errorf("device fallback resolution must be positive")
	}
	if c.Schedule.PollInterval <= 0 {
		return fmt.Errorf("schedule.poll_interval must be a positive duration")
	}
	if c.Schedule.Tolerance < 0 {
		return fmt.Errorf("schedule.tolerance must not be negative")
	}
	if c.Schedule.ActivationGap <= 0 {
		return fmt.Errorf("schedule.activation_gap must be a positive duration")
	}
	if c.Perception.Threshold <= 0 || c.Perception.Threshold >= 1 {
		return fmt.Errorf("perception.threshold must be strictly between 0 and 1")
	}
	if c.Heartbeat.Interval <= 0 {
		return fmt.Errorf("heartbeat.interval must be a positive duration")
	}
	if c.Mirror.WindowTitle == "" {
		return fmt.Errorf("mirror.window_title must not be empty")
	}
	switch UnlockMethod(c.Session.UnlockMethod) {
	case UnlockPin, UnlockNoPin:
	default:
		return fmt.Errorf("session.unlock_method must be %q or %q", UnlockPin, UnlockNoPin)
	}
	return nil
}
