// File: internal/config/config.go
package config

import (
	"fmt"
	"time"

	"github.com/mitchellh/go-homedir"
	"github.com/spf13/viper"
)

// Interface defines read access to the application configuration so commands
// can be tested with fixed values.
type Interface interface {
	Logger() LoggerConfig
	Browser() BrowserConfig
	Session() SessionConfig
	Diagnostics() DiagnosticsConfig
	Network() NetworkConfig

	SetBrowserKind(string)
	SetBrowserHeadless(bool)
	SetSessionBaseURL(string)
	SetSessionTimeout(time.Duration)
	SetScreenshotDir(string)
}

// Config is the root configuration, loaded from asli.yaml, ASLI_* environment
// variables and flags.
type Config struct {
	LoggerCfg      LoggerConfig      `mapstructure:"logger" yaml:"logger"`
	BrowserCfg     BrowserConfig     `mapstructure:"browser" yaml:"browser"`
	SessionCfg     SessionConfig     `mapstructure:"session" yaml:"session"`
	DiagnosticsCfg DiagnosticsConfig `mapstructure:"diagnostics" yaml:"diagnostics"`
	NetworkCfg     NetworkConfig     `mapstructure:"network" yaml:"network"`
}

var _ Interface = (*Config)(nil)

func (c *Config) Logger() LoggerConfig           { return c.LoggerCfg }
func (c *Config) Browser() BrowserConfig         { return c.BrowserCfg }
func (c *Config) Session() SessionConfig         { return c.SessionCfg }
func (c *Config) Diagnostics() DiagnosticsConfig { return c.DiagnosticsCfg }
func (c *Config) Network() NetworkConfig         { return c.NetworkCfg }

func (c *Config) SetBrowserKind(k string)           { c.BrowserCfg.Kind = k }
func (c *Config) SetBrowserHeadless(b bool)         { c.BrowserCfg.Headless = b }
func (c *Config) SetSessionBaseURL(u string)        { c.SessionCfg.BaseURL = u }
func (c *Config) SetSessionTimeout(d time.Duration) { c.SessionCfg.Timeout = d }
func (c *Config) SetScreenshotDir(dir string)       { c.DiagnosticsCfg.ScreenshotDir = dir }

// LoggerConfig holds all the configuration for the logger.
type LoggerConfig struct {
	Level       string      `mapstructure:"level" yaml:"level"`
	Format      string      `mapstructure:"format" yaml:"format"`
	AddSource   bool        `mapstructure:"add_source" yaml:"add_source"`
	ServiceName string      `mapstructure:"service_name" yaml:"service_name"`
	LogFile     string      `mapstructure:"log_file" yaml:"log_file"`
	MaxSize     int         `mapstructure:"max_size" yaml:"max_size"`
	MaxBackups  int         `mapstructure:"max_backups" yaml:"max_backups"`
	MaxAge      int         `mapstructure:"max_age" yaml:"max_age"`
	Compress    bool        `mapstructure:"compress" yaml:"compress"`
	Colors      ColorConfig `mapstructure:"colors" yaml:"colors"`
}

// ColorConfig names the console color of each log level.
type ColorConfig struct {
	Debug  string `mapstructure:"debug" yaml:"debug"`
	Info   string `mapstructure:"info" yaml:"info"`
	Warn   string `mapstructure:"warn" yaml:"warn"`
	Error  string `mapstructure:"error" yaml:"error"`
	DPanic string `mapstructure:"dpanic" yaml:"dpanic"`
	Panic  string `mapstructure:"panic" yaml:"panic"`
	Fatal  string `mapstructure:"fatal" yaml:"fatal"`
}

// BrowserConfig selects and launches the driver.
type BrowserConfig struct {
	// Kind is one of chrome, firefox, webkit or static.
	Kind     string `mapstructure:"kind" yaml:"kind"`
	Remote   bool   `mapstructure:"remote" yaml:"remote"`
	Headless bool   `mapstructure:"headless" yaml:"headless"`
	// CommandExecutor is the websocket or HTTP endpoint of a remote browser.
	CommandExecutor string         `mapstructure:"command_executor" yaml:"command_executor"`
	ExecPath        string         `mapstructure:"exec_path" yaml:"exec_path"`
	Args            []string       `mapstructure:"args" yaml:"args"`
	Extra           map[string]any `mapstructure:"extra" yaml:"extra"`
	// Install downloads playwright browsers before the first launch.
	Install bool `mapstructure:"install" yaml:"install"`
}

// SessionConfig controls navigation and waiting.
type SessionConfig struct {
	BaseURL      string        `mapstructure:"base_url" yaml:"base_url"`
	Timeout      time.Duration `mapstructure:"timeout" yaml:"timeout"`
	PollInterval time.Duration `mapstructure:"poll_interval" yaml:"poll_interval"`
}

// DiagnosticsConfig controls failure screenshots.
type DiagnosticsConfig struct {
	Enabled       bool   `mapstructure:"enabled" yaml:"enabled"`
	ScreenshotDir string `mapstructure:"screenshot_dir" yaml:"screenshot_dir"`
}

// NetworkConfig tunes the HTTP client of the static driver.
type NetworkConfig struct {
	Timeout         time.Duration `mapstructure:"timeout" yaml:"timeout"`
	UserAgent       string        `mapstructure:"user_agent" yaml:"user_agent"`
	IgnoreTLSErrors bool          `mapstructure:"ignore_tls_errors" yaml:"ignore_tls_errors"`
	MaxRedirects    int           `mapstructure:"max_redirects" yaml:"max_redirects"`
	Proxy           string        `mapstructure:"proxy" yaml:"proxy"`
}

// NewDefaultConfig returns the configuration produced by SetDefaults alone.
func NewDefaultConfig() *Config {
	v := viper.New()
	SetDefaults(v)

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		panic(fmt.Sprintf("failed to unmarshal default config: %v", err))
	}
	return &cfg
}

// SetDefaults initializes default values for every configuration key.
func SetDefaults(v *viper.Viper) {
	// -- Logger --
	v.SetDefault("logger.level", "info")
	v.SetDefault("logger.format", "console")
	v.SetDefault("logger.add_source", false)
	v.SetDefault("logger.service_name", "asli")
	v.SetDefault("logger.log_file", "")
	v.SetDefault("logger.max_size", 100)
	v.SetDefault("logger.max_backups", 5)
	v.SetDefault("logger.max_age", 30)
	v.SetDefault("logger.compress", true)
	v.SetDefault("logger.colors.debug", "cyan")
	v.SetDefault("logger.colors.info", "green")
	v.SetDefault("logger.colors.warn", "yellow")
	v.SetDefault("logger.colors.error", "red")

	// -- Browser --
	v.SetDefault("browser.kind", "chrome")
	v.SetDefault("browser.remote", false)
	v.SetDefault("browser.headless", true)
	v.SetDefault("browser.command_executor", "")
	v.SetDefault("browser.exec_path", "")
	v.SetDefault("browser.install", false)

	// -- Session --
	v.SetDefault("session.base_url", "")
	v.SetDefault("session.timeout", "5s")
	v.SetDefault("session.poll_interval", "50ms")

	// -- Diagnostics --
	v.SetDefault("diagnostics.enabled", true)
	v.SetDefault("diagnostics.screenshot_dir", "logs")

	// -- Network --
	v.SetDefault("network.timeout", "30s")
	v.SetDefault("network.user_agent", "")
	v.SetDefault("network.ignore_tls_errors", false)
	v.SetDefault("network.max_redirects", 10)
	v.SetDefault("network.proxy", "")
}

// NewConfigFromViper decodes and validates a configuration. Paths may use "~".
func NewConfigFromViper(v *viper.Viper) (*Config, error) {
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}

	for _, p := range []*string{
		&cfg.LoggerCfg.LogFile,
		&cfg.BrowserCfg.ExecPath,
		&cfg.DiagnosticsCfg.ScreenshotDir,
	} {
		expanded, err := homedir.Expand(*p)
		if err != nil {
			return nil, fmt.Errorf("error expanding path %q: %w", *p, err)
		}
		*p = expanded
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return &cfg, nil
}

// Validate checks the configuration for required fields and sane values.
func (c *Config) Validate() error {
	switch c.BrowserCfg.Kind {
	case "chrome", "firefox", "webkit", "static":
	default:
		return fmt.Errorf("browser.kind %q is not supported (chrome, firefox, webkit, static)", c.BrowserCfg.Kind)
	}
	if c.BrowserCfg.Remote {
		if c.BrowserCfg.Kind == "static" {
			return fmt.Errorf("browser.remote cannot be used with the static browser")
		}
		if c.BrowserCfg.CommandExecutor == "" {
			return fmt.Errorf("browser.command_executor is required when browser.remote is set")
		}
	}
	if c.SessionCfg.Timeout <= 0 {
		return fmt.Errorf("session.timeout must be positive")
	}
	if c.SessionCfg.PollInterval <= 0 {
		return fmt.Errorf("session.poll_interval must be positive")
	}
	if c.SessionCfg.PollInterval > c.SessionCfg.Timeout {
		return fmt.Errorf("session.poll_interval must not exceed session.timeout")
	}
	if c.DiagnosticsCfg.Enabled && c.DiagnosticsCfg.ScreenshotDir == "" {
		return fmt.Errorf("diagnostics.screenshot_dir is required when diagnostics are enabled")
	}
	if c.NetworkCfg.Timeout <= 0 {
		return fmt.Errorf("network.timeout must be positive")
	}
	if c.NetworkCfg.MaxRedirects < 0 {
		return fmt.Errorf("network.max_redirects must not be negative")
	}
	return nil
}
