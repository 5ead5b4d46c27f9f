// File: internal/config/config_test.go
package config

import (
	"bytes"
	"path/filepath"
	"testing"
	"time"

	"github.com/mitchellh/go-homedir"
	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// -- Constructor and Defaults Tests --

func TestNewDefaultConfig(t *testing.T) {
	cfg := NewDefaultConfig()

	assert.Equal(t, "info", cfg.Logger().Level)
	assert.Equal(t, "asli", cfg.Logger().ServiceName)
	assert.Equal(t, "chrome", cfg.Browser().Kind)
	assert.True(t, cfg.Browser().Headless)
	assert.Equal(t, 5*time.Second, cfg.Session().Timeout)
	assert.Equal(t, 50*time.Millisecond, cfg.Session().PollInterval)
	assert.True(t, cfg.Diagnostics().Enabled)
	assert.Equal(t, "logs", cfg.Diagnostics().ScreenshotDir)
	assert.Equal(t, 30*time.Second, cfg.Network().Timeout)
	assert.NoError(t, cfg.Validate())
}

// -- Validation Logic Tests --

func TestConfigValidation(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		errMsg string
	}{
		{"unknown browser", func(c *Config) { c.BrowserCfg.Kind = "ie" }, "browser.kind \"ie\" is not supported"},
		{"remote without executor", func(c *Config) { c.BrowserCfg.Remote = true }, "browser.command_executor is required"},
		{"remote static", func(c *Config) {
			c.BrowserCfg.Kind = "static"
			c.BrowserCfg.Remote = true
		}, "cannot be used with the static browser"},
		{"zero timeout", func(c *Config) { c.SessionCfg.Timeout = 0 }, "session.timeout must be positive"},
		{"zero poll", func(c *Config) { c.SessionCfg.PollInterval = 0 }, "session.poll_interval must be positive"},
		{"poll above timeout", func(c *Config) { c.SessionCfg.PollInterval = time.Minute }, "must not exceed session.timeout"},
		{"missing screenshot dir", func(c *Config) { c.DiagnosticsCfg.ScreenshotDir = "" }, "diagnostics.screenshot_dir is required"},
		{"zero network timeout", func(c *Config) { c.NetworkCfg.Timeout = 0 }, "network.timeout must be positive"},
		{"negative redirects", func(c *Config) { c.NetworkCfg.MaxRedirects = -1 }, "network.max_redirects must not be negative"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			cfg := NewDefaultConfig()
			tc.mutate(cfg)
			err := cfg.Validate()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tc.errMsg)
		})
	}

	t.Run("remote chrome with executor", func(t *testing.T) {
		cfg := NewDefaultConfig()
		cfg.BrowserCfg.Remote = true
		cfg.BrowserCfg.CommandExecutor = "ws://127.0.0.1:9222"
		assert.NoError(t, cfg.Validate())
	})

	t.Run("disabled diagnostics need no dir", func(t *testing.T) {
		cfg := NewDefaultConfig()
		cfg.DiagnosticsCfg.Enabled = false
		cfg.DiagnosticsCfg.ScreenshotDir = ""
		assert.NoError(t, cfg.Validate())
	})
}

// -- Viper Integration Tests --

func TestNewConfigFromViper_YAML(t *testing.T) {
	yamlConfig := []byte(`
browser:
  kind: firefox
  headless: false
  args: ["--width=1280", "--kiosk"]
  extra:
    slow_mo: 25
session:
  base_url: http://the-internet.test
  timeout: 2s
diagnostics:
  screenshot_dir: ~/asli-shots
network:
  user_agent: asli-test
`)
	v := viper.New()
	SetDefaults(v)
	v.SetConfigType("yaml")
	require.NoError(t, v.ReadConfig(bytes.NewBuffer(yamlConfig)))

	cfg, err := NewConfigFromViper(v)
	require.NoError(t, err)

	assert.Equal(t, "firefox", cfg.Browser().Kind)
	assert.False(t, cfg.Browser().Headless)
	assert.Equal(t, []string{"--width=1280", "--kiosk"}, cfg.Browser().Args)
	assert.EqualValues(t, 25, cfg.Browser().Extra["slow_mo"])
	assert.Equal(t, "http://the-internet.test", cfg.Session().BaseURL)
	assert.Equal(t, 2*time.Second, cfg.Session().Timeout)
	assert.Equal(t, 50*time.Millisecond, cfg.Session().PollInterval, "unset keys keep defaults")
	assert.Equal(t, "asli-test", cfg.Network().UserAgent)

	home, err := homedir.Dir()
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(home, "asli-shots"), cfg.Diagnostics().ScreenshotDir)
}

func TestNewConfigFromViper_Invalid(t *testing.T) {
	v := viper.New()
	SetDefaults(v)
	v.Set("browser.kind", "ie")

	_, err := NewConfigFromViper(v)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid configuration")
}

func TestSetters(t *testing.T) {
	cfg := NewDefaultConfig()
	cfg.SetBrowserKind("static")
	cfg.SetBrowserHeadless(false)
	cfg.SetSessionBaseURL("http://x")
	cfg.SetSessionTimeout(time.Second)
	cfg.SetScreenshotDir("shots")

	assert.Equal(t, "static", cfg.Browser().Kind)
	assert.False(t, cfg.Browser().Headless)
	assert.Equal(t, "http://x", cfg.Session().BaseURL)
	assert.Equal(t, time.Second, cfg.Session().Timeout)
	assert.Equal(t, "shots", cfg.Diagnostics().ScreenshotDir)
}
