// cmd/session.go
package cmd

import (
	"fmt"
	"net/url"

	"go.uber.org/zap"

	"github.com/xkilldash9x/asli/internal/config"
	"github.com/xkilldash9x/asli/internal/drivers"
	"github.com/xkilldash9x/asli/internal/network"
	"github.com/xkilldash9x/asli/internal/provision"
	"github.com/xkilldash9x/asli/pkg/asli"
	"github.com/xkilldash9x/asli/pkg/remote"
)

// newSession translates the loaded configuration into an unlaunched session.
func newSession(cfg config.Interface, logger *zap.Logger) (*asli.Session, error) {
	b := cfg.Browser()
	sc := cfg.Session()
	dc := cfg.Diagnostics()

	launcher := drivers.NewLauncher(logger)
	launcher.Provisioner = provision.New(b.ExecPath, b.Install, logger)

	var options any
	if remote.Browser(b.Kind) == remote.Static {
		clientCfg, err := clientConfig(cfg.Network(), logger)
		if err != nil {
			return nil, err
		}
		options = clientCfg
	}

	return asli.NewSession(asli.Config{
		Browser:            remote.Browser(b.Kind),
		Remote:             b.Remote,
		Headless:           b.Headless,
		Options:            options,
		CommandExecutor:    b.CommandExecutor,
		ExecPath:           b.ExecPath,
		Args:               b.Args,
		Extra:              b.Extra,
		BaseURL:            sc.BaseURL,
		Timeout:            sc.Timeout,
		PollInterval:       sc.PollInterval,
		ScreenshotDir:      dc.ScreenshotDir,
		DisableScreenshots: !dc.Enabled,
		Logger:             logger,
		Launcher:           launcher,
	})
}

// clientConfig maps the network section onto the static driver's HTTP client.
func clientConfig(nc config.NetworkConfig, logger *zap.Logger) (*network.ClientConfig, error) {
	c := network.NewDefaultClientConfig()
	c.Logger = logger.Named("httpclient")
	c.IgnoreTLSErrors = nc.IgnoreTLSErrors
	if nc.Timeout > 0 {
		c.RequestTimeout = nc.Timeout
	}
	if nc.UserAgent != "" {
		c.UserAgent = nc.UserAgent
	}
	c.MaxRedirects = nc.MaxRedirects
	if nc.Proxy != "" {
		proxy, err := url.Parse(nc.Proxy)
		if err != nil {
			return nil, fmt.Errorf("invalid network.proxy %q: %w", nc.Proxy, err)
		}
		c.ProxyURL = proxy
	}
	return c, nil
}
