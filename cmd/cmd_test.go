// cmd/cmd_test.go
package cmd

import (
	"bytes"
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/xkilldash9x/asli/internal/config"
	"github.com/xkilldash9x/asli/internal/observability"
	"github.com/xkilldash9x/asli/pkg/asli"
)

// resetForTest isolates a test from package state, config files on disk and
// the screenshot directory.
func resetForTest(t *testing.T) afero.Fs {
	t.Helper()
	cfgFile = ""
	fs := afero.NewMemMapFs()
	outputFs = fs
	t.Setenv("ASLI_DIAGNOSTICS_ENABLED", "false")
	observability.InitializeLogger(config.LoggerConfig{Level: "fatal", Format: "console", ServiceName: "test"})
	t.Cleanup(func() {
		cfgFile = ""
		outputFs = afero.NewOsFs()
		observability.ResetForTest()
	})
	return fs
}

func newSite(t *testing.T) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		fmt.Fprint(w, `<html><body>
  <h1 id="greeting">Hello, world</h1>
  <ul><li>one</li><li>two</li></ul>
  <p id="gone" style="display:none">hidden</p>
</body></html>`)
	}))
	t.Cleanup(srv.Close)
	return srv
}

// run executes a fresh command tree and returns its output.
func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	root := newRootCmd()
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetArgs(args)
	err := root.ExecuteContext(context.Background())
	return out.String(), err
}

func TestRootCmd_VersionFlag(t *testing.T) {
	resetForTest(t)
	out, err := run(t, "--version")
	require.NoError(t, err)
	assert.Equal(t, Version+"\n", out)
}

func TestVersionCmd(t *testing.T) {
	resetForTest(t)
	out, err := run(t, "version")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(out, "asli "+Version+" ("), out)
}

func TestRootCmd_NoArgs(t *testing.T) {
	resetForTest(t)
	out, err := run(t)
	require.NoError(t, err)
	assert.Contains(t, out, "asli drives a browser through lazy element locators.")
}

func TestProbeCmd(t *testing.T) {
	srv := newSite(t)

	t.Run("prints the element text", func(t *testing.T) {
		resetForTest(t)
		out, err := run(t, "--browser", "static", "probe", srv.URL, "-s", "#greeting")
		require.NoError(t, err)
		assert.Equal(t, "Hello, world\n", out)
	})

	t.Run("xpath", func(t *testing.T) {
		resetForTest(t)
		out, err := run(t, "--browser", "static", "probe", srv.URL, "--xpath", "-s", "//li[2]")
		require.NoError(t, err)
		assert.Equal(t, "two\n", out)
	})

	t.Run("every match", func(t *testing.T) {
		resetForTest(t)
		out, err := run(t, "--browser", "static", "probe", srv.URL, "--all", "-s", "li")
		require.NoError(t, err)
		assert.Equal(t, "one\ntwo\n", out)
	})

	t.Run("relative to the base url", func(t *testing.T) {
		resetForTest(t)
		t.Setenv("ASLI_SESSION_BASE_URL", srv.URL)
		out, err := run(t, "--browser", "static", "probe", "/index.html", "-s", "h1")
		require.NoError(t, err)
		assert.Equal(t, "Hello, world\n", out)
	})

	t.Run("soft failure", func(t *testing.T) {
		resetForTest(t)
		_, err := run(t, "--browser", "static", "--timeout", "150ms", "probe", srv.URL, "-s", "#gone")
		assert.ErrorIs(t, err, asli.ErrTimeout)
	})

	t.Run("strict failure", func(t *testing.T) {
		resetForTest(t)
		_, err := run(t, "--browser", "static", "--timeout", "150ms", "probe", srv.URL, "-s", "#gone", "--strict")
		assert.ErrorIs(t, err, asli.ErrAssertionFailed)
	})

	t.Run("requires a url", func(t *testing.T) {
		resetForTest(t)
		_, err := run(t, "--browser", "static", "probe")
		assert.Error(t, err)
	})

	assert.Zero(t, asli.LiveSessions(), "every probe closes its session")
}

func TestScreenshotCmd(t *testing.T) {
	srv := newSite(t)
	fs := resetForTest(t)

	out, err := run(t, "--browser", "static", "screenshot", srv.URL, "-o", "shots/page.png")
	require.NoError(t, err)
	assert.Equal(t, "shots/page.png\n", out)

	data, err := afero.ReadFile(fs, "shots/page.png")
	require.NoError(t, err)
	assert.Equal(t, []byte("\x89PNG"), data[:4])
}

func TestConfigFile(t *testing.T) {
	srv := newSite(t)
	resetForTest(t)

	path := filepath.Join(t.TempDir(), "asli.yaml")
	yaml := fmt.Sprintf("browser:\n  kind: static\nsession:\n  base_url: %s\n  timeout: 1s\n", srv.URL)
	require.NoError(t, os.WriteFile(path, []byte(yaml), 0o600))

	out, err := run(t, "--config", path, "probe", "/", "-s", "#greeting")
	require.NoError(t, err)
	assert.Equal(t, "Hello, world\n", out)
}

func TestInvalidConfig(t *testing.T) {
	resetForTest(t)
	_, err := run(t, "--browser", "ie", "probe", "http://example.invalid")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "browser.kind")

	resetForTest(t)
	_, err = run(t, "--config", filepath.Join(t.TempDir(), "missing.yaml"), "probe", "http://example.invalid")
	assert.ErrorContains(t, err, "error reading config file")
}

func TestGetConfigFromContext(t *testing.T) {
	_, err := getConfigFromContext(context.Background())
	assert.Error(t, err)

	cfg := config.NewDefaultConfig()
	got, err := getConfigFromContext(context.WithValue(context.Background(), configKey, config.Interface(cfg)))
	require.NoError(t, err)
	assert.Same(t, cfg, got)
}

func TestClientConfig(t *testing.T) {
	logger := zaptest.NewLogger(t)

	c, err := clientConfig(config.NetworkConfig{
		Timeout:         3 * time.Second,
		UserAgent:       "probe/1",
		IgnoreTLSErrors: true,
		MaxRedirects:    2,
		Proxy:           "http://proxy:3128",
	}, logger)
	require.NoError(t, err)
	assert.Equal(t, 3*time.Second, c.RequestTimeout)
	assert.Equal(t, "probe/1", c.UserAgent)
	assert.True(t, c.IgnoreTLSErrors)
	assert.Equal(t, 2, c.MaxRedirects)
	assert.Equal(t, "proxy:3128", c.ProxyURL.Host)

	_, err = clientConfig(config.NetworkConfig{Proxy: "://bad"}, logger)
	assert.ErrorContains(t, err, "network.proxy")
}

func TestNewSession(t *testing.T) {
	logger := zaptest.NewLogger(t)
	cfg := config.NewDefaultConfig()
	cfg.SetBrowserKind("firefox")
	cfg.BrowserCfg.Remote = true
	cfg.BrowserCfg.CommandExecutor = "ws://grid:3000"
	cfg.SetSessionTimeout(2 * time.Second)

	s, err := newSession(cfg, logger)
	require.NoError(t, err)
	assert.Equal(t, "Remote", s.Name())
	assert.Equal(t, 2*time.Second, s.Timeout())
	assert.False(t, s.IsLive())
}
