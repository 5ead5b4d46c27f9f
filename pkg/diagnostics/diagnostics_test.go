// pkg/diagnostics/diagnostics_test.go
package diagnostics

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"github.com/xkilldash9x/asli/pkg/remote"
	"github.com/xkilldash9x/asli/pkg/wait"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

type shooter struct {
	png   []byte
	err   error
	calls int
}

func (s *shooter) Screenshot() ([]byte, error) {
	s.calls++
	return s.png, s.err
}

var pngMagic = []byte("\x89PNG\r\n\x1a\n")

func newMemRecorder(t *testing.T) (*Recorder, afero.Fs, *observer.ObservedLogs) {
	t.Helper()
	core, logs := observer.New(zap.DebugLevel)
	fs := afero.NewMemMapFs()
	return &Recorder{Dir: "/shots", Fs: fs, Logger: zap.New(core)}, fs, logs
}

func listFiles(t *testing.T, fs afero.Fs, dir string) []string {
	t.Helper()
	infos, err := afero.ReadDir(fs, dir)
	if os.IsNotExist(err) {
		return nil
	}
	require.NoError(t, err)
	var names []string
	for _, fi := range infos {
		names = append(names, fi.Name())
	}
	return names
}

func TestGuard_CapturesOnTimeout(t *testing.T) {
	rec, fs, logs := newMemRecorder(t)
	target := &shooter{png: pngMagic}
	cause := wait.For(func() bool { return false }, 10*time.Millisecond, "never")

	err := rec.Guard(target, func() error { return cause })

	assert.Same(t, cause, err, "the original error must be returned unchanged")
	files := listFiles(t, fs, "/shots")
	require.Len(t, files, 1)
	assert.True(t, strings.HasSuffix(files[0], ".png"))

	data, err := afero.ReadFile(fs, filepath.Join("/shots", files[0]))
	require.NoError(t, err)
	assert.Equal(t, pngMagic, data)
	assert.Equal(t, 1, logs.FilterMessage("Screenshot captured on failure.").Len())
}

func TestGuard_CapturesOnAssertionAndDriverErrors(t *testing.T) {
	for _, cause := range []error{
		&wait.Error{Severity: wait.Hard, Description: "x"},
		remote.Wrap("click", nil, errors.New("element not interactable")),
		fmt.Errorf("lookup: %w", remote.ErrNoSuchElement),
	} {
		rec, fs, _ := newMemRecorder(t)
		err := rec.Guard(&shooter{png: pngMagic}, func() error { return cause })
		assert.Equal(t, cause, err)
		assert.Len(t, listFiles(t, fs, "/shots"), 1, "cause: %v", cause)
	}
}

func TestGuard_IgnoresUnhandledErrors(t *testing.T) {
	rec, fs, _ := newMemRecorder(t)
	target := &shooter{png: pngMagic}
	cause := errors.New("plain failure")

	err := rec.Guard(target, func() error { return cause })
	assert.Same(t, cause, err)
	assert.Zero(t, target.calls)
	assert.Empty(t, listFiles(t, fs, "/shots"))

	assert.NoError(t, rec.Guard(target, func() error { return nil }))
	assert.Zero(t, target.calls)
}

func TestGuard_SwallowsSessionNotReady(t *testing.T) {
	rec, fs, logs := newMemRecorder(t)
	target := &shooter{err: remote.ErrSessionNotReady}
	cause := &wait.Error{Severity: wait.Soft, Description: "visible"}

	err := rec.Guard(target, func() error { return cause })
	assert.Same(t, cause, err)
	assert.Equal(t, 1, target.calls)
	assert.Empty(t, listFiles(t, fs, "/shots"))
	assert.Zero(t, logs.Len(), "a missing session is not worth a log line")
}

func TestGuard_OtherCaptureFailuresAreLogged(t *testing.T) {
	rec, _, logs := newMemRecorder(t)
	cause := &wait.Error{Severity: wait.Hard}

	err := rec.Guard(&shooter{err: errors.New("renderer crashed")}, func() error { return cause })
	assert.Same(t, cause, err)
	assert.Equal(t, 1, logs.FilterMessage("Failed to capture failure screenshot.").Len())
}

func TestGuard_TargetWithoutCapability(t *testing.T) {
	rec, fs, logs := newMemRecorder(t)
	cause := &wait.Error{Severity: wait.Hard}

	err := rec.Guard(struct{}{}, func() error { return cause })
	assert.Same(t, cause, err)
	assert.Empty(t, listFiles(t, fs, "/shots"))
	assert.Equal(t, 1, logs.FilterLevelExact(zap.WarnLevel).Len())
}

func TestCapture_OsFs(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "nested", "logs")
	rec := NewRecorder(dir, nil)
	rec.Prefix = "fail-"

	path, err := rec.Capture(&shooter{png: pngMagic})
	require.NoError(t, err)
	assert.True(t, filepath.IsAbs(path))
	assert.True(t, strings.HasPrefix(filepath.Base(path), "fail-"))

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, filepath.Base(path), entries[0].Name())
}

func TestHandles(t *testing.T) {
	assert.True(t, Handles(&wait.Error{}))
	assert.True(t, Handles(remote.ErrStaleElement))
	assert.False(t, Handles(errors.New("x")))
	assert.False(t, Handles(nil))
}

func TestOnFailure_NilRecorder(t *testing.T) {
	var rec *Recorder
	assert.NotPanics(t, func() { rec.OnFailure(&shooter{}, errors.New("x")) })
}
