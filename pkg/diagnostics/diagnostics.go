// pkg/diagnostics/diagnostics.go

// Package diagnostics captures a screenshot artifact when a browser operation
// fails, then hands the original failure back to the caller unchanged.
package diagnostics

import (
	"errors"
	"fmt"
	"path/filepath"

	"github.com/google/uuid"
	"github.com/spf13/afero"
	"go.uber.org/zap"

	"github.com/xkilldash9x/asli/pkg/remote"
	"github.com/xkilldash9x/asli/pkg/wait"
)

// Screenshotter is anything that can produce a PNG of its current page.
type Screenshotter interface {
	Screenshot() ([]byte, error)
}

// Recorder writes failure screenshots into Dir.
type Recorder struct {
	Dir    string
	Fs     afero.Fs
	Logger *zap.Logger
	// Prefix is prepended to every generated file name.
	Prefix string
}

// NewRecorder returns a Recorder writing to dir on the OS file system.
func NewRecorder(dir string, logger *zap.Logger) *Recorder {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Recorder{
		Dir:    dir,
		Fs:     afero.NewOsFs(),
		Logger: logger.Named("diagnostics"),
	}
}

// Handles reports whether err is one of the failure kinds that trigger a capture:
// driver errors, expired waits and failed assertions.
func Handles(err error) bool {
	return remote.IsDriverError(err) ||
		errors.Is(err, wait.ErrTimeout) ||
		errors.Is(err, wait.ErrAssertionFailed)
}

// Guard runs op and, when it fails with a handled error, captures a screenshot
// from target before returning the error unchanged.
func (r *Recorder) Guard(target any, op func() error) error {
	err := op()
	if err == nil || !Handles(err) {
		return err
	}
	r.OnFailure(target, err)
	return err
}

// OnFailure performs the capture for an error that has already happened.
// Capture problems never replace the original failure.
func (r *Recorder) OnFailure(target any, cause error) {
	if r == nil {
		return
	}
	log := r.logger()

	shooter, ok := target.(Screenshotter)
	if !ok || shooter == nil {
		log.Warn("Screenshot capability is missing, no screenshot can be captured.",
			zap.String("target", fmt.Sprintf("%T", target)),
			zap.Error(cause))
		return
	}

	path, err := r.Capture(shooter)
	switch {
	case err == nil:
		log.Error("Screenshot captured on failure.", zap.String("path", path), zap.Error(cause))
	case errors.Is(err, remote.ErrSessionNotReady):
		// No live session, nothing to capture.
	default:
		log.Warn("Failed to capture failure screenshot.", zap.Error(err), zap.NamedError("cause", cause))
	}
}

// Capture takes a screenshot and saves it as <Dir>/<Prefix><uuid>.png,
// returning the absolute path.
func (r *Recorder) Capture(shooter Screenshotter) (string, error) {
	png, err := shooter.Screenshot()
	if err != nil {
		return "", err
	}

	fs := r.Fs
	if fs == nil {
		fs = afero.NewOsFs()
	}
	dir := r.Dir
	if dir == "" {
		dir = "."
	}
	if abs, err := filepath.Abs(dir); err == nil {
		dir = abs
	}
	if err := fs.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("failed to create screenshot directory: %w", err)
	}

	path := filepath.Join(dir, fmt.Sprintf("%s%s.png", r.Prefix, uuid.New().String()))
	if err := afero.WriteFile(fs, path, png, 0o644); err != nil {
		return "", fmt.Errorf("failed to write screenshot: %w", err)
	}
	return path, nil
}

func (r *Recorder) logger() *zap.Logger {
	if r.Logger == nil {
		return zap.NewNop()
	}
	return r.Logger
}
