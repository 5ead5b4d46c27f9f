// cmd/screenshot.go
package cmd

import (
	"fmt"
	"path/filepath"

	"github.com/spf13/afero"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/xkilldash9x/asli/internal/observability"
)

// outputFs receives screenshot files.
var outputFs = afero.NewOsFs()

func newScreenshotCmd() *cobra.Command {
	var output string
	cmd := &cobra.Command{
		Use:   "screenshot <url>",
		Short: "Open a page and save it as PNG",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			cfg, err := getConfigFromContext(ctx)
			if err != nil {
				return err
			}
			logger := observability.GetLogger()

			s, err := newSession(cfg, logger)
			if err != nil {
				return err
			}
			defer func() {
				if err := s.CloseAll(); err != nil {
					logger.Warn("Failed to close browser.", zap.Error(err))
				}
			}()

			if err := s.OpenContext(ctx, args[0]); err != nil {
				return fmt.Errorf("failed to open %s: %w", args[0], err)
			}
			png, err := s.Screenshot()
			if err != nil {
				return fmt.Errorf("failed to capture screenshot: %w", err)
			}

			if dir := filepath.Dir(output); dir != "." {
				if err := outputFs.MkdirAll(dir, 0o755); err != nil {
					return fmt.Errorf("failed to create %s: %w", dir, err)
				}
			}
			if err := afero.WriteFile(outputFs, output, png, 0o644); err != nil {
				return fmt.Errorf("failed to write %s: %w", output, err)
			}
			logger.Info("Screenshot saved.", zap.String("path", output), zap.Int("bytes", len(png)))
			fmt.Fprintln(cmd.OutOrStdout(), output)
			return nil
		},
	}
	cmd.Flags().StringVarP(&output, "output", "o", "screenshot.png", "file to write")
	return cmd
}
