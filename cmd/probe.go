// cmd/probe.go
package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/xkilldash9x/asli/internal/observability"
	"github.com/xkilldash9x/asli/pkg/asli"
	"github.com/xkilldash9x/asli/pkg/remote"
)

func newProbeCmd() *cobra.Command {
	var (
		selector string
		xpath    bool
		strict   bool
		all      bool
	)
	cmd := &cobra.Command{
		Use:   "probe <url>",
		Short: "Open a page and print the text of an element",
		Long: `Opens the URL, waits for the element to become visible and prints its text.
The URL may be relative to session.base_url.`,
		Args: cobra.ExactArgs(1),
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

			by := remote.ByCSS(selector)
			if xpath {
				by = remote.ByXPath(selector)
			}

			if all {
				items, err := s.ElementsBy(by)
				if err != nil {
					return err
				}
				if err := items.Assure(asli.NotEmpty); err != nil {
					return err
				}
				texts, err := items.Texts()
				if err != nil {
					return err
				}
				for _, text := range texts {
					fmt.Fprintln(cmd.OutOrStdout(), text)
				}
				return nil
			}

			el, err := s.ElementBy(by)
			if err != nil {
				return err
			}
			check := el.Assure
			if strict {
				check = el.Should
			}
			if err := check(asli.Visible); err != nil {
				return err
			}
			text, err := el.Text()
			if err != nil {
				return err
			}
			logger.Debug("Probed element.", zap.String("locator", el.Describe()))
			fmt.Fprintln(cmd.OutOrStdout(), text)
			return nil
		},
	}
	cmd.Flags().StringVarP(&selector, "selector", "s", "body", "element to read")
	cmd.Flags().BoolVar(&xpath, "xpath", false, "treat the selector as XPath")
	cmd.Flags().BoolVar(&strict, "strict", false, "fail as an assertion and capture a screenshot")
	cmd.Flags().BoolVar(&all, "all", false, "print the text of every match")
	return cmd
}
