package main

import (
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/common/expfmt"
	"github.com/spf13/cobra"

	"github.com/vango-dev/pathway/pkg/inspect"
	"github.com/vango-dev/pathway/pkg/middleware"
	"github.com/vango-dev/pathway/pkg/router"
)

func navigateCmd(flags *globalFlags) *cobra.Command {
	var (
		replace     bool
		timeout     time.Duration
		asJSON      bool
		showMetrics bool
	)

	cmd := &cobra.Command{
		Use:   "navigate <path> [path...]",
		Short: "Run navigations and print the committed matches",
		Long: `Start a router on the manifest, then navigate to each path in turn,
running loaders and following redirects. After every navigation the
committed matches are printed with their status and data.

Examples:
  pathway navigate /posts/42
  pathway navigate / /old/7 --json
  pathway navigate /slow --timeout 2s --metrics`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(flags)
			if err != nil {
				return err
			}
			m, err := loadManifest(cmd.Context(), cfg)
			if err != nil {
				return err
			}

			reg := prometheus.NewRegistry()
			metrics := middleware.Prometheus(
				middleware.WithRegistry(reg),
				middleware.WithNamespace(cfg.Metrics.Namespace),
			)
			r, err := newRouter(cfg, m, "/", cmd.ErrOrStderr(),
				router.WithObserver(metrics),
				router.WithLoaderMiddleware(metrics),
			)
			if err != nil {
				return err
			}
			defer r.Close()

			out := cmd.OutOrStdout()
			for _, path := range args {
				ctx, cancel := context.WithTimeout(cmd.Context(), timeout)
				var opts []router.NavigateOption
				if replace {
					opts = append(opts, router.WithReplace())
				}
				err := r.Navigate(ctx, path, opts...)
				cancel()
				if err != nil {
					return fmt.Errorf("navigate %s: %w", path, err)
				}

				if asJSON {
					if err := writeJSON(out, inspect.SnapshotOf(r.State())); err != nil {
						return err
					}
					continue
				}
				printState(out, r.State())
			}

			if showMetrics {
				return writeMetrics(out, reg)
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&replace, "replace", false, "Replace history entries instead of pushing")
	cmd.Flags().DurationVar(&timeout, "timeout", 30*time.Second, "Time to wait for each navigation")
	cmd.Flags().BoolVar(&asJSON, "json", false, "Print JSON snapshots")
	cmd.Flags().BoolVar(&showMetrics, "metrics", false, "Print Prometheus metrics at the end")

	return cmd
}

func printState(w io.Writer, st router.State) {
	success(w, "%s", st.Location.Href)
	for i, m := range st.Matches {
		line := fmt.Sprintf("%-24s %-8s", m.RouteID, m.Status)
		switch {
		case m.Error != nil:
			line += " " + m.Error.Error()
		case m.Data != nil:
			line += fmt.Sprintf(" %v", m.Data)
		}
		info(w, "%s%s", strings.Repeat("  ", i), line)
		if m.NotFound != nil {
			warn(w, "%snot found below %s", strings.Repeat("  ", i), m.Pathname)
		}
	}
}

func writeMetrics(w io.Writer, g prometheus.Gatherer) error {
	families, err := g.Gather()
	if err != nil {
		return err
	}
	fmt.Fprintln(w)
	for _, mf := range families {
		if _, err := expfmt.MetricFamilyToText(w, mf); err != nil {
			return err
		}
	}
	return nil
}
