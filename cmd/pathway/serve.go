package main

import (
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/cobra"

	"github.com/vango-dev/pathway/pkg/inspect"
	"github.com/vango-dev/pathway/pkg/middleware"
	"github.com/vango-dev/pathway/pkg/router"
)

func serveCmd(flags *globalFlags) *cobra.Command {
	var (
		port    int
		host    string
		initial string
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve a router's state over HTTP",
		Long: `Start a router on the manifest and serve it for inspection.

Endpoints:
  GET  /state              current snapshot
  GET  /matches/{routeID}  one committed match
  POST /navigate           {"to": "/posts/$id", "params": {"id": "1"}}
  POST /invalidate         rerun every loader
  GET  /resolve?to=        build and match a location
  GET  /ws                 websocket stream of snapshots
  GET  /metrics            Prometheus metrics

Examples:
  pathway serve
  pathway serve --port=8080 --initial=/posts/1`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(flags)
			if err != nil {
				return err
			}
			if port > 0 {
				cfg.Inspect.Port = port
			}
			if host != "" {
				cfg.Inspect.Host = host
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			m, err := loadManifest(ctx, cfg)
			if err != nil {
				return err
			}
			logger := cfg.Logger(cmd.ErrOrStderr())

			reg := prometheus.NewRegistry()
			reg.MustRegister(
				collectors.NewGoCollector(),
				collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
			)
			metrics := middleware.Prometheus(
				middleware.WithRegistry(reg),
				middleware.WithNamespace(cfg.Metrics.Namespace),
			)
			tracer := middleware.OpenTelemetry()
			stream := inspect.NewStream(logger)

			r, err := newRouter(cfg, m, initial, cmd.ErrOrStderr(),
				router.WithObserver(metrics, tracer, stream),
				router.WithLoaderMiddleware(metrics, tracer),
			)
			if err != nil {
				return err
			}
			defer r.Close()

			if err := r.Load(ctx); err != nil {
				return err
			}

			opts := []inspect.Option{inspect.WithLogger(logger)}
			if cfg.StreamEnabled() {
				opts = append(opts, inspect.WithStream(stream))
			}
			if cfg.MetricsEnabled() {
				opts = append(opts, inspect.WithMetrics(reg))
			}
			srv := inspect.New(r, opts...)
			defer srv.Close()

			out := cmd.OutOrStdout()
			printBanner(out)
			success(out, "Serving %s", cfg.ManifestLocation())
			info(out, "http://%s/state", cfg.InspectAddress())
			info(out, "Press Ctrl+C to stop")

			return srv.ListenAndServe(ctx, cfg.InspectAddress())
		},
	}

	cmd.Flags().IntVarP(&port, "port", "p", 0, "Port to listen on (default from pathway.json)")
	cmd.Flags().StringVarP(&host, "host", "H", "", "Host to bind to (default from pathway.json)")
	cmd.Flags().StringVar(&initial, "initial", "/", "Initial location")

	return cmd
}
