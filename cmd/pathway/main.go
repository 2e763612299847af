package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/vango-dev/pathway/internal/config"
	"github.com/vango-dev/pathway/internal/errors"
	"github.com/vango-dev/pathway/pkg/history"
	"github.com/vango-dev/pathway/pkg/manifest"
	"github.com/vango-dev/pathway/pkg/router"
)

// Version information set at build time.
var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

const banner = `
  pathway
  ───────
`

// globalFlags are shared by every command.
type globalFlags struct {
	configPath string
	manifest   string
	logLevel   string
}

func main() {
	os.Exit(execute(newRootCmd(), os.Stderr))
}

// execute runs cmd, prints any failure to stderr and returns the exit code.
func execute(cmd *cobra.Command, stderr io.Writer) int {
	if err := cmd.Execute(); err != nil {
		if os.Getenv("NO_COLOR") != "" {
			errors.DisableColors()
		}
		errors.PrintError(stderr, err)
		return 1
	}
	return 0
}

func newRootCmd() *cobra.Command {
	flags := &globalFlags{}

	rootCmd := &cobra.Command{
		Use:   "pathway",
		Short: "Inspect and exercise hierarchical route trees",
		Long: `pathway matches locations against a route tree, runs its loaders,
and serves the router's state for inspection.

Route trees are described by a JSON manifest, read from a file
or from S3 (s3://bucket/key).`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.PersistentFlags().StringVarP(&flags.configPath, "config", "c", "", "Path to pathway.json (default: nearest in parent directories)")
	rootCmd.PersistentFlags().StringVarP(&flags.manifest, "manifest", "m", "", "Manifest location (overrides pathway.json)")
	rootCmd.PersistentFlags().StringVar(&flags.logLevel, "log-level", "", "Log level: debug, info, warn, error")

	rootCmd.AddCommand(
		initCmd(),
		matchCmd(flags),
		resolveCmd(flags),
		navigateCmd(flags),
		serveCmd(flags),
		versionCmd(),
	)
	return rootCmd
}

// loadConfig loads pathway.json and applies command-line overrides. A
// missing config file means defaults.
func loadConfig(flags *globalFlags) (*config.Config, error) {
	var (
		cfg *config.Config
		err error
	)
	switch {
	case flags.configPath != "":
		cfg, err = config.LoadFile(flags.configPath)
	default:
		wd, werr := os.Getwd()
		if werr != nil {
			return nil, werr
		}
		if root, ferr := config.FindProjectRoot(wd); ferr == nil {
			cfg, err = config.Load(root)
		} else {
			cfg = config.New()
		}
	}
	if err != nil {
		return nil, err
	}

	if loc := flags.manifest; loc != "" {
		// A flag path is relative to the working directory, not the
		// config file.
		if !strings.HasPrefix(loc, "s3://") && !filepath.IsAbs(loc) {
			if abs, err := filepath.Abs(loc); err == nil {
				loc = abs
			}
		}
		cfg.Manifest.Location = loc
	}
	if flags.logLevel != "" {
		cfg.Log.Level = flags.logLevel
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// loadManifest reads the manifest named by cfg.
func loadManifest(ctx context.Context, cfg *config.Config) (*manifest.Manifest, error) {
	src, err := manifest.OpenSource(cfg.ManifestLocation(), manifest.S3Options{
		Region:       cfg.Manifest.Region,
		Endpoint:     cfg.Manifest.Endpoint,
		UsePathStyle: cfg.Manifest.PathStyle,
	})
	if err != nil {
		return nil, err
	}
	return manifest.Load(ctx, src)
}

// newRouter builds a router for m at initial. Manifest settings win over
// pathway.json.
func newRouter(cfg *config.Config, m *manifest.Manifest, initial string, logOut io.Writer, opts ...router.Option) (*router.Router, error) {
	parser := cfg.SearchParser()
	if m.Search != "" {
		parser = m.SearchParser()
	}
	basepath := cfg.Router.Basepath
	if m.Basepath != "" {
		basepath = m.Basepath
	}

	base := []router.Option{
		router.WithHistory(history.NewMemory(initial)),
		router.WithSearchParser(parser),
		router.WithBasepath(basepath),
		router.WithLoaderConcurrency(cfg.Router.LoaderConcurrency),
		router.WithMaxRedirects(cfg.Router.MaxRedirects),
		router.WithLogger(cfg.Logger(logOut)),
	}
	return router.New(m.Routes(), append(base, opts...)...)
}

// printBanner prints the pathway banner.
func printBanner(w io.Writer) {
	fmt.Fprint(w, banner)
}

// success prints a success message.
func success(w io.Writer, format string, args ...any) {
	fmt.Fprintf(w, "\033[32m✓\033[0m %s\n", fmt.Sprintf(format, args...))
}

// info prints an info message.
func info(w io.Writer, format string, args ...any) {
	fmt.Fprintf(w, "  %s\n", fmt.Sprintf(format, args...))
}

// warn prints a warning message.
func warn(w io.Writer, format string, args ...any) {
	fmt.Fprintf(w, "\033[33m⚠\033[0m %s\n", fmt.Sprintf(format, args...))
}
