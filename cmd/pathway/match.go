package main

import (
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/spf13/cobra"

	"github.com/vango-dev/pathway/pkg/inspect"
	"github.com/vango-dev/pathway/pkg/router"
)

func matchCmd(flags *globalFlags) *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "match <path>",
		Short: "Match a path against the route tree",
		Long: `Match a path against the manifest's route tree without running loaders.

Prints the chain of matched routes from the root down. When only a prefix
of the path matches, the deepest match is reported as not found.

Examples:
  pathway match /posts/42
  pathway match /files/docs/readme.md --json`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(flags)
			if err != nil {
				return err
			}
			m, err := loadManifest(cmd.Context(), cfg)
			if err != nil {
				return err
			}
			tree, err := m.Tree()
			if err != nil {
				return err
			}

			matches, err := tree.Match(args[0])
			if err != nil && !router.IsNotFound(err) {
				return err
			}
			res := inspect.Resolution{
				Location: inspect.LocationView{Pathname: args[0]},
				Matches:  resolvedRoutes(matches),
				NotFound: err != nil,
			}
			if asJSON {
				return writeJSON(cmd.OutOrStdout(), res)
			}
			printResolution(cmd.OutOrStdout(), res)
			return nil
		},
	}

	cmd.Flags().BoolVar(&asJSON, "json", false, "Print JSON")

	return cmd
}

func resolvedRoutes(matches []router.RouteMatch) []inspect.ResolvedRoute {
	out := make([]inspect.ResolvedRoute, 0, len(matches))
	for _, m := range matches {
		out = append(out, inspect.ResolvedRoute{
			RouteID:  m.Route.ID(),
			Pathname: m.Pathname,
			Params:   m.Params,
		})
	}
	return out
}

func printResolution(w io.Writer, res inspect.Resolution) {
	if res.Location.Href != "" {
		success(w, "%s", res.Location.Href)
	}
	for i, m := range res.Matches {
		line := fmt.Sprintf("%s%-24s %s", strings.Repeat("  ", i), m.RouteID, m.Pathname)
		if p := formatParams(m.Params); p != "" {
			line += "  " + p
		}
		info(w, "%s", line)
	}
	if res.NotFound {
		warn(w, "no route matches all of %s", res.Location.Pathname)
	}
}

func formatParams(params map[string]string) string {
	if len(params) == 0 {
		return ""
	}
	keys := make([]string, 0, len(params))
	for k := range params {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, len(keys))
	for i, k := range keys {
		parts[i] = k + "=" + params[k]
	}
	return "{" + strings.Join(parts, ", ") + "}"
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
