package main

import (
	"net/url"

	"github.com/spf13/cobra"

	"github.com/vango-dev/pathway/pkg/inspect"
	"github.com/vango-dev/pathway/pkg/router"
)

func resolveCmd(flags *globalFlags) *cobra.Command {
	var (
		from   string
		hash   string
		params map[string]string
		search map[string]string
		asJSON bool
	)

	cmd := &cobra.Command{
		Use:   "resolve <to>",
		Short: "Build an href from a link target",
		Long: `Resolve a link target into a canonical href, the way a Link would.

Relative targets resolve against --from. Route patterns such as
/posts/$id are filled from --param.

Examples:
  pathway resolve /posts/$id --param id=42
  pathway resolve ../edit --from /posts/42
  pathway resolve /search --search q=go --hash results`,
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
			r, err := newRouter(cfg, m, "/", cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			defer r.Close()

			to := router.To{To: args[0], From: from, Params: params, Hash: hash}
			if len(search) > 0 {
				to.Search = url.Values{}
				for k, v := range search {
					to.Search.Set(k, v)
				}
			}
			loc, err := r.BuildLocation(to)
			if err != nil {
				return err
			}

			matches, err := r.Tree().Match(loc.Pathname)
			if err != nil && !router.IsNotFound(err) {
				return err
			}
			res := inspect.Resolution{
				Location: inspect.LocationView{
					Href:     loc.Href,
					Pathname: loc.Pathname,
					Search:   loc.SearchParams,
					Hash:     loc.Hash,
				},
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

	cmd.Flags().StringVar(&from, "from", "", "Location relative targets resolve against (default /)")
	cmd.Flags().StringVar(&hash, "hash", "", "Fragment without #")
	cmd.Flags().StringToStringVarP(&params, "param", "p", nil, "Route params (name=value)")
	cmd.Flags().StringToStringVarP(&search, "search", "s", nil, "Search params (key=value)")
	cmd.Flags().BoolVar(&asJSON, "json", false, "Print JSON")

	return cmd
}
