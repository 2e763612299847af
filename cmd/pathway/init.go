package main

import (
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/vango-dev/pathway/internal/config"
	"github.com/vango-dev/pathway/internal/errors"
)

const sampleManifest = `{
  "root": {
    "data": "app",
    "children": [
      {"path": "/", "data": "home"},
      {"path": "posts", "data": {"title": "posts"}, "children": [
        {"path": "/", "data": "all posts"},
        {"path": "$id", "data": {"title": "post {{id}}"}, "delay": "50ms"}
      ]},
      {"path": "old/$id", "redirect": "/posts/$id"},
      {"path": "broken", "error": "this loader always fails"},
      {"path": "files/$", "data": "file {{_splat}}"}
    ]
  }
}
`

func initCmd() *cobra.Command {
	var force bool

	cmd := &cobra.Command{
		Use:   "init [dir]",
		Short: "Create pathway.json and a sample manifest",
		Long: `Create pathway.json and a sample routes.json in the given directory
(default: the current directory).

Examples:
  pathway init
  pathway init ./demo --force`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			dir := "."
			if len(args) == 1 {
				dir = args[0]
			}
			if err := os.MkdirAll(dir, 0755); err != nil {
				return err
			}

			if config.Exists(dir) && !force {
				return errors.New(errors.EConfig).
					WithDetail(config.ConfigFileName + " already exists in " + dir).
					WithSuggestion("Use --force to overwrite it")
			}

			out := cmd.OutOrStdout()
			cfg := config.New()
			if err := cfg.SaveTo(filepath.Join(dir, config.ConfigFileName)); err != nil {
				return err
			}
			success(out, "Created %s", filepath.Join(dir, config.ConfigFileName))

			manifestPath := filepath.Join(dir, cfg.Manifest.Location)
			if _, err := os.Stat(manifestPath); err == nil && !force {
				warn(out, "Kept existing %s", manifestPath)
				return nil
			}
			if err := os.WriteFile(manifestPath, []byte(sampleManifest), 0644); err != nil {
				return err
			}
			success(out, "Created %s", manifestPath)
			info(out, "Try: pathway navigate /posts/1 /old/2")
			return nil
		},
	}

	cmd.Flags().BoolVarP(&force, "force", "f", false, "Overwrite existing files")

	return cmd
}
