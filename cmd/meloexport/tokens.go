package main

import (
	"fmt"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/example/go-melo-export/internal/pipeline"
	"github.com/example/go-melo-export/internal/vocab"
)

func newTokensCmd() *cobra.Command {
	var outPath string

	cmd := &cobra.Command{
		Use:   "tokens",
		Short: "Write only the vocabulary file",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := requireConfig()
			if err != nil {
				return err
			}
			ctx := cmd.Context()

			table, err := pipeline.LanguageTable(cfg.Paths.LanguagesFile)
			if err != nil {
				return err
			}
			if _, err := table.Lookup(cfg.Export.Language); err != nil {
				return err
			}

			var d pipeline.Describer
			if cfg.Paths.HparamsPath == "" {
				b, err := buildBackend(ctx, cfg, true, cmd.OutOrStdout())
				if err != nil {
					return err
				}
				d = b.describer
			}
			hp, err := pipeline.ResolveHyperparams(ctx, cfg, d)
			if err != nil {
				return err
			}

			path := outPath
			if path == "" {
				path = cfg.Paths.TokensFile
				if !filepath.IsAbs(path) {
					path = filepath.Join(cfg.Paths.OutDir, path)
				}
			}
			if err := vocab.WriteFile(path, hp.Symbols); err != nil {
				return err
			}

			_, err = fmt.Fprintf(cmd.OutOrStdout(), "wrote %s (%d symbols)\n", path, len(hp.Symbols))
			return err
		},
	}

	cmd.Flags().StringVar(&outPath, "out", "", "Output path (default: tokens file under the output directory)")

	return cmd
}
