package main

import (
	"github.com/spf13/cobra"

	"github.com/example/go-melo-export/internal/pipeline"
)

func newExportCmd() *cobra.Command {
	var dryRun bool

	cmd := &cobra.Command{
		Use:   "export",
		Short: "Write tokens.txt and the stamped ONNX artifact for one language",
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

			b, err := buildBackend(ctx, cfg, dryRun, cmd.OutOrStdout())
			if err != nil {
				return err
			}
			hp, err := pipeline.ResolveHyperparams(ctx, cfg, b.describer)
			if err != nil {
				return err
			}

			_, err = pipeline.Run(ctx, pipeline.Options{
				Config:      cfg,
				Languages:   table,
				Hyperparams: hp,
				Model:       b.model,
				Exporter:    b.exporter,
				Stdout:      cmd.OutOrStdout(),
			})
			return err
		},
	}

	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "Run the adapter once and write a graph-less artifact instead of tracing")

	return cmd
}
