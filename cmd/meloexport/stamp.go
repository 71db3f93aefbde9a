package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/example/go-melo-export/internal/pipeline"
)

func newStampCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "stamp <artifact.onnx>",
		Short: "Replace the metadata of an existing artifact",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := requireConfig()
			if err != nil {
				return err
			}
			ctx := cmd.Context()

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

			rec, err := pipeline.Restamp(args[0], cfg, nil, hp)
			if err != nil {
				return err
			}
			_, err = fmt.Fprintf(cmd.OutOrStdout(), "stamped %s (language=%s lang_id=%d ja_bert_dim=%d)\n",
				args[0], rec.Language, rec.LangID, rec.JaBertDim)
			return err
		},
	}
}
