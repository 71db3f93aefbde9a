package main

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/example/go-melo-export/internal/config"
	"github.com/example/go-melo-export/internal/pipeline"
)

func newLanguagesCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "languages",
		Short: "List the language table: key, name, id, tone start and artifact names",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := requireConfig()
			if err != nil {
				return err
			}
			table, err := pipeline.LanguageTable(cfg.Paths.LanguagesFile)
			if err != nil {
				return err
			}

			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			_, _ = fmt.Fprintln(tw, "KEY\tNAME\tLANG_ID\tTONE_START\tARTIFACT")
			for _, key := range table.Keys() {
				l := table[key]
				_, _ = fmt.Fprintf(tw, "%s\t%s\t%d\t%d\t%s, %s\n", l.Key, l.Name, l.ID, l.ToneStart,
					pipeline.ArtifactFile(l, config.VariantDefault), pipeline.ArtifactFile(l, config.VariantJaBert))
			}
			return tw.Flush()
		},
	}
}
