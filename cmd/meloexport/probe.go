package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/example/go-melo-export/internal/audio"
	"github.com/example/go-melo-export/internal/pipeline"
	"github.com/example/go-melo-export/internal/verify"
)

func newProbeCmd() *cobra.Command {
	var wavPath string

	cmd := &cobra.Command{
		Use:   "probe",
		Short: "Run the adapter once against the trained model without exporting",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := requireConfig()
			if err != nil {
				return err
			}
			ctx := cmd.Context()

			b, err := buildBackend(ctx, cfg, true, cmd.OutOrStdout())
			if err != nil {
				return err
			}
			hp, err := pipeline.ResolveHyperparams(ctx, cfg, b.describer)
			if err != nil {
				return err
			}

			y, err := pipeline.Probe(ctx, pipeline.Options{
				Config:      cfg,
				Hyperparams: hp,
				Model:       b.model,
			})
			if err != nil {
				return err
			}

			samples, err := verify.FirstWaveform(y)
			if err != nil {
				return err
			}
			stats := audio.Analyze(samples, hp.Data.SamplingRate)
			out := cmd.OutOrStdout()
			if _, err := fmt.Fprintf(out, "y%v %s\n", y.Shape(), stats); err != nil {
				return err
			}

			if wavPath == "" {
				return nil
			}
			if err := audio.WriteWAVFile(wavPath, samples, hp.Data.SamplingRate); err != nil {
				return err
			}
			_, err = fmt.Fprintf(out, "wrote %s\n", wavPath)
			return err
		},
	}

	cmd.Flags().StringVar(&wavPath, "wav", "", "Write the probe waveform to this WAV file")

	return cmd
}
