package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/example/go-melo-export/internal/verify"
)

// runVerify is replaced in tests.
var runVerify = verify.Run

func newVerifyCmd() *cobra.Command {
	defaults := verify.DefaultOptions()
	var batch, seq int
	var wavPath string

	cmd := &cobra.Command{
		Use:   "verify <artifact.onnx>",
		Short: "Run the artifact in ONNX Runtime at a batch and length unlike the export dummy",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := requireConfig()
			if err != nil {
				return err
			}

			opts := defaults
			opts.ArtifactPath = args[0]
			opts.Runtime = cfg.Runtime
			opts.BatchSize = batch
			opts.SeqLen = seq
			opts.TokenHigh = cfg.Export.TokenHigh
			opts.Seed = cfg.Export.Seed
			opts.WAVPath = wavPath
			opts.Stdout = cmd.OutOrStdout()

			res, err := runVerify(cmd.Context(), opts)
			if err != nil {
				return fmt.Errorf("verify %s: %w", args[0], err)
			}
			if wavPath != "" {
				_, err = fmt.Fprintf(cmd.OutOrStdout(), "wrote %s (%s)\n", wavPath, res.Preview)
			}
			return err
		},
	}

	cmd.Flags().IntVar(&batch, "verify-batch", defaults.BatchSize, "Batch size fed to the artifact")
	cmd.Flags().IntVar(&seq, "verify-seq", defaults.SeqLen, "Sequence length fed to the artifact")
	cmd.Flags().StringVar(&wavPath, "wav", "", "Write the first waveform of the batch to this WAV file")

	return cmd
}
