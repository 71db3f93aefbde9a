package main

import (
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strings"

	"github.com/spf13/cobra"

	"github.com/example/go-melo-export/internal/config"
	"github.com/example/go-melo-export/internal/doctor"
	"github.com/example/go-melo-export/internal/melo"
	"github.com/example/go-melo-export/internal/onnx"
)

// doctorConfig is replaced in tests.
var doctorConfig = defaultDoctorConfig

func newDoctorCmd() *cobra.Command {
	var skipPython bool

	cmd := &cobra.Command{
		Use:   "doctor",
		Short: "Check the Python helper, ONNX Runtime and configured files",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := requireConfig()
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()

			result := doctor.Run(doctorConfig(cmd.Context(), cfg, skipPython), out)
			if result.Failed() {
				for _, f := range result.Failures() {
					_, _ = fmt.Fprintf(cmd.ErrOrStderr(), "FAIL: %s\n", f)
				}
				return errors.New("doctor checks failed")
			}

			_, err = fmt.Fprintln(out, "doctor checks passed")
			return err
		},
	}

	cmd.Flags().BoolVar(&skipPython, "skip-python", false, "Skip the Python checks (enough for stamp, inspect and verify)")

	return cmd
}

func defaultDoctorConfig(ctx context.Context, cfg config.Config, skipPython bool) doctor.Config {
	dcfg := doctor.Config{
		SkipPython: skipPython,
		Runtime: func() (string, error) {
			info, err := onnx.DetectRuntime(cfg.Runtime)
			if err != nil {
				return "", err
			}
			if info.Version == "" {
				return info.LibraryPath, nil
			}
			return fmt.Sprintf("%s (%s)", info.LibraryPath, info.Version), nil
		},
		Files: []doctor.File{
			{Label: "hparams", Path: cfg.Paths.HparamsPath},
			{Label: "checkpoint", Path: cfg.Paths.CheckpointPath},
			{Label: "languages file", Path: cfg.Paths.LanguagesFile},
		},
	}

	h, helperErr := melo.NewHelper(cfg.Export.PythonBin, cfg.Export.Script)
	dcfg.PythonVersion = func() (string, error) {
		if helperErr != nil {
			return "", helperErr
		}
		return probePythonVersion(ctx, h.PythonBin)
	}
	dcfg.Tooling = func() error {
		return h.CheckTooling(ctx)
	}
	return dcfg
}

// probePythonVersion runs `<python> --version` and returns e.g. "3.10.12".
func probePythonVersion(ctx context.Context, bin string) (string, error) {
	out, err := exec.CommandContext(ctx, bin, "--version").CombinedOutput()
	if err != nil {
		return "", fmt.Errorf("%s --version failed: %w", bin, err)
	}
	raw := strings.TrimPrefix(strings.TrimSpace(string(out)), "Python ")
	if raw == "" {
		return "", fmt.Errorf("%s --version printed nothing", bin)
	}
	return raw, nil
}
