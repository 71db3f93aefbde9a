//go:build integration

package verify

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/example/go-melo-export/internal/config"
	"github.com/example/go-melo-export/internal/testutil"
)

// Runs a real exported artifact through ONNX Runtime. Set
// MELOEXPORT_TEST_ARTIFACT to a model produced by `meloexport export`.
func TestRunExportedArtifact(t *testing.T) {
	testutil.RequireONNXRuntime(t)
	artifact := testutil.RequireArtifact(t)

	opts := DefaultOptions()
	opts.ArtifactPath = artifact
	opts.Runtime = config.DefaultConfig().Runtime
	opts.Seed = 11
	opts.WAVPath = filepath.Join(t.TempDir(), "preview.wav")

	res, err := Run(context.Background(), opts)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if res.OutputShape[0] != int64(opts.BatchSize) {
		t.Fatalf("output batch = %d, want %d", res.OutputShape[0], opts.BatchSize)
	}

	data, err := os.ReadFile(opts.WAVPath)
	if err != nil {
		t.Fatalf("read preview: %v", err)
	}
	testutil.AssertValidWAV(t, data, res.Record.SampleRate)
}
