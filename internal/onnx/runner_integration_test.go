//go:build integration

package onnx_test

import (
	"context"
	"os"
	"testing"

	"github.com/example/go-melo-export/internal/config"
	"github.com/example/go-melo-export/internal/export"
	"github.com/example/go-melo-export/internal/onnx"
	"github.com/example/go-melo-export/internal/testutil"
)

func openArtifact(t *testing.T) (*onnx.Runner, *onnx.ModelInfo) {
	t.Helper()
	testutil.RequireONNXRuntime(t)
	path := testutil.RequireArtifact(t)

	raw, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read artifact: %v", err)
	}
	info, err := onnx.DecodeModel(raw)
	if err != nil {
		t.Fatalf("DecodeModel: %v", err)
	}

	rt, err := onnx.DetectRuntime(config.RuntimeConfig{})
	if err != nil {
		t.Skipf("ONNX Runtime library not detected: %v", err)
	}
	runner, err := onnx.NewRunner(path, rt.RunnerConfig())
	if err != nil {
		t.Fatalf("NewRunner: %v", err)
	}
	return runner, info
}

// TestRunnerIntegration_DynamicBatch feeds batch 3 to an artifact traced at
// batch 1.
func TestRunnerIntegration_DynamicBatch(t *testing.T) {
	runner, info := openArtifact(t)
	defer runner.Close()

	width := 0
	if vi, ok := info.Input("ja_bert"); ok {
		width = int(vi.Dims[1].Value)
	}
	in, err := export.DummyTensors(export.DummyOptions{BatchSize: 3, SeqLen: 23, TokenHigh: 10, Seed: 9}, width)
	if err != nil {
		t.Fatalf("DummyTensors: %v", err)
	}

	named := in.Named()
	feeds := make(map[string]*onnx.Tensor, len(info.Inputs))
	for _, vi := range info.Inputs {
		feeds[vi.Name] = named[vi.Name]
	}

	outputs, err := runner.Run(context.Background(), feeds)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	y, ok := outputs["y"]
	if !ok {
		t.Fatalf("missing 'y' in results")
	}
	if y.Rank() != 3 || y.Dim(0) != 3 {
		t.Fatalf("y shape = %v, want (3, S, T)", y.Shape())
	}
}

// TestRunnerIntegration_RejectsWrongDType passes float32 where int64 is declared.
func TestRunnerIntegration_RejectsWrongDType(t *testing.T) {
	runner, _ := openArtifact(t)
	defer runner.Close()

	bad := onnx.MustTensor([]float32{1, 2, 3}, []int64{1, 3})
	if _, err := runner.Run(context.Background(), map[string]*onnx.Tensor{"x": bad}); err == nil {
		t.Fatal("expected error for float32 x")
	}
}

func TestRunnerIntegration_CloseIsIdempotent(t *testing.T) {
	runner, _ := openArtifact(t)

	runner.Close()
	runner.Close() // must not panic
}
