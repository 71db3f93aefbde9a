// Package verify loads an exported artifact in ONNX Runtime and runs it at a
// batch size and sequence length different from the export dummy, proving
// the dynamic axes were not baked in.
package verify

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/example/go-melo-export/internal/adapter"
	"github.com/example/go-melo-export/internal/audio"
	"github.com/example/go-melo-export/internal/config"
	"github.com/example/go-melo-export/internal/export"
	"github.com/example/go-melo-export/internal/melo"
	"github.com/example/go-melo-export/internal/metadata"
	"github.com/example/go-melo-export/internal/onnx"
)

type Options struct {
	ArtifactPath string
	Runtime      config.RuntimeConfig
	BatchSize    int
	SeqLen       int
	TokenHigh    int
	Seed         int64
	// WAVPath, when set, receives the first waveform of the batch.
	WAVPath string
	Stdout  io.Writer
}

func DefaultOptions() Options {
	return Options{BatchSize: 2, SeqLen: 37, TokenHigh: 10}
}

type Result struct {
	Record      metadata.Record
	Inputs      []string
	OutputShape []int64
	Preview     audio.Stats
}

type nativeRunner func(ctx context.Context, path string, rc onnx.RunnerConfig, inputs map[string]*onnx.Tensor) (map[string]*onnx.Tensor, error)

var runNative nativeRunner = runNativeImpl

// Run checks the artifact's metadata, feeds it a fresh batch through ORT and
// checks the waveform comes back as (BatchSize, S, T).
func Run(ctx context.Context, opts Options) (Result, error) {
	if opts.ArtifactPath == "" {
		return Result{}, fmt.Errorf("%w: artifact path is required", melo.ErrConfig)
	}
	if opts.Stdout == nil {
		opts.Stdout = io.Discard
	}

	raw, err := os.ReadFile(opts.ArtifactPath)
	if err != nil {
		return Result{}, fmt.Errorf("%w: read artifact: %v", melo.ErrArtifact, err)
	}
	info, err := onnx.DecodeModel(raw)
	if err != nil {
		return Result{}, fmt.Errorf("%w: decode %s: %v", melo.ErrArtifact, opts.ArtifactPath, err)
	}
	rec, err := metadata.Parse(info.Metadata)
	if err != nil {
		return Result{}, err
	}

	width, err := jaBertWidth(info, rec)
	if err != nil {
		return Result{}, err
	}

	dummy, err := export.DummyTensors(export.DummyOptions{
		BatchSize: opts.BatchSize,
		SeqLen:    opts.SeqLen,
		TokenHigh: opts.TokenHigh,
		SpeakerID: rec.SpeakerID,
		Seed:      opts.Seed,
	}, width)
	if err != nil {
		return Result{}, err
	}

	named := dummy.Named()
	inputs := make(map[string]*onnx.Tensor, len(info.Inputs))
	names := make([]string, 0, len(info.Inputs))
	for _, in := range info.Inputs {
		t, ok := named[in.Name]
		if !ok {
			return Result{}, fmt.Errorf("%w: artifact input %q is not part of the MeloTTS signature", melo.ErrContract, in.Name)
		}
		inputs[in.Name] = t
		names = append(names, in.Name)
	}

	rt, err := onnx.DetectRuntime(opts.Runtime)
	if err != nil {
		return Result{}, fmt.Errorf("%w: %v", melo.ErrConfig, err)
	}

	outputs, err := runNative(ctx, opts.ArtifactPath, rt.RunnerConfig(), inputs)
	if err != nil {
		return Result{}, fmt.Errorf("%w: %v", melo.ErrContract, err)
	}

	y, ok := outputs[adapter.OutputY]
	if !ok || y == nil {
		return Result{}, fmt.Errorf("%w: artifact produced no %q output", melo.ErrContract, adapter.OutputY)
	}
	if y.Rank() != 3 || y.Dim(0) != int64(opts.BatchSize) {
		return Result{}, fmt.Errorf("%w: output %s shape %v, want (%d, S, T)", melo.ErrContract, adapter.OutputY, y.Shape(), opts.BatchSize)
	}

	res := Result{Record: rec, Inputs: names, OutputShape: y.Shape()}

	samples, err := FirstWaveform(y)
	if err != nil {
		return Result{}, err
	}
	res.Preview = audio.Analyze(samples, rec.SampleRate)
	if opts.WAVPath != "" {
		if err := audio.WriteWAVFile(opts.WAVPath, samples, rec.SampleRate); err != nil {
			return Result{}, fmt.Errorf("%w: %v", melo.ErrArtifact, err)
		}
	}

	_, _ = fmt.Fprintf(opts.Stdout, "PASS %s: batch=%d seq=%d -> y%v\n", opts.ArtifactPath, opts.BatchSize, opts.SeqLen, res.OutputShape)
	return res, nil
}

// FirstWaveform returns y[0] flattened, the waveform of the first batch item.
func FirstWaveform(y *onnx.Tensor) ([]float32, error) {
	data, err := onnx.ExtractFloat32(y)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", melo.ErrContract, err)
	}
	if y.Rank() < 1 || y.Dim(0) < 1 {
		return nil, fmt.Errorf("%w: empty waveform tensor %v", melo.ErrContract, y.Shape())
	}
	per := len(data) / int(y.Dim(0))
	return data[:per], nil
}

// jaBertWidth returns the feature width of the ja_bert input, 0 when the
// artifact does not take one. It must agree with the ja_bert_dim metadata.
func jaBertWidth(info *onnx.ModelInfo, rec metadata.Record) (int, error) {
	vi, ok := info.Input(adapter.InputJaBert)
	if !ok {
		if rec.JaBertDim != 0 {
			return 0, fmt.Errorf("%w: metadata ja_bert_dim=%d but artifact has no %s input", melo.ErrContract, rec.JaBertDim, adapter.InputJaBert)
		}
		return 0, nil
	}
	if len(vi.Dims) != 3 || vi.Dims[1].Symbolic() {
		return 0, fmt.Errorf("%w: %s must have a fixed feature axis, got %v", melo.ErrContract, adapter.InputJaBert, vi.Dims)
	}
	width := int(vi.Dims[1].Value)
	if width != rec.JaBertDim {
		return 0, fmt.Errorf("%w: %s width %d, metadata ja_bert_dim=%d", melo.ErrContract, adapter.InputJaBert, width, rec.JaBertDim)
	}
	return width, nil
}

func runNativeImpl(ctx context.Context, path string, rc onnx.RunnerConfig, inputs map[string]*onnx.Tensor) (map[string]*onnx.Tensor, error) {
	r, err := onnx.NewRunner(path, rc)
	if err != nil {
		return nil, err
	}
	defer r.Close()
	return r.Run(ctx, inputs)
}
