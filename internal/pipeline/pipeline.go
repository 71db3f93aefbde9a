// Package pipeline runs one export end to end: vocabulary dump, graph
// export, signature check and metadata stamp.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/dustin/go-humanize"

	"github.com/example/go-melo-export/internal/adapter"
	"github.com/example/go-melo-export/internal/config"
	"github.com/example/go-melo-export/internal/export"
	"github.com/example/go-melo-export/internal/melo"
	"github.com/example/go-melo-export/internal/metadata"
	"github.com/example/go-melo-export/internal/onnx"
	"github.com/example/go-melo-export/internal/vocab"
)

type Options struct {
	Config config.Config
	// Languages replaces the table named by Config.Paths.LanguagesFile.
	Languages   melo.LanguageTable
	Hyperparams *melo.Hyperparams
	Model       melo.Model
	Exporter    export.Exporter
	Stdout      io.Writer
}

type Result struct {
	Language     melo.Language
	Variant      string
	TokensPath   string
	ArtifactPath string
	ArtifactSize int64
	Signature    *onnx.ModelInfo
	Record       metadata.Record
}

// ArtifactFile is model_<name>.onnx, or model_<name>_ja_bert.onnx when the
// secondary features are an input.
func ArtifactFile(lang melo.Language, variant string) string {
	if variant == config.VariantJaBert {
		return "model_" + lang.ArtifactName() + "_ja_bert.onnx"
	}
	return "model_" + lang.ArtifactName() + ".onnx"
}

// LanguageTable returns the built-in table, or the one in path when set.
func LanguageTable(path string) (melo.LanguageTable, error) {
	if path == "" {
		return melo.DefaultLanguageTable(), nil
	}
	return melo.LoadLanguageTable(path)
}

// Describer reads hyperparameters from a checkpoint. *melo.Helper is one.
type Describer interface {
	Describe(ctx context.Context, ck melo.Checkpoint) (*melo.Hyperparams, error)
}

// ResolveHyperparams reads a local config.json when one is configured and
// asks d otherwise.
func ResolveHyperparams(ctx context.Context, cfg config.Config, d Describer) (*melo.Hyperparams, error) {
	if cfg.Paths.HparamsPath != "" {
		return melo.LoadHyperparams(cfg.Paths.HparamsPath)
	}
	if d == nil {
		return nil, fmt.Errorf("%w: no hyperparameters path and no helper to describe the checkpoint", melo.ErrConfig)
	}
	return d.Describe(ctx, CheckpointFor(cfg))
}

func CheckpointFor(cfg config.Config) melo.Checkpoint {
	return melo.Checkpoint{
		Language:   cfg.Export.Language,
		ConfigPath: cfg.Paths.HparamsPath,
		CkptPath:   cfg.Paths.CheckpointPath,
		Device:     cfg.Export.Device,
	}
}

// plan is everything Run resolves before it touches the filesystem.
type plan struct {
	lang    melo.Language
	variant string
	adapter *adapter.Adapter
	dummy   adapter.Inputs
	record  metadata.Record
}

func prepare(opts Options) (plan, error) {
	cfg := opts.Config

	switch {
	case opts.Model == nil:
		return plan{}, fmt.Errorf("%w: pipeline needs a model", melo.ErrConfig)
	case opts.Hyperparams == nil:
		return plan{}, fmt.Errorf("%w: pipeline needs hyperparameters", melo.ErrConfig)
	}

	table := opts.Languages
	if table == nil {
		var err error
		table, err = LanguageTable(cfg.Paths.LanguagesFile)
		if err != nil {
			return plan{}, err
		}
	}
	lang, err := table.Lookup(cfg.Export.Language)
	if err != nil {
		return plan{}, err
	}

	hp := opts.Hyperparams
	if err := hp.Validate(); err != nil {
		return plan{}, err
	}
	if !hp.HasSpeaker(cfg.Export.SpeakerID) {
		return plan{}, fmt.Errorf("%w: speaker id %d not in spk2id %v", melo.ErrConfig, cfg.Export.SpeakerID, hp.Speakers())
	}

	variant, err := config.NormalizeVariant(cfg.Export.Variant)
	if err != nil {
		return plan{}, fmt.Errorf("%w: %v", melo.ErrConfig, err)
	}
	secondary, err := adapter.SecondaryFor(variant)
	if err != nil {
		return plan{}, err
	}
	a, err := adapter.New(opts.Model, lang, secondary)
	if err != nil {
		return plan{}, err
	}

	dummy, err := export.DummyInputs(a, export.DummyOptions{
		BatchSize: cfg.Export.BatchSize,
		SeqLen:    cfg.Export.SeqLen,
		TokenHigh: cfg.Export.TokenHigh,
		SpeakerID: cfg.Export.SpeakerID,
		Seed:      cfg.Export.Seed,
	})
	if err != nil {
		return plan{}, err
	}

	jaBertDim := 0
	if secondary.Exposed() {
		jaBertDim = secondary.Width()
	}
	rec := metadata.Build(lang, hp, cfg.Metadata, cfg.Export.SpeakerID, jaBertDim)
	if err := rec.Validate(); err != nil {
		return plan{}, err
	}

	return plan{lang: lang, variant: variant, adapter: a, dummy: dummy, record: rec}, nil
}

// Probe runs the adapter once on the export dummy inputs without exporting
// and returns the waveform tensor.
func Probe(ctx context.Context, opts Options) (*onnx.Tensor, error) {
	p, err := prepare(opts)
	if err != nil {
		return nil, err
	}
	y, err := p.adapter.Forward(ctx, p.dummy)
	if err != nil {
		return nil, err
	}
	slog.Info("probe", "stage", "probe", "language", p.lang.Key, "variant", p.variant, "y", y.Shape())
	return y, nil
}

// Run validates everything it can before the first write. Once a file has
// been written, any failure removes the vocabulary and artifact of this run.
func Run(ctx context.Context, opts Options) (res Result, err error) {
	if opts.Stdout == nil {
		opts.Stdout = io.Discard
	}
	if opts.Exporter == nil {
		return Result{}, fmt.Errorf("%w: pipeline needs an exporter", melo.ErrConfig)
	}
	cfg := opts.Config
	hp := opts.Hyperparams

	p, err := prepare(opts)
	if err != nil {
		return Result{}, err
	}
	lang, variant, rec := p.lang, p.variant, p.record

	outDir := cfg.Paths.OutDir
	if outDir == "" {
		outDir = "."
	}
	tokensPath := cfg.Paths.TokensFile
	if tokensPath == "" {
		tokensPath = "tokens.txt"
	}
	if !filepath.IsAbs(tokensPath) {
		tokensPath = filepath.Join(outDir, tokensPath)
	}
	artifactPath := filepath.Join(outDir, ArtifactFile(lang, variant))

	if err := os.MkdirAll(outDir, 0o755); err != nil {
		return Result{}, fmt.Errorf("%w: create %s: %v", melo.ErrArtifact, outDir, err)
	}

	var written []string
	defer func() {
		if err == nil {
			return
		}
		for _, path := range written {
			if rmErr := os.Remove(path); rmErr != nil && !errors.Is(rmErr, os.ErrNotExist) {
				slog.Warn("cleanup failed", "path", path, "error", rmErr)
			}
		}
	}()

	written = append(written, tokensPath)
	if err = vocab.WriteFile(tokensPath, hp.Symbols); err != nil {
		return Result{}, err
	}
	slog.Info("vocabulary written", "stage", "vocab", "path", tokensPath, "symbols", len(hp.Symbols))
	fmt.Fprintf(opts.Stdout, "wrote %s (%d symbols)\n", tokensPath, len(hp.Symbols))

	req := export.NewRequest(p.adapter, p.dummy, artifactPath, cfg.Export.Opset)
	written = append(written, artifactPath)
	slog.Info("exporting", "stage", "export", "path", artifactPath, "variant", variant,
		"inputs", req.InputNames, "dynamic_axes", req.DynamicAxes.Names(), "opset", req.Opset)
	if err = opts.Exporter.Export(ctx, req); err != nil {
		return Result{}, fmt.Errorf("export %s: %w", artifactPath, err)
	}

	info, err := export.CheckArtifact(req)
	if err != nil {
		return Result{}, err
	}

	if err = metadata.Stamp(artifactPath, rec); err != nil {
		return Result{}, err
	}

	var size int64
	if st, statErr := os.Stat(artifactPath); statErr == nil {
		size = st.Size()
	}
	slog.Info("artifact stamped", "stage", "stamp", "path", artifactPath,
		"size", humanize.Bytes(uint64(size)), "keys", len(metadata.Keys()))
	fmt.Fprintf(opts.Stdout, "wrote %s (%s, %d inputs, lang_id=%d)\n",
		artifactPath, humanize.Bytes(uint64(size)), len(info.Inputs), lang.ID)

	return Result{
		Language:     lang,
		Variant:      variant,
		TokensPath:   tokensPath,
		ArtifactPath: artifactPath,
		ArtifactSize: size,
		Signature:    info,
		Record:       rec,
	}, nil
}
