package pipeline

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/example/go-melo-export/internal/config"
	"github.com/example/go-melo-export/internal/melo"
	"github.com/example/go-melo-export/internal/metadata"
)

func TestRestampReadsJaBertWidthFromArtifact(t *testing.T) {
	opts := testOptions(t, config.VariantJaBert)
	res, err := Run(context.Background(), opts)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	cfg := opts.Config
	cfg.Export.Variant = config.VariantDefault
	cfg.Metadata.Comment = "melo_custom"
	hp := testHparams()
	hp.Data.SamplingRate = 24000

	rec, err := Restamp(res.ArtifactPath, cfg, testTable(), hp)
	if err != nil {
		t.Fatalf("Restamp: %v", err)
	}
	if rec.JaBertDim != melo.JaBertDim {
		t.Fatalf("ja_bert_dim = %d, want %d", rec.JaBertDim, melo.JaBertDim)
	}

	got, err := metadata.ReadRecord(res.ArtifactPath)
	if err != nil {
		t.Fatalf("ReadRecord: %v", err)
	}
	if got.SampleRate != 24000 || got.Comment != "melo_custom" {
		t.Fatalf("record = %+v", got)
	}
	entries, err := metadata.Read(res.ArtifactPath)
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	if len(entries) != len(metadata.Keys()) {
		t.Fatalf("%d entries after restamp, want %d", len(entries), len(metadata.Keys()))
	}
}

func TestRestampErrors(t *testing.T) {
	cfg := config.DefaultConfig()
	dir := t.TempDir()
	garbage := filepath.Join(dir, "garbage.onnx")
	if err := os.WriteFile(garbage, []byte{0xff, 0xff}, 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}

	if _, err := Restamp(filepath.Join(dir, "missing.onnx"), cfg, testTable(), testHparams()); !errors.Is(err, melo.ErrArtifact) {
		t.Fatalf("missing: err = %v", err)
	}
	if _, err := Restamp(garbage, cfg, testTable(), testHparams()); !errors.Is(err, melo.ErrArtifact) {
		t.Fatalf("garbage: err = %v", err)
	}

	cfg.Export.Language = "XX"
	if _, err := Restamp(garbage, cfg, testTable(), testHparams()); !errors.Is(err, melo.ErrConfig) {
		t.Fatalf("unknown language: err = %v", err)
	}
}
