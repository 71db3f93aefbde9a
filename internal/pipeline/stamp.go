package pipeline

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/example/go-melo-export/internal/adapter"
	"github.com/example/go-melo-export/internal/config"
	"github.com/example/go-melo-export/internal/melo"
	"github.com/example/go-melo-export/internal/metadata"
	"github.com/example/go-melo-export/internal/onnx"
)

// Restamp rewrites the metadata of an existing artifact. ja_bert_dim comes
// from the artifact's own ja_bert input rather than the configured variant.
func Restamp(path string, cfg config.Config, table melo.LanguageTable, hp *melo.Hyperparams) (metadata.Record, error) {
	if table == nil {
		var err error
		table, err = LanguageTable(cfg.Paths.LanguagesFile)
		if err != nil {
			return metadata.Record{}, err
		}
	}
	lang, err := table.Lookup(cfg.Export.Language)
	if err != nil {
		return metadata.Record{}, err
	}
	if err := hp.Validate(); err != nil {
		return metadata.Record{}, err
	}

	raw, err := os.ReadFile(path)
	if err != nil {
		return metadata.Record{}, fmt.Errorf("%w: read artifact: %v", melo.ErrArtifact, err)
	}
	info, err := onnx.DecodeModel(raw)
	if err != nil {
		return metadata.Record{}, fmt.Errorf("%w: decode %s: %v", melo.ErrArtifact, path, err)
	}

	jaBertDim := 0
	if vi, ok := info.Input(adapter.InputJaBert); ok {
		if len(vi.Dims) != 3 || vi.Dims[1].Symbolic() {
			return metadata.Record{}, fmt.Errorf("%w: %s has no fixed feature axis: %v", melo.ErrContract, adapter.InputJaBert, vi.Dims)
		}
		jaBertDim = int(vi.Dims[1].Value)
	}

	rec := metadata.Build(lang, hp, cfg.Metadata, cfg.Export.SpeakerID, jaBertDim)
	if err := rec.Validate(); err != nil {
		return metadata.Record{}, err
	}
	if err := metadata.Stamp(path, rec); err != nil {
		return metadata.Record{}, err
	}
	slog.Info("artifact restamped", "stage", "stamp", "path", path, "language", lang.Key, "ja_bert_dim", jaBertDim)
	return rec, nil
}
