package main

import (
	"context"
	"io"
	"os"

	"github.com/example/go-melo-export/internal/config"
	"github.com/example/go-melo-export/internal/export"
	"github.com/example/go-melo-export/internal/melo"
	"github.com/example/go-melo-export/internal/pipeline"
)

// backend is everything that needs the Python side: the hyperparameter
// source, the trained model and the graph exporter.
type backend struct {
	describer pipeline.Describer
	model     melo.Model
	exporter  export.Exporter
}

// buildBackend is replaced in tests.
var buildBackend = func(ctx context.Context, cfg config.Config, dryRun bool, stdout io.Writer) (backend, error) {
	h, err := melo.NewHelper(cfg.Export.PythonBin, cfg.Export.Script)
	if err != nil {
		return backend{}, err
	}
	h.Stderr = os.Stderr
	if err := h.CheckTooling(ctx); err != nil {
		return backend{}, err
	}

	ck := pipeline.CheckpointFor(cfg)
	b := backend{describer: h, model: melo.NewPythonModel(h, ck)}
	if dryRun {
		b.exporter = export.StubExporter{Forward: true}
	} else {
		b.exporter = &export.PythonExporter{Helper: h, Checkpoint: ck, Stdout: stdout}
	}
	return b, nil
}
