package export

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/example/go-melo-export/internal/adapter"
	"github.com/example/go-melo-export/internal/melo"
	"github.com/example/go-melo-export/internal/onnx"
)

// Plan is the JSON document the helper's export mode reads. The helper
// rebuilds the adapter from Trace, loads the checkpoint, and hands the
// rest to the tracer verbatim.
type Plan struct {
	Checkpoint  melo.Checkpoint `json:"checkpoint"`
	Trace       adapter.Trace   `json:"trace"`
	Inputs      []*onnx.Tensor  `json:"inputs"`
	Path        string          `json:"path"`
	Opset       int             `json:"opset"`
	InputNames  []string        `json:"input_names"`
	OutputNames []string        `json:"output_names"`
	DynamicAxes DynamicAxes     `json:"dynamic_axes"`
}

func NewPlan(ck melo.Checkpoint, req Request) Plan {
	return Plan{
		Checkpoint:  ck,
		Trace:       req.Adapter.Trace(),
		Inputs:      req.Inputs,
		Path:        req.Path,
		Opset:       req.Opset,
		InputNames:  req.InputNames,
		OutputNames: req.OutputNames,
		DynamicAxes: req.DynamicAxes,
	}
}

// PythonExporter traces through torch.onnx.export in the helper script.
type PythonExporter struct {
	Helper     *melo.Helper
	Checkpoint melo.Checkpoint
	Stdout     io.Writer
}

func (p *PythonExporter) Export(ctx context.Context, req Request) error {
	if err := req.Validate(); err != nil {
		return err
	}
	if p.Helper == nil {
		return fmt.Errorf("%w: python exporter has no helper", melo.ErrConfig)
	}

	abs, err := filepath.Abs(req.Path)
	if err != nil {
		return fmt.Errorf("resolve %s: %w", req.Path, err)
	}
	req.Path = abs

	planFile, err := os.CreateTemp("", "meloexport-plan-*.json")
	if err != nil {
		return fmt.Errorf("create plan file: %w", err)
	}
	planPath := planFile.Name()
	defer os.Remove(planPath)

	enc := json.NewEncoder(planFile)
	if err := enc.Encode(NewPlan(p.Checkpoint, req)); err != nil {
		_ = planFile.Close()
		return fmt.Errorf("write plan: %w", err)
	}
	if err := planFile.Close(); err != nil {
		return fmt.Errorf("close plan: %w", err)
	}

	if err := p.Helper.Run(ctx, "export", []string{"--plan", planPath}, nil, p.Stdout); err != nil {
		return fmt.Errorf("%w: %w", melo.ErrContract, err)
	}
	if _, err := os.Stat(abs); err != nil {
		return fmt.Errorf("%w: helper reported success but %s is missing", melo.ErrArtifact, abs)
	}
	return nil
}

var _ Exporter = (*PythonExporter)(nil)
