package export

import (
	"context"
	"fmt"
	"os"

	"github.com/example/go-melo-export/internal/melo"
	"github.com/example/go-melo-export/internal/onnx"
)

// StubExporter writes a graph-less ModelProto with the request's signature.
// With Forward set it first runs the adapter once on the dummy inputs, so a
// dry run still proves the model accepts them.
type StubExporter struct {
	Forward  bool
	Producer string
}

func (s StubExporter) Export(ctx context.Context, req Request) error {
	if err := req.Validate(); err != nil {
		return err
	}

	outShape := []int64{0, 0, 0}
	if s.Forward {
		y, err := req.Adapter.ForwardOrdered(ctx, req.Inputs)
		if err != nil {
			return fmt.Errorf("trace forward: %w", err)
		}
		outShape = y.Shape()
	}

	producer := s.Producer
	if producer == "" {
		producer = "meloexport-stub"
	}
	m := &onnx.ModelInfo{
		IRVersion:    8,
		ProducerName: producer,
		Opsets:       []onnx.OpsetID{{Version: int64(req.Opset)}},
		GraphName:    "main_graph",
	}
	for i, name := range req.InputNames {
		m.Inputs = append(m.Inputs, valueInfo(name, req.Inputs[i].DType(), req.Inputs[i].Shape(), req.DynamicAxes[name]))
	}
	for _, name := range req.OutputNames {
		m.Outputs = append(m.Outputs, valueInfo(name, onnx.DTypeFloat32, outShape, req.DynamicAxes[name]))
	}

	if err := os.WriteFile(req.Path, onnx.EncodeModel(m), 0o644); err != nil {
		return fmt.Errorf("%w: write %s: %v", melo.ErrArtifact, req.Path, err)
	}
	return nil
}

func valueInfo(name string, dtype onnx.TensorDType, shape []int64, axes map[int]string) onnx.ValueInfo {
	vi := onnx.ValueInfo{Name: name, ElemType: onnx.ElemTypeFloat}
	if dtype == onnx.DTypeInt64 {
		vi.ElemType = onnx.ElemTypeInt64
	}
	for i, d := range shape {
		if sym, ok := axes[i]; ok {
			vi.Dims = append(vi.Dims, onnx.Dim{Param: sym})
			continue
		}
		vi.Dims = append(vi.Dims, onnx.Dim{Value: d})
	}
	return vi
}

var _ Exporter = StubExporter{}
