package export

import (
	"fmt"
	"os"

	"github.com/example/go-melo-export/internal/melo"
	"github.com/example/go-melo-export/internal/onnx"
)

// CheckArtifact decodes the exported file and confirms it carries the
// requested signature: input and output names in order, the requested opset,
// and a symbolic dimension on every declared dynamic axis. A baked dimension
// means the tracer never saw that axis vary.
func CheckArtifact(req Request) (*onnx.ModelInfo, error) {
	raw, err := os.ReadFile(req.Path)
	if err != nil {
		return nil, fmt.Errorf("%w: read artifact: %v", melo.ErrArtifact, err)
	}
	info, err := onnx.DecodeModel(raw)
	if err != nil {
		return nil, fmt.Errorf("%w: decode %s: %v", melo.ErrArtifact, req.Path, err)
	}
	if err := CheckSignature(info, req); err != nil {
		return nil, err
	}
	return info, nil
}

func CheckSignature(info *onnx.ModelInfo, req Request) error {
	if err := checkNames("input", info.Inputs, req.InputNames); err != nil {
		return err
	}
	if err := checkNames("output", info.Outputs, req.OutputNames); err != nil {
		return err
	}

	if req.Opset > 0 {
		var found bool
		for _, op := range info.Opsets {
			if op.Domain == "" || op.Domain == "ai.onnx" {
				found = true
				if op.Version != int64(req.Opset) {
					return fmt.Errorf("%w: artifact opset %d, requested %d", melo.ErrContract, op.Version, req.Opset)
				}
			}
		}
		if !found {
			return fmt.Errorf("%w: artifact declares no default-domain opset", melo.ErrContract)
		}
	}

	for _, name := range req.DynamicAxes.Names() {
		vi, ok := info.Input(name)
		if !ok {
			vi, ok = info.Output(name)
		}
		if !ok {
			return fmt.Errorf("%w: dynamic tensor %q missing from artifact", melo.ErrContract, name)
		}
		for idx := range req.DynamicAxes[name] {
			if idx >= len(vi.Dims) {
				return fmt.Errorf("%w: %s has rank %d, axis %d declared dynamic", melo.ErrContract, name, len(vi.Dims), idx)
			}
			if !vi.Dims[idx].Symbolic() {
				return fmt.Errorf("%w: %s axis %d baked to %d", melo.ErrContract, name, idx, vi.Dims[idx].Value)
			}
		}
	}
	return nil
}

func checkNames(kind string, got []onnx.ValueInfo, want []string) error {
	if len(got) != len(want) {
		return fmt.Errorf("%w: artifact has %d %ss, want %v", melo.ErrContract, len(got), kind, want)
	}
	for i, vi := range got {
		if vi.Name != want[i] {
			return fmt.Errorf("%w: artifact %s %d is %q, want %q", melo.ErrContract, kind, i, vi.Name, want[i])
		}
	}
	return nil
}
