package adapter

import (
	"fmt"

	"github.com/example/go-melo-export/internal/config"
	"github.com/example/go-melo-export/internal/melo"
	"github.com/example/go-melo-export/internal/onnx"
)

// FeatureSource decides where a linguistic feature tensor of shape
// (N, width, L) comes from. It is fixed when the adapter is built.
type FeatureSource interface {
	// Exposed reports whether the tensor is an input of the exported signature.
	Exposed() bool
	Width() int
	// Resolve returns the tensor handed to the model. external is the
	// caller-supplied tensor, nil unless Exposed is true.
	Resolve(n, l int64, external *onnx.Tensor) (*onnx.Tensor, error)
	// Mode is the name recorded in the trace plan.
	Mode() string
}

// ZeroFilled synthesizes an all-zero tensor inside the traced call.
type ZeroFilled struct {
	W int
}

func (z ZeroFilled) Exposed() bool { return false }
func (z ZeroFilled) Width() int    { return z.W }
func (z ZeroFilled) Mode() string  { return "zeros" }

func (z ZeroFilled) Resolve(n, l int64, external *onnx.Tensor) (*onnx.Tensor, error) {
	if external != nil {
		return nil, fmt.Errorf("%w: zero-filled feature does not accept an input tensor", melo.ErrContract)
	}
	return onnx.NewZeroTensor(onnx.DTypeFloat32, []int64{n, int64(z.W), l})
}

// External takes the tensor from the exported signature unchanged.
type External struct {
	W int
}

func (e External) Exposed() bool { return true }
func (e External) Width() int    { return e.W }
func (e External) Mode() string  { return "input" }

func (e External) Resolve(n, l int64, external *onnx.Tensor) (*onnx.Tensor, error) {
	if external == nil {
		return nil, fmt.Errorf("%w: feature input of width %d is required", melo.ErrContract, e.W)
	}
	if external.DType() != onnx.DTypeFloat32 {
		return nil, fmt.Errorf("%w: feature input must be float32, got %s", melo.ErrContract, external.DType())
	}
	want := []int64{n, int64(e.W), l}
	if external.Rank() != 3 || external.Dim(0) != n || external.Dim(1) != int64(e.W) || external.Dim(2) != l {
		return nil, fmt.Errorf("%w: feature input shape %v, want %v", melo.ErrContract, external.Shape(), want)
	}
	return external, nil
}

// SecondaryFor maps an export variant to the ja_bert feature source.
func SecondaryFor(variant string) (FeatureSource, error) {
	v, err := config.NormalizeVariant(variant)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", melo.ErrConfig, err)
	}
	if v == config.VariantJaBert {
		return External{W: melo.JaBertDim}, nil
	}
	return ZeroFilled{W: melo.JaBertDim}, nil
}
