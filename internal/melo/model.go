package melo

import (
	"context"

	"github.com/example/go-melo-export/internal/onnx"
)

// InferInputs are the keyword arguments of the trained model's native infer
// entry point. JSON names match the keyword names.
type InferInputs struct {
	X           *onnx.Tensor `json:"x"`
	XLengths    *onnx.Tensor `json:"x_lengths"`
	SID         *onnx.Tensor `json:"sid"`
	Tone        *onnx.Tensor `json:"tone"`
	Language    *onnx.Tensor `json:"language"`
	Bert        *onnx.Tensor `json:"bert"`
	JaBert      *onnx.Tensor `json:"ja_bert"`
	NoiseScale  *onnx.Tensor `json:"noise_scale"`
	LengthScale *onnx.Tensor `json:"length_scale"`
	NoiseScaleW *onnx.Tensor `json:"noise_scale_w"`
}

// Model is an opaque trained acoustic model. Infer returns the native result
// tuple; element 0 is the waveform.
type Model interface {
	Infer(ctx context.Context, in InferInputs) ([]*onnx.Tensor, error)
}

// Checkpoint selects a trained model. Empty paths let MeloTTS resolve the
// published checkpoint for Language.
type Checkpoint struct {
	Language   string `json:"language"`
	ConfigPath string `json:"config_path,omitempty"`
	CkptPath   string `json:"ckpt_path,omitempty"`
	Device     string `json:"device,omitempty"`
}

// Feature widths of the two linguistic feature inputs of MeloTTS.
const (
	BertDim   = 1024
	JaBertDim = 768
)
