// Package adapter presents a trained MeloTTS model behind the fixed
// inference signature used for export:
//
//	x, x_lengths, tones, sid, noise_scale, length_scale, noise_scale_w[, ja_bert] -> y
//
// The primary BERT features and the per-position language ids are built
// inside the call; they are produced by the serving runtime's frontend, not
// fed by the caller.
package adapter

import (
	"context"
	"fmt"

	"github.com/example/go-melo-export/internal/melo"
	"github.com/example/go-melo-export/internal/onnx"
)

// Input names in signature order.
const (
	InputX           = "x"
	InputXLengths    = "x_lengths"
	InputTones       = "tones"
	InputSID         = "sid"
	InputNoiseScale  = "noise_scale"
	InputLengthScale = "length_scale"
	InputNoiseScaleW = "noise_scale_w"
	InputJaBert      = "ja_bert"

	OutputY = "y"
)

var baseInputNames = []string{
	InputX, InputXLengths, InputTones, InputSID,
	InputNoiseScale, InputLengthScale, InputNoiseScaleW,
}

// Inputs is one call of the exported signature.
type Inputs struct {
	X           *onnx.Tensor // (N, L) int64
	XLengths    *onnx.Tensor // (N,) int64
	Tones       *onnx.Tensor // (N, L) int64
	SID         *onnx.Tensor // (N,) int64
	NoiseScale  *onnx.Tensor // (1,) float32
	LengthScale *onnx.Tensor // (1,) float32
	NoiseScaleW *onnx.Tensor // (1,) float32
	JaBert      *onnx.Tensor // (N, 768, L) float32, exposed variant only
}

// Named keys the inputs by signature name, omitting a nil JaBert.
func (in Inputs) Named() map[string]*onnx.Tensor {
	m := map[string]*onnx.Tensor{
		InputX:           in.X,
		InputXLengths:    in.XLengths,
		InputTones:       in.Tones,
		InputSID:         in.SID,
		InputNoiseScale:  in.NoiseScale,
		InputLengthScale: in.LengthScale,
		InputNoiseScaleW: in.NoiseScaleW,
	}
	if in.JaBert != nil {
		m[InputJaBert] = in.JaBert
	}
	return m
}

// Adapter wraps a melo.Model. It holds no mutable state.
type Adapter struct {
	model     melo.Model
	langID    int64
	primary   FeatureSource
	secondary FeatureSource
}

// New builds an adapter for one language. The primary feature is always
// zero-filled; secondary selects the export variant.
func New(model melo.Model, lang melo.Language, secondary FeatureSource) (*Adapter, error) {
	if model == nil {
		return nil, fmt.Errorf("%w: adapter needs a model", melo.ErrConfig)
	}
	if secondary == nil {
		return nil, fmt.Errorf("%w: adapter needs a secondary feature source", melo.ErrConfig)
	}
	return &Adapter{
		model:     model,
		langID:    int64(lang.ID),
		primary:   ZeroFilled{W: melo.BertDim},
		secondary: secondary,
	}, nil
}

func (a *Adapter) LangID() int64 { return a.langID }

func (a *Adapter) Primary() FeatureSource { return a.primary }

func (a *Adapter) Secondary() FeatureSource { return a.secondary }

// InputNames lists the signature in order.
func (a *Adapter) InputNames() []string {
	names := append([]string(nil), baseInputNames...)
	if a.secondary.Exposed() {
		names = append(names, InputJaBert)
	}
	return names
}

func (a *Adapter) OutputNames() []string {
	return []string{OutputY}
}

// Ordered returns the tensors of in matching InputNames.
func (a *Adapter) Ordered(in Inputs) []*onnx.Tensor {
	out := []*onnx.Tensor{in.X, in.XLengths, in.Tones, in.SID, in.NoiseScale, in.LengthScale, in.NoiseScaleW}
	if a.secondary.Exposed() {
		out = append(out, in.JaBert)
	}
	return out
}

// Bind maps positional tensors onto the signature. Arity must match exactly.
func (a *Adapter) Bind(tensors []*onnx.Tensor) (Inputs, error) {
	names := a.InputNames()
	if len(tensors) != len(names) {
		return Inputs{}, fmt.Errorf("%w: got %d inputs, signature %v has %d", melo.ErrContract, len(tensors), names, len(names))
	}
	for i, t := range tensors {
		if t == nil {
			return Inputs{}, fmt.Errorf("%w: input %d (%s) is nil", melo.ErrContract, i, names[i])
		}
	}
	in := Inputs{
		X:           tensors[0],
		XLengths:    tensors[1],
		Tones:       tensors[2],
		SID:         tensors[3],
		NoiseScale:  tensors[4],
		LengthScale: tensors[5],
		NoiseScaleW: tensors[6],
	}
	if a.secondary.Exposed() {
		in.JaBert = tensors[7]
	}
	return in, nil
}

// Check validates dtypes, ranks and batch agreement and returns (N, L).
func (a *Adapter) Check(in Inputs) (n, l int64, err error) {
	if err := expect(InputX, in.X, onnx.DTypeInt64, 2); err != nil {
		return 0, 0, err
	}
	n, l = in.X.Dim(0), in.X.Dim(1)

	if err := expect(InputXLengths, in.XLengths, onnx.DTypeInt64, 1); err != nil {
		return 0, 0, err
	}
	if err := expect(InputTones, in.Tones, onnx.DTypeInt64, 2); err != nil {
		return 0, 0, err
	}
	if err := expect(InputSID, in.SID, onnx.DTypeInt64, 1); err != nil {
		return 0, 0, err
	}
	for _, s := range []struct {
		name string
		t    *onnx.Tensor
	}{
		{InputNoiseScale, in.NoiseScale},
		{InputLengthScale, in.LengthScale},
		{InputNoiseScaleW, in.NoiseScaleW},
	} {
		if err := expect(s.name, s.t, onnx.DTypeFloat32, 1); err != nil {
			return 0, 0, err
		}
		if s.t.Len() != 1 {
			return 0, 0, fmt.Errorf("%w: %s must hold one value, got shape %v", melo.ErrContract, s.name, s.t.Shape())
		}
	}

	if in.XLengths.Dim(0) != n || in.Tones.Dim(0) != n || in.SID.Dim(0) != n {
		return 0, 0, fmt.Errorf("%w: batch mismatch: x %v, x_lengths %v, tones %v, sid %v",
			melo.ErrContract, in.X.Shape(), in.XLengths.Shape(), in.Tones.Shape(), in.SID.Shape())
	}
	if in.Tones.Dim(1) != l {
		return 0, 0, fmt.Errorf("%w: tones length %d != x length %d", melo.ErrContract, in.Tones.Dim(1), l)
	}
	if !a.secondary.Exposed() && in.JaBert != nil {
		return 0, 0, fmt.Errorf("%w: %s is not part of this signature", melo.ErrContract, InputJaBert)
	}
	return n, l, nil
}

// Forward runs the model and returns element 0 of its result tuple.
func (a *Adapter) Forward(ctx context.Context, in Inputs) (*onnx.Tensor, error) {
	n, l, err := a.Check(in)
	if err != nil {
		return nil, err
	}

	bert, err := a.primary.Resolve(n, l, nil)
	if err != nil {
		return nil, fmt.Errorf("primary feature: %w", err)
	}
	jaBert, err := a.secondary.Resolve(n, l, in.JaBert)
	if err != nil {
		return nil, fmt.Errorf("secondary feature: %w", err)
	}
	lang, err := LanguageIDs(n, l, a.langID)
	if err != nil {
		return nil, err
	}

	outs, err := a.model.Infer(ctx, melo.InferInputs{
		X:           in.X,
		XLengths:    in.XLengths,
		SID:         in.SID,
		Tone:        in.Tones,
		Language:    lang,
		Bert:        bert,
		JaBert:      jaBert,
		NoiseScale:  in.NoiseScale,
		LengthScale: in.LengthScale,
		NoiseScaleW: in.NoiseScaleW,
	})
	if err != nil {
		return nil, fmt.Errorf("model infer: %w", err)
	}
	if len(outs) == 0 || outs[0] == nil {
		return nil, fmt.Errorf("%w: model returned no waveform", melo.ErrContract)
	}

	y := outs[0]
	if y.Rank() != 3 || y.Dim(0) != n {
		return nil, fmt.Errorf("%w: output %s shape %v, want (%d, S, T)", melo.ErrContract, OutputY, y.Shape(), n)
	}
	return y, nil
}

// ForwardOrdered is Forward over positional inputs, the form a tracer uses.
func (a *Adapter) ForwardOrdered(ctx context.Context, tensors []*onnx.Tensor) (*onnx.Tensor, error) {
	in, err := a.Bind(tensors)
	if err != nil {
		return nil, err
	}
	return a.Forward(ctx, in)
}

// LanguageIDs builds the (N, L) language tensor: odd positions carry langID,
// even positions (blank slots when add_blank is on) stay 0.
func LanguageIDs(n, l, langID int64) (*onnx.Tensor, error) {
	if n < 1 || l < 1 {
		return nil, fmt.Errorf("%w: language ids need positive shape, got (%d, %d)", melo.ErrContract, n, l)
	}
	data := make([]int64, n*l)
	for b := int64(0); b < n; b++ {
		row := data[b*l : (b+1)*l]
		for i := int64(1); i < l; i += 2 {
			row[i] = langID
		}
	}
	return onnx.NewTensor(data, []int64{n, l})
}

func expect(name string, t *onnx.Tensor, dtype onnx.TensorDType, rank int) error {
	if t == nil {
		return fmt.Errorf("%w: input %s is missing", melo.ErrContract, name)
	}
	if t.DType() != dtype {
		return fmt.Errorf("%w: input %s has dtype %s, want %s", melo.ErrContract, name, t.DType(), dtype)
	}
	if t.Rank() != rank {
		return fmt.Errorf("%w: input %s has rank %d, want %d", melo.ErrContract, name, t.Rank(), rank)
	}
	return nil
}
