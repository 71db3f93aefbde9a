// Package export drives a graph exporter over the adapter with
// representative dummy inputs and the dynamic-axis declaration.
package export

import (
	"context"
	"fmt"
	"sort"

	"github.com/example/go-melo-export/internal/adapter"
	"github.com/example/go-melo-export/internal/melo"
	"github.com/example/go-melo-export/internal/onnx"
)

// DefaultOpset is the ONNX opset the artifact is traced at.
const DefaultOpset = 13

// DynamicAxes maps a tensor name to its symbolic axes (index -> name).
type DynamicAxes map[string]map[int]string

// Names returns the declared tensor names sorted, for stable logs.
func (d DynamicAxes) Names() []string {
	names := make([]string, 0, len(d))
	for k := range d {
		names = append(names, k)
	}
	sort.Strings(names)
	return names
}

// DynamicAxesFor declares batch N on every batched tensor, sequence L on the
// token-aligned ones and (N, S, T) on the waveform. sid is declared in both
// variants so the batch never bakes in.
func DynamicAxesFor(a *adapter.Adapter) DynamicAxes {
	axes := DynamicAxes{
		adapter.InputX:        {0: "N", 1: "L"},
		adapter.InputXLengths: {0: "N"},
		adapter.InputTones:    {0: "N", 1: "L"},
		adapter.InputSID:      {0: "N"},
		adapter.OutputY:       {0: "N", 1: "S", 2: "T"},
	}
	if a.Secondary().Exposed() {
		axes[adapter.InputJaBert] = map[int]string{0: "N", 2: "L"}
	}
	return axes
}

// Request is everything an Exporter receives.
type Request struct {
	Adapter     *adapter.Adapter
	Inputs      []*onnx.Tensor
	Path        string
	Opset       int
	InputNames  []string
	OutputNames []string
	DynamicAxes DynamicAxes
}

// Exporter turns a traced adapter call into an artifact at req.Path.
type Exporter interface {
	Export(ctx context.Context, req Request) error
}

// NewRequest assembles a request for the adapter's full signature.
func NewRequest(a *adapter.Adapter, in adapter.Inputs, path string, opset int) Request {
	if opset == 0 {
		opset = DefaultOpset
	}
	return Request{
		Adapter:     a,
		Inputs:      a.Ordered(in),
		Path:        path,
		Opset:       opset,
		InputNames:  a.InputNames(),
		OutputNames: a.OutputNames(),
		DynamicAxes: DynamicAxesFor(a),
	}
}

// Validate checks the request is self-consistent before anything is traced:
// one unique name per input, axes only on declared tensors and within rank.
func (r Request) Validate() error {
	if r.Adapter == nil {
		return fmt.Errorf("%w: export request has no adapter", melo.ErrConfig)
	}
	if r.Path == "" {
		return fmt.Errorf("%w: export request has no output path", melo.ErrConfig)
	}
	if r.Opset <= 0 {
		return fmt.Errorf("%w: opset must be positive, got %d", melo.ErrConfig, r.Opset)
	}
	if len(r.InputNames) != len(r.Inputs) {
		return fmt.Errorf("%w: %d input names for %d inputs", melo.ErrContract, len(r.InputNames), len(r.Inputs))
	}
	if len(r.OutputNames) == 0 {
		return fmt.Errorf("%w: no output names", melo.ErrContract)
	}

	want := r.Adapter.InputNames()
	if len(want) != len(r.InputNames) {
		return fmt.Errorf("%w: input names %v do not match signature %v", melo.ErrContract, r.InputNames, want)
	}

	ranks := make(map[string]int, len(r.InputNames)+len(r.OutputNames))
	for i, name := range r.InputNames {
		if name != want[i] {
			return fmt.Errorf("%w: input %d is %q, signature expects %q", melo.ErrContract, i, name, want[i])
		}
		if _, dup := ranks[name]; dup {
			return fmt.Errorf("%w: duplicate name %q", melo.ErrContract, name)
		}
		if r.Inputs[i] == nil {
			return fmt.Errorf("%w: input %q is nil", melo.ErrContract, name)
		}
		ranks[name] = r.Inputs[i].Rank()
	}
	for _, name := range r.OutputNames {
		if _, dup := ranks[name]; dup {
			return fmt.Errorf("%w: duplicate name %q", melo.ErrContract, name)
		}
		ranks[name] = -1
	}

	for name, axes := range r.DynamicAxes {
		rank, ok := ranks[name]
		if !ok {
			return fmt.Errorf("%w: dynamic axes declared for unknown tensor %q", melo.ErrContract, name)
		}
		for idx, sym := range axes {
			if sym == "" {
				return fmt.Errorf("%w: %s axis %d has no symbol", melo.ErrContract, name, idx)
			}
			if idx < 0 || (rank >= 0 && idx >= rank) {
				return fmt.Errorf("%w: %s axis %d outside rank %d", melo.ErrContract, name, idx, rank)
			}
		}
	}

	if _, err := r.Adapter.Bind(r.Inputs); err != nil {
		return err
	}
	return nil
}
