package export

import (
	"fmt"
	"math/rand/v2"
	"time"

	"github.com/example/go-melo-export/internal/adapter"
	"github.com/example/go-melo-export/internal/melo"
	"github.com/example/go-melo-export/internal/onnx"
)

// DummyOptions shape the representative batch traced at export.
type DummyOptions struct {
	BatchSize int
	SeqLen    int
	TokenHigh int // token ids are drawn from [0, TokenHigh)
	SpeakerID int
	Seed      int64 // 0 picks a time-based seed
}

func DefaultDummyOptions() DummyOptions {
	return DummyOptions{BatchSize: 1, SeqLen: 60, TokenHigh: 10}
}

// DummyInputs builds one representative call of a's signature: random token
// ids, full-length x_lengths, the default speaker, zero tones, neutral
// scalars and, when exposed, normally distributed secondary features.
func DummyInputs(a *adapter.Adapter, opts DummyOptions) (adapter.Inputs, error) {
	width := 0
	if sec := a.Secondary(); sec.Exposed() {
		width = sec.Width()
	}
	return DummyTensors(opts, width)
}

// DummyTensors is DummyInputs without an adapter. A zero jaBertWidth leaves
// JaBert nil.
func DummyTensors(opts DummyOptions, jaBertWidth int) (adapter.Inputs, error) {
	if opts.BatchSize < 1 || opts.SeqLen < 1 {
		return adapter.Inputs{}, fmt.Errorf("%w: dummy batch %d and sequence %d must be positive", melo.ErrConfig, opts.BatchSize, opts.SeqLen)
	}
	if opts.TokenHigh < 1 {
		return adapter.Inputs{}, fmt.Errorf("%w: token id range [0, %d) is empty", melo.ErrConfig, opts.TokenHigh)
	}
	if opts.SpeakerID < 0 {
		return adapter.Inputs{}, fmt.Errorf("%w: speaker id %d is negative", melo.ErrConfig, opts.SpeakerID)
	}

	seed := uint64(opts.Seed)
	if opts.Seed == 0 {
		seed = uint64(time.Now().UnixNano())
	}
	rng := rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))

	n, l := int64(opts.BatchSize), int64(opts.SeqLen)

	tokens := make([]int64, n*l)
	for i := range tokens {
		tokens[i] = rng.Int64N(int64(opts.TokenHigh))
	}
	lengths := make([]int64, n)
	sids := make([]int64, n)
	for i := range lengths {
		lengths[i] = l
		sids[i] = int64(opts.SpeakerID)
	}

	in := adapter.Inputs{
		X:           onnx.MustTensor(tokens, []int64{n, l}),
		XLengths:    onnx.MustTensor(lengths, []int64{n}),
		Tones:       onnx.MustTensor(make([]int64, n*l), []int64{n, l}),
		SID:         onnx.MustTensor(sids, []int64{n}),
		NoiseScale:  onnx.MustTensor([]float32{1}, []int64{1}),
		LengthScale: onnx.MustTensor([]float32{1}, []int64{1}),
		NoiseScaleW: onnx.MustTensor([]float32{1}, []int64{1}),
	}

	if jaBertWidth > 0 {
		w := int64(jaBertWidth)
		feat := make([]float32, n*w*l)
		for i := range feat {
			feat[i] = float32(rng.NormFloat64())
		}
		in.JaBert = onnx.MustTensor(feat, []int64{n, w, l})
	}
	return in, nil
}
