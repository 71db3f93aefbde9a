package onnx

import (
	"encoding/json"
	"fmt"
	"math"
	"strings"
)

type TensorDType string

const (
	DTypeFloat32 TensorDType = "float32"
	DTypeInt64   TensorDType = "int64"
)

// Tensor is a dense row-major tensor holding either float32 or int64 data.
type Tensor struct {
	dtype TensorDType
	shape []int64
	data  any
}

func NewTensor[T ~int64 | ~float32](data []T, shape []int64) (*Tensor, error) {
	dtype, err := dtypeFromSlice(data)
	if err != nil {
		return nil, err
	}
	if err := validateShapeAgainstData(shape, len(data)); err != nil {
		return nil, err
	}

	t := &Tensor{
		dtype: dtype,
		shape: append([]int64(nil), shape...),
	}
	switch dtype {
	case DTypeFloat32:
		converted := make([]float32, len(data))
		for i, v := range data {
			converted[i] = float32(v)
		}
		t.data = converted
	case DTypeInt64:
		converted := make([]int64, len(data))
		for i, v := range data {
			converted[i] = int64(v)
		}
		t.data = converted
	default:
		return nil, fmt.Errorf("unsupported tensor dtype %q", dtype)
	}
	return t, nil
}

func NewZeroTensor(dtype TensorDType, shape []int64) (*Tensor, error) {
	count, err := elementCount(shape)
	if err != nil {
		return nil, err
	}

	switch dtype {
	case DTypeFloat32:
		return NewTensor(make([]float32, count), shape)
	case DTypeInt64:
		return NewTensor(make([]int64, count), shape)
	default:
		return nil, fmt.Errorf("unsupported tensor dtype %q", dtype)
	}
}

// MustTensor is NewTensor for shapes known to be valid at compile time.
func MustTensor[T ~int64 | ~float32](data []T, shape []int64) *Tensor {
	t, err := NewTensor(data, shape)
	if err != nil {
		panic(err)
	}
	return t
}

func (t *Tensor) DType() TensorDType {
	return t.dtype
}

func (t *Tensor) Shape() []int64 {
	return append([]int64(nil), t.shape...)
}

func (t *Tensor) Rank() int {
	return len(t.shape)
}

// Dim returns the size of dimension i, or -1 when i is out of range.
func (t *Tensor) Dim(i int) int64 {
	if i < 0 || i >= len(t.shape) {
		return -1
	}
	return t.shape[i]
}

func (t *Tensor) Len() int {
	switch v := t.data.(type) {
	case []float32:
		return len(v)
	case []int64:
		return len(v)
	default:
		return 0
	}
}

func (t *Tensor) Data() any {
	switch v := t.data.(type) {
	case []float32:
		return append([]float32(nil), v...)
	case []int64:
		return append([]int64(nil), v...)
	default:
		return nil
	}
}

func (t *Tensor) String() string {
	return fmt.Sprintf("%s%v", t.dtype, t.shape)
}

type tensorJSON struct {
	DType TensorDType     `json:"dtype"`
	Shape []int64         `json:"shape"`
	Data  json.RawMessage `json:"data"`
}

func (t *Tensor) MarshalJSON() ([]byte, error) {
	data, err := json.Marshal(t.data)
	if err != nil {
		return nil, fmt.Errorf("encode %s tensor data: %w", t.dtype, err)
	}
	shape := t.shape
	if shape == nil {
		shape = []int64{}
	}
	return json.Marshal(tensorJSON{DType: t.dtype, Shape: shape, Data: data})
}

func (t *Tensor) UnmarshalJSON(b []byte) error {
	var raw tensorJSON
	if err := json.Unmarshal(b, &raw); err != nil {
		return err
	}

	dtype, err := canonicalDType(string(raw.DType))
	if err != nil {
		return err
	}

	var decoded *Tensor
	switch dtype {
	case DTypeFloat32:
		var data []float32
		if err := json.Unmarshal(raw.Data, &data); err != nil {
			return fmt.Errorf("decode float32 tensor data: %w", err)
		}
		decoded, err = NewTensor(data, raw.Shape)
	case DTypeInt64:
		var data []int64
		if err := json.Unmarshal(raw.Data, &data); err != nil {
			return fmt.Errorf("decode int64 tensor data: %w", err)
		}
		decoded, err = NewTensor(data, raw.Shape)
	}
	if err != nil {
		return err
	}

	*t = *decoded
	return nil
}

func ExtractFloat32(output any) ([]float32, error) {
	v, err := unwrapData(output)
	if err != nil {
		return nil, err
	}
	switch out := v.(type) {
	case []float32:
		return append([]float32(nil), out...), nil
	case *Tensor:
		if out == nil {
			return nil, fmt.Errorf("expected *Tensor output, got nil")
		}
		if out.dtype != DTypeFloat32 {
			return nil, fmt.Errorf("expected float32 tensor, got %s", out.dtype)
		}
		data, ok := out.data.([]float32)
		if !ok {
			return nil, fmt.Errorf("float32 tensor has unexpected backing type %T", out.data)
		}
		return append([]float32(nil), data...), nil
	default:
		return nil, fmt.Errorf("expected []float32 output, got %T", v)
	}
}

func ExtractInt64(output any) ([]int64, error) {
	v, err := unwrapData(output)
	if err != nil {
		return nil, err
	}
	switch out := v.(type) {
	case []int64:
		return append([]int64(nil), out...), nil
	case *Tensor:
		if out == nil {
			return nil, fmt.Errorf("expected *Tensor output, got nil")
		}
		if out.dtype != DTypeInt64 {
			return nil, fmt.Errorf("expected int64 tensor, got %s", out.dtype)
		}
		data, ok := out.data.([]int64)
		if !ok {
			return nil, fmt.Errorf("int64 tensor has unexpected backing type %T", out.data)
		}
		return append([]int64(nil), data...), nil
	default:
		return nil, fmt.Errorf("expected []int64 output, got %T", v)
	}
}

// unwrapData stops at *Tensor so the typed cases above can check dtype.
func unwrapData(output any) (any, error) {
	type dataGetter interface {
		Data() any
	}

	const maxDepth = 16
	v := output
	for depth := 0; depth < maxDepth; depth++ {
		if v == nil {
			return nil, fmt.Errorf("output is nil")
		}
		if _, ok := v.(*Tensor); ok {
			return v, nil
		}
		getter, ok := v.(dataGetter)
		if !ok {
			return v, nil
		}
		v = getter.Data()
	}
	return nil, fmt.Errorf("nested Data() wrappers exceed max depth %d", maxDepth)
}

func dtypeFromSlice[T ~int64 | ~float32](data []T) (TensorDType, error) {
	var zero T
	switch any(zero).(type) {
	case int64:
		return DTypeInt64, nil
	case float32:
		return DTypeFloat32, nil
	default:
		return "", fmt.Errorf("unsupported tensor data type %T", zero)
	}
}

func canonicalDType(raw string) (TensorDType, error) {
	normalized := strings.ToLower(strings.TrimSpace(raw))
	normalized = strings.TrimPrefix(normalized, "tensor(")
	normalized = strings.TrimSuffix(normalized, ")")
	normalized = strings.TrimPrefix(normalized, "torch.")
	switch normalized {
	case "float", "float32":
		return DTypeFloat32, nil
	case "int64", "long":
		return DTypeInt64, nil
	default:
		return "", fmt.Errorf("unsupported tensor dtype %q", raw)
	}
}

func validateShapeAgainstData(shape []int64, dataLen int) error {
	count, err := elementCount(shape)
	if err != nil {
		return err
	}
	if count != dataLen {
		return fmt.Errorf("shape %v expects %d elements, got %d", shape, count, dataLen)
	}
	return nil
}

func elementCount(shape []int64) (int, error) {
	if len(shape) == 0 {
		return 1, nil
	}
	count := int64(1)
	for i, dim := range shape {
		if dim < 1 {
			return 0, fmt.Errorf("shape[%d]=%d is not positive", i, dim)
		}
		if count > math.MaxInt64/dim {
			return 0, fmt.Errorf("shape %v overflows element count", shape)
		}
		count *= dim
	}
	if count > int64(math.MaxInt) {
		return 0, fmt.Errorf("shape %v exceeds platform int capacity", shape)
	}
	return int(count), nil
}
