package onnx

import (
	"errors"
	"fmt"

	"google.golang.org/protobuf/encoding/protowire"
)

// Field numbers from onnx.proto. Only the fields this tool reads or writes
// are listed; everything else is carried through untouched.
const (
	modelIRVersion       protowire.Number = 1
	modelProducerName    protowire.Number = 2
	modelProducerVersion protowire.Number = 3
	modelGraph           protowire.Number = 7
	modelOpsetImport     protowire.Number = 8
	modelMetadataProps   protowire.Number = 14

	opsetDomain  protowire.Number = 1
	opsetVersion protowire.Number = 2

	graphNode        protowire.Number = 1
	graphName        protowire.Number = 2
	graphInitializer protowire.Number = 5
	graphInput       protowire.Number = 11
	graphOutput      protowire.Number = 12

	valueInfoName protowire.Number = 1
	valueInfoType protowire.Number = 2

	typeTensorType protowire.Number = 1

	tensorTypeElemType protowire.Number = 1
	tensorTypeShape    protowire.Number = 2

	shapeDim protowire.Number = 1

	dimValue protowire.Number = 1
	dimParam protowire.Number = 2

	entryKey   protowire.Number = 1
	entryValue protowire.Number = 2
)

// TensorProto.DataType values used by the exported signature.
const (
	ElemTypeFloat = 1
	ElemTypeInt64 = 7
)

var ErrMalformedModel = errors.New("malformed ONNX model")

type Dim struct {
	Value int64
	Param string
}

// Symbolic reports whether the dimension is left open in the graph.
func (d Dim) Symbolic() bool {
	return d.Param != "" || d.Value <= 0
}

func (d Dim) String() string {
	if d.Param != "" {
		return d.Param
	}
	if d.Value <= 0 {
		return "?"
	}
	return fmt.Sprintf("%d", d.Value)
}

type ValueInfo struct {
	Name     string
	ElemType int32
	Dims     []Dim
}

type OpsetID struct {
	Domain  string
	Version int64
}

type MetadataEntry struct {
	Key   string
	Value string
}

// ModelInfo is the subset of an ONNX ModelProto needed to check an exported
// artifact: its signature, opsets and metadata.
type ModelInfo struct {
	IRVersion       int64
	ProducerName    string
	ProducerVersion string
	Opsets          []OpsetID
	GraphName       string
	NodeCount       int
	Initializers    int
	Inputs          []ValueInfo
	Outputs         []ValueInfo
	Metadata        []MetadataEntry
}

func (m *ModelInfo) MetadataMap() map[string]string {
	out := make(map[string]string, len(m.Metadata))
	for _, e := range m.Metadata {
		out[e.Key] = e.Value
	}
	return out
}

func (m *ModelInfo) Input(name string) (ValueInfo, bool) {
	return findValueInfo(m.Inputs, name)
}

func (m *ModelInfo) Output(name string) (ValueInfo, bool) {
	return findValueInfo(m.Outputs, name)
}

func findValueInfo(vals []ValueInfo, name string) (ValueInfo, bool) {
	for _, v := range vals {
		if v.Name == name {
			return v, true
		}
	}
	return ValueInfo{}, false
}

// DecodeModel parses the parts of a serialized ModelProto described by ModelInfo.
func DecodeModel(b []byte) (*ModelInfo, error) {
	m := &ModelInfo{}
	err := walkFields(b, func(num protowire.Number, typ protowire.Type, val []byte) error {
		switch {
		case num == modelIRVersion && typ == protowire.VarintType:
			v, err := consumeVarint(val)
			m.IRVersion = int64(v)
			return err
		case num == modelProducerName && typ == protowire.BytesType:
			m.ProducerName = string(val)
		case num == modelProducerVersion && typ == protowire.BytesType:
			m.ProducerVersion = string(val)
		case num == modelOpsetImport && typ == protowire.BytesType:
			op, err := decodeOpset(val)
			if err != nil {
				return fmt.Errorf("opset_import: %w", err)
			}
			m.Opsets = append(m.Opsets, op)
		case num == modelGraph && typ == protowire.BytesType:
			if err := decodeGraph(val, m); err != nil {
				return fmt.Errorf("graph: %w", err)
			}
		case num == modelMetadataProps && typ == protowire.BytesType:
			e, err := decodeEntry(val)
			if err != nil {
				return fmt.Errorf("metadata_props: %w", err)
			}
			m.Metadata = append(m.Metadata, e)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return m, nil
}

// ReplaceMetadata returns a copy of the serialized model with every
// metadata_props entry removed and entries appended in order. All other
// fields are copied byte for byte.
func ReplaceMetadata(b []byte, entries []MetadataEntry) ([]byte, error) {
	out := make([]byte, 0, len(b)+64*len(entries))
	for len(b) > 0 {
		num, typ, n := protowire.ConsumeField(b)
		if n < 0 {
			return nil, fmt.Errorf("%w: %v", ErrMalformedModel, protowire.ParseError(n))
		}
		if num != modelMetadataProps || typ != protowire.BytesType {
			out = append(out, b[:n]...)
		}
		b = b[n:]
	}
	for _, e := range entries {
		out = protowire.AppendTag(out, modelMetadataProps, protowire.BytesType)
		out = protowire.AppendBytes(out, encodeEntry(e))
	}
	return out, nil
}

// EncodeModel serializes a ModelInfo as a ModelProto with an empty node list.
// It is used for dry runs and tests; real graphs come from the exporter.
func EncodeModel(m *ModelInfo) []byte {
	var b []byte
	if m.IRVersion != 0 {
		b = protowire.AppendTag(b, modelIRVersion, protowire.VarintType)
		b = protowire.AppendVarint(b, uint64(m.IRVersion))
	}
	if m.ProducerName != "" {
		b = protowire.AppendTag(b, modelProducerName, protowire.BytesType)
		b = protowire.AppendString(b, m.ProducerName)
	}
	if m.ProducerVersion != "" {
		b = protowire.AppendTag(b, modelProducerVersion, protowire.BytesType)
		b = protowire.AppendString(b, m.ProducerVersion)
	}

	var g []byte
	if m.GraphName != "" {
		g = protowire.AppendTag(g, graphName, protowire.BytesType)
		g = protowire.AppendString(g, m.GraphName)
	}
	for _, in := range m.Inputs {
		g = protowire.AppendTag(g, graphInput, protowire.BytesType)
		g = protowire.AppendBytes(g, encodeValueInfo(in))
	}
	for _, out := range m.Outputs {
		g = protowire.AppendTag(g, graphOutput, protowire.BytesType)
		g = protowire.AppendBytes(g, encodeValueInfo(out))
	}
	b = protowire.AppendTag(b, modelGraph, protowire.BytesType)
	b = protowire.AppendBytes(b, g)

	for _, op := range m.Opsets {
		var ob []byte
		if op.Domain != "" {
			ob = protowire.AppendTag(ob, opsetDomain, protowire.BytesType)
			ob = protowire.AppendString(ob, op.Domain)
		}
		ob = protowire.AppendTag(ob, opsetVersion, protowire.VarintType)
		ob = protowire.AppendVarint(ob, uint64(op.Version))
		b = protowire.AppendTag(b, modelOpsetImport, protowire.BytesType)
		b = protowire.AppendBytes(b, ob)
	}

	for _, e := range m.Metadata {
		b = protowire.AppendTag(b, modelMetadataProps, protowire.BytesType)
		b = protowire.AppendBytes(b, encodeEntry(e))
	}
	return b
}

func decodeGraph(b []byte, m *ModelInfo) error {
	return walkFields(b, func(num protowire.Number, typ protowire.Type, val []byte) error {
		if typ != protowire.BytesType {
			return nil
		}
		switch num {
		case graphName:
			m.GraphName = string(val)
		case graphNode:
			m.NodeCount++
		case graphInitializer:
			m.Initializers++
		case graphInput:
			vi, err := decodeValueInfo(val)
			if err != nil {
				return fmt.Errorf("input: %w", err)
			}
			m.Inputs = append(m.Inputs, vi)
		case graphOutput:
			vi, err := decodeValueInfo(val)
			if err != nil {
				return fmt.Errorf("output: %w", err)
			}
			m.Outputs = append(m.Outputs, vi)
		}
		return nil
	})
}

func decodeValueInfo(b []byte) (ValueInfo, error) {
	var vi ValueInfo
	err := walkFields(b, func(num protowire.Number, typ protowire.Type, val []byte) error {
		if typ != protowire.BytesType {
			return nil
		}
		switch num {
		case valueInfoName:
			vi.Name = string(val)
		case valueInfoType:
			return walkFields(val, func(num protowire.Number, typ protowire.Type, val []byte) error {
				if num != typeTensorType || typ != protowire.BytesType {
					return nil
				}
				return decodeTensorType(val, &vi)
			})
		}
		return nil
	})
	return vi, err
}

func decodeTensorType(b []byte, vi *ValueInfo) error {
	return walkFields(b, func(num protowire.Number, typ protowire.Type, val []byte) error {
		switch {
		case num == tensorTypeElemType && typ == protowire.VarintType:
			v, err := consumeVarint(val)
			vi.ElemType = int32(v)
			return err
		case num == tensorTypeShape && typ == protowire.BytesType:
			return walkFields(val, func(num protowire.Number, typ protowire.Type, val []byte) error {
				if num != shapeDim || typ != protowire.BytesType {
					return nil
				}
				d, err := decodeDim(val)
				if err != nil {
					return err
				}
				vi.Dims = append(vi.Dims, d)
				return nil
			})
		}
		return nil
	})
}

func decodeDim(b []byte) (Dim, error) {
	var d Dim
	err := walkFields(b, func(num protowire.Number, typ protowire.Type, val []byte) error {
		switch {
		case num == dimValue && typ == protowire.VarintType:
			v, err := consumeVarint(val)
			d.Value = int64(v)
			return err
		case num == dimParam && typ == protowire.BytesType:
			d.Param = string(val)
		}
		return nil
	})
	return d, err
}

func decodeOpset(b []byte) (OpsetID, error) {
	var op OpsetID
	err := walkFields(b, func(num protowire.Number, typ protowire.Type, val []byte) error {
		switch {
		case num == opsetDomain && typ == protowire.BytesType:
			op.Domain = string(val)
		case num == opsetVersion && typ == protowire.VarintType:
			v, err := consumeVarint(val)
			op.Version = int64(v)
			return err
		}
		return nil
	})
	return op, err
}

func decodeEntry(b []byte) (MetadataEntry, error) {
	var e MetadataEntry
	err := walkFields(b, func(num protowire.Number, typ protowire.Type, val []byte) error {
		if typ != protowire.BytesType {
			return nil
		}
		switch num {
		case entryKey:
			e.Key = string(val)
		case entryValue:
			e.Value = string(val)
		}
		return nil
	})
	return e, err
}

func encodeEntry(e MetadataEntry) []byte {
	var b []byte
	b = protowire.AppendTag(b, entryKey, protowire.BytesType)
	b = protowire.AppendString(b, e.Key)
	b = protowire.AppendTag(b, entryValue, protowire.BytesType)
	b = protowire.AppendString(b, e.Value)
	return b
}

func encodeValueInfo(vi ValueInfo) []byte {
	var shape []byte
	for _, d := range vi.Dims {
		var db []byte
		if d.Param != "" {
			db = protowire.AppendTag(db, dimParam, protowire.BytesType)
			db = protowire.AppendString(db, d.Param)
		} else {
			db = protowire.AppendTag(db, dimValue, protowire.VarintType)
			db = protowire.AppendVarint(db, uint64(d.Value))
		}
		shape = protowire.AppendTag(shape, shapeDim, protowire.BytesType)
		shape = protowire.AppendBytes(shape, db)
	}

	var tt []byte
	tt = protowire.AppendTag(tt, tensorTypeElemType, protowire.VarintType)
	tt = protowire.AppendVarint(tt, uint64(vi.ElemType))
	tt = protowire.AppendTag(tt, tensorTypeShape, protowire.BytesType)
	tt = protowire.AppendBytes(tt, shape)

	var typ []byte
	typ = protowire.AppendTag(typ, typeTensorType, protowire.BytesType)
	typ = protowire.AppendBytes(typ, tt)

	var b []byte
	b = protowire.AppendTag(b, valueInfoName, protowire.BytesType)
	b = protowire.AppendString(b, vi.Name)
	b = protowire.AppendTag(b, valueInfoType, protowire.BytesType)
	b = protowire.AppendBytes(b, typ)
	return b
}

// walkFields calls fn for each field of a message. For length-delimited
// fields val is the payload; for other wire types it is the encoded value.
func walkFields(b []byte, fn func(num protowire.Number, typ protowire.Type, val []byte) error) error {
	for len(b) > 0 {
		num, typ, n := protowire.ConsumeTag(b)
		if n < 0 {
			return fmt.Errorf("%w: %v", ErrMalformedModel, protowire.ParseError(n))
		}
		b = b[n:]

		m := protowire.ConsumeFieldValue(num, typ, b)
		if m < 0 {
			return fmt.Errorf("%w: field %d: %v", ErrMalformedModel, num, protowire.ParseError(m))
		}
		val := b[:m]
		if typ == protowire.BytesType {
			payload, k := protowire.ConsumeBytes(val)
			if k < 0 {
				return fmt.Errorf("%w: field %d: %v", ErrMalformedModel, num, protowire.ParseError(k))
			}
			val = payload
		}
		if err := fn(num, typ, val); err != nil {
			return err
		}
		b = b[m:]
	}
	return nil
}

func consumeVarint(b []byte) (uint64, error) {
	v, n := protowire.ConsumeVarint(b)
	if n < 0 {
		return 0, fmt.Errorf("%w: %v", ErrMalformedModel, protowire.ParseError(n))
	}
	return v, nil
}
