// Copyright 2026 © The Seldon Gateway Authors
// SPDX-License-Identifier: Apache-2.0

package message

// Kind is the payload discriminant. Values match the wire field names.
type Kind string

const (
	KindNDArray  Kind = "ndarray"
	KindTensor   Kind = "tensor"
	KindTFTensor Kind = "tftensor"
	KindStrData  Kind = "strData"
	KindBinData  Kind = "binData"
	KindJSONData Kind = "jsonData"
	// KindArray is only produced by components; it never appears on the wire.
	KindArray Kind = "array"
)

// Payload is the tagged union of payload variants. The set of
// implementations is closed to this package.
type Payload interface {
	Kind() Kind
	isPayload()
}

// NDArray is a nested JSON-compatible array. Numbers are float64.
type NDArray struct {
	Names  []string
	Values []any
}

// Tensor is a flat value list with an explicit shape.
type Tensor struct {
	Names  []string
	Shape  []int
	Values []float64
}

// OpaqueTensor holds a serialized tensorflow.TensorProto.
type OpaqueTensor struct {
	Names []string
	Proto []byte
}

// StringData is a single string payload.
type StringData string

// BinaryData is a raw byte payload.
type BinaryData []byte

// JSONData is an arbitrary JSON value.
type JSONData struct {
	Value any
}

// Array is a raw numeric result returned by a component. It is encoded as
// an ndarray or a tensor depending on the request that produced it.
type Array struct {
	Shape  []int
	Values []float64
}

func (NDArray) Kind() Kind      { return KindNDArray }
func (Tensor) Kind() Kind       { return KindTensor }
func (OpaqueTensor) Kind() Kind { return KindTFTensor }
func (StringData) Kind() Kind   { return KindStrData }
func (BinaryData) Kind() Kind   { return KindBinData }
func (JSONData) Kind() Kind     { return KindJSONData }
func (Array) Kind() Kind        { return KindArray }

func (NDArray) isPayload()      {}
func (Tensor) isPayload()       {}
func (OpaqueTensor) isPayload() {}
func (StringData) isPayload()   {}
func (BinaryData) isPayload()   {}
func (JSONData) isPayload()     {}
func (Array) isPayload()        {}

// NamesOf returns the feature names carried by p, if any.
func NamesOf(p Payload) []string {
	switch v := p.(type) {
	case NDArray:
		return v.Names
	case Tensor:
		return v.Names
	case OpaqueTensor:
		return v.Names
	default:
		return nil
	}
}

// WithNames returns p carrying names. Variants without names are returned
// unchanged.
func WithNames(p Payload, names []string) Payload {
	switch v := p.(type) {
	case NDArray:
		v.Names = names
		return v
	case Tensor:
		v.Names = names
		return v
	case OpaqueTensor:
		v.Names = names
		return v
	default:
		return p
	}
}

// StripNames splits p into its unnamed form and its names.
func StripNames(p Payload) (Payload, []string) {
	names := NamesOf(p)
	return WithNames(p, nil), names
}
