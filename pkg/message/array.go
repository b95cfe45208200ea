// Copyright 2026 © The Seldon Gateway Authors
// SPDX-License-Identifier: Apache-2.0

package message

import (
	"fmt"
	"strconv"

	"github.com/adamjm/seldon-core/pkg/errors"
)

// Size returns the number of elements described by shape.
func Size(shape []int) int {
	if len(shape) == 0 {
		return 0
	}
	n := 1
	for _, d := range shape {
		n *= d
	}
	return n
}

// Columns returns the second dimension of the payload, or 0 when the
// payload has fewer than two dimensions.
func Columns(p Payload) int {
	switch v := p.(type) {
	case NDArray:
		if len(v.Values) == 0 {
			return 0
		}
		if row, ok := v.Values[0].([]any); ok {
			return len(row)
		}
		return 0
	case Tensor:
		if len(v.Shape) > 1 {
			return v.Shape[1]
		}
		return 0
	case Array:
		if len(v.Shape) > 1 {
			return v.Shape[1]
		}
		return 0
	default:
		return 0
	}
}

// SynthesizeNames returns the positional names t:0 .. t:n-1.
func SynthesizeNames(n int) []string {
	if n <= 0 {
		return nil
	}
	names := make([]string, n)
	for i := range names {
		names[i] = "t:" + strconv.Itoa(i)
	}
	return names
}

// ToArray flattens a numeric payload. NDArray values must be rectangular
// and numeric.
func ToArray(p Payload) (Array, error) {
	switch v := p.(type) {
	case Array:
		return v, nil
	case Tensor:
		return Array{Shape: append([]int(nil), v.Shape...), Values: append([]float64(nil), v.Values...)}, nil
	case NDArray:
		shape := shapeOf(v.Values)
		values := make([]float64, 0, Size(shape))
		if err := flatten(v.Values, &values); err != nil {
			return Array{}, err
		}
		if len(values) != Size(shape) {
			return Array{}, errors.New(errors.CodeMalformedPayload, "ndarray is not rectangular", nil)
		}
		return Array{Shape: shape, Values: values}, nil
	default:
		return Array{}, errors.Newf(errors.CodeMalformedPayload, "payload %q is not numeric", kindOf(p))
	}
}

// Normalize checks that the shape describes exactly the values carried.
// A missing shape means a flat vector.
func (a Array) Normalize() (Array, error) {
	if len(a.Shape) == 0 {
		return Array{Shape: []int{len(a.Values)}, Values: a.Values}, nil
	}
	for _, d := range a.Shape {
		if d < 0 {
			return Array{}, errors.Newf(errors.CodeComponentFailure, "component returned negative dimension in shape %v", a.Shape)
		}
	}
	if n := Size(a.Shape); n != len(a.Values) {
		return Array{}, errors.Newf(errors.CodeComponentFailure, "component returned %d values for shape %v (want %d)", len(a.Values), a.Shape, n)
	}
	return a, nil
}

// Nested returns the array as nested []any rows, as carried by an ndarray.
func (a Array) Nested() ([]any, error) {
	a, err := a.Normalize()
	if err != nil {
		return nil, err
	}
	out, err := nest(a.Shape, a.Values)
	if err != nil {
		return nil, errors.New(errors.CodeComponentFailure, "component result does not fit its shape", err)
	}
	return out, nil
}

// Resolve turns a component result into an encodable payload. Arrays
// become ndarrays when the request was an ndarray and tensors otherwise.
// Unnamed numeric results get classNames, or positional names when
// classNames is empty. An array whose shape disagrees with its values is
// a component failure.
func Resolve(result Payload, requestKind Kind, classNames []string) (Payload, error) {
	if arr, ok := result.(Array); ok {
		arr, err := arr.Normalize()
		if err != nil {
			return nil, err
		}
		if requestKind == KindNDArray {
			nested, err := arr.Nested()
			if err != nil {
				return nil, err
			}
			result = NDArray{Values: nested}
		} else {
			result = Tensor{Shape: arr.Shape, Values: arr.Values}
		}
	}
	return nameNumeric(result, classNames), nil
}

func nameNumeric(result Payload, classNames []string) Payload {
	switch result.(type) {
	case NDArray, Tensor:
	default:
		return result
	}
	if NamesOf(result) != nil {
		return result
	}
	if len(classNames) > 0 {
		return WithNames(result, append([]string(nil), classNames...))
	}
	return WithNames(result, SynthesizeNames(Columns(result)))
}

func kindOf(p Payload) Kind {
	if p == nil {
		return ""
	}
	return p.Kind()
}

func shapeOf(values []any) []int {
	shape := []int{len(values)}
	cur := values
	for len(cur) > 0 {
		next, ok := cur[0].([]any)
		if !ok {
			break
		}
		shape = append(shape, len(next))
		cur = next
	}
	return shape
}

func flatten(values []any, out *[]float64) error {
	for _, v := range values {
		switch x := v.(type) {
		case []any:
			if err := flatten(x, out); err != nil {
				return err
			}
		case float64:
			*out = append(*out, x)
		case int:
			*out = append(*out, float64(x))
		case bool:
			if x {
				*out = append(*out, 1)
			} else {
				*out = append(*out, 0)
			}
		default:
			return errors.Newf(errors.CodeMalformedPayload, "ndarray element %v (%T) is not numeric", v, v)
		}
	}
	return nil
}

func nest(shape []int, values []float64) ([]any, error) {
	if len(shape) == 1 {
		if len(values) != shape[0] {
			return nil, fmt.Errorf("shape %v does not match %d values", shape, len(values))
		}
		out := make([]any, len(values))
		for i, v := range values {
			out[i] = v
		}
		return out, nil
	}
	stride := Size(shape[1:])
	out := make([]any, shape[0])
	for i := range out {
		lo, hi := i*stride, (i+1)*stride
		if hi > len(values) {
			return nil, fmt.Errorf("shape %v does not match %d values", shape, len(values))
		}
		row, err := nest(shape[1:], values[lo:hi])
		if err != nil {
			return nil, err
		}
		out[i] = row
	}
	return out, nil
}
