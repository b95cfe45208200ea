// Copyright 2026 © The Seldon Gateway Authors
// SPDX-License-Identifier: Apache-2.0

package prediction

import (
	"fmt"
	"math"
	"sort"

	"google.golang.org/protobuf/encoding/protowire"
	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/types/known/structpb"
)

// field is one decoded (number, type, raw value) triple.
type field struct {
	num protowire.Number
	typ protowire.Type
	// raw holds the field value without its tag.
	raw []byte
}

// walk iterates over the top-level fields in b.
func walk(b []byte, fn func(f field) error) error {
	for len(b) > 0 {
		num, typ, n := protowire.ConsumeTag(b)
		if n < 0 {
			return protowire.ParseError(n)
		}
		b = b[n:]
		m := protowire.ConsumeFieldValue(num, typ, b)
		if m < 0 {
			return protowire.ParseError(m)
		}
		if err := fn(field{num: num, typ: typ, raw: b[:m]}); err != nil {
			return err
		}
		b = b[m:]
	}
	return nil
}

func (f field) expect(typ protowire.Type) error {
	if f.typ != typ {
		return fmt.Errorf("field %d: unexpected wire type %d", f.num, f.typ)
	}
	return nil
}

func (f field) bytes() ([]byte, error) {
	if err := f.expect(protowire.BytesType); err != nil {
		return nil, err
	}
	v, n := protowire.ConsumeBytes(f.raw)
	if n < 0 {
		return nil, protowire.ParseError(n)
	}
	return append([]byte{}, v...), nil
}

func (f field) str() (string, error) {
	v, err := f.bytes()
	return string(v), err
}

func (f field) varint() (uint64, error) {
	if err := f.expect(protowire.VarintType); err != nil {
		return 0, err
	}
	v, n := protowire.ConsumeVarint(f.raw)
	if n < 0 {
		return 0, protowire.ParseError(n)
	}
	return v, nil
}

func (f field) float() (float32, error) {
	if err := f.expect(protowire.Fixed32Type); err != nil {
		return 0, err
	}
	v, n := protowire.ConsumeFixed32(f.raw)
	if n < 0 {
		return 0, protowire.ParseError(n)
	}
	return math.Float32frombits(v), nil
}

// int32s decodes a repeated int32 field in packed or unpacked form.
func (f field) int32s(dst []int32) ([]int32, error) {
	if f.typ == protowire.VarintType {
		v, err := f.varint()
		return append(dst, int32(v)), err
	}
	b, err := f.bytes()
	if err != nil {
		return dst, err
	}
	for len(b) > 0 {
		v, n := protowire.ConsumeVarint(b)
		if n < 0 {
			return dst, protowire.ParseError(n)
		}
		dst = append(dst, int32(v))
		b = b[n:]
	}
	return dst, nil
}

// doubles decodes a repeated double field in packed or unpacked form.
func (f field) doubles(dst []float64) ([]float64, error) {
	if f.typ == protowire.Fixed64Type {
		v, n := protowire.ConsumeFixed64(f.raw)
		if n < 0 {
			return dst, protowire.ParseError(n)
		}
		return append(dst, math.Float64frombits(v)), nil
	}
	b, err := f.bytes()
	if err != nil {
		return dst, err
	}
	if len(b)%8 != 0 {
		return dst, fmt.Errorf("field %d: packed doubles length %d", f.num, len(b))
	}
	for len(b) > 0 {
		v, n := protowire.ConsumeFixed64(b)
		if n < 0 {
			return dst, protowire.ParseError(n)
		}
		dst = append(dst, math.Float64frombits(v))
		b = b[n:]
	}
	return dst, nil
}

func appendString(b []byte, num protowire.Number, s string) []byte {
	if s == "" {
		return b
	}
	b = protowire.AppendTag(b, num, protowire.BytesType)
	return protowire.AppendString(b, s)
}

func appendBytes(b []byte, num protowire.Number, v []byte) []byte {
	b = protowire.AppendTag(b, num, protowire.BytesType)
	return protowire.AppendBytes(b, v)
}

func appendVarint(b []byte, num protowire.Number, v uint64) []byte {
	if v == 0 {
		return b
	}
	b = protowire.AppendTag(b, num, protowire.VarintType)
	return protowire.AppendVarint(b, v)
}

func appendFloat32(b []byte, num protowire.Number, v float32) []byte {
	if v == 0 && !math.Signbit(float64(v)) {
		return b
	}
	b = protowire.AppendTag(b, num, protowire.Fixed32Type)
	return protowire.AppendFixed32(b, math.Float32bits(v))
}

// appendStruct appends a well-known protobuf message as an embedded field.
func appendStruct(b []byte, num protowire.Number, m proto.Message) ([]byte, error) {
	inner, err := proto.MarshalOptions{Deterministic: true}.Marshal(m)
	if err != nil {
		return b, err
	}
	return appendBytes(b, num, inner), nil
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// map entries are messages with key=1 and value=2.

func appendStringMap(b []byte, num protowire.Number, m map[string]string) []byte {
	for _, k := range sortedKeys(m) {
		var entry []byte
		entry = appendString(entry, 1, k)
		entry = appendString(entry, 2, m[k])
		b = appendBytes(b, num, entry)
	}
	return b
}

func appendInt32Map(b []byte, num protowire.Number, m map[string]int32) []byte {
	for _, k := range sortedKeys(m) {
		var entry []byte
		entry = appendString(entry, 1, k)
		entry = appendVarint(entry, 2, uint64(int64(m[k])))
		b = appendBytes(b, num, entry)
	}
	return b
}

func appendValueMap(b []byte, num protowire.Number, m map[string]*structpb.Value) ([]byte, error) {
	for _, k := range sortedKeys(m) {
		var entry []byte
		entry = appendString(entry, 1, k)
		if v := m[k]; v != nil {
			var err error
			if entry, err = appendStruct(entry, 2, v); err != nil {
				return b, fmt.Errorf("tag %q: %w", k, err)
			}
		}
		b = appendBytes(b, num, entry)
	}
	return b, nil
}

// consumeEntry decodes a map entry, calling fn with the key and the raw
// value field (nil when absent).
func consumeEntry(f field, fn func(key string, value *field) error) error {
	b, err := f.bytes()
	if err != nil {
		return err
	}
	var key string
	var value *field
	err = walk(b, func(ef field) error {
		switch ef.num {
		case 1:
			s, err := ef.str()
			key = s
			return err
		case 2:
			v := ef
			value = &v
		}
		return nil
	})
	if err != nil {
		return err
	}
	return fn(key, value)
}
