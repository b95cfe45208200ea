// Copyright 2026 © The Seldon Gateway Authors
// SPDX-License-Identifier: Apache-2.0

// Package tftensor converts tensorflow.TensorProto payloads between the
// protobuf binary form carried by the canonical envelope and the protobuf
// JSON form carried over HTTP. The schema is built at init time with
// dynamicpb so the gateway does not depend on generated TensorFlow code.
package tftensor

import (
	"fmt"

	"google.golang.org/protobuf/encoding/protojson"
	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/reflect/protodesc"
	"google.golang.org/protobuf/reflect/protoreflect"
	"google.golang.org/protobuf/types/descriptorpb"
	"google.golang.org/protobuf/types/dynamicpb"

	"github.com/adamjm/seldon-core/pkg/message"
)

// DataType values used by this package.
const (
	DTFloat  = 1
	DTDouble = 2
	DTInt32  = 3
	DTInt64  = 9
)

var tensorDesc protoreflect.MessageDescriptor

func init() {
	fd, err := protodesc.NewFile(fileProto(), nil)
	if err != nil {
		panic(fmt.Sprintf("tftensor: building descriptor: %v", err))
	}
	tensorDesc = fd.Messages().ByName("TensorProto")
}

// Codec implements the opaque tensor sub-codec.
type Codec struct{}

// New returns a Codec.
func New() *Codec { return &Codec{} }

// FromJSON parses the protobuf JSON form and returns the binary form.
func (c *Codec) FromJSON(data []byte) ([]byte, error) {
	msg := dynamicpb.NewMessage(tensorDesc)
	if err := protojson.Unmarshal(data, msg); err != nil {
		return nil, fmt.Errorf("tftensor: %w", err)
	}
	return proto.MarshalOptions{Deterministic: true}.Marshal(msg)
}

// ToJSON renders the binary form as protobuf JSON.
func (c *Codec) ToJSON(raw []byte) ([]byte, error) {
	msg := dynamicpb.NewMessage(tensorDesc)
	if err := proto.Unmarshal(raw, msg); err != nil {
		return nil, fmt.Errorf("tftensor: %w", err)
	}
	return protojson.Marshal(msg)
}

// ToArray decodes a numeric TensorProto into a canonical array. A tensor
// without a shape is read as a vector. Values packed in tensor_content are
// not supported.
func (c *Codec) ToArray(raw []byte) (message.Array, error) {
	msg := dynamicpb.NewMessage(tensorDesc)
	if err := proto.Unmarshal(raw, msg); err != nil {
		return message.Array{}, fmt.Errorf("tftensor: %w", err)
	}
	fields := tensorDesc.Fields()

	var shape []int
	if msg.Has(fields.ByName("tensor_shape")) {
		dims := msg.Get(fields.ByName("tensor_shape")).Message()
		list := dims.Get(dims.Descriptor().Fields().ByName("dim")).List()
		for i := 0; i < list.Len(); i++ {
			dim := list.Get(i).Message()
			shape = append(shape, int(dim.Get(dim.Descriptor().Fields().ByName("size")).Int()))
		}
	}

	var values []float64
	switch msg.Get(fields.ByName("dtype")).Enum() {
	case DTFloat:
		list := msg.Get(fields.ByName("float_val")).List()
		for i := 0; i < list.Len(); i++ {
			values = append(values, list.Get(i).Float())
		}
	case DTDouble:
		list := msg.Get(fields.ByName("double_val")).List()
		for i := 0; i < list.Len(); i++ {
			values = append(values, list.Get(i).Float())
		}
	case DTInt32:
		list := msg.Get(fields.ByName("int_val")).List()
		for i := 0; i < list.Len(); i++ {
			values = append(values, float64(list.Get(i).Int()))
		}
	case DTInt64:
		list := msg.Get(fields.ByName("int64_val")).List()
		for i := 0; i < list.Len(); i++ {
			values = append(values, float64(list.Get(i).Int()))
		}
	default:
		return message.Array{}, fmt.Errorf("tftensor: unsupported dtype %v", msg.Get(fields.ByName("dtype")).Enum())
	}
	if len(shape) == 0 {
		shape = []int{len(values)}
	}
	if len(values) != message.Size(shape) {
		return message.Array{}, fmt.Errorf("tftensor: %d values for shape %v", len(values), shape)
	}
	return message.Array{Shape: shape, Values: values}, nil
}

// FromArray encodes arr as a DT_DOUBLE TensorProto.
func (c *Codec) FromArray(arr message.Array) ([]byte, error) {
	msg := dynamicpb.NewMessage(tensorDesc)
	fields := tensorDesc.Fields()
	msg.Set(fields.ByName("dtype"), protoreflect.ValueOfEnum(DTDouble))

	shapeField := fields.ByName("tensor_shape")
	shape := msg.Mutable(shapeField).Message()
	dimField := shape.Descriptor().Fields().ByName("dim")
	dims := shape.Mutable(dimField).List()
	for _, d := range arr.Shape {
		dim := dims.NewElement().Message()
		dim.Set(dim.Descriptor().Fields().ByName("size"), protoreflect.ValueOfInt64(int64(d)))
		dims.Append(protoreflect.ValueOfMessage(dim))
	}

	vals := msg.Mutable(fields.ByName("double_val")).List()
	for _, v := range arr.Values {
		vals.Append(protoreflect.ValueOfFloat64(v))
	}
	return proto.MarshalOptions{Deterministic: true}.Marshal(msg)
}

func fileProto() *descriptorpb.FileDescriptorProto {
	repeated := descriptorpb.FieldDescriptorProto_LABEL_REPEATED.Enum()
	optional := descriptorpb.FieldDescriptorProto_LABEL_OPTIONAL.Enum()
	scalar := func(name string, num int32, typ descriptorpb.FieldDescriptorProto_Type, label *descriptorpb.FieldDescriptorProto_Label) *descriptorpb.FieldDescriptorProto {
		return &descriptorpb.FieldDescriptorProto{
			Name:     proto.String(name),
			JsonName: proto.String(jsonName(name)),
			Number:   proto.Int32(num),
			Type:     typ.Enum(),
			Label:    label,
		}
	}
	ref := func(f *descriptorpb.FieldDescriptorProto, typeName string) *descriptorpb.FieldDescriptorProto {
		f.TypeName = proto.String(typeName)
		return f
	}

	dataTypes := []struct {
		name string
		num  int32
	}{
		{"DT_INVALID", 0}, {"DT_FLOAT", 1}, {"DT_DOUBLE", 2}, {"DT_INT32", 3},
		{"DT_UINT8", 4}, {"DT_INT16", 5}, {"DT_INT8", 6}, {"DT_STRING", 7},
		{"DT_COMPLEX64", 8}, {"DT_INT64", 9}, {"DT_BOOL", 10}, {"DT_HALF", 19},
		{"DT_UINT32", 22}, {"DT_UINT64", 23},
	}
	dataType := &descriptorpb.EnumDescriptorProto{Name: proto.String("DataType")}
	for _, dt := range dataTypes {
		dataType.Value = append(dataType.Value, &descriptorpb.EnumValueDescriptorProto{
			Name:   proto.String(dt.name),
			Number: proto.Int32(dt.num),
		})
	}

	shape := &descriptorpb.DescriptorProto{
		Name: proto.String("TensorShapeProto"),
		NestedType: []*descriptorpb.DescriptorProto{{
			Name: proto.String("Dim"),
			Field: []*descriptorpb.FieldDescriptorProto{
				scalar("size", 1, descriptorpb.FieldDescriptorProto_TYPE_INT64, optional),
				scalar("name", 2, descriptorpb.FieldDescriptorProto_TYPE_STRING, optional),
			},
		}},
		Field: []*descriptorpb.FieldDescriptorProto{
			ref(scalar("dim", 2, descriptorpb.FieldDescriptorProto_TYPE_MESSAGE, repeated), ".tensorflow.TensorShapeProto.Dim"),
			scalar("unknown_rank", 3, descriptorpb.FieldDescriptorProto_TYPE_BOOL, optional),
		},
	}

	tensor := &descriptorpb.DescriptorProto{
		Name: proto.String("TensorProto"),
		Field: []*descriptorpb.FieldDescriptorProto{
			ref(scalar("dtype", 1, descriptorpb.FieldDescriptorProto_TYPE_ENUM, optional), ".tensorflow.DataType"),
			ref(scalar("tensor_shape", 2, descriptorpb.FieldDescriptorProto_TYPE_MESSAGE, optional), ".tensorflow.TensorShapeProto"),
			scalar("version_number", 3, descriptorpb.FieldDescriptorProto_TYPE_INT32, optional),
			scalar("tensor_content", 4, descriptorpb.FieldDescriptorProto_TYPE_BYTES, optional),
			scalar("float_val", 5, descriptorpb.FieldDescriptorProto_TYPE_FLOAT, repeated),
			scalar("double_val", 6, descriptorpb.FieldDescriptorProto_TYPE_DOUBLE, repeated),
			scalar("int_val", 7, descriptorpb.FieldDescriptorProto_TYPE_INT32, repeated),
			scalar("string_val", 8, descriptorpb.FieldDescriptorProto_TYPE_BYTES, repeated),
			scalar("scomplex_val", 9, descriptorpb.FieldDescriptorProto_TYPE_FLOAT, repeated),
			scalar("int64_val", 10, descriptorpb.FieldDescriptorProto_TYPE_INT64, repeated),
			scalar("bool_val", 11, descriptorpb.FieldDescriptorProto_TYPE_BOOL, repeated),
			scalar("dcomplex_val", 12, descriptorpb.FieldDescriptorProto_TYPE_DOUBLE, repeated),
			scalar("half_val", 13, descriptorpb.FieldDescriptorProto_TYPE_INT32, repeated),
			scalar("uint32_val", 16, descriptorpb.FieldDescriptorProto_TYPE_UINT32, repeated),
			scalar("uint64_val", 17, descriptorpb.FieldDescriptorProto_TYPE_UINT64, repeated),
		},
	}

	return &descriptorpb.FileDescriptorProto{
		Name:        proto.String("tensorflow/core/framework/tensor.proto"),
		Package:     proto.String("tensorflow"),
		Syntax:      proto.String("proto3"),
		EnumType:    []*descriptorpb.EnumDescriptorProto{dataType},
		MessageType: []*descriptorpb.DescriptorProto{shape, tensor},
	}
}

// jsonName mirrors protoc's lowerCamelCase JSON names.
func jsonName(name string) string {
	out := make([]byte, 0, len(name))
	upper := false
	for i := 0; i < len(name); i++ {
		c := name[i]
		if c == '_' {
			upper = true
			continue
		}
		if upper && 'a' <= c && c <= 'z' {
			c -= 'a' - 'A'
		}
		upper = false
		out = append(out, c)
	}
	return string(out)
}
