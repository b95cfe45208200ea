// Copyright 2026 © The Seldon Gateway Authors
// SPDX-License-Identifier: Apache-2.0

package prediction

import (
	"reflect"
	"testing"

	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/reflect/protodesc"
	"google.golang.org/protobuf/reflect/protoreflect"
	"google.golang.org/protobuf/reflect/protoregistry"
	"google.golang.org/protobuf/types/descriptorpb"
	"google.golang.org/protobuf/types/dynamicpb"
	"google.golang.org/protobuf/types/known/structpb"
)

// schemaFile mirrors prediction.proto. The tftensor field is declared as
// bytes, which shares its wire type with the TensorProto message.
func schemaFile(t *testing.T) protoreflect.FileDescriptor {
	t.Helper()
	type fd = descriptorpb.FieldDescriptorProto
	optional := descriptorpb.FieldDescriptorProto_LABEL_OPTIONAL.Enum()
	repeated := descriptorpb.FieldDescriptorProto_LABEL_REPEATED.Enum()
	field := func(name string, num int32, typ descriptorpb.FieldDescriptorProto_Type, typeName string) *fd {
		f := &fd{Name: proto.String(name), Number: proto.Int32(num), Type: typ.Enum(), Label: optional}
		if typeName != "" {
			f.TypeName = proto.String(typeName)
		}
		return f
	}
	list := func(f *fd) *fd {
		f.Label = repeated
		return f
	}
	oneof := func(f *fd) *fd {
		f.OneofIndex = proto.Int32(0)
		return f
	}
	entry := func(name string, value *fd) *descriptorpb.DescriptorProto {
		value.Name = proto.String("value")
		value.Number = proto.Int32(2)
		return &descriptorpb.DescriptorProto{
			Name: proto.String(name),
			Field: []*fd{
				field("key", 1, descriptorpb.FieldDescriptorProto_TYPE_STRING, ""),
				value,
			},
			Options: &descriptorpb.MessageOptions{MapEntry: proto.Bool(true)},
		}
	}
	enum := func(name string, values ...string) *descriptorpb.EnumDescriptorProto {
		e := &descriptorpb.EnumDescriptorProto{Name: proto.String(name)}
		for i, v := range values {
			e.Value = append(e.Value, &descriptorpb.EnumValueDescriptorProto{Name: proto.String(v), Number: proto.Int32(int32(i))})
		}
		return e
	}
	const (
		msg     = descriptorpb.FieldDescriptorProto_TYPE_MESSAGE
		str     = descriptorpb.FieldDescriptorProto_TYPE_STRING
		byt     = descriptorpb.FieldDescriptorProto_TYPE_BYTES
		i32     = descriptorpb.FieldDescriptorProto_TYPE_INT32
		f32     = descriptorpb.FieldDescriptorProto_TYPE_FLOAT
		f64     = descriptorpb.FieldDescriptorProto_TYPE_DOUBLE
		enumTyp = descriptorpb.FieldDescriptorProto_TYPE_ENUM
	)
	dataOneof := []*descriptorpb.OneofDescriptorProto{{Name: proto.String("data_oneof")}}

	file := &descriptorpb.FileDescriptorProto{
		Name:       proto.String("prediction.proto"),
		Package:    proto.String("seldon.protos"),
		Syntax:     proto.String("proto3"),
		Dependency: []string{"google/protobuf/struct.proto"},
		MessageType: []*descriptorpb.DescriptorProto{
			{
				Name: proto.String("SeldonMessage"),
				Field: []*fd{
					field("status", 1, msg, ".seldon.protos.Status"),
					field("meta", 2, msg, ".seldon.protos.Meta"),
					oneof(field("data", 3, msg, ".seldon.protos.DefaultData")),
					oneof(field("binData", 4, byt, "")),
					oneof(field("strData", 5, str, "")),
					oneof(field("jsonData", 6, msg, ".google.protobuf.Value")),
				},
				OneofDecl: dataOneof,
			},
			{
				Name: proto.String("DefaultData"),
				Field: []*fd{
					list(field("names", 1, str, "")),
					oneof(field("tensor", 2, msg, ".seldon.protos.Tensor")),
					oneof(field("ndarray", 3, msg, ".google.protobuf.ListValue")),
					oneof(field("tftensor", 4, byt, "")),
				},
				OneofDecl: dataOneof,
			},
			{
				Name: proto.String("Tensor"),
				Field: []*fd{
					list(field("shape", 1, i32, "")),
					list(field("values", 2, f64, "")),
				},
			},
			{
				Name: proto.String("Meta"),
				Field: []*fd{
					field("puid", 1, str, ""),
					list(field("tags", 2, msg, ".seldon.protos.Meta.TagsEntry")),
					list(field("routing", 3, msg, ".seldon.protos.Meta.RoutingEntry")),
					list(field("requestPath", 4, msg, ".seldon.protos.Meta.RequestPathEntry")),
					list(field("metrics", 5, msg, ".seldon.protos.Metric")),
				},
				NestedType: []*descriptorpb.DescriptorProto{
					entry("TagsEntry", field("", 0, msg, ".google.protobuf.Value")),
					entry("RoutingEntry", field("", 0, i32, "")),
					entry("RequestPathEntry", field("", 0, str, "")),
				},
			},
			{
				Name: proto.String("Metric"),
				Field: []*fd{
					field("key", 1, str, ""),
					field("type", 2, enumTyp, ".seldon.protos.Metric.MetricType"),
					field("value", 3, f32, ""),
					list(field("tags", 4, msg, ".seldon.protos.Metric.TagsEntry")),
				},
				NestedType: []*descriptorpb.DescriptorProto{
					entry("TagsEntry", field("", 0, str, "")),
				},
				EnumType: []*descriptorpb.EnumDescriptorProto{enum("MetricType", "COUNTER", "GAUGE", "TIMER")},
			},
			{
				Name: proto.String("Status"),
				Field: []*fd{
					field("code", 1, i32, ""),
					field("info", 2, str, ""),
					field("reason", 3, str, ""),
					field("status", 4, enumTyp, ".seldon.protos.Status.StatusFlag"),
				},
				EnumType: []*descriptorpb.EnumDescriptorProto{enum("StatusFlag", "SUCCESS", "FAILURE")},
			},
			{
				Name: proto.String("Feedback"),
				Field: []*fd{
					field("request", 1, msg, ".seldon.protos.SeldonMessage"),
					field("response", 2, msg, ".seldon.protos.SeldonMessage"),
					field("reward", 3, f32, ""),
					field("truth", 4, msg, ".seldon.protos.SeldonMessage"),
				},
			},
		},
	}
	f, err := protodesc.NewFile(file, protoregistry.GlobalFiles)
	if err != nil {
		t.Fatalf("building schema: %v", err)
	}
	return f
}

func get(m protoreflect.Message, name string) protoreflect.Value {
	return m.Get(m.Descriptor().Fields().ByName(protoreflect.Name(name)))
}

func decodeDynamic(t *testing.T, schema protoreflect.FileDescriptor, name string, raw []byte) protoreflect.Message {
	t.Helper()
	m := dynamicpb.NewMessage(schema.Messages().ByName(protoreflect.Name(name)))
	if err := proto.Unmarshal(raw, m); err != nil {
		t.Fatalf("decode %s against schema: %v", name, err)
	}
	if len(m.GetUnknown()) != 0 {
		t.Fatalf("%s: fields outside the schema: %x", name, m.GetUnknown())
	}
	return m
}

func TestSeldonMessageMatchesSchema(t *testing.T) {
	schema := schemaFile(t)
	in := &SeldonMessage{
		Status: &Status{Code: 500, Info: "boom", Reason: "MODEL", Status: Status_FAILURE},
		Meta: &Meta{
			Puid:        "p1",
			Tags:        map[string]*structpb.Value{"model": structpb.NewStringValue("demo")},
			Routing:     map[string]int32{"router": 1},
			RequestPath: map[string]string{"classifier": "img:1"},
			Metrics:     []*Metric{{Key: "load", Type: MetricType_GAUGE, Value: 1.5, Tags: map[string]string{"zone": "a"}}},
		},
		Data: &DefaultData{Names: []string{"a", "b"}, Tensor: &Tensor{Shape: []int32{1, 2}, Values: []float64{3, 4}}},
	}
	raw, err := in.Marshal()
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}
	m := decodeDynamic(t, schema, "SeldonMessage", raw)

	status := get(m, "status").Message()
	if get(status, "code").Int() != 500 || get(status, "info").String() != "boom" ||
		get(status, "reason").String() != "MODEL" || get(status, "status").Enum() != 1 {
		t.Fatalf("status decoded as %v", status)
	}

	meta := get(m, "meta").Message()
	if get(meta, "puid").String() != "p1" {
		t.Fatalf("puid decoded as %q", get(meta, "puid").String())
	}
	tag := get(meta, "tags").Map().Get(protoreflect.ValueOfString("model").MapKey())
	if get(tag.Message(), "string_value").String() != "demo" {
		t.Fatalf("tag decoded as %v", tag)
	}
	if get(meta, "routing").Map().Get(protoreflect.ValueOfString("router").MapKey()).Int() != 1 {
		t.Fatalf("routing not decoded")
	}
	if get(meta, "requestPath").Map().Get(protoreflect.ValueOfString("classifier").MapKey()).String() != "img:1" {
		t.Fatalf("requestPath not decoded")
	}
	metric := get(meta, "metrics").List().Get(0).Message()
	if get(metric, "key").String() != "load" || get(metric, "type").Enum() != 1 || get(metric, "value").Float() != 1.5 {
		t.Fatalf("metric decoded as %v", metric)
	}
	if get(metric, "tags").Map().Get(protoreflect.ValueOfString("zone").MapKey()).String() != "a" {
		t.Fatalf("metric tags not decoded")
	}

	data := get(m, "data").Message()
	names := get(data, "names").List()
	if names.Len() != 2 || names.Get(0).String() != "a" || names.Get(1).String() != "b" {
		t.Fatalf("names decoded as %v", names)
	}
	tensor := get(data, "tensor").Message()
	shape, values := get(tensor, "shape").List(), get(tensor, "values").List()
	if shape.Len() != 2 || shape.Get(1).Int() != 2 || values.Len() != 2 || values.Get(1).Float() != 4 {
		t.Fatalf("tensor decoded as %v", tensor)
	}

	// Schema-encoded bytes decode back through the hand-written decoder.
	schemaRaw, err := proto.MarshalOptions{Deterministic: true}.Marshal(m.Interface())
	if err != nil {
		t.Fatalf("marshal dynamic: %v", err)
	}
	var back SeldonMessage
	if err := back.Unmarshal(schemaRaw); err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}
	if !reflect.DeepEqual(back.Status, in.Status) || !reflect.DeepEqual(back.Data, in.Data) {
		t.Fatalf("expected %+v %+v, got %+v %+v", in.Status, in.Data, back.Status, back.Data)
	}
	if back.Meta.Puid != "p1" || back.Meta.Routing["router"] != 1 || back.Meta.RequestPath["classifier"] != "img:1" ||
		back.Meta.Tags["model"].GetStringValue() != "demo" || !reflect.DeepEqual(back.Meta.Metrics, in.Meta.Metrics) {
		t.Fatalf("meta decoded as %+v", back.Meta)
	}
}

func TestPayloadFieldsMatchSchema(t *testing.T) {
	schema := schemaFile(t)
	s := "text"
	list, err := structpb.NewList([]any{1.0, 2.0})
	if err != nil {
		t.Fatalf("NewList: %v", err)
	}
	tests := []struct {
		name  string
		msg   *SeldonMessage
		field string
		inner string
	}{
		{"strData", &SeldonMessage{StrData: &s}, "strData", ""},
		{"binData", &SeldonMessage{BinData: []byte{0, 1}}, "binData", ""},
		{"jsonData", &SeldonMessage{JSONData: structpb.NewBoolValue(true)}, "jsonData", ""},
		{"ndarray", &SeldonMessage{Data: &DefaultData{NDArray: list}}, "data", "ndarray"},
		{"tftensor", &SeldonMessage{Data: &DefaultData{TFTensor: []byte{0x08, 0x09}}}, "data", "tftensor"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			raw, err := tt.msg.Marshal()
			if err != nil {
				t.Fatalf("Marshal: %v", err)
			}
			m := decodeDynamic(t, schema, "SeldonMessage", raw)
			set := m.WhichOneof(m.Descriptor().Oneofs().ByName("data_oneof"))
			if set == nil || string(set.Name()) != tt.field {
				t.Fatalf("expected %s set, got %v", tt.field, set)
			}
			if tt.inner == "" {
				return
			}
			data := m.Get(set).Message()
			inner := data.WhichOneof(data.Descriptor().Oneofs().ByName("data_oneof"))
			if inner == nil || string(inner.Name()) != tt.inner {
				t.Fatalf("expected %s set, got %v", tt.inner, inner)
			}
		})
	}
}

func TestFeedbackMatchesSchema(t *testing.T) {
	schema := schemaFile(t)
	req, truth := "in", "label"
	in := &Feedback{Request: &SeldonMessage{StrData: &req}, Reward: 0.5, Truth: &SeldonMessage{StrData: &truth}}
	raw, err := in.Marshal()
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}
	m := decodeDynamic(t, schema, "Feedback", raw)
	if get(m, "reward").Float() != 0.5 {
		t.Fatalf("reward decoded as %v", get(m, "reward"))
	}
	if get(get(m, "request").Message(), "strData").String() != "in" {
		t.Fatalf("request not decoded")
	}
	if get(get(m, "truth").Message(), "strData").String() != "label" {
		t.Fatalf("truth not decoded")
	}
	if m.Has(m.Descriptor().Fields().ByName("response")) {
		t.Fatalf("expected no response")
	}
}
