// Copyright 2026 © The Seldon Gateway Authors
// SPDX-License-Identifier: Apache-2.0

// Package prediction holds the wire schemas of the prediction protocol: the
// binary seldon.protos messages used over gRPC and their JSON counterparts
// used over HTTP.
package prediction

import (
	"fmt"
	"math"

	"google.golang.org/protobuf/encoding/protowire"
	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/types/known/structpb"
)

// MetricType is the seldon.protos.Metric.MetricType enum.
type MetricType int32

const (
	MetricType_COUNTER MetricType = 0
	MetricType_GAUGE   MetricType = 1
	MetricType_TIMER   MetricType = 2
)

func (t MetricType) String() string {
	switch t {
	case MetricType_COUNTER:
		return "COUNTER"
	case MetricType_GAUGE:
		return "GAUGE"
	case MetricType_TIMER:
		return "TIMER"
	default:
		return fmt.Sprintf("MetricType(%d)", int32(t))
	}
}

// StatusFlag is the seldon.protos.Status.StatusFlag enum.
type StatusFlag int32

const (
	Status_SUCCESS StatusFlag = 0
	Status_FAILURE StatusFlag = 1
)

// SeldonMessage is seldon.protos.SeldonMessage. Data, BinData, StrData and
// JSONData form a oneof; at most one is set after Unmarshal.
type SeldonMessage struct {
	Status   *Status
	Meta     *Meta
	Data     *DefaultData
	BinData  []byte
	StrData  *string
	JSONData *structpb.Value
}

// DefaultData is seldon.protos.DefaultData. Tensor, NDArray and TFTensor
// form a oneof. TFTensor holds the serialized tensorflow.TensorProto.
type DefaultData struct {
	Names    []string
	Tensor   *Tensor
	NDArray  *structpb.ListValue
	TFTensor []byte
}

// Tensor is seldon.protos.Tensor.
type Tensor struct {
	Shape  []int32
	Values []float64
}

// Meta is seldon.protos.Meta.
type Meta struct {
	Puid        string
	Tags        map[string]*structpb.Value
	Routing     map[string]int32
	RequestPath map[string]string
	Metrics     []*Metric
}

// Metric is seldon.protos.Metric.
type Metric struct {
	Key   string
	Type  MetricType
	Value float32
	Tags  map[string]string
}

// Feedback is seldon.protos.Feedback.
type Feedback struct {
	Request  *SeldonMessage
	Response *SeldonMessage
	Reward   float32
	Truth    *SeldonMessage
}

// Status is seldon.protos.Status.
type Status struct {
	Code   int32
	Info   string
	Reason string
	Status StatusFlag
}

// PayloadCount returns how many oneof payload fields are set.
func (m *SeldonMessage) PayloadCount() int {
	if m == nil {
		return 0
	}
	n := 0
	if m.Data != nil {
		n++
	}
	if m.BinData != nil {
		n++
	}
	if m.StrData != nil {
		n++
	}
	if m.JSONData != nil {
		n++
	}
	return n
}

func (m *SeldonMessage) clearPayload() {
	m.Data, m.BinData, m.StrData, m.JSONData = nil, nil, nil, nil
}

// Marshal encodes m in the protobuf binary format.
func (m *SeldonMessage) Marshal() ([]byte, error) {
	if m == nil {
		return nil, nil
	}
	var b []byte
	var err error
	if m.Status != nil {
		b = appendBytes(b, 1, m.Status.marshal())
	}
	if m.Meta != nil {
		inner, err := m.Meta.marshal()
		if err != nil {
			return nil, fmt.Errorf("meta: %w", err)
		}
		b = appendBytes(b, 2, inner)
	}
	switch {
	case m.Data != nil:
		inner, err := m.Data.marshal()
		if err != nil {
			return nil, fmt.Errorf("data: %w", err)
		}
		b = appendBytes(b, 3, inner)
	case m.BinData != nil:
		b = appendBytes(b, 4, m.BinData)
	case m.StrData != nil:
		b = protowire.AppendTag(b, 5, protowire.BytesType)
		b = protowire.AppendString(b, *m.StrData)
	case m.JSONData != nil:
		if b, err = appendStruct(b, 6, m.JSONData); err != nil {
			return nil, fmt.Errorf("jsonData: %w", err)
		}
	}
	return b, nil
}

// Unmarshal decodes the protobuf binary format into m. Unknown fields are
// skipped. The last payload field on the wire wins.
func (m *SeldonMessage) Unmarshal(b []byte) error {
	*m = SeldonMessage{}
	return walk(b, func(f field) error {
		switch f.num {
		case 1:
			raw, err := f.bytes()
			if err != nil {
				return err
			}
			m.Status = &Status{}
			return m.Status.unmarshal(raw)
		case 2:
			raw, err := f.bytes()
			if err != nil {
				return err
			}
			m.Meta = &Meta{}
			return m.Meta.unmarshal(raw)
		case 3:
			raw, err := f.bytes()
			if err != nil {
				return err
			}
			m.clearPayload()
			m.Data = &DefaultData{}
			return m.Data.unmarshal(raw)
		case 4:
			raw, err := f.bytes()
			if err != nil {
				return err
			}
			m.clearPayload()
			m.BinData = raw
		case 5:
			s, err := f.str()
			if err != nil {
				return err
			}
			m.clearPayload()
			m.StrData = &s
		case 6:
			raw, err := f.bytes()
			if err != nil {
				return err
			}
			m.clearPayload()
			m.JSONData = &structpb.Value{}
			return proto.Unmarshal(raw, m.JSONData)
		}
		return nil
	})
}

func (d *DefaultData) marshal() ([]byte, error) {
	var b []byte
	for _, name := range d.Names {
		b = protowire.AppendTag(b, 1, protowire.BytesType)
		b = protowire.AppendString(b, name)
	}
	var err error
	switch {
	case d.Tensor != nil:
		b = appendBytes(b, 2, d.Tensor.marshal())
	case d.NDArray != nil:
		if b, err = appendStruct(b, 3, d.NDArray); err != nil {
			return nil, err
		}
	case d.TFTensor != nil:
		b = appendBytes(b, 4, d.TFTensor)
	}
	return b, nil
}

func (d *DefaultData) unmarshal(b []byte) error {
	return walk(b, func(f field) error {
		switch f.num {
		case 1:
			s, err := f.str()
			if err != nil {
				return err
			}
			d.Names = append(d.Names, s)
		case 2:
			raw, err := f.bytes()
			if err != nil {
				return err
			}
			d.Tensor, d.NDArray, d.TFTensor = &Tensor{}, nil, nil
			return d.Tensor.unmarshal(raw)
		case 3:
			raw, err := f.bytes()
			if err != nil {
				return err
			}
			d.Tensor, d.NDArray, d.TFTensor = nil, &structpb.ListValue{}, nil
			return proto.Unmarshal(raw, d.NDArray)
		case 4:
			raw, err := f.bytes()
			if err != nil {
				return err
			}
			d.Tensor, d.NDArray, d.TFTensor = nil, nil, raw
		}
		return nil
	})
}

func (t *Tensor) marshal() []byte {
	var b []byte
	if len(t.Shape) > 0 {
		var packed []byte
		for _, d := range t.Shape {
			packed = protowire.AppendVarint(packed, uint64(int64(d)))
		}
		b = appendBytes(b, 1, packed)
	}
	if len(t.Values) > 0 {
		packed := make([]byte, 0, 8*len(t.Values))
		for _, v := range t.Values {
			packed = protowire.AppendFixed64(packed, math.Float64bits(v))
		}
		b = appendBytes(b, 2, packed)
	}
	return b
}

func (t *Tensor) unmarshal(b []byte) error {
	return walk(b, func(f field) error {
		var err error
		switch f.num {
		case 1:
			t.Shape, err = f.int32s(t.Shape)
		case 2:
			t.Values, err = f.doubles(t.Values)
		}
		return err
	})
}

func (m *Meta) marshal() ([]byte, error) {
	var b []byte
	var err error
	b = appendString(b, 1, m.Puid)
	if b, err = appendValueMap(b, 2, m.Tags); err != nil {
		return nil, err
	}
	b = appendInt32Map(b, 3, m.Routing)
	b = appendStringMap(b, 4, m.RequestPath)
	for _, metric := range m.Metrics {
		if metric == nil {
			continue
		}
		b = appendBytes(b, 5, metric.marshal())
	}
	return b, nil
}

func (m *Meta) unmarshal(b []byte) error {
	return walk(b, func(f field) error {
		switch f.num {
		case 1:
			s, err := f.str()
			m.Puid = s
			return err
		case 2:
			return consumeEntry(f, func(key string, value *field) error {
				if m.Tags == nil {
					m.Tags = map[string]*structpb.Value{}
				}
				v := &structpb.Value{}
				if value != nil {
					raw, err := value.bytes()
					if err != nil {
						return err
					}
					if err := proto.Unmarshal(raw, v); err != nil {
						return err
					}
				}
				m.Tags[key] = v
				return nil
			})
		case 3:
			return consumeEntry(f, func(key string, value *field) error {
				if m.Routing == nil {
					m.Routing = map[string]int32{}
				}
				var v uint64
				if value != nil {
					var err error
					if v, err = value.varint(); err != nil {
						return err
					}
				}
				m.Routing[key] = int32(v)
				return nil
			})
		case 4:
			return consumeEntry(f, func(key string, value *field) error {
				if m.RequestPath == nil {
					m.RequestPath = map[string]string{}
				}
				var v string
				if value != nil {
					var err error
					if v, err = value.str(); err != nil {
						return err
					}
				}
				m.RequestPath[key] = v
				return nil
			})
		case 5:
			raw, err := f.bytes()
			if err != nil {
				return err
			}
			metric := &Metric{}
			if err := metric.unmarshal(raw); err != nil {
				return err
			}
			m.Metrics = append(m.Metrics, metric)
		}
		return nil
	})
}

func (m *Metric) marshal() []byte {
	var b []byte
	b = appendString(b, 1, m.Key)
	b = appendVarint(b, 2, uint64(int64(m.Type)))
	b = appendFloat32(b, 3, m.Value)
	b = appendStringMap(b, 4, m.Tags)
	return b
}

func (m *Metric) unmarshal(b []byte) error {
	return walk(b, func(f field) error {
		switch f.num {
		case 1:
			s, err := f.str()
			m.Key = s
			return err
		case 2:
			v, err := f.varint()
			m.Type = MetricType(int32(v))
			return err
		case 3:
			v, err := f.float()
			m.Value = v
			return err
		case 4:
			return consumeEntry(f, func(key string, value *field) error {
				if m.Tags == nil {
					m.Tags = map[string]string{}
				}
				var v string
				if value != nil {
					var err error
					if v, err = value.str(); err != nil {
						return err
					}
				}
				m.Tags[key] = v
				return nil
			})
		}
		return nil
	})
}

func (s *Status) marshal() []byte {
	var b []byte
	b = appendVarint(b, 1, uint64(int64(s.Code)))
	b = appendString(b, 2, s.Info)
	b = appendString(b, 3, s.Reason)
	b = appendVarint(b, 4, uint64(int64(s.Status)))
	return b
}

func (s *Status) unmarshal(b []byte) error {
	return walk(b, func(f field) error {
		switch f.num {
		case 1:
			v, err := f.varint()
			s.Code = int32(v)
			return err
		case 2:
			v, err := f.str()
			s.Info = v
			return err
		case 3:
			v, err := f.str()
			s.Reason = v
			return err
		case 4:
			v, err := f.varint()
			s.Status = StatusFlag(int32(v))
			return err
		}
		return nil
	})
}

// Marshal encodes f in the protobuf binary format.
func (f *Feedback) Marshal() ([]byte, error) {
	if f == nil {
		return nil, nil
	}
	var b []byte
	for _, part := range []struct {
		num protowire.Number
		msg *SeldonMessage
	}{{1, f.Request}, {2, f.Response}, {4, f.Truth}} {
		if part.msg == nil {
			continue
		}
		inner, err := part.msg.Marshal()
		if err != nil {
			return nil, fmt.Errorf("feedback field %d: %w", part.num, err)
		}
		b = appendBytes(b, part.num, inner)
	}
	b = appendFloat32(b, 3, f.Reward)
	return b, nil
}

// Unmarshal decodes the protobuf binary format into f.
func (f *Feedback) Unmarshal(b []byte) error {
	*f = Feedback{}
	return walk(b, func(fd field) error {
		var target **SeldonMessage
		switch fd.num {
		case 1:
			target = &f.Request
		case 2:
			target = &f.Response
		case 3:
			v, err := fd.float()
			f.Reward = v
			return err
		case 4:
			target = &f.Truth
		default:
			return nil
		}
		raw, err := fd.bytes()
		if err != nil {
			return err
		}
		msg := &SeldonMessage{}
		if err := msg.Unmarshal(raw); err != nil {
			return err
		}
		*target = msg
		return nil
	})
}
