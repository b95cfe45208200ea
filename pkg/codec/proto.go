// Copyright 2026 © The Seldon Gateway Authors
// SPDX-License-Identifier: Apache-2.0

package codec

import (
	"fmt"

	"google.golang.org/protobuf/types/known/structpb"

	"github.com/adamjm/seldon-core/pkg/errors"
	"github.com/adamjm/seldon-core/pkg/message"
	"github.com/adamjm/seldon-core/pkg/prediction"
)

// FromProto converts a binary wire message into an envelope. A message with
// no payload field yields an envelope with a nil payload.
func (c *Codec) FromProto(m *prediction.SeldonMessage) (*message.Envelope, error) {
	if m == nil {
		return nil, errors.New(errors.CodeMalformedPayload, "missing message", nil)
	}
	if n := m.PayloadCount(); n > 1 {
		return nil, errors.Newf(errors.CodeMalformedPayload, "expected one payload, found %d", n)
	}
	env := &message.Envelope{Meta: MetaFromProto(m.Meta)}
	if m.Status != nil {
		flag := message.StatusSuccess
		if m.Status.Status == prediction.Status_FAILURE {
			flag = message.StatusFailure
		}
		env.Status = &message.Status{Code: m.Status.Code, Info: m.Status.Info, Reason: m.Status.Reason, Flag: flag}
	}

	switch {
	case m.Data != nil:
		p, err := c.dataFromProto(m.Data)
		if err != nil {
			return nil, err
		}
		env.Payload = p
	case m.BinData != nil:
		env.Payload = message.BinaryData(append([]byte{}, m.BinData...))
	case m.StrData != nil:
		env.Payload = message.StringData(*m.StrData)
	case m.JSONData != nil:
		env.Payload = message.JSONData{Value: m.JSONData.AsInterface()}
	}
	return env, nil
}

func (c *Codec) dataFromProto(d *prediction.DefaultData) (message.Payload, error) {
	set := 0
	for _, present := range []bool{d.Tensor != nil, d.NDArray != nil, d.TFTensor != nil} {
		if present {
			set++
		}
	}
	if set > 1 {
		return nil, errors.Newf(errors.CodeMalformedPayload, "expected one data payload, found %d", set)
	}
	switch {
	case d.NDArray != nil:
		return message.NDArray{Names: d.Names, Values: d.NDArray.AsSlice()}, nil
	case d.Tensor != nil:
		shape := make([]int, len(d.Tensor.Shape))
		for i, s := range d.Tensor.Shape {
			shape[i] = int(s)
		}
		if err := checkTensor(shape, len(d.Tensor.Values)); err != nil {
			return nil, err
		}
		return message.Tensor{Names: d.Names, Shape: shape, Values: d.Tensor.Values}, nil
	case d.TFTensor != nil:
		if _, err := c.tensorCodec(); err != nil {
			return nil, err
		}
		return message.OpaqueTensor{Names: d.Names, Proto: d.TFTensor}, nil
	default:
		return nil, nil
	}
}

// ToProto converts an envelope into its binary wire message.
func (c *Codec) ToProto(env *message.Envelope) (*prediction.SeldonMessage, error) {
	if env == nil {
		return nil, errors.New(errors.CodeInternal, "missing envelope", nil)
	}
	meta, err := MetaToProto(env.Meta)
	if err != nil {
		return nil, err
	}
	m := &prediction.SeldonMessage{Meta: meta}
	if env.Status != nil {
		flag := prediction.Status_SUCCESS
		if env.Status.Flag == message.StatusFailure {
			flag = prediction.Status_FAILURE
		}
		m.Status = &prediction.Status{Code: env.Status.Code, Info: env.Status.Info, Reason: env.Status.Reason, Status: flag}
	}

	payload := env.Payload
	if arr, ok := payload.(message.Array); ok {
		resolved, err := message.Resolve(arr, message.KindTensor, nil)
		if err != nil {
			return nil, err
		}
		payload = resolved
	}
	switch p := payload.(type) {
	case nil:
	case message.NDArray:
		list, err := structpb.NewList(p.Values)
		if err != nil {
			return nil, errors.New(errors.CodeMalformedPayload, "ndarray is not representable", err)
		}
		m.Data = &prediction.DefaultData{Names: p.Names, NDArray: list}
	case message.Tensor:
		shape := make([]int32, len(p.Shape))
		for i, s := range p.Shape {
			shape[i] = int32(s)
		}
		m.Data = &prediction.DefaultData{Names: p.Names, Tensor: &prediction.Tensor{Shape: shape, Values: p.Values}}
	case message.OpaqueTensor:
		if _, err := c.tensorCodec(); err != nil {
			return nil, err
		}
		m.Data = &prediction.DefaultData{Names: p.Names, TFTensor: append([]byte{}, p.Proto...)}
	case message.StringData:
		s := string(p)
		m.StrData = &s
	case message.BinaryData:
		m.BinData = append([]byte{}, p...)
	case message.JSONData:
		v, err := structpb.NewValue(p.Value)
		if err != nil {
			return nil, errors.New(errors.CodeMalformedPayload, "jsonData is not representable", err)
		}
		m.JSONData = v
	default:
		return nil, errors.Newf(errors.CodeUnsupportedEncoding, "cannot encode payload %T", p)
	}
	return m, nil
}

// FeedbackFromProto converts a binary feedback message.
func (c *Codec) FeedbackFromProto(f *prediction.Feedback) (*message.Feedback, error) {
	if f == nil {
		return nil, errors.New(errors.CodeMalformedPayload, "missing feedback", nil)
	}
	fb := &message.Feedback{Reward: float64(f.Reward)}
	var err error
	if f.Request != nil {
		if fb.Request, err = c.FromProto(f.Request); err != nil {
			return nil, err
		}
	}
	if f.Response != nil {
		if fb.Response, err = c.FromProto(f.Response); err != nil {
			return nil, err
		}
	}
	if f.Truth != nil {
		if fb.Truth, err = c.FromProto(f.Truth); err != nil {
			return nil, err
		}
	}
	return fb, nil
}

// FeedbackToProto converts feedback into its binary wire message.
func (c *Codec) FeedbackToProto(fb *message.Feedback) (*prediction.Feedback, error) {
	if fb == nil {
		return nil, errors.New(errors.CodeInternal, "missing feedback", nil)
	}
	f := &prediction.Feedback{Reward: float32(fb.Reward)}
	var err error
	if fb.Request != nil {
		if f.Request, err = c.ToProto(fb.Request); err != nil {
			return nil, err
		}
	}
	if fb.Response != nil {
		if f.Response, err = c.ToProto(fb.Response); err != nil {
			return nil, err
		}
	}
	if fb.Truth != nil {
		if f.Truth, err = c.ToProto(fb.Truth); err != nil {
			return nil, err
		}
	}
	return f, nil
}

// MetaFromProto converts binary wire metadata.
func MetaFromProto(m *prediction.Meta) message.Meta {
	if m == nil {
		return message.Meta{}
	}
	meta := message.Meta{
		CorrelationID: m.Puid,
		Routing:       m.Routing,
		RequestPath:   m.RequestPath,
	}
	if len(m.Tags) > 0 {
		meta.Tags = make(map[string]any, len(m.Tags))
		for k, v := range m.Tags {
			meta.Tags[k] = v.AsInterface()
		}
	}
	for _, metric := range m.Metrics {
		meta.Metrics = append(meta.Metrics, message.Metric{
			Kind:  message.MetricKind(metric.Type.String()),
			Key:   metric.Key,
			Value: float64(metric.Value),
			Tags:  metric.Tags,
		})
	}
	return meta
}

// MetaToProto converts metadata to its binary wire form. Metrics with an
// unrecognized kind fail with CodeInvalidMetrics.
func MetaToProto(meta message.Meta) (*prediction.Meta, error) {
	m := &prediction.Meta{
		Puid:        meta.CorrelationID,
		Routing:     meta.Routing,
		RequestPath: meta.RequestPath,
	}
	if len(meta.Tags) > 0 {
		m.Tags = make(map[string]*structpb.Value, len(meta.Tags))
		for k, v := range meta.Tags {
			pv, err := structpb.NewValue(v)
			if err != nil {
				return nil, errors.New(errors.CodeInternal, fmt.Sprintf("tag %q is not representable", k), err)
			}
			m.Tags[k] = pv
		}
	}
	for _, metric := range meta.Metrics {
		t, err := metricTypeToProto(metric.Kind)
		if err != nil {
			return nil, err
		}
		m.Metrics = append(m.Metrics, &prediction.Metric{
			Key:   metric.Key,
			Type:  t,
			Value: float32(metric.Value),
			Tags:  metric.Tags,
		})
	}
	return m, nil
}

func metricTypeToProto(k message.MetricKind) (prediction.MetricType, error) {
	switch k {
	case message.MetricCounter:
		return prediction.MetricType_COUNTER, nil
	case message.MetricGauge:
		return prediction.MetricType_GAUGE, nil
	case message.MetricTimer:
		return prediction.MetricType_TIMER, nil
	default:
		return 0, errors.Newf(errors.CodeInvalidMetrics, "unknown metric type %q", k)
	}
}
