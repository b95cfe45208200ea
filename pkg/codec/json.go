// Copyright 2026 © The Seldon Gateway Authors
// SPDX-License-Identifier: Apache-2.0

package codec

import (
	"encoding/json"

	"github.com/adamjm/seldon-core/pkg/errors"
	"github.com/adamjm/seldon-core/pkg/message"
	"github.com/adamjm/seldon-core/pkg/prediction"
)

// FromJSON converts a JSON wire message into an envelope. A message with no
// payload key yields an envelope with a nil payload.
func (c *Codec) FromJSON(m *prediction.JSONMessage) (*message.Envelope, error) {
	if m == nil {
		return nil, errors.New(errors.CodeMalformedPayload, "missing message", nil)
	}
	keys := m.PayloadKeys()
	if len(keys) > 1 {
		return nil, ambiguous(keys)
	}
	env := &message.Envelope{Meta: MetaFromJSON(m.Meta)}
	if m.Status != nil {
		env.Status = &message.Status{
			Code:   m.Status.Code,
			Info:   m.Status.Info,
			Reason: m.Status.Reason,
			Flag:   message.StatusFlag(m.Status.Status),
		}
	}
	if len(keys) == 0 {
		return env, nil
	}

	var names []string
	if m.Data != nil {
		names = m.Data.Names
	}
	switch keys[0] {
	case "data.ndarray":
		env.Payload = message.NDArray{Names: names, Values: m.Data.NDArray}
	case "data.tensor":
		t := m.Data.Tensor
		if err := checkTensor(t.Shape, len(t.Values)); err != nil {
			return nil, err
		}
		env.Payload = message.Tensor{Names: names, Shape: t.Shape, Values: t.Values}
	case "data.tftensor":
		tc, err := c.tensorCodec()
		if err != nil {
			return nil, err
		}
		raw, err := tc.FromJSON(m.Data.TFTensor)
		if err != nil {
			return nil, errors.New(errors.CodeMalformedPayload, "invalid tftensor", err)
		}
		env.Payload = message.OpaqueTensor{Names: names, Proto: raw}
	case "binData":
		env.Payload = message.BinaryData(append([]byte{}, *m.BinData...))
	case "strData":
		env.Payload = message.StringData(*m.StrData)
	case "jsonData":
		var v any
		if err := json.Unmarshal(m.JSONData, &v); err != nil {
			return nil, errors.New(errors.CodeMalformedPayload, "invalid jsonData", err)
		}
		env.Payload = message.JSONData{Value: v}
	}
	return env, nil
}

// ToJSON converts an envelope into its JSON wire message.
func (c *Codec) ToJSON(env *message.Envelope) (*prediction.JSONMessage, error) {
	if env == nil {
		return nil, errors.New(errors.CodeInternal, "missing envelope", nil)
	}
	m := &prediction.JSONMessage{Meta: MetaToJSON(env.Meta)}
	if env.Status != nil {
		m.Status = &prediction.JSONStatus{
			Code:   env.Status.Code,
			Info:   env.Status.Info,
			Reason: env.Status.Reason,
			Status: string(env.Status.Flag),
		}
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
		values := p.Values
		if values == nil {
			values = []any{}
		}
		m.Data = &prediction.JSONDefaultData{Names: p.Names, NDArray: values}
	case message.Tensor:
		t := &prediction.JSONTensor{Shape: p.Shape, Values: p.Values}
		if t.Shape == nil {
			t.Shape = []int{}
		}
		if t.Values == nil {
			t.Values = []float64{}
		}
		m.Data = &prediction.JSONDefaultData{Names: p.Names, Tensor: t}
	case message.OpaqueTensor:
		tc, err := c.tensorCodec()
		if err != nil {
			return nil, err
		}
		raw, err := tc.ToJSON(p.Proto)
		if err != nil {
			return nil, errors.New(errors.CodeMalformedPayload, "invalid tftensor", err)
		}
		m.Data = &prediction.JSONDefaultData{Names: p.Names, TFTensor: raw}
	case message.StringData:
		s := string(p)
		m.StrData = &s
	case message.BinaryData:
		m.BinData = prediction.NewBytes(p)
	case message.JSONData:
		raw, err := json.Marshal(p.Value)
		if err != nil {
			return nil, errors.New(errors.CodeMalformedPayload, "jsonData is not serializable", err)
		}
		m.JSONData = raw
	default:
		return nil, errors.Newf(errors.CodeUnsupportedEncoding, "cannot encode payload %T", p)
	}
	return m, nil
}

// FeedbackFromJSON converts a JSON feedback message.
func (c *Codec) FeedbackFromJSON(f *prediction.JSONFeedback) (*message.Feedback, error) {
	if f == nil {
		return nil, errors.New(errors.CodeMalformedPayload, "missing feedback", nil)
	}
	fb := &message.Feedback{Reward: f.Reward}
	var err error
	if f.Request != nil {
		if fb.Request, err = c.FromJSON(f.Request); err != nil {
			return nil, err
		}
	}
	if f.Response != nil {
		if fb.Response, err = c.FromJSON(f.Response); err != nil {
			return nil, err
		}
	}
	if f.Truth != nil {
		if fb.Truth, err = c.FromJSON(f.Truth); err != nil {
			return nil, err
		}
	}
	return fb, nil
}

// FeedbackToJSON converts feedback into its JSON wire message.
func (c *Codec) FeedbackToJSON(fb *message.Feedback) (*prediction.JSONFeedback, error) {
	if fb == nil {
		return nil, errors.New(errors.CodeInternal, "missing feedback", nil)
	}
	f := &prediction.JSONFeedback{Reward: fb.Reward}
	var err error
	if fb.Request != nil {
		if f.Request, err = c.ToJSON(fb.Request); err != nil {
			return nil, err
		}
	}
	if fb.Response != nil {
		if f.Response, err = c.ToJSON(fb.Response); err != nil {
			return nil, err
		}
	}
	if fb.Truth != nil {
		if f.Truth, err = c.ToJSON(fb.Truth); err != nil {
			return nil, err
		}
	}
	return f, nil
}

// MetaFromJSON converts JSON wire metadata.
func MetaFromJSON(m *prediction.JSONMeta) message.Meta {
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
			meta.Tags[k] = v
		}
	}
	for _, metric := range m.Metrics {
		meta.Metrics = append(meta.Metrics, message.Metric{
			Kind:  message.MetricKind(metric.Type),
			Key:   metric.Key,
			Value: metric.Value,
			Tags:  metric.Tags,
		})
	}
	return meta
}

// MetaToJSON converts metadata to its JSON wire form.
func MetaToJSON(meta message.Meta) *prediction.JSONMeta {
	m := &prediction.JSONMeta{
		Puid:        meta.CorrelationID,
		Tags:        map[string]any{},
		Routing:     meta.Routing,
		RequestPath: meta.RequestPath,
	}
	for k, v := range meta.Tags {
		m.Tags[k] = v
	}
	for _, metric := range meta.Metrics {
		m.Metrics = append(m.Metrics, prediction.JSONMetric{
			Key:   metric.Key,
			Type:  string(metric.Kind),
			Value: metric.Value,
			Tags:  metric.Tags,
		})
	}
	return m
}
