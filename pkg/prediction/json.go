// Copyright 2026 © The Seldon Gateway Authors
// SPDX-License-Identifier: Apache-2.0

package prediction

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
)

// JSONMessage is the JSON form of SeldonMessage used over HTTP.
type JSONMessage struct {
	Status   *JSONStatus      `json:"status,omitempty"`
	Meta     *JSONMeta        `json:"meta,omitempty"`
	Data     *JSONDefaultData `json:"data,omitempty"`
	BinData  *Bytes           `json:"binData,omitempty"`
	StrData  *string          `json:"strData,omitempty"`
	JSONData json.RawMessage  `json:"jsonData,omitempty"`
}

// JSONDefaultData is the "data" object. NDArray, Tensor and TFTensor are
// mutually exclusive. TFTensor carries the protobuf JSON form of a
// tensorflow.TensorProto.
type JSONDefaultData struct {
	Names    []string        `json:"names"`
	NDArray  []any           `json:"ndarray,omitempty"`
	Tensor   *JSONTensor     `json:"tensor,omitempty"`
	TFTensor json.RawMessage `json:"tftensor,omitempty"`
}

// MarshalJSON keeps an empty ndarray on the wire and always emits names.
func (d JSONDefaultData) MarshalJSON() ([]byte, error) {
	type wire struct {
		Names    []string        `json:"names"`
		NDArray  *[]any          `json:"ndarray,omitempty"`
		Tensor   *JSONTensor     `json:"tensor,omitempty"`
		TFTensor json.RawMessage `json:"tftensor,omitempty"`
	}
	w := wire{Names: d.Names, Tensor: d.Tensor, TFTensor: d.TFTensor}
	if w.Names == nil {
		w.Names = []string{}
	}
	if d.NDArray != nil {
		nd := d.NDArray
		w.NDArray = &nd
	}
	return json.Marshal(w)
}

// JSONTensor is the "tensor" object.
type JSONTensor struct {
	Shape  []int     `json:"shape"`
	Values []float64 `json:"values"`
}

// JSONMeta is the "meta" object.
type JSONMeta struct {
	Puid        string            `json:"puid,omitempty"`
	Tags        map[string]any    `json:"tags"`
	Routing     map[string]int32  `json:"routing,omitempty"`
	RequestPath map[string]string `json:"requestPath,omitempty"`
	Metrics     []JSONMetric      `json:"metrics,omitempty"`
}

// JSONMetric is one entry of meta.metrics.
type JSONMetric struct {
	Key   string            `json:"key"`
	Type  string            `json:"type"`
	Value float64           `json:"value"`
	Tags  map[string]string `json:"tags,omitempty"`
}

// JSONStatus is the "status" object used in error responses.
type JSONStatus struct {
	Code   int32  `json:"code"`
	Info   string `json:"info,omitempty"`
	Reason string `json:"reason,omitempty"`
	Status string `json:"status"`
}

// JSONFeedback is the JSON form of Feedback.
type JSONFeedback struct {
	Request  *JSONMessage `json:"request,omitempty"`
	Response *JSONMessage `json:"response,omitempty"`
	Reward   float64      `json:"reward"`
	Truth    *JSONMessage `json:"truth,omitempty"`
}

// PayloadKeys lists the payload keys present in m, in wire order.
func (m *JSONMessage) PayloadKeys() []string {
	if m == nil {
		return nil
	}
	var keys []string
	if m.Data != nil {
		if m.Data.NDArray != nil {
			keys = append(keys, "data.ndarray")
		}
		if m.Data.Tensor != nil {
			keys = append(keys, "data.tensor")
		}
		if len(m.Data.TFTensor) > 0 && string(m.Data.TFTensor) != "null" {
			keys = append(keys, "data.tftensor")
		}
	}
	if m.BinData != nil {
		keys = append(keys, "binData")
	}
	if m.StrData != nil {
		keys = append(keys, "strData")
	}
	if len(m.JSONData) > 0 && string(m.JSONData) != "null" {
		keys = append(keys, "jsonData")
	}
	return keys
}

// Bytes is a binary payload on the JSON transport. Decoding takes the
// JSON string's text as the bytes; encoding emits standard base64. The JSON
// string decode is the single ingress decode of binData.
type Bytes []byte

// MarshalJSON implements json.Marshaler.
func (b Bytes) MarshalJSON() ([]byte, error) {
	return json.Marshal(base64.StdEncoding.EncodeToString(b))
}

// UnmarshalJSON implements json.Unmarshaler.
func (b *Bytes) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return fmt.Errorf("binData must be a string: %w", err)
	}
	*b = append(Bytes{}, s...)
	return nil
}

// NewBytes returns a pointer to a copy of v.
func NewBytes(v []byte) *Bytes {
	b := append(Bytes{}, v...)
	return &b
}
