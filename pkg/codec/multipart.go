// Copyright 2026 © The Seldon Gateway Authors
// SPDX-License-Identifier: Apache-2.0

package codec

import (
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"

	"github.com/adamjm/seldon-core/pkg/errors"
	"github.com/adamjm/seldon-core/pkg/prediction"
)

// Multipart field names recognized by FromMultipart.
const (
	FieldMeta     = "meta"
	FieldData     = "data"
	FieldStrData  = "strData"
	FieldBinData  = "binData"
	FieldJSONData = "jsonData"
)

// FromMultipart assembles a JSON wire message from a multipart form. The
// meta, data and jsonData fields hold JSON documents. strData and binData
// are taken verbatim, whether sent as plain values or as file parts.
func FromMultipart(form *multipart.Form) (*prediction.JSONMessage, error) {
	if form == nil {
		return nil, errors.New(errors.CodeInvalidInput, "missing multipart form", nil)
	}
	m := &prediction.JSONMessage{}
	found := false
	for _, name := range []string{FieldMeta, FieldData, FieldStrData, FieldBinData, FieldJSONData} {
		raw, ok, err := formField(form, name)
		if err != nil {
			return nil, err
		}
		if !ok {
			continue
		}
		found = true
		switch name {
		case FieldMeta:
			m.Meta = &prediction.JSONMeta{}
			if err := json.Unmarshal(raw, m.Meta); err != nil {
				return nil, errors.New(errors.CodeMalformedPayload, "invalid meta field", err)
			}
		case FieldData:
			m.Data = &prediction.JSONDefaultData{}
			if err := json.Unmarshal(raw, m.Data); err != nil {
				return nil, errors.New(errors.CodeMalformedPayload, "invalid data field", err)
			}
		case FieldStrData:
			s := string(raw)
			m.StrData = &s
		case FieldBinData:
			m.BinData = prediction.NewBytes(raw)
		case FieldJSONData:
			if !json.Valid(raw) {
				return nil, errors.New(errors.CodeMalformedPayload, "invalid jsonData field", nil)
			}
			m.JSONData = raw
		}
	}
	if !found {
		return nil, errors.New(errors.CodeInvalidInput, "multipart form has no meta, data, strData, binData or jsonData field", nil)
	}
	return m, nil
}

// formField returns the first value for name, preferring file parts.
func formField(form *multipart.Form, name string) ([]byte, bool, error) {
	if files := form.File[name]; len(files) > 0 {
		f, err := files[0].Open()
		if err != nil {
			return nil, false, errors.New(errors.CodeInvalidInput, fmt.Sprintf("opening %s part", name), err)
		}
		defer f.Close()
		raw, err := io.ReadAll(f)
		if err != nil {
			return nil, false, errors.New(errors.CodeInvalidInput, fmt.Sprintf("reading %s part", name), err)
		}
		return raw, true, nil
	}
	if values := form.Value[name]; len(values) > 0 {
		return []byte(values[0]), true, nil
	}
	return nil, false, nil
}

// Checksum returns the two-digit upper-case hex of the byte sum modulo 256.
func Checksum(b []byte) string {
	var sum byte
	for _, c := range b {
		sum += c
	}
	return fmt.Sprintf("%02X", sum)
}
