// Copyright 2026 © The Seldon Gateway Authors
// SPDX-License-Identifier: Apache-2.0

// Package contract produces the document served at /seldon.json.
package contract

import (
	_ "embed"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/adamjm/seldon-core/pkg/component"
	"github.com/adamjm/seldon-core/pkg/errors"
)

//go:embed openapi.yaml
var defaultDocument []byte

// Document is a decoded contract, ready to be written as JSON.
type Document map[string]any

// Load picks the contract for comp: the component's own contract, then the
// file at path (YAML or JSON), then the built-in description of the REST
// surface.
func Load(comp component.Component, path string) (Document, error) {
	if p, ok := comp.(component.ContractProvider); ok {
		if doc := p.Contract(); doc != nil {
			return Document(doc), nil
		}
	}
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, errors.New(errors.CodeRegistrationFailure, "cannot read contract file", err).
				WithContext("path", path)
		}
		doc, err := Parse(data)
		if err != nil {
			return nil, errors.AsGatewayError(err).WithContext("path", path)
		}
		return doc, nil
	}
	return Default(), nil
}

// Parse decodes a YAML or JSON contract.
func Parse(data []byte) (Document, error) {
	var doc Document
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, errors.New(errors.CodeRegistrationFailure, "invalid contract document", err)
	}
	if doc == nil {
		return nil, errors.New(errors.CodeRegistrationFailure, "empty contract document", nil)
	}
	return doc, nil
}

// Default returns the built-in OpenAPI description of the REST surface.
func Default() Document {
	doc, err := Parse(defaultDocument)
	if err != nil {
		panic("contract: embedded document is invalid: " + err.Error())
	}
	return doc
}
