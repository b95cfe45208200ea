// Copyright 2026 © The Seldon Gateway Authors
// SPDX-License-Identifier: Apache-2.0

// Package builtin holds the components the gateway can serve without user
// code: an identity model, a transport-level model answering a constant, and
// a raw-message checksum model used to verify multipart uploads.
package builtin

import (
	"sort"

	"github.com/adamjm/seldon-core/pkg/component"
	"github.com/adamjm/seldon-core/pkg/errors"
	"github.com/adamjm/seldon-core/pkg/message"
)

// Settings configures a built-in component. Fields a component does not use
// are ignored.
type Settings struct {
	Version    string
	Tags       map[string]any
	Metrics    []message.Metric
	ClassNames []string
	// Constant, when set, replaces the identity result.
	Constant []float64
	// Mode selects what the checksum component reads: img, txt, str or bin.
	Mode string
}

// Factory builds a component from settings.
type Factory func(Settings) (component.Component, error)

var factories = map[string]Factory{
	"identity": func(s Settings) (component.Component, error) { return NewIdentity(s), nil },
	"lowlevel": func(s Settings) (component.Component, error) { return NewLowLevel(s), nil },
	"checksum": func(s Settings) (component.Component, error) {
		c, err := NewChecksum(s)
		if err != nil {
			return nil, err
		}
		return c, nil
	},
}

// New builds the named component.
func New(name string, s Settings) (component.Component, error) {
	f, ok := factories[name]
	if !ok {
		return nil, errors.Newf(errors.CodeRegistrationFailure, "unknown component %q", name).
			WithContext("available", Names())
	}
	return f(s)
}

// Names lists the registered component names.
func Names() []string {
	names := make([]string, 0, len(factories))
	for name := range factories {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func copyTags(in map[string]any) map[string]any {
	if in == nil {
		return nil
	}
	out := make(map[string]any, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}
