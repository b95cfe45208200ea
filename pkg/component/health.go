// Copyright 2026 © The Seldon Gateway Authors
// SPDX-License-Identifier: Apache-2.0

package component

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"
)

// HealthStatus represents the health state of a component.
type HealthStatus string

const (
	// HealthHealthy indicates the component is fully operational.
	HealthHealthy HealthStatus = "HEALTHY"

	// HealthDegraded indicates the component is operational but with reduced capacity.
	HealthDegraded HealthStatus = "DEGRADED"

	// HealthUnhealthy indicates the component is not operational.
	HealthUnhealthy HealthStatus = "UNHEALTHY"
)

// HealthResult represents the result of a health check.
type HealthResult struct {
	Status    HealthStatus `json:"status"`
	Component string       `json:"component"`
	Message   string       `json:"message,omitempty"`
	LastCheck time.Time    `json:"last_check"`
}

// HealthChecker is implemented by components that can report their health.
// Components without it are reported healthy.
type HealthChecker interface {
	Check(ctx context.Context) HealthResult
}

// HealthRegistry aggregates health checkers by name.
type HealthRegistry struct {
	mu       sync.RWMutex
	checkers map[string]HealthChecker
}

// NewHealthRegistry creates an empty registry.
func NewHealthRegistry() *HealthRegistry {
	return &HealthRegistry{checkers: make(map[string]HealthChecker)}
}

// Register adds a checker. A component that does not implement
// HealthChecker is registered as always healthy.
func (r *HealthRegistry) Register(name string, comp Component) {
	checker, ok := comp.(HealthChecker)
	if !ok {
		checker = StaticHealth(HealthHealthy, "no health check implemented")
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.checkers[name] = checker
}

// Check checks a single named component.
func (r *HealthRegistry) Check(ctx context.Context, name string) (HealthResult, error) {
	r.mu.RLock()
	checker, ok := r.checkers[name]
	r.mu.RUnlock()
	if !ok {
		return HealthResult{}, fmt.Errorf("checker not registered: %s", name)
	}
	res := checker.Check(ctx)
	res.Component = name
	if res.LastCheck.IsZero() {
		res.LastCheck = time.Now()
	}
	return res, nil
}

// CheckAll checks every registered component. The overall status is the
// worst individual status.
func (r *HealthRegistry) CheckAll(ctx context.Context) ([]HealthResult, HealthStatus) {
	r.mu.RLock()
	names := make([]string, 0, len(r.checkers))
	for name := range r.checkers {
		names = append(names, name)
	}
	r.mu.RUnlock()
	sort.Strings(names)

	overall := HealthHealthy
	results := make([]HealthResult, 0, len(names))
	for _, name := range names {
		res, err := r.Check(ctx, name)
		if err != nil {
			continue
		}
		results = append(results, res)
		switch res.Status {
		case HealthUnhealthy:
			overall = HealthUnhealthy
		case HealthDegraded:
			if overall == HealthHealthy {
				overall = HealthDegraded
			}
		}
	}
	return results, overall
}

type staticHealth struct {
	status  HealthStatus
	message string
}

// StaticHealth returns a checker reporting a constant status.
func StaticHealth(status HealthStatus, message string) HealthChecker {
	return staticHealth{status: status, message: message}
}

func (s staticHealth) Check(context.Context) HealthResult {
	return HealthResult{Status: s.status, Message: s.message, LastCheck: time.Now()}
}
