/*************************************************************************
 * Copyright 2025 FlySight Core Contributors. All rights reserved.
 *
 * This software may be modified and distributed under the terms of the
 * BSD 2-clause license. See the LICENSE file for details.
 **************************************************************************/

// Package engine implements the Derivation Engine (§4.4): the resolver
// that routes every attribute/measurement read through the cache, then
// the Recipe Registry, recursively satisfying dependencies and guarding
// against cycles.
package engine

import (
	"github.com/flysight/flysight-core/log"
	"github.com/flysight/flysight-core/registry"
	"github.com/flysight/flysight-core/session"
)

// Engine binds a process-global Recipe Registry to the resolution
// algorithm. A single Engine instance is normally shared across every
// session in the process; it holds no per-session state itself.
type Engine struct {
	reg *registry.Registry
	lgr *log.Logger
}

// New returns an Engine over reg. A nil logger is replaced with a discard
// logger.
func New(reg *registry.Registry, lgr *log.Logger) *Engine {
	if lgr == nil {
		lgr = log.NewDiscardLogger()
	}
	return &Engine{reg: reg, lgr: lgr}
}

// Registry returns the engine's backing Recipe Registry.
func (e *Engine) Registry() *registry.Registry { return e.reg }

// boundResolver implements registry.Resolver for one (engine, session)
// pair, the context a Recipe's Compute function runs under.
type boundResolver struct {
	e *Engine
	s *session.Session
}

func (b boundResolver) GetAttribute(key string) (session.AttributeValue, bool) {
	return b.e.GetAttribute(b.s, key)
}

func (b boundResolver) GetMeasurement(sensor, column string) ([]float64, bool) {
	return b.e.GetMeasurement(b.s, sensor, column)
}

func (b boundResolver) SetDerivedAttribute(key string, v session.AttributeValue) {
	b.s.SetCachedAttribute(key, v)
}

func (b boundResolver) SetDerivedMeasurement(sensor, column string, v []float64) {
	b.s.SetCachedMeasurement(session.MeasurementKey(sensor, column), v)
}

func (b boundResolver) Session() *session.Session { return b.s }

// GetAttribute resolves attribute key against s, per §4.4. Registered
// recipes are tried first; the raw value is returned only when no recipe
// is registered for key or none succeeds (a raw-only key, e.g.
// DEVICE_ID, never has a recipe at all; see SPEC_FULL.md §4.4 for the
// raw/derived priority discussion this resolves).
func (e *Engine) GetAttribute(s *session.Session, key string) (session.AttributeValue, bool) {
	k := session.AttributeKey(key)

	if v, ok := s.CachedAttribute(key); ok {
		return v, true
	}
	if s.IsActive(k) {
		e.lgr.Debugf("circular dependency resolving attribute %q", key)
		return session.AttributeValue{}, false
	}

	recipes := e.reg.AttributeRecipes(key)
	if len(recipes) == 0 {
		if raw, ok := s.RawAttribute(key); ok {
			return raw, true
		}
		return session.AttributeValue{}, false
	}

	s.EnterActive(k)
	defer s.ExitActive(k)

	r := boundResolver{e: e, s: s}
	for _, recipe := range recipes {
		v, ok := recipe.Compute(r)
		if !ok {
			continue
		}
		s.RecordEdges(k, recipe.Deps)
		s.SetCachedAttribute(key, v)
		return v, true
	}

	if raw, ok := s.RawAttribute(key); ok {
		return raw, true
	}
	return session.AttributeValue{}, false
}

// GetMeasurement resolves (sensor, column) against s, per §4.4. A raw
// column always takes precedence over a recipe for the same key.
func (e *Engine) GetMeasurement(s *session.Session, sensor, column string) ([]float64, bool) {
	if raw, ok := s.RawMeasurement(sensor, column); ok {
		return raw, true
	}

	k := session.MeasurementKey(sensor, column)
	if v, ok := s.CachedMeasurement(k); ok {
		return v, true
	}
	if s.IsActive(k) {
		e.lgr.Debugf("circular dependency resolving measurement %s/%s", sensor, column)
		return nil, false
	}

	recipes := e.reg.MeasurementRecipes(sensor, column)
	if len(recipes) == 0 {
		return nil, false
	}

	s.EnterActive(k)
	defer s.ExitActive(k)

	r := boundResolver{e: e, s: s}
	for _, recipe := range recipes {
		v, ok := recipe.Compute(r)
		if !ok {
			continue
		}
		s.RecordEdges(k, recipe.Deps)
		s.SetCachedMeasurement(k, v)
		return v, true
	}
	return nil, false
}

// SetAttribute sets a raw attribute and invalidates every cached
// derivation transitively depending on it (§4.6).
func (e *Engine) SetAttribute(s *session.Session, key string, v session.AttributeValue) {
	s.SetAttribute(key, v)
}

// SetMeasurement sets a raw measurement column and invalidates every
// cached derivation transitively depending on it (§4.6).
func (e *Engine) SetMeasurement(s *session.Session, sensor, column string, v []float64) {
	s.SetMeasurement(sensor, column, v)
}
