/*************************************************************************
 * Copyright 2025 FlySight Core Contributors. All rights reserved.
 *
 * This software may be modified and distributed under the terms of the
 * BSD 2-clause license. See the LICENSE file for details.
 **************************************************************************/

package session

import (
	"github.com/flysight/flysight-core/log"
)

// Session represents one recorded flight from one device: raw attributes
// and sensor columns loaded by the CsvParser, plus the memoized caches
// and reverse-dependency graph the Derivation Engine maintains on top of
// them. A Session is exclusively owned by one goroutine at a time; it
// performs no internal locking (§5 Concurrency & Resource Model).
type Session struct {
	attrs   map[string]AttributeValue
	sensors map[string]map[string][]float64

	cachedAttrs map[string]AttributeValue
	cachedMeas  map[DependencyKey][]float64

	reverse map[DependencyKey]map[DependencyKey]struct{}
	active  map[DependencyKey]struct{}

	lgr *log.Logger
}

// New creates an empty Session. A nil logger is replaced with a discard
// logger so callers never need a nil check.
func New(lgr *log.Logger) *Session {
	if lgr == nil {
		lgr = log.NewDiscardLogger()
	}
	return &Session{
		attrs:       make(map[string]AttributeValue),
		sensors:     make(map[string]map[string][]float64),
		cachedAttrs: make(map[string]AttributeValue),
		cachedMeas:  make(map[DependencyKey][]float64),
		reverse:     make(map[DependencyKey]map[DependencyKey]struct{}),
		active:      make(map[DependencyKey]struct{}),
		lgr:         lgr,
	}
}

// ID returns the session's SESSION_ID attribute, or the empty string if
// unset.
func (s *Session) ID() string {
	if v, ok := s.attrs[SessionID]; ok {
		return v.Str
	}
	return ""
}

// RawAttribute returns the raw (non-derived) attribute value, if present.
func (s *Session) RawAttribute(key string) (AttributeValue, bool) {
	v, ok := s.attrs[key]
	return v, ok
}

// RawMeasurement returns the raw (non-derived) column, if present and
// non-empty.
func (s *Session) RawMeasurement(sensor, column string) ([]float64, bool) {
	cols, ok := s.sensors[sensor]
	if !ok {
		return nil, false
	}
	v, ok := cols[column]
	if !ok || len(v) == 0 {
		return nil, false
	}
	return v, true
}

// SetRawAttribute stores a raw attribute without triggering invalidation.
// Used during parsing, before a session is exposed to a SessionStore or
// the engine.
func (s *Session) SetRawAttribute(key string, v AttributeValue) {
	s.attrs[key] = v
}

// SetRawMeasurement stores a raw column without triggering invalidation.
// Used during parsing.
func (s *Session) SetRawMeasurement(sensor, column string, v []float64) {
	cols, ok := s.sensors[sensor]
	if !ok {
		cols = make(map[string][]float64)
		s.sensors[sensor] = cols
	}
	cols[column] = v
}

// SetAttribute is the external mutation entry point (§4.6): it stores the
// new raw value, then invalidates every cached derivation that
// transitively depended on this attribute, before returning.
func (s *Session) SetAttribute(key string, v AttributeValue) {
	s.attrs[key] = v
	s.InvalidateTransitive(AttributeKey(key))
}

// SetMeasurement is the external mutation entry point (§4.6) for a
// measurement column.
func (s *Session) SetMeasurement(sensor, column string, v []float64) {
	s.SetRawMeasurement(sensor, column, v)
	s.InvalidateTransitive(MeasurementKey(sensor, column))
}

// Sensors returns the set of sensor ids present in the raw data.
func (s *Session) Sensors() []string {
	out := make([]string, 0, len(s.sensors))
	for sensor := range s.sensors {
		out = append(out, sensor)
	}
	return out
}

// Columns returns the set of raw column names for a sensor.
func (s *Session) Columns(sensor string) []string {
	cols, ok := s.sensors[sensor]
	if !ok {
		return nil
	}
	out := make([]string, 0, len(cols))
	for c := range cols {
		out = append(out, c)
	}
	return out
}

// Attributes returns a snapshot copy of every raw attribute, used by
// SessionStore's strict merge-equality check.
func (s *Session) Attributes() map[string]AttributeValue {
	out := make(map[string]AttributeValue, len(s.attrs))
	for k, v := range s.attrs {
		out[k] = v
	}
	return out
}

// Logger returns the session's logger, guaranteed non-nil.
func (s *Session) Logger() *log.Logger { return s.lgr }

// --- cache access, used only by package engine ---

// CachedAttribute returns a memoized attribute derivation.
func (s *Session) CachedAttribute(key string) (AttributeValue, bool) {
	v, ok := s.cachedAttrs[key]
	return v, ok
}

// SetCachedAttribute records a memoized attribute derivation.
func (s *Session) SetCachedAttribute(key string, v AttributeValue) {
	s.cachedAttrs[key] = v
}

// CachedMeasurement returns a memoized measurement derivation.
func (s *Session) CachedMeasurement(k DependencyKey) ([]float64, bool) {
	v, ok := s.cachedMeas[k]
	return v, ok
}

// SetCachedMeasurement records a memoized measurement derivation.
func (s *Session) SetCachedMeasurement(k DependencyKey, v []float64) {
	s.cachedMeas[k] = v
}

// IsActive reports whether k is currently being resolved higher up the
// call stack (the cycle guard).
func (s *Session) IsActive(k DependencyKey) bool {
	_, ok := s.active[k]
	return ok
}

// EnterActive marks k as under resolution.
func (s *Session) EnterActive(k DependencyKey) { s.active[k] = struct{}{} }

// ExitActive clears k's under-resolution mark.
func (s *Session) ExitActive(k DependencyKey) { delete(s.active, k) }

// RecordEdges inserts k into reverse[d] for each d in deps (§4.6).
func (s *Session) RecordEdges(k DependencyKey, deps []DependencyKey) {
	for _, d := range deps {
		set, ok := s.reverse[d]
		if !ok {
			set = make(map[DependencyKey]struct{})
			s.reverse[d] = set
		}
		set[k] = struct{}{}
	}
}

// InvalidateTransitive performs a BFS from changed, visiting each
// dependent exactly once, removing it from whichever cache holds it.
// Edges themselves are left intact; they are overwritten the next time a
// key is recomputed.
func (s *Session) InvalidateTransitive(changed DependencyKey) {
	s.invalidateOne(changed)

	visited := map[DependencyKey]struct{}{changed: {}}
	queue := []DependencyKey{changed}
	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]

		dependents := s.reverse[cur]
		for dep := range dependents {
			if _, seen := visited[dep]; seen {
				continue
			}
			visited[dep] = struct{}{}
			s.invalidateOne(dep)
			queue = append(queue, dep)
		}
	}
}

func (s *Session) invalidateOne(k DependencyKey) {
	if k.IsAttribute() {
		delete(s.cachedAttrs, k.Attr)
	} else {
		delete(s.cachedMeas, k)
	}
}
