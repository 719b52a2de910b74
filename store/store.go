/*************************************************************************
 * Copyright 2025 FlySight Core Contributors. All rights reserved.
 *
 * This software may be modified and distributed under the terms of the
 * BSD 2-clause license. See the LICENSE file for details.
 **************************************************************************/

// Package store implements the SessionStore (§4.2): a keyed collection of
// sessions with insertion order preserved, merge-on-collision semantics,
// and per-id cache/graph teardown on removal.
package store

import (
	"errors"
	"fmt"

	"github.com/flysight/flysight-core/log"
	"github.com/flysight/flysight-core/session"
)

// ErrMissingSessionID is returned by Insert when the incoming session has
// no SESSION_ID attribute at all; merge never auto-generates one.
var ErrMissingSessionID = errors.New("session has no SESSION_ID attribute")

// Store is a SessionStore: sessions keyed by SESSION_ID, in insertion
// order.
type Store struct {
	order []string
	byID  map[string]*session.Session
	lgr   *log.Logger
}

// New returns an empty Store.
func New(lgr *log.Logger) *Store {
	if lgr == nil {
		lgr = log.NewDiscardLogger()
	}
	return &Store{
		byID: make(map[string]*session.Session),
		lgr:  lgr,
	}
}

// Insert stores s, applying the merge policy of §4.2 if a session with
// the same SESSION_ID already exists. It returns the id under which s was
// ultimately stored.
func (st *Store) Insert(s *session.Session) (string, error) {
	id := s.ID()
	if id == "" {
		return "", ErrMissingSessionID
	}

	existing, ok := st.byID[id]
	if !ok {
		st.appendNew(id, s)
		return id, nil
	}

	if attributesEqual(existing, s) && !sensorColumnsConflict(existing, s) {
		mergeSensors(existing, s)
		st.lgr.Debugf("merged session %q into existing entry", id)
		return id, nil
	}

	// Collision: store under a fresh suffixed id.
	freshID := id
	for n := 1; ; n++ {
		candidate := fmt.Sprintf("%s_%d", id, n)
		if _, taken := st.byID[candidate]; !taken {
			freshID = candidate
			break
		}
	}
	s.SetRawAttribute(session.SessionID, session.Text(freshID))
	st.appendNew(freshID, s)
	st.lgr.Infof("session %q collided on merge; stored as %q", id, freshID)
	return freshID, nil
}

func (st *Store) appendNew(id string, s *session.Session) {
	st.byID[id] = s
	st.order = append(st.order, id)
}

// attributesEqual implements the strict "all-attributes-equal" merge rule
// (§9 Open Questions): the two sessions' raw attribute sets must have
// identical keys and identical canonical string values.
func attributesEqual(a, b *session.Session) bool {
	aa, bb := a.Attributes(), b.Attributes()
	if len(aa) != len(bb) {
		return false
	}
	for k, v := range aa {
		ov, ok := bb[k]
		if !ok || ov.CanonicalString() != v.CanonicalString() {
			return false
		}
	}
	return true
}

// sensorColumnsConflict reports whether any (sensor, column) present in
// incoming also already exists in target.
func sensorColumnsConflict(target, incoming *session.Session) bool {
	for _, sensor := range incoming.Sensors() {
		for _, col := range incoming.Columns(sensor) {
			if _, ok := target.RawMeasurement(sensor, col); ok {
				return true
			}
		}
	}
	return false
}

// mergeSensors copies every sensor/column from incoming into target. The
// caller must have already verified there is no column-key conflict.
func mergeSensors(target, incoming *session.Session) {
	for _, sensor := range incoming.Sensors() {
		for _, col := range incoming.Columns(sensor) {
			v, _ := incoming.RawMeasurement(sensor, col)
			target.SetRawMeasurement(sensor, col, v)
		}
	}
}

// Remove deletes the session with the given id, freeing its caches and
// dependency edges (which are owned by the *session.Session itself and
// simply become garbage once unreferenced).
func (st *Store) Remove(id string) {
	if _, ok := st.byID[id]; !ok {
		return
	}
	delete(st.byID, id)
	for i, v := range st.order {
		if v == id {
			st.order = append(st.order[:i], st.order[i+1:]...)
			break
		}
	}
}

// Get returns the session for id, if present.
func (st *Store) Get(id string) (*session.Session, bool) {
	s, ok := st.byID[id]
	return s, ok
}

// Iterate returns every session in insertion order.
func (st *Store) Iterate() []*session.Session {
	out := make([]*session.Session, 0, len(st.order))
	for _, id := range st.order {
		out = append(out, st.byID[id])
	}
	return out
}

// IDs returns every session id in insertion order.
func (st *Store) IDs() []string {
	out := make([]string, len(st.order))
	copy(out, st.order)
	return out
}

// RowOf returns id's stable position for UI bindings, or -1 if absent.
func (st *Store) RowOf(id string) int {
	for i, v := range st.order {
		if v == id {
			return i
		}
	}
	return -1
}

// Len returns the number of stored sessions.
func (st *Store) Len() int { return len(st.order) }
