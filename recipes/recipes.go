/*************************************************************************
 * Copyright 2025 FlySight Core Contributors. All rights reserved.
 *
 * This software may be modified and distributed under the terms of the
 * BSD 2-clause license. See the LICENSE file for details.
 **************************************************************************/

// Package recipes registers the built-in derivation rules (§4.7, §4.8)
// against a *registry.Registry: time conversion, exit/manoeuvre/landing
// detection, ground-reference height, GNSS kinematics, IMU/MAG magnitudes,
// track simplification, sensor fusion, and marker-attached readings.
package recipes

import (
	"github.com/flysight/flysight-core/registry"
	"github.com/flysight/flysight-core/session"
)

// RegisterBuiltins registers every built-in recipe described in §4.7 and
// §4.8 against reg. Call once at startup, before any session exists.
func RegisterBuiltins(reg *registry.Registry) {
	registerTimeConversion(reg)
	registerTimeFromExit(reg)
	registerExitTime(reg)
	registerManoeuvreStartTime(reg)
	registerLandingTime(reg)
	registerMaxSpeedTimes(reg)
	registerGroundElevation(reg)
	registerGNSSKinematics(reg)
	registerMagnitudes(reg)
	registerStartTimeDuration(reg)
	registerTrackSimplification(reg)
	registerSensorFusion(reg)
	registerDefaultMarkerAttributes(reg)
}

// interpAt linearly interpolates data at time instant t, given the
// parallel time/data vectors. Lookups outside the sample range return
// ok=false; no extrapolation is performed (§9 Interpolation convention).
func interpAt(times, data []float64, t float64) (float64, bool) {
	n := len(times)
	if n == 0 || len(data) != n {
		return 0, false
	}
	if t < times[0] || t > times[n-1] {
		return 0, false
	}
	// binary search for the first index whose time is >= t
	lo, hi := 0, n-1
	for lo < hi {
		mid := (lo + hi) / 2
		if times[mid] < t {
			lo = mid + 1
		} else {
			hi = mid
		}
	}
	if lo == 0 {
		return data[0], true
	}
	t1, t2 := times[lo-1], times[lo]
	if t2 == t1 {
		return data[lo-1], true
	}
	v1, v2 := data[lo-1], data[lo]
	a := (t - t1) / (t2 - t1)
	return v1 + a*(v2-v1), true
}

// equalLen reports whether every slice has the same nonzero length.
func equalLen(vs ...[]float64) bool {
	if len(vs) == 0 {
		return false
	}
	n := len(vs[0])
	if n == 0 {
		return false
	}
	for _, v := range vs[1:] {
		if len(v) != n {
			return false
		}
	}
	return true
}

func getMeas(r registry.Resolver, sensor, column string) ([]float64, bool) {
	return r.GetMeasurement(sensor, column)
}

func getAttrTime(r registry.Resolver, key string) (float64, bool) {
	v, ok := r.GetAttribute(key)
	if !ok {
		return 0, false
	}
	t, ok := v.AsTime()
	if !ok {
		return 0, false
	}
	return float64(t.UnixMilli()) / 1000.0, true
}

func sessionOf(r registry.Resolver) *session.Session { return r.Session() }
