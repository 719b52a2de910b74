/*************************************************************************
 * Copyright 2025 FlySight Core Contributors. All rights reserved.
 *
 * This software may be modified and distributed under the terms of the
 * BSD 2-clause license. See the LICENSE file for details.
 **************************************************************************/

package recipes

import (
	"github.com/flysight/flysight-core/registry"
	"github.com/flysight/flysight-core/session"
)

const gpsEpochOffset = 315964800.0 // seconds between the Unix and GPS epochs
const secondsPerWeek = 604800.0

// fitLinear performs an ordinary least-squares fit utc = a*sys + b. It
// fails if there are fewer than two samples or the fit is degenerate.
func fitLinear(sys, utc []float64) (a, b float64, ok bool) {
	n := float64(len(sys))
	if n < 2 || len(sys) != len(utc) {
		return 0, 0, false
	}
	var sx, sy, sxx, sxy float64
	for i := range sys {
		sx += sys[i]
		sy += utc[i]
		sxx += sys[i] * sys[i]
		sxy += sys[i] * utc[i]
	}
	denom := n*sxx - sx*sx
	if denom == 0 {
		return 0, 0, false
	}
	a = (n*sxy - sx*sy) / denom
	b = (sy - a*sx) / n
	return a, b, true
}

// registerTimeConversion registers the _time recipe for every sensor: a
// passthrough for GNSS, and a fitted linear conversion (cached as
// _TIME_FIT_A/_TIME_FIT_B) for the other system-clock sensors.
func registerTimeConversion(reg *registry.Registry) {
	reg.RegisterMeasurement(session.GNSS, session.UTCTime, registry.Recipe[[]float64]{
		Name: "gnss-time-passthrough",
		Deps: []session.DependencyKey{session.MeasurementKey(session.GNSS, session.Time)},
		Compute: func(r registry.Resolver) ([]float64, bool) {
			return getMeas(r, session.GNSS, session.Time)
		},
	})

	reg.RegisterAttribute(session.TimeFitA, registry.Recipe[session.AttributeValue]{
		Name: "time-fit-a",
		Deps: []session.DependencyKey{
			session.MeasurementKey(session.TIME, session.Time),
			session.MeasurementKey(session.TIME, "tow"),
			session.MeasurementKey(session.TIME, "week"),
		},
		Compute: func(r registry.Resolver) (session.AttributeValue, bool) {
			sys, ok1 := getMeas(r, session.TIME, session.Time)
			tow, ok2 := getMeas(r, session.TIME, "tow")
			week, ok3 := getMeas(r, session.TIME, "week")
			if !ok1 || !ok2 || !ok3 || !equalLen(sys, tow, week) {
				return session.AttributeValue{}, false
			}
			utc := make([]float64, len(sys))
			for i := range sys {
				utc[i] = week[i]*secondsPerWeek + tow[i] + gpsEpochOffset
			}
			a, b, ok := fitLinear(sys, utc)
			if !ok {
				return session.AttributeValue{}, false
			}
			r.SetDerivedAttribute(session.TimeFitB, session.Number(b))
			return session.Number(a), true
		},
	})

	reg.RegisterAttribute(session.TimeFitB, registry.Recipe[session.AttributeValue]{
		Name: "time-fit-b",
		Deps: []session.DependencyKey{session.AttributeKey(session.TimeFitA)},
		Compute: func(r registry.Resolver) (session.AttributeValue, bool) {
			if _, ok := r.GetAttribute(session.TimeFitA); !ok {
				return session.AttributeValue{}, false
			}
			return r.Session().CachedAttribute(session.TimeFitB)
		},
	})

	for _, sensor := range session.AllTimeFitSensors {
		if sensor == session.GNSS {
			continue
		}
		sensor := sensor
		reg.RegisterMeasurement(sensor, session.UTCTime, registry.Recipe[[]float64]{
			Name: "time-fit-apply",
			Deps: []session.DependencyKey{
				session.MeasurementKey(sensor, session.Time),
				session.AttributeKey(session.TimeFitA),
				session.AttributeKey(session.TimeFitB),
			},
			Compute: func(r registry.Resolver) ([]float64, bool) {
				sys, ok := getMeas(r, sensor, session.Time)
				if !ok {
					return nil, false
				}
				av, ok := r.GetAttribute(session.TimeFitA)
				if !ok {
					return nil, false
				}
				bv, ok := r.GetAttribute(session.TimeFitB)
				if !ok {
					return nil, false
				}
				a, _ := av.AsFloat()
				b, _ := bv.AsFloat()
				out := make([]float64, len(sys))
				for i, v := range sys {
					out[i] = a*v + b
				}
				return out, true
			},
		})
	}
}
