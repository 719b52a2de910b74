/*************************************************************************
 * Copyright 2025 FlySight Core Contributors. All rights reserved.
 *
 * This software may be modified and distributed under the terms of the
 * BSD 2-clause license. See the LICENSE file for details.
 **************************************************************************/

package recipes

import (
	"math"

	"github.com/flysight/flysight-core/registry"
	"github.com/flysight/flysight-core/session"
)

// registerGNSSKinematics registers GNSS.velH, GNSS.vel, and GNSS.accD per
// §4.7.
func registerGNSSKinematics(reg *registry.Registry) {
	reg.RegisterMeasurement(session.GNSS, "velH", registry.Recipe[[]float64]{
		Name: "gnss-velh",
		Deps: []session.DependencyKey{
			session.MeasurementKey(session.GNSS, "velN"),
			session.MeasurementKey(session.GNSS, "velE"),
		},
		Compute: func(r registry.Resolver) ([]float64, bool) {
			velN, ok1 := getMeas(r, session.GNSS, "velN")
			velE, ok2 := getMeas(r, session.GNSS, "velE")
			if !ok1 || !ok2 || !equalLen(velN, velE) {
				return nil, false
			}
			out := make([]float64, len(velN))
			for i := range velN {
				out[i] = math.Hypot(velN[i], velE[i])
			}
			return out, true
		},
	})

	reg.RegisterMeasurement(session.GNSS, "vel", registry.Recipe[[]float64]{
		Name: "gnss-vel",
		Deps: []session.DependencyKey{
			session.MeasurementKey(session.GNSS, "velH"),
			session.MeasurementKey(session.GNSS, "velD"),
		},
		Compute: func(r registry.Resolver) ([]float64, bool) {
			velH, ok1 := getMeas(r, session.GNSS, "velH")
			velD, ok2 := getMeas(r, session.GNSS, "velD")
			if !ok1 || !ok2 || !equalLen(velH, velD) {
				return nil, false
			}
			out := make([]float64, len(velH))
			for i := range velH {
				out[i] = math.Hypot(velH[i], velD[i])
			}
			return out, true
		},
	})

	reg.RegisterMeasurement(session.GNSS, "accD", registry.Recipe[[]float64]{
		Name: "gnss-accd",
		Deps: []session.DependencyKey{
			session.MeasurementKey(session.GNSS, "velD"),
			session.MeasurementKey(session.GNSS, session.Time),
		},
		Compute: func(r registry.Resolver) ([]float64, bool) {
			velD, ok1 := getMeas(r, session.GNSS, "velD")
			t, ok2 := getMeas(r, session.GNSS, session.Time)
			if !ok1 || !ok2 || !equalLen(velD, t) {
				return nil, false
			}
			n := len(velD)
			if n < 2 {
				return nil, false
			}
			out := make([]float64, n)
			for i := 0; i < n; i++ {
				switch {
				case i == 0:
					dt := t[1] - t[0]
					if dt == 0 {
						return nil, false
					}
					out[i] = (velD[1] - velD[0]) / dt
				case i == n-1:
					dt := t[n-1] - t[n-2]
					if dt == 0 {
						return nil, false
					}
					out[i] = (velD[n-1] - velD[n-2]) / dt
				default:
					dt := t[i+1] - t[i-1]
					if dt == 0 {
						return nil, false
					}
					out[i] = (velD[i+1] - velD[i-1]) / dt
				}
			}
			return out, true
		},
	})
}
