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

func registerMagnitude3(reg *registry.Registry, sensor, outCol, c1, c2, c3 string) {
	reg.RegisterMeasurement(sensor, outCol, registry.Recipe[[]float64]{
		Name: "magnitude:" + sensor + "." + outCol,
		Deps: []session.DependencyKey{
			session.MeasurementKey(sensor, c1),
			session.MeasurementKey(sensor, c2),
			session.MeasurementKey(sensor, c3),
		},
		Compute: func(r registry.Resolver) ([]float64, bool) {
			v1, ok1 := getMeas(r, sensor, c1)
			v2, ok2 := getMeas(r, sensor, c2)
			v3, ok3 := getMeas(r, sensor, c3)
			if !ok1 || !ok2 || !ok3 || !equalLen(v1, v2, v3) {
				return nil, false
			}
			out := make([]float64, len(v1))
			for i := range v1 {
				out[i] = math.Sqrt(v1[i]*v1[i] + v2[i]*v2[i] + v3[i]*v3[i])
			}
			return out, true
		},
	})
}

// registerMagnitudes registers IMU.aTotal, IMU.wTotal, and MAG.total per
// §4.7.
func registerMagnitudes(reg *registry.Registry) {
	registerMagnitude3(reg, session.IMU, "aTotal", "ax", "ay", "az")
	registerMagnitude3(reg, session.IMU, "wTotal", "wx", "wy", "wz")
	registerMagnitude3(reg, session.MAG, "total", "x", "y", "z")
}
