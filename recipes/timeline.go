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

// registerStartTimeDuration registers _START_TIME and _DURATION for each
// sensor class per §4.7. Multiple recipes are registered for the same
// output key (one per sensor); the first whose sensor has data wins, per
// registration order ("first success wins", §4.3).
func registerStartTimeDuration(reg *registry.Registry) {
	for _, sensor := range session.AllSensorsWithTime {
		sensor := sensor
		reg.RegisterAttribute(session.StartTime, registry.Recipe[session.AttributeValue]{
			Name: "start-time:" + sensor,
			Deps: []session.DependencyKey{session.MeasurementKey(sensor, session.Time)},
			Compute: func(r registry.Resolver) (session.AttributeValue, bool) {
				times, ok := getMeas(r, sensor, session.Time)
				if !ok || len(times) == 0 {
					return session.AttributeValue{}, false
				}
				min := times[0]
				for _, v := range times[1:] {
					if v < min {
						min = v
					}
				}
				return toInstant(min), true
			},
		})

		reg.RegisterAttribute(session.Duration, registry.Recipe[session.AttributeValue]{
			Name: "duration:" + sensor,
			Deps: []session.DependencyKey{session.MeasurementKey(sensor, session.Time)},
			Compute: func(r registry.Resolver) (session.AttributeValue, bool) {
				times, ok := getMeas(r, sensor, session.Time)
				if !ok || len(times) == 0 {
					return session.AttributeValue{}, false
				}
				min, max := times[0], times[0]
				for _, v := range times[1:] {
					if v < min {
						min = v
					}
					if v > max {
						max = v
					}
				}
				d := max - min
				if d < 0 {
					return session.AttributeValue{}, false
				}
				return session.Number(d), true
			},
		})
	}
}
