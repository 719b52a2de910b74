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

// markerAttributeName builds the composite attribute key "<marker>:<sensor>/<column>"
// used for marker-attached interpolated readings (§4.7).
func markerAttributeName(marker, sensor, column string) string {
	return marker + ":" + sensor + "/" + column
}

// RegisterMarkerAttribute registers a single marker-attached reading: the
// value of sensor.column interpolated at the instant named by the marker
// attribute. This mirrors the reference tool's runtime marker registration
// (a marker gains one such attribute whenever the UI associates it with a
// measurement) exposed here as a reusable function rather than a fixed
// startup catalog, so callers beyond the curated defaults below can invoke
// it for operator-chosen marker/sensor/column combinations.
func RegisterMarkerAttribute(reg *registry.Registry, marker, sensor, column string) {
	name := markerAttributeName(marker, sensor, column)
	reg.RegisterAttribute(name, registry.Recipe[session.AttributeValue]{
		Name: "marker-attribute:" + name,
		Deps: []session.DependencyKey{
			session.AttributeKey(marker),
			session.MeasurementKey(sensor, session.UTCTime),
			session.MeasurementKey(sensor, column),
		},
		Compute: func(r registry.Resolver) (session.AttributeValue, bool) {
			t, ok := getAttrTime(r, marker)
			if !ok {
				return session.AttributeValue{}, false
			}
			times, ok1 := getMeas(r, sensor, session.UTCTime)
			data, ok2 := getMeas(r, sensor, column)
			if !ok1 || !ok2 || !equalLen(times, data) {
				return session.AttributeValue{}, false
			}
			v, ok := interpAt(times, data, t)
			if !ok {
				return session.AttributeValue{}, false
			}
			return session.Number(v), true
		},
	})
}

// registerDefaultMarkerAttributes registers the curated set of
// marker-attached readings exposed at startup: exit, manoeuvre-start and
// landing markers against the GNSS and IMU columns an analyst most
// commonly wants aligned to those instants (§4.7).
func registerDefaultMarkerAttributes(reg *registry.Registry) {
	markers := []string{session.ExitTime, session.ManoeuvreStartTime, session.LandingTime}
	readings := []struct {
		sensor, column string
	}{
		{session.GNSS, "hMSL"},
		{session.GNSS, "velD"},
		{session.GNSS, "velH"},
		{session.IMU, "aTotal"},
	}

	for _, marker := range markers {
		for _, reading := range readings {
			RegisterMarkerAttribute(reg, marker, reading.sensor, reading.column)
		}
	}
}
