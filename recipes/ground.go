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

// Configuration attribute keys consulted by the ground-elevation recipe
// (§6 External Interfaces). A hosting application sets these as raw
// session attributes from its loaded configuration; the core never reads
// a config file itself.
const (
	GroundReferenceModeAttr = "import/groundReferenceMode"
	FixedElevationAttr      = "import/fixedElevation"

	GroundModeFixed     = "Fixed"
	GroundModeAutomatic = "Automatic"
)

// registerGroundElevation registers _GROUND_ELEV per §4.7.
func registerGroundElevation(reg *registry.Registry) {
	reg.RegisterAttribute(session.GroundElev, registry.Recipe[session.AttributeValue]{
		Name: "ground-elevation",
		Deps: []session.DependencyKey{
			session.AttributeKey(GroundReferenceModeAttr),
			session.AttributeKey(FixedElevationAttr),
			session.MeasurementKey(session.GNSS, "hMSL"),
		},
		Compute: func(r registry.Resolver) (session.AttributeValue, bool) {
			mode, ok := r.GetAttribute(GroundReferenceModeAttr)
			if !ok {
				return session.AttributeValue{}, false
			}
			switch mode.Str {
			case GroundModeFixed:
				fixed, ok := r.GetAttribute(FixedElevationAttr)
				if !ok {
					return session.AttributeValue{}, false
				}
				v, ok := fixed.AsFloat()
				if !ok {
					return session.AttributeValue{}, false
				}
				return session.Number(v), true
			case GroundModeAutomatic:
				hMSL, ok := getMeas(r, session.GNSS, "hMSL")
				if !ok || len(hMSL) == 0 {
					return session.AttributeValue{}, false
				}
				return session.Number(hMSL[len(hMSL)-1]), true
			default:
				return session.AttributeValue{}, false
			}
		},
	})

	reg.RegisterMeasurement(session.GNSS, "z", registry.Recipe[[]float64]{
		Name: "gnss-height-above-ground",
		Deps: []session.DependencyKey{
			session.MeasurementKey(session.GNSS, "hMSL"),
			session.AttributeKey(session.GroundElev),
		},
		Compute: func(r registry.Resolver) ([]float64, bool) {
			hMSL, ok := getMeas(r, session.GNSS, "hMSL")
			if !ok {
				return nil, false
			}
			ground, ok := r.GetAttribute(session.GroundElev)
			if !ok {
				return nil, false
			}
			g, ok := ground.AsFloat()
			if !ok {
				return nil, false
			}
			out := make([]float64, len(hMSL))
			for i, v := range hMSL {
				out[i] = v - g
			}
			return out, true
		},
	})
}
