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

const (
	earthRadiusMeters = 6371000.0
	simplifyEpsMeters = 0.5
)

// tangentPlaneProject converts (lat, lon) in degrees to a local Cartesian
// approximation in meters, anchored at (lat0, lon0).
func tangentPlaneProject(lat, lon, lat0, lon0 float64) (x, y float64) {
	lat0Rad := lat0 * math.Pi / 180.0
	x = (lon - lon0) * math.Pi / 180.0 * earthRadiusMeters * math.Cos(lat0Rad)
	y = (lat - lat0) * math.Pi / 180.0 * earthRadiusMeters
	return
}

func perpendicularDistance(p, a, b [2]float64) float64 {
	dx := b[0] - a[0]
	dy := b[1] - a[1]
	if dx == 0 && dy == 0 {
		return math.Hypot(p[0]-a[0], p[1]-a[1])
	}
	num := math.Abs(dy*p[0] - dx*p[1] + b[0]*a[1] - b[1]*a[0])
	den := math.Hypot(dx, dy)
	return num / den
}

// rdpKeepIndices runs Ramer-Douglas-Peucker over pts and returns the
// sorted indices of the points retained, always including the endpoints.
func rdpKeepIndices(pts [][2]float64, eps float64) []int {
	n := len(pts)
	if n < 3 {
		idx := make([]int, n)
		for i := range idx {
			idx[i] = i
		}
		return idx
	}

	keep := make([]bool, n)
	keep[0] = true
	keep[n-1] = true

	var recurse func(lo, hi int)
	recurse = func(lo, hi int) {
		if hi <= lo+1 {
			return
		}
		maxDist := -1.0
		maxIdx := -1
		for i := lo + 1; i < hi; i++ {
			d := perpendicularDistance(pts[i], pts[lo], pts[hi])
			if d > maxDist {
				maxDist = d
				maxIdx = i
			}
		}
		if maxDist > eps {
			keep[maxIdx] = true
			recurse(lo, maxIdx)
			recurse(maxIdx, hi)
		}
	}
	recurse(0, n-1)

	idx := make([]int, 0, n)
	for i, k := range keep {
		if k {
			idx = append(idx, i)
		}
	}
	return idx
}

// simplifiedTrack projects GNSS(lat, lon, hMSL) into a local tangent
// plane, simplifies the ground track with RDP, and returns the four
// aligned output columns at the surviving original indices (§4.7 Track
// simplification).
func simplifiedTrack(r registry.Resolver) (lat, lon, hMSL, t []float64, ok bool) {
	rawLat, ok1 := getMeas(r, session.GNSS, "lat")
	rawLon, ok2 := getMeas(r, session.GNSS, "lon")
	rawHMSL, ok3 := getMeas(r, session.GNSS, "hMSL")
	rawTime, ok4 := getMeas(r, session.GNSS, session.UTCTime)
	if !ok1 || !ok2 || !ok3 || !ok4 || !equalLen(rawLat, rawLon, rawHMSL, rawTime) {
		return nil, nil, nil, nil, false
	}

	pts := make([][2]float64, len(rawLat))
	for i := range rawLat {
		x, y := tangentPlaneProject(rawLat[i], rawLon[i], rawLat[0], rawLon[0])
		pts[i] = [2]float64{x, y}
	}

	indices := rdpKeepIndices(pts, simplifyEpsMeters)

	lat = make([]float64, len(indices))
	lon = make([]float64, len(indices))
	hMSL = make([]float64, len(indices))
	t = make([]float64, len(indices))
	for i, orig := range indices {
		lat[i] = rawLat[orig]
		lon[i] = rawLon[orig]
		hMSL[i] = rawHMSL[orig]
		t[i] = rawTime[orig]
	}
	return lat, lon, hMSL, t, true
}

// registerTrackSimplification registers the Simplified sensor's four
// columns as one multi-output recipe family: whichever column is
// requested first runs the full computation and writes the other three
// into the cache as a side effect.
func registerTrackSimplification(reg *registry.Registry) {
	deps := []session.DependencyKey{
		session.MeasurementKey(session.GNSS, "lat"),
		session.MeasurementKey(session.GNSS, "lon"),
		session.MeasurementKey(session.GNSS, "hMSL"),
		session.MeasurementKey(session.GNSS, session.UTCTime),
	}

	outputs := []struct {
		col string
		pick func(lat, lon, hMSL, t []float64) []float64
	}{
		{"lat", func(lat, lon, hMSL, t []float64) []float64 { return lat }},
		{"lon", func(lat, lon, hMSL, t []float64) []float64 { return lon }},
		{"hMSL", func(lat, lon, hMSL, t []float64) []float64 { return hMSL }},
		{session.UTCTime, func(lat, lon, hMSL, t []float64) []float64 { return t }},
	}

	for _, out := range outputs {
		out := out
		reg.RegisterMeasurement(session.Simplified, out.col, registry.Recipe[[]float64]{
			Name: "track-simplification:" + out.col,
			Deps: deps,
			Compute: func(r registry.Resolver) ([]float64, bool) {
				lat, lon, hMSL, t, ok := simplifiedTrack(r)
				if !ok {
					return nil, false
				}
				for _, side := range outputs {
					if side.col == out.col {
						continue
					}
					r.SetDerivedMeasurement(session.Simplified, side.col, side.pick(lat, lon, hMSL, t))
				}
				return out.pick(lat, lon, hMSL, t), true
			},
		})
	}
}
