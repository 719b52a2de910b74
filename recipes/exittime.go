/*************************************************************************
 * Copyright 2025 FlySight Core Contributors. All rights reserved.
 *
 * This software may be modified and distributed under the terms of the
 * BSD 2-clause license. See the LICENSE file for details.
 **************************************************************************/

package recipes

import (
	"time"

	"github.com/flysight/flysight-core/registry"
	"github.com/flysight/flysight-core/session"
)

const (
	exitVelThreshold  = 10.0 // m/s
	exitMaxSAcc       = 1.0  // m/s
	exitMinAccD       = 2.5  // m/s^2
	walkingHSpeedMax  = 10.0 / 3.6
	walkingVSpeedGain = 2.0
)

func toInstant(sec float64) session.AttributeValue {
	return session.Instant(time.UnixMilli(int64(sec * 1000.0)).UTC())
}

// registerExitTime registers _EXIT_TIME per §4.7.
func registerExitTime(reg *registry.Registry) {
	reg.RegisterAttribute(session.ExitTime, registry.Recipe[session.AttributeValue]{
		Name: "exit-time",
		Deps: []session.DependencyKey{
			session.MeasurementKey(session.GNSS, "velD"),
			session.MeasurementKey(session.GNSS, "sAcc"),
			session.MeasurementKey(session.GNSS, "accD"),
			session.MeasurementKey(session.GNSS, session.UTCTime),
		},
		Compute: func(r registry.Resolver) (session.AttributeValue, bool) {
			velD, ok1 := getMeas(r, session.GNSS, "velD")
			sAcc, ok2 := getMeas(r, session.GNSS, "sAcc")
			accD, ok3 := getMeas(r, session.GNSS, "accD")
			t, ok4 := getMeas(r, session.GNSS, session.UTCTime)
			if !ok1 || !ok2 || !ok3 || !ok4 || !equalLen(velD, sAcc, accD, t) {
				return session.AttributeValue{}, false
			}

			for i := 1; i < len(velD); i++ {
				denom := velD[i] - velD[i-1]
				if denom <= 0 {
					continue
				}
				a := (exitVelThreshold - velD[i-1]) / denom
				if a < 0 || a > 1 {
					continue
				}
				acc := sAcc[i-1] + a*(sAcc[i]-sAcc[i-1])
				if acc > exitMaxSAcc {
					continue
				}
				az := accD[i-1] + a*(accD[i]-accD[i-1])
				if az < exitMinAccD {
					continue
				}
				tExit := t[i-1] + a*(t[i]-t[i-1]) - exitVelThreshold/az
				return toInstant(tExit), true
			}
			return toInstant(t[len(t)-1]), true
		},
	})
}

// registerManoeuvreStartTime registers _MANOEUVRE_START_TIME (§4.8): the
// last upward crossing of the same 10 m/s threshold used for exit
// detection, without the accuracy/acceleration gating.
func registerManoeuvreStartTime(reg *registry.Registry) {
	reg.RegisterAttribute(session.ManoeuvreStartTime, registry.Recipe[session.AttributeValue]{
		Name: "manoeuvre-start-time",
		Deps: []session.DependencyKey{
			session.MeasurementKey(session.GNSS, "velD"),
			session.MeasurementKey(session.GNSS, session.UTCTime),
		},
		Compute: func(r registry.Resolver) (session.AttributeValue, bool) {
			velD, ok1 := getMeas(r, session.GNSS, "velD")
			t, ok2 := getMeas(r, session.GNSS, session.UTCTime)
			if !ok1 || !ok2 || !equalLen(velD, t) {
				return session.AttributeValue{}, false
			}

			found := false
			var lastCrossing float64
			for i := 1; i < len(velD); i++ {
				if velD[i-1] < exitVelThreshold && velD[i] >= exitVelThreshold {
					denom := velD[i] - velD[i-1]
					if denom == 0 {
						continue
					}
					a := (exitVelThreshold - velD[i-1]) / denom
					lastCrossing = t[i-1] + a*(t[i]-t[i-1])
					found = true
				}
			}
			if !found {
				return session.AttributeValue{}, false
			}
			return toInstant(lastCrossing), true
		},
	})
}

// registerLandingTime registers _LANDING_TIME (§4.8): the last transition
// from "flying" to "walking", where walking means low vertical speed
// relative to its accuracy and horizontal speed under 10 km/h.
func registerLandingTime(reg *registry.Registry) {
	reg.RegisterAttribute(session.LandingTime, registry.Recipe[session.AttributeValue]{
		Name: "landing-time",
		Deps: []session.DependencyKey{
			session.MeasurementKey(session.GNSS, "velD"),
			session.MeasurementKey(session.GNSS, "velH"),
			session.MeasurementKey(session.GNSS, "sAcc"),
			session.MeasurementKey(session.GNSS, session.UTCTime),
		},
		Compute: func(r registry.Resolver) (session.AttributeValue, bool) {
			velD, ok1 := getMeas(r, session.GNSS, "velD")
			velH, ok2 := getMeas(r, session.GNSS, "velH")
			sAcc, ok3 := getMeas(r, session.GNSS, "sAcc")
			t, ok4 := getMeas(r, session.GNSS, session.UTCTime)
			if !ok1 || !ok2 || !ok3 || !ok4 || !equalLen(velD, velH, sAcc, t) {
				return session.AttributeValue{}, false
			}

			isWalking := func(i int) bool {
				d := velD[i]
				if d < 0 {
					d = -d
				}
				return d < walkingVSpeedGain*sAcc[i] && velH[i] < walkingHSpeedMax
			}

			found := false
			var lastTransition float64
			for i := 1; i < len(velD); i++ {
				if !isWalking(i-1) && isWalking(i) {
					lastTransition = t[i]
					found = true
				}
			}
			if !found {
				return session.AttributeValue{}, false
			}
			return toInstant(lastTransition), true
		},
	})
}

// registerMaxSpeedTimes registers _MAX_VELD_TIME and _MAX_VELH_TIME
// (§4.8): the timestamp of the peak vertical/horizontal speed at or after
// the manoeuvre start instant.
func registerMaxSpeedTimes(reg *registry.Registry) {
	register := func(attrKey, column string) {
		reg.RegisterAttribute(attrKey, registry.Recipe[session.AttributeValue]{
			Name: "max-speed-time:" + column,
			Deps: []session.DependencyKey{
				session.AttributeKey(session.ManoeuvreStartTime),
				session.MeasurementKey(session.GNSS, column),
				session.MeasurementKey(session.GNSS, session.UTCTime),
			},
			Compute: func(r registry.Resolver) (session.AttributeValue, bool) {
				msSec, ok := getAttrTime(r, session.ManoeuvreStartTime)
				if !ok {
					return session.AttributeValue{}, false
				}
				vel, ok2 := getMeas(r, session.GNSS, column)
				t, ok3 := getMeas(r, session.GNSS, session.UTCTime)
				if !ok2 || !ok3 || !equalLen(vel, t) {
					return session.AttributeValue{}, false
				}

				maxIdx := -1
				maxVel := 0.0
				for i := range vel {
					if t[i] >= msSec && (maxIdx < 0 || vel[i] > maxVel) {
						maxVel = vel[i]
						maxIdx = i
					}
				}
				if maxIdx < 0 {
					return session.AttributeValue{}, false
				}
				return toInstant(t[maxIdx]), true
			},
		})
	}
	register(session.MaxVelDTime, "velD")
	register(session.MaxVelHTime, "velH")
}

// registerTimeFromExit registers _time_from_exit per sensor: the sensor's
// own _time shifted so that _EXIT_TIME lands on zero.
func registerTimeFromExit(reg *registry.Registry) {
	for _, sensor := range session.AllSensorsWithTime {
		sensor := sensor
		reg.RegisterMeasurement(sensor, session.TimeFromExit, registry.Recipe[[]float64]{
			Name: "time-from-exit",
			Deps: []session.DependencyKey{
				session.AttributeKey(session.ExitTime),
				session.MeasurementKey(sensor, session.UTCTime),
			},
			Compute: func(r registry.Resolver) ([]float64, bool) {
				exitSec, ok := getAttrTime(r, session.ExitTime)
				if !ok {
					return nil, false
				}
				t, ok := getMeas(r, sensor, session.UTCTime)
				if !ok {
					return nil, false
				}
				out := make([]float64, len(t))
				for i, v := range t {
					out[i] = v - exitSec
				}
				return out, true
			},
		})
	}
}
