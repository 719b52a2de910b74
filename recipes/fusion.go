/*************************************************************************
 * Copyright 2025 FlySight Core Contributors. All rights reserved.
 *
 * This software may be modified and distributed under the terms of the
 * BSD 2-clause license. See the LICENSE file for details.
 **************************************************************************/

package recipes

import (
	"math"

	"github.com/ChristopherRabotin/gokalman"
	"github.com/gonum/matrix/mat64"

	"github.com/flysight/flysight-core/registry"
	"github.com/flysight/flysight-core/session"
)

const fusionStateDim = 9 // posN,posE,posD, velN,velE,velD, accN,accE,accD
const fusionMeasDim = 6  // posN,posE,posD, velN,velE,velD

// fusionPhi builds the constant-acceleration state-transition matrix over
// a timestep of dt seconds.
func fusionPhi(dt float64) *mat64.Dense {
	phi := mat64.NewDense(fusionStateDim, fusionStateDim, nil)
	for i := 0; i < fusionStateDim; i++ {
		phi.Set(i, i, 1)
	}
	for i := 0; i < 3; i++ {
		phi.Set(i, i+3, dt)          // pos += vel*dt
		phi.Set(i, i+6, 0.5*dt*dt)   // pos += 0.5*acc*dt^2
		phi.Set(i+3, i+6, dt)        // vel += acc*dt
	}
	return phi
}

// fusionH is the fixed measurement matrix: GNSS observes position and
// velocity directly, never acceleration.
func fusionH() *mat64.Dense {
	h := mat64.NewDense(fusionMeasDim, fusionStateDim, nil)
	for i := 0; i < fusionMeasDim; i++ {
		h.Set(i, i, 1)
	}
	return h
}

func vecAt(v *mat64.Vector, i int) float64 { return v.At(i, 0) }

// runFusion fuses GNSS position/velocity with IMU-derived attitude into
// the 13 ImuGnssEkf outputs (§4.7 Sensor fusion), using gokalman's SRIF
// filter over a constant-acceleration process model. IMU samples are
// resampled onto the GNSS timeline by linear interpolation; GNSS accuracy
// estimates (hAcc/vAcc/sAcc) seed the filter's measurement covariance.
func runFusion(
	gnssTime, lat, lon, hMSL, velN, velE, velD, hAcc, vAcc, sAcc []float64,
	imuTime, ax, ay, az, wx, wy, wz []float64,
) (out map[string][]float64, ok bool) {
	n := len(gnssTime)
	if n == 0 {
		return nil, false
	}

	// Resample IMU onto the GNSS timeline.
	axR := make([]float64, n)
	ayR := make([]float64, n)
	azR := make([]float64, n)
	wzR := make([]float64, n)
	for i := 0; i < n; i++ {
		v, ok := interpAt(imuTime, ax, gnssTime[i])
		if !ok {
			return nil, false
		}
		axR[i] = v
		if v, ok = interpAt(imuTime, ay, gnssTime[i]); !ok {
			return nil, false
		}
		ayR[i] = v
		if v, ok = interpAt(imuTime, az, gnssTime[i]); !ok {
			return nil, false
		}
		azR[i] = v
		if v, ok = interpAt(imuTime, wz, gnssTime[i]); !ok {
			return nil, false
		}
		wzR[i] = v
	}

	// Project GNSS position into a local NED frame anchored at the first
	// sample (down positive, matching the aviation convention used
	// elsewhere in the engine).
	posN := make([]float64, n)
	posE := make([]float64, n)
	posD := make([]float64, n)
	for i := 0; i < n; i++ {
		x, y := tangentPlaneProject(lat[i], lon[i], lat[0], lon[0])
		posN[i] = y
		posE[i] = x
		posD[i] = -(hMSL[i] - hMSL[0])
	}

	meanAcc := func(vs []float64) float64 {
		var s float64
		for _, v := range vs {
			s += v
		}
		return s / float64(len(vs))
	}
	rHoriz := math.Max(meanAcc(hAcc), 0.1)
	rVert := math.Max(meanAcc(vAcc), 0.1)
	rVel := math.Max(meanAcc(sAcc), 0.05)

	q := mat64.NewSymDense(3, []float64{1e-3, 0, 0, 0, 1e-3, 0, 0, 0, 1e-3})
	r := mat64.NewSymDense(fusionMeasDim, []float64{
		rHoriz * rHoriz, 0, 0, 0, 0, 0,
		0, rHoriz * rHoriz, 0, 0, 0, 0,
		0, 0, rVert * rVert, 0, 0, 0,
		0, 0, 0, rVel * rVel, 0, 0,
		0, 0, 0, 0, rVel * rVel, 0,
		0, 0, 0, 0, 0, rVel * rVel,
	})
	noise := gokalman.NewNoiseless(q, r)

	p0 := mat64.NewSymDense(fusionStateDim, nil)
	for i := 0; i < 3; i++ {
		p0.SetSym(i, i, rHoriz*rHoriz)
		p0.SetSym(i+3, i+3, rVel*rVel)
		p0.SetSym(i+6, i+6, 1.0)
	}

	kf, _, err := gokalman.NewSRIF(mat64.NewVector(fusionStateDim, nil), p0, fusionMeasDim, false, noise)
	if err != nil {
		return nil, false
	}

	h := fusionH()
	nominal := []float64{posN[0], posE[0], posD[0], velN[0], velE[0], velD[0], axR[0], ayR[0], azR[0]}

	outPosN := make([]float64, n)
	outPosE := make([]float64, n)
	outPosD := make([]float64, n)
	outVelN := make([]float64, n)
	outVelE := make([]float64, n)
	outVelD := make([]float64, n)
	outAccN := make([]float64, n)
	outAccE := make([]float64, n)
	outAccD := make([]float64, n)
	outRoll := make([]float64, n)
	outPitch := make([]float64, n)
	outYaw := make([]float64, n)

	yaw := 0.0
	for i := 0; i < n; i++ {
		if i > 0 {
			dt := gnssTime[i] - gnssTime[i-1]
			if dt <= 0 {
				return nil, false
			}
			phi := fusionPhi(dt)
			predicted := mat64.NewVector(fusionStateDim, nominal)
			var predictedNext mat64.Vector
			predictedNext.MulVec(phi, predicted)

			kf.Prepare(phi, h)
			real := mat64.NewVector(fusionMeasDim, []float64{posN[i], posE[i], posD[i], velN[i], velE[i], velD[i]})
			var computed mat64.Vector
			computed.MulVec(h, &predictedNext)

			est, uerr := kf.Update(real, &computed)
			if uerr != nil {
				return nil, false
			}
			corrected := est.State()
			for k := 0; k < fusionStateDim; k++ {
				nominal[k] = predictedNext.At(k, 0) + vecAt(corrected, k)
			}

			yaw += wzR[i] * dt
		}

		outPosN[i], outPosE[i], outPosD[i] = nominal[0], nominal[1], nominal[2]
		outVelN[i], outVelE[i], outVelD[i] = nominal[3], nominal[4], nominal[5]
		outAccN[i], outAccE[i], outAccD[i] = nominal[6], nominal[7], nominal[8]

		outRoll[i] = math.Atan2(ayR[i], azR[i])
		outPitch[i] = math.Atan2(-axR[i], math.Hypot(ayR[i], azR[i]))
		outYaw[i] = yaw
	}

	return map[string][]float64{
		session.UTCTime: append([]float64(nil), gnssTime...),
		"posN":          outPosN,
		"posE":          outPosE,
		"posD":          outPosD,
		"velN":          outVelN,
		"velE":          outVelE,
		"velD":          outVelD,
		"accN":          outAccN,
		"accE":          outAccE,
		"accD":          outAccD,
		"roll":          outRoll,
		"pitch":         outPitch,
		"yaw":           outYaw,
	}, true
}

var fusionOutputColumns = []string{
	session.UTCTime, "posN", "posE", "posD",
	"velN", "velE", "velD",
	"accN", "accE", "accD",
	"roll", "pitch", "yaw",
}

// registerSensorFusion registers the ImuGnssEkf multi-output recipe family
// and the derived accH magnitude (§4.7 Sensor fusion).
func registerSensorFusion(reg *registry.Registry) {
	deps := []session.DependencyKey{
		session.MeasurementKey(session.GNSS, session.UTCTime),
		session.MeasurementKey(session.GNSS, "lat"),
		session.MeasurementKey(session.GNSS, "lon"),
		session.MeasurementKey(session.GNSS, "hMSL"),
		session.MeasurementKey(session.GNSS, "velN"),
		session.MeasurementKey(session.GNSS, "velE"),
		session.MeasurementKey(session.GNSS, "velD"),
		session.MeasurementKey(session.GNSS, "hAcc"),
		session.MeasurementKey(session.GNSS, "vAcc"),
		session.MeasurementKey(session.GNSS, "sAcc"),
		session.MeasurementKey(session.IMU, session.UTCTime),
		session.MeasurementKey(session.IMU, "ax"),
		session.MeasurementKey(session.IMU, "ay"),
		session.MeasurementKey(session.IMU, "az"),
		session.MeasurementKey(session.IMU, "wx"),
		session.MeasurementKey(session.IMU, "wy"),
		session.MeasurementKey(session.IMU, "wz"),
	}

	compute := func(r registry.Resolver) (map[string][]float64, bool) {
		gnssTime, ok := getMeas(r, session.GNSS, session.UTCTime)
		if !ok {
			return nil, false
		}
		lat, ok1 := getMeas(r, session.GNSS, "lat")
		lon, ok2 := getMeas(r, session.GNSS, "lon")
		hMSL, ok3 := getMeas(r, session.GNSS, "hMSL")
		velN, ok4 := getMeas(r, session.GNSS, "velN")
		velE, ok5 := getMeas(r, session.GNSS, "velE")
		velD, ok6 := getMeas(r, session.GNSS, "velD")
		hAcc, ok7 := getMeas(r, session.GNSS, "hAcc")
		vAcc, ok8 := getMeas(r, session.GNSS, "vAcc")
		sAcc, ok9 := getMeas(r, session.GNSS, "sAcc")
		imuTime, ok10 := getMeas(r, session.IMU, session.UTCTime)
		ax, ok11 := getMeas(r, session.IMU, "ax")
		ay, ok12 := getMeas(r, session.IMU, "ay")
		az, ok13 := getMeas(r, session.IMU, "az")
		wx, ok14 := getMeas(r, session.IMU, "wx")
		wy, ok15 := getMeas(r, session.IMU, "wy")
		wz, ok16 := getMeas(r, session.IMU, "wz")
		if !(ok1 && ok2 && ok3 && ok4 && ok5 && ok6 && ok7 && ok8 && ok9 &&
			ok10 && ok11 && ok12 && ok13 && ok14 && ok15 && ok16) {
			return nil, false
		}
		_ = wx
		_ = wy
		if !equalLen(gnssTime, lat, lon, hMSL, velN, velE, velD, hAcc, vAcc, sAcc) {
			return nil, false
		}
		return runFusion(gnssTime, lat, lon, hMSL, velN, velE, velD, hAcc, vAcc, sAcc, imuTime, ax, ay, az, wx, wy, wz)
	}

	for _, col := range fusionOutputColumns {
		col := col
		reg.RegisterMeasurement(session.ImuGnssEkf, col, registry.Recipe[[]float64]{
			Name: "sensor-fusion:" + col,
			Deps: deps,
			Compute: func(r registry.Resolver) ([]float64, bool) {
				outputs, ok := compute(r)
				if !ok {
					return nil, false
				}
				for _, side := range fusionOutputColumns {
					if side == col {
						continue
					}
					r.SetDerivedMeasurement(session.ImuGnssEkf, side, outputs[side])
				}
				return outputs[col], true
			},
		})
	}

	reg.RegisterMeasurement(session.ImuGnssEkf, "accH", registry.Recipe[[]float64]{
		Name: "sensor-fusion-acch",
		Deps: []session.DependencyKey{
			session.MeasurementKey(session.ImuGnssEkf, "accN"),
			session.MeasurementKey(session.ImuGnssEkf, "accE"),
		},
		Compute: func(r registry.Resolver) ([]float64, bool) {
			accN, ok1 := getMeas(r, session.ImuGnssEkf, "accN")
			accE, ok2 := getMeas(r, session.ImuGnssEkf, "accE")
			if !ok1 || !ok2 || !equalLen(accN, accE) {
				return nil, false
			}
			out := make([]float64, len(accN))
			for i := range accN {
				out[i] = math.Hypot(accN[i], accE[i])
			}
			return out, true
		},
	})
}
