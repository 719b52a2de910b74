/*************************************************************************
 * Copyright 2025 FlySight Core Contributors. All rights reserved.
 *
 * This software may be modified and distributed under the terms of the
 * BSD 2-clause license. See the LICENSE file for details.
 **************************************************************************/

package session

// Well-known attribute keys the engine and built-in recipes rely on.
const (
	DeviceID    = `DEVICE_ID`
	SessionID   = `SESSION_ID`
	Description = `_DESCRIPTION`
	Visible     = `_VISIBLE`
	ExitTime    = `_EXIT_TIME`
	GroundElev  = `_GROUND_ELEV`
	StartTime   = `_START_TIME`
	Duration    = `_DURATION`
	TimeFitA    = `_TIME_FIT_A`
	TimeFitB    = `_TIME_FIT_B`

	// Supplemented timeline attributes, carried over from the original
	// tool's attribute-calculation registry.
	ManoeuvreStartTime = `_MANOEUVRE_START_TIME`
	LandingTime        = `_LANDING_TIME`
	MaxVelDTime        = `_MAX_VELD_TIME`
	MaxVelHTime        = `_MAX_VELH_TIME`
)

// Well-known measurement column names.
const (
	Time          = `time`
	UTCTime       = `_time`
	TimeFromExit  = `_time_from_exit`
)

// Well-known sensor ids.
const (
	GNSS       = `GNSS`
	BARO       = `BARO`
	HUM        = `HUM`
	MAG        = `MAG`
	IMU        = `IMU`
	TIME       = `TIME`
	VBAT       = `VBAT`
	Simplified = `Simplified`
	ImuGnssEkf = `ImuGnssEkf`
)

// AllTimeFitSensors lists the sensors whose raw `time` column is in
// device-local system time and must be fit against TIME/GNSS to produce
// `_time` in UTC seconds.
var AllTimeFitSensors = []string{BARO, HUM, MAG, IMU, TIME, VBAT}

// AllSensorsWithTime lists every sensor class that carries a `time`
// column and therefore participates in start-time/duration derivation.
var AllSensorsWithTime = []string{GNSS, BARO, HUM, MAG, IMU, TIME, VBAT}
