// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

// Package calibration supplies accelerometer/gyroscope correction parameters and
// applies them, together with the synthetic time axis, to parsed sensor readings.
//
// Corrections:
//
//	accel_cal[i] = (accel_raw[i] - accel_bias[i]) * accel_scale[i]
//	gyro_cal[i]  =  gyro_raw[i]  - gyro_bias[i]
//
// The gyroscope has no scale term.
package calibration

import "github.com/relabs-tech/imu_calibration/internal/imu"

// Profile holds the correction parameters for one processing run.
// It is treated as immutable once loaded.
type Profile struct {
	AccelBias  imu.Vec3 `json:"accel_bias" yaml:"accel_bias"`
	AccelScale imu.Vec3 `json:"accel_scale" yaml:"accel_scale"`
	GyroBias   imu.Vec3 `json:"gyro_bias" yaml:"gyro_bias"`
}

// Default returns the identity profile: zero bias, unit scale.
func Default() Profile {
	return Profile{
		AccelScale: imu.Vec3{1, 1, 1},
	}
}

// CorrectAccel removes bias and applies per-axis scale.
func (p Profile) CorrectAccel(raw imu.Vec3) imu.Vec3 {
	var out imu.Vec3
	for i := range raw {
		out[i] = (raw[i] - p.AccelBias[i]) * p.AccelScale[i]
	}
	return out
}

// CorrectGyro removes bias only.
func (p Profile) CorrectGyro(raw imu.Vec3) imu.Vec3 {
	var out imu.Vec3
	for i := range raw {
		out[i] = raw[i] - p.GyroBias[i]
	}
	return out
}
