// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package imu

// Vec3 is a three-axis reading ordered X, Y, Z.
type Vec3 [3]float64

// Quaternion is an attitude quaternion reported by the device.
type Quaternion struct {
	W float64 `json:"w"`
	X float64 `json:"x"`
	Y float64 `json:"y"`
	Z float64 `json:"z"`
}

// Reading is one accelerometer/gyroscope/temperature tuple as sent by the device.
type Reading struct {
	Accel Vec3 `json:"accel"` // g
	Gyro  Vec3 `json:"gyro"`  // dps
	Temp  int  `json:"temp"`  // raw units
}

// Sample is a calibrated reading placed on the synthetic time axis.
type Sample struct {
	Timestamp float64 `json:"t"` // seconds since first valid sample
	Accel     Vec3    `json:"accel"`
	Gyro      Vec3    `json:"gyro"`
	Temp      int     `json:"temp"`

	// Filtered is the device-side filtered channel set, passed through as received.
	// Nil for 7-field records.
	Filtered *Reading `json:"filtered,omitempty"`
}
