// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package orientation

import (
	"math"

	"github.com/relabs-tech/imu_calibration/internal/imu"
)

// Pose is roll/pitch/yaw in degrees.
type Pose struct {
	Roll  float64 `json:"roll"`
	Pitch float64 `json:"pitch"`
	Yaw   float64 `json:"yaw"`
}

// FromAccel computes roll and pitch from a gravity vector (any unit).
// Yaw is unobservable from the accelerometer and stays 0.
//
//	roll  = atan2(ay, az)
//	pitch = atan2(-ax, sqrt(ay² + az²))
func FromAccel(a imu.Vec3) Pose {
	ax, ay, az := a[0], a[1], a[2]
	return Pose{
		Roll:  degrees(math.Atan2(ay, az)),
		Pitch: degrees(math.Atan2(-ax, math.Sqrt(ay*ay+az*az))),
	}
}

// FromQuaternion converts an attitude quaternion (ZYX convention) to Euler
// angles. The quaternion is normalized first; a zero quaternion gives a zero pose.
func FromQuaternion(q imu.Quaternion) Pose {
	n := math.Sqrt(q.W*q.W + q.X*q.X + q.Y*q.Y + q.Z*q.Z)
	if n == 0 {
		return Pose{}
	}
	w, x, y, z := q.W/n, q.X/n, q.Y/n, q.Z/n

	roll := math.Atan2(2*(w*x+y*z), 1-2*(x*x+y*y))

	// clamp for gimbal lock
	sinp := math.Max(-1, math.Min(1, 2*(w*y-z*x)))
	pitch := math.Asin(sinp)

	yaw := math.Atan2(2*(w*z+x*y), 1-2*(y*y+z*z))

	return Pose{Roll: degrees(roll), Pitch: degrees(pitch), Yaw: degrees(yaw)}
}

// ToQuaternion is the inverse of FromQuaternion for the same ZYX convention.
func ToQuaternion(p Pose) imu.Quaternion {
	cr, sr := math.Cos(radians(p.Roll)/2), math.Sin(radians(p.Roll)/2)
	cp, sp := math.Cos(radians(p.Pitch)/2), math.Sin(radians(p.Pitch)/2)
	cy, sy := math.Cos(radians(p.Yaw)/2), math.Sin(radians(p.Yaw)/2)

	return imu.Quaternion{
		W: cr*cp*cy + sr*sp*sy,
		X: sr*cp*cy - cr*sp*sy,
		Y: cr*sp*cy + sr*cp*sy,
		Z: cr*cp*sy - sr*sp*cy,
	}
}

// Gravity is the unit gravity vector an accelerometer at rest reads in pose p.
func Gravity(p Pose) imu.Vec3 {
	r, pi := radians(p.Roll), radians(p.Pitch)
	return imu.Vec3{
		-math.Sin(pi),
		math.Sin(r) * math.Cos(pi),
		math.Cos(r) * math.Cos(pi),
	}
}

func radians(deg float64) float64 {
	return deg * math.Pi / 180.0
}

func degrees(rad float64) float64 {
	return rad * 180.0 / math.Pi
}
