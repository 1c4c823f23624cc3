// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package calibration

import "github.com/relabs-tech/imu_calibration/internal/imu"

// DefaultSampleRateHz is the nominal output rate of the sensor firmware.
const DefaultSampleRateHz = 200.0

// Stage calibrates readings and stamps them with index/rate. The index only
// advances on Apply, so lines rejected upstream never leave a gap.
type Stage struct {
	profile Profile
	rateHz  float64
	next    int
}

// NewStage returns a stage for the given profile. A non-positive rate falls back
// to DefaultSampleRateHz.
func NewStage(profile Profile, rateHz float64) *Stage {
	if rateHz <= 0 {
		rateHz = DefaultSampleRateHz
	}
	return &Stage{profile: profile, rateHz: rateHz}
}

// Apply corrects one reading. Filtered channels are copied through untouched.
func (s *Stage) Apply(raw imu.Reading, filtered *imu.Reading) imu.Sample {
	sample := imu.Sample{
		Timestamp: float64(s.next) / s.rateHz,
		Accel:     s.profile.CorrectAccel(raw.Accel),
		Gyro:      s.profile.CorrectGyro(raw.Gyro),
		Temp:      raw.Temp,
	}
	if filtered != nil {
		f := *filtered
		sample.Filtered = &f
	}
	s.next++
	return sample
}

// Count is the number of samples stamped so far.
func (s *Stage) Count() int { return s.next }

// RateHz is the sample rate used for timestamps.
func (s *Stage) RateHz() float64 { return s.rateHz }

// Profile returns the profile the stage applies.
func (s *Stage) Profile() Profile { return s.profile }
