// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package pipeline

import (
	"time"

	"github.com/relabs-tech/imu_calibration/internal/analysis"
	"github.com/relabs-tech/imu_calibration/internal/calibration"
	"github.com/relabs-tech/imu_calibration/internal/imu"
	"github.com/relabs-tech/imu_calibration/internal/orientation"
)

// Report is everything the pipeline exposes once a run ends.
type Report struct {
	RunID     string
	Mode      string
	StartedAt time.Time
	Elapsed   time.Duration
	Duration  time.Duration // configured acquisition window, live runs only

	Counts  Counts
	Pending int // unterminated bytes left in the framer
	// EffectiveRateHz is samples per configured second, live runs only.
	EffectiveRateHz float64

	Profile      calibration.Profile
	SampleRateHz float64

	Samples     []imu.Sample
	Quaternions []imu.Quaternion
	Windows     []analysis.WindowAverage
	Accel       analysis.ChannelStatistics
	Gyro        analysis.ChannelStatistics

	// Tilt is roll/pitch of the mean calibrated acceleration; zero without samples.
	Tilt orientation.Pose
	// Attitude is the last reported quaternion as Euler angles; nil without quaternions.
	Attitude *orientation.Pose
}

// Report snapshots the current state without ending the run.
func (p *Pipeline) Report() *Report {
	return p.report("", p.now(), 0)
}

func (p *Pipeline) report(mode string, start time.Time, elapsed time.Duration) *Report {
	r := &Report{
		RunID:        p.runID,
		Mode:         mode,
		StartedAt:    start,
		Elapsed:      elapsed,
		Counts:       p.Counts(),
		Pending:      p.framer.Buffered(),
		Profile:      p.profile,
		SampleRateHz: p.stage.RateHz(),
		Samples:      p.samples,
		Quaternions:  p.quaternions,
		Windows:      p.windows.Averages(),
		Accel:        p.accel.Stats(analysis.UnitAccel),
		Gyro:         p.gyro.Stats(analysis.UnitGyro),
	}
	if r.Accel.Count > 0 {
		r.Tilt = orientation.FromAccel(imu.Vec3(r.Accel.Mean))
	}
	if n := len(p.quaternions); n > 0 {
		pose := orientation.FromQuaternion(p.quaternions[n-1])
		r.Attitude = &pose
	}
	return r
}

// Summary is the compact, JSON-friendly part of a report that is published and
// stored. It leaves out the per-sample series.
type Summary struct {
	RunID           string                     `json:"run_id"`
	Source          string                     `json:"source"`
	Mode            string                     `json:"mode"`
	StartedAt       time.Time                  `json:"started_at"`
	ElapsedSeconds  float64                    `json:"elapsed_s"`
	DurationSeconds float64                    `json:"duration_s,omitempty"`
	EffectiveRateHz float64                    `json:"effective_rate_hz"`
	SampleRateHz    float64                    `json:"sample_rate_hz"`
	Counts          Counts                     `json:"counts"`
	Accel           analysis.ChannelStatistics `json:"accel"`
	Gyro            analysis.ChannelStatistics `json:"gyro"`
	Windows         []analysis.WindowAverage   `json:"temperature_windows"`
	Tilt            orientation.Pose           `json:"tilt"`
	Attitude        *orientation.Pose          `json:"attitude,omitempty"`
	Error           string                     `json:"error,omitempty"`
}

// Summary builds the published form of the report. source names the device or
// file the bytes came from.
func (r *Report) Summary(source string) Summary {
	return Summary{
		RunID:           r.RunID,
		Source:          source,
		Mode:            r.Mode,
		StartedAt:       r.StartedAt.UTC(),
		ElapsedSeconds:  r.Elapsed.Seconds(),
		DurationSeconds: r.Duration.Seconds(),
		EffectiveRateHz: r.EffectiveRateHz,
		SampleRateHz:    r.SampleRateHz,
		Counts:          r.Counts,
		Accel:           r.Accel,
		Gyro:            r.Gyro,
		Windows:         r.Windows,
		Tilt:            r.Tilt,
		Attitude:        r.Attitude,
	}
}
