// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package app

import (
	"fmt"
	"io"

	"github.com/relabs-tech/imu_calibration/internal/stream"
)

// CaptureHeader is the header row written at the top of simulated captures.
const CaptureHeader = "Accel_X_raw,Accel_Y_raw,Accel_Z_raw,Gyro_X_raw,Gyro_Y_raw,Gyro_Z_raw,Temp_raw"

// RunSimulate writes durationS seconds of simulated device output to w, with a
// header row so the result can be fed to the process command.
func RunSimulate(w io.Writer, rateHz, durationS float64, seed uint64, glitchEvery int) error {
	sim := stream.NewSimulator(rateHz, seed)
	sim.GlitchEvery = glitchEvery

	if _, err := fmt.Fprintln(w, CaptureHeader); err != nil {
		return err
	}
	return sim.Generate(w, int(durationS*sim.RateHz))
}
