// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package analysis

import (
	"math"

	"gonum.org/v1/gonum/stat"
)

// Units reported with channel statistics.
const (
	UnitAccel = "g"
	UnitGyro  = "dps"
)

// ChannelStatistics is the per-axis mean (the residual bias) and population
// standard deviation of one three-axis channel.
type ChannelStatistics struct {
	Mean   [3]float64 `json:"bias"`
	StdDev [3]float64 `json:"std"`
	Unit   string     `json:"unit"`
	Count  int        `json:"count"`
}

// Channel collects the three axis series of one sensor.
type Channel struct {
	axes [3][]float64
}

// Add appends one three-axis value.
func (c *Channel) Add(v [3]float64) {
	for i := range v {
		c.axes[i] = append(c.axes[i], v[i])
	}
}

// Len is the number of values in the shortest axis.
func (c *Channel) Len() int {
	return min(len(c.axes[0]), len(c.axes[1]), len(c.axes[2]))
}

// Axis returns the series of one axis.
func (c *Channel) Axis(i int) []float64 { return c.axes[i] }

// Stats computes the channel statistics.
func (c *Channel) Stats(unit string) ChannelStatistics {
	return ComputeChannel(c.axes, unit)
}

// ComputeChannel returns mean and population standard deviation (divisor n) per
// axis. If any axis is empty the whole channel reports zeros; the unit is set
// either way.
func ComputeChannel(axes [3][]float64, unit string) ChannelStatistics {
	out := ChannelStatistics{Unit: unit}
	for _, a := range axes {
		if len(a) == 0 {
			return out
		}
	}

	out.Count = len(axes[0])
	for i, a := range axes {
		mean, variance := stat.PopMeanVariance(a, nil)
		out.Mean[i] = mean
		out.StdDev[i] = math.Sqrt(math.Max(variance, 0))
	}
	return out
}
