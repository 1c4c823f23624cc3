// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

// Package analysis aggregates calibrated samples: fixed-width temperature
// windows and per-axis channel statistics.
package analysis

import (
	"maps"
	"math"
	"slices"
)

// DefaultWindowsPerSecond gives 100 ms temperature windows.
const DefaultWindowsPerSecond = 10.0

// WindowAverage is the mean temperature of one non-empty window.
type WindowAverage struct {
	Index   int     `json:"index"`
	Center  float64 `json:"center"` // seconds
	Average float64 `json:"average"`
	Count   int     `json:"count"`
}

// Windows buckets temperature readings by floor(timestamp * perSecond).
type Windows struct {
	perSecond float64
	buckets   map[int][]float64
}

// NewWindows returns an empty aggregator. A non-positive rate falls back to
// DefaultWindowsPerSecond.
func NewWindows(perSecond float64) *Windows {
	if perSecond <= 0 {
		perSecond = DefaultWindowsPerSecond
	}
	return &Windows{perSecond: perSecond, buckets: make(map[int][]float64)}
}

// Add appends a reading to the window containing timestamp.
func (w *Windows) Add(timestamp, temp float64) {
	idx := int(math.Floor(timestamp * w.perSecond))
	w.buckets[idx] = append(w.buckets[idx], temp)
}

// Len is the number of non-empty windows.
func (w *Windows) Len() int { return len(w.buckets) }

// Readings returns the readings of one window in arrival order.
func (w *Windows) Readings(index int) []float64 {
	return slices.Clone(w.buckets[index])
}

// Averages returns one point per non-empty window in ascending index order,
// reported at the window center. Empty windows are omitted.
func (w *Windows) Averages() []WindowAverage {
	out := make([]WindowAverage, 0, len(w.buckets))
	width := 1 / w.perSecond
	for _, idx := range slices.Sorted(maps.Keys(w.buckets)) {
		temps := w.buckets[idx]
		if len(temps) == 0 {
			continue
		}
		var sum float64
		for _, t := range temps {
			sum += t
		}
		out = append(out, WindowAverage{
			Index:   idx,
			Center:  float64(idx)*width + width/2,
			Average: sum / float64(len(temps)),
			Count:   len(temps),
		})
	}
	return out
}
